// Package warns keeps the per-(chat, user) warning counter and applies the
// automatic mute once the configured maximum is reached.
package warns

import (
	"context"
	"time"

	"groupwarden/internal/storage"
	"groupwarden/internal/telegram"

	"go.uber.org/zap"
)

type Tracker struct {
	store  *storage.Store
	api    telegram.API
	logger *zap.Logger
	max    int
}

func NewTracker(store *storage.Store, api telegram.API, logger *zap.Logger, maxWarns int) *Tracker {
	return &Tracker{store: store, api: api, logger: logger, max: maxWarns}
}

func (t *Tracker) Max() int {
	return t.max
}

// Add increments the warning counter and, at or past the maximum, applies a
// temporary mute for muteDuration. The mute is best effort: a platform
// failure is logged and swallowed so the warn bookkeeping itself never
// fails, and muted stays false.
func (t *Tracker) Add(ctx context.Context, chatID, userID int64, muteDuration time.Duration) (count int, muted bool, err error) {
	count, err = t.store.AddWarn(ctx, chatID, userID)
	if err != nil {
		return 0, false, err
	}
	if count < t.max {
		return count, false, nil
	}

	until := time.Now().Add(muteDuration)
	perms := telegram.ChatPermissions{CanSendMessages: false}
	if muteErr := t.api.RestrictMember(ctx, chatID, userID, perms, until); muteErr != nil {
		t.logger.Warn("auto mute failed",
			zap.Int64("chat_id", chatID),
			zap.Int64("user_id", userID),
			zap.Error(muteErr),
		)
		return count, false, nil
	}
	return count, true, nil
}

// Remove decrements the counter, flooring at zero. Never errors on an
// absent or already-zero row.
func (t *Tracker) Remove(ctx context.Context, chatID, userID int64) (int, error) {
	return t.store.RemoveWarn(ctx, chatID, userID)
}
