// Package modlog writes the append-only moderation audit trail, mirroring
// each record to the structured log.
package modlog

import (
	"context"
	"time"

	"groupwarden/internal/storage"

	"go.uber.org/zap"
)

type Logger struct {
	store  *storage.Store
	logger *zap.Logger
}

func New(store *storage.Store, logger *zap.Logger) *Logger {
	return &Logger{store: store, logger: logger}
}

// Log records a moderation action. A storage failure is logged and swallowed
// so audit bookkeeping never breaks the moderation flow itself.
func (l *Logger) Log(ctx context.Context, chatID, adminID int64, action string, targetID int64, reason string) {
	entry := storage.ModerationLog{
		ChatID:    chatID,
		AdminID:   adminID,
		Action:    action,
		TargetID:  targetID,
		Reason:    reason,
		CreatedAt: time.Now(),
	}
	if l.store != nil {
		if err := l.store.AddModerationLog(ctx, entry); err != nil {
			l.logger.Warn("moderation log write failed", zap.Error(err))
		}
	}
	l.logger.Info("moderation",
		zap.Int64("chat_id", chatID),
		zap.Int64("admin_id", adminID),
		zap.String("action", action),
		zap.Int64("target_id", targetID),
		zap.String("reason", reason),
	)
}
