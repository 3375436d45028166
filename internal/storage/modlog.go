package storage

import (
	"context"
	"time"
)

// ModerationLog is one append-only audit record. Rows are never updated or
// deleted by the bot.
type ModerationLog struct {
	ID        int64
	ChatID    int64
	AdminID   int64
	Action    string
	TargetID  int64
	Reason    string
	CreatedAt time.Time
}

func (s *Store) AddModerationLog(ctx context.Context, entry ModerationLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO moderation_logs (chat_id, admin_id, action, target_id, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.ChatID, entry.AdminID, entry.Action, entry.TargetID, entry.Reason, entry.CreatedAt.Unix())
	return err
}

func (s *Store) ListModerationLogs(ctx context.Context, chatID int64, since time.Time) ([]ModerationLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, admin_id, action, target_id, reason, created_at
		FROM moderation_logs
		WHERE chat_id = ? AND created_at >= ?
		ORDER BY created_at DESC
	`, chatID, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ModerationLog
	for rows.Next() {
		var entry ModerationLog
		var created int64
		if err := rows.Scan(&entry.ID, &entry.ChatID, &entry.AdminID, &entry.Action, &entry.TargetID, &entry.Reason, &created); err != nil {
			return nil, err
		}
		entry.CreatedAt = time.Unix(created, 0)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
