package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const dateLayout = "2006-01-02"

// UserProfile is the identity cache row, refreshed on every message.
type UserProfile struct {
	UserID    int64
	Username  string
	FirstName string
	LastName  string
	UpdatedAt time.Time
}

// UserStats is one (chat, user) accounting row.
type UserStats struct {
	ChatID          int64
	UserID          int64
	MessagesDay     int64
	MessagesWeek    int64
	MessagesAll     int64
	Experience      int64
	Warns           int
	CustomRank      *int
	HiddenRank      int
	LastMessageTime time.Time
}

type TopEntry struct {
	UserID     int64
	Messages   int64
	Experience int64
}

// Counters feed the hidden rank evaluation.
type Counters struct {
	AllTime    int64
	Today      int64
	ThisWeek   int64
	Trailing30 int64
}

func (s *Store) UpsertUser(ctx context.Context, profile UserProfile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (user_id, username, first_name, last_name, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			updated_at = excluded.updated_at
	`, profile.UserID, profile.Username, profile.FirstName, profile.LastName, profile.UpdatedAt.Unix())
	return err
}

func (s *Store) GetUser(ctx context.Context, userID int64) (UserProfile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, COALESCE(username, ''), COALESCE(first_name, ''), COALESCE(last_name, ''), updated_at
		FROM users WHERE user_id = ?`, userID)

	var profile UserProfile
	var updated int64
	err := row.Scan(&profile.UserID, &profile.Username, &profile.FirstName, &profile.LastName, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UserProfile{}, nil
		}
		return UserProfile{}, err
	}
	profile.UpdatedAt = time.Unix(updated, 0)
	return profile, nil
}

// AddMessage credits one message and expGain experience to the (chat, user)
// row and the per-day activity row, both as increment-or-insert so concurrent
// messages never lose updates.
func (s *Store) AddMessage(ctx context.Context, chatID, userID int64, expGain int, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chat_stats (chat_id, user_id, messages_day, messages_week, messages_all, experience, last_message_time)
		VALUES (?, ?, 1, 1, 1, ?, ?)
		ON CONFLICT(chat_id, user_id) DO UPDATE SET
			messages_day = messages_day + 1,
			messages_week = messages_week + 1,
			messages_all = messages_all + 1,
			experience = experience + excluded.experience,
			last_message_time = excluded.last_message_time
	`, chatID, userID, expGain, now.Unix())
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO daily_stats (chat_id, user_id, date, messages)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(chat_id, user_id, date) DO UPDATE SET
			messages = messages + 1
	`, chatID, userID, now.Format(dateLayout))
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) UserStats(ctx context.Context, chatID, userID int64) (UserStats, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT messages_day, messages_week, messages_all, experience, warns, custom_rank, hidden_rank, COALESCE(last_message_time, 0)
		FROM chat_stats WHERE chat_id = ? AND user_id = ?`, chatID, userID)

	stats := UserStats{ChatID: chatID, UserID: userID}
	var custom sql.NullInt64
	var lastMessage int64
	err := row.Scan(&stats.MessagesDay, &stats.MessagesWeek, &stats.MessagesAll, &stats.Experience, &stats.Warns, &custom, &stats.HiddenRank, &lastMessage)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UserStats{}, false, nil
		}
		return UserStats{}, false, err
	}
	if custom.Valid {
		value := int(custom.Int64)
		stats.CustomRank = &value
	}
	stats.LastMessageTime = time.Unix(lastMessage, 0)
	return stats, true, nil
}

// Top returns up to limit users of a chat ordered by the period counter,
// experience breaking ties. Period is one of "day", "week", "all".
func (s *Store) Top(ctx context.Context, chatID int64, period string, limit int) ([]TopEntry, error) {
	column := "messages_all"
	switch period {
	case "day":
		column = "messages_day"
	case "week":
		column = "messages_week"
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, `+column+`, experience
		FROM chat_stats
		WHERE chat_id = ?
		ORDER BY `+column+` DESC, experience DESC
		LIMIT ?`, chatID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []TopEntry
	for rows.Next() {
		var entry TopEntry
		if err := rows.Scan(&entry.UserID, &entry.Messages, &entry.Experience); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// AddWarn increments the warn counter, creating the row at 1, and returns
// the new total. One statement, no read-then-write window.
func (s *Store) AddWarn(ctx context.Context, chatID, userID int64) (int, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO chat_stats (chat_id, user_id, warns)
		VALUES (?, ?, 1)
		ON CONFLICT(chat_id, user_id) DO UPDATE SET warns = warns + 1
		RETURNING warns
	`, chatID, userID)

	var warns int
	if err := row.Scan(&warns); err != nil {
		return 0, err
	}
	return warns, nil
}

// RemoveWarn decrements the warn counter, flooring at zero. An absent row
// counts as zero and is not an error.
func (s *Store) RemoveWarn(ctx context.Context, chatID, userID int64) (int, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE chat_stats SET warns = MAX(warns - 1, 0)
		WHERE chat_id = ? AND user_id = ?
		RETURNING warns
	`, chatID, userID)

	var warns int
	if err := row.Scan(&warns); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return warns, nil
}

// SetCustomRank stores an admin-assigned rank; nil clears the assignment.
func (s *Store) SetCustomRank(ctx context.Context, chatID, userID int64, rank *int) error {
	var value any
	if rank != nil {
		value = *rank
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_stats (chat_id, user_id, custom_rank)
		VALUES (?, ?, ?)
		ON CONFLICT(chat_id, user_id) DO UPDATE SET custom_rank = excluded.custom_rank
	`, chatID, userID, value)
	return err
}

// RefreshHiddenRank recomputes the activity tier from current counters in one
// transaction and persists it when it changed. Returns the tier and whether
// it moved. A user without a stats row keeps tier zero.
func (s *Store) RefreshHiddenRank(ctx context.Context, chatID, userID int64, now time.Time, eval func(Counters) int) (int, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var counters Counters
	var current int
	row := tx.QueryRowContext(ctx, `
		SELECT messages_all, messages_day, messages_week, hidden_rank
		FROM chat_stats WHERE chat_id = ? AND user_id = ?
	`, chatID, userID)
	scanErr := row.Scan(&counters.AllTime, &counters.Today, &counters.ThisWeek, &current)
	if scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			err = tx.Commit()
			return 0, false, err
		}
		err = scanErr
		return 0, false, err
	}

	cutoff := now.AddDate(0, 0, -30).Format(dateLayout)
	row = tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(messages), 0) FROM daily_stats
		WHERE chat_id = ? AND user_id = ? AND date >= ?
	`, chatID, userID, cutoff)
	if err = row.Scan(&counters.Trailing30); err != nil {
		return 0, false, err
	}

	next := eval(counters)
	if next == current {
		err = tx.Commit()
		return current, false, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE chat_stats SET hidden_rank = ?, rank_updated_at = ?
		WHERE chat_id = ? AND user_id = ?
	`, next, now.Unix(), chatID, userID)
	if err != nil {
		return 0, false, err
	}
	if err = tx.Commit(); err != nil {
		return 0, false, err
	}
	return next, true, nil
}

// ResetDaily zeroes the per-day counter for every tracked user. Idempotent.
func (s *Store) ResetDaily(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `UPDATE chat_stats SET messages_day = 0`)
	return err
}

// ResetWeekly zeroes the per-week counter for every tracked user. Idempotent.
func (s *Store) ResetWeekly(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `UPDATE chat_stats SET messages_week = 0`)
	return err
}
