package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	db *sql.DB
}

// ChatSettings carries per-chat configuration. The absence of a row is a
// valid state: GetChatSettings resolves it to the supplied defaults.
type ChatSettings struct {
	ChatID           int64
	WelcomeEnabled   bool
	AntifloodEnabled bool
	MuteSeconds      int
	BanSeconds       int
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// modernc sqlite rejects concurrent writers on a single file DB.
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

func (s *Store) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *Store) Migrate() error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}

	var files []string
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrations.ReadFile(path.Join("migrations", file))
		if err != nil {
			return err
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			if isIgnorableMigrationError(err) {
				continue
			}
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
	}
	return nil
}

func (s *Store) GetChatSettings(ctx context.Context, chatID int64, defaults ChatSettings) (ChatSettings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT welcome_enabled, antiflood_enabled, mute_duration, ban_duration
		FROM chat_settings WHERE chat_id = ?`, chatID)

	result := defaults
	result.ChatID = chatID

	var welcome, antiflood int
	err := row.Scan(&welcome, &antiflood, &result.MuteSeconds, &result.BanSeconds)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return result, nil
		}
		return ChatSettings{}, err
	}
	result.WelcomeEnabled = welcome == 1
	result.AntifloodEnabled = antiflood == 1
	return result, nil
}

func (s *Store) SetWelcomeEnabled(ctx context.Context, chatID int64, enabled bool, defaults ChatSettings) error {
	return s.setChatSetting(ctx, chatID, "welcome_enabled", boolToInt(enabled), defaults)
}

func (s *Store) SetAntifloodEnabled(ctx context.Context, chatID int64, enabled bool, defaults ChatSettings) error {
	return s.setChatSetting(ctx, chatID, "antiflood_enabled", boolToInt(enabled), defaults)
}

func (s *Store) SetMuteDuration(ctx context.Context, chatID int64, seconds int, defaults ChatSettings) error {
	return s.setChatSetting(ctx, chatID, "mute_duration", seconds, defaults)
}

func (s *Store) SetBanDuration(ctx context.Context, chatID int64, seconds int, defaults ChatSettings) error {
	return s.setChatSetting(ctx, chatID, "ban_duration", seconds, defaults)
}

// setChatSetting updates one column, seeding the remaining columns from the
// configured defaults when the chat has no settings row yet.
func (s *Store) setChatSetting(ctx context.Context, chatID int64, column string, value int, defaults ChatSettings) error {
	current, err := s.GetChatSettings(ctx, chatID, defaults)
	if err != nil {
		return err
	}
	switch column {
	case "welcome_enabled":
		current.WelcomeEnabled = value == 1
	case "antiflood_enabled":
		current.AntifloodEnabled = value == 1
	case "mute_duration":
		current.MuteSeconds = value
	case "ban_duration":
		current.BanSeconds = value
	default:
		return fmt.Errorf("unknown setting %q", column)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chat_settings (chat_id, welcome_enabled, antiflood_enabled, mute_duration, ban_duration)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			welcome_enabled = excluded.welcome_enabled,
			antiflood_enabled = excluded.antiflood_enabled,
			mute_duration = excluded.mute_duration,
			ban_duration = excluded.ban_duration
	`, chatID, boolToInt(current.WelcomeEnabled), boolToInt(current.AntifloodEnabled), current.MuteSeconds, current.BanSeconds)
	return err
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func isIgnorableMigrationError(err error) bool {
	if err == nil {
		return false
	}
	message := err.Error()
	return strings.Contains(message, "duplicate column name") || strings.Contains(message, "already exists")
}
