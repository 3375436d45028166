package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	BotToken       string          `yaml:"bot_token"`
	DatabasePath   string          `yaml:"database_path"`
	LogLevel       string          `yaml:"log_level"`
	Timezone       string          `yaml:"timezone"`
	WeeklyResetDay string          `yaml:"weekly_reset_day"`
	Antiflood      AntifloodConfig `yaml:"antiflood"`
	Warns          WarnConfig      `yaml:"warns"`
	Engage         EngageConfig    `yaml:"engage"`
	Defaults       ChatDefaults    `yaml:"chat_defaults"`
}

type AntifloodConfig struct {
	DelaySeconds int `yaml:"delay_seconds"`
	CacheSize    int `yaml:"cache_size"`
}

type WarnConfig struct {
	Max int `yaml:"max"`
}

type EngageConfig struct {
	GrammarBonus int `yaml:"grammar_bonus"`
}

// ChatDefaults apply to chats that never stored their own settings row.
type ChatDefaults struct {
	WelcomeEnabled   bool `yaml:"welcome_enabled"`
	AntifloodEnabled bool `yaml:"antiflood_enabled"`
	MuteSeconds      int  `yaml:"mute_seconds"`
	BanSeconds       int  `yaml:"ban_seconds"`
}

func DefaultConfig() Config {
	return Config{
		DatabasePath:   "/data/groupwarden.db",
		LogLevel:       "info",
		Timezone:       "Europe/Moscow",
		WeeklyResetDay: "mon",
		Antiflood:      AntifloodConfig{DelaySeconds: 2, CacheSize: 4096},
		Warns:          WarnConfig{Max: 3},
		Engage:         EngageConfig{GrammarBonus: 20},
		Defaults: ChatDefaults{
			WelcomeEnabled:   true,
			AntifloodEnabled: true,
			MuteSeconds:      60,
			BanSeconds:       3600,
		},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.BotToken == "" {
		return Config{}, errors.New("BOT_TOKEN is required")
	}
	cfg.WeeklyResetDay = normalizeWeekday(cfg.WeeklyResetDay)
	if cfg.Antiflood.DelaySeconds <= 0 {
		cfg.Antiflood.DelaySeconds = 2
	}
	if cfg.Antiflood.CacheSize <= 0 {
		cfg.Antiflood.CacheSize = 4096
	}
	if cfg.Warns.Max <= 0 {
		cfg.Warns.Max = 3
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.BotToken = envString("BOT_TOKEN", cfg.BotToken)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.Timezone = envString("TIMEZONE", cfg.Timezone)
	cfg.WeeklyResetDay = envString("WEEKLY_RESET_DAY", cfg.WeeklyResetDay)
	cfg.Antiflood.DelaySeconds = envInt("ANTIFLOOD_SECONDS", cfg.Antiflood.DelaySeconds)
	cfg.Antiflood.CacheSize = envInt("ANTIFLOOD_CACHE_SIZE", cfg.Antiflood.CacheSize)
	cfg.Warns.Max = envInt("MAX_WARNS", cfg.Warns.Max)
	cfg.Engage.GrammarBonus = envInt("GRAMMAR_BONUS", cfg.Engage.GrammarBonus)
	cfg.Defaults.WelcomeEnabled = envBool("WELCOME_ENABLED", cfg.Defaults.WelcomeEnabled)
	cfg.Defaults.AntifloodEnabled = envBool("ANTIFLOOD_ENABLED", cfg.Defaults.AntifloodEnabled)
	cfg.Defaults.MuteSeconds = envInt("MUTE_PERIOD", cfg.Defaults.MuteSeconds)
	cfg.Defaults.BanSeconds = envInt("BAN_PERIOD", cfg.Defaults.BanSeconds)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}

func normalizeWeekday(value string) string {
	switch strings.ToLower(value) {
	case "sun", "mon", "tue", "wed", "thu", "fri", "sat":
		return strings.ToLower(value)
	default:
		return "mon"
	}
}
