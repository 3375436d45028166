package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"groupwarden/internal/antiflood"
	"groupwarden/internal/bot"
	"groupwarden/internal/config"
	"groupwarden/internal/engage"
	"groupwarden/internal/modlog"
	"groupwarden/internal/scheduler"
	"groupwarden/internal/storage"
	"groupwarden/internal/telegram"
	"groupwarden/internal/warns"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	client := telegram.NewClient(cfg.BotToken, logger)
	identifyCtx, cancelIdentify := context.WithTimeout(context.Background(), 15*time.Second)
	if err := client.Identify(identifyCtx); err != nil {
		cancelIdentify()
		logger.Fatal("telegram identify failed", zap.Error(err))
	}
	cancelIdentify()

	defaults := storage.ChatSettings{
		WelcomeEnabled:   cfg.Defaults.WelcomeEnabled,
		AntifloodEnabled: cfg.Defaults.AntifloodEnabled,
		MuteSeconds:      cfg.Defaults.MuteSeconds,
		BanSeconds:       cfg.Defaults.BanSeconds,
	}
	gate := antiflood.New(
		time.Duration(cfg.Antiflood.DelaySeconds)*time.Second,
		cfg.Antiflood.CacheSize,
		func(ctx context.Context, chatID int64) bool {
			settings, err := store.GetChatSettings(ctx, chatID, defaults)
			if err != nil {
				return defaults.AntifloodEnabled
			}
			return settings.AntifloodEnabled
		},
	)

	accumulator := engage.NewAccumulator(store, cfg.Engage.GrammarBonus)
	tracker := warns.NewTracker(store, client, logger, cfg.Warns.Max)
	modLogger := modlog.New(store, logger)

	botSvc := bot.New(cfg, logger, store, client, gate, accumulator, tracker, modLogger)

	sched, err := scheduler.New(store, logger, cfg.Timezone, cfg.WeeklyResetDay)
	if err != nil {
		logger.Fatal("scheduler init failed", zap.Error(err))
	}
	sched.Start()
	defer sched.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutdown requested")
		cancel()
	}()

	logger.Info("bot started", zap.Int64("bot_id", client.BotID()))
	client.Poll(ctx, botSvc.HandleUpdate)
}
