package bot

import (
	"context"
	"fmt"

	"groupwarden/internal/antiflood"
	"groupwarden/internal/commands"
	"groupwarden/internal/config"
	"groupwarden/internal/engage"
	"groupwarden/internal/modlog"
	"groupwarden/internal/storage"
	"groupwarden/internal/telegram"
	"groupwarden/internal/warns"

	"go.uber.org/zap"
)

type Bot struct {
	cfg         config.Config
	logger      *zap.Logger
	store       *storage.Store
	api         telegram.API
	gate        *antiflood.Gate
	accumulator *engage.Accumulator
	warns       *warns.Tracker
	modlog      *modlog.Logger
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, api telegram.API, gate *antiflood.Gate, accumulator *engage.Accumulator, tracker *warns.Tracker, modLogger *modlog.Logger) *Bot {
	return &Bot{
		cfg:         cfg,
		logger:      logger,
		store:       store,
		api:         api,
		gate:        gate,
		accumulator: accumulator,
		warns:       tracker,
		modlog:      modLogger,
	}
}

// HandleUpdate routes one inbound update. Flow: group filter, welcome,
// antiflood admission, command dispatch, plain-message accounting.
func (b *Bot) HandleUpdate(ctx context.Context, update telegram.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}

	if !msg.Chat.IsGroup() {
		if msg.From != nil && !msg.From.IsBot {
			b.reply(ctx, msg, "🤖 Бот работает только в группах.")
		}
		return
	}

	if len(msg.NewChatMembers) > 0 {
		b.handleNewMembers(ctx, msg)
		return
	}

	if msg.From == nil || msg.From.IsBot || msg.Text == "" {
		return
	}

	if !b.gate.Admit(ctx, msg.Chat.ID, msg.From.ID) {
		// Deliberate silence: replying to a flooder only amplifies the flood.
		return
	}

	action := commands.Resolve(msg.Text)
	if action == commands.ActionNone {
		b.recordMessage(ctx, msg)
		return
	}

	b.dispatch(ctx, action, commands.Args(msg.Text), msg)
}

func (b *Bot) recordMessage(ctx context.Context, msg *telegram.Message) {
	profile := storage.UserProfile{
		UserID:    msg.From.ID,
		Username:  msg.From.Username,
		FirstName: msg.From.FirstName,
		LastName:  msg.From.LastName,
	}
	if err := b.store.UpsertUser(ctx, profile); err != nil {
		b.logger.Error("user upsert failed", zap.Int64("user_id", msg.From.ID), zap.Error(err))
		return
	}

	newRank, changed, err := b.accumulator.Record(ctx, msg.Chat.ID, msg.From.ID, msg.Text)
	if err != nil {
		b.logger.Error("message accounting failed",
			zap.Int64("chat_id", msg.Chat.ID),
			zap.Int64("user_id", msg.From.ID),
			zap.Error(err),
		)
		return
	}
	if changed {
		b.logger.Info("hidden rank changed",
			zap.Int64("chat_id", msg.Chat.ID),
			zap.Int64("user_id", msg.From.ID),
			zap.Int("rank", newRank),
		)
	}
}

func (b *Bot) handleNewMembers(ctx context.Context, msg *telegram.Message) {
	settings := b.chatSettings(ctx, msg.Chat.ID)
	if !settings.WelcomeEnabled {
		return
	}
	for _, user := range msg.NewChatMembers {
		if user.ID == b.api.BotID() || user.IsBot {
			continue
		}
		b.send(ctx, msg.Chat.ID, fmt.Sprintf("👋 Добро пожаловать, %s!\nЗдесь мы собираем статистику и ценим грамотное общение.", user.FullName()))
	}
}

// dispatch is total over the action set; adding an Action without a case
// here lands in the default branch and is logged loudly.
func (b *Bot) dispatch(ctx context.Context, action commands.Action, args string, msg *telegram.Message) {
	switch action {
	case commands.ActionTop:
		b.handleTop(ctx, msg, args)
	case commands.ActionMyStats:
		b.handleMyStats(ctx, msg)
	case commands.ActionRank:
		b.handleRank(ctx, msg)
	case commands.ActionAdmins:
		b.handleAdmins(ctx, msg)
	case commands.ActionMute:
		b.handleMute(ctx, msg)
	case commands.ActionUnmute:
		b.handleUnmute(ctx, msg)
	case commands.ActionKick:
		b.handleKick(ctx, msg)
	case commands.ActionBan:
		b.handleBan(ctx, msg)
	case commands.ActionUnban:
		b.handleUnban(ctx, msg)
	case commands.ActionWarn:
		b.handleWarn(ctx, msg, args)
	case commands.ActionUnwarn:
		b.handleUnwarn(ctx, msg)
	case commands.ActionSetRank:
		b.handleSetRank(ctx, msg, args)
	case commands.ActionAdminRanks:
		b.handleAdminRanks(ctx, msg)
	case commands.ActionHiddenRank:
		b.handleHiddenRank(ctx, msg)
	case commands.ActionSettings:
		b.handleSettings(ctx, msg)
	case commands.ActionSetWelcome:
		b.handleSetWelcome(ctx, msg, args)
	case commands.ActionSetAntiflood:
		b.handleSetAntiflood(ctx, msg, args)
	case commands.ActionSetMute:
		b.handleSetMuteDuration(ctx, msg, args)
	case commands.ActionSetBan:
		b.handleSetBanDuration(ctx, msg, args)
	default:
		b.logger.Error("unhandled action", zap.String("action", action.String()))
	}
}

func (b *Bot) chatSettings(ctx context.Context, chatID int64) storage.ChatSettings {
	defaults := storage.ChatSettings{
		ChatID:           chatID,
		WelcomeEnabled:   b.cfg.Defaults.WelcomeEnabled,
		AntifloodEnabled: b.cfg.Defaults.AntifloodEnabled,
		MuteSeconds:      b.cfg.Defaults.MuteSeconds,
		BanSeconds:       b.cfg.Defaults.BanSeconds,
	}

	settings, err := b.store.GetChatSettings(ctx, chatID, defaults)
	if err != nil {
		b.logger.Warn("chat settings fallback", zap.Int64("chat_id", chatID), zap.Error(err))
		return defaults
	}
	return settings
}

func (b *Bot) settingsDefaults() storage.ChatSettings {
	return storage.ChatSettings{
		WelcomeEnabled:   b.cfg.Defaults.WelcomeEnabled,
		AntifloodEnabled: b.cfg.Defaults.AntifloodEnabled,
		MuteSeconds:      b.cfg.Defaults.MuteSeconds,
		BanSeconds:       b.cfg.Defaults.BanSeconds,
	}
}

func (b *Bot) isAdmin(ctx context.Context, chatID, userID int64) bool {
	member, err := b.api.GetChatMember(ctx, chatID, userID)
	if err != nil {
		return false
	}
	return member.Status == telegram.StatusCreator || member.Status == telegram.StatusAdministrator
}

func (b *Bot) isCreator(ctx context.Context, chatID, userID int64) bool {
	member, err := b.api.GetChatMember(ctx, chatID, userID)
	if err != nil {
		return false
	}
	return member.Status == telegram.StatusCreator
}

// displayName resolves a user id to @username, a cached full name, or a
// bare id when the identity cache has never seen the user.
func (b *Bot) displayName(ctx context.Context, userID int64) string {
	profile, err := b.store.GetUser(ctx, userID)
	if err == nil {
		if profile.Username != "" {
			return "@" + profile.Username
		}
		if name := (telegram.User{FirstName: profile.FirstName, LastName: profile.LastName}).FullName(); name != "" {
			return name
		}
	}
	return fmt.Sprintf("ID %d", userID)
}

func (b *Bot) reply(ctx context.Context, msg *telegram.Message, text string) {
	if err := b.api.ReplyMessage(ctx, msg.Chat.ID, msg.MessageID, text); err != nil {
		b.logger.Warn("reply failed", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
	}
}

func (b *Bot) send(ctx context.Context, chatID int64, text string) {
	if err := b.api.SendMessage(ctx, chatID, text); err != nil {
		b.logger.Warn("send failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
