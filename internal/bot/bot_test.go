package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"groupwarden/internal/antiflood"
	"groupwarden/internal/config"
	"groupwarden/internal/engage"
	"groupwarden/internal/modlog"
	"groupwarden/internal/storage"
	"groupwarden/internal/telegram"
	"groupwarden/internal/warns"

	"go.uber.org/zap"
)

type fakeAPI struct {
	sent       []string
	replies    []string
	restricted []int64
	banned     []int64
	unbanned   []int64
	statuses   map[int64]string
	admins     []telegram.ChatMember
}

func (f *fakeAPI) SendMessage(_ context.Context, _ int64, text string) error {
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeAPI) ReplyMessage(_ context.Context, _ int64, _ int64, text string) error {
	f.replies = append(f.replies, text)
	return nil
}

func (f *fakeAPI) RestrictMember(_ context.Context, _ int64, userID int64, _ telegram.ChatPermissions, _ time.Time) error {
	f.restricted = append(f.restricted, userID)
	return nil
}

func (f *fakeAPI) BanMember(_ context.Context, _ int64, userID int64, _ time.Time) error {
	f.banned = append(f.banned, userID)
	return nil
}

func (f *fakeAPI) UnbanMember(_ context.Context, _ int64, userID int64) error {
	f.unbanned = append(f.unbanned, userID)
	return nil
}

func (f *fakeAPI) GetChatMember(_ context.Context, _ int64, userID int64) (telegram.ChatMember, error) {
	status := f.statuses[userID]
	if status == "" {
		status = "member"
	}
	return telegram.ChatMember{User: telegram.User{ID: userID}, Status: status}, nil
}

func (f *fakeAPI) GetChatAdministrators(context.Context, int64) ([]telegram.ChatMember, error) {
	return f.admins, nil
}

func (f *fakeAPI) BotID() int64 { return 999 }

func (f *fakeAPI) lastReply(t *testing.T) string {
	t.Helper()
	if len(f.replies) == 0 {
		t.Fatalf("expected a reply")
	}
	return f.replies[len(f.replies)-1]
}

func newTestBot(t *testing.T) (*Bot, *fakeAPI, *storage.Store) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := config.DefaultConfig()
	api := &fakeAPI{statuses: map[int64]string{}}
	logger := zap.NewNop()
	gate := antiflood.New(2*time.Second, 16, func(ctx context.Context, chatID int64) bool {
		settings, err := store.GetChatSettings(ctx, chatID, storage.ChatSettings{AntifloodEnabled: true})
		if err != nil {
			return true
		}
		return settings.AntifloodEnabled
	})
	accumulator := engage.NewAccumulator(store, cfg.Engage.GrammarBonus)
	tracker := warns.NewTracker(store, api, logger, cfg.Warns.Max)

	return New(cfg, logger, store, api, gate, accumulator, tracker, modlog.New(store, logger)), api, store
}

// disableAntiflood lets tests fire several messages from one user without
// tripping the admission gate.
func disableAntiflood(t *testing.T, store *storage.Store) {
	t.Helper()
	defaults := storage.ChatSettings{WelcomeEnabled: true, AntifloodEnabled: true, MuteSeconds: 60, BanSeconds: 3600}
	if err := store.SetAntifloodEnabled(context.Background(), 1, false, defaults); err != nil {
		t.Fatalf("disable antiflood: %v", err)
	}
}

func groupMessage(text string) telegram.Update {
	return telegram.Update{Message: &telegram.Message{
		MessageID: 1,
		From:      &telegram.User{ID: 10, FirstName: "Алиса", Username: "alice"},
		Chat:      &telegram.Chat{ID: 1, Type: "supergroup"},
		Text:      text,
	}}
}

func withReplyTarget(update telegram.Update, target telegram.User) telegram.Update {
	update.Message.ReplyToMessage = &telegram.Message{From: &target}
	return update
}

func TestPrivateChatGetsHint(t *testing.T) {
	bot, api, _ := newTestBot(t)

	update := groupMessage("привет")
	update.Message.Chat.Type = "private"
	bot.HandleUpdate(context.Background(), update)

	if len(api.replies) != 1 || !strings.Contains(api.replies[0], "группах") {
		t.Fatalf("expected group-only hint, got %v", api.replies)
	}
}

func TestPlainMessageIsCounted(t *testing.T) {
	bot, api, store := newTestBot(t)

	bot.HandleUpdate(context.Background(), groupMessage("Всем привет, отличный день!"))

	if len(api.replies) != 0 || len(api.sent) != 0 {
		t.Fatalf("plain message must stay silent, got replies=%v sent=%v", api.replies, api.sent)
	}

	stats, found, err := store.UserStats(context.Background(), 1, 10)
	if err != nil || !found {
		t.Fatalf("stats: found=%v err=%v", found, err)
	}
	if stats.MessagesAll != 1 {
		t.Fatalf("expected 1 message, got %d", stats.MessagesAll)
	}
	if stats.Experience == 0 {
		t.Fatalf("expected experience credit")
	}

	profile, err := store.GetUser(context.Background(), 10)
	if err != nil || profile.Username != "alice" {
		t.Fatalf("expected cached profile, got %+v err=%v", profile, err)
	}
}

func TestCommandWordOpeningASentenceIsCounted(t *testing.T) {
	bot, api, store := newTestBot(t)

	bot.HandleUpdate(context.Background(), groupMessage("Топ новость дня!"))

	if len(api.replies) != 0 || len(api.sent) != 0 {
		t.Fatalf("conversation must not trigger a command, got replies=%v sent=%v", api.replies, api.sent)
	}
	stats, found, err := store.UserStats(context.Background(), 1, 10)
	if err != nil || !found {
		t.Fatalf("stats: found=%v err=%v", found, err)
	}
	if stats.MessagesAll != 1 {
		t.Fatalf("expected the message to be counted, got %d", stats.MessagesAll)
	}
}

func TestFloodedMessageIsDropped(t *testing.T) {
	bot, _, store := newTestBot(t)
	ctx := context.Background()

	bot.HandleUpdate(ctx, groupMessage("первое"))
	bot.HandleUpdate(ctx, groupMessage("второе"))

	stats, _, err := store.UserStats(ctx, 1, 10)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.MessagesAll != 1 {
		t.Fatalf("second message inside the delay must not be counted, got %d", stats.MessagesAll)
	}
}

func TestWelcomeNewMember(t *testing.T) {
	bot, api, _ := newTestBot(t)

	update := groupMessage("")
	update.Message.NewChatMembers = []telegram.User{{ID: 20, FirstName: "Боб"}}
	bot.HandleUpdate(context.Background(), update)

	if len(api.sent) != 1 || !strings.Contains(api.sent[0], "Боб") {
		t.Fatalf("expected welcome for Боб, got %v", api.sent)
	}
}

func TestWelcomeRespectsToggle(t *testing.T) {
	bot, api, store := newTestBot(t)
	ctx := context.Background()

	defaults := storage.ChatSettings{WelcomeEnabled: true, AntifloodEnabled: true, MuteSeconds: 60, BanSeconds: 3600}
	if err := store.SetWelcomeEnabled(ctx, 1, false, defaults); err != nil {
		t.Fatalf("set welcome: %v", err)
	}

	update := groupMessage("")
	update.Message.NewChatMembers = []telegram.User{{ID: 20, FirstName: "Боб"}}
	bot.HandleUpdate(ctx, update)

	if len(api.sent) != 0 {
		t.Fatalf("welcome disabled, got %v", api.sent)
	}
}

func TestTopCommand(t *testing.T) {
	bot, api, store := newTestBot(t)
	ctx := context.Background()

	if err := store.UpsertUser(ctx, storage.UserProfile{UserID: 10, Username: "alice"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.AddMessage(ctx, 1, 10, 50, time.Now()); err != nil {
		t.Fatalf("add message: %v", err)
	}

	bot.HandleUpdate(ctx, groupMessage("/top"))

	reply := api.lastReply(t)
	if !strings.Contains(reply, "@alice") {
		t.Fatalf("expected @alice in listing, got %q", reply)
	}
}

func TestTopCommandEmpty(t *testing.T) {
	bot, api, _ := newTestBot(t)

	bot.HandleUpdate(context.Background(), groupMessage("топ"))

	if !strings.Contains(api.lastReply(t), "пуста") {
		t.Fatalf("expected empty notice, got %q", api.lastReply(t))
	}
}

func TestMuteRequiresAdmin(t *testing.T) {
	bot, api, _ := newTestBot(t)

	update := withReplyTarget(groupMessage("мут"), telegram.User{ID: 20})
	bot.HandleUpdate(context.Background(), update)

	if len(api.restricted) != 0 {
		t.Fatalf("non-admin must not mute, got %v", api.restricted)
	}
	if !strings.Contains(api.lastReply(t), "администратор") {
		t.Fatalf("expected denial, got %q", api.lastReply(t))
	}
}

func TestMuteByAdmin(t *testing.T) {
	bot, api, _ := newTestBot(t)
	api.statuses[10] = telegram.StatusAdministrator

	update := withReplyTarget(groupMessage("мут"), telegram.User{ID: 20, FirstName: "Боб"})
	bot.HandleUpdate(context.Background(), update)

	if len(api.restricted) != 1 || api.restricted[0] != 20 {
		t.Fatalf("expected restriction for user 20, got %v", api.restricted)
	}
}

func TestMuteRefusesAdminTarget(t *testing.T) {
	bot, api, _ := newTestBot(t)
	api.statuses[10] = telegram.StatusAdministrator
	api.statuses[20] = telegram.StatusAdministrator

	update := withReplyTarget(groupMessage("мут"), telegram.User{ID: 20})
	bot.HandleUpdate(context.Background(), update)

	if len(api.restricted) != 0 {
		t.Fatalf("admin target must be refused, got %v", api.restricted)
	}
}

func TestKickBansThenUnbans(t *testing.T) {
	bot, api, _ := newTestBot(t)
	api.statuses[10] = telegram.StatusAdministrator

	update := withReplyTarget(groupMessage("кик"), telegram.User{ID: 20, FirstName: "Боб"})
	bot.HandleUpdate(context.Background(), update)

	if len(api.banned) != 1 || api.banned[0] != 20 {
		t.Fatalf("expected ban for user 20, got %v", api.banned)
	}
	if len(api.unbanned) != 1 || api.unbanned[0] != 20 {
		t.Fatalf("expected immediate unban, got %v", api.unbanned)
	}
}

func TestWarnToMute(t *testing.T) {
	bot, api, store := newTestBot(t)
	api.statuses[10] = telegram.StatusAdministrator
	ctx := context.Background()
	disableAntiflood(t, store)

	for i := 0; i < 3; i++ {
		update := withReplyTarget(groupMessage("/warn спам"), telegram.User{ID: 20, FirstName: "Боб"})
		bot.HandleUpdate(ctx, update)
	}

	stats, _, err := store.UserStats(ctx, 1, 20)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Warns != 3 {
		t.Fatalf("expected 3 warns, got %d", stats.Warns)
	}
	if len(api.restricted) != 1 || api.restricted[0] != 20 {
		t.Fatalf("expected auto mute at limit, got %v", api.restricted)
	}

	logs, err := store.ListModerationLogs(ctx, 1, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(logs) != 3 || logs[0].Reason != "спам" {
		t.Fatalf("expected 3 warn records with reason, got %+v", logs)
	}
}

func TestSetRankCreatorOnly(t *testing.T) {
	bot, api, store := newTestBot(t)
	ctx := context.Background()
	disableAntiflood(t, store)

	api.statuses[10] = telegram.StatusAdministrator
	update := withReplyTarget(groupMessage("/setrank 3"), telegram.User{ID: 20, FirstName: "Боб"})
	bot.HandleUpdate(ctx, update)
	if !strings.Contains(api.lastReply(t), "создатель") {
		t.Fatalf("admin is not enough for setrank, got %q", api.lastReply(t))
	}

	api.statuses[10] = telegram.StatusCreator
	bot.HandleUpdate(ctx, withReplyTarget(groupMessage("/setrank 3"), telegram.User{ID: 20, FirstName: "Боб"}))

	stats, _, err := store.UserStats(ctx, 1, 20)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.CustomRank == nil || *stats.CustomRank != 3 {
		t.Fatalf("expected rank 3, got %v", stats.CustomRank)
	}

	bot.HandleUpdate(ctx, withReplyTarget(groupMessage("/setrank 0"), telegram.User{ID: 20, FirstName: "Боб"}))
	stats, _, err = store.UserStats(ctx, 1, 20)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.CustomRank != nil {
		t.Fatalf("rank zero must clear, got %v", *stats.CustomRank)
	}
}

func TestSetRankRejectsOutOfRange(t *testing.T) {
	bot, api, _ := newTestBot(t)
	api.statuses[10] = telegram.StatusCreator

	bot.HandleUpdate(context.Background(), withReplyTarget(groupMessage("/setrank 7"), telegram.User{ID: 20}))

	if !strings.Contains(api.lastReply(t), "от 0 до 6") {
		t.Fatalf("expected range hint, got %q", api.lastReply(t))
	}
}

func TestSettingsToggle(t *testing.T) {
	bot, api, store := newTestBot(t)
	api.statuses[10] = telegram.StatusAdministrator
	ctx := context.Background()
	disableAntiflood(t, store)

	bot.HandleUpdate(ctx, groupMessage("/set_antiflood off"))
	if !strings.Contains(api.lastReply(t), "выключено") {
		t.Fatalf("expected confirmation, got %q", api.lastReply(t))
	}

	defaults := storage.ChatSettings{WelcomeEnabled: true, AntifloodEnabled: true, MuteSeconds: 60, BanSeconds: 3600}
	settings, err := store.GetChatSettings(ctx, 1, defaults)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if settings.AntifloodEnabled {
		t.Fatalf("antiflood should be off: %+v", settings)
	}

	bot.HandleUpdate(ctx, groupMessage("/set_mute 120"))
	settings, err = store.GetChatSettings(ctx, 1, defaults)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if settings.MuteSeconds != 120 {
		t.Fatalf("expected 120, got %d", settings.MuteSeconds)
	}
}

func TestSettingsToggleBadArgument(t *testing.T) {
	bot, api, _ := newTestBot(t)
	api.statuses[10] = telegram.StatusAdministrator

	bot.HandleUpdate(context.Background(), groupMessage("/set_welcome maybe"))

	if !strings.Contains(api.lastReply(t), "on|off") {
		t.Fatalf("expected usage hint, got %q", api.lastReply(t))
	}
}

func TestMyStatsWithoutHistory(t *testing.T) {
	bot, api, _ := newTestBot(t)

	bot.HandleUpdate(context.Background(), groupMessage("стата"))

	if !strings.Contains(api.lastReply(t), "нет статистики") {
		t.Fatalf("expected empty-stats notice, got %q", api.lastReply(t))
	}
}

func TestAdminsListMarksCreator(t *testing.T) {
	bot, api, _ := newTestBot(t)
	api.admins = []telegram.ChatMember{
		{User: telegram.User{ID: 30, FirstName: "Ева"}, Status: telegram.StatusCreator},
		{User: telegram.User{ID: 31, FirstName: "Макс"}, Status: telegram.StatusAdministrator},
	}

	bot.HandleUpdate(context.Background(), groupMessage("админы"))

	reply := api.lastReply(t)
	if !strings.Contains(reply, "Ева (создатель)") || !strings.Contains(reply, "Макс") {
		t.Fatalf("unexpected listing: %q", reply)
	}
}

func TestBotMessagesIgnored(t *testing.T) {
	bot, _, store := newTestBot(t)

	update := groupMessage("привет")
	update.Message.From.IsBot = true
	bot.HandleUpdate(context.Background(), update)

	_, found, err := store.UserStats(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if found {
		t.Fatalf("bot messages must not be counted")
	}
}
