package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"groupwarden/internal/rank"
	"groupwarden/internal/storage"
	"groupwarden/internal/telegram"
	"groupwarden/internal/utils"

	"go.uber.org/zap"
)

const topLimit = 10

func (b *Bot) handleTop(ctx context.Context, msg *telegram.Message, args string) {
	period := "all"
	title := "за всё время"
	switch strings.ToLower(strings.TrimSpace(args)) {
	case "день", "day", "сегодня":
		period, title = "day", "за сегодня"
	case "неделя", "week":
		period, title = "week", "за неделю"
	}

	entries, err := b.store.Top(ctx, msg.Chat.ID, period, topLimit)
	if err != nil {
		b.logger.Error("top query failed", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
		b.reply(ctx, msg, "⚠️ Не удалось получить статистику, попробуйте позже.")
		return
	}
	if len(entries) == 0 {
		b.reply(ctx, msg, "📊 Статистика пока пуста.")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 Топ участников %s:\n\n", title)
	for i, entry := range entries {
		fmt.Fprintf(&sb, "%d. %s — %s сообщ., опыт: %s\n",
			i+1,
			b.displayName(ctx, entry.UserID),
			utils.FormatNumber(entry.Messages),
			utils.FormatExperience(entry.Experience),
		)
	}
	b.reply(ctx, msg, sb.String())
}

func (b *Bot) handleMyStats(ctx context.Context, msg *telegram.Message) {
	stats, found, err := b.store.UserStats(ctx, msg.Chat.ID, msg.From.ID)
	if err != nil {
		b.logger.Error("stats query failed", zap.Int64("user_id", msg.From.ID), zap.Error(err))
		b.reply(ctx, msg, "⚠️ Не удалось получить статистику, попробуйте позже.")
		return
	}
	if !found {
		b.reply(ctx, msg, "📭 У вас пока нет статистики в этом чате. Напишите что-нибудь!")
		return
	}
	b.reply(ctx, msg, formatStats(msg.From.FullName(), stats))
}

func (b *Bot) handleRank(ctx context.Context, msg *telegram.Message) {
	target := msg.From
	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil {
		target = msg.ReplyToMessage.From
	}

	stats, found, err := b.store.UserStats(ctx, msg.Chat.ID, target.ID)
	if err != nil {
		b.logger.Error("stats query failed", zap.Int64("user_id", target.ID), zap.Error(err))
		b.reply(ctx, msg, "⚠️ Не удалось получить статистику, попробуйте позже.")
		return
	}
	if !found {
		b.reply(ctx, msg, fmt.Sprintf("📭 У пользователя %s нет статистики в этом чате.", target.FullName()))
		return
	}
	b.reply(ctx, msg, fmt.Sprintf("🎖 Ранг пользователя %s: %s", target.FullName(), rank.DisplayRank(stats.CustomRank)))
}

func formatStats(name string, stats storage.UserStats) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📈 Статистика %s:\n\n", name)
	fmt.Fprintf(&sb, "Сообщений сегодня: %s\n", utils.FormatNumber(stats.MessagesDay))
	fmt.Fprintf(&sb, "Сообщений за неделю: %s\n", utils.FormatNumber(stats.MessagesWeek))
	fmt.Fprintf(&sb, "Сообщений всего: %s\n", utils.FormatNumber(stats.MessagesAll))
	fmt.Fprintf(&sb, "Опыт: %s\n", utils.FormatExperience(stats.Experience))
	fmt.Fprintf(&sb, "Ранг: %s\n", rank.DisplayRank(stats.CustomRank))
	fmt.Fprintf(&sb, "Предупреждений: %d", stats.Warns)
	return sb.String()
}

func (b *Bot) handleAdmins(ctx context.Context, msg *telegram.Message) {
	admins, err := b.api.GetChatAdministrators(ctx, msg.Chat.ID)
	if err != nil {
		b.logger.Warn("admin list failed", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
		b.reply(ctx, msg, "⚠️ Не удалось получить список администраторов.")
		return
	}

	var sb strings.Builder
	sb.WriteString("👮 Администраторы чата:\n\n")
	for _, member := range admins {
		if member.User.IsBot {
			continue
		}
		if member.Status == telegram.StatusCreator {
			fmt.Fprintf(&sb, "• %s (создатель)\n", member.User.FullName())
		} else {
			fmt.Fprintf(&sb, "• %s\n", member.User.FullName())
		}
	}
	b.reply(ctx, msg, sb.String())
}

// moderationTarget enforces the shared preconditions of the punitive
// commands: issuer is admin, a reply target exists, the target is neither
// the bot nor another admin.
func (b *Bot) moderationTarget(ctx context.Context, msg *telegram.Message) (*telegram.User, bool) {
	if !b.isAdmin(ctx, msg.Chat.ID, msg.From.ID) {
		b.reply(ctx, msg, "🚫 Эта команда доступна только администраторам.")
		return nil, false
	}
	if msg.ReplyToMessage == nil || msg.ReplyToMessage.From == nil {
		b.reply(ctx, msg, "ℹ️ Команду нужно отправить ответом на сообщение пользователя.")
		return nil, false
	}
	target := msg.ReplyToMessage.From
	if target.ID == b.api.BotID() {
		b.reply(ctx, msg, "😏 Я не применяю команды к себе.")
		return nil, false
	}
	if b.isAdmin(ctx, msg.Chat.ID, target.ID) {
		b.reply(ctx, msg, "🚫 Нельзя применить команду к администратору.")
		return nil, false
	}
	return target, true
}

func (b *Bot) handleMute(ctx context.Context, msg *telegram.Message) {
	target, ok := b.moderationTarget(ctx, msg)
	if !ok {
		return
	}

	settings := b.chatSettings(ctx, msg.Chat.ID)
	duration := time.Duration(settings.MuteSeconds) * time.Second
	until := time.Now().Add(duration)
	perms := telegram.ChatPermissions{CanSendMessages: false}
	if err := b.api.RestrictMember(ctx, msg.Chat.ID, target.ID, perms, until); err != nil {
		b.logger.Warn("mute failed", zap.Int64("user_id", target.ID), zap.Error(err))
		b.reply(ctx, msg, "⚠️ Не удалось замутить пользователя. Проверьте права бота.")
		return
	}

	b.reply(ctx, msg, fmt.Sprintf("🔇 %s замучен на %d сек.", target.FullName(), settings.MuteSeconds))
	b.modlog.Log(ctx, msg.Chat.ID, msg.From.ID, "mute", target.ID, fmt.Sprintf("%d сек", settings.MuteSeconds))
}

func (b *Bot) handleUnmute(ctx context.Context, msg *telegram.Message) {
	target, ok := b.moderationTarget(ctx, msg)
	if !ok {
		return
	}

	perms := telegram.ChatPermissions{CanSendMessages: true}
	if err := b.api.RestrictMember(ctx, msg.Chat.ID, target.ID, perms, time.Time{}); err != nil {
		b.logger.Warn("unmute failed", zap.Int64("user_id", target.ID), zap.Error(err))
		b.reply(ctx, msg, "⚠️ Не удалось размутить пользователя.")
		return
	}

	b.reply(ctx, msg, fmt.Sprintf("🔊 %s снова может писать.", target.FullName()))
	b.modlog.Log(ctx, msg.Chat.ID, msg.From.ID, "unmute", target.ID, "")
}

func (b *Bot) handleKick(ctx context.Context, msg *telegram.Message) {
	target, ok := b.moderationTarget(ctx, msg)
	if !ok {
		return
	}

	// Ban plus immediate unban: the user leaves but may return by link.
	if err := b.api.BanMember(ctx, msg.Chat.ID, target.ID, time.Time{}); err != nil {
		b.logger.Warn("kick failed", zap.Int64("user_id", target.ID), zap.Error(err))
		b.reply(ctx, msg, "⚠️ Не удалось исключить пользователя. Проверьте права бота.")
		return
	}
	if err := b.api.UnbanMember(ctx, msg.Chat.ID, target.ID); err != nil {
		b.logger.Warn("kick unban failed", zap.Int64("user_id", target.ID), zap.Error(err))
	}

	b.reply(ctx, msg, fmt.Sprintf("👢 %s исключён из чата.", target.FullName()))
	b.modlog.Log(ctx, msg.Chat.ID, msg.From.ID, "kick", target.ID, "")
}

func (b *Bot) handleBan(ctx context.Context, msg *telegram.Message) {
	target, ok := b.moderationTarget(ctx, msg)
	if !ok {
		return
	}

	settings := b.chatSettings(ctx, msg.Chat.ID)
	until := time.Now().Add(time.Duration(settings.BanSeconds) * time.Second)
	if err := b.api.BanMember(ctx, msg.Chat.ID, target.ID, until); err != nil {
		b.logger.Warn("ban failed", zap.Int64("user_id", target.ID), zap.Error(err))
		b.reply(ctx, msg, "⚠️ Не удалось забанить пользователя. Проверьте права бота.")
		return
	}

	b.reply(ctx, msg, fmt.Sprintf("🔨 %s забанен на %d сек.", target.FullName(), settings.BanSeconds))
	b.modlog.Log(ctx, msg.Chat.ID, msg.From.ID, "ban", target.ID, fmt.Sprintf("%d сек", settings.BanSeconds))
}

func (b *Bot) handleUnban(ctx context.Context, msg *telegram.Message) {
	if !b.isAdmin(ctx, msg.Chat.ID, msg.From.ID) {
		b.reply(ctx, msg, "🚫 Эта команда доступна только администраторам.")
		return
	}
	if msg.ReplyToMessage == nil || msg.ReplyToMessage.From == nil {
		b.reply(ctx, msg, "ℹ️ Команду нужно отправить ответом на сообщение пользователя.")
		return
	}
	target := msg.ReplyToMessage.From

	if err := b.api.UnbanMember(ctx, msg.Chat.ID, target.ID); err != nil {
		b.logger.Warn("unban failed", zap.Int64("user_id", target.ID), zap.Error(err))
		b.reply(ctx, msg, "⚠️ Не удалось разбанить пользователя.")
		return
	}

	b.reply(ctx, msg, fmt.Sprintf("✅ %s разбанен.", target.FullName()))
	b.modlog.Log(ctx, msg.Chat.ID, msg.From.ID, "unban", target.ID, "")
}

func (b *Bot) handleWarn(ctx context.Context, msg *telegram.Message, args string) {
	target, ok := b.moderationTarget(ctx, msg)
	if !ok {
		return
	}

	reason := strings.TrimSpace(args)
	if reason == "" {
		reason = "Не указана"
	}

	settings := b.chatSettings(ctx, msg.Chat.ID)
	muteDuration := time.Duration(settings.MuteSeconds) * time.Second
	count, muted, err := b.warns.Add(ctx, msg.Chat.ID, target.ID, muteDuration)
	if err != nil {
		b.logger.Error("warn failed", zap.Int64("user_id", target.ID), zap.Error(err))
		b.reply(ctx, msg, "⚠️ Не удалось выдать предупреждение, попробуйте позже.")
		return
	}

	b.reply(ctx, msg, fmt.Sprintf("⚠️ %s получает предупреждение (%d/%d).\nПричина: %s", target.FullName(), count, b.warns.Max(), reason))
	if muted {
		b.send(ctx, msg.Chat.ID, fmt.Sprintf("🔇 %s набрал %d предупреждений и замучен на %d сек.", target.FullName(), count, settings.MuteSeconds))
	}
	b.modlog.Log(ctx, msg.Chat.ID, msg.From.ID, "warn", target.ID, reason)
}

func (b *Bot) handleUnwarn(ctx context.Context, msg *telegram.Message) {
	target, ok := b.moderationTarget(ctx, msg)
	if !ok {
		return
	}

	count, err := b.warns.Remove(ctx, msg.Chat.ID, target.ID)
	if err != nil {
		b.logger.Error("unwarn failed", zap.Int64("user_id", target.ID), zap.Error(err))
		b.reply(ctx, msg, "⚠️ Не удалось снять предупреждение, попробуйте позже.")
		return
	}

	b.reply(ctx, msg, fmt.Sprintf("✅ С пользователя %s снято предупреждение (%d/%d).", target.FullName(), count, b.warns.Max()))
	b.modlog.Log(ctx, msg.Chat.ID, msg.From.ID, "unwarn", target.ID, "")
}

func (b *Bot) handleSetRank(ctx context.Context, msg *telegram.Message, args string) {
	if !b.isCreator(ctx, msg.Chat.ID, msg.From.ID) {
		b.reply(ctx, msg, "🚫 Назначать ранги может только создатель чата.")
		return
	}
	if msg.ReplyToMessage == nil || msg.ReplyToMessage.From == nil {
		b.reply(ctx, msg, "ℹ️ Команду нужно отправить ответом на сообщение пользователя.")
		return
	}
	target := msg.ReplyToMessage.From

	level, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil || level < 0 || level > 6 {
		b.reply(ctx, msg, "ℹ️ Укажите ранг от 0 до 6. Ноль снимает ранг.")
		return
	}

	var value *int
	if level > 0 {
		value = &level
	}
	if err := b.store.SetCustomRank(ctx, msg.Chat.ID, target.ID, value); err != nil {
		b.logger.Error("set rank failed", zap.Int64("user_id", target.ID), zap.Error(err))
		b.reply(ctx, msg, "⚠️ Не удалось изменить ранг, попробуйте позже.")
		return
	}

	if level == 0 {
		b.reply(ctx, msg, fmt.Sprintf("✅ С пользователя %s снят ранг.", target.FullName()))
	} else {
		b.reply(ctx, msg, fmt.Sprintf("🎖 %s получает ранг «%s».", target.FullName(), rank.AdminRankName(level)))
	}
	b.modlog.Log(ctx, msg.Chat.ID, msg.From.ID, "setrank", target.ID, strconv.Itoa(level))
}

func (b *Bot) handleAdminRanks(ctx context.Context, msg *telegram.Message) {
	if !b.isAdmin(ctx, msg.Chat.ID, msg.From.ID) {
		b.reply(ctx, msg, "🚫 Эта команда доступна только администраторам.")
		return
	}

	var sb strings.Builder
	sb.WriteString("🎖 Ранги чата:\n\n")
	for i, name := range rank.AdminRankNames() {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, name)
	}
	b.reply(ctx, msg, sb.String())
}

func (b *Bot) handleHiddenRank(ctx context.Context, msg *telegram.Message) {
	if !b.isAdmin(ctx, msg.Chat.ID, msg.From.ID) {
		return
	}

	target := msg.From
	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil {
		target = msg.ReplyToMessage.From
	}

	stats, found, err := b.store.UserStats(ctx, msg.Chat.ID, target.ID)
	if err != nil {
		b.logger.Error("stats query failed", zap.Int64("user_id", target.ID), zap.Error(err))
		return
	}
	if !found {
		b.reply(ctx, msg, "📭 Нет данных о пользователе.")
		return
	}

	b.reply(ctx, msg, fmt.Sprintf(
		"🔍 Скрытый ранг %s: %s (уровень %d)\nСообщений всего: %s, за неделю: %s, сегодня: %s",
		target.FullName(),
		rank.HiddenRankName(stats.HiddenRank),
		stats.HiddenRank,
		utils.FormatNumber(stats.MessagesAll),
		utils.FormatNumber(stats.MessagesWeek),
		utils.FormatNumber(stats.MessagesDay),
	))
}

func (b *Bot) handleSettings(ctx context.Context, msg *telegram.Message) {
	if !b.isAdmin(ctx, msg.Chat.ID, msg.From.ID) {
		b.reply(ctx, msg, "🚫 Эта команда доступна только администраторам.")
		return
	}

	settings := b.chatSettings(ctx, msg.Chat.ID)
	var sb strings.Builder
	sb.WriteString("⚙️ Настройки чата:\n\n")
	fmt.Fprintf(&sb, "Приветствие: %s\n", onOff(settings.WelcomeEnabled))
	fmt.Fprintf(&sb, "Антифлуд: %s\n", onOff(settings.AntifloodEnabled))
	fmt.Fprintf(&sb, "Длительность мута: %d сек\n", settings.MuteSeconds)
	fmt.Fprintf(&sb, "Длительность бана: %d сек\n\n", settings.BanSeconds)
	sb.WriteString("Изменение: /set_welcome on|off, /set_antiflood on|off, /set_mute <сек>, /set_ban <сек>")
	b.reply(ctx, msg, sb.String())
}

func onOff(enabled bool) string {
	if enabled {
		return "включено"
	}
	return "выключено"
}

func parseToggle(args string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(args)) {
	case "on", "вкл", "да":
		return true, true
	case "off", "выкл", "нет":
		return false, true
	}
	return false, false
}

func (b *Bot) handleSetWelcome(ctx context.Context, msg *telegram.Message, args string) {
	if !b.isAdmin(ctx, msg.Chat.ID, msg.From.ID) {
		b.reply(ctx, msg, "🚫 Эта команда доступна только администраторам.")
		return
	}

	enabled, ok := parseToggle(args)
	if !ok {
		b.reply(ctx, msg, "ℹ️ Использование: /set_welcome on|off")
		return
	}
	if err := b.store.SetWelcomeEnabled(ctx, msg.Chat.ID, enabled, b.settingsDefaults()); err != nil {
		b.logger.Error("set welcome failed", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
		b.reply(ctx, msg, "⚠️ Не удалось сохранить настройку, попробуйте позже.")
		return
	}
	b.reply(ctx, msg, fmt.Sprintf("✅ Приветствие %s.", onOff(enabled)))
}

func (b *Bot) handleSetAntiflood(ctx context.Context, msg *telegram.Message, args string) {
	if !b.isAdmin(ctx, msg.Chat.ID, msg.From.ID) {
		b.reply(ctx, msg, "🚫 Эта команда доступна только администраторам.")
		return
	}

	enabled, ok := parseToggle(args)
	if !ok {
		b.reply(ctx, msg, "ℹ️ Использование: /set_antiflood on|off")
		return
	}
	if err := b.store.SetAntifloodEnabled(ctx, msg.Chat.ID, enabled, b.settingsDefaults()); err != nil {
		b.logger.Error("set antiflood failed", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
		b.reply(ctx, msg, "⚠️ Не удалось сохранить настройку, попробуйте позже.")
		return
	}
	b.reply(ctx, msg, fmt.Sprintf("✅ Антифлуд %s.", onOff(enabled)))
}

func (b *Bot) handleSetMuteDuration(ctx context.Context, msg *telegram.Message, args string) {
	if !b.isAdmin(ctx, msg.Chat.ID, msg.From.ID) {
		b.reply(ctx, msg, "🚫 Эта команда доступна только администраторам.")
		return
	}

	seconds, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil || seconds <= 0 {
		b.reply(ctx, msg, "ℹ️ Использование: /set_mute <секунды>")
		return
	}
	if err := b.store.SetMuteDuration(ctx, msg.Chat.ID, seconds, b.settingsDefaults()); err != nil {
		b.logger.Error("set mute duration failed", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
		b.reply(ctx, msg, "⚠️ Не удалось сохранить настройку, попробуйте позже.")
		return
	}
	b.reply(ctx, msg, fmt.Sprintf("✅ Длительность мута: %d сек.", seconds))
}

func (b *Bot) handleSetBanDuration(ctx context.Context, msg *telegram.Message, args string) {
	if !b.isAdmin(ctx, msg.Chat.ID, msg.From.ID) {
		b.reply(ctx, msg, "🚫 Эта команда доступна только администраторам.")
		return
	}

	seconds, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil || seconds <= 0 {
		b.reply(ctx, msg, "ℹ️ Использование: /set_ban <секунды>")
		return
	}
	if err := b.store.SetBanDuration(ctx, msg.Chat.ID, seconds, b.settingsDefaults()); err != nil {
		b.logger.Error("set ban duration failed", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
		b.reply(ctx, msg, "⚠️ Не удалось сохранить настройку, попробуйте позже.")
		return
	}
	b.reply(ctx, msg, fmt.Sprintf("✅ Длительность бана: %d сек.", seconds))
}
