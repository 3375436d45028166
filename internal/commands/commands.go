// Package commands maps free-form message text onto the closed set of bot
// actions. Matching is table driven: each action owns an ordered list of
// accepted phrases (Russian and English), checked in registration order.
package commands

import "strings"

type Action int

const (
	ActionNone Action = iota
	ActionTop
	ActionMyStats
	ActionRank
	ActionAdmins
	ActionMute
	ActionUnmute
	ActionKick
	ActionBan
	ActionUnban
	ActionWarn
	ActionUnwarn
	ActionSetRank
	ActionAdminRanks
	ActionHiddenRank
	ActionSettings
	ActionSetWelcome
	ActionSetAntiflood
	ActionSetMute
	ActionSetBan
)

func (a Action) String() string {
	switch a {
	case ActionTop:
		return "top"
	case ActionMyStats:
		return "mystats"
	case ActionRank:
		return "rank"
	case ActionAdmins:
		return "admins"
	case ActionMute:
		return "mute"
	case ActionUnmute:
		return "unmute"
	case ActionKick:
		return "kick"
	case ActionBan:
		return "ban"
	case ActionUnban:
		return "unban"
	case ActionWarn:
		return "warn"
	case ActionUnwarn:
		return "unwarn"
	case ActionSetRank:
		return "setrank"
	case ActionAdminRanks:
		return "adminranks"
	case ActionHiddenRank:
		return "hiddenrank"
	case ActionSettings:
		return "settings"
	case ActionSetWelcome:
		return "set_welcome"
	case ActionSetAntiflood:
		return "set_antiflood"
	case ActionSetMute:
		return "set_mute"
	case ActionSetBan:
		return "set_ban"
	default:
		return ""
	}
}

type binding struct {
	action Action
	// Variants are listed longest first so that argument extraction never
	// truncates on a shorter phrase that prefixes a longer one.
	variants []string
}

var table = []binding{
	{ActionTop, []string{"топ10", "top10", "топ", "top"}},
	{ActionMyStats, []string{"моя статистика", "моя стата", "моястата", "my stats", "mystats", "стата"}},
	{ActionRank, []string{"мой ранг", "myrank", "ранг", "rank"}},
	{ActionAdmins, []string{"администраторы", "administrators", "админы", "admins"}},
	{ActionMute, []string{"замьютить", "замутить", "mute", "мут"}},
	{ActionUnmute, []string{"размьютить", "снять мут", "размут", "unmute"}},
	{ActionKick, []string{"исключить", "выгнать", "kick", "кик"}},
	{ActionBan, []string{"забанить", "бан", "ban"}},
	{ActionUnban, []string{"разбанить", "разбан", "unban"}},
	{ActionWarn, []string{"предупреждение", "варн", "warn", "пред"}},
	{ActionUnwarn, []string{"снять предупреждение", "снять варн", "разварн", "unwarn"}},
	{ActionSetRank, []string{"назначить ранг", "выдать ранг", "назначить", "setrank"}},
	{ActionAdminRanks, []string{"ранги админов", "админ ранги", "adminranks"}},
	{ActionHiddenRank, []string{"секретный ранг", "скрытый ранг", "hiddenrank"}},
	{ActionSettings, []string{"настройки", "параметры", "settings"}},
	{ActionSetWelcome, []string{"приветствие", "set welcome"}},
	{ActionSetAntiflood, []string{"антифлуд", "antiflood"}},
	{ActionSetMute, []string{"мут время", "set mute"}},
	{ActionSetBan, []string{"бан время", "set ban"}},
}

// Resolve maps message text to an action. A phrase variant must be the whole
// text to match; text carrying the slash prefix falls back to matching its
// first token against the canonical identifiers and the phrase table.
// Anything else is ordinary conversation, even when it happens to start with
// a command word.
func Resolve(text string) Action {
	if text == "" {
		return ActionNone
	}

	normalized := strings.ToLower(strings.TrimSpace(text))

	for _, b := range table {
		for _, variant := range b.variants {
			if normalized == variant {
				return b.action
			}
		}
	}

	if strings.HasPrefix(normalized, "/") {
		token := strings.Fields(normalized[1:])
		if len(token) == 0 {
			return ActionNone
		}
		name := token[0]
		for _, b := range table {
			if name == b.action.String() {
				return b.action
			}
			for _, variant := range b.variants {
				if name == variant {
					return b.action
				}
			}
		}
	}

	return ActionNone
}

// Args extracts the argument string following a matched phrase, preserving
// the original casing of the remainder.
func Args(text string) string {
	if text == "" {
		return ""
	}

	trimmed := strings.TrimSpace(text)
	normalized := strings.ToLower(trimmed)

	if _, variant, ok := matchPhrase(normalized); ok {
		return strings.TrimSpace(trimmed[len(variant):])
	}

	if strings.HasPrefix(trimmed, "/") {
		parts := strings.Fields(trimmed)
		if len(parts) <= 1 {
			return ""
		}
		return strings.Join(parts[1:], " ")
	}

	return ""
}

// matchPhrase finds the longest variant that is either the whole normalized
// text or a prefix of it at a word boundary. Only argument extraction uses
// the prefix form; resolution requires the whole text.
func matchPhrase(normalized string) (Action, string, bool) {
	var (
		best       Action
		bestPhrase string
		found      bool
	)
	for _, b := range table {
		for _, variant := range b.variants {
			if len(variant) <= len(bestPhrase) {
				continue
			}
			if normalized == variant || strings.HasPrefix(normalized, variant+" ") {
				best, bestPhrase, found = b.action, variant, true
			}
		}
	}
	return best, bestPhrase, found
}
