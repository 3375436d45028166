// Package rank holds the tier tables: the system-computed hidden activity
// tier and the owner-assigned named ranks.
package rank

import "groupwarden/internal/storage"

var adminNames = []string{
	"Смотрящий",
	"Надзиратель",
	"Хранитель",
	"Страж",
	"Правитель",
	"Властелин",
}

var hiddenNames = []string{
	"Новичок",
	"Начинающий",
	"Активный",
	"Эксперт",
	"Легенда",
	"Безумец",
}

const memberLabel = "Участник"

// Evaluate recomputes the hidden tier from scratch. Thresholds cascade in
// ascending order, so the highest satisfied tier wins. Day and week counters
// are reset by the periodic jobs, which means a tier can legitimately drop
// after a reset even though the all-time counter never decreases.
func Evaluate(c storage.Counters) int {
	tier := 0
	if c.AllTime >= 1 {
		tier = 1
	}
	if c.AllTime >= 1000 {
		tier = 2
	}
	if c.Today >= 5000 {
		tier = 3
	}
	if c.ThisWeek >= 15000 {
		tier = 4
	}
	if c.ThisWeek >= 35000 {
		tier = 5
	}
	if c.Trailing30 >= 100000 {
		tier = 6
	}
	return tier
}

// AdminRankName labels an owner-assigned rank 1..6.
func AdminRankName(rank int) string {
	if rank >= 1 && rank <= len(adminNames) {
		return adminNames[rank-1]
	}
	return ""
}

// HiddenRankName labels a computed tier; tier zero has no name.
func HiddenRankName(tier int) string {
	if tier >= 1 && tier <= len(hiddenNames) {
		return hiddenNames[tier-1]
	}
	return "Без ранга"
}

// DisplayRank prefers the admin-assigned rank; everyone else is shown the
// generic member label regardless of hidden tier.
func DisplayRank(custom *int) string {
	if custom != nil && *custom >= 1 && *custom <= len(adminNames) {
		return adminNames[*custom-1]
	}
	return memberLabel
}

// AdminRankNames lists the assignable ranks in ascending order.
func AdminRankNames() []string {
	names := make([]string, len(adminNames))
	copy(names, adminNames)
	return names
}
