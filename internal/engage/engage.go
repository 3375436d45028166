// Package engage turns plain group messages into experience and message
// counters, then refreshes the hidden activity tier.
package engage

import (
	"context"
	"time"
	"unicode"
	"unicode/utf8"

	"groupwarden/internal/rank"
	"groupwarden/internal/storage"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Gain scores a message: 30 points per three runes of text, plus the grammar
// bonus when the message starts with an upper-case letter and ends in
// sentence punctuation. Values already carry the two-decimal ×100 scale.
func Gain(text string, bonus int) int {
	gain := (utf8.RuneCountInString(text) / 3) * 30
	if hasSentenceShape(text) {
		gain += bonus
	}
	return gain
}

func hasSentenceShape(text string) bool {
	if text == "" {
		return false
	}
	first, _ := utf8.DecodeRuneInString(text)
	last, _ := utf8.DecodeLastRuneInString(text)
	if !unicode.IsUpper(first) {
		return false
	}
	return last == '.' || last == '!' || last == '?'
}

type Accumulator struct {
	store *storage.Store
	bonus int
	clock Clock
}

func NewAccumulator(store *storage.Store, grammarBonus int) *Accumulator {
	return &Accumulator{store: store, bonus: grammarBonus, clock: realClock{}}
}

func (a *Accumulator) WithClock(clock Clock) {
	a.clock = clock
}

// Record credits the message to the (chat, user) pair and recomputes the
// hidden tier from the updated counters. Returns the tier and whether it
// moved. Storage failures abort the whole message.
func (a *Accumulator) Record(ctx context.Context, chatID, userID int64, text string) (int, bool, error) {
	now := a.clock.Now()
	if err := a.store.AddMessage(ctx, chatID, userID, Gain(text, a.bonus), now); err != nil {
		return 0, false, err
	}
	return a.store.RefreshHiddenRank(ctx, chatID, userID, now, rank.Evaluate)
}
