package engage

import (
	"context"
	"testing"
	"time"

	"groupwarden/internal/storage"
)

type fakeClock struct{ now time.Time }

func (f fakeClock) Now() time.Time { return f.now }

func TestGain(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"привет", 60},
		{"Привет!", 80},
		{"Привет", 60},
		{"ok", 0},
		{"Ok.", 50},
	}
	for _, c := range cases {
		if got := Gain(c.text, 20); got != c.want {
			t.Fatalf("Gain(%q) = %d, want %d", c.text, got, c.want)
		}
	}
}

func TestRecordCreditsAndRanks(t *testing.T) {
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	acc := NewAccumulator(store, 20)
	acc.WithClock(fakeClock{now: time.Unix(1700000000, 0)})

	ctx := context.Background()
	tier, changed, err := acc.Record(ctx, 1, 10, "Привет всем в чате!")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if tier != 1 || !changed {
		t.Fatalf("expected first tier after first message, got tier=%d changed=%v", tier, changed)
	}

	tier, changed, err = acc.Record(ctx, 1, 10, "и снова я")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if tier != 1 || changed {
		t.Fatalf("tier should be stable, got tier=%d changed=%v", tier, changed)
	}

	stats, found, err := store.UserStats(ctx, 1, 10)
	if err != nil || !found {
		t.Fatalf("stats: found=%v err=%v", found, err)
	}
	if stats.MessagesAll != 2 {
		t.Fatalf("expected 2 messages, got %d", stats.MessagesAll)
	}
	want := int64(Gain("Привет всем в чате!", 20) + Gain("и снова я", 20))
	if stats.Experience != want {
		t.Fatalf("expected %d experience, got %d", want, stats.Experience)
	}
}
