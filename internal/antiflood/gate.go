package antiflood

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// SettingsFunc reports whether antiflood is enabled for a chat. Lookup
// failures should resolve to the configured default on the caller side.
type SettingsFunc func(ctx context.Context, chatID int64) bool

// Gate is the per-(chat, user) admission check. Last-admitted timestamps
// live in a bounded LRU with TTL eviction so the map cannot grow without
// limit over process lifetime; the state is never persisted.
type Gate struct {
	mu      sync.Mutex
	seen    *expirable.LRU[string, time.Time]
	delay   time.Duration
	clock   Clock
	enabled SettingsFunc
}

func New(delay time.Duration, capacity int, enabled SettingsFunc) *Gate {
	ttl := 10 * delay
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Gate{
		seen:    expirable.NewLRU[string, time.Time](capacity, nil, ttl),
		delay:   delay,
		clock:   realClock{},
		enabled: enabled,
	}
}

func (g *Gate) WithClock(clock Clock) {
	g.clock = clock
}

// Admit reports whether a message from the pair may be processed. A denied
// message is dropped silently: no reply, no counter update. The check and
// the timestamp record run under one lock so concurrent messages from the
// same pair cannot both slip through.
func (g *Gate) Admit(ctx context.Context, chatID, userID int64) bool {
	if g.enabled != nil && !g.enabled(ctx, chatID) {
		return true
	}

	key := fmt.Sprintf("%d:%d", chatID, userID)
	now := g.clock.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if last, ok := g.seen.Get(key); ok && now.Sub(last) < g.delay {
		return false
	}
	g.seen.Add(key, now)
	return true
}
