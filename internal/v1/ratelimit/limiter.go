// Package ratelimit implements the two independent rate-limit dimensions
// of §4.2: a concurrent-connection counter per source address, and a
// fixed 60s message-window counter per source address.
package ratelimit

import (
	"context"
	"fmt"
	"sync"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"

	"github.com/signalmesh/bootstrap-signaling/internal/v1/logging"
	"github.com/signalmesh/bootstrap-signaling/internal/v1/metrics"
)

// Limiter enforces both rate-limit dimensions. The message window uses
// ulule/limiter's fixed-window implementation, since it already
// expresses "N per window, reset at window boundary" correctly. The
// connection counter needs true increment/decrement/evict-at-zero gauge
// semantics that a rate-limiter library doesn't provide, so it's a
// hand-written mutex-guarded map.
type Limiter struct {
	messageLimiter *limiter.Limiter

	mu          sync.Mutex
	connections map[string]int
	maxConns    int
}

// New constructs a Limiter. messagesPerMinute and connectionsPerIP come
// from config.Config.RateLimitMessagesPerMinute /
// RateLimitConnectionsPerIP.
func New(messagesPerMinute, connectionsPerIP int) (*Limiter, error) {
	rate, err := limiter.NewRateFromFormatted(fmt.Sprintf("%d-M", messagesPerMinute))
	if err != nil {
		return nil, fmt.Errorf("invalid message rate: %w", err)
	}

	store := memory.NewStore()

	return &Limiter{
		messageLimiter: limiter.New(store, rate),
		connections:    make(map[string]int),
		maxConns:       connectionsPerIP,
	}, nil
}

// AllowConnection increments addr's connection counter and admits the
// connection unless doing so would exceed the configured maximum, in
// which case the increment is rolled back.
func (l *Limiter) AllowConnection(addr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.connections[addr]++
	if l.connections[addr] > l.maxConns {
		l.connections[addr]--
		if l.connections[addr] <= 0 {
			delete(l.connections, addr)
		}
		metrics.RateLimitedTotal.Inc()
		return false
	}
	return true
}

// ReleaseConnection decrements addr's connection counter, removing the
// entry entirely once it reaches zero (invariant 6: ConnectionBucket is
// absent when zero).
func (l *Limiter) ReleaseConnection(addr string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.connections[addr] <= 1 {
		delete(l.connections, addr)
		return
	}
	l.connections[addr]--
}

// ConnectionCount returns the current connection count for addr, for
// tests asserting invariant 6.
func (l *Limiter) ConnectionCount(addr string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connections[addr]
}

// AllowMessage rolls addr's 60s message window, incrementing its
// counter, and reports whether the message is within budget.
func (l *Limiter) AllowMessage(ctx context.Context, addr string) bool {
	result, err := l.messageLimiter.Get(ctx, addr)
	if err != nil {
		logging.Error(ctx, "message rate limiter store failed", zap.Error(err))
		return true // fail open: a store fault must not take down signaling
	}
	if result.Reached {
		metrics.RateLimitedTotal.Inc()
		return false
	}
	return true
}
