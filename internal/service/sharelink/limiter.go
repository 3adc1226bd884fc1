package sharelink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oshokin/safety-tracker/internal/config"
	"github.com/oshokin/safety-tracker/internal/logger"
)

// Generator performs the external link-generation call. Implementations are
// external collaborators (the tracking backend issuing signed URLs).
type Generator interface {
	Generate(ctx context.Context, personID string) (string, error)
}

// record is the cached generation state for one person.
type record struct {
	// value is the cached share link.
	value string
	// generatedAt is when the generator last ran for this person.
	generatedAt time.Time
	// cachedAt is when the cached value was created.
	cachedAt time.Time
}

// Limiter caches generated share links per person, refusing to call the
// generator again inside the rate window unless the cached link went stale.
type Limiter struct {
	// generator performs the external call.
	generator Generator

	// rateWindow is the minimum interval between generations per person.
	rateWindow time.Duration
	// staleWindow is the maximum cached link age.
	staleWindow time.Duration

	// mu protects records.
	mu sync.Mutex
	// records holds per-person cache state.
	records map[string]record

	// now supplies the current time; injectable for tests.
	now func() time.Time
}

// Option configures limiter behaviour.
type Option func(*Limiter)

// WithWindows overrides the rate and staleness windows.
func WithWindows(rate, stale time.Duration) Option {
	return func(l *Limiter) {
		if rate > 0 {
			l.rateWindow = rate
		}

		if stale > 0 {
			l.staleWindow = stale
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLimiter creates a limiter around the provided generator.
func NewLimiter(generator Generator, opts ...Option) *Limiter {
	l := &Limiter{
		generator:   generator,
		rateWindow:  config.DefaultRateLimitWindow,
		staleWindow: config.DefaultCacheStaleWindow,
		records:     make(map[string]record),
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Generate returns the person's share link, reusing the cached value while
// it is inside both windows. A generation failure is returned to the caller
// and leaves the existing record untouched.
func (l *Limiter) Generate(ctx context.Context, personID string) (string, error) {
	l.mu.Lock()

	if rec, ok := l.records[personID]; ok {
		now := l.now()

		if now.Sub(rec.generatedAt) < l.rateWindow && now.Sub(rec.cachedAt) < l.staleWindow {
			l.mu.Unlock()

			logger.DebugKV(ctx, "Share link served from cache", "person_id", personID)

			return rec.value, nil
		}
	}

	l.mu.Unlock()

	// The external call happens outside the lock.
	value, err := l.generator.Generate(ctx, personID)
	if err != nil {
		return "", fmt.Errorf("generate share link: %w", err)
	}

	now := l.now()

	l.mu.Lock()
	l.records[personID] = record{
		value:       value,
		generatedAt: now,
		cachedAt:    now,
	}
	l.mu.Unlock()

	logger.InfoKV(ctx, "Share link generated", "person_id", personID)

	return value, nil
}
