package rate

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

const reportsWindow = time.Hour

type WindowStore interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Rollback(ctx context.Context, key string) error
}

// Limiter caps report submissions per user per hour. A nil store or a zero
// limit lets everything through.
type Limiter struct {
	store   WindowStore
	perHour int
}

func NewLimiter(store WindowStore, perHour int) *Limiter {
	if perHour < 0 {
		perHour = 0
	}
	return &Limiter{store: store, perHour: perHour}
}

func (l *Limiter) Enabled() bool {
	return l != nil && l.store != nil && l.perHour > 0
}

// AllowReport counts one submission. When the window is full it returns the
// wait until the window resets and does not count the attempt.
func (l *Limiter) AllowReport(ctx context.Context, userID int64) (time.Duration, bool, error) {
	if !l.Enabled() {
		return 0, true, nil
	}
	if userID <= 0 {
		return 0, false, fmt.Errorf("invalid user id")
	}

	key := reportsKey(userID)
	count, ttl, err := l.store.IncrementWindow(ctx, key, reportsWindow)
	if err != nil {
		return 0, false, err
	}
	if count <= int64(l.perHour) {
		return 0, true, nil
	}

	if err := l.store.Rollback(ctx, key); err != nil {
		return 0, false, err
	}
	return retryAfter(ttl), false, nil
}

// Refund gives back a submission that was counted but not stored.
func (l *Limiter) Refund(ctx context.Context, userID int64) error {
	if !l.Enabled() {
		return nil
	}
	return l.store.Rollback(ctx, reportsKey(userID))
}

func reportsKey(userID int64) string {
	return "rate:reports:hour:" + strconv.FormatInt(userID, 10)
}

func retryAfter(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return time.Second
	}
	return ttl.Round(time.Second)
}
