package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// ErrThrottled marks a send refused by our own limiter before it reached
// the provider. Callers should hand the item back without spending a retry.
var ErrThrottled = errors.New("send throttled")

// ErrDailyLimit is returned when the daily send budget is spent.
var ErrDailyLimit = fmt.Errorf("%w: daily send limit reached", ErrThrottled)

// IsThrottled reports whether err came from the local rate limiter.
func IsThrottled(err error) bool {
	return errors.Is(err, ErrThrottled)
}

// RateLimit defines the send budget of one transport.
type RateLimit struct {
	PerSecond int
	PerMinute int
	PerDay    int
}

// multiLimitScript checks all three windows and increments only if every
// window has room.
var multiLimitScript = redis.NewScript(`
local secondKey = KEYS[1]
local minuteKey = KEYS[2]
local dailyKey = KEYS[3]
local increment = tonumber(ARGV[1])
local secondLimit = tonumber(ARGV[2])
local minuteLimit = tonumber(ARGV[3])
local dailyLimit = tonumber(ARGV[4])

local secCurrent = tonumber(redis.call("GET", secondKey) or "0")
local minCurrent = tonumber(redis.call("GET", minuteKey) or "0")
local dayCurrent = tonumber(redis.call("GET", dailyKey) or "0")

if secondLimit > 0 and secCurrent + increment > secondLimit then
    return {0, 1}
end
if minuteLimit > 0 and minCurrent + increment > minuteLimit then
    return {0, 2}
end
if dailyLimit > 0 and dayCurrent + increment > dailyLimit then
    return {0, 3}
end

if redis.call("INCRBY", secondKey, increment) == increment then
    redis.call("EXPIRE", secondKey, 2)
end
if redis.call("INCRBY", minuteKey, increment) == increment then
    redis.call("EXPIRE", minuteKey, 120)
end
if redis.call("INCRBY", dailyKey, increment) == increment then
    redis.call("EXPIRE", dailyKey, 90000)
end
return {1, 0}
`)

// Limiter is a Redis-backed fixed-window rate limiter shared by every
// replica.
type Limiter struct {
	rdb   redis.Cmdable
	name  string
	limit RateLimit
	now   func() time.Time
}

// NewLimiter creates a limiter for the named transport.
func NewLimiter(rdb redis.Cmdable, name string, limit RateLimit) *Limiter {
	return &Limiter{rdb: rdb, name: name, limit: limit, now: time.Now}
}

// Allow reserves one send. When denied it returns how long to wait.
func (l *Limiter) Allow(ctx context.Context) (bool, time.Duration, error) {
	now := l.now().UTC()
	keys := []string{
		fmt.Sprintf("ratelimit:%s:sec:%d", l.name, now.Unix()),
		fmt.Sprintf("ratelimit:%s:min:%d", l.name, now.Unix()/60),
		fmt.Sprintf("ratelimit:%s:day:%s", l.name, now.Format("2006-01-02")),
	}
	res, err := multiLimitScript.Run(ctx, l.rdb, keys,
		1, l.limit.PerSecond, l.limit.PerMinute, l.limit.PerDay).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit check: %w", err)
	}
	if res[0] == 1 {
		return true, 0, nil
	}
	switch res[1] {
	case 1:
		return false, time.Second - time.Duration(now.Nanosecond()), nil
	case 2:
		return false, time.Duration(60-now.Second()) * time.Second, nil
	default:
		return false, 0, ErrDailyLimit
	}
}

// RateLimited wraps a transport with a shared limiter. A send waits for
// capacity up to maxWait; a Redis failure lets the send through.
type RateLimited struct {
	next    Transport
	limiter *Limiter
	maxWait time.Duration
	log     *logger.Logger
}

// NewRateLimited decorates next with limiter.
func NewRateLimited(next Transport, limiter *Limiter, maxWait time.Duration) *RateLimited {
	if maxWait <= 0 {
		maxWait = 30 * time.Second
	}
	return &RateLimited{next: next, limiter: limiter, maxWait: maxWait, log: logger.Named("transport.RateLimited")}
}

// Send waits for a slot and then delegates.
func (r *RateLimited) Send(ctx context.Context, msg *domain.EmailMessage) (*domain.SendResult, error) {
	deadline := time.Now().Add(r.maxWait)
	for {
		ok, wait, err := r.limiter.Allow(ctx)
		if errors.Is(err, ErrDailyLimit) {
			return nil, err
		}
		if err != nil {
			r.log.Warn("rate limiter unavailable, sending unthrottled", "error", err)
			break
		}
		if ok {
			break
		}
		if time.Now().Add(wait).After(deadline) {
			return nil, fmt.Errorf("%w: %s wait budget of %s exceeded", ErrThrottled, r.limiter.name, r.maxWait)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return r.next.Send(ctx, msg)
}
