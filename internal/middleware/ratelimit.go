package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/tennis-court-reservation/internal/config"
)

// tokenBucketScript refills and takes one token atomically.  It returns
// {allowed, remaining, retry_after_ms}.
var tokenBucketScript = redis.NewScript(`
    local key = KEYS[1]
    local now_ms = tonumber(ARGV[1])
    local capacity = tonumber(ARGV[2])
    local refill_tokens = tonumber(ARGV[3])
    local interval_ms = tonumber(ARGV[4])
    local ttl_seconds = tonumber(ARGV[5])

    local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
    local tokens = tonumber(state[1])
    local last_refill = tonumber(state[2])
    if tokens == nil or last_refill == nil then
        tokens = capacity
        last_refill = now_ms
    end

    if interval_ms > 0 and refill_tokens > 0 then
        local elapsed = math.max(0, now_ms - last_refill)
        local intervals = math.floor(elapsed / interval_ms)
        if intervals > 0 then
            tokens = math.min(capacity, tokens + (intervals * refill_tokens))
            last_refill = last_refill + (intervals * interval_ms)
        end
    end

    local allowed = 0
    local retry_after_ms = 0
    if tokens > 0 then
        allowed = 1
        tokens = tokens - 1
    else
        retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
    end

    redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
    redis.call('EXPIRE', key, ttl_seconds)
    return { allowed, tokens, retry_after_ms }
`)

type bucket struct {
	rdb      *redis.Client
	cfg      config.RateLimitConfig
	capacity int
	scope    string
}

// NewTokenBucket limits every request by the configured key strategy.
// Redis errors let the request through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	return newBucket(cfg, rdb, cfg.Capacity, "api")
}

// NewBookingLimiter is a second, smaller bucket for reservation writes.
// It is keyed per guest so one account cannot sweep the slot calendar.
func NewBookingLimiter(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	cfg.KeyStrategy = "user"
	return newBucket(cfg, rdb, cfg.BookingCapacity, "booking")
}

func newBucket(cfg config.RateLimitConfig, rdb *redis.Client, capacity int, scope string) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	b := &bucket{rdb: rdb, cfg: cfg, capacity: capacity, scope: scope}
	return b.middleware
}

func (b *bucket) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		key := rateKey(b.cfg, b.scope, c)
		vals, err := tokenBucketScript.Run(c.Request().Context(), b.rdb, []string{key},
			time.Now().UnixMilli(),
			b.capacity,
			b.cfg.RefillTokens,
			b.cfg.RefillInterval.Milliseconds(),
			int64(b.cfg.TTL/time.Second),
		).Result()
		if err != nil {
			if b.cfg.Debug {
				c.Logger().Warnf("[ratelimit] redis error for key=%s: %v", key, err)
			}
			return next(c)
		}
		arr, ok := vals.([]interface{})
		if !ok || len(arr) != 3 {
			if b.cfg.Debug {
				c.Logger().Warnf("[ratelimit] unexpected script result for key=%s: %#v", key, vals)
			}
			return next(c)
		}
		allowed := fmt.Sprint(arr[0]) == "1"
		remaining := asInt64(arr[1])
		retryMs := asInt64(arr[2])

		h := c.Response().Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(b.capacity))
		h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		if !allowed {
			secs := int(math.Ceil(float64(retryMs) / 1000.0))
			h.Set("Retry-After", strconv.Itoa(secs))
			if b.cfg.Debug {
				c.Logger().Infof("[ratelimit] block key=%s retry=%dms", key, retryMs)
			}
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":       "too_many_requests",
				"message":     "rate limit exceeded",
				"retry_after": secs,
			})
		}
		return next(c)
	}
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	}
	return 0
}

// rateKey builds "<prefix>:<scope>:..." from the strategy.  Unknown
// strategies fall back to ip_user_route.
func rateKey(cfg config.RateLimitConfig, scope string, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	uid := identityKey(c)
	route := c.Request().Method + " " + c.Path()

	parts := []string{cfg.Prefix, scope}
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "user":
		if uid == "anon" {
			parts = append(parts, "ip", ip)
		} else {
			parts = append(parts, "user", uid)
		}
	case "route":
		parts = append(parts, "route", route)
	case "ip_user":
		parts = append(parts, "ip", ip, "user", uid)
	case "ip_route":
		parts = append(parts, "ip", ip, "route", route)
	case "user_route":
		parts = append(parts, "user", uid, "route", route)
	default:
		parts = append(parts, "ip", ip, "user", uid, "route", route)
	}
	return strings.Join(parts, ":")
}
