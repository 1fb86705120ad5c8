package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dafibh/kaskecil/kaskecil-backend/internal/domain"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Limit is a token bucket refilled PerMinute times a minute
type Limit struct {
	PerMinute int
	Burst     int
}

// RateLimitConfig sets the bucket per role. Roles missing from ByRole use Default.
type RateLimitConfig struct {
	Default Limit
	ByRole  map[domain.Role]Limit
	IdleTTL time.Duration // buckets unused this long are dropped
}

// DefaultRateLimitConfig gives back-office roles twice the cashier budget
func DefaultRateLimitConfig(perMinute, burst int) RateLimitConfig {
	doubled := Limit{PerMinute: perMinute * 2, Burst: burst * 2}
	return RateLimitConfig{
		Default: Limit{PerMinute: perMinute, Burst: burst},
		ByRole: map[domain.Role]Limit{
			domain.RoleAdmin: doubled,
			domain.RoleOwner: doubled,
		},
		IdleTTL: 10 * time.Minute,
	}
}

// Decision is the outcome of one Allow call
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter keeps one bucket per actor. Idle buckets are swept lazily.
type RateLimiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	limit    Limit
	lastSeen time.Time
}

// NewRateLimiter creates a RateLimiter
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	return &RateLimiter{
		cfg:     cfg,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

func (r *RateLimiter) limitFor(role domain.Role) Limit {
	if l, ok := r.cfg.ByRole[role]; ok {
		return l
	}
	return r.cfg.Default
}

// Allow takes one token from actor's bucket
func (r *RateLimiter) Allow(actor domain.Actor) Decision {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.sweepLocked(now)

	limit := r.limitFor(actor.Role)
	b, ok := r.buckets[actor.ID]
	if !ok || b.limit != limit {
		b = &bucket{
			limiter: rate.NewLimiter(rate.Limit(float64(limit.PerMinute)/60), limit.Burst),
			limit:   limit,
		}
		r.buckets[actor.ID] = b
	}
	b.lastSeen = now

	d := Decision{Limit: limit.PerMinute}
	d.Allowed = b.limiter.AllowN(now, 1)
	tokens := b.limiter.TokensAt(now)
	d.Remaining = int(math.Max(0, math.Floor(tokens)))
	if !d.Allowed {
		perSecond := float64(limit.PerMinute) / 60
		if perSecond > 0 {
			d.RetryAfter = time.Duration((1 - tokens) / perSecond * float64(time.Second))
		}
		if d.RetryAfter < time.Second {
			d.RetryAfter = time.Second
		}
	}
	return d
}

func (r *RateLimiter) sweepLocked(now time.Time) {
	if now.Sub(r.lastSweep) < r.cfg.IdleTTL {
		return
	}
	r.lastSweep = now
	for id, b := range r.buckets {
		if now.Sub(b.lastSeen) > r.cfg.IdleTTL {
			delete(r.buckets, id)
		}
	}
}

// Buckets returns the number of tracked actors
func (r *RateLimiter) Buckets() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buckets)
}

// RateLimitMiddleware limits mutating requests per authenticated actor.
// Reads and anonymous requests pass through.
func RateLimitMiddleware(rl *RateLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			switch c.Request().Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}

			actor := GetActor(c)
			if actor.ID == "" {
				return next(c)
			}

			d := rl.Allow(actor)
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

			if !d.Allowed {
				retryAfter := int(math.Ceil(d.RetryAfter.Seconds()))
				h.Set("Retry-After", strconv.Itoa(retryAfter))
				log.Warn().
					Str("actor_id", actor.ID).
					Str("role", string(actor.Role)).
					Int("retry_after", retryAfter).
					Msg("Rate limit exceeded")
				return tooManyRequestsError(c, retryAfter)
			}
			return next(c)
		}
	}
}
