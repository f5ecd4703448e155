package server

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// The bounds of the time a client limiter is kept after its last request.
const (
	minIdleTTL = time.Minute
	maxIdleTTL = 24 * time.Hour
)

// rateLimiter keeps a token bucket for every client IP.
// A bucket is evicted once the client has been idle for longer than idle.
type rateLimiter struct {
	mu      sync.Mutex
	clients *cache.Cache
	rate    rate.Limit
	burst   int
	idle    time.Duration
}

// newRateLimiter creates the limiter. A zero idle keeps a bucket until it would be full again,
// within the [minIdleTTL, maxIdleTTL] range.
func newRateLimiter(r rate.Limit, burst int, idle time.Duration) *rateLimiter {
	if burst < 1 {
		burst = 1
	}
	if idle <= 0 {
		refill := float64(burst) / float64(r)
		switch {
		case refill < minIdleTTL.Seconds():
			idle = minIdleTTL
		case refill > maxIdleTTL.Seconds():
			idle = maxIdleTTL
		default:
			idle = time.Duration(refill * float64(time.Second))
		}
	}
	return &rateLimiter{
		clients: cache.New(idle, 2*idle),
		rate:    r,
		burst:   burst,
		idle:    idle,
	}
}

func (r *rateLimiter) limiterFor(ip string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	var l *rate.Limiter
	if v, ok := r.clients.Get(ip); ok {
		l = v.(*rate.Limiter)
	} else {
		l = rate.NewLimiter(r.rate, r.burst)
	}
	// Every request pushes the expiration further.
	r.clients.Set(ip, l, r.idle)
	return l
}

func (r *rateLimiter) handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !r.limiterFor(c.IP()).Allow() {
			return fiber.NewError(fiber.StatusTooManyRequests, "too many requests")
		}
		return c.Next()
	}
}
