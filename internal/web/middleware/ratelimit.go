package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shindakun/diuportal/internal/config"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client IP. Buckets of the least
// recently seen clients are evicted once MaxClients is reached
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	mu      sync.Mutex
	clients *lru.Cache[string, *rate.Limiter]
}

// NewRateLimiter creates a limiter allowing RequestsPerWindow requests per
// WindowDuration with the configured burst
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.RequestsPerWindow / 10 // Default burst to 10% of window
		if burst < 1 {
			burst = 1
		}
	}

	size := cfg.MaxClients
	if size <= 0 {
		size = 10000
	}
	clients, err := lru.New[string, *rate.Limiter](size)
	if err != nil {
		// Only returned for a non-positive size
		panic(err)
	}

	return &RateLimiter{
		limit:   rate.Limit(float64(cfg.RequestsPerWindow) / cfg.WindowDuration.Seconds()),
		burst:   burst,
		clients: clients,
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if l, ok := rl.clients.Get(key); ok {
		return l
	}
	l := rate.NewLimiter(rl.limit, rl.burst)
	rl.clients.Add(key, l)
	return l
}

// Allow reports whether the client may make a request now. When it may not,
// the returned duration is how long until it may
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	r := rl.limiter(key).Reserve()
	if !r.OK() {
		return false, time.Duration(math.MaxInt64)
	}
	if d := r.Delay(); d > 0 {
		r.Cancel()
		return false, d
	}
	return true, 0
}

// Middleware rejects requests over the limit. onLimited renders the
// rejection; when nil a plain 429 is written
func (rl *RateLimiter) Middleware(onLimited http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := rl.Allow(ClientIP(r))
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				if onLimited != nil {
					onLimited(w, r)
					return
				}
				http.Error(w, "Too many attempts. Please wait and try again.", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the host part of RemoteAddr. Behind a proxy, chi's RealIP
// middleware has already rewritten RemoteAddr
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
