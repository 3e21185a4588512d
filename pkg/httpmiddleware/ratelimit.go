package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures the per-client submission limiter.
type RateLimitConfig struct {
	// Max is the number of requests a client may make per window.
	Max int
	// Window is the time a client's full allowance takes to refill.
	Window time.Duration
	// Key identifies the client. The client IP is used when nil.
	Key func(*http.Request) string
	// Methods restricts limiting to the listed HTTP methods. Requests with
	// other methods pass through untouched. Empty means every method.
	Methods []string
	// OnLimit answers a rejected request. The rate limit headers are
	// already set when it runs. A plain-text 429 is written when nil.
	OnLimit http.Handler
}

func (c RateLimitConfig) limited(r *http.Request) bool {
	return len(c.Methods) == 0 || slices.Contains(c.Methods, r.Method)
}

// Decision is the outcome of counting one request.
type Decision struct {
	Allowed bool
	// Limit is the burst a client may spend at once.
	Limit int
	// Remaining is the whole number of requests left in the bucket.
	Remaining int
	// Reset is when the bucket is full again, or for a rejected request,
	// when the next request is allowed.
	Reset time.Time
	// RetryAfter is the wait before the next allowed request of a rejected
	// client.
	RetryAfter time.Duration
}

func (d Decision) setHeaders(h http.Header) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))
	if !d.Allowed {
		h.Set("Retry-After", strconv.Itoa(int(math.Ceil(d.RetryAfter.Seconds()))))
	}
}

type client struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps a token bucket per client: limit requests may be spent at
// once and the bucket refills evenly over period.
type Limiter struct {
	every  rate.Limit
	burst  int
	period time.Duration

	mu      sync.Mutex
	clients map[string]*client
}

// NewLimiter allows limit requests per period for each client.
func NewLimiter(limit int, period time.Duration) *Limiter {
	limit = max(limit, 1)
	return &Limiter{
		every:   rate.Every(period / time.Duration(limit)),
		burst:   limit,
		period:  period,
		clients: make(map[string]*client),
	}
}

func (l *Limiter) bucket(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.clients[key]
	if !ok {
		c = &client{bucket: rate.NewLimiter(l.every, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c.bucket
}

// Allow spends one request of key at now. Rejected requests spend nothing.
func (l *Limiter) Allow(key string, now time.Time) Decision {
	b := l.bucket(key, now)
	d := Decision{Limit: l.burst}

	r := b.ReserveN(now, 1)
	if !r.OK() {
		d.RetryAfter = l.period
		d.Reset = now.Add(l.period)
		return d
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		d.RetryAfter = delay
		d.Reset = now.Add(delay)
		return d
	}

	tokens := b.TokensAt(now)
	d.Allowed = true
	d.Remaining = max(int(tokens), 0)
	refill := (float64(l.burst) - tokens) / float64(l.every)
	d.Reset = now.Add(time.Duration(refill * float64(time.Second)))
	return d
}

// Prune forgets clients idle long enough for their bucket to be full.
func (l *Limiter) Prune(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, c := range l.clients {
		if now.Sub(c.lastSeen) >= l.period {
			delete(l.clients, key)
		}
	}
}

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// PruneEvery prunes the limiter every interval until ctx is done.
func (l *Limiter) PruneEvery(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				l.Prune(now)
			}
		}
	}()
}

// RateLimit limits requests per client. Limited requests get X-RateLimit-*
// headers; rejected ones also get Retry-After and are answered by
// cfg.OnLimit.
func RateLimit(cfg RateLimitConfig) Middleware {
	return rateLimit(cfg, NewLimiter(cfg.Max, cfg.Window))
}

// RateLimitWithCleanup is RateLimit with idle clients pruned every window
// until ctx is done.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := NewLimiter(cfg.Max, cfg.Window)
	l.PruneEvery(ctx, cfg.Window)
	return rateLimit(cfg, l)
}

func rateLimit(cfg RateLimitConfig, l *Limiter) Middleware {
	if cfg.Key == nil {
		cfg.Key = ClientIP
	}
	if cfg.OnLimit == nil {
		cfg.OnLimit = http.HandlerFunc(tooManyRequests)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.limited(r) {
				next.ServeHTTP(w, r)
				return
			}
			d := l.Allow(cfg.Key(r), time.Now())
			d.setHeaders(w.Header())
			if !d.Allowed {
				cfg.OnLimit.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the first X-Forwarded-For hop, X-Real-IP, or the host of
// RemoteAddr, in that order.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func tooManyRequests(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
}
