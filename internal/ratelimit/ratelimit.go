// Package ratelimit throttles the unauthenticated write endpoints per client
// IP with a sliding window.
package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"net/netip"
	"strconv"
	"time"

	"votechain/pkg/platform/httputil"
	"votechain/pkg/requestcontext"
)

const (
	DefaultLimit  = 30
	DefaultWindow = time.Minute

	keyPrefix = "ip:"
)

// Result is the outcome of one admission check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the whole number of seconds until the window frees a slot.
func (r Result) RetryAfter(now time.Time) int {
	secs := int(r.ResetAt.Sub(now).Round(time.Second) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// Store records admissions for a key within a sliding window.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error)
}

// Limiter is HTTP middleware admitting at most limit requests per client IP
// per window. Store failures let the request through.
type Limiter struct {
	store    Store
	limit    int
	window   time.Duration
	logger   *slog.Logger
	metrics  *Metrics
	disabled bool
}

type Option func(*Limiter)

func WithLimit(limit int, window time.Duration) Option {
	return func(l *Limiter) {
		if limit > 0 {
			l.limit = limit
		}
		if window > 0 {
			l.window = window
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

// WithDisabled turns the middleware into a pass-through.
func WithDisabled(disabled bool) Option {
	return func(l *Limiter) {
		l.disabled = disabled
	}
}

func New(store Store, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		limit:  DefaultLimit,
		window: DefaultWindow,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.disabled {
		l.logger.Info("rate limiting disabled")
	}
	return l
}

// Middleware enforces the per-IP limit on writes. Reads and a nil Limiter
// pass through.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	if l == nil || l.disabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		ip := requestcontext.ClientIP(ctx)
		now := requestcontext.Now(ctx)

		res, err := l.store.Allow(ctx, keyPrefix+ip, l.limit, l.window, now)
		if err != nil {
			l.logger.ErrorContext(ctx, "rate limit check failed",
				"error", err,
				"ip_prefix", anonymizeIP(ip),
				"request_id", requestcontext.RequestID(ctx),
			)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

		if !res.Allowed {
			l.metrics.observeRejected(r.URL.Path)
			l.logger.InfoContext(ctx, "rate limit exceeded",
				"ip_prefix", anonymizeIP(ip),
				"path", r.URL.Path,
				"request_id", requestcontext.RequestID(ctx),
			)
			retry := res.RetryAfter(now)
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			httputil.WriteJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":       "rate_limit_exceeded",
				"message":     "Too many requests from this address. Please try again later.",
				"retry_after": retry,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// anonymizeIP keeps the /24 of an IPv4 address or the /48 of an IPv6 one.
func anonymizeIP(ip string) string {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "invalid"
	}
	bits := 48
	if addr.Is4() {
		bits = 24
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "invalid"
	}
	return prefix.String()
}
