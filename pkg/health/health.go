// Package health serves liveness and readiness endpoints.
//
// Every registered check runs on its own ticker. A check turns unhealthy
// after FailureThreshold consecutive failures and healthy again after
// SuccessThreshold consecutive successes, so a single slow upstream answer
// does not flap the status.
package health

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
	"go.uber.org/zap"
)

// CheckFunc reports the health of one component.
type CheckFunc func(ctx context.Context) error

// Kind tells liveness checks from readiness checks.
type Kind string

const (
	Liveness  Kind = "liveness"
	Readiness Kind = "readiness"
)

// Thresholds control how many consecutive results flip a check.
type Thresholds struct {
	Failure int
	Success int
}

// DefaultThresholds are used when a check is registered without options.
var DefaultThresholds = Thresholds{Failure: 3, Success: 1}

// CheckOption configures a registered check.
type CheckOption func(*check)

// WithThresholds overrides DefaultThresholds for one check.
func WithThresholds(t Thresholds) CheckOption {
	return func(c *check) {
		c.thresholds = Thresholds{Failure: max(t.Failure, 1), Success: max(t.Success, 1)}
	}
}

type check struct {
	name       string
	kind       Kind
	timeout    time.Duration
	fn         CheckFunc
	thresholds Thresholds

	healthy atomic.Bool
	lastErr atomic.Pointer[string]

	// Owned by the goroutine calling run.
	fails, oks int
}

func (c *check) run(ctx context.Context, lg *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.fn(ctx)
	if err == nil {
		c.lastErr.Store(nil)
		c.fails = 0
		c.oks++
		if c.oks >= c.thresholds.Success && !c.healthy.Swap(true) {
			lg.Info("Health check recovered", zap.String("check", c.name), zap.String("kind", string(c.kind)))
		}
		return
	}

	msg := err.Error()
	c.lastErr.Store(&msg)
	c.oks = 0
	c.fails++
	if c.fails >= c.thresholds.Failure && c.healthy.Swap(false) {
		lg.Warn("Health check failing",
			zap.String("check", c.name),
			zap.String("kind", string(c.kind)),
			zap.Int("failures", c.fails),
			zap.Error(err),
		)
	}
}

// status returns an empty string for a healthy check and the failure reason
// otherwise.
func (c *check) status() string {
	if c.healthy.Load() {
		return ""
	}
	if msg := c.lastErr.Load(); msg != nil {
		return *msg
	}
	return "check is unhealthy"
}

// Health owns the registered checks and the manual readiness switch.
type Health struct {
	lg    *zap.Logger
	ready atomic.Bool

	mu     sync.RWMutex
	checks []*check
	cancel context.CancelFunc
}

// New creates a Health that starts not ready. Call SetReady(true) once
// initialization is done.
func New(lg *zap.Logger) *Health {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Health{lg: lg}
}

// AddLivenessCheck registers a check of process health, such as goroutine
// leaks. Checks start healthy.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc, opts ...CheckOption) {
	h.add(Liveness, name, timeout, fn, opts)
}

// AddReadinessCheck registers a check of a dependency the service needs to
// serve traffic. Checks start healthy.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc, opts ...CheckOption) {
	h.add(Readiness, name, timeout, fn, opts)
}

func (h *Health) add(kind Kind, name string, timeout time.Duration, fn CheckFunc, opts []CheckOption) {
	c := &check{
		name:       name,
		kind:       kind,
		timeout:    timeout,
		fn:         fn,
		thresholds: DefaultThresholds,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.healthy.Store(true)

	h.mu.Lock()
	h.checks = append(h.checks, c)
	h.mu.Unlock()
}

// Start runs every registered check immediately and then every interval
// until ctx is done or Stop is called.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	checks := slices.Clone(h.checks)
	h.mu.Unlock()

	for _, c := range checks {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			c.run(ctx, h.lg)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					c.run(ctx, h.lg)
				}
			}
		}()
	}
}

// Stop stops the background checks. It is safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady flips the manual readiness switch, e.g. to false while draining.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service is marked ready and every readiness
// check passes.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	for _, c := range h.byKind(Readiness) {
		if c.status() != "" {
			return false
		}
	}
	return true
}

func (h *Health) byKind(kind Kind) []*check {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []*check
	for _, c := range h.checks {
		if c.kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// LiveEndpoint serves /livez: 200 when every liveness check passes, 503
// otherwise.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeReport(w, h.byKind(Liveness), "")
}

// ReadyEndpoint serves /readyz: 200 when the service is marked ready and every
// readiness check passes, 503 otherwise.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	var notReady string
	if !h.ready.Load() {
		notReady = "service is not ready"
	}
	writeReport(w, h.byKind(Readiness), notReady)
}

// writeReport writes {"status": "...", "checks": {"name": "ok" | reason}}.
func writeReport(w http.ResponseWriter, checks []*check, notReady string) {
	healthy := notReady == ""
	results := make([]string, len(checks))
	for i, c := range checks {
		results[i] = c.status()
		if results[i] != "" {
			healthy = false
		}
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) {
			if healthy {
				e.Str("ok")
			} else {
				e.Str("unhealthy")
			}
		})
		if len(checks) == 0 && notReady == "" {
			return
		}
		e.Field("checks", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				if notReady != "" {
					e.Field("_readiness", func(e *jx.Encoder) { e.Str(notReady) })
				}
				for i, c := range checks {
					result := results[i]
					if result == "" {
						result = "ok"
					}
					e.Field(c.name, func(e *jx.Encoder) { e.Str(result) })
				}
			})
		})
	})

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
