package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type report struct {
	Status string
	Checks map[string]string
}

func decodeReport(t *testing.T, w *httptest.ResponseRecorder) report {
	t.Helper()

	r := report{Checks: map[string]string{}}
	err := jx.DecodeBytes(w.Body.Bytes()).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "status":
			v, err := d.Str()
			r.Status = v
			return err
		case "checks":
			return d.Obj(func(d *jx.Decoder, name string) error {
				v, err := d.Str()
				r.Checks[name] = v
				return err
			})
		default:
			return d.Skip()
		}
	})
	require.NoError(t, err)
	return r
}

func passing() CheckFunc {
	return func(context.Context) error { return nil }
}

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func serve(h http.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

func runN(h *Health, n int) {
	for range n {
		for _, c := range h.checks {
			c.run(context.Background(), h.lg)
		}
	}
}

func TestLiveEndpoint(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]CheckFunc
		runs   int
		code   int
		status string
		want   map[string]string
	}{
		{
			name:   "no checks",
			code:   http.StatusOK,
			status: "ok",
			want:   map[string]string{},
		},
		{
			name:   "all passing",
			checks: map[string]CheckFunc{"goroutines": passing()},
			runs:   1,
			code:   http.StatusOK,
			status: "ok",
			want:   map[string]string{"goroutines": "ok"},
		},
		{
			name:   "below failure threshold",
			checks: map[string]CheckFunc{"flaky": failing("temporary")},
			runs:   2,
			code:   http.StatusOK,
			status: "ok",
			want:   map[string]string{"flaky": "ok"},
		},
		{
			name:   "past failure threshold",
			checks: map[string]CheckFunc{"goroutines": failing("too many")},
			runs:   3,
			code:   http.StatusServiceUnavailable,
			status: "unhealthy",
			want:   map[string]string{"goroutines": "too many"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(nil)
			for name, fn := range tt.checks {
				h.AddLivenessCheck(name, time.Second, fn)
			}
			runN(h, tt.runs)

			w := serve(h.LiveEndpoint)
			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			r := decodeReport(t, w)
			assert.Equal(t, tt.status, r.Status)
			assert.Equal(t, tt.want, r.Checks)
		})
	}
}

func TestReadyEndpoint(t *testing.T) {
	h := New(nil)
	h.AddReadinessCheck("upstream", time.Second, passing())

	w := serve(h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, "starts not ready")
	assert.Equal(t, "service is not ready", decodeReport(t, w).Checks["_readiness"])
	assert.False(t, h.IsReady())

	h.SetReady(true)
	w = serve(h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{"upstream": "ok"}, decodeReport(t, w).Checks)
	assert.True(t, h.IsReady())

	h.SetReady(false)
	assert.Equal(t, http.StatusServiceUnavailable, serve(h.ReadyEndpoint).Code)
}

func TestReadyEndpoint_IgnoresLivenessChecks(t *testing.T) {
	h := New(nil)
	h.AddLivenessCheck("goroutines", time.Second, failing("leak"))
	h.AddReadinessCheck("upstream", time.Second, passing())
	h.SetReady(true)
	runN(h, 3)

	assert.Equal(t, http.StatusOK, serve(h.ReadyEndpoint).Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(h.LiveEndpoint).Code)
}

func TestCheck_Recovers(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	var broken atomic.Bool
	broken.Store(true)

	h := New(zap.New(core))
	h.AddReadinessCheck("upstream", time.Second, func(context.Context) error {
		if broken.Load() {
			return errors.New("connection refused")
		}
		return nil
	}, WithThresholds(Thresholds{Failure: 2, Success: 2}))
	h.SetReady(true)

	runN(h, 2)
	assert.False(t, h.IsReady())
	assert.Equal(t, "connection refused", decodeReport(t, serve(h.ReadyEndpoint)).Checks["upstream"])

	broken.Store(false)
	runN(h, 1)
	assert.False(t, h.IsReady(), "one success is below the threshold")
	runN(h, 1)
	assert.True(t, h.IsReady())

	msgs := make([]string, 0, logs.Len())
	for _, e := range logs.All() {
		msgs = append(msgs, e.Message)
	}
	assert.Equal(t, []string{"Health check failing", "Health check recovered"}, msgs)
}

func TestCheck_Timeout(t *testing.T) {
	h := New(nil)
	h.AddReadinessCheck("slow", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, WithThresholds(Thresholds{Failure: 1}))

	runN(h, 1)
	assert.Contains(t, h.checks[0].status(), "deadline exceeded")
}

func TestStartStop(t *testing.T) {
	var calls atomic.Int32
	h := New(nil)
	h.AddLivenessCheck("counter", time.Second, func(context.Context) error {
		calls.Add(1)
		return nil
	})

	h.Start(context.Background(), 5*time.Millisecond)
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)

	h.Stop()
	h.Stop()
	time.Sleep(20 * time.Millisecond)
	stopped := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, calls.Load())
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestPingCheck(t *testing.T) {
	require.NoError(t, PingCheck("catalog", fakePinger{})(context.Background()))

	err := PingCheck("catalog", fakePinger{err: errors.New("503")})(context.Background())
	require.Error(t, err)
	assert.Equal(t, "ping catalog: 503", err.Error())
}

func TestGoroutineCountCheck(t *testing.T) {
	require.NoError(t, GoroutineCountCheck(1_000_000)(context.Background()))
	require.Error(t, GoroutineCountCheck(0)(context.Background()))
}
