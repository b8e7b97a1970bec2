package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passingCheck() CheckFunc {
	return func(_ context.Context) error { return nil }
}

func failingCheck(msg string) CheckFunc {
	return func(_ context.Context) error { return errors.New(msg) }
}

func probeStatus(t *testing.T, endpoint http.HandlerFunc, path string) (int, statusResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	endpoint(w, httptest.NewRequest(http.MethodGet, path, nil))

	var body statusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return w.Code, body
}

func TestLiveEndpoint_AllPassing(t *testing.T) {
	h := New()
	h.AddLivenessCheck("check1", time.Second, passingCheck())
	h.AddLivenessCheck("check2", time.Second, passingCheck())

	// Probes start healthy before any run.
	code, body := probeStatus(t, h.LiveEndpoint, "/livez")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
}

func TestLiveEndpoint_FailureThreshold(t *testing.T) {
	h := New()
	h.AddLivenessCheck("db", time.Second, failingCheck("connection refused"))
	p := h.liveness[0]
	ctx := context.Background()

	// Two failures stay below the threshold of three.
	p.run(ctx)
	p.run(ctx)
	code, _ := probeStatus(t, h.LiveEndpoint, "/livez")
	assert.Equal(t, http.StatusOK, code)

	// The third consecutive failure flips the probe.
	p.run(ctx)
	code, body := probeStatus(t, h.LiveEndpoint, "/livez")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "connection refused", body.Checks["db"])
}

func TestReadyEndpoint_ManualFlag(t *testing.T) {
	h := New()
	h.AddReadinessCheck("cache", time.Second, passingCheck())

	// Not ready until SetReady(true).
	code, body := probeStatus(t, h.ReadyEndpoint, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body.Checks, "_readiness")

	h.SetReady(true)
	code, body = probeStatus(t, h.ReadyEndpoint, "/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)

	// Draining flips it back.
	h.SetReady(false)
	code, _ = probeStatus(t, h.ReadyEndpoint, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestReadyEndpoint_OneFailingCheck(t *testing.T) {
	h := New()
	h.AddReadinessCheck("db", time.Second, passingCheck())
	h.AddReadinessCheck("cache", time.Second, failingCheck("cache miss"))
	h.SetReady(true)

	ctx := context.Background()
	for range defaultFailureThreshold {
		h.readiness[1].run(ctx)
	}

	code, body := probeStatus(t, h.ReadyEndpoint, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body.Checks, "cache")
	assert.NotContains(t, body.Checks, "db")
}

func TestIsReady(t *testing.T) {
	h := New()
	h.AddReadinessCheck("db", time.Second, passingCheck())

	assert.False(t, h.IsReady(), "not ready before SetReady")
	h.SetReady(true)
	assert.True(t, h.IsReady())
	h.SetReady(false)
	assert.False(t, h.IsReady())
}

func TestProbeRecovery(t *testing.T) {
	failing := true
	h := New()
	h.AddLivenessCheck("flaky", time.Second, func(_ context.Context) error {
		if failing {
			return errors.New("down")
		}
		return nil
	})
	p := h.liveness[0]
	ctx := context.Background()

	for range defaultFailureThreshold {
		p.run(ctx)
	}
	assert.False(t, p.healthy.Load())

	// One success is enough to recover with the default success threshold.
	failing = false
	p.run(ctx)
	assert.True(t, p.healthy.Load())
}

func TestStopIsIdempotent(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutine", time.Second, passingCheck())

	h.Start(context.Background(), 100*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	h.Stop()
	h.Stop()
}

func TestEndpoints_NoChecks(t *testing.T) {
	h := New()
	h.SetReady(true)

	code, _ := probeStatus(t, h.LiveEndpoint, "/livez")
	assert.Equal(t, http.StatusOK, code)

	code, _ = probeStatus(t, h.ReadyEndpoint, "/readyz")
	assert.Equal(t, http.StatusOK, code)
}

func TestConcurrentAccess(t *testing.T) {
	h := New()
	h.AddLivenessCheck("concurrent", time.Second, failingCheck("err"))
	h.AddReadinessCheck("concurrent", time.Second, passingCheck())
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, 10*time.Millisecond)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				h.IsReady()
				h.LiveEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/livez", nil))
				h.ReadyEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", nil))
			}
		}()
	}
	wg.Wait()
	h.Stop()
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))

	err := GoroutineCountCheck(0)(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds threshold")
}

func TestGCMaxPauseCheck(t *testing.T) {
	assert.NoError(t, GCMaxPauseCheck(time.Hour)(context.Background()))
}
