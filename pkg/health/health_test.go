package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probe(h http.HandlerFunc) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	return rec
}

func TestReadyEndpoint_GateDown(t *testing.T) {
	h := New()

	rec := probe(h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	h.SetReady(true)
	rec = probe(h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{}}`, rec.Body.String())
}

func TestReadyEndpoint_FailingCheck(t *testing.T) {
	h := New()
	h.SetReady(true)
	h.AddReadinessCheck("database", time.Second, func(context.Context) error {
		return errors.New("connection refused")
	})

	h.Start(context.Background(), time.Hour)
	defer h.Stop()

	require.Eventually(t, func() bool {
		return probe(h.ReadyEndpoint).Code == http.StatusServiceUnavailable
	}, time.Second, 10*time.Millisecond)

	rec := probe(h.ReadyEndpoint)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestLiveEndpoint_IndependentOfGate(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, func(context.Context) error {
		return nil
	})

	h.Start(context.Background(), time.Hour)
	defer h.Stop()

	// Liveness ignores the readiness gate.
	rec := probe(h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"goroutines":"ok"`)
}

func TestCheck_RecoversAfterFailure(t *testing.T) {
	var fail bool
	c := newCheck("flaky", time.Second, func(context.Context) error {
		if fail {
			return errors.New("transient")
		}
		return nil
	})

	fail = true
	c.run(context.Background())
	assert.False(t, c.healthy.Load())

	fail = false
	c.run(context.Background())
	assert.True(t, c.healthy.Load())
}

func TestGoroutineCountCheck(t *testing.T) {
	require.NoError(t, GoroutineCountCheck(1_000_000)(context.Background()))
	require.Error(t, GoroutineCountCheck(0)(context.Background()))
}
