package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetops/lpgdispatch/internal/environment"
	"github.com/fleetops/lpgdispatch/internal/orchestrator"
	"github.com/fleetops/lpgdispatch/internal/snapshot"
	"github.com/fleetops/lpgdispatch/internal/telemetry"
	"github.com/fleetops/lpgdispatch/pkg/messaging"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	env := environment.New(time.Now())
	cache, err := snapshot.NewCache("")
	require.NoError(t, err)
	telem := telemetry.NewWriter("", "", "", "")
	bus := messaging.NewLocalBus()
	orch := orchestrator.New(env, bus, cache, telem, nil, 1000)

	cfg := DefaultConfig()
	cfg.RateLimitMax = 1000
	return New(cfg, orch, bus)
}

func TestGetStatus(t *testing.T) {
	t.Run("reports not running before start", func(t *testing.T) {
		gw := newTestGateway(t)
		req := httptest.NewRequest(http.MethodGet, "/simulation/status", nil)
		rec := httptest.NewRecorder()
		gw.Handler().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, false, body["running"])
	})
}

func TestPostSpeedValidation(t *testing.T) {
	t.Run("rejects an out-of-range speed", func(t *testing.T) {
		gw := newTestGateway(t)
		payload, _ := json.Marshal(speedRequest{Speed: 1})
		req := httptest.NewRequest(http.MethodPost, "/simulation/speed", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		gw.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("accepts and applies a valid speed", func(t *testing.T) {
		gw := newTestGateway(t)
		payload, _ := json.Marshal(speedRequest{Speed: 500})
		req := httptest.NewRequest(http.MethodPost, "/simulation/speed", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		gw.Handler().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, float64(500), body["currentSpeed"])
	})
}

func TestPostOrderPublishesIntent(t *testing.T) {
	t.Run("accepts a well-formed order", func(t *testing.T) {
		gw := newTestGateway(t)
		payload, _ := json.Marshal(orderRequest{OrderID: "o1", X: 3, Y: 4, RequestedM3: 10, LimitHours: 24})
		req := httptest.NewRequest(http.MethodPost, "/order", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		gw.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusAccepted, rec.Code)
	})

	t.Run("rejects a missing order id", func(t *testing.T) {
		gw := newTestGateway(t)
		payload, _ := json.Marshal(map[string]interface{}{"requestedM3": 10, "limitHours": 24})
		req := httptest.NewRequest(http.MethodPost, "/order", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		gw.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRateLimiter(t *testing.T) {
	t.Run("blocks requests once the window's quota is exhausted", func(t *testing.T) {
		rl := &rateLimiter{requests: make(map[string][]time.Time), limit: 2, window: time.Minute}
		assert.True(t, rl.allow("client-a"))
		assert.True(t, rl.allow("client-a"))
		assert.False(t, rl.allow("client-a"))
	})

	t.Run("tracks each key independently", func(t *testing.T) {
		rl := &rateLimiter{requests: make(map[string][]time.Time), limit: 1, window: time.Minute}
		assert.True(t, rl.allow("client-a"))
		assert.True(t, rl.allow("client-b"))
	})
}

func TestCorrelationIDPropagation(t *testing.T) {
	t.Run("echoes a caller-supplied correlation id", func(t *testing.T) {
		gw := newTestGateway(t)
		req := httptest.NewRequest(http.MethodGet, "/simulation/status", nil)
		req.Header.Set("X-Correlation-ID", "corr-123")
		rec := httptest.NewRecorder()
		gw.Handler().ServeHTTP(rec, req)

		assert.Equal(t, "corr-123", rec.Header().Get("X-Correlation-ID"))
	})
}
