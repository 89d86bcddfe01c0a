package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autotrader/internal/events"
	"autotrader/internal/market"
	"autotrader/internal/order"
	"autotrader/internal/session"
	"autotrader/internal/strategy"
	"autotrader/pkg/db"
)

type flatProvider struct{}

func (flatProvider) GetSnapshot(context.Context, string) (market.Snapshot, error) {
	return market.Snapshot{Instrument: "BTC-USDT", LastPrice: 100, Volume: 10, At: time.Now()}, nil
}

func (flatProvider) GetHistory(_ context.Context, _ string, bars int) (market.Series, error) {
	s := make(market.Series, bars)
	for i := range s {
		s[i] = market.Bar{Open: 100, High: 100, Low: 100, Close: 100, Volume: 10}
	}
	return s, nil
}

type richClient struct{}

func (richClient) Balance(context.Context, string, string) (float64, error) { return 1_000_000, nil }
func (richClient) Place(_ context.Context, venue string, _ order.Intent, notional, price float64) (order.ExecutionResult, error) {
	return order.ExecutionResult{Status: order.StatusExecuted, Venue: venue, FilledQty: notional / price, FillPrice: price}, nil
}
func (richClient) MinNotional(string) float64 { return 0 }

type holdEvaluator struct{}

func (holdEvaluator) Name() string { return "hold" }
func (holdEvaluator) Evaluate(market.Snapshot, market.Series) (strategy.Vote, error) {
	return strategy.Vote{Strategy: "hold", Direction: strategy.Hold}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	database, err := db.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.ApplyMigrations(database))

	router := order.NewRouter(order.DefaultPolicy(), order.NewGuard(richClient{}), order.NewPool(4))

	cfg := session.DefaultConfig()
	cfg.TickInterval = time.Hour

	orch := session.NewOrchestrator(context.Background(), cfg, session.Deps{
		Store:      database.Queries(),
		Gate:       session.StaticGate{Denied: map[string]string{"mallory": "subscription expired"}},
		Provider:   flatProvider{},
		Router:     router,
		Evaluators: []strategy.WeightedEvaluator{{Evaluator: holdEvaluator{}, Weight: 1.0}},
	})

	return NewServer(orch, events.NewBus(), SystemMeta{
		UseMockFeed: true,
		Instruments: []string{"BTC-USDT"},
		Venues:      []string{"binance", "kraken"},
		Version:     "test",
	})
}

func doJSON(t *testing.T, s *Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w.Code, out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	code, body := doJSON(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)

	code, body := doJSON(t, s, http.MethodPost, "/api/sessions/alice/start", `{"mode":"paper"}`)
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, body["session_id"])

	code, body = doJSON(t, s, http.MethodGet, "/api/sessions/alice", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["active"])

	code, body = doJSON(t, s, http.MethodPost, "/api/sessions/alice/stop", "")
	require.Equal(t, http.StatusOK, code)
	assert.NotContains(t, body, "error")

	// Second stop is the defined no-active-session result, still 200.
	code, body = doJSON(t, s, http.MethodPost, "/api/sessions/alice/stop", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["no_active_session"])

	code, body = doJSON(t, s, http.MethodGet, "/api/sessions/alice", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["active"])
}

func TestStartDeniedUser(t *testing.T) {
	s := newTestServer(t)

	code, body := doJSON(t, s, http.MethodPost, "/api/sessions/mallory/start", "")
	assert.Equal(t, http.StatusForbidden, code)
	assert.Contains(t, body["error"], "subscription expired")
}

func TestStartRejectsUnknownMode(t *testing.T) {
	s := newTestServer(t)

	code, body := doJSON(t, s, http.MethodPost, "/api/sessions/alice/start", `{"mode":"turbo"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["error"], "mode")
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	code, body := doJSON(t, s, http.MethodGet, "/api/metrics", "")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "ticks_processed")
	assert.Contains(t, body, "active_sessions")
}

func TestSystemStatus(t *testing.T) {
	s := newTestServer(t)

	code, body := doJSON(t, s, http.MethodGet, "/api/system/status", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["use_mock_feed"])
	assert.Equal(t, "test", body["version"])
}
