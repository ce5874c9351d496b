package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/optiondesk/internal/application"
	"github.com/sawpanic/optiondesk/internal/config"
	"github.com/sawpanic/optiondesk/internal/metrics"
	"github.com/sawpanic/optiondesk/internal/providers"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	engine, err := application.New(config.Default(), application.Deps{
		Market:  providers.NewSimMarketData(1),
		Account: providers.NewStaticAccount(150_000, 300_000),
		Index:   providers.NewStaticIndex(17.5),
		Gateway: providers.NewPaperGateway(),
		Metrics: metrics.NewRegistry(),
	})
	require.NoError(t, err)

	_, err = engine.RunCycle(context.Background())
	require.NoError(t, err)

	return NewServer(":0", engine, metrics.NewRegistry())
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestStatusEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var st application.Status
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&st))
	assert.Equal(t, "normal", st.Regime)
	assert.Equal(t, "scale", st.Tier)
	assert.NotEmpty(t, st.Groups)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusRejectsNonGet(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
