package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetActiveRegime(t *testing.T) {
	r := NewRegistry()
	all := []string{"calm", "normal", "elevated", "high", "extreme"}

	r.SetActiveRegime("elevated", all)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ActiveRegime.WithLabelValues("elevated")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.ActiveRegime.WithLabelValues("calm")))

	// Switching clears the previous regime.
	r.SetActiveRegime("extreme", all)
	assert.Equal(t, 0.0, testutil.ToFloat64(r.ActiveRegime.WithLabelValues("elevated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ActiveRegime.WithLabelValues("extreme")))
}

func TestHandlerScrapes(t *testing.T) {
	r := NewRegistry()
	r.ExitSignals.WithLabelValues("stop_loss").Inc()
	r.OpenPositions.Set(3)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "optiondesk_exit_signals_total")
	assert.Contains(t, body, "optiondesk_open_positions 3")
}
