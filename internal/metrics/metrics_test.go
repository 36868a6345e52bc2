package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.RateLimited("login")
	m.RateLimited("login")
	m.TaskFailed("email")
	m.Transitioned("approved")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RateLimitRejections.WithLabelValues("login")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TaskFailures.WithLabelValues("email")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ListingTransitions.WithLabelValues("approved")))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RateLimited("login")
		m.TaskFailed("email")
		m.Transitioned("sold")
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.Transitioned("pending")

	e := echo.New()
	e.GET("/metrics", m.Handler())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `listing_transitions_total{to="pending"} 1`)
}
