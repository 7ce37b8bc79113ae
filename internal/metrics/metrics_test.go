package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanGenerationCounters(t *testing.T) {
	m := New()
	m.ObservePlanGeneration(OutcomeCompleted, ModeMock)
	m.ObservePlanGeneration(OutcomeCompleted, ModeMock)
	m.ObservePlanGeneration(OutcomeFailed, ModeLive)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.planGenerations.WithLabelValues(OutcomeCompleted, ModeMock)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.planGenerations.WithLabelValues(OutcomeFailed, ModeLive)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.planGenerations.WithLabelValues(OutcomeMalformed, ModeLive)))
}

func TestWorkoutsPersistedIgnoresNonPositive(t *testing.T) {
	m := New()
	m.AddWorkoutsPersisted(16)
	m.AddWorkoutsPersisted(0)
	m.AddWorkoutsPersisted(-3)
	assert.Equal(t, 16.0, testutil.ToFloat64(m.workoutsPersisted))
}

func TestHTTPRequestsUnmatchedRoute(t *testing.T) {
	m := New()
	m.ObserveHTTPRequest(http.MethodGet, "", http.StatusNotFound, time.Millisecond)
	m.ObserveHTTPRequest(http.MethodPost, "/api/v1/plans", http.StatusCreated, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "unmatched", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/api/v1/plans", "201")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObservePlanGeneration(OutcomeCompleted, ModeMock)
		m.ObserveGenerationDuration(ModeMock, time.Second)
		m.AddWorkoutsPersisted(1)
		m.ObserveHTTPRequest("GET", "/", 200, time.Second)
	})
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObservePlanGeneration(OutcomeCompleted, ModeLive)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `pb_assistant_plan_generations_total{mode="live",outcome="completed"} 1`)
}
