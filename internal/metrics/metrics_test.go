package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()
	require.NotNil(t, visitsTotal)
	require.NotNil(t, fetchRetriesTotal)
	require.NotNil(t, activeVisits)
}

func TestObserversDoNotPanic(t *testing.T) {
	Init()
	ObserveVisit(OutcomeCommitted)
	ObserveVisit(OutcomeAbandoned)
	ObserveVisit(OutcomeSkipped)
	ObserveFetchRetry()
	ObserveIngest("visited")
	IncActiveVisits()
	DecActiveVisits()
}

func TestHandlerServesMetrics(t *testing.T) {
	Init()
	ObserveVisit(OutcomeCommitted)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), "genealogy_visits_total")
}
