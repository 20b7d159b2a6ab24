package echo

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.pilab.hu/presence/services"
)

type stubPresence struct {
	active   int
	distinct int
	counts   map[string]int
}

func (s *stubPresence) ActiveConnections() int                  { return s.active }
func (s *stubPresence) DistinctActiveIdentities() int           { return s.distinct }
func (s *stubPresence) PerIdentityActiveCounts() map[string]int { return s.counts }

// newTestAPI builds the API with live in-memory counts and no persistence,
// the degraded mode the error-handling policy requires to stay serviceable.
func newTestAPI(p *stubPresence) *echo.Echo {
	stats := services.NewStatsService(p, nil, nil, nil, nil, nil, time.UTC)
	feedback := services.NewFeedbackService(nil)
	api := NewStatsAPI(stats, feedback, nil, nil)

	e := echo.New()
	api.RegisterRoutes(e)
	return e
}

func doRequest(t *testing.T, e *echo.Echo, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return rec, payload
}

func TestActiveClientsHandler(t *testing.T) {
	e := newTestAPI(&stubPresence{active: 4})

	rec, payload := doRequest(t, e, http.MethodGet, "/api/active-clients", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, float64(4), payload["activeClients"])
	assert.NotEmpty(t, payload["timestamp"])
}

func TestStatusHandler_DegradedStoreReadsZero(t *testing.T) {
	e := newTestAPI(&stubPresence{active: 2, distinct: 1})

	rec, payload := doRequest(t, e, http.MethodGet, "/status/active-clients", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, float64(2), payload["activeConnections"])
	assert.Equal(t, float64(1), payload["distinctActiveClientIds"])
	assert.Equal(t, float64(0), payload["dailyUniqueToday"])
	assert.Equal(t, float64(0), payload["totalEverUsers"])
}

func TestClientIDCountsHandler(t *testing.T) {
	e := newTestAPI(&stubPresence{counts: map[string]int{"idA": 2, "idB": 1}})

	rec, payload := doRequest(t, e, http.MethodGet, "/status/clientid-counts", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), payload["totalDistinctClientIds"])

	counts, ok := payload["counts"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(2), counts["idA"])
	assert.Equal(t, float64(1), counts["idB"])
}

func TestUsageAverageHandler_StoreUnavailable(t *testing.T) {
	e := newTestAPI(&stubPresence{})

	rec, payload := doRequest(t, e, http.MethodGet, "/status/usage-average", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, payload["success"])
	assert.Equal(t, "DB not available", payload["message"])
}

func TestDailyStatsHandler_StoreUnavailable(t *testing.T) {
	e := newTestAPI(&stubPresence{})

	rec, payload := doRequest(t, e, http.MethodGet, "/status/daily-stats", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, payload["success"])
}

func TestDailyStatsHandler_RejectsBadLimit(t *testing.T) {
	e := newTestAPI(&stubPresence{})

	rec, _ := doRequest(t, e, http.MethodGet, "/status/daily-stats?limit=bogus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doRequest(t, e, http.MethodGet, "/status/daily-stats?limit=-3", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitFeedbackHandler_RejectsIncompletePayload(t *testing.T) {
	e := newTestAPI(&stubPresence{})

	rec, payload := doRequest(t, e, http.MethodPost, "/api/feedback", `{"name":"only a name"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, payload["success"])
}

func TestSubmitFeedbackHandler_AcceptsBothShapes(t *testing.T) {
	e := newTestAPI(&stubPresence{})

	rec, payload := doRequest(t, e, http.MethodPost, "/api/feedback",
		`{"name":"Somchai","phone":"0812345678","feedback":"Great"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, payload["success"])

	rec, payload = doRequest(t, e, http.MethodPost, "/api/feedback",
		`{"id":"c-abc","feedback":"Legacy"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, payload["success"])
}

func TestListFeedbackHandler_StoreUnavailable(t *testing.T) {
	e := newTestAPI(&stubPresence{})

	rec, payload := doRequest(t, e, http.MethodGet, "/api/feedback", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, payload["success"])
}

func TestHealthHandler_ReportsMongoUnavailable(t *testing.T) {
	e := newTestAPI(&stubPresence{})

	rec, payload := doRequest(t, e, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", payload["status"])
	assert.Equal(t, "unavailable", payload["mongo"])
}
