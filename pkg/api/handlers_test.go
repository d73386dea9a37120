package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azybler/road_router/pkg/config"
	"github.com/azybler/road_router/pkg/routing"
)

// mockRouter implements routing.Router for testing.
type mockRouter struct {
	result  *routing.RouteResult
	results []*routing.RouteResult
	err     error
	panics  bool

	profile string
	ends    int
}

func (m *mockRouter) Route(ctx context.Context, profile string, start, end routing.LatLng) (*routing.RouteResult, error) {
	if m.panics {
		panic("boom")
	}
	m.profile = profile
	return m.result, m.err
}

func (m *mockRouter) RouteMany(ctx context.Context, profile string, start routing.LatLng, ends []routing.LatLng) ([]*routing.RouteResult, error) {
	m.profile, m.ends = profile, len(ends)
	return m.results, m.err
}

func (m *mockRouter) Profiles() []string { return []string{"car"} }

func sampleResult() *routing.RouteResult {
	return &routing.RouteResult{
		TotalDistanceMeters: 1234.5,
		TotalTimeSeconds:    98.7,
		Weight:              98.7,
		Segments: []routing.Segment{{
			DistanceMeters: 1234.5,
			TimeSeconds:    98.7,
			Geometry:       []routing.LatLng{{Lat: 1.3, Lng: 103.8}, {Lat: 1.35, Lng: 103.85}},
		}},
	}
}

func post(h http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

const validRoute = `{"start":{"lat":1.3,"lng":103.8},"end":{"lat":1.35,"lng":103.85}}`

func TestHandleRouteSuccess(t *testing.T) {
	mock := &mockRouter{result: sampleResult()}
	h := NewHandlers(mock, StatsResponse{})

	w := post(h.HandleRoute, "/api/v1/route", `{"profile":"bicycle","start":{"lat":1.3,"lng":103.8},"end":{"lat":1.35,"lng":103.85}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp RouteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1234.5, resp.TotalDistanceMeters)
	assert.Equal(t, 98.7, resp.TotalTimeSeconds)
	require.Len(t, resp.Segments, 1)
	assert.Len(t, resp.Segments[0].Geometry, 2)
	assert.Equal(t, "bicycle", mock.profile)
}

func TestHandleRouteBadRequests(t *testing.T) {
	h := NewHandlers(&mockRouter{}, StatsResponse{})

	w := post(h.HandleRoute, "/api/v1/route", "not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/route", strings.NewReader(validRoute))
	rec := httptest.NewRecorder()
	h.HandleRoute(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing content type")

	w = post(h.HandleRoute, "/api/v1/route", `{"start":{"lat":91.0,"lng":103.8},"end":{"lat":1.35,"lng":103.85}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_coordinates", errorCode(t, w))

	w = post(h.HandleRoute, "/api/v1/route", `{"start":{"lat":1.3,"lng":103.8},"end":{"lat":1.35,"lng":181}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(h.HandleRoute, "/api/v1/route", `{"start":{"lat":1.3,"lng":103.8},"end":{"lat":1.35,"lng":103.85},"pad":"`+strings.Repeat("x", 2000)+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "body over the limit")
}

func TestHandleRouteErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{routing.ErrNoRoute, http.StatusNotFound, "no_route_found"},
		{errors.Wrap(routing.ErrPointTooFar, "(1, 2)"), http.StatusUnprocessableEntity, "point_too_far_from_road"},
		{errors.Wrapf(routing.ErrUnknownProfile, "%q", "boat"), http.StatusBadRequest, "unknown_profile"},
		{context.DeadlineExceeded, http.StatusServiceUnavailable, "request_timeout"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			h := NewHandlers(&mockRouter{err: tt.err}, StatsResponse{})
			w := post(h.HandleRoute, "/api/v1/route", validRoute)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}
}

func TestHandleRoutes(t *testing.T) {
	mock := &mockRouter{results: []*routing.RouteResult{sampleResult(), nil}}
	h := NewHandlers(mock, StatsResponse{}, WithMaxTargets(2))

	w := post(h.HandleRoutes, "/api/v1/routes", `{"start":{"lat":1.3,"lng":103.8},"ends":[{"lat":1.35,"lng":103.85},{"lat":1.36,"lng":103.86}]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp RoutesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Routes, 2)
	assert.Equal(t, 1234.5, resp.Routes[0].TotalDistanceMeters)
	assert.Nil(t, resp.Routes[1])
	assert.Equal(t, 2, mock.ends)
	assert.Equal(t, "", mock.profile)

	w = post(h.HandleRoutes, "/api/v1/routes", `{"start":{"lat":1.3,"lng":103.8},"ends":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(h.HandleRoutes, "/api/v1/routes", `{"start":{"lat":1.3,"lng":103.8},"ends":[{"lat":1,"lng":1},{"lat":1,"lng":1},{"lat":1,"lng":1}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "too many ends")

	w = post(h.HandleRoutes, "/api/v1/routes", `{"start":{"lat":1.3,"lng":103.8},"ends":[{"lat":100,"lng":1}]}`)
	assert.Equal(t, "invalid_coordinates", errorCode(t, w))
}

func TestHandleHealthAndStats(t *testing.T) {
	stats := StatsResponse{
		NumVertices: 500000,
		NumRoads:    700000,
		Profiles:    []ProfileStats{{Name: "car", Metric: "time", NumEdges: 900000}},
	}
	h := NewHandlers(&mockRouter{}, stats)

	w := httptest.NewRecorder()
	h.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = httptest.NewRecorder()
	h.HandleStats(w, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	var resp StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, stats, resp)
}

func TestServerMiddleware(t *testing.T) {
	quiet := logrus.New()
	quiet.Out = io.Discard
	cfg := config.Default().Server
	cfg.CORSOrigin = "https://example.org"

	srv := NewServer(cfg, NewHandlers(&mockRouter{result: sampleResult()}, StatsResponse{}), quiet)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/route", strings.NewReader(validRoute))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "https://example.org", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/route", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	panicky := NewServer(cfg, NewHandlers(&mockRouter{panics: true}, StatsResponse{}), quiet)
	req = httptest.NewRequest(http.MethodPost, "/api/v1/route", strings.NewReader(validRoute))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	panicky.Handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestServerConcurrencyLimit(t *testing.T) {
	quiet := logrus.New()
	quiet.Out = io.Discard
	cfg := config.Default().Server
	cfg.MaxConcurrent = 1

	sem := make(chan struct{}, cfg.MaxConcurrent)
	sem <- struct{}{}
	h := withMiddleware(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run while the limit is reached")
	}, sem, cfg, quiet)

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}
