package api

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"mime"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/azybler/road_router/pkg/routing"
)

const (
	maxRouteBody  = 1024
	maxRoutesBody = 64 * 1024
)

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	router     routing.Router
	stats      StatsResponse
	maxTargets int
	logger     logrus.FieldLogger
}

// Option configures Handlers.
type Option func(*Handlers)

// WithMaxTargets limits the number of ends of a one-to-many query.
func WithMaxTargets(n int) Option {
	return func(h *Handlers) { h.maxTargets = n }
}

// WithLogger sets the logger used for unexpected errors.
func WithLogger(l logrus.FieldLogger) Option {
	return func(h *Handlers) { h.logger = l }
}

// NewHandlers creates handlers with the given router.
func NewHandlers(router routing.Router, stats StatsResponse, opts ...Option) *Handlers {
	discard := logrus.New()
	discard.Out = io.Discard
	h := &Handlers{
		router:     router,
		stats:      stats,
		maxTargets: 100,
		logger:     discard,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleRoute handles POST /api/v1/route.
func (h *Handlers) HandleRoute(w http.ResponseWriter, r *http.Request) {
	var req RouteRequest
	if !decode(w, r, maxRouteBody, &req) {
		return
	}
	if err := validateCoord(req.Start); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "start")
		return
	}
	if err := validateCoord(req.End); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "end")
		return
	}

	result, err := h.router.Route(r.Context(), req.Profile, toLatLng(req.Start), toLatLng(req.End))
	if err != nil {
		h.writeRouteError(w, err)
		return
	}
	writeJSON(w, toResponse(result))
}

// HandleRoutes handles POST /api/v1/routes, routing from one start to many
// ends.
func (h *Handlers) HandleRoutes(w http.ResponseWriter, r *http.Request) {
	var req RoutesRequest
	if !decode(w, r, maxRoutesBody, &req) {
		return
	}
	if err := validateCoord(req.Start); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "start")
		return
	}
	if len(req.Ends) == 0 || len(req.Ends) > h.maxTargets {
		writeError(w, http.StatusBadRequest, "invalid_request", "ends")
		return
	}
	ends := make([]routing.LatLng, len(req.Ends))
	for i, e := range req.Ends {
		if err := validateCoord(e); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_coordinates", "ends")
			return
		}
		ends[i] = toLatLng(e)
	}

	results, err := h.router.RouteMany(r.Context(), req.Profile, toLatLng(req.Start), ends)
	if err != nil {
		h.writeRouteError(w, err)
		return
	}
	resp := RoutesResponse{Routes: make([]*RouteResponse, len(results))}
	for i, res := range results {
		if res != nil {
			resp.Routes[i] = toResponse(res)
		}
	}
	writeJSON(w, resp)
}

// HandleHealth handles GET /api/v1/health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, HealthResponse{Status: "ok"})
}

// HandleStats handles GET /api/v1/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.stats)
}

func (h *Handlers) writeRouteError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, routing.ErrUnknownProfile):
		writeError(w, http.StatusBadRequest, "unknown_profile", "profile")
	case errors.Is(err, routing.ErrPointTooFar):
		writeError(w, http.StatusUnprocessableEntity, "point_too_far_from_road", "")
	case errors.Is(err, routing.ErrNoRoute):
		writeError(w, http.StatusNotFound, "no_route_found", "")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request_timeout", "")
	default:
		h.logger.WithError(err).Error("route query failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "")
	}
}

// decode enforces the content type and a body limit, and writes the error
// response itself when it returns false.
func decode(w http.ResponseWriter, r *http.Request, limit int64, v any) bool {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return false
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return false
	}
	return true
}

func toLatLng(ll LatLngJSON) routing.LatLng {
	return routing.LatLng{Lat: ll.Lat, Lng: ll.Lng}
}

func toResponse(result *routing.RouteResult) *RouteResponse {
	resp := &RouteResponse{
		TotalDistanceMeters: result.TotalDistanceMeters,
		TotalTimeSeconds:    result.TotalTimeSeconds,
		Weight:              result.Weight,
		Segments:            make([]SegmentJSON, 0, len(result.Segments)),
	}
	for _, seg := range result.Segments {
		geom := make([]LatLngJSON, len(seg.Geometry))
		for i, ll := range seg.Geometry {
			geom[i] = LatLngJSON{Lat: ll.Lat, Lng: ll.Lng}
		}
		resp.Segments = append(resp.Segments, SegmentJSON{
			DistanceMeters: seg.DistanceMeters,
			TimeSeconds:    seg.TimeSeconds,
			Geometry:       geom,
		})
	}
	return resp
}

func validateCoord(ll LatLngJSON) error {
	if math.IsNaN(ll.Lat) || math.IsNaN(ll.Lng) || math.IsInf(ll.Lat, 0) || math.IsInf(ll.Lng, 0) {
		return errors.New("coordinates must be finite numbers")
	}
	if ll.Lat < -90 || ll.Lat > 90 || ll.Lng < -180 || ll.Lng > 180 {
		return errors.New("coordinates out of range")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, field string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: code, Field: field})
}
