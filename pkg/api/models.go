package api

// RouteRequest is the JSON body for POST /api/v1/route.
type RouteRequest struct {
	Profile string     `json:"profile,omitempty"`
	Start   LatLngJSON `json:"start"`
	End     LatLngJSON `json:"end"`
}

// RoutesRequest is the JSON body for POST /api/v1/routes.
type RoutesRequest struct {
	Profile string       `json:"profile,omitempty"`
	Start   LatLngJSON   `json:"start"`
	Ends    []LatLngJSON `json:"ends"`
}

// LatLngJSON represents a lat/lng pair in JSON.
type LatLngJSON struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RouteResponse is the JSON response for a successful route query.
type RouteResponse struct {
	TotalDistanceMeters float64       `json:"total_distance_meters"`
	TotalTimeSeconds    float64       `json:"total_time_seconds"`
	Weight              float64       `json:"weight"`
	Segments            []SegmentJSON `json:"segments"`
}

// RoutesResponse holds one entry per requested end, null when unreachable.
type RoutesResponse struct {
	Routes []*RouteResponse `json:"routes"`
}

// SegmentJSON represents a road segment in the response.
type SegmentJSON struct {
	DistanceMeters float64      `json:"distance_meters"`
	TimeSeconds    float64      `json:"time_seconds"`
	Geometry       []LatLngJSON `json:"geometry"`
}

// ErrorResponse is the JSON response for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// StatsResponse is the JSON response for GET /api/v1/stats.
type StatsResponse struct {
	NumVertices uint32         `json:"num_vertices"`
	NumRoads    int            `json:"num_roads"`
	Profiles    []ProfileStats `json:"profiles"`
}

// ProfileStats describes one loaded contracted graph.
type ProfileStats struct {
	Name     string `json:"name"`
	Metric   string `json:"metric"`
	NumEdges uint32 `json:"num_edges"`
}

// HealthResponse is the JSON response for GET /api/v1/health.
type HealthResponse struct {
	Status string `json:"status"`
}
