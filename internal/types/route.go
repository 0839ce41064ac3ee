package types

import "fmt"

// Coordinate is a WGS84 position. Immutable value type.
type Coordinate struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
}

// Place is a route endpoint as supplied by the caller. Label is the
// human-readable name (e.g. "Bundaran HI") and drives copy localization.
type Place struct {
	Lat   float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng   float64 `json:"lng" validate:"gte=-180,lte=180"`
	Label string  `json:"label,omitempty" validate:"max=200"`
}

// Coordinate returns the position of the place without its label.
func (p Place) Coordinate() Coordinate {
	return Coordinate{Lat: p.Lat, Lng: p.Lng}
}

// Route is the walking route polyline in traversal order. DistanceMeters and
// DurationSeconds come from the caller's routing provider and are not
// recomputed.
type Route struct {
	Coordinates     []Coordinate `json:"coordinates" validate:"required,min=2,dive"`
	DistanceMeters  float64      `json:"distanceMeters" validate:"gte=0"`
	DurationSeconds float64      `json:"durationSeconds" validate:"gte=0"`
}

// AnalyzeRequest is the validated input of one pipeline invocation. Language
// optionally overrides the copy language (BCP 47 or Accept-Language syntax).
type AnalyzeRequest struct {
	Origin      Place  `json:"origin"`
	Destination Place  `json:"destination"`
	Route       Route  `json:"route"`
	Language    string `json:"language,omitempty" validate:"max=64"`
}

// WaypointMetadata describes the panorama the imagery provider matched to a
// waypoint.
type WaypointMetadata struct {
	PanoID            string  `json:"panoId"`
	Lat               float64 `json:"lat"`
	Lng               float64 `json:"lng"`
	CaptureDate       string  `json:"captureDate,omitempty"`
	DistanceFromQuery float64 `json:"distanceFromQuery"`
}

// WaypointImage is one fetched street-level image. Data is base64 encoded.
type WaypointImage struct {
	Heading  *int   `json:"heading,omitempty"`
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// Waypoint is a sampled point along the route and the unit of imagery and
// model analysis. Stages never mutate a Waypoint they received; they return
// updated copies.
type Waypoint struct {
	SegmentID   string            `json:"segmentId"`
	Lat         float64           `json:"lat"`
	Lng         float64           `json:"lng"`
	HasCoverage bool              `json:"hasCoverage"`
	Metadata    *WaypointMetadata `json:"metadata,omitempty"`
	AgeYears    *float64          `json:"ageYears,omitempty"`
	Images      []WaypointImage   `json:"images,omitempty"`
}

// Coordinate returns the waypoint position.
func (w Waypoint) Coordinate() Coordinate {
	return Coordinate{Lat: w.Lat, Lng: w.Lng}
}

// SegmentID formats the 1-based segment identifier ("seg_001").
func SegmentID(n int) string {
	return fmt.Sprintf("seg_%03d", n)
}

// SegmentScore holds the model's per-waypoint category scores. Each score is
// optional; a nil value means the model could not judge that category.
type SegmentScore struct {
	SegmentID     string   `json:"segmentId" validate:"required"`
	Accessibility *float64 `json:"accessibility" validate:"omitempty,gte=0,lte=100"`
	Sidewalk      *float64 `json:"sidewalk" validate:"omitempty,gte=0,lte=100"`
	Lighting      *float64 `json:"lighting" validate:"omitempty,gte=0,lte=100"`
	Crossing      *float64 `json:"crossing" validate:"omitempty,gte=0,lte=100"`
	Obstruction   *float64 `json:"obstruction" validate:"omitempty,gte=0,lte=100"`
	Traffic       *float64 `json:"traffic" validate:"omitempty,gte=0,lte=100"`
	Wayfinding    *float64 `json:"wayfinding" validate:"omitempty,gte=0,lte=100"`
}

// Score returns the score recorded for the given category, if any.
func (s SegmentScore) Score(c Category) (float64, bool) {
	var v *float64
	switch c {
	case CategoryAccessibility:
		v = s.Accessibility
	case CategorySidewalk:
		v = s.Sidewalk
	case CategoryLighting:
		v = s.Lighting
	case CategoryCrossing:
		v = s.Crossing
	case CategoryObstruction:
		v = s.Obstruction
	case CategoryTraffic:
		v = s.Traffic
	case CategoryWayfinding:
		v = s.Wayfinding
	}
	if v == nil {
		return 0, false
	}
	return *v, true
}
