package external

import (
	"context"

	"walkability/internal/types"
)

// ---------------------------------------------------------------------------
// Street-level imagery (Google Street View)
// ---------------------------------------------------------------------------

// ImageryMetadata describes the panorama nearest to a queried point.
type ImageryMetadata struct {
	PanoID      string
	Location    types.Coordinate
	CaptureDate string // "YYYY-MM" as reported by the provider; may be empty
}

// ImageRequest selects one image. PanoID takes precedence over Location when
// set. A nil Heading lets the provider choose the camera direction.
type ImageRequest struct {
	PanoID   string
	Location types.Coordinate
	Heading  *int
}

// ImageryProvider abstracts the street-level imagery vendor.
type ImageryProvider interface {
	// Metadata reports the panorama nearest to loc. It returns (nil, nil) when
	// the provider has no coverage; errors are reserved for failed lookups.
	Metadata(ctx context.Context, loc types.Coordinate) (*ImageryMetadata, error)

	// Image downloads the raw JPEG bytes for req.
	Image(ctx context.Context, req ImageRequest) ([]byte, error)
}

// ---------------------------------------------------------------------------
// Generative model (Gemini)
// ---------------------------------------------------------------------------

// Part is one element of a multimodal prompt: either Text or an inline blob
// whose Data is already base64 encoded.
type Part struct {
	Text     string
	MimeType string
	Data     string
}

// TextPart builds a text-only part.
func TextPart(s string) Part {
	return Part{Text: s}
}

// InlinePart builds an inline part from base64 data.
func InlinePart(mimeType, data string) Part {
	return Part{MimeType: mimeType, Data: data}
}

// Prompt is a single-turn multimodal request.
type Prompt struct {
	Parts       []Part
	Temperature float64
}

// GenerativeModel abstracts the multimodal model used for segment scoring.
type GenerativeModel interface {
	// Name returns the model identifier reported in result metadata.
	Name() string

	// Generate runs one completion and returns the concatenated text output.
	Generate(ctx context.Context, prompt Prompt) (string, error)
}
