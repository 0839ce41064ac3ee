package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"walkability/internal/types"
)

const streetViewAPIBase = "https://maps.googleapis.com"

// maxImageBytes bounds a single image download.
const maxImageBytes = 5 << 20

// Street View metadata status values.
const (
	svStatusOK             = "OK"
	svStatusZeroResults    = "ZERO_RESULTS"
	svStatusNotFound       = "NOT_FOUND"
	svStatusOverQueryLimit = "OVER_QUERY_LIMIT"
)

// StreetViewConfig holds the configuration for a StreetViewClient.
type StreetViewConfig struct {
	APIKey       types.SecretString
	BaseURL      string // Override for testing; defaults to streetViewAPIBase
	RadiusMeters int
	ImageSize    string // "WxH"
	FOV          int
	Pitch        int
	Logger       *slog.Logger
}

type streetViewMetadataResponse struct {
	Status   string `json:"status"`
	PanoID   string `json:"pano_id"`
	Date     string `json:"date"`
	Location struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"location"`
	ErrorMessage string `json:"error_message"`
}

// StreetViewClient implements ImageryProvider against the Google Street View
// Static API.
type StreetViewClient struct {
	base    *BaseClient
	cfg     StreetViewConfig
	baseURL string
	logger  *slog.Logger
}

// NewStreetViewClient creates a StreetViewClient. Per-call deadlines come from
// the caller's context, so httpClient needs no timeout of its own.
func NewStreetViewClient(httpClient *http.Client, cfg StreetViewConfig) *StreetViewClient {
	base := NewBaseClient(httpClient, "streetview", "Walkability/1.0")
	return NewStreetViewClientWithBase(base, cfg)
}

// NewStreetViewClientWithBase creates a StreetViewClient around a
// pre-configured BaseClient.
func NewStreetViewClientWithBase(base *BaseClient, cfg StreetViewConfig) *StreetViewClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = streetViewAPIBase
	}
	if cfg.RadiusMeters <= 0 {
		cfg.RadiusMeters = 30
	}
	if cfg.ImageSize == "" {
		cfg.ImageSize = "640x400"
	}
	if cfg.FOV <= 0 {
		cfg.FOV = 90
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &StreetViewClient{
		base:    base,
		cfg:     cfg,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// Transport returns the underlying BaseClient, used as a health probe.
func (c *StreetViewClient) Transport() *BaseClient {
	return c.base
}

// Metadata looks up the nearest panorama within the configured radius.
func (c *StreetViewClient) Metadata(ctx context.Context, loc types.Coordinate) (*ImageryMetadata, error) {
	q := url.Values{}
	q.Set("location", formatLocation(loc))
	q.Set("radius", strconv.Itoa(c.cfg.RadiusMeters))
	q.Set("key", c.cfg.APIKey.Unmask())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/maps/api/streetview/metadata?"+q.Encode(), nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create Street View metadata request", err)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, wrapError("Street View", "Metadata", err, types.ErrCodeUpstreamUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, c.handleErrorResponse(resp, "Metadata")
	}

	var body streetViewMetadataResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamBadResponse, "failed to decode Street View metadata response", err)
	}

	switch body.Status {
	case svStatusOK:
		return &ImageryMetadata{
			PanoID:      body.PanoID,
			Location:    types.Coordinate{Lat: body.Location.Lat, Lng: body.Location.Lng},
			CaptureDate: body.Date,
		}, nil
	case svStatusZeroResults, svStatusNotFound:
		return nil, nil
	case svStatusOverQueryLimit:
		return nil, types.NewAppError(
			types.ErrCodeUpstreamRateLimited,
			"Street View quota exceeded",
			fmt.Errorf("metadata status %s: %s", body.Status, body.ErrorMessage),
		)
	default:
		return nil, types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("Street View metadata status %s", body.Status),
			errors.New(body.ErrorMessage),
		)
	}
}

// Image downloads a single JPEG. return_error_code makes the API answer 404
// instead of a placeholder image when nothing is available.
func (c *StreetViewClient) Image(ctx context.Context, r ImageRequest) ([]byte, error) {
	q := url.Values{}
	q.Set("size", c.cfg.ImageSize)
	if r.PanoID != "" {
		q.Set("pano", r.PanoID)
	} else {
		q.Set("location", formatLocation(r.Location))
	}
	if r.Heading != nil {
		q.Set("heading", strconv.Itoa(*r.Heading))
	}
	q.Set("fov", strconv.Itoa(c.cfg.FOV))
	q.Set("pitch", strconv.Itoa(c.cfg.Pitch))
	q.Set("return_error_code", "true")
	q.Set("key", c.cfg.APIKey.Unmask())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/maps/api/streetview?"+q.Encode(), nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create Street View image request", err)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, wrapError("Street View", "Image", err, types.ErrCodeUpstreamUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, c.handleErrorResponse(resp, "Image")
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamUnavailable, "failed to read Street View image", err)
	}
	if len(data) == 0 {
		return nil, types.NewAppError(types.ErrCodeUpstreamBadResponse, "Street View returned an empty image", nil)
	}

	return data, nil
}

func (c *StreetViewClient) handleErrorResponse(resp *http.Response, operation string) *types.AppError {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	bodyStr := string(bodyBytes)

	c.logger.Debug("Street View API error",
		"operation", operation,
		"status_code", resp.StatusCode,
		"response_body", bodyStr,
	)

	cause := fmt.Errorf("Street View %s returned %d: %s", operation, resp.StatusCode, bodyStr)
	switch resp.StatusCode {
	case http.StatusNotFound:
		return types.NewAppError(types.ErrCodeUpstreamNotFound, "Street View imagery not found", cause)
	case http.StatusUnauthorized, http.StatusForbidden:
		return types.NewAppError(types.ErrCodeUpstreamUnavailable, "Street View request denied", cause)
	default:
		return types.NewAppError(
			types.ErrCodeUpstreamBadResponse,
			fmt.Sprintf("Street View client error (%d): %s", resp.StatusCode, operation),
			cause,
		)
	}
}

func formatLocation(c types.Coordinate) string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lng, 'f', -1, 64)
}

var _ ImageryProvider = (*StreetViewClient)(nil)
