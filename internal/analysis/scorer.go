package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"walkability/internal/external"
	"walkability/internal/types"
)

var (
	errNoArray    = errors.New("no JSON array in model output")
	errEmptyArray = errors.New("model returned an empty score array")
)

// Scorer asks the generative model for per-segment category scores.
type Scorer struct {
	model       external.GenerativeModel
	temperature float64
	timeout     time.Duration
	validate    *validator.Validate
	logger      *slog.Logger
}

// NewScorer creates a Scorer. A zero timeout disables the model deadline.
func NewScorer(model external.GenerativeModel, temperature float64, timeout time.Duration, validate *validator.Validate, logger *slog.Logger) *Scorer {
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{
		model:       model,
		temperature: temperature,
		timeout:     timeout,
		validate:    validate,
		logger:      logger,
	}
}

// ModelName reports the model identifier for result metadata.
func (s *Scorer) ModelName() string {
	return s.model.Name()
}

// Score runs one model call. Every failure, including deadline expiry and
// unusable output, is returned as a MODEL_FAILURE AppError.
func (s *Scorer) Score(ctx context.Context, wps []types.Waypoint) ([]types.SegmentScore, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	text, err := s.model.Generate(ctx, BuildPrompt(wps, s.temperature))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeModelFailure, "model call failed", err)
	}

	known := make(map[string]bool, len(wps))
	for _, wp := range wps {
		known[wp.SegmentID] = true
	}

	scores, err := DecodeSegmentScores(text, s.validate, known)
	if err != nil {
		s.logger.WarnContext(ctx, "unusable model output",
			"error", err.Error(),
			"output_len", len(text),
		)
		return nil, types.NewAppError(types.ErrCodeModelFailure, "model returned unusable output", err)
	}
	return scores, nil
}

const scoringInstructions = `You are auditing a walking route for pedestrians using street-level photos.
Score every segment that has photos on each category from 0 (very poor) to 100 (excellent):
- accessibility: step-free access, curb ramps, usable by wheelchairs and strollers
- sidewalk: presence, width and surface quality of the walking path
- lighting: street lights and how well lit the path appears
- crossing: marked crossings, signals and refuges where the route crosses roads
- obstruction: how free the path is of parked vehicles, vendors and debris (100 = completely clear)
- traffic: how safe nearby vehicle traffic feels for people walking
- wayfinding: signage and how easy the route is to follow
Use null for a category you cannot judge from the photos.
Reply with ONLY a JSON array and nothing else, one object per segment, using exactly these keys:
[{"segmentId":"seg_001","accessibility":0,"sidewalk":0,"lighting":0,"crossing":0,"obstruction":0,"traffic":0,"wayfinding":0}]`

// BuildPrompt assembles the instruction block, a per-waypoint coverage
// summary, and a caption before each image.
func BuildPrompt(wps []types.Waypoint, temperature float64) external.Prompt {
	var b strings.Builder
	b.WriteString(scoringInstructions)
	b.WriteString("\n\nSegments:\n")
	for _, wp := range wps {
		fmt.Fprintf(&b, "- %s (%.5f,%.5f): ", wp.SegmentID, wp.Lat, wp.Lng)
		switch {
		case !wp.HasCoverage:
			b.WriteString("no imagery")
		case wp.AgeYears != nil:
			fmt.Fprintf(&b, "imagery %.1f years old", *wp.AgeYears)
		default:
			b.WriteString("imagery, capture date unknown")
		}
		if len(wp.Images) > 0 {
			fmt.Fprintf(&b, ", %d photo(s)", len(wp.Images))
		}
		b.WriteString("\n")
	}

	parts := []external.Part{external.TextPart(b.String())}
	for _, wp := range wps {
		for _, img := range wp.Images {
			caption := "Segment " + wp.SegmentID
			if img.Heading != nil {
				caption += fmt.Sprintf(", heading %d°", *img.Heading)
			}
			parts = append(parts,
				external.TextPart(caption),
				external.InlinePart(img.MimeType, img.Data),
			)
		}
	}

	return external.Prompt{Parts: parts, Temperature: temperature}
}

// ExtractJSONArray returns the first bracket-balanced substring of text that
// is also a valid JSON array. Brackets inside string literals are ignored;
// balanced prose such as "[seg_001, seg_002]" is skipped.
func ExtractJSONArray(text string) (string, bool) {
	for start := strings.IndexByte(text, '['); start >= 0; {
		if end, ok := matchArray(text, start); ok && json.Valid([]byte(text[start:end+1])) {
			return text[start : end+1], true
		}
		next := strings.IndexByte(text[start+1:], '[')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// matchArray finds the bracket closing the array opened at text[start].
func matchArray(text string, start int) (int, bool) {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				if c != ']' {
					return 0, false
				}
				return i, true
			}
			if depth < 0 {
				return 0, false
			}
		}
	}
	return 0, false
}

// DecodeSegmentScores extracts and strictly decodes the score array. Unknown
// keys, wrong value types, out-of-range scores, duplicate or unknown segment
// ids, and an empty array are all rejected. A nil known map accepts any id.
func DecodeSegmentScores(text string, validate *validator.Validate, known map[string]bool) ([]types.SegmentScore, error) {
	raw, ok := ExtractJSONArray(text)
	if !ok {
		return nil, errNoArray
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()

	var scores []types.SegmentScore
	if err := dec.Decode(&scores); err != nil {
		return nil, fmt.Errorf("decode score array: %w", err)
	}
	if len(scores) == 0 {
		return nil, errEmptyArray
	}

	seen := make(map[string]bool, len(scores))
	for i, sc := range scores {
		if err := validate.Struct(sc); err != nil {
			return nil, fmt.Errorf("score %d: %w", i, err)
		}
		if known != nil && !known[sc.SegmentID] {
			return nil, fmt.Errorf("score %d: unknown segment %q", i, sc.SegmentID)
		}
		if seen[sc.SegmentID] {
			return nil, fmt.Errorf("score %d: duplicate segment %q", i, sc.SegmentID)
		}
		seen[sc.SegmentID] = true
	}
	return scores, nil
}
