package analysis

import (
	"crypto/sha256"
	"encoding/hex"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"walkability/internal/types"
)

// Version is reported in every result's meta.
const Version = "v1"

const (
	runIDTimeLayout = "2006-01-02T15:04:05.000Z"
	runIDAlphabet   = "abcdefghijklmnopqrstuvwxyz0123456789"
	runIDSuffixLen  = 5
)

// NewRunID returns "an_<UTC ISO-8601 timestamp>_<5 lowercase alnum>".
func NewRunID(now time.Time) string {
	var b strings.Builder
	b.WriteString("an_")
	b.WriteString(now.UTC().Format(runIDTimeLayout))
	b.WriteByte('_')
	for range runIDSuffixLen {
		b.WriteByte(runIDAlphabet[rand.IntN(len(runIDAlphabet))])
	}
	return b.String()
}

// Fingerprint hashes the origin, destination and coordinate count. Labels
// and the coordinates themselves are excluded, so two requests between the
// same endpoints with equally long polylines share a fingerprint.
func Fingerprint(req types.AnalyzeRequest) string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

	key := strings.Join([]string{
		f(req.Origin.Lat), f(req.Origin.Lng),
		f(req.Destination.Lat), f(req.Destination.Lng),
		strconv.Itoa(len(req.Route.Coordinates)),
	}, "|")

	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
