package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// RecommendationID derives a stable ID from a recommendation's position, so
// re-running on the same inputs yields the same IDs and downstream upserts
// stay idempotent.
func RecommendationID(lat, lon float64) string {
	input := fmt.Sprintf("%.6f|%.6f", lat, lon)
	hash := sha256.Sum256([]byte(input))
	return "rec-" + hex.EncodeToString(hash[:8])
}

// NewRunID names a run by its generation time (UTC, second precision).
func NewRunID(at time.Time) string {
	return "run-" + at.UTC().Format("20060102T150405Z")
}
