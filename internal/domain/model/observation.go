// Package model contains the records persisted by the ingestion loops and
// returned by the query surface.
package model

import (
	"time"

	"github.com/okian/helio/internal/domain/contour"
	"github.com/okian/helio/internal/domain/slot"
)

// Observation is the feature set extracted from the image of one slot.
type Observation struct {
	ID          int64              `json:"id"`
	Slot        slot.Slot          `json:"observation_time"`
	ProcessedAt time.Time          `json:"processed_time"`
	Features    contour.FeatureSet `json:"features"`
}
