package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/okian/helio/internal/domain/contour"
	"github.com/okian/helio/internal/domain/model"
	"github.com/okian/helio/pkg/metrics"
)

func encodeContours(cs []contour.Contour) ([]byte, error) {
	if cs == nil {
		cs = []contour.Contour{}
	}
	return json.Marshal(cs)
}

func decodeContours(b []byte) ([]contour.Contour, error) {
	cs := []contour.Contour{}
	if len(b) == 0 {
		return cs, nil
	}
	if err := json.Unmarshal(b, &cs); err != nil {
		return nil, fmt.Errorf("decode contours: %w", err)
	}
	return cs, nil
}

func encodeMetadata(m model.RegionMetadata) ([]byte, error) {
	return json.Marshal(m)
}

func decodeMetadata(b []byte) (model.RegionMetadata, error) {
	var m model.RegionMetadata
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("decode region metadata: %w", err)
	}
	return m, nil
}

// observe records the latency of op when the returned func runs.
func observe(op string) func() {
	start := time.Now()
	return func() {
		metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
	}
}

// dateBounds normalizes a timestamp range to inclusive UTC calendar days.
func dateBounds(start, end time.Time) (time.Time, time.Time) {
	return model.Date(start), model.Date(end)
}

// unixBounds converts an inclusive range to whole seconds. A start with a
// fractional second excludes the second it falls in.
func unixBounds(start, end time.Time) (int64, int64) {
	lo := start.Unix()
	if start.Nanosecond() > 0 {
		lo++
	}
	return lo, end.Unix()
}
