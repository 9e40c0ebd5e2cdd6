package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"

	"github.com/okian/helio/internal/domain/model"
)

// Row is the Parquet record of one observation. Contours are stored as
// their JSON encoding, [[[x,y],...],...].
type Row struct {
	ID               int64  `parquet:"id"`
	ObservationTime  int64  `parquet:"observation_time"`
	ProcessedTimeMS  int64  `parquet:"processed_time_ms"`
	UmbraCount       int32  `parquet:"umbra_count"`
	PenumbraCount    int32  `parquet:"penumbra_count"`
	UmbraContours    string `parquet:"umbra_contours,zstd"`
	PenumbraContours string `parquet:"penumbra_contours,zstd"`
}

// NewRow flattens an observation.
func NewRow(o model.Observation) (Row, error) {
	umbra, err := json.Marshal(o.Features.Umbra)
	if err != nil {
		return Row{}, fmt.Errorf("umbra contours: %w", err)
	}
	penumbra, err := json.Marshal(o.Features.Penumbra)
	if err != nil {
		return Row{}, fmt.Errorf("penumbra contours: %w", err)
	}
	return Row{
		ID:               o.ID,
		ObservationTime:  o.Slot.Unix(),
		ProcessedTimeMS:  o.ProcessedAt.UnixMilli(),
		UmbraCount:       int32(len(o.Features.Umbra)),
		PenumbraCount:    int32(len(o.Features.Penumbra)),
		UmbraContours:    string(umbra),
		PenumbraContours: string(penumbra),
	}, nil
}

type parquetSink struct {
	w    *parquet.GenericWriter[Row]
	rows []Row
}

func newParquetSink(w io.Writer) *parquetSink {
	return &parquetSink{w: parquet.NewGenericWriter[Row](w)}
}

func (s *parquetSink) write(obs []model.Observation) error {
	s.rows = s.rows[:0]
	for _, o := range obs {
		r, err := NewRow(o)
		if err != nil {
			return err
		}
		s.rows = append(s.rows, r)
	}
	if len(s.rows) == 0 {
		return nil
	}
	_, err := s.w.Write(s.rows)
	return err
}

func (s *parquetSink) close() error {
	return s.w.Close()
}
