package export

import (
	"encoding/json"
	"io"
	"runtime"

	"github.com/klauspost/pgzip"

	"github.com/okian/helio/internal/domain/model"
)

const gzipBlockSize = 1 << 20

// jsonlSink writes one observation per line through a parallel gzip writer.
type jsonlSink struct {
	gz  *pgzip.Writer
	enc *json.Encoder
}

func newJSONLSink(w io.Writer) (*jsonlSink, error) {
	gz := pgzip.NewWriter(w)
	if err := gz.SetConcurrency(gzipBlockSize, runtime.GOMAXPROCS(0)); err != nil {
		return nil, err
	}
	return &jsonlSink{gz: gz, enc: json.NewEncoder(gz)}, nil
}

func (s *jsonlSink) write(obs []model.Observation) error {
	for _, o := range obs {
		if err := s.enc.Encode(o); err != nil {
			return err
		}
	}
	return nil
}

func (s *jsonlSink) close() error {
	return s.gz.Close()
}
