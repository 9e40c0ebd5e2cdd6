// Package export dumps stored observations to archive files: Parquet for
// columnar analysis and gzip-compressed JSON lines for streaming.
package export

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/okian/helio/internal/domain/model"
	"github.com/okian/helio/pkg/logger"
)

// Format names an archive encoding.
type Format string

// Supported formats.
const (
	FormatParquet Format = "parquet"
	FormatJSONL   Format = "jsonl"
)

// Formats lists the supported formats.
var Formats = []Format{FormatParquet, FormatJSONL}

// DefaultWindow is how much of the range is read from storage at once.
const DefaultWindow = 24 * time.Hour

// ParseFormat accepts a format name case-insensitively. "jsonl.gz" and
// "json" are aliases of jsonl.
func ParseFormat(v string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "parquet":
		return FormatParquet, nil
	case "jsonl", "jsonl.gz", "json":
		return FormatJSONL, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, v)
	}
}

// Extension is the conventional file suffix for f.
func (f Format) Extension() string {
	if f == FormatJSONL {
		return ".jsonl.gz"
	}
	return "." + string(f)
}

// Source reads observations in an inclusive time range. Every store driver
// satisfies it.
type Source interface {
	Range(ctx context.Context, start, end time.Time) ([]model.Observation, error)
}

// sink encodes observations to an underlying writer.
type sink interface {
	write(obs []model.Observation) error
	close() error
}

// Exporter streams a range of observations into one archive.
type Exporter struct {
	src    Source
	window time.Duration
	logger logger.Logger
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithWindow sets how much of the range each storage read covers.
func WithWindow(d time.Duration) Option {
	return func(e *Exporter) {
		if d > 0 {
			e.window = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Exporter) {
		if l != nil {
			e.logger = l
		}
	}
}

// New returns an Exporter reading from src.
func New(src Source, opts ...Option) *Exporter {
	e := &Exporter{src: src, window: DefaultWindow}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.Get().Named("export")
	}
	return e
}

// Export writes every observation with start <= slot <= end to w in the
// given format and returns how many were written. w is not closed.
func (e *Exporter) Export(ctx context.Context, w io.Writer, format Format, start, end time.Time) (int, error) {
	if end.Before(start) {
		return 0, fmt.Errorf("%w: end %s is before start %s", ErrInvalidRange,
			end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	var out sink
	switch format {
	case FormatParquet:
		out = newParquetSink(w)
	case FormatJSONL:
		s, err := newJSONLSink(w)
		if err != nil {
			return 0, err
		}
		out = s
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	n := 0
	// Windows are [lo, lo+window) so no slot is read twice or skipped.
	for lo := start; !lo.After(end); lo = lo.Add(e.window) {
		hi := lo.Add(e.window - time.Nanosecond)
		if hi.After(end) {
			hi = end
		}
		obs, err := e.src.Range(ctx, lo, hi)
		if err != nil {
			_ = out.close()
			return n, fmt.Errorf("read %s..%s: %w", lo.Format(time.RFC3339), hi.Format(time.RFC3339), err)
		}
		if err := out.write(obs); err != nil {
			_ = out.close()
			return n, fmt.Errorf("%w: %w", ErrWrite, err)
		}
		n += len(obs)
		e.logger.Debug(ctx, "window exported",
			logger.Time("from", lo), logger.Int("observations", len(obs)))
	}

	if err := out.close(); err != nil {
		return n, fmt.Errorf("%w: %w", ErrWrite, err)
	}
	e.logger.Info(ctx, "export finished",
		logger.String("format", string(format)),
		logger.Int("observations", n),
	)
	return n, nil
}
