package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/helio/internal/adapters/repository"
	"github.com/okian/helio/internal/config"
	"github.com/okian/helio/internal/export"
	"github.com/okian/helio/pkg/logger"
)

const defaultSpan = 24 * time.Hour

func main() {
	var (
		start  = flag.String("start", "", "Range start, RFC3339 (default: 24h before -end)")
		end    = flag.String("end", "", "Range end, RFC3339 (default: now)")
		format = flag.String("format", string(export.FormatParquet), "Archive format: parquet or jsonl")
		output = flag.String("output", "", "Output file (default: helio_<start>_<end>.<ext>; - for stdout)")
		window = flag.Duration("window", export.DefaultWindow, "Storage read window")
		help   = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	// Logs go to stderr so stdout can carry the archive.
	logger.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *start, *end, *format, *output, *window); err != nil {
		logger.Get().Error(ctx, "export failed", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, startArg, endArg, formatArg, output string, window time.Duration) error {
	f, err := export.ParseFormat(formatArg)
	if err != nil {
		return err
	}
	from, to, err := parseRange(startArg, endArg, time.Now())
	if err != nil {
		return err
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	store, err := repository.Open(ctx, repository.Config{
		Driver:   cfg.Storage.Driver,
		DSN:      cfg.Storage.DSN,
		Database: cfg.Storage.ClickHouseDatabase,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	var w io.Writer = os.Stdout
	if output != "-" {
		if output == "" {
			output = defaultOutput(from, to, f)
		}
		file, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("create %s: %w", output, err)
		}
		defer file.Close()
		w = file
	}

	n, err := export.New(store, export.WithWindow(window)).Export(ctx, w, f, from, to)
	if err != nil {
		return err
	}
	logger.Get().Info(ctx, "archive written",
		logger.String("output", output),
		logger.Int("observations", n),
	)
	return nil
}

// parseRange applies the defaults: end is now and start is one day before end.
func parseRange(startArg, endArg string, now time.Time) (time.Time, time.Time, error) {
	to := now.UTC()
	if endArg != "" {
		t, err := time.Parse(time.RFC3339, endArg)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: end: %w", export.ErrInvalidRange, err)
		}
		to = t.UTC()
	}
	from := to.Add(-defaultSpan)
	if startArg != "" {
		t, err := time.Parse(time.RFC3339, startArg)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: start: %w", export.ErrInvalidRange, err)
		}
		from = t.UTC()
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end is before start", export.ErrInvalidRange)
	}
	return from, to, nil
}

func defaultOutput(from, to time.Time, f export.Format) string {
	const layout = "20060102T150405Z"
	return "helio_" + from.Format(layout) + "_" + to.Format(layout) + f.Extension()
}
