package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/helio/internal/export"
	"github.com/okian/helio/pkg/logger"
)

func init() {
	_ = logger.Init()
}

func TestParseRange(t *testing.T) {
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

	convey.Convey("Given no bounds", t, func() {
		from, to, err := parseRange("", "", now)
		convey.So(err, convey.ShouldBeNil)
		convey.So(to, convey.ShouldEqual, now)
		convey.So(from, convey.ShouldEqual, now.Add(-24*time.Hour))
	})

	convey.Convey("Given explicit bounds", t, func() {
		from, to, err := parseRange("2024-06-01T00:00:00Z", "2024-06-03T00:00:00+02:00", now)
		convey.So(err, convey.ShouldBeNil)
		convey.So(from, convey.ShouldEqual, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
		convey.So(to, convey.ShouldEqual, time.Date(2024, 6, 2, 22, 0, 0, 0, time.UTC))
	})

	convey.Convey("Given bad bounds", t, func() {
		_, _, err := parseRange("June", "", now)
		convey.So(errors.Is(err, export.ErrInvalidRange), convey.ShouldBeTrue)

		_, _, err = parseRange("2024-06-02T00:00:00Z", "2024-06-01T00:00:00Z", now)
		convey.So(errors.Is(err, export.ErrInvalidRange), convey.ShouldBeTrue)
	})
}

func TestRunExport(t *testing.T) {
	convey.Convey("Given an empty sqlite database", t, func() {
		dir := t.TempDir()
		_ = os.Setenv("HELIO_STORAGE__DSN", filepath.Join(dir, "helio.db"))
		defer func() { _ = os.Unsetenv("HELIO_STORAGE__DSN") }()

		convey.Convey("When exporting a day to a file", func() {
			out := filepath.Join(dir, "day.parquet")
			err := run(context.Background(), "2024-06-01T00:00:00Z", "2024-06-02T00:00:00Z", "parquet", out, time.Hour)

			convey.Convey("Then a valid archive is written", func() {
				convey.So(err, convey.ShouldBeNil)
				info, err := os.Stat(out)
				convey.So(err, convey.ShouldBeNil)
				convey.So(info.Size(), convey.ShouldBeGreaterThan, 0)
			})
		})

		convey.Convey("When the format is unknown", func() {
			err := run(context.Background(), "", "", "xml", "-", time.Hour)
			convey.So(errors.Is(err, export.ErrUnknownFormat), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given a default output name", t, func() {
		from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		name := defaultOutput(from, from.Add(time.Hour), export.FormatJSONL)
		convey.So(name, convey.ShouldEqual, "helio_20240601T000000Z_20240601T010000Z.jsonl.gz")
	})
}
