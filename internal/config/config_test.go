package config_test

import (
	"context"
	"testing"
	"time"

	"github.com/okian/helio/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.Storage.Driver, convey.ShouldEqual, "sqlite")
			convey.So(cfg.Ingest.Scale, convey.ShouldEqual, "4k")
			convey.So(cfg.Ingest.Lookback, convey.ShouldEqual, 7*24*time.Hour+15*time.Minute)
			convey.So(cfg.Ingest.IdleInterval, convey.ShouldEqual, time.Minute)
			convey.So(cfg.Ingest.RetryDelay, convey.ShouldEqual, time.Second)
			convey.So(cfg.Ingest.UmbraThreshold, convey.ShouldEqual, 0.25)
			convey.So(cfg.Ingest.PenumbraThreshold, convey.ShouldEqual, 0.65)
			convey.So(cfg.Oracle.TTL, convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.Oracle.RetryDelay, convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.Remote.Timeout, convey.ShouldEqual, 60*time.Second)
			convey.So(cfg.Regions.Interval, convey.ShouldEqual, 5*time.Minute)
			convey.So(cfg.Regions.Enabled, convey.ShouldBeTrue)
			convey.So(cfg.Imagery.Enabled, convey.ShouldBeTrue)
		})

		convey.Convey("Then the defaults validate", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
