package config_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/okian/helio/internal/config"
	"github.com/okian/helio/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestWatch(t *testing.T) {
	_ = logger.Init()

	convey.Convey("Given a watched config file", t, func() {
		path := writeFile(t, t.TempDir(), "log_level: info\n")
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		changes := make(chan *config.Config, 4)
		done := make(chan error, 1)
		go func() {
			done <- config.Watch(ctx, path, func(c *config.Config) { changes <- c })
		}()
		// Give the watcher time to register.
		time.Sleep(100 * time.Millisecond)

		convey.Convey("When the file is rewritten", func() {
			convey.So(os.WriteFile(path, []byte("log_level: debug\n"), 0o600), convey.ShouldBeNil)

			convey.Convey("Then the reloaded config is delivered", func() {
				select {
				case c := <-changes:
					convey.So(c.LogLevel, convey.ShouldEqual, "debug")
				case <-time.After(5 * time.Second):
					convey.So("no reload", convey.ShouldBeEmpty)
				}

				cancel()
				convey.So(<-done, convey.ShouldBeNil)
			})
		})
	})
}
