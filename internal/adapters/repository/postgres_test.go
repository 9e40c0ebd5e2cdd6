package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/helio/internal/domain/model"
)

func TestPostgresSchema(t *testing.T) {
	Convey("Given the postgres schema", t, func() {
		ddl := strings.Join(postgresSchema, "\n")

		Convey("Then every statement is idempotent", func() {
			for _, stmt := range postgresSchema {
				So(stmt, ShouldContainSubstring, "IF NOT EXISTS")
			}
		})

		Convey("Then one observation is allowed per slot", func() {
			So(ddl, ShouldContainSubstring, "observation_time  TIMESTAMPTZ NOT NULL UNIQUE")
		})

		Convey("Then region reports are keyed by date and region", func() {
			So(ddl, ShouldContainSubstring, "PRIMARY KEY (observed_date, region)")
			So(postgresUpsertRegion, ShouldContainSubstring, "ON CONFLICT (observed_date, region) DO UPDATE")
		})
	})
}

func TestPostgresRegionArgs(t *testing.T) {
	Convey("Given a region observed late in the day", t, func() {
		spot := "Dao"
		r := model.Region{
			Region:       13664,
			ObservedDate: time.Date(2024, 5, 10, 21, 30, 0, 0, time.UTC),
			FirstDate:    time.Date(2024, 5, 8, 0, 0, 0, 0, time.FixedZone("UTC+2", 2*60*60)),
			Latitude:     -18,
			Longitude:    30,
			Metadata:     model.RegionMetadata{Location: "S18W30", Area: 120, SpotClass: &spot},
		}

		Convey("When it is bound to the upsert", func() {
			args, err := postgresRegionArgs(r)
			So(err, ShouldBeNil)
			So(args, ShouldHaveLength, 6)

			Convey("Then the observed date is truncated to the UTC day", func() {
				So(args[0].(time.Time).Equal(time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)), ShouldBeTrue)
			})

			Convey("Then the first date is in UTC", func() {
				So(args[2].(time.Time).Location().String(), ShouldEqual, "UTC")
				So(args[2].(time.Time).Hour(), ShouldEqual, 22)
			})

			Convey("Then metadata is bound as JSON text", func() {
				var meta model.RegionMetadata
				So(json.Unmarshal([]byte(args[5].(string)), &meta), ShouldBeNil)
				So(meta.Location, ShouldEqual, "S18W30")
				So(*meta.SpotClass, ShouldEqual, "Dao")
			})
		})
	})
}

func TestOpenPostgres(t *testing.T) {
	Convey("Given postgres connection strings", t, func() {
		ctx := context.Background()

		Convey("When the dsn is empty", func() {
			_, err := OpenPostgres(ctx, "")
			So(errors.Is(err, ErrMissingDSN), ShouldBeTrue)
		})

		Convey("When the dsn cannot be parsed", func() {
			_, err := OpenPostgres(ctx, "postgres://helio@localhost:notaport/helio")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldStartWith, "postgres: connect")
		})
	})
}
