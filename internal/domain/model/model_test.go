package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/okian/helio/internal/domain/contour"
	"github.com/okian/helio/internal/domain/model"
	"github.com/okian/helio/internal/domain/slot"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRegionKey(t *testing.T) {
	Convey("Given two reports of one region on one day", t, func() {
		a := model.Region{Region: 13664, ObservedDate: time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)}
		b := model.Region{Region: 13664, ObservedDate: time.Date(2024, 5, 10, 23, 0, 0, 0, time.UTC), Latitude: 5}

		Convey("Then they share a key", func() {
			So(a.Key(), ShouldResemble, b.Key())
			So(a.Key().ObservedDate, ShouldEqual, "2024-05-10")
		})

		Convey("Then Date truncates to the UTC day", func() {
			So(model.Date(b.ObservedDate), ShouldEqual, a.ObservedDate)
		})
	})
}

func TestObservationJSON(t *testing.T) {
	Convey("Given an observation", t, func() {
		obs := model.Observation{
			ID:          7,
			Slot:        slot.Floor(time.Date(2024, 5, 10, 12, 7, 0, 0, time.UTC)),
			ProcessedAt: time.Date(2024, 5, 10, 12, 20, 0, 0, time.UTC),
			Features: contour.FeatureSet{
				Umbra:    []contour.Contour{{{X: 0.1, Y: 0.2}, {X: 0.3, Y: 0.2}, {X: 0.2, Y: 0.4}}},
				Penumbra: []contour.Contour{},
			},
		}

		Convey("When encoded", func() {
			b, err := json.Marshal(obs)
			So(err, ShouldBeNil)

			Convey("Then the slot is an RFC3339 timestamp and contours are pairs", func() {
				s := string(b)
				So(s, ShouldContainSubstring, `"observation_time":"2024-05-10T12:00:00Z"`)
				So(s, ShouldContainSubstring, `"umbra":[[[0.1,0.2],[0.3,0.2],[0.2,0.4]]]`)
				So(s, ShouldContainSubstring, `"penumbra":[]`)
			})
		})
	})
}
