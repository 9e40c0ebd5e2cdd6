package contour_test

import (
	"image"
	"image/color"
	"testing"

	"github.com/okian/helio/internal/domain/contour"
	. "github.com/smartystreets/goconvey/convey"
)

// sunspotRaster draws a bright disk holding a darker ring around a dark core.
func sunspotRaster() *contour.RawImage {
	img := contour.NewRawImage(100, 100)
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			d2 := (x-50)*(x-50) + (y-50)*(y-50)
			switch {
			case d2 <= 8*8:
				img.Set(x, y, 50)
			case d2 <= 20*20:
				img.Set(x, y, 100)
			case d2 <= 40*40:
				img.Set(x, y, 200)
			}
		}
	}
	return img
}

// pixelArea undoes the calibration scaling of a normalized contour's area.
func pixelArea(c contour.Contour, s contour.Scale) float64 {
	cal := contour.CalibrationFor(s)
	span := cal.Max - cal.Min
	return contour.Area(c) * span * span
}

func TestFeatures(t *testing.T) {
	Convey("Given a synthetic sunspot raster", t, func() {
		img := sunspotRaster()
		ex := contour.NewExtractor()

		Convey("When extracting the feature set", func() {
			fs := ex.Features(img)

			Convey("Then exactly one umbra and one penumbra contour survive", func() {
				So(len(fs.Umbra), ShouldEqual, 1)
				So(len(fs.Penumbra), ShouldEqual, 1)
			})

			Convey("And both areas lie inside the window", func() {
				u := pixelArea(fs.Umbra[0], contour.Big)
				p := pixelArea(fs.Penumbra[0], contour.Big)
				So(u, ShouldBeBetweenOrEqual, contour.DefaultMinArea, contour.DefaultMaxArea)
				So(p, ShouldBeBetweenOrEqual, contour.DefaultMinArea, contour.DefaultMaxArea)
				So(p, ShouldBeGreaterThan, u)
			})
		})

		Convey("When extracting raw borders at the penumbra threshold", func() {
			cs := ex.Extract(img, contour.DefaultPenumbraThreshold)

			Convey("Then the limb is reported next to the hole", func() {
				So(len(cs), ShouldEqual, 2)
			})
		})

		Convey("When limb exclusion is disabled", func() {
			fs := contour.NewExtractor(contour.WithLimbExclusion(false)).Features(img)

			Convey("Then the limb joins both families", func() {
				So(len(fs.Umbra), ShouldEqual, 2)
				So(len(fs.Penumbra), ShouldEqual, 2)
			})
		})
	})

	Convey("Given blobs of different sizes", t, func() {
		img := contour.NewRawImage(60, 60)
		fill := func(x0, y0, x1, y1 int) {
			for y := y0; y <= y1; y++ {
				for x := x0; x <= x1; x++ {
					img.Set(x, y, 255)
				}
			}
		}
		fill(2, 2, 3, 3)     // area 1
		fill(10, 10, 14, 14) // area 16
		fill(20, 20, 49, 49) // area 841

		Convey("When extracting with the default window", func() {
			cs := contour.Extract(img, 0.5, contour.Big)

			Convey("Then the tiny blob is dropped", func() {
				So(len(cs), ShouldEqual, 2)
			})
		})

		Convey("When the window excludes large features", func() {
			cs := contour.NewExtractor(contour.WithAreaWindow(10, 100)).Extract(img, 0.5)

			Convey("Then only the medium blob remains", func() {
				So(len(cs), ShouldEqual, 1)
				So(pixelArea(cs[0], contour.Big), ShouldAlmostEqual, 16, 1e-6)
			})
		})

		Convey("When normalizing at the full-resolution scale", func() {
			cs := contour.NewExtractor(contour.WithAreaWindow(10, 100)).Extract(img, 0.5)

			Convey("Then vertices are remapped through the calibration bounds", func() {
				cal := contour.CalibrationFor(contour.Big)
				So(cs[0], ShouldContain, contour.Point{X: cal.Remap(10), Y: cal.Remap(10)})
				So(cs[0], ShouldContain, contour.Point{X: cal.Remap(14), Y: cal.Remap(14)})
			})
		})
	})

	Convey("Given an empty raster", t, func() {
		Convey("Then extraction yields an empty, non-nil list", func() {
			cs := contour.NewExtractor().Extract(contour.NewRawImage(0, 0), 0.5)
			So(cs, ShouldNotBeNil)
			So(len(cs), ShouldEqual, 0)
		})
	})

	Convey("Given binarization at the threshold boundary", t, func() {
		block := func(v uint8) *contour.RawImage {
			img := contour.NewRawImage(20, 20)
			for y := 5; y < 15; y++ {
				for x := 5; x < 15; x++ {
					img.Set(x, y, v)
				}
			}
			return img
		}

		Convey("Then pixels equal to fraction*255 are foreground", func() {
			So(len(contour.Extract(block(255), 1.0, contour.Big)), ShouldEqual, 1)
			So(len(contour.Extract(block(254), 1.0, contour.Big)), ShouldEqual, 0)
		})
	})
}

func TestFromImage(t *testing.T) {
	Convey("Given a gray sub-image", t, func() {
		g := image.NewGray(image.Rect(0, 0, 4, 4))
		g.SetGray(2, 3, color.Gray{Y: 77})
		sub, _ := g.SubImage(image.Rect(1, 1, 4, 4)).(*image.Gray)

		Convey("Then pixels are copied relative to the bounds", func() {
			r := contour.FromImage(sub)
			So(r.Width, ShouldEqual, 3)
			So(r.Height, ShouldEqual, 3)
			So(r.At(1, 2), ShouldEqual, 77)
		})
	})

	Convey("Given an RGBA image", t, func() {
		rgba := image.NewRGBA(image.Rect(0, 0, 2, 1))
		rgba.Set(0, 0, color.White)

		Convey("Then it is converted through the gray model", func() {
			r := contour.FromImage(rgba)
			So(r.At(0, 0), ShouldEqual, 255)
			So(r.At(1, 0), ShouldEqual, 0)
		})
	})
}
