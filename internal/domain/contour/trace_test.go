package contour

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func maskOf(width, height int, on func(x, y int) bool) []bool {
	m := make([]bool, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			m[y*width+x] = on(x, y)
		}
	}
	return m
}

func inRect(x, y, x0, y0, x1, y1 int) bool {
	return x >= x0 && x <= x1 && y >= y0 && y <= y1
}

func TestFollowBorders(t *testing.T) {
	Convey("Given a filled square", t, func() {
		m := maskOf(30, 30, func(x, y int) bool { return inRect(x, y, 10, 10, 14, 14) })

		Convey("When following borders", func() {
			bs := followBorders(m, 30, 30)

			Convey("Then there is one outer border in the frame with four corner vertices", func() {
				So(len(bs), ShouldEqual, 1)
				So(bs[0].hole, ShouldBeFalse)
				So(bs[0].parent, ShouldEqual, frameID)
				So(bs[0].topLevelOuter(), ShouldBeTrue)
				So(len(bs[0].points), ShouldEqual, 4)
				So(bs[0].points, ShouldContain, pixel{10, 10})
				So(bs[0].points, ShouldContain, pixel{14, 10})
				So(bs[0].points, ShouldContain, pixel{14, 14})
				So(bs[0].points, ShouldContain, pixel{10, 14})
			})
		})
	})

	Convey("Given a square with a hole holding an island", t, func() {
		m := maskOf(40, 40, func(x, y int) bool {
			switch {
			case inRect(x, y, 18, 18, 20, 20):
				return true // island
			case inRect(x, y, 14, 14, 24, 24):
				return false // hole
			default:
				return inRect(x, y, 10, 10, 28, 28)
			}
		})

		Convey("When following borders", func() {
			bs := followBorders(m, 40, 40)

			Convey("Then outer, hole and island form a chain of parents", func() {
				So(len(bs), ShouldEqual, 3)
				var outer, hole, island border
				for _, b := range bs {
					switch {
					case b.hole:
						hole = b
					case b.parent == frameID:
						outer = b
					default:
						island = b
					}
				}
				So(outer.id, ShouldNotEqual, 0)
				So(hole.parent, ShouldEqual, outer.id)
				So(island.parent, ShouldEqual, hole.id)
				So(island.hole, ShouldBeFalse)
				So(island.topLevelOuter(), ShouldBeFalse)
			})
		})
	})

	Convey("Given an isolated pixel touching the raster edge", t, func() {
		m := maskOf(5, 5, func(x, y int) bool { return x == 0 && y == 0 })

		Convey("Then it yields a single-point border", func() {
			bs := followBorders(m, 5, 5)
			So(len(bs), ShouldEqual, 1)
			So(bs[0].points, ShouldResemble, []pixel{{0, 0}})
		})
	})

	Convey("Given two separate blobs", t, func() {
		m := maskOf(30, 10, func(x, y int) bool {
			return inRect(x, y, 2, 2, 6, 6) || inRect(x, y, 20, 2, 24, 6)
		})

		Convey("Then each is traced independently", func() {
			bs := followBorders(m, 30, 10)
			So(len(bs), ShouldEqual, 2)
			So(bs[0].parent, ShouldEqual, frameID)
			So(bs[1].parent, ShouldEqual, frameID)
		})
	})
}

func TestCompress(t *testing.T) {
	Convey("Given a chain with straight runs", t, func() {
		pts := []pixel{{0, 0}, {1, 0}, {2, 0}, {2, 1}, {2, 2}, {1, 1}}

		Convey("Then only direction changes survive", func() {
			So(compress(pts), ShouldResemble, []pixel{{0, 0}, {2, 0}, {2, 2}})
		})
	})
}
