package contour

// Topological border following (Suzuki & Abe, 1985) on an 8-connected
// foreground. Every outer border and every hole border is traced once and
// labelled with its parent border, which gives the full containment tree.

type pixel struct{ x, y int }

// Neighbour offsets in counterclockwise order starting east. y grows downward.
var neighbours = [8]pixel{{1, 0}, {1, -1}, {0, -1}, {-1, -1}, {-1, 0}, {-1, 1}, {0, 1}, {1, 1}}

func direction(dx, dy int) int {
	for i, n := range neighbours {
		if n.x == dx && n.y == dy {
			return i
		}
	}
	return -1
}

// frameID is the label of the virtual border around the raster.
const frameID = 1

type border struct {
	id     int32
	parent int32
	hole   bool
	points []pixel
}

// topLevelOuter reports whether b is an outer border sitting directly in the frame.
func (b border) topLevelOuter() bool { return !b.hole && b.parent == frameID }

// followBorders traces all borders of mask (width*height, row-major).
// Returned points are in raster coordinates with runs of equal chain
// direction compressed to their end points.
func followBorders(mask []bool, width, height int) []border {
	w, h := width+2, height+2
	f := make([]int32, w*h)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if mask[y*width+x] {
				f[(y+1)*w+x+1] = 1
			}
		}
	}

	type node struct {
		hole   bool
		parent int32
	}
	// index 0 unused, index 1 is the frame
	tree := []node{{}, {hole: true}}

	var out []border
	nbd := int32(frameID)
	for y := 1; y < h-1; y++ {
		lnbd := int32(frameID)
		for x := 1; x < w-1; x++ {
			v := f[y*w+x]
			if v == 0 {
				continue
			}

			var hole bool
			var from pixel
			switch {
			case v == 1 && f[y*w+x-1] == 0:
				from = pixel{x - 1, y}
			case v >= 1 && f[y*w+x+1] == 0:
				hole = true
				from = pixel{x + 1, y}
				if v > 1 {
					lnbd = v
				}
			default:
				if v != 1 {
					lnbd = abs32(v)
				}
				continue
			}

			nbd++
			parent := lnbd
			if tree[lnbd].hole == hole {
				parent = tree[lnbd].parent
			}
			tree = append(tree, node{hole: hole, parent: parent})

			pts := follow(f, w, pixel{x, y}, from, nbd)
			out = append(out, border{id: nbd, parent: parent, hole: hole, points: compress(pts)})

			if f[y*w+x] != 1 {
				lnbd = abs32(f[y*w+x])
			}
		}
	}
	return out
}

// follow walks one border starting at start, whose zero neighbour is from,
// marking visited pixels with nbd. Coordinates are returned unpadded.
func follow(f []int32, w int, start, from pixel, nbd int32) []pixel {
	at := func(p pixel) int32 { return f[p.y*w+p.x] }

	d0 := direction(from.x-start.x, from.y-start.y)
	first := pixel{}
	found := false
	for k := 0; k < 8; k++ {
		d := (d0 - k + 8) % 8
		p := pixel{start.x + neighbours[d].x, start.y + neighbours[d].y}
		if at(p) != 0 {
			first, found = p, true
			break
		}
	}
	if !found {
		f[start.y*w+start.x] = -nbd
		return []pixel{{start.x - 1, start.y - 1}}
	}

	prev, cur := first, start
	pts := []pixel{{cur.x - 1, cur.y - 1}}
	for {
		dPrev := direction(prev.x-cur.x, prev.y-cur.y)
		eastZero := false
		var next pixel
		for k := 1; k <= 8; k++ {
			d := (dPrev + k) % 8
			q := pixel{cur.x + neighbours[d].x, cur.y + neighbours[d].y}
			if at(q) != 0 {
				next = q
				break
			}
			if d == 0 {
				eastZero = true
			}
		}

		idx := cur.y*w + cur.x
		if eastZero {
			f[idx] = -nbd
		} else if f[idx] == 1 {
			f[idx] = nbd
		}

		if next == start && cur == first {
			return pts
		}
		prev, cur = cur, next
		pts = append(pts, pixel{cur.x - 1, cur.y - 1})
	}
}

// compress keeps only the vertices where the chain direction changes.
func compress(pts []pixel) []pixel {
	n := len(pts)
	if n < 3 {
		return pts
	}
	out := make([]pixel, 0, n)
	for i := 0; i < n; i++ {
		prev := pts[(i-1+n)%n]
		cur := pts[i]
		next := pts[(i+1)%n]
		if cur.x-prev.x == next.x-cur.x && cur.y-prev.y == next.y-cur.y {
			continue
		}
		out = append(out, cur)
	}
	return out
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
