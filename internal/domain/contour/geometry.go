package contour

import (
	"encoding/json"
	"fmt"
	"math"
)

// Point is a 2-D vertex. It serializes as a two-element JSON array [x, y].
type Point struct {
	X float64
	Y float64
}

// MarshalJSON implements json.Marshaler.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.X, p.Y})
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Point) UnmarshalJSON(b []byte) error {
	var xy []float64
	if err := json.Unmarshal(b, &xy); err != nil {
		return err
	}
	if len(xy) != 2 {
		return fmt.Errorf("point must have 2 coordinates, got %d", len(xy))
	}
	p.X, p.Y = xy[0], xy[1]
	return nil
}

// Contour is a closed polygon; the edge from the last vertex back to the
// first is implied.
type Contour []Point

// Area returns the unsigned shoelace area of c, including the closing edge.
func Area(c Contour) float64 {
	n := len(c)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += c[i].X*c[j].Y - c[j].X*c[i].Y
	}
	return math.Abs(sum) / 2
}

// FeatureSet holds the two contour families extracted from one image.
type FeatureSet struct {
	Umbra    []Contour `json:"umbra"`
	Penumbra []Contour `json:"penumbra"`
}
