package contour

import (
	"fmt"
	"strings"
)

// Scale selects one of the published image resolutions.
type Scale uint8

// Image scales, largest first.
const (
	Big Scale = iota
	Medium
	Small
	ExtraSmall
)

var scaleTable = [...]struct {
	name   string
	label  string
	factor int
}{
	Big:        {name: "big", label: "4k", factor: 1},
	Medium:     {name: "medium", label: "1k", factor: 4},
	Small:      {name: "small", label: "512", factor: 8},
	ExtraSmall: {name: "extra_small", label: "256", factor: 16},
}

// Scales lists every scale in table order.
var Scales = []Scale{Big, Medium, Small, ExtraSmall}

// Valid reports whether s is one of the table entries.
func (s Scale) Valid() bool { return int(s) < len(scaleTable) }

// Label is the resolution tag used in image file names.
func (s Scale) Label() string { return scaleTable[s].label }

// Factor is the pixel reduction relative to the full-resolution sensor.
func (s Scale) Factor() int { return scaleTable[s].factor }

func (s Scale) String() string {
	if !s.Valid() {
		return fmt.Sprintf("scale(%d)", uint8(s))
	}
	return scaleTable[s].name
}

// ParseScale accepts a scale name ("big") or label ("4k"), case-insensitively.
func ParseScale(v string) (Scale, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, s := range Scales {
		if v == scaleTable[s].name || v == scaleTable[s].label {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown image scale %q", v)
}

// Sensor extent used to normalize coordinates, in full-resolution pixels.
const (
	SunMin = 162.0
	SunMax = 3931.0
)

// Calibration is the coordinate window mapped onto [0,1]. Both axes share it.
type Calibration struct {
	Min float64
	Max float64
}

// CalibrationFor divides the sensor extent by the scale's reduction factor.
func CalibrationFor(s Scale) Calibration {
	f := float64(s.Factor())
	return Calibration{Min: SunMin / f, Max: SunMax / f}
}

// Remap maps v from [Min, Max] onto [0, 1].
func (c Calibration) Remap(v float64) float64 {
	return (v - c.Min) / (c.Max - c.Min)
}
