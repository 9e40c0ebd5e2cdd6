package contour

// Default extraction parameters.
const (
	DefaultUmbraThreshold    = 0.25
	DefaultPenumbraThreshold = 0.65
	DefaultMinArea           = 10.0
	DefaultMaxArea           = 100000.0
	minVertices              = 3
)

// Extractor converts rasters into filtered, normalized contours. It holds
// only configuration and is safe for concurrent use.
type Extractor struct {
	umbra       float64
	penumbra    float64
	minArea     float64
	maxArea     float64
	scale       Scale
	excludeLimb bool
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithThresholds sets the umbra and penumbra threshold fractions.
// Values outside [0,1] are ignored.
func WithThresholds(umbra, penumbra float64) Option {
	return func(e *Extractor) {
		if umbra >= 0 && umbra <= 1 {
			e.umbra = umbra
		}
		if penumbra >= 0 && penumbra <= 1 {
			e.penumbra = penumbra
		}
	}
}

// WithAreaWindow sets the inclusive area window in squared pixels.
func WithAreaWindow(minArea, maxArea float64) Option {
	return func(e *Extractor) {
		if minArea >= 0 && maxArea >= minArea {
			e.minArea, e.maxArea = minArea, maxArea
		}
	}
}

// WithScale sets the scale whose calibration bounds are used for normalization.
func WithScale(s Scale) Option {
	return func(e *Extractor) {
		if s.Valid() {
			e.scale = s
		}
	}
}

// WithLimbExclusion controls whether Features drops outer borders that sit
// directly in the raster frame (the solar limb and specks outside it).
func WithLimbExclusion(enabled bool) Option {
	return func(e *Extractor) {
		e.excludeLimb = enabled
	}
}

// NewExtractor returns an Extractor with the operational defaults.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		umbra:       DefaultUmbraThreshold,
		penumbra:    DefaultPenumbraThreshold,
		minArea:     DefaultMinArea,
		maxArea:     DefaultMaxArea,
		scale:       Big,
		excludeLimb: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Scale returns the scale the extractor normalizes for.
func (e *Extractor) Scale() Scale { return e.scale }

// Extract returns every border of img binarized at threshold whose area
// lies in the window, normalized to the calibration frame.
func (e *Extractor) Extract(img *RawImage, threshold float64) []Contour {
	return e.extract(img, threshold, false)
}

// Features runs the umbra and penumbra passes over img.
func (e *Extractor) Features(img *RawImage) FeatureSet {
	return FeatureSet{
		Umbra:    e.extract(img, e.umbra, e.excludeLimb),
		Penumbra: e.extract(img, e.penumbra, e.excludeLimb),
	}
}

func (e *Extractor) extract(img *RawImage, threshold float64, dropLimb bool) []Contour {
	if img == nil || img.Width == 0 || img.Height == 0 {
		return []Contour{}
	}
	cal := CalibrationFor(e.scale)
	borders := followBorders(binarize(img, threshold), img.Width, img.Height)

	out := make([]Contour, 0, len(borders))
	for _, b := range borders {
		if len(b.points) < minVertices {
			continue
		}
		if dropLimb && b.topLevelOuter() {
			continue
		}
		c := make(Contour, len(b.points))
		for i, p := range b.points {
			c[i] = Point{X: float64(p.x), Y: float64(p.y)}
		}
		area := Area(c)
		if area < e.minArea || area > e.maxArea {
			continue
		}
		for i := range c {
			c[i].X = cal.Remap(c[i].X)
			c[i].Y = cal.Remap(c[i].Y)
		}
		out = append(out, c)
	}
	return out
}

// Extract runs a default Extractor at the given scale.
func Extract(img *RawImage, threshold float64, scale Scale) []Contour {
	return NewExtractor(WithScale(scale)).Extract(img, threshold)
}
