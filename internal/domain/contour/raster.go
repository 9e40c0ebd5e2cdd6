package contour

import (
	"image"
	"image/color"
)

// RawImage is an 8-bit grayscale raster stored row-major.
type RawImage struct {
	Width  int
	Height int
	Pix    []uint8
}

// NewRawImage allocates a black raster.
func NewRawImage(width, height int) *RawImage {
	return &RawImage{Width: width, Height: height, Pix: make([]uint8, width*height)}
}

// At returns the intensity at (x, y).
func (r *RawImage) At(x, y int) uint8 { return r.Pix[y*r.Width+x] }

// Set writes the intensity at (x, y).
func (r *RawImage) Set(x, y int, v uint8) { r.Pix[y*r.Width+x] = v }

// FromImage converts a decoded image to a RawImage. Gray and YCbCr images
// (what JPEG decoding yields) are copied from their luminance plane; other
// models go through color.GrayModel.
func FromImage(img image.Image) *RawImage {
	b := img.Bounds()
	r := NewRawImage(b.Dx(), b.Dy())
	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < r.Height; y++ {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(r.Pix[y*r.Width:(y+1)*r.Width], src.Pix[off:off+r.Width])
		}
	case *image.YCbCr:
		for y := 0; y < r.Height; y++ {
			off := src.YOffset(b.Min.X, b.Min.Y+y)
			copy(r.Pix[y*r.Width:(y+1)*r.Width], src.Y[off:off+r.Width])
		}
	default:
		for y := 0; y < r.Height; y++ {
			for x := 0; x < r.Width; x++ {
				g, _ := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
				r.Pix[y*r.Width+x] = g.Y
			}
		}
	}
	return r
}

// binarize marks pixels whose intensity is at least fraction*255.
func binarize(img *RawImage, fraction float64) []bool {
	level := fraction * 255
	mask := make([]bool, len(img.Pix))
	for i, v := range img.Pix {
		mask[i] = float64(v) >= level
	}
	return mask
}
