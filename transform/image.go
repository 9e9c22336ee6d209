package transform

import "github.com/pkg/errors"

// DepthImage is a row-major H×W buffer of raw 16-bit depth units. A raw
// value of 0 denotes an invalid pixel.
type DepthImage struct {
	Width, Height int
	Pix           []uint16 // len == Width*Height, row-major
}

// NewDepthImage validates shape and wraps pix.
func NewDepthImage(width, height int, pix []uint16) (*DepthImage, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("depth image: width/height must be positive, got %dx%d", width, height)
	}
	if len(pix) != width*height {
		return nil, errors.Errorf("depth image: expected %d pixels, got %d", width*height, len(pix))
	}
	return &DepthImage{Width: width, Height: height, Pix: pix}, nil
}

// At returns the raw depth unit at (u, v).
func (d *DepthImage) At(u, v int) uint16 {
	return d.Pix[v*d.Width+u]
}

// FoodMask is a row-major H×W boolean buffer identifying pixels whose
// depth value is to be integrated by VolumeIntegrate.
type FoodMask struct {
	Width, Height int
	Pix           []bool
}

// NewFoodMask validates shape and wraps pix.
func NewFoodMask(width, height int, pix []bool) (*FoodMask, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("food mask: width/height must be positive, got %dx%d", width, height)
	}
	if len(pix) != width*height {
		return nil, errors.Errorf("food mask: expected %d pixels, got %d", width*height, len(pix))
	}
	return &FoodMask{Width: width, Height: height, Pix: pix}, nil
}

// At reports whether (u, v) is a food pixel.
func (m *FoodMask) At(u, v int) bool {
	return m.Pix[v*m.Width+u]
}

// SameShape reports whether m and d describe images of identical
// dimensions, a precondition BackProject and VolumeIntegrate both check.
func (m *FoodMask) SameShape(d *DepthImage) bool {
	return m.Width == d.Width && m.Height == d.Height
}
