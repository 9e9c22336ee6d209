// Package transform back-projects depth images into metric point clouds
// using pinhole camera intrinsics, and carries the DepthImage/FoodMask
// types the rest of the pipeline reads.
package transform

import (
	"math"

	"github.com/pkg/errors"
)

// Intrinsics holds the pinhole camera parameters of the depth sensor, in
// pixels.
type Intrinsics struct {
	Width, Height int
	Fx, Fy        float64
	Cx, Cy        float64
}

// Validate checks the invariants spec.md §3 requires of Intrinsics.
func (in Intrinsics) Validate() error {
	if in.Width <= 0 || in.Height <= 0 {
		return errors.Errorf("intrinsics: width/height must be positive, got %dx%d", in.Width, in.Height)
	}
	if !isFinite(in.Fx) || !isFinite(in.Fy) || in.Fx <= 0 || in.Fy <= 0 {
		return errors.Errorf("intrinsics: fx, fy must be finite and positive, got fx=%v fy=%v", in.Fx, in.Fy)
	}
	if !isFinite(in.Cx) || !isFinite(in.Cy) {
		return errors.New("intrinsics: cx, cy must be finite")
	}
	if in.Cx < 0 || in.Cx >= float64(in.Width) {
		return errors.Errorf("intrinsics: cx=%v out of [0, %d)", in.Cx, in.Width)
	}
	if in.Cy < 0 || in.Cy >= float64(in.Height) {
		return errors.Errorf("intrinsics: cy=%v out of [0, %d)", in.Cy, in.Height)
	}
	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Project maps a camera-frame point (millimetres) to its pixel coordinate
// (u, v); the depth is zMM itself. It is the inverse of BackProject's per-pixel math, used
// by tests to check the back-projection round trip (Testable Property 5).
func (in Intrinsics) Project(xMM, yMM, zMM float64) (u, v float64) {
	u = xMM*in.Fx/zMM + in.Cx
	v = yMM*in.Fy/zMM + in.Cy
	return u, v
}
