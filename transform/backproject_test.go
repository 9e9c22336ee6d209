package transform

import (
	"context"
	"testing"

	"go.viam.com/test"
)

func uniformDepthImage(t *testing.T, w, h int, value uint16) *DepthImage {
	t.Helper()
	pix := make([]uint16, w*h)
	for i := range pix {
		pix[i] = value
	}
	img, err := NewDepthImage(w, h, pix)
	test.That(t, err, test.ShouldBeNil)
	return img
}

func TestBackProjectUniformDepth(t *testing.T) {
	intr := Intrinsics{Width: 64, Height: 64, Fx: 64, Fy: 64, Cx: 32, Cy: 32}
	depth := uniformDepthImage(t, 64, 64, 1000) // 1000 units * 1e-4 m/unit * 1000 = 100mm
	pc, diag, err := BackProject(context.Background(), intr, depth, nil, 1e-4, DefaultConfig())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, diag.NDroppedPixels, test.ShouldEqual, 0)
	test.That(t, pc.Size(), test.ShouldEqual, 64*64)
}

func TestBackProjectDropsZeroAndOutOfRange(t *testing.T) {
	intr := Intrinsics{Width: 4, Height: 1, Fx: 64, Fy: 64, Cx: 2, Cy: 0}
	// pixel 0: invalid (0), pixel 1: too close (1mm), pixel 2: valid (100mm), pixel 3: too far (1000mm)
	pix := []uint16{0, 10, 1000, 10000}
	depth, err := NewDepthImage(4, 1, pix)
	test.That(t, err, test.ShouldBeNil)

	pc, diag, err := BackProject(context.Background(), intr, depth, nil, 1e-4, DefaultConfig())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, diag.NDroppedPixels, test.ShouldEqual, 3)
	test.That(t, pc.Size(), test.ShouldEqual, 1)
}

func TestBackProjectRespectsFoodMask(t *testing.T) {
	intr := Intrinsics{Width: 2, Height: 1, Fx: 64, Fy: 64, Cx: 1, Cy: 0}
	depth, err := NewDepthImage(2, 1, []uint16{1000, 1000})
	test.That(t, err, test.ShouldBeNil)
	mask, err := NewFoodMask(2, 1, []bool{true, false})
	test.That(t, err, test.ShouldBeNil)

	pc, _, err := BackProject(context.Background(), intr, depth, mask, 1e-4, DefaultConfig())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 1)
}

func TestBackProjectEmptyOutputIsLegal(t *testing.T) {
	intr := Intrinsics{Width: 4, Height: 4, Fx: 64, Fy: 64, Cx: 2, Cy: 2}
	depth := uniformDepthImage(t, 4, 4, 0)
	pc, diag, err := BackProject(context.Background(), intr, depth, nil, 1e-4, DefaultConfig())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pc.Size(), test.ShouldEqual, 0)
	test.That(t, diag.NDroppedPixels, test.ShouldEqual, 16)
}

func TestBackProjectCancellation(t *testing.T) {
	intr := Intrinsics{Width: 64, Height: 64, Fx: 64, Fy: 64, Cx: 32, Cy: 32}
	depth := uniformDepthImage(t, 64, 64, 1000)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := BackProject(ctx, intr, depth, nil, 1e-4, DefaultConfig())
	test.That(t, err, test.ShouldNotBeNil)
}
