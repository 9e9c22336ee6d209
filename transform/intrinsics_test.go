package transform

import (
	"testing"

	"go.viam.com/test"
)

func TestIntrinsicsValidate(t *testing.T) {
	good := Intrinsics{Width: 64, Height: 64, Fx: 64, Fy: 64, Cx: 32, Cy: 32}
	test.That(t, good.Validate(), test.ShouldBeNil)

	bad := good
	bad.Fx = 0
	test.That(t, bad.Validate(), test.ShouldNotBeNil)

	bad = good
	bad.Cx = 100
	test.That(t, bad.Validate(), test.ShouldNotBeNil)

	bad = good
	bad.Width = 0
	test.That(t, bad.Validate(), test.ShouldNotBeNil)
}

func TestProjectBackProjectRoundTrip(t *testing.T) {
	intr := Intrinsics{Width: 64, Height: 64, Fx: 64, Fy: 64, Cx: 32, Cy: 32}
	const zMM = 150.0
	u, v := 40.0, 20.0
	xMM := (u - intr.Cx) * zMM / intr.Fx
	yMM := (v - intr.Cy) * zMM / intr.Fy

	gotU, gotV := intr.Project(xMM, yMM, zMM)
	test.That(t, gotU, test.ShouldAlmostEqual, u, 1e-6)
	test.That(t, gotV, test.ShouldAlmostEqual, v, 1e-6)
}
