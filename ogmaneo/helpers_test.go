// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ogmaneo

import (
	"testing"

	"github.com/emer/emergent/evec"
	"github.com/goki/mat32"
)

func TestAddressing(t *testing.T) {
	size := Vec3i{X: 4, Y: 3, Z: 5}

	if got := Address2(evec.Vec2i{X: 2, Y: 1}, size.X); got != 6 {
		t.Errorf("Address2: got %v, want 6", got)
	}
	// z is the slowest dimension
	if got := Address3(evec.Vec2i{X: 2, Y: 1}, 0, size); got != 6 {
		t.Errorf("Address3 z=0: got %v, want 6", got)
	}
	if got := Address3(evec.Vec2i{X: 2, Y: 1}, 3, size); got != 3*12+6 {
		t.Errorf("Address3 z=3: got %v, want %v", got, 3*12+6)
	}

	// every cell of the grid maps to a distinct index in [0, Cells())
	seen := make(map[int]bool)
	for z := 0; z < size.Z; z++ {
		for y := 0; y < size.Y; y++ {
			for x := 0; x < size.X; x++ {
				i := Address3(evec.Vec2i{X: x, Y: y}, z, size)
				if i < 0 || i >= size.Cells() {
					t.Errorf("Address3(%v,%v,%v) = %v out of range", x, y, z, i)
				}
				if seen[i] {
					t.Errorf("Address3(%v,%v,%v) = %v collides", x, y, z, i)
				}
				seen[i] = true
			}
		}
	}
}

func TestProject(t *testing.T) {
	// equal extents: identity
	one := mat32.Vec2{X: 1, Y: 1}
	for _, p := range []evec.Vec2i{{X: 0, Y: 0}, {X: 3, Y: 1}, {X: 7, Y: 7}} {
		if got := Project(p, one); got != p {
			t.Errorf("Project identity: got %v, want %v", got, p)
		}
	}

	// 2x downscale: pairs of source columns share a center
	half := mat32.Vec2{X: 0.5, Y: 0.5}
	for x := 0; x < 8; x++ {
		got := Project(evec.Vec2i{X: x}, half)
		if got.X != x/2 {
			t.Errorf("Project downscale x=%v: got %v, want %v", x, got.X, x/2)
		}
	}

	// 2x upscale: centers land mid-block
	dbl := mat32.Vec2{X: 2, Y: 2}
	for x := 0; x < 4; x++ {
		got := Project(evec.Vec2i{X: x}, dbl)
		if got.X != 2*x+1 {
			t.Errorf("Project upscale x=%v: got %v, want %v", x, got.X, 2*x+1)
		}
	}
}

func TestProjectionRatios(t *testing.T) {
	hidden := Vec3i{X: 4, Y: 4, Z: 16}
	vld := VisibleLayerDesc{Size: Vec3i{X: 8, Y: 8, Z: 16}, Radius: 2}

	vToH, hToV, revRadii := projectionRatios(hidden, &vld)
	if vToH.X != 0.5 || vToH.Y != 0.5 {
		t.Errorf("vToH: got %v, want 0.5 x 0.5", vToH)
	}
	if hToV.X != 2 || hToV.Y != 2 {
		t.Errorf("hToV: got %v, want 2 x 2", hToV)
	}
	if revRadii.X != 2 || revRadii.Y != 2 {
		t.Errorf("revRadii: got %v, want 2 x 2", revRadii)
	}

	// reverse radii must be large enough: every visible column a hidden
	// column's field covers must project back within revRadii of it
	for hy := 0; hy < hidden.Y; hy++ {
		for hx := 0; hx < hidden.X; hx++ {
			hp := evec.Vec2i{X: hx, Y: hy}
			center := Project(hp, hToV)
			for dy := -vld.Radius; dy <= vld.Radius; dy++ {
				for dx := -vld.Radius; dx <= vld.Radius; dx++ {
					vp := evec.Vec2i{X: center.X + dx, Y: center.Y + dy}
					if vp.X < 0 || vp.X >= vld.Size.X || vp.Y < 0 || vp.Y >= vld.Size.Y {
						continue
					}
					back := Project(vp, vToH)
					if abs(back.X-hp.X) > revRadii.X || abs(back.Y-hp.Y) > revRadii.Y {
						t.Errorf("hidden %v covers visible %v but reverse projection %v exceeds radii %v", hp, vp, back, revRadii)
					}
				}
			}
		}
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func vec2i(x, y int) evec.Vec2i {
	return evec.Vec2i{X: x, Y: y}
}

func TestInBounds(t *testing.T) {
	lb := evec.Vec2i{X: 1, Y: 1}
	ub := evec.Vec2i{X: 3, Y: 3}
	in := []evec.Vec2i{{X: 1, Y: 1}, {X: 2, Y: 2}, {X: 2, Y: 1}}
	out := []evec.Vec2i{{X: 0, Y: 1}, {X: 3, Y: 2}, {X: 2, Y: 3}, {X: 0, Y: 0}}
	for _, p := range in {
		if !InBounds(p, lb, ub) {
			t.Errorf("InBounds(%v) = false, want true", p)
		}
	}
	for _, p := range out {
		if InBounds(p, lb, ub) {
			t.Errorf("InBounds(%v) = true, want false", p)
		}
	}
}

func TestCSDRValidate(t *testing.T) {
	size := Vec3i{X: 2, Y: 2, Z: 4}

	cs := NewCSDR(size.Cols())
	if err := cs.Validate(size); err != nil {
		t.Errorf("zeroed CSDR should validate: %v", err)
	}

	if err := NewCSDR(3).Validate(size); err == nil {
		t.Errorf("wrong column count should fail")
	}

	cs[1] = 4
	if err := cs.Validate(size); err == nil {
		t.Errorf("code = depth should fail")
	}
	cs[1] = -1
	if err := cs.Validate(size); err == nil {
		t.Errorf("negative code should fail")
	}
}

func TestCSDRTensorRoundTrip(t *testing.T) {
	size := Vec3i{X: 3, Y: 2, Z: 8}
	cs := CSDR{1, 7, 0, 3, 5, 2}

	tsr := cs.Tensor(size)
	if tsr.Dim(0) != size.Y || tsr.Dim(1) != size.X {
		t.Errorf("tensor shape: got %v x %v, want %v x %v", tsr.Dim(0), tsr.Dim(1), size.Y, size.X)
	}
	back := CSDRFromTensor(tsr)
	for i := range cs {
		if back[i] != cs[i] {
			t.Errorf("round trip col %v: got %v, want %v", i, back[i], cs[i])
		}
	}
}

func TestVec3iValidate(t *testing.T) {
	good := Vec3i{X: 1, Y: 1, Z: 1}
	if err := good.Validate(); err != nil {
		t.Errorf("1x1x1 should validate: %v", err)
	}
	for _, bad := range []Vec3i{{X: 0, Y: 1, Z: 1}, {X: 1, Y: -1, Z: 1}, {X: 1, Y: 1, Z: 0}} {
		if err := bad.Validate(); err == nil {
			t.Errorf("extent %v should fail validation", bad)
		}
	}
}
