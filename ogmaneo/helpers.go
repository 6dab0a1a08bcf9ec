// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ogmaneo

import (
	"fmt"

	"github.com/emer/emergent/evec"
	"github.com/emer/etable/etensor"
	"github.com/goki/mat32"
)

// Vec3i is a 3D grid extent: X, Y are the column grid dimensions and Z is
// the column size (number of mutually-exclusive codes per column).
type Vec3i struct {
	X int `desc:"width of the column grid"`
	Y int `desc:"height of the column grid"`
	Z int `desc:"column size -- number of mutually-exclusive codes per column"`
}

func (v *Vec3i) Set(x, y, z int) {
	v.X, v.Y, v.Z = x, y, z
}

// Cols returns the number of columns (X * Y).
func (v Vec3i) Cols() int {
	return v.X * v.Y
}

// Cells returns the total number of cells (X * Y * Z).
func (v Vec3i) Cells() int {
	return v.X * v.Y * v.Z
}

// Vec2 returns the column grid extent.
func (v Vec3i) Vec2() evec.Vec2i {
	return evec.Vec2i{X: v.X, Y: v.Y}
}

// Validate fails on non-positive dimensions.
func (v Vec3i) Validate() error {
	if v.X < 1 || v.Y < 1 || v.Z < 1 {
		return fmt.Errorf("ogmaneo: invalid grid extent %d x %d x %d", v.X, v.Y, v.Z)
	}
	return nil
}

// CSDR is a categorical sparse distributed representation: one active code
// in [0, depth) per column, stored as a flat row-major (Y outer, X inner)
// sequence of length width * height.
type CSDR []int32

// NewCSDR returns a zeroed CSDR with one entry per column.
func NewCSDR(cols int) CSDR {
	return make(CSDR, cols)
}

// Validate checks the column count and code range against a grid extent.
func (cs CSDR) Validate(size Vec3i) error {
	if len(cs) != size.Cols() {
		return fmt.Errorf("ogmaneo: CSDR has %d columns, %d x %d grid requires %d", len(cs), size.X, size.Y, size.Cols())
	}
	for i, c := range cs {
		if c < 0 || int(c) >= size.Z {
			return fmt.Errorf("ogmaneo: CSDR column %d holds code %d outside [0, %d)", i, c, size.Z)
		}
	}
	return nil
}

// Clone returns a copy.
func (cs CSDR) Clone() CSDR {
	cp := make(CSDR, len(cs))
	copy(cp, cs)
	return cp
}

// Tensor renders the CSDR as a Y x X int32 tensor.
func (cs CSDR) Tensor(size Vec3i) *etensor.Int32 {
	tsr := etensor.NewInt32([]int{size.Y, size.X}, nil, []string{"Y", "X"})
	copy(tsr.Values, cs)
	return tsr
}

// CSDRFromTensor flattens a tensor of column codes into a CSDR.
func CSDRFromTensor(tsr *etensor.Int32) CSDR {
	cs := NewCSDR(tsr.Len())
	copy(cs, tsr.Values)
	return cs
}

// Address2 returns the flat buffer index of a 2D grid position.
func Address2(pos evec.Vec2i, width int) int {
	return pos.Y*width + pos.X
}

// Address3 returns the flat buffer index of the cell at column position pos
// and cell z, with z the slowest-varying dimension.
func Address3(pos evec.Vec2i, z int, size Vec3i) int {
	return z*size.X*size.Y + Address2(pos, size.X)
}

// Project maps a column position in one grid to the corresponding center
// position in a differently-sized grid, where toRatio is the ratio of
// destination extent to source extent per axis.
func Project(pos evec.Vec2i, toRatio mat32.Vec2) evec.Vec2i {
	return evec.Vec2i{
		X: int(mat32.Floor(float32(pos.X)*toRatio.X + toRatio.X*0.5)),
		Y: int(mat32.Floor(float32(pos.Y)*toRatio.Y + toRatio.Y*0.5)),
	}
}

// InBounds reports whether pos lies in the half-open box [lower, upper).
func InBounds(pos, lower, upper evec.Vec2i) bool {
	return pos.X >= lower.X && pos.X < upper.X && pos.Y >= lower.Y && pos.Y < upper.Y
}

// Sigmoid is the logistic function over float32.
func Sigmoid(x float32) float32 {
	return 1 / (1 + mat32.Exp(-x))
}

// VisibleLayerDesc describes one input (visible) layer of an engine: the
// visible grid extent and the Chebyshev connection radius in visible-grid
// units.  It is immutable once an engine is created from it.
type VisibleLayerDesc struct {
	Size   Vec3i `desc:"extent of the visible grid"`
	Radius int   `def:"2" desc:"connection radius onto the visible grid, in visible-grid units"`
}

func (vld *VisibleLayerDesc) Defaults() {
	vld.Size.Set(4, 4, 16)
	vld.Radius = 2
}

// Validate fails on a bad extent or negative radius.
func (vld *VisibleLayerDesc) Validate() error {
	if err := vld.Size.Validate(); err != nil {
		return err
	}
	if vld.Radius < 0 {
		return fmt.Errorf("ogmaneo: negative radius %d", vld.Radius)
	}
	return nil
}

// projectionRatios precomputes the resolution ratios between a hidden grid
// and one visible grid, and the reverse radius bounding which hidden columns
// can contain a given visible column in their receptive field.
func projectionRatios(hiddenSize Vec3i, vld *VisibleLayerDesc) (vToH, hToV mat32.Vec2, revRadii evec.Vec2i) {
	vToH = mat32.Vec2{
		X: float32(hiddenSize.X) / float32(vld.Size.X),
		Y: float32(hiddenSize.Y) / float32(vld.Size.Y),
	}
	hToV = mat32.Vec2{
		X: float32(vld.Size.X) / float32(hiddenSize.X),
		Y: float32(vld.Size.Y) / float32(hiddenSize.Y),
	}
	revRadii = evec.Vec2i{
		X: int(mat32.Ceil(vToH.X*float32(vld.Radius))) + 1,
		Y: int(mat32.Ceil(vToH.Y*float32(vld.Radius))) + 1,
	}
	return
}

// checkInputs validates one input CSDR per visible layer, shape-matched to
// its descriptor.
func checkInputs(inputs []CSDR, descs []VisibleLayerDesc) error {
	if len(inputs) != len(descs) {
		return fmt.Errorf("ogmaneo: got %d input CSDRs for %d visible layers", len(inputs), len(descs))
	}
	for vli := range inputs {
		if err := inputs[vli].Validate(descs[vli].Size); err != nil {
			return fmt.Errorf("visible layer %d: %w", vli, err)
		}
	}
	return nil
}

// checkDescs validates a non-empty descriptor list.
func checkDescs(descs []VisibleLayerDesc) error {
	if len(descs) == 0 {
		return fmt.Errorf("ogmaneo: at least one visible layer is required")
	}
	for vli := range descs {
		if err := descs[vli].Validate(); err != nil {
			return fmt.Errorf("visible layer %d: %w", vli, err)
		}
	}
	return nil
}
