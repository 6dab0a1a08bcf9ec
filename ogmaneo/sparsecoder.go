// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ogmaneo

import (
	"math/rand"

	"github.com/Thanh-Binh/OgmaNeo2/compute"
	"github.com/emer/emergent/evec"
	"github.com/goki/ki/ints"
	"github.com/goki/mat32"
)

// CoderVisibleLayer holds the per-visible-layer state of a SparseCoder: the
// dense weight array, the reconstruction codes fed back into the next
// explaining-away iteration, and the precomputed projection constants.
//
// Weights are addressed as hiddenCellIndex + az*numHiddenCells, where az =
// (x - fieldLowerBound.X) + (y - fieldLowerBound.Y)*diam + code*diam*diam is
// the relative receptive-field offset.  The same az convention must be used
// everywhere a field is revisited.
type CoderVisibleLayer struct {
	Weights         []float32  `desc:"dense weights: one entry per (hidden cell, field offset, visible code)"`
	ReconCs         CSDR       `desc:"reconstruction codes from the backward pass"`
	VisibleToHidden mat32.Vec2 `desc:"visible -> hidden resolution ratio"`
	HiddenToVisible mat32.Vec2 `desc:"hidden -> visible resolution ratio"`
	ReverseRadii    evec.Vec2i `desc:"bound on hidden columns whose field can contain a visible column"`
}

// SparseCoder compresses one or more input CSDRs into a hidden CSDR by
// iterative explaining away: each iteration re-derives column activations
// from the input minus what the current reconstruction already accounts
// for, then re-picks each column's winning code.
type SparseCoder struct {
	Alpha             float32             `def:"0.5" desc:"weight learning rate"`
	ExplainIters      int                 `def:"4" desc:"explaining-away iterations per Activate"`
	HiddenSize        Vec3i               `desc:"extent of the hidden grid"`
	HiddenCs          CSDR                `desc:"hidden codes -- the output CSDR"`
	HiddenActivations []float32           `desc:"running activation per hidden cell, scratch across iterations"`
	VisibleLayers     []CoderVisibleLayer `desc:"per-visible-layer weights and buffers"`
	VisibleLayerDescs []VisibleLayerDesc  `desc:"descriptors the layers were built from"`
}

func (sc *SparseCoder) Defaults() {
	sc.Alpha = 0.5
	sc.ExplainIters = 4
}

// CreateRandom allocates all state for the given hidden extent and visible
// layer descriptors, and initializes weights i.i.d. uniform in [0.99, 1.0)
// to bias early reconstructions toward all-ones.
func (sc *SparseCoder) CreateRandom(cs *compute.System, hiddenSize Vec3i, visibleLayerDescs []VisibleLayerDesc) error {
	if err := hiddenSize.Validate(); err != nil {
		return err
	}
	if err := checkDescs(visibleLayerDescs); err != nil {
		return err
	}
	sc.Defaults()
	sc.HiddenSize = hiddenSize
	sc.VisibleLayerDescs = append([]VisibleLayerDesc(nil), visibleLayerDescs...)
	sc.VisibleLayers = make([]CoderVisibleLayer, len(visibleLayerDescs))

	numHiddenCols := hiddenSize.Cols()
	numHidden := hiddenSize.Cells()

	for vli := range sc.VisibleLayers {
		vl := &sc.VisibleLayers[vli]
		vld := &sc.VisibleLayerDescs[vli]

		vl.VisibleToHidden, vl.HiddenToVisible, vl.ReverseRadii = projectionRatios(hiddenSize, vld)

		diam := vld.Radius*2 + 1
		vl.Weights = make([]float32, numHidden*diam*diam*vld.Size.Z)
		err := compute.Run1D(cs, len(vl.Weights), func(pos int, rng *rand.Rand) {
			vl.Weights[pos] = 0.99 + 0.01*rng.Float32()
		})
		if err != nil {
			return err
		}

		vl.ReconCs = NewCSDR(vld.Size.Cols())
	}

	sc.HiddenCs = NewCSDR(numHiddenCols)
	sc.HiddenActivations = make([]float32, numHidden)
	return nil
}

// Activate runs ExplainIters rounds of forward coding and backward
// reconstruction, leaving the final code in HiddenCs.  It mutates only
// internal buffers and always succeeds given valid-shaped input.
func (sc *SparseCoder) Activate(cs *compute.System, inputs []CSDR) error {
	if err := checkInputs(inputs, sc.VisibleLayerDescs); err != nil {
		return err
	}
	for it := 0; it < sc.ExplainIters; it++ {
		firstIter := it == 0
		err := compute.Run2D(cs, sc.HiddenSize.Vec2(), func(pos evec.Vec2i, rng *rand.Rand) {
			sc.forward(pos, inputs, firstIter)
		})
		if err != nil {
			return err
		}
		for vli := range sc.VisibleLayers {
			vli := vli
			err := compute.Run2D(cs, sc.VisibleLayerDescs[vli].Size.Vec2(), func(pos evec.Vec2i, rng *rand.Rand) {
				sc.backward(pos, vli)
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// Learn moves the weights of every visible layer toward reproducing the
// input codes from the current hidden codes, by a local per-synapse delta
// rule against the average hidden support.
func (sc *SparseCoder) Learn(cs *compute.System, inputs []CSDR) error {
	if err := checkInputs(inputs, sc.VisibleLayerDescs); err != nil {
		return err
	}
	for vli := range sc.VisibleLayers {
		vli := vli
		err := compute.Run2D(cs, sc.VisibleLayerDescs[vli].Size.Vec2(), func(pos evec.Vec2i, rng *rand.Rand) {
			sc.learn(pos, inputs, vli)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// forward accumulates feed-forward support for every candidate code of one
// hidden column and picks the arg-max.  On the first iteration the support
// replaces the running activation; afterwards the activation is incremented
// by new input support minus current reconstruction support.
func (sc *SparseCoder) forward(pos evec.Vec2i, inputs []CSDR, firstIter bool) {
	dxy := sc.HiddenSize.X * sc.HiddenSize.Y
	dxyz := dxy * sc.HiddenSize.Z

	maxIndex := 0
	maxValue := float32(-999999)

	for hc := 0; hc < sc.HiddenSize.Z; hc++ {
		// partial weight address for this hidden cell
		dPartial := pos.X + pos.Y*sc.HiddenSize.X + hc*dxy

		inputAct := float32(0)
		reconAct := float32(0)

		for vli := range sc.VisibleLayers {
			vl := &sc.VisibleLayers[vli]
			vld := &sc.VisibleLayerDescs[vli]

			center := Project(pos, vl.HiddenToVisible)
			fieldLB := evec.Vec2i{X: center.X - vld.Radius, Y: center.Y - vld.Radius}

			diam := vld.Radius*2 + 1
			diam2 := diam * diam

			lb := evec.Vec2i{X: ints.MaxInt(0, fieldLB.X), Y: ints.MaxInt(0, fieldLB.Y)}
			ub := evec.Vec2i{X: ints.MinInt(vld.Size.X-1, center.X+vld.Radius), Y: ints.MinInt(vld.Size.Y-1, center.Y+vld.Radius)}

			for x := lb.X; x <= ub.X; x++ {
				for y := lb.Y; y <= ub.Y; y++ {
					vi := Address2(evec.Vec2i{X: x, Y: y}, vld.Size.X)

					inC := int(inputs[vli][vi])
					az := x - fieldLB.X + (y-fieldLB.Y)*diam + inC*diam2
					inputAct += vl.Weights[dPartial+az*dxyz]

					if !firstIter {
						reC := int(vl.ReconCs[vi])
						az := x - fieldLB.X + (y-fieldLB.Y)*diam + reC*diam2
						reconAct += vl.Weights[dPartial+az*dxyz]
					}
				}
			}
		}

		hi := Address3(pos, hc, sc.HiddenSize)
		if firstIter {
			sc.HiddenActivations[hi] = inputAct
		} else {
			sc.HiddenActivations[hi] += inputAct - reconAct
		}

		if sc.HiddenActivations[hi] > maxValue {
			maxValue = sc.HiddenActivations[hi]
			maxIndex = hc
		}
	}

	sc.HiddenCs[Address2(pos, sc.HiddenSize.X)] = int32(maxIndex)
}

// backward reconstructs one visible column's code as the candidate with the
// highest average support from the hidden columns whose receptive fields
// cover it, bounded by the precomputed reverse radii.
func (sc *SparseCoder) backward(pos evec.Vec2i, vli int) {
	vl := &sc.VisibleLayers[vli]
	vld := &sc.VisibleLayerDescs[vli]

	dxy := sc.HiddenSize.X * sc.HiddenSize.Y
	dxyz := dxy * sc.HiddenSize.Z

	diam := vld.Radius*2 + 1
	diam2 := diam * diam

	hCenter := Project(pos, vl.VisibleToHidden)
	lb := evec.Vec2i{X: ints.MaxInt(0, hCenter.X-vl.ReverseRadii.X), Y: ints.MaxInt(0, hCenter.Y-vl.ReverseRadii.Y)}
	ub := evec.Vec2i{X: ints.MinInt(sc.HiddenSize.X-1, hCenter.X+vl.ReverseRadii.X), Y: ints.MinInt(sc.HiddenSize.Y-1, hCenter.Y+vl.ReverseRadii.Y)}

	maxIndex := 0
	maxValue := float32(-999999)

	for vc := 0; vc < vld.Size.Z; vc++ {
		sum := float32(0)
		count := float32(0)

		for x := lb.X; x <= ub.X; x++ {
			for y := lb.Y; y <= ub.Y; y++ {
				hp := evec.Vec2i{X: x, Y: y}
				fCenter := Project(hp, vl.HiddenToVisible)
				fLB := evec.Vec2i{X: fCenter.X - vld.Radius, Y: fCenter.Y - vld.Radius}
				fUB := evec.Vec2i{X: fCenter.X + vld.Radius + 1, Y: fCenter.Y + vld.Radius + 1}

				if InBounds(pos, fLB, fUB) {
					hiddenC := int(sc.HiddenCs[Address2(hp, sc.HiddenSize.X)])
					az := pos.X - fLB.X + (pos.Y-fLB.Y)*diam + vc*diam2
					wi := hp.X + hp.Y*sc.HiddenSize.X + hiddenC*dxy + az*dxyz
					sum += vl.Weights[wi]
					count++
				}
			}
		}

		sum /= mat32.Max(1, count)

		if sum > maxValue {
			maxValue = sum
			maxIndex = vc
		}
	}

	vl.ReconCs[Address2(pos, vld.Size.X)] = int32(maxIndex)
}

// learn recomputes the average hidden support for every candidate code at
// one visible column (as in backward) and moves the contributing weights by
// Alpha * (target - support), target 1 for the actual input code, 0
// otherwise.  The visited weight slots are disjoint across visible columns,
// which keeps the parallel dispatch safe.
func (sc *SparseCoder) learn(pos evec.Vec2i, inputs []CSDR, vli int) {
	vl := &sc.VisibleLayers[vli]
	vld := &sc.VisibleLayerDescs[vli]

	dxy := sc.HiddenSize.X * sc.HiddenSize.Y
	dxyz := dxy * sc.HiddenSize.Z

	diam := vld.Radius*2 + 1
	diam2 := diam * diam

	inputC := int(inputs[vli][Address2(pos, vld.Size.X)])

	hCenter := Project(pos, vl.VisibleToHidden)
	lb := evec.Vec2i{X: ints.MaxInt(0, hCenter.X-vl.ReverseRadii.X), Y: ints.MaxInt(0, hCenter.Y-vl.ReverseRadii.Y)}
	ub := evec.Vec2i{X: ints.MinInt(sc.HiddenSize.X-1, hCenter.X+vl.ReverseRadii.X), Y: ints.MinInt(sc.HiddenSize.Y-1, hCenter.Y+vl.ReverseRadii.Y)}

	for vc := 0; vc < vld.Size.Z; vc++ {
		sum := float32(0)
		count := float32(0)

		for x := lb.X; x <= ub.X; x++ {
			for y := lb.Y; y <= ub.Y; y++ {
				hp := evec.Vec2i{X: x, Y: y}
				fCenter := Project(hp, vl.HiddenToVisible)
				fLB := evec.Vec2i{X: fCenter.X - vld.Radius, Y: fCenter.Y - vld.Radius}
				fUB := evec.Vec2i{X: fCenter.X + vld.Radius + 1, Y: fCenter.Y + vld.Radius + 1}

				if InBounds(pos, fLB, fUB) {
					hiddenC := int(sc.HiddenCs[Address2(hp, sc.HiddenSize.X)])
					az := pos.X - fLB.X + (pos.Y-fLB.Y)*diam + vc*diam2
					wi := hp.X + hp.Y*sc.HiddenSize.X + hiddenC*dxy + az*dxyz
					sum += vl.Weights[wi]
					count++
				}
			}
		}

		target := float32(0)
		if vc == inputC {
			target = 1
		}
		delta := sc.Alpha * (target - sum/mat32.Max(1, count))

		for x := lb.X; x <= ub.X; x++ {
			for y := lb.Y; y <= ub.Y; y++ {
				hp := evec.Vec2i{X: x, Y: y}
				fCenter := Project(hp, vl.HiddenToVisible)
				fLB := evec.Vec2i{X: fCenter.X - vld.Radius, Y: fCenter.Y - vld.Radius}
				fUB := evec.Vec2i{X: fCenter.X + vld.Radius + 1, Y: fCenter.Y + vld.Radius + 1}

				if InBounds(pos, fLB, fUB) {
					hiddenC := int(sc.HiddenCs[Address2(hp, sc.HiddenSize.X)])
					az := pos.X - fLB.X + (pos.Y-fLB.Y)*diam + vc*diam2
					wi := hp.X + hp.Y*sc.HiddenSize.X + hiddenC*dxy + az*dxyz
					vl.Weights[wi] += delta
				}
			}
		}
	}
}
