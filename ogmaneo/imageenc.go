// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ogmaneo

import (
	"fmt"
	"math/rand"

	"github.com/Thanh-Binh/OgmaNeo2/compute"
	"github.com/emer/emergent/evec"
	"github.com/emer/etable/etensor"
	"github.com/goki/ki/ints"
	"github.com/goki/mat32"
)

// ImageVisibleLayer holds the per-visible-layer state of an ImageEncoder:
// dense weights addressed exactly as the SparseCoder's, and a float
// reconstruction of the visible activations in place of reconstruction
// codes.
type ImageVisibleLayer struct {
	Weights         []float32  `desc:"dense weights, same addressing as CoderVisibleLayer"`
	ReconActs       []float32  `desc:"reconstructed visible activations from the backward pass"`
	VisibleToHidden mat32.Vec2 `desc:"visible -> hidden resolution ratio"`
	HiddenToVisible mat32.Vec2 `desc:"hidden -> visible resolution ratio"`
	ReverseRadii    evec.Vec2i `desc:"bound on hidden columns whose field can contain a visible column"`
}

// ImageEncoder runs the SparseCoder's iterative explaining-away algorithm
// over dense float visible activations (e.g. image channels) instead of
// categorical codes.  Visible inputs arrive as one Y x X x Z tensor per
// layer; the hidden output is a CSDR like any other engine's, so an
// ImageEncoder typically feeds a SparseCoder or Predictor above it.
type ImageEncoder struct {
	Alpha             float32             `def:"0.001" desc:"weight learning rate"`
	ExplainIters      int                 `def:"4" desc:"explaining-away iterations per Activate"`
	HiddenSize        Vec3i               `desc:"extent of the hidden grid"`
	HiddenCs          CSDR                `desc:"hidden codes -- the output CSDR"`
	HiddenActivations []float32           `desc:"running activation per hidden cell, scratch across iterations"`
	VisibleLayers     []ImageVisibleLayer `desc:"per-visible-layer weights and buffers"`
	VisibleLayerDescs []VisibleLayerDesc  `desc:"descriptors the layers were built from"`
}

func (ie *ImageEncoder) Defaults() {
	ie.Alpha = 0.001
	ie.ExplainIters = 4
}

// CreateRandom allocates all state, weights i.i.d. uniform in [0.99, 1.0) as
// in the SparseCoder.
func (ie *ImageEncoder) CreateRandom(cs *compute.System, hiddenSize Vec3i, visibleLayerDescs []VisibleLayerDesc) error {
	if err := hiddenSize.Validate(); err != nil {
		return err
	}
	if err := checkDescs(visibleLayerDescs); err != nil {
		return err
	}
	ie.Defaults()
	ie.HiddenSize = hiddenSize
	ie.VisibleLayerDescs = append([]VisibleLayerDesc(nil), visibleLayerDescs...)
	ie.VisibleLayers = make([]ImageVisibleLayer, len(visibleLayerDescs))

	for vli := range ie.VisibleLayers {
		vl := &ie.VisibleLayers[vli]
		vld := &ie.VisibleLayerDescs[vli]

		vl.VisibleToHidden, vl.HiddenToVisible, vl.ReverseRadii = projectionRatios(hiddenSize, vld)

		diam := vld.Radius*2 + 1
		vl.Weights = make([]float32, hiddenSize.Cells()*diam*diam*vld.Size.Z)
		err := compute.Run1D(cs, len(vl.Weights), func(pos int, rng *rand.Rand) {
			vl.Weights[pos] = 0.99 + 0.01*rng.Float32()
		})
		if err != nil {
			return err
		}

		vl.ReconActs = make([]float32, vld.Size.Cells())
	}

	ie.HiddenCs = NewCSDR(hiddenSize.Cols())
	ie.HiddenActivations = make([]float32, hiddenSize.Cells())
	return nil
}

// checkActs validates one dense activation tensor per visible layer.
func (ie *ImageEncoder) checkActs(visibleActs []*etensor.Float32) error {
	if len(visibleActs) != len(ie.VisibleLayerDescs) {
		return fmt.Errorf("ogmaneo: got %d activation tensors for %d visible layers", len(visibleActs), len(ie.VisibleLayerDescs))
	}
	for vli, t := range visibleActs {
		if t.Len() != ie.VisibleLayerDescs[vli].Size.Cells() {
			return fmt.Errorf("ogmaneo: visible layer %d activations have %d cells, grid requires %d", vli, t.Len(), ie.VisibleLayerDescs[vli].Size.Cells())
		}
	}
	return nil
}

// Activate runs ExplainIters rounds of forward coding and backward float
// reconstruction over the dense visible activations.
func (ie *ImageEncoder) Activate(cs *compute.System, visibleActs []*etensor.Float32) error {
	if err := ie.checkActs(visibleActs); err != nil {
		return err
	}
	for it := 0; it < ie.ExplainIters; it++ {
		firstIter := it == 0
		err := compute.Run2D(cs, ie.HiddenSize.Vec2(), func(pos evec.Vec2i, rng *rand.Rand) {
			ie.forward(pos, visibleActs, firstIter)
		})
		if err != nil {
			return err
		}
		for vli := range ie.VisibleLayers {
			vli := vli
			err := compute.Run2D(cs, ie.VisibleLayerDescs[vli].Size.Vec2(), func(pos evec.Vec2i, rng *rand.Rand) {
				ie.backward(pos, vli)
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// Learn moves weights toward reproducing the visible activations from the
// current hidden codes.
func (ie *ImageEncoder) Learn(cs *compute.System, visibleActs []*etensor.Float32) error {
	if err := ie.checkActs(visibleActs); err != nil {
		return err
	}
	for vli := range ie.VisibleLayers {
		vli := vli
		err := compute.Run2D(cs, ie.VisibleLayerDescs[vli].Size.Vec2(), func(pos evec.Vec2i, rng *rand.Rand) {
			ie.learn(pos, visibleActs, vli)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// forward is the dense generalization of the SparseCoder forward pass:
// support is the weight times the visible activation, summed over every
// cell of the receptive field.
func (ie *ImageEncoder) forward(pos evec.Vec2i, visibleActs []*etensor.Float32, firstIter bool) {
	dxy := ie.HiddenSize.X * ie.HiddenSize.Y
	dxyz := dxy * ie.HiddenSize.Z

	maxIndex := 0
	maxValue := float32(-999999)

	for hc := 0; hc < ie.HiddenSize.Z; hc++ {
		dPartial := pos.X + pos.Y*ie.HiddenSize.X + hc*dxy

		inputAct := float32(0)
		reconAct := float32(0)

		for vli := range ie.VisibleLayers {
			vl := &ie.VisibleLayers[vli]
			vld := &ie.VisibleLayerDescs[vli]
			acts := visibleActs[vli].Values

			center := Project(pos, vl.HiddenToVisible)
			fieldLB := evec.Vec2i{X: center.X - vld.Radius, Y: center.Y - vld.Radius}

			diam := vld.Radius*2 + 1
			diam2 := diam * diam

			lb := evec.Vec2i{X: ints.MaxInt(0, fieldLB.X), Y: ints.MaxInt(0, fieldLB.Y)}
			ub := evec.Vec2i{X: ints.MinInt(vld.Size.X-1, center.X+vld.Radius), Y: ints.MinInt(vld.Size.Y-1, center.Y+vld.Radius)}

			for x := lb.X; x <= ub.X; x++ {
				for y := lb.Y; y <= ub.Y; y++ {
					vp := evec.Vec2i{X: x, Y: y}
					for vc := 0; vc < vld.Size.Z; vc++ {
						az := x - fieldLB.X + (y-fieldLB.Y)*diam + vc*diam2
						vi := Address3(vp, vc, vld.Size)
						w := vl.Weights[dPartial+az*dxyz]
						inputAct += w * acts[vi]
						if !firstIter {
							reconAct += w * vl.ReconActs[vi]
						}
					}
				}
			}
		}

		hi := Address3(pos, hc, ie.HiddenSize)
		if firstIter {
			ie.HiddenActivations[hi] = inputAct
		} else {
			ie.HiddenActivations[hi] += inputAct - reconAct
		}

		if ie.HiddenActivations[hi] > maxValue {
			maxValue = ie.HiddenActivations[hi]
			maxIndex = hc
		}
	}

	ie.HiddenCs[Address2(pos, ie.HiddenSize.X)] = int32(maxIndex)
}

// backward reconstructs the float activation of every cell in one visible
// column as the average weight support from the covering hidden columns.
func (ie *ImageEncoder) backward(pos evec.Vec2i, vli int) {
	vl := &ie.VisibleLayers[vli]
	vld := &ie.VisibleLayerDescs[vli]

	dxy := ie.HiddenSize.X * ie.HiddenSize.Y
	dxyz := dxy * ie.HiddenSize.Z

	diam := vld.Radius*2 + 1
	diam2 := diam * diam

	hCenter := Project(pos, vl.VisibleToHidden)
	lb := evec.Vec2i{X: ints.MaxInt(0, hCenter.X-vl.ReverseRadii.X), Y: ints.MaxInt(0, hCenter.Y-vl.ReverseRadii.Y)}
	ub := evec.Vec2i{X: ints.MinInt(ie.HiddenSize.X-1, hCenter.X+vl.ReverseRadii.X), Y: ints.MinInt(ie.HiddenSize.Y-1, hCenter.Y+vl.ReverseRadii.Y)}

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
					hiddenC := int(ie.HiddenCs[Address2(hp, ie.HiddenSize.X)])
					az := pos.X - fLB.X + (pos.Y-fLB.Y)*diam + vc*diam2
					wi := hp.X + hp.Y*ie.HiddenSize.X + hiddenC*dxy + az*dxyz
					sum += vl.Weights[wi]
					count++
				}
			}
		}

		vl.ReconActs[Address3(pos, vc, vld.Size)] = sum / mat32.Max(1, count)
	}
}

// learn recomputes the average reconstruction for every cell of one visible
// column and moves the contributing weights by Alpha * (input - recon).
func (ie *ImageEncoder) learn(pos evec.Vec2i, visibleActs []*etensor.Float32, vli int) {
	vl := &ie.VisibleLayers[vli]
	vld := &ie.VisibleLayerDescs[vli]
	acts := visibleActs[vli].Values

	dxy := ie.HiddenSize.X * ie.HiddenSize.Y
	dxyz := dxy * ie.HiddenSize.Z

	diam := vld.Radius*2 + 1
	diam2 := diam * diam

	hCenter := Project(pos, vl.VisibleToHidden)
	lb := evec.Vec2i{X: ints.MaxInt(0, hCenter.X-vl.ReverseRadii.X), Y: ints.MaxInt(0, hCenter.Y-vl.ReverseRadii.Y)}
	ub := evec.Vec2i{X: ints.MinInt(ie.HiddenSize.X-1, hCenter.X+vl.ReverseRadii.X), Y: ints.MinInt(ie.HiddenSize.Y-1, hCenter.Y+vl.ReverseRadii.Y)}

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
					hiddenC := int(ie.HiddenCs[Address2(hp, ie.HiddenSize.X)])
					az := pos.X - fLB.X + (pos.Y-fLB.Y)*diam + vc*diam2
					wi := hp.X + hp.Y*ie.HiddenSize.X + hiddenC*dxy + az*dxyz
					sum += vl.Weights[wi]
					count++
				}
			}
		}

		vi := Address3(pos, vc, vld.Size)
		delta := ie.Alpha * (acts[vi] - sum/mat32.Max(1, count))

		for x := lb.X; x <= ub.X; x++ {
			for y := lb.Y; y <= ub.Y; y++ {
				hp := evec.Vec2i{X: x, Y: y}
				fCenter := Project(hp, vl.HiddenToVisible)
				fLB := evec.Vec2i{X: fCenter.X - vld.Radius, Y: fCenter.Y - vld.Radius}
				fUB := evec.Vec2i{X: fCenter.X + vld.Radius + 1, Y: fCenter.Y + vld.Radius + 1}

				if InBounds(pos, fLB, fUB) {
					hiddenC := int(ie.HiddenCs[Address2(hp, ie.HiddenSize.X)])
					az := pos.X - fLB.X + (pos.Y-fLB.Y)*diam + vc*diam2
					wi := hp.X + hp.Y*ie.HiddenSize.X + hiddenC*dxy + az*dxyz
					vl.Weights[wi] += delta
				}
			}
		}
	}
}
