// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ogmaneo

import (
	"math/rand"

	"github.com/Thanh-Binh/OgmaNeo2/compute"
	"github.com/emer/emergent/evec"
	"github.com/goki/mat32"
)

// PredictorVisibleLayer holds one visible layer's compressed weight matrix.
type PredictorVisibleLayer struct {
	Weights SparseMatrix `desc:"compressed local receptive-field weights, one row per hidden cell"`
}

// Predictor is the supervised variant of the decision layer: it shares the
// actor's receptive-field addressing and compressed weight store, but learns
// to reproduce an externally supplied target CSDR instead of optimizing a
// value function, and selects output codes by Boltzmann sampling over its
// activations rather than greedy arg-max.
type Predictor struct {
	Alpha float32 `def:"0.5" desc:"prediction learning rate"`

	HiddenSize        Vec3i     `desc:"extent of the hidden (prediction) grid"`
	HiddenCs          CSDR      `desc:"predicted codes -- the output CSDR"`
	HiddenActivations []float32 `desc:"per-cell activations from the last forward pass"`
	HiddenCounts      []int32   `desc:"weight entries contributing to each hidden column, clamped to >= 1 when used"`

	VisibleLayers     []PredictorVisibleLayer `desc:"per-visible-layer weights"`
	VisibleLayerDescs []VisibleLayerDesc      `desc:"descriptors the layers were built from"`

	hiddenCsTemp CSDR // forward output staging, copied to HiddenCs at the end of Activate
}

func (p *Predictor) Defaults() {
	p.Alpha = 0.5
}

// InitRandom builds the compressed weight matrices over the local
// receptive-field pattern, with small zero-centered uniform noise.
func (p *Predictor) InitRandom(cs *compute.System, hiddenSize Vec3i, visibleLayerDescs []VisibleLayerDesc) error {
	if err := hiddenSize.Validate(); err != nil {
		return err
	}
	if err := checkDescs(visibleLayerDescs); err != nil {
		return err
	}
	p.Defaults()
	p.HiddenSize = hiddenSize
	p.VisibleLayerDescs = append([]VisibleLayerDesc(nil), visibleLayerDescs...)
	p.VisibleLayers = make([]PredictorVisibleLayer, len(visibleLayerDescs))

	numHiddenCols := hiddenSize.Cols()
	p.HiddenCounts = make([]int32, numHiddenCols)

	for vli := range p.VisibleLayers {
		vl := &p.VisibleLayers[vli]
		vld := &p.VisibleLayerDescs[vli]

		vl.Weights = InitLocalRF(vld.Size, hiddenSize, vld.Radius)
		err := compute.Run1D(cs, len(vl.Weights.NonZeroValues), func(pos int, rng *rand.Rand) {
			vl.Weights.NonZeroValues[pos] = 0.0001 * (2*rng.Float32() - 1)
		})
		if err != nil {
			return err
		}

		for i := 0; i < numHiddenCols; i++ {
			p.HiddenCounts[i] += int32(vl.Weights.Counts(i*hiddenSize.Z) / vld.Size.Z)
		}
	}

	p.HiddenCs = NewCSDR(numHiddenCols)
	p.hiddenCsTemp = NewCSDR(numHiddenCols)
	p.HiddenActivations = make([]float32, hiddenSize.Cells())
	return nil
}

// Activate computes normalized activations for every hidden cell and draws
// each column's output code by Boltzmann sampling.
func (p *Predictor) Activate(cs *compute.System, inputs []CSDR) error {
	if err := checkInputs(inputs, p.VisibleLayerDescs); err != nil {
		return err
	}
	err := compute.Run2D(cs, p.HiddenSize.Vec2(), func(pos evec.Vec2i, rng *rand.Rand) {
		p.forward(pos, rng, inputs)
	})
	if err != nil {
		return err
	}
	copy(p.HiddenCs, p.hiddenCsTemp)
	return nil
}

// Learn re-runs the forward pass on the inputs and moves weights toward
// reproducing the target codes, delta = Alpha * (target - sigmoid(act)).
func (p *Predictor) Learn(cs *compute.System, hiddenTargetCs CSDR, inputs []CSDR) error {
	if p.Alpha == 0 {
		return nil
	}
	if err := checkInputs(inputs, p.VisibleLayerDescs); err != nil {
		return err
	}
	if err := hiddenTargetCs.Validate(p.HiddenSize); err != nil {
		return err
	}
	err := compute.Run2D(cs, p.HiddenSize.Vec2(), func(pos evec.Vec2i, rng *rand.Rand) {
		p.forward(pos, rng, inputs)
	})
	if err != nil {
		return err
	}
	return compute.Run2D(cs, p.HiddenSize.Vec2(), func(pos evec.Vec2i, rng *rand.Rand) {
		p.learn(pos, hiddenTargetCs, inputs)
	})
}

// forward fills the activations for one column, normalized by the clamped
// support count, then Boltzmann-samples the output code from
// exp(act - max) using the per-position stream.
func (p *Predictor) forward(pos evec.Vec2i, rng *rand.Rand, inputs []CSDR) {
	hCol := Address2(pos, p.HiddenSize.X)
	count := mat32.Max(1, float32(p.HiddenCounts[hCol]))

	maxActivation := float32(-999999)

	for hc := 0; hc < p.HiddenSize.Z; hc++ {
		hi := Address3(pos, hc, p.HiddenSize)

		act := float32(0)
		for vli := range p.VisibleLayers {
			act += p.VisibleLayers[vli].Weights.MultiplyOHVs(inputs[vli], hi, p.VisibleLayerDescs[vli].Size.Z)
		}
		act /= count
		p.HiddenActivations[hi] = act

		maxActivation = mat32.Max(maxActivation, act)
	}

	total := float32(0)
	probs := make([]float32, p.HiddenSize.Z)
	for hc := 0; hc < p.HiddenSize.Z; hc++ {
		hi := Address3(pos, hc, p.HiddenSize)
		probs[hc] = mat32.Exp(p.HiddenActivations[hi] - maxActivation)
		total += probs[hc]
	}

	cusp := rng.Float32() * total
	sumSoFar := float32(0)
	selectIndex := 0
	for hc := 0; hc < p.HiddenSize.Z; hc++ {
		sumSoFar += probs[hc]
		if sumSoFar >= cusp {
			selectIndex = hc
			break
		}
	}

	p.hiddenCsTemp[hCol] = int32(selectIndex)
}

// learn applies the delta rule for one column against the target code.
func (p *Predictor) learn(pos evec.Vec2i, hiddenTargetCs CSDR, inputs []CSDR) {
	targetC := int(hiddenTargetCs[Address2(pos, p.HiddenSize.X)])

	for hc := 0; hc < p.HiddenSize.Z; hc++ {
		hi := Address3(pos, hc, p.HiddenSize)

		target := float32(0)
		if hc == targetC {
			target = 1
		}
		delta := p.Alpha * (target - Sigmoid(p.HiddenActivations[hi]))

		for vli := range p.VisibleLayers {
			p.VisibleLayers[vli].Weights.DeltaOHVs(inputs[vli], delta, hi, p.VisibleLayerDescs[vli].Size.Z)
		}
	}
}
