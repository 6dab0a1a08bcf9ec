// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ogmaneo

import (
	"fmt"
	"math/rand"

	"github.com/Thanh-Binh/OgmaNeo2/compute"
	"github.com/emer/emergent/evec"
	"github.com/goki/mat32"
)

// ActorVisibleLayer holds one visible layer's compressed weight matrix.
// Only the weight selected by the observed one-hot input code needs touching
// per update, so the actor uses the compressed store instead of the coder's
// dense array.
type ActorVisibleLayer struct {
	Weights SparseMatrix `desc:"compressed local receptive-field weights, one row per hidden cell"`
}

// HistorySample is one time-step snapshot for experience replay: the input
// CSDRs (one per visible layer), the action CSDR taken that step, and the
// feedback CSDR the environment returned.  All buffers are owned values,
// pre-allocated at init and overwritten in place.
type HistorySample struct {
	InputCs    []CSDR `desc:"input CSDRs, one per visible layer"`
	HiddenCs   CSDR   `desc:"action codes taken this step"`
	FeedBackCs CSDR   `desc:"feedback codes from the environment"`
}

// Actor maps input CSDRs to a discrete action CSDR per hidden column by
// greedy arg-max over a learned value function, and learns off-policy with
// persistent advantage learning (PAL) over transitions replayed uniformly at
// random from a fixed-capacity history ring.
type Actor struct {
	Alpha        float32 `def:"0.5" desc:"value learning rate"`
	Gamma        float32 `def:"0.9" desc:"discount factor"`
	Gap          float32 `def:"0.5" desc:"advantage-learning scale -- biases updates toward preserving the greedy action margin"`
	HistoryIters int     `def:"8" desc:"replayed transitions per environment step"`

	HiddenSize   Vec3i   `desc:"extent of the hidden (action) grid"`
	HiddenCs     CSDR    `desc:"action codes -- the output CSDR"`
	HiddenCounts []int32 `desc:"weight entries contributing to each hidden column, for normalizing averaged sums -- clamped to >= 1 when used"`

	VisibleLayers     []ActorVisibleLayer `desc:"per-visible-layer weights"`
	VisibleLayerDescs []VisibleLayerDesc  `desc:"descriptors the layers were built from"`

	historySize    int
	historyHead    int // index of the oldest sample once the ring is full
	historySamples []HistorySample
}

func (a *Actor) Defaults() {
	a.Alpha = 0.5
	a.Gamma = 0.9
	a.Gap = 0.5
	a.HistoryIters = 8
}

// InitRandom builds one compressed weight matrix per visible layer over the
// local receptive-field pattern, initializes the nonzero weights to small
// negative-biased uniform noise, precomputes the per-column support counts,
// and pre-allocates historyCapacity samples.  Nothing allocates at runtime
// after this.
func (a *Actor) InitRandom(cs *compute.System, hiddenSize Vec3i, historyCapacity int, visibleLayerDescs []VisibleLayerDesc) error {
	if err := hiddenSize.Validate(); err != nil {
		return err
	}
	if err := checkDescs(visibleLayerDescs); err != nil {
		return err
	}
	if historyCapacity < 3 {
		return fmt.Errorf("ogmaneo: history capacity %d too small, need >= 3 to replay", historyCapacity)
	}
	a.Defaults()
	a.HiddenSize = hiddenSize
	a.VisibleLayerDescs = append([]VisibleLayerDesc(nil), visibleLayerDescs...)
	a.VisibleLayers = make([]ActorVisibleLayer, len(visibleLayerDescs))

	numHiddenCols := hiddenSize.Cols()
	a.HiddenCounts = make([]int32, numHiddenCols)

	for vli := range a.VisibleLayers {
		vl := &a.VisibleLayers[vli]
		vld := &a.VisibleLayerDescs[vli]

		vl.Weights = InitLocalRF(vld.Size, hiddenSize, vld.Radius)
		err := compute.Run1D(cs, len(vl.Weights.NonZeroValues), func(pos int, rng *rand.Rand) {
			vl.Weights.NonZeroValues[pos] = -0.0001 * rng.Float32()
		})
		if err != nil {
			return err
		}

		for i := 0; i < numHiddenCols; i++ {
			a.HiddenCounts[i] += int32(vl.Weights.Counts(i*hiddenSize.Z) / vld.Size.Z)
		}
	}

	a.HiddenCs = NewCSDR(numHiddenCols)

	a.historySize = 0
	a.historyHead = 0
	a.historySamples = make([]HistorySample, historyCapacity)
	for i := range a.historySamples {
		s := &a.historySamples[i]
		s.InputCs = make([]CSDR, len(visibleLayerDescs))
		for vli := range visibleLayerDescs {
			s.InputCs[vli] = NewCSDR(visibleLayerDescs[vli].Size.Cols())
		}
		s.HiddenCs = NewCSDR(numHiddenCols)
		s.FeedBackCs = NewCSDR(numHiddenCols)
	}
	return nil
}

// Activate emits the greedy action CSDR for the given inputs into HiddenCs.
// It is a pure value-function read: no weight or history mutation, safe to
// call repeatedly on the same input.
func (a *Actor) Activate(cs *compute.System, inputs []CSDR) error {
	if err := checkInputs(inputs, a.VisibleLayerDescs); err != nil {
		return err
	}
	return compute.Run2D(cs, a.HiddenSize.Vec2(), func(pos evec.Vec2i, rng *rand.Rand) {
		a.forward(pos, inputs)
	})
}

// Step records the (inputs, hiddenCs, feedBackCs) triple in the history
// ring, evicting the oldest sample once at capacity, and when learning is
// enabled and at least 3 samples exist, replays HistoryIters uniformly
// random adjacent transition pairs through the PAL update.
func (a *Actor) Step(cs *compute.System, inputs []CSDR, hiddenCs, feedBackCs CSDR, learnEnabled bool) error {
	if err := checkInputs(inputs, a.VisibleLayerDescs); err != nil {
		return err
	}
	if err := hiddenCs.Validate(a.HiddenSize); err != nil {
		return err
	}
	if err := feedBackCs.Validate(a.HiddenSize); err != nil {
		return err
	}

	var s *HistorySample
	if a.historySize == len(a.historySamples) {
		s = &a.historySamples[a.historyHead]
		a.historyHead = (a.historyHead + 1) % len(a.historySamples)
	} else {
		s = &a.historySamples[a.historySize]
		a.historySize++
	}
	for vli := range inputs {
		copy(s.InputCs[vli], inputs[vli])
	}
	copy(s.HiddenCs, hiddenCs)
	copy(s.FeedBackCs, feedBackCs)

	if learnEnabled && a.historySize > 2 {
		for it := 0; it < a.HistoryIters; it++ {
			t := cs.Rand.Intn(a.historySize - 1)
			sPrev := a.history(t)
			sNext := a.history(t + 1)
			err := compute.Run2D(cs, a.HiddenSize.Vec2(), func(pos evec.Vec2i, rng *rand.Rand) {
				a.learn(pos, sNext, sPrev)
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// HistorySize returns the number of valid samples in the ring.
func (a *Actor) HistorySize() int {
	return a.historySize
}

// HistoryCapacity returns the fixed ring capacity.
func (a *Actor) HistoryCapacity() int {
	return len(a.historySamples)
}

// history returns sample t in logical order, t = 0 oldest.
func (a *Actor) history(t int) *HistorySample {
	if a.historySize < len(a.historySamples) {
		return &a.historySamples[t]
	}
	return &a.historySamples[(a.historyHead+t)%len(a.historySamples)]
}

// forward computes the value of every action code at one column as the sum
// of compressed one-hot dot products across visible layers, and emits the
// arg-max (ties resolved to the lowest code).
func (a *Actor) forward(pos evec.Vec2i, inputs []CSDR) {
	maxIndex := 0
	maxActivation := float32(-999999)

	for hc := 0; hc < a.HiddenSize.Z; hc++ {
		hi := Address3(pos, hc, a.HiddenSize)

		sum := float32(0)
		for vli := range a.VisibleLayers {
			sum += a.VisibleLayers[vli].Weights.MultiplyOHVs(inputs[vli], hi, a.VisibleLayerDescs[vli].Size.Z)
		}

		if sum > maxActivation {
			maxActivation = sum
			maxIndex = hc
		}
	}

	a.HiddenCs[Address2(pos, a.HiddenSize.X)] = int32(maxIndex)
}

// learn applies the PAL update for one column of a replayed transition:
// sPrev is the earlier step, s the one after it.  The TD error toward
// reward + Gamma*max_a Q(s,a) is corrected by the Gap-scaled advantage of
// the recorded action, and the resulting delta nudges every weight feeding
// (recorded action, this column) against sPrev's one-hot inputs.
func (a *Actor) learn(pos evec.Vec2i, s, sPrev *HistorySample) {
	hCol := Address2(pos, a.HiddenSize.X)

	targetC := int(sPrev.HiddenCs[hCol])
	count := mat32.Max(1, float32(a.HiddenCounts[hCol]))

	maxActivation := float32(-999999)
	maxActivationPrev := float32(-999999)
	var nextQActionPrev, qActionPrev float32

	for hc := 0; hc < a.HiddenSize.Z; hc++ {
		hi := Address3(pos, hc, a.HiddenSize)

		sum := float32(0)
		sumPrev := float32(0)
		for vli := range a.VisibleLayers {
			vl := &a.VisibleLayers[vli]
			z := a.VisibleLayerDescs[vli].Size.Z
			sum += vl.Weights.MultiplyOHVs(s.InputCs[vli], hi, z)
			sumPrev += vl.Weights.MultiplyOHVs(sPrev.InputCs[vli], hi, z)
		}
		sum /= count
		sumPrev /= count

		maxActivation = mat32.Max(maxActivation, sum)
		maxActivationPrev = mat32.Max(maxActivationPrev, sumPrev)

		if hc == targetC {
			nextQActionPrev = sum
			qActionPrev = sumPrev
		}
	}

	reward := float32(0)
	if targetC == int(s.FeedBackCs[hCol]) {
		reward = 1
	}

	dQ := reward + a.Gamma*maxActivation - qActionPrev
	dAdv := dQ - a.Gap*(maxActivationPrev-qActionPrev)
	dPAL := mat32.Max(dAdv, dQ-a.Gap*(maxActivation-nextQActionPrev))
	delta := a.Alpha * dPAL

	hi := Address3(pos, targetC, a.HiddenSize)
	for vli := range a.VisibleLayers {
		a.VisibleLayers[vli].Weights.DeltaOHVs(sPrev.InputCs[vli], delta, hi, a.VisibleLayerDescs[vli].Size.Z)
	}
}
