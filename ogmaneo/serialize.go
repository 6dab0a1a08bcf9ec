// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ogmaneo

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/emer/emergent/evec"
	"github.com/goki/mat32"
)

// ErrBadStream reports corrupt or truncated persisted state.  Readers never
// leave a partially loaded engine behind silently: any stream failure
// surfaces wrapped in this sentinel.
var ErrBadStream = errors.New("ogmaneo: corrupt or truncated stream")

// maxStreamLen bounds any length prefix read from a stream, to reject
// garbage before allocating.
const maxStreamLen = 1 << 30

// All scalars are little-endian; slices are written as an int32 length
// followed by the raw values, matching the layouts the engines persist.

func writeInt(w io.Writer, v int) error {
	return binary.Write(w, binary.LittleEndian, int32(v))
}

func readInt(r io.Reader, v *int) error {
	var i int32
	if err := binary.Read(r, binary.LittleEndian, &i); err != nil {
		return fmt.Errorf("%w: %v", ErrBadStream, err)
	}
	*v = int(i)
	return nil
}

func writeF32(w io.Writer, v float32) error {
	return binary.Write(w, binary.LittleEndian, v)
}

func readF32(r io.Reader, v *float32) error {
	if err := binary.Read(r, binary.LittleEndian, v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadStream, err)
	}
	return nil
}

func writeVec3i(w io.Writer, v Vec3i) error {
	if err := writeInt(w, v.X); err != nil {
		return err
	}
	if err := writeInt(w, v.Y); err != nil {
		return err
	}
	return writeInt(w, v.Z)
}

func readVec3i(r io.Reader, v *Vec3i) error {
	if err := readInt(r, &v.X); err != nil {
		return err
	}
	if err := readInt(r, &v.Y); err != nil {
		return err
	}
	if err := readInt(r, &v.Z); err != nil {
		return err
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrBadStream, err)
	}
	return nil
}

func writeVec2(w io.Writer, v mat32.Vec2) error {
	if err := writeF32(w, v.X); err != nil {
		return err
	}
	return writeF32(w, v.Y)
}

func readVec2(r io.Reader, v *mat32.Vec2) error {
	if err := readF32(r, &v.X); err != nil {
		return err
	}
	return readF32(r, &v.Y)
}

func writeVec2i(w io.Writer, v evec.Vec2i) error {
	if err := writeInt(w, v.X); err != nil {
		return err
	}
	return writeInt(w, v.Y)
}

func readVec2i(r io.Reader, v *evec.Vec2i) error {
	if err := readInt(r, &v.X); err != nil {
		return err
	}
	return readInt(r, &v.Y)
}

func readLen(r io.Reader) (int, error) {
	var n int
	if err := readInt(r, &n); err != nil {
		return 0, err
	}
	if n < 0 || n > maxStreamLen {
		return 0, fmt.Errorf("%w: implausible length %d", ErrBadStream, n)
	}
	return n, nil
}

func writeInts(w io.Writer, vs []int32) error {
	if err := writeInt(w, len(vs)); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, vs)
}

func readInts(r io.Reader) ([]int32, error) {
	n, err := readLen(r)
	if err != nil {
		return nil, err
	}
	vs := make([]int32, n)
	if err := binary.Read(r, binary.LittleEndian, vs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadStream, err)
	}
	return vs, nil
}

func writeFloats(w io.Writer, vs []float32) error {
	if err := writeInt(w, len(vs)); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, vs)
}

func readFloats(r io.Reader) ([]float32, error) {
	n, err := readLen(r)
	if err != nil {
		return nil, err
	}
	vs := make([]float32, n)
	if err := binary.Read(r, binary.LittleEndian, vs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadStream, err)
	}
	return vs, nil
}

func writeDesc(w io.Writer, vld *VisibleLayerDesc) error {
	if err := writeVec3i(w, vld.Size); err != nil {
		return err
	}
	return writeInt(w, vld.Radius)
}

func readDesc(r io.Reader, vld *VisibleLayerDesc) error {
	if err := readVec3i(r, &vld.Size); err != nil {
		return err
	}
	if err := readInt(r, &vld.Radius); err != nil {
		return err
	}
	if err := vld.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrBadStream, err)
	}
	return nil
}

//////////////////////////////////////////////////////////////////////////////////////
//  SparseMatrix

// WriteToStream writes the matrix: rows, cols, then the three arrays.
func (sm *SparseMatrix) WriteToStream(w io.Writer) error {
	if err := writeInt(w, sm.Rows); err != nil {
		return err
	}
	if err := writeInt(w, sm.Cols); err != nil {
		return err
	}
	if err := writeInts(w, sm.RowRanges); err != nil {
		return err
	}
	if err := writeInts(w, sm.ColumnIndexes); err != nil {
		return err
	}
	return writeFloats(w, sm.NonZeroValues)
}

// ReadFromStream replaces the matrix contents from the stream.
func (sm *SparseMatrix) ReadFromStream(r io.Reader) error {
	if err := readInt(r, &sm.Rows); err != nil {
		return err
	}
	if err := readInt(r, &sm.Cols); err != nil {
		return err
	}
	var err error
	if sm.RowRanges, err = readInts(r); err != nil {
		return err
	}
	if sm.ColumnIndexes, err = readInts(r); err != nil {
		return err
	}
	if sm.NonZeroValues, err = readFloats(r); err != nil {
		return err
	}
	if len(sm.RowRanges) != sm.Rows+1 || len(sm.ColumnIndexes) != len(sm.NonZeroValues) {
		return fmt.Errorf("%w: inconsistent sparse matrix arrays", ErrBadStream)
	}
	return nil
}

//////////////////////////////////////////////////////////////////////////////////////
//  SparseCoder

// WriteToStream writes: hidden extent, Alpha, ExplainIters, hidden codes,
// layer count, then per layer the descriptor, projection constants, reverse
// radii, and the dense weights.  Scratch activations are not persisted.
func (sc *SparseCoder) WriteToStream(w io.Writer) error {
	if err := writeVec3i(w, sc.HiddenSize); err != nil {
		return err
	}
	if err := writeF32(w, sc.Alpha); err != nil {
		return err
	}
	if err := writeInt(w, sc.ExplainIters); err != nil {
		return err
	}
	if err := writeInts(w, sc.HiddenCs); err != nil {
		return err
	}
	if err := writeInt(w, len(sc.VisibleLayers)); err != nil {
		return err
	}
	for vli := range sc.VisibleLayers {
		vl := &sc.VisibleLayers[vli]
		if err := writeDesc(w, &sc.VisibleLayerDescs[vli]); err != nil {
			return err
		}
		if err := writeVec2(w, vl.VisibleToHidden); err != nil {
			return err
		}
		if err := writeVec2(w, vl.HiddenToVisible); err != nil {
			return err
		}
		if err := writeVec2i(w, vl.ReverseRadii); err != nil {
			return err
		}
		if err := writeFloats(w, vl.Weights); err != nil {
			return err
		}
	}
	return nil
}

// ReadFromStream rebuilds the coder from the stream, reconstructing the
// scratch buffers that are not persisted.
func (sc *SparseCoder) ReadFromStream(r io.Reader) error {
	if err := readVec3i(r, &sc.HiddenSize); err != nil {
		return err
	}
	if err := readF32(r, &sc.Alpha); err != nil {
		return err
	}
	if err := readInt(r, &sc.ExplainIters); err != nil {
		return err
	}
	hcs, err := readInts(r)
	if err != nil {
		return err
	}
	sc.HiddenCs = CSDR(hcs)
	if err := sc.HiddenCs.Validate(sc.HiddenSize); err != nil {
		return fmt.Errorf("%w: %v", ErrBadStream, err)
	}
	sc.HiddenActivations = make([]float32, sc.HiddenSize.Cells())

	nvl, err := readLen(r)
	if err != nil {
		return err
	}
	sc.VisibleLayers = make([]CoderVisibleLayer, nvl)
	sc.VisibleLayerDescs = make([]VisibleLayerDesc, nvl)
	for vli := range sc.VisibleLayers {
		vl := &sc.VisibleLayers[vli]
		vld := &sc.VisibleLayerDescs[vli]
		if err := readDesc(r, vld); err != nil {
			return err
		}
		if err := readVec2(r, &vl.VisibleToHidden); err != nil {
			return err
		}
		if err := readVec2(r, &vl.HiddenToVisible); err != nil {
			return err
		}
		if err := readVec2i(r, &vl.ReverseRadii); err != nil {
			return err
		}
		if vl.Weights, err = readFloats(r); err != nil {
			return err
		}
		diam := vld.Radius*2 + 1
		if len(vl.Weights) != sc.HiddenSize.Cells()*diam*diam*vld.Size.Z {
			return fmt.Errorf("%w: visible layer %d weight count %d does not match geometry", ErrBadStream, vli, len(vl.Weights))
		}
		vl.ReconCs = NewCSDR(vld.Size.Cols())
	}
	return nil
}

//////////////////////////////////////////////////////////////////////////////////////
//  Actor

// WriteToStream writes: hidden extent, Alpha, Gamma, Gap, HistoryIters,
// history size, hidden codes, hidden counts, layer count, per layer the
// descriptor and compressed weights, then history capacity and every sample
// oldest-first.
func (a *Actor) WriteToStream(w io.Writer) error {
	if err := writeVec3i(w, a.HiddenSize); err != nil {
		return err
	}
	if err := writeF32(w, a.Alpha); err != nil {
		return err
	}
	if err := writeF32(w, a.Gamma); err != nil {
		return err
	}
	if err := writeF32(w, a.Gap); err != nil {
		return err
	}
	if err := writeInt(w, a.HistoryIters); err != nil {
		return err
	}
	if err := writeInt(w, a.historySize); err != nil {
		return err
	}
	if err := writeInts(w, a.HiddenCs); err != nil {
		return err
	}
	if err := writeInts(w, a.HiddenCounts); err != nil {
		return err
	}
	if err := writeInt(w, len(a.VisibleLayers)); err != nil {
		return err
	}
	for vli := range a.VisibleLayers {
		if err := writeDesc(w, &a.VisibleLayerDescs[vli]); err != nil {
			return err
		}
		if err := a.VisibleLayers[vli].Weights.WriteToStream(w); err != nil {
			return err
		}
	}
	if err := writeInt(w, len(a.historySamples)); err != nil {
		return err
	}
	// logical (oldest-first) order, so a reader restores a normalized ring
	for t := 0; t < len(a.historySamples); t++ {
		s := a.history(t)
		for vli := range s.InputCs {
			if err := writeInts(w, s.InputCs[vli]); err != nil {
				return err
			}
		}
		if err := writeInts(w, s.HiddenCs); err != nil {
			return err
		}
		if err := writeInts(w, s.FeedBackCs); err != nil {
			return err
		}
	}
	return nil
}

// ReadFromStream rebuilds the actor, including the full history ring.
func (a *Actor) ReadFromStream(r io.Reader) error {
	if err := readVec3i(r, &a.HiddenSize); err != nil {
		return err
	}
	if err := readF32(r, &a.Alpha); err != nil {
		return err
	}
	if err := readF32(r, &a.Gamma); err != nil {
		return err
	}
	if err := readF32(r, &a.Gap); err != nil {
		return err
	}
	if err := readInt(r, &a.HistoryIters); err != nil {
		return err
	}
	if err := readInt(r, &a.historySize); err != nil {
		return err
	}
	hcs, err := readInts(r)
	if err != nil {
		return err
	}
	a.HiddenCs = CSDR(hcs)
	if err := a.HiddenCs.Validate(a.HiddenSize); err != nil {
		return fmt.Errorf("%w: %v", ErrBadStream, err)
	}
	if a.HiddenCounts, err = readInts(r); err != nil {
		return err
	}
	if len(a.HiddenCounts) != a.HiddenSize.Cols() {
		return fmt.Errorf("%w: hidden counts have %d columns, grid requires %d", ErrBadStream, len(a.HiddenCounts), a.HiddenSize.Cols())
	}
	nvl, err := readLen(r)
	if err != nil {
		return err
	}
	a.VisibleLayers = make([]ActorVisibleLayer, nvl)
	a.VisibleLayerDescs = make([]VisibleLayerDesc, nvl)
	for vli := range a.VisibleLayers {
		if err := readDesc(r, &a.VisibleLayerDescs[vli]); err != nil {
			return err
		}
		w := &a.VisibleLayers[vli].Weights
		if err := w.ReadFromStream(r); err != nil {
			return err
		}
		if w.Rows != a.HiddenSize.Cells() || w.Cols != a.VisibleLayerDescs[vli].Size.Cells() {
			return fmt.Errorf("%w: visible layer %d weights %d x %d do not match geometry", ErrBadStream, vli, w.Rows, w.Cols)
		}
	}
	ncap, err := readLen(r)
	if err != nil {
		return err
	}
	if a.historySize > ncap {
		return fmt.Errorf("%w: history size %d exceeds capacity %d", ErrBadStream, a.historySize, ncap)
	}
	a.historyHead = 0
	a.historySamples = make([]HistorySample, ncap)
	for t := range a.historySamples {
		s := &a.historySamples[t]
		s.InputCs = make([]CSDR, nvl)
		for vli := 0; vli < nvl; vli++ {
			ics, err := readInts(r)
			if err != nil {
				return err
			}
			s.InputCs[vli] = CSDR(ics)
			if err := s.InputCs[vli].Validate(a.VisibleLayerDescs[vli].Size); err != nil {
				return fmt.Errorf("%w: history sample %d: %v", ErrBadStream, t, err)
			}
		}
		hcs, err := readInts(r)
		if err != nil {
			return err
		}
		s.HiddenCs = CSDR(hcs)
		if err := s.HiddenCs.Validate(a.HiddenSize); err != nil {
			return fmt.Errorf("%w: history sample %d: %v", ErrBadStream, t, err)
		}
		fcs, err := readInts(r)
		if err != nil {
			return err
		}
		s.FeedBackCs = CSDR(fcs)
		if err := s.FeedBackCs.Validate(a.HiddenSize); err != nil {
			return fmt.Errorf("%w: history sample %d: %v", ErrBadStream, t, err)
		}
	}
	return nil
}

//////////////////////////////////////////////////////////////////////////////////////
//  Predictor

// WriteToStream writes: hidden extent, Alpha, hidden codes, activations,
// counts, layer count, then per layer the descriptor and compressed weights.
func (p *Predictor) WriteToStream(w io.Writer) error {
	if err := writeVec3i(w, p.HiddenSize); err != nil {
		return err
	}
	if err := writeF32(w, p.Alpha); err != nil {
		return err
	}
	if err := writeInts(w, p.HiddenCs); err != nil {
		return err
	}
	if err := writeFloats(w, p.HiddenActivations); err != nil {
		return err
	}
	if err := writeInts(w, p.HiddenCounts); err != nil {
		return err
	}
	if err := writeInt(w, len(p.VisibleLayers)); err != nil {
		return err
	}
	for vli := range p.VisibleLayers {
		if err := writeDesc(w, &p.VisibleLayerDescs[vli]); err != nil {
			return err
		}
		if err := p.VisibleLayers[vli].Weights.WriteToStream(w); err != nil {
			return err
		}
	}
	return nil
}

// ReadFromStream rebuilds the predictor, reconstructing the staging buffer.
func (p *Predictor) ReadFromStream(r io.Reader) error {
	if err := readVec3i(r, &p.HiddenSize); err != nil {
		return err
	}
	if err := readF32(r, &p.Alpha); err != nil {
		return err
	}
	hcs, err := readInts(r)
	if err != nil {
		return err
	}
	p.HiddenCs = CSDR(hcs)
	if err := p.HiddenCs.Validate(p.HiddenSize); err != nil {
		return fmt.Errorf("%w: %v", ErrBadStream, err)
	}
	p.hiddenCsTemp = NewCSDR(p.HiddenSize.Cols())
	if p.HiddenActivations, err = readFloats(r); err != nil {
		return err
	}
	if len(p.HiddenActivations) != p.HiddenSize.Cells() {
		return fmt.Errorf("%w: %d activations, grid requires %d", ErrBadStream, len(p.HiddenActivations), p.HiddenSize.Cells())
	}
	if p.HiddenCounts, err = readInts(r); err != nil {
		return err
	}
	if len(p.HiddenCounts) != p.HiddenSize.Cols() {
		return fmt.Errorf("%w: hidden counts have %d columns, grid requires %d", ErrBadStream, len(p.HiddenCounts), p.HiddenSize.Cols())
	}
	nvl, err := readLen(r)
	if err != nil {
		return err
	}
	p.VisibleLayers = make([]PredictorVisibleLayer, nvl)
	p.VisibleLayerDescs = make([]VisibleLayerDesc, nvl)
	for vli := range p.VisibleLayers {
		if err := readDesc(r, &p.VisibleLayerDescs[vli]); err != nil {
			return err
		}
		w := &p.VisibleLayers[vli].Weights
		if err := w.ReadFromStream(r); err != nil {
			return err
		}
		if w.Rows != p.HiddenSize.Cells() || w.Cols != p.VisibleLayerDescs[vli].Size.Cells() {
			return fmt.Errorf("%w: visible layer %d weights %d x %d do not match geometry", ErrBadStream, vli, w.Rows, w.Cols)
		}
	}
	return nil
}

//////////////////////////////////////////////////////////////////////////////////////
//  ImageEncoder

// WriteToStream writes the same layout family as the SparseCoder.
func (ie *ImageEncoder) WriteToStream(w io.Writer) error {
	if err := writeVec3i(w, ie.HiddenSize); err != nil {
		return err
	}
	if err := writeF32(w, ie.Alpha); err != nil {
		return err
	}
	if err := writeInt(w, ie.ExplainIters); err != nil {
		return err
	}
	if err := writeInts(w, ie.HiddenCs); err != nil {
		return err
	}
	if err := writeInt(w, len(ie.VisibleLayers)); err != nil {
		return err
	}
	for vli := range ie.VisibleLayers {
		vl := &ie.VisibleLayers[vli]
		if err := writeDesc(w, &ie.VisibleLayerDescs[vli]); err != nil {
			return err
		}
		if err := writeVec2(w, vl.VisibleToHidden); err != nil {
			return err
		}
		if err := writeVec2(w, vl.HiddenToVisible); err != nil {
			return err
		}
		if err := writeVec2i(w, vl.ReverseRadii); err != nil {
			return err
		}
		if err := writeFloats(w, vl.Weights); err != nil {
			return err
		}
	}
	return nil
}

// ReadFromStream rebuilds the encoder, reconstructing scratch buffers.
func (ie *ImageEncoder) ReadFromStream(r io.Reader) error {
	if err := readVec3i(r, &ie.HiddenSize); err != nil {
		return err
	}
	if err := readF32(r, &ie.Alpha); err != nil {
		return err
	}
	if err := readInt(r, &ie.ExplainIters); err != nil {
		return err
	}
	hcs, err := readInts(r)
	if err != nil {
		return err
	}
	ie.HiddenCs = CSDR(hcs)
	if err := ie.HiddenCs.Validate(ie.HiddenSize); err != nil {
		return fmt.Errorf("%w: %v", ErrBadStream, err)
	}
	ie.HiddenActivations = make([]float32, ie.HiddenSize.Cells())

	nvl, err := readLen(r)
	if err != nil {
		return err
	}
	ie.VisibleLayers = make([]ImageVisibleLayer, nvl)
	ie.VisibleLayerDescs = make([]VisibleLayerDesc, nvl)
	for vli := range ie.VisibleLayers {
		vl := &ie.VisibleLayers[vli]
		vld := &ie.VisibleLayerDescs[vli]
		if err := readDesc(r, vld); err != nil {
			return err
		}
		if err := readVec2(r, &vl.VisibleToHidden); err != nil {
			return err
		}
		if err := readVec2(r, &vl.HiddenToVisible); err != nil {
			return err
		}
		if err := readVec2i(r, &vl.ReverseRadii); err != nil {
			return err
		}
		if vl.Weights, err = readFloats(r); err != nil {
			return err
		}
		diam := vld.Radius*2 + 1
		if len(vl.Weights) != ie.HiddenSize.Cells()*diam*diam*vld.Size.Z {
			return fmt.Errorf("%w: visible layer %d weight count %d does not match geometry", ErrBadStream, vli, len(vl.Weights))
		}
		vl.ReconActs = make([]float32, vld.Size.Cells())
	}
	return nil
}
