// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ogmaneo

import (
	"github.com/emer/emergent/evec"
	"github.com/goki/ki/ints"
	"github.com/goki/mat32"
)

// SparseMatrix is a compressed-row weight store specialized for one-hot
// categorical inputs.  Rows are hidden cells; the nonzero columns of a row
// are the visible cells in that hidden cell's receptive field.  Column
// indexes encode visibleColumn*depth + code, and within a row the entries of
// one visible column are consecutive, so a dot product against a CSDR
// touches exactly one entry per visible column.
type SparseMatrix struct {
	Rows          int       `desc:"number of rows (hidden cells)"`
	Cols          int       `desc:"number of columns (visible cells)"`
	RowRanges     []int32   `desc:"start offset of each row in the nonzero arrays, length Rows+1"`
	ColumnIndexes []int32   `desc:"column index of each nonzero entry"`
	NonZeroValues []float32 `desc:"weight value of each nonzero entry"`
}

// InitLocalRF builds the local receptive-field sparsity pattern connecting a
// visible grid to a hidden grid with the given radius.  Weight values are
// zeroed; the caller initializes them.
func InitLocalRF(visibleSize, hiddenSize Vec3i, radius int) SparseMatrix {
	sm := SparseMatrix{Rows: hiddenSize.Cells(), Cols: visibleSize.Cells()}
	sm.RowRanges = make([]int32, sm.Rows+1)

	hToV := mat32.Vec2{
		X: float32(visibleSize.X) / float32(hiddenSize.X),
		Y: float32(visibleSize.Y) / float32(hiddenSize.Y),
	}

	diam := radius*2 + 1
	cols := make([]int32, 0, sm.Rows*diam*diam*visibleSize.Z)

	// rows must be visited in ascending index order: z slowest, then y, x
	for hz := 0; hz < hiddenSize.Z; hz++ {
		for hy := 0; hy < hiddenSize.Y; hy++ {
			for hx := 0; hx < hiddenSize.X; hx++ {
				pos := evec.Vec2i{X: hx, Y: hy}
				center := Project(pos, hToV)
				lb := evec.Vec2i{X: ints.MaxInt(0, center.X-radius), Y: ints.MaxInt(0, center.Y-radius)}
				ub := evec.Vec2i{X: ints.MinInt(visibleSize.X-1, center.X+radius), Y: ints.MinInt(visibleSize.Y-1, center.Y+radius)}
				for x := lb.X; x <= ub.X; x++ {
					for y := lb.Y; y <= ub.Y; y++ {
						vcol := Address2(evec.Vec2i{X: x, Y: y}, visibleSize.X)
						for vc := 0; vc < visibleSize.Z; vc++ {
							cols = append(cols, int32(vcol*visibleSize.Z+vc))
						}
					}
				}
				row := Address3(pos, hz, hiddenSize)
				sm.RowRanges[row+1] = int32(len(cols))
			}
		}
	}
	sm.ColumnIndexes = cols
	sm.NonZeroValues = make([]float32, len(cols))
	return sm
}

// Counts returns the number of nonzero entries in a row.
func (sm *SparseMatrix) Counts(row int) int {
	return int(sm.RowRanges[row+1] - sm.RowRanges[row])
}

// MultiplyOHVs returns the dot product of a row against the one-hot vectors
// encoded by a CSDR, where oneHotSize is the visible layer depth.
func (sm *SparseMatrix) MultiplyOHVs(oneHots CSDR, row, oneHotSize int) float32 {
	sum := float32(0)
	for jj := sm.RowRanges[row]; jj < sm.RowRanges[row+1]; jj += int32(oneHotSize) {
		col := int(sm.ColumnIndexes[jj]) / oneHotSize
		sum += sm.NonZeroValues[int(jj)+int(oneHots[col])]
	}
	return sum
}

// DeltaOHVs adds delta to the one weight per visible column of a row that
// the CSDR's one-hot codes select.
func (sm *SparseMatrix) DeltaOHVs(oneHots CSDR, delta float32, row, oneHotSize int) {
	for jj := sm.RowRanges[row]; jj < sm.RowRanges[row+1]; jj += int32(oneHotSize) {
		col := int(sm.ColumnIndexes[jj]) / oneHotSize
		sm.NonZeroValues[int(jj)+int(oneHots[col])] += delta
	}
}
