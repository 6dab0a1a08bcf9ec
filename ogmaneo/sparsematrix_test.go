// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ogmaneo

import (
	"math/rand"
	"testing"
)

func TestInitLocalRFCounts(t *testing.T) {
	visible := Vec3i{X: 6, Y: 6, Z: 4}
	hidden := Vec3i{X: 6, Y: 6, Z: 3}
	radius := 1
	sm := InitLocalRF(visible, hidden, radius)

	if sm.Rows != hidden.Cells() || sm.Cols != visible.Cells() {
		t.Errorf("dims: got %v x %v, want %v x %v", sm.Rows, sm.Cols, hidden.Cells(), visible.Cells())
	}
	if len(sm.RowRanges) != sm.Rows+1 {
		t.Errorf("RowRanges length: got %v, want %v", len(sm.RowRanges), sm.Rows+1)
	}
	if len(sm.ColumnIndexes) != len(sm.NonZeroValues) {
		t.Errorf("array lengths differ: %v vs %v", len(sm.ColumnIndexes), len(sm.NonZeroValues))
	}

	// equal grids: interior field is full diam^2, corners clamp to 2x2
	interior := Address3(vec2i(2, 3), 1, hidden)
	if got := sm.Counts(interior); got != 9*visible.Z {
		t.Errorf("interior count: got %v, want %v", got, 9*visible.Z)
	}
	corner := Address3(vec2i(0, 0), 0, hidden)
	if got := sm.Counts(corner); got != 4*visible.Z {
		t.Errorf("corner count: got %v, want %v", got, 4*visible.Z)
	}

	// rows of the same column at different depths share a field size
	for hc := 1; hc < hidden.Z; hc++ {
		if sm.Counts(Address3(vec2i(0, 0), hc, hidden)) != sm.Counts(corner) {
			t.Errorf("depth %v corner count differs", hc)
		}
	}

	// within a row the entries of one visible column are consecutive and
	// cover all depths in order
	for row := 0; row < sm.Rows; row++ {
		for jj := sm.RowRanges[row]; jj < sm.RowRanges[row+1]; jj += int32(visible.Z) {
			base := int(sm.ColumnIndexes[jj])
			if base%visible.Z != 0 {
				t.Errorf("row %v entry %v: stride start %v not depth-aligned", row, jj, base)
			}
			for vc := 1; vc < visible.Z; vc++ {
				if int(sm.ColumnIndexes[int(jj)+vc]) != base+vc {
					t.Errorf("row %v: codes of visible column %v not consecutive", row, base/visible.Z)
				}
			}
		}
	}
}

func TestMultiplyOHVs(t *testing.T) {
	visible := Vec3i{X: 4, Y: 4, Z: 3}
	hidden := Vec3i{X: 4, Y: 4, Z: 2}
	sm := InitLocalRF(visible, hidden, 1)
	for i := range sm.NonZeroValues {
		sm.NonZeroValues[i] = float32(i%17) * 0.25
	}

	rng := rand.New(rand.NewSource(7))
	oneHots := NewCSDR(visible.Cols())
	for i := range oneHots {
		oneHots[i] = int32(rng.Intn(visible.Z))
	}

	for row := 0; row < sm.Rows; row++ {
		// reference: walk every nonzero and keep the ones the codes select
		want := float32(0)
		for jj := sm.RowRanges[row]; jj < sm.RowRanges[row+1]; jj++ {
			col := int(sm.ColumnIndexes[jj])
			if col%visible.Z == int(oneHots[col/visible.Z]) {
				want += sm.NonZeroValues[jj]
			}
		}
		if got := sm.MultiplyOHVs(oneHots, row, visible.Z); got != want {
			t.Errorf("row %v: got %v, want %v", row, got, want)
		}
	}
}

func TestDeltaOHVs(t *testing.T) {
	visible := Vec3i{X: 3, Y: 3, Z: 4}
	hidden := Vec3i{X: 3, Y: 3, Z: 2}
	sm := InitLocalRF(visible, hidden, 1)

	oneHots := NewCSDR(visible.Cols())
	for i := range oneHots {
		oneHots[i] = int32((i * 2) % visible.Z)
	}

	row := Address3(vec2i(1, 1), 1, hidden)
	before := append([]float32(nil), sm.NonZeroValues...)
	sm.DeltaOHVs(oneHots, 0.5, row, visible.Z)

	changed := 0
	for i := range sm.NonZeroValues {
		if sm.NonZeroValues[i] != before[i] {
			changed++
			if i < int(sm.RowRanges[row]) || i >= int(sm.RowRanges[row+1]) {
				t.Errorf("entry %v outside row %v changed", i, row)
			}
			if d := sm.NonZeroValues[i] - before[i]; d != 0.5 {
				t.Errorf("entry %v delta: got %v, want 0.5", i, d)
			}
			col := int(sm.ColumnIndexes[i])
			if col%visible.Z != int(oneHots[col/visible.Z]) {
				t.Errorf("entry %v for unselected code changed", i)
			}
		}
	}
	if want := sm.Counts(row) / visible.Z; changed != want {
		t.Errorf("changed %v entries, want one per visible column = %v", changed, want)
	}
}
