// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package compute dispatches per-position kernel functions over 1D and 2D grid
extents.  Work is split into fixed-size batches, each batch is handed to a
worker goroutine together with its own random number stream, seeded from the
System's master stream before dispatch.  Positions within a batch run in
order on one goroutine, so results do not depend on scheduling, only on the
seed and the batch geometry.

Within a single dispatch no position may write state read by another
position -- callers own that invariant.
*/
package compute

import (
	"fmt"
	"math/rand"
	"runtime"
	"sync"

	"github.com/emer/emergent/evec"
	"github.com/goki/ki/ints"
)

// Kernel1D is a per-position function mapped over a 1D index range.
type Kernel1D func(pos int, rng *rand.Rand)

// Kernel2D is a per-position function mapped over a 2D grid extent.
type Kernel2D func(pos evec.Vec2i, rng *rand.Rand)

// System holds the dispatch configuration and the master random stream that
// seeds every batch sub-stream.  It is not safe for concurrent use by
// multiple callers -- engine calls that share a System must be sequenced.
type System struct {
	NWorkers   int        `desc:"maximum number of worker goroutines -- <= 1 runs batches sequentially on the calling goroutine"`
	BatchSize1 int        `def:"512" desc:"number of positions per batch for 1D dispatch"`
	BatchSize2 evec.Vec2i `desc:"batch tile extent for 2D dispatch, default 8 x 8"`
	Rand       *rand.Rand `view:"-" desc:"master random stream -- all batch sub-streams are seeded from it in deterministic order"`
}

// NewSystem returns a System with default batch sizes, one worker per CPU,
// and a master stream seeded with the given seed.
func NewSystem(seed int64) *System {
	sys := &System{}
	sys.Defaults()
	sys.Rand = rand.New(rand.NewSource(seed))
	return sys
}

func (sys *System) Defaults() {
	sys.NWorkers = runtime.NumCPU()
	sys.BatchSize1 = 512
	sys.BatchSize2 = evec.Vec2i{X: 8, Y: 8}
}

// batch is one unit of dispatched work: a start position, an extent, and the
// seed for its private sub-stream.
type batch struct {
	seed  int64
	start evec.Vec2i
	n     evec.Vec2i
}

// Run1D maps fn over positions [0, size), batched by BatchSize1.
// It returns after all positions have run.  Fails only on a negative extent.
func Run1D(sys *System, size int, fn Kernel1D) error {
	if size < 0 {
		return fmt.Errorf("compute: Run1D: invalid extent %d", size)
	}
	if size == 0 {
		return nil
	}
	bs := ints.MaxInt(1, sys.BatchSize1)
	nb := (size + bs - 1) / bs
	batches := make([]batch, nb)
	for bi := range batches {
		st := bi * bs
		batches[bi] = batch{
			seed:  sys.Rand.Int63(),
			start: evec.Vec2i{X: st},
			n:     evec.Vec2i{X: ints.MinInt(bs, size-st)},
		}
	}
	run := func(b batch, rng *rand.Rand) {
		for x := 0; x < b.n.X; x++ {
			fn(b.start.X+x, rng)
		}
	}
	dispatch(sys, batches, run)
	return nil
}

// Run2D maps fn over the 2D grid [0, size.X) x [0, size.Y), batched by
// BatchSize2 tiles.  Fails only on a negative extent.
func Run2D(sys *System, size evec.Vec2i, fn Kernel2D) error {
	if size.X < 0 || size.Y < 0 {
		return fmt.Errorf("compute: Run2D: invalid extent %d x %d", size.X, size.Y)
	}
	if size.X == 0 || size.Y == 0 {
		return nil
	}
	bsx := ints.MaxInt(1, sys.BatchSize2.X)
	bsy := ints.MaxInt(1, sys.BatchSize2.Y)
	nbx := (size.X + bsx - 1) / bsx
	nby := (size.Y + bsy - 1) / bsy
	batches := make([]batch, 0, nbx*nby)
	for bx := 0; bx < nbx; bx++ {
		for by := 0; by < nby; by++ {
			st := evec.Vec2i{X: bx * bsx, Y: by * bsy}
			batches = append(batches, batch{
				seed:  sys.Rand.Int63(),
				start: st,
				n:     evec.Vec2i{X: ints.MinInt(bsx, size.X-st.X), Y: ints.MinInt(bsy, size.Y-st.Y)},
			})
		}
	}
	run := func(b batch, rng *rand.Rand) {
		for x := 0; x < b.n.X; x++ {
			for y := 0; y < b.n.Y; y++ {
				fn(evec.Vec2i{X: b.start.X + x, Y: b.start.Y + y}, rng)
			}
		}
	}
	dispatch(sys, batches, run)
	return nil
}

// dispatch runs the batches across the worker pool, giving each batch a
// sub-stream seeded before any worker starts.
func dispatch(sys *System, batches []batch, run func(b batch, rng *rand.Rand)) {
	nw := ints.MinInt(ints.MaxInt(1, sys.NWorkers), len(batches))
	if nw == 1 {
		for _, b := range batches {
			run(b, rand.New(rand.NewSource(b.seed)))
		}
		return
	}
	ch := make(chan batch, len(batches))
	for _, b := range batches {
		ch <- b
	}
	close(ch)
	var wg sync.WaitGroup
	wg.Add(nw)
	for wi := 0; wi < nw; wi++ {
		go func() {
			defer wg.Done()
			for b := range ch {
				run(b, rand.New(rand.NewSource(b.seed)))
			}
		}()
	}
	wg.Wait()
}
