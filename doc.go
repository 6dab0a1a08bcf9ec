// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package ogmaneo2 is the overall repository for the Go implementation of the
OgmaNeo2 online-learning engines, operating over categorical sparse
distributed representations (CSDRs).

This top-level of the repository has no functional code -- everything is
organized into the following sub-repositories:

* ogmaneo: the core engines -- the iterative explaining-away SparseCoder,
the PAL (persistent advantage learning) Actor with experience replay, the
supervised Predictor, and the dense-input ImageEncoder -- along with the
grid addressing / projection helpers and the compressed one-hot weight
matrix they share, and binary stream persistence for all of them.

* compute: the kernel-dispatch layer that maps per-position functions over
grid extents, batched across a worker pool, with a deterministic independent
random sub-stream per batch.

* examples: these compile into runnable programs.  examples/wavepred trains a
SparseCoder + Predictor pair to predict the next sample of a scalar wave, and
examples/seek1d trains an Actor on a one-dimensional seeking task.
*/
package ogmaneo2
