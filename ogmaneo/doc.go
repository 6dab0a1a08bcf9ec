// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package ogmaneo implements online-learning engines over categorical sparse
distributed representations (CSDRs).

A CSDR is a 2D grid of columns where each column holds exactly one active
integer code in [0, depth).  Engines connect a hidden grid to one or more
visible (input) grids through local receptive fields: each hidden column sees
a radius-bounded neighborhood of the visible grid, centered by projecting the
hidden coordinate through the ratio of the two grid resolutions.

The engines are:

* SparseCoder: compresses input CSDRs into a sparser hidden CSDR by iterating
a forward pass against a backward reconstruction, subtracting what is already
explained (explaining away) before each column picks its next winning code.

* Actor: maps input CSDRs to a discrete action CSDR per column by greedy
arg-max over a learned value function, and improves the policy off-policy
from a feedback CSDR using persistent advantage learning (PAL) over randomly
replayed transitions from a fixed-capacity history ring.

* Predictor: a supervised variant that learns to emit a target CSDR from the
inputs, selecting codes by Boltzmann sampling over its activations.

* ImageEncoder: the SparseCoder algorithm with dense float visible
activations (e.g. image channels) instead of categorical codes.

All engines share the addressing and projection helpers in this package, the
VisibleLayerDesc receptive-field descriptor, and binary stream persistence.
Kernels are dispatched through the compute package; per-pass parallelism is
safe because every grid position writes only its own output slots.
*/
package ogmaneo
