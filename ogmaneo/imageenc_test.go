// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ogmaneo

import (
	"testing"

	"github.com/Thanh-Binh/OgmaNeo2/compute"
	"github.com/emer/etable/etensor"
	"github.com/goki/mat32"
)

func testActs(size Vec3i) *etensor.Float32 {
	tsr := etensor.NewFloat32([]int{size.Z, size.Y, size.X}, nil, []string{"Z", "Y", "X"})
	for i := range tsr.Values {
		tsr.Values[i] = 0.1 + 0.8*float32(i%7)/6
	}
	return tsr
}

func TestImageEncoderOneHot(t *testing.T) {
	cs := compute.NewSystem(51)
	vld := VisibleLayerDesc{Size: Vec3i{X: 8, Y: 8, Z: 3}, Radius: 2}

	var ie ImageEncoder
	if err := ie.CreateRandom(cs, Vec3i{X: 4, Y: 4, Z: 16}, []VisibleLayerDesc{vld}); err != nil {
		t.Fatalf("CreateRandom: %v", err)
	}

	acts := testActs(vld.Size)
	if err := ie.Activate(cs, []*etensor.Float32{acts}); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if err := ie.HiddenCs.Validate(ie.HiddenSize); err != nil {
		t.Errorf("hidden codes invalid: %v", err)
	}
}

func TestImageEncoderShapeValidation(t *testing.T) {
	cs := compute.NewSystem(53)
	vld := VisibleLayerDesc{Size: Vec3i{X: 4, Y: 4, Z: 3}, Radius: 1}

	var ie ImageEncoder
	if err := ie.CreateRandom(cs, Vec3i{X: 2, Y: 2, Z: 8}, []VisibleLayerDesc{vld}); err != nil {
		t.Fatalf("CreateRandom: %v", err)
	}

	if err := ie.Activate(cs, nil); err == nil {
		t.Errorf("missing tensors should fail")
	}
	small := etensor.NewFloat32([]int{2, 2}, nil, nil)
	if err := ie.Activate(cs, []*etensor.Float32{small}); err == nil {
		t.Errorf("wrong-size tensor should fail")
	}
	if err := ie.Learn(cs, []*etensor.Float32{small}); err == nil {
		t.Errorf("wrong-size tensor should fail in Learn")
	}
}

func TestImageEncoderLearnsReconstruction(t *testing.T) {
	cs := compute.NewSystem(59)
	vld := VisibleLayerDesc{Size: Vec3i{X: 4, Y: 4, Z: 2}, Radius: 2}

	var ie ImageEncoder
	if err := ie.CreateRandom(cs, Vec3i{X: 4, Y: 4, Z: 8}, []VisibleLayerDesc{vld}); err != nil {
		t.Fatalf("CreateRandom: %v", err)
	}
	ie.Alpha = 0.1

	acts := testActs(vld.Size)
	reconErr := func() float32 {
		sum := float32(0)
		for i, v := range acts.Values {
			sum += mat32.Abs(v - ie.VisibleLayers[0].ReconActs[i])
		}
		return sum
	}

	if err := ie.Activate(cs, []*etensor.Float32{acts}); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	before := reconErr()

	for i := 0; i < 30; i++ {
		if err := ie.Learn(cs, []*etensor.Float32{acts}); err != nil {
			t.Fatalf("Learn %v: %v", i, err)
		}
		if err := ie.Activate(cs, []*etensor.Float32{acts}); err != nil {
			t.Fatalf("Activate: %v", err)
		}
	}
	after := reconErr()

	if after >= before {
		t.Errorf("reconstruction error did not fall: %v -> %v", before, after)
	}
}

func TestImageEncoderDeterminism(t *testing.T) {
	run := func(workers int) (CSDR, []float32) {
		cs := compute.NewSystem(61)
		cs.NWorkers = workers
		vld := VisibleLayerDesc{Size: Vec3i{X: 8, Y: 8, Z: 3}, Radius: 2}
		var ie ImageEncoder
		if err := ie.CreateRandom(cs, Vec3i{X: 4, Y: 4, Z: 16}, []VisibleLayerDesc{vld}); err != nil {
			t.Fatalf("CreateRandom: %v", err)
		}
		acts := testActs(vld.Size)
		for step := 0; step < 3; step++ {
			if err := ie.Activate(cs, []*etensor.Float32{acts}); err != nil {
				t.Fatalf("Activate: %v", err)
			}
			if err := ie.Learn(cs, []*etensor.Float32{acts}); err != nil {
				t.Fatalf("Learn: %v", err)
			}
		}
		return ie.HiddenCs.Clone(), append([]float32(nil), ie.VisibleLayers[0].Weights...)
	}

	cs1, w1 := run(1)
	cs4, w4 := run(4)
	for i := range cs1 {
		if cs1[i] != cs4[i] {
			t.Errorf("hidden code %v differs across worker counts: %v vs %v", i, cs1[i], cs4[i])
		}
	}
	for i := range w1 {
		if w1[i] != w4[i] {
			t.Fatalf("weight %v differs across worker counts: %v vs %v", i, w1[i], w4[i])
		}
	}
}
