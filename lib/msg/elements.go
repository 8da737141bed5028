// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package msg

import "math"

// Element encodes one fixed-size element of a vararray message.
type Element[E any] interface {
	// Name identifies the element encoding in layout fingerprints.
	Name() string
	Size() int
	Align() int
	Get(b []byte) E
	Put(b []byte, value E)
}

// TF is a rigid transform: a unit quaternion (x, y, z, w) and a
// translation.
type TF struct {
	Q [4]float64
	V [3]float64
}

// TFDx is the time derivative of a rigid transform: the transform
// itself plus its translational and angular velocities.
type TFDx struct {
	TF    TF
	Dv    [3]float64
	Omega [3]float64
}

// Joint is the measured position and velocity of one joint.
type Joint struct {
	Pos float64
	Vel float64
}

// Element encodings for the built-in message types.
var (
	Float64Element Element[float64] = float64Element{}
	ByteElement    Element[byte]    = byteElement{}
	TFElement      Element[TF]      = tfElement{}
	TFDxElement    Element[TFDx]    = tfDxElement{}
	JointElement   Element[Joint]   = jointElement{}
)

type float64Element struct{}

func (float64Element) Name() string { return "float64" }
func (float64Element) Size() int { return 8 }
func (float64Element) Align() int { return 8 }

func (float64Element) Get(b []byte) float64 {
	return math.Float64frombits(native.Uint64(b))
}

func (float64Element) Put(b []byte, value float64) {
	native.PutUint64(b, math.Float64bits(value))
}

type byteElement struct{}

func (byteElement) Name() string { return "byte" }
func (byteElement) Size() int { return 1 }
func (byteElement) Align() int { return 1 }
func (byteElement) Get(b []byte) byte { return b[0] }
func (byteElement) Put(b []byte, value byte) { b[0] = value }

func getReals(b []byte, out []float64) {
	for i := range out {
		out[i] = math.Float64frombits(native.Uint64(b[i*8:]))
	}
}

func putReals(b []byte, values []float64) {
	for i, value := range values {
		native.PutUint64(b[i*8:], math.Float64bits(value))
	}
}

type tfElement struct{}

func (tfElement) Name() string { return "tf_qv" }
func (tfElement) Size() int { return 7 * 8 }
func (tfElement) Align() int { return 8 }

func (tfElement) Get(b []byte) TF {
	var value TF
	getReals(b[0:32], value.Q[:])
	getReals(b[32:56], value.V[:])
	return value
}

func (tfElement) Put(b []byte, value TF) {
	putReals(b[0:32], value.Q[:])
	putReals(b[32:56], value.V[:])
}

type tfDxElement struct{}

func (tfDxElement) Name() string { return "tf_qv_dx" }
func (tfDxElement) Size() int { return 13 * 8 }
func (tfDxElement) Align() int { return 8 }

func (tfDxElement) Get(b []byte) TFDx {
	var value TFDx
	value.TF = tfElement{}.Get(b[0:56])
	getReals(b[56:80], value.Dv[:])
	getReals(b[80:104], value.Omega[:])
	return value
}

func (tfDxElement) Put(b []byte, value TFDx) {
	tfElement{}.Put(b[0:56], value.TF)
	putReals(b[56:80], value.Dv[:])
	putReals(b[80:104], value.Omega[:])
}

type jointElement struct{}

func (jointElement) Name() string { return "joint_pos_vel" }
func (jointElement) Size() int { return 16 }
func (jointElement) Align() int { return 8 }

func (jointElement) Get(b []byte) Joint {
	return Joint{
		Pos: math.Float64frombits(native.Uint64(b[0:])),
		Vel: math.Float64frombits(native.Uint64(b[8:])),
	}
}

func (jointElement) Put(b []byte, value Joint) {
	native.PutUint64(b[0:], math.Float64bits(value.Pos))
	native.PutUint64(b[8:], math.Float64bits(value.Vel))
}
