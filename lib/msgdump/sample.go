// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package msgdump

import (
	"strconv"

	"github.com/bureau-foundation/sns/lib/dispatch"
	"github.com/bureau-foundation/sns/lib/msg"
)

// sampler accumulates values with their labels so the two slices
// cannot drift apart.
type sampler struct {
	sample dispatch.Sample
}

func newSampler(capacity int) *sampler {
	return &sampler{sample: dispatch.Sample{
		Values: make([]float64, 0, capacity),
		Labels: make([]string, 0, capacity),
	}}
}

func (s *sampler) add(label string, value float64) {
	s.sample.Values = append(s.sample.Values, value)
	s.sample.Labels = append(s.sample.Labels, label)
}

func indexed(name string, index int) string {
	return name + "[" + strconv.Itoa(index) + "]"
}

var (
	tfLabels   = [7]string{"qx", "qy", "qz", "qw", "x", "y", "z"}
	tfDxLabels = [6]string{"dx", "dy", "dz", "wx", "wy", "wz"}
)

func (s *sampler) addTF(prefix string, tf msg.TF) {
	values := [7]float64{tf.Q[0], tf.Q[1], tf.Q[2], tf.Q[3], tf.V[0], tf.V[1], tf.V[2]}
	for i, value := range values {
		s.add(prefix+"."+tfLabels[i], value)
	}
}

// SampleLog samples a log message as its priority.
func SampleLog(frame []byte) (dispatch.Sample, error) {
	m, err := msg.ViewLog(frame)
	if err != nil {
		return dispatch.Sample{}, err
	}
	s := newSampler(1)
	s.add("priority", float64(m.Priority()))
	return s.sample, nil
}

// SampleVector samples each element as x[i].
func SampleVector(frame []byte) (dispatch.Sample, error) {
	m, err := msg.ViewVector(frame)
	if err != nil {
		return dispatch.Sample{}, err
	}
	s := newSampler(m.Len())
	for i := range m.Len() {
		s.add(indexed("x", i), m.At(i))
	}
	return s.sample, nil
}

// SampleMatrix samples in row-major order as m[row,col].
func SampleMatrix(frame []byte) (dispatch.Sample, error) {
	m, err := msg.ViewMatrix(frame)
	if err != nil {
		return dispatch.Sample{}, err
	}
	s := newSampler(m.Rows() * m.Cols())
	if m.Empty() {
		return s.sample, nil
	}
	for i := range m.Rows() {
		for j := range m.Cols() {
			s.add("m["+strconv.Itoa(i)+","+strconv.Itoa(j)+"]", m.At(i, j))
		}
	}
	return s.sample, nil
}

// SampleTF samples seven values per transform.
func SampleTF(frame []byte) (dispatch.Sample, error) {
	m, err := msg.ViewTF(frame)
	if err != nil {
		return dispatch.Sample{}, err
	}
	s := newSampler(7 * m.Len())
	for i := range m.Len() {
		s.addTF(indexed("tf", i), m.At(i))
	}
	return s.sample, nil
}

// SampleTFDx samples thirteen values per element.
func SampleTFDx(frame []byte) (dispatch.Sample, error) {
	m, err := msg.ViewTFDx(frame)
	if err != nil {
		return dispatch.Sample{}, err
	}
	s := newSampler(13 * m.Len())
	for i := range m.Len() {
		element := m.At(i)
		prefix := indexed("tf_dx", i)
		s.addTF(prefix, element.TF)
		values := [6]float64{element.Dv[0], element.Dv[1], element.Dv[2], element.Omega[0], element.Omega[1], element.Omega[2]}
		for k, value := range values {
			s.add(prefix+"."+tfDxLabels[k], value)
		}
	}
	return s.sample, nil
}

// SampleMotorRef samples each reference as ref[i]. The mode is not
// sampled.
func SampleMotorRef(frame []byte) (dispatch.Sample, error) {
	m, err := msg.ViewMotorRef(frame)
	if err != nil {
		return dispatch.Sample{}, err
	}
	s := newSampler(m.Len())
	for i := range m.Len() {
		s.add(indexed("ref", i), m.At(i))
	}
	return s.sample, nil
}

// SampleMotorState samples pos[i] and vel[i] for each joint.
func SampleMotorState(frame []byte) (dispatch.Sample, error) {
	m, err := msg.ViewMotorState(frame)
	if err != nil {
		return dispatch.Sample{}, err
	}
	s := newSampler(2 * m.Len())
	for i := range m.Len() {
		joint := m.At(i)
		s.add(indexed("pos", i), joint.Pos)
		s.add(indexed("vel", i), joint.Vel)
	}
	return s.sample, nil
}

// SampleJoystick samples each axis as axis[i], followed by the button
// bitmask as a single value.
func SampleJoystick(frame []byte) (dispatch.Sample, error) {
	m, err := msg.ViewJoystick(frame)
	if err != nil {
		return dispatch.Sample{}, err
	}
	s := newSampler(m.Len() + 1)
	for i := range m.Len() {
		s.add(indexed("axis", i), m.At(i))
	}
	s.add("buttons", float64(m.Buttons()))
	return s.sample, nil
}
