// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package msg

import "bytes"

// Framing engines for the built-in vararray types. Each is
// instantiated exactly once; its prefix size is fixed at package
// initialization.
var (
	LogType        = NewVarType("log", 4, 4, ByteElement)
	VectorType     = NewVarType("vector", 0, 1, Float64Element)
	TFType         = NewVarType("tf", 0, 1, TFElement)
	TFDxType       = NewVarType("tf_dx", 0, 1, TFDxElement)
	MotorRefType   = NewVarType("motor_ref", 4, 4, Float64Element)
	MotorStateType = NewVarType("motor_state", 4, 4, JointElement)
	JoystickType   = NewVarType("joystick", 8, 8, Float64Element)
)

// Layouts returns the layouts of all built-in message types.
func Layouts() []Layout {
	return []Layout{
		LogType.Layout(),
		VectorType.Layout(),
		MatrixLayout,
		TFType.Layout(),
		TFDxType.Layout(),
		MotorRefType.Layout(),
		MotorStateType.Layout(),
		JoystickType.Layout(),
	}
}

// LookupLayout returns the layout of the named built-in type.
func LookupLayout(name string) (Layout, bool) {
	for _, layout := range Layouts() {
		if layout.Name == name {
			return layout, true
		}
	}
	return Layout{}, false
}

// Log is a text message with a syslog-style priority.
type Log struct{ Var[byte] }

// NewLog allocates a log message holding text.
func NewLog(allocator Allocator, producer *Producer, priority int32, text string) (Log, error) {
	v, err := LogType.New(allocator, producer, len(text))
	if err != nil {
		return Log{}, err
	}
	m := Log{v}
	m.SetPriority(priority)
	copy(m.frame[LogType.layout.DataOffset:], text)
	return m, nil
}

// ViewLog validates a received log frame.
func ViewLog(frame []byte) (Log, error) {
	v, err := LogType.View(frame)
	return Log{v}, err
}

func (m Log) Priority() int32 { return int32(native.Uint32(m.fields())) }

func (m Log) SetPriority(priority int32) { native.PutUint32(m.fields(), uint32(priority)) }

// Text returns the count bytes of message text, cut at the first NUL
// if the producer wrote a C-style terminator. Tail padding is never
// part of the text.
func (m Log) Text() string {
	offset := LogType.layout.DataOffset
	text := m.frame[offset : offset+m.Len()]
	if end := bytes.IndexByte(text, 0); end >= 0 {
		text = text[:end]
	}
	return string(text)
}

// Vector is a vector of reals.
type Vector struct{ Var[float64] }

// NewVector allocates an n-element vector message.
func NewVector(allocator Allocator, producer *Producer, n int) (Vector, error) {
	v, err := VectorType.New(allocator, producer, n)
	return Vector{v}, err
}

// ViewVector validates a received vector frame.
func ViewVector(frame []byte) (Vector, error) {
	v, err := VectorType.View(frame)
	return Vector{v}, err
}

// TFMsg is a list of rigid transforms.
type TFMsg struct{ Var[TF] }

// NewTF allocates an n-transform message.
func NewTF(allocator Allocator, producer *Producer, n int) (TFMsg, error) {
	v, err := TFType.New(allocator, producer, n)
	return TFMsg{v}, err
}

// ViewTF validates a received tf frame.
func ViewTF(frame []byte) (TFMsg, error) {
	v, err := TFType.View(frame)
	return TFMsg{v}, err
}

// TFDxMsg is a list of transform derivatives.
type TFDxMsg struct{ Var[TFDx] }

// NewTFDx allocates an n-element transform derivative message.
func NewTFDx(allocator Allocator, producer *Producer, n int) (TFDxMsg, error) {
	v, err := TFDxType.New(allocator, producer, n)
	return TFDxMsg{v}, err
}

// ViewTFDx validates a received tf_dx frame.
func ViewTFDx(frame []byte) (TFDxMsg, error) {
	v, err := TFDxType.View(frame)
	return TFDxMsg{v}, err
}

// MotorRef commands one value per joint, interpreted by Mode.
type MotorRef struct{ Var[float64] }

// NewMotorRef allocates an n-joint motor reference with the given
// mode.
func NewMotorRef(allocator Allocator, producer *Producer, mode MotorMode, n int) (MotorRef, error) {
	v, err := MotorRefType.New(allocator, producer, n)
	if err != nil {
		return MotorRef{}, err
	}
	m := MotorRef{v}
	m.SetMode(mode)
	return m, nil
}

// ViewMotorRef validates a received motor_ref frame. The mode is not
// checked here; callers must test Mode().Valid() before acting.
func ViewMotorRef(frame []byte) (MotorRef, error) {
	v, err := MotorRefType.View(frame)
	return MotorRef{v}, err
}

func (m MotorRef) Mode() MotorMode { return MotorMode(native.Uint32(m.fields())) }

func (m MotorRef) SetMode(mode MotorMode) { native.PutUint32(m.fields(), uint32(mode)) }

// MotorState reports position and velocity per joint.
type MotorState struct{ Var[Joint] }

// NewMotorState allocates an n-joint motor state message.
func NewMotorState(allocator Allocator, producer *Producer, mode MotorMode, n int) (MotorState, error) {
	v, err := MotorStateType.New(allocator, producer, n)
	if err != nil {
		return MotorState{}, err
	}
	m := MotorState{v}
	m.SetMode(mode)
	return m, nil
}

// ViewMotorState validates a received motor_state frame.
func ViewMotorState(frame []byte) (MotorState, error) {
	v, err := MotorStateType.View(frame)
	return MotorState{v}, err
}

func (m MotorState) Mode() MotorMode { return MotorMode(native.Uint32(m.fields())) }

func (m MotorState) SetMode(mode MotorMode) { native.PutUint32(m.fields(), uint32(mode)) }

// Joystick carries a button bitmask and one value per axis.
type Joystick struct{ Var[float64] }

// NewJoystick allocates a joystick message with n axes.
func NewJoystick(allocator Allocator, producer *Producer, n int) (Joystick, error) {
	v, err := JoystickType.New(allocator, producer, n)
	return Joystick{v}, err
}

// ViewJoystick validates a received joystick frame.
func ViewJoystick(frame []byte) (Joystick, error) {
	v, err := JoystickType.View(frame)
	return Joystick{v}, err
}

func (m Joystick) Buttons() uint64 { return native.Uint64(m.fields()) }

func (m Joystick) SetButtons(buttons uint64) { native.PutUint64(m.fields(), buttons) }

// Button reports whether button i (0-63) is pressed.
func (m Joystick) Button(i int) bool {
	return i >= 0 && i < 64 && m.Buttons()&(1<<uint(i)) != 0
}
