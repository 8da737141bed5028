// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package watchdog

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/bureau-foundation/sns/lib/msg"
)

// ErrPublish wraps a failure to put a halt command on the output.
var ErrPublish = errors.New("watchdog: publishing halt command")

// Publisher is the output side of a channel.
type Publisher interface {
	Put(frame []byte) error
}

// Allocator is a LIFO region that halt commands are built in.
// *arena.Region and *arena.Local satisfy it.
type Allocator interface {
	msg.Allocator
	Pop(frame []byte) error
}

// Limit bounds one joint. A zero MaxVelocity leaves the velocity
// unbounded.
type Limit struct {
	Name        string
	Min         float64
	Max         float64
	MaxVelocity float64
}

// Config configures a Watchdog.
type Config struct {
	// Joints is the number of joints tracked. Default: len(Limits).
	Joints int

	// Limits bounds each joint, in joint order. Joints past the end
	// are unbounded.
	Limits []Limit

	// Period is the control period, the dt of the prediction step.
	Period time.Duration

	// StepScale multiplies Period to give the look-ahead horizon.
	StepScale float64

	// HaltValidity is stamped on halt commands. Default: 1s.
	HaltValidity time.Duration

	Producer *msg.Producer
	Output   Publisher
	Arena    Allocator

	// Logger receives malformed-frame errors, unhandled-mode
	// warnings and halt reports. Default: discard.
	Logger *slog.Logger
}

// Violation describes why the guard tripped.
type Violation struct {
	Joint int
	Name  string

	// Reason is "position", "velocity" or "reference".
	Reason string

	// Value is the offending predicted position, measured velocity
	// or commanded position.
	Value float64
}

func (v Violation) String() string {
	name := v.Name
	if name == "" {
		name = fmt.Sprintf("joint %d", v.Joint)
	}
	return fmt.Sprintf("%s: %s %v out of limits", name, v.Reason, v.Value)
}

// Watchdog tracks joint state and references and halts the robot when
// the guard trips.
type Watchdog struct {
	config Config
	logger *slog.Logger
	joints int

	position []float64
	velocity []float64

	refPosition     []float64
	refVelocity     []float64
	haveRefPosition bool
	haveRefVelocity bool

	halts int
}

// New validates config and returns a Watchdog with all joints at rest
// at zero.
func New(config Config) (*Watchdog, error) {
	if config.Producer == nil || config.Output == nil || config.Arena == nil {
		return nil, errors.New("watchdog: producer, output and arena are required")
	}
	if config.Joints == 0 {
		config.Joints = len(config.Limits)
	}
	if config.Joints <= 0 {
		return nil, errors.New("watchdog: no joints: set Joints or Limits")
	}
	if config.Period <= 0 {
		return nil, fmt.Errorf("watchdog: period must be positive, got %v", config.Period)
	}
	if config.StepScale < 0 {
		return nil, fmt.Errorf("watchdog: step scale must not be negative, got %v", config.StepScale)
	}
	if config.HaltValidity == 0 {
		config.HaltValidity = time.Second
	}
	for i, limit := range config.Limits {
		if limit.Min > limit.Max {
			return nil, fmt.Errorf("watchdog: limit %d (%s): min %v exceeds max %v", i, limit.Name, limit.Min, limit.Max)
		}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	n := config.Joints
	return &Watchdog{
		config:      config,
		logger:      logger,
		joints:      n,
		position:    make([]float64, n),
		velocity:    make([]float64, n),
		refPosition: make([]float64, n),
		refVelocity: make([]float64, n),
	}, nil
}

// HandleState records the measured position and velocity of each
// joint the frame covers. Malformed frames are logged and dropped.
func (w *Watchdog) HandleState(frame []byte) error {
	state, err := msg.ViewMotorState(frame)
	if err != nil {
		w.logger.Error("mismatched message size on state channel", "error", err)
		return nil
	}
	for i := range min(w.joints, state.Len()) {
		joint := state.At(i)
		w.position[i] = joint.Pos
		w.velocity[i] = joint.Vel
	}
	return nil
}

// HandleRef records a position or velocity reference and runs the
// guard, halting if it trips. Frames in other modes are logged and
// leave the references unchanged. Only a failure to build or release
// a halt command is returned; a failed publish is logged.
func (w *Watchdog) HandleRef(frame []byte) error {
	ref, err := msg.ViewMotorRef(frame)
	if err != nil {
		w.logger.Error("mismatched message size on reference channel", "error", err)
		return nil
	}
	w.logger.Debug("reference received", "mode", ref.Mode(), "joints", ref.Len())

	switch ref.Mode() {
	case msg.MotorPosition:
		w.copyReference(w.refPosition, ref)
		w.haveRefPosition = true
	case msg.MotorVelocity:
		w.copyReference(w.refVelocity, ref)
		w.haveRefVelocity = true
	default:
		w.logger.Warn("unhandled motor mode", "mode", ref.Mode())
	}
	return w.guard()
}

func (w *Watchdog) copyReference(target []float64, ref msg.MotorRef) {
	for i := range min(len(target), ref.Len()) {
		target[i] = ref.At(i)
	}
}

// Tick runs the guard against the measured state alone. Wire it to
// the event loop's periodic callback so a robot drifting out of its
// limits is stopped even when no references arrive.
func (w *Watchdog) Tick() error {
	return w.guard()
}

func (w *Watchdog) guard() error {
	violation, tripped := w.Check()
	if !tripped {
		return nil
	}
	w.logger.Warn("guard tripped", "joint", violation.Joint, "name", violation.Name,
		"reason", violation.Reason, "value", violation.Value)
	if err := w.Halt(); err != nil {
		if errors.Is(err, ErrPublish) {
			w.logger.Error("failed to halt", "error", err)
			return nil
		}
		return err
	}
	return nil
}

// Check projects the measured positions one step ahead and tests
// them, the measured velocities, and any position reference received
// since the last check against the limits. The reference flags are
// cleared.
func (w *Watchdog) Check() (Violation, bool) {
	dt := w.config.StepScale * w.config.Period.Seconds()
	checkReference := w.haveRefPosition
	w.haveRefPosition = false
	w.haveRefVelocity = false

	for i, limit := range w.config.Limits {
		if i >= w.joints {
			break
		}
		predicted := w.position[i] + dt*w.velocity[i]
		if !within(predicted, limit) {
			return Violation{Joint: i, Name: limit.Name, Reason: "position", Value: predicted}, true
		}
		if limit.MaxVelocity > 0 && math.Abs(w.velocity[i]) > limit.MaxVelocity {
			return Violation{Joint: i, Name: limit.Name, Reason: "velocity", Value: w.velocity[i]}, true
		}
		if checkReference && !within(w.refPosition[i], limit) {
			return Violation{Joint: i, Name: limit.Name, Reason: "reference", Value: w.refPosition[i]}, true
		}
	}
	return Violation{}, false
}

// within is false for NaN.
func within(value float64, limit Limit) bool {
	return value >= limit.Min && value <= limit.Max
}

// Halt publishes a HALT motor_ref with zero values for every joint,
// valid for HaltValidity from now. The velocity reference is zeroed.
// The command is built in the arena and popped once published.
func (w *Watchdog) Halt() error {
	w.logger.Info("halting robot", "joints", w.joints)
	clear(w.refVelocity)

	ref, err := msg.NewMotorRef(w.config.Arena, w.config.Producer, msg.MotorHalt, w.joints)
	if err != nil {
		return fmt.Errorf("watchdog: building halt command: %w", err)
	}
	ref.SetTime(w.config.Producer.Now(), w.config.HaltValidity)
	ref.CopyFrom(w.refVelocity)

	putErr := w.config.Output.Put(ref.Bytes())
	if err := w.config.Arena.Pop(ref.Bytes()); err != nil {
		return fmt.Errorf("watchdog: releasing halt command: %w", err)
	}
	if putErr != nil {
		return fmt.Errorf("%w: %w", ErrPublish, putErr)
	}
	w.halts++
	return nil
}

// Halts returns the number of halt commands published.
func (w *Watchdog) Halts() int { return w.halts }

// State returns copies of the measured positions and velocities.
func (w *Watchdog) State() (position, velocity []float64) {
	return append([]float64(nil), w.position...), append([]float64(nil), w.velocity...)
}

// References returns copies of the stored position and velocity
// references.
func (w *Watchdog) References() (position, velocity []float64) {
	return append([]float64(nil), w.refPosition...), append([]float64(nil), w.refVelocity...)
}
