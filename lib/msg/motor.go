// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package msg

import "fmt"

// MotorMode qualifies the values in motor reference and motor state
// messages. The set is closed: receivers must skip messages carrying
// any other value rather than map it onto a known mode.
type MotorMode int32

const (
	MotorHalt     MotorMode = 1
	MotorPosition MotorMode = 2
	MotorVelocity MotorMode = 3
	MotorTorque   MotorMode = 4
)

// Valid reports whether m is one of the defined modes.
func (m MotorMode) Valid() bool {
	return m >= MotorHalt && m <= MotorTorque
}

func (m MotorMode) String() string {
	switch m {
	case MotorHalt:
		return "halt"
	case MotorPosition:
		return "position"
	case MotorVelocity:
		return "velocity"
	case MotorTorque:
		return "torque"
	default:
		return fmt.Sprintf("unknown(%d)", int32(m))
	}
}

// ParseMotorMode parses the names returned by String.
func ParseMotorMode(name string) (MotorMode, error) {
	for mode := MotorHalt; mode <= MotorTorque; mode++ {
		if mode.String() == name {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("unknown motor mode %q", name)
}
