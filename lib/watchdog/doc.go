// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package watchdog stops a robot whose motion is about to leave its
// safe envelope.
//
// A [Watchdog] follows two inputs: the measured joint state
// (motor_state frames, via [Watchdog.HandleState]) and the commanded
// references (motor_ref frames, via [Watchdog.HandleRef]). Each
// reference triggers a guard check: the measured positions are
// projected forward by one Euler step of StepScale*Period seconds at
// the measured velocities, and the projection, the measured
// velocities, and any commanded position are tested against per-joint
// [Limit]s. When the guard trips, the watchdog publishes a HALT
// motor_ref on its output.
//
// Halt commands are built in the caller's arena region and popped as
// soon as they are published, so a watchdog never allocates on the
// Go heap while running. Callers should also call [Watchdog.Halt] on
// shutdown.
//
// Reference frames carrying a mode outside the defined set are logged
// and otherwise ignored: the stored references stay as they were.
//
// A Watchdog is not safe for concurrent use. Run its handlers from a
// single goroutine, as lib/evloop does.
package watchdog
