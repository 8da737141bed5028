// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package msgdump provides the renderers and samplers for the built-in
// message types and registers them with a [dispatch.Static] table.
//
// Rendering writes one styled header line followed by the type's
// payload. Styling goes through a lipgloss renderer whose colour
// profile is fixed at construction: [DetectProfile] picks the
// terminal's profile for interactive output and plain ASCII for pipes
// and files, so redirected dumps never carry escape sequences.
//
// Sampling flattens a frame into a value per observable number with a
// parallel label, in a stable order suitable for plotting and
// recording. Both operations validate the frame size before reading
// any field past the count.
package msgdump
