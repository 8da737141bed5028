// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for sns packages:
// bounded channel receives so a broken test fails instead of hanging,
// unique names for rings shared through the filesystem, and a
// directory for ring files that lives in shared memory when the host
// has it.
package testutil
