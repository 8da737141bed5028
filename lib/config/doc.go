// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the configuration shared by sns tools.
//
// Configuration comes from a single file named by a --config flag or
// the SNS_CONFIG environment variable (see [Resolve]). There is no
// search path and no per-field environment override: what the file
// says is what runs. With neither set, tools run on [Default].
//
// The file may be YAML (.yaml, .yml) or JSON with comments and
// trailing commas (.json, .jsonc). Both decode into the same [Config]
// struct.
//
// Environment sections (development, production) override the base
// values when [Config].Environment matches. Production defaults lock
// arena memory and keep debug logging off even without an explicit
// section.
//
// Path fields support ${VAR} and ${VAR:-default} expansion after
// loading. [Config.Validate] reports every problem at once via
// errors.Join.
//
// This package depends on no other sns packages.
package config
