// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"plugin"
	"strings"
)

// Plugin naming convention and exported symbol names.
const (
	DefaultPluginPrefix = "libsns_msg_"
	DefaultPluginSuffix = ".so"

	// DumpSymbol must have type func(io.Writer, []byte) error.
	DumpSymbol = "Dump"

	// SampleSymbol must have type
	// func([]byte) (values []float64, labels []string, err error).
	SampleSymbol = "PlotSample"
)

// PluginLoader loads entries from Go plugins (built with
// -buildmode=plugin) named <Dir>/<Prefix><type><Suffix>.
type PluginLoader struct {
	Dir    string
	Prefix string
	Suffix string
}

// Path returns the plugin file for typeName.
func (l PluginLoader) Path(typeName string) string {
	prefix, suffix := l.Prefix, l.Suffix
	if prefix == "" {
		prefix = DefaultPluginPrefix
	}
	if suffix == "" {
		suffix = DefaultPluginSuffix
	}
	return filepath.Join(l.Dir, prefix+typeName+suffix)
}

// Load implements Loader. A missing plugin file is ErrNotFound; a
// plugin that exists but fails to open or lacks either symbol is a
// hard error.
func (l PluginLoader) Load(typeName string) (Entry, error) {
	if l.Dir == "" {
		return Entry{}, fmt.Errorf("%w: no plugin directory configured", ErrNotFound)
	}
	if !validTypeName(typeName) {
		return Entry{}, fmt.Errorf("%w: %q is not a plugin type name", ErrNotFound, typeName)
	}
	path := l.Path(typeName)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Entry{}, fmt.Errorf("%w: no plugin at %s", ErrNotFound, path)
		}
		return Entry{}, fmt.Errorf("checking plugin %s: %w", path, err)
	}

	unit, err := plugin.Open(path)
	if err != nil {
		return Entry{}, fmt.Errorf("opening plugin %s: %w", path, err)
	}

	dumpSymbol, err := unit.Lookup(DumpSymbol)
	if err != nil {
		return Entry{}, fmt.Errorf("plugin %s: %w", path, err)
	}
	dump, ok := dumpSymbol.(func(io.Writer, []byte) error)
	if !ok {
		return Entry{}, fmt.Errorf("plugin %s: %s has type %T, want func(io.Writer, []byte) error", path, DumpSymbol, dumpSymbol)
	}

	sampleSymbol, err := unit.Lookup(SampleSymbol)
	if err != nil {
		return Entry{}, fmt.Errorf("plugin %s: %w", path, err)
	}
	sample, ok := sampleSymbol.(func([]byte) ([]float64, []string, error))
	if !ok {
		return Entry{}, fmt.Errorf("plugin %s: %s has type %T, want func([]byte) ([]float64, []string, error)", path, SampleSymbol, sampleSymbol)
	}

	return Entry{
		Dump: dump,
		Sample: func(frame []byte) (Sample, error) {
			values, labels, err := sample(frame)
			return Sample{Values: values, Labels: labels}, err
		},
	}, nil
}

// validTypeName refuses names that would resolve outside the plugin
// directory once joined into a path.
func validTypeName(typeName string) bool {
	return typeName != "" &&
		!strings.ContainsRune(typeName, '/') &&
		!strings.ContainsRune(typeName, filepath.Separator) &&
		!strings.Contains(typeName, "..")
}
