// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

var (
	// ErrUnresolved reports a type name that no loader could resolve.
	ErrUnresolved = errors.New("dispatch: no renderer for type")

	// ErrNotFound is returned by a Loader that does not know a type,
	// letting the Registry try the next loader.
	ErrNotFound = errors.New("dispatch: type not found")

	// ErrSampleMismatch reports a sampler that returned different
	// numbers of values and labels.
	ErrSampleMismatch = errors.New("dispatch: sample values and labels differ in length")

	// ErrClosed reports use of a registry after Close.
	ErrClosed = errors.New("dispatch: registry closed")
)

// DumpFunc writes a human-readable rendering of frame to w.
type DumpFunc func(w io.Writer, frame []byte) error

// SampleFunc extracts the numeric fields of frame for plotting or
// recording.
type SampleFunc func(frame []byte) (Sample, error)

// Sample is a flat vector of values with a parallel label per value.
type Sample struct {
	Values []float64
	Labels []string
}

// Entry is the pair of capabilities registered for one type.
type Entry struct {
	Dump   DumpFunc
	Sample SampleFunc
}

// Loader resolves a type name to its Entry. A loader that does not
// know the type returns an error wrapping ErrNotFound.
type Loader interface {
	Load(typeName string) (Entry, error)
}

// Registry resolves and caches entries by type name.
type Registry struct {
	loaders []Loader
	logger  *slog.Logger
	closed  atomic.Bool

	// resolutions maps type name to *resolution. sync.Map keeps the
	// read path lock-free once a name has been stored.
	resolutions sync.Map
}

type resolution struct {
	once  sync.Once
	entry Entry
	err   error
}

// NewRegistry returns a registry that consults loaders in order. A nil
// logger discards log output.
func NewRegistry(logger *slog.Logger, loaders ...Loader) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{loaders: loaders, logger: logger}
}

// Resolve returns the entry for typeName, loading it on first use.
func (r *Registry) Resolve(typeName string) (Entry, error) {
	if r.closed.Load() {
		return Entry{}, ErrClosed
	}
	value, ok := r.resolutions.Load(typeName)
	if !ok {
		value, _ = r.resolutions.LoadOrStore(typeName, &resolution{})
	}
	res := value.(*resolution)
	res.once.Do(func() {
		res.entry, res.err = r.load(typeName)
	})
	return res.entry, res.err
}

func (r *Registry) load(typeName string) (Entry, error) {
	var attempts []error
	for _, loader := range r.loaders {
		entry, err := loader.Load(typeName)
		if err == nil {
			if entry.Dump == nil || entry.Sample == nil {
				return Entry{}, fmt.Errorf("%w %q: loader returned an incomplete entry", ErrUnresolved, typeName)
			}
			r.logger.Debug("resolved message type", "type", typeName, "loader", fmt.Sprintf("%T", loader))
			return entry, nil
		}
		if !errors.Is(err, ErrNotFound) {
			r.logger.Error("loading message type failed", "type", typeName, "error", err)
			return Entry{}, fmt.Errorf("%w %q: %w", ErrUnresolved, typeName, err)
		}
		attempts = append(attempts, err)
	}
	if len(attempts) == 0 {
		return Entry{}, fmt.Errorf("%w %q: no loaders configured", ErrUnresolved, typeName)
	}
	return Entry{}, fmt.Errorf("%w %q: %w", ErrUnresolved, typeName, errors.Join(attempts...))
}

// Dump resolves typeName and renders frame to w.
func (r *Registry) Dump(w io.Writer, typeName string, frame []byte) error {
	entry, err := r.Resolve(typeName)
	if err != nil {
		return err
	}
	return entry.Dump(w, frame)
}

// PlotSample resolves typeName and samples frame. The returned sample
// always has as many labels as values.
func (r *Registry) PlotSample(typeName string, frame []byte) (Sample, error) {
	entry, err := r.Resolve(typeName)
	if err != nil {
		return Sample{}, err
	}
	sample, err := entry.Sample(frame)
	if err != nil {
		return Sample{}, err
	}
	if len(sample.Values) != len(sample.Labels) {
		return Sample{}, fmt.Errorf("%w: %s returned %d values, %d labels",
			ErrSampleMismatch, typeName, len(sample.Values), len(sample.Labels))
	}
	return sample, nil
}

// Close tears the registry down: every resolution is forgotten and
// later calls fail with ErrClosed. Code already loaded by a
// PluginLoader stays mapped; Go cannot unload plugins.
func (r *Registry) Close() {
	r.closed.Store(true)
	r.resolutions.Clear()
}
