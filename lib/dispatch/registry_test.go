// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
)

// countingLoader records how many times each name is loaded.
type countingLoader struct {
	mu    sync.Mutex
	calls map[string]int
	known map[string]Entry
	fail  error
}

func (l *countingLoader) Load(typeName string) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.calls == nil {
		l.calls = make(map[string]int)
	}
	l.calls[typeName]++
	if l.fail != nil {
		return Entry{}, l.fail
	}
	entry, ok := l.known[typeName]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return entry, nil
}

func (l *countingLoader) count(typeName string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[typeName]
}

func echoEntry(label string) Entry {
	return Entry{
		Dump: func(w io.Writer, frame []byte) error {
			_, err := fmt.Fprintf(w, "%s:%d", label, len(frame))
			return err
		},
		Sample: func(frame []byte) (Sample, error) {
			return Sample{Values: []float64{float64(len(frame))}, Labels: []string{"len"}}, nil
		},
	}
}

func TestResolveStatic(t *testing.T) {
	static := NewStatic()
	static.Register("vector", echoEntry("vector"))
	registry := NewRegistry(nil, static)

	var out bytes.Buffer
	if err := registry.Dump(&out, "vector", make([]byte, 80)); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if got := out.String(); got != "vector:80" {
		t.Errorf("Dump output = %q, want %q", got, "vector:80")
	}

	sample, err := registry.PlotSample("vector", make([]byte, 96))
	if err != nil {
		t.Fatalf("PlotSample: %v", err)
	}
	if len(sample.Values) != 1 || sample.Values[0] != 96 || sample.Labels[0] != "len" {
		t.Errorf("PlotSample = %+v, want [96] labelled len", sample)
	}
}

func TestResolveFallsThroughLoaders(t *testing.T) {
	first := &countingLoader{}
	second := &countingLoader{known: map[string]Entry{"tf": echoEntry("tf")}}
	registry := NewRegistry(nil, first, second)

	if _, err := registry.Resolve("tf"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if first.count("tf") != 1 || second.count("tf") != 1 {
		t.Errorf("loader calls = %d, %d, want 1, 1", first.count("tf"), second.count("tf"))
	}
}

func TestResolveUnknownIsUnresolved(t *testing.T) {
	registry := NewRegistry(nil, NewStatic(), PluginLoader{Dir: t.TempDir()})
	_, err := registry.Resolve("nonexistent_type")
	if !errors.Is(err, ErrUnresolved) {
		t.Fatalf("Resolve error = %v, want ErrUnresolved", err)
	}
	if err := registry.Dump(io.Discard, "nonexistent_type", nil); !errors.Is(err, ErrUnresolved) {
		t.Errorf("Dump error = %v, want ErrUnresolved", err)
	}
}

func TestResolveNoLoaders(t *testing.T) {
	registry := NewRegistry(nil)
	if _, err := registry.Resolve("vector"); !errors.Is(err, ErrUnresolved) {
		t.Errorf("Resolve error = %v, want ErrUnresolved", err)
	}
}

func TestResolveHardLoaderErrorStops(t *testing.T) {
	broken := &countingLoader{fail: errors.New("corrupt plugin")}
	after := &countingLoader{known: map[string]Entry{"log": echoEntry("log")}}
	registry := NewRegistry(nil, broken, after)

	_, err := registry.Resolve("log")
	if !errors.Is(err, ErrUnresolved) {
		t.Fatalf("Resolve error = %v, want ErrUnresolved", err)
	}
	if after.count("log") != 0 {
		t.Errorf("later loader consulted %d times after hard failure, want 0", after.count("log"))
	}
}

func TestResolveIncompleteEntry(t *testing.T) {
	static := NewStatic()
	static.Register("half", Entry{Dump: echoEntry("half").Dump})
	registry := NewRegistry(nil, static)
	if _, err := registry.Resolve("half"); !errors.Is(err, ErrUnresolved) {
		t.Errorf("Resolve error = %v, want ErrUnresolved", err)
	}
}

func TestResolveCachesSuccessAndFailure(t *testing.T) {
	loader := &countingLoader{known: map[string]Entry{"vector": echoEntry("vector")}}
	registry := NewRegistry(nil, loader)

	for range 5 {
		if _, err := registry.Resolve("vector"); err != nil {
			t.Fatalf("Resolve(vector): %v", err)
		}
		if _, err := registry.Resolve("missing"); err == nil {
			t.Fatal("Resolve(missing) succeeded")
		}
	}
	if got := loader.count("vector"); got != 1 {
		t.Errorf("vector loaded %d times, want 1", got)
	}
	if got := loader.count("missing"); got != 1 {
		t.Errorf("missing loaded %d times, want 1", got)
	}
}

func TestResolveConcurrentFirstUse(t *testing.T) {
	var loads atomic.Int32
	release := make(chan struct{})
	slow := loaderFunc(func(typeName string) (Entry, error) {
		loads.Add(1)
		<-release
		return echoEntry(typeName), nil
	})
	registry := NewRegistry(nil, slow)

	const callers = 16
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var out bytes.Buffer
			if err := registry.Dump(&out, "motor_ref", make([]byte, 88)); err != nil {
				errs <- err
				return
			}
			if out.String() != "motor_ref:88" {
				errs <- fmt.Errorf("output %q", out.String())
			}
		}()
	}
	close(release)
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	if got := loads.Load(); got != 1 {
		t.Errorf("loader invoked %d times, want 1", got)
	}
}

type loaderFunc func(string) (Entry, error)

func (f loaderFunc) Load(typeName string) (Entry, error) { return f(typeName) }

func TestPlotSampleMismatch(t *testing.T) {
	static := NewStatic()
	static.Register("bad", Entry{
		Dump: echoEntry("bad").Dump,
		Sample: func([]byte) (Sample, error) {
			return Sample{Values: []float64{1, 2}, Labels: []string{"a"}}, nil
		},
	})
	registry := NewRegistry(nil, static)
	if _, err := registry.PlotSample("bad", nil); !errors.Is(err, ErrSampleMismatch) {
		t.Errorf("PlotSample error = %v, want ErrSampleMismatch", err)
	}
}

func TestClose(t *testing.T) {
	loader := &countingLoader{known: map[string]Entry{"vector": echoEntry("vector")}}
	registry := NewRegistry(nil, loader)
	if _, err := registry.Resolve("vector"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	registry.Close()
	if _, err := registry.Resolve("vector"); !errors.Is(err, ErrClosed) {
		t.Errorf("Resolve after Close error = %v, want ErrClosed", err)
	}
}

func TestStaticNames(t *testing.T) {
	static := NewStatic()
	static.Register("vector", echoEntry("vector"))
	static.Register("log", echoEntry("log"))
	names := static.Names()
	if len(names) != 2 || names[0] != "log" || names[1] != "vector" {
		t.Errorf("Names = %v, want [log vector]", names)
	}
}

func TestPluginLoaderPath(t *testing.T) {
	loader := PluginLoader{Dir: "/opt/sns/lib"}
	if got, want := loader.Path("motor_ref"), "/opt/sns/lib/libsns_msg_motor_ref.so"; got != want {
		t.Errorf("Path = %q, want %q", got, want)
	}
	custom := PluginLoader{Dir: "/x", Prefix: "msg_", Suffix: ".plugin"}
	if got, want := custom.Path("tf"), "/x/msg_tf.plugin"; got != want {
		t.Errorf("Path = %q, want %q", got, want)
	}
}

func TestPluginLoaderMissingIsNotFound(t *testing.T) {
	loader := PluginLoader{Dir: t.TempDir()}
	if _, err := loader.Load("vector"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load error = %v, want ErrNotFound", err)
	}
	if _, err := (PluginLoader{}).Load("vector"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load without dir error = %v, want ErrNotFound", err)
	}
}

func TestPluginLoaderRefusesPathTypeNames(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "plugins")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "outside.so"), []byte("not an ELF object"), 0o644); err != nil {
		t.Fatal(err)
	}
	loader := PluginLoader{Dir: dir}
	for _, typeName := range []string{"x/../../outside", "..", "a/b", ""} {
		if _, err := loader.Load(typeName); !errors.Is(err, ErrNotFound) {
			t.Errorf("Load(%q) error = %v, want ErrNotFound", typeName, err)
		}
	}
}

func TestPluginLoaderCorruptIsHardError(t *testing.T) {
	dir := t.TempDir()
	loader := PluginLoader{Dir: dir}
	if err := os.WriteFile(filepath.Join(dir, "libsns_msg_vector.so"), []byte("not an ELF object"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := loader.Load("vector")
	if err == nil {
		t.Fatal("Load of corrupt plugin succeeded")
	}
	if errors.Is(err, ErrNotFound) {
		t.Errorf("Load error = %v, want a hard error, not ErrNotFound", err)
	}
}
