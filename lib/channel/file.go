// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build darwin || linux

package channel

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultDir is where ring files live unless configured otherwise.
const DefaultDir = "/dev/shm"

// OpenOptions configures Open. Slots and SlotSize only apply when the
// ring file is created; an existing ring keeps its geometry.
type OpenOptions struct {
	Slots        int
	SlotSize     int
	PollInterval time.Duration
}

// Path returns the ring file for name under dir.
func Path(dir, name string) string {
	return filepath.Join(dir, "sns-"+name+".ring")
}

func validateName(name string) error {
	if name == "" {
		return errors.New("channel: empty channel name")
	}
	if strings.ContainsAny(name, "/\x00") || name == "." || name == ".." {
		return fmt.Errorf("channel: invalid channel name %q", name)
	}
	return nil
}

// Open attaches to the ring file for name under dir, creating and
// formatting it when it does not exist. Creation and attachment are
// serialized with flock so concurrent openers agree on the geometry.
func Open(dir, name string, options OpenOptions) (*Channel, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if dir == "" {
		dir = DefaultDir
	}
	path := Path(dir, name)

	fd, err := unix.Open(path, unix.O_CREAT|unix.O_RDWR|unix.O_CLOEXEC, 0o666)
	if err != nil {
		return nil, fmt.Errorf("opening channel %s: %w", path, err)
	}
	fail := func(err error) (*Channel, error) {
		unix.Close(fd)
		return nil, err
	}

	if err := unix.Flock(fd, unix.LOCK_EX); err != nil {
		return fail(fmt.Errorf("locking channel %s: %w", path, err))
	}
	data, g, created, err := mapRing(fd, path, options)
	unlockErr := unix.Flock(fd, unix.LOCK_UN)
	if err != nil {
		return fail(err)
	}
	if unlockErr != nil {
		unix.Munmap(data)
		return fail(fmt.Errorf("unlocking channel %s: %w", path, unlockErr))
	}

	r := newRing(name, data, g)
	if created {
		r.format()
	}
	r.lock = func() error { return unix.Flock(fd, unix.LOCK_EX) }
	r.unlock = func() error { return unix.Flock(fd, unix.LOCK_UN) }
	r.poll = options.PollInterval
	if r.poll <= 0 {
		r.poll = DefaultPollInterval
	}
	r.release = func() error {
		var firstErr error
		if err := unix.Munmap(data); err != nil {
			firstErr = fmt.Errorf("unmapping channel %s: %w", path, err)
		}
		if err := unix.Close(fd); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing channel %s: %w", path, err)
		}
		return firstErr
	}
	return newHandle(r), nil
}

// mapRing maps the ring file, sizing a new one from options. The
// caller holds the file lock. created reports whether the header still
// needs formatting.
func mapRing(fd int, path string, options OpenOptions) (data []byte, g geometry, created bool, err error) {
	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		return nil, g, false, fmt.Errorf("stating channel %s: %w", path, err)
	}

	if stat.Size == 0 {
		g = geometry{slots: options.Slots, slotSize: options.SlotSize}
		if g.slots == 0 {
			g.slots = DefaultSlots
		}
		if g.slotSize == 0 {
			g.slotSize = DefaultSlotSize
		}
		if err := g.validate(); err != nil {
			return nil, g, false, err
		}
		if err := unix.Ftruncate(fd, int64(g.totalSize())); err != nil {
			return nil, g, false, fmt.Errorf("sizing channel %s: %w", path, err)
		}
		created = true
	} else {
		header := make([]byte, headerSize)
		if _, err := unix.Pread(fd, header, 0); err != nil {
			return nil, g, false, fmt.Errorf("reading channel %s header: %w", path, err)
		}
		g, err = readGeometry(header)
		if err != nil {
			return nil, g, false, fmt.Errorf("%s: %w", path, err)
		}
		if stat.Size != int64(g.totalSize()) {
			return nil, g, false, fmt.Errorf("%w: %s is %d bytes, geometry needs %d", ErrBadRing, path, stat.Size, g.totalSize())
		}
	}

	data, err = unix.Mmap(fd, 0, g.totalSize(), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, g, false, fmt.Errorf("mapping channel %s: %w", path, err)
	}
	return data, g, created, nil
}

// Remove deletes the ring file for name. Processes still attached keep
// their mapping.
func Remove(dir, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.Remove(Path(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing channel %s: %w", name, err)
	}
	return nil
}
