// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package msg_test

import (
	"errors"
	"testing"
	"time"

	"github.com/bureau-foundation/sns/lib/arena"
	"github.com/bureau-foundation/sns/lib/clock"
	"github.com/bureau-foundation/sns/lib/msg"
)

func TestAllocationStrategies(t *testing.T) {
	producer, err := msg.NewProducer("alloc", msg.ProducerOptions{
		Clock: clock.Fake(time.Unix(100, 0)),
		Host:  "host",
	})
	if err != nil {
		t.Fatalf("NewProducer: %v", err)
	}

	region, err := arena.New(64*1024, arena.Options{})
	if err != nil {
		t.Fatalf("arena.New: %v", err)
	}
	defer region.Close()

	pool := arena.NewPool(64*1024, arena.Options{})
	defer pool.Close()
	local, err := pool.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer local.Return()

	allocators := map[string]msg.Allocator{
		"heap":   msg.Heap,
		"region": region,
		"local":  local,
	}
	for name, allocator := range allocators {
		t.Run(name, func(t *testing.T) {
			m, err := msg.NewMotorRef(allocator, producer, msg.MotorVelocity, 6)
			if err != nil {
				t.Fatalf("NewMotorRef: %v", err)
			}
			if m.Size() != msg.MotorRefType.SizeN(6) || len(m.Bytes()) != m.Size() {
				t.Errorf("Size() = %d, len(Bytes()) = %d, want %d", m.Size(), len(m.Bytes()), msg.MotorRefType.SizeN(6))
			}
			for i := range 6 {
				if m.At(i) != 0 {
					t.Errorf("element %d = %v, want 0", i, m.At(i))
				}
			}
			if m.Mode() != msg.MotorVelocity {
				t.Errorf("Mode() = %v, want velocity", m.Mode())
			}
		})
	}
}

func TestLocalArenaPopAfterPut(t *testing.T) {
	producer, err := msg.NewProducer("local", msg.ProducerOptions{Host: "host"})
	if err != nil {
		t.Fatalf("NewProducer: %v", err)
	}
	pool := arena.NewPool(4096, arena.Options{})
	defer pool.Close()
	local, err := pool.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer local.Return()

	first, err := msg.NewVector(local, producer, 4)
	if err != nil {
		t.Fatalf("NewVector: %v", err)
	}
	second, err := msg.NewVector(local, producer, 4)
	if err != nil {
		t.Fatalf("NewVector: %v", err)
	}
	if err := local.Pop(first.Bytes()); !errors.Is(err, arena.ErrNotLast) {
		t.Fatalf("Pop(first) = %v, want ErrNotLast", err)
	}
	if err := local.Pop(second.Bytes()); err != nil {
		t.Fatalf("Pop(second): %v", err)
	}
	if err := local.Pop(first.Bytes()); err != nil {
		t.Fatalf("Pop(first): %v", err)
	}
}

func TestArenaExhaustionSurfaces(t *testing.T) {
	producer, err := msg.NewProducer("small", msg.ProducerOptions{Host: "host"})
	if err != nil {
		t.Fatalf("NewProducer: %v", err)
	}
	region, err := arena.New(128, arena.Options{})
	if err != nil {
		t.Fatalf("arena.New: %v", err)
	}
	defer region.Close()

	_, err = msg.NewVector(region, producer, 100)
	if !errors.Is(err, arena.ErrExhausted) {
		t.Fatalf("NewVector(100) in 128-byte region = %v, want ErrExhausted", err)
	}
}
