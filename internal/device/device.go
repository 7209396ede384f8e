// Package device provides the compute-device abstraction the matrix engine
// runs on: integer device ids, per-device memory allocation with an
// enforceable budget, and execution streams that run launched work
// asynchronously in issue order.
//
// Device -1 is the host CPU. Non-negative ids name accelerator devices; in
// this build they are emulated on the host, but the allocation, copy and
// synchronization discipline is the same as for a real accelerator, so code
// written against this package keeps the host/device boundary honest.
package device

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// ID identifies a compute device. CPU is -1 by convention; accelerator
// devices are numbered from 0.
type ID int

const CPU ID = -1

// Device owns the memory accounting and the default execution stream for a
// single compute device.
type Device struct {
	id ID

	mu       sync.Mutex
	memLimit int64 // 0 means unlimited
	memUsed  int64

	stream *Stream
}

var (
	registryMu sync.Mutex
	registry   = map[ID]*Device{}
)

// Get returns the Device for the given id, creating it on first use.
func Get(id ID) *Device {
	registryMu.Lock()
	defer registryMu.Unlock()
	if d, ok := registry[id]; ok {
		return d
	}
	d := &Device{id: id, stream: newStream()}
	registry[id] = d
	return d
}

func (d *Device) ID() ID { return d.id }

// Stream returns the device's default execution stream.
func (d *Device) Stream() *Stream { return d.stream }

// SetMemoryLimit caps the total bytes this device may have allocated.
// A limit of 0 removes the cap. Intended for tests and benchmarks that
// need to exercise the out-of-memory path.
func (d *Device) SetMemoryLimit(bytes int64) {
	d.mu.Lock()
	d.memLimit = bytes
	d.mu.Unlock()
}

// MemoryUsed reports the bytes currently allocated on the device.
func (d *Device) MemoryUsed() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.memUsed
}

func (d *Device) reserve(bytes int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.memLimit > 0 && d.memUsed+bytes > d.memLimit {
		return fmt.Errorf("device %d: alloc %d bytes: %w (used %d, limit %d)",
			d.id, bytes, ErrOutOfMemory, d.memUsed, d.memLimit)
	}
	d.memUsed += bytes
	return nil
}

func (d *Device) release(bytes int64) {
	d.mu.Lock()
	d.memUsed -= bytes
	d.mu.Unlock()
}

// Normalize parses a device name into an ID. Accepted forms are "cpu",
// "gpu" (device 0) and a bare device number.
func Normalize(name string) (ID, error) {
	s := strings.ToLower(strings.TrimSpace(name))
	switch s {
	case "", "cpu":
		return CPU, nil
	case "gpu":
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < -1 {
		return CPU, fmt.Errorf("unknown device %q (expected cpu, gpu, or a device number)", name)
	}
	return ID(n), nil
}
