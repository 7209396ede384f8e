package device

import (
	"errors"
	"fmt"
)

// ErrOutOfMemory is returned when an allocation would exceed the device's
// configured memory limit.
var ErrOutOfMemory = errors.New("device out of memory")

// Buffer is a raw allocation on a single device. The backing store is host
// memory in this build, but callers must treat the contents as
// device-resident: host code reads or writes it only through the copy
// helpers, after synchronizing any stream that may still be touching it.
type Buffer struct {
	dev  *Device
	data []byte
}

// Alloc reserves a buffer of the given size on the device. The allocation
// either fully succeeds or fails with no accounting change.
func (d *Device) Alloc(bytes int) (*Buffer, error) {
	if bytes < 0 {
		return nil, fmt.Errorf("device %d: negative alloc size %d", d.id, bytes)
	}
	if err := d.reserve(int64(bytes)); err != nil {
		return nil, err
	}
	return &Buffer{dev: d, data: make([]byte, bytes)}, nil
}

// Free releases the buffer's reservation. Safe on a nil buffer.
func (b *Buffer) Free() {
	if b == nil || b.data == nil {
		return
	}
	b.dev.release(int64(len(b.data)))
	b.data = nil
}

// Size returns the buffer length in bytes.
func (b *Buffer) Size() int {
	if b == nil {
		return 0
	}
	return len(b.data)
}

// Device returns the owning device.
func (b *Buffer) Device() *Device { return b.dev }

// Bytes exposes the raw storage. Kernel code running on the owning stream
// may use it directly; host code must synchronize first.
func (b *Buffer) Bytes() []byte { return b.data }

// CopyH2D copies host bytes into the buffer at the given byte offset.
func (b *Buffer) CopyH2D(off int, src []byte) error {
	if off < 0 || off+len(src) > len(b.data) {
		return fmt.Errorf("device %d: h2d copy [%d:%d) out of range (buffer %d bytes)",
			b.dev.id, off, off+len(src), len(b.data))
	}
	copy(b.data[off:], src)
	return nil
}

// CopyD2H copies buffer bytes starting at the given offset into dst.
// It synchronizes the device stream first: a host-visible read is a
// device barrier.
func (b *Buffer) CopyD2H(dst []byte, off int) error {
	if off < 0 || off+len(dst) > len(b.data) {
		return fmt.Errorf("device %d: d2h copy [%d:%d) out of range (buffer %d bytes)",
			b.dev.id, off, off+len(dst), len(b.data))
	}
	b.dev.stream.Synchronize()
	copy(dst, b.data[off:])
	return nil
}

// CopyD2D copies the full contents of src into b. Both streams are
// synchronized; cross-device copies stage through the host.
func (b *Buffer) CopyD2D(src *Buffer) error {
	if len(src.data) > len(b.data) {
		return fmt.Errorf("d2d copy: src %d bytes exceeds dst %d bytes", len(src.data), len(b.data))
	}
	src.dev.stream.Synchronize()
	if src.dev != b.dev {
		b.dev.stream.Synchronize()
	}
	copy(b.data, src.data)
	return nil
}
