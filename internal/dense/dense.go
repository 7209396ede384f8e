// Package dense provides the dense matrix handle the sparse engine
// collaborates with. The sparse core only ever sees a flat row-major value
// region plus a shape; everything else about dense storage is private to
// this package.
package dense

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/mkarling/sparsemat/internal/device"
	"github.com/mkarling/sparsemat/internal/kernel"
)

// Matrix is a dense rows×cols matrix resident on a single device, stored
// row-major in one allocation.
type Matrix[T kernel.Float] struct {
	rows, cols int
	dev        *device.Device
	buf        *device.Buffer
}

// New allocates a zeroed rows×cols matrix on the device.
func New[T kernel.Float](dev *device.Device, rows, cols int) (*Matrix[T], error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("dense: invalid shape %dx%d", rows, cols)
	}
	var elem T
	buf, err := dev.Alloc(rows * cols * int(unsafe.Sizeof(elem)))
	if err != nil {
		return nil, err
	}
	return &Matrix[T]{rows: rows, cols: cols, dev: dev, buf: buf}, nil
}

// FromSlice allocates a matrix and fills it with the given row-major values.
func FromSlice[T kernel.Float](dev *device.Device, rows, cols int, vals []T) (*Matrix[T], error) {
	if len(vals) != rows*cols {
		return nil, fmt.Errorf("dense: %d values for %dx%d matrix", len(vals), rows, cols)
	}
	m, err := New[T](dev, rows, cols)
	if err != nil {
		return nil, err
	}
	copy(m.Data(), vals)
	return m, nil
}

func (m *Matrix[T]) Rows() int              { return m.rows }
func (m *Matrix[T]) Cols() int              { return m.cols }
func (m *Matrix[T]) Device() *device.Device { return m.dev }
func (m *Matrix[T]) NumElements() int       { return m.rows * m.cols }

// Data exposes the device-resident value region as a flat row-major slice.
// Host code must synchronize the device stream before reading through it;
// kernels running on the owning stream use it directly.
func (m *Matrix[T]) Data() []T {
	raw := m.buf.Bytes()
	if len(raw) == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&raw[0])), m.rows*m.cols)
}

// At reads a single element. This is a host-visible read and therefore a
// device barrier.
func (m *Matrix[T]) At(r, c int) T {
	m.dev.Stream().Synchronize()
	return m.Data()[r*m.cols+c]
}

// Set writes a single element from the host.
func (m *Matrix[T]) Set(r, c int, v T) {
	m.dev.Stream().Synchronize()
	m.Data()[r*m.cols+c] = v
}

// SetAll fills every element with v on the device stream.
func (m *Matrix[T]) SetAll(v T) {
	data := m.Data()
	m.dev.Stream().Launch(func() {
		for i := range data {
			data[i] = v
		}
	})
}

// Clone deep-copies the matrix on the same device.
func (m *Matrix[T]) Clone() (*Matrix[T], error) {
	out, err := New[T](m.dev, m.rows, m.cols)
	if err != nil {
		return nil, err
	}
	if err := out.buf.CopyD2D(m.buf); err != nil {
		out.Release()
		return nil, err
	}
	return out, nil
}

// Release frees the device allocation. The matrix must not be used after.
func (m *Matrix[T]) Release() {
	m.buf.Free()
}

// AreEqual compares two dense matrices element-wise within threshold.
func AreEqual[T kernel.Float](a, b *Matrix[T], threshold T) bool {
	if a.rows != b.rows || a.cols != b.cols {
		return false
	}
	a.dev.Stream().Synchronize()
	b.dev.Stream().Synchronize()
	av, bv := a.Data(), b.Data()
	for i := range av {
		if T(math.Abs(float64(av[i]-bv[i]))) > threshold {
			return false
		}
	}
	return true
}
