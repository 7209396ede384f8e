// Package sparse implements a device-resident sparse matrix engine: one
// packed allocation per matrix holding values, major index and secondary
// index regions, with CSR, CSC and two block-sparse layouts, zero-copy
// column-slice views, format conversion, a kernel library and sparse
// optimizer updaters.
package sparse

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/mkarling/sparsemat/internal/device"
	"github.com/mkarling/sparsemat/internal/kernel"
)

// blockIDNotAssigned marks a column/row with no stored block in the
// col/row -> block translation table of the block formats.
const blockIDNotAssigned Index = -1

// Matrix is a sparse rows×cols matrix on a single compute device. All
// storage lives in one packed buffer addressed through the layout
// descriptor. A Matrix is either a base matrix owning its buffer or a
// column-slice view sharing the base's buffer.
//
// Orchestration is single-threaded: methods may launch asynchronous device
// work, but the handle itself must not be used from multiple goroutines.
type Matrix[T kernel.Float] struct {
	rows, cols    int
	format        Format
	dev           *device.Device
	buf           *device.Buffer
	sizeAllocated int // element capacity of the buffer
	blockSize     int // stored blocks (block formats only)
	sliceOffset   int // column-slice offset (CSC views)
	view          bool
	gen           *atomic.Int64 // buffer generation, shared between base and views
	genAt         int64         // generation observed at view creation
	nz            nzCache
}

// New constructs a matrix with the given shape and format, reserving room
// for nzReserve non-zero elements.
func New[T kernel.Float](dev *device.Device, rows, cols, nzReserve int, format Format) (*Matrix[T], error) {
	if rows < 0 || cols < 0 || nzReserve < 0 {
		return nil, fmt.Errorf("sparse.New: invalid shape %dx%d (reserve %d)", rows, cols, nzReserve)
	}
	m := &Matrix[T]{format: format, dev: dev, gen: new(atomic.Int64)}
	if err := m.RequireSizeAndAllocate(rows, cols, nzReserve, format, true, false); err != nil {
		return nil, err
	}
	m.nz.update(0)
	return m, nil
}

// NewEmpty constructs an empty matrix that allocates on first use.
func NewEmpty[T kernel.Float](dev *device.Device, format Format) *Matrix[T] {
	m := &Matrix[T]{format: format, dev: dev, gen: new(atomic.Int64)}
	m.nz.update(0)
	return m
}

func (m *Matrix[T]) Rows() int              { return m.rows }
func (m *Matrix[T]) Cols() int              { return m.cols }
func (m *Matrix[T]) Format() Format         { return m.format }
func (m *Matrix[T]) Device() *device.Device { return m.dev }
func (m *Matrix[T]) IsView() bool           { return m.view }
func (m *Matrix[T]) IsEmpty() bool          { return m.rows == 0 || m.cols == 0 }

// SizeAllocated reports the element capacity of the packed buffer: how many
// non-zero elements fit without reallocation.
func (m *Matrix[T]) SizeAllocated() int { return m.sizeAllocated }

// BlockSize reports the number of stored blocks (block formats).
func (m *Matrix[T]) BlockSize() int { return m.blockSize }

// SliceViewOffset reports the column offset of a slice view into its base.
func (m *Matrix[T]) SliceViewOffset() int { return m.sliceOffset }

// BufferSizeAllocated reports the byte size of the packed buffer.
func (m *Matrix[T]) BufferSizeAllocated() int { return m.buf.Size() }

func (m *Matrix[T]) elemBytes() int {
	var v T
	return int(unsafe.Sizeof(v))
}

// checkValid fails a view whose base has reallocated the shared buffer.
func (m *Matrix[T]) checkValid(op string) error {
	if m.view && m.gen.Load() != m.genAt {
		return fmt.Errorf("%s: %w", op, ErrStaleView)
	}
	return nil
}

func (m *Matrix[T]) verifyResizable(op string) error {
	if m.view {
		return fmt.Errorf("%s: %w", op, ErrNotResizable)
	}
	return nil
}

// Region accessors. These return slices over device memory; host code must
// synchronize the device stream before reading through them. Kernels
// launched on the owning stream use them directly.

func (m *Matrix[T]) regions() regions {
	return regionsFor(m.rows, m.cols, m.sizeAllocated, m.elemBytes(), m.format)
}

// values returns the full value region at buffer capacity.
func (m *Matrix[T]) values() []T {
	if m.buf.Size() == 0 || m.sizeAllocated == 0 {
		return nil
	}
	raw := m.buf.Bytes()
	return unsafe.Slice((*T)(unsafe.Pointer(&raw[0])), m.sizeAllocated)
}

// majorIndex returns the major index region: per-entry row ids (CSC) or
// col ids (CSR) at buffer capacity, or the col/row -> block id table.
// The slice is NOT offset for slice views; see the package doc on the
// slicing asymmetry.
func (m *Matrix[T]) majorIndex() []Index {
	r := m.regions()
	n := (r.secondaryOff - r.majorOff) / indexBytes
	if n <= 0 || m.buf.Size() < r.secondaryOff {
		return nil
	}
	raw := m.buf.Bytes()
	return unsafe.Slice((*Index)(unsafe.Pointer(&raw[r.majorOff])), n)
}

// secondaryFull returns the whole secondary region of the allocation,
// without the slice-view offset.
func (m *Matrix[T]) secondaryFull() []Index {
	r := m.regions()
	n := (m.buf.Size() - r.secondaryOff) / indexBytes
	if n <= 0 {
		return nil
	}
	raw := m.buf.Bytes()
	return unsafe.Slice((*Index)(unsafe.Pointer(&raw[r.secondaryOff])), n)
}

// secondaryIndex returns the secondary index region, offset by the
// slice-view offset: compressed pointer array, or block id -> col/row table.
func (m *Matrix[T]) secondaryIndex() []Index {
	s := m.secondaryFull()
	if m.sliceOffset >= len(s) {
		return nil
	}
	return s[m.sliceOffset:]
}

// dataStart returns the element offset of the first logical non-zero:
// secondaryIndex[0] for compressed formats (this is what makes slice views
// address the right values), 0 for block formats. Device-side read.
func (m *Matrix[T]) dataStart() int {
	if m.format.Compressed() {
		return int(m.secondaryIndex()[0])
	}
	return 0
}

// SecondaryIndexValueAt reads one secondary-index slot. Host-visible read:
// forces a device barrier.
func (m *Matrix[T]) SecondaryIndexValueAt(i int) Index {
	m.dev.Stream().Synchronize()
	return m.secondaryIndex()[i]
}

// RowLocation returns the region holding row indices: the major index for
// CSC, the secondary index for CSR. Only valid for compressed formats.
func (m *Matrix[T]) RowLocation() ([]Index, error) {
	if !m.format.Compressed() {
		return nil, unsupported("RowLocation", m.format)
	}
	if m.format.RowMajor() {
		return m.secondaryIndex(), nil
	}
	return m.majorIndex(), nil
}

// ColLocation returns the region holding column indices: the secondary
// index for CSC, the major index for CSR. Only valid for compressed formats.
func (m *Matrix[T]) ColLocation() ([]Index, error) {
	if !m.format.Compressed() {
		return nil, unsupported("ColLocation", m.format)
	}
	if m.format.RowMajor() {
		return m.majorIndex(), nil
	}
	return m.secondaryIndex(), nil
}

// MajorToBlockID returns the col->block (BlockCol) or row->block (BlockRow)
// translation table. Slots without a stored block hold blockIDNotAssigned.
func (m *Matrix[T]) MajorToBlockID() ([]Index, error) {
	if !m.format.Block() {
		return nil, unsupported("MajorToBlockID", m.format)
	}
	return m.majorIndex(), nil
}

// BlockIDToMajor returns the block->col (BlockCol) or block->row (BlockRow)
// table. Allocated with one slot per col/row; only the first BlockSize
// slots are meaningful.
func (m *Matrix[T]) BlockIDToMajor() ([]Index, error) {
	if !m.format.Block() {
		return nil, unsupported("BlockIDToMajor", m.format)
	}
	return m.secondaryIndex(), nil
}

// NzValues returns the live non-zero values. Host-visible read: forces a
// device barrier and an nz fetch if the cache is invalid.
func (m *Matrix[T]) NzValues() ([]T, error) {
	if err := m.checkValid("NzValues"); err != nil {
		return nil, err
	}
	nz, err := m.NzCount()
	if err != nil {
		return nil, err
	}
	m.dev.Stream().Synchronize()
	start := m.dataStart()
	return m.values()[start : start+nz], nil
}

// Release frees the device allocation of a base matrix. Views only drop
// their reference. The matrix must not be used afterwards.
func (m *Matrix[T]) Release() {
	if !m.view {
		m.buf.Free()
	}
	m.buf = nil
}

// Reset clears the matrix content without releasing storage: all regions
// are zeroed on the device stream and the cached non-zero count becomes 0.
func (m *Matrix[T]) Reset() error {
	if err := m.verifyResizable("Reset"); err != nil {
		return err
	}
	if m.buf.Size() > 0 {
		raw := m.buf.Bytes()
		m.dev.Stream().Launch(func() { clear(raw) })
	}
	m.blockSize = 0
	m.nz.update(0)
	return nil
}

// IsValid checks the structural invariants of the device-side state:
// monotonic secondary index, the pointer identity for the live nz count,
// and in-range major indices. Forces a device barrier.
func (m *Matrix[T]) IsValid() error {
	if err := m.checkValid("IsValid"); err != nil {
		return err
	}
	m.dev.Stream().Synchronize()
	switch {
	case m.format.Compressed():
		sec := m.secondaryIndex()
		n := SecondaryIndexCount(m.rows, m.cols, 0, m.format)
		majorLimit := Index(m.rows)
		if m.format.RowMajor() {
			majorLimit = Index(m.cols)
		}
		for i := 1; i < n; i++ {
			if sec[i] < sec[i-1] {
				return fmt.Errorf("IsValid: secondary index not monotonic at %d (%d < %d)", i, sec[i], sec[i-1])
			}
		}
		major := m.majorIndex()
		for p := sec[0]; p < sec[n-1]; p++ {
			if major[p] < 0 || major[p] >= majorLimit {
				return fmt.Errorf("IsValid: major index out of range at %d: %d", p, major[p])
			}
		}
	case m.format.Block():
		major := m.majorIndex()
		stored := 0
		for _, b := range major {
			if b == blockIDNotAssigned {
				continue
			}
			if int(b) < 0 || int(b) >= m.blockSize {
				return fmt.Errorf("IsValid: block id out of range: %d (blockSize %d)", b, m.blockSize)
			}
			stored++
		}
		if stored != m.blockSize {
			return fmt.Errorf("IsValid: %d assigned blocks but blockSize %d", stored, m.blockSize)
		}
	default:
		return unsupported("IsValid", m.format)
	}
	return nil
}
