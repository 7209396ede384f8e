package sparse

import (
	"fmt"

	"github.com/mkarling/sparsemat/internal/device"
)

// Allocate ensures the packed buffer can hold nzReserve elements for a
// rows×cols matrix in the current format. With growOnly set the element
// capacity never shrinks; without it a smaller requirement reallocates
// down. With keepExistingValues set, existing region contents are
// preserved and re-laid-out at the new offsets (capacity changes shift
// where the major and secondary regions begin).
//
// Allocation is swap-or-fail: on device OOM the previous buffer and all
// attributes are left intact. A successful reallocation bumps the buffer
// generation, invalidating outstanding column-slice views.
//
// Allocate only manages capacity; it does not change the logical shape.
func (m *Matrix[T]) Allocate(rows, cols, nzReserve int, growOnly, keepExistingValues bool) error {
	if err := m.verifyResizable("Allocate"); err != nil {
		return err
	}
	if growOnly && nzReserve < m.sizeAllocated {
		nzReserve = m.sizeAllocated
	}
	needed := BufferSizeNeeded(rows, cols, nzReserve, m.elemBytes(), m.format)
	cur := m.buf.Size()

	// The existing buffer must also fit the secondary region at the
	// current element capacity under the (possibly grown) shape.
	r := regionsFor(rows, cols, m.sizeAllocated, m.elemBytes(), m.format)
	minFit := r.secondaryOff + indexBytes*SecondaryIndexCount(rows, cols, m.sizeAllocated, m.format)

	// Reuse is only valid while the element capacity itself suffices:
	// region offsets derive from sizeAllocated, so a byte-large buffer
	// left by a wider shape cannot absorb more elements without a
	// re-layout.
	shrink := !growOnly && needed < cur && nzReserve < m.sizeAllocated
	if nzReserve <= m.sizeAllocated && needed <= cur && minFit <= cur && !shrink {
		return nil
	}

	newBuf, err := m.dev.Alloc(max(needed, minFit))
	if err != nil {
		return fmt.Errorf("Allocate %dx%d reserve %d (%s): %w", rows, cols, nzReserve, m.format, err)
	}
	if keepExistingValues && cur > 0 {
		m.dev.Stream().Synchronize()
		copyRegions(newBuf.Bytes(), regionsFor(rows, cols, nzReserve, m.elemBytes(), m.format),
			m.buf.Bytes(), m.regions())
	}
	m.buf.Free()
	m.buf = newBuf
	m.sizeAllocated = nzReserve
	m.gen.Add(1)
	return nil
}

// copyRegions moves the three regions between two packed layouts,
// truncating each region to the smaller of its two extents.
func copyRegions(dst []byte, dr regions, src []byte, sr regions) {
	copy(dst[dr.valuesOff:dr.majorOff], src[sr.valuesOff:sr.majorOff])
	copy(dst[dr.majorOff:dr.secondaryOff], src[sr.majorOff:sr.secondaryOff])
	copy(dst[dr.secondaryOff:], src[sr.secondaryOff:])
}

// RequireSize updates the logical shape and format, reallocating only when
// the existing buffer cannot accommodate them. Content is not preserved
// across a reallocation; callers that need the data use
// RequireSizeAndAllocate with keepExistingValues.
func (m *Matrix[T]) RequireSize(rows, cols, nzReserve int, format Format, growOnly bool) error {
	if err := m.verifyResizable("RequireSize"); err != nil {
		return err
	}
	if rows < 0 || cols < 0 {
		return fmt.Errorf("RequireSize: invalid shape %dx%d", rows, cols)
	}
	changed := m.rows != rows || m.cols != cols || m.format != format
	if format.Block() != m.format.Block() {
		m.blockSize = 0
	}
	m.format = format
	m.rows, m.cols = rows, cols
	gen := m.gen.Load()
	if err := m.Allocate(rows, cols, nzReserve, growOnly, false); err != nil {
		return err
	}
	// A destructive reallocation drops the contents even when the logical
	// shape is unchanged; the cached count must not survive it.
	if changed || m.gen.Load() != gen {
		m.nz.invalidate()
	}
	return nil
}

// RequireSizeAndAllocate is RequireSize plus a capacity guarantee of
// nzReserve elements, optionally preserving existing contents.
func (m *Matrix[T]) RequireSizeAndAllocate(rows, cols, nzReserve int, format Format, growOnly, keepExistingValues bool) error {
	if err := m.RequireSize(rows, cols, nzReserve, format, growOnly); err != nil {
		return err
	}
	if nzReserve > m.sizeAllocated || (!growOnly && nzReserve < m.sizeAllocated) {
		return m.Allocate(rows, cols, nzReserve, growOnly, keepExistingValues)
	}
	return nil
}

// Resize destructively reshapes the matrix: shape and format are updated,
// capacity follows the growth policy, content is cleared and the matrix
// becomes empty (nz = 0). Slice offset and block bookkeeping reset.
func (m *Matrix[T]) Resize(rows, cols, nzReserve int, format Format, growOnly bool) error {
	if err := m.verifyResizable("Resize"); err != nil {
		return err
	}
	if rows < 0 || cols < 0 {
		return fmt.Errorf("Resize: invalid shape %dx%d", rows, cols)
	}
	m.sliceOffset = 0
	m.blockSize = 0
	m.format = format
	m.rows, m.cols = rows, cols
	if err := m.Allocate(rows, cols, nzReserve, growOnly, false); err != nil {
		return err
	}
	if m.buf.Size() > 0 {
		raw := m.buf.Bytes()
		m.dev.Stream().Launch(func() { clear(raw) })
	}
	m.nz.update(0)
	return nil
}

// ResizeAsAndCopyIndexFrom makes the matrix a structural copy of a: same
// shape, format and sparsity pattern, with uninitialized values. Used by
// the AssignXOf operations before writing transformed values.
func (m *Matrix[T]) ResizeAsAndCopyIndexFrom(a *Matrix[T], growOnly bool) error {
	if err := a.checkValid("ResizeAsAndCopyIndexFrom"); err != nil {
		return err
	}
	nz, err := a.NzCount()
	if err != nil {
		return err
	}
	if err := m.Resize(a.rows, a.cols, nz, a.format, growOnly); err != nil {
		return err
	}
	a.dev.Stream().Synchronize()
	m.dev.Stream().Synchronize()

	// Copy index regions; the value region is left for the caller.
	srcMajor := a.majorIndex()
	dstMajor := m.majorIndex()
	srcSec := a.secondaryIndex()
	dstSec := m.secondaryIndex()
	switch {
	case a.format.Compressed():
		start := a.dataStart()
		copy(dstMajor[:nz], srcMajor[start:start+nz])
		n := SecondaryIndexCount(a.rows, a.cols, 0, a.format)
		base := srcSec[0]
		for i := range n {
			dstSec[i] = srcSec[i] - base
		}
	case a.format.Block():
		copy(dstMajor, srcMajor)
		copy(dstSec[:a.blockSize], srcSec[:a.blockSize])
		m.blockSize = a.blockSize
	default:
		return unsupported("ResizeAsAndCopyIndexFrom", a.format)
	}
	return m.UpdateCachedNzCount(nz, false)
}

// ChangeDeviceTo migrates the packed buffer to another compute device.
// Device-pointer-dependent state (outstanding views) is invalidated.
func (m *Matrix[T]) ChangeDeviceTo(id device.ID) error {
	if err := m.verifyResizable("ChangeDeviceTo"); err != nil {
		return err
	}
	if m.dev.ID() == id {
		return nil
	}
	target := device.Get(id)
	if m.buf.Size() == 0 {
		m.dev = target
		return nil
	}
	newBuf, err := target.Alloc(m.buf.Size())
	if err != nil {
		return fmt.Errorf("ChangeDeviceTo %d: %w", id, err)
	}
	if err := newBuf.CopyD2D(m.buf); err != nil {
		newBuf.Free()
		return err
	}
	m.buf.Free()
	m.buf = newBuf
	m.dev = target
	m.gen.Add(1)
	return nil
}
