package sparse

import "github.com/mkarling/sparsemat/internal/kernel"

// Index is the sparse index width. Pointer arrays and per-entry indices are
// stored with this type inside the packed buffer.
type Index = kernel.Index

const indexBytes = 4

// The packed buffer holds three regions in fixed order:
//
//	values          one element per stored entry (block formats: per block slot)
//	major index     per-entry index along the compressed dimension
//	                (CSC: row id, CSR: col id; block: col/row -> block id table)
//	secondary index CSC: cols+1 pointer array, CSR: rows+1 pointer array,
//	                monotonically non-decreasing; block: block id -> col/row,
//	                allocated one slot per col/row, first blockSize valid
//
// Layout computes region sizes and byte offsets as a pure function of shape,
// format and counts, so the addressing logic is testable without touching
// device memory.

// MajorIndexCount returns the number of major-index entries for a matrix of
// the given shape, live non-zero count and format.
func MajorIndexCount(rows, cols, nz int, f Format) int {
	switch f {
	case BlockCol:
		return cols
	case BlockRow:
		return rows
	default:
		return nz
	}
}

// SecondaryIndexCount returns the number of secondary-index slots. For COO
// the secondary index is unconstrained and mirrors the reservation.
func SecondaryIndexCount(rows, cols, nzReserved int, f Format) int {
	switch f {
	case BlockCol:
		return cols
	case BlockRow:
		return rows
	case CSC:
		return cols + 1
	case CSR:
		return rows + 1
	default:
		return nzReserved
	}
}

// BufferSizeNeeded returns the byte size of a packed buffer holding nz
// elements of width elemBytes under the given shape and format. This is the
// capacity-planning function used before every allocation.
func BufferSizeNeeded(rows, cols, nz, elemBytes int, f Format) int {
	return elemBytes*nz +
		indexBytes*(MajorIndexCount(rows, cols, nz, f)+SecondaryIndexCount(rows, cols, nz, f))
}

// MaxElemsFromBufferSize inverts BufferSizeNeeded: the largest element
// capacity a buffer of bufBytes can hold under the given shape and format.
func MaxElemsFromBufferSize(rows, cols, bufBytes, elemBytes int, f Format) int {
	switch f {
	case BlockCol:
		return (bufBytes - 2*indexBytes*cols) / elemBytes
	case BlockRow:
		return (bufBytes - 2*indexBytes*rows) / elemBytes
	case CSC:
		return (bufBytes - indexBytes*(cols+1)) / (indexBytes + elemBytes)
	case CSR:
		return (bufBytes - indexBytes*(rows+1)) / (indexBytes + elemBytes)
	default:
		return bufBytes / (2*indexBytes + elemBytes)
	}
}

// regions holds the byte offsets of the three regions inside an allocation
// whose element capacity is nzAlloc.
type regions struct {
	valuesOff    int
	majorOff     int
	secondaryOff int
}

// regionsFor computes region byte offsets for a buffer allocated with
// capacity nzAlloc. The major index of compressed formats is laid out for
// the full capacity, so growing nz never moves region boundaries.
func regionsFor(rows, cols, nzAlloc, elemBytes int, f Format) regions {
	r := regions{valuesOff: 0, majorOff: elemBytes * nzAlloc}
	switch f {
	case BlockCol:
		r.secondaryOff = r.majorOff + indexBytes*cols
	case BlockRow:
		r.secondaryOff = r.majorOff + indexBytes*rows
	default:
		r.secondaryOff = (elemBytes + indexBytes) * nzAlloc
	}
	return r
}
