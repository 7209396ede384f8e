package sparse

import (
	"fmt"
	"slices"
)

// Host interop. The SetFrom* entry points and To* exit points translate
// between host-side array triples and the packed device layout; both
// directions are deep copies, and the caller owns any returned slices.

func validateCompressed(op string, ptr, idx []Index, nvals, major, slots int) error {
	if len(ptr) != slots+1 {
		return shapeMismatch(op, "pointer array has %d entries, want %d", len(ptr), slots+1)
	}
	if ptr[0] != 0 {
		return fmt.Errorf("%s: pointer array must start at 0, got %d", op, ptr[0])
	}
	for i := 1; i < len(ptr); i++ {
		if ptr[i] < ptr[i-1] {
			return fmt.Errorf("%s: pointer array not monotonic at %d (%d < %d)", op, i, ptr[i], ptr[i-1])
		}
	}
	nz := int(ptr[slots])
	if len(idx) != nz || nvals != nz {
		return shapeMismatch(op, "%d indices and %d values for %d entries", len(idx), nvals, nz)
	}
	for _, j := range idx {
		if int(j) < 0 || int(j) >= major {
			return fmt.Errorf("%s: index %d out of range [0,%d)", op, j, major)
		}
	}
	return nil
}

// SetFromCSC loads the matrix from a host CSC triple
// (colPtr[cols+1], rowIdx[nz], vals[nz]). Deep copy.
func (m *Matrix[T]) SetFromCSC(colPtr, rowIdx []Index, vals []T, rows, cols int) error {
	if err := validateCompressed("SetFromCSC", colPtr, rowIdx, len(vals), rows, cols); err != nil {
		return err
	}
	return m.setCompressed(CSC, colPtr, rowIdx, vals, rows, cols)
}

// SetFromCSR loads the matrix from a host CSR triple
// (rowPtr[rows+1], colIdx[nz], vals[nz]). Deep copy.
func (m *Matrix[T]) SetFromCSR(rowPtr, colIdx []Index, vals []T, rows, cols int) error {
	if err := validateCompressed("SetFromCSR", rowPtr, colIdx, len(vals), cols, rows); err != nil {
		return err
	}
	return m.setCompressed(CSR, rowPtr, colIdx, vals, rows, cols)
}

func (m *Matrix[T]) setCompressed(f Format, ptr, idx []Index, vals []T, rows, cols int) error {
	if err := m.verifyResizable("SetFrom" + f.String()); err != nil {
		return err
	}
	nz := len(vals)
	if err := m.RequireSizeAndAllocate(rows, cols, nz, f, true, false); err != nil {
		return err
	}
	m.sliceOffset = 0
	m.dev.Stream().Synchronize()
	copy(m.values()[:nz], vals)
	copy(m.majorIndex()[:nz], idx)
	copy(m.secondaryIndex(), ptr)
	return m.UpdateCachedNzCount(nz, false)
}

// SetFromSBC loads the matrix from host block-sparse-column arrays:
// blockIDs names the columns that have a stored block, vals holds
// rows*len(blockIDs) values, one dense column per block. Deep copy.
func (m *Matrix[T]) SetFromSBC(blockIDs []Index, vals []T, rows, cols int) error {
	return m.setBlocks(BlockCol, blockIDs, vals, rows, cols)
}

// SetFromSBR is the block-sparse-row counterpart of SetFromSBC: blockIDs
// names rows, vals holds cols*len(blockIDs) values, one dense row per
// block.
func (m *Matrix[T]) SetFromSBR(blockIDs []Index, vals []T, rows, cols int) error {
	return m.setBlocks(BlockRow, blockIDs, vals, rows, cols)
}

func (m *Matrix[T]) setBlocks(f Format, blockIDs []Index, vals []T, rows, cols int) error {
	op := "SetFrom" + f.String()
	if err := m.verifyResizable(op); err != nil {
		return err
	}
	numBlocks := len(blockIDs)
	blockLen := rows
	slots := cols
	if f == BlockRow {
		blockLen = cols
		slots = rows
	}
	if len(vals) != blockLen*numBlocks {
		return shapeMismatch(op, "%d values for %d blocks of %d", len(vals), numBlocks, blockLen)
	}
	for _, id := range blockIDs {
		if int(id) < 0 || int(id) >= slots {
			return fmt.Errorf("%s: block id %d out of range [0,%d)", op, id, slots)
		}
	}
	if err := m.RequireSizeAndAllocate(rows, cols, len(vals), f, true, false); err != nil {
		return err
	}
	m.sliceOffset = 0
	m.dev.Stream().Synchronize()
	major := m.majorIndex()
	for i := range major {
		major[i] = blockIDNotAssigned
	}
	sec := m.secondaryIndex()
	for b, id := range blockIDs {
		major[id] = Index(b)
		sec[b] = id
	}
	copy(m.values()[:len(vals)], vals)
	m.blockSize = numBlocks
	return m.UpdateCachedNzCount(len(vals), false)
}

// ToCSC exports a CSC matrix as a host triple. The pointer array is
// normalized to start at zero, so exporting a column-slice view yields a
// self-contained triple. Deep copy; the caller owns the slices.
func (m *Matrix[T]) ToCSC() (colPtr, rowIdx []Index, vals []T, err error) {
	return m.toCompressed(CSC)
}

// ToCSR exports a CSR matrix as a host triple. Deep copy.
func (m *Matrix[T]) ToCSR() (rowPtr, colIdx []Index, vals []T, err error) {
	return m.toCompressed(CSR)
}

func (m *Matrix[T]) toCompressed(f Format) ([]Index, []Index, []T, error) {
	op := "To" + f.String()
	if err := m.checkValid(op); err != nil {
		return nil, nil, nil, err
	}
	if m.format != f {
		return nil, nil, nil, unsupported(op, m.format)
	}
	nz, err := m.NzCount()
	if err != nil {
		return nil, nil, nil, err
	}
	m.dev.Stream().Synchronize()

	slots := SecondaryIndexCount(m.rows, m.cols, 0, f) - 1
	sec := m.secondaryIndex()
	base := sec[0]
	ptr := make([]Index, slots+1)
	for i := range ptr {
		ptr[i] = sec[i] - base
	}
	idx := make([]Index, nz)
	copy(idx, m.majorIndex()[base:int(base)+nz])
	vals := make([]T, nz)
	copy(vals, m.values()[base:int(base)+nz])
	return ptr, idx, vals, nil
}

// entry is one stored element in host coordinates, used by format
// conversion round trips.
type entry[T any] struct {
	r, c Index
	v    T
}

// exportEntries reads every stored entry to the host. Block formats export
// whole blocks, explicit zeros included: a stored zero stays stored.
func (m *Matrix[T]) exportEntries() ([]entry[T], error) {
	if err := m.checkValid("exportEntries"); err != nil {
		return nil, err
	}
	nz, err := m.NzCount()
	if err != nil {
		return nil, err
	}
	m.dev.Stream().Synchronize()
	out := make([]entry[T], 0, nz)
	vals := m.values()
	major := m.majorIndex()
	sec := m.secondaryIndex()

	switch m.format {
	case CSC:
		for j := range m.cols {
			for p := sec[j]; p < sec[j+1]; p++ {
				out = append(out, entry[T]{r: major[p], c: Index(j), v: vals[p]})
			}
		}
	case CSR:
		for i := range m.rows {
			for p := sec[i]; p < sec[i+1]; p++ {
				out = append(out, entry[T]{r: Index(i), c: major[p], v: vals[p]})
			}
		}
	case BlockCol:
		for c, b := range major {
			if b == blockIDNotAssigned {
				continue
			}
			off := int(b) * m.rows
			for r := range m.rows {
				out = append(out, entry[T]{r: Index(r), c: Index(c), v: vals[off+r]})
			}
		}
	case BlockRow:
		for r, b := range major {
			if b == blockIDNotAssigned {
				continue
			}
			off := int(b) * m.cols
			for c := range m.cols {
				out = append(out, entry[T]{r: Index(r), c: Index(c), v: vals[off+c]})
			}
		}
	default:
		return nil, unsupported("exportEntries", m.format)
	}
	return out, nil
}

// importEntries rebuilds the matrix from host entries under the given
// shape and format.
func (m *Matrix[T]) importEntries(es []entry[T], rows, cols int, f Format) error {
	switch f {
	case CSC:
		slices.SortStableFunc(es, func(a, b entry[T]) int {
			if a.c != b.c {
				return int(a.c - b.c)
			}
			return int(a.r - b.r)
		})
		ptr := make([]Index, cols+1)
		idx := make([]Index, len(es))
		vals := make([]T, len(es))
		for i, e := range es {
			ptr[e.c+1]++
			idx[i] = e.r
			vals[i] = e.v
		}
		for j := range cols {
			ptr[j+1] += ptr[j]
		}
		return m.SetFromCSC(ptr, idx, vals, rows, cols)
	case CSR:
		slices.SortStableFunc(es, func(a, b entry[T]) int {
			if a.r != b.r {
				return int(a.r - b.r)
			}
			return int(a.c - b.c)
		})
		ptr := make([]Index, rows+1)
		idx := make([]Index, len(es))
		vals := make([]T, len(es))
		for i, e := range es {
			ptr[e.r+1]++
			idx[i] = e.c
			vals[i] = e.v
		}
		for i := range rows {
			ptr[i+1] += ptr[i]
		}
		return m.SetFromCSR(ptr, idx, vals, rows, cols)
	case BlockCol, BlockRow:
		blockLen := rows
		slots := cols
		majorOf := func(e entry[T]) Index { return e.c }
		minorOf := func(e entry[T]) Index { return e.r }
		if f == BlockRow {
			blockLen = cols
			slots = rows
			majorOf = func(e entry[T]) Index { return e.r }
			minorOf = func(e entry[T]) Index { return e.c }
		}
		seen := make([]bool, slots)
		var ids []Index
		for _, e := range es {
			if !seen[majorOf(e)] {
				seen[majorOf(e)] = true
				ids = append(ids, majorOf(e))
			}
		}
		slices.Sort(ids)
		blockOf := make(map[Index]int, len(ids))
		for b, id := range ids {
			blockOf[id] = b
		}
		vals := make([]T, blockLen*len(ids))
		for _, e := range es {
			vals[blockOf[majorOf(e)]*blockLen+int(minorOf(e))] = e.v
		}
		return m.setBlocks(f, ids, vals, rows, cols)
	default:
		return unsupported("importEntries", f)
	}
}
