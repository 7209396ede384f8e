package sparse

import (
	"fmt"

	"github.com/mkarling/sparsemat/internal/dense"
)

// ColumnSlice returns a zero-copy view of numCols columns starting at
// startColumn. Only column-compressed matrices can be sliced: the slice
// offset shifts the secondary-index addressing (and through it the value
// region, via secondaryIndex[0]) but deliberately NOT the major-index base.
// For CSC every access path goes through the secondary index, so the view
// is consistent; for any other format it would not be, which is why other
// formats are rejected rather than silently mis-addressed.
//
// The view shares the base's buffer and stays valid until the base
// reallocates (resize/conversion/device change); after that every view
// operation fails with ErrStaleView. Only the base may resize.
func (m *Matrix[T]) ColumnSlice(startColumn, numCols int) (*Matrix[T], error) {
	if m.format != CSC {
		return nil, unsupported("ColumnSlice", m.format)
	}
	if err := m.checkValid("ColumnSlice"); err != nil {
		return nil, err
	}
	if startColumn < 0 || numCols < 0 || startColumn+numCols > m.cols {
		return nil, fmt.Errorf("ColumnSlice: [%d,%d) out of range for %d columns",
			startColumn, startColumn+numCols, m.cols)
	}
	v := &Matrix[T]{
		rows:          m.rows,
		cols:          numCols,
		format:        CSC,
		dev:           m.dev,
		buf:           m.buf,
		sizeAllocated: m.sizeAllocated,
		sliceOffset:   m.sliceOffset + startColumn,
		view:          true,
		gen:           m.gen,
		genAt:         m.gen.Load(),
	}
	return v, nil
}

// CopyColumnSliceToDense deep-copies a column range into a new dense
// matrix.
func (m *Matrix[T]) CopyColumnSliceToDense(startColumn, numCols int) (*dense.Matrix[T], error) {
	v, err := m.ColumnSlice(startColumn, numCols)
	if err != nil {
		return nil, err
	}
	return v.CopyToDense()
}

// AssignColumnSliceToDense writes a column range into an existing dense
// matrix of matching shape.
func (m *Matrix[T]) AssignColumnSliceToDense(d *dense.Matrix[T], startColumn, numCols int) error {
	if d.Rows() != m.rows || d.Cols() != numCols {
		return shapeMismatch("AssignColumnSliceToDense", "dense is %dx%d, want %dx%d",
			d.Rows(), d.Cols(), m.rows, numCols)
	}
	v, err := m.ColumnSlice(startColumn, numCols)
	if err != nil {
		return err
	}
	es, err := v.exportEntries()
	if err != nil {
		return err
	}
	d.Device().Stream().Synchronize()
	data := d.Data()
	clear(data)
	for _, e := range es {
		data[int(e.r)*numCols+int(e.c)] = e.v
	}
	return nil
}

// MaskColumnsValue zeroes the stored values of every column whose mask
// entry is false; each mask entry covers numColsPerMaskEntry adjacent
// columns. Only val == 0 is representable without changing the sparsity
// pattern, so any other value is rejected. The stored entry set (and with
// it the cached nz count) is unchanged: masked entries become explicit
// zeros.
func (m *Matrix[T]) MaskColumnsValue(mask []bool, val T, numColsPerMaskEntry int) error {
	if m.format != CSC {
		return unsupported("MaskColumnsValue", m.format)
	}
	if err := m.checkValid("MaskColumnsValue"); err != nil {
		return err
	}
	if val != 0 {
		return fmt.Errorf("MaskColumnsValue: only 0 can be assigned to masked columns of a sparse matrix, got %v", val)
	}
	if numColsPerMaskEntry <= 0 || len(mask)*numColsPerMaskEntry != m.cols {
		return shapeMismatch("MaskColumnsValue", "%d mask entries x %d for %d columns",
			len(mask), numColsPerMaskEntry, m.cols)
	}
	cols := m.cols
	m.dev.Stream().Launch(func() {
		sec := m.secondaryIndex()
		vals := m.values()
		for j := range cols {
			if mask[j/numColsPerMaskEntry] {
				continue
			}
			for p := sec[j]; p < sec[j+1]; p++ {
				vals[p] = 0
			}
		}
	})
	return nil
}

// GatherBatch concatenates the columns of the inputs, in order, into m.
// All inputs must be CSC with the same row count.
func (m *Matrix[T]) GatherBatch(inputs ...*Matrix[T]) error {
	if err := m.verifyResizable("GatherBatch"); err != nil {
		return err
	}
	rows, cols := 0, 0
	var all []entry[T]
	for i, in := range inputs {
		if in.format != CSC {
			return unsupported("GatherBatch", in.format)
		}
		if i == 0 {
			rows = in.rows
		} else if in.rows != rows {
			return shapeMismatch("GatherBatch", "input %d has %d rows, want %d", i, in.rows, rows)
		}
		es, err := in.exportEntries()
		if err != nil {
			return err
		}
		for j := range es {
			es[j].c += Index(cols)
		}
		all = append(all, es...)
		cols += in.cols
	}
	return m.importEntries(all, rows, cols, CSC)
}
