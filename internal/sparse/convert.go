package sparse

import (
	"github.com/mkarling/sparsemat/internal/dense"
)

// ConvertToSparseFormatTo writes a copy of the matrix under newFormat into
// out. The logical contents (stored entry set and values) are identical;
// only the layout differs. Conversion stages through the host.
func (m *Matrix[T]) ConvertToSparseFormatTo(newFormat Format, out *Matrix[T]) error {
	if err := m.checkValid("ConvertToSparseFormat"); err != nil {
		return err
	}
	if !newFormat.Compressed() && !newFormat.Block() {
		return unsupported("ConvertToSparseFormat", newFormat)
	}
	es, err := m.exportEntries()
	if err != nil {
		return err
	}
	return out.importEntries(es, m.rows, m.cols, newFormat)
}

// ConvertToSparseFormat converts the matrix in place.
func (m *Matrix[T]) ConvertToSparseFormat(newFormat Format) error {
	if m.format == newFormat {
		return nil
	}
	if err := m.verifyResizable("ConvertToSparseFormat"); err != nil {
		return err
	}
	es, err := m.exportEntries()
	if err != nil {
		return err
	}
	return m.importEntries(es, m.rows, m.cols, newFormat)
}

// SetValue deep-copies another sparse matrix, format included.
func (m *Matrix[T]) SetValue(from *Matrix[T]) error {
	if err := from.checkValid("SetValue"); err != nil {
		return err
	}
	es, err := from.exportEntries()
	if err != nil {
		return err
	}
	return m.importEntries(es, from.rows, from.cols, from.format)
}

// SetValueDense loads the matrix from a dense matrix, storing its non-zero
// cells under the given format.
func (m *Matrix[T]) SetValueDense(d *dense.Matrix[T], format Format) error {
	d.Device().Stream().Synchronize()
	data := d.Data()
	cols := d.Cols()
	var es []entry[T]
	for i := range d.Rows() {
		for j := range cols {
			if v := data[i*cols+j]; v != 0 {
				es = append(es, entry[T]{r: Index(i), c: Index(j), v: v})
			}
		}
	}
	return m.importEntries(es, d.Rows(), d.Cols(), format)
}

// CopyToDense materializes the matrix into a new dense matrix on the same
// device.
func (m *Matrix[T]) CopyToDense() (*dense.Matrix[T], error) {
	es, err := m.exportEntries()
	if err != nil {
		return nil, err
	}
	out, err := dense.New[T](m.dev, m.rows, m.cols)
	if err != nil {
		return nil, err
	}
	data := out.Data()
	for _, e := range es {
		data[int(e.r)*m.cols+int(e.c)] = e.v
	}
	return out, nil
}

// DiagonalToDense extracts the main diagonal into a 1×min(rows,cols)
// dense matrix.
func (m *Matrix[T]) DiagonalToDense() (*dense.Matrix[T], error) {
	es, err := m.exportEntries()
	if err != nil {
		return nil, err
	}
	n := min(m.rows, m.cols)
	out, err := dense.New[T](m.dev, 1, n)
	if err != nil {
		return nil, err
	}
	data := out.Data()
	for _, e := range es {
		if e.r == e.c {
			data[e.r] = e.v
		}
	}
	return out, nil
}

// Transpose returns a new matrix holding the transpose, same format.
func (m *Matrix[T]) Transpose() (*Matrix[T], error) {
	out := NewEmpty[T](m.dev, m.format)
	if err := out.AssignTransposeOf(m); err != nil {
		return nil, err
	}
	return out, nil
}

// AssignTransposeOf overwrites the matrix with the transpose of a,
// keeping a's format.
func (m *Matrix[T]) AssignTransposeOf(a *Matrix[T]) error {
	es, err := a.exportEntries()
	if err != nil {
		return err
	}
	for i := range es {
		es[i].r, es[i].c = es[i].c, es[i].r
	}
	return m.importEntries(es, a.cols, a.rows, a.format)
}

// InplaceTranspose transposes the matrix in place.
func (m *Matrix[T]) InplaceTranspose() error {
	if err := m.verifyResizable("InplaceTranspose"); err != nil {
		return err
	}
	return m.AssignTransposeOf(m)
}

// Reshape reinterprets the matrix as rows×cols, preserving column-major
// linear element order. Only supported for CSC.
func (m *Matrix[T]) Reshape(rows, cols int) error {
	if m.format != CSC {
		return unsupported("Reshape", m.format)
	}
	if err := m.verifyResizable("Reshape"); err != nil {
		return err
	}
	if rows*cols != m.rows*m.cols {
		return shapeMismatch("Reshape", "%dx%d to %dx%d", m.rows, m.cols, rows, cols)
	}
	es, err := m.exportEntries()
	if err != nil {
		return err
	}
	for i, e := range es {
		lin := int(e.c)*m.rows + int(e.r)
		es[i].r = Index(lin % rows)
		es[i].c = Index(lin / rows)
	}
	return m.importEntries(es, rows, cols, CSC)
}
