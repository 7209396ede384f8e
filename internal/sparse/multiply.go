package sparse

import (
	"fmt"

	"github.com/mkarling/sparsemat/internal/dense"
	"github.com/mkarling/sparsemat/internal/kernel"
)

// Matrix products. Shape and device mismatches are reported before any
// device work is issued; the numeric kernels then run asynchronously on the
// output's stream.

// csrView is a sparse operand marshaled for the CSR kernels. transposed
// means the arrays describe the transpose of the originating matrix (the
// case for CSC, whose layout is the CSR layout of its transpose).
type csrView[T kernel.Float] struct {
	rows, cols int
	ptr, idx   []Index
	vals       []T
	transposed bool
}

// prepCSR marshals the matrix for the CSR kernels. Compressed formats hand
// out their device regions directly (a host sync is needed to locate the
// view base); block formats stage a host-side CSR copy.
func (m *Matrix[T]) prepCSR() (csrView[T], error) {
	if err := m.checkValid("prepCSR"); err != nil {
		return csrView[T]{}, err
	}
	switch m.format {
	case CSC, CSR:
		m.dev.Stream().Synchronize()
		sec := m.secondaryIndex()
		slots := SecondaryIndexCount(m.rows, m.cols, 0, m.format) - 1
		base := int(sec[0])
		v := csrView[T]{
			rows: m.rows, cols: m.cols,
			ptr:  sec[:slots+1],
			idx:  m.majorIndex()[base:],
			vals: m.values()[base:],
		}
		if m.format == CSC {
			v.rows, v.cols = m.cols, m.rows
			v.transposed = true
		}
		return v, nil
	case BlockCol, BlockRow:
		es, err := m.exportEntries()
		if err != nil {
			return csrView[T]{}, err
		}
		ptr, idx, vals := hostCSR(es, m.rows)
		return csrView[T]{rows: m.rows, cols: m.cols, ptr: ptr, idx: idx, vals: vals}, nil
	default:
		return csrView[T]{}, unsupported("prepCSR", m.format)
	}
}

// hostCSR builds a CSR triple from host entries.
func hostCSR[T kernel.Float](es []entry[T], rows int) (ptr, idx []Index, vals []T) {
	ptr = make([]Index, rows+1)
	for _, e := range es {
		ptr[e.r+1]++
	}
	for i := range rows {
		ptr[i+1] += ptr[i]
	}
	idx = make([]Index, len(es))
	vals = make([]T, len(es))
	next := make([]Index, rows)
	copy(next, ptr[:rows])
	for _, e := range es {
		p := next[e.r]
		next[e.r]++
		idx[p] = e.c
		vals[p] = e.v
	}
	return ptr, idx, vals
}

func opShape(rows, cols int, trans bool) (int, int) {
	if trans {
		return cols, rows
	}
	return rows, cols
}

// denseOperand returns d's value slice with transD applied, staging a
// transposed host copy when needed, plus the effective shape.
func denseOperand[T kernel.Float](d *dense.Matrix[T], transD bool) ([]T, int, int) {
	if !transD {
		return d.Data(), d.Rows(), d.Cols()
	}
	d.Device().Stream().Synchronize()
	src := d.Data()
	rows, cols := d.Cols(), d.Rows()
	dst := make([]T, len(src))
	for i := range rows {
		for j := range cols {
			dst[i*cols+j] = src[j*d.Cols()+i]
		}
	}
	return dst, rows, cols
}

// MultiplyAndWeightedAdd computes C = alpha*op(S)*op(D) + beta*C with a
// sparse left operand.
func MultiplyAndWeightedAdd[T kernel.Float](alpha T, s *Matrix[T], transS bool,
	d *dense.Matrix[T], transD bool, beta T, c *dense.Matrix[T]) error {
	if s.dev != d.Device() || s.dev != c.Device() {
		return fmt.Errorf("MultiplyAndWeightedAdd: operands on different devices")
	}
	sr, sc := opShape(s.rows, s.cols, transS)
	dr, dc := opShape(d.Rows(), d.Cols(), transD)
	if sc != dr {
		return shapeMismatch("MultiplyAndWeightedAdd", "op(S) is %dx%d, op(D) is %dx%d", sr, sc, dr, dc)
	}
	if c.Rows() != sr || c.Cols() != dc {
		return shapeMismatch("MultiplyAndWeightedAdd", "output is %dx%d, want %dx%d", c.Rows(), c.Cols(), sr, dc)
	}
	v, err := s.prepCSR()
	if err != nil {
		return err
	}
	dd, ddr, ddc := denseOperand(d, transD)
	trans := transS != v.transposed
	out := c.Data()
	c.Device().Stream().Launch(func() {
		kernel.SpmmCSR(trans, v.rows, v.cols, v.ptr, v.idx, v.vals, dd, ddr, ddc, alpha, beta, out)
	})
	return nil
}

// MultiplyDenseTimesSparse computes C = alpha*op(D)*op(S) + beta*C with a
// sparse right operand.
func MultiplyDenseTimesSparse[T kernel.Float](alpha T, d *dense.Matrix[T], transD bool,
	s *Matrix[T], transS bool, beta T, c *dense.Matrix[T]) error {
	if s.dev != d.Device() || s.dev != c.Device() {
		return fmt.Errorf("MultiplyDenseTimesSparse: operands on different devices")
	}
	dr, dc := opShape(d.Rows(), d.Cols(), transD)
	sr, sc := opShape(s.rows, s.cols, transS)
	if dc != sr {
		return shapeMismatch("MultiplyDenseTimesSparse", "op(D) is %dx%d, op(S) is %dx%d", dr, dc, sr, sc)
	}
	if c.Rows() != dr || c.Cols() != sc {
		return shapeMismatch("MultiplyDenseTimesSparse", "output is %dx%d, want %dx%d", c.Rows(), c.Cols(), dr, sc)
	}
	v, err := s.prepCSR()
	if err != nil {
		return err
	}
	dd, ddr, ddc := denseOperand(d, transD)
	trans := transS != v.transposed
	out := c.Data()
	c.Device().Stream().Launch(func() {
		kernel.SpmmCSRRight(dd, ddr, ddc, trans, v.rows, v.cols, v.ptr, v.idx, v.vals, alpha, beta, out)
	})
	return nil
}

// Multiply computes C = op(S)*op(D).
func Multiply[T kernel.Float](s *Matrix[T], transS bool, d *dense.Matrix[T], transD bool, c *dense.Matrix[T]) error {
	return MultiplyAndWeightedAdd(1, s, transS, d, transD, 0, c)
}

// AssignProductOf overwrites m with op(A)*op(B) for two sparse operands.
// The result is stored in CSR form; explicit zeros from cancellation stay
// stored.
func (m *Matrix[T]) AssignProductOf(a *Matrix[T], transA bool, b *Matrix[T], transB bool) error {
	if err := m.verifyResizable("AssignProductOf"); err != nil {
		return err
	}
	ar, ac := opShape(a.rows, a.cols, transA)
	br, bc := opShape(b.rows, b.cols, transB)
	if ac != br {
		return shapeMismatch("AssignProductOf", "op(A) is %dx%d, op(B) is %dx%d", ar, ac, br, bc)
	}
	aPtr, aIdx, aVal, err := stagedCSR(a, transA)
	if err != nil {
		return err
	}
	bPtr, bIdx, bVal, err := stagedCSR(b, transB)
	if err != nil {
		return err
	}
	cPtr, cIdx, cVal := kernel.SpgemmCSR(ar, ac, bc, aPtr, aIdx, aVal, bPtr, bIdx, bVal)
	return m.SetFromCSR(cPtr, cIdx, cVal, ar, bc)
}

// stagedCSR materializes op(m) as a host CSR triple.
func stagedCSR[T kernel.Float](m *Matrix[T], trans bool) ([]Index, []Index, []T, error) {
	es, err := m.exportEntries()
	if err != nil {
		return nil, nil, nil, err
	}
	rows := m.rows
	if trans {
		rows = m.cols
		for i := range es {
			es[i].r, es[i].c = es[i].c, es[i].r
		}
	}
	ptr, idx, vals := hostCSR(es, rows)
	return ptr, idx, vals, nil
}

// ScaleAndAdd computes C += alpha*A for a sparse A and dense C.
func ScaleAndAdd[T kernel.Float](alpha T, a *Matrix[T], c *dense.Matrix[T]) error {
	if a.dev != c.Device() {
		return fmt.Errorf("ScaleAndAdd: operands on different devices")
	}
	if c.Rows() != a.rows || c.Cols() != a.cols {
		return shapeMismatch("ScaleAndAdd", "output is %dx%d, want %dx%d", c.Rows(), c.Cols(), a.rows, a.cols)
	}
	if err := a.checkValid("ScaleAndAdd"); err != nil {
		return err
	}
	out := c.Data()
	cols := a.cols
	a.dev.Stream().Launch(func() {
		vals := a.values()
		a.forEachStored(func(r, cc, p int) {
			out[r*cols+cc] += alpha * vals[p]
		})
	})
	return nil
}

// ColumnwiseScaleAndWeightedAdd computes C = alpha*A*diag(v) + beta*C:
// every stored entry of column j is scaled by v[j]. v must hold exactly
// one value per column of A.
func ColumnwiseScaleAndWeightedAdd[T kernel.Float](alpha T, a *Matrix[T], v *dense.Matrix[T], beta T, c *dense.Matrix[T]) error {
	if a.dev != v.Device() || a.dev != c.Device() {
		return fmt.Errorf("ColumnwiseScaleAndWeightedAdd: operands on different devices")
	}
	if v.NumElements() != a.cols {
		return shapeMismatch("ColumnwiseScaleAndWeightedAdd", "%d scale factors for %d columns", v.NumElements(), a.cols)
	}
	if c.Rows() != a.rows || c.Cols() != a.cols {
		return shapeMismatch("ColumnwiseScaleAndWeightedAdd", "output is %dx%d, want %dx%d", c.Rows(), c.Cols(), a.rows, a.cols)
	}
	if err := a.checkValid("ColumnwiseScaleAndWeightedAdd"); err != nil {
		return err
	}
	out := c.Data()
	scales := v.Data()
	cols := a.cols
	a.dev.Stream().Launch(func() {
		for i := range out {
			out[i] *= beta
		}
		vals := a.values()
		a.forEachStored(func(r, cc, p int) {
			out[r*cols+cc] += alpha * vals[p] * scales[cc]
		})
	})
	return nil
}

// AssignElementProductOf overwrites m with the element-wise product of a
// sparse a and dense b over a's stored pattern.
func (m *Matrix[T]) AssignElementProductOf(a *Matrix[T], b *dense.Matrix[T]) error {
	if a.dev != b.Device() || a.dev != m.dev {
		return fmt.Errorf("AssignElementProductOf: operands on different devices")
	}
	if b.Rows() != a.rows || b.Cols() != a.cols {
		return shapeMismatch("AssignElementProductOf", "dense is %dx%d, want %dx%d", b.Rows(), b.Cols(), a.rows, a.cols)
	}
	if err := m.ResizeAsAndCopyIndexFrom(a, true); err != nil {
		return err
	}
	data := b.Data()
	cols := a.cols
	m.dev.Stream().Launch(func() {
		src := a.values()
		start := a.dataStart()
		dst := m.values()
		a.forEachStored(func(r, cc, p int) {
			dst[p-start] = src[p] * data[r*cols+cc]
		})
	})
	return nil
}
