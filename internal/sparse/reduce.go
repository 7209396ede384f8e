package sparse

import (
	"math"

	"github.com/mkarling/sparsemat/internal/dense"
)

// Reductions fold over the stored values. They are host-visible reads and
// therefore device barriers.

// forEachStored calls fn for every stored entry with its row, column and
// absolute position in the value region. The caller must hold the device
// barrier (or run inside a stream task).
func (m *Matrix[T]) forEachStored(fn func(r, c, p int)) error {
	switch m.format {
	case CSC:
		sec := m.secondaryIndex()
		major := m.majorIndex()
		for j := range m.cols {
			for p := sec[j]; p < sec[j+1]; p++ {
				fn(int(major[p]), j, int(p))
			}
		}
	case CSR:
		sec := m.secondaryIndex()
		major := m.majorIndex()
		for i := range m.rows {
			for p := sec[i]; p < sec[i+1]; p++ {
				fn(i, int(major[p]), int(p))
			}
		}
	case BlockCol:
		major := m.majorIndex()
		for c, b := range major {
			if b == blockIDNotAssigned {
				continue
			}
			off := int(b) * m.rows
			for r := range m.rows {
				fn(r, c, off+r)
			}
		}
	case BlockRow:
		major := m.majorIndex()
		for r, b := range major {
			if b == blockIDNotAssigned {
				continue
			}
			off := int(b) * m.cols
			for c := range m.cols {
				fn(r, c, off+c)
			}
		}
	default:
		return unsupported("forEachStored", m.format)
	}
	return nil
}

func (m *Matrix[T]) reduce(init T, f func(acc, v T) T) (T, error) {
	vals, err := m.NzValues()
	if err != nil {
		return 0, err
	}
	acc := init
	for _, v := range vals {
		acc = f(acc, v)
	}
	return acc, nil
}

// SumOfElements returns the sum of the stored values.
func (m *Matrix[T]) SumOfElements() (T, error) {
	return m.reduce(0, func(acc, v T) T { return acc + v })
}

// SumOfAbsElements returns the sum of absolute stored values (L1).
func (m *Matrix[T]) SumOfAbsElements() (T, error) {
	return m.reduce(0, func(acc, v T) T { return acc + T(math.Abs(float64(v))) })
}

// FrobeniusNorm returns sqrt(sum of squared stored values).
func (m *Matrix[T]) FrobeniusNorm() (T, error) {
	s, err := m.reduce(0, func(acc, v T) T { return acc + v*v })
	if err != nil {
		return 0, err
	}
	return T(math.Sqrt(float64(s))), nil
}

// MatrixNormInf returns the largest absolute stored value.
func (m *Matrix[T]) MatrixNormInf() (T, error) {
	return m.reduce(0, func(acc, v T) T { return max(acc, T(math.Abs(float64(v)))) })
}

// MatrixNorm1 returns the sum of absolute stored values.
func (m *Matrix[T]) MatrixNorm1() (T, error) { return m.SumOfAbsElements() }

// MatrixNorm0 returns the live stored-entry count. Explicit zeros are
// stored entries and count like any other.
func (m *Matrix[T]) MatrixNorm0() (T, error) {
	nz, err := m.NzCount()
	if err != nil {
		return 0, err
	}
	return T(nz), nil
}

// InnerProductOfMatrices returns sum(a[r,c] * d[r,c]) over a's stored
// entries. Cells that a does not store contribute nothing, which matches
// the sparse product exactly since they are zero.
func (a *Matrix[T]) InnerProductOfMatrices(d *dense.Matrix[T]) (T, error) {
	if err := a.checkValid("InnerProductOfMatrices"); err != nil {
		return 0, err
	}
	if d.Rows() != a.rows || d.Cols() != a.cols {
		return 0, shapeMismatch("InnerProductOfMatrices", "dense is %dx%d, want %dx%d",
			d.Rows(), d.Cols(), a.rows, a.cols)
	}
	a.dev.Stream().Synchronize()
	d.Device().Stream().Synchronize()
	vals := a.values()
	data := d.Data()
	cols := a.cols
	var sum T
	err := a.forEachStored(func(r, c, p int) {
		sum += vals[p] * data[r*cols+c]
	})
	return sum, err
}
