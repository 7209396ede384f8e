package sparse

import (
	"math"

	"github.com/mkarling/sparsemat/internal/dense"
	"github.com/mkarling/sparsemat/internal/kernel"
)

// AreEqual reports whether two sparse matrices hold the same logical
// contents within threshold, regardless of storage format. Entries stored
// by only one side compare against zero.
func AreEqual[T kernel.Float](a, b *Matrix[T], threshold T) (bool, error) {
	if a.rows != b.rows || a.cols != b.cols {
		return false, nil
	}
	ae, err := a.exportEntries()
	if err != nil {
		return false, err
	}
	be, err := b.exportEntries()
	if err != nil {
		return false, err
	}
	type key struct{ r, c Index }
	diff := make(map[key]T, len(ae)+len(be))
	for _, e := range ae {
		diff[key{e.r, e.c}] += e.v
	}
	for _, e := range be {
		diff[key{e.r, e.c}] -= e.v
	}
	for _, d := range diff {
		if T(math.Abs(float64(d))) > threshold {
			return false, nil
		}
	}
	return true, nil
}

// IsEqualTo reports element-wise equality with another sparse matrix.
func (m *Matrix[T]) IsEqualTo(other *Matrix[T], threshold T) (bool, error) {
	return AreEqual(m, other, threshold)
}

// AreEqualDense compares a sparse matrix against a dense one within
// threshold. Cells the sparse matrix does not store compare as zero.
func AreEqualDense[T kernel.Float](a *Matrix[T], d *dense.Matrix[T], threshold T) (bool, error) {
	if a.rows != d.Rows() || a.cols != d.Cols() {
		return false, nil
	}
	ad, err := a.CopyToDense()
	if err != nil {
		return false, err
	}
	defer ad.Release()
	return dense.AreEqual(ad, d, threshold), nil
}
