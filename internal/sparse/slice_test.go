package sparse

import (
	"errors"
	"slices"
	"testing"

	"github.com/mkarling/sparsemat/internal/dense"
)

func TestColumnSlice(t *testing.T) {
	m := newTestCSC(t, testDev(t))
	defer m.Release()

	v, err := m.ColumnSlice(1, 2)
	if err != nil {
		t.Fatalf("ColumnSlice: %v", err)
	}
	if !v.IsView() || v.Rows() != 3 || v.Cols() != 2 {
		t.Fatalf("view is %dx%d (view=%v)", v.Rows(), v.Cols(), v.IsView())
	}
	if n, err := v.NzCount(); err != nil || n != 2 {
		t.Fatalf("view NzCount = %d, %v; want 2", n, err)
	}

	// Columns 1 and 2 hold (2,.)=3 and (0,.)=2; the exported triple is
	// self-contained with pointers rebased to zero.
	ptr, idx, vals, err := v.ToCSC()
	if err != nil {
		t.Fatalf("view ToCSC: %v", err)
	}
	if !slices.Equal(ptr, []Index{0, 1, 2}) || !slices.Equal(idx, []Index{2, 0}) ||
		!slices.Equal(vals, []float32{3, 2}) {
		t.Errorf("view triple: ptr=%v idx=%v vals=%v", ptr, idx, vals)
	}
}

func TestColumnSliceOfSlice(t *testing.T) {
	m := newTestCSC(t, testDev(t))
	defer m.Release()

	outer, err := m.ColumnSlice(1, 2)
	if err != nil {
		t.Fatalf("outer slice: %v", err)
	}
	inner, err := outer.ColumnSlice(1, 1)
	if err != nil {
		t.Fatalf("inner slice: %v", err)
	}
	if inner.SliceViewOffset() != 2 {
		t.Errorf("nested offset = %d, want 2", inner.SliceViewOffset())
	}
	_, idx, vals, err := inner.ToCSC()
	if err != nil {
		t.Fatalf("inner ToCSC: %v", err)
	}
	if !slices.Equal(idx, []Index{0}) || !slices.Equal(vals, []float32{2}) {
		t.Errorf("inner triple: idx=%v vals=%v", idx, vals)
	}
}

func TestColumnSliceSharesStorage(t *testing.T) {
	m := newTestCSC(t, testDev(t))
	defer m.Release()

	v, err := m.ColumnSlice(1, 2)
	if err != nil {
		t.Fatalf("ColumnSlice: %v", err)
	}
	// Scaling the base must show through the view.
	if err := m.Scale(10); err != nil {
		t.Fatalf("Scale: %v", err)
	}
	_, _, vals, err := v.ToCSC()
	if err != nil {
		t.Fatalf("view ToCSC: %v", err)
	}
	if !slices.Equal(vals, []float32{30, 20}) {
		t.Errorf("view vals after base scale = %v, want [30 20]", vals)
	}
}

func TestColumnSliceStaleAfterRealloc(t *testing.T) {
	m := newTestCSC(t, testDev(t))
	defer m.Release()

	v, err := m.ColumnSlice(0, 2)
	if err != nil {
		t.Fatalf("ColumnSlice: %v", err)
	}
	// Force a reallocation of the base buffer.
	if err := m.Resize(16, 16, 200, CSC, false); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if _, err := v.NzCount(); !errors.Is(err, ErrStaleView) {
		t.Errorf("NzCount on stale view: %v, want ErrStaleView", err)
	}
	if _, _, _, err := v.ToCSC(); !errors.Is(err, ErrStaleView) {
		t.Errorf("ToCSC on stale view: %v, want ErrStaleView", err)
	}
}

func TestColumnSliceViewCannotResize(t *testing.T) {
	m := newTestCSC(t, testDev(t))
	defer m.Release()

	v, err := m.ColumnSlice(0, 2)
	if err != nil {
		t.Fatalf("ColumnSlice: %v", err)
	}
	if err := v.Resize(4, 4, 8, CSC, false); !errors.Is(err, ErrNotResizable) {
		t.Errorf("Resize on view: %v, want ErrNotResizable", err)
	}
}

func TestColumnSliceRejectsNonCSC(t *testing.T) {
	dev := testDev(t)
	m := newTestCSC(t, dev)
	defer m.Release()
	if err := m.ConvertToSparseFormat(CSR); err != nil {
		t.Fatalf("convert: %v", err)
	}
	if _, err := m.ColumnSlice(0, 2); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("ColumnSlice on csr: %v, want ErrUnsupportedFormat", err)
	}
}

func TestCopyColumnSliceToDense(t *testing.T) {
	m := newTestCSC(t, testDev(t))
	defer m.Release()

	d, err := m.CopyColumnSliceToDense(1, 2)
	if err != nil {
		t.Fatalf("CopyColumnSliceToDense: %v", err)
	}
	defer d.Release()
	want, err := dense.FromSlice(m.Device(), 3, 2, []float32{0, 2, 0, 0, 3, 0})
	if err != nil {
		t.Fatalf("dense.FromSlice: %v", err)
	}
	defer want.Release()
	if !dense.AreEqual(d, want, 0) {
		t.Error("sliced dense copy has wrong contents")
	}
}

func TestMaskColumnsValue(t *testing.T) {
	m := newTestCSC(t, testDev(t))
	defer m.Release()

	if err := m.MaskColumnsValue([]bool{true, false, true}, 0, 1); err != nil {
		t.Fatalf("MaskColumnsValue: %v", err)
	}
	// The pattern (and the cached count) must be untouched; column 1's
	// value becomes an explicit zero.
	if n, err := m.NzCount(); err != nil || n != 3 {
		t.Fatalf("NzCount = %d, %v; want 3", n, err)
	}
	_, _, vals, err := m.ToCSC()
	if err != nil {
		t.Fatalf("ToCSC: %v", err)
	}
	if !slices.Equal(vals, []float32{1, 0, 2}) {
		t.Errorf("vals = %v, want [1 0 2]", vals)
	}
	// The explicit zero is a stored entry and counts toward norm 0.
	if n0, err := m.MatrixNorm0(); err != nil || n0 != 3 {
		t.Errorf("MatrixNorm0 = %v, %v; want 3", n0, err)
	}

	if err := m.MaskColumnsValue([]bool{false, false, false}, 7, 1); err == nil {
		t.Error("non-zero mask value: want error")
	}
	if err := m.MaskColumnsValue([]bool{true}, 0, 2); err == nil {
		t.Error("mask length mismatch: want error")
	}
}

func TestGatherBatch(t *testing.T) {
	dev := testDev(t)
	a := NewEmpty[float32](dev, CSC)
	defer a.Release()
	if err := a.SetFromCSC([]Index{0, 1, 1}, []Index{0}, []float32{4}, 2, 2); err != nil {
		t.Fatalf("SetFromCSC a: %v", err)
	}
	b := NewEmpty[float32](dev, CSC)
	defer b.Release()
	if err := b.SetFromCSC([]Index{0, 0, 2}, []Index{0, 1}, []float32{5, 6}, 2, 2); err != nil {
		t.Fatalf("SetFromCSC b: %v", err)
	}

	out := NewEmpty[float32](dev, CSC)
	defer out.Release()
	if err := out.GatherBatch(a, b); err != nil {
		t.Fatalf("GatherBatch: %v", err)
	}
	if out.Rows() != 2 || out.Cols() != 4 {
		t.Fatalf("gathered shape = %dx%d, want 2x4", out.Rows(), out.Cols())
	}
	ptr, idx, vals, err := out.ToCSC()
	if err != nil {
		t.Fatalf("ToCSC: %v", err)
	}
	if !slices.Equal(ptr, []Index{0, 1, 1, 1, 3}) || !slices.Equal(idx, []Index{0, 0, 1}) ||
		!slices.Equal(vals, []float32{4, 5, 6}) {
		t.Errorf("gathered triple: ptr=%v idx=%v vals=%v", ptr, idx, vals)
	}
}
