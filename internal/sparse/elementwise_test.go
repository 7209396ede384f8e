package sparse

import (
	"math"
	"slices"
	"testing"
)

func newSignedCSC(t *testing.T) *Matrix[float32] {
	t.Helper()
	m := NewEmpty[float32](testDev(t), CSC)
	if err := m.SetFromCSC([]Index{0, 2, 3}, []Index{0, 1, 0}, []float32{-4, 9, 2.5}, 2, 2); err != nil {
		t.Fatalf("SetFromCSC: %v", err)
	}
	return m
}

func TestInplaceTransforms(t *testing.T) {
	tests := []struct {
		name  string
		apply func(m *Matrix[float32]) error
		want  []float32
	}{
		{"abs", func(m *Matrix[float32]) error { return m.InplaceAbs() }, []float32{4, 9, 2.5}},
		{"scale", func(m *Matrix[float32]) error { return m.Scale(2) }, []float32{-8, 18, 5}},
		{"truncate", func(m *Matrix[float32]) error { return m.InplaceTruncate(3) }, []float32{-3, 3, 2.5}},
		{"truncate bottom", func(m *Matrix[float32]) error { return m.InplaceTruncateBottom(0) }, []float32{0, 9, 2.5}},
		{"truncate top", func(m *Matrix[float32]) error { return m.InplaceTruncateTop(5) }, []float32{-4, 5, 2.5}},
		{"soft threshold", func(m *Matrix[float32]) error { return m.InplaceSoftThreshold(3) }, []float32{-1, 6, 0}},
		{"zero small", func(m *Matrix[float32]) error { return m.SetToZeroIfAbsLessThan(3) }, []float32{-4, 9, 0}},
		{"relu deriv", func(m *Matrix[float32]) error { return m.InplaceLinearRectifierDerivative() }, []float32{0, 1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newSignedCSC(t)
			defer m.Release()
			if err := tt.apply(m); err != nil {
				t.Fatalf("transform: %v", err)
			}
			// Transforms never change the stored entry set.
			if n, err := m.NzCount(); err != nil || n != 3 {
				t.Fatalf("NzCount = %d, %v; want 3", n, err)
			}
			vals, err := m.NzValues()
			if err != nil {
				t.Fatalf("NzValues: %v", err)
			}
			if !slices.Equal(vals, tt.want) {
				t.Errorf("vals = %v, want %v", vals, tt.want)
			}
		})
	}
}

func TestAssignSqrtOf(t *testing.T) {
	dev := testDev(t)
	a := NewEmpty[float32](dev, CSC)
	defer a.Release()
	if err := a.SetFromCSC([]Index{0, 1, 3}, []Index{1, 0, 1}, []float32{4, 9, 16}, 2, 2); err != nil {
		t.Fatalf("SetFromCSC: %v", err)
	}

	m := NewEmpty[float32](dev, CSC)
	defer m.Release()
	if err := m.AssignSqrtOf(a); err != nil {
		t.Fatalf("AssignSqrtOf: %v", err)
	}
	ptr, idx, vals, err := m.ToCSC()
	if err != nil {
		t.Fatalf("ToCSC: %v", err)
	}
	if !slices.Equal(ptr, []Index{0, 1, 3}) || !slices.Equal(idx, []Index{1, 0, 1}) {
		t.Errorf("pattern not copied: ptr=%v idx=%v", ptr, idx)
	}
	if !slices.Equal(vals, []float32{2, 3, 4}) {
		t.Errorf("vals = %v, want [2 3 4]", vals)
	}

	// The source is untouched.
	srcVals, err := a.NzValues()
	if err != nil {
		t.Fatalf("NzValues: %v", err)
	}
	if !slices.Equal(srcVals, []float32{4, 9, 16}) {
		t.Errorf("source mutated: %v", srcVals)
	}
}

func TestElementInverse(t *testing.T) {
	m := NewEmpty[float32](testDev(t), CSC)
	defer m.Release()
	if err := m.SetFromCSC([]Index{0, 2}, []Index{0, 1}, []float32{2, 4}, 2, 1); err != nil {
		t.Fatalf("SetFromCSC: %v", err)
	}
	if err := m.ElementInverse(); err != nil {
		t.Fatalf("ElementInverse: %v", err)
	}
	vals, err := m.NzValues()
	if err != nil {
		t.Fatalf("NzValues: %v", err)
	}
	if !slices.Equal(vals, []float32{0.5, 0.25}) {
		t.Errorf("vals = %v, want [0.5 0.25]", vals)
	}
}

func TestReductions(t *testing.T) {
	m := newSignedCSC(t) // stored values -4, 9, 2.5
	defer m.Release()

	check := func(name string, got float32, err error, want float64) {
		t.Helper()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if math.Abs(float64(got)-want) > 1e-5 {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}
	s, err := m.SumOfElements()
	check("SumOfElements", s, err, 7.5)
	s, err = m.SumOfAbsElements()
	check("SumOfAbsElements", s, err, 15.5)
	s, err = m.FrobeniusNorm()
	check("FrobeniusNorm", s, err, math.Sqrt(16+81+6.25))
	s, err = m.MatrixNormInf()
	check("MatrixNormInf", s, err, 9)
	s, err = m.MatrixNorm1()
	check("MatrixNorm1", s, err, 15.5)
	s, err = m.MatrixNorm0()
	check("MatrixNorm0", s, err, 3)

	// Zeroing values keeps them stored; norm 0 counts stored entries,
	// not non-zero values.
	if err := m.SetToZeroIfAbsLessThan(5); err != nil {
		t.Fatalf("SetToZeroIfAbsLessThan: %v", err)
	}
	s, err = m.MatrixNorm0()
	check("MatrixNorm0 after zeroing", s, err, 3)
}

func TestAssignElementPowerOf(t *testing.T) {
	dev := testDev(t)
	a := NewEmpty[float32](dev, CSC)
	defer a.Release()
	if err := a.SetFromCSC([]Index{0, 2}, []Index{0, 1}, []float32{2, 3}, 2, 1); err != nil {
		t.Fatalf("SetFromCSC: %v", err)
	}
	m := NewEmpty[float32](dev, CSC)
	defer m.Release()
	if err := m.AssignElementPowerOf(a, 2); err != nil {
		t.Fatalf("AssignElementPowerOf: %v", err)
	}
	vals, err := m.NzValues()
	if err != nil {
		t.Fatalf("NzValues: %v", err)
	}
	if !slices.Equal(vals, []float32{4, 9}) {
		t.Errorf("vals = %v, want [4 9]", vals)
	}
}
