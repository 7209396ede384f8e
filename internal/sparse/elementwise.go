package sparse

import (
	"fmt"
	"math"
)

// Element-wise transforms operate on stored (non-zero) values only. The
// Inplace variants keep the sparsity pattern, so the cached nz count stays
// valid; the AssignXOf variants first copy the source's pattern.

// inplaceApply applies f to every live value on the device stream.
func (m *Matrix[T]) inplaceApply(op string, f func(T) T) error {
	if err := m.checkValid(op); err != nil {
		return err
	}
	nz, err := m.NzCount()
	if err != nil {
		return err
	}
	if nz == 0 {
		return nil
	}
	m.dev.Stream().Launch(func() {
		start := m.dataStart()
		vals := m.values()[start : start+nz]
		for i := range vals {
			vals[i] = f(vals[i])
		}
	})
	return nil
}

// assignApply copies a's pattern into m and writes f over a's values.
func (m *Matrix[T]) assignApply(op string, a *Matrix[T], f func(T) T) error {
	if m == a {
		return m.inplaceApply(op, f)
	}
	if m.dev != a.dev {
		return fmt.Errorf("%s: operands on different devices (%d and %d)", op, m.dev.ID(), a.dev.ID())
	}
	if err := m.ResizeAsAndCopyIndexFrom(a, true); err != nil {
		return err
	}
	nz, err := a.NzCount()
	if err != nil {
		return err
	}
	if nz == 0 {
		return nil
	}
	m.dev.Stream().Launch(func() {
		src := a.values()[a.dataStart():]
		dst := m.values()
		for i := range nz {
			dst[i] = f(src[i])
		}
	})
	return nil
}

func sigmoid[T ~float32 | ~float64](v T) T {
	return T(1 / (1 + math.Exp(float64(-v))))
}

func (m *Matrix[T]) InplaceSigmoid() error { return m.inplaceApply("InplaceSigmoid", sigmoid[T]) }
func (m *Matrix[T]) AssignSigmoidOf(a *Matrix[T]) error {
	return m.assignApply("AssignSigmoidOf", a, sigmoid[T])
}

func (m *Matrix[T]) InplaceTanh() error {
	return m.inplaceApply("InplaceTanh", func(v T) T { return T(math.Tanh(float64(v))) })
}

func (m *Matrix[T]) AssignTanhOf(a *Matrix[T]) error {
	return m.assignApply("AssignTanhOf", a, func(v T) T { return T(math.Tanh(float64(v))) })
}

func (m *Matrix[T]) InplaceSqrt() error {
	return m.inplaceApply("InplaceSqrt", func(v T) T { return T(math.Sqrt(float64(v))) })
}

func (m *Matrix[T]) AssignSqrtOf(a *Matrix[T]) error {
	return m.assignApply("AssignSqrtOf", a, func(v T) T { return T(math.Sqrt(float64(v))) })
}

func (m *Matrix[T]) InplaceExp() error {
	return m.inplaceApply("InplaceExp", func(v T) T { return T(math.Exp(float64(v))) })
}

func (m *Matrix[T]) AssignExpOf(a *Matrix[T]) error {
	return m.assignApply("AssignExpOf", a, func(v T) T { return T(math.Exp(float64(v))) })
}

func (m *Matrix[T]) InplaceLog() error {
	return m.inplaceApply("InplaceLog", func(v T) T { return T(math.Log(float64(v))) })
}

func (m *Matrix[T]) AssignLogOf(a *Matrix[T]) error {
	return m.assignApply("AssignLogOf", a, func(v T) T { return T(math.Log(float64(v))) })
}

func (m *Matrix[T]) InplaceAbs() error {
	return m.inplaceApply("InplaceAbs", func(v T) T { return T(math.Abs(float64(v))) })
}

func (m *Matrix[T]) AssignAbsOf(a *Matrix[T]) error {
	return m.assignApply("AssignAbsOf", a, func(v T) T { return T(math.Abs(float64(v))) })
}

// ElementInverse maps every stored value to its reciprocal.
func (m *Matrix[T]) ElementInverse() error {
	return m.inplaceApply("ElementInverse", func(v T) T { return 1 / v })
}

func (m *Matrix[T]) AssignElementInverseOf(a *Matrix[T]) error {
	return m.assignApply("AssignElementInverseOf", a, func(v T) T { return 1 / v })
}

func reluDeriv[T ~float32 | ~float64](v T) T {
	if v > 0 {
		return 1
	}
	return 0
}

func (m *Matrix[T]) InplaceLinearRectifierDerivative() error {
	return m.inplaceApply("InplaceLinearRectifierDerivative", reluDeriv[T])
}

func (m *Matrix[T]) AssignLinearRectifierDerivativeOf(a *Matrix[T]) error {
	return m.assignApply("AssignLinearRectifierDerivativeOf", a, reluDeriv[T])
}

// InplaceTruncate clamps stored values into [-threshold, threshold].
func (m *Matrix[T]) InplaceTruncate(threshold T) error {
	return m.inplaceApply("InplaceTruncate", func(v T) T {
		if v > threshold {
			return threshold
		}
		if v < -threshold {
			return -threshold
		}
		return v
	})
}

// InplaceTruncateBottom raises stored values below threshold to threshold.
func (m *Matrix[T]) InplaceTruncateBottom(threshold T) error {
	return m.inplaceApply("InplaceTruncateBottom", func(v T) T { return max(v, threshold) })
}

func (m *Matrix[T]) AssignTruncateBottomOf(a *Matrix[T], threshold T) error {
	return m.assignApply("AssignTruncateBottomOf", a, func(v T) T { return max(v, threshold) })
}

// InplaceTruncateTop lowers stored values above threshold to threshold.
func (m *Matrix[T]) InplaceTruncateTop(threshold T) error {
	return m.inplaceApply("InplaceTruncateTop", func(v T) T { return min(v, threshold) })
}

func (m *Matrix[T]) AssignTruncateTopOf(a *Matrix[T], threshold T) error {
	return m.assignApply("AssignTruncateTopOf", a, func(v T) T { return min(v, threshold) })
}

// InplaceSoftThreshold shrinks stored values toward zero by threshold.
func (m *Matrix[T]) InplaceSoftThreshold(threshold T) error {
	return m.inplaceApply("InplaceSoftThreshold", func(v T) T {
		if v > threshold {
			return v - threshold
		}
		if v < -threshold {
			return v + threshold
		}
		return 0
	})
}

// SetToZeroIfAbsLessThan zeroes stored values with magnitude below
// threshold. The entries stay stored: the sparsity pattern is unchanged.
func (m *Matrix[T]) SetToZeroIfAbsLessThan(threshold T) error {
	return m.inplaceApply("SetToZeroIfAbsLessThan", func(v T) T {
		if T(math.Abs(float64(v))) < threshold {
			return 0
		}
		return v
	})
}

// Scale multiplies every stored value by alpha.
func (m *Matrix[T]) Scale(alpha T) error {
	return m.inplaceApply("Scale", func(v T) T { return alpha * v })
}

// AssignElementPowerOf overwrites m with a's values raised to power.
func (m *Matrix[T]) AssignElementPowerOf(a *Matrix[T], power T) error {
	return m.assignApply("AssignElementPowerOf", a, func(v T) T {
		return T(math.Pow(float64(v), float64(power)))
	})
}

// InplaceElementPower raises every stored value to power.
func (m *Matrix[T]) InplaceElementPower(power T) error {
	return m.inplaceApply("InplaceElementPower", func(v T) T {
		return T(math.Pow(float64(v), float64(power)))
	})
}
