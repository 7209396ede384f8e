package sparse

import (
	"fmt"
	"math"

	"github.com/mkarling/sparsemat/internal/dense"
)

// Optimizer updaters. The receiver is a sparse gradient; updates touch only
// the cells the gradient stores, so the dense accumulators and parameters
// stay untouched where the gradient is structurally zero. Accumulator
// matrices stack their state planes vertically: a k-plane accumulator for a
// rows×cols gradient is (k*rows)×cols, plane q holding its value for cell
// (r,c) at row q*rows+r.

// unitGainFactor is the weight applied to the incoming gradient when
// accumulating momentum: 1 in unit-gain mode, otherwise 1-momentum.
func unitGainFactor[T ~float32 | ~float64](momentum T, unitGain bool) T {
	if unitGain {
		return 1
	}
	return 1 - momentum
}

func (g *Matrix[T]) checkAccumulator(op string, c *dense.Matrix[T], planes int) error {
	if err := g.checkValid(op); err != nil {
		return err
	}
	if c.Device() != g.dev {
		return fmt.Errorf("%s: accumulator on device %d, gradient on %d", op, c.Device().ID(), g.dev.ID())
	}
	if c.Rows() != planes*g.rows || c.Cols() != g.cols {
		return shapeMismatch(op, "accumulator is %dx%d, want %dx%d", c.Rows(), c.Cols(), planes*g.rows, g.cols)
	}
	return nil
}

func (g *Matrix[T]) checkParams(op string, params *dense.Matrix[T]) error {
	if params.Device() != g.dev {
		return fmt.Errorf("%s: parameters on device %d, gradient on %d", op, params.Device().ID(), g.dev.ID())
	}
	if params.Rows() != g.rows || params.Cols() != g.cols {
		return shapeMismatch(op, "parameters are %dx%d, want %dx%d", params.Rows(), params.Cols(), g.rows, g.cols)
	}
	return nil
}

// NormalGrad folds the gradient into a momentum accumulator:
// v = momentum*v + factor*g over stored entries. The gradient itself is
// not modified, so applying the same gradient twice is deterministic.
func (g *Matrix[T]) NormalGrad(c *dense.Matrix[T], momentum T, unitGain bool) error {
	if err := g.checkAccumulator("NormalGrad", c, 1); err != nil {
		return err
	}
	factor := unitGainFactor(momentum, unitGain)
	acc := c.Data()
	cols := g.cols
	g.dev.Stream().Launch(func() {
		vals := g.values()
		g.forEachStored(func(r, cc, p int) {
			i := r*cols + cc
			acc[i] = momentum*acc[i] + factor*vals[p]
		})
	})
	return nil
}

// Adagrad accumulates squared gradients and scales the stored gradient
// values by the inverse accumulated magnitude. Returns the average
// multiplier over the updated entries when needAveMultiplier is set,
// otherwise 1. The gradient's stored values are modified in place.
func (g *Matrix[T]) Adagrad(c *dense.Matrix[T], needAveMultiplier bool) (T, error) {
	if err := g.checkAccumulator("Adagrad", c, 1); err != nil {
		return 0, err
	}
	g.dev.Stream().Synchronize()
	acc := c.Data()
	cols := g.cols
	vals := g.values()
	var multSum float64
	n := 0
	err := g.forEachStored(func(r, cc, p int) {
		i := r*cols + cc
		acc[i] += vals[p] * vals[p]
		temp := math.Sqrt(float64(acc[i]) + 1e-16)
		vals[p] = T(float64(vals[p]) / temp)
		multSum += 1 / temp
		n++
	})
	if err != nil {
		return 0, err
	}
	if !needAveMultiplier || n == 0 {
		return 1, nil
	}
	return T(multSum / float64(n)), nil
}

// FSAdagrad applies the FSAdaGrad update: an exponentially smoothed squared
// gradient scales the step, a momentum plane smooths it, and the parameters
// take the step directly. The accumulator holds two planes, squared
// gradients then momentum.
func (g *Matrix[T]) FSAdagrad(c, params *dense.Matrix[T], learnRate, momentum, adaWeight, adaMul T, unitGain bool) error {
	if err := g.checkAccumulator("FSAdagrad", c, 2); err != nil {
		return err
	}
	if err := g.checkParams("FSAdagrad", params); err != nil {
		return err
	}
	factor := unitGainFactor(momentum, unitGain)
	acc := c.Data()
	out := params.Data()
	rows, cols := g.rows, g.cols
	g.dev.Stream().Launch(func() {
		vals := g.values()
		g.forEachStored(func(r, cc, p int) {
			i := r*cols + cc
			mi := (r+rows)*cols + cc
			v := vals[p]
			adaSqr := adaWeight*acc[i] + (1-adaWeight)*v*v
			acc[i] = adaSqr
			if adaSqr != 0 {
				w := adaMul / T(math.Sqrt(float64(adaSqr)))
				if w > 10 {
					w = 10
				}
				v *= w
			}
			if momentum > 0 {
				v = momentum*acc[mi] + factor*v
				acc[mi] = v
			}
			out[i] -= learnRate * v
		})
	})
	return nil
}

// Adam applies the Adam update (or AdaMax when adamax is set). The
// accumulator holds two planes, the smoothed second moment then the
// smoothed first moment.
func (g *Matrix[T]) Adam(c, params *dense.Matrix[T], learnRate, momentum, adaWeight, adaMul, epsilon T, unitGain, adamax bool) error {
	if err := g.checkAccumulator("Adam", c, 2); err != nil {
		return err
	}
	if err := g.checkParams("Adam", params); err != nil {
		return err
	}
	factor := unitGainFactor(momentum, unitGain)
	acc := c.Data()
	out := params.Data()
	rows, cols := g.rows, g.cols
	g.dev.Stream().Launch(func() {
		vals := g.values()
		g.forEachStored(func(r, cc, p int) {
			i := r*cols + cc
			mi := (r+rows)*cols + cc
			v := vals[p]
			var adaSqr T
			if adamax {
				adaSqr = max(adaWeight*acc[i], T(math.Abs(float64(v))))
			} else {
				adaSqr = adaWeight*acc[i] + (1-adaWeight)*v*v
			}
			acc[i] = adaSqr
			m := momentum*acc[mi] + factor*v
			acc[mi] = m
			denom := adaSqr
			if !adamax {
				denom = T(math.Sqrt(float64(adaSqr)))
			}
			out[i] -= learnRate * adaMul * m / (denom + epsilon)
		})
	})
	return nil
}

// RmsProp applies the RMSProp update with per-cell adaptive step sizes.
// The accumulator holds three planes: smoothed squared gradients, the last
// gradient signs and the per-cell step multipliers. When initialized is
// false the planes are seeded from the current gradient first. The
// gradient's stored values are scaled in place; returns the average
// multiplier when needAveMultiplier is set, otherwise 1.
func (g *Matrix[T]) RmsProp(c *dense.Matrix[T], gamma, wgtInc, wgtMax, wgtDec, wgtMin T, needAveMultiplier, initialized bool) (T, error) {
	if err := g.checkAccumulator("RmsProp", c, 3); err != nil {
		return 0, err
	}
	g.dev.Stream().Synchronize()
	acc := c.Data()
	rows, cols := g.rows, g.cols
	vals := g.values()
	const floor = 1e-6
	if !initialized {
		if err := g.forEachStored(func(r, cc, p int) {
			acc[r*cols+cc] = vals[p] * vals[p]
			acc[(r+rows)*cols+cc] = 0
			acc[(r+2*rows)*cols+cc] = 0.02
		}); err != nil {
			return 0, err
		}
	}
	var multSum float64
	n := 0
	err := g.forEachStored(func(r, cc, p int) {
		ai := r*cols + cc
		si := (r+rows)*cols + cc
		ti := (r+2*rows)*cols + cc
		v := vals[p]
		acc[ai] = gamma*acc[ai] + (1-gamma)*v*v
		var sign T
		switch {
		case v > 0:
			sign = 1
		case v < 0:
			sign = -1
		}
		if acc[si]*sign > 0 {
			acc[ti] = min(acc[ti]*wgtInc, wgtMax)
		} else {
			acc[ti] = max(acc[ti]*wgtDec, wgtMin)
		}
		mult := float64(acc[ti]) / math.Sqrt(float64(acc[ai])+floor)
		vals[p] = T(float64(v) * mult)
		acc[si] = sign
		multSum += mult
		n++
	})
	if err != nil {
		return 0, err
	}
	if !needAveMultiplier || n == 0 {
		return 1, nil
	}
	return T(multSum / float64(n)), nil
}

// AdaDelta applies the AdaDelta update. The accumulator holds two planes,
// the smoothed squared gradients then the smoothed squared deltas.
func (g *Matrix[T]) AdaDelta(c, params *dense.Matrix[T], learnRate, rho, epsilon T) error {
	if err := g.checkAccumulator("AdaDelta", c, 2); err != nil {
		return err
	}
	if err := g.checkParams("AdaDelta", params); err != nil {
		return err
	}
	acc := c.Data()
	out := params.Data()
	rows, cols := g.rows, g.cols
	g.dev.Stream().Launch(func() {
		vals := g.values()
		g.forEachStored(func(r, cc, p int) {
			gi := r*cols + cc
			di := (r+rows)*cols + cc
			v := vals[p]
			g2 := rho*acc[gi] + (1-rho)*v*v
			acc[gi] = g2
			dx := -T(math.Sqrt(float64((acc[di]+epsilon)/(g2+epsilon)))) * v
			acc[di] = rho*acc[di] + (1-rho)*dx*dx
			out[gi] += learnRate * dx
		})
	})
	return nil
}
