package labelmodel

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/weaksup/metrics"
	"github.com/YuminosukeSato/weaksup/pkg/errors"
)

// Objective is the method-of-moments loss over μ (d × k):
//
//	J(μ) = mean over off-block (a, b) of (μPμᵀ − O)²
//	     + mean over a of (Σ_y μ_ay p_y − O_aa)²
//	     + l2 · mean((μ − μ₀)²)
//
// where P = diag(p) and an entry is off-block when a and b belong to
// different labeling functions (a/k ≠ b/k). Blocks on the diagonal are
// excluded because two indicators of the same labeling function are not
// conditionally independent.
type Objective struct {
	O   *mat.SymDense
	P   []float64
	Mu0 *mat.Dense
	L2  float64
	K   int

	d        int
	offBlock int
}

// NewObjective validates the shapes and precomputes the number of
// off-block entries.
func NewObjective(O *mat.SymDense, p []float64, mu0 *mat.Dense, l2 float64, k int) (*Objective, error) {
	d := O.SymmetricDim()
	if k < 1 || d%k != 0 {
		return nil, errors.NewValueError("NewObjective", "overlap dimension is not a multiple of the feasible set size")
	}
	if len(p) != k {
		return nil, errors.NewDimensionError("NewObjective", k, len(p), 1)
	}
	if r, c := mu0.Dims(); r != d || c != k {
		return nil, errors.NewDimensionError("NewObjective", d, r, 0)
	}
	m := d / k
	return &Objective{
		O:        O,
		P:        p,
		Mu0:      mu0,
		L2:       l2,
		K:        k,
		d:        d,
		offBlock: d*d - m*k*k,
	}, nil
}

func (o *Objective) sameBlock(a, b int) bool { return a/o.K == b/o.K }

// implied returns μPμᵀ and μp.
func (o *Objective) implied(mu *mat.Dense) (*mat.Dense, *mat.VecDense) {
	muP := mat.DenseCopyOf(mu)
	for z, pz := range o.P {
		col := muP.ColView(z).(*mat.VecDense)
		col.ScaleVec(pz, col)
	}
	var M mat.Dense
	M.Mul(muP, mu.T())

	var marg mat.VecDense
	marg.MulVec(mu, mat.NewVecDense(o.K, o.P))
	return &M, &marg
}

// Loss evaluates J at mu.
func (o *Objective) Loss(mu *mat.Dense) float64 {
	M, marg := o.implied(mu)
	return o.loss(mu, M, marg)
}

func (o *Objective) loss(mu, M *mat.Dense, marg *mat.VecDense) float64 {
	off, _, err := metrics.MaskedMSE(M, o.O, func(a, b int) bool { return !o.sameBlock(a, b) })
	if err != nil {
		panic(err)
	}

	diagO := mat.NewVecDense(o.d, nil)
	for a := 0; a < o.d; a++ {
		diagO.SetVec(a, o.O.At(a, a))
	}
	diag, err := metrics.MSE(marg, diagO)
	if err != nil {
		panic(err)
	}

	J := off + diag
	if o.L2 > 0 {
		reg, err := metrics.MSEMatrix(mu, o.Mu0)
		if err != nil {
			panic(err)
		}
		J += o.L2 * reg
	}
	return J
}

// LossGrad evaluates J at mu and writes ∂J/∂μ into grad, which must be d × k.
func (o *Objective) LossGrad(grad, mu *mat.Dense) float64 {
	M, marg := o.implied(mu)
	J := o.loss(mu, M, marg)

	// R = W∘(μPμᵀ − O), W masking the diagonal blocks.
	R := M
	for a := 0; a < o.d; a++ {
		for b := 0; b < o.d; b++ {
			if o.sameBlock(a, b) {
				R.Set(a, b, 0)
			} else {
				R.Set(a, b, R.At(a, b)-o.O.At(a, b))
			}
		}
	}

	grad.Zero()
	if o.offBlock > 0 {
		grad.Mul(R, mu)
		c := 4 / float64(o.offBlock)
		for z, pz := range o.P {
			col := grad.ColView(z).(*mat.VecDense)
			col.ScaleVec(c*pz, col)
		}
	}

	r := make([]float64, o.d)
	for a := range r {
		r[a] = marg.AtVec(a) - o.O.At(a, a)
	}
	c := 2 / float64(o.d)
	for a, ra := range r {
		if ra == 0 {
			continue
		}
		for z, pz := range o.P {
			grad.Set(a, z, grad.At(a, z)+c*ra*pz)
		}
	}

	if o.L2 > 0 {
		var diff mat.Dense
		diff.Sub(mu, o.Mu0)
		grad.Add(grad, scaled(2*o.L2/float64(o.d*o.K), &diff))
	}
	return J
}

// Gradient writes ∂J/∂μ into grad.
func (o *Objective) Gradient(grad, mu *mat.Dense) {
	o.LossGrad(grad, mu)
}

func scaled(f float64, m *mat.Dense) *mat.Dense {
	m.Scale(f, m)
	return m
}

// initialAccuracies builds μ₀ with μ₀[j·k+y, y] = clip(O_aa·prec_j / p_y, 0, 1)
// for a = j·k+y and every other entry zero.
func initialAccuracies(O *mat.SymDense, p, prec []float64, k int) *mat.Dense {
	d := O.SymmetricDim()
	mu0 := mat.NewDense(d, k, nil)
	for j := 0; j < d/k; j++ {
		for y := 0; y < k; y++ {
			a := j*k + y
			v := errors.ClipValue(errors.SafeDivide(O.At(a, a)*prec[j], p[y]), 0, 1)
			mu0.Set(a, y, v)
		}
	}
	return mu0
}

// validateClassBalance checks that p is a probability vector over k entries.
func validateClassBalance(p []float64, k int) error {
	if len(p) != k {
		return errors.NewValidationError("class_balance",
			"length must equal the number of feasible label vectors", len(p))
	}
	for _, v := range p {
		if v <= 0 {
			return errors.NewValidationError("class_balance", "entries must be positive", p)
		}
	}
	if !scalar.EqualWithinAbs(floats.Sum(p), 1, 1e-6) {
		return errors.NewValidationError("class_balance", "entries must sum to 1", floats.Sum(p))
	}
	return nil
}

func uniformClassBalance(k int) []float64 {
	p := make([]float64, k)
	for i := range p {
		p[i] = 1 / float64(k)
	}
	return p
}
