package labelmodel

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/weaksup/pkg/errors"
	"github.com/YuminosukeSato/weaksup/synthetic"
)

func testObjective(t *testing.T, m int, l2 float64) *Objective {
	t.Helper()
	fs := hierarchyFS(t)
	ds, err := synthetic.Generate(fs, synthetic.DefaultConfig(150, m, 21))
	require.NoError(t, err)
	O, err := EstimateOverlap(fs, ds.Matrices())
	require.NoError(t, err)

	k := fs.Len()
	p := uniformClassBalance(k)
	prec := make([]float64, m)
	for j := range prec {
		prec[j] = DefaultPrecisionInit
	}
	obj, err := NewObjective(O, p, initialAccuracies(O, p, prec, k), l2, k)
	require.NoError(t, err)
	return obj
}

func randomMu(d, k int, seed int64) *mat.Dense {
	rng := rand.New(rand.NewSource(seed))
	mu := mat.NewDense(d, k, nil)
	mu.Apply(func(_, _ int, _ float64) float64 { return rng.Float64() }, mu)
	return mu
}

func TestObjectiveGradientMatchesFiniteDifferences(t *testing.T) {
	for _, tc := range []struct {
		name string
		m    int
		l2   float64
	}{
		{"three labeling functions", 3, 0},
		{"with l2", 3, 0.5},
		{"single labeling function", 1, 0.1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			obj := testObjective(t, tc.m, tc.l2)
			d, k := obj.Mu0.Dims()
			mu := randomMu(d, k, 3)

			grad := mat.NewDense(d, k, nil)
			loss := obj.LossGrad(grad, mu)
			assert.InDelta(t, obj.Loss(mu), loss, 1e-15)

			const h = 1e-6
			for a := 0; a < d; a++ {
				for z := 0; z < k; z++ {
					orig := mu.At(a, z)
					mu.Set(a, z, orig+h)
					up := obj.Loss(mu)
					mu.Set(a, z, orig-h)
					down := obj.Loss(mu)
					mu.Set(a, z, orig)

					numeric := (up - down) / (2 * h)
					assert.InDelta(t, numeric, grad.At(a, z), 1e-7+1e-5*math.Abs(numeric), "∂J/∂μ(%d, %d)", a, z)
				}
			}
		})
	}
}

func TestObjectiveLossIsNonNegative(t *testing.T) {
	obj := testObjective(t, 4, 0.2)
	d, k := obj.Mu0.Dims()
	for seed := int64(0); seed < 5; seed++ {
		assert.GreaterOrEqual(t, obj.Loss(randomMu(d, k, seed)), 0.0)
	}
}

func TestInitialAccuracies(t *testing.T) {
	O := mat.NewSymDense(4, []float64{
		0.5, 0, 0, 0.25,
		0, 0.25, 0, 0.25,
		0, 0, 0, 0,
		0.25, 0.25, 0, 0.9,
	})
	p := []float64{0.5, 0.5}
	mu0 := initialAccuracies(O, p, []float64{0.7, 0.5}, 2)

	want := mat.NewDense(4, 2, []float64{
		0.7, 0, // 0.5·0.7/0.5
		0, 0.35, // 0.25·0.7/0.5
		0, 0, // abstaining column
		0, 0.9, // 0.9·0.5/0.5
	})
	assert.True(t, mat.EqualApprox(want, mu0, 1e-12), "got\n%v", mat.Formatted(mu0))

	clipped := initialAccuracies(O, p, []float64{1, 1}, 2)
	assert.Equal(t, 1.0, clipped.At(0, 0))
}

func TestNewObjectiveShapeChecks(t *testing.T) {
	O := mat.NewSymDense(4, nil)
	mu0 := mat.NewDense(4, 2, nil)

	_, err := NewObjective(O, []float64{0.5, 0.5}, mu0, 0, 3)
	var verr *errors.ValueError
	assert.True(t, errors.As(err, &verr))

	_, err = NewObjective(O, []float64{1}, mu0, 0, 2)
	var derr *errors.DimensionError
	assert.True(t, errors.As(err, &derr))

	_, err = NewObjective(O, []float64{0.5, 0.5}, mat.NewDense(2, 2, nil), 0, 2)
	assert.True(t, errors.As(err, &derr))
}

func TestValidateClassBalance(t *testing.T) {
	assert.NoError(t, validateClassBalance([]float64{0.25, 0.75}, 2))
	for _, p := range [][]float64{
		{1},
		{0, 1},
		{0.5, 0.6},
		{-0.5, 1.5},
	} {
		err := validateClassBalance(p, 2)
		var verr *errors.ValidationError
		assert.True(t, errors.As(err, &verr), "p=%v", p)
	}
}
