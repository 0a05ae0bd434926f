package optimizer

import "testing"

import "github.com/stretchr/testify/assert"
import "github.com/stretchr/testify/require"
import "gonum.org/v1/gonum/mat"

// quadratic is Σ (p - target)² with its gradient.
func quadratic(params []*mat.Dense, target float64) Objective {
	return func() (float64, []*mat.Dense, error) {
		var loss float64
		var grads []*mat.Dense
		for _, p := range params {
			r, c := p.Dims()
			g := mat.NewDense(r, c, nil)
			for i := 0; i < r; i++ {
				for j := 0; j < c; j++ {
					d := p.At(i, j) - target
					loss += d * d
					g.Set(i, j, 2*d)
				}
			}
			grads = append(grads, g)
		}
		return loss, grads, nil
	}
}

func TestAdamConverges(t *testing.T) {
	params := []*mat.Dense{
		mat.NewDense(2, 3, []float64{1, -1, 2, 0, 3, -2}),
		mat.NewDense(1, 3, []float64{0.5, 0.5, 0.5}),
	}
	f := quadratic(params, 0.25)
	opt := NewAdam(0.05, 0)
	first, _, _ := f()
	for i := 0; i < 500; i++ {
		_, grads, err := f()
		require.NoError(t, err)
		require.NoError(t, opt.Step(params, grads))
	}
	last, _, _ := f()
	assert.Less(t, last, first*1e-2)
	assert.Equal(t, 500, opt.Steps())
}

func TestAdamNilGradientOnlyDecays(t *testing.T) {
	p := mat.NewDense(1, 1, []float64{1})
	opt := NewAdam(0.1, 0)
	require.NoError(t, opt.Step([]*mat.Dense{p}, []*mat.Dense{nil}))
	assert.Equal(t, 1.0, p.At(0, 0))

	opt = NewAdam(0.1, 1e-2)
	require.NoError(t, opt.Step([]*mat.Dense{p}, []*mat.Dense{nil}))
	assert.Less(t, p.At(0, 0), 1.0)
}

func TestAdamShapeMismatch(t *testing.T) {
	opt := NewAdam(0.1, 0)
	err := opt.Step([]*mat.Dense{mat.NewDense(1, 2, nil)}, []*mat.Dense{mat.NewDense(2, 1, nil)})
	assert.Error(t, err)
}

func TestLBFGS(t *testing.T) {
	params := []*mat.Dense{mat.NewDense(2, 2, []float64{3, -3, 1, 7})}
	res, err := (&LBFGS{Iterations: 100}).Minimize(params, quadratic(params, -1))
	require.NoError(t, err)
	assert.Less(t, res.F, 1e-10)
	assert.InDeltaSlice(t, []float64{-1, -1, -1, -1}, params[0].RawMatrix().Data, 1e-5)
}

func TestFlattenRoundTrip(t *testing.T) {
	a := mat.NewDense(3, 3, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9})
	params := []*mat.Dense{a.Slice(0, 2, 1, 3).(*mat.Dense), mat.NewDense(1, 1, []float64{10})}
	x := Flatten(nil, params)
	assert.Equal(t, []float64{2, 3, 5, 6, 10}, x)

	x[0], x[4] = -2, -10
	Unflatten(params, x)
	assert.Equal(t, -2.0, a.At(0, 1))
	assert.Equal(t, -10.0, params[1].At(0, 0))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("lbfgs")
	require.NoError(t, err)
	assert.Equal(t, KindLBFGS, k)
	_, err = ParseKind("sgd")
	assert.ErrorIs(t, err, ErrUnknownOptimizer)
}
