package helmholtz

import "math"
import "os"
import "testing"

import "github.com/stretchr/testify/assert"
import "github.com/stretchr/testify/require"
import "gonum.org/v1/gonum/diff/fd"
import "gonum.org/v1/gonum/mat"

import "github.com/neurlang/pinn/autograd"
import "github.com/neurlang/pinn/closedform"
import "github.com/neurlang/pinn/grid"
import "github.com/neurlang/pinn/net/feedforward"
import "github.com/neurlang/pinn/pde"

// modes is a basis of sin(kπx) sin(kπt), k = 1..n.
type modes int

func (m modes) Width() int { return int(m) }

func (m modes) Features(x *mat.Dense, order int, coords ...int) (*feedforward.Features, error) {
	r, _ := x.Dims()
	n := int(m)
	f := &feedforward.Features{H: mat.NewDense(r, n, nil)}
	if order >= 1 {
		f.D1 = map[int]*mat.Dense{}
	}
	if order >= 2 {
		f.D2 = map[int]*mat.Dense{}
	}
	for _, c := range coords {
		if f.D1 != nil {
			f.D1[c] = mat.NewDense(r, n, nil)
		}
		if f.D2 != nil {
			f.D2[c] = mat.NewDense(r, n, nil)
		}
	}
	for i := 0; i < r; i++ {
		t, xx := x.At(i, 0), x.At(i, 1)
		for k := 0; k < n; k++ {
			kp := float64(k+1) * math.Pi
			v := Mode(float64(k+1), t, xx)
			f.H.Set(i, k, v)
			for _, c := range coords {
				if f.D1 != nil {
					if c == 0 {
						f.D1[c].Set(i, k, kp*math.Sin(kp*xx)*math.Cos(kp*t))
					} else {
						f.D1[c].Set(i, k, kp*math.Cos(kp*xx)*math.Sin(kp*t))
					}
				}
				if f.D2 != nil {
					f.D2[c].Set(i, k, -kp*kp*v)
				}
			}
		}
	}
	return f, nil
}

func small() Params {
	p := DefaultParams()
	p.Hidden = 8
	p.TrainGrid = 20
	p.Batch = 40
	p.EdgePoints = 10
	p.TestGrid = 12
	p.Interior = 200
	p.Edge = 20
	p.EvalGrid = 30
	return p
}

func TestReferenceSolvesEquation(t *testing.T) {
	prob, err := New(DefaultParams())
	require.NoError(t, err)
	settings := &fd.Settings{Formula: fd.Central2nd, Step: 1e-4}
	for _, pt := range [][2]float64{{0.1, 0.2}, {0.5, 0.5}, {0.73, 0.31}} {
		tt, x := pt[0], pt[1]
		utt := fd.Derivative(func(v float64) float64 { return prob.Reference(v, x) }, tt, settings)
		uxx := fd.Derivative(func(v float64) float64 { return prob.Reference(tt, v) }, x, settings)
		assert.InDelta(t, prob.Forcing(tt, x), utt+uxx, 1e-5)
	}
	for _, v := range grid.Linspace(0, 1, 7) {
		assert.InDelta(t, 0, prob.Reference(0, v), 1e-15)
		assert.InDelta(t, 0, prob.Reference(v, 1), 1e-15)
	}
}

func TestTransferRecoversReferenceInSpan(t *testing.T) {
	p := small()
	p.Ridge = 1e-12
	prob, err := New(p)
	require.NoError(t, err)

	sols, err := prob.Transfer(modes(4), grid.NewRand(33), closedform.NormalEquations, closedform.LeastSquares)
	require.NoError(t, err)
	require.Len(t, sols, 2)
	for _, sol := range sols {
		mse, _, err := sol.Errors()
		require.NoError(t, err)
		assert.Less(t, mse, 1e-14, sol.Method)
		assert.Less(t, sol.Report.Residual("equation"), 1e-6, sol.Method)
		r, c := sol.Weights.Dims()
		assert.Equal(t, 5, r)
		assert.Equal(t, 1, c)
		// the last weight is the bias
		assert.InDelta(t, 0, sol.Weights.At(4, 0), 1e-6)
	}
}

func TestMethodsShareRidge(t *testing.T) {
	p := small()
	require.Equal(t, 2.0, p.Ridge)
	prob, err := New(p)
	require.NoError(t, err)

	sols, err := prob.Transfer(modes(4), grid.NewRand(5), closedform.NormalEquations, closedform.LeastSquares)
	require.NoError(t, err)
	require.Len(t, sols, 2)
	assert.True(t, mat.EqualApprox(sols[0].Weights, sols[1].Weights, 1e-8))
	// the ridge shrinks the weights away from the exact fit
	assert.Greater(t, sols[0].Report.Residual("equation"), 1e-6)
}

func TestLossOnNetwork(t *testing.T) {
	prob, err := New(small())
	require.NoError(t, err)
	net := prob.NewNetwork(1)
	assert.Equal(t, Name, net.Meta.Problem)
	assert.Equal(t, 4, net.Outputs())
	assert.True(t, net.OutputBias())

	g := autograd.New()
	b := net.Bind(g, true)
	loss, err := prob.Loss(b, prob.Sample(grid.NewRand(1)))
	require.NoError(t, err)
	assert.InDelta(t, loss.Equation.Scalar()+loss.Conditions.Scalar(), loss.Total.Scalar(), 1e-12)
	require.NoError(t, g.Backward(loss.Total))
	for _, param := range b.Params() {
		assert.NotNil(t, param.Grad)
	}

	res, err := prob.TestResidual(net)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(res))
	assert.Greater(t, res, 0.0)
}

func TestSampleShapes(t *testing.T) {
	prob, err := New(small())
	require.NoError(t, err)
	b := prob.Sample(grid.NewRand(2))
	r, c := b["interior"].Dims()
	assert.Equal(t, 40, r)
	assert.Equal(t, 2, c)
	for _, name := range edgeNames {
		r, _ := b[name].Dims()
		assert.Equal(t, 10, r, name)
	}
}

func TestValidate(t *testing.T) {
	p := DefaultParams()
	p.Edge = 0
	_, err := New(p)
	assert.ErrorIs(t, err, pde.ErrParams)

	p = DefaultParams()
	p.Coefficients = nil
	assert.ErrorIs(t, p.Validate(), pde.ErrParams)
}

func TestFigures(t *testing.T) {
	prob, err := New(small())
	require.NoError(t, err)
	net := prob.NewNetwork(3)
	dir := t.TempDir()

	var h pde.History
	h.Equation = []float64{1, 0.5, 0.25}
	h.Conditions = []float64{0.1, 0.05, 0}
	h.AddResidual(2, 0.3)
	files, err := prob.Visualize(net, &h, dir)
	require.NoError(t, err)

	sols, err := prob.Transfer(net, grid.NewRand(4), closedform.LeastSquares)
	require.NoError(t, err)
	plots, err := prob.Plot(sols[0], dir)
	require.NoError(t, err)

	for _, f := range append(files, plots...) {
		st, err := os.Stat(f)
		require.NoError(t, err)
		assert.Greater(t, st.Size(), int64(0))
	}
}
