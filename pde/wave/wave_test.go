package wave

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

// standing is a basis of the standing waves sin(mπx/L) sin(nπy/L) cos(ωt) at speed c,
// over the first modes odd m and n.
type standing struct {
	modes  int
	length float64
	speed  float64
}

func (s standing) Width() int { return s.modes * s.modes }

func (s standing) Features(x *mat.Dense, order int, coords ...int) (*feedforward.Features, error) {
	r, _ := x.Dims()
	w := s.Width()
	f := &feedforward.Features{H: mat.NewDense(r, w, nil)}
	if order >= 1 {
		f.D1 = map[int]*mat.Dense{}
	}
	if order >= 2 {
		f.D2 = map[int]*mat.Dense{}
	}
	for _, c := range coords {
		if f.D1 != nil {
			f.D1[c] = mat.NewDense(r, w, nil)
		}
		if f.D2 != nil {
			f.D2[c] = mat.NewDense(r, w, nil)
		}
	}
	for i := 0; i < r; i++ {
		t, xx, yy := x.At(i, 0), x.At(i, 1), x.At(i, 2)
		for a := 0; a < s.modes; a++ {
			for b := 0; b < s.modes; b++ {
				k := a*s.modes + b
				kx := float64(2*a+1) * math.Pi / s.length
				ky := float64(2*b+1) * math.Pi / s.length
				om := math.Sqrt(s.speed) * math.Hypot(kx, ky)
				sx, sy, ct := math.Sin(kx*xx), math.Sin(ky*yy), math.Cos(om*t)
				v := sx * sy * ct
				f.H.Set(i, k, v)
				d1 := map[int]float64{
					0: -om * sx * sy * math.Sin(om*t),
					1: kx * math.Cos(kx*xx) * sy * ct,
					2: ky * sx * math.Cos(ky*yy) * ct,
				}
				d2 := map[int]float64{0: -om * om * v, 1: -kx * kx * v, 2: -ky * ky * v}
				for _, c := range coords {
					if f.D1 != nil {
						f.D1[c].Set(i, k, d1[c])
					}
					if f.D2 != nil {
						f.D2[c].Set(i, k, d2[c])
					}
				}
			}
		}
	}
	return f, nil
}

func small() Params {
	p := DefaultParams()
	p.Hidden = 6
	p.TrainGrid = 8
	p.Batch = 30
	p.Boundary = 10
	p.TestGrid = 5
	p.Interior = 300
	p.Initial = 200
	p.Edge = 30
	p.EvalGrid = 12
	p.Modes = 3
	return p
}

func TestReferenceSolvesEquation(t *testing.T) {
	// few modes keep the finite difference truncation error of the fast modes small
	prob, err := New(small())
	require.NoError(t, err)
	c := prob.TransferSpeed
	settings := &fd.Settings{Formula: fd.Central2nd, Step: 1e-3}
	for _, pt := range [][3]float64{{0.3, 1, 2}, {1.7, 2.5, 2.5}, {4, 4.1, 0.6}} {
		tt, x, y := pt[0], pt[1], pt[2]
		utt := fd.Derivative(func(v float64) float64 { return prob.Reference(c, v, x, y) }, tt, settings)
		uxx := fd.Derivative(func(v float64) float64 { return prob.Reference(c, tt, v, y) }, x, settings)
		uyy := fd.Derivative(func(v float64) float64 { return prob.Reference(c, tt, x, v) }, y, settings)
		assert.InDelta(t, 0, utt-c*(uxx+uyy), 1e-4)
	}
}

func TestReferenceInitialData(t *testing.T) {
	prob, err := New(DefaultParams())
	require.NoError(t, err)
	c := prob.TransferSpeed
	central := &fd.Settings{Formula: fd.Central, Step: 1e-4}
	for _, x := range grid.Linspace(0, 5, 6) {
		for _, y := range grid.Linspace(0, 5, 6) {
			assert.InDelta(t, prob.Impulse(x, y), prob.Reference(c, 0, x, y), 0.02)
			v := fd.Derivative(func(s float64) float64 { return prob.Reference(c, s, x, y) }, 0, central)
			assert.InDelta(t, 0, v, 1e-6)
		}
		assert.InDelta(t, 0, prob.Reference(c, 1.3, x, 5), 1e-12)
		assert.InDelta(t, 0, prob.Reference(c, 2.1, 0, x), 1e-12)
	}
}

func TestSource(t *testing.T) {
	s := Source{Amplitude: 10, SigmaX: 0.1, SigmaT: 0.1}
	assert.InDelta(t, 10, s.At(0, 0), 1e-12)
	assert.InDelta(t, 10*math.Exp(-0.5), s.At(0, 0.1), 1e-12)
	assert.InDelta(t, 10*math.Exp(-0.5), s.At(0.1, 0), 1e-12)

	// a rotation by π/2 swaps the widths
	s = Source{Amplitude: 1, SigmaX: 0.1, SigmaT: 0.5}
	r := s
	r.Theta = math.Pi / 2
	r.SigmaX, r.SigmaT = 0.5, 0.1
	assert.InDelta(t, s.At(0.2, 0.05), r.At(0.2, 0.05), 1e-12)
	assert.Zero(t, Source{}.At(0, 0))
}

func TestTransferWithStandingWaves(t *testing.T) {
	p := small()
	prob, err := New(p)
	require.NoError(t, err)
	basis := standing{modes: p.Modes, length: p.Length, speed: p.TransferSpeed}

	sols, err := prob.Transfer(basis, grid.NewRand(33), closedform.NormalEquations, closedform.LeastSquares)
	require.NoError(t, err)
	require.Len(t, sols, 2)
	for _, sol := range sols {
		for _, name := range append([]string{"equation", "velocity"}, wallNames[:]...) {
			assert.Less(t, sol.Report.Residual(name), 1e-8, "%s %s", sol.Method, name)
		}
		assert.Less(t, sol.Report.Residual("initial"), 1.0, sol.Method)
		mse, _, err := sol.Errors()
		require.NoError(t, err)
		assert.Less(t, mse, 1.0, sol.Method)
		r, _ := sol.Pred.Dims()
		assert.Equal(t, len(p.Snapshots)*p.EvalGrid*p.EvalGrid, r)
	}
}

func TestTransferWithSourceHasNoReference(t *testing.T) {
	p := small()
	p.Source.Amplitude = 10
	prob, err := New(p)
	require.NoError(t, err)
	sols, err := prob.Transfer(standing{modes: 2, length: p.Length, speed: 1}, grid.NewRand(1), closedform.LeastSquares)
	require.NoError(t, err)
	_, _, err = sols[0].Errors()
	assert.ErrorIs(t, err, pde.ErrNoReference)
	files, err := prob.Plot(sols[0], t.TempDir())
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestLossOnNetwork(t *testing.T) {
	prob, err := New(small())
	require.NoError(t, err)
	net := prob.NewNetwork(1)
	assert.Equal(t, 3, net.Inputs())
	assert.False(t, net.OutputBias())

	g := autograd.New()
	b := net.Bind(g, true)
	batch := prob.Sample(grid.NewRand(1))
	r, c := batch["interior"].Dims()
	assert.Equal(t, 30, r)
	assert.Equal(t, 3, c)
	for _, name := range wallNames {
		r, _ := batch[name].Dims()
		assert.Equal(t, 10, r, name)
	}
	assert.Equal(t, 0.0, mat.Max(batch["initial"].ColView(0)))

	loss, err := prob.Loss(b, batch)
	require.NoError(t, err)
	assert.InDelta(t, loss.Equation.Scalar()+loss.Conditions.Scalar(), loss.Total.Scalar(), 1e-9)
	require.NoError(t, g.Backward(loss.Total))
	for _, param := range b.Params() {
		assert.NotNil(t, param.Grad)
	}

	res, err := prob.TestResidual(net)
	require.NoError(t, err)
	assert.Greater(t, res, 0.0)
}

func TestValidate(t *testing.T) {
	p := DefaultParams()
	p.TransferSpeed = 0
	_, err := New(p)
	assert.ErrorIs(t, err, pde.ErrParams)

	p = DefaultParams()
	p.Source.Amplitude = 1
	p.Source.SigmaT = 0
	assert.ErrorIs(t, p.Validate(), pde.ErrParams)
}

func TestFigures(t *testing.T) {
	prob, err := New(small())
	require.NoError(t, err)
	net := prob.NewNetwork(2)
	dir := t.TempDir()

	var h pde.History
	h.Equation = []float64{3, 2, 1}
	h.Conditions = []float64{1, 1, 0.5}
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
