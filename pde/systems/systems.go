// Package systems solves two masses coupled by springs, M y'' + C y' + K y = 0, with
// given initial positions and velocities.
package systems

import "math"
import "math/rand/v2"
import "path/filepath"
import "time"

import "github.com/pkg/errors"
import "gonum.org/v1/gonum/mat"
import "gonum.org/v1/plot"

import "github.com/neurlang/pinn/closedform"
import "github.com/neurlang/pinn/grid"
import "github.com/neurlang/pinn/net/feedforward"
import "github.com/neurlang/pinn/pde"
import "github.com/neurlang/pinn/viz"

// Name is the problem name stored in checkpoints.
const Name = "systems"

// Params configures the experiment.
type Params struct {
	Hidden int     `mapstructure:"hidden_size"`
	Layers int     `mapstructure:"layers"`
	TMax   float64 `mapstructure:"tmax"`
	Dt     float64 `mapstructure:"dt"`

	Y0 []float64 `mapstructure:"y0"`
	V0 []float64 `mapstructure:"v0"`

	Train    Oscillator `mapstructure:"train"`
	Transfer Oscillator `mapstructure:"transfer"`

	Ridge      float64 `mapstructure:"ridge"`
	RCond      float64 `mapstructure:"rcond"`
	Components int     `mapstructure:"components"`
}

// DefaultParams returns the parameters of the reference experiment.
func DefaultParams() Params {
	return Params{
		Hidden:     100,
		Layers:     2,
		TMax:       6,
		Dt:         0.1,
		Y0:         []float64{1, 1},
		V0:         []float64{1, 3},
		Train:      Oscillator{Masses: []float64{1, 1}, Springs: []float64{0.5, 0.5}, Damping: []float64{0, 0}},
		Transfer:   Oscillator{Masses: []float64{5, 1}, Springs: []float64{0.5, 0.5}, Damping: []float64{0, 0}},
		Components: 3,
	}
}

// Validate reports parameters that cannot produce a problem.
func (p Params) Validate() error {
	if p.Hidden <= 0 {
		return errors.Wrapf(pde.ErrParams, "%s.hidden_size must be positive, got %d", Name, p.Hidden)
	}
	if p.TMax <= 0 || p.Dt <= 0 || p.Dt >= p.TMax {
		return errors.Wrapf(pde.ErrParams, "%s time grid tmax=%g dt=%g", Name, p.TMax, p.Dt)
	}
	if len(p.Y0) != Dim || len(p.V0) != Dim {
		return errors.Wrapf(pde.ErrParams, "%s initial data needs %d values", Name, Dim)
	}
	if err := p.Train.validate("train"); err != nil {
		return err
	}
	if err := p.Transfer.validate("transfer"); err != nil {
		return err
	}
	if p.Ridge < 0 {
		return errors.Wrapf(pde.ErrParams, "%s.ridge is negative", Name)
	}
	return nil
}

// Problem is the coupled oscillator experiment.
type Problem struct {
	Params

	times []float64
}

var _ pde.Problem = (*Problem)(nil)

// New returns the experiment for p.
func New(p Params) (*Problem, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Problem{Params: p, times: grid.Arange(0, p.TMax, p.Dt)}, nil
}

func (p *Problem) Name() string {
	return Name
}

// Times returns the evaluation grid 0, dt, ... below tmax.
func (p *Problem) Times() []float64 {
	return p.times
}

// NewNetwork returns a network of t with tanh activations and one unbiased output per mass.
func (p *Problem) NewNetwork(seed uint64) *feedforward.Network {
	var net feedforward.Network
	net.Seed(seed)
	in := 1
	for i := 0; i < max(p.Layers, 1); i++ {
		net.NewLayer(in, p.Hidden, feedforward.Tanh)
		in = p.Hidden
	}
	net.NewOutput(p.Hidden, Dim, false)
	net.Meta.Problem = Name
	return &net
}

// Sample draws tmax/dt uniform times and prepends t = 0.
func (p *Problem) Sample(rng *rand.Rand) pde.Batch {
	n := int(math.Round(p.TMax / p.Dt))
	ts := make([]float64, n+1)
	for i := 1; i <= n; i++ {
		ts[i] = p.TMax * rng.Float64()
	}
	return pde.Batch{"interior": grid.Column(ts), "t0": mat.NewDense(1, 1, nil)}
}

// Loss is the mean squared residual of M y'' + C y' + K y with the training oscillator
// plus the squared initial position and velocity errors.
func (p *Problem) Loss(b *feedforward.Bound, batch pde.Batch) (*pde.Loss, error) {
	g := b.Graph()
	j, err := b.Forward(batch["interior"], 2, 0)
	if err != nil {
		return nil, err
	}
	m, c, k := p.Train.Matrices()
	res := g.Add(g.MatMul(j.D2[0], g.Const(mat.DenseCopyOf(m.T()))), g.MatMul(j.Value, g.Const(mat.DenseCopyOf(k.T()))))
	if !mat.Equal(c, mat.NewDense(Dim, Dim, nil)) {
		res = g.Add(res, g.MatMul(j.D1[0], g.Const(mat.DenseCopyOf(c.T()))))
	}
	eq := g.MeanSquare(res)

	ic, err := b.Forward(batch["t0"], 1, 0)
	if err != nil {
		return nil, err
	}
	cond := g.Add(
		pde.MeanSquareError(g, ic.Value, mat.NewDense(1, Dim, p.Y0)),
		pde.MeanSquareError(g, ic.D1[0], mat.NewDense(1, Dim, p.V0)),
	)
	if err := g.Err(); err != nil {
		return nil, err
	}
	return &pde.Loss{Total: g.Add(eq, cond), Equation: eq, Conditions: cond}, nil
}

// TestResidual is the training objective evaluated on the evaluation grid. The initial
// condition terms are included since y = 0 solves the equation alone.
func (p *Problem) TestResidual(net *feedforward.Network) (float64, error) {
	f, err := net.Evaluate(grid.Column(p.times), 2, 0)
	if err != nil {
		return 0, err
	}
	m, c, k := p.Train.Matrices()
	var res, tmp mat.Dense
	res.Mul(f.Dxx(0), m.T())
	tmp.Mul(f.Dx(0), c.T())
	res.Add(&res, &tmp)
	tmp.Mul(f.H, k.T())
	res.Add(&res, &tmp)

	var y0, v0 mat.Dense
	y0.Sub(f.H.Slice(0, 1, 0, Dim), mat.NewDense(1, Dim, p.Y0))
	v0.Sub(f.Dx(0).Slice(0, 1, 0, Dim), mat.NewDense(1, Dim, p.V0))
	return pde.MeanSquare(&res) + pde.MeanSquare(&y0) + pde.MeanSquare(&v0), nil
}

// Transfer fits one weight column per mass for the transfer oscillator. Rows hold
// blockdiag(H'', H'') + (M⁻¹C ⊗ I) blockdiag(H', H') + (M⁻¹K ⊗ I) blockdiag(H, H) and the
// basis and its derivative at t = 0.
func (p *Problem) Transfer(basis pde.Basis, rng *rand.Rand, methods ...closedform.Method) ([]*pde.Solution, error) {
	start := time.Now()
	ts := grid.Column(p.times)
	n := len(p.times)
	f, err := basis.Features(ts, 2, 0)
	if err != nil {
		return nil, err
	}
	stiff, damp, err := p.Params.Transfer.Operators()
	if err != nil {
		return nil, err
	}
	h, hd, hdd := f.H, f.Dx(0), f.Dxx(0)
	width := basis.Width()

	dh := closedform.BlockDiag(hdd, hdd)
	var tmp mat.Dense
	tmp.Mul(closedform.KronIdentity(damp, n), closedform.BlockDiag(hd, hd))
	dh.Add(dh, &tmp)
	tmp.Mul(closedform.KronIdentity(stiff, n), closedform.BlockDiag(h, h))
	dh.Add(dh, &tmp)

	h0, hd0 := h.Slice(0, 1, 0, width), hd.Slice(0, 1, 0, width)
	sys := closedform.System{Ridge: p.Ridge, RCond: p.RCond}
	sys.Add("equation", dh, mat.NewDense(Dim*n, 1, nil), 1)
	sys.Add("position", closedform.BlockDiag(h0, h0), grid.Column(p.Y0), 1)
	sys.Add("velocity", closedform.BlockDiag(hd0, hd0), grid.Column(p.V0), 1)
	assembled := time.Since(start)

	ref, err := p.Params.Transfer.Trajectory(p.Y0, p.V0, p.times)
	if err != nil {
		return nil, err
	}
	extra := map[string]*mat.Dense{"hidden": h}
	if p.Components > 0 {
		pca, err := Principal(h, p.Components)
		if err != nil {
			return nil, err
		}
		extra["pca"] = pca
	}

	var out []*pde.Solution
	for _, m := range methods {
		t := time.Now()
		w, err := sys.Solve(m)
		if err != nil {
			return nil, err
		}
		elapsed := assembled + time.Since(t)
		rep, err := sys.Report(m, w)
		if err != nil {
			return nil, err
		}
		out = append(out, &pde.Solution{
			Problem: Name,
			Method:  m,
			Weights: w,
			Points:  ts,
			Pred:    closedform.Apply(h, closedform.SplitColumns(w, Dim)),
			Ref:     ref,
			Report:  rep,
			Elapsed: elapsed,
			Extra:   extra,
		})
	}
	return out, nil
}

func trajectories(ts []float64, pred, ref *mat.Dense) []viz.Series {
	var series []viz.Series
	for i := 0; i < Dim; i++ {
		series = append(series, viz.NewSeries("y"+string(rune('1'+i)), ts, mat.Col(nil, i, pred)))
	}
	if ref != nil {
		for i := 0; i < Dim; i++ {
			s := viz.NewSeries("true y"+string(rune('1'+i)), ts, mat.Col(nil, i, ref))
			s.Dashed = true
			series = append(series, s)
		}
	}
	return series
}

// Visualize draws the network trajectory against the training reference and the loss
// history.
func (p *Problem) Visualize(net *feedforward.Network, history *pde.History, dir string) ([]string, error) {
	f, err := net.Evaluate(grid.Column(p.times), 0)
	if err != nil {
		return nil, err
	}
	ref, err := p.Train.Trajectory(p.Y0, p.V0, p.times)
	if err != nil {
		return nil, err
	}
	traj, err := viz.Lines(viz.Labels{Title: "trajectories", X: "t", Y: "y"}, false, trajectories(p.times, f.H, ref)...)
	if err != nil {
		return nil, err
	}
	panels := []*plot.Plot{traj}
	loss, err := history.Panel()
	if err != nil {
		return nil, err
	}
	if loss != nil {
		panels = append(panels, loss)
	}
	name, err := viz.Save(filepath.Join(dir, Name+"_train.png"), panels...)
	if err != nil {
		return nil, err
	}
	return []string{name}, nil
}

// Plot draws the transferred trajectories, the squared error over time and the principal
// components of the hidden trajectory.
func (p *Problem) Plot(sol *pde.Solution, dir string) ([]string, error) {
	ts := p.times
	traj, err := viz.Lines(viz.Labels{Title: "trajectories " + string(sol.Method), X: "t", Y: "y"}, false,
		trajectories(ts, sol.Pred, sol.Ref)...)
	if err != nil {
		return nil, err
	}
	panels := []*plot.Plot{traj}
	if sol.Ref != nil {
		var sq mat.Dense
		sq.Sub(sol.Pred, sol.Ref)
		sq.MulElem(&sq, &sq)
		var series []viz.Series
		for i := 0; i < Dim; i++ {
			series = append(series, viz.NewSeries("y"+string(rune('1'+i)), ts, mat.Col(nil, i, &sq)))
		}
		e, err := viz.Lines(viz.Labels{Title: "squared error", X: "t"}, true, series...)
		if err != nil {
			return nil, err
		}
		panels = append(panels, e)
	}
	if pca := sol.Extra["pca"]; pca != nil {
		_, k := pca.Dims()
		var series []viz.Series
		for i := 0; i < k; i++ {
			series = append(series, viz.NewSeries("comp"+string(rune('1'+i)), ts, mat.Col(nil, i, pca)))
		}
		comps, err := viz.Lines(viz.Labels{Title: "principal components", X: "t"}, false, series...)
		if err != nil {
			return nil, err
		}
		panels = append(panels, comps)
		if k >= 2 {
			path, err := viz.Trajectory(viz.Labels{Title: "hidden trajectory", X: "comp1", Y: "comp2"},
				mat.Col(nil, 0, pca), mat.Col(nil, 1, pca), len(ts)/10)
			if err != nil {
				return nil, err
			}
			panels = append(panels, path)
		}
	}
	name, err := viz.Save(filepath.Join(dir, Name+"_"+string(sol.Method)+".png"), panels...)
	if err != nil {
		return nil, err
	}
	return []string{name}, nil
}
