// Package wave solves u_tt = c (u_xx + u_yy) + rho on a square membrane of side L
// clamped at its walls, released from the displacement x y (L-x)(L-y) at rest.
package wave

import "fmt"
import "math"
import "math/rand/v2"
import "path/filepath"
import "time"

import "github.com/pkg/errors"
import "gonum.org/v1/gonum/mat"
import "gonum.org/v1/plot"

import "github.com/neurlang/pinn/autograd"
import "github.com/neurlang/pinn/closedform"
import "github.com/neurlang/pinn/grid"
import "github.com/neurlang/pinn/net/feedforward"
import "github.com/neurlang/pinn/pde"
import "github.com/neurlang/pinn/viz"

// Name is the problem name stored in checkpoints.
const Name = "wave"

// Source is a rotated Gaussian A exp(-(a dx² + 2b dx dt + c dt²)) in the (x, t) plane.
type Source struct {
	Amplitude float64 `mapstructure:"amplitude"`
	T0        float64 `mapstructure:"t0"`
	X0        float64 `mapstructure:"x0"`
	SigmaX    float64 `mapstructure:"sigma_x"`
	SigmaT    float64 `mapstructure:"sigma_t"`
	Theta     float64 `mapstructure:"theta"`
}

// At evaluates the source.
func (s Source) At(t, x float64) float64 {
	if s.Amplitude == 0 {
		return 0
	}
	cos2, sin2 := math.Cos(s.Theta)*math.Cos(s.Theta), math.Sin(s.Theta)*math.Sin(s.Theta)
	sx2, st2 := s.SigmaX*s.SigmaX, s.SigmaT*s.SigmaT
	a := cos2/(2*sx2) + sin2/(2*st2)
	b := -math.Sin(2*s.Theta)/(4*sx2) + math.Sin(2*s.Theta)/(4*st2)
	c := sin2/(2*sx2) + cos2/(2*st2)
	dx, dt := x-s.X0, t-s.T0
	return s.Amplitude * math.Exp(-(a*dx*dx + 2*b*dx*dt + c*dt*dt))
}

// Params configures the experiment.
type Params struct {
	Hidden int     `mapstructure:"hidden_size"`
	Layers int     `mapstructure:"layers"`
	Length float64 `mapstructure:"length"`
	TMax   float64 `mapstructure:"tmax"`

	// training
	Speed         float64 `mapstructure:"speed"`
	TrainGrid     int     `mapstructure:"train_grid"`
	Batch         int     `mapstructure:"bs"`
	Boundary      int     `mapstructure:"boundary"`
	InitialWeight float64 `mapstructure:"initial_weight"`
	TestGrid      int     `mapstructure:"test_grid"`

	// transfer
	TransferSpeed float64   `mapstructure:"transfer_speed"`
	Source        Source    `mapstructure:"source"`
	Interior      int       `mapstructure:"interior"`
	Initial       int       `mapstructure:"initial"`
	Edge          int       `mapstructure:"edge"`
	Ridge         float64   `mapstructure:"ridge"`
	RCond         float64   `mapstructure:"rcond"`
	EvalGrid      int       `mapstructure:"eval_grid"`
	Snapshots     []float64 `mapstructure:"snapshots"`
	Modes         int       `mapstructure:"modes"`
}

// DefaultParams returns the parameters of the reference experiment.
func DefaultParams() Params {
	return Params{
		Hidden:        50,
		Layers:        2,
		Length:        5,
		TMax:          2 * math.Pi,
		Speed:         1,
		TrainGrid:     50,
		Batch:         500,
		Boundary:      500,
		InitialWeight: 3,
		TestGrid:      20,
		TransferSpeed: 3,
		Source:        Source{SigmaX: 0.1, SigmaT: 0.1},
		Interior:      2000,
		Initial:       500,
		Edge:          200,
		EvalGrid:      50,
		Snapshots:     []float64{0, math.Pi / 2, math.Pi},
		Modes:         25,
	}
}

// Validate reports parameters that cannot produce a problem.
func (p Params) Validate() error {
	for _, v := range []struct {
		name string
		n    int
	}{
		{"hidden_size", p.Hidden}, {"train_grid", p.TrainGrid}, {"bs", p.Batch},
		{"boundary", p.Boundary}, {"test_grid", p.TestGrid}, {"interior", p.Interior},
		{"initial", p.Initial}, {"edge", p.Edge}, {"eval_grid", p.EvalGrid}, {"modes", p.Modes},
	} {
		if v.n <= 0 {
			return errors.Wrapf(pde.ErrParams, "%s.%s must be positive, got %d", Name, v.name, v.n)
		}
	}
	if p.Length <= 0 || p.TMax <= 0 {
		return errors.Wrapf(pde.ErrParams, "%s domain %g x %g is empty", Name, p.Length, p.TMax)
	}
	if p.Speed <= 0 || p.TransferSpeed <= 0 {
		return errors.Wrapf(pde.ErrParams, "%s wave speed must be positive", Name)
	}
	if p.Source.Amplitude != 0 && (p.Source.SigmaX <= 0 || p.Source.SigmaT <= 0) {
		return errors.Wrapf(pde.ErrParams, "%s.source widths must be positive", Name)
	}
	if len(p.Snapshots) == 0 {
		return errors.Wrapf(pde.ErrParams, "%s.snapshots is empty", Name)
	}
	if p.Ridge < 0 {
		return errors.Wrapf(pde.ErrParams, "%s.ridge is negative", Name)
	}
	return nil
}

// Problem is the wave experiment.
type Problem struct {
	Params

	train   *mat.Dense
	initial *mat.Dense
	walls   [4]*mat.Dense
	test    *mat.Dense
}

var _ pde.Problem = (*Problem)(nil)

var wallNames = [4]string{"x0", "x1", "y0", "y1"}

// New returns the experiment for p.
func New(p Params) (*Problem, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	ts := grid.Linspace(0, p.TMax, p.TrainGrid)
	xs := grid.Linspace(0, p.Length, p.TrainGrid)
	test := grid.Linspace(0, p.Length, p.TestGrid)
	return &Problem{
		Params:  p,
		train:   grid.Mesh3(ts, xs, xs),
		initial: grid.Mesh3([]float64{0}, xs, xs),
		walls: [4]*mat.Dense{
			grid.Mesh3(ts, []float64{0}, xs),
			grid.Mesh3(ts, []float64{p.Length}, xs),
			grid.Mesh3(ts, xs, []float64{0}),
			grid.Mesh3(ts, xs, []float64{p.Length}),
		},
		test: grid.Mesh3(grid.Linspace(0, p.TMax, p.TestGrid), test, test),
	}, nil
}

func (p *Problem) Name() string {
	return Name
}

// NewNetwork returns a (t, x, y) network with tanh activations and one unbiased output.
func (p *Problem) NewNetwork(seed uint64) *feedforward.Network {
	var net feedforward.Network
	net.Seed(seed)
	in := 3
	for i := 0; i < max(p.Layers, 1); i++ {
		net.NewLayer(in, p.Hidden, feedforward.Tanh)
		in = p.Hidden
	}
	net.NewOutput(p.Hidden, 1, false)
	net.Meta.Problem = Name
	return &net
}

// Impulse is the initial displacement x y (L-x)(L-y).
func (p *Problem) Impulse(x, y float64) float64 {
	return x * y * (p.Length - x) * (p.Length - y)
}

// Reference is the homogeneous solution with wave speed c, summed over the first Modes
// odd sine modes per axis.
func (p *Problem) Reference(c, t, x, y float64) float64 {
	l := p.Length
	var s float64
	for i := 0; i < p.Modes; i++ {
		m := float64(2*i + 1)
		bm := 8 * l * l / math.Pow(m*math.Pi, 3) * math.Sin(m*math.Pi*x/l)
		for j := 0; j < p.Modes; j++ {
			n := float64(2*j + 1)
			bn := 8 * l * l / math.Pow(n*math.Pi, 3) * math.Sin(n*math.Pi*y/l)
			omega := math.Sqrt(c) * math.Pi * math.Hypot(m, n) / l
			s += bm * bn * math.Cos(omega*t)
		}
	}
	return s
}

func (p *Problem) impulses(pts *mat.Dense) *mat.Dense {
	return pde.Column(pts, func(r []float64) float64 {
		return p.Impulse(r[1], r[2])
	})
}

// Sample draws interior points from the training grid with replacement, and boundary
// points from the initial plane and each wall.
func (p *Problem) Sample(rng *rand.Rand) pde.Batch {
	r, _ := p.train.Dims()
	b := pde.Batch{
		"interior": grid.Rows(p.train, grid.Draw(rng, r, p.Batch)),
		"initial":  grid.Sample(rng, p.initial, p.Boundary),
	}
	for i, name := range wallNames {
		b[name] = grid.Sample(rng, p.walls[i], p.Boundary)
	}
	return b
}

func (p *Problem) residual(g *autograd.Graph, j *feedforward.Jet, c float64) *autograd.Node {
	return g.Sub(j.D2[0], g.Scale(g.Add(j.D2[1], j.D2[2]), c))
}

// Loss is the homogeneous equation residual at the training speed plus the weighted
// initial displacement, the initial velocity and the wall values.
func (p *Problem) Loss(b *feedforward.Bound, batch pde.Batch) (*pde.Loss, error) {
	g := b.Graph()
	j, err := b.Forward(batch["interior"], 2, 0, 1, 2)
	if err != nil {
		return nil, err
	}
	eq := g.MeanSquare(p.residual(g, j, p.Speed))

	x0 := batch["initial"]
	ic, err := b.Forward(x0, 1, 0)
	if err != nil {
		return nil, err
	}
	cond := g.Scale(pde.MeanSquareError(g, ic.Value, p.impulses(x0)), p.InitialWeight)
	cond = g.Add(cond, g.MeanSquare(ic.D1[0]))
	for _, name := range wallNames {
		w, err := b.Forward(batch[name], 0)
		if err != nil {
			return nil, err
		}
		cond = g.Add(cond, g.MeanSquare(w.Value))
	}
	if err := g.Err(); err != nil {
		return nil, err
	}
	return &pde.Loss{Total: g.Add(eq, cond), Equation: eq, Conditions: cond}, nil
}

// TestResidual is the mean squared homogeneous equation residual on the test grid.
func (p *Problem) TestResidual(net *feedforward.Network) (float64, error) {
	f, err := net.Evaluate(p.test, 2, 0, 1, 2)
	if err != nil {
		return 0, err
	}
	var res mat.Dense
	res.Add(f.Dxx(1), f.Dxx(2))
	res.Scale(-p.Speed, &res)
	res.Add(&res, f.Dxx(0))
	return pde.MeanSquare(&res), nil
}

// snapshots returns the n x n (x, y) grid at every snapshot time, stacked in order.
func (p *Problem) snapshots(n int) (*mat.Dense, []float64) {
	axis := grid.Linspace(0, p.Length, n)
	return grid.Mesh3(p.Snapshots, axis, axis), axis
}

// Transfer fits the output weights for the transfer speed and source. The reference is
// available only without a source.
func (p *Problem) Transfer(basis pde.Basis, rng *rand.Rand, methods ...closedform.Method) ([]*pde.Solution, error) {
	start := time.Now()
	c := p.TransferSpeed
	sys := closedform.System{Ridge: p.Ridge, RCond: p.RCond}

	interior := grid.Sample(rng, p.train, p.Interior)
	f, err := basis.Features(interior, 2, 0, 1, 2)
	if err != nil {
		return nil, err
	}
	var dh mat.Dense
	dh.Add(f.Dxx(1), f.Dxx(2))
	dh.Scale(-c, &dh)
	dh.Add(&dh, f.Dxx(0))
	sys.Add("equation", &dh, pde.Column(interior, func(r []float64) float64 {
		return p.Source.At(r[0], r[1])
	}), 1)

	x0 := grid.Sample(rng, p.initial, p.Initial)
	ic, err := basis.Features(x0, 1, 0)
	if err != nil {
		return nil, err
	}
	sys.Add("initial", ic.H, p.impulses(x0), 1)
	sys.Add("velocity", ic.Dx(0), mat.NewDense(p.Initial, 1, nil), 1)

	for i, name := range wallNames {
		e := grid.Sample(rng, p.walls[i], p.Edge)
		h, err := basis.Features(e, 0)
		if err != nil {
			return nil, err
		}
		sys.Add(name, h.H, mat.NewDense(p.Edge, 1, nil), 1)
	}
	assembled := time.Since(start)

	pts, _ := p.snapshots(p.EvalGrid)
	all, err := basis.Features(pts, 0)
	if err != nil {
		return nil, err
	}
	var ref *mat.Dense
	if p.Source.Amplitude == 0 {
		ref = pde.Column(pts, func(r []float64) float64 {
			return p.Reference(c, r[0], r[1], r[2])
		})
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
			Points:  pts,
			Pred:    closedform.Apply(all.H, w),
			Ref:     ref,
			Report:  rep,
			Elapsed: elapsed,
		})
	}
	return out, nil
}

// snapshot returns the field of snapshot k of a stacked column.
func snapshot(axis []float64, column *mat.Dense, k int) viz.Field {
	n := len(axis) * len(axis)
	// rows are x major, so the field is built with swapped axes
	return viz.NewField(axis, axis, column.Slice(k*n, (k+1)*n, 0, 1)).Transpose()
}

func labels(title string) viz.Labels {
	return viz.Labels{Title: title, X: "x", Y: "y"}
}

// Visualize draws the displacement at every snapshot time on the training grid, and the
// loss history.
func (p *Problem) Visualize(net *feedforward.Network, history *pde.History, dir string) ([]string, error) {
	pts, axis := p.snapshots(p.TrainGrid)
	f, err := net.Evaluate(pts, 0)
	if err != nil {
		return nil, err
	}
	var panels []*plot.Plot
	for k, t := range p.Snapshots {
		u, err := viz.Heatmap(labels(fmt.Sprintf("u at t=%.2f", t)), snapshot(axis, f.H, k))
		if err != nil {
			return nil, err
		}
		panels = append(panels, u)
	}
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

// Plot draws one row per snapshot: the prediction, and with a reference also the
// reference and the squared error.
func (p *Problem) Plot(sol *pde.Solution, dir string) ([]string, error) {
	axis := grid.Linspace(0, p.Length, p.EvalGrid)
	var sq mat.Dense
	if sol.Ref != nil {
		sq.Sub(sol.Pred, sol.Ref)
		sq.MulElem(&sq, &sq)
	}
	var rows [][]*plot.Plot
	for k, t := range p.Snapshots {
		at := fmt.Sprintf(" t=%.2f", t)
		u, err := viz.Heatmap(labels(string(sol.Method)+at), snapshot(axis, sol.Pred, k))
		if err != nil {
			return nil, err
		}
		row := []*plot.Plot{u}
		if sol.Ref != nil {
			r, err := viz.Heatmap(labels("reference"+at), snapshot(axis, sol.Ref, k))
			if err != nil {
				return nil, err
			}
			e, err := viz.Heatmap(labels("squared error"+at), snapshot(axis, &sq, k))
			if err != nil {
				return nil, err
			}
			row = append(row, r, e)
		}
		rows = append(rows, row)
	}
	name, err := viz.SaveGrid(filepath.Join(dir, Name+"_"+string(sol.Method)+".png"), rows)
	if err != nil {
		return nil, err
	}
	return []string{name}, nil
}
