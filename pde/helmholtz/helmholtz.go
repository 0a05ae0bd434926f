// Package helmholtz solves u_tt + u_xx = rho(t, x) on the unit square with zero boundary
// values.
//
// The network has one output per training forcing sin(kπx) sin(kπt), k = 1..Outputs.
// Transfer solves for a weighted sum of these forcings in closed form. Both solve methods
// share one ridge term, ridge·‖w‖², so normal equations and lstsq return the same weights;
// lstsq appends √ridge·I rows rather than ridge·I rows.
package helmholtz

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
const Name = "helmholtz"

// Params configures the experiment.
type Params struct {
	Hidden  int `mapstructure:"hidden_size"`
	Layers  int `mapstructure:"layers"`
	Outputs int `mapstructure:"outputs"`

	// training
	TrainGrid  int     `mapstructure:"train_grid"`
	Batch      int     `mapstructure:"bs"`
	Jitter     float64 `mapstructure:"jitter"`
	EdgePoints int     `mapstructure:"edge_points"`
	TestGrid   int     `mapstructure:"test_grid"`

	// transfer
	Coefficients []float64 `mapstructure:"coefficients"`
	Interior     int       `mapstructure:"interior"`
	Edge         int       `mapstructure:"edge"`
	Ridge        float64   `mapstructure:"ridge"`
	RCond        float64   `mapstructure:"rcond"`
	EvalGrid     int       `mapstructure:"eval_grid"`
}

// DefaultParams returns the parameters of the reference experiment.
func DefaultParams() Params {
	return Params{
		Hidden:       100,
		Layers:       2,
		Outputs:      4,
		TrainGrid:    100,
		Batch:        1000,
		Jitter:       0.005,
		EdgePoints:   100,
		TestGrid:     100,
		Coefficients: []float64{2. / 4, -4. / 4, 6. / 4, -8. / 4},
		Interior:     500,
		Edge:         150,
		Ridge:        2,
		EvalGrid:     200,
	}
}

// Validate reports parameters that cannot produce a problem.
func (p Params) Validate() error {
	for _, v := range []struct {
		name string
		n    int
	}{
		{"hidden_size", p.Hidden}, {"outputs", p.Outputs}, {"train_grid", p.TrainGrid}, {"bs", p.Batch},
		{"edge_points", p.EdgePoints}, {"test_grid", p.TestGrid}, {"interior", p.Interior},
		{"edge", p.Edge}, {"eval_grid", p.EvalGrid},
	} {
		if v.n <= 0 {
			return errors.Wrapf(pde.ErrParams, "%s.%s must be positive, got %d", Name, v.name, v.n)
		}
	}
	if len(p.Coefficients) == 0 {
		return errors.Wrapf(pde.ErrParams, "%s.coefficients is empty", Name)
	}
	if p.Ridge < 0 {
		return errors.Wrapf(pde.ErrParams, "%s.ridge is negative", Name)
	}
	return nil
}

// Problem is the Helmholtz experiment.
type Problem struct {
	Params

	train *mat.Dense
	edges [4]*mat.Dense
	test  *mat.Dense
}

var _ pde.Problem = (*Problem)(nil)

var edgeNames = [4]string{"t0", "t1", "x0", "x1"}

// New returns the experiment for p.
func New(p Params) (*Problem, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	axis := grid.Linspace(0, 1, p.TrainGrid)
	test := grid.Linspace(0, 1, p.TestGrid)
	return &Problem{
		Params: p,
		train:  grid.Mesh2(axis, axis),
		edges:  grid.Edges2(0, 1, 0, 1, p.EdgePoints),
		test:   grid.Mesh2(test, test),
	}, nil
}

func (p *Problem) Name() string {
	return Name
}

// NewNetwork returns a (t, x) network with sin activations and a biased output layer.
func (p *Problem) NewNetwork(seed uint64) *feedforward.Network {
	var net feedforward.Network
	net.Seed(seed)
	in := 2
	for i := 0; i < max(p.Layers, 1); i++ {
		net.NewLayer(in, p.Hidden, feedforward.Sin)
		in = p.Hidden
	}
	net.NewOutput(p.Hidden, p.Outputs, true)
	net.Meta.Problem = Name
	return &net
}

// Mode returns sin(kπx) sin(kπt).
func Mode(k, t, x float64) float64 {
	return math.Sin(k*math.Pi*x) * math.Sin(k*math.Pi*t)
}

// Forcings returns one column per training forcing at the rows (t, x) of pts.
func (p *Problem) Forcings(pts *mat.Dense) *mat.Dense {
	r, _ := pts.Dims()
	o := mat.NewDense(r, p.Outputs, nil)
	for i := 0; i < r; i++ {
		t, x := pts.At(i, 0), pts.At(i, 1)
		for k := 0; k < p.Outputs; k++ {
			o.Set(i, k, Mode(float64(k+1), t, x))
		}
	}
	return o
}

// Forcing returns the transfer forcing Σ c_k sin(kπx) sin(kπt).
func (p *Problem) Forcing(t, x float64) float64 {
	var s float64
	for k, c := range p.Coefficients {
		s += c * Mode(float64(k+1), t, x)
	}
	return s
}

// Reference is the exact solution for the transfer forcing.
func (p *Problem) Reference(t, x float64) float64 {
	var s float64
	for k, c := range p.Coefficients {
		kp := float64(k+1) * math.Pi
		s -= c * Mode(float64(k+1), t, x) / (2 * kp * kp)
	}
	return s
}

// Sample draws interior points from the training grid without replacement and jitters them.
func (p *Problem) Sample(rng *rand.Rand) pde.Batch {
	b := pde.Batch{"interior": grid.Jitter(rng, grid.Sample(rng, p.train, p.Batch), p.Jitter)}
	for i, name := range edgeNames {
		b[name] = p.edges[i]
	}
	return b
}

// Loss is the equation residual over all outputs plus the squared boundary values.
func (p *Problem) Loss(b *feedforward.Bound, batch pde.Batch) (*pde.Loss, error) {
	g := b.Graph()
	x := batch["interior"]
	j, err := b.Forward(x, 2, 0, 1)
	if err != nil {
		return nil, err
	}
	eq := pde.MeanSquareError(g, g.Add(j.D2[0], j.D2[1]), p.Forcings(x))

	cond := g.Const(mat.NewDense(1, 1, nil))
	for _, name := range edgeNames {
		e, err := b.Forward(batch[name], 0)
		if err != nil {
			return nil, err
		}
		cond = g.Add(cond, g.MeanSquare(e.Value))
	}
	if err := g.Err(); err != nil {
		return nil, err
	}
	return &pde.Loss{Total: g.Add(eq, cond), Equation: eq, Conditions: cond}, nil
}

// TestResidual is the mean squared equation residual of all outputs on the test grid.
func (p *Problem) TestResidual(net *feedforward.Network) (float64, error) {
	f, err := net.Evaluate(p.test, 2, 0, 1)
	if err != nil {
		return 0, err
	}
	var res mat.Dense
	res.Add(f.Dxx(0), f.Dxx(1))
	res.Sub(&res, p.Forcings(p.test))
	return pde.MeanSquare(&res), nil
}

func (p *Problem) evalAxis() []float64 {
	return grid.Linspace(0, 1, p.EvalGrid)
}

// Transfer fits the output weights, with a bias, for the transfer forcing. Interior rows
// hold the Laplacian of the basis, edge rows hold the basis itself.
func (p *Problem) Transfer(basis pde.Basis, rng *rand.Rand, methods ...closedform.Method) ([]*pde.Solution, error) {
	start := time.Now()
	axis := p.evalAxis()
	pts := grid.Mesh2(axis, axis)
	n := len(axis)

	sys := closedform.System{Ridge: p.Ridge, RCond: p.RCond}

	interior := grid.Sample(rng, pts, p.Interior)
	f, err := basis.Features(interior, 2, 0, 1)
	if err != nil {
		return nil, err
	}
	var lap mat.Dense
	lap.Add(f.Dxx(0), f.Dxx(1))
	sys.Add("equation", closedform.AppendColumn(&lap, 0), pde.Column(interior, func(r []float64) float64 {
		return p.Forcing(r[0], r[1])
	}), 1)

	for i, edge := range grid.Edges2(0, 1, 0, 1, n) {
		e := grid.Sample(rng, edge, p.Edge)
		h, err := basis.Features(e, 0)
		if err != nil {
			return nil, err
		}
		sys.Add(edgeNames[i], closedform.AppendColumn(h.H, 1), mat.NewDense(p.Edge, 1, nil), 1)
	}
	assembled := time.Since(start)

	all, err := basis.Features(pts, 0)
	if err != nil {
		return nil, err
	}
	h := closedform.AppendColumn(all.H, 1)
	ref := pde.Column(pts, func(r []float64) float64 {
		return p.Reference(r[0], r[1])
	})

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
			Pred:    closedform.Apply(h, w),
			Ref:     ref,
			Report:  rep,
			Elapsed: elapsed,
		})
	}
	return out, nil
}

// Visualize draws the first outputs on the test grid and the loss history.
func (p *Problem) Visualize(net *feedforward.Network, history *pde.History, dir string) ([]string, error) {
	f, err := net.Evaluate(p.test, 0)
	if err != nil {
		return nil, err
	}
	axis := grid.Linspace(0, 1, p.TestGrid)
	panels, err := fieldPanels(axis, f.H, min(p.Outputs, 3), "u")
	if err != nil {
		return nil, err
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

// Plot draws the transferred solution, the reference and the squared error.
func (p *Problem) Plot(sol *pde.Solution, dir string) ([]string, error) {
	axis := p.evalAxis()
	labels := func(title string) viz.Labels {
		return viz.Labels{Title: title, X: "x", Y: "t"}
	}
	pred := viz.NewField(axis, axis, sol.Pred)
	u, err := viz.Heatmap(labels("prediction "+string(sol.Method)), pred)
	if err != nil {
		return nil, err
	}
	panels := []*plot.Plot{u}
	if sol.Ref != nil {
		ref := viz.NewField(axis, axis, sol.Ref)
		r, err := viz.Heatmap(labels("reference"), ref)
		if err != nil {
			return nil, err
		}
		var sq mat.Dense
		sq.Sub(sol.Pred, sol.Ref)
		sq.MulElem(&sq, &sq)
		e, err := viz.Heatmap(labels("squared error"), viz.NewField(axis, axis, &sq))
		if err != nil {
			return nil, err
		}
		panels = append(panels, r, e)
	}
	name, err := viz.Save(filepath.Join(dir, Name+"_"+string(sol.Method)+".png"), panels...)
	if err != nil {
		return nil, err
	}
	return []string{name}, nil
}

func fieldPanels(axis []float64, values *mat.Dense, n int, prefix string) ([]*plot.Plot, error) {
	var panels []*plot.Plot
	for k := 0; k < n; k++ {
		f := viz.NewField(axis, axis, values.ColView(k))
		p, err := viz.Heatmap(viz.Labels{Title: prefix + string(rune('1'+k)), X: "x", Y: "t"}, f)
		if err != nil {
			return nil, err
		}
		panels = append(panels, p)
	}
	return panels, nil
}
