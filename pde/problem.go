// Package pde defines the experiments solved with a network basis.
//
// A Problem trains a network whose last hidden layer spans solutions of a family of
// linear differential equations, then transfers that basis to a new equation instance by
// solving only for the output weights in closed form.
package pde

import "math/rand/v2"
import "time"

import "github.com/pkg/errors"
import "gonum.org/v1/gonum/mat"
import "gonum.org/v1/gonum/stat"

import "github.com/neurlang/pinn/autograd"
import "github.com/neurlang/pinn/closedform"
import "github.com/neurlang/pinn/net/feedforward"

// ErrParams is reported for problem parameters that cannot be used.
var ErrParams = errors.New("pde: invalid parameters")

// ErrNoReference is reported when an error metric is requested without a reference solution.
var ErrNoReference = errors.New("pde: no reference solution")

// Batch holds named collocation point sets, one row per point.
type Batch map[string]*mat.Dense

// Loss is a training objective split into the equation residual and the boundary and
// initial condition residuals.
type Loss struct {
	Total      *autograd.Node
	Equation   *autograd.Node
	Conditions *autograd.Node
}

// Basis evaluates basis functions and their derivatives with respect to the inputs.
// A trained *feedforward.Network is a Basis.
type Basis interface {
	Width() int
	Features(x *mat.Dense, order int, coords ...int) (*feedforward.Features, error)
}

// Problem is one experiment.
type Problem interface {
	// Name identifies the problem in checkpoints and logs.
	Name() string
	// NewNetwork returns an untrained network of the problem's architecture.
	NewNetwork(seed uint64) *feedforward.Network
	// Sample draws the collocation points of one training step.
	Sample(rng *rand.Rand) Batch
	// Loss records the training objective of the batch on the graph of b.
	Loss(b *feedforward.Bound, batch Batch) (*Loss, error)
	// TestResidual returns the equation residual on a fixed test grid.
	TestResidual(net *feedforward.Network) (float64, error)
	// Transfer solves the output weights of the transfer equation with every method.
	Transfer(basis Basis, rng *rand.Rand, methods ...closedform.Method) ([]*Solution, error)
	// Visualize writes training progress figures into dir.
	Visualize(net *feedforward.Network, history *History, dir string) ([]string, error)
	// Plot writes the figures of a solution into dir.
	Plot(sol *Solution, dir string) ([]string, error)
}

// Solution is a transferred solution evaluated on the problem's evaluation points.
type Solution struct {
	Problem string
	Method  closedform.Method
	Weights *mat.Dense
	Points  *mat.Dense
	Pred    *mat.Dense
	Ref     *mat.Dense
	Report  *closedform.Report
	Elapsed time.Duration

	// Extra holds problem specific evaluation data for plotting.
	Extra map[string]*mat.Dense
}

// Errors returns the mean and standard deviation of the squared pointwise error.
func (s *Solution) Errors() (mse, std float64, err error) {
	if s.Ref == nil {
		return 0, 0, ErrNoReference
	}
	mse, std = SquaredErrors(s.Pred, s.Ref)
	return mse, std, nil
}

// SquaredErrors returns the mean and population standard deviation of (a - b)².
func SquaredErrors(a, b mat.Matrix) (mean, std float64) {
	var d mat.Dense
	d.Sub(a, b)
	d.MulElem(&d, &d)
	r, c := d.Dims()
	sq := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		sq = append(sq, d.RawRowView(i)...)
	}
	return stat.PopMeanStdDev(sq, nil)
}

// MeanSquare returns the mean of the squared elements of m.
func MeanSquare(m mat.Matrix) float64 {
	r, c := m.Dims()
	var d mat.Dense
	d.MulElem(m, m)
	return mat.Sum(&d) / float64(r*c)
}

// Column evaluates f at every row of x.
func Column(x mat.Matrix, f func(row []float64) float64) *mat.Dense {
	r, c := x.Dims()
	o := mat.NewDense(r, 1, nil)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, x)
		o.Set(i, 0, f(row))
	}
	return o
}

// MeanSquareError records mean((n - target)²) on g. A nil target is zero.
func MeanSquareError(g *autograd.Graph, n *autograd.Node, target *mat.Dense) *autograd.Node {
	if target == nil {
		return g.MeanSquare(n)
	}
	return g.MeanSquare(g.Sub(n, g.Const(target)))
}
