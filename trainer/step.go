package trainer

import "math/rand/v2"

import "github.com/pkg/errors"
import "gonum.org/v1/gonum/mat"
import "gonum.org/v1/gonum/optimize"

import "github.com/neurlang/pinn/autograd"
import "github.com/neurlang/pinn/net/feedforward"
import "github.com/neurlang/pinn/optimizer"
import "github.com/neurlang/pinn/pde"

// Gradients records the loss of batch on a fresh graph and returns it together with the
// gradient of every network parameter, in the order of Network.Params.
func Gradients(net *feedforward.Network, prob pde.Problem, batch pde.Batch) (*pde.Loss, []*mat.Dense, error) {
	g := autograd.New()
	b := net.Bind(g, true)
	loss, err := prob.Loss(b, batch)
	if err != nil {
		return nil, nil, err
	}
	if err := g.Backward(loss.Total); err != nil {
		return nil, nil, errors.Wrap(err, "backward")
	}
	params := b.Params()
	grads := make([]*mat.Dense, len(params))
	for i, p := range params {
		grads[i] = p.Grad
	}
	return loss, grads, nil
}

// NewStepFunc returns a function performing one Adam step on a freshly sampled batch.
func NewStepFunc(net *feedforward.Network, prob pde.Problem, opt *optimizer.Adam, rng *rand.Rand) func() (*pde.Loss, error) {
	return func() (*pde.Loss, error) {
		loss, grads, err := Gradients(net, prob, prob.Sample(rng))
		if err != nil {
			return nil, err
		}
		if err := opt.Step(net.Params(), grads); err != nil {
			return nil, err
		}
		return loss, nil
	}
}

// Refine minimises the loss of one fixed batch with L-BFGS.
func Refine(net *feedforward.Network, prob pde.Problem, opt *optimizer.LBFGS, rng *rand.Rand) (*optimize.Result, error) {
	batch := prob.Sample(rng)
	return opt.Minimize(net.Params(), func() (float64, []*mat.Dense, error) {
		loss, grads, err := Gradients(net, prob, batch)
		if err != nil {
			return 0, nil, err
		}
		return loss.Total.Scalar(), grads, nil
	})
}
