package feedforward

import "github.com/pkg/errors"

import "github.com/neurlang/pinn/autograd"

// Activation is the elementwise nonlinearity applied after a hidden layer.
type Activation string

const (
	// Sin is the sine activation.
	Sin Activation = "sin"
	// Tanh is the hyperbolic tangent activation.
	Tanh Activation = "tanh"
)

// ErrActivation is reported for an unknown activation name.
var ErrActivation = errors.New("feedforward: unknown activation")

// ParseActivation converts a configuration string into an Activation.
func ParseActivation(name string) (Activation, error) {
	switch a := Activation(name); a {
	case Sin, Tanh:
		return a, nil
	}
	return "", errors.Wrapf(ErrActivation, "%q", name)
}

// jet returns f(z) and, up to order, f'(z) and f''(z) as graph nodes.
func (a Activation) jet(g *autograd.Graph, z *autograd.Node, order int) (f, df, d2f *autograd.Node) {
	switch a {
	case Sin:
		f = g.Sin(z)
		if order >= 1 {
			df = g.Cos(z)
		}
		if order >= 2 {
			d2f = g.Scale(f, -1)
		}
	default:
		f = g.Tanh(z)
		if order >= 1 {
			df = g.Shift(g.Scale(g.Square(f), -1), 1)
		}
		if order >= 2 {
			d2f = g.Scale(g.Mul(f, df), -2)
		}
	}
	return
}
