// Package feedforward implements a feedforward network whose last hidden layer is used as a
// solution basis, together with derivatives of that basis with respect to the network inputs.
package feedforward

import "math"
import "math/rand/v2"

import "github.com/google/uuid"
import "github.com/pkg/errors"
import "gonum.org/v1/gonum/mat"

// ErrArchitecture is reported when layers do not chain or a checkpoint does not fit the network.
var ErrArchitecture = errors.New("feedforward: architecture mismatch")

// Linear is a dense layer y = xW + b. B is nil for a layer without bias.
type Linear struct {
	W *mat.Dense
	B *mat.Dense
}

// In returns the number of inputs of the layer.
func (l Linear) In() int {
	r, _ := l.W.Dims()
	return r
}

// Out returns the number of outputs of the layer.
func (l Linear) Out() int {
	_, c := l.W.Dims()
	return c
}

// Meta describes where the weights came from.
type Meta struct {
	Run      uuid.UUID
	Problem  string
	Residual float64
}

// Network is the feedforward network. The zero value is an empty network; layers are
// appended with NewLayer and closed with NewOutput.
type Network struct {
	Meta Meta

	layers []Linear
	acts   []Activation
	out    *Linear
	rng    *rand.Rand
}

// Seed seeds the generator used to initialize the layers added afterwards.
func (f *Network) Seed(seed uint64) {
	f.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func (f *Network) random() *rand.Rand {
	if f.rng == nil {
		f.Seed(33)
	}
	return f.rng
}

// uniform initializes like torch.nn.Linear: U(-1/sqrt(in), 1/sqrt(in)).
func (f *Network) uniform(r, c, fanIn int) *mat.Dense {
	bound := 1 / math.Sqrt(float64(fanIn))
	data := make([]float64, r*c)
	for i := range data {
		data[i] = (2*f.random().Float64() - 1) * bound
	}
	return mat.NewDense(r, c, data)
}

// NewLayer appends a hidden layer with in inputs, out neurons and the activation act.
func (f *Network) NewLayer(in, out int, act Activation) {
	f.layers = append(f.layers, Linear{
		W: f.uniform(in, out, in),
		B: f.uniform(1, out, in),
	})
	f.acts = append(f.acts, act)
}

// NewOutput sets the linear output layer, optionally with a bias.
func (f *Network) NewOutput(in, out int, bias bool) {
	l := Linear{W: f.uniform(in, out, in)}
	if bias {
		l.B = f.uniform(1, out, in)
	}
	f.out = &l
}

// Validate checks that the layers chain and the output layer exists.
func (f *Network) Validate() error {
	if len(f.layers) == 0 || f.out == nil {
		return errors.Wrap(ErrArchitecture, "network needs a hidden layer and an output layer")
	}
	for i := 1; i < len(f.layers); i++ {
		if f.layers[i].In() != f.layers[i-1].Out() {
			return errors.Wrapf(ErrArchitecture, "layer %d takes %d inputs, previous layer gives %d",
				i, f.layers[i].In(), f.layers[i-1].Out())
		}
	}
	if f.out.In() != f.Width() {
		return errors.Wrapf(ErrArchitecture, "output takes %d inputs, hidden width is %d", f.out.In(), f.Width())
	}
	return nil
}

// Inputs returns the number of network inputs.
func (f *Network) Inputs() int {
	if len(f.layers) == 0 {
		return 0
	}
	return f.layers[0].In()
}

// Width returns the size of the last hidden layer, the number of basis functions.
func (f *Network) Width() int {
	if len(f.layers) == 0 {
		return 0
	}
	return f.layers[len(f.layers)-1].Out()
}

// Outputs returns the number of network outputs.
func (f *Network) Outputs() int {
	if f.out == nil {
		return 0
	}
	return f.out.Out()
}

// OutputBias reports whether the output layer has a bias.
func (f *Network) OutputBias() bool {
	return f.out != nil && f.out.B != nil
}

// LenLayers returns the number of hidden layers.
func (f *Network) LenLayers() int {
	return len(f.layers)
}

// Activation returns the activation of hidden layer n.
func (f *Network) Activation(n int) Activation {
	return f.acts[n]
}

// Params returns the parameter matrices in a fixed order: hidden W, b pairs, then the output layer.
// The matrices are shared with the network; optimizers update them in place.
func (f *Network) Params() (o []*mat.Dense) {
	for _, l := range f.layers {
		o = append(o, l.W, l.B)
	}
	if f.out != nil {
		o = append(o, f.out.W)
		if f.out.B != nil {
			o = append(o, f.out.B)
		}
	}
	return o
}

// Len returns the number of scalar parameters.
func (f *Network) Len() (n int) {
	for _, p := range f.Params() {
		r, c := p.Dims()
		n += r * c
	}
	return
}
