package feedforward

import "github.com/pkg/errors"
import "gonum.org/v1/gonum/mat"

import "github.com/neurlang/pinn/autograd"

// ErrOrder is reported when a derivative order above 2 is requested.
var ErrOrder = errors.New("feedforward: derivative order must be 0, 1 or 2")

// MaxOrder is the highest derivative order propagated through the network.
const MaxOrder = 2

// Jet holds a quantity and its pure partial derivatives with respect to input columns.
// D1[k] is d/dx_k, D2[k] is d²/dx_k². A missing coordinate means the derivative was not requested.
type Jet struct {
	Value *autograd.Node
	D1    map[int]*autograd.Node
	D2    map[int]*autograd.Node
}

// Bound is a network whose parameters are recorded on a graph.
type Bound struct {
	g      *autograd.Graph
	net    *Network
	layers [][2]*autograd.Node
	out    [2]*autograd.Node
	params []*autograd.Node
}

// Bind records the network parameters on g. Trainable parameters receive gradients on
// Backward; otherwise they are recorded as constants.
func (f *Network) Bind(g *autograd.Graph, trainable bool) *Bound {
	leaf := g.Const
	if trainable {
		leaf = g.Param
	}
	b := &Bound{g: g, net: f}
	for _, l := range f.layers {
		w, bias := leaf(l.W), leaf(l.B)
		b.layers = append(b.layers, [2]*autograd.Node{w, bias})
		b.params = append(b.params, w, bias)
	}
	if f.out != nil {
		b.out[0] = leaf(f.out.W)
		b.params = append(b.params, b.out[0])
		if f.out.B != nil {
			b.out[1] = leaf(f.out.B)
			b.params = append(b.params, b.out[1])
		}
	}
	return b
}

// Graph returns the graph the parameters are recorded on.
func (b *Bound) Graph() *autograd.Graph {
	return b.g
}

// Params returns the parameter nodes in the order of Network.Params.
func (b *Bound) Params() []*autograd.Node {
	return b.params
}

// Hidden propagates x (one row per point, one column per input) through the hidden layers.
// Derivatives up to order are propagated for every input column listed in coords.
func (b *Bound) Hidden(x *mat.Dense, order int, coords ...int) (*Jet, error) {
	if order < 0 || order > MaxOrder {
		return nil, errors.Wrapf(ErrOrder, "got %d", order)
	}
	r, c := x.Dims()
	if c != b.net.Inputs() {
		return nil, errors.Wrapf(autograd.ErrShape, "input has %d columns, network takes %d", c, b.net.Inputs())
	}
	for _, k := range coords {
		if k < 0 || k >= c {
			return nil, errors.Wrapf(autograd.ErrShape, "coordinate %d out of range", k)
		}
	}
	if order == 0 {
		coords = nil
	}
	g := b.g

	a := g.Const(x)
	d1 := make(map[int]*autograd.Node)
	d2 := make(map[int]*autograd.Node)
	for _, k := range coords {
		seed := mat.NewDense(r, c, nil)
		for i := 0; i < r; i++ {
			seed.Set(i, k, 1)
		}
		d1[k] = g.Const(seed)
	}

	for l, p := range b.layers {
		z := g.AddRow(g.MatMul(a, p[0]), p[1])
		f, df, d2f := b.net.acts[l].jet(g, z, order)
		for _, k := range coords {
			zk := g.MatMul(d1[k], p[0])
			d1[k] = g.Mul(df, zk)
			if order < 2 {
				continue
			}
			zkk := g.Mul(d2f, g.Square(zk))
			if prev := d2[k]; prev != nil {
				zkk = g.Add(zkk, g.Mul(df, g.MatMul(prev, p[0])))
			}
			d2[k] = zkk
		}
		a = f
	}
	if err := g.Err(); err != nil {
		return nil, err
	}
	j := &Jet{Value: a}
	if order >= 1 {
		j.D1 = d1
	}
	if order >= 2 {
		j.D2 = d2
	}
	return j, nil
}

// Output applies the linear output layer to a hidden jet. Derivatives skip the bias.
func (b *Bound) Output(h *Jet) (*Jet, error) {
	g := b.g
	w := b.out[0]
	if w == nil {
		return nil, errors.Wrap(ErrArchitecture, "network has no output layer")
	}
	o := &Jet{Value: g.MatMul(h.Value, w)}
	if b.out[1] != nil {
		o.Value = g.AddRow(o.Value, b.out[1])
	}
	if h.D1 != nil {
		o.D1 = make(map[int]*autograd.Node, len(h.D1))
		for k, d := range h.D1 {
			o.D1[k] = g.MatMul(d, w)
		}
	}
	if h.D2 != nil {
		o.D2 = make(map[int]*autograd.Node, len(h.D2))
		for k, d := range h.D2 {
			o.D2[k] = g.MatMul(d, w)
		}
	}
	if err := g.Err(); err != nil {
		return nil, err
	}
	return o, nil
}

// Forward evaluates the network output with derivatives, the usual training entry point.
func (b *Bound) Forward(x *mat.Dense, order int, coords ...int) (*Jet, error) {
	h, err := b.Hidden(x, order, coords...)
	if err != nil {
		return nil, err
	}
	return b.Output(h)
}
