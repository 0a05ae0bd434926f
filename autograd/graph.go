// Package autograd implements a reverse-mode gradient tape over dense matrices.
//
// A Graph records every operation in the order it was built. Backward walks the tape
// in reverse and accumulates gradients into every node that depends on a Param.
// Nodes built only from constants carry no gradient and cost nothing on the way back.
package autograd

import "github.com/pkg/errors"
import "gonum.org/v1/gonum/mat"

// ErrShape is reported when operand dimensions do not agree.
var ErrShape = errors.New("autograd: shape mismatch")

// ErrNotScalar is reported when Backward is called on a node which is not 1x1.
var ErrNotScalar = errors.New("autograd: loss is not a 1x1 node")

// Node is a value recorded on the tape together with its accumulated gradient.
type Node struct {
	Value *mat.Dense
	Grad  *mat.Dense

	trainable bool
	back      func()
}

// Trainable reports whether the node depends on a parameter.
func (n *Node) Trainable() bool {
	return n.trainable
}

// Dims returns the dimensions of the node value.
func (n *Node) Dims() (r, c int) {
	return n.Value.Dims()
}

// Scalar returns the value of a 1x1 node.
func (n *Node) Scalar() float64 {
	return n.Value.At(0, 0)
}

func (n *Node) accumulate(d mat.Matrix) {
	if !n.trainable {
		return
	}
	if n.Grad == nil {
		r, c := n.Value.Dims()
		n.Grad = mat.NewDense(r, c, nil)
	}
	n.Grad.Add(n.Grad, d)
}

// Graph is a gradient tape. It is not safe for concurrent use; build one graph per goroutine.
type Graph struct {
	tape []*Node
	err  error
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{}
}

// Err returns the first error recorded while building the graph.
func (g *Graph) Err() error {
	return g.err
}

// Len returns the number of nodes on the tape.
func (g *Graph) Len() int {
	return len(g.tape)
}

func (g *Graph) push(v *mat.Dense, parents ...*Node) *Node {
	n := &Node{Value: v}
	for _, p := range parents {
		if p.trainable {
			n.trainable = true
		}
	}
	g.tape = append(g.tape, n)
	return n
}

// fail records err and returns a placeholder so that builders can keep chaining.
func (g *Graph) fail(err error) *Node {
	if g.err == nil {
		g.err = err
	}
	return &Node{Value: mat.NewDense(1, 1, nil)}
}

// Param records a trainable leaf. The value is shared with the caller.
func (g *Graph) Param(v *mat.Dense) *Node {
	n := g.push(v)
	n.trainable = true
	return n
}

// Const records a constant leaf. The value is shared with the caller.
func (g *Graph) Const(v *mat.Dense) *Node {
	return g.push(v)
}

// Backward propagates the gradient of a scalar loss to every trainable node.
func (g *Graph) Backward(loss *Node) error {
	if g.err != nil {
		return g.err
	}
	if r, c := loss.Dims(); r != 1 || c != 1 {
		return errors.Wrapf(ErrNotScalar, "got %dx%d", r, c)
	}
	if !loss.trainable {
		return nil
	}
	loss.Grad = mat.NewDense(1, 1, []float64{1})
	for i := len(g.tape) - 1; i >= 0; i-- {
		n := g.tape[i]
		if n.Grad != nil && n.back != nil {
			n.back()
		}
	}
	return nil
}
