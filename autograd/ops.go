package autograd

import "math"

import "github.com/pkg/errors"
import "gonum.org/v1/gonum/mat"

func (g *Graph) sameDims(op string, a, b *Node) bool {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != br || ac != bc {
		g.fail(errors.Wrapf(ErrShape, "%s: %dx%d and %dx%d", op, ar, ac, br, bc))
		return false
	}
	return true
}

// MatMul records the matrix product a·b.
func (g *Graph) MatMul(a, b *Node) *Node {
	if g.err != nil {
		return g.fail(g.err)
	}
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ac != br {
		return g.fail(errors.Wrapf(ErrShape, "matmul: %dx%d by %dx%d", ar, ac, br, bc))
	}
	v := mat.NewDense(ar, bc, nil)
	v.Mul(a.Value, b.Value)
	n := g.push(v, a, b)
	n.back = func() {
		if a.trainable {
			var d mat.Dense
			d.Mul(n.Grad, b.Value.T())
			a.accumulate(&d)
		}
		if b.trainable {
			var d mat.Dense
			d.Mul(a.Value.T(), n.Grad)
			b.accumulate(&d)
		}
	}
	return n
}

// AddRow records a + row, where the 1xc row is broadcast over every row of a.
func (g *Graph) AddRow(a, row *Node) *Node {
	if g.err != nil {
		return g.fail(g.err)
	}
	r, c := a.Dims()
	rr, rc := row.Dims()
	if rr != 1 || rc != c {
		return g.fail(errors.Wrapf(ErrShape, "addrow: %dx%d and %dx%d", r, c, rr, rc))
	}
	v := mat.NewDense(r, c, nil)
	bias := row.Value.RawRowView(0)
	for i := 0; i < r; i++ {
		src := a.Value.RawRowView(i)
		dst := v.RawRowView(i)
		for j := range dst {
			dst[j] = src[j] + bias[j]
		}
	}
	n := g.push(v, a, row)
	n.back = func() {
		a.accumulate(n.Grad)
		if row.trainable {
			sums := mat.NewDense(1, c, nil)
			s := sums.RawRowView(0)
			for i := 0; i < r; i++ {
				for j, x := range n.Grad.RawRowView(i) {
					s[j] += x
				}
			}
			row.accumulate(sums)
		}
	}
	return n
}

// Add records a + b.
func (g *Graph) Add(a, b *Node) *Node {
	if g.err != nil || !g.sameDims("add", a, b) {
		return g.fail(g.err)
	}
	var v mat.Dense
	v.Add(a.Value, b.Value)
	n := g.push(&v, a, b)
	n.back = func() {
		a.accumulate(n.Grad)
		b.accumulate(n.Grad)
	}
	return n
}

// Sub records a - b.
func (g *Graph) Sub(a, b *Node) *Node {
	if g.err != nil || !g.sameDims("sub", a, b) {
		return g.fail(g.err)
	}
	var v mat.Dense
	v.Sub(a.Value, b.Value)
	n := g.push(&v, a, b)
	n.back = func() {
		a.accumulate(n.Grad)
		if b.trainable {
			var d mat.Dense
			d.Scale(-1, n.Grad)
			b.accumulate(&d)
		}
	}
	return n
}

// Mul records the elementwise product a⊙b.
func (g *Graph) Mul(a, b *Node) *Node {
	if g.err != nil || !g.sameDims("mul", a, b) {
		return g.fail(g.err)
	}
	var v mat.Dense
	v.MulElem(a.Value, b.Value)
	n := g.push(&v, a, b)
	n.back = func() {
		if a.trainable {
			var d mat.Dense
			d.MulElem(n.Grad, b.Value)
			a.accumulate(&d)
		}
		if b.trainable {
			var d mat.Dense
			d.MulElem(n.Grad, a.Value)
			b.accumulate(&d)
		}
	}
	return n
}

// Scale records s·a.
func (g *Graph) Scale(a *Node, s float64) *Node {
	if g.err != nil {
		return g.fail(g.err)
	}
	var v mat.Dense
	v.Scale(s, a.Value)
	n := g.push(&v, a)
	n.back = func() {
		if a.trainable {
			var d mat.Dense
			d.Scale(s, n.Grad)
			a.accumulate(&d)
		}
	}
	return n
}

// Shift records a + s.
func (g *Graph) Shift(a *Node, s float64) *Node {
	return g.unary(a, func(x float64) float64 { return x + s }, func(x, y float64) float64 { return 1 })
}

// Square records a⊙a.
func (g *Graph) Square(a *Node) *Node {
	return g.unary(a, func(x float64) float64 { return x * x }, func(x, y float64) float64 { return 2 * x })
}

// Sin records sin(a).
func (g *Graph) Sin(a *Node) *Node {
	return g.unary(a, math.Sin, func(x, y float64) float64 { return math.Cos(x) })
}

// Cos records cos(a).
func (g *Graph) Cos(a *Node) *Node {
	return g.unary(a, math.Cos, func(x, y float64) float64 { return -math.Sin(x) })
}

// Tanh records tanh(a).
func (g *Graph) Tanh(a *Node) *Node {
	return g.unary(a, math.Tanh, func(x, y float64) float64 { return 1 - y*y })
}

// unary records an elementwise function f with local derivative df(x, f(x)).
func (g *Graph) unary(a *Node, f func(float64) float64, df func(x, y float64) float64) *Node {
	if g.err != nil {
		return g.fail(g.err)
	}
	var v mat.Dense
	v.Apply(func(_, _ int, x float64) float64 { return f(x) }, a.Value)
	n := g.push(&v, a)
	n.back = func() {
		if a.trainable {
			var d mat.Dense
			d.Apply(func(i, j int, gr float64) float64 {
				return gr * df(a.Value.At(i, j), v.At(i, j))
			}, n.Grad)
			a.accumulate(&d)
		}
	}
	return n
}

// Sum records the sum of all elements of a as a 1x1 node.
func (g *Graph) Sum(a *Node) *Node {
	return g.reduce(a, 1)
}

// Mean records the mean of all elements of a as a 1x1 node.
func (g *Graph) Mean(a *Node) *Node {
	r, c := a.Dims()
	return g.reduce(a, 1/float64(r*c))
}

// MeanSquare records mean(a⊙a), the mean squared residual.
func (g *Graph) MeanSquare(a *Node) *Node {
	return g.Mean(g.Square(a))
}

func (g *Graph) reduce(a *Node, scale float64) *Node {
	if g.err != nil {
		return g.fail(g.err)
	}
	v := mat.NewDense(1, 1, []float64{scale * mat.Sum(a.Value)})
	n := g.push(v, a)
	n.back = func() {
		if a.trainable {
			r, c := a.Dims()
			d := mat.NewDense(r, c, nil)
			s := scale * n.Grad.At(0, 0)
			d.Apply(func(_, _ int, _ float64) float64 { return s }, d)
			a.accumulate(d)
		}
	}
	return n
}
