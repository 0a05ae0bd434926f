package autograd

import "math/rand/v2"
import "testing"

import "github.com/stretchr/testify/assert"
import "github.com/stretchr/testify/require"
import "gonum.org/v1/gonum/diff/fd"
import "gonum.org/v1/gonum/mat"

func randDense(rng *rand.Rand, r, c int) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = rng.Float64()*2 - 1
	}
	return mat.NewDense(r, c, data)
}

// lossOf builds a loss exercising every operation on the tape.
func lossOf(g *Graph, x, w, b, target *mat.Dense) (*Node, *Node, *Node) {
	wn := g.Param(w)
	bn := g.Param(b)
	z := g.AddRow(g.MatMul(g.Const(x), wn), bn)
	t := g.Tanh(z)
	s := g.Sin(z)
	c := g.Cos(g.Scale(z, 0.5))
	d1 := g.Shift(g.Scale(g.Square(t), -1), 1)
	mix := g.Add(g.Mul(d1, s), g.Sub(c, t))
	res := g.Sub(mix, g.Const(target))
	loss := g.Add(g.MeanSquare(res), g.Scale(g.Sum(g.Mul(t, t)), 0.01))
	return loss, wn, bn
}

func TestBackwardMatchesFiniteDifferences(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	x := randDense(rng, 6, 3)
	w := randDense(rng, 3, 4)
	b := randDense(rng, 1, 4)
	target := randDense(rng, 6, 4)

	g := New()
	loss, wn, bn := lossOf(g, x, w, b, target)
	require.NoError(t, g.Err())
	require.NoError(t, g.Backward(loss))

	params := append(append([]float64{}, w.RawMatrix().Data...), b.RawMatrix().Data...)
	f := func(p []float64) float64 {
		wc := mat.NewDense(3, 4, append([]float64{}, p[:12]...))
		bc := mat.NewDense(1, 4, append([]float64{}, p[12:]...))
		l, _, _ := lossOf(New(), x, wc, bc, target)
		return l.Scalar()
	}
	want := fd.Gradient(nil, f, params, &fd.Settings{Formula: fd.Central})

	got := append(append([]float64{}, wn.Grad.RawMatrix().Data...), bn.Grad.RawMatrix().Data...)
	assert.InDeltaSlice(t, want, got, 1e-6)
}

func TestShapeMismatchIsSticky(t *testing.T) {
	g := New()
	a := g.Const(mat.NewDense(2, 3, nil))
	b := g.Const(mat.NewDense(2, 3, nil))
	bad := g.MatMul(a, b)
	assert.ErrorIs(t, g.Err(), ErrShape)

	// later builders keep returning placeholders
	next := g.Add(bad, a)
	assert.NotNil(t, next)
	assert.ErrorIs(t, g.Backward(g.Sum(next)), ErrShape)
}

func TestBackwardRequiresScalar(t *testing.T) {
	g := New()
	p := g.Param(mat.NewDense(2, 2, []float64{1, 2, 3, 4}))
	assert.ErrorIs(t, g.Backward(g.Square(p)), ErrNotScalar)
}

func TestConstantsCarryNoGradient(t *testing.T) {
	g := New()
	c := g.Const(mat.NewDense(1, 2, []float64{1, 2}))
	p := g.Param(mat.NewDense(1, 2, []float64{3, 4}))
	loss := g.Sum(g.Mul(c, p))
	require.NoError(t, g.Backward(loss))
	assert.Nil(t, c.Grad)
	assert.Equal(t, []float64{1, 2}, p.Grad.RawRowView(0))
}

func BenchmarkTanhMatMul(b *testing.B) {
	rng := rand.New(rand.NewPCG(3, 4))
	x := randDense(rng, 512, 2)
	w := randDense(rng, 2, 100)
	for i := 0; i < b.N; i++ {
		g := New()
		loss := g.MeanSquare(g.Tanh(g.MatMul(g.Const(x), g.Param(w))))
		_ = g.Backward(loss)
	}
}
