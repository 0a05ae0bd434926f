package pde

import "path/filepath"
import "testing"

import "github.com/stretchr/testify/assert"
import "github.com/stretchr/testify/require"
import "gonum.org/v1/gonum/mat"

import "github.com/neurlang/pinn/autograd"
import "github.com/neurlang/pinn/viz"

func TestSquaredErrors(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	b := mat.NewDense(2, 2, []float64{1, 1, 1, 1})
	mean, std := SquaredErrors(a, b)
	// squared errors 0 1 4 9
	assert.InDelta(t, 3.5, mean, 1e-12)
	assert.InDelta(t, 3.5, std, 1e-12)
	assert.InDelta(t, 7.5, MeanSquare(a), 1e-12)

	sol := &Solution{Pred: a}
	_, _, err := sol.Errors()
	assert.ErrorIs(t, err, ErrNoReference)
	sol.Ref = a
	mse, _, err := sol.Errors()
	require.NoError(t, err)
	assert.Equal(t, 0.0, mse)
}

func TestColumn(t *testing.T) {
	x := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	c := Column(x, func(row []float64) float64 { return row[0] * row[1] })
	assert.Equal(t, []float64{2, 12, 30}, c.RawMatrix().Data)
}

func TestMeanSquareError(t *testing.T) {
	g := autograd.New()
	n := g.Const(mat.NewDense(2, 1, []float64{1, 3}))
	assert.InDelta(t, 5.0, MeanSquareError(g, n, nil).Scalar(), 1e-12)
	assert.InDelta(t, 1.0, MeanSquareError(g, n, mat.NewDense(2, 1, []float64{0, 2})).Scalar(), 1e-12)
	require.NoError(t, g.Err())
}

func TestHistory(t *testing.T) {
	var h History
	p, err := h.Panel()
	require.NoError(t, err)
	assert.Nil(t, p)

	g := autograd.New()
	for i := 1; i <= 3; i++ {
		v := g.Const(mat.NewDense(1, 1, []float64{float64(i)}))
		h.Add(&Loss{Total: v, Equation: v, Conditions: v})
	}
	h.AddResidual(3, 0.5)
	assert.Equal(t, 3, h.Len())
	assert.Equal(t, []float64{1, 2, 3}, h.Steps())
	assert.Equal(t, []float64{3}, h.ResidualAt)

	p, err = h.Panel()
	require.NoError(t, err)
	require.NotNil(t, p)
	name, err := viz.Save(filepath.Join(t.TempDir(), "loss.png"), p)
	require.NoError(t, err)
	assert.FileExists(t, name)
}
