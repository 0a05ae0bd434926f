package viz

import "image/png"
import "math"
import "os"
import "path/filepath"
import "testing"

import "github.com/stretchr/testify/assert"
import "github.com/stretchr/testify/require"
import "gonum.org/v1/gonum/mat"
import "gonum.org/v1/plot"

func TestNewField(t *testing.T) {
	col := mat.NewDense(6, 1, []float64{0, 1, 2, 10, 11, 12})
	f := NewField([]float64{0, 0.5, 1}, []float64{0, 1}, col)
	c, r := f.Dims()
	assert.Equal(t, 3, c)
	assert.Equal(t, 2, r)
	assert.Equal(t, 11.0, f.Z(1, 1))
	assert.Equal(t, 0.0, f.Min())
	assert.Equal(t, 12.0, f.Max())
	assert.Equal(t, 12.0, f.Transpose().Z(1, 2))
	assert.Equal(t, 2.0, f.Transpose().Z(0, 2))
	assert.Equal(t, 144.0, f.Apply(func(v float64) float64 { return v * v }).Max())
}

func TestSaveWritesPNG(t *testing.T) {
	xs := []float64{0, 0.25, 0.5, 0.75, 1}
	col := mat.NewDense(25, 1, nil)
	for i := range xs {
		for j := range xs {
			col.Set(i*5+j, 0, math.Sin(math.Pi*xs[i])*math.Sin(math.Pi*xs[j]))
		}
	}
	heat, err := Heatmap(Labels{Title: "u", X: "x", Y: "t"}, NewField(xs, xs, col))
	require.NoError(t, err)

	flat, err := Heatmap(Labels{Title: "zero"}, NewField(xs, xs, mat.NewDense(25, 1, nil)))
	require.NoError(t, err)

	lines, err := Lines(Labels{Title: "loss"}, true,
		NewSeries("equation", []float64{1, 2, 3}, []float64{1, 0.1, 0}),
		NewSeries("conditions", []float64{1, 2, 3}, []float64{0.5, 0.05, 0.005}))
	require.NoError(t, err)

	traj, err := Trajectory(Labels{Title: "pca"}, []float64{0, 1, 2, 3}, []float64{0, 1, 0, 1}, 2)
	require.NoError(t, err)

	name := filepath.Join(t.TempDir(), "out", "fig.png")
	got, err := SaveGrid(name, [][]*plot.Plot{{heat, flat}, {lines, traj}})
	require.NoError(t, err)
	assert.Equal(t, name, got)

	f, err := os.Open(name)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Greater(t, cfg.Width, 0)
	assert.Greater(t, cfg.Height, 0)
}

func TestHeatmapRejectsNaN(t *testing.T) {
	col := mat.NewDense(4, 1, []float64{0, math.NaN(), 1, 2})
	_, err := Heatmap(Labels{Title: "nan"}, NewField([]float64{0, 1}, []float64{0, 1}, col))
	assert.Error(t, err)
}
