// Package viz writes PNG figures: heat maps of fields sampled on a grid, line plots of
// series and curves in the plane. Several panels can be placed side by side in one image.
package viz

import "image/color"
import "math"
import "os"
import "path/filepath"

import "github.com/pkg/errors"
import "gonum.org/v1/gonum/mat"
import "gonum.org/v1/plot"
import "gonum.org/v1/plot/palette"
import "gonum.org/v1/plot/plotter"
import "gonum.org/v1/plot/plotutil"
import "gonum.org/v1/plot/vg"
import "gonum.org/v1/plot/vg/draw"
import "gonum.org/v1/plot/vg/vgimg"

// PanelSize is the width and height of one panel.
var PanelSize = 4 * vg.Inch

// Colors is the number of palette steps in heat maps.
var Colors = 64

// Field is a scalar field sampled on a rectilinear grid. Values has one row per Ys
// entry and one column per Xs entry.
type Field struct {
	Xs, Ys []float64
	Values *mat.Dense
}

// NewField reshapes a column of len(ys)*len(xs) values ordered y major.
func NewField(xs, ys []float64, column mat.Matrix) Field {
	v := mat.NewDense(len(ys), len(xs), nil)
	for i := range ys {
		for j := range xs {
			v.Set(i, j, column.At(i*len(xs)+j, 0))
		}
	}
	return Field{Xs: xs, Ys: ys, Values: v}
}

func (f Field) Dims() (c, r int)   { return len(f.Xs), len(f.Ys) }
func (f Field) Z(c, r int) float64 { return f.Values.At(r, c) }
func (f Field) X(c int) float64    { return f.Xs[c] }
func (f Field) Y(r int) float64    { return f.Ys[r] }
func (f Field) Min() float64       { return mat.Min(f.Values) }
func (f Field) Max() float64       { return mat.Max(f.Values) }

// Transpose swaps the axes.
func (f Field) Transpose() Field {
	return Field{Xs: f.Ys, Ys: f.Xs, Values: mat.DenseCopyOf(f.Values.T())}
}

// Apply returns a field with fn applied to every value.
func (f Field) Apply(fn func(float64) float64) Field {
	v := mat.NewDense(len(f.Ys), len(f.Xs), nil)
	v.Apply(func(_, _ int, x float64) float64 { return fn(x) }, f.Values)
	return Field{Xs: f.Xs, Ys: f.Ys, Values: v}
}

// Labels are the title and axis names of a panel.
type Labels struct {
	Title, X, Y string
}

func newPlot(l Labels) *plot.Plot {
	p := plot.New()
	p.Title.Text = l.Title
	p.X.Label.Text = l.X
	p.Y.Label.Text = l.Y
	return p
}

// Heatmap returns a panel showing the field.
func Heatmap(l Labels, f Field) (*plot.Plot, error) {
	if len(f.Xs) == 0 || len(f.Ys) == 0 {
		return nil, plotter.ErrNoData
	}
	for i := range f.Ys {
		if err := plotter.CheckFloats(f.Values.RawRowView(i)...); err != nil {
			return nil, errors.Wrap(err, l.Title)
		}
	}
	p := newPlot(l)
	h := plotter.NewHeatMap(f, palette.Heat(Colors, 1))
	if h.Min == h.Max {
		h.Max = h.Min + 1
	}
	p.Add(h)
	p.X.Min, p.X.Max = f.Xs[0], f.Xs[len(f.Xs)-1]
	p.Y.Min, p.Y.Max = f.Ys[0], f.Ys[len(f.Ys)-1]
	return p, nil
}

// Series is a named curve.
type Series struct {
	Name string
	XYs  plotter.XYs
	// Dashed draws the curve with a dash pattern.
	Dashed bool
}

// NewSeries pairs xs with ys.
func NewSeries(name string, xs, ys []float64) Series {
	s := Series{Name: name, XYs: make(plotter.XYs, len(xs))}
	for i := range xs {
		s.XYs[i].X, s.XYs[i].Y = xs[i], ys[i]
	}
	return s
}

// Lines returns a panel with one line per series. With logY, non-positive values are
// clamped to the smallest positive value of the panel.
func Lines(l Labels, logY bool, series ...Series) (*plot.Plot, error) {
	p := newPlot(l)
	floor := math.Inf(1)
	if logY {
		for _, s := range series {
			for _, xy := range s.XYs {
				if xy.Y > 0 && xy.Y < floor {
					floor = xy.Y
				}
			}
		}
		if math.IsInf(floor, 1) {
			floor = 1
		}
		p.Y.Scale = plot.LogScale{}
		p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	}
	for i, s := range series {
		xys := s.XYs
		if logY {
			xys = make(plotter.XYs, len(s.XYs))
			for j, xy := range s.XYs {
				xys[j] = plotter.XY{X: xy.X, Y: math.Max(xy.Y, floor)}
			}
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: %s", l.Title, s.Name)
		}
		line.Color = plotutil.Color(i)
		if s.Dashed {
			line.Dashes = plotutil.Dashes(1)
		}
		p.Add(line)
		if s.Name != "" {
			p.Legend.Add(s.Name, line)
		}
	}
	p.Legend.Top = true
	return p, nil
}

// Trajectory returns a panel with a curve in the plane, coloured from start to end.
func Trajectory(l Labels, xs, ys []float64, segments int) (*plot.Plot, error) {
	p := newPlot(l)
	n := len(xs)
	if n < 2 {
		return nil, plotter.ErrNoData
	}
	if segments < 1 || segments > n-1 {
		segments = n - 1
	}
	step := (n - 1 + segments - 1) / segments
	for lo := 0; lo < n-1; lo += step {
		hi := min(lo+step, n-1)
		seg := NewSeries("", xs[lo:hi+1], ys[lo:hi+1])
		line, err := plotter.NewLine(seg.XYs)
		if err != nil {
			return nil, errors.Wrap(err, l.Title)
		}
		frac := float64(lo) / float64(n-1)
		line.Color = color.RGBA{R: 26, G: 204, B: uint8(255 * frac * frac), A: 255}
		line.Width = vg.Points(1.5)
		p.Add(line)
	}
	return p, nil
}

// Save draws the panels side by side into a PNG file and returns its path.
func Save(name string, panels ...*plot.Plot) (string, error) {
	return SaveGrid(name, [][]*plot.Plot{panels})
}

// SaveGrid draws rows of panels into a PNG file and returns its path.
func SaveGrid(name string, rows [][]*plot.Plot) (string, error) {
	cols := 0
	for _, r := range rows {
		cols = max(cols, len(r))
	}
	if cols == 0 {
		return "", plotter.ErrNoData
	}
	img := vgimg.New(vg.Length(cols)*PanelSize, vg.Length(len(rows))*PanelSize)
	dc := draw.New(img)
	grid := make([][]*plot.Plot, len(rows))
	for i, r := range rows {
		grid[i] = make([]*plot.Plot, cols)
		copy(grid[i], r)
	}
	tiles := draw.Tiles{
		Rows:      len(rows),
		Cols:      cols,
		PadX:      vg.Millimeter * 4,
		PadY:      vg.Millimeter * 4,
		PadTop:    vg.Points(4),
		PadBottom: vg.Points(4),
		PadLeft:   vg.Points(4),
		PadRight:  vg.Points(4),
	}
	canvases := plot.Align(grid, tiles, dc)
	for i := range grid {
		for j, p := range grid[i] {
			if p != nil {
				p.Draw(canvases[i][j])
			}
		}
	}

	if dir := filepath.Dir(name); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
	}
	w, err := os.Create(name)
	if err != nil {
		return "", err
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(w); err != nil {
		w.Close()
		return "", errors.Wrapf(err, "write %s", name)
	}
	return name, w.Close()
}
