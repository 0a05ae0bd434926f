// Package grid builds collocation points: evenly spaced axes, flattened meshes and random
// subsets of them.
package grid

import "math/rand/v2"

import "gonum.org/v1/gonum/floats"
import "gonum.org/v1/gonum/mat"

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{lo}
	}
	return floats.Span(make([]float64, n), lo, hi)
}

// Arange returns lo, lo+step, ... up to but excluding hi.
func Arange(lo, hi, step float64) (o []float64) {
	if step <= 0 {
		return nil
	}
	for i := 0; ; i++ {
		v := lo + float64(i)*step
		if v >= hi-step*1e-9 {
			return
		}
		o = append(o, v)
	}
}

// Column returns the values as an n x 1 matrix.
func Column(v []float64) *mat.Dense {
	return mat.NewDense(len(v), 1, append([]float64(nil), v...))
}

// Mesh2 returns every pair (a[i], b[j]) as a row, i major.
func Mesh2(a, b []float64) *mat.Dense {
	o := mat.NewDense(len(a)*len(b), 2, nil)
	n := 0
	for _, va := range a {
		for _, vb := range b {
			o.Set(n, 0, va)
			o.Set(n, 1, vb)
			n++
		}
	}
	return o
}

// Mesh3 returns every triple (a[i], b[j], c[k]) as a row, i major.
func Mesh3(a, b, c []float64) *mat.Dense {
	o := mat.NewDense(len(a)*len(b)*len(c), 3, nil)
	n := 0
	for _, va := range a {
		for _, vb := range b {
			for _, vc := range c {
				o.Set(n, 0, va)
				o.Set(n, 1, vb)
				o.Set(n, 2, vc)
				n++
			}
		}
	}
	return o
}

// Fill returns an n x cols matrix with every row set to row.
func Fill(n int, row ...float64) *mat.Dense {
	o := mat.NewDense(n, len(row), nil)
	for i := 0; i < n; i++ {
		o.SetRow(i, row)
	}
	return o
}

// SetColumn overwrites column j of m with v.
func SetColumn(m *mat.Dense, j int, v float64) *mat.Dense {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		m.Set(i, j, v)
	}
	return m
}

// Choose returns n distinct indices below population. When n exceeds the population the
// indices are drawn with replacement.
func Choose(rng *rand.Rand, population, n int) []int {
	if population <= 0 || n <= 0 {
		return nil
	}
	if n > population {
		return Draw(rng, population, n)
	}
	return rng.Perm(population)[:n]
}

// Draw returns n indices below population drawn with replacement.
func Draw(rng *rand.Rand, population, n int) []int {
	if population <= 0 || n <= 0 {
		return nil
	}
	o := make([]int, n)
	for i := range o {
		o[i] = rng.IntN(population)
	}
	return o
}

// Rows gathers rows idx of m into a new matrix.
func Rows(m *mat.Dense, idx []int) *mat.Dense {
	_, c := m.Dims()
	o := mat.NewDense(len(idx), c, nil)
	for i, j := range idx {
		o.SetRow(i, m.RawRowView(j))
	}
	return o
}

// Sample gathers n random rows of m.
func Sample(rng *rand.Rand, m *mat.Dense, n int) *mat.Dense {
	r, _ := m.Dims()
	return Rows(m, Choose(rng, r, n))
}

// Jitter shifts every element of m in place by scale times a uniform sample from [0, 1).
func Jitter(rng *rand.Rand, m *mat.Dense, scale float64) *mat.Dense {
	if scale == 0 {
		return m
	}
	m.Apply(func(_, _ int, v float64) float64 {
		return v + scale*rng.Float64()
	}, m)
	return m
}

// Edges2 returns the four edges of the rectangle [t0,t1] x [x0,x1] with n points each,
// in the order t=t0, t=t1, x=x0, x=x1.
func Edges2(t0, t1, x0, x1 float64, n int) [4]*mat.Dense {
	ts, xs := Linspace(t0, t1, n), Linspace(x0, x1, n)
	return [4]*mat.Dense{
		Mesh2([]float64{t0}, xs),
		Mesh2([]float64{t1}, xs),
		Mesh2(ts, []float64{x0}),
		Mesh2(ts, []float64{x1}),
	}
}

// Stack concatenates matrices with the same column count vertically.
func Stack(ms ...*mat.Dense) *mat.Dense {
	var rows, cols int
	for _, m := range ms {
		r, c := m.Dims()
		rows += r
		cols = c
	}
	o := mat.NewDense(rows, cols, nil)
	n := 0
	for _, m := range ms {
		r, _ := m.Dims()
		o.Slice(n, n+r, 0, cols).(*mat.Dense).Copy(m)
		n += r
	}
	return o
}

// NewRand returns a PCG generator for seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
