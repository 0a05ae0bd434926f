package systems

import "github.com/pkg/errors"
import "gonum.org/v1/gonum/mat"
import "gonum.org/v1/gonum/stat"

import "github.com/neurlang/pinn/pde"

// Dim is the number of masses.
const Dim = 2

// Oscillator holds two masses between three springs, the outer two of equal stiffness
// k1 and the middle one k2. Dampers follow the same layout.
type Oscillator struct {
	Masses  []float64 `mapstructure:"masses"`
	Springs []float64 `mapstructure:"springs"`
	Damping []float64 `mapstructure:"damping"`
}

func (o Oscillator) validate(name string) error {
	if len(o.Masses) != Dim || len(o.Springs) != Dim {
		return errors.Wrapf(pde.ErrParams, "%s.%s needs %d masses and springs", Name, name, Dim)
	}
	if len(o.Damping) != 0 && len(o.Damping) != Dim {
		return errors.Wrapf(pde.ErrParams, "%s.%s needs %d dampers or none", Name, name, Dim)
	}
	for _, m := range o.Masses {
		if m <= 0 {
			return errors.Wrapf(pde.ErrParams, "%s.%s masses must be positive", Name, name)
		}
	}
	return nil
}

func coupling(k []float64) *mat.Dense {
	if len(k) == 0 {
		return mat.NewDense(Dim, Dim, nil)
	}
	return mat.NewDense(Dim, Dim, []float64{
		k[0] + k[1], -k[1],
		-k[1], k[0] + k[1],
	})
}

// Matrices returns the mass, damping and stiffness matrices.
func (o Oscillator) Matrices() (m, c, k *mat.Dense) {
	m = mat.NewDense(Dim, Dim, nil)
	for i, v := range o.Masses {
		m.Set(i, i, v)
	}
	return m, coupling(o.Damping), coupling(o.Springs)
}

// Operators returns M⁻¹K and M⁻¹C.
func (o Oscillator) Operators() (stiff, damp *mat.Dense, err error) {
	m, c, k := o.Matrices()
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return nil, nil, errors.Wrap(err, "mass matrix")
	}
	stiff, damp = new(mat.Dense), new(mat.Dense)
	stiff.Mul(&inv, k)
	damp.Mul(&inv, c)
	return stiff, damp, nil
}

// Trajectory returns the exact positions at times ts, one row per time, by the matrix
// exponential of the first order system z' = [[0, I], [-M⁻¹K, -M⁻¹C]] z.
func (o Oscillator) Trajectory(y0, v0, ts []float64) (*mat.Dense, error) {
	stiff, damp, err := o.Operators()
	if err != nil {
		return nil, err
	}
	a := mat.NewDense(2*Dim, 2*Dim, nil)
	for i := 0; i < Dim; i++ {
		a.Set(i, Dim+i, 1)
		for j := 0; j < Dim; j++ {
			a.Set(Dim+i, j, -stiff.At(i, j))
			a.Set(Dim+i, Dim+j, -damp.At(i, j))
		}
	}
	z0 := mat.NewVecDense(2*Dim, append(append([]float64(nil), y0...), v0...))
	out := mat.NewDense(len(ts), Dim, nil)
	var at, e mat.Dense
	var z mat.VecDense
	for r, t := range ts {
		at.Scale(t, a)
		e.Exp(&at)
		z.MulVec(&e, z0)
		for i := 0; i < Dim; i++ {
			out.Set(r, i, z.AtVec(i))
		}
	}
	return out, nil
}

// Principal projects the rows of h, min-max scaled per column, onto their first k
// principal components.
func Principal(h *mat.Dense, k int) (*mat.Dense, error) {
	r, c := h.Dims()
	scaled := mat.NewDense(r, c, nil)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, h)
		lo, hi := col[0], col[0]
		for _, v := range col {
			lo, hi = min(lo, v), max(hi, v)
		}
		for i, v := range col {
			if hi > lo {
				scaled.Set(i, j, (v-lo)/(hi-lo))
			}
		}
	}

	var pc stat.PC
	if !pc.PrincipalComponents(scaled, nil) {
		return nil, errors.New("systems: principal component analysis failed")
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	_, n := vecs.Dims()
	k = min(k, n)

	for j := 0; j < c; j++ {
		mat.Col(col, j, scaled)
		mean := stat.Mean(col, nil)
		for i := 0; i < r; i++ {
			scaled.Set(i, j, scaled.At(i, j)-mean)
		}
	}
	var out mat.Dense
	out.Mul(scaled, vecs.Slice(0, c, 0, k))
	return &out, nil
}
