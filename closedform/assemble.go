package closedform

import "gonum.org/v1/gonum/mat"

// AppendColumn returns m with one more column filled with v. A bias column is v = 1 on
// rows that evaluate the basis and v = 0 on rows that evaluate its derivatives.
func AppendColumn(m mat.Matrix, v float64) *mat.Dense {
	r, c := m.Dims()
	o := mat.NewDense(r, c+1, nil)
	o.Slice(0, r, 0, c).(*mat.Dense).Copy(m)
	for i := 0; i < r; i++ {
		o.Set(i, c, v)
	}
	return o
}

// BlockDiag places the matrices on the diagonal of a larger zero matrix.
func BlockDiag(ms ...mat.Matrix) *mat.Dense {
	var rows, cols int
	for _, m := range ms {
		r, c := m.Dims()
		rows += r
		cols += c
	}
	o := mat.NewDense(rows, cols, nil)
	var i, j int
	for _, m := range ms {
		r, c := m.Dims()
		o.Slice(i, i+r, j, j+c).(*mat.Dense).Copy(m)
		i += r
		j += c
	}
	return o
}

// KronIdentity returns a ⊗ I_n.
func KronIdentity(a mat.Matrix, n int) *mat.Dense {
	id := mat.NewDiagDense(n, nil)
	for i := 0; i < n; i++ {
		id.SetDiag(i, 1)
	}
	var o mat.Dense
	o.Kronecker(a, id)
	return &o
}

// SplitColumns reshapes a stacked weight column of parts*n rows into an n x parts matrix,
// one column per solution component.
func SplitColumns(w mat.Matrix, parts int) *mat.Dense {
	r, _ := w.Dims()
	n := r / parts
	o := mat.NewDense(n, parts, nil)
	for p := 0; p < parts; p++ {
		for i := 0; i < n; i++ {
			o.Set(i, p, w.At(p*n+i, 0))
		}
	}
	return o
}

// Apply returns a w, the fitted values of the basis a.
func Apply(a, w mat.Matrix) *mat.Dense {
	var o mat.Dense
	o.Mul(a, w)
	return &o
}
