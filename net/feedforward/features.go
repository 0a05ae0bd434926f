package feedforward

import "github.com/pkg/errors"
import "gonum.org/v1/gonum/mat"

import "github.com/neurlang/pinn/autograd"
import "github.com/neurlang/pinn/parallel"

// ChunkRows is the number of points evaluated per worker when computing features.
var ChunkRows = 2048

// Features is a jet evaluated to plain matrices, one row per point.
type Features struct {
	H  *mat.Dense
	D1 map[int]*mat.Dense
	D2 map[int]*mat.Dense
}

// Dx returns the first derivative with respect to input column k, or nil.
func (f *Features) Dx(k int) *mat.Dense {
	return f.D1[k]
}

// Dxx returns the second derivative with respect to input column k, or nil.
func (f *Features) Dxx(k int) *mat.Dense {
	return f.D2[k]
}

// Features evaluates the hidden layer basis and its derivatives at the rows of x.
// Rows are processed in parallel chunks without recording gradients.
func (f *Network) Features(x *mat.Dense, order int, coords ...int) (*Features, error) {
	return f.evaluate(x, false, order, coords)
}

// Evaluate evaluates the network output and its derivatives at the rows of x.
func (f *Network) Evaluate(x *mat.Dense, order int, coords ...int) (*Features, error) {
	return f.evaluate(x, true, order, coords)
}

func (f *Network) evaluate(x *mat.Dense, output bool, order int, coords []int) (*Features, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	r, c := x.Dims()
	if r == 0 || c != f.Inputs() {
		return nil, errors.Wrapf(autograd.ErrShape, "evaluate %dx%d points on %d inputs", r, c, f.Inputs())
	}
	width := f.Width()
	if output {
		width = f.Outputs()
	}
	res := &Features{H: mat.NewDense(r, width, nil)}
	if order >= 1 {
		res.D1 = make(map[int]*mat.Dense)
		for _, k := range coords {
			res.D1[k] = mat.NewDense(r, width, nil)
		}
	}
	if order >= 2 {
		res.D2 = make(map[int]*mat.Dense)
		for _, k := range coords {
			res.D2[k] = mat.NewDense(r, width, nil)
		}
	}

	err := parallel.Chunks(r, ChunkRows, func(lo, hi int) error {
		g := autograd.New()
		b := f.Bind(g, false)
		j, err := b.Hidden(x.Slice(lo, hi, 0, c).(*mat.Dense), order, coords...)
		if err != nil {
			return err
		}
		if output {
			if j, err = b.Output(j); err != nil {
				return err
			}
		}
		rows := func(dst *mat.Dense) *mat.Dense {
			return dst.Slice(lo, hi, 0, width).(*mat.Dense)
		}
		rows(res.H).Copy(j.Value.Value)
		for k, d := range j.D1 {
			rows(res.D1[k]).Copy(d.Value)
		}
		for k, d := range j.D2 {
			rows(res.D2[k]).Copy(d.Value)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
