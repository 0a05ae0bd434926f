// Package optimizer updates network parameters from their gradients.
package optimizer

import "math"

import "github.com/pkg/errors"
import "gonum.org/v1/gonum/mat"

// ErrUnknownOptimizer is reported for an optimizer name that is not recognized.
var ErrUnknownOptimizer = errors.New("optimizer: unknown optimizer")

// Kind names an optimizer.
type Kind string

const (
	KindAdam  Kind = "adam"
	KindLBFGS Kind = "lbfgs"
)

// ParseKind parses an optimizer name.
func ParseKind(name string) (Kind, error) {
	switch Kind(name) {
	case KindAdam, KindLBFGS:
		return Kind(name), nil
	}
	return "", errors.Wrapf(ErrUnknownOptimizer, "%q", name)
}

// Adam is the Adam optimizer with L2 weight decay added to the gradient.
type Adam struct {
	LR          float64
	Beta1       float64
	Beta2       float64
	Eps         float64
	WeightDecay float64

	t    int
	m, v []*mat.Dense
}

// NewAdam returns Adam with the usual moment decay rates.
func NewAdam(lr, weightDecay float64) *Adam {
	return &Adam{LR: lr, Beta1: 0.9, Beta2: 0.999, Eps: 1e-8, WeightDecay: weightDecay}
}

// Steps returns the number of updates applied so far.
func (o *Adam) Steps() int {
	return o.t
}

// Step updates params in place. grads[i] belongs to params[i]; a nil gradient is zero.
func (o *Adam) Step(params, grads []*mat.Dense) error {
	if len(params) != len(grads) {
		return errors.Errorf("optimizer: %d params with %d gradients", len(params), len(grads))
	}
	if o.m == nil {
		for _, p := range params {
			r, c := p.Dims()
			o.m = append(o.m, mat.NewDense(r, c, nil))
			o.v = append(o.v, mat.NewDense(r, c, nil))
		}
	}
	if len(o.m) != len(params) {
		return errors.Errorf("optimizer: state for %d params, got %d", len(o.m), len(params))
	}
	o.t++
	bc1 := 1 - math.Pow(o.Beta1, float64(o.t))
	bc2 := 1 - math.Pow(o.Beta2, float64(o.t))

	for i, p := range params {
		pd := p.RawMatrix()
		md, vd := o.m[i].RawMatrix(), o.v[i].RawMatrix()
		var gd []float64
		if grads[i] != nil {
			if r, c := grads[i].Dims(); r != pd.Rows || c != pd.Cols {
				return errors.Errorf("optimizer: param %d is %dx%d, gradient %dx%d", i, pd.Rows, pd.Cols, r, c)
			}
			gd = mat.DenseCopyOf(grads[i]).RawMatrix().Data
		}
		for r := 0; r < pd.Rows; r++ {
			for c := 0; c < pd.Cols; c++ {
				j := r*pd.Stride + c
				k := r*pd.Cols + c
				var g float64
				if gd != nil {
					g = gd[k]
				}
				g += o.WeightDecay * pd.Data[j]
				md.Data[k] = o.Beta1*md.Data[k] + (1-o.Beta1)*g
				vd.Data[k] = o.Beta2*vd.Data[k] + (1-o.Beta2)*g*g
				mhat := md.Data[k] / bc1
				vhat := vd.Data[k] / bc2
				pd.Data[j] -= o.LR * mhat / (math.Sqrt(vhat) + o.Eps)
			}
		}
	}
	return nil
}
