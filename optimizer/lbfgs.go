package optimizer

import "math"

import "github.com/pkg/errors"
import "gonum.org/v1/gonum/mat"
import "gonum.org/v1/gonum/optimize"

// Objective evaluates the loss at the current parameter values and returns the gradient
// of every parameter. A nil gradient is zero.
type Objective func() (loss float64, grads []*mat.Dense, err error)

func appendFlat(dst []float64, m *mat.Dense) []float64 {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		dst = append(dst, m.RawRowView(i)[:c]...)
	}
	return dst
}

// Flatten appends the parameters to dst as one vector.
func Flatten(dst []float64, params []*mat.Dense) []float64 {
	for _, p := range params {
		dst = appendFlat(dst, p)
	}
	return dst
}

// Unflatten copies x back into the parameters.
func Unflatten(params []*mat.Dense, x []float64) {
	n := 0
	for _, p := range params {
		r, c := p.Dims()
		for i := 0; i < r; i++ {
			copy(p.RawRowView(i)[:c], x[n:n+c])
			n += c
		}
	}
}

// LBFGS refines parameters with limited memory BFGS on a fixed objective.
type LBFGS struct {
	Store      int
	Iterations int
}

// Minimize runs L-BFGS from the current parameter values and leaves the best location in params.
func (o *LBFGS) Minimize(params []*mat.Dense, f Objective) (*optimize.Result, error) {
	var (
		lastX    []float64
		lastF    float64
		lastGrad []float64
		evalErr  error
	)
	eval := func(x []float64) {
		if lastX != nil && equal(lastX, x) {
			return
		}
		Unflatten(params, x)
		loss, grads, err := f()
		if err != nil {
			if evalErr == nil {
				evalErr = err
			}
			loss = math.Inf(1)
		}
		lastGrad = lastGrad[:0]
		for i, p := range params {
			if i < len(grads) && grads[i] != nil {
				lastGrad = appendFlat(lastGrad, grads[i])
				continue
			}
			r, c := p.Dims()
			lastGrad = append(lastGrad, make([]float64, r*c)...)
		}
		lastX = append(lastX[:0], x...)
		lastF = loss
	}
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			eval(x)
			return lastF
		},
		Grad: func(grad, x []float64) {
			eval(x)
			copy(grad, lastGrad)
		},
	}
	settings := &optimize.Settings{
		MajorIterations: o.Iterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-12,
			Iterations: 20,
		},
	}
	res, err := optimize.Minimize(problem, Flatten(nil, params), settings, &optimize.LBFGS{Store: o.Store})
	if evalErr != nil {
		return nil, errors.Wrap(evalErr, "lbfgs objective")
	}
	if res != nil {
		Unflatten(params, res.X)
	}
	if err != nil {
		return res, errors.Wrap(err, "lbfgs")
	}
	return res, nil
}

func equal(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
