package closedform

import "fmt"
import "math"
import "strings"

import "gonum.org/v1/gonum/mat"

// Residual is the fit quality of one block.
type Residual struct {
	Name string
	Rows int
	RMS  float64
}

// Report summarizes a solved system.
type Report struct {
	Method    Method
	Residuals []Residual
	Cond      float64
	Unknowns  int
}

// Report evaluates the unweighted RMS residual of every block for the weights w and the
// 2-norm condition number of the regularized normal matrix.
func (s *System) Report(method Method, w mat.Matrix) (*Report, error) {
	_, cols, _, err := s.Dims()
	if err != nil {
		return nil, err
	}
	rep := &Report{Method: method, Unknowns: cols}
	var diff mat.Dense
	for _, b := range s.Blocks {
		diff.Reset()
		diff.Mul(b.A, w)
		diff.Sub(&diff, b.Y)
		r, c := diff.Dims()
		norm := mat.Norm(&diff, 2)
		rep.Residuals = append(rep.Residuals, Residual{
			Name: b.Name,
			Rows: r,
			RMS:  norm / math.Sqrt(float64(r*c)),
		})
	}
	ata, _, err := s.Normal()
	if err != nil {
		return nil, err
	}
	rep.Cond = mat.Cond(ata, 2)
	return rep, nil
}

// Residual returns the RMS residual of the named block, or NaN.
func (r *Report) Residual(name string) float64 {
	for _, res := range r.Residuals {
		if res.Name == name {
			return res.RMS
		}
	}
	return math.NaN()
}

func (r *Report) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s unknowns=%d cond=%.3g", r.Method, r.Unknowns, r.Cond)
	for _, res := range r.Residuals {
		fmt.Fprintf(&sb, " %s=%.3g", res.Name, res.RMS)
	}
	return sb.String()
}
