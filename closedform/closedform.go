// Package closedform solves for output layer weights in closed form.
//
// A System is a set of named row blocks. Each block pairs features A evaluated at
// collocation points with the targets Y those features must reproduce, for example the
// equation operator applied to the basis against the forcing, or the basis on a boundary
// against the boundary data. The solution W minimizes
//
//	Σ weightᵢ² ‖AᵢW − Yᵢ‖² + ridge ‖W‖²
//
// and is found either through the normal equations or a rank revealing least squares fit.
package closedform

import "math"

import "github.com/pkg/errors"
import "gonum.org/v1/gonum/mat"

// ErrSingular is reported when the system has no unique solution.
var ErrSingular = errors.New("closedform: singular system")

// ErrUnknownMethod is reported for a method name that is not recognized.
var ErrUnknownMethod = errors.New("closedform: unknown method")

// ErrShape is reported when blocks disagree on columns or right hand sides.
var ErrShape = errors.New("closedform: shape mismatch")

// Method selects how the system is solved.
type Method string

const (
	// NormalEquations solves (AᵀA + ridge I) W = AᵀY by Cholesky, falling back to LU.
	NormalEquations Method = "normal"
	// LeastSquares solves the stacked system by SVD.
	LeastSquares Method = "lstsq"
)

// ParseMethod parses a method name.
func ParseMethod(name string) (Method, error) {
	switch Method(name) {
	case NormalEquations, LeastSquares:
		return Method(name), nil
	case "solve":
		return NormalEquations, nil
	}
	return "", errors.Wrapf(ErrUnknownMethod, "%q", name)
}

// Block is one group of rows of the system.
type Block struct {
	Name   string
	A      mat.Matrix
	Y      mat.Matrix
	// Weight scales the rows of the block. Zero switches the block off while Report still
	// evaluates its residual; negative weights are rejected.
	Weight float64
}

// System collects row blocks for a closed-form solve.
type System struct {
	Blocks []Block

	// Ridge is the Tikhonov regularization strength.
	Ridge float64
	// RCond is the relative cutoff for small singular values in LeastSquares.
	// Zero selects machine epsilon times the largest dimension.
	RCond float64
}

// Add appends a block of rows.
func (s *System) Add(name string, a, y mat.Matrix, weight float64) {
	s.Blocks = append(s.Blocks, Block{Name: name, A: a, Y: y, Weight: weight})
}

// Dims returns the number of rows, unknowns and right hand sides.
func (s *System) Dims() (rows, cols, rhs int, err error) {
	if len(s.Blocks) == 0 {
		return 0, 0, 0, errors.Wrap(ErrShape, "system has no blocks")
	}
	_, cols = s.Blocks[0].A.Dims()
	_, rhs = s.Blocks[0].Y.Dims()
	for _, b := range s.Blocks {
		ar, ac := b.A.Dims()
		yr, yc := b.Y.Dims()
		if ac != cols || yc != rhs || ar != yr {
			return 0, 0, 0, errors.Wrapf(ErrShape, "block %s is %dx%d against %dx%d, want %d columns and %d right hand sides",
				b.Name, ar, ac, yr, yc, cols, rhs)
		}
		if !(b.Weight >= 0) || math.IsInf(b.Weight, 0) {
			return 0, 0, 0, errors.Wrapf(ErrShape, "block %s has weight %g", b.Name, b.Weight)
		}
		rows += ar
	}
	return rows, cols, rhs, nil
}

// Solve returns the weights, one column per right hand side.
func (s *System) Solve(method Method) (*mat.Dense, error) {
	switch method {
	case NormalEquations:
		return s.solveNormal()
	case LeastSquares:
		return s.solveLstsq()
	}
	return nil, errors.Wrapf(ErrUnknownMethod, "%q", method)
}

// Normal returns AᵀA + ridge I and AᵀY accumulated over all blocks.
func (s *System) Normal() (*mat.SymDense, *mat.Dense, error) {
	_, cols, rhs, err := s.Dims()
	if err != nil {
		return nil, nil, err
	}
	ata := mat.NewSymDense(cols, nil)
	aty := mat.NewDense(cols, rhs, nil)
	var tmp mat.Dense
	for _, b := range s.Blocks {
		w2 := b.Weight * b.Weight
		ata.SymRankK(ata, w2, b.A.T())
		tmp.Mul(b.A.T(), b.Y)
		tmp.Scale(w2, &tmp)
		aty.Add(aty, &tmp)
	}
	for i := 0; i < cols; i++ {
		ata.SetSym(i, i, ata.At(i, i)+s.Ridge)
	}
	return ata, aty, nil
}

func (s *System) solveNormal() (*mat.Dense, error) {
	ata, aty, err := s.Normal()
	if err != nil {
		return nil, err
	}
	cols, rhs := aty.Dims()
	w := mat.NewDense(cols, rhs, nil)

	var chol mat.Cholesky
	if chol.Factorize(ata) {
		if err := chol.SolveTo(w, aty); accept(err) && finite(w) {
			return w, nil
		}
	}
	var lu mat.LU
	lu.Factorize(ata)
	if err := lu.SolveTo(w, false, aty); !accept(err) {
		return nil, errors.Wrap(ErrSingular, err.Error())
	}
	if !finite(w) {
		return nil, errors.Wrap(ErrSingular, "normal equations gave non-finite weights")
	}
	return w, nil
}

// Stack returns the weighted row blocks stacked into one matrix pair, with √ridge·I rows
// appended when the system is regularized.
func (s *System) Stack() (*mat.Dense, *mat.Dense, error) {
	rows, cols, rhs, err := s.Dims()
	if err != nil {
		return nil, nil, err
	}
	if s.Ridge > 0 {
		rows += cols
	}
	a := mat.NewDense(rows, cols, nil)
	y := mat.NewDense(rows, rhs, nil)
	n := 0
	for _, b := range s.Blocks {
		r, _ := b.A.Dims()
		av := a.Slice(n, n+r, 0, cols).(*mat.Dense)
		av.Scale(b.Weight, b.A)
		yv := y.Slice(n, n+r, 0, rhs).(*mat.Dense)
		yv.Scale(b.Weight, b.Y)
		n += r
	}
	if s.Ridge > 0 {
		sq := math.Sqrt(s.Ridge)
		for i := 0; i < cols; i++ {
			a.Set(n+i, i, sq)
		}
	}
	return a, y, nil
}

func (s *System) solveLstsq() (*mat.Dense, error) {
	a, y, err := s.Stack()
	if err != nil {
		return nil, err
	}
	rows, cols := a.Dims()
	_, rhs := y.Dims()

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return nil, errors.Wrap(ErrSingular, "svd did not converge")
	}
	rcond := s.RCond
	if rcond <= 0 {
		rcond = float64(max(rows, cols)) * eps
	}
	rank := svd.Rank(rcond)
	if rank == 0 {
		return nil, errors.Wrap(ErrSingular, "system has rank zero")
	}
	w := mat.NewDense(cols, rhs, nil)
	svd.SolveTo(w, y, rank)
	return w, nil
}

// accept tolerates ill conditioning. The solution is still written and checked for finiteness.
func accept(err error) bool {
	var cond mat.Condition
	if err == nil {
		return true
	}
	return errors.As(err, &cond) && !math.IsInf(float64(cond), 1)
}

const eps = 2.220446049250313e-16

func finite(m mat.Matrix) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}
