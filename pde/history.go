package pde

import "gonum.org/v1/plot"

import "github.com/neurlang/pinn/viz"

// History records training losses, one entry per step.
type History struct {
	Equation   []float64
	Conditions []float64
	// Residual holds the test residuals together with the iteration they were taken at.
	Residual   []float64
	ResidualAt []float64
}

// Add records the losses of one step.
func (h *History) Add(l *Loss) {
	h.Equation = append(h.Equation, l.Equation.Scalar())
	h.Conditions = append(h.Conditions, l.Conditions.Scalar())
}

// AddResidual records a test residual taken at iteration itr.
func (h *History) AddResidual(itr int, r float64) {
	h.Residual = append(h.Residual, r)
	h.ResidualAt = append(h.ResidualAt, float64(itr))
}

// Len returns the number of recorded steps.
func (h *History) Len() int {
	return len(h.Equation)
}

// Steps returns 1..n for n recorded steps.
func (h *History) Steps() []float64 {
	o := make([]float64, len(h.Equation))
	for i := range o {
		o[i] = float64(i + 1)
	}
	return o
}

// Panel plots the losses on a log scale. It returns nil when nothing was recorded.
func (h *History) Panel() (*plot.Plot, error) {
	if h == nil || h.Len() == 0 {
		return nil, nil
	}
	steps := h.Steps()
	series := []viz.Series{
		viz.NewSeries("equation", steps, h.Equation),
		viz.NewSeries("conditions", steps, h.Conditions),
	}
	if len(h.Residual) > 0 {
		s := viz.NewSeries("test", h.ResidualAt, h.Residual)
		s.Dashed = true
		series = append(series, s)
	}
	return viz.Lines(viz.Labels{Title: "loss", X: "iteration"}, true, series...)
}
