package trainer

import "context"

import "github.com/google/uuid"
import "github.com/pkg/errors"
import log "github.com/sirupsen/logrus"

import "github.com/neurlang/pinn/net/feedforward"
import "github.com/neurlang/pinn/pde"

// Loop configures NewLoopFunc.
type Loop struct {
	Niters   int
	TestFreq int
	// Viz writes training figures into Dir at every evaluation.
	Viz bool
	Dir string
}

// NewLoopFunc returns the training loop. It runs step Niters times, evaluates every
// TestFreq iterations and after the last one, and records the losses into history.
// It stops early with the context error when ctx is done.
func NewLoopFunc(ctx context.Context, net *feedforward.Network, prob pde.Problem, loop Loop, history *pde.History,
	step func() (*pde.Loss, error), evaluate func() (float64, error)) func() error {

	return func() error {
		if net.Meta.Run == uuid.Nil {
			net.Meta.Run = uuid.New()
		}
		logger := log.WithFields(log.Fields{"problem": prob.Name(), "run": net.Meta.Run})
		for itr := 1; itr <= loop.Niters; itr++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			loss, err := step()
			if err != nil {
				return errors.Wrapf(err, "iteration %d", itr)
			}
			history.Add(loss)
			if (loop.TestFreq <= 0 || itr%loop.TestFreq != 0) && itr != loop.Niters {
				continue
			}
			residual, err := evaluate()
			if err != nil {
				return errors.Wrapf(err, "evaluate at iteration %d", itr)
			}
			history.AddResidual(itr, residual)
			logger.WithFields(log.Fields{
				"itr":        itr,
				"equation":   loss.Equation.Scalar(),
				"conditions": loss.Conditions.Scalar(),
				"residual":   residual,
			}).Info("train")
			if loop.Viz {
				files, err := prob.Visualize(net, history, loop.Dir)
				if err != nil {
					return err
				}
				logger.WithField("files", files).Debug("visualize")
			}
		}
		return nil
	}
}
