package trainer

import log "github.com/sirupsen/logrus"

import "github.com/neurlang/pinn/net/feedforward"
import "github.com/neurlang/pinn/pde"

// NewEvaluateFunc returns a function computing the test residual of net. When the
// residual improves on *best it is stored in *best and in the network metadata, and the
// network is written to dstmodel unless dstmodel is empty.
func NewEvaluateFunc(net *feedforward.Network, prob pde.Problem, best *float64, dstmodel string) func() (float64, error) {
	return func() (float64, error) {
		residual, err := prob.TestResidual(net)
		if err != nil {
			return 0, err
		}
		if best != nil && residual < *best {
			*best = residual
			net.Meta.Residual = residual
			if dstmodel != "" {
				if err := net.WriteZlibWeightsToFile(dstmodel); err != nil {
					return residual, err
				}
				log.WithFields(log.Fields{"residual": residual, "file": dstmodel}).Debug("checkpoint")
			}
		}
		return residual, nil
	}
}
