package trainer

import "github.com/pkg/errors"

import "github.com/neurlang/pinn/net/feedforward"

// Resume loads the checkpoint dstmodel into net when resume is set.
func Resume(net *feedforward.Network, resume bool, dstmodel string) error {
	if !resume || dstmodel == "" {
		return nil
	}
	if err := net.ReadZlibWeightsFromFile(dstmodel); err != nil {
		return errors.Wrapf(err, "resume from %s", dstmodel)
	}
	return nil
}
