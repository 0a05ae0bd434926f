package trainer

import "os"
import "runtime/pprof"

import "github.com/pkg/errors"

// Profile writes a CPU profile to name until the returned function is called. The
// default.pgo name is picked up by profile guided optimisation of go build.
func Profile(name string) (stop func(), err error) {
	f, err := os.Create(name)
	if err != nil {
		return nil, errors.Wrap(err, "create profile")
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "start profile")
	}
	return func() {
		pprof.StopCPUProfile()
		f.Close()
	}, nil
}
