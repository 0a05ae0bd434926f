package config

import "github.com/spf13/pflag"

import "github.com/neurlang/pinn/pde/helmholtz"
import "github.com/neurlang/pinn/pde/systems"
import "github.com/neurlang/pinn/pde/wave"

// keys maps flag names to configuration keys. A leading dot is relative to the problem
// section.
var keys = map[string]string{
	"niters":       "train.niters",
	"test_freq":    "train.test_freq",
	"lr":           "train.lr",
	"weight_decay": "train.weight_decay",
	"optimizer":    "train.optimizer",
	"lbfgs_iters":  "train.lbfgs_iters",
	"seed":         "train.seed",
	"viz":          "train.viz",
	"resume":       "train.resume",
	"pgo":          "train.pgo",
	"method":       "solver.methods",
	"solver_seed":  "solver.seed",
	"dstmodel":     "output.dstmodel",
	"output":       "output.dir",
	"log_level":    "logger.level",
	"log_format":   "logger.format",
	"hidden_size":  ".hidden_size",
	"bs":           ".bs",
	"tmax":         ".tmax",
	"dt":           ".dt",
	"ridge":        ".ridge",
	"rcond":        ".rcond",
}

func flagKey(problem, name string) (string, bool) {
	key, ok := keys[name]
	if ok && key[0] == '.' {
		key = problem + key
	}
	return key, ok
}

// Flags returns the command line flags of the train or infer command of problem.
// Defaults shown in the usage are the problem defaults.
func Flags(problem string, train bool) *pflag.FlagSet {
	fs := pflag.NewFlagSet(problem, pflag.ContinueOnError)
	fs.String("config", "", "configuration file (yaml, json or toml)")
	fs.String("dstmodel", problem+".json.zlib", "model checkpoint .json.zlib file")
	fs.String("output", "plots", "directory for image files")
	fs.String("log_level", "info", "log level")
	fs.String("log_format", "text", "log format, text or json")

	if !train {
		fs.StringSlice("method", []string{"normal"}, "closed-form method, normal or lstsq, may be repeated")
		fs.Uint64("solver_seed", 33, "seed of the collocation points sampled for the solve")
		fs.Float64("ridge", 0, "ridge regularisation of the output weights, problem default when unset")
		fs.Float64("rcond", 0, "relative singular value cutoff of lstsq, problem default when unset")
		return fs
	}

	t := trainDefaults(problem)
	fs.Int("niters", t.Niters, "number of training iterations")
	fs.Int("test_freq", t.TestFreq, "iterations between test residual evaluations")
	fs.Float64("lr", t.LR, "learning rate")
	fs.Float64("weight_decay", t.WeightDecay, "L2 weight decay")
	fs.String("optimizer", t.Optimizer, "adam, or lbfgs for a final refinement")
	fs.Int("lbfgs_iters", t.LBFGSIters, "L-BFGS refinement iterations")
	fs.Uint64("seed", t.Seed, "random seed")
	fs.Bool("viz", false, "write training figures at every evaluation")
	fs.Bool("resume", false, "resume training from dstmodel")
	fs.Bool("pgo", false, "write a CPU profile to default.pgo")

	switch problem {
	case helmholtz.Name:
		p := helmholtz.DefaultParams()
		fs.Int("hidden_size", p.Hidden, "hidden layer width")
		fs.Int("bs", p.Batch, "interior points per step")
	case wave.Name:
		p := wave.DefaultParams()
		fs.Int("hidden_size", p.Hidden, "hidden layer width")
		fs.Int("bs", p.Batch, "interior points per step")
		fs.Float64("tmax", p.TMax, "end of the time domain")
	case systems.Name:
		p := systems.DefaultParams()
		fs.Int("hidden_size", p.Hidden, "hidden layer width")
		fs.Float64("tmax", p.TMax, "end of the time domain")
		fs.Float64("dt", p.Dt, "time step of the evaluation grid")
	}
	return fs
}
