// Package runner implements the train and infer commands shared by every problem.
package runner

import "context"
import "math"
import "os"
import "os/signal"
import "syscall"

import "github.com/pkg/errors"
import log "github.com/sirupsen/logrus"
import "github.com/spf13/pflag"

import "github.com/neurlang/pinn/config"
import "github.com/neurlang/pinn/grid"
import "github.com/neurlang/pinn/net/feedforward"
import "github.com/neurlang/pinn/optimizer"
import "github.com/neurlang/pinn/pde"
import "github.com/neurlang/pinn/trainer"

// Main loads the configuration of problem from the command line and runs the train or
// infer command until it finishes or the process is interrupted. Failures are fatal.
func Main(problem string, train bool) {
	cfg, err := parseArgs(problem, train, os.Args[1:])
	if err != nil {
		log.WithError(err).Fatal("configuration")
	}
	if cfg == nil {
		return
	}
	config.InitLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run, name := Infer, "infer"
	if train {
		run, name = Train, "train"
	}
	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		stop()
		log.WithError(err).WithField("problem", problem).Fatal(name)
	}
}

// parseArgs loads the configuration. It returns a nil configuration and no error when only
// the usage was requested.
func parseArgs(problem string, train bool, args []string) (*config.Config, error) {
	cfg, err := config.Load(problem, config.Flags(problem, train), args)
	if errors.Is(err, pflag.ErrHelp) {
		return nil, nil
	}
	return cfg, err
}

// Train trains the network basis of the configured problem and writes the best
// checkpoint to the configured model file.
func Train(ctx context.Context, cfg *config.Config) error {
	if cfg.Train.PGO {
		stop, err := trainer.Profile("default.pgo")
		if err != nil {
			return err
		}
		defer stop()
	}
	prob, err := cfg.NewProblem()
	if err != nil {
		return err
	}
	kind, err := optimizer.ParseKind(cfg.Train.Optimizer)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return errors.Wrap(err, "output directory")
	}

	net := prob.NewNetwork(cfg.Train.Seed)
	if err := trainer.Resume(net, cfg.Train.Resume, cfg.Output.Model); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"problem":    prob.Name(),
		"parameters": net.Len(),
		"width":      net.Width(),
		"resume":     cfg.Train.Resume,
	}).Info("network")

	best := math.Inf(1)
	if cfg.Train.Resume {
		best = net.Meta.Residual
	}
	rng := grid.NewRand(cfg.Train.Seed)
	var history pde.History
	step := trainer.NewStepFunc(net, prob, optimizer.NewAdam(cfg.Train.LR, cfg.Train.WeightDecay), rng)
	evaluate := trainer.NewEvaluateFunc(net, prob, &best, cfg.Output.Model)
	loop := trainer.Loop{
		Niters:   cfg.Train.Niters,
		TestFreq: cfg.Train.TestFreq,
		Viz:      cfg.Train.Viz,
		Dir:      cfg.Output.Dir,
	}
	if err := trainer.NewLoopFunc(ctx, net, prob, loop, &history, step, evaluate)(); err != nil {
		return err
	}

	if kind == optimizer.KindLBFGS {
		res, err := trainer.Refine(net, prob, &optimizer.LBFGS{Store: 10, Iterations: cfg.Train.LBFGSIters}, rng)
		if err != nil {
			return err
		}
		residual, err := evaluate()
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"problem":  prob.Name(),
			"loss":     res.F,
			"residual": residual,
			"status":   res.Status.String(),
		}).Info("lbfgs")
	}

	files, err := prob.Visualize(net, &history, cfg.Output.Dir)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"problem": prob.Name(), "best": best, "model": cfg.Output.Model, "files": files}).Info("done")
	return nil
}

// Infer loads the trained basis and transfers it to the configured transfer equation
// with every configured method.
func Infer(ctx context.Context, cfg *config.Config) error {
	prob, err := cfg.NewProblem()
	if err != nil {
		return err
	}
	methods, err := cfg.Methods()
	if err != nil {
		return err
	}
	var net feedforward.Network
	if err := net.ReadZlibWeightsFromFile(cfg.Output.Model); err != nil {
		return errors.Wrapf(err, "load %s", cfg.Output.Model)
	}
	if net.Meta.Problem != "" && net.Meta.Problem != prob.Name() {
		return errors.Wrapf(feedforward.ErrArchitecture, "%s is a %s checkpoint", cfg.Output.Model, net.Meta.Problem)
	}
	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return errors.Wrap(err, "output directory")
	}

	solutions, err := prob.Transfer(&net, grid.NewRand(cfg.Solver.Seed), methods...)
	if err != nil {
		return err
	}
	for _, sol := range solutions {
		if err := ctx.Err(); err != nil {
			return err
		}
		logger := log.WithFields(log.Fields{
			"problem": sol.Problem,
			"method":  sol.Method,
			"run":     net.Meta.Run,
			"elapsed": sol.Elapsed,
		})
		if mse, std, err := sol.Errors(); err == nil {
			logger = logger.WithFields(log.Fields{"mse": mse, "std": std})
		} else if !errors.Is(err, pde.ErrNoReference) {
			return err
		}
		logger.WithField("report", sol.Report.String()).Info("transfer")

		files, err := prob.Plot(sol, cfg.Output.Dir)
		if err != nil {
			return err
		}
		logger.WithField("files", files).Debug("plot")
	}
	return nil
}
