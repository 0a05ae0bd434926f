// Package config loads the run configuration of the train and infer commands.
//
// Values resolve in the order defaults, config file (--config), environment (PINN_ prefix,
// dots replaced by underscores, e.g. PINN_TRAIN_NITERS) and command line flags.
package config

import "strings"

import "github.com/mitchellh/mapstructure"
import "github.com/pkg/errors"
import "github.com/spf13/pflag"
import "github.com/spf13/viper"

import "github.com/neurlang/pinn/closedform"
import "github.com/neurlang/pinn/optimizer"
import "github.com/neurlang/pinn/pde"
import "github.com/neurlang/pinn/pde/helmholtz"
import "github.com/neurlang/pinn/pde/systems"
import "github.com/neurlang/pinn/pde/wave"

// ErrUnknownProblem is reported for a problem name without an experiment.
var ErrUnknownProblem = errors.New("config: unknown problem")

// EnvPrefix prefixes environment overrides.
const EnvPrefix = "PINN"

// Problems lists the known problem names.
var Problems = []string{helmholtz.Name, wave.Name, systems.Name}

type Train struct {
	Niters      int     `mapstructure:"niters"`
	TestFreq    int     `mapstructure:"test_freq"`
	LR          float64 `mapstructure:"lr"`
	WeightDecay float64 `mapstructure:"weight_decay"`
	Optimizer   string  `mapstructure:"optimizer"`
	LBFGSIters  int     `mapstructure:"lbfgs_iters"`
	Seed        uint64  `mapstructure:"seed"`
	Viz         bool    `mapstructure:"viz"`
	Resume      bool    `mapstructure:"resume"`
	PGO         bool    `mapstructure:"pgo"`
}

type Solver struct {
	Methods []string `mapstructure:"methods"`
	Seed    uint64   `mapstructure:"seed"`
}

type Output struct {
	Dir   string `mapstructure:"dir"`
	Model string `mapstructure:"dstmodel"`
}

type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the configuration of one run.
type Config struct {
	Problem string `mapstructure:"problem"`
	Train   Train  `mapstructure:"train"`
	Solver  Solver `mapstructure:"solver"`
	Output  Output `mapstructure:"output"`
	Logger  Logger `mapstructure:"logger"`

	Helmholtz helmholtz.Params `mapstructure:"helmholtz"`
	Wave      wave.Params      `mapstructure:"wave"`
	Systems   systems.Params   `mapstructure:"systems"`
}

func trainDefaults(problem string) Train {
	t := Train{
		Niters:     10000,
		TestFreq:   100,
		LR:         1e-3,
		Optimizer:  string(optimizer.KindAdam),
		LBFGSIters: 200,
		Seed:       33,
	}
	switch problem {
	case helmholtz.Name:
		t.Niters = 40000
		t.TestFreq = 200
	case systems.Name:
		t.WeightDecay = 1e-6
	}
	return t
}

func known(problem string) bool {
	for _, p := range Problems {
		if p == problem {
			return true
		}
	}
	return false
}

func setDefaults(v *viper.Viper, problem string) error {
	v.SetDefault("problem", problem)
	sections := map[string]any{
		"train":         trainDefaults(problem),
		"solver":        Solver{Methods: []string{string(closedform.NormalEquations)}, Seed: 33},
		"output":        Output{Dir: "plots", Model: problem + ".json.zlib"},
		"logger":        Logger{Level: "info", Format: "text"},
		helmholtz.Name: helmholtz.DefaultParams(),
		wave.Name:      wave.DefaultParams(),
		systems.Name:   systems.DefaultParams(),
	}
	for key, section := range sections {
		var m map[string]any
		if err := mapstructure.Decode(section, &m); err != nil {
			return errors.Wrapf(err, "defaults of %s", key)
		}
		for k, val := range m {
			v.SetDefault(key+"."+k, val)
		}
	}
	return nil
}

// Load resolves the configuration of problem from the defaults, the config file, the
// environment and the flags parsed from args. fs comes from Flags.
func Load(problem string, fs *pflag.FlagSet, args []string) (*Config, error) {
	if !known(problem) {
		return nil, errors.Wrap(ErrUnknownProblem, problem)
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	v := viper.New()
	if err := setDefaults(v, problem); err != nil {
		return nil, err
	}

	if file, _ := fs.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", file)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		key, ok := flagKey(problem, f.Name)
		if !ok || err != nil {
			return
		}
		err = v.BindPFlag(key, f)
	})
	if err != nil {
		return nil, errors.Wrap(err, "bind flags")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	cfg.Problem = problem
	return &cfg, nil
}

// NewProblem returns the experiment of the configured problem.
func (c *Config) NewProblem() (pde.Problem, error) {
	switch c.Problem {
	case helmholtz.Name:
		return helmholtz.New(c.Helmholtz)
	case wave.Name:
		return wave.New(c.Wave)
	case systems.Name:
		return systems.New(c.Systems)
	}
	return nil, errors.Wrap(ErrUnknownProblem, c.Problem)
}

// Methods returns the configured closed-form methods.
func (c *Config) Methods() ([]closedform.Method, error) {
	var out []closedform.Method
	for _, name := range c.Solver.Methods {
		for _, part := range strings.Split(name, ",") {
			m, err := closedform.ParseMethod(strings.TrimSpace(part))
			if err != nil {
				return nil, err
			}
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return nil, errors.Wrap(closedform.ErrUnknownMethod, "no method configured")
	}
	return out, nil
}
