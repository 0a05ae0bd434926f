package runner

import "context"
import "path/filepath"
import "testing"

import "github.com/stretchr/testify/assert"
import "github.com/stretchr/testify/require"

import "github.com/neurlang/pinn/config"
import "github.com/neurlang/pinn/net/feedforward"
import "github.com/neurlang/pinn/pde/helmholtz"
import "github.com/neurlang/pinn/pde/systems"

func load(t *testing.T, problem string, train bool, args ...string) *config.Config {
	cfg, err := config.Load(problem, config.Flags(problem, train), args)
	require.NoError(t, err)
	return cfg
}

func TestTrainThenInfer(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "systems.json.zlib")
	common := []string{"--output", dir, "--dstmodel", model, "--log_level", "warn"}

	cfg := load(t, systems.Name, true, append(common, "--niters=40", "--test_freq=20", "--hidden_size=8",
		"--optimizer=lbfgs", "--lbfgs_iters=5")...)
	require.NoError(t, Train(context.Background(), cfg))
	assert.FileExists(t, model)
	assert.FileExists(t, filepath.Join(dir, "systems_train.png"))

	var net feedforward.Network
	require.NoError(t, net.ReadZlibWeightsFromFile(model))
	assert.Equal(t, systems.Name, net.Meta.Problem)
	assert.Equal(t, 8, net.Width())

	cfg = load(t, systems.Name, false, append(common, "--method", "lstsq")...)
	require.NoError(t, Infer(context.Background(), cfg))
	assert.FileExists(t, filepath.Join(dir, "systems_lstsq.png"))

	cfg = load(t, helmholtz.Name, false, common...)
	assert.ErrorIs(t, Infer(context.Background(), cfg), feedforward.ErrArchitecture)
}

func TestTrainResumes(t *testing.T) {
	dir := t.TempDir()
	args := []string{"--output", dir, "--dstmodel", filepath.Join(dir, "m.json.zlib"), "--niters=4",
		"--test_freq=2", "--hidden_size=4"}
	require.NoError(t, Train(context.Background(), load(t, systems.Name, true, args...)))
	require.NoError(t, Train(context.Background(), load(t, systems.Name, true, append(args, "--resume")...)))

	cfg := load(t, systems.Name, true, append(args, "--resume", "--hidden_size=6")...)
	assert.ErrorIs(t, Train(context.Background(), cfg), feedforward.ErrArchitecture)
}

func TestTrainCancelled(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := load(t, systems.Name, true, "--output", dir, "--dstmodel", filepath.Join(dir, "m.json.zlib"))
	assert.ErrorIs(t, Train(ctx, cfg), context.Canceled)
}

func TestInferMissingModel(t *testing.T) {
	dir := t.TempDir()
	cfg := load(t, systems.Name, false, "--output", dir, "--dstmodel", filepath.Join(dir, "none.json.zlib"))
	assert.Error(t, Infer(context.Background(), cfg))
}

func TestParseArgsHelp(t *testing.T) {
	cfg, err := parseArgs(systems.Name, true, []string{"--help"})
	assert.NoError(t, err)
	assert.Nil(t, cfg)

	cfg, err = parseArgs(systems.Name, false, []string{"--niters=3"})
	assert.Error(t, err)
	assert.Nil(t, cfg)

	cfg, err = parseArgs(systems.Name, true, []string{"--niters=3"})
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Train.Niters)
}
