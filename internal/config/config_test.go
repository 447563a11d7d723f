package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghego/cs224n-win18-squad/internal/config"
)

func TestDeriveTrainDirFromExperimentName(t *testing.T) {
	cfg := config.Default()
	cfg.ExperimentName = "baseline"
	cfg.DeriveDefaults()

	assert.Equal(t, filepath.Join("experiments", "baseline"), cfg.TrainDir)
}

func TestExplicitTrainDirWins(t *testing.T) {
	cfg := config.Default()
	cfg.ExperimentName = "baseline"
	cfg.TrainDir = "/tmp/elsewhere"
	cfg.DeriveDefaults()

	assert.Equal(t, "/tmp/elsewhere", cfg.TrainDir)
}

func TestDeriveGlovePathFromEmbeddingSize(t *testing.T) {
	cfg := config.Default()
	cfg.EmbeddingSize = 300
	cfg.DeriveDefaults()
	assert.Equal(t, filepath.Join("data", "glove.6B.300d.txt"), cfg.GlovePath)

	// An explicit path is never overwritten.
	cfg = config.Default()
	cfg.GlovePath = "/srv/embeddings/custom.txt"
	cfg.DeriveDefaults()
	assert.Equal(t, "/srv/embeddings/custom.txt", cfg.GlovePath)
}

func TestValidateModeRequirements(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:    "train without experiment or dir",
			mutate:  func(c *config.Config) {},
			wantErr: "experiment_name",
		},
		{
			name: "official_eval without json_in_path",
			mutate: func(c *config.Config) {
				c.Mode = config.ModeOfficialEval
				c.CkptLoadDir = "ckpt"
			},
			wantErr: "json_in_path",
		},
		{
			name: "official_eval without ckpt_load_dir",
			mutate: func(c *config.Config) {
				c.Mode = config.ModeOfficialEval
				c.JSONInPath = "dev.json"
			},
			wantErr: "ckpt_load_dir",
		},
		{
			name: "unknown mode",
			mutate: func(c *config.Config) {
				c.Mode = "finetune"
			},
			wantErr: "unsupported mode",
		},
		{
			name: "bad dropout",
			mutate: func(c *config.Config) {
				c.ExperimentName = "x"
				c.Dropout = 1.0
			},
			wantErr: "dropout",
		},
		{
			name: "bad embedding size",
			mutate: func(c *config.Config) {
				c.ExperimentName = "x"
				c.EmbeddingSize = 123
			},
			wantErr: "embedding_size",
		},
		{
			name: "negative batch size",
			mutate: func(c *config.Config) {
				c.ExperimentName = "x"
				c.BatchSize = -5
			},
			wantErr: "batch_size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateAcceptsGoodConfigs(t *testing.T) {
	train := config.Default()
	train.ExperimentName = "baseline"
	require.NoError(t, train.Validate())

	eval := config.Default()
	eval.Mode = config.ModeOfficialEval
	eval.JSONInPath = "dev.json"
	eval.CkptLoadDir = "experiments/baseline/best_checkpoint"
	require.NoError(t, eval.Validate())
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flags.json")

	cfg := config.Default()
	cfg.ExperimentName = "baseline"
	cfg.HiddenSize = 150
	require.NoError(t, cfg.SaveJSON(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"hidden_size": 150`)
	assert.Contains(t, string(data), `"experiment_name": "baseline"`)
}

func TestLoadYAMLPreset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "preset.yaml")
	preset := "learning_rate: 0.01\nhidden_size: 64\ndropout: 0.3\n"
	require.NoError(t, os.WriteFile(path, []byte(preset), 0o644))

	cfg := config.Default()
	require.NoError(t, cfg.LoadYAML(path))

	assert.Equal(t, 0.01, cfg.LearningRate)
	assert.Equal(t, 64, cfg.HiddenSize)
	assert.Equal(t, 0.3, cfg.Dropout)
	// Untouched fields keep their defaults.
	assert.Equal(t, 100, cfg.BatchSize)
}

func TestDataPathHelpers(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = "corpus"
	cfg.TrainDir = "experiments/run1"

	assert.Equal(t, filepath.Join("corpus", "train.context"), cfg.TrainContextPath())
	assert.Equal(t, filepath.Join("corpus", "dev.span"), cfg.DevSpanPath())
	assert.Equal(t, filepath.Join("experiments", "run1", "best_checkpoint"), cfg.BestCheckpointDir())
}
