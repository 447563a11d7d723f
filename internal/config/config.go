// Package config holds the run configuration: every hyperparameter and
// path the CLI exposes. A Config is assembled once from flags (optionally
// seeded from a YAML preset), validated for the selected mode, then
// treated as immutable for the rest of the run.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Run modes.
const (
	ModeTrain        = "train"
	ModeShowExamples = "show_examples"
	ModeOfficialEval = "official_eval"
)

// Compute devices.
const (
	DeviceCPU    = "cpu"
	DeviceWebGPU = "webgpu"
)

// gloveDims are the dimensions the published GloVe 6B archives come in.
var gloveDims = map[int]bool{50: true, 100: true, 200: true, 300: true}

// Config is the flat set of knobs for one run.
type Config struct {
	Mode           string `json:"mode" yaml:"mode"`
	ExperimentName string `json:"experiment_name" yaml:"experiment_name"`
	TrainDir       string `json:"train_dir" yaml:"train_dir"`
	GPU            int    `json:"gpu" yaml:"gpu"`
	Device         string `json:"device" yaml:"device"`
	Seed           int64  `json:"seed" yaml:"seed"`
	Verbose        bool   `json:"verbose" yaml:"verbose"`

	NumEpochs       int     `json:"num_epochs" yaml:"num_epochs"`
	LearningRate    float64 `json:"learning_rate" yaml:"learning_rate"`
	MaxGradientNorm float64 `json:"max_gradient_norm" yaml:"max_gradient_norm"`
	Dropout         float64 `json:"dropout" yaml:"dropout"`
	BatchSize       int     `json:"batch_size" yaml:"batch_size"`
	HiddenSize      int     `json:"hidden_size" yaml:"hidden_size"`
	ContextLen      int     `json:"context_len" yaml:"context_len"`
	QuestionLen     int     `json:"question_len" yaml:"question_len"`
	EmbeddingSize   int     `json:"embedding_size" yaml:"embedding_size"`

	PrintEvery int `json:"print_every" yaml:"print_every"`
	SaveEvery  int `json:"save_every" yaml:"save_every"`
	EvalEvery  int `json:"eval_every" yaml:"eval_every"`
	Keep       int `json:"keep" yaml:"keep"`

	GlovePath   string `json:"glove_path" yaml:"glove_path"`
	DataDir     string `json:"data_dir" yaml:"data_dir"`
	CkptLoadDir string `json:"ckpt_load_dir" yaml:"ckpt_load_dir"`
	JSONInPath  string `json:"json_in_path" yaml:"json_in_path"`
	JSONOutPath string `json:"json_out_path" yaml:"json_out_path"`
}

// Default returns the canonical hyperparameter defaults.
func Default() *Config {
	return &Config{
		Mode:            ModeTrain,
		Device:          DeviceCPU,
		Seed:            42,
		NumEpochs:       0,
		LearningRate:    0.001,
		MaxGradientNorm: 5.0,
		Dropout:         0.15,
		BatchSize:       100,
		HiddenSize:      200,
		ContextLen:      600,
		QuestionLen:     30,
		EmbeddingSize:   100,
		PrintEvery:      1,
		SaveEvery:       500,
		EvalEvery:       500,
		Keep:            1,
		DataDir:         "data",
		JSONOutPath:     "predictions.json",
	}
}

// DeriveDefaults fills the path fields that depend on other settings:
// TrainDir from the experiment name, GlovePath from the embedding size.
// Explicitly set values are left alone.
func (c *Config) DeriveDefaults() {
	if c.TrainDir == "" && c.ExperimentName != "" {
		c.TrainDir = filepath.Join("experiments", c.ExperimentName)
	}
	if c.GlovePath == "" {
		c.GlovePath = filepath.Join(c.DataDir, fmt.Sprintf("glove.6B.%dd.txt", c.EmbeddingSize))
	}
}

// Validate fails fast on settings inconsistent with the selected mode.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeTrain, ModeShowExamples:
		if c.ExperimentName == "" && c.TrainDir == "" {
			return fmt.Errorf("you need to specify either --experiment_name or --train_dir")
		}
	case ModeOfficialEval:
		if c.JSONInPath == "" {
			return fmt.Errorf("for mode official_eval, you need to specify --json_in_path")
		}
		if c.CkptLoadDir == "" {
			return fmt.Errorf("for mode official_eval, you need to specify --ckpt_load_dir")
		}
	default:
		return fmt.Errorf("unsupported mode: %q", c.Mode)
	}

	if c.Device != DeviceCPU && c.Device != DeviceWebGPU {
		return fmt.Errorf("unsupported device: %q", c.Device)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.HiddenSize <= 0 {
		return fmt.Errorf("hidden_size must be positive, got %d", c.HiddenSize)
	}
	if c.ContextLen <= 0 || c.QuestionLen <= 0 {
		return fmt.Errorf("context_len and question_len must be positive, got %d and %d",
			c.ContextLen, c.QuestionLen)
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("dropout must be in [0, 1), got %g", c.Dropout)
	}
	if c.NumEpochs < 0 {
		return fmt.Errorf("num_epochs must be >= 0, got %d", c.NumEpochs)
	}
	if !gloveDims[c.EmbeddingSize] {
		return fmt.Errorf("embedding_size must be one of the GloVe dimensions 50/100/200/300, got %d",
			c.EmbeddingSize)
	}
	return nil
}

// SaveJSON snapshots the configuration, written to the train dir at the
// start of every training run so the experiment is reproducible.
func (c *Config) SaveJSON(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write config snapshot: %w", err)
	}
	return nil
}

// LoadYAML overlays a hyperparameter preset file onto the config.
func (c *Config) LoadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// BestCheckpointDir is where the best-dev-F1 model weights live.
func (c *Config) BestCheckpointDir() string {
	return filepath.Join(c.TrainDir, "best_checkpoint")
}

// Tokenized data file paths.

func (c *Config) TrainContextPath() string  { return filepath.Join(c.DataDir, "train.context") }
func (c *Config) TrainQuestionPath() string { return filepath.Join(c.DataDir, "train.question") }
func (c *Config) TrainSpanPath() string     { return filepath.Join(c.DataDir, "train.span") }
func (c *Config) DevContextPath() string    { return filepath.Join(c.DataDir, "dev.context") }
func (c *Config) DevQuestionPath() string   { return filepath.Join(c.DataDir, "dev.question") }
func (c *Config) DevSpanPath() string       { return filepath.Join(c.DataDir, "dev.span") }
