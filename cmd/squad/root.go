package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ghego/cs224n-win18-squad/internal/config"
)

// flagCfg receives the raw command-line values; only explicitly changed
// flags are copied onto the effective config, so a YAML preset loses to
// anything typed on the command line.
var (
	flagCfg    = config.Default()
	configFile string
)

var rootCmd = &cobra.Command{
	Use:           "squad",
	Short:         "train and evaluate a SQuAD span-prediction QA model",
	Long:          "squad trains a span-prediction question answering model on tokenized SQuAD data,\ninspects qualitative examples, and produces official-evaluation predictions.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

// Execute runs the CLI, printing failures and exiting non-zero.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.Flags()

	flags.StringVar(&flagCfg.Mode, "mode", flagCfg.Mode, "available modes: train / show_examples / official_eval")
	flags.StringVar(&flagCfg.ExperimentName, "experiment_name", "", "unique name for the experiment; creates experiments/<name> as the train dir")
	flags.StringVar(&flagCfg.TrainDir, "train_dir", "", "training directory for checkpoints and logs (default experiments/<experiment_name>)")
	flags.IntVar(&flagCfg.GPU, "gpu", 0, "which GPU to use, if you have multiple")
	flags.StringVar(&flagCfg.Device, "device", flagCfg.Device, "compute backend: cpu / webgpu")
	flags.Int64Var(&flagCfg.Seed, "seed", flagCfg.Seed, "RNG seed for parameter init and batch shuffling")
	flags.BoolVar(&flagCfg.Verbose, "verbose", false, "debug-level logging")
	flags.StringVar(&configFile, "config", "", "YAML hyperparameter preset; explicit flags win")

	flags.IntVar(&flagCfg.NumEpochs, "num_epochs", flagCfg.NumEpochs, "number of epochs to train; 0 means train indefinitely")
	flags.Float64Var(&flagCfg.LearningRate, "learning_rate", flagCfg.LearningRate, "learning rate")
	flags.Float64Var(&flagCfg.MaxGradientNorm, "max_gradient_norm", flagCfg.MaxGradientNorm, "clip gradients to this norm")
	flags.Float64Var(&flagCfg.Dropout, "dropout", flagCfg.Dropout, "fraction of units randomly dropped")
	flags.IntVar(&flagCfg.BatchSize, "batch_size", flagCfg.BatchSize, "batch size")
	flags.IntVar(&flagCfg.HiddenSize, "hidden_size", flagCfg.HiddenSize, "size of the hidden states")
	flags.IntVar(&flagCfg.ContextLen, "context_len", flagCfg.ContextLen, "maximum context length")
	flags.IntVar(&flagCfg.QuestionLen, "question_len", flagCfg.QuestionLen, "maximum question length")
	flags.IntVar(&flagCfg.EmbeddingSize, "embedding_size", flagCfg.EmbeddingSize, "pretrained word vector size; one of the GloVe dimensions 50/100/200/300")

	flags.IntVar(&flagCfg.PrintEvery, "print_every", flagCfg.PrintEvery, "how many iterations per progress print")
	flags.IntVar(&flagCfg.SaveEvery, "save_every", flagCfg.SaveEvery, "how many iterations per checkpoint save")
	flags.IntVar(&flagCfg.EvalEvery, "eval_every", flagCfg.EvalEvery, "how many iterations per dev-set loss/F1/EM calculation")
	flags.IntVar(&flagCfg.Keep, "keep", flagCfg.Keep, "how many checkpoints to keep; 0 keeps all")

	flags.StringVar(&flagCfg.GlovePath, "glove_path", "", "path to glove .txt file (default <data_dir>/glove.6B.<embedding_size>d.txt)")
	flags.StringVar(&flagCfg.DataDir, "data_dir", flagCfg.DataDir, "where to find preprocessed SQuAD data")
	flags.StringVar(&flagCfg.CkptLoadDir, "ckpt_load_dir", "", "checkpoint directory to load for official_eval mode")
	flags.StringVar(&flagCfg.JSONInPath, "json_in_path", "", "JSON input path for official_eval mode")
	flags.StringVar(&flagCfg.JSONOutPath, "json_out_path", flagCfg.JSONOutPath, "output path for official_eval mode")
}

func run(cmd *cobra.Command, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unexpected arguments: %v", args)
	}

	cfg := config.Default()
	if configFile != "" {
		if err := cfg.LoadYAML(configFile); err != nil {
			return err
		}
	}
	applyFlagOverrides(cmd, cfg)

	// Must happen before any GPU work.
	os.Setenv("CUDA_VISIBLE_DEVICES", strconv.Itoa(cfg.GPU))

	cfg.DeriveDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg.Verbose)
	return dispatch(cfg, logger)
}

// applyFlagOverrides copies every flag the user actually set from the
// flag config onto the effective config.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	set := func(name string) bool { return cmd.Flags().Changed(name) }

	if set("mode") {
		cfg.Mode = flagCfg.Mode
	}
	if set("experiment_name") {
		cfg.ExperimentName = flagCfg.ExperimentName
	}
	if set("train_dir") {
		cfg.TrainDir = flagCfg.TrainDir
	}
	if set("gpu") {
		cfg.GPU = flagCfg.GPU
	}
	if set("device") {
		cfg.Device = flagCfg.Device
	}
	if set("seed") {
		cfg.Seed = flagCfg.Seed
	}
	if set("verbose") {
		cfg.Verbose = flagCfg.Verbose
	}
	if set("num_epochs") {
		cfg.NumEpochs = flagCfg.NumEpochs
	}
	if set("learning_rate") {
		cfg.LearningRate = flagCfg.LearningRate
	}
	if set("max_gradient_norm") {
		cfg.MaxGradientNorm = flagCfg.MaxGradientNorm
	}
	if set("dropout") {
		cfg.Dropout = flagCfg.Dropout
	}
	if set("batch_size") {
		cfg.BatchSize = flagCfg.BatchSize
	}
	if set("hidden_size") {
		cfg.HiddenSize = flagCfg.HiddenSize
	}
	if set("context_len") {
		cfg.ContextLen = flagCfg.ContextLen
	}
	if set("question_len") {
		cfg.QuestionLen = flagCfg.QuestionLen
	}
	if set("embedding_size") {
		cfg.EmbeddingSize = flagCfg.EmbeddingSize
	}
	if set("print_every") {
		cfg.PrintEvery = flagCfg.PrintEvery
	}
	if set("save_every") {
		cfg.SaveEvery = flagCfg.SaveEvery
	}
	if set("eval_every") {
		cfg.EvalEvery = flagCfg.EvalEvery
	}
	if set("keep") {
		cfg.Keep = flagCfg.Keep
	}
	if set("glove_path") {
		cfg.GlovePath = flagCfg.GlovePath
	}
	if set("data_dir") {
		cfg.DataDir = flagCfg.DataDir
	}
	if set("ckpt_load_dir") {
		cfg.CkptLoadDir = flagCfg.CkptLoadDir
	}
	if set("json_in_path") {
		cfg.JSONInPath = flagCfg.JSONInPath
	}
	if set("json_out_path") {
		cfg.JSONOutPath = flagCfg.JSONOutPath
	}
}

type logFormatter struct{}

func (f *logFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var levelText string
	switch entry.Level {
	case logrus.InfoLevel:
		levelText = "[INF]"
	case logrus.WarnLevel:
		levelText = "[WARN]"
	case logrus.ErrorLevel:
		levelText = "[ERR]"
	case logrus.DebugLevel:
		levelText = "[DBG]"
	default:
		levelText = "[???]"
	}
	return []byte(fmt.Sprintf("%s %s\n", levelText, entry.Message)), nil
}

func newLogger(verbose bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logFormatter{})
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}
