package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/ghego/cs224n-win18-squad/internal/autodiff"
	"github.com/ghego/cs224n-win18-squad/internal/backend/cpu"
	"github.com/ghego/cs224n-win18-squad/internal/backend/webgpu"
	"github.com/ghego/cs224n-win18-squad/internal/checkpoint"
	"github.com/ghego/cs224n-win18-squad/internal/config"
	"github.com/ghego/cs224n-win18-squad/internal/qa"
	"github.com/ghego/cs224n-win18-squad/internal/squad"
	"github.com/ghego/cs224n-win18-squad/internal/tensor"
	"github.com/ghego/cs224n-win18-squad/internal/tokenizer"
	"github.com/ghego/cs224n-win18-squad/internal/vocab"
)

// checkpointPrefix names every checkpoint file, so any checkpoint
// directory can be handed to --ckpt_load_dir.
const checkpointPrefix = "qa"

// dispatch picks the compute backend and hands off to the generic mode
// runner.
func dispatch(cfg *config.Config, logger *logrus.Logger) error {
	switch cfg.Device {
	case config.DeviceWebGPU:
		gpu, err := webgpu.New()
		if err != nil {
			return fmt.Errorf("webgpu init: %w", err)
		}
		return runModes(cfg, logger, autodiff.New(gpu))
	default:
		return runModes(cfg, logger, autodiff.New(cpu.New()))
	}
}

// runModes loads the vocabulary, builds the model, and runs the selected
// mode.
func runModes[B autodiff.Capable](cfg *config.Config, logger *logrus.Logger, backend B) error {
	tensor.Seed(cfg.Seed)

	v, err := vocab.LoadGloVe(cfg.GlovePath, cfg.EmbeddingSize, logger)
	if err != nil {
		return err
	}

	model, err := qa.NewModel(cfg, v, backend, logger)
	if err != nil {
		return err
	}

	switch cfg.Mode {
	case config.ModeTrain:
		return runTrain(cfg, logger, model, backend.Device(), v)
	case config.ModeShowExamples:
		return runShowExamples(cfg, logger, model, backend.Device(), v)
	case config.ModeOfficialEval:
		return runOfficialEval(cfg, logger, model, backend.Device())
	default:
		return fmt.Errorf("unsupported mode: %q", cfg.Mode)
	}
}

func runTrain[B autodiff.Capable](
	cfg *config.Config,
	logger *logrus.Logger,
	model *qa.Model[B],
	device tensor.Device,
	v *vocab.Vocab,
) error {
	if err := os.MkdirAll(cfg.TrainDir, 0o755); err != nil {
		return fmt.Errorf("create train dir: %w", err)
	}

	logFile, err := os.OpenFile(filepath.Join(cfg.TrainDir, "log.txt"),
		os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	logger.SetOutput(io.MultiWriter(os.Stderr, logFile))

	if err := cfg.SaveJSON(filepath.Join(cfg.TrainDir, "flags.json")); err != nil {
		return err
	}

	mgr, err := checkpoint.NewManager(cfg.TrainDir, checkpointPrefix, cfg.Keep, logger)
	if err != nil {
		return err
	}
	bestMgr, err := checkpoint.NewManager(cfg.BestCheckpointDir(), checkpointPrefix, 1, logger)
	if err != nil {
		return err
	}

	globalStep, epoch, err := checkpoint.Initialize[B](model, model.Optimizer(), mgr, false, device, logger)
	if err != nil {
		return err
	}

	train, err := squad.LoadDataset(cfg.TrainContextPath(), cfg.TrainQuestionPath(), cfg.TrainSpanPath(),
		v, cfg.ContextLen, cfg.QuestionLen, cfg.BatchSize, logger)
	if err != nil {
		return err
	}
	dev, err := squad.LoadDataset(cfg.DevContextPath(), cfg.DevQuestionPath(), cfg.DevSpanPath(),
		v, cfg.ContextLen, cfg.QuestionLen, cfg.BatchSize, logger)
	if err != nil {
		return err
	}

	return model.Train(train, dev, mgr, bestMgr, globalStep, epoch)
}

func runShowExamples[B autodiff.Capable](
	cfg *config.Config,
	logger *logrus.Logger,
	model *qa.Model[B],
	device tensor.Device,
	v *vocab.Vocab,
) error {
	bestMgr, err := checkpoint.OpenManager(cfg.BestCheckpointDir(), checkpointPrefix, logger)
	if err != nil {
		return err
	}
	if _, _, err := checkpoint.Initialize[B](model, model.Optimizer(), bestMgr, true, device, logger); err != nil {
		return err
	}

	dev, err := squad.LoadDataset(cfg.DevContextPath(), cfg.DevQuestionPath(), cfg.DevSpanPath(),
		v, cfg.ContextLen, cfg.QuestionLen, cfg.BatchSize, logger)
	if err != nil {
		return err
	}

	f1, em := model.CheckF1EM(dev, 10, true)
	logger.Infof("dev F1 score: %f, dev EM score: %f", f1, em)
	return nil
}

func runOfficialEval[B autodiff.Capable](
	cfg *config.Config,
	logger *logrus.Logger,
	model *qa.Model[B],
	device tensor.Device,
) error {
	mgr, err := checkpoint.OpenManager(cfg.CkptLoadDir, checkpointPrefix, logger)
	if err != nil {
		return err
	}
	if _, _, err := checkpoint.Initialize[B](model, model.Optimizer(), mgr, true, device, logger); err != nil {
		return err
	}

	raw, err := squad.ReadRawJSON(cfg.JSONInPath, logger)
	if err != nil {
		return err
	}
	records, err := squad.PreprocessRaw(raw, tokenizer.NewTreebank(), logger)
	if err != nil {
		return err
	}

	answers := model.GenerateAnswers(records)

	logger.Infof("Writing predictions to %s", cfg.JSONOutPath)
	if err := squad.WriteAnswers(answers, cfg.JSONOutPath); err != nil {
		return err
	}
	logger.Infof("Wrote predictions to %s", cfg.JSONOutPath)
	return nil
}
