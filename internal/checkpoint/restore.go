package checkpoint

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ghego/cs224n-win18-squad/internal/nn"
	"github.com/ghego/cs224n-win18-squad/internal/optim"
	"github.com/ghego/cs224n-win18-squad/internal/serialization"
	"github.com/ghego/cs224n-win18-squad/internal/tensor"
)

// State dict key prefixes separating model weights from optimizer slots
// inside one checkpoint file.
const (
	modelPrefix = "model."
	optimPrefix = "optim."
)

// CombineState merges a model's and an optimizer's state dicts into the
// single map a checkpoint stores.
func CombineState[B tensor.Backend](model nn.Module[B], opt optim.Optimizer) map[string]*tensor.RawTensor {
	combined := make(map[string]*tensor.RawTensor)
	for name, raw := range model.StateDict() {
		combined[modelPrefix+name] = raw
	}
	if opt != nil {
		for name, raw := range opt.StateDict() {
			combined[optimPrefix+name] = raw
		}
	}
	return combined
}

// splitState reverses CombineState.
func splitState(combined map[string]*tensor.RawTensor) (model, opt map[string]*tensor.RawTensor) {
	model = make(map[string]*tensor.RawTensor)
	opt = make(map[string]*tensor.RawTensor)
	for name, raw := range combined {
		switch {
		case len(name) > len(modelPrefix) && name[:len(modelPrefix)] == modelPrefix:
			model[name[len(modelPrefix):]] = raw
		case len(name) > len(optimPrefix) && name[:len(optimPrefix)] == optimPrefix:
			opt[name[len(optimPrefix):]] = raw
		}
	}
	return model, opt
}

// Initialize restores model and optimizer from the newest checkpoint in
// the manager's directory, or initializes them fresh when none exists.
// expectExists makes a missing checkpoint an error, for the evaluation
// modes that are meaningless with random weights.
//
// Returns the restored training position, or zeros for a fresh start.
func Initialize[B tensor.Backend](
	model nn.Module[B],
	opt optim.Optimizer,
	mgr *Manager,
	expectExists bool,
	device tensor.Device,
	logger *logrus.Logger,
) (globalStep, epoch int, err error) {
	path, _, ok, err := mgr.Latest()
	if err != nil {
		return 0, 0, err
	}

	if !ok {
		if expectExists {
			return 0, 0, fmt.Errorf("no checkpoint found in %s", mgr.Dir())
		}
		logger.Infof("There is no saved checkpoint in %s. Creating model with fresh parameters.", mgr.Dir())
		logger.Infof("Number of params: %d", nn.NumParameters(model))
		return 0, 0, nil
	}

	logger.Infof("Reading model parameters from %s", path)
	combined, header, err := serialization.Load(path, device)
	if err != nil {
		return 0, 0, fmt.Errorf("load checkpoint %s: %w", path, err)
	}

	modelState, optState := splitState(combined)
	if err := model.LoadStateDict(modelState); err != nil {
		return 0, 0, fmt.Errorf("restore model from %s: %w", path, err)
	}
	if opt != nil && len(optState) > 0 {
		if err := opt.LoadStateDict(optState); err != nil {
			return 0, 0, fmt.Errorf("restore optimizer from %s: %w", path, err)
		}
	}

	if meta := header.CheckpointMeta; meta != nil {
		return meta.GlobalStep, meta.Epoch, nil
	}
	return 0, 0, nil
}
