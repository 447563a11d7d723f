// Package optim implements the optimization algorithms of the training
// loop: SGD with momentum, Adam, and global-norm gradient clipping.
//
// Optimizers take the gradient map produced by autodiff.Backward and
// update parameters in place. Their internal state (momentum buffers,
// Adam moments, step count) serializes through StateDict so a resumed
// training run continues exactly where it stopped.
package optim

import (
	"github.com/ghego/cs224n-win18-squad/internal/nn"
	"github.com/ghego/cs224n-win18-squad/internal/tensor"
)

// Optimizer is the interface shared by all optimization algorithms.
type Optimizer interface {
	// Step applies one update from a gradient map keyed by the
	// parameters' raw tensors. Parameters absent from the map are
	// skipped. Gradients are rebuilt from the tape every iteration,
	// so there is no ZeroGrad; the training loop clears the tape
	// instead.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// GetLR returns the current learning rate.
	GetLR() float32

	// SetLR updates the learning rate, for scheduling.
	SetLR(lr float32)

	// StateDict returns the optimizer's internal state for
	// checkpointing, keyed by slot name and parameter index.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict restores internal state saved by StateDict.
	LoadStateDict(state map[string]*tensor.RawTensor) error
}

// gradientFor looks up a parameter's gradient, or nil when the parameter
// took no part in the forward pass.
func gradientFor[B tensor.Backend](param *nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) *tensor.RawTensor {
	if param == nil {
		return nil
	}
	return grads[param.Tensor().Raw()]
}
