package nn

import "github.com/ghego/cs224n-win18-squad/internal/tensor"

// Parameter is a named trainable tensor. The optimizer matches gradients to
// parameters through the underlying RawTensor identity, so a parameter's
// raw buffer must stay stable across training steps.
type Parameter[B tensor.Backend] struct {
	name   string
	tensor *tensor.Tensor[float32, B]
}

// NewParameter wraps an initialized tensor as a trainable parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{name: name, tensor: t}
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string { return p.name }

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] { return p.tensor }
