package nn

import "github.com/ghego/cs224n-win18-squad/internal/tensor"

// Dropout randomly zeroes activations with probability p during training,
// scaling the survivors by 1/(1-p) so the expected activation is unchanged
// (inverted dropout). In eval mode it is the identity.
//
// The mask multiplication is an ordinary recorded Mul, so the backward
// pass replays the same mask without extra bookkeeping.
type Dropout[B tensor.Backend] struct {
	p        float64
	training bool
	backend  B
}

// NewDropout creates a Dropout layer with drop probability p in [0, 1).
// The layer starts in eval mode; Train(true) enables dropping.
func NewDropout[B tensor.Backend](p float64, backend B) *Dropout[B] {
	return &Dropout[B]{p: p, backend: backend}
}

// Train switches between training and eval behavior.
func (d *Dropout[B]) Train(training bool) { d.training = training }

// Forward applies the dropout mask, or passes through when disabled.
func (d *Dropout[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !d.training || d.p == 0 {
		return x
	}
	keep := 1 - d.p
	mask := tensor.Bernoulli(x.Shape(), keep, d.backend)
	return x.Mul(mask).MulScalar(float32(1 / keep))
}

// Parameters returns nothing; dropout has no trainable state.
func (d *Dropout[B]) Parameters() []*Parameter[B] { return nil }

// StateDict returns an empty map.
func (d *Dropout[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict is a no-op.
func (d *Dropout[B]) LoadStateDict(map[string]*tensor.RawTensor) error { return nil }
