package nn

import "github.com/ghego/cs224n-win18-squad/internal/tensor"

// BidirAttention attends each context position over the question and
// concatenates the attended question summary onto the context hidden
// states. It is the dot-product basic attention of the span model: no
// trainable parameters, so it carries no state dict.
type BidirAttention[B tensor.Backend] struct{}

// NewBidirAttention creates the context-to-question attention layer.
func NewBidirAttention[B tensor.Backend]() *BidirAttention[B] {
	return &BidirAttention[B]{}
}

// Forward takes context hiddens [batch, cLen, dim], question hiddens
// [batch, qLen, dim] and the question padding mask [batch, qLen], and
// returns [batch, cLen, 2*dim]: each context state concatenated with its
// attention-weighted question summary.
func (a *BidirAttention[B]) Forward(
	context *tensor.Tensor[float32, B],
	question *tensor.Tensor[float32, B],
	questionMask *tensor.Tensor[float32, B],
) *tensor.Tensor[float32, B] {
	shape := question.Shape()
	batch, qLen := shape[0], shape[1]

	// [batch, cLen, qLen]
	logits := context.BatchMatMul(question.Transpose(0, 2, 1))
	probs := MaskedSoftmax(logits, questionMask.Reshape(batch, 1, qLen), -1)

	attended := probs.BatchMatMul(question)
	return tensor.Cat([]*tensor.Tensor[float32, B]{context, attended}, -1)
}

// Parameters returns nil, the layer is parameter-free.
func (a *BidirAttention[B]) Parameters() []*Parameter[B] { return nil }

// StateDict returns an empty map.
func (a *BidirAttention[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict is a no-op.
func (a *BidirAttention[B]) LoadStateDict(map[string]*tensor.RawTensor) error { return nil }
