package nn

import "github.com/ghego/cs224n-win18-squad/internal/tensor"

// maskValue is the additive penalty applied to padded positions before a
// softmax. exp(-1e30) underflows to exactly zero in float32, so masked
// positions receive zero probability.
const maskValue = float32(-1e30)

// MaskedSoftmax normalizes logits along dim, forcing zero probability
// wherever mask is 0. mask holds 1 for real positions and 0 for padding,
// and must broadcast against logits.
//
// Every distribution the model produces (attention weights and the two
// span distributions) goes through this, because batches are padded to
// fixed context and question lengths.
func MaskedSoftmax[B tensor.Backend](
	logits *tensor.Tensor[float32, B],
	mask *tensor.Tensor[float32, B],
	dim int,
) *tensor.Tensor[float32, B] {
	return ApplyMask(logits, mask).Softmax(dim)
}

// ApplyMask adds (1-mask) * -1e30 to logits, leaving real positions
// untouched and pushing padded ones to effectively -inf.
func ApplyMask[B tensor.Backend](
	logits *tensor.Tensor[float32, B],
	mask *tensor.Tensor[float32, B],
) *tensor.Tensor[float32, B] {
	penalty := mask.MulScalar(-maskValue).AddScalar(maskValue)
	return logits.Add(penalty)
}
