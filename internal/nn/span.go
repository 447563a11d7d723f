package nn

import "github.com/ghego/cs224n-win18-squad/internal/tensor"

// SpanDecoder scores every context position for being one endpoint of the
// answer span. A model holds two of these, one for the start and one for
// the end.
type SpanDecoder[B tensor.Backend] struct {
	proj *Linear[B]
}

// NewSpanDecoder creates a decoder over hidden states of the given width.
func NewSpanDecoder[B tensor.Backend](dim int, backend B) *SpanDecoder[B] {
	return &SpanDecoder[B]{proj: NewLinear(dim, 1, backend)}
}

// Forward maps hiddens [batch, seq, dim] to masked logits and a
// probability distribution over positions, both [batch, seq]. Padded
// positions get probability zero.
func (d *SpanDecoder[B]) Forward(
	hiddens *tensor.Tensor[float32, B],
	mask *tensor.Tensor[float32, B],
) (logits, probs *tensor.Tensor[float32, B]) {
	shape := hiddens.Shape()
	batch, seq := shape[0], shape[1]

	raw := d.proj.Forward(hiddens).Reshape(batch, seq)
	logits = ApplyMask(raw, mask)
	return logits, logits.Softmax(-1)
}

// Parameters returns the projection's parameters.
func (d *SpanDecoder[B]) Parameters() []*Parameter[B] { return d.proj.Parameters() }

// StateDict returns the projection under the proj prefix.
func (d *SpanDecoder[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	mergeStateDict(state, "proj", d.proj.StateDict())
	return state
}

// LoadStateDict restores the projection.
func (d *SpanDecoder[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	return d.proj.LoadStateDict(subStateDict(state, "proj"))
}
