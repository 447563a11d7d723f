package nn

import (
	"fmt"
	"math"

	"github.com/ghego/cs224n-win18-squad/internal/tensor"
)

// MultiHeadSelfAttention is scaled dot-product attention with numHeads
// parallel heads over a shared sequence.
//
// Padding is handled with the additive mask convention: scores against
// padded key positions are pushed to -1e30 before the softmax, so padded
// tokens contribute nothing to any output position.
type MultiHeadSelfAttention[B tensor.Backend] struct {
	dim      int
	numHeads int
	headDim  int
	query    *Linear[B]
	key      *Linear[B]
	value    *Linear[B]
	out      *Linear[B]
}

// NewMultiHeadSelfAttention creates an attention layer. dim must divide
// evenly by numHeads.
func NewMultiHeadSelfAttention[B tensor.Backend](dim, numHeads int, backend B) *MultiHeadSelfAttention[B] {
	if dim%numHeads != 0 {
		panic(fmt.Sprintf("attention: dim %d not divisible by %d heads", dim, numHeads))
	}
	return &MultiHeadSelfAttention[B]{
		dim:      dim,
		numHeads: numHeads,
		headDim:  dim / numHeads,
		query:    NewLinear(dim, dim, backend),
		key:      NewLinear(dim, dim, backend),
		value:    NewLinear(dim, dim, backend),
		out:      NewLinear(dim, dim, backend),
	}
}

// Forward attends x [batch, seq, dim] to itself. mask is [batch, seq] with
// 1 for real tokens; it masks the key side of every score row.
func (a *MultiHeadSelfAttention[B]) Forward(
	x *tensor.Tensor[float32, B],
	mask *tensor.Tensor[float32, B],
) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	batch, seq := shape[0], shape[1]

	q := a.splitHeads(a.query.Forward(x), batch, seq)
	k := a.splitHeads(a.key.Forward(x), batch, seq)
	v := a.splitHeads(a.value.Forward(x), batch, seq)

	// [batch, heads, seq, seq]
	scores := q.BatchMatMul(k.Transpose(0, 1, 3, 2))
	scores = scores.MulScalar(float32(1 / math.Sqrt(float64(a.headDim))))

	keyMask := mask.Reshape(batch, 1, 1, seq)
	probs := MaskedSoftmax(scores, keyMask, -1)

	context := probs.BatchMatMul(v)
	merged := context.Transpose(0, 2, 1, 3).Reshape(batch, seq, a.dim)

	return a.out.Forward(merged)
}

// splitHeads reshapes [batch, seq, dim] to [batch, heads, seq, headDim].
func (a *MultiHeadSelfAttention[B]) splitHeads(
	x *tensor.Tensor[float32, B],
	batch, seq int,
) *tensor.Tensor[float32, B] {
	return x.Reshape(batch, seq, a.numHeads, a.headDim).Transpose(0, 2, 1, 3)
}

// Parameters returns the four projection layers' parameters.
func (a *MultiHeadSelfAttention[B]) Parameters() []*Parameter[B] {
	params := append(a.query.Parameters(), a.key.Parameters()...)
	params = append(params, a.value.Parameters()...)
	return append(params, a.out.Parameters()...)
}

// StateDict returns the projections under query/key/value/out prefixes.
func (a *MultiHeadSelfAttention[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	mergeStateDict(state, "query", a.query.StateDict())
	mergeStateDict(state, "key", a.key.StateDict())
	mergeStateDict(state, "value", a.value.StateDict())
	mergeStateDict(state, "out", a.out.StateDict())
	return state
}

// LoadStateDict restores all four projections.
func (a *MultiHeadSelfAttention[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	for prefix, layer := range map[string]*Linear[B]{
		"query": a.query,
		"key":   a.key,
		"value": a.value,
		"out":   a.out,
	} {
		if err := layer.LoadStateDict(subStateDict(state, prefix)); err != nil {
			return fmt.Errorf("attention %s: %w", prefix, err)
		}
	}
	return nil
}

// EncoderBlock is one pre-norm transformer encoder layer:
//
//	h = x + dropout(attn(norm1(x), mask))
//	y = h + dropout(ffn(norm2(h)))
//
// The QA model runs a single shared block over both the context and the
// question, standing in for the original's recurrent encoder.
type EncoderBlock[B tensor.Backend] struct {
	norm1   *LayerNorm[B]
	attn    *MultiHeadSelfAttention[B]
	norm2   *LayerNorm[B]
	ffn     *FFN[B]
	dropout *Dropout[B]
}

// NewEncoderBlock creates an encoder block with a 4x feed-forward
// expansion, the usual transformer ratio.
func NewEncoderBlock[B tensor.Backend](dim, numHeads int, dropout float64, backend B) *EncoderBlock[B] {
	return &EncoderBlock[B]{
		norm1:   NewLayerNorm(dim, 1e-5, backend),
		attn:    NewMultiHeadSelfAttention(dim, numHeads, backend),
		norm2:   NewLayerNorm(dim, 1e-5, backend),
		ffn:     NewFFN(dim, 4*dim, backend),
		dropout: NewDropout(dropout, backend),
	}
}

// Train switches the block's dropout between training and eval behavior.
func (e *EncoderBlock[B]) Train(training bool) { e.dropout.Train(training) }

// Forward encodes x [batch, seq, dim] under the padding mask [batch, seq].
func (e *EncoderBlock[B]) Forward(
	x *tensor.Tensor[float32, B],
	mask *tensor.Tensor[float32, B],
) *tensor.Tensor[float32, B] {
	h := x.Add(e.dropout.Forward(e.attn.Forward(e.norm1.Forward(x), mask)))
	return h.Add(e.dropout.Forward(e.ffn.Forward(e.norm2.Forward(h))))
}

// Parameters returns every trainable parameter of the block.
func (e *EncoderBlock[B]) Parameters() []*Parameter[B] {
	params := append(e.norm1.Parameters(), e.attn.Parameters()...)
	params = append(params, e.norm2.Parameters()...)
	return append(params, e.ffn.Parameters()...)
}

// StateDict returns the block's parameters under nested prefixes.
func (e *EncoderBlock[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	mergeStateDict(state, "norm1", e.norm1.StateDict())
	mergeStateDict(state, "attn", e.attn.StateDict())
	mergeStateDict(state, "norm2", e.norm2.StateDict())
	mergeStateDict(state, "ffn", e.ffn.StateDict())
	return state
}

// LoadStateDict restores the block's parameters.
func (e *EncoderBlock[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	if err := e.norm1.LoadStateDict(subStateDict(state, "norm1")); err != nil {
		return err
	}
	if err := e.attn.LoadStateDict(subStateDict(state, "attn")); err != nil {
		return err
	}
	if err := e.norm2.LoadStateDict(subStateDict(state, "norm2")); err != nil {
		return err
	}
	return e.ffn.LoadStateDict(subStateDict(state, "ffn"))
}
