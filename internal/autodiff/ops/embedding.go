package ops

import "github.com/ghego/cs224n-win18-squad/internal/tensor"

// EmbeddingOp records output[i] = weight[indices[i]].
//
// The backward pass scatter-adds each output-row gradient into the weight
// row it was read from; repeated indices accumulate. No gradient flows to
// the integer indices.
type EmbeddingOp struct {
	weight  *tensor.RawTensor
	indices *tensor.RawTensor
	output  *tensor.RawTensor
}

// NewEmbeddingOp creates an EmbeddingOp.
func NewEmbeddingOp(weight, indices, output *tensor.RawTensor) *EmbeddingOp {
	return &EmbeddingOp{weight: weight, indices: indices, output: output}
}

// Backward scatter-adds row gradients into a zero weight gradient.
func (op *EmbeddingOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	dim := op.weight.Shape()[1]

	weightGrad := tensor.ZerosLike(op.weight)
	wg := weightGrad.AsFloat32()
	og := outputGrad.AsFloat32()

	for i, idx := range op.indices.AsInt32() {
		row := wg[int(idx)*dim : (int(idx)+1)*dim]
		src := og[i*dim : (i+1)*dim]
		for j, v := range src {
			row[j] += v
		}
	}

	return []*tensor.RawTensor{weightGrad, nil}
}

// Inputs returns [weight, indices].
func (op *EmbeddingOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.weight, op.indices}
}

// Output returns the looked-up rows.
func (op *EmbeddingOp) Output() *tensor.RawTensor { return op.output }
