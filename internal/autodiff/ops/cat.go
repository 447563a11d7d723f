package ops

import "github.com/ghego/cs224n-win18-squad/internal/tensor"

// CatOp records output = cat(inputs, dim). The backward pass slices the
// gradient back into one piece per input along the same dimension.
type CatOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
	dim    int
}

// NewCatOp creates a CatOp. dim must already be normalized.
func NewCatOp(inputs []*tensor.RawTensor, output *tensor.RawTensor, dim int) *CatOp {
	return &CatOp{inputs: inputs, output: output, dim: dim}
}

// Backward splits the gradient along the concatenation dimension.
func (op *CatOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	outShape := op.output.Shape()

	outer, inner := 1, 1
	for i := 0; i < op.dim; i++ {
		outer *= outShape[i]
	}
	for i := op.dim + 1; i < len(outShape); i++ {
		inner *= outShape[i]
	}
	totalDim := outShape[op.dim]
	og := outputGrad.AsFloat32()

	grads := make([]*tensor.RawTensor, len(op.inputs))
	offset := 0
	for n, input := range op.inputs {
		size := input.Shape()[op.dim]
		grad := tensor.ZerosLike(input)
		g := grad.AsFloat32()

		for o := 0; o < outer; o++ {
			src := og[(o*totalDim+offset)*inner : (o*totalDim+offset+size)*inner]
			copy(g[o*size*inner:(o+1)*size*inner], src)
		}

		grads[n] = grad
		offset += size
	}

	return grads
}

// Inputs returns the concatenated tensors.
func (op *CatOp) Inputs() []*tensor.RawTensor { return op.inputs }

// Output returns the concatenation.
func (op *CatOp) Output() *tensor.RawTensor { return op.output }
