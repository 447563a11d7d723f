package ops

import "github.com/ghego/cs224n-win18-squad/internal/tensor"

// SoftmaxOp records output = softmax(input, dim).
//
// The Jacobian contracts to
//
//	grad_x = s * (grad_s - sum(grad_s * s, dim, keepDim)),
//
// where s is the cached softmax output. Expressed entirely with backend
// ops, so it holds for any rank and any normalized dimension (the masked
// span and attention distributions use dims other than the last).
type SoftmaxOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
	dim    int
}

// NewSoftmaxOp creates a SoftmaxOp. dim must already be normalized to a
// non-negative axis.
func NewSoftmaxOp(input, output *tensor.RawTensor, dim int) *SoftmaxOp {
	return &SoftmaxOp{input: input, output: output, dim: dim}
}

// Backward computes the softmax input gradient.
func (op *SoftmaxOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	s := op.output
	dot := backend.SumDim(backend.Mul(outputGrad, s), op.dim, true)
	centered := backend.Sub(outputGrad, dot)
	return []*tensor.RawTensor{backend.Mul(s, centered)}
}

// Inputs returns [input].
func (op *SoftmaxOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns the softmax distribution.
func (op *SoftmaxOp) Output() *tensor.RawTensor { return op.output }
