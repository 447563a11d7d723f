package ops

import "github.com/ghego/cs224n-win18-squad/internal/tensor"

// SumOp records output = sum(input) over every element.
//
// The backward pass broadcasts the scalar gradient to the input shape.
type SumOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewSumOp creates a SumOp.
func NewSumOp(input, output *tensor.RawTensor) *SumOp {
	return &SumOp{input: input, output: output}
}

// Backward fills the input shape with the scalar output gradient.
func (op *SumOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{tensor.FullLike(op.input, outputGrad.AsFloat32()[0])}
}

// Inputs returns [input].
func (op *SumOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns the scalar sum.
func (op *SumOp) Output() *tensor.RawTensor { return op.output }

// SumDimOp records output = sum(input, dim, keepDim). The gradient is the
// output gradient broadcast back along the reduced dimension.
type SumDimOp struct {
	input   *tensor.RawTensor
	output  *tensor.RawTensor
	dim     int
	keepDim bool
	mean    bool // MeanDim shares the op: the gradient just scales by 1/dimSize
}

// NewSumDimOp creates a SumDimOp. dim must already be normalized.
func NewSumDimOp(input, output *tensor.RawTensor, dim int, keepDim bool) *SumDimOp {
	return &SumDimOp{input: input, output: output, dim: dim, keepDim: keepDim}
}

// NewMeanDimOp creates the mean variant of SumDimOp.
func NewMeanDimOp(input, output *tensor.RawTensor, dim int, keepDim bool) *SumDimOp {
	return &SumDimOp{input: input, output: output, dim: dim, keepDim: keepDim, mean: true}
}

// Backward broadcasts the gradient along the reduced dimension.
func (op *SumDimOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	grad := outputGrad
	if !op.keepDim {
		grad = backend.Unsqueeze(grad, op.dim)
	}
	grad = backend.Expand(grad, op.input.Shape())
	if op.mean {
		grad = scale(grad, 1/float32(op.input.Shape()[op.dim]), backend)
	}
	return []*tensor.RawTensor{grad}
}

// Inputs returns [input].
func (op *SumDimOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns the reduced tensor.
func (op *SumDimOp) Output() *tensor.RawTensor { return op.output }
