package ops

import "github.com/ghego/cs224n-win18-squad/internal/tensor"

// GatherOp records output = gather(x, dim, index). The backward pass is
// the matching scatter-add: each gathered element routes its gradient back
// to the position it came from.
type GatherOp struct {
	x      *tensor.RawTensor
	index  *tensor.RawTensor
	output *tensor.RawTensor
	dim    int
}

// NewGatherOp creates a GatherOp. dim must already be normalized.
func NewGatherOp(x, index, output *tensor.RawTensor, dim int) *GatherOp {
	return &GatherOp{x: x, index: index, output: output, dim: dim}
}

// Backward scatter-adds the gradient along dim.
func (op *GatherOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	xShape := op.x.Shape()
	idxShape := op.index.Shape()

	xGrad := tensor.ZerosLike(op.x)
	xg := xGrad.AsFloat32()
	og := outputGrad.AsFloat32()
	idx := op.index.AsInt32()

	outer, inner := 1, 1
	for i := 0; i < op.dim; i++ {
		outer *= idxShape[i]
	}
	for i := op.dim + 1; i < len(idxShape); i++ {
		inner *= idxShape[i]
	}
	idxDim, srcDim := idxShape[op.dim], xShape[op.dim]

	for o := 0; o < outer; o++ {
		for j := 0; j < idxDim; j++ {
			for i := 0; i < inner; i++ {
				pos := o*idxDim*inner + j*inner + i
				xg[o*srcDim*inner+int(idx[pos])*inner+i] += og[pos]
			}
		}
	}

	return []*tensor.RawTensor{xGrad, nil}
}

// Inputs returns [x, index].
func (op *GatherOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.x, op.index} }

// Output returns the gathered tensor.
func (op *GatherOp) Output() *tensor.RawTensor { return op.output }
