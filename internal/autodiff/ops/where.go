package ops

import "github.com/ghego/cs224n-win18-squad/internal/tensor"

// WhereOp records output = where(cond, x, y). The gradient routes to x
// where the condition held and to y elsewhere; the boolean condition gets
// no gradient.
type WhereOp struct {
	cond   *tensor.RawTensor
	x      *tensor.RawTensor
	y      *tensor.RawTensor
	output *tensor.RawTensor
}

// NewWhereOp creates a WhereOp.
func NewWhereOp(cond, x, y, output *tensor.RawTensor) *WhereOp {
	return &WhereOp{cond: cond, x: x, y: y, output: output}
}

// Backward masks the gradient by the condition for each branch.
func (op *WhereOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	zeros := tensor.ZerosLike(outputGrad)
	gradX := reduceBroadcast(backend.Where(op.cond, outputGrad, zeros), op.x.Shape(), backend)
	gradY := reduceBroadcast(backend.Where(op.cond, zeros, outputGrad), op.y.Shape(), backend)
	return []*tensor.RawTensor{nil, gradX, gradY}
}

// Inputs returns [cond, x, y].
func (op *WhereOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.cond, op.x, op.y}
}

// Output returns the selected tensor.
func (op *WhereOp) Output() *tensor.RawTensor { return op.output }
