package ops

import "github.com/ghego/cs224n-win18-squad/internal/tensor"

// unaryOp is the shared skeleton of the single-input element-wise
// operations: only the gradient rule differs.
type unaryOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// Inputs returns [input].
func (op *unaryOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.input} }

// Output returns the forward result.
func (op *unaryOp) Output() *tensor.RawTensor { return op.output }

// ExpOp records output = e^input. d(e^x)/dx = e^x, the cached output.
type ExpOp struct{ unaryOp }

// NewExpOp creates an ExpOp.
func NewExpOp(input, output *tensor.RawTensor) *ExpOp {
	return &ExpOp{unaryOp{input: input, output: output}}
}

// Backward computes grad * exp(input).
func (op *ExpOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Mul(outputGrad, op.output)}
}

// LogOp records output = ln(input). d(ln x)/dx = 1/x.
type LogOp struct{ unaryOp }

// NewLogOp creates a LogOp.
func NewLogOp(input, output *tensor.RawTensor) *LogOp {
	return &LogOp{unaryOp{input: input, output: output}}
}

// Backward computes grad / input.
func (op *LogOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Div(outputGrad, op.input)}
}

// SqrtOp records output = √input. d(√x)/dx = 1/(2√x).
type SqrtOp struct{ unaryOp }

// NewSqrtOp creates a SqrtOp.
func NewSqrtOp(input, output *tensor.RawTensor) *SqrtOp {
	return &SqrtOp{unaryOp{input: input, output: output}}
}

// Backward computes grad * 0.5 / sqrt(input).
func (op *SqrtOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	half := scale(outputGrad, 0.5, backend)
	return []*tensor.RawTensor{backend.Div(half, op.output)}
}

// TanhOp records output = tanh(input). d(tanh x)/dx = 1 - tanh²(x).
type TanhOp struct{ unaryOp }

// NewTanhOp creates a TanhOp.
func NewTanhOp(input, output *tensor.RawTensor) *TanhOp {
	return &TanhOp{unaryOp{input: input, output: output}}
}

// Backward computes grad * (1 - tanh²).
func (op *TanhOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	squared := backend.Mul(op.output, op.output)
	oneMinus := backend.AddScalar(scale(squared, -1, backend), float32(1))
	return []*tensor.RawTensor{backend.Mul(outputGrad, oneMinus)}
}

// ReluOp records output = max(input, 0). The gradient passes through
// wherever the input was positive and is blocked elsewhere.
type ReluOp struct{ unaryOp }

// NewReluOp creates a ReluOp.
func NewReluOp(input, output *tensor.RawTensor) *ReluOp {
	return &ReluOp{unaryOp{input: input, output: output}}
}

// Backward masks the gradient with input > 0.
func (op *ReluOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	positive := backend.Greater(op.input, tensor.ZerosLike(op.input))
	mask := backend.Cast(positive, tensor.Float32)
	return []*tensor.RawTensor{backend.Mul(outputGrad, mask)}
}

// AddScalarOp records output = input + s. The gradient passes through.
type AddScalarOp struct{ unaryOp }

// NewAddScalarOp creates an AddScalarOp.
func NewAddScalarOp(input, output *tensor.RawTensor) *AddScalarOp {
	return &AddScalarOp{unaryOp{input: input, output: output}}
}

// Backward passes the gradient through unchanged.
func (op *AddScalarOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{outputGrad.Clone()}
}

// MulScalarOp records output = input * s. The gradient scales by s.
type MulScalarOp struct {
	unaryOp
	scalar float32
}

// NewMulScalarOp creates a MulScalarOp.
func NewMulScalarOp(input, output *tensor.RawTensor, scalar float32) *MulScalarOp {
	return &MulScalarOp{unaryOp{input: input, output: output}, scalar}
}

// Backward computes grad * s.
func (op *MulScalarOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{scale(outputGrad, op.scalar, backend)}
}
