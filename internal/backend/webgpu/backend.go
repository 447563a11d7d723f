// Package webgpu implements a hybrid compute backend: matmul-class
// operations, the training hot spots, run as WGSL compute shaders via
// go-webgpu, and everything else delegates to the CPU backend.
//
// The wgpu_native runtime is only wired up on windows; elsewhere New
// fails with a descriptive error and the CLI stays on the CPU backend.
package webgpu

import (
	"github.com/ghego/cs224n-win18-squad/internal/backend/cpu"
	"github.com/ghego/cs224n-win18-squad/internal/tensor"
)

// Backend offloads MatMul and BatchMatMul to the GPU and delegates the
// rest to the CPU backend.
type Backend struct {
	cpu *cpu.Backend
	gpu *gpuContext
}

// New initializes the GPU device. It fails when no WebGPU runtime or
// adapter is available.
func New() (*Backend, error) {
	gpu, err := newGPU()
	if err != nil {
		return nil, err
	}
	return &Backend{cpu: cpu.New(), gpu: gpu}, nil
}

// Name identifies the backend.
func (b *Backend) Name() string { return "WebGPU" }

// Device reports where matmuls run.
func (b *Backend) Device() tensor.Device { return tensor.WebGPU }

// MatMul multiplies 2D matrices, on the GPU when the shapes qualify.
func (b *Backend) MatMul(x, y *tensor.RawTensor) *tensor.RawTensor {
	if out, ok := b.gpu.matMul(x, y); ok {
		return out
	}
	return b.cpu.MatMul(x, y)
}

// BatchMatMul multiplies stacks of matrices. Stacks with identical
// leading dimensions are flattened to one GPU dispatch; broadcasting
// cases fall back to the CPU.
func (b *Backend) BatchMatMul(x, y *tensor.RawTensor) *tensor.RawTensor {
	if out, ok := b.gpu.batchMatMul(x, y); ok {
		return out
	}
	return b.cpu.BatchMatMul(x, y)
}

// Everything below delegates to the CPU backend.

func (b *Backend) Add(x, y *tensor.RawTensor) *tensor.RawTensor { return b.cpu.Add(x, y) }
func (b *Backend) Sub(x, y *tensor.RawTensor) *tensor.RawTensor { return b.cpu.Sub(x, y) }
func (b *Backend) Mul(x, y *tensor.RawTensor) *tensor.RawTensor { return b.cpu.Mul(x, y) }
func (b *Backend) Div(x, y *tensor.RawTensor) *tensor.RawTensor { return b.cpu.Div(x, y) }

func (b *Backend) Reshape(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	return b.cpu.Reshape(x, shape)
}

func (b *Backend) Transpose(x *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	return b.cpu.Transpose(x, axes...)
}

func (b *Backend) Expand(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	return b.cpu.Expand(x, shape)
}

func (b *Backend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	return b.cpu.Cat(tensors, dim)
}

func (b *Backend) Unsqueeze(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	return b.cpu.Unsqueeze(x, dim)
}

func (b *Backend) Squeeze(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	return b.cpu.Squeeze(x, dim)
}

func (b *Backend) AddScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	return b.cpu.AddScalar(x, scalar)
}

func (b *Backend) MulScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	return b.cpu.MulScalar(x, scalar)
}

func (b *Backend) Exp(x *tensor.RawTensor) *tensor.RawTensor  { return b.cpu.Exp(x) }
func (b *Backend) Log(x *tensor.RawTensor) *tensor.RawTensor  { return b.cpu.Log(x) }
func (b *Backend) Sqrt(x *tensor.RawTensor) *tensor.RawTensor { return b.cpu.Sqrt(x) }
func (b *Backend) Tanh(x *tensor.RawTensor) *tensor.RawTensor { return b.cpu.Tanh(x) }
func (b *Backend) Relu(x *tensor.RawTensor) *tensor.RawTensor { return b.cpu.Relu(x) }

func (b *Backend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	return b.cpu.Softmax(x, dim)
}

func (b *Backend) Sum(x *tensor.RawTensor) *tensor.RawTensor { return b.cpu.Sum(x) }

func (b *Backend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return b.cpu.SumDim(x, dim, keepDim)
}

func (b *Backend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return b.cpu.MeanDim(x, dim, keepDim)
}

func (b *Backend) Argmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	return b.cpu.Argmax(x, dim)
}

func (b *Backend) Greater(x, y *tensor.RawTensor) *tensor.RawTensor { return b.cpu.Greater(x, y) }

func (b *Backend) Where(cond, x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.cpu.Where(cond, x, y)
}

func (b *Backend) Embedding(weight, indices *tensor.RawTensor) *tensor.RawTensor {
	return b.cpu.Embedding(weight, indices)
}

func (b *Backend) Gather(x *tensor.RawTensor, dim int, index *tensor.RawTensor) *tensor.RawTensor {
	return b.cpu.Gather(x, dim, index)
}

func (b *Backend) Cast(x *tensor.RawTensor, dtype tensor.DataType) *tensor.RawTensor {
	return b.cpu.Cast(x, dtype)
}
