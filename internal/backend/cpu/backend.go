// Package cpu implements the pure-Go compute backend. Element-wise kernels
// run over contiguous float32 slices so the compiler can vectorize them;
// matrix products fan out across goroutines and block by the SIMD width
// reported by the host CPU.
package cpu

import (
	"fmt"

	"github.com/klauspost/cpuid/v2"

	"github.com/ghego/cs224n-win18-squad/internal/parallel"
	"github.com/ghego/cs224n-win18-squad/internal/tensor"
)

// Backend implements tensor.Backend on the host CPU.
type Backend struct {
	device   tensor.Device
	par      parallel.Config
	simdTile int // j-tile for matmul, derived from the SIMD lane width
}

// New creates a CPU backend tuned for the host.
func New() *Backend {
	return &Backend{
		device:   tensor.CPU,
		par:      parallel.DefaultConfig(),
		simdTile: vectorLanes() * 8,
	}
}

// vectorLanes picks the float32 SIMD lane count the host supports. The
// kernels stay pure Go; wider lanes just reward larger contiguous tiles.
func vectorLanes() int {
	switch {
	case cpuid.CPU.Supports(cpuid.AVX512F):
		return 16
	case cpuid.CPU.Supports(cpuid.AVX2):
		return 8
	default:
		return 4
	}
}

// Name returns the backend name.
func (cpu *Backend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *Backend) Device() tensor.Device {
	return cpu.device
}

// Features describes the detected host capabilities, for debug logging.
func (cpu *Backend) Features() string {
	return fmt.Sprintf("%s, %d threads, %d-lane f32 tiles",
		cpuid.CPU.BrandName, cpu.par.NumWorkers, cpu.simdTile)
}

// binaryKernels bundles the three execution paths of an element-wise
// binary operation.
type binaryKernels struct {
	inplace    func(a, b []float32)
	vectorized func(dst, a, b []float32)
	broadcast  func(dst, a, b []float32, aShape, bShape, outShape tensor.Shape)
}

func (cpu *Backend) binaryOp(name string, a, b *tensor.RawTensor, k binaryKernels) *tensor.RawTensor {
	if a.DType() != tensor.Float32 || b.DType() != tensor.Float32 {
		panic(fmt.Sprintf("%s: unsupported dtypes %s/%s", name, a.DType(), b.DType()))
	}

	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	if !needsBroadcast && a.Shape().Equal(b.Shape()) {
		// Same shape. Reuse a's buffer when nothing else references it.
		if a.IsUnique() {
			k.inplace(a.AsFloat32(), b.AsFloat32())
			return a
		}
		result := tensor.MustNewRaw(outShape, tensor.Float32, cpu.device)
		k.vectorized(result.AsFloat32(), a.AsFloat32(), b.AsFloat32())
		return result
	}

	result := tensor.MustNewRaw(outShape, tensor.Float32, cpu.device)
	k.broadcast(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), a.Shape(), b.Shape(), outShape)
	return result
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *Backend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("add", a, b, binaryKernels{addInplace, addVectorized, addBroadcast})
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *Backend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("sub", a, b, binaryKernels{subInplace, subVectorized, subBroadcast})
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *Backend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("mul", a, b, binaryKernels{mulInplace, mulVectorized, mulBroadcast})
}

// Div performs element-wise division with broadcasting.
func (cpu *Backend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("div", a, b, binaryKernels{divInplace, divVectorized, divBroadcast})
}

// Reshape returns a zero-copy view with a new shape.
func (cpu *Backend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if err := newShape.Validate(); err != nil {
		panic(fmt.Sprintf("reshape: invalid shape: %v", err))
	}
	if t.NumElements() != newShape.NumElements() {
		panic(fmt.Sprintf("reshape: incompatible shapes: %v -> %v (different number of elements)",
			t.Shape(), newShape))
	}
	return t.View(newShape)
}
