package cpu

import (
	"fmt"
	"math"

	"github.com/ghego/cs224n-win18-squad/internal/tensor"
)

func (cpu *Backend) unaryOp(name string, x *tensor.RawTensor, f func(float32) float32) *tensor.RawTensor {
	if x.DType() != tensor.Float32 {
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, x.DType()))
	}

	in := x.AsFloat32()
	if x.IsUnique() {
		for i := range in {
			in[i] = f(in[i])
		}
		return x
	}

	result := tensor.MustNewRaw(x.Shape(), tensor.Float32, cpu.device)
	out := result.AsFloat32()
	for i := range in {
		out[i] = f(in[i])
	}
	return result
}

// Exp applies e^x element-wise.
func (cpu *Backend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("exp", x, func(v float32) float32 {
		return float32(math.Exp(float64(v)))
	})
}

// Log applies the natural logarithm element-wise.
func (cpu *Backend) Log(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("log", x, func(v float32) float32 {
		return float32(math.Log(float64(v)))
	})
}

// Sqrt applies the square root element-wise.
func (cpu *Backend) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("sqrt", x, func(v float32) float32 {
		return float32(math.Sqrt(float64(v)))
	})
}

// Tanh applies the hyperbolic tangent element-wise.
func (cpu *Backend) Tanh(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("tanh", x, func(v float32) float32 {
		return float32(math.Tanh(float64(v)))
	})
}

// Relu applies max(x, 0) element-wise.
func (cpu *Backend) Relu(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("relu", x, func(v float32) float32 {
		if v > 0 {
			return v
		}
		return 0
	})
}

func scalarToFloat32(name string, scalar any) float32 {
	switch s := scalar.(type) {
	case float32:
		return s
	case float64:
		return float32(s)
	case int:
		return float32(s)
	case int32:
		return float32(s)
	default:
		panic(fmt.Sprintf("%s: unsupported scalar type %T", name, scalar))
	}
}

// AddScalar adds a scalar to every element.
func (cpu *Backend) AddScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	s := scalarToFloat32("addscalar", scalar)
	return cpu.unaryOp("addscalar", x, func(v float32) float32 { return v + s })
}

// MulScalar multiplies every element by a scalar.
func (cpu *Backend) MulScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	s := scalarToFloat32("mulscalar", scalar)
	return cpu.unaryOp("mulscalar", x, func(v float32) float32 { return v * s })
}
