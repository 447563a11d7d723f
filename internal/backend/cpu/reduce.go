package cpu

import (
	"fmt"

	"github.com/ghego/cs224n-win18-squad/internal/tensor"
)

// reduceShape computes the output shape for a reduction along dim.
func reduceShape(shape tensor.Shape, dim int, keepDim bool) tensor.Shape {
	if keepDim {
		out := shape.Clone()
		out[dim] = 1
		return out
	}
	out := make(tensor.Shape, 0, len(shape)-1)
	for i, d := range shape {
		if i != dim {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return tensor.Shape{}
	}
	return out
}

// Sum reduces every element to a single-element tensor.
func (cpu *Backend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	if x.DType() != tensor.Float32 {
		panic(fmt.Sprintf("sum: unsupported dtype %s", x.DType()))
	}

	result := tensor.MustNewRaw(tensor.Shape{}, tensor.Float32, cpu.device)
	var sum float32
	for _, v := range x.AsFloat32() {
		sum += v
	}
	result.AsFloat32()[0] = sum
	return result
}

// SumDim sums along dim, dropping or keeping the reduced dimension.
func (cpu *Backend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return cpu.reduceDim("sumdim", x, dim, keepDim, false)
}

// MeanDim averages along dim, dropping or keeping the reduced dimension.
func (cpu *Backend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return cpu.reduceDim("meandim", x, dim, keepDim, true)
}

func (cpu *Backend) reduceDim(name string, x *tensor.RawTensor, dim int, keepDim, mean bool) *tensor.RawTensor {
	if x.DType() != tensor.Float32 {
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, x.DType()))
	}

	shape := x.Shape()
	dim = shape.NormalizeDim(dim)

	outer, inner := 1, 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	for i := dim + 1; i < len(shape); i++ {
		inner *= shape[i]
	}
	dimSize := shape[dim]

	result := tensor.MustNewRaw(reduceShape(shape, dim, keepDim), tensor.Float32, cpu.device)
	in, out := x.AsFloat32(), result.AsFloat32()

	scale := float32(1)
	if mean {
		scale = 1 / float32(dimSize)
	}

	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			base := o*dimSize*inner + i
			var sum float32
			for j := 0; j < dimSize; j++ {
				sum += in[base+j*inner]
			}
			out[o*inner+i] = sum * scale
		}
	}

	return result
}

// Argmax returns Int32 indices of the maxima along dim. The reduced
// dimension is dropped.
func (cpu *Backend) Argmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	if x.DType() != tensor.Float32 {
		panic(fmt.Sprintf("argmax: unsupported dtype %s", x.DType()))
	}

	shape := x.Shape()
	dim = shape.NormalizeDim(dim)

	outer, inner := 1, 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	for i := dim + 1; i < len(shape); i++ {
		inner *= shape[i]
	}
	dimSize := shape[dim]

	result := tensor.MustNewRaw(reduceShape(shape, dim, false), tensor.Int32, cpu.device)
	in, out := x.AsFloat32(), result.AsInt32()

	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			base := o*dimSize*inner + i
			best, bestIdx := in[base], int32(0)
			for j := 1; j < dimSize; j++ {
				if v := in[base+j*inner]; v > best {
					best, bestIdx = v, int32(j)
				}
			}
			out[o*inner+i] = bestIdx
		}
	}

	return result
}
