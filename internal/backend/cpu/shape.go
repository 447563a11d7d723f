package cpu

import (
	"fmt"

	"github.com/ghego/cs224n-win18-squad/internal/tensor"
)

// Transpose permutes dimensions. With no axes the order reverses.
func (cpu *Backend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)

	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}
	if len(axes) != ndim {
		panic(fmt.Sprintf("transpose: got %d axes for %dD tensor", len(axes), ndim))
	}
	seen := make([]bool, ndim)
	for _, ax := range axes {
		if ax < 0 || ax >= ndim || seen[ax] {
			panic(fmt.Sprintf("transpose: invalid axes %v for %dD tensor", axes, ndim))
		}
		seen[ax] = true
	}

	outShape := make(tensor.Shape, ndim)
	for i, ax := range axes {
		outShape[i] = shape[ax]
	}

	result := tensor.MustNewRaw(outShape, t.DType(), cpu.device)

	srcStrides := shape.ComputeStrides()
	// Strides of the destination walk, expressed in source coordinates.
	walkStrides := make([]int, ndim)
	for i, ax := range axes {
		walkStrides[i] = srcStrides[ax]
	}

	switch t.DType() {
	case tensor.Float32:
		permuteCopy(result.AsFloat32(), t.AsFloat32(), outShape, walkStrides)
	case tensor.Int32:
		permuteCopy(result.AsInt32(), t.AsInt32(), outShape, walkStrides)
	case tensor.Bool:
		permuteCopy(result.AsBool(), t.AsBool(), outShape, walkStrides)
	}
	return result
}

// permuteCopy writes src into dst in row-major order of outShape, reading
// src at the permuted strides.
func permuteCopy[E any](dst, src []E, outShape tensor.Shape, walkStrides []int) {
	ndim := len(outShape)
	coords := make([]int, ndim)

	srcIdx := 0
	for i := range dst {
		dst[i] = src[srcIdx]

		// Advance the odometer and the running source index together.
		for d := ndim - 1; d >= 0; d-- {
			coords[d]++
			srcIdx += walkStrides[d]
			if coords[d] < outShape[d] {
				break
			}
			coords[d] = 0
			srcIdx -= outShape[d] * walkStrides[d]
		}
	}
}

// Expand broadcasts x to shape, materializing the stretched dimensions.
func (cpu *Backend) Expand(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	xShape := x.Shape()
	if len(shape) < len(xShape) {
		panic(fmt.Sprintf("expand: target %v has fewer dimensions than %v", shape, xShape))
	}
	offset := len(shape) - len(xShape)
	for i, d := range xShape {
		if d != 1 && d != shape[offset+i] {
			panic(fmt.Sprintf("expand: cannot expand dimension %d from %d to %d", i, d, shape[offset+i]))
		}
	}
	if x.DType() != tensor.Float32 {
		panic(fmt.Sprintf("expand: unsupported dtype %s", x.DType()))
	}

	result := tensor.MustNewRaw(shape, tensor.Float32, cpu.device)
	out, in := result.AsFloat32(), x.AsFloat32()

	outStrides := shape.ComputeStrides()
	inStrides := broadcastStrides(xShape, shape)
	for i := range out {
		out[i] = in[mapIndex(i, outStrides, inStrides)]
	}
	return result
}

// Unsqueeze inserts a size-1 dimension at dim. Zero-copy.
func (cpu *Backend) Unsqueeze(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	if dim < 0 {
		dim += len(shape) + 1
	}
	if dim < 0 || dim > len(shape) {
		panic(fmt.Sprintf("unsqueeze: dimension %d out of range for %dD tensor", dim, len(shape)))
	}

	newShape := make(tensor.Shape, 0, len(shape)+1)
	newShape = append(newShape, shape[:dim]...)
	newShape = append(newShape, 1)
	newShape = append(newShape, shape[dim:]...)
	return x.View(newShape)
}

// Squeeze removes the size-1 dimension at dim. Zero-copy.
func (cpu *Backend) Squeeze(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	dim = shape.NormalizeDim(dim)
	if shape[dim] != 1 {
		panic(fmt.Sprintf("squeeze: dimension %d has size %d, not 1", dim, shape[dim]))
	}

	newShape := make(tensor.Shape, 0, len(shape)-1)
	newShape = append(newShape, shape[:dim]...)
	newShape = append(newShape, shape[dim+1:]...)
	return x.View(newShape)
}

// Cat concatenates tensors along dim. Shapes must match outside dim.
func (cpu *Backend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(tensors) == 0 {
		panic("cat: no tensors")
	}
	first := tensors[0]
	shape := first.Shape()
	dim = shape.NormalizeDim(dim)

	catSize := 0
	for _, t := range tensors {
		tShape := t.Shape()
		if len(tShape) != len(shape) {
			panic(fmt.Sprintf("cat: rank mismatch %v vs %v", shape, tShape))
		}
		for i := range shape {
			if i != dim && tShape[i] != shape[i] {
				panic(fmt.Sprintf("cat: shape mismatch at dim %d: %v vs %v", i, shape, tShape))
			}
		}
		if t.DType() != first.DType() {
			panic(fmt.Sprintf("cat: dtype mismatch %s vs %s", first.DType(), t.DType()))
		}
		catSize += tShape[dim]
	}

	outShape := shape.Clone()
	outShape[dim] = catSize
	result := tensor.MustNewRaw(outShape, first.DType(), cpu.device)

	// Copy block-wise: for each outer index, append every tensor's slab.
	outer := 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	inner := 1
	for i := dim + 1; i < len(shape); i++ {
		inner *= shape[i]
	}

	elemSize := first.DType().Size()
	dstBytes := result.Data()
	rowBytes := catSize * inner * elemSize

	for o := 0; o < outer; o++ {
		dstOff := o * rowBytes
		for _, t := range tensors {
			slab := t.Shape()[dim] * inner * elemSize
			srcBytes := t.Data()
			copy(dstBytes[dstOff:dstOff+slab], srcBytes[o*slab:(o+1)*slab])
			dstOff += slab
		}
	}

	return result
}
