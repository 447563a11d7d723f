package cpu

import (
	"fmt"

	"github.com/ghego/cs224n-win18-squad/internal/tensor"
)

// Embedding looks up rows of weight [vocab, dim] for every index, producing
// indices.Shape() + [dim]. Out-of-range indices panic.
func (cpu *Backend) Embedding(weight, indices *tensor.RawTensor) *tensor.RawTensor {
	wShape := weight.Shape()
	if len(wShape) != 2 {
		panic(fmt.Sprintf("embedding: weight must be 2D, got %v", wShape))
	}
	if weight.DType() != tensor.Float32 || indices.DType() != tensor.Int32 {
		panic(fmt.Sprintf("embedding: want float32 weight and int32 indices, got %s/%s",
			weight.DType(), indices.DType()))
	}

	vocab, dim := wShape[0], wShape[1]
	outShape := append(indices.Shape().Clone(), dim)

	result := tensor.MustNewRaw(outShape, tensor.Float32, cpu.device)
	out, w := result.AsFloat32(), weight.AsFloat32()

	for i, idx := range indices.AsInt32() {
		if idx < 0 || int(idx) >= vocab {
			panic(fmt.Sprintf("embedding: index %d out of range [0, %d)", idx, vocab))
		}
		copy(out[i*dim:(i+1)*dim], w[int(idx)*dim:(int(idx)+1)*dim])
	}

	return result
}

// Gather selects elements along dim using an index tensor of the same rank:
// out[..., j, ...] = x[..., index[..., j, ...], ...] with j at dim.
func (cpu *Backend) Gather(x *tensor.RawTensor, dim int, index *tensor.RawTensor) *tensor.RawTensor {
	if x.DType() != tensor.Float32 || index.DType() != tensor.Int32 {
		panic(fmt.Sprintf("gather: want float32 input and int32 index, got %s/%s", x.DType(), index.DType()))
	}

	shape := x.Shape()
	idxShape := index.Shape()
	if len(idxShape) != len(shape) {
		panic(fmt.Sprintf("gather: rank mismatch %v vs %v", shape, idxShape))
	}
	dim = shape.NormalizeDim(dim)
	for i := range shape {
		if i != dim && idxShape[i] != shape[i] {
			panic(fmt.Sprintf("gather: index shape %v incompatible with %v at dim %d", idxShape, shape, i))
		}
	}

	result := tensor.MustNewRaw(idxShape, tensor.Float32, cpu.device)
	out, in, idx := result.AsFloat32(), x.AsFloat32(), index.AsInt32()

	outer, inner := 1, 1
	for i := 0; i < dim; i++ {
		outer *= idxShape[i]
	}
	for i := dim + 1; i < len(idxShape); i++ {
		inner *= idxShape[i]
	}
	idxDim, srcDim := idxShape[dim], shape[dim]

	for o := 0; o < outer; o++ {
		for j := 0; j < idxDim; j++ {
			for i := 0; i < inner; i++ {
				pos := o*idxDim*inner + j*inner + i
				target := idx[pos]
				if target < 0 || int(target) >= srcDim {
					panic(fmt.Sprintf("gather: index %d out of range [0, %d)", target, srcDim))
				}
				out[pos] = in[o*srcDim*inner+int(target)*inner+i]
			}
		}
	}

	return result
}

// Greater compares element-wise with broadcasting, returning a Bool tensor.
func (cpu *Backend) Greater(a, b *tensor.RawTensor) *tensor.RawTensor {
	if a.DType() != tensor.Float32 || b.DType() != tensor.Float32 {
		panic(fmt.Sprintf("greater: unsupported dtypes %s/%s", a.DType(), b.DType()))
	}

	outShape, _, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("greater: %v", err))
	}

	result := tensor.MustNewRaw(outShape, tensor.Bool, cpu.device)
	out := result.AsBool()

	outStrides := outShape.ComputeStrides()
	aStrides := broadcastStrides(a.Shape(), outShape)
	bStrides := broadcastStrides(b.Shape(), outShape)
	aData, bData := a.AsFloat32(), b.AsFloat32()

	for i := range out {
		out[i] = aData[mapIndex(i, outStrides, aStrides)] > bData[mapIndex(i, outStrides, bStrides)]
	}
	return result
}

// Where selects x where condition is true and y otherwise. Condition must
// be Bool; x and y must share shape and dtype Float32.
func (cpu *Backend) Where(condition, x, y *tensor.RawTensor) *tensor.RawTensor {
	if condition.DType() != tensor.Bool {
		panic(fmt.Sprintf("where: condition must be bool, got %s", condition.DType()))
	}
	if !x.Shape().Equal(y.Shape()) || !x.Shape().Equal(condition.Shape()) {
		panic(fmt.Sprintf("where: shape mismatch %v/%v/%v", condition.Shape(), x.Shape(), y.Shape()))
	}
	if x.DType() != tensor.Float32 || y.DType() != tensor.Float32 {
		panic(fmt.Sprintf("where: unsupported dtypes %s/%s", x.DType(), y.DType()))
	}

	result := tensor.MustNewRaw(x.Shape(), tensor.Float32, cpu.device)
	out, cond, xData, yData := result.AsFloat32(), condition.AsBool(), x.AsFloat32(), y.AsFloat32()

	for i := range out {
		if cond[i] {
			out[i] = xData[i]
		} else {
			out[i] = yData[i]
		}
	}
	return result
}

// Cast converts element types. Bool becomes 0/1; Float32 to Int32
// truncates toward zero.
func (cpu *Backend) Cast(x *tensor.RawTensor, dtype tensor.DataType) *tensor.RawTensor {
	if x.DType() == dtype {
		return x.Clone()
	}

	result := tensor.MustNewRaw(x.Shape(), dtype, cpu.device)

	switch {
	case x.DType() == tensor.Bool && dtype == tensor.Float32:
		out := result.AsFloat32()
		for i, v := range x.AsBool() {
			if v {
				out[i] = 1
			}
		}
	case x.DType() == tensor.Int32 && dtype == tensor.Float32:
		out := result.AsFloat32()
		for i, v := range x.AsInt32() {
			out[i] = float32(v)
		}
	case x.DType() == tensor.Float32 && dtype == tensor.Int32:
		out := result.AsInt32()
		for i, v := range x.AsFloat32() {
			out[i] = int32(v)
		}
	case x.DType() == tensor.Bool && dtype == tensor.Int32:
		out := result.AsInt32()
		for i, v := range x.AsBool() {
			if v {
				out[i] = 1
			}
		}
	default:
		panic(fmt.Sprintf("cast: unsupported conversion %s -> %s", x.DType(), dtype))
	}

	return result
}
