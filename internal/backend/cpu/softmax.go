package cpu

import (
	"fmt"
	"math"

	"github.com/ghego/cs224n-win18-squad/internal/parallel"
	"github.com/ghego/cs224n-win18-squad/internal/tensor"
)

// Softmax normalizes along dim with the usual max-subtraction for numeric
// stability. Rows with large negative mask values come out as near-zero
// probabilities, which is exactly what padded positions need.
func (cpu *Backend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	if x.DType() != tensor.Float32 {
		panic(fmt.Sprintf("softmax: unsupported dtype %s", x.DType()))
	}

	shape := x.Shape()
	dim = shape.NormalizeDim(dim)

	// Decompose the index space into [outer, dim, inner].
	outer, inner := 1, 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	for i := dim + 1; i < len(shape); i++ {
		inner *= shape[i]
	}
	dimSize := shape[dim]

	result := tensor.MustNewRaw(shape, tensor.Float32, cpu.device)
	in, out := x.AsFloat32(), result.AsFloat32()

	parallel.For(outer*inner, func(oi int) {
		o, i := oi/inner, oi%inner
		base := o*dimSize*inner + i

		maxVal := in[base]
		for j := 1; j < dimSize; j++ {
			if v := in[base+j*inner]; v > maxVal {
				maxVal = v
			}
		}

		var sum float32
		for j := 0; j < dimSize; j++ {
			e := float32(math.Exp(float64(in[base+j*inner] - maxVal)))
			out[base+j*inner] = e
			sum += e
		}

		invSum := 1 / sum
		for j := 0; j < dimSize; j++ {
			out[base+j*inner] *= invSum
		}
	}, parallel.Config{
		Enabled:      cpu.par.Enabled,
		NumWorkers:   cpu.par.NumWorkers,
		MinChunkSize: max(cpu.par.MinChunkSize/dimSize, 1),
	})

	return result
}
