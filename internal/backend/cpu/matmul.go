package cpu

import (
	"fmt"

	"github.com/ghego/cs224n-win18-squad/internal/parallel"
	"github.com/ghego/cs224n-win18-squad/internal/tensor"
)

// MatMul multiplies 2D matrices: [M, K] @ [K, N] -> [M, N].
// Rows of the output are computed in parallel; the inner loops accumulate
// full rows of B so the hot loop stays contiguous.
func (cpu *Backend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape, bShape := a.Shape(), b.Shape()
	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: only 2D tensors supported, got %dD and %dD", len(aShape), len(bShape)))
	}
	if a.DType() != tensor.Float32 || b.DType() != tensor.Float32 {
		panic(fmt.Sprintf("matmul: unsupported dtypes %s/%s", a.DType(), b.DType()))
	}

	m, k := aShape[0], aShape[1]
	kAlt, n := bShape[0], bShape[1]
	if k != kAlt {
		panic(fmt.Sprintf("matmul: shape mismatch [%d,%d] @ [%d,%d]", m, k, kAlt, n))
	}

	result := tensor.MustNewRaw(tensor.Shape{m, n}, tensor.Float32, cpu.device)
	cpu.matmulRows(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), m, k, n)
	return result
}

// matmulRows computes C[m,n] = A[m,k] @ B[k,n], parallel over rows of C.
func (cpu *Backend) matmulRows(c, a, b []float32, m, k, n int) {
	tile := cpu.simdTile
	parallel.ForRows(m, k*n, func(i int) {
		cRow := c[i*n : (i+1)*n]
		for j := range cRow {
			cRow[j] = 0
		}
		// i-k-j ordering: each A element scales a contiguous run of B.
		for kk := 0; kk < k; kk++ {
			aik := a[i*k+kk]
			if aik == 0 {
				continue
			}
			bRow := b[kk*n : (kk+1)*n]
			for j0 := 0; j0 < n; j0 += tile {
				j1 := min(j0+tile, n)
				for j := j0; j < j1; j++ {
					cRow[j] += aik * bRow[j]
				}
			}
		}
	}, cpu.par)
}

// BatchMatMul multiplies stacks of matrices: [..., M, K] @ [..., K, N] ->
// [..., M, N]. All leading dimensions must match.
func (cpu *Backend) BatchMatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape, bShape := a.Shape(), b.Shape()
	ndim := len(aShape)

	if ndim < 3 {
		panic(fmt.Sprintf("batchmatmul: inputs must be at least 3D, got %dD", ndim))
	}
	if len(bShape) != ndim {
		panic(fmt.Sprintf("batchmatmul: rank mismatch, got %dD and %dD", ndim, len(bShape)))
	}
	for i := 0; i < ndim-2; i++ {
		if aShape[i] != bShape[i] {
			panic(fmt.Sprintf("batchmatmul: batch dimension mismatch at dim %d: %d vs %d", i, aShape[i], bShape[i]))
		}
	}

	m, k := aShape[ndim-2], aShape[ndim-1]
	kAlt, n := bShape[ndim-2], bShape[ndim-1]
	if k != kAlt {
		panic(fmt.Sprintf("batchmatmul: inner dimension mismatch: %d vs %d", k, kAlt))
	}

	batch := 1
	for i := 0; i < ndim-2; i++ {
		batch *= aShape[i]
	}

	outShape := aShape.Clone()
	outShape[ndim-1] = n

	result := tensor.MustNewRaw(outShape, tensor.Float32, cpu.device)
	c := result.AsFloat32()
	aData, bData := a.AsFloat32(), b.AsFloat32()

	sizeA, sizeB, sizeC := m*k, k*n, m*n
	parallel.For(batch*m, func(idx int) {
		bi, i := idx/m, idx%m
		aMat := aData[bi*sizeA : (bi+1)*sizeA]
		bMat := bData[bi*sizeB : (bi+1)*sizeB]
		cRow := c[bi*sizeC+i*n : bi*sizeC+(i+1)*n]

		for kk := 0; kk < k; kk++ {
			aik := aMat[i*k+kk]
			if aik == 0 {
				continue
			}
			bRow := bMat[kk*n : (kk+1)*n]
			for j := range cRow {
				cRow[j] += aik * bRow[j]
			}
		}
	}, parallel.Config{
		Enabled:      cpu.par.Enabled,
		NumWorkers:   cpu.par.NumWorkers,
		MinChunkSize: max(cpu.par.MinChunkSize/(k*n), 1),
	})

	return result
}
