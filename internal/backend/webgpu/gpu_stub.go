//go:build !windows

package webgpu

import (
	"fmt"

	"github.com/ghego/cs224n-win18-squad/internal/tensor"
)

// gpuContext is unavailable without the wgpu_native runtime.
type gpuContext struct{}

func newGPU() (*gpuContext, error) {
	return nil, fmt.Errorf("webgpu: the wgpu_native runtime is only wired up on windows; use --device cpu")
}

func (g *gpuContext) matMul(a, b *tensor.RawTensor) (*tensor.RawTensor, bool) {
	return nil, false
}

func (g *gpuContext) batchMatMul(a, b *tensor.RawTensor) (*tensor.RawTensor, bool) {
	return nil, false
}
