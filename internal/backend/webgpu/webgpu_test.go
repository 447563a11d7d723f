package webgpu

import (
	"testing"

	"github.com/ghego/cs224n-win18-squad/internal/backend/cpu"
	"github.com/ghego/cs224n-win18-squad/internal/tensor"
)

// hybrid without a GPU device: every op takes the CPU path.
func cpuOnly() *Backend {
	return &Backend{cpu: cpu.New()}
}

func raw(t *testing.T, data []float32, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	r := tensor.MustNewRaw(shape, tensor.Float32, tensor.CPU)
	copy(r.AsFloat32(), data)
	return r
}

func TestMatMulFallsBackToCPU(t *testing.T) {
	b := cpuOnly()
	a := raw(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	x := raw(t, []float32{5, 6, 7, 8}, tensor.Shape{2, 2})

	out := b.MatMul(a, x)
	want := []float32{19, 22, 43, 50}
	got := out.AsFloat32()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("MatMul[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestBatchMatMulFallsBackToCPU(t *testing.T) {
	b := cpuOnly()
	a := raw(t, []float32{1, 0, 0, 1, 2, 0, 0, 2}, tensor.Shape{2, 2, 2})
	x := raw(t, []float32{1, 2, 3, 4, 1, 2, 3, 4}, tensor.Shape{2, 2, 2})

	out := b.BatchMatMul(a, x)
	want := []float32{1, 2, 3, 4, 2, 4, 6, 8}
	got := out.AsFloat32()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("BatchMatMul[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDelegatedOps(t *testing.T) {
	b := cpuOnly()
	x := raw(t, []float32{-1, 2}, tensor.Shape{2})
	y := raw(t, []float32{3, 4}, tensor.Shape{2})

	if got := b.Add(x, y).AsFloat32(); got[0] != 2 || got[1] != 6 {
		t.Errorf("Add = %v", got)
	}
	if got := b.Relu(x).AsFloat32(); got[0] != 0 || got[1] != 2 {
		t.Errorf("Relu = %v", got)
	}
}

func TestNameAndDevice(t *testing.T) {
	b := cpuOnly()
	if b.Name() != "WebGPU" {
		t.Errorf("Name = %q", b.Name())
	}
	if b.Device() != tensor.WebGPU {
		t.Errorf("Device = %v", b.Device())
	}
}
