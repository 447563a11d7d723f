package autodiff_test

import (
	"math"
	"testing"

	"github.com/ghego/cs224n-win18-squad/internal/autodiff"
	"github.com/ghego/cs224n-win18-squad/internal/backend/cpu"
	"github.com/ghego/cs224n-win18-squad/internal/tensor"
)

func TestBackendName(t *testing.T) {
	backend := autodiff.New(cpu.New())
	if backend.Name() != "Autodiff(CPU)" {
		t.Errorf("Name() = %s, want Autodiff(CPU)", backend.Name())
	}
	if backend.Device() != tensor.CPU {
		t.Errorf("Device() = %v, want CPU", backend.Device())
	}
}

func TestTapeRecording(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()

	if tape.IsRecording() {
		t.Error("fresh tape should not be recording")
	}

	tape.StartRecording()
	x, _ := tensor.FromSlice([]float32{1, 2}, tensor.Shape{2}, backend)
	_ = x.Add(x)
	if tape.NumOps() != 1 {
		t.Errorf("NumOps() = %d, want 1", tape.NumOps())
	}

	tape.StopRecording()
	_ = x.Add(x)
	if tape.NumOps() != 1 {
		t.Errorf("NumOps() after stop = %d, want 1", tape.NumOps())
	}

	tape.Clear()
	if tape.NumOps() != 0 {
		t.Errorf("NumOps() after clear = %d, want 0", tape.NumOps())
	}
}

func TestBackwardSquare(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x, _ := tensor.FromSlice([]float32{3}, tensor.Shape{1}, backend)
	y := x.Mul(x)

	grads := autodiff.Backward(y, backend)
	got := grads[x.Raw()].AsFloat32()[0]
	if math.Abs(float64(got-6)) > 1e-5 {
		t.Errorf("d(x²)/dx at 3 = %f, want 6", got)
	}
}

func TestBackwardMatMul(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	a, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
	b, _ := tensor.FromSlice([]float32{5, 6, 7, 8}, tensor.Shape{2, 2}, backend)
	c := a.MatMul(b).Sum()

	grads := autodiff.Backward(c, backend)

	// dL/dA = grad @ Bᵀ with grad all ones: row sums of B columns.
	wantA := []float32{11, 15, 11, 15}
	gotA := grads[a.Raw()].AsFloat32()
	for i := range wantA {
		if math.Abs(float64(gotA[i]-wantA[i])) > 1e-5 {
			t.Fatalf("grad A[%d] = %f, want %f", i, gotA[i], wantA[i])
		}
	}

	wantB := []float32{4, 4, 6, 6}
	gotB := grads[b.Raw()].AsFloat32()
	for i := range wantB {
		if math.Abs(float64(gotB[i]-wantB[i])) > 1e-5 {
			t.Fatalf("grad B[%d] = %f, want %f", i, gotB[i], wantB[i])
		}
	}
}

func TestBackwardBroadcastAdd(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x, _ := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	bias, _ := tensor.FromSlice([]float32{1, 1, 1}, tensor.Shape{1, 3}, backend)
	y := x.Add(bias).Sum()

	grads := autodiff.Backward(y, backend)

	biasGrad := grads[bias.Raw()]
	if !biasGrad.Shape().Equal(tensor.Shape{1, 3}) {
		t.Fatalf("bias grad shape = %v, want [1 3]", biasGrad.Shape())
	}
	for i, v := range biasGrad.AsFloat32() {
		if v != 2 {
			t.Errorf("bias grad[%d] = %f, want 2 (summed over batch)", i, v)
		}
	}
}

func TestBackwardAccumulatesReusedTensor(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	// y = x*x + x: dy/dx = 2x + 1.
	x, _ := tensor.FromSlice([]float32{4}, tensor.Shape{1}, backend)
	y := x.Mul(x).Add(x)

	grads := autodiff.Backward(y, backend)
	got := grads[x.Raw()].AsFloat32()[0]
	if math.Abs(float64(got-9)) > 1e-5 {
		t.Errorf("dy/dx at 4 = %f, want 9", got)
	}
}

func TestBackwardEmbeddingScatterAdd(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	weight, _ := tensor.FromSlice([]float32{
		1, 1,
		2, 2,
		3, 3,
	}, tensor.Shape{3, 2}, backend)
	indices, _ := tensor.FromSlice([]int32{0, 2, 0}, tensor.Shape{3}, backend)

	out := weight.Embedding(indices).Sum()
	grads := autodiff.Backward(out, backend)

	got := grads[weight.Raw()].AsFloat32()
	// Row 0 looked up twice, row 1 never, row 2 once.
	want := []float32{2, 2, 0, 0, 1, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("weight grad[%d] = %f, want %f", i, got[i], want[i])
		}
	}
}

func TestBackwardSoftmaxSumsToZero(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{1, 4}, backend)
	probs := x.Softmax(-1)

	// Pick out the first probability as the scalar objective.
	idx, _ := tensor.FromSlice([]int32{0}, tensor.Shape{1, 1}, backend)
	y := probs.Gather(1, idx).Sum()

	grads := autodiff.Backward(y, backend)
	var total float64
	for _, v := range grads[x.Raw()].AsFloat32() {
		total += float64(v)
	}
	// Softmax gradients along the normalized dim always sum to zero.
	if math.Abs(total) > 1e-5 {
		t.Errorf("softmax input gradient sums to %f, want 0", total)
	}
}
