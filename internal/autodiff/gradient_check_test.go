package autodiff_test

import (
	"math"
	"testing"

	"github.com/ghego/cs224n-win18-squad/internal/autodiff"
	"github.com/ghego/cs224n-win18-squad/internal/backend/cpu"
	"github.com/ghego/cs224n-win18-squad/internal/tensor"
)

type adCPU = *autodiff.Backend[*cpu.Backend]

// checkGradient compares the tape gradient of a scalar-valued function
// against central finite differences at every input coordinate.
func checkGradient(
	t *testing.T,
	name string,
	input []float32,
	shape tensor.Shape,
	f func(x *tensor.Tensor[float32, adCPU]) *tensor.Tensor[float32, adCPU],
) {
	t.Helper()

	const epsilon = 1e-3
	backend := autodiff.New(cpu.New())

	eval := func(data []float32) float32 {
		backend.Tape().StopRecording()
		backend.Tape().Clear()
		x, err := tensor.FromSlice(data, shape, backend)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		return f(x).Item()
	}

	backend.Tape().Clear()
	backend.Tape().StartRecording()
	x, err := tensor.FromSlice(input, shape, backend)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	y := f(x)
	grads := autodiff.Backward(y, backend)
	analytic := grads[x.Raw()].AsFloat32()

	for i := range input {
		perturbed := append([]float32(nil), input...)
		perturbed[i] = input[i] + epsilon
		plus := eval(perturbed)
		perturbed[i] = input[i] - epsilon
		minus := eval(perturbed)

		numeric := (plus - minus) / (2 * epsilon)
		if math.Abs(float64(analytic[i]-numeric)) > 1e-2 {
			t.Errorf("%s: grad[%d] analytic %f vs numeric %f", name, i, analytic[i], numeric)
		}
	}
}

func TestGradCheckTanhChain(t *testing.T) {
	checkGradient(t, "tanh", []float32{-1, 0.5, 2}, tensor.Shape{3},
		func(x *tensor.Tensor[float32, adCPU]) *tensor.Tensor[float32, adCPU] {
			return x.Tanh().Sum()
		})
}

func TestGradCheckSoftmaxLog(t *testing.T) {
	checkGradient(t, "softmax-log", []float32{0.1, 1.2, -0.7, 0.4}, tensor.Shape{2, 2},
		func(x *tensor.Tensor[float32, adCPU]) *tensor.Tensor[float32, adCPU] {
			return x.Softmax(-1).AddScalar(1e-6).Log().Sum()
		})
}

func TestGradCheckLayerNormStyle(t *testing.T) {
	// mean/variance composition exercises Sub, Mul, MeanDim and Sqrt.
	checkGradient(t, "normalize", []float32{1, 2, 3, 4, 5, 9}, tensor.Shape{2, 3},
		func(x *tensor.Tensor[float32, adCPU]) *tensor.Tensor[float32, adCPU] {
			mean := x.MeanDim(-1, true)
			centered := x.Sub(mean)
			variance := centered.Mul(centered).MeanDim(-1, true)
			return centered.Div(variance.AddScalar(1e-5).Sqrt()).Sum()
		})
}

func TestGradCheckBatchMatMul(t *testing.T) {
	other := []float32{0.5, -1, 2, 0.25, 1, 1, -0.5, 0.75}
	checkGradient(t, "batchmatmul", []float32{1, 2, 3, 4, 5, 6, 7, 8}, tensor.Shape{2, 2, 2},
		func(x *tensor.Tensor[float32, adCPU]) *tensor.Tensor[float32, adCPU] {
			w, err := tensor.FromSlice(other, tensor.Shape{2, 2, 2}, x.Backend())
			if err != nil {
				t.Fatal(err)
			}
			return x.BatchMatMul(w).Sum()
		})
}
