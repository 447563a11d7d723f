package autodiff

import (
	"fmt"

	"github.com/ghego/cs224n-win18-squad/internal/tensor"
)

// Capable is the constraint for backends that can run a backward pass.
// The decorator Backend implements it for any wrapped compute backend.
type Capable interface {
	tensor.Backend
	GetTape() *GradientTape
}

// GetTape returns the gradient tape.
func (b *Backend[B]) GetTape() *GradientTape { return b.tape }

// Backward seeds the output gradient with ones and walks the tape,
// returning the gradient for every tensor the forward pass touched. The
// usual caller passes the scalar training loss.
func Backward[T tensor.DType, B Capable](t *tensor.Tensor[T, B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	tape := backend.GetTape()
	if tape.NumOps() == 0 {
		panic("backward: no operations recorded (is the tape recording?)")
	}
	if t.DType() != tensor.Float32 {
		panic(fmt.Sprintf("backward: cannot differentiate %s output", t.DType()))
	}

	outputGrad := tensor.FullLike(t.Raw(), 1)
	return tape.Backward(outputGrad, backend)
}
