package autodiff

import (
	"github.com/ghego/cs224n-win18-squad/internal/autodiff/ops"
	"github.com/ghego/cs224n-win18-squad/internal/tensor"
)

// GradientTape records operations during the forward pass and replays them
// in reverse to compute gradients.
type GradientTape struct {
	operations []ops.Operation
	recording  bool
}

// NewGradientTape creates an empty tape.
func NewGradientTape() *GradientTape {
	return &GradientTape{operations: make([]ops.Operation, 0, 64)}
}

// StartRecording enables operation recording.
func (t *GradientTape) StartRecording() { t.recording = true }

// StopRecording disables operation recording.
func (t *GradientTape) StopRecording() { t.recording = false }

// IsRecording reports whether operations are currently recorded.
func (t *GradientTape) IsRecording() bool { return t.recording }

// Record appends an operation while recording is on.
func (t *GradientTape) Record(op ops.Operation) {
	if t.recording {
		t.operations = append(t.operations, op)
	}
}

// Clear drops all recorded operations, keeping the recording state. Call
// between training steps so the tape does not grow across batches.
func (t *GradientTape) Clear() {
	t.operations = t.operations[:0]
}

// NumOps returns the number of recorded operations.
func (t *GradientTape) NumOps() int { return len(t.operations) }

// Backward walks the tape in reverse, applying each operation's gradient
// rule and accumulating gradients for tensors consumed more than once.
// outputGrad seeds the gradient of the last recorded operation's output.
//
// Recording is suspended for the duration so the gradient math itself does
// not land on the tape.
func (t *GradientTape) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) map[*tensor.RawTensor]*tensor.RawTensor {
	grads := make(map[*tensor.RawTensor]*tensor.RawTensor)
	if len(t.operations) == 0 {
		return grads
	}

	wasRecording := t.recording
	t.recording = false
	defer func() { t.recording = wasRecording }()

	grads[t.operations[len(t.operations)-1].Output()] = outputGrad

	for i := len(t.operations) - 1; i >= 0; i-- {
		op := t.operations[i]
		grad, ok := grads[op.Output()]
		if !ok {
			// No gradient flows through this operation's output.
			continue
		}

		inputGrads := t.applyBackward(op, grad, backend)
		t.accumulate(op.Inputs(), inputGrads, grads, backend)
	}

	return grads
}

// applyBackward runs one operation's gradient rule with every involved
// buffer pinned: backward math goes through the raw backend, whose in-place
// fast path would otherwise overwrite tensors later tape entries still read.
func (t *GradientTape) applyBackward(op ops.Operation, outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	defer outputGrad.ForceNonUnique()()
	defer op.Output().ForceNonUnique()()
	for _, input := range op.Inputs() {
		defer input.ForceNonUnique()()
	}
	return op.Backward(outputGrad, backend)
}

func (t *GradientTape) accumulate(
	inputs, inputGrads []*tensor.RawTensor,
	grads map[*tensor.RawTensor]*tensor.RawTensor,
	backend tensor.Backend,
) {
	for i, input := range inputs {
		if i >= len(inputGrads) || inputGrads[i] == nil {
			continue
		}
		if existing, ok := grads[input]; ok {
			grads[input] = backend.Add(existing, inputGrads[i])
		} else {
			grads[input] = inputGrads[i]
		}
	}
}
