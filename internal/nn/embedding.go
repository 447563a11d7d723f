package nn

import (
	"github.com/ghego/cs224n-win18-squad/internal/autodiff"
	"github.com/ghego/cs224n-win18-squad/internal/tensor"
)

// tapeHolder is the capability an autodiff-decorated backend exposes for
// suspending recording. Checked by type assertion so plain compute
// backends work unchanged.
type tapeHolder interface {
	GetTape() *autodiff.GradientTape
}

// Embedding maps int32 token ids to dense vectors via a [vocab, dim]
// weight table.
//
// A frozen embedding (the pretrained GloVe table) is excluded from
// Parameters and its lookup runs with tape recording suspended, so no
// vocab-sized gradient buffer is ever materialized for it.
type Embedding[B tensor.Backend] struct {
	weight *Parameter[B]
	vocab  int
	dim    int
	frozen bool
}

// NewEmbedding creates a trainable embedding initialized from N(0, 1).
func NewEmbedding[B tensor.Backend](vocab, dim int, backend B) *Embedding[B] {
	weight := tensor.Randn(tensor.Shape{vocab, dim}, backend)
	return &Embedding[B]{
		weight: NewParameter("weight", weight),
		vocab:  vocab,
		dim:    dim,
	}
}

// NewEmbeddingWithWeight wraps an existing [vocab, dim] table. frozen
// excludes the table from training.
func NewEmbeddingWithWeight[B tensor.Backend](weight *tensor.Tensor[float32, B], frozen bool) *Embedding[B] {
	shape := weight.Shape()
	return &Embedding[B]{
		weight: NewParameter("weight", weight),
		vocab:  shape[0],
		dim:    shape[1],
		frozen: frozen,
	}
}

// Forward looks up rows for every index: [batch, seq] -> [batch, seq, dim].
func (e *Embedding[B]) Forward(indices *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	w := e.weight.Tensor()
	if e.frozen {
		if holder, ok := any(w.Backend()).(tapeHolder); ok {
			tape := holder.GetTape()
			if tape.IsRecording() {
				tape.StopRecording()
				defer tape.StartRecording()
			}
		}
	}
	return tensor.New[float32, B](w.Backend().Embedding(w.Raw(), indices.Raw()), w.Backend())
}

// Parameters returns the weight table, or nothing when frozen.
func (e *Embedding[B]) Parameters() []*Parameter[B] {
	if e.frozen {
		return nil
	}
	return []*Parameter[B]{e.weight}
}

// StateDict returns the weight table. Frozen tables are included so a
// checkpoint is self-contained.
func (e *Embedding[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{"weight": e.weight.Tensor().Raw()}
}

// LoadStateDict restores the weight table.
func (e *Embedding[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	return loadParam(state, "weight", e.weight)
}
