// Package qa assembles the span-prediction model and drives its
// training and evaluation: a frozen GloVe embedding feeding a shared
// self-attention encoder, context-to-question attention, and two masked
// span decoders, trained with Adam under global-norm gradient clipping.
package qa

import (
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/ghego/cs224n-win18-squad/internal/autodiff"
	"github.com/ghego/cs224n-win18-squad/internal/config"
	"github.com/ghego/cs224n-win18-squad/internal/nn"
	"github.com/ghego/cs224n-win18-squad/internal/optim"
	"github.com/ghego/cs224n-win18-squad/internal/squad"
	"github.com/ghego/cs224n-win18-squad/internal/tensor"
	"github.com/ghego/cs224n-win18-squad/internal/vocab"
)

// attentionHeads is the head count of the shared encoder. hidden_size
// must divide evenly into it.
const attentionHeads = 4

// Model is the question answering model: embedding lookup, a shared
// encoder over context and question, context-to-question attention, a
// blend projection and the start/end span decoders.
type Model[B autodiff.Capable] struct {
	cfg     *config.Config
	vocab   *vocab.Vocab
	backend B
	logger  *logrus.Logger
	rng     *rand.Rand

	embedding *nn.Embedding[B]
	embedDrop *nn.Dropout[B]
	proj      *nn.Linear[B]
	encoder   *nn.EncoderBlock[B]
	biattn    *nn.BidirAttention[B]
	blend     *nn.Linear[B]
	blendDrop *nn.Dropout[B]
	startDec  *nn.SpanDecoder[B]
	endDec    *nn.SpanDecoder[B]

	opt *optim.Adam[B]
}

// NewModel builds the model graph around a loaded vocabulary. The GloVe
// table is wrapped as a frozen embedding, so it is excluded from both
// training and checkpoints.
func NewModel[B autodiff.Capable](
	cfg *config.Config,
	v *vocab.Vocab,
	backend B,
	logger *logrus.Logger,
) (*Model[B], error) {
	if cfg.HiddenSize%attentionHeads != 0 {
		return nil, fmt.Errorf("hidden_size %d must be divisible by %d attention heads",
			cfg.HiddenSize, attentionHeads)
	}
	if v.Dim != cfg.EmbeddingSize {
		return nil, fmt.Errorf("embedding dimension mismatch: vocabulary has %d, config wants %d",
			v.Dim, cfg.EmbeddingSize)
	}

	embWeight, err := tensor.FromSlice(v.Embeddings, tensor.Shape{v.Size(), v.Dim}, backend)
	if err != nil {
		return nil, fmt.Errorf("embedding table: %w", err)
	}

	m := &Model[B]{
		cfg:     cfg,
		vocab:   v,
		backend: backend,
		logger:  logger,
		rng:     rand.New(rand.NewSource(cfg.Seed)),

		embedding: nn.NewEmbeddingWithWeight(embWeight, true),
		embedDrop: nn.NewDropout[B](cfg.Dropout, backend),
		proj:      nn.NewLinear(cfg.EmbeddingSize, cfg.HiddenSize, backend),
		encoder:   nn.NewEncoderBlock(cfg.HiddenSize, attentionHeads, cfg.Dropout, backend),
		biattn:    nn.NewBidirAttention[B](),
		blend:     nn.NewLinear(2*cfg.HiddenSize, cfg.HiddenSize, backend),
		blendDrop: nn.NewDropout[B](cfg.Dropout, backend),
		startDec:  nn.NewSpanDecoder(cfg.HiddenSize, backend),
		endDec:    nn.NewSpanDecoder(cfg.HiddenSize, backend),
	}
	m.opt = optim.NewAdam(m.Parameters(), optim.AdamConfig{LR: float32(cfg.LearningRate)}, backend)
	return m, nil
}

// Optimizer returns the model's Adam optimizer, for checkpointing.
func (m *Model[B]) Optimizer() optim.Optimizer { return m.opt }

// setTraining switches every dropout between training and eval behavior.
func (m *Model[B]) setTraining(training bool) {
	m.embedDrop.Train(training)
	m.encoder.Train(training)
	m.blendDrop.Train(training)
}

// spanScores holds the two masked position distributions of one batch.
type spanScores[B tensor.Backend] struct {
	startLogits *tensor.Tensor[float32, B]
	startProbs  *tensor.Tensor[float32, B]
	endLogits   *tensor.Tensor[float32, B]
	endProbs    *tensor.Tensor[float32, B]
}

// forward runs the graph over a padded batch.
func (m *Model[B]) forward(batch *squad.Batch) *spanScores[B] {
	ctxMask := m.floats(batch.ContextMask, batch.Size, batch.ContextLen)
	qnMask := m.floats(batch.QuestionMask, batch.Size, batch.QuestionLen)

	ctx := m.encode(m.ints(batch.ContextIDs, batch.Size, batch.ContextLen), ctxMask)
	qn := m.encode(m.ints(batch.QuestionIDs, batch.Size, batch.QuestionLen), qnMask)

	blended := m.biattn.Forward(ctx, qn, qnMask)
	h := m.blendDrop.Forward(m.blend.Forward(blended).Relu())

	scores := &spanScores[B]{}
	scores.startLogits, scores.startProbs = m.startDec.Forward(h, ctxMask)
	scores.endLogits, scores.endProbs = m.endDec.Forward(h, ctxMask)
	return scores
}

// encode embeds token ids and runs the shared encoder under the mask.
func (m *Model[B]) encode(
	ids *tensor.Tensor[int32, B],
	mask *tensor.Tensor[float32, B],
) *tensor.Tensor[float32, B] {
	embedded := m.embedDrop.Forward(m.embedding.Forward(ids))
	return m.encoder.Forward(m.proj.Forward(embedded), mask)
}

// batchLoss computes the span cross entropy against the gold positions.
func (m *Model[B]) batchLoss(batch *squad.Batch, scores *spanScores[B]) *tensor.Tensor[float32, B] {
	starts := m.ints(batch.Starts, batch.Size)
	ends := m.ints(batch.Ends, batch.Size)
	return nn.SpanCrossEntropy(scores.startLogits, scores.endLogits, starts, ends)
}

func (m *Model[B]) floats(data []float32, shape ...int) *tensor.Tensor[float32, B] {
	t, err := tensor.FromSlice(data, tensor.Shape(shape), m.backend)
	if err != nil {
		panic(fmt.Sprintf("batch tensor: %v", err))
	}
	return t
}

func (m *Model[B]) ints(data []int32, shape ...int) *tensor.Tensor[int32, B] {
	t, err := tensor.FromSlice(data, tensor.Shape(shape), m.backend)
	if err != nil {
		panic(fmt.Sprintf("batch tensor: %v", err))
	}
	return t
}

// Parameters returns every trainable parameter. The frozen embedding
// contributes none.
func (m *Model[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	params = append(params, m.embedding.Parameters()...)
	params = append(params, m.proj.Parameters()...)
	params = append(params, m.encoder.Parameters()...)
	params = append(params, m.blend.Parameters()...)
	params = append(params, m.startDec.Parameters()...)
	params = append(params, m.endDec.Parameters()...)
	return params
}

// StateDict returns the trainable parameters keyed by hierarchical name.
// The GloVe table is a constant rebuilt from file, not checkpoint state.
func (m *Model[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	merge(state, "proj", m.proj.StateDict())
	merge(state, "encoder", m.encoder.StateDict())
	merge(state, "blend", m.blend.StateDict())
	merge(state, "start", m.startDec.StateDict())
	merge(state, "end", m.endDec.StateDict())
	return state
}

// LoadStateDict restores the trainable parameters.
func (m *Model[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	if err := m.proj.LoadStateDict(sub(state, "proj")); err != nil {
		return fmt.Errorf("proj: %w", err)
	}
	if err := m.encoder.LoadStateDict(sub(state, "encoder")); err != nil {
		return fmt.Errorf("encoder: %w", err)
	}
	if err := m.blend.LoadStateDict(sub(state, "blend")); err != nil {
		return fmt.Errorf("blend: %w", err)
	}
	if err := m.startDec.LoadStateDict(sub(state, "start")); err != nil {
		return fmt.Errorf("start decoder: %w", err)
	}
	if err := m.endDec.LoadStateDict(sub(state, "end")); err != nil {
		return fmt.Errorf("end decoder: %w", err)
	}
	return nil
}

func merge(dst map[string]*tensor.RawTensor, prefix string, src map[string]*tensor.RawTensor) {
	for name, raw := range src {
		dst[prefix+"."+name] = raw
	}
}

func sub(state map[string]*tensor.RawTensor, prefix string) map[string]*tensor.RawTensor {
	out := make(map[string]*tensor.RawTensor)
	for name, raw := range state {
		if len(name) > len(prefix)+1 && name[:len(prefix)] == prefix && name[len(prefix)] == '.' {
			out[name[len(prefix)+1:]] = raw
		}
	}
	return out
}

func (m *Model[B]) rawParams() []*tensor.RawTensor {
	params := m.Parameters()
	raws := make([]*tensor.RawTensor, len(params))
	for i, p := range params {
		raws[i] = p.Tensor().Raw()
	}
	return raws
}
