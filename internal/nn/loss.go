package nn

import "github.com/ghego/cs224n-win18-squad/internal/tensor"

// SpanCrossEntropy is the span prediction training loss: the sum of the
// cross entropies of the start and end distributions against the gold
// positions, averaged over the batch.
//
// startLogits and endLogits are masked logits [batch, cLen]; starts and
// ends are gold token positions [batch].
func SpanCrossEntropy[B tensor.Backend](
	startLogits, endLogits *tensor.Tensor[float32, B],
	starts, ends *tensor.Tensor[int32, B],
) *tensor.Tensor[float32, B] {
	return positionNLL(startLogits, starts).Add(positionNLL(endLogits, ends))
}

// positionNLL computes mean(-log softmax(logits)[gold]) over the batch.
// The log-sum-exp is shifted by the per-row max, computed off tape, so
// the masked -1e30 entries cannot overflow the exponentials.
func positionNLL[B tensor.Backend](
	logits *tensor.Tensor[float32, B],
	gold *tensor.Tensor[int32, B],
) *tensor.Tensor[float32, B] {
	batch := logits.Shape()[0]

	shifted := logits.Sub(rowMax(logits))
	logZ := shifted.Exp().SumDim(-1, true).Log()
	logProbs := shifted.Sub(logZ)

	picked := logProbs.Gather(-1, gold.Reshape(batch, 1))
	return picked.Reshape(batch).MeanDim(0, false).MulScalar(-1)
}

// rowMax returns the per-row maximum of a [batch, n] tensor as [batch, 1],
// computed with recording suspended so the shift stays a constant.
func rowMax[B tensor.Backend](logits *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if holder, ok := any(logits.Backend()).(tapeHolder); ok {
		tape := holder.GetTape()
		if tape.IsRecording() {
			tape.StopRecording()
			defer tape.StartRecording()
		}
	}
	batch := logits.Shape()[0]
	idx := logits.Argmax(-1).Reshape(batch, 1)
	return logits.Gather(-1, idx)
}
