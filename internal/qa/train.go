package qa

import (
	"fmt"
	"time"

	"github.com/ghego/cs224n-win18-squad/internal/autodiff"
	"github.com/ghego/cs224n-win18-squad/internal/checkpoint"
	"github.com/ghego/cs224n-win18-squad/internal/optim"
	"github.com/ghego/cs224n-win18-squad/internal/serialization"
	"github.com/ghego/cs224n-win18-squad/internal/squad"
)

// lossSmoothing is the exponential smoothing factor for the running
// training loss.
const lossSmoothing = 0.99

// trainSampleSize bounds the train-set F1/EM sample during periodic
// evaluation; scoring the whole training set would dwarf the epoch.
const trainSampleSize = 1000

// Train runs the training loop over a token-file dataset: forward and
// backward per batch, global-norm clipping, Adam step, periodic logging,
// checkpointing, and dev evaluation with best-F1 checkpoints kept by
// bestMgr. numEpochs 0 trains until interrupted.
//
// globalStep and startEpoch come from checkpoint restoration, zero for a
// fresh run.
func (m *Model[B]) Train(
	train, dev *squad.Dataset,
	mgr, bestMgr *checkpoint.Manager,
	globalStep, startEpoch int,
) error {
	smoothedLoss := 0.0
	haveSmoothed := false
	bestDevF1 := -1.0

	epoch := startEpoch
	for m.cfg.NumEpochs == 0 || epoch < m.cfg.NumEpochs {
		epoch++
		epochStart := time.Now()
		m.logger.Infof("Beginning epoch %d", epoch)

		for _, batch := range train.Batches(m.rng) {
			globalStep++
			batchStart := time.Now()
			loss, gradNorm, paramNorm := m.trainStep(batch)
			batchSeconds := time.Since(batchStart).Seconds()

			if haveSmoothed {
				smoothedLoss = lossSmoothing*smoothedLoss + (1-lossSmoothing)*float64(loss)
			} else {
				smoothedLoss = float64(loss)
				haveSmoothed = true
			}

			if m.cfg.PrintEvery > 0 && globalStep%m.cfg.PrintEvery == 0 {
				m.logger.Infof(
					"epoch %d, iter %d, loss %.5f, smoothed loss %.5f, grad norm %.5f, param norm %.5f, batch time %.3f",
					epoch, globalStep, loss, smoothedLoss, gradNorm, paramNorm, batchSeconds)
			}

			if m.cfg.SaveEvery > 0 && globalStep%m.cfg.SaveEvery == 0 {
				meta := &serialization.CheckpointMeta{
					GlobalStep:    globalStep,
					Epoch:         epoch,
					Loss:          float64(loss),
					OptimizerType: "adam",
				}
				if _, err := mgr.Save(checkpoint.CombineState[B](m, m.opt), meta); err != nil {
					return fmt.Errorf("save checkpoint at step %d: %w", globalStep, err)
				}
			}

			if m.cfg.EvalEvery > 0 && globalStep%m.cfg.EvalEvery == 0 {
				if err := m.evaluate(train, dev, bestMgr, globalStep, epoch, &bestDevF1); err != nil {
					return err
				}
			}
		}

		m.logger.Infof("Epoch %d took %.2f seconds", epoch, time.Since(epochStart).Seconds())
	}
	return nil
}

// trainStep records one forward pass on the tape, backpropagates, clips
// and applies the gradients, and clears the tape.
func (m *Model[B]) trainStep(batch *squad.Batch) (loss, gradNorm, paramNorm float32) {
	m.setTraining(true)
	defer m.setTraining(false)

	tape := m.backend.GetTape()
	tape.Clear()
	tape.StartRecording()
	scores := m.forward(batch)
	lossT := m.batchLoss(batch, scores)
	tape.StopRecording()

	grads := autodiff.Backward(lossT, m.backend)
	gradNorm = optim.ClipByGlobalNorm(grads, float32(m.cfg.MaxGradientNorm))
	m.opt.Step(grads)
	tape.Clear()

	return lossT.Item(), gradNorm, optim.ParamNorm(m.rawParams())
}

// evaluate logs dev loss and sampled F1/EM, and checkpoints on a new
// best dev F1.
func (m *Model[B]) evaluate(
	train, dev *squad.Dataset,
	bestMgr *checkpoint.Manager,
	globalStep, epoch int,
	bestDevF1 *float64,
) error {
	devLoss := m.evalLoss(dev)
	m.logger.Infof("epoch %d, iter %d, dev loss: %f", epoch, globalStep, devLoss)

	trainF1, trainEM := m.CheckF1EM(train, trainSampleSize, false)
	m.logger.Infof("epoch %d, iter %d, train F1 score: %f, train EM score: %f",
		epoch, globalStep, trainF1, trainEM)

	devF1, devEM := m.CheckF1EM(dev, 0, false)
	m.logger.Infof("epoch %d, iter %d, dev F1 score: %f, dev EM score: %f",
		epoch, globalStep, devF1, devEM)

	if devF1 > *bestDevF1 {
		*bestDevF1 = devF1
		m.logger.Infof("New best dev F1: %f. Saving best checkpoint.", devF1)
		meta := &serialization.CheckpointMeta{
			GlobalStep:    globalStep,
			Epoch:         epoch,
			Loss:          devLoss,
			DevF1:         devF1,
			DevEM:         devEM,
			OptimizerType: "adam",
		}
		if _, err := bestMgr.Save(checkpoint.CombineState[B](m, m.opt), meta); err != nil {
			return fmt.Errorf("save best checkpoint: %w", err)
		}
	}
	return nil
}

// evalLoss averages the span loss over a dataset without recording.
func (m *Model[B]) evalLoss(ds *squad.Dataset) float64 {
	m.evalMode()
	total := 0.0
	count := 0
	for _, batch := range ds.Batches(nil) {
		scores := m.forward(batch)
		total += float64(m.batchLoss(batch, scores).Item()) * float64(batch.Size)
		count += batch.Size
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

// evalMode disables dropout and keeps evaluation forwards off the tape.
func (m *Model[B]) evalMode() {
	m.setTraining(false)
	tape := m.backend.GetTape()
	if tape.IsRecording() {
		tape.StopRecording()
	}
	tape.Clear()
}
