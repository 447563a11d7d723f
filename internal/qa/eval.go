package qa

import (
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/ghego/cs224n-win18-squad/internal/squad"
)

// GetStartEndPos predicts the answer span for every example of a batch,
// taking the argmax of the start and end distributions independently.
func (m *Model[B]) GetStartEndPos(batch *squad.Batch) (starts, ends []int32) {
	m.evalMode()
	scores := m.forward(batch)
	return scores.startProbs.Argmax(-1).Data(), scores.endProbs.Argmax(-1).Data()
}

// CheckF1EM scores predicted spans against the gold spans of a token-file
// dataset. numSamples 0 scores the whole set. printToScreen renders each
// example with the gold answer highlighted in the context.
func (m *Model[B]) CheckF1EM(ds *squad.Dataset, numSamples int, printToScreen bool) (f1, em float64) {
	start := time.Now()
	totalF1, totalEM := 0.0, 0.0
	scored := 0

batches:
	for _, batch := range ds.Batches(nil) {
		predStarts, predEnds := m.GetStartEndPos(batch)
		for i, ex := range batch.Examples {
			prediction := joinSpan(ex.ContextTokens, predStarts[i], predEnds[i])
			truth := strings.Join(ex.AnswerTokens(), " ")

			exF1 := squad.F1Score(prediction, truth)
			exEM := squad.ExactMatch(prediction, truth)
			totalF1 += exF1
			totalEM += exEM
			scored++

			if printToScreen {
				printExample(ex, int(predStarts[i]), int(predEnds[i]), prediction, exF1, exEM)
			}
			if numSamples > 0 && scored >= numSamples {
				break batches
			}
		}
	}

	if scored == 0 {
		return 0, 0
	}
	f1 = totalF1 / float64(scored)
	em = totalEM / float64(scored)
	m.logger.Infof("Calculating F1/EM for %d examples took %.2f seconds", scored, time.Since(start).Seconds())
	return f1, em
}

// GenerateAnswers runs batched inference over preprocessed eval records
// and returns a uuid to answer mapping covering every input record.
// Answers are rebuilt from the original-cased context tokens.
func (m *Model[B]) GenerateAnswers(records []*squad.EvalRecord) map[string]string {
	batches := squad.EvalBatches(records, m.vocab,
		m.cfg.BatchSize, m.cfg.ContextLen, m.cfg.QuestionLen)

	answers := make(map[string]string, len(records))
	for i, batch := range batches {
		starts, ends := m.GetStartEndPos(batch)
		for j, ex := range batch.Examples {
			answers[ex.UUID] = joinSpan(ex.ContextTokens, starts[j], ends[j])
		}
		if (i+1)%10 == 0 {
			m.logger.Infof("Generated answers for %d/%d batches", i+1, len(batches))
		}
	}
	return answers
}

// joinSpan joins the context tokens of a predicted span. An inverted
// span (end before start, possible since the argmaxes are independent)
// yields the empty answer.
func joinSpan(tokens []string, start, end int32) string {
	if start > end || int(start) >= len(tokens) {
		return ""
	}
	if int(end) >= len(tokens) {
		end = int32(len(tokens) - 1)
	}
	return strings.Join(tokens[start:end+1], " ")
}

var (
	questionColor = color.New(color.FgCyan)
	answerColor   = color.New(color.FgMagenta, color.Bold)
)

// printExample renders one scored example, highlighting the gold span
// inside the context.
func printExample(ex *squad.Example, predStart, predEnd int, prediction string, f1, em float64) {
	questionColor.Printf("QUESTION: %s\n", strings.Join(ex.QuestionTokens, " "))

	var b strings.Builder
	for i, token := range ex.ContextTokens {
		if i > 0 {
			b.WriteByte(' ')
		}
		if i >= ex.AnswerStart && i <= ex.AnswerEnd {
			b.WriteString(answerColor.Sprint(token))
		} else {
			b.WriteString(token)
		}
	}
	color.New(color.Faint).Printf("CONTEXT: %s\n", b.String())

	answerColor.Printf("TRUE ANSWER: %s\n", strings.Join(ex.AnswerTokens(), " "))
	color.New(color.FgGreen).Printf("PREDICTED ANSWER (%d, %d): %s\n", predStart, predEnd, prediction)
	color.New(color.FgYellow).Printf("F1: %.3f, EM: %.0f\n\n", f1, em)
}
