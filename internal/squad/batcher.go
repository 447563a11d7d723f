package squad

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ghego/cs224n-win18-squad/internal/tokenizer"
	"github.com/ghego/cs224n-win18-squad/internal/vocab"
)

// Example is one question-context pair, tokenized and mapped to
// vocabulary ids. Training examples carry the gold span; eval records
// carry the uuid instead.
type Example struct {
	ContextTokens  []string
	QuestionTokens []string
	ContextIDs     []int32
	QuestionIDs    []int32
	AnswerStart    int
	AnswerEnd      int
	UUID           string
}

// AnswerTokens returns the gold answer as context tokens.
func (e *Example) AnswerTokens() []string {
	return e.ContextTokens[e.AnswerStart : e.AnswerEnd+1]
}

// Batch is a fixed-shape padded batch. The id and mask slices are
// row-major [Size, contextLen] and [Size, questionLen]; Starts and Ends
// are per-example gold positions, present only for training data.
type Batch struct {
	Size         int
	ContextLen   int
	QuestionLen  int
	ContextIDs   []int32
	ContextMask  []float32
	QuestionIDs  []int32
	QuestionMask []float32
	Starts       []int32
	Ends         []int32
	Examples     []*Example
}

// Dataset is an in-memory token-file dataset that deals out shuffled
// padded batches.
type Dataset struct {
	Examples    []*Example
	contextLen  int
	questionLen int
	batchSize   int
}

// LoadDataset reads line-aligned .context/.question/.span files into a
// dataset. Examples whose context or question exceeds the fixed lengths,
// or whose span does not fit the context, are discarded.
func LoadDataset(
	contextPath, questionPath, spanPath string,
	v *vocab.Vocab,
	contextLen, questionLen, batchSize int,
	logger *logrus.Logger,
) (*Dataset, error) {
	contexts, err := readLines(contextPath)
	if err != nil {
		return nil, err
	}
	questions, err := readLines(questionPath)
	if err != nil {
		return nil, err
	}
	spans, err := readLines(spanPath)
	if err != nil {
		return nil, err
	}
	if len(contexts) != len(questions) || len(contexts) != len(spans) {
		return nil, fmt.Errorf("misaligned data files: %d contexts, %d questions, %d spans",
			len(contexts), len(questions), len(spans))
	}

	ds := &Dataset{
		contextLen:  contextLen,
		questionLen: questionLen,
		batchSize:   batchSize,
	}
	discarded := 0
	for i := range contexts {
		contextTokens := strings.Fields(contexts[i])
		questionTokens := strings.Fields(questions[i])
		start, end, err := parseSpan(spans[i])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", spanPath, i+1, err)
		}
		if len(contextTokens) > contextLen || len(questionTokens) > questionLen ||
			end >= len(contextTokens) || start > end {
			discarded++
			continue
		}
		ds.Examples = append(ds.Examples, &Example{
			ContextTokens:  contextTokens,
			QuestionTokens: questionTokens,
			ContextIDs:     v.IDs(contextTokens),
			QuestionIDs:    v.IDs(questionTokens),
			AnswerStart:    start,
			AnswerEnd:      end,
		})
	}
	logger.Infof("Loaded %d examples from %s (%d discarded as too long)",
		len(ds.Examples), contextPath, discarded)
	return ds, nil
}

// Size returns the number of usable examples.
func (d *Dataset) Size() int { return len(d.Examples) }

// Batches deals the dataset out as padded batches, reshuffled with rng.
// The final batch may be short. A nil rng keeps file order, for
// deterministic evaluation.
func (d *Dataset) Batches(rng *rand.Rand) []*Batch {
	order := make([]*Example, len(d.Examples))
	copy(order, d.Examples)
	if rng != nil {
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}

	var batches []*Batch
	for start := 0; start < len(order); start += d.batchSize {
		end := start + d.batchSize
		if end > len(order) {
			end = len(order)
		}
		batches = append(batches, PadBatch(order[start:end], d.contextLen, d.questionLen))
	}
	return batches
}

// PadBatch packs examples into a fixed-shape batch, padding ids with the
// pad token and masking the padding out.
func PadBatch(examples []*Example, contextLen, questionLen int) *Batch {
	size := len(examples)
	b := &Batch{
		Size:         size,
		ContextLen:   contextLen,
		QuestionLen:  questionLen,
		ContextIDs:   make([]int32, size*contextLen),
		ContextMask:  make([]float32, size*contextLen),
		QuestionIDs:  make([]int32, size*questionLen),
		QuestionMask: make([]float32, size*questionLen),
		Starts:       make([]int32, size),
		Ends:         make([]int32, size),
		Examples:     examples,
	}
	for i, ex := range examples {
		copy(b.ContextIDs[i*contextLen:], ex.ContextIDs)
		for j := range ex.ContextIDs {
			b.ContextMask[i*contextLen+j] = 1
		}
		copy(b.QuestionIDs[i*questionLen:], ex.QuestionIDs)
		for j := range ex.QuestionIDs {
			b.QuestionMask[i*questionLen+j] = 1
		}
		b.Starts[i] = int32(ex.AnswerStart)
		b.Ends[i] = int32(ex.AnswerEnd)
	}
	return b
}

// EvalBatches packs preprocessed eval records into padded batches.
// Contexts and questions are truncated to the fixed lengths rather than
// discarded, so every uuid gets an answer.
func EvalBatches(
	records []*EvalRecord,
	v *vocab.Vocab,
	batchSize, contextLen, questionLen int,
) []*Batch {
	examples := make([]*Example, len(records))
	for i, rec := range records {
		contextTokens := truncate(rec.ContextTokens, contextLen)
		questionTokens := truncate(rec.QuestionTokens, questionLen)
		examples[i] = &Example{
			ContextTokens:  contextTokens,
			QuestionTokens: questionTokens,
			ContextIDs:     v.IDs(tokenizer.Lower(contextTokens)),
			QuestionIDs:    v.IDs(tokenizer.Lower(questionTokens)),
			UUID:           rec.UUID,
		}
	}

	var batches []*Batch
	for start := 0; start < len(examples); start += batchSize {
		end := start + batchSize
		if end > len(examples) {
			end = len(examples)
		}
		batches = append(batches, PadBatch(examples[start:end], contextLen, questionLen))
	}
	return batches
}

func truncate(tokens []string, max int) []string {
	if len(tokens) > max {
		return tokens[:max]
	}
	return tokens
}

func parseSpan(line string) (start, end int, err error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("bad span %q", line)
	}
	start, err = strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("bad span %q: %w", line, err)
	}
	end, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, fmt.Errorf("bad span %q: %w", line, err)
	}
	return start, end, nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}
