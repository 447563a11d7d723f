package squad_test

import (
	"encoding/json"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghego/cs224n-win18-squad/internal/squad"
	"github.com/ghego/cs224n-win18-squad/internal/tokenizer"
	"github.com/ghego/cs224n-win18-squad/internal/vocab"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

const rawSample = `{
  "version": "1.1",
  "data": [
    {
      "title": "Normans",
      "paragraphs": [
        {
          "context": "The Normans were the people who gave their name to Normandy.",
          "qas": [
            {
              "question": "Who gave their name to Normandy?",
              "id": "56ddde6b9a695914005b9628",
              "answers": [
                {"text": "The Normans", "answer_start": 0},
                {"text": "Normans", "answer_start": 4}
              ]
            }
          ]
        }
      ]
    }
  ]
}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testVocab(t *testing.T) *vocab.Vocab {
	t.Helper()
	dir := t.TempDir()
	glove := "the 0.1 0.2\nnormans 0.3 0.4\nwho 0.5 0.6\nname 0.7 0.8\n"
	path := writeFile(t, dir, "glove.txt", glove)
	v, err := vocab.LoadGloVe(path, 2, quietLogger())
	require.NoError(t, err)
	return v
}

func TestReadRawJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "dev.json", rawSample)

	raw, err := squad.ReadRawJSON(path, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, "1.1", raw.Version)
	require.Len(t, raw.Data, 1)
	require.Len(t, raw.Data[0].Paragraphs, 1)

	qa := raw.Data[0].Paragraphs[0].Qas[0]
	assert.Equal(t, "56ddde6b9a695914005b9628", qa.ID)
	assert.Equal(t, "The Normans", qa.Answers[0].Text)
	assert.Equal(t, 4, qa.Answers[1].AnswerStart)
}

func TestPreprocessRawKeepsCasing(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "dev.json", rawSample)
	raw, err := squad.ReadRawJSON(path, quietLogger())
	require.NoError(t, err)

	records, err := squad.PreprocessRaw(raw, tokenizer.NewTreebank(), quietLogger())
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "56ddde6b9a695914005b9628", rec.UUID)
	assert.Equal(t, "The", rec.ContextTokens[0])
	assert.Equal(t, "Normans", rec.ContextTokens[1])
	assert.Equal(t, "?", rec.QuestionTokens[len(rec.QuestionTokens)-1])
}

func TestWriteAnswers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "predictions.json")

	answers := map[string]string{"uuid-1": "the normans", "uuid-2": "1066 <AD>"}
	require.NoError(t, squad.WriteAnswers(answers, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, answers, got)
	// HTML escaping must stay off for the official eval script.
	assert.Contains(t, string(data), "<AD>")
}

func TestLoadDatasetDiscardsLongExamples(t *testing.T) {
	dir := t.TempDir()
	contextPath := writeFile(t, dir, "train.context",
		"the normans who name\n"+
			"the normans who name the normans who name\n"+ // longer than context_len
			"the normans\n")
	questionPath := writeFile(t, dir, "train.question",
		"who name\n"+
			"who\n"+
			"who name the normans\n") // longer than question_len
	spanPath := writeFile(t, dir, "train.span",
		"1 2\n"+
			"0 0\n"+
			"0 1\n")

	ds, err := squad.LoadDataset(contextPath, questionPath, spanPath,
		testVocab(t), 6, 3, 2, quietLogger())
	require.NoError(t, err)
	require.Equal(t, 1, ds.Size())

	ex := ds.Examples[0]
	assert.Equal(t, []string{"normans", "who"}, ex.AnswerTokens())
	assert.Equal(t, 1, ex.AnswerStart)
	assert.Equal(t, 2, ex.AnswerEnd)
}

func TestLoadDatasetDiscardsSpanBeyondContext(t *testing.T) {
	dir := t.TempDir()
	contextPath := writeFile(t, dir, "train.context", "the normans\n")
	questionPath := writeFile(t, dir, "train.question", "who\n")
	spanPath := writeFile(t, dir, "train.span", "1 5\n")

	ds, err := squad.LoadDataset(contextPath, questionPath, spanPath,
		testVocab(t), 6, 3, 2, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, 0, ds.Size())
}

func TestLoadDatasetMisalignedFilesFail(t *testing.T) {
	dir := t.TempDir()
	contextPath := writeFile(t, dir, "train.context", "the normans\nthe name\n")
	questionPath := writeFile(t, dir, "train.question", "who\n")
	spanPath := writeFile(t, dir, "train.span", "0 1\n")

	_, err := squad.LoadDataset(contextPath, questionPath, spanPath,
		testVocab(t), 6, 3, 2, quietLogger())
	assert.Error(t, err)
}

func TestBatchPaddingAndMasks(t *testing.T) {
	dir := t.TempDir()
	contextPath := writeFile(t, dir, "train.context", "the normans who\nname the\n")
	questionPath := writeFile(t, dir, "train.question", "who\nname name\n")
	spanPath := writeFile(t, dir, "train.span", "1 1\n0 0\n")

	ds, err := squad.LoadDataset(contextPath, questionPath, spanPath,
		testVocab(t), 4, 2, 2, quietLogger())
	require.NoError(t, err)

	batches := ds.Batches(nil)
	require.Len(t, batches, 1)
	b := batches[0]
	assert.Equal(t, 2, b.Size)

	// First row: 3 real context tokens, 1 padded.
	assert.Equal(t, []float32{1, 1, 1, 0}, b.ContextMask[0:4])
	assert.Equal(t, int32(vocab.PadID), b.ContextIDs[3])
	// Second row: 2 real tokens.
	assert.Equal(t, []float32{1, 1, 0, 0}, b.ContextMask[4:8])

	assert.Equal(t, []float32{1, 0}, b.QuestionMask[0:2])
	assert.Equal(t, []int32{1, 0}, b.Starts)
	assert.Equal(t, []int32{1, 0}, b.Ends)
}

func TestBatchesShuffleAndFinalShortBatch(t *testing.T) {
	dir := t.TempDir()
	var contexts, questions, spans string
	for i := 0; i < 5; i++ {
		contexts += "the normans\n"
		questions += "who\n"
		spans += "0 1\n"
	}
	contextPath := writeFile(t, dir, "train.context", contexts)
	questionPath := writeFile(t, dir, "train.question", questions)
	spanPath := writeFile(t, dir, "train.span", spans)

	ds, err := squad.LoadDataset(contextPath, questionPath, spanPath,
		testVocab(t), 4, 2, 2, quietLogger())
	require.NoError(t, err)

	batches := ds.Batches(rand.New(rand.NewSource(42)))
	require.Len(t, batches, 3)
	assert.Equal(t, 2, batches[0].Size)
	assert.Equal(t, 2, batches[1].Size)
	assert.Equal(t, 1, batches[2].Size)
}

func TestEvalBatchesTruncateAndCoverAllUUIDs(t *testing.T) {
	records := []*squad.EvalRecord{
		{
			UUID:           "uuid-long",
			ContextTokens:  []string{"The", "Normans", "who", "name", "the", "Normans"},
			QuestionTokens: []string{"Who", "name", "the", "Normans"},
		},
		{
			UUID:           "uuid-short",
			ContextTokens:  []string{"The", "Normans"},
			QuestionTokens: []string{"Who"},
		},
		{
			UUID:           "uuid-last",
			ContextTokens:  []string{"name"},
			QuestionTokens: []string{"who"},
		},
	}

	batches := squad.EvalBatches(records, testVocab(t), 2, 4, 2)
	require.Len(t, batches, 2)

	var uuids []string
	for _, b := range batches {
		for _, ex := range b.Examples {
			uuids = append(uuids, ex.UUID)
		}
	}
	assert.ElementsMatch(t, []string{"uuid-long", "uuid-short", "uuid-last"}, uuids)

	// The long context is truncated to the cap, original casing kept.
	long := batches[0].Examples[0]
	assert.Len(t, long.ContextTokens, 4)
	assert.Equal(t, "The", long.ContextTokens[0])
	// Lowercased lookup reaches the vocabulary entries.
	v := testVocab(t)
	assert.Equal(t, v.ID("the"), long.ContextIDs[0])
	assert.Equal(t, v.ID("normans"), long.ContextIDs[1])
}

func TestNormalizeAnswer(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"The Normans", "normans"},
		{"an apple!", "apple"},
		{"  spaced   out  ", "spaced out"},
		{"A.D. 1066", "ad 1066"},
		// ASCII symbols like $ are stripped; non-ASCII punctuation
		// survives, matching the v1.1 evaluation script exactly.
		{"$400", "400"},
		{"£400", "£400"},
		{"40~50%", "4050"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, squad.NormalizeAnswer(tt.in), "input %q", tt.in)
	}
}

func TestF1Score(t *testing.T) {
	assert.Equal(t, 1.0, squad.F1Score("the Normans", "Normans"))
	assert.Equal(t, 0.0, squad.F1Score("vikings", "normans"))

	// prediction {norman, conquest}, truth {norman}: p=0.5, r=1.
	got := squad.F1Score("norman conquest", "norman")
	assert.InDelta(t, 2.0/3.0, got, 1e-12)
}

func TestExactMatch(t *testing.T) {
	assert.Equal(t, 1.0, squad.ExactMatch("The Normans!", "normans"))
	assert.Equal(t, 0.0, squad.ExactMatch("norman conquest", "normans"))
}

func TestMaxOverGroundTruths(t *testing.T) {
	truths := []string{"the normans", "norse vikings"}
	assert.Equal(t, 1.0, squad.MaxOverGroundTruths(squad.ExactMatch, "Normans", truths))
	assert.Equal(t, 0.0, squad.MaxOverGroundTruths(squad.ExactMatch, "franks", truths))

	f1 := squad.MaxOverGroundTruths(squad.F1Score, "norse", truths)
	assert.InDelta(t, 2.0/3.0, f1, 1e-12)
}
