// Package squad handles the SQuAD v1.1 data pipeline: the raw JSON
// schema, preprocessed token-file datasets with padded batching, and the
// official evaluation metrics.
package squad

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/ghego/cs224n-win18-squad/internal/tokenizer"
)

// RawJSON mirrors the official SQuAD dataset layout.
type RawJSON struct {
	Version string    `json:"version"`
	Data    []Article `json:"data"`
}

// Article groups the paragraphs of one Wikipedia article.
type Article struct {
	Title      string      `json:"title"`
	Paragraphs []Paragraph `json:"paragraphs"`
}

// Paragraph is a context passage with its questions.
type Paragraph struct {
	Context string `json:"context"`
	Qas     []QA   `json:"qas"`
}

// QA is a single question with its reference answers.
type QA struct {
	Question string   `json:"question"`
	ID       string   `json:"id"`
	Answers  []Answer `json:"answers"`
}

// Answer is one reference answer span.
type Answer struct {
	Text        string `json:"text"`
	AnswerStart int    `json:"answer_start"`
}

// ReadRawJSON parses a SQuAD-format dataset file.
func ReadRawJSON(path string, logger *logrus.Logger) (*RawJSON, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var raw RawJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	logger.Infof("Loaded data with version %s", raw.Version)
	return &raw, nil
}

// EvalRecord is one preprocessed question for official evaluation.
// Context tokens keep their original casing so the predicted answer can
// be reconstructed verbatim; lowercased copies feed the vocabulary.
type EvalRecord struct {
	UUID           string
	ContextTokens  []string
	QuestionTokens []string
}

// PreprocessRaw tokenizes every question of a raw dataset into eval
// records, in document order. Examples whose context or question fails
// to tokenize are dropped and counted.
func PreprocessRaw(raw *RawJSON, tok tokenizer.Tokenizer, logger *logrus.Logger) ([]*EvalRecord, error) {
	var records []*EvalRecord
	discarded := 0
	for _, article := range raw.Data {
		for _, paragraph := range article.Paragraphs {
			contextTokens, err := tok.Tokenize(paragraph.Context)
			if err != nil {
				discarded += len(paragraph.Qas)
				continue
			}
			for _, qa := range paragraph.Qas {
				questionTokens, err := tok.Tokenize(qa.Question)
				if err != nil {
					discarded++
					continue
				}
				records = append(records, &EvalRecord{
					UUID:           qa.ID,
					ContextTokens:  contextTokens,
					QuestionTokens: questionTokens,
				})
			}
		}
	}
	logger.Infof("Preprocessed %d examples (%d discarded)", len(records), discarded)
	return records, nil
}

// WriteAnswers writes a uuid to answer mapping as JSON, leaving UTF-8
// text unescaped the way the official evaluation script expects.
func WriteAnswers(answers map[string]string, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(answers); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
