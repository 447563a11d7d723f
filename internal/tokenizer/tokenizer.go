// Package tokenizer splits raw English text into word tokens for the
// official-eval preprocessing path. The training pipeline reads
// pre-tokenized files and never goes through this package.
package tokenizer

// Tokenizer is the core interface for text tokenization.
type Tokenizer interface {
	// Tokenize splits text into word tokens, preserving their original
	// casing. Callers lowercase separately for vocabulary lookup.
	Tokenize(text string) ([]string, error)
}
