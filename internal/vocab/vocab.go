// Package vocab loads pretrained GloVe word vectors and provides the
// word/id mapping the data pipeline uses.
//
// IDs 0 and 1 are reserved for the padding and unknown tokens; GloVe
// words start at 2. The two special rows are zero vectors.
package vocab

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Special tokens prepended to every vocabulary.
const (
	PadToken = "<pad>"
	UnkToken = "<unk>"

	PadID int32 = 0
	UnkID int32 = 1
)

// Vocab maps words to ids and carries the embedding matrix rows in id
// order.
type Vocab struct {
	wordToID map[string]int32
	idToWord []string

	// Embeddings is the [len(idToWord), dim] matrix flattened row-major.
	Embeddings []float32
	Dim        int
}

// Size returns the number of entries, special tokens included.
func (v *Vocab) Size() int { return len(v.idToWord) }

// ID returns the id for a word, or the UNK id for unseen words. Lookup
// is case-sensitive; callers lowercase beforehand, matching how the
// GloVe vocabulary is cased.
func (v *Vocab) ID(word string) int32 {
	if id, ok := v.wordToID[word]; ok {
		return id
	}
	return UnkID
}

// Word returns the token for an id.
func (v *Vocab) Word(id int32) string {
	if id < 0 || int(id) >= len(v.idToWord) {
		return UnkToken
	}
	return v.idToWord[id]
}

// LoadGloVe streams a GloVe text file (one "word v1 v2 ... vd" per line)
// into a vocabulary. dim must match the file's vector width; any line
// with a different width is a fail-fast error.
func LoadGloVe(path string, dim int, logger *logrus.Logger) (*Vocab, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open GloVe file: %w", err)
	}
	defer file.Close()

	logger.Infof("Loading GLoVE vectors from file: %s", path)

	v := &Vocab{
		wordToID:   map[string]int32{PadToken: PadID, UnkToken: UnkID},
		idToWord:   []string{PadToken, UnkToken},
		Embeddings: make([]float32, 2*dim), // zero rows for the specials
		Dim:        dim,
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != dim+1 {
			return nil, fmt.Errorf("glove %s line %d: expected %d values for %q, got %d",
				path, line, dim, fields[0], len(fields)-1)
		}

		word := fields[0]
		id := int32(len(v.idToWord))
		v.wordToID[word] = id
		v.idToWord = append(v.idToWord, word)

		for _, field := range fields[1:] {
			value, err := strconv.ParseFloat(field, 32)
			if err != nil {
				return nil, fmt.Errorf("glove %s line %d: bad float %q: %w", path, line, field, err)
			}
			v.Embeddings = append(v.Embeddings, float32(value))
		}

		if line%1_000_000 == 0 {
			logger.Infof("Read %d GloVe vectors", line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read GloVe file: %w", err)
	}

	logger.Infof("Loaded embedding matrix: %d words, dimension %d", v.Size(), dim)
	return v, nil
}

// IDs maps a token slice to ids, sending unknown words to UNK.
func (v *Vocab) IDs(tokens []string) []int32 {
	ids := make([]int32, len(tokens))
	for i, token := range tokens {
		ids[i] = v.ID(token)
	}
	return ids
}
