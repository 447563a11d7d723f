package tokenizer

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
)

// TreebankTokenizer is a Penn Treebank style word tokenizer: it splits
// off punctuation, separates contractions (don't -> do n't) and
// converts straight quotes to the `` / '' convention. The lookbehind
// patterns need regexp2; the standard library RE2 engine cannot
// express them.
type TreebankTokenizer struct {
	rules []rewriteRule
}

type rewriteRule struct {
	pattern *regexp2.Regexp
	replace string
}

func rule(pattern, replace string) rewriteRule {
	return rewriteRule{
		pattern: regexp2.MustCompile(pattern, regexp2.None),
		replace: replace,
	}
}

// NewTreebank creates a tokenizer with the standard rule set.
func NewTreebank() *TreebankTokenizer {
	return &TreebankTokenizer{
		rules: []rewriteRule{
			// Opening quotes become ``.
			rule(`^"`, "`` "),
			rule(`(?<=[ (\[{<])"`, "`` "),

			// Punctuation that always stands alone.
			rule(`\.\.\.`, " ... "),
			rule(`([;@#$%&])`, " $1 "),
			rule(`([:,])(?=\s|$)`, " $1 "),
			rule(`([:,])(?=\D)`, " $1 "),

			// Sentence-final period, keeping trailing brackets/quotes
			// attached to nothing.
			rule(`([^\.])(\.)([\]\)}>"']*)\s*$`, "$1 $2$3 "),
			rule(`([?!])`, " $1 "),
			rule(`([\]\[\(\)\{\}<>])`, " $1 "),
			rule(`--`, " -- "),

			// Closing quotes become ''.
			rule(`"`, " '' "),
			rule(`(\S)('')`, "$1 $2 "),

			// Contractions split before the clitic.
			rule(`(?i)([^' ])('ll|'re|'ve|n't)`, "$1 $2"),
			rule(`(?i)([^' ])('s|'m|'d)(?=\s|$)`, "$1 $2"),
			rule(`(?i)\b(can)(not)\b`, "$1 $2"),
			rule(`(?i)\b(gon)(na)\b`, "$1 $2"),
			rule(`(?i)\b(wan)(na)\b`, "$1 $2"),
		},
	}
}

// Tokenize applies the rewrite rules and splits on whitespace.
func (t *TreebankTokenizer) Tokenize(text string) ([]string, error) {
	for _, r := range t.rules {
		rewritten, err := r.pattern.Replace(text, r.replace, -1, -1)
		if err != nil {
			return nil, fmt.Errorf("tokenize: %w", err)
		}
		text = rewritten
	}
	return strings.Fields(text), nil
}

// Lower returns the lowercased copies of tokens, the form the GloVe
// vocabulary is keyed by.
func Lower(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, token := range tokens {
		out[i] = strings.ToLower(token)
	}
	return out
}
