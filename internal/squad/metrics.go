package squad

import (
	"strings"
)

// asciiPunct is the exact character set the v1.1 evaluation script
// strips (Python's string.punctuation). Non-ASCII punctuation is kept.
const asciiPunct = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// NormalizeAnswer applies the official SQuAD v1.1 normalization:
// lowercase, strip punctuation, drop articles, squeeze whitespace.
func NormalizeAnswer(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	for _, r := range s {
		if !strings.ContainsRune(asciiPunct, r) {
			b.WriteRune(r)
		}
	}
	var kept []string
	for _, word := range strings.Fields(b.String()) {
		if word == "a" || word == "an" || word == "the" {
			continue
		}
		kept = append(kept, word)
	}
	return strings.Join(kept, " ")
}

// F1Score is the token-level F1 between a prediction and one ground
// truth, both normalized first.
func F1Score(prediction, groundTruth string) float64 {
	predTokens := strings.Fields(NormalizeAnswer(prediction))
	truthTokens := strings.Fields(NormalizeAnswer(groundTruth))
	if len(predTokens) == 0 || len(truthTokens) == 0 {
		if len(predTokens) == 0 && len(truthTokens) == 0 {
			return 1
		}
		return 0
	}

	counts := make(map[string]int, len(truthTokens))
	for _, tok := range truthTokens {
		counts[tok]++
	}
	common := 0
	for _, tok := range predTokens {
		if counts[tok] > 0 {
			counts[tok]--
			common++
		}
	}
	if common == 0 {
		return 0
	}
	precision := float64(common) / float64(len(predTokens))
	recall := float64(common) / float64(len(truthTokens))
	return 2 * precision * recall / (precision + recall)
}

// ExactMatch reports whether the normalized prediction equals the
// normalized ground truth.
func ExactMatch(prediction, groundTruth string) float64 {
	if NormalizeAnswer(prediction) == NormalizeAnswer(groundTruth) {
		return 1
	}
	return 0
}

// MaxOverGroundTruths scores a prediction against every reference and
// keeps the best, the official multi-reference policy.
func MaxOverGroundTruths(
	metric func(prediction, groundTruth string) float64,
	prediction string,
	groundTruths []string,
) float64 {
	best := 0.0
	for _, truth := range groundTruths {
		if score := metric(prediction, truth); score > best {
			best = score
		}
	}
	return best
}
