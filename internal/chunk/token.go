package chunk

import "strings"

// tokensPerWord approximates subword tokenization for mixed
// Vietnamese/English text. Good enough for budget math; never used
// for billing.
const tokensPerWord = 1.3

// EstimateTokens returns an approximate token count for text. Zero only
// for empty or whitespace-only input, never negative.
func EstimateTokens(text string) int {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}
	est := int(float64(len(words)) * tokensPerWord)
	if est < 1 {
		est = 1
	}
	return est
}
