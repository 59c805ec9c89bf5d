package chunk

import "strings"

const (
	// below this many remaining tokens a truncated fragment carries no
	// useful signal, so we stop instead
	minTruncateTokens = 50
	truncationMarker  = "..."
)

// FitBudget selects a prefix of texts whose combined token estimate stays
// within budget, preserving input order. When the next text overflows but
// enough budget remains, it is truncated and suffixed with a marker; the
// scan stops either way. A non-positive budget yields an empty slice.
func FitBudget(texts []string, budget int) []string {
	if budget <= 0 {
		return []string{}
	}
	fitted := make([]string, 0, len(texts))
	used := 0
	for _, text := range texts {
		est := EstimateTokens(text)
		if used+est <= budget {
			fitted = append(fitted, text)
			used += est
			continue
		}
		remaining := budget - used
		if remaining > minTruncateTokens {
			// cut on word boundaries so the fragment's own estimate
			// stays within what is left
			words := strings.Fields(text)
			maxWords := int(float64(remaining) / tokensPerWord)
			if maxWords < len(words) {
				text = strings.Join(words[:maxWords], " ") + truncationMarker
			}
			fitted = append(fitted, text)
		}
		break
	}
	return fitted
}
