package budget

import (
	"math"
	"strings"
)

// DefaultCostPer1KTokensUSD is the flat price used for cost estimates.
const DefaultCostPer1KTokensUSD = 0.0001

// EstimateTokens approximates token usage as whitespace-delimited words,
// counting at least one per non-empty text.
func EstimateTokens(texts ...string) int {
	total := 0
	for _, text := range texts {
		if text == "" {
			continue
		}
		total += max(1, len(strings.Fields(text)))
	}
	return total
}

// EstimateCostUSD converts tokens to USD at costPer1K, rounded to six
// decimals.
func EstimateCostUSD(tokens int, costPer1K float64) float64 {
	cost := float64(tokens) / 1000 * costPer1K
	return math.Round(cost*1e6) / 1e6
}
