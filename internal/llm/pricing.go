package llm

import "strings"

// ModelPrice holds USD prices per million tokens. Unknown models cost
// zero rather than failing the call; the ledger still sums token counts.
type ModelPrice struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

var modelPrices = map[string]ModelPrice{
	"claude-sonnet-4-5": {InputPerMTok: 3.00, OutputPerMTok: 15.00},
	"claude-haiku-4-5":  {InputPerMTok: 1.00, OutputPerMTok: 5.00},
	"claude-opus-4-1":   {InputPerMTok: 15.00, OutputPerMTok: 75.00},
	"gpt-4o":            {InputPerMTok: 2.50, OutputPerMTok: 10.00},
	"gpt-4o-mini":       {InputPerMTok: 0.15, OutputPerMTok: 0.60},
	"gpt-4.1":           {InputPerMTok: 2.00, OutputPerMTok: 8.00},
}

// CostUSD computes the call cost from usage. Model keys match on prefix
// so dated snapshots ("gpt-4o-2024-11-20") inherit the base price.
func CostUSD(model string, usage Usage) float64 {
	model = strings.ToLower(strings.TrimSpace(model))
	price, ok := modelPrices[model]
	if !ok {
		// Longest prefix wins so "gpt-4o-mini-..." never prices as "gpt-4o".
		best := -1
		for k, p := range modelPrices {
			if strings.HasPrefix(model, k) && len(k) > best {
				best = len(k)
				price = p
				ok = true
			}
		}
	}
	if !ok {
		return 0
	}
	return float64(usage.PromptTokens)*price.InputPerMTok/1e6 +
		float64(usage.CompletionTokens)*price.OutputPerMTok/1e6
}
