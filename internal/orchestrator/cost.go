package orchestrator

import (
	"encoding/json"

	"github.com/careerpilot-ke/careerpilot/internal/providers"
)

// centsPerMilleTokens is the estimated cost per 1,000 tokens, in hundredths of
// a cent, per provider kind. Costs are stored truncated to integer cents.
var centsPerMilleTokens = map[providers.Kind]int64{
	providers.KindGemini: 15,  // 0.15 cents / 1K tokens
	providers.KindOpenAI: 60,  // 0.60 cents / 1K tokens
	providers.KindClaude: 80,  // 0.80 cents / 1K tokens
}

// estimateTokens approximates the token count of a text as length/4.
func estimateTokens(text string) int64 {
	return int64(len(text)) / 4
}

// costCents estimates the spend for a token total, truncated to whole cents.
func costCents(kind providers.Kind, totalTokens int64) int64 {
	rate, ok := centsPerMilleTokens[kind]
	if !ok {
		return 0
	}
	return totalTokens * rate / 1000 / 100
}

// decodePayload unmarshals a cached JSON payload into out.
func decodePayload(payload json.RawMessage, out any) error {
	return json.Unmarshal(payload, out)
}
