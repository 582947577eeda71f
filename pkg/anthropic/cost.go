package anthropic

import "go.uber.org/zap"

// TokenUsage tracks token consumption for one generation call.
type TokenUsage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

type modelRate struct {
	inputPerMTok  float64
	outputPerMTok float64
}

var modelRates = map[string]modelRate{
	"claude-haiku-4-5-20251001":  {0.80, 4.00},
	"claude-sonnet-4-5-20250929": {3.00, 15.00},
	"claude-opus-4-6":            {15.00, 75.00},
}

// Cache writes bill at 1.25x the input rate and cache reads at 0.1x.
const (
	cacheWriteFactor = 1.25
	cacheReadFactor  = 0.10
)

// EstimateCost computes an estimated USD cost for this usage under the given
// model. Unknown models estimate to 0.
func (u TokenUsage) EstimateCost(model string) float64 {
	rate, ok := modelRates[model]
	if !ok {
		return 0
	}
	cost := (float64(u.InputTokens) / 1e6) * rate.inputPerMTok
	cost += (float64(u.OutputTokens) / 1e6) * rate.outputPerMTok
	cost += (float64(u.CacheCreationInputTokens) / 1e6) * rate.inputPerMTok * cacheWriteFactor
	cost += (float64(u.CacheReadInputTokens) / 1e6) * rate.inputPerMTok * cacheReadFactor
	return cost
}

// LogCost emits one structured cost-attribution record for this usage.
func (u TokenUsage) LogCost(model, phase string) {
	zap.L().Info("cost attribution",
		zap.String("model", model),
		zap.String("phase", phase),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Int64("cache_write_tokens", u.CacheCreationInputTokens),
		zap.Int64("cache_read_tokens", u.CacheReadInputTokens),
		zap.Float64("estimated_cost_usd", u.EstimateCost(model)),
	)
}
