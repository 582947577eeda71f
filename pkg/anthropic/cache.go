package anthropic

// BuildCachedSystemBlocks constructs system content blocks with a cache
// breakpoint at the given TTL ("5m" or "1h"). The synthesis system prompt is
// identical across requests, so serving deployments hit the warm cache on
// every question after the first.
func BuildCachedSystemBlocks(text, ttl string) []SystemBlock {
	return []SystemBlock{
		{
			Text: text,
			CacheControl: &CacheControl{
				TTL: ttl,
			},
		},
	}
}
