package anthropic

// BuildCachedSystemBlocks constructs system content blocks with a cache
// breakpoint. Extraction requests in one enrichment batch share the same
// system text, so only the first request in the window pays for it.
func BuildCachedSystemBlocks(text string) []SystemBlock {
	if text == "" {
		return nil
	}
	return []SystemBlock{
		{
			Text: text,
			CacheControl: &CacheControl{
				TTL: "5m",
			},
		},
	}
}
