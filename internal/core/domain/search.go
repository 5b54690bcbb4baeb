package domain

// SearchOptions configures a search query against the index.
type SearchOptions struct {
	// Limit is the maximum number of results.
	Limit int

	// Offset is the number of results to skip.
	Offset int

	// ContentTypes filters to specific content model ids.
	ContentTypes []string
}

// SearchResult represents a single search hit.
type SearchResult struct {
	// Record is the matched index record.
	Record IndexRecord

	// Score is the relevance score. Higher is better.
	Score float64

	// Highlights contains snippets with matched terms.
	Highlights []string
}
