package db

// KNNQuery describes a vector similarity search against an FT index.
type KNNQuery struct {
	IndexName    string
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchEntry is a single search hit: key, score, and returned fields.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// SearchResult holds search hits and the total match count.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}
