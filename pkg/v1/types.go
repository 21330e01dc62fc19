package v1

import "time"

// Collection summarizes one indexed textbook collection.
type Collection struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Model       string    `json:"model"`
	TotalChunks int       `json:"total_chunks"`
	CreatedAt   time.Time `json:"created_at"`
	Metric      string    `json:"metric"`
}

// Result is one ranked retrieval hit. Score is a display transform of the
// raw distance; ordering always follows Distance.
type Result struct {
	Rank           int     `json:"rank"`
	Score          float64 `json:"score"`
	Distance       float64 `json:"distance"`
	ChunkID        string  `json:"chunk_id"`
	Content        string  `json:"content"`
	WordCount      int     `json:"word_count"`
	Chapter        string  `json:"chapter,omitempty"`
	Section        string  `json:"section,omitempty"`
	CollectionID   string  `json:"collection_id"`
	CollectionName string  `json:"collection_name"`
}

// SearchResult is the outcome of a Search or SearchAll call.
type SearchResult struct {
	Query               string   `json:"query"`
	CollectionsSearched int      `json:"collections_searched"`
	TotalResults        int      `json:"total_results"`
	Results             []Result `json:"results"`
	Message             string   `json:"message,omitempty"`
}

// Answer is a synthesized response grounded in retrieved excerpts.
type Answer struct {
	Answer          string `json:"answer"`
	Provider        string `json:"provider"`
	Model           string `json:"model"`
	ChunksProcessed int    `json:"chunks_processed"`
	Query           string `json:"query"`
}
