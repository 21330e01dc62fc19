package internal

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
)

// EmbedderFactory returns an embedder for the given model name. The
// retriever always asks for the model a collection was built with.
type EmbedderFactory func(model string) (Embedder, error)

// CollectionRef identifies a collection in query responses.
type CollectionRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ScoredResult is one ranked search hit. Score is a display-only transform
// of the raw distance: 1/(1+distance), rounded to 4 digits. It is monotonic
// in distance but not a calibrated probability; all ordering decisions use
// the raw distance.
type ScoredResult struct {
	Rank       int           `json:"rank"`
	Score      float64       `json:"score"`
	Distance   float64       `json:"distance"`
	ChunkID    string        `json:"chunk_id"`
	Content    string        `json:"content"`
	WordCount  int           `json:"word_count"`
	Chapter    string        `json:"chapter,omitempty"`
	Section    string        `json:"section,omitempty"`
	Collection CollectionRef `json:"collection"`
}

// SearchResponse is the API-facing result of a single-collection query.
// An empty result set is not an error: TotalResults is 0 and Message
// explains.
type SearchResponse struct {
	Query        string         `json:"query"`
	Collection   CollectionRef  `json:"collection"`
	TotalResults int            `json:"total_results"`
	Results      []ScoredResult `json:"results"`
	Message      string         `json:"message,omitempty"`
}

// MultiSearchResponse is the merged result of querying every collection in
// the library.
type MultiSearchResponse struct {
	Query               string         `json:"query"`
	CollectionsSearched int            `json:"collections_searched"`
	TotalResults        int            `json:"total_results"`
	Results             []ScoredResult `json:"results"`
	Message             string         `json:"message,omitempty"`
}

const noResultsMessage = "No relevant results found for your query."

// Retriever drives the embedding gateway, vector index, and metadata table
// to answer ranked queries against loaded collections.
type Retriever struct {
	registry     *Registry
	cache        *CollectionCache
	embedderFor  EmbedderFactory
	defaultModel string

	// Warn receives notes about non-fatal oddities, like a collection whose
	// configured model overrides the default. Defaults to io.Discard.
	Warn io.Writer
}

// NewRetriever builds a retriever over the registry. defaultModel is the
// caller's preferred embedding model; a collection's configured model always
// wins over it, with a warning.
func NewRetriever(registry *Registry, embedderFor EmbedderFactory, defaultModel string) *Retriever {
	return &Retriever{
		registry:     registry,
		cache:        NewCollectionCache(registry),
		embedderFor:  embedderFor,
		defaultModel: defaultModel,
		Warn:         io.Discard,
	}
}

// InvalidateCache drops all cached collections, forcing a reload on the next
// query. Used when the library changes on disk.
func (r *Retriever) InvalidateCache() {
	r.cache.Invalidate()
}

// Search runs a top-k query against one collection.
func (r *Retriever) Search(ctx context.Context, collectionID, query string, topK int) (*SearchResponse, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		return nil, ErrInvalidTopK
	}

	col, err := r.cache.Get(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	ref := CollectionRef{ID: col.ID, Name: col.Name()}
	resp := &SearchResponse{Query: trimmed, Collection: ref, Results: []ScoredResult{}}

	if col.Size() == 0 {
		resp.Message = noResultsMessage
		return resp, nil
	}

	model := col.Config.ModelName
	if model == "" {
		model = r.defaultModel
	} else if r.defaultModel != "" && model != r.defaultModel {
		fmt.Fprintf(r.Warn, "collection %q: using configured model %q instead of default %q\n",
			col.ID, model, r.defaultModel)
	}

	embedder, err := r.embedderFor(model)
	if err != nil {
		return nil, fmt.Errorf("embedder for model %q: %w", model, err)
	}

	vec, err := embedder.Embed(ctx, trimmed)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	if topK > col.Size() {
		topK = col.Size()
	}

	hits, err := col.Index.Search(vec, topK)
	if err != nil {
		return nil, err
	}

	resp.Results = scoreHits(hits, col, ref)
	resp.TotalResults = len(resp.Results)
	if resp.TotalResults == 0 {
		resp.Message = noResultsMessage
	}
	return resp, nil
}

// SearchAll queries every listed collection independently and merges the
// hits by ascending raw distance. Collections that fail to load are skipped;
// the rest remain usable. Distances are metric-dependent, so the cross-
// collection merge is a ranking heuristic in the same spirit as the display
// score.
func (r *Retriever) SearchAll(ctx context.Context, query string, topK int) (*MultiSearchResponse, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		return nil, ErrInvalidTopK
	}

	summaries, err := r.registry.List(ctx)
	if err != nil {
		return nil, err
	}

	resp := &MultiSearchResponse{Query: trimmed, Results: []ScoredResult{}}
	for _, summary := range summaries {
		single, err := r.Search(ctx, summary.ID, trimmed, topK)
		if err != nil {
			fmt.Fprintf(r.Warn, "collection %q: skipped: %v\n", summary.ID, err)
			continue
		}
		resp.CollectionsSearched++
		resp.Results = append(resp.Results, single.Results...)
	}

	sort.SliceStable(resp.Results, func(i, j int) bool {
		a, b := resp.Results[i], resp.Results[j]
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		if a.Collection.ID != b.Collection.ID {
			return a.Collection.ID < b.Collection.ID
		}
		return a.Rank < b.Rank
	})
	if len(resp.Results) > topK {
		resp.Results = resp.Results[:topK]
	}
	for i := range resp.Results {
		resp.Results[i].Rank = i + 1
	}

	resp.TotalResults = len(resp.Results)
	if resp.TotalResults == 0 {
		resp.Message = noResultsMessage
	}
	return resp, nil
}

// scoreHits maps raw index hits to ranked, scored results. Positions outside
// the metadata table are skipped rather than crashing; the size invariant
// makes that impossible for well-formed collections, but a query must never
// panic on a malformed one.
func scoreHits(hits []Hit, col *Collection, ref CollectionRef) []ScoredResult {
	results := make([]ScoredResult, 0, len(hits))
	for _, hit := range hits {
		if hit.Position < 0 || hit.Position >= len(col.Metadata) {
			continue
		}
		meta := col.Metadata[hit.Position]
		dist := float64(hit.Distance)
		results = append(results, ScoredResult{
			Rank:       len(results) + 1,
			Score:      displayScore(dist),
			Distance:   round4(dist),
			ChunkID:    meta.ChunkID,
			Content:    meta.Text,
			WordCount:  meta.WordCount,
			Chapter:    meta.Chapter,
			Section:    meta.Section,
			Collection: ref,
		})
	}
	return results
}

// displayScore converts a raw distance to the display similarity
// 1/(1+distance), rounded to 4 digits. An exact inner-product match has
// distance -1, which would divide by zero; the denominator is floored so the
// score caps at 10000 and stays monotone in the distance.
func displayScore(dist float64) float64 {
	denom := 1 + dist
	if denom < minScoreDenom {
		denom = minScoreDenom
	}
	return round4(1 / denom)
}

const minScoreDenom = 1e-4

func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}
