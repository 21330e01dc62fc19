package v1

import (
	"context"
	"fmt"

	"tome/internal"
)

// Client provides programmatic access to a collection library: listing,
// retrieval, and answer synthesis.
type Client struct {
	cfg       *internal.Config
	registry  *internal.Registry
	retriever *internal.Retriever

	// model is the explicitly demanded embedding model, empty unless set
	// through WithModel. Single-collection searches enforce it.
	model string

	// providersFor builds the answer chain on first use. Swappable in tests.
	providersFor func(ctx context.Context) ([]internal.Provider, error)
}

// New creates a Client over the configured library.
func New(opts ...Option) (*Client, error) {
	cc := &clientConfig{}
	for _, opt := range opts {
		opt(cc)
	}

	path := cc.configPath
	if path == "" {
		path = internal.DefaultConfigPath()
	}
	cfg, err := internal.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	defaultModel := cfg.Embeddings.Model
	if cc.model != "" {
		defaultModel = cc.model
	}

	registry := internal.OpenLibrary(cfg.LibraryRoot(cc.library))
	factory := func(model string) (internal.Embedder, error) {
		embedCfg := cfg.Embeddings
		if model != "" {
			embedCfg.Model = model
		}
		return internal.NewOpenAIEmbedder(embedCfg)
	}

	return &Client{
		cfg:       cfg,
		registry:  registry,
		retriever: internal.NewRetriever(registry, factory, defaultModel),
		model:     cc.model,
		providersFor: func(ctx context.Context) ([]internal.Provider, error) {
			providers := make([]internal.Provider, 0, len(cfg.Providers))
			for _, pc := range cfg.Providers {
				provider, err := internal.NewFantasyProvider(ctx, pc)
				if err != nil {
					return nil, fmt.Errorf("provider %s: %w", pc.Name, err)
				}
				providers = append(providers, provider)
			}
			return providers, nil
		},
	}, nil
}

// Collections lists the collections in the library, sorted by display name.
func (c *Client) Collections(ctx context.Context) ([]Collection, error) {
	summaries, err := c.registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}

	collections := make([]Collection, 0, len(summaries))
	for _, s := range summaries {
		collections = append(collections, Collection{
			ID:          s.ID,
			Name:        s.Name,
			Description: s.Description,
			Model:       s.ModelName,
			TotalChunks: s.TotalChunks,
			CreatedAt:   s.CreatedAt,
			Metric:      string(s.DistanceMetric),
		})
	}
	return collections, nil
}

// Search runs a top-k query against one collection. When the client was
// built with WithModel, a collection built with a different model is
// rejected with a CorruptError instead of being queried.
func (c *Client) Search(ctx context.Context, collectionID, query string, topK int) (*SearchResult, error) {
	if c.model != "" {
		col, err := c.registry.Load(ctx, collectionID)
		if err != nil {
			return nil, err
		}
		if err := col.CheckModel(c.model); err != nil {
			return nil, err
		}
	}

	resp, err := c.retriever.Search(ctx, collectionID, query, topK)
	if err != nil {
		return nil, err
	}

	return &SearchResult{
		Query:               resp.Query,
		CollectionsSearched: 1,
		TotalResults:        resp.TotalResults,
		Results:             convertResults(resp.Results),
		Message:             resp.Message,
	}, nil
}

// SearchAll queries every collection and merges the hits by distance.
func (c *Client) SearchAll(ctx context.Context, query string, topK int) (*SearchResult, error) {
	resp, err := c.retriever.SearchAll(ctx, query, topK)
	if err != nil {
		return nil, err
	}

	return &SearchResult{
		Query:               resp.Query,
		CollectionsSearched: resp.CollectionsSearched,
		TotalResults:        resp.TotalResults,
		Results:             convertResults(resp.Results),
		Message:             resp.Message,
	}, nil
}

// Ask retrieves the closest chunks and synthesizes an answer from them.
// An empty collectionID retrieves across the whole library.
func (c *Client) Ask(ctx context.Context, collectionID, query string, topK int) (*Answer, error) {
	var result *SearchResult
	var err error
	if collectionID == "" {
		result, err = c.SearchAll(ctx, query, topK)
	} else {
		result, err = c.Search(ctx, collectionID, query, topK)
	}
	if err != nil {
		return nil, err
	}

	excerpts := make([]string, 0, len(result.Results))
	for _, r := range result.Results {
		excerpts = append(excerpts, r.Content)
	}

	providers, err := c.providersFor(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := internal.NewSynthesizer(providers...).Answer(ctx, query, excerpts)
	if err != nil {
		return nil, err
	}

	return &Answer{
		Answer:          resp.Answer,
		Provider:        resp.ProviderUsed,
		Model:           resp.ModelUsed,
		ChunksProcessed: resp.ChunksProcessed,
		Query:           resp.Query,
	}, nil
}

// InvalidateCache drops cached collections so the next query reloads from
// disk.
func (c *Client) InvalidateCache() {
	c.retriever.InvalidateCache()
}

// Close releases any resources held by the client.
func (c *Client) Close() error {
	return nil
}

func convertResults(results []internal.ScoredResult) []Result {
	out := make([]Result, 0, len(results))
	for _, r := range results {
		out = append(out, Result{
			Rank:           r.Rank,
			Score:          r.Score,
			Distance:       r.Distance,
			ChunkID:        r.ChunkID,
			Content:        r.Content,
			WordCount:      r.WordCount,
			Chapter:        r.Chapter,
			Section:        r.Section,
			CollectionID:   r.Collection.ID,
			CollectionName: r.Collection.Name,
		})
	}
	return out
}
