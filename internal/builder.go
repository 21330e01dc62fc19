package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
)

const (
	defaultBatchSize        = 32
	defaultEmbedConcurrency = 4
)

// BuildOptions configures an offline collection build.
type BuildOptions struct {
	ID          string
	Name        string
	Description string
	Metric      Metric
	BatchSize   int
	Concurrency int
}

// BuildResult summarizes a completed build.
type BuildResult struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Indexed   int              `json:"indexed"`
	Dimension int              `json:"dimension"`
	Metric    Metric           `json:"metric"`
	Model     string           `json:"model"`
	Report    ValidationReport `json:"validation"`
}

// BuildCollection validates raw chunks, embeds them, builds the flat index
// and metadata table, and persists all three files under <root fs>/<id>.
// The build is a one-shot batch: batches are embedded concurrently into
// disjoint output positions and concatenated in input order, so the final
// vector order always matches the validated chunk order.
func BuildCollection(ctx context.Context, fs billy.Filesystem, raw []json.RawMessage, embedder Embedder, opts BuildOptions) (*BuildResult, error) {
	if opts.ID == "" {
		return nil, fmt.Errorf("collection id must not be empty")
	}
	metric := opts.Metric
	if metric == "" {
		metric = MetricL2
	}
	if _, err := ParseMetric(string(metric)); err != nil {
		return nil, err
	}

	chunks, report := ValidateChunks(raw)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w (%d records rejected)", ErrNoValidChunks, report.SkippedCount())
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := embedAll(ctx, embedder, texts, opts.BatchSize, opts.Concurrency)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}

	dim := len(vectors[0])
	index, err := NewFlatIndex(metric, dim)
	if err != nil {
		return nil, err
	}
	if err := index.Add(vectors...); err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}

	metadata := NewMetadataTable(chunks)
	if len(metadata) != index.Size() {
		return nil, fmt.Errorf("metadata has %d entries but index holds %d vectors", len(metadata), index.Size())
	}

	name := opts.Name
	if name == "" {
		name = opts.ID
	}
	cfg := CollectionConfig{
		TextbookName:   name,
		Description:    opts.Description,
		ModelName:      embedder.Model(),
		TotalChunks:    len(chunks),
		CreatedAt:      time.Now().UTC(),
		DistanceMetric: metric,
	}

	if err := persistCollection(fs, opts.ID, cfg, index, metadata); err != nil {
		return nil, err
	}

	return &BuildResult{
		ID:        opts.ID,
		Name:      name,
		Indexed:   len(chunks),
		Dimension: dim,
		Metric:    metric,
		Model:     embedder.Model(),
		Report:    report,
	}, nil
}

// embedAll embeds texts in batches. Each batch writes to its own slice of
// the shared result, so concurrent batches never touch the same positions.
func embedAll(ctx context.Context, embedder Embedder, texts []string, batchSize, concurrency int) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if concurrency <= 0 {
		concurrency = defaultEmbedConcurrency
	}

	vectors := make([][]float32, len(texts))
	sem := make(chan struct{}, concurrency)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(start, end int) {
			defer wg.Done()
			defer func() { <-sem }()

			mu.Lock()
			failed := firstErr != nil
			mu.Unlock()
			if failed || ctx.Err() != nil {
				return
			}

			batch, err := embedder.EmbedBatch(ctx, texts[start:end])
			if err == nil && len(batch) != end-start {
				err = fmt.Errorf("embedder returned %d vectors for %d texts", len(batch), end-start)
			}
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			copy(vectors[start:end], batch)
		}(start, end)
	}

	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Dimension consistency is fatal at construction time.
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("embedder returned an empty vector")
	}
	for i, vec := range vectors {
		if len(vec) != dim {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, expected %d", ErrDimensionMismatch, i, len(vec), dim)
		}
	}

	return vectors, nil
}

func persistCollection(fs billy.Filesystem, id string, cfg CollectionConfig, index *FlatIndex, metadata MetadataTable) error {
	if err := fs.MkdirAll(id, 0755); err != nil {
		return fmt.Errorf("create collection directory: %w", err)
	}

	cfgFile, err := fs.Create(fs.Join(id, ConfigFilename))
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	enc := json.NewEncoder(cfgFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cfg); err != nil {
		cfgFile.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := cfgFile.Close(); err != nil {
		return fmt.Errorf("close config: %w", err)
	}

	indexFile, err := fs.Create(fs.Join(id, IndexFilename))
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if err := index.Encode(indexFile); err != nil {
		indexFile.Close()
		return err
	}
	if err := indexFile.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}

	metaFile, err := fs.Create(fs.Join(id, MetadataFilename))
	if err != nil {
		return fmt.Errorf("create metadata: %w", err)
	}
	if err := metadata.Encode(metaFile); err != nil {
		metaFile.Close()
		return err
	}
	if err := metaFile.Close(); err != nil {
		return fmt.Errorf("close metadata: %w", err)
	}

	return nil
}
