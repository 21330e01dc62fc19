package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// NotFoundError reports a collection whose config, index, or metadata file
// is absent or unreadable. It carries the ids that are actually loadable so
// callers can remediate.
type NotFoundError struct {
	ID        string
	Available []string
}

func (e *NotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("collection %q not found (no collections available)", e.ID)
	}
	return fmt.Sprintf("collection %q not found (available: %s)", e.ID, strings.Join(e.Available, ", "))
}

// CorruptError reports a collection whose persisted parts disagree with each
// other. It is fatal to that collection only.
type CorruptError struct {
	ID     string
	Reason string
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("collection %q is corrupt: %s", e.ID, e.Reason)
}

// CollectionSummary is the listing view of one collection config.
type CollectionSummary struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	ModelName      string    `json:"model_name"`
	TotalChunks    int       `json:"total_chunks"`
	CreatedAt      time.Time `json:"created_at"`
	DistanceMetric Metric    `json:"distance_metric"`
}

// Registry discovers and loads collections under a single library root.
// The root is explicit: it is the filesystem handed to the constructor,
// never the process working directory. Every subdirectory holding a readable
// config descriptor is a collection.
type Registry struct {
	fs billy.Filesystem
}

// NewRegistry builds a registry over fs, whose root is the library root.
func NewRegistry(fs billy.Filesystem) *Registry {
	return &Registry{fs: fs}
}

// OpenLibrary is the osfs convenience constructor for a library rooted at
// the given directory.
func OpenLibrary(root string) *Registry {
	return NewRegistry(osfs.New(root))
}

// List enumerates the collections with readable configs, sorted by display
// name. A bad or unreadable collection is skipped, never fatal to the rest;
// a missing library root yields an empty list.
func (r *Registry) List(ctx context.Context) ([]CollectionSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := r.fs.ReadDir(".")
	if err != nil {
		return []CollectionSummary{}, nil
	}

	summaries := make([]CollectionSummary, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		cfg, err := r.readConfig(entry.Name())
		if err != nil {
			continue
		}
		summaries = append(summaries, CollectionSummary{
			ID:             entry.Name(),
			Name:           cfg.TextbookName,
			Description:    cfg.Description,
			ModelName:      cfg.ModelName,
			TotalChunks:    cfg.TotalChunks,
			CreatedAt:      cfg.CreatedAt,
			DistanceMetric: cfg.DistanceMetric,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Name != summaries[j].Name {
			return summaries[i].Name < summaries[j].Name
		}
		return summaries[i].ID < summaries[j].ID
	})

	return summaries, nil
}

// Available returns the sorted ids of collections with readable configs.
func (r *Registry) Available(ctx context.Context) []string {
	summaries, err := r.List(ctx)
	if err != nil {
		return nil
	}
	ids := make([]string, 0, len(summaries))
	for _, s := range summaries {
		ids = append(ids, s.ID)
	}
	sort.Strings(ids)
	return ids
}

// Load reads a collection's config, index, and metadata. A missing or
// unreadable file yields a NotFoundError enumerating the available ids; a
// metadata/index size disagreement or an index metric that contradicts the
// config yields a CorruptError. The returned Collection is immutable.
func (r *Registry) Load(ctx context.Context, id string) (*Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg, err := r.readConfig(id)
	if err != nil {
		return nil, &NotFoundError{ID: id, Available: r.Available(ctx)}
	}

	indexFile, err := r.fs.Open(r.fs.Join(id, IndexFilename))
	if err != nil {
		return nil, &NotFoundError{ID: id, Available: r.Available(ctx)}
	}
	defer indexFile.Close()

	index, err := DecodeFlatIndex(indexFile)
	if err != nil {
		return nil, &NotFoundError{ID: id, Available: r.Available(ctx)}
	}

	metaFile, err := r.fs.Open(r.fs.Join(id, MetadataFilename))
	if err != nil {
		return nil, &NotFoundError{ID: id, Available: r.Available(ctx)}
	}
	defer metaFile.Close()

	metadata, err := DecodeMetadataTable(metaFile)
	if err != nil {
		return nil, &NotFoundError{ID: id, Available: r.Available(ctx)}
	}

	if len(metadata) != index.Size() {
		return nil, &CorruptError{
			ID:     id,
			Reason: fmt.Sprintf("metadata has %d entries but index holds %d vectors", len(metadata), index.Size()),
		}
	}
	if cfg.DistanceMetric != "" && cfg.DistanceMetric != index.Metric() {
		return nil, &CorruptError{
			ID:     id,
			Reason: fmt.Sprintf("config declares metric %q but index was built with %q", cfg.DistanceMetric, index.Metric()),
		}
	}

	return &Collection{ID: id, Config: *cfg, Index: index, Metadata: metadata}, nil
}

// CheckModel verifies that the collection was built with the requested
/// embedding model. A mismatch is a corrupt-state condition: querying with a
// different model would silently produce garbage distances.
func (c *Collection) CheckModel(model string) error {
	if model == "" || c.Config.ModelName == "" || model == c.Config.ModelName {
		return nil
	}
	return &CorruptError{
		ID:     c.ID,
		Reason: fmt.Sprintf("built with model %q, queried with %q", c.Config.ModelName, model),
	}
}

func (r *Registry) readConfig(id string) (*CollectionConfig, error) {
	data, err := util.ReadFile(r.fs, r.fs.Join(id, ConfigFilename))
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg CollectionConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// CollectionCache shares loaded collections across concurrent queries.
// Loaded collections are immutable, so a single instance can be handed to
// any number of simultaneous readers; Invalidate drops the cache after the
// library changes on disk.
type CollectionCache struct {
	registry *Registry

	mu   sync.RWMutex
	cols map[string]*Collection
}

func NewCollectionCache(registry *Registry) *CollectionCache {
	return &CollectionCache{
		registry: registry,
		cols:     make(map[string]*Collection),
	}
}

// Get returns the cached collection, loading it on first use.
func (c *CollectionCache) Get(ctx context.Context, id string) (*Collection, error) {
	c.mu.RLock()
	col, ok := c.cols[id]
	c.mu.RUnlock()
	if ok {
		return col, nil
	}

	col, err := c.registry.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cols[id] = col
	c.mu.Unlock()
	return col, nil
}

// Invalidate forgets all cached collections.
func (c *CollectionCache) Invalidate() {
	c.mu.Lock()
	c.cols = make(map[string]*Collection)
	c.mu.Unlock()
}
