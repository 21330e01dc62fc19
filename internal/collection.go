package internal

import (
	"time"
)

// Per-collection files under <library root>/<collection id>/.
const (
	ConfigFilename   = "config.json"
	IndexFilename    = "index.bin"
	MetadataFilename = "metadata.json"
)

// CollectionConfig is the persisted descriptor for one collection.
type CollectionConfig struct {
	TextbookName   string    `json:"textbook_name"`
	Description    string    `json:"description,omitempty"`
	ModelName      string    `json:"model_name"`
	TotalChunks    int       `json:"total_chunks"`
	CreatedAt      time.Time `json:"created_at"`
	DistanceMetric Metric    `json:"distance_metric"`
}

// Collection is one independently indexed document set: its vectors, the
// position-parallel metadata table, and the build-time config. Immutable
// once loaded; a single instance may serve any number of concurrent queries.
type Collection struct {
	ID       string
	Config   CollectionConfig
	Index    *FlatIndex
	Metadata MetadataTable
}

// Size returns the number of indexed chunks.
func (c *Collection) Size() int {
	return c.Index.Size()
}

// Name returns the display name, falling back to the id.
func (c *Collection) Name() string {
	if c.Config.TextbookName != "" {
		return c.Config.TextbookName
	}
	return c.ID
}
