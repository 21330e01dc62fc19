package internal

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// MetadataEntry is the denormalized record stored alongside each indexed
// vector. FaissID is the zero-based vector position; it is stable after
// construction and never reused.
type MetadataEntry struct {
	FaissID       int    `json:"faiss_id"`
	ChunkID       string `json:"chunk_id"`
	Text          string `json:"text"`
	CharCount     int    `json:"char_count"`
	WordCount     int    `json:"word_count"`
	Index         *int   `json:"index,omitempty"`
	SourceFile    string `json:"source_file,omitempty"`
	Method        string `json:"method,omitempty"`
	SentenceCount *int   `json:"sentence_count,omitempty"`
	Chapter       string `json:"chapter,omitempty"`
	Section       string `json:"section,omitempty"`
}

// MetadataTable maps vector positions to chunk metadata. Entry i describes
// the vector at index position i; the table and the index must always have
// the same length.
type MetadataTable []MetadataEntry

// NewMetadataTable builds the position-parallel metadata for a validated
// chunk set, in input order.
func NewMetadataTable(chunks []Chunk) MetadataTable {
	table := make(MetadataTable, len(chunks))
	for i, chunk := range chunks {
		table[i] = MetadataEntry{
			FaissID:       i,
			ChunkID:       chunk.ID,
			Text:          chunk.Text,
			CharCount:     utf8.RuneCountInString(chunk.Text),
			WordCount:     len(strings.Fields(chunk.Text)),
			Index:         chunk.Index,
			SourceFile:    chunk.SourceFile,
			Method:        chunk.Method,
			SentenceCount: chunk.SentenceCount,
			Chapter:       chunk.Chapter,
			Section:       chunk.Section,
		}
	}
	return table
}

// Encode writes the table as an indented JSON array.
func (t MetadataTable) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(t); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// DecodeMetadataTable reads a table previously written by Encode.
func DecodeMetadataTable(r io.Reader) (MetadataTable, error) {
	var table MetadataTable
	if err := json.NewDecoder(r).Decode(&table); err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	return table, nil
}
