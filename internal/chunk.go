package internal

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// MinChunkChars is the minimum trimmed text length a chunk must have to be
// eligible for embedding.
const MinChunkChars = 10

// Chunk is one retrievable span of textbook text, produced by the upstream
// chunking pipeline and consumed once by the index builder. The schema is
// closed: recognized optional keys map to typed fields, unknown keys are
// dropped during decoding.
type Chunk struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	Index         *int   `json:"index,omitempty"`
	SentenceCount *int   `json:"sentence_count,omitempty"`
	WordCount     *int   `json:"word_count,omitempty"`
	CharCount     *int   `json:"char_count,omitempty"`
	SourceFile    string `json:"source_file,omitempty"`
	Method        string `json:"method,omitempty"`
	Chapter       string `json:"chapter,omitempty"`
	Section       string `json:"section,omitempty"`
}

// SkippedChunk records one raw record that was dropped during validation.
type SkippedChunk struct {
	Index   int    `json:"index"`
	ChunkID string `json:"chunk_id,omitempty"`
	Reason  string `json:"reason"`
}

// ValidationReport summarizes a ValidateChunks run. Skipped records are
// reported, never fatal; an empty valid set is the caller's problem.
type ValidationReport struct {
	Total   int            `json:"total"`
	Valid   int            `json:"valid"`
	Skipped []SkippedChunk `json:"skipped,omitempty"`
}

func (r ValidationReport) SkippedCount() int { return len(r.Skipped) }

// LoadChunks reads a JSON array of raw chunk records from path. Individual
// records are kept raw so that structurally broken ones can be skipped by
// ValidateChunks instead of failing the whole file.
func LoadChunks(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chunks file: %w", err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: chunks file must contain a JSON array: %w", path, err)
	}

	return raw, nil
}

// ValidateChunks filters raw chunk records down to the subset eligible for
// embedding: a JSON object with a non-empty id, a string text field, and
// trimmed text of at least MinChunkChars characters.
func ValidateChunks(raw []json.RawMessage) ([]Chunk, ValidationReport) {
	valid := make([]Chunk, 0, len(raw))
	report := ValidationReport{Total: len(raw)}

	for i, rec := range raw {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(rec, &fields); err != nil {
			report.Skipped = append(report.Skipped, SkippedChunk{Index: i, Reason: "not a JSON object"})
			continue
		}

		idRaw, ok := fields["id"]
		if !ok {
			report.Skipped = append(report.Skipped, SkippedChunk{Index: i, Reason: "missing 'id' field"})
			continue
		}
		var id string
		if err := json.Unmarshal(idRaw, &id); err != nil || id == "" {
			report.Skipped = append(report.Skipped, SkippedChunk{Index: i, Reason: "empty or non-string 'id'"})
			continue
		}

		textRaw, ok := fields["text"]
		if !ok {
			report.Skipped = append(report.Skipped, SkippedChunk{Index: i, ChunkID: id, Reason: "missing 'text' field"})
			continue
		}
		var text string
		if err := json.Unmarshal(textRaw, &text); err != nil {
			report.Skipped = append(report.Skipped, SkippedChunk{Index: i, ChunkID: id, Reason: "'text' is not a string"})
			continue
		}

		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			report.Skipped = append(report.Skipped, SkippedChunk{Index: i, ChunkID: id, Reason: "empty or whitespace-only text"})
			continue
		}
		if n := utf8.RuneCountInString(trimmed); n < MinChunkChars {
			report.Skipped = append(report.Skipped, SkippedChunk{
				Index: i, ChunkID: id, Reason: fmt.Sprintf("text too short (%d chars)", n),
			})
			continue
		}

		var chunk Chunk
		if err := json.Unmarshal(rec, &chunk); err != nil {
			report.Skipped = append(report.Skipped, SkippedChunk{Index: i, ChunkID: id, Reason: "malformed optional fields"})
			continue
		}

		valid = append(valid, chunk)
	}

	report.Valid = len(valid)
	return valid, report
}
