package internal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateChunks(t *testing.T) {
	raw := rawChunks(t, []map[string]any{
		{"id": "c-0", "text": "a perfectly reasonable chunk of text"},
		{"id": "c-1", "text": "   "},
		{"id": "c-2", "text": "short"},
		{"text": "no id on this record at all"},
		{"id": "c-4", "text": "another valid chunk with enough text", "chapter": "3"},
		{"id": "", "text": "identifier is an empty string here"},
		{"id": "c-6"},
		{"id": "c-7", "text": 42},
	})
	raw = append(raw, json.RawMessage(`"just a string"`))

	valid, report := ValidateChunks(raw)

	require.Len(t, valid, 2)
	assert.Equal(t, "c-0", valid[0].ID)
	assert.Equal(t, "c-4", valid[1].ID)
	assert.Equal(t, "3", valid[1].Chapter)

	assert.Equal(t, 9, report.Total)
	assert.Equal(t, 2, report.Valid)
	assert.Equal(t, 7, report.SkippedCount())

	reasons := make(map[int]string, len(report.Skipped))
	for _, s := range report.Skipped {
		reasons[s.Index] = s.Reason
	}
	assert.Equal(t, "empty or whitespace-only text", reasons[1])
	assert.Equal(t, "text too short (5 chars)", reasons[2])
	assert.Equal(t, "missing 'id' field", reasons[3])
	assert.Equal(t, "empty or non-string 'id'", reasons[5])
	assert.Equal(t, "missing 'text' field", reasons[6])
	assert.Equal(t, "'text' is not a string", reasons[7])
	assert.Equal(t, "not a JSON object", reasons[8])
}

func TestValidateChunksCountsRunes(t *testing.T) {
	// Nine runes, more than nine bytes. Still below the minimum.
	raw := rawChunks(t, []map[string]any{
		{"id": "c-0", "text": "ααααααααα"},
		{"id": "c-1", "text": "αααααααααα"},
	})

	valid, report := ValidateChunks(raw)
	require.Len(t, valid, 1)
	assert.Equal(t, "c-1", valid[0].ID)
	require.Equal(t, 1, report.SkippedCount())
	assert.Equal(t, "text too short (9 chars)", report.Skipped[0].Reason)
}

func TestValidateChunksOptionalFields(t *testing.T) {
	raw := rawChunks(t, []map[string]any{
		{
			"id": "c-0", "text": "chunk with the full optional schema",
			"index": 7, "sentence_count": 2, "word_count": 6, "char_count": 35,
			"source_file": "ch1.pdf", "method": "sentence", "chapter": "1", "section": "1.2",
			"unknown_key": true,
		},
	})

	valid, report := ValidateChunks(raw)
	require.Len(t, valid, 1)
	assert.Zero(t, report.SkippedCount())

	c := valid[0]
	require.NotNil(t, c.Index)
	assert.Equal(t, 7, *c.Index)
	require.NotNil(t, c.WordCount)
	assert.Equal(t, 6, *c.WordCount)
	assert.Equal(t, "ch1.pdf", c.SourceFile)
	assert.Equal(t, "sentence", c.Method)
}

func TestLoadChunks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chunks.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"a","text":"hello"},{"id":"b"}]`), 0644))

	raw, err := LoadChunks(path)
	require.NoError(t, err)
	assert.Len(t, raw, 2)
}

func TestLoadChunksNotAnArray(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chunks.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"id":"a"}`), 0644))

	_, err := LoadChunks(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JSON array")
}

func TestLoadChunksMissingFile(t *testing.T) {
	_, err := LoadChunks(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}
