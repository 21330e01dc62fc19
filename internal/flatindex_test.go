package internal

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("l2")
	require.NoError(t, err)
	assert.Equal(t, MetricL2, m)

	m, err = ParseMetric("ip")
	require.NoError(t, err)
	assert.Equal(t, MetricInnerProduct, m)

	_, err = ParseMetric("cosine")
	require.Error(t, err)
}

func TestNewFlatIndexValidation(t *testing.T) {
	_, err := NewFlatIndex("cosine", 3)
	require.Error(t, err)

	_, err = NewFlatIndex(MetricL2, 0)
	require.Error(t, err)
}

func TestFlatIndexAddDimensionMismatch(t *testing.T) {
	ix, err := NewFlatIndex(MetricL2, 3)
	require.NoError(t, err)

	err = ix.Add([]float32{1, 2})
	require.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Zero(t, ix.Size())
}

func TestFlatIndexSearchL2(t *testing.T) {
	ix, err := NewFlatIndex(MetricL2, 3)
	require.NoError(t, err)
	require.NoError(t, ix.Add(
		[]float32{1, 0, 0},
		[]float32{0, 1, 0},
		[]float32{0, 0, 1},
	))

	// A stored vector queried against itself is the top hit at distance 0.
	hits, err := ix.Search([]float32{0, 1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, 1, hits[0].Position)
	assert.Equal(t, float32(0), hits[0].Distance)

	// The two remaining corners are equidistant; lower position wins.
	assert.Equal(t, float32(2), hits[1].Distance)
	assert.Equal(t, 0, hits[1].Position)
	assert.Equal(t, 2, hits[2].Position)
}

func TestFlatIndexSearchInnerProduct(t *testing.T) {
	ix, err := NewFlatIndex(MetricInnerProduct, 2)
	require.NoError(t, err)
	// Stored un-normalized on purpose; Add normalizes the copies.
	require.NoError(t, ix.Add(
		[]float32{2, 0},
		[]float32{-3, 0},
		[]float32{0, 5},
	))

	hits, err := ix.Search([]float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	// Parallel unit vector: distance -1. Anti-parallel: +1, ranked last.
	assert.Equal(t, 0, hits[0].Position)
	assert.InDelta(t, -1.0, float64(hits[0].Distance), 1e-6)
	assert.Equal(t, 2, hits[1].Position)
	assert.InDelta(t, 0.0, float64(hits[1].Distance), 1e-6)
	assert.Equal(t, 1, hits[2].Position)
	assert.InDelta(t, 1.0, float64(hits[2].Distance), 1e-6)
}

func TestFlatIndexSearchClampsK(t *testing.T) {
	ix, err := NewFlatIndex(MetricL2, 2)
	require.NoError(t, err)
	require.NoError(t, ix.Add([]float32{1, 0}, []float32{0, 1}))

	hits, err := ix.Search([]float32{1, 0}, 50)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestFlatIndexSearchEmptyIndex(t *testing.T) {
	ix, err := NewFlatIndex(MetricL2, 2)
	require.NoError(t, err)

	hits, err := ix.Search([]float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestFlatIndexSearchErrors(t *testing.T) {
	ix, err := NewFlatIndex(MetricL2, 2)
	require.NoError(t, err)
	require.NoError(t, ix.Add([]float32{1, 0}))

	_, err = ix.Search([]float32{1, 0}, 0)
	require.ErrorIs(t, err, ErrInvalidTopK)

	_, err = ix.Search([]float32{1, 0}, -3)
	require.ErrorIs(t, err, ErrInvalidTopK)

	_, err = ix.Search([]float32{1, 0, 0}, 1)
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestFlatIndexSearchDeterministic(t *testing.T) {
	ix, err := NewFlatIndex(MetricL2, 2)
	require.NoError(t, err)
	require.NoError(t, ix.Add(
		[]float32{0.5, 0.5},
		[]float32{0.1, 0.9},
		[]float32{0.9, 0.1},
	))

	first, err := ix.Search([]float32{0.4, 0.6}, 3)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := ix.Search([]float32{0.4, 0.6}, 3)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestFlatIndexEncodeDecodeRoundtrip(t *testing.T) {
	for _, metric := range []Metric{MetricL2, MetricInnerProduct} {
		ix, err := NewFlatIndex(metric, 3)
		require.NoError(t, err)
		require.NoError(t, ix.Add(
			[]float32{1, 2, 3},
			[]float32{4, 5, 6},
		))

		var buf bytes.Buffer
		require.NoError(t, ix.Encode(&buf))

		decoded, err := DecodeFlatIndex(&buf)
		require.NoError(t, err)
		assert.Equal(t, metric, decoded.Metric())
		assert.Equal(t, 3, decoded.Dimension())
		assert.Equal(t, 2, decoded.Size())

		want, err := ix.Search([]float32{1, 2, 3}, 2)
		require.NoError(t, err)
		got, err := decoded.Search([]float32{1, 2, 3}, 2)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestDecodeFlatIndexRejectsGarbage(t *testing.T) {
	_, err := DecodeFlatIndex(bytes.NewReader([]byte("definitely not an index")))
	require.Error(t, err)

	_, err = DecodeFlatIndex(bytes.NewReader(nil))
	require.Error(t, err)
}

func TestDecodeFlatIndexRejectsOversizedHeader(t *testing.T) {
	// A valid header claiming billions of elements must fail before the
	// payload allocation, not after.
	hdr := indexHeader{
		Magic:   indexMagic,
		Version: indexVersion,
		Metric:  0,
		Dim:     1 << 16,
		Count:   1 << 16,
	}
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, hdr))

	_, err := DecodeFlatIndex(&buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "element limit")
}
