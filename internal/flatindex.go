package internal

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
)

// Metric selects how query and stored vectors are compared. Both metrics
// report lower-is-closer distances at the search boundary.
type Metric string

const (
	// MetricL2 is squared Euclidean distance, no normalization.
	MetricL2 Metric = "l2"
	// MetricInnerProduct L2-normalizes every stored and query vector and
	// reports the negative inner product as the distance.
	MetricInnerProduct Metric = "ip"
)

// ParseMetric maps a config string to a Metric.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricL2, MetricInnerProduct:
		return Metric(s), nil
	default:
		return "", fmt.Errorf("unsupported distance metric: %q", s)
	}
}

// Hit is one nearest-neighbor result: the raw metric distance and the
// zero-based position of the stored vector. Positions are stable after
// construction and index the parallel metadata table.
type Hit struct {
	Distance float32
	Position int
}

// FlatIndex stores fixed-dimension vectors and answers exact top-k
// nearest-neighbor queries by brute force. Collections are textbook-sized,
// so exhaustive search keeps results deterministic without approximation.
// Built once, read-only afterwards; safe for concurrent Search calls.
type FlatIndex struct {
	metric Metric
	dim    int
	data   []float32 // row-major, count*dim
	count  int
}

// NewFlatIndex creates an empty index for vectors of the given dimension.
func NewFlatIndex(metric Metric, dim int) (*FlatIndex, error) {
	if _, err := ParseMetric(string(metric)); err != nil {
		return nil, err
	}
	if dim <= 0 {
		return nil, fmt.Errorf("invalid dimension: %d", dim)
	}
	return &FlatIndex{metric: metric, dim: dim}, nil
}

func (ix *FlatIndex) Metric() Metric { return ix.metric }
func (ix *FlatIndex) Dimension() int { return ix.dim }
func (ix *FlatIndex) Size() int      { return ix.count }

// Add appends vectors during the bulk build. A vector of mismatched length
// is a fatal construction error. Inputs are copied; inner-product vectors
// are normalized on the copy.
func (ix *FlatIndex) Add(vectors ...[]float32) error {
	for _, vec := range vectors {
		if len(vec) != ix.dim {
			return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, ix.dim, len(vec))
		}
		row := make([]float32, ix.dim)
		copy(row, vec)
		if ix.metric == MetricInnerProduct {
			normalizeL2(row)
		}
		ix.data = append(ix.data, row...)
		ix.count++
	}
	return nil
}

// Search returns the k nearest stored vectors, ordered by ascending distance
// with ties broken by lower position. k is clamped to the index size.
func (ix *FlatIndex) Search(query []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, ErrInvalidTopK
	}
	if len(query) != ix.dim {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, ix.dim, len(query))
	}
	if k > ix.count {
		k = ix.count
	}
	if k == 0 {
		return nil, nil
	}

	q := make([]float32, ix.dim)
	copy(q, query)
	if ix.metric == MetricInnerProduct {
		normalizeL2(q)
	}

	hits := make([]Hit, ix.count)
	for pos := 0; pos < ix.count; pos++ {
		row := ix.data[pos*ix.dim : (pos+1)*ix.dim]
		hits[pos] = Hit{Distance: ix.distance(row, q), Position: pos}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Position < hits[j].Position
	})

	return hits[:k], nil
}

func (ix *FlatIndex) distance(row, q []float32) float32 {
	var acc float64
	switch ix.metric {
	case MetricInnerProduct:
		for i := range row {
			acc += float64(row[i]) * float64(q[i])
		}
		return float32(-acc)
	default: // MetricL2
		for i := range row {
			d := float64(row[i]) - float64(q[i])
			acc += d * d
		}
		return float32(acc)
	}
}

func normalizeL2(vec []float32) {
	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}

// On-disk index format: magic, version, metric byte, dimension, vector
// count, then the raw little-endian float32 payload.
var indexMagic = [4]byte{'T', 'O', 'M', 'E'}

const indexVersion = 1

// maxIndexElements bounds the payload a decoded header may claim, so a
// corrupt file cannot force a multi-gigabyte allocation before the first
// payload byte is read. 1<<28 float32s is 1 GiB.
const maxIndexElements = 1 << 28

type indexHeader struct {
	Magic   [4]byte
	Version uint8
	Metric  uint8
	Dim     uint32
	Count   uint32
}

func metricByte(m Metric) uint8 {
	if m == MetricInnerProduct {
		return 1
	}
	return 0
}

// Encode writes the index to w in the binary index format.
func (ix *FlatIndex) Encode(w io.Writer) error {
	hdr := indexHeader{
		Magic:   indexMagic,
		Version: indexVersion,
		Metric:  metricByte(ix.metric),
		Dim:     uint32(ix.dim),
		Count:   uint32(ix.count),
	}
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return fmt.Errorf("write index header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, ix.data); err != nil {
		return fmt.Errorf("write index vectors: %w", err)
	}
	return nil
}

// DecodeFlatIndex reads an index previously written by Encode.
func DecodeFlatIndex(r io.Reader) (*FlatIndex, error) {
	var hdr indexHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read index header: %w", err)
	}
	if hdr.Magic != indexMagic {
		return nil, fmt.Errorf("not an index file (bad magic)")
	}
	if hdr.Version != indexVersion {
		return nil, fmt.Errorf("unsupported index version: %d", hdr.Version)
	}

	metric := MetricL2
	if hdr.Metric == 1 {
		metric = MetricInnerProduct
	}
	if hdr.Dim == 0 {
		return nil, fmt.Errorf("invalid dimension in index header")
	}
	if total := uint64(hdr.Dim) * uint64(hdr.Count); total > maxIndexElements {
		return nil, fmt.Errorf("index header claims %d vectors of dimension %d, exceeding the %d-element limit", hdr.Count, hdr.Dim, maxIndexElements)
	}

	ix := &FlatIndex{
		metric: metric,
		dim:    int(hdr.Dim),
		count:  int(hdr.Count),
		data:   make([]float32, int(hdr.Dim)*int(hdr.Count)),
	}
	if err := binary.Read(r, binary.LittleEndian, ix.data); err != nil {
		return nil, fmt.Errorf("read index vectors: %w", err)
	}
	return ix, nil
}
