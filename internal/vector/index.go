package vector

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/kailas-cloud/memrag/internal/domain"
)

var magic = [4]byte{'M', 'R', 'I', 'X'}

const formatVersion = 1

// maxDim bounds the dimension accepted from a stored index.
const maxDim = 1 << 16

// Hit is one search result: the row in build order and its cosine similarity.
type Hit struct {
	Row   int
	Score float32
}

// Index holds normalized vectors in row order. Row i corresponds to entry i of the
// id list persisted next to it.
type Index struct {
	dim  int
	rows [][]float32
}

// Build copies and normalizes vectors into a new index. All vectors must share one dimension.
func Build(vectors [][]float32) (*Index, error) {
	idx := &Index{rows: make([][]float32, 0, len(vectors))}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("row %d: empty vector: %w", i, domain.ErrVectorDimMismatch)
		}
		if idx.dim == 0 {
			idx.dim = len(v)
		}
		if len(v) != idx.dim {
			return nil, fmt.Errorf("row %d has dim %d, index dim %d: %w", i, len(v), idx.dim, domain.ErrVectorDimMismatch)
		}
		idx.rows = append(idx.rows, Normalize(v))
	}
	return idx, nil
}

// Rows returns the number of indexed vectors.
func (x *Index) Rows() int { return len(x.rows) }

// Dim returns the vector dimension, 0 for an empty index.
func (x *Index) Dim() int { return x.dim }

// Search returns the min(k, Rows()) rows with the highest inner product against the
// normalized query, in descending score order. Equal scores keep row order.
func (x *Index) Search(query []float32, k int) ([]Hit, error) {
	if k <= 0 || len(x.rows) == 0 {
		return nil, nil
	}
	if len(query) != x.dim {
		return nil, fmt.Errorf("query dim %d, index dim %d: %w", len(query), x.dim, domain.ErrVectorDimMismatch)
	}

	q := Normalize(query)
	hits := make([]Hit, len(x.rows))
	for i, row := range x.rows {
		hits[i] = Hit{Row: i, Score: Dot(q, row)}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// MarshalBinary encodes the index as: magic "MRIX", version u32, dim u32, rows u32,
// then rows*dim little-endian float32 values in row order.
func (x *Index) MarshalBinary() ([]byte, error) {
	out := make([]byte, 16+4*x.dim*len(x.rows))
	copy(out[0:4], magic[:])
	binary.LittleEndian.PutUint32(out[4:8], formatVersion)
	binary.LittleEndian.PutUint32(out[8:12], uint32(x.dim))      //nolint:gosec // dims fit in u32
	binary.LittleEndian.PutUint32(out[12:16], uint32(len(x.rows))) //nolint:gosec // rows fit in u32

	off := 16
	for _, row := range x.rows {
		for _, f := range row {
			binary.LittleEndian.PutUint32(out[off:], math.Float32bits(f))
			off += 4
		}
	}
	return out, nil
}

// UnmarshalBinary restores an index written by MarshalBinary. Rows are taken as stored.
func (x *Index) UnmarshalBinary(data []byte) error {
	if len(data) < 16 {
		return errors.New("vector index: truncated header")
	}
	if [4]byte(data[0:4]) != magic {
		return errors.New("vector index: bad magic")
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != formatVersion {
		return fmt.Errorf("vector index: unsupported version %d", v)
	}
	dim32 := binary.LittleEndian.Uint32(data[8:12])
	n32 := binary.LittleEndian.Uint32(data[12:16])

	if dim32 > maxDim {
		return fmt.Errorf("vector index: dimension %d exceeds %d", dim32, maxDim)
	}
	if n32 > 0 && dim32 == 0 {
		return errors.New("vector index: rows without dimension")
	}
	// uint64 so a corrupt header cannot wrap the expected size.
	if want := 4 * uint64(dim32) * uint64(n32); uint64(len(data)-16) != want {
		return fmt.Errorf("vector index: payload is %d bytes, want %d", len(data)-16, want)
	}
	dim, n := int(dim32), int(n32)

	rows := make([][]float32, n)
	off := 16
	for i := range rows {
		row := make([]float32, dim)
		for j := range row {
			row[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
			off += 4
		}
		rows[i] = row
	}
	x.dim, x.rows = dim, rows
	if n == 0 {
		x.dim = 0
	}
	return nil
}
