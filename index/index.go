// Package index holds an in-memory similarity index over one résumé's
// chunks. An index is built once per résumé and supports search only; if the
// content changes the index is rebuilt wholesale.
package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/fabfab/resume-interviewer/embeddings"
	"github.com/fabfab/resume-interviewer/ingestion"
)

// DefaultTopK is the number of chunks retrieved when the caller does not ask
// for a specific amount.
const DefaultTopK = 3

// ErrEmbeddingUnavailable reports that the embedding provider could not be
// reached while building or querying the index. A session must not be created
// from a failed build.
var ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

// Index is immutable after Build and safe for concurrent queries.
type Index struct {
	embedder embeddings.Embedder
	chunks   []ingestion.Chunk
	vectors  [][]float32
	norms    []float64
}

// Build embeds every chunk and assembles the index in one shot.
func Build(ctx context.Context, embedder embeddings.Embedder, chunks []ingestion.Chunk) (*Index, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is not configured")
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no chunks to index")
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: embed chunks: %v", ErrEmbeddingUnavailable, err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedding count mismatch: have %d chunks, %d vectors", len(chunks), len(vectors))
	}

	norms := make([]float64, len(vectors))
	for i, vec := range vectors {
		norms[i] = norm(vec)
	}

	stored := make([]ingestion.Chunk, len(chunks))
	copy(stored, chunks)

	return &Index{
		embedder: embedder,
		chunks:   stored,
		vectors:  vectors,
		norms:    norms,
	}, nil
}

// Query embeds text and returns up to k chunks ordered by descending cosine
// similarity. k values below one fall back to DefaultTopK.
func (idx *Index) Query(ctx context.Context, text string, k int) ([]ingestion.Chunk, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	vectors, err := idx.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", ErrEmbeddingUnavailable, err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vectors for query")
	}

	query := vectors[0]
	queryNorm := norm(query)

	type scored struct {
		position int
		score    float64
	}
	results := make([]scored, 0, len(idx.chunks))
	for i, vec := range idx.vectors {
		results = append(results, scored{position: i, score: cosine(query, queryNorm, vec, idx.norms[i])})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})

	if k > len(results) {
		k = len(results)
	}
	out := make([]ingestion.Chunk, 0, k)
	for _, r := range results[:k] {
		out = append(out, idx.chunks[r.position])
	}
	return out, nil
}

// Len reports the number of indexed chunks.
func (idx *Index) Len() int {
	return len(idx.chunks)
}

func cosine(a []float32, aNorm float64, b []float32, bNorm float64) float64 {
	if aNorm == 0 || bNorm == 0 {
		return 0
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (aNorm * bNorm)
}

func norm(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}
