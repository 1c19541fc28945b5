// Package index stores chunk embeddings and serves nearest-neighbor
// search. Two backends implement the same Store contract: a flat
// file-persisted store and a pgvector-backed Postgres store.
package index

import (
	"context"
	"math"
	"strconv"
	"strings"

	"paperflow/internal/models"
)

// Store is the persistence contract shared by backends. Append is
// all-or-nothing: vectors and chunks land together or not at all, so the
// vector/metadata alignment invariant always holds.
type Store interface {
	Append(ctx context.Context, vectors [][]float32, chunks []models.Chunk) error
	Search(ctx context.Context, vector []float32, k int) ([]models.ScoredChunk, error)
	Count(ctx context.Context) (int, error)
}

func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// ToLiteral renders a vector in pgvector's input syntax.
func ToLiteral(vec []float32) string {
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
