package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"paperflow/internal/models"
	"paperflow/internal/util"
)

func chunk(filename string, idx int, text string) models.Chunk {
	return models.Chunk{Text: text, Filename: filename, Page: 1, ChunkIndex: idx, CreatedAt: time.Now().UTC()}
}

func TestFlatStoreAppendAndSearch(t *testing.T) {
	s, err := OpenFlatStore(t.TempDir(), "idx")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Append(ctx,
		[][]float32{{0, 0}, {1, 0}, {0, 3}},
		[]models.Chunk{chunk("a.pdf", 0, "origin"), chunk("a.pdf", 1, "near"), chunk("a.pdf", 2, "far")},
	))

	hits, err := s.Search(ctx, []float32{0.1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, "origin", hits[0].Chunk.Text)
	require.Equal(t, "near", hits[1].Chunk.Text)
	require.Less(t, hits[0].Distance, hits[1].Distance)
}

func TestFlatStoreSearchEmptyIndex(t *testing.T) {
	s, err := OpenFlatStore(t.TempDir(), "idx")
	require.NoError(t, err)
	hits, err := s.Search(context.Background(), []float32{1, 2}, 3)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestFlatStoreDimensionFixedAtFirstInsert(t *testing.T) {
	s, err := OpenFlatStore(t.TempDir(), "idx")
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, [][]float32{{1, 2, 3}}, []models.Chunk{chunk("a.pdf", 0, "x")}))

	err = s.Append(ctx, [][]float32{{1, 2}}, []models.Chunk{chunk("a.pdf", 1, "y")})
	require.ErrorIs(t, err, util.ErrDimensionMismatch)

	_, err = s.Search(ctx, []float32{1, 2}, 1)
	require.ErrorIs(t, err, util.ErrDimensionMismatch)

	// The failed append must not have changed the row count.
	n, err := s.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestFlatStoreMismatchedAppendRejected(t *testing.T) {
	s, err := OpenFlatStore(t.TempDir(), "idx")
	require.NoError(t, err)
	err = s.Append(context.Background(), [][]float32{{1}}, []models.Chunk{chunk("a.pdf", 0, "x"), chunk("a.pdf", 1, "y")})
	require.Error(t, err)
}

func TestFlatStorePersistAndReload(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := OpenFlatStore(dir, "papers")
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx,
		[][]float32{{1, 0}, {0, 1}},
		[]models.Chunk{chunk("a.pdf", 0, "first"), chunk("b.pdf", 0, "second")},
	))

	reloaded, err := OpenFlatStore(dir, "papers")
	require.NoError(t, err)
	n, err := reloaded.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, 2, reloaded.Dimension())

	hits, err := reloaded.Search(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Equal(t, "second", hits[0].Chunk.Text)
}

func TestFlatStoreMissingCompanionFileIsCorrupt(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	s, err := OpenFlatStore(dir, "papers")
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, [][]float32{{1}}, []models.Chunk{chunk("a.pdf", 0, "x")}))

	require.NoError(t, os.Remove(filepath.Join(dir, "papers_meta.json")))
	_, err = OpenFlatStore(dir, "papers")
	require.ErrorIs(t, err, util.ErrIndexCorrupt)
}

func TestFlatStoreInconsistentCountsAreCorrupt(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	s, err := OpenFlatStore(dir, "papers")
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, [][]float32{{1}}, []models.Chunk{chunk("a.pdf", 0, "x")}))

	// Overwrite metadata with two entries against one stored vector.
	two := []models.Chunk{chunk("a.pdf", 0, "x"), chunk("a.pdf", 1, "y")}
	require.NoError(t, util.WriteJSONAtomic(filepath.Join(dir, "papers_meta.json"), two))

	_, err = OpenFlatStore(dir, "papers")
	require.ErrorIs(t, err, util.ErrIndexCorrupt)
}

func TestToLiteral(t *testing.T) {
	require.Equal(t, "[1,-0.5,0]", ToLiteral([]float32{1, -0.5, 0}))
}
