package index

import (
	"bytes"
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"paperflow/internal/models"
	"paperflow/internal/util"
)

// FlatStore keeps all vectors in memory and persists them as a pair of
// companion files under dir: <name>.vec (gob-encoded vectors) and
// <name>_meta.json (chunk metadata). Row i of one file always describes
// row i of the other.
type FlatStore struct {
	mu     sync.RWMutex
	dir    string
	name   string
	dim    int
	vecs   [][]float32
	chunks []models.Chunk
}

type vectorFile struct {
	Dim     int
	Vectors [][]float32
}

// OpenFlatStore loads an existing index from dir or starts an empty one
// when neither companion file exists. A half-present or inconsistent pair
// returns ErrIndexCorrupt; the caller must rebuild from source documents.
func OpenFlatStore(dir, name string) (*FlatStore, error) {
	s := &FlatStore{dir: dir, name: name}
	if err := util.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	vecPath := s.vectorPath()
	metaPath := s.metaPath()
	vecData, vecErr := os.ReadFile(vecPath)
	metaData, metaErr := os.ReadFile(metaPath)

	vecMissing := errors.Is(vecErr, os.ErrNotExist)
	metaMissing := errors.Is(metaErr, os.ErrNotExist)
	if vecMissing && metaMissing {
		return s, nil
	}
	if vecErr != nil || metaErr != nil {
		return nil, fmt.Errorf("%w: companion files for %q incomplete (vectors: %v, metadata: %v)",
			util.ErrIndexCorrupt, name, vecErr, metaErr)
	}

	var vf vectorFile
	if err := gob.NewDecoder(bytes.NewReader(vecData)).Decode(&vf); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", util.ErrIndexCorrupt, vecPath, err)
	}
	var chunks []models.Chunk
	if err := json.Unmarshal(metaData, &chunks); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", util.ErrIndexCorrupt, metaPath, err)
	}
	if len(vf.Vectors) != len(chunks) {
		return nil, fmt.Errorf("%w: %d vectors but %d metadata entries", util.ErrIndexCorrupt, len(vf.Vectors), len(chunks))
	}
	for i, v := range vf.Vectors {
		if len(v) != vf.Dim {
			return nil, fmt.Errorf("%w: vector %d has width %d, index dimension is %d", util.ErrIndexCorrupt, i, len(v), vf.Dim)
		}
	}
	s.dim = vf.Dim
	s.vecs = vf.Vectors
	s.chunks = chunks
	return s, nil
}

func (s *FlatStore) vectorPath() string {
	return filepath.Join(s.dir, s.name+".vec")
}

func (s *FlatStore) metaPath() string {
	return filepath.Join(s.dir, s.name+"_meta.json")
}

// Append adds vectors and chunks together and persists both companion
// files. On any failure the in-memory state rolls back to the previous
// consistent snapshot.
func (s *FlatStore) Append(ctx context.Context, vectors [][]float32, chunks []models.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("append: %d vectors for %d chunks", len(vectors), len(chunks))
	}
	if len(vectors) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	dim := s.dim
	if dim == 0 {
		dim = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has width %d, index dimension is %d", util.ErrDimensionMismatch, i, len(v), dim)
		}
	}

	prevVecs, prevChunks, prevDim := s.vecs, s.chunks, s.dim
	s.dim = dim
	s.vecs = append(s.vecs[:len(s.vecs):len(s.vecs)], vectors...)
	s.chunks = append(s.chunks[:len(s.chunks):len(s.chunks)], chunks...)
	if err := s.persistLocked(); err != nil {
		s.vecs, s.chunks, s.dim = prevVecs, prevChunks, prevDim
		return err
	}
	return nil
}

func (s *FlatStore) persistLocked() error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(vectorFile{Dim: s.dim, Vectors: s.vecs}); err != nil {
		return fmt.Errorf("encode vectors: %w", err)
	}
	tmp := s.vectorPath() + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write vectors: %w", err)
	}
	if err := os.Rename(tmp, s.vectorPath()); err != nil {
		return fmt.Errorf("replace vectors: %w", err)
	}
	if err := util.WriteJSONAtomic(s.metaPath(), s.chunks); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

func (s *FlatStore) Search(ctx context.Context, vector []float32, k int) ([]models.ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.vecs) == 0 {
		return nil, nil
	}
	if len(vector) != s.dim {
		return nil, fmt.Errorf("%w: query width %d, index dimension is %d", util.ErrDimensionMismatch, len(vector), s.dim)
	}
	hits := make([]models.ScoredChunk, 0, len(s.vecs))
	for i, v := range s.vecs {
		hits = append(hits, models.ScoredChunk{Chunk: s.chunks[i], Distance: l2Distance(vector, v)})
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Distance < hits[b].Distance })
	if k > 0 && k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

func (s *FlatStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

// Dimension reports the fixed vector width, 0 while the index is empty.
func (s *FlatStore) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}
