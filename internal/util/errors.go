package util

import "errors"

var (
	// ErrDocumentUnreadable marks a PDF that cannot be opened at all. The
	// caller records it per file and continues with the rest of the batch.
	ErrDocumentUnreadable = errors.New("document unreadable")

	// ErrNoExtractableText marks a PDF that opened fine but yielded no text.
	ErrNoExtractableText = errors.New("no extractable text found in PDF")

	// ErrEmbeddingUnavailable is returned once embedding retries are
	// exhausted. It aborts the current index add; the index keeps its last
	// consistent state.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrDimensionMismatch is fatal: a vector of the wrong width would break
	// the vector/metadata alignment invariant.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrIndexCorrupt is returned at load time when the companion files
	// disagree or are missing. The index must be rebuilt from sources.
	ErrIndexCorrupt = errors.New("vector index corrupt")

	// ErrAnswerGeneration surfaces a failed generation call. Not retried.
	ErrAnswerGeneration = errors.New("answer generation failed")

	// ErrReferenceResolution marks a reference no source could resolve.
	ErrReferenceResolution = errors.New("reference resolution failed")
)
