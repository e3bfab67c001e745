package search

import "errors"

var (
	// ErrPassageRepositoryRequired is returned when a passage repository is not provided.
	ErrPassageRepositoryRequired = errors.New("passage repository required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrInvalidMinSimilarity is returned when the similarity floor is outside [0,1].
	ErrInvalidMinSimilarity = errors.New("min similarity must be between 0 and 1")
)
