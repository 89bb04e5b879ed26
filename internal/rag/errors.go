package rag

import (
	"errors"
	"fmt"
)

// ErrRetrievalUnavailable is returned by Search when the vector store
// cannot be queried. Answer degrades it to an empty result set.
var ErrRetrievalUnavailable = errors.New("retrieval unavailable")

// GenerationError is returned by Answer when generation failed on the
// primary model and, for transient failures, on the fallback model too.
type GenerationError struct {
	Model string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed on model %s: %v", e.Model, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
