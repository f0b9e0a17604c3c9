package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidChunking signals bad chunk size / overlap parameters.
	ErrInvalidChunking = errors.New("invalid chunking parameters")
	// ErrEmbeddingRejected signals that the provider rejected the input (auth, malformed request).
	ErrEmbeddingRejected = errors.New("embedding rejected")
	// ErrEmbeddingUnavailable signals a transient provider failure that exhausted retries.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
	// ErrStoreWriteFailed signals a failed vector store write.
	ErrStoreWriteFailed = errors.New("store write failed")
	// ErrStoreQueryFailed signals a failed vector store query.
	ErrStoreQueryFailed = errors.New("store query failed")
	// ErrIngestionFailed signals a failed ingestion call.
	ErrIngestionFailed = errors.New("ingestion failed")
	// ErrRetrievalFailed signals a failed retrieval call.
	ErrRetrievalFailed = errors.New("retrieval failed")
	// ErrResetFailed signals a reset that could not complete; collection state is unspecified.
	ErrResetFailed = errors.New("reset failed")
	// ErrUnsupportedFormat signals an unrecognized document format.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrExtractionFailed signals that no text could be extracted from a document.
	ErrExtractionFailed = errors.New("text extraction failed")
	// ErrEmptyDocument signals a document with no extractable text.
	ErrEmptyDocument = errors.New("document contains no text")
)

// Stage labels identify which sub-step of a coordinator call failed.
const (
	StageChunking  = "chunking"
	StageEmbedding = "embedding"
	StageStore     = "store"
)

// StageError wraps an underlying cause with the coordinator stage that failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %s", e.Stage, e.Err.Error())
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError creates a stage-labelled error.
func NewStageError(stage string, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

// StageOf extracts the stage label from an error chain, or "" if absent.
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// BatchError wraps an embedding failure with the index of the batch that failed,
// so callers know which portion of a multi-batch call never completed.
type BatchError struct {
	BatchIndex int
	Err        error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch %d: %s", e.BatchIndex, e.Err.Error())
}

func (e *BatchError) Unwrap() error { return e.Err }

// IsTransient reports whether err is worth retrying by the caller.
func IsTransient(err error) bool {
	return errors.Is(err, ErrEmbeddingUnavailable) ||
		errors.Is(err, ErrStoreWriteFailed) ||
		errors.Is(err, ErrStoreQueryFailed)
}
