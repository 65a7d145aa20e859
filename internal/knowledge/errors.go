package knowledge

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ValidationError reports malformed input. Never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// EmbeddingError wraps an upstream embedding-provider failure. The enclosing
// operation is aborted; callers may retry with backoff.
type EmbeddingError struct {
	Err error
}

func (e *EmbeddingError) Error() string { return "embedding provider: " + e.Err.Error() }
func (e *EmbeddingError) Unwrap() error { return e.Err }

// StorageError wraps a memory-store failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("store %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// EdgeFailure records one failed edge insert within a batch.
type EdgeFailure struct {
	TargetID uuid.UUID
	Err      error
}

func (e EdgeFailure) Error() string { return fmt.Sprintf("target %s: %v", e.TargetID, e.Err) }
func (e EdgeFailure) Unwrap() error { return e.Err }

// PartialEdgeFailure summarizes per-edge failures in an otherwise successful
// edge batch. Edges are best-effort enrichment: this error is non-fatal and
// is surfaced alongside the created record, never instead of it.
type PartialEdgeFailure struct {
	OwnerID  string
	SourceID uuid.UUID
	Failures []EdgeFailure
}

func (e *PartialEdgeFailure) Error() string {
	targets := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		targets[i] = f.TargetID.String()
	}
	return fmt.Sprintf("%d edge insert(s) failed for source %s: targets %s",
		len(e.Failures), e.SourceID, strings.Join(targets, ", "))
}
