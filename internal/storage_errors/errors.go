// Package storage_errors holds the error kinds surfaced by the chunk storage
// engine. Every typed error unwraps to one of the sentinels below so callers
// can branch with errors.Is and still extract chunk ids with errors.As.
package storage_errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrSequenceGap     = errors.New("chunk sequence is not contiguous")
	ErrNoActiveNodes   = errors.New("no active nodes available")
	ErrPlacementFailed = errors.New("all replica writes failed")
	ErrMissingChunks   = errors.New("chunks have no verifiable replica")
	ErrIntegrity       = errors.New("integrity check failed")
	ErrUnrepairable    = errors.New("chunks are unrepairable")
	ErrNotFound        = errors.New("not found")
)

type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// SequenceGapError is a ValidationError raised when reassembly input skips,
// repeats or reorders a sequence index.
type SequenceGapError struct {
	Expected int
	Got      int
}

func (e *SequenceGapError) Error() string {
	return fmt.Sprintf("chunk sequence gap: expected index %d, got %d", e.Expected, e.Got)
}

func (e *SequenceGapError) Unwrap() []error { return []error{ErrSequenceGap, ErrValidation} }

type PlacementError struct {
	ChunkID string
	// Causes maps node id to the write failure seen on that node.
	Causes map[string]error
}

func (e *PlacementError) Error() string {
	if len(e.Causes) == 0 {
		return fmt.Sprintf("placement of chunk %s failed: no replica written", e.ChunkID)
	}
	nodes := make([]string, 0, len(e.Causes))
	for id := range e.Causes {
		nodes = append(nodes, id)
	}
	sort.Strings(nodes)
	parts := make([]string, 0, len(nodes))
	for _, id := range nodes {
		parts = append(parts, fmt.Sprintf("%s: %v", id, e.Causes[id]))
	}
	return fmt.Sprintf("placement of chunk %s failed on every target (%s)", e.ChunkID, strings.Join(parts, "; "))
}

func (e *PlacementError) Unwrap() error { return ErrPlacementFailed }

type MissingChunkError struct {
	FileID   string
	ChunkIDs []string
}

func (e *MissingChunkError) Error() string {
	return fmt.Sprintf("file %s: %d chunk(s) have no verifiable replica: %s",
		e.FileID, len(e.ChunkIDs), strings.Join(e.ChunkIDs, ", "))
}

func (e *MissingChunkError) Unwrap() error { return ErrMissingChunks }

// IntegrityError reports a hash mismatch. ChunkID is empty when the
// file-level checksum failed after every chunk verified.
type IntegrityError struct {
	FileID   string
	ChunkID  string
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	if e.ChunkID == "" {
		return fmt.Sprintf("file %s checksum mismatch: expected %s, got %s", e.FileID, e.Expected, e.Actual)
	}
	return fmt.Sprintf("chunk %s hash mismatch: expected %s, got %s", e.ChunkID, e.Expected, e.Actual)
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrity }

// RepairError reports chunks with zero surviving verified replicas. This is
// permanent loss, not a shortfall of eligible targets.
type RepairError struct {
	FileID   string
	ChunkIDs []string
}

func (e *RepairError) Error() string {
	return fmt.Sprintf("file %s: %d chunk(s) permanently lost: %s",
		e.FileID, len(e.ChunkIDs), strings.Join(e.ChunkIDs, ", "))
}

func (e *RepairError) Unwrap() error { return ErrUnrepairable }
