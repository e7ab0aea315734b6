package object_store

import (
	"errors"
	"fmt"

	storage_errors "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/storage_errors"
)

var (
	ErrObjectWriteFailed  = errors.New("failed to write object")
	ErrObjectReadFailed   = errors.New("failed to read object")
	ErrObjectDeleteFailed = errors.New("failed to delete object")
	ErrInvalidKey         = errors.New("invalid object key")
	ErrStoreUnavailable   = errors.New("object store unavailable")

	// ErrObjectNotFound matches storage_errors.ErrNotFound with errors.Is.
	ErrObjectNotFound = fmt.Errorf("object %w", storage_errors.ErrNotFound)
)
