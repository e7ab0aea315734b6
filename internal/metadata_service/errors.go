package metadata_service

import (
	"errors"
	"fmt"

	storage_errors "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/storage_errors"
)

var (
	ErrFileAlreadyExists    = errors.New("file already exists")
	ErrDuplicateReplicaNode = errors.New("duplicate replica node")
	ErrMetadataUnavailable  = errors.New("metadata store unavailable")

	// ErrFileNotFound matches storage_errors.ErrNotFound with errors.Is.
	ErrFileNotFound = fmt.Errorf("file %w", storage_errors.ErrNotFound)
)
