package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/communication"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/metadata_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/node_registry"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/object_store"
	storage_errors "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/storage_errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   communication.SandCode
		kind   string
		status int
	}{
		{
			name:   "nil",
			err:    nil,
			code:   communication.CodeOK,
			status: http.StatusOK,
		},
		{
			name:   "validation",
			err:    storage_errors.NewValidationError("replication_factor", "must be at least 1"),
			code:   communication.CodeBadRequest,
			kind:   KindValidation,
			status: http.StatusBadRequest,
		},
		{
			name:   "sequence gap",
			err:    &storage_errors.SequenceGapError{Expected: 1, Got: 3},
			code:   communication.CodeBadRequest,
			kind:   KindValidation,
			status: http.StatusBadRequest,
		},
		{
			name:   "invalid object key",
			err:    fmt.Errorf("put ../x: %w", object_store.ErrInvalidKey),
			code:   communication.CodeBadRequest,
			kind:   KindValidation,
			status: http.StatusBadRequest,
		},
		{
			name:   "file not found",
			err:    fmt.Errorf("file f1: %w", storage_errors.ErrNotFound),
			code:   communication.CodeNotFound,
			kind:   KindNotFound,
			status: http.StatusNotFound,
		},
		{
			name:   "node not found",
			err:    node_registry.ErrNodeNotFound,
			code:   communication.CodeNotFound,
			kind:   KindNotFound,
			status: http.StatusNotFound,
		},
		{
			name:   "duplicate file",
			err:    metadata_service.ErrFileAlreadyExists,
			code:   communication.CodeAlreadyExists,
			kind:   KindAlreadyExists,
			status: http.StatusConflict,
		},
		{
			name:   "no active nodes",
			err:    storage_errors.ErrNoActiveNodes,
			code:   communication.CodeUnavailable,
			kind:   KindNoActiveNodes,
			status: http.StatusServiceUnavailable,
		},
		{
			name:   "placement",
			err:    &storage_errors.PlacementError{ChunkID: "f1-000000"},
			code:   communication.CodeUnavailable,
			kind:   KindPlacement,
			status: http.StatusServiceUnavailable,
		},
		{
			name:   "store unavailable",
			err:    object_store.ErrStoreUnavailable,
			code:   communication.CodeUnavailable,
			kind:   KindUnavailable,
			status: http.StatusServiceUnavailable,
		},
		{
			name:   "missing chunks",
			err:    &storage_errors.MissingChunkError{FileID: "f1", ChunkIDs: []string{"f1-000001"}},
			code:   communication.CodeDataLoss,
			kind:   KindMissingChunks,
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "unrepairable",
			err:    &storage_errors.RepairError{FileID: "f1", ChunkIDs: []string{"f1-000001"}},
			code:   communication.CodeDataLoss,
			kind:   KindUnrepairable,
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "integrity",
			err:    &storage_errors.IntegrityError{FileID: "f1", Expected: "aa", Actual: "bb"},
			code:   communication.CodeDataLoss,
			kind:   KindIntegrity,
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "unknown",
			err:    errors.New("disk on fire"),
			code:   communication.CodeInternal,
			kind:   KindInternal,
			status: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := CodeFor(tt.err)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.status, HTTPStatus(code))
			if tt.err != nil {
				assert.Equal(t, tt.kind, KindOf(tt.err))
			}
		})
	}
}

func TestNewErrorBody_CarriesKind(t *testing.T) {
	body := NewErrorBody(&storage_errors.MissingChunkError{FileID: "f1", ChunkIDs: []string{"f1-000002"}})
	assert.Equal(t, KindMissingChunks, body.Kind)
	assert.Contains(t, body.Error, "f1-000002")
}
