package server

import (
	"errors"
	"net/http"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/communication"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/metadata_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/node_registry"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/object_store"
	storage_errors "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/storage_errors"
)

var (
	ErrInvalidPayloadType = errors.New("invalid payload type for message")
	ErrUnknownMessageType = errors.New("unknown message type")
)

// CodeFor maps an engine error to a response code.
func CodeFor(err error) communication.SandCode {
	switch {
	case err == nil:
		return communication.CodeOK
	case errors.Is(err, storage_errors.ErrValidation),
		errors.Is(err, node_registry.ErrInvalidNodeID),
		errors.Is(err, object_store.ErrInvalidKey),
		errors.Is(err, ErrInvalidPayloadType),
		errors.Is(err, ErrUnknownMessageType):
		return communication.CodeBadRequest
	case errors.Is(err, storage_errors.ErrNotFound),
		errors.Is(err, node_registry.ErrNodeNotFound):
		return communication.CodeNotFound
	case errors.Is(err, metadata_service.ErrFileAlreadyExists),
		errors.Is(err, node_registry.ErrNodeAlreadyExists):
		return communication.CodeAlreadyExists
	case errors.Is(err, storage_errors.ErrNoActiveNodes),
		errors.Is(err, storage_errors.ErrPlacementFailed),
		errors.Is(err, metadata_service.ErrMetadataUnavailable),
		errors.Is(err, object_store.ErrStoreUnavailable):
		return communication.CodeUnavailable
	case errors.Is(err, storage_errors.ErrMissingChunks),
		errors.Is(err, storage_errors.ErrUnrepairable),
		errors.Is(err, storage_errors.ErrIntegrity):
		return communication.CodeDataLoss
	default:
		return communication.CodeInternal
	}
}

// Error kinds let clients rebuild the typed error behind a response.
const (
	KindValidation    = "validation"
	KindNotFound      = "not_found"
	KindAlreadyExists = "already_exists"
	KindNoActiveNodes = "no_active_nodes"
	KindPlacement     = "placement_failed"
	KindUnavailable   = "unavailable"
	KindMissingChunks = "missing_chunks"
	KindIntegrity     = "integrity"
	KindUnrepairable  = "unrepairable"
	KindInternal      = "internal"
)

func KindOf(err error) string {
	switch {
	case errors.Is(err, storage_errors.ErrValidation),
		errors.Is(err, node_registry.ErrInvalidNodeID),
		errors.Is(err, object_store.ErrInvalidKey),
		errors.Is(err, ErrInvalidPayloadType),
		errors.Is(err, ErrUnknownMessageType):
		return KindValidation
	case errors.Is(err, storage_errors.ErrNotFound),
		errors.Is(err, node_registry.ErrNodeNotFound):
		return KindNotFound
	case errors.Is(err, metadata_service.ErrFileAlreadyExists),
		errors.Is(err, node_registry.ErrNodeAlreadyExists):
		return KindAlreadyExists
	case errors.Is(err, storage_errors.ErrNoActiveNodes):
		return KindNoActiveNodes
	case errors.Is(err, storage_errors.ErrPlacementFailed):
		return KindPlacement
	case errors.Is(err, metadata_service.ErrMetadataUnavailable),
		errors.Is(err, object_store.ErrStoreUnavailable):
		return KindUnavailable
	case errors.Is(err, storage_errors.ErrUnrepairable):
		return KindUnrepairable
	case errors.Is(err, storage_errors.ErrMissingChunks):
		return KindMissingChunks
	case errors.Is(err, storage_errors.ErrIntegrity):
		return KindIntegrity
	default:
		return KindInternal
	}
}

// HTTPStatus maps a response code to the matching HTTP status.
func HTTPStatus(code communication.SandCode) int {
	switch code {
	case communication.CodeOK:
		return http.StatusOK
	case communication.CodeBadRequest:
		return http.StatusBadRequest
	case communication.CodeNotFound:
		return http.StatusNotFound
	case communication.CodeAlreadyExists:
		return http.StatusConflict
	case communication.CodeUnavailable:
		return http.StatusServiceUnavailable
	case communication.CodeFailedPrecondition:
		return http.StatusPreconditionFailed
	case communication.CodeDataLoss:
		// Unprocessable: the request is valid but the data cannot be served.
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
