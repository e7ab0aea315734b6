package server

import (
	"errors"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/object_store"
	storage_errors "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/storage_errors"
)

// Message Type Constants
const (
	// File Operations
	MsgUpload     = "upload"
	MsgDownload   = "download"
	MsgStatus     = "status"
	MsgRepair     = "repair"
	MsgRepairAll  = "repair_all"
	MsgListFiles  = "list_files"
	MsgDeleteFile = "delete_file"

	// Node Operations
	MsgListNodes        = "list_nodes"
	MsgMarkNodeFailed   = "mark_node_failed"
	MsgDecommissionNode = "decommission_node"
	MsgHeartbeat        = "heartbeat"

	// Object Operations, served for nodes whose stores live in this process
	MsgPutObject    = "put_object"
	MsgGetObject    = "get_object"
	MsgObjectExists = "object_exists"
	MsgDeleteObject = "delete_object"
	MsgObjectHealth = "object_health"
)

// --- Payload Structs ---

type UploadRequest struct {
	Filename          string `json:"filename"`
	Data              []byte `json:"data"`
	ReplicationFactor int    `json:"replicationFactor"`
}

type FileRequest struct {
	FileID string `json:"fileId"`
}

type NodeRequest struct {
	NodeID string `json:"nodeId"`
}

type EmptyRequest struct{}

// ObjectRequest addresses one object on one node. Key is set for puts,
// Handle for everything else.
type ObjectRequest struct {
	NodeID string              `json:"nodeId"`
	Key    string              `json:"key,omitempty"`
	Handle object_store.Handle `json:"handle,omitempty"`
	Data   []byte              `json:"data,omitempty"`
}

type PutObjectResponse struct {
	Handle object_store.Handle `json:"handle"`
}

type ObjectExistsResponse struct {
	Exists bool `json:"exists"`
}

// ErrorHeader carries an ErrorBody when the response body holds a partial
// result instead.
const ErrorHeader = "error"

// ErrorBody is the JSON body of every non-OK response. ChunkIDs is set for
// errors that name chunks.
type ErrorBody struct {
	Error    string   `json:"error"`
	Kind     string   `json:"kind"`
	FileID   string   `json:"fileId,omitempty"`
	ChunkIDs []string `json:"chunkIds,omitempty"`
}

func NewErrorBody(err error) ErrorBody {
	body := ErrorBody{Error: err.Error(), Kind: KindOf(err)}

	var missing *storage_errors.MissingChunkError
	var repair *storage_errors.RepairError
	var placement *storage_errors.PlacementError
	var integrity *storage_errors.IntegrityError
	switch {
	case errors.As(err, &missing):
		body.FileID, body.ChunkIDs = missing.FileID, missing.ChunkIDs
	case errors.As(err, &repair):
		body.FileID, body.ChunkIDs = repair.FileID, repair.ChunkIDs
	case errors.As(err, &placement):
		body.ChunkIDs = []string{placement.ChunkID}
	case errors.As(err, &integrity):
		body.FileID = integrity.FileID
		if integrity.ChunkID != "" {
			body.ChunkIDs = []string{integrity.ChunkID}
		}
	}
	return body
}
