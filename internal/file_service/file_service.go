package file_service

import (
	"context"
	"time"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/node_registry"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/reconstructor"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/repair_service"
)

type UploadResult struct {
	FileID              string `json:"fileId"`
	Filename            string `json:"filename"`
	Size                int64  `json:"size"`
	Checksum            string `json:"checksum"`
	ChunkCount          int    `json:"chunkCount"`
	ReplicationFactor   int    `json:"replicationFactor"`
	AchievedReplication int    `json:"achievedReplication"`
	// UnderReplicatedChunks lists chunks stored with fewer replicas than
	// requested. The upload still succeeded.
	UnderReplicatedChunks []string `json:"underReplicatedChunks,omitempty"`
}

type FileStatus struct {
	FileID              string                      `json:"fileId"`
	Filename            string                      `json:"filename"`
	Size                int64                       `json:"size"`
	CreatedAt           time.Time                   `json:"createdAt"`
	ChunkCount          int                         `json:"chunkCount"`
	ReplicationFactor   int                         `json:"replicationFactor"`
	AchievedReplication int                         `json:"achievedReplication"`
	HealthyChunks       int                         `json:"healthyChunks"`
	MissingChunks       []string                    `json:"missingChunks,omitempty"`
	Reconstructable     bool                        `json:"reconstructable"`
	FailedNodes         []string                    `json:"failedNodes,omitempty"`
	AccessCount         int64                       `json:"accessCount"`
	LastAccessedAt      time.Time                   `json:"lastAccessedAt,omitempty"`
	Chunks              []reconstructor.ChunkHealth `json:"chunks"`
}

// FileSummary is one row of the file listing.
type FileSummary struct {
	FileID              string    `json:"fileId"`
	Filename            string    `json:"filename"`
	Size                int64     `json:"size"`
	CreatedAt           time.Time `json:"createdAt"`
	ReplicationFactor   int       `json:"replicationFactor"`
	TotalChunks         int       `json:"totalChunks"`
	AvailableChunks     int       `json:"availableChunks"`
	AchievedReplication int       `json:"achievedReplication"`
	Reconstructable     bool      `json:"reconstructable"`
	FailedNodes         []string  `json:"failedNodes,omitempty"`
	AccessCount         int64     `json:"accessCount"`
}

type DecommissionResult struct {
	NodeID        string                  `json:"nodeId"`
	AffectedFiles []string                `json:"affectedFiles"`
	Reports       []repair_service.Report `json:"reports"`
}

type FileService interface {
	Upload(ctx context.Context, data []byte, filename string, replicationFactor int) (UploadResult, error)
	Download(ctx context.Context, fileID string) ([]byte, error)
	Repair(ctx context.Context, fileID string) (repair_service.Report, error)
	RepairAll(ctx context.Context) ([]repair_service.Report, error)
	Status(ctx context.Context, fileID string) (FileStatus, error)
	List(ctx context.Context) ([]FileSummary, error)
	Delete(ctx context.Context, fileID string) error

	Nodes() []node_registry.NodeRecord
	MarkNodeFailed(ctx context.Context, nodeID string) error
	// DecommissionNode removes a node for good. Its placement entries are
	// dropped and every affected file is repaired.
	DecommissionNode(ctx context.Context, nodeID string) (DecommissionResult, error)
}
