package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DefaultMaxChunkSize is 1 MiB.
const DefaultMaxChunkSize = 1 << 20

// Descriptor identifies one chunk of a file. It never changes after upload.
type Descriptor struct {
	ChunkID  string `json:"chunkId"`
	FileID   string `json:"fileId"`
	Sequence int    `json:"sequence"`
	Size     int64  `json:"size"`
	Hash     string `json:"hash"`
}

type Chunk struct {
	Descriptor
	Data []byte
}

// ChunkID is positional: the same file id and index always give the same id.
func ChunkID(fileID string, sequence int) string {
	return fmt.Sprintf("%s-%06d", fileID, sequence)
}

// Hash returns the hex encoded SHA-256 of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Verify reports whether data matches the descriptor's length and hash.
func Verify(desc Descriptor, data []byte) bool {
	return int64(len(data)) == desc.Size && Hash(data) == desc.Hash
}
