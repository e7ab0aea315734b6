package chunk

import (
	storage_errors "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/storage_errors"
)

// Split cuts data into consecutive chunks of at most maxChunkSize bytes.
// Chunk data aliases the input slice.
func Split(fileID string, data []byte, maxChunkSize int) ([]Chunk, error) {
	if fileID == "" {
		return nil, storage_errors.NewValidationError("fileID", "must not be empty")
	}
	if len(data) == 0 {
		return nil, storage_errors.NewValidationError("data", "must not be empty")
	}
	if maxChunkSize <= 0 {
		return nil, storage_errors.NewValidationError("maxChunkSize", "must be positive")
	}

	count := (len(data) + maxChunkSize - 1) / maxChunkSize
	chunks := make([]Chunk, 0, count)

	for seq, offset := 0, 0; offset < len(data); seq++ {
		end := offset + maxChunkSize
		if end > len(data) {
			end = len(data)
		}

		slice := data[offset:end]
		chunks = append(chunks, Chunk{
			Descriptor: Descriptor{
				ChunkID:  ChunkID(fileID, seq),
				FileID:   fileID,
				Sequence: seq,
				Size:     int64(len(slice)),
				Hash:     Hash(slice),
			},
			Data: slice,
		})
		offset = end
	}

	return chunks, nil
}

// Reassemble concatenates chunks that must be supplied in strictly
// increasing, gap-free sequence order starting at zero.
func Reassemble(chunks []Chunk) ([]byte, error) {
	if len(chunks) == 0 {
		return nil, storage_errors.NewValidationError("chunks", "must not be empty")
	}

	var total int64
	for i, c := range chunks {
		if c.Sequence != i {
			return nil, &storage_errors.SequenceGapError{Expected: i, Got: c.Sequence}
		}
		if int64(len(c.Data)) != c.Size {
			return nil, storage_errors.NewValidationError("chunks", "data length does not match descriptor size for "+c.ChunkID)
		}
		total += c.Size
	}

	out := make([]byte, 0, total)
	for _, c := range chunks {
		out = append(out, c.Data...)
	}
	return out, nil
}
