package sqlite

import "time"

type fileRow struct {
	FileID            string `gorm:"primaryKey"`
	Filename          string
	Size              int64
	ReplicationFactor int
	Checksum          string
	CreatedAt         time.Time
	AccessCount       int64
	LastAccessedAt    *time.Time
}

func (fileRow) TableName() string { return "files" }

type chunkRow struct {
	ChunkID  string `gorm:"primaryKey"`
	FileID   string `gorm:"index;not null"`
	Sequence int    `gorm:"not null"`
	Size     int64
	Hash     string
}

func (chunkRow) TableName() string { return "chunks" }

type placementRow struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	FileID    string `gorm:"index;not null"`
	ChunkID   string `gorm:"uniqueIndex:idx_chunk_node;not null"`
	NodeID    string `gorm:"uniqueIndex:idx_chunk_node;index;not null"`
	Handle    string
	Position  int
	CreatedAt time.Time
}

func (placementRow) TableName() string { return "placements" }
