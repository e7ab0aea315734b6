package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/chunk"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/log_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/metadata_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/object_store"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Path     string
	LogLevel logger.LogLevel
}

// SQLiteMetadataService persists file records and placements with gorm on
// a pure Go SQLite driver.
type SQLiteMetadataService struct {
	db   *gorm.DB
	path string
	ls   log_service.LogService
}

func NewSQLiteMetadataService(ctx context.Context, cfg Config, ls log_service.LogService) (*SQLiteMetadataService, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if cfg.LogLevel == 0 {
		cfg.LogLevel = logger.Silent
	}

	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: logger.Default.LogMode(cfg.LogLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	s := &SQLiteMetadataService{db: db, path: cfg.Path, ls: ls}
	if err := s.connect(ctx); err != nil {
		return nil, err
	}
	if err := s.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to migrate sqlite database: %w", err)
	}

	ls.Info(log_service.LogEvent{
		Message:  "SQLite metadata store ready",
		Metadata: map[string]any{"path": cfg.Path},
	})
	return s, nil
}

func (s *SQLiteMetadataService) connect(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return sqlDB.PingContext(ctx)
}

func (s *SQLiteMetadataService) migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&fileRow{}, &chunkRow{}, &placementRow{})
}

func (s *SQLiteMetadataService) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (s *SQLiteMetadataService) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}

func (s *SQLiteMetadataService) SaveFileRecord(ctx context.Context, record metadata_service.FileRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&fileRow{}).Where("file_id = ?", record.FileID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return metadata_service.ErrFileAlreadyExists
		}

		row := fileRow{
			FileID:            record.FileID,
			Filename:          record.Filename,
			Size:              record.Size,
			ReplicationFactor: record.ReplicationFactor,
			Checksum:          record.Checksum,
			CreatedAt:         record.CreatedAt.UTC(),
			AccessCount:       record.AccessCount,
		}
		if !record.LastAccessedAt.IsZero() {
			t := record.LastAccessedAt.UTC()
			row.LastAccessedAt = &t
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}

		chunks := make([]chunkRow, len(record.Chunks))
		for i, c := range record.Chunks {
			chunks[i] = chunkRow{ChunkID: c.ChunkID, FileID: c.FileID, Sequence: c.Sequence, Size: c.Size, Hash: c.Hash}
		}
		return tx.Create(&chunks).Error
	})
	if err != nil {
		if !errors.Is(err, metadata_service.ErrFileAlreadyExists) {
			s.ls.Error(log_service.LogEvent{
				Message:  "Failed to save file record",
				Metadata: map[string]any{"fileID": record.FileID, "error": err.Error()},
			})
		}
		return err
	}
	return nil
}

func (s *SQLiteMetadataService) LoadFileRecord(ctx context.Context, fileID string) (*metadata_service.FileRecord, error) {
	var row fileRow
	err := s.db.WithContext(ctx).Where("file_id = ?", fileID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, metadata_service.ErrFileNotFound
		}
		return nil, fmt.Errorf("%w: %v", metadata_service.ErrMetadataUnavailable, err)
	}

	var chunks []chunkRow
	if err := s.db.WithContext(ctx).Where("file_id = ?", fileID).Order("sequence asc").Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", metadata_service.ErrMetadataUnavailable, err)
	}

	record := toRecord(row, chunks)
	return &record, nil
}

func toRecord(row fileRow, chunks []chunkRow) metadata_service.FileRecord {
	record := metadata_service.FileRecord{
		FileID:            row.FileID,
		Filename:          row.Filename,
		Size:              row.Size,
		ReplicationFactor: row.ReplicationFactor,
		Checksum:          row.Checksum,
		CreatedAt:         row.CreatedAt,
		AccessCount:       row.AccessCount,
		Chunks:            make([]chunk.Descriptor, len(chunks)),
	}
	if row.LastAccessedAt != nil {
		record.LastAccessedAt = *row.LastAccessedAt
	}
	for i, c := range chunks {
		record.Chunks[i] = chunk.Descriptor{ChunkID: c.ChunkID, FileID: c.FileID, Sequence: c.Sequence, Size: c.Size, Hash: c.Hash}
	}
	return record
}

func (s *SQLiteMetadataService) ListFileRecords(ctx context.Context) ([]metadata_service.FileRecord, error) {
	var rows []fileRow
	if err := s.db.WithContext(ctx).Order("created_at asc, file_id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", metadata_service.ErrMetadataUnavailable, err)
	}

	var chunks []chunkRow
	if err := s.db.WithContext(ctx).Order("file_id asc, sequence asc").Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", metadata_service.ErrMetadataUnavailable, err)
	}
	byFile := make(map[string][]chunkRow, len(rows))
	for _, c := range chunks {
		byFile[c.FileID] = append(byFile[c.FileID], c)
	}

	out := make([]metadata_service.FileRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, toRecord(row, byFile[row.FileID]))
	}
	return out, nil
}

func (s *SQLiteMetadataService) DeleteFile(ctx context.Context, fileID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("file_id = ?", fileID).Delete(&fileRow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return metadata_service.ErrFileNotFound
		}
		if err := tx.Where("file_id = ?", fileID).Delete(&chunkRow{}).Error; err != nil {
			return err
		}
		return tx.Where("file_id = ?", fileID).Delete(&placementRow{}).Error
	})
}

func (s *SQLiteMetadataService) RecordAccess(ctx context.Context, fileID string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&fileRow{}).Where("file_id = ?", fileID).Updates(map[string]any{
		"access_count":     gorm.Expr("access_count + ?", 1),
		"last_accessed_at": at.UTC(),
	})
	if res.Error != nil {
		return fmt.Errorf("%w: %v", metadata_service.ErrMetadataUnavailable, res.Error)
	}
	if res.RowsAffected == 0 {
		return metadata_service.ErrFileNotFound
	}
	return nil
}

func (s *SQLiteMetadataService) SavePlacement(ctx context.Context, fileID, chunkID string, entries []metadata_service.PlacementEntry) error {
	if err := metadata_service.ValidateEntries(chunkID, entries); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chunk_id = ?", chunkID).Delete(&placementRow{}).Error; err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}

		rows := make([]placementRow, len(entries))
		for i, e := range entries {
			created := e.CreatedAt
			if created.IsZero() {
				created = time.Now()
			}
			rows[i] = placementRow{
				FileID:    fileID,
				ChunkID:   chunkID,
				NodeID:    e.NodeID,
				Handle:    string(e.Handle),
				Position:  i,
				CreatedAt: created.UTC(),
			}
		}
		return tx.Create(&rows).Error
	})
}

func (s *SQLiteMetadataService) LoadPlacement(ctx context.Context, fileID string) (metadata_service.Placement, error) {
	var rows []placementRow
	err := s.db.WithContext(ctx).
		Where("file_id = ?", fileID).
		Order("chunk_id asc, position asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", metadata_service.ErrMetadataUnavailable, err)
	}

	p := make(metadata_service.Placement)
	for _, r := range rows {
		p[r.ChunkID] = append(p[r.ChunkID], metadata_service.PlacementEntry{
			NodeID:    r.NodeID,
			Handle:    object_store.Handle(r.Handle),
			CreatedAt: r.CreatedAt,
		})
	}
	return p, nil
}

func (s *SQLiteMetadataService) RemoveNodeFromPlacements(ctx context.Context, nodeID string) ([]string, error) {
	var affected []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&placementRow{}).
			Where("node_id = ?", nodeID).
			Distinct("file_id").
			Order("file_id asc").
			Pluck("file_id", &affected).Error; err != nil {
			return err
		}
		return tx.Where("node_id = ?", nodeID).Delete(&placementRow{}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", metadata_service.ErrMetadataUnavailable, err)
	}
	return affected, nil
}

var _ metadata_service.MetadataService = (*SQLiteMetadataService)(nil)
