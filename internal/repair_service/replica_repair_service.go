package repair_service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/filelock"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/log_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/metadata_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/metrics"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/placement_service"
	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/reconstructor"
	storage_errors "github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/storage_errors"
	"golang.org/x/sync/errgroup"
)

const DefaultRepairParallelism = 2

type ReplicaRepairService struct {
	metadata    metadata_service.MetadataService
	placement   placement_service.PlacementService
	replicas    *reconstructor.Reconstructor
	locks       *filelock.Locker
	ls          log_service.LogService
	metrics     *metrics.StorageMetrics
	parallelism int
}

func NewReplicaRepairService(
	metadata metadata_service.MetadataService,
	placement placement_service.PlacementService,
	replicas *reconstructor.Reconstructor,
	locks *filelock.Locker,
	ls log_service.LogService,
	m *metrics.StorageMetrics,
	parallelism int,
) *ReplicaRepairService {
	if parallelism <= 0 {
		parallelism = DefaultRepairParallelism
	}
	return &ReplicaRepairService{
		metadata:    metadata,
		placement:   placement,
		replicas:    replicas,
		locks:       locks,
		ls:          ls,
		metrics:     m,
		parallelism: parallelism,
	}
}

func (rs *ReplicaRepairService) Repair(ctx context.Context, fileID string) (Report, error) {
	report := Report{FileID: fileID}
	if fileID == "" {
		return report, storage_errors.NewValidationError("fileID", "must not be empty")
	}

	unlock := rs.locks.Lock(fileID)
	defer unlock()

	rs.ls.Info(log_service.LogEvent{
		Message:  "Repairing file",
		Metadata: map[string]any{"fileID": fileID},
	})

	record, err := rs.metadata.LoadFileRecord(ctx, fileID)
	if err != nil {
		return report, err
	}
	placement, err := rs.metadata.LoadPlacement(ctx, fileID)
	if err != nil {
		return report, err
	}

	for _, desc := range record.Chunks {
		// Stop between chunks; a chunk already being copied is finished and
		// recorded below.
		if err := ctx.Err(); err != nil {
			rs.ls.Warn(log_service.LogEvent{
				Message:  "Repair cancelled",
				Metadata: map[string]any{"fileID": fileID, "repaired": len(report.Repaired)},
			})
			return report, err
		}

		entries := placement[desc.ChunkID]
		verified := rs.replicas.VerifiedReplicas(ctx, desc, entries)
		// A read cut short by cancellation says nothing about loss.
		if err := ctx.Err(); err != nil {
			rs.ls.Warn(log_service.LogEvent{
				Message:  "Repair cancelled while reading replicas",
				Metadata: map[string]any{"fileID": fileID, "chunkID": desc.ChunkID, "repaired": len(report.Repaired)},
			})
			return report, err
		}
		surviving := len(verified)

		if surviving >= record.ReplicationFactor {
			continue
		}
		if surviving == 0 {
			report.Unrepairable = append(report.Unrepairable, desc.ChunkID)
			rs.ls.Error(log_service.LogEvent{
				Message:  "Chunk has no surviving verified replica",
				Metadata: map[string]any{"fileID": fileID, "chunkID": desc.ChunkID, "entries": len(entries)},
			})
			continue
		}

		exclude := make(map[string]struct{}, len(entries))
		for _, e := range entries {
			exclude[e.NodeID] = struct{}{}
		}
		need := record.ReplicationFactor - surviving
		targets := rs.placement.SelectTargets(need, exclude)

		var added []metadata_service.PlacementEntry
		if len(targets) > 0 {
			added, _ = rs.placement.Replicate(ctx, desc.ChunkID, verified[0].Data, targets)
		}

		if len(added) > 0 {
			next := make([]metadata_service.PlacementEntry, 0, len(entries)+len(added))
			next = append(next, entries...)
			next = append(next, added...)
			if err := rs.metadata.SavePlacement(context.WithoutCancel(ctx), fileID, desc.ChunkID, next); err != nil {
				rs.ls.Error(log_service.LogEvent{
					Message:  "Failed to record repaired placement",
					Metadata: map[string]any{"fileID": fileID, "chunkID": desc.ChunkID, "error": err.Error()},
				})
				return report, fmt.Errorf("record placement of %s: %w", desc.ChunkID, err)
			}
			report.Repaired = append(report.Repaired, desc.ChunkID)
			report.Writes += len(added)
		}

		if surviving+len(added) < record.ReplicationFactor {
			report.StillUnderReplicated = append(report.StillUnderReplicated, desc.ChunkID)
			rs.ls.Warn(log_service.LogEvent{
				Message: "Chunk still under-replicated after repair",
				Metadata: map[string]any{
					"fileID":   fileID,
					"chunkID":  desc.ChunkID,
					"replicas": surviving + len(added),
					"desired":  record.ReplicationFactor,
				},
			})
		}
	}

	rs.metrics.RecordRepair(len(report.Repaired), len(report.Unrepairable))

	if len(report.Unrepairable) > 0 {
		return report, &storage_errors.RepairError{FileID: fileID, ChunkIDs: report.Unrepairable}
	}

	rs.ls.Info(log_service.LogEvent{
		Message: "File repaired",
		Metadata: map[string]any{
			"fileID":          fileID,
			"repaired":        len(report.Repaired),
			"writes":          report.Writes,
			"underReplicated": len(report.StillUnderReplicated),
		},
	})
	return report, nil
}

// RepairAll repairs every file and joins the per-file failures. Reports are
// returned for every file, including failed ones, in listing order.
func (rs *ReplicaRepairService) RepairAll(ctx context.Context) ([]Report, error) {
	records, err := rs.metadata.ListFileRecords(ctx)
	if err != nil {
		return nil, err
	}

	reports := make([]Report, len(records))
	errs := make([]error, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rs.parallelism)
	for i, rec := range records {
		g.Go(func() error {
			reports[i], errs[i] = rs.Repair(gctx, rec.FileID)
			if errors.Is(errs[i], storage_errors.ErrNotFound) {
				// deleted while the pass was running
				errs[i] = nil
			}
			return nil
		})
	}
	_ = g.Wait()

	return reports, errors.Join(errs...)
}

var _ RepairService = (*ReplicaRepairService)(nil)
