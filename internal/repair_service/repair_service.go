package repair_service

import "context"

// Report describes one repair pass over a file. Chunk ids appear in sequence
// order. A chunk can be both Repaired and StillUnderReplicated when some
// copies were added but not enough eligible nodes existed.
type Report struct {
	FileID               string   `json:"fileId"`
	Repaired             []string `json:"repaired"`
	Unrepairable         []string `json:"unrepairable"`
	StillUnderReplicated []string `json:"stillUnderReplicated"`
	Writes               int      `json:"writes"`
}

func (r Report) Healthy() bool {
	return len(r.Unrepairable) == 0 && len(r.StillUnderReplicated) == 0
}

type RepairService interface {
	// Repair restores the replication factor of every chunk of fileID. It
	// returns the report together with a *storage_errors.RepairError when
	// any chunk has no surviving verified replica.
	Repair(ctx context.Context, fileID string) (Report, error)
	// RepairAll runs Repair over every known file.
	RepairAll(ctx context.Context) ([]Report, error)
}
