package repair_service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/log_service"
)

const DefaultRepairInterval = 30 * time.Second

type SchedulerStats struct {
	Cycles             uint64    `json:"cycles"`
	RepairedChunks     uint64    `json:"repairedChunks"`
	UnrepairableChunks uint64    `json:"unrepairableChunks"`
	Writes             uint64    `json:"writes"`
	LastCycle          time.Time `json:"lastCycle"`
}

// Scheduler runs RepairAll on an interval and whenever Trigger is called.
type Scheduler struct {
	repairs  RepairService
	interval time.Duration
	ls       log_service.LogService

	cycles       atomic.Uint64
	repaired     atomic.Uint64
	unrepairable atomic.Uint64
	writes       atomic.Uint64
	lastCycle    atomic.Int64

	trigger chan struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once

	// OnCycleComplete is called after each cycle with the running totals.
	OnCycleComplete func(stats SchedulerStats)
}

func NewScheduler(parent context.Context, repairs RepairService, interval time.Duration, ls log_service.LogService) *Scheduler {
	if interval <= 0 {
		interval = DefaultRepairInterval
	}
	ctx, cancel := context.WithCancel(parent)
	return &Scheduler{
		repairs:  repairs,
		interval: interval,
		ls:       ls,
		trigger:  make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go s.run()
	})
}

// Stop cancels the running cycle between chunks and waits for the loop to
// exit.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// Trigger asks for a cycle as soon as the current one, if any, ends.
// Repeated calls before that cycle starts coalesce.
func (s *Scheduler) Trigger() error {
	if s.ctx.Err() != nil {
		return ErrSchedulerStopped
	}
	select {
	case s.trigger <- struct{}{}:
	default:
	}
	return nil
}

func (s *Scheduler) Stats() SchedulerStats {
	st := SchedulerStats{
		Cycles:             s.cycles.Load(),
		RepairedChunks:     s.repaired.Load(),
		UnrepairableChunks: s.unrepairable.Load(),
		Writes:             s.writes.Load(),
	}
	if ns := s.lastCycle.Load(); ns != 0 {
		st.LastCycle = time.Unix(0, ns)
	}
	return st
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	s.ls.Info(log_service.LogEvent{
		Message:  "Repair scheduler started",
		Metadata: map[string]any{"interval": s.interval.String()},
	})

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.ls.Info(log_service.LogEvent{Message: "Repair scheduler stopped"})
			return
		case <-ticker.C:
			s.RunCycle(s.ctx)
		case <-s.trigger:
			s.RunCycle(s.ctx)
		}
	}
}

// RunCycle performs one repair pass over every file.
func (s *Scheduler) RunCycle(ctx context.Context) {
	started := time.Now()
	reports, err := s.repairs.RepairAll(ctx)

	var repaired, unrepairable, writes int
	for _, r := range reports {
		repaired += len(r.Repaired)
		unrepairable += len(r.Unrepairable)
		writes += r.Writes
	}

	s.cycles.Add(1)
	s.repaired.Add(uint64(repaired))
	s.unrepairable.Add(uint64(unrepairable))
	s.writes.Add(uint64(writes))
	s.lastCycle.Store(time.Now().UnixNano())

	meta := map[string]any{
		"files":        len(reports),
		"repaired":     repaired,
		"unrepairable": unrepairable,
		"writes":       writes,
		"duration":     time.Since(started).String(),
	}
	if err != nil {
		meta["error"] = err.Error()
		s.ls.Warn(log_service.LogEvent{Message: "Repair cycle finished with errors", Metadata: meta})
	} else {
		s.ls.Debug(log_service.LogEvent{Message: "Repair cycle finished", Metadata: meta})
	}

	if s.OnCycleComplete != nil {
		s.OnCycleComplete(s.Stats())
	}
}
