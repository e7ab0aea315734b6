package node_registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Dhruvi-tech/Secure-Distributed-File-Backup-System/internal/log_service"
)

type Prober interface {
	ProbeAll(ctx context.Context) []StateChange
}

// Monitor runs ProbeAll on a fixed interval until stopped.
type Monitor struct {
	prober   Prober
	interval time.Duration
	ls       log_service.LogService

	rounds atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func NewMonitor(parent context.Context, prober Prober, interval time.Duration, ls log_service.LogService) *Monitor {
	ctx, cancel := context.WithCancel(parent)
	return &Monitor{
		prober:   prober,
		interval: interval,
		ls:       ls,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (m *Monitor) Start() {
	m.once.Do(func() {
		m.wg.Add(1)
		go m.run()
	})
}

func (m *Monitor) Stop() {
	m.cancel()
	m.wg.Wait()
}

// Rounds returns how many probe rounds have completed.
func (m *Monitor) Rounds() uint64 {
	return m.rounds.Load()
}

func (m *Monitor) run() {
	defer m.wg.Done()

	m.ls.Info(log_service.LogEvent{
		Message:  "Liveness monitor started",
		Metadata: map[string]any{"interval": m.interval.String()},
	})

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			m.ls.Info(log_service.LogEvent{Message: "Liveness monitor stopped"})
			return
		case <-ticker.C:
			changes := m.prober.ProbeAll(m.ctx)
			m.rounds.Add(1)
			if len(changes) > 0 {
				m.ls.Debug(log_service.LogEvent{
					Message:  "Probe round changed node states",
					Metadata: map[string]any{"changes": len(changes)},
				})
			}
		}
	}
}
