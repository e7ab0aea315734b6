package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// StorageMetrics holds the Prometheus collectors for the storage engine.
// All Record methods are safe on a nil receiver.
type StorageMetrics struct {
	// Request metrics
	RequestsTotal   *prometheus.CounterVec   // sdfbs_requests_total{operation,status}
	RequestDuration *prometheus.HistogramVec // sdfbs_request_duration_seconds{operation}

	// Transfer metrics
	BytesUploaded   prometheus.Counter // sdfbs_bytes_uploaded_total
	BytesDownloaded prometheus.Counter // sdfbs_bytes_downloaded_total

	// Replica metrics
	ReplicaWrites         *prometheus.CounterVec // sdfbs_replica_writes_total{result}
	UnderReplicatedChunks prometheus.Counter     // sdfbs_under_replicated_chunks_total
	CorruptReplicas       prometheus.Counter     // sdfbs_corrupt_replicas_total

	// Repair metrics
	RepairCycles       prometheus.Counter // sdfbs_repair_cycles_total
	RepairedChunks     prometheus.Counter // sdfbs_repaired_chunks_total
	UnrepairableChunks prometheus.Counter // sdfbs_unrepairable_chunks_total

	// Node metrics
	NodesByState *prometheus.GaugeVec // sdfbs_nodes{state}
	NodeBytes    *prometheus.GaugeVec // sdfbs_node_bytes_stored{node}
}

// NewStorageMetrics registers every collector on registry, or on the default
// registerer when registry is nil.
func NewStorageMetrics(registry prometheus.Registerer) *StorageMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &StorageMetrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sdfbs_requests_total",
			Help: "Total storage requests by operation and status",
		}, []string{"operation", "status"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sdfbs_request_duration_seconds",
			Help:    "Storage request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),

		BytesUploaded: factory.NewCounter(prometheus.CounterOpts{
			Name: "sdfbs_bytes_uploaded_total",
			Help: "Total file bytes accepted by upload",
		}),

		BytesDownloaded: factory.NewCounter(prometheus.CounterOpts{
			Name: "sdfbs_bytes_downloaded_total",
			Help: "Total file bytes returned by download",
		}),

		ReplicaWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sdfbs_replica_writes_total",
			Help: "Replica writes by result",
		}, []string{"result"}),

		UnderReplicatedChunks: factory.NewCounter(prometheus.CounterOpts{
			Name: "sdfbs_under_replicated_chunks_total",
			Help: "Chunks placed with fewer replicas than requested",
		}),

		CorruptReplicas: factory.NewCounter(prometheus.CounterOpts{
			Name: "sdfbs_corrupt_replicas_total",
			Help: "Replicas that failed hash verification on read",
		}),

		RepairCycles: factory.NewCounter(prometheus.CounterOpts{
			Name: "sdfbs_repair_cycles_total",
			Help: "Completed background repair cycles",
		}),

		RepairedChunks: factory.NewCounter(prometheus.CounterOpts{
			Name: "sdfbs_repaired_chunks_total",
			Help: "Chunks that received new replicas from repair",
		}),

		UnrepairableChunks: factory.NewCounter(prometheus.CounterOpts{
			Name: "sdfbs_unrepairable_chunks_total",
			Help: "Chunks found with zero surviving verified replicas",
		}),

		NodesByState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sdfbs_nodes",
			Help: "Storage nodes by health state",
		}, []string{"state"}),

		NodeBytes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sdfbs_node_bytes_stored",
			Help: "Bytes stored per node",
		}, []string{"node"}),
	}
}

func (m *StorageMetrics) RecordRequest(operation string, err error, started time.Time) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.RequestsTotal.WithLabelValues(operation, status).Inc()
	m.RequestDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func (m *StorageMetrics) RecordUpload(bytes int) {
	if m == nil {
		return
	}
	m.BytesUploaded.Add(float64(bytes))
}

func (m *StorageMetrics) RecordDownload(bytes int) {
	if m == nil {
		return
	}
	m.BytesDownloaded.Add(float64(bytes))
}

func (m *StorageMetrics) RecordReplicaWrite(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.ReplicaWrites.WithLabelValues("ok").Inc()
	} else {
		m.ReplicaWrites.WithLabelValues("failed").Inc()
	}
}

func (m *StorageMetrics) RecordUnderReplicated() {
	if m == nil {
		return
	}
	m.UnderReplicatedChunks.Inc()
}

func (m *StorageMetrics) RecordCorruptReplica() {
	if m == nil {
		return
	}
	m.CorruptReplicas.Inc()
}

func (m *StorageMetrics) RecordRepair(repaired, unrepairable int) {
	if m == nil {
		return
	}
	m.RepairedChunks.Add(float64(repaired))
	m.UnrepairableChunks.Add(float64(unrepairable))
}

func (m *StorageMetrics) RecordRepairCycle() {
	if m == nil {
		return
	}
	m.RepairCycles.Inc()
}

// SetNodeStates replaces the per-state node gauges.
func (m *StorageMetrics) SetNodeStates(counts map[string]int) {
	if m == nil {
		return
	}
	for _, state := range []string{"active", "suspect", "failed"} {
		m.NodesByState.WithLabelValues(state).Set(float64(counts[state]))
	}
}

func (m *StorageMetrics) SetNodeBytes(nodeID string, bytes int64) {
	if m == nil {
		return
	}
	m.NodeBytes.WithLabelValues(nodeID).Set(float64(bytes))
}
