// Package metrics collects performance and usage counters for the
// checkpoint reader and pipeline engine.
package metrics

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Metrics collects performance and usage metrics for the reader and
// checkpoint builder.
type Metrics struct {
	mu sync.RWMutex

	// Range read metrics (local file seeks and S3 ranged GETs).
	RangeReadBytesTotal    map[string]int64 // by archive logical name
	RangeReadCountTotal    map[string]int64 // by archive logical name
	RangeReadDurationNs    map[string]int64 // by archive logical name

	// Inflation metrics.
	InflateCPUNs      int64
	InflateCountTotal int64

	// Reader session cache metrics.
	ReadHitsTotal   int64 // session reused across consecutive reads
	ReadMissesTotal int64 // fresh session had to be opened
	ReadBytesTotal  int64

	// Checkpoint build metrics.
	CheckpointsBuiltTotal int64
	IndexRebuildsTotal    int64
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		RangeReadBytesTotal: make(map[string]int64),
		RangeReadCountTotal: make(map[string]int64),
		RangeReadDurationNs: make(map[string]int64),
	}
}

// RecordRangeRead records a ranged read against an archive (local seek
// or S3 GetObject with a Range header).
func (m *Metrics) RecordRangeRead(archive string, bytes int64, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RangeReadBytesTotal[archive] += bytes
	m.RangeReadCountTotal[archive]++
	m.RangeReadDurationNs[archive] += duration.Nanoseconds()

	log.Debug().
		Str("archive", archive).
		Int64("bytes", bytes).
		Dur("duration", duration).
		Msg("range read completed")
}

// RecordInflation records DEFLATE inflation CPU time.
func (m *Metrics) RecordInflation(cpuTime time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.InflateCPUNs += cpuTime.Nanoseconds()
	m.InflateCountTotal++
}

// RecordRead records a reader-session read, noting whether the
// in-progress session was reused (hit) or a fresh session had to be
// opened (miss).
func (m *Metrics) RecordRead(bytes int64, sessionReused bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ReadBytesTotal += bytes
	if sessionReused {
		m.ReadHitsTotal++
	} else {
		m.ReadMissesTotal++
	}
}

// RecordCheckpointBuilt increments the checkpoint counter by one build.
func (m *Metrics) RecordCheckpointBuilt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CheckpointsBuiltTotal++
}

// RecordIndexRebuild records that a stale or missing index was rebuilt.
func (m *Metrics) RecordIndexRebuild() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.IndexRebuildsTotal++
}

// Snapshot returns a flattened, Prometheus-friendly view of the
// current counters.
func (m *Metrics) Snapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]interface{})

	var totalBytes, totalCount int64
	for archive, bytes := range m.RangeReadBytesTotal {
		totalBytes += bytes
		totalCount += m.RangeReadCountTotal[archive]
		out["traceindex_range_read_bytes_total{archive=\""+archive+"\"}"] = bytes
		out["traceindex_range_read_count_total{archive=\""+archive+"\"}"] = m.RangeReadCountTotal[archive]
	}

	out["traceindex_range_read_bytes_total"] = totalBytes
	out["traceindex_range_read_count_total"] = totalCount
	out["traceindex_inflate_cpu_seconds_total"] = float64(m.InflateCPUNs) / 1e9
	out["traceindex_inflate_count_total"] = m.InflateCountTotal
	out["traceindex_read_hits_total"] = m.ReadHitsTotal
	out["traceindex_read_misses_total"] = m.ReadMissesTotal
	out["traceindex_read_bytes_total"] = m.ReadBytesTotal
	out["traceindex_checkpoints_built_total"] = m.CheckpointsBuiltTotal
	out["traceindex_index_rebuilds_total"] = m.IndexRebuildsTotal

	return out
}

// LogSummary logs a summary of current metrics.
func (m *Metrics) LogSummary() {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hitRate := float64(0)
	if m.ReadHitsTotal+m.ReadMissesTotal > 0 {
		hitRate = float64(m.ReadHitsTotal) / float64(m.ReadHitsTotal+m.ReadMissesTotal)
	}

	log.Info().
		Int64("inflate_count", m.InflateCountTotal).
		Float64("inflate_cpu_seconds", float64(m.InflateCPUNs)/1e9).
		Int64("read_hits", m.ReadHitsTotal).
		Int64("read_misses", m.ReadMissesTotal).
		Float64("session_hit_rate", hitRate).
		Int64("checkpoints_built", m.CheckpointsBuiltTotal).
		Int64("index_rebuilds", m.IndexRebuildsTotal).
		Msg("metrics summary")
}

// Global is the process-wide metrics collector used by packages that
// don't thread one through explicitly.
var Global = NewMetrics()
