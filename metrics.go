package block_ring_buffer_go

import (
	"github.com/elastic/go-hdrhistogram"
)

const metricsSignificantFigures = 2

// CompactionMetrics is a snapshot of compaction activity since the buffer was
// created or last reset.
type CompactionMetrics struct {
	Passes          int64
	ReclaimedBlocks int64
	ReclaimedBytes  int64
	MovedBytes      int64

	// Distribution of bytes moved per pass that reclaimed at least one block.
	MovedBytesP50 int64
	MovedBytesP99 int64
	MovedBytesMax int64
}

// compactionMetrics is nil when metrics are disabled; its methods accept a
// nil receiver.
type compactionMetrics struct {
	passes          int64
	reclaimedBlocks int64
	reclaimedBytes  int64
	movedBytes      int64

	maxTrackable int64
	moved        *hdrhistogram.Histogram
}

func newCompactionMetrics(capacity int) *compactionMetrics {
	// A pass can shift each remaining byte once per reclaimed block ahead of it;
	// larger values are clamped.
	maxTrackable := int64(capacity) * 16
	if maxTrackable < 2 {
		maxTrackable = 2
	}

	return &compactionMetrics{
		maxTrackable: maxTrackable,
		moved:        hdrhistogram.New(1, maxTrackable, metricsSignificantFigures),
	}
}

func (m *compactionMetrics) record(pass compactionPass) {
	if m == nil || pass.reclaimedBlocks == 0 {
		return
	}

	m.passes++
	m.reclaimedBlocks += int64(pass.reclaimedBlocks)
	m.reclaimedBytes += int64(pass.reclaimedBytes)
	m.movedBytes += int64(pass.movedBytes)

	// RecordValue only fails for values outside [0, maxTrackable], which the
	// clamp rules out.
	_ = m.moved.RecordValue(min(int64(pass.movedBytes), m.maxTrackable))
}

func (m *compactionMetrics) snapshot() CompactionMetrics {
	if m == nil {
		return CompactionMetrics{}
	}

	snapshot := CompactionMetrics{
		Passes:          m.passes,
		ReclaimedBlocks: m.reclaimedBlocks,
		ReclaimedBytes:  m.reclaimedBytes,
		MovedBytes:      m.movedBytes,
	}
	if m.moved.TotalCount() > 0 {
		snapshot.MovedBytesP50 = m.moved.ValueAtQuantile(50)
		snapshot.MovedBytesP99 = m.moved.ValueAtQuantile(99)
		snapshot.MovedBytesMax = m.moved.Max()
	}

	return snapshot
}

func (m *compactionMetrics) reset() {
	if m == nil {
		return
	}
	m.passes = 0
	m.reclaimedBlocks = 0
	m.reclaimedBytes = 0
	m.movedBytes = 0
	m.moved.Reset()
}
