package metrics

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one counter or histogram slot.
type MetricID uint16

const (
	// MetricIssueSuccess counts issued credentials.
	MetricIssueSuccess MetricID = iota
	// MetricIssueFailure counts rejected issue requests.
	MetricIssueFailure
	// MetricVerifyAccepted counts accepted proofs.
	MetricVerifyAccepted
	// MetricVerifyRejected counts rejected proofs.
	MetricVerifyRejected
	// MetricRotateSuccess counts completed rotations.
	MetricRotateSuccess
	// MetricRotateFailure counts failed rotations.
	MetricRotateFailure
	// MetricRevoke counts single-credential revocations.
	MetricRevoke
	// MetricRevokeAll counts owner-wide revocations.
	MetricRevokeAll
	// MetricRevokeAllExcept counts owner-wide revocations that spared one credential.
	MetricRevokeAllExcept
	// MetricLegacyMigrated counts legacy records upgraded in place.
	MetricLegacyMigrated
	// MetricMigrationConflict counts migrations abandoned due to concurrent divergence.
	MetricMigrationConflict
	// MetricSessionLimitEvicted counts credentials evicted by the active cap.
	MetricSessionLimitEvicted
	// MetricSessionLimitEnforced counts explicit cap enforcement sweeps.
	MetricSessionLimitEnforced
	// MetricStoreError counts storage backend failures.
	MetricStoreError
	// MetricVerifyLatency is the verify latency histogram slot.
	MetricVerifyLatency
	// MetricIDCount is the number of defined metric slots.
	MetricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

// Config controls which metric families are recorded.
type Config struct {
	Enabled       bool
	EnableLatency bool
}

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds cache-line-padded atomic counters and fixed-bucket histograms.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [MetricIDCount]paddedCounter
	histograms    [MetricIDCount]metricHistogram
}

// Snapshot is a point-in-time copy of all counters and histogram buckets.
type Snapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func New(cfg Config) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatency,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= MetricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Add records n occurrences at once. Eviction sweeps report per-credential
// counts without looping over Inc.
func (m *Metrics) Add(id MetricID, n uint64) {
	if m == nil || !m.enabled || id >= MetricIDCount || n == 0 {
		return
	}
	atomic.AddUint64(&m.counters[id].value, n)
}

func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= MetricIDCount {
		return
	}
	if id != MetricVerifyLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= MetricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() Snapshot {
	if m == nil || !m.enabled {
		return Snapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := Snapshot{
		Counters:   make(map[MetricID]uint64, int(MetricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < MetricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricVerifyLatency].buckets[i])
		}
		s.Histograms[MetricVerifyLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
