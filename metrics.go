package objalloc

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    insertCounter   prometheus.Counter
//	    rejectedCounter prometheus.Counter
//	}
//
//	func (p *PrometheusCollector) RecordInsert(duration time.Duration, err error) {
//	    p.insertCounter.Inc()
//	    if err != nil {
//	        p.rejectedCounter.Inc()
//	    }
//	}
type MetricsCollector interface {
	// RecordInsert is called after each Insert or InsertCyclic.
	// err is the *InsertError of a rejected object.
	RecordInsert(duration time.Duration, err error)

	// RecordBatchInsert is called after each Extend or TryExtend.
	// count is the number of objects attempted, failed the number rejected.
	// Objects of a batch are not reported through RecordInsert.
	RecordBatchInsert(count, failed int, duration time.Duration)

	// RecordRemove is called after each Remove.
	RecordRemove(found bool)

	// RecordModify is called after each Modify or TryModify.
	RecordModify(duration time.Duration, err error)

	// RecordDecode is called after each Decode, with the number of records
	// restored.
	RecordDecode(records int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInsert(time.Duration, error)         {}
func (NoopMetricsCollector) RecordBatchInsert(int, int, time.Duration) {}
func (NoopMetricsCollector) RecordRemove(bool)                         {}
func (NoopMetricsCollector) RecordModify(time.Duration, error)         {}
func (NoopMetricsCollector) RecordDecode(int, time.Duration, error)    {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	InsertCount       atomic.Int64
	InsertRejected    atomic.Int64
	InsertTotalNanos  atomic.Int64
	BatchInsertCount  atomic.Int64
	BatchInsertItems  atomic.Int64
	BatchInsertFailed atomic.Int64
	RemoveCount       atomic.Int64
	RemoveMisses      atomic.Int64
	ModifyCount       atomic.Int64
	ModifyErrors      atomic.Int64
	DecodeCount       atomic.Int64
	DecodeErrors      atomic.Int64
	DecodeRecords     atomic.Int64
}

// RecordInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInsert(duration time.Duration, err error) {
	b.InsertCount.Add(1)
	b.InsertTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.InsertRejected.Add(1)
	}
}

// RecordBatchInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBatchInsert(count, failed int, _ time.Duration) {
	b.BatchInsertCount.Add(1)
	b.BatchInsertItems.Add(int64(count))
	b.BatchInsertFailed.Add(int64(failed))
}

// RecordRemove implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRemove(found bool) {
	b.RemoveCount.Add(1)
	if !found {
		b.RemoveMisses.Add(1)
	}
}

// RecordModify implements MetricsCollector.
func (b *BasicMetricsCollector) RecordModify(_ time.Duration, err error) {
	b.ModifyCount.Add(1)
	if err != nil {
		b.ModifyErrors.Add(1)
	}
}

// RecordDecode implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDecode(records int, _ time.Duration, err error) {
	b.DecodeCount.Add(1)
	if err != nil {
		b.DecodeErrors.Add(1)
		return
	}
	b.DecodeRecords.Add(int64(records))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		InsertCount:       b.InsertCount.Load(),
		InsertRejected:    b.InsertRejected.Load(),
		InsertAvgNanos:    b.getAvgInsertNanos(),
		BatchInsertCount:  b.BatchInsertCount.Load(),
		BatchInsertItems:  b.BatchInsertItems.Load(),
		BatchInsertFailed: b.BatchInsertFailed.Load(),
		RemoveCount:       b.RemoveCount.Load(),
		RemoveMisses:      b.RemoveMisses.Load(),
		ModifyCount:       b.ModifyCount.Load(),
		ModifyErrors:      b.ModifyErrors.Load(),
		DecodeCount:       b.DecodeCount.Load(),
		DecodeErrors:      b.DecodeErrors.Load(),
		DecodeRecords:     b.DecodeRecords.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgInsertNanos() int64 {
	count := b.InsertCount.Load()
	if count == 0 {
		return 0
	}
	return b.InsertTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	InsertCount       int64
	InsertRejected    int64
	InsertAvgNanos    int64
	BatchInsertCount  int64
	BatchInsertItems  int64
	BatchInsertFailed int64
	RemoveCount       int64
	RemoveMisses      int64
	ModifyCount       int64
	ModifyErrors      int64
	DecodeCount       int64
	DecodeErrors      int64
	DecodeRecords     int64
}
