package outbox

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// MetricsCollector records relay activity.
type MetricsCollector interface {
	RecordEventProcessed(eventType string, success bool, duration time.Duration)
	RecordPublishAttempt(eventType string, attempt int, success bool)
	RecordOutboxLag(lag int64)
}

type NoOpMetricsCollector struct{}

func (NoOpMetricsCollector) RecordEventProcessed(string, bool, time.Duration) {}
func (NoOpMetricsCollector) RecordPublishAttempt(string, int, bool)           {}
func (NoOpMetricsCollector) RecordOutboxLag(int64)                            {}

// Metrics keeps in-process counters and renders them in the Prometheus text format.
type Metrics struct {
	processed     atomic.Uint64
	failed        atomic.Uint64
	retries       atomic.Uint64
	lag           atomic.Int64
	lastEventUnix atomic.Int64

	mu     sync.Mutex
	byType map[string]uint64
}

func NewMetrics() *Metrics {
	return &Metrics{byType: make(map[string]uint64)}
}

func (m *Metrics) RecordEventProcessed(eventType string, success bool, duration time.Duration) {
	if !success {
		m.failed.Add(1)
		return
	}
	m.processed.Add(1)
	m.lastEventUnix.Store(time.Now().Unix())
	m.mu.Lock()
	m.byType[eventType]++
	m.mu.Unlock()
}

func (m *Metrics) RecordPublishAttempt(eventType string, attempt int, success bool) {
	if attempt > 1 {
		m.retries.Add(1)
	}
}

func (m *Metrics) RecordOutboxLag(lag int64) {
	m.lag.Store(lag)
}

// Stats returns the processed count and the time of the last relayed event.
func (m *Metrics) Stats() (uint64, time.Time) {
	last := m.lastEventUnix.Load()
	if last == 0 {
		return m.processed.Load(), time.Time{}
	}
	return m.processed.Load(), time.Unix(last, 0)
}

// WriteTo renders the counters.
func (m *Metrics) WriteTo(w io.Writer) (int64, error) {
	m.mu.Lock()
	types := make(map[string]uint64, len(m.byType))
	for k, v := range m.byType {
		types[k] = v
	}
	m.mu.Unlock()

	var total int64
	write := func(format string, args ...any) error {
		n, err := fmt.Fprintf(w, format, args...)
		total += int64(n)
		return err
	}

	if err := write("# TYPE quiz_outbox_events_processed_total counter\nquiz_outbox_events_processed_total %d\n", m.processed.Load()); err != nil {
		return total, err
	}
	if err := write("# TYPE quiz_outbox_events_failed_total counter\nquiz_outbox_events_failed_total %d\n", m.failed.Load()); err != nil {
		return total, err
	}
	if err := write("# TYPE quiz_outbox_publish_retries_total counter\nquiz_outbox_publish_retries_total %d\n", m.retries.Load()); err != nil {
		return total, err
	}
	if err := write("# TYPE quiz_outbox_pending_events gauge\nquiz_outbox_pending_events %d\n", m.lag.Load()); err != nil {
		return total, err
	}
	if err := write("# TYPE quiz_outbox_last_event_timestamp gauge\nquiz_outbox_last_event_timestamp %d\n", m.lastEventUnix.Load()); err != nil {
		return total, err
	}
	if err := write("# TYPE quiz_outbox_events_by_type_total counter\n"); err != nil {
		return total, err
	}
	names := make([]string, 0, len(types))
	for t := range types {
		names = append(names, t)
	}
	sort.Strings(names)
	for _, t := range names {
		if err := write("quiz_outbox_events_by_type_total{event_type=%q} %d\n", t, types[t]); err != nil {
			return total, err
		}
	}
	return total, nil
}

// MetricPublisher wraps a Publisher with timing.
type MetricPublisher struct {
	publisher Publisher
	metrics   MetricsCollector
}

func NewMetricPublisher(publisher Publisher, metrics MetricsCollector) *MetricPublisher {
	return &MetricPublisher{publisher: publisher, metrics: metrics}
}

func (p *MetricPublisher) Publish(ctx context.Context, event OutboxEvent) error {
	start := time.Now()
	err := p.publisher.Publish(ctx, event)
	p.metrics.RecordEventProcessed(string(event.EventType), err == nil, time.Since(start))
	return err
}
