package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
)

// highPendingThreshold flags a backlog in the health report without failing it.
const highPendingThreshold = 1000

type HealthStatus struct {
	Healthy           bool      `json:"healthy"`
	EventsProcessed   uint64    `json:"events_processed"`
	LastEventTime     time.Time `json:"last_event_time"`
	PendingEvents     int64     `json:"pending_events"`
	DatabaseConnected bool      `json:"database_connected"`
	NATSConnected     bool      `json:"nats_connected"`
	ListenerActive    bool      `json:"listener_active"`
	Errors            []string  `json:"errors"`
}

// Pinger is satisfied by *sql.DB and the Repository.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthChecker struct {
	db        Pinger
	app       *App
	listener  *Listener
	natsConn  *nats.Conn
	metrics   *Metrics
	threshold time.Duration // How long pending events may sit before the relay is unhealthy
}

func NewHealthChecker(db Pinger, app *App, listener *Listener, natsConn *nats.Conn, metrics *Metrics, threshold time.Duration) *HealthChecker {
	return &HealthChecker{
		db:        db,
		app:       app,
		listener:  listener,
		natsConn:  natsConn,
		metrics:   metrics,
		threshold: threshold,
	}
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{Healthy: true, Errors: []string{}}

	if h.metrics != nil {
		status.EventsProcessed, status.LastEventTime = h.metrics.Stats()
	}

	if err := h.db.Ping(ctx); err != nil {
		status.Healthy = false
		status.Errors = append(status.Errors, fmt.Sprintf("database ping failed: %v", err))
	} else {
		status.DatabaseConnected = true
	}

	if h.natsConn != nil {
		status.NATSConnected = h.natsConn.IsConnected()
		if !status.NATSConnected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
	}

	if h.listener != nil {
		status.ListenerActive = h.listener.Running()
		if !status.ListenerActive {
			status.Healthy = false
			status.Errors = append(status.Errors, "listener not active")
		}
	}

	if status.DatabaseConnected {
		pending, err := h.app.PendingCount(ctx)
		if err != nil {
			status.Errors = append(status.Errors, fmt.Sprintf("failed to count pending events: %v", err))
		} else {
			status.PendingEvents = pending
			if pending > highPendingThreshold {
				status.Errors = append(status.Errors, fmt.Sprintf("high pending event count: %d", pending))
			}
		}
	}

	if status.PendingEvents > 0 && !status.LastEventTime.IsZero() && h.threshold > 0 {
		if since := time.Since(status.LastEventTime); since > h.threshold {
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("no events processed for %s", since.Round(time.Second)))
		}
	}

	return status
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}

// MetricsHandler serves the relay counters.
func MetricsHandler(m *Metrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = m.WriteTo(w)
	})
}
