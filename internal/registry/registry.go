// Package registry owns the set of live client connections.
package registry

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/storepulse/internal/adapter/metrics"
	"github.com/pscheid92/storepulse/internal/domain"
	"github.com/pscheid92/storepulse/internal/liveness"
)

type EventLog interface {
	Append(event domain.ConnectionEvent)
}

// Tracker enrolls connections for liveness probing. Untrack must not return
// while a probe for id can still be sent.
type Tracker interface {
	Track(id uuid.UUID, target liveness.Target, onEvict func())
	Untrack(id uuid.UUID)
}

type SnapshotSource interface {
	Snapshot() domain.CatalogSnapshot
}

type Registry struct {
	clock    clockwork.Clock
	events   EventLog
	tracker  Tracker
	snapshot SnapshotSource
	metrics  *metrics.ConnectionMetrics

	mu          sync.RWMutex
	connections map[uuid.UUID]*domain.Connection
	count       atomic.Int64
}

func New(clock clockwork.Clock, events EventLog, tracker Tracker, snapshot SnapshotSource, m *metrics.ConnectionMetrics) *Registry {
	return &Registry{
		clock:       clock,
		events:      events,
		tracker:     tracker,
		snapshot:    snapshot,
		metrics:     m,
		connections: make(map[uuid.UUID]*domain.Connection),
	}
}

// Register stores the transport under a new id, records the connect event,
// sends the current catalog to this connection only and enrolls it for
// liveness probing.
func (r *Registry) Register(transport domain.Transport) *domain.Connection {
	conn := domain.NewConnection(uuid.New(), transport, r.clock.Now())

	r.mu.Lock()
	r.connections[conn.ID] = conn
	r.mu.Unlock()
	r.count.Add(1)

	r.metrics.Connects.Inc()
	r.metrics.Active.Inc()
	r.events.Append(domain.ConnectEvent(conn, conn.ConnectedAt))

	r.sendSnapshot(conn)

	id := conn.ID
	r.tracker.Track(id, conn, func() {
		r.Deregister(id, domain.ReasonLivenessTimeout)
	})
	return conn
}

func (r *Registry) sendSnapshot(conn *domain.Connection) {
	snapshot := r.snapshot.Snapshot()

	frames := []struct {
		event   string
		payload any
	}{
		{domain.EventInitProducts, nonNil(snapshot.Products)},
		{domain.EventInitOrders, nonNil(snapshot.Orders)},
	}

	for _, f := range frames {
		data, err := domain.Encode(f.event, f.payload)
		if err != nil {
			slog.Error("Failed to encode snapshot", "connection_id", conn.ID, "event", f.event, "error", err)
			continue
		}
		if err := conn.Send(data); err != nil {
			r.metrics.SendErrors.WithLabelValues("snapshot").Inc()
			slog.Warn("Failed to send snapshot", "connection_id", conn.ID, "event", f.event, "error", err)
		}
	}
}

// Deregister removes the connection, stops its liveness task, records the
// disconnect and closes the transport with reason. It reports whether the id
// was registered; repeated calls are no-ops.
func (r *Registry) Deregister(id uuid.UUID, reason string) bool {
	r.mu.Lock()
	conn, ok := r.connections[id]
	if ok {
		delete(r.connections, id)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	r.count.Add(-1)

	r.tracker.Untrack(id)

	r.metrics.Active.Dec()
	r.metrics.Disconnects.WithLabelValues(reason).Inc()
	r.events.Append(domain.DisconnectEvent(conn, r.clock.Now(), reason))

	conn.Close(reason)
	return true
}

func (r *Registry) Get(id uuid.UUID) (*domain.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.connections[id]
	return conn, ok
}

// Connections returns the connections registered at the time of the call.
func (r *Registry) Connections() []*domain.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Connection, 0, len(r.connections))
	for _, conn := range r.connections {
		result = append(result, conn)
	}
	return result
}

func (r *Registry) Count() int {
	return int(r.count.Load())
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
