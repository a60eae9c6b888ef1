package app

import (
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/pscheid92/storepulse/internal/adapter/metrics"
	"github.com/pscheid92/storepulse/internal/domain"
	"github.com/pscheid92/storepulse/internal/store"
)

// ErrHubClosed is returned by OnConnect once Shutdown has run.
var ErrHubClosed = errors.New("hub is shut down")

type ConnectionRegistry interface {
	Register(transport domain.Transport) *domain.Connection
	Deregister(id uuid.UUID, reason string) bool
	Connections() []*domain.Connection
	Count() int
}

type ProbeTracker interface {
	Acknowledge(id uuid.UUID, seq uint64) bool
	Missed(id uuid.UUID) (int, bool)
	Stop()
}

type Publisher interface {
	Publish(event string, payload any) (int, error)
}

type EventHistory interface {
	Recent(n int) []domain.ConnectionEvent
	Len() int
}

// Stats is a point-in-time summary of the hub.
type Stats struct {
	ActiveConnections     int `json:"activeConnections"`
	TotalConnectionEvents int `json:"totalConnectionEvents"`
	ProductCount          int `json:"productCount"`
	OrderCount            int `json:"orderCount"`
}

type Hub struct {
	registry  ConnectionRegistry
	tracker   ProbeTracker
	publisher Publisher
	events    EventHistory
	catalog   *store.Catalog
	metrics   *metrics.StoreMetrics

	// mu orders registration snapshots against mutations and their broadcasts.
	mu     sync.Mutex
	closed bool
}

func NewHub(registry ConnectionRegistry, tracker ProbeTracker, publisher Publisher, events EventHistory, catalog *store.Catalog, m *metrics.StoreMetrics) *Hub {
	return &Hub{
		registry:  registry,
		tracker:   tracker,
		publisher: publisher,
		events:    events,
		catalog:   catalog,
		metrics:   m,
	}
}

// OnConnect registers a new transport and sends it the current catalog. After
// Shutdown the transport is closed with the shutdown reason and ErrHubClosed
// is returned.
func (h *Hub) OnConnect(transport domain.Transport) (*domain.Connection, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		transport.Close(domain.ReasonServerShutdown)
		return nil, ErrHubClosed
	}
	return h.registry.Register(transport), nil
}

// OnDisconnect deregisters the connection. Unknown ids are ignored.
func (h *Hub) OnDisconnect(id uuid.UUID, reason string) {
	h.registry.Deregister(id, reason)
}

// OnProbeResponse acknowledges the probe with sequence number seq. Zero
// answers the outstanding probe.
func (h *Hub) OnProbeResponse(id uuid.UUID, seq uint64) {
	h.tracker.Acknowledge(id, seq)
}

func (h *Hub) CreateProduct(p domain.Product) domain.Product {
	h.mu.Lock()
	defer h.mu.Unlock()

	stored := h.catalog.Products.Upsert(p)
	h.recordMutation("products", "create", h.catalog.Products.Len())
	h.publish(domain.EventNewProduct, stored)
	return stored
}

// DeleteProduct removes the product and announces it. A missing product
// returns domain.ErrNotFound and nothing is broadcast.
func (h *Hub) DeleteProduct(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := h.catalog.Products.Remove(id); err != nil {
		return err
	}
	h.recordMutation("products", "delete", h.catalog.Products.Len())
	h.publish(domain.EventProductDeleted, domain.DeletedPayload{ID: id})
	return nil
}

func (h *Hub) ResetProducts() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	removed := h.catalog.Products.Clear()
	h.recordMutation("products", "reset", 0)
	h.publish(domain.EventProductsReset, domain.ResetPayload{Removed: removed})
	return removed
}

// CreateOrder stores an order for an existing product. When the product is
// missing the error wraps domain.ErrNotFound.
func (h *Hub) CreateOrder(o domain.Order) (domain.Order, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := h.catalog.Products.Get(o.ProductID); err != nil {
		return domain.Order{}, err
	}

	stored := h.catalog.Orders.Upsert(o)
	h.recordMutation("orders", "create", h.catalog.Orders.Len())
	h.publish(domain.EventNewOrder, stored)
	return stored, nil
}

func (h *Hub) DeleteOrder(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := h.catalog.Orders.Remove(id); err != nil {
		return err
	}
	h.recordMutation("orders", "delete", h.catalog.Orders.Len())
	h.publish(domain.EventOrderDeleted, domain.DeletedPayload{ID: id})
	return nil
}

func (h *Hub) ResetOrders() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	removed := h.catalog.Orders.Clear()
	h.recordMutation("orders", "reset", 0)
	h.publish(domain.EventOrdersReset, domain.ResetPayload{Removed: removed})
	return removed
}

func (h *Hub) Products(filter domain.ProductFilter) []domain.Product {
	return h.catalog.Products.List(filter.Match)
}

func (h *Hub) Product(id string) (domain.Product, error) {
	return h.catalog.Products.Get(id)
}

func (h *Hub) Orders(filter domain.OrderFilter) []domain.Order {
	return h.catalog.Orders.List(filter.Match)
}

func (h *Hub) RecentEvents(n int) []domain.ConnectionEvent {
	return h.events.Recent(n)
}

// Connections lists live connections, oldest first.
func (h *Hub) Connections() []domain.ConnectionInfo {
	connections := h.registry.Connections()

	infos := make([]domain.ConnectionInfo, 0, len(connections))
	for _, conn := range connections {
		missed, _ := h.tracker.Missed(conn.ID)
		infos = append(infos, domain.ConnectionInfo{
			ID:            conn.ID,
			RemoteAddress: conn.RemoteAddress,
			ConnectedAt:   conn.ConnectedAt,
			MissedProbes:  missed,
		})
	}

	slices.SortFunc(infos, func(a, b domain.ConnectionInfo) int {
		return a.ConnectedAt.Compare(b.ConnectedAt)
	})
	return infos
}

func (h *Hub) Stats() Stats {
	return Stats{
		ActiveConnections:     h.registry.Count(),
		TotalConnectionEvents: h.events.Len(),
		ProductCount:          h.catalog.Products.Len(),
		OrderCount:            h.catalog.Orders.Len(),
	}
}

// Shutdown closes every live connection and stops liveness probing. Later
// connections are refused.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true

	connections := h.registry.Connections()
	for _, conn := range connections {
		h.registry.Deregister(conn.ID, domain.ReasonServerShutdown)
	}
	h.tracker.Stop()

	slog.Info("Hub shut down", "closed_connections", len(connections))
}

// publish must be called with mu held.
func (h *Hub) publish(event string, payload any) {
	if _, err := h.publisher.Publish(event, payload); err != nil {
		slog.Error("Failed to publish event", "event", event, "error", err)
	}
}

func (h *Hub) recordMutation(collection, operation string, size int) {
	h.metrics.Mutations.WithLabelValues(collection, operation).Inc()
	h.metrics.Entities.WithLabelValues(collection).Set(float64(size))
}
