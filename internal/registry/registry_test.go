package registry

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pscheid92/storepulse/internal/adapter/metrics"
	"github.com/pscheid92/storepulse/internal/domain"
	"github.com/pscheid92/storepulse/internal/domain/domaintest"
	"github.com/pscheid92/storepulse/internal/eventlog"
	"github.com/pscheid92/storepulse/internal/liveness"
	"github.com/pscheid92/storepulse/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTracker struct {
	mu        sync.Mutex
	tracked   map[uuid.UUID]func()
	untracked []uuid.UUID
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{tracked: make(map[uuid.UUID]func())}
}

func (f *fakeTracker) Track(id uuid.UUID, _ liveness.Target, onEvict func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracked[id] = onEvict
}

func (f *fakeTracker) Untrack(id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tracked, id)
	f.untracked = append(f.untracked, id)
}

func (f *fakeTracker) evict(id uuid.UUID) {
	f.mu.Lock()
	onEvict := f.tracked[id]
	f.mu.Unlock()
	onEvict()
}

type fixture struct {
	registry *Registry
	tracker  *fakeTracker
	log      *eventlog.Log
	catalog  *store.Catalog
	metrics  *metrics.ConnectionMetrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClock()
	f := &fixture{
		tracker: newFakeTracker(),
		log:     eventlog.New(),
		catalog: store.NewCatalog(clock),
		metrics: metrics.NewConnectionMetrics(prometheus.NewRegistry()),
	}
	f.registry = New(clock, f.log, f.tracker, f.catalog, f.metrics)
	return f
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	transport := domaintest.NewTransport("10.0.0.1:5000")

	conn := f.registry.Register(transport)

	assert.NotEqual(t, uuid.Nil, conn.ID)
	assert.Equal(t, "10.0.0.1:5000", conn.RemoteAddress)
	assert.Equal(t, 1, f.registry.Count())

	got, ok := f.registry.Get(conn.ID)
	require.True(t, ok)
	assert.Same(t, conn, got)

	events := f.log.Recent(0)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventKindConnect, events[0].Kind)
	assert.Equal(t, conn.ID, events[0].ConnectionID)

	assert.Contains(t, f.tracker.tracked, conn.ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Active))
}

func TestRegister_SendsSnapshotToNewConnectionOnly(t *testing.T) {
	f := newFixture(t)
	existing := domaintest.NewTransport("a")
	f.registry.Register(existing)

	f.catalog.Products.Upsert(domain.Product{ID: "p1", Name: "Widget"})
	f.catalog.Orders.Upsert(domain.Order{ID: "o1", ProductID: "p1", Quantity: 2})

	joining := domaintest.NewTransport("b")
	f.registry.Register(joining)

	messages := joining.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, domain.EventInitProducts, messages[0].Event)
	assert.Equal(t, domain.EventInitOrders, messages[1].Event)

	var products []domain.Product
	require.NoError(t, json.Unmarshal(messages[0].Data, &products))
	require.Len(t, products, 1)
	assert.Equal(t, "p1", products[0].ID)

	var orders []domain.Order
	require.NoError(t, json.Unmarshal(messages[1].Data, &orders))
	require.Len(t, orders, 1)
	assert.Equal(t, "o1", orders[0].ID)

	assert.Len(t, existing.Messages(), 2, "existing connection only saw its own snapshot")
}

func TestRegister_EmptySnapshotEncodesEmptyArrays(t *testing.T) {
	f := newFixture(t)
	transport := domaintest.NewTransport("a")

	f.registry.Register(transport)

	messages := transport.Messages()
	require.Len(t, messages, 2)
	assert.JSONEq(t, `[]`, string(messages[0].Data))
	assert.JSONEq(t, `[]`, string(messages[1].Data))
}

func TestRegister_SnapshotFailureStillRegisters(t *testing.T) {
	f := newFixture(t)
	transport := domaintest.NewTransport("a")
	transport.FailSends(domain.ErrSendBufferFull)

	conn := f.registry.Register(transport)

	_, ok := f.registry.Get(conn.ID)
	assert.True(t, ok)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.SendErrors.WithLabelValues("snapshot")))
}

func TestDeregister(t *testing.T) {
	f := newFixture(t)
	transport := domaintest.NewTransport("a")
	conn := f.registry.Register(transport)

	removed := f.registry.Deregister(conn.ID, domain.ReasonTransportClose)

	assert.True(t, removed)
	assert.Equal(t, 0, f.registry.Count())
	_, ok := f.registry.Get(conn.ID)
	assert.False(t, ok)
	assert.Equal(t, []uuid.UUID{conn.ID}, f.tracker.untracked)

	closed, reason := transport.Closed()
	assert.True(t, closed)
	assert.Equal(t, domain.ReasonTransportClose, reason)

	events := f.log.Recent(0)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventKindDisconnect, events[1].Kind)
	assert.Equal(t, domain.ReasonTransportClose, events[1].Reason)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Disconnects.WithLabelValues(domain.ReasonTransportClose)))
}

func TestDeregister_Idempotent(t *testing.T) {
	f := newFixture(t)
	conn := f.registry.Register(domaintest.NewTransport("a"))

	require.True(t, f.registry.Deregister(conn.ID, domain.ReasonError))
	assert.False(t, f.registry.Deregister(conn.ID, domain.ReasonError))
	assert.False(t, f.registry.Deregister(uuid.New(), domain.ReasonError))

	assert.Equal(t, 0, f.registry.Count())
	assert.Equal(t, 2, f.log.Len(), "one connect and one disconnect")
	assert.Len(t, f.tracker.untracked, 1)
}

func TestEviction_DeregistersWithLivenessTimeout(t *testing.T) {
	f := newFixture(t)
	transport := domaintest.NewTransport("a")
	conn := f.registry.Register(transport)

	f.tracker.evict(conn.ID)

	assert.Equal(t, 0, f.registry.Count())
	_, reason := transport.Closed()
	assert.Equal(t, domain.ReasonLivenessTimeout, reason)
	assert.Equal(t, domain.ReasonLivenessTimeout, f.log.Recent(1)[0].Reason)
}

func TestConnections_ReturnsCopy(t *testing.T) {
	f := newFixture(t)
	a := f.registry.Register(domaintest.NewTransport("a"))
	f.registry.Register(domaintest.NewTransport("b"))

	snapshot := f.registry.Connections()
	f.registry.Deregister(a.ID, domain.ReasonTransportClose)

	assert.Len(t, snapshot, 2)
	assert.Len(t, f.registry.Connections(), 1)
}

func TestCount_MatchesRegisteredMinusDeregistered(t *testing.T) {
	f := newFixture(t)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids []uuid.UUID
	)
	for i := range 50 {
		wg.Go(func() {
			conn := f.registry.Register(domaintest.NewTransport(fmt.Sprintf("10.0.0.%d:1", i)))
			mu.Lock()
			ids = append(ids, conn.ID)
			mu.Unlock()
		})
	}
	wg.Wait()

	for _, id := range ids[:20] {
		wg.Go(func() {
			f.registry.Deregister(id, domain.ReasonTransportClose)
			f.registry.Deregister(id, domain.ReasonTransportClose)
		})
	}
	wg.Wait()

	assert.Equal(t, 30, f.registry.Count())
	assert.Len(t, f.registry.Connections(), 30)
	assert.Equal(t, 30.0, testutil.ToFloat64(f.metrics.Active))
}
