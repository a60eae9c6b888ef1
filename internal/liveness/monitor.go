// Package liveness probes registered connections on a fixed interval and
// evicts the ones that stop answering.
package liveness

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/storepulse/internal/adapter/metrics"
)

// Target receives probes. domain.Connection satisfies it.
type Target interface {
	SendProbe(seq uint64) error
}

type State int

const (
	StateAlive State = iota
	StateEvicting
	StateRemoved
)

func (s State) String() string {
	switch s {
	case StateAlive:
		return "alive"
	case StateEvicting:
		return "evicting"
	case StateRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

type probe struct {
	id      uuid.UUID
	target  Target
	onEvict func()

	mu     sync.Mutex
	missed int
	seq    uint64
	state  State

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Monitor runs one probe task per tracked connection.
type Monitor struct {
	clock     clockwork.Clock
	interval  time.Duration
	threshold int
	metrics   *metrics.LivenessMetrics

	mu     sync.Mutex
	probes map[uuid.UUID]*probe
}

// NewMonitor creates a monitor that probes every interval and evicts a
// connection once more than threshold probes in a row went unanswered.
func NewMonitor(clock clockwork.Clock, interval time.Duration, threshold int, m *metrics.LivenessMetrics) *Monitor {
	return &Monitor{
		clock:     clock,
		interval:  interval,
		threshold: threshold,
		metrics:   m,
		probes:    make(map[uuid.UUID]*probe),
	}
}

// Track sends the first probe right away and starts the connection's probe
// task. onEvict runs on the task goroutine after the task has finished, so it
// may call Untrack for the same id.
func (m *Monitor) Track(id uuid.UUID, target Target, onEvict func()) {
	p := &probe{
		id:      id,
		target:  target,
		onEvict: onEvict,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	m.mu.Lock()
	if _, exists := m.probes[id]; exists {
		m.mu.Unlock()
		slog.Warn("Connection already tracked", "connection_id", id)
		return
	}
	m.probes[id] = p
	m.mu.Unlock()
	m.metrics.Tracked.Inc()

	p.mu.Lock()
	m.sendProbe(p)
	p.mu.Unlock()

	go m.run(p)
}

func (m *Monitor) run(p *probe) {
	evict := m.loop(p)
	close(p.done)

	if !evict {
		return
	}

	m.metrics.Evictions.Inc()
	slog.Info("Evicting unresponsive connection", "connection_id", p.id, "threshold", m.threshold)
	if p.onEvict != nil {
		p.onEvict()
	}
}

func (m *Monitor) loop(p *probe) bool {
	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return false
		case <-ticker.Chan():
			if m.tick(p) {
				return true
			}
		}
	}
}

// tick advances the probe state by one interval and reports whether the
// connection must be evicted.
func (m *Monitor) tick(p *probe) bool {
	select {
	case <-p.stop:
		return false
	default:
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.missed > m.threshold {
		p.state = StateEvicting
		return true
	}
	m.sendProbe(p)
	return false
}

// sendProbe must be called with p.mu held.
func (m *Monitor) sendProbe(p *probe) {
	p.missed++
	p.seq++
	if err := p.target.SendProbe(p.seq); err != nil {
		m.metrics.ProbeFailures.Inc()
		slog.Debug("Probe not delivered", "connection_id", p.id, "seq", p.seq, "error", err)
		return
	}
	m.metrics.ProbesSent.Inc()
}

// Acknowledge records a probe response and resets the missed count. A
// non-zero seq must match the latest probe sent to id; zero answers whichever
// probe is outstanding. It reports whether the response was accepted. Unknown
// ids are ignored.
func (m *Monitor) Acknowledge(id uuid.UUID, seq uint64) bool {
	p := m.lookup(id)
	if p == nil {
		return false
	}

	p.mu.Lock()
	if p.state != StateAlive {
		p.mu.Unlock()
		return false
	}
	if seq != 0 && seq != p.seq {
		latest := p.seq
		p.mu.Unlock()
		slog.Debug("Ignoring stale probe response", "connection_id", id, "seq", seq, "latest_seq", latest)
		return false
	}
	p.missed = 0
	p.mu.Unlock()

	m.metrics.Acknowledgments.Inc()
	return true
}

// Untrack stops the connection's probe task and waits for it to exit.
// No probe is sent for id once Untrack returns.
func (m *Monitor) Untrack(id uuid.UUID) {
	m.mu.Lock()
	p, ok := m.probes[id]
	if ok {
		delete(m.probes, id)
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	m.metrics.Tracked.Dec()

	p.stopOnce.Do(func() { close(p.stop) })
	<-p.done

	p.mu.Lock()
	p.state = StateRemoved
	p.mu.Unlock()
}

// Missed returns the number of consecutive unanswered probes for id.
func (m *Monitor) Missed(id uuid.UUID) (int, bool) {
	p := m.lookup(id)
	if p == nil {
		return 0, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.missed, true
}

// StateOf returns the probe state for id, StateRemoved when it is not tracked.
func (m *Monitor) StateOf(id uuid.UUID) State {
	p := m.lookup(id)
	if p == nil {
		return StateRemoved
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (m *Monitor) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.probes)
}

// Stop untracks every connection without evicting it.
func (m *Monitor) Stop() {
	m.mu.Lock()
	ids := make([]uuid.UUID, 0, len(m.probes))
	for id := range m.probes {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Untrack(id)
	}
}

func (m *Monitor) lookup(id uuid.UUID) *probe {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.probes[id]
}
