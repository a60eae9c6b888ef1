package liveness

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pscheid92/storepulse/internal/adapter/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testInterval  = 10 * time.Second
	testThreshold = 2
)

type fakeTarget struct {
	mu   sync.Mutex
	seqs []uint64
	err  error
}

func (f *fakeTarget) SendProbe(seq uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seqs = append(f.seqs, seq)
	return f.err
}

func (f *fakeTarget) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seqs)
}

func newTestMonitor(t *testing.T) (*Monitor, *clockwork.FakeClock, *metrics.LivenessMetrics) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	m := metrics.NewLivenessMetrics(prometheus.NewRegistry())
	monitor := NewMonitor(clock, testInterval, testThreshold, m)
	t.Cleanup(monitor.Stop)
	return monitor, clock, m
}

func waitForTickers(t *testing.T, clock *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, n))
}

func advanceAndWait(t *testing.T, clock *clockwork.FakeClock, target *fakeTarget, wantProbes int) {
	t.Helper()
	clock.Advance(testInterval)
	require.Eventually(t, func() bool { return target.count() == wantProbes }, time.Second, time.Millisecond)
}

func TestTrack_SendsInitialProbe(t *testing.T) {
	monitor, _, m := newTestMonitor(t)
	target := &fakeTarget{}
	id := uuid.New()

	monitor.Track(id, target, nil)

	assert.Equal(t, 1, target.count())
	missed, ok := monitor.Missed(id)
	require.True(t, ok)
	assert.Equal(t, 1, missed)
	assert.Equal(t, StateAlive, monitor.StateOf(id))
	assert.Equal(t, 1, monitor.Active())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Tracked))
}

func TestSilentConnection_EvictedAfterThresholdPlusOneIntervals(t *testing.T) {
	monitor, clock, m := newTestMonitor(t)
	target := &fakeTarget{}
	evicted := make(chan struct{})
	id := uuid.New()

	monitor.Track(id, target, func() { close(evicted) })
	waitForTickers(t, clock, 1)

	for i := 1; i <= testThreshold; i++ {
		advanceAndWait(t, clock, target, i+1)
		select {
		case <-evicted:
			t.Fatalf("evicted after %d intervals", i)
		default:
		}
	}

	clock.Advance(testInterval)
	select {
	case <-evicted:
	case <-time.After(time.Second):
		t.Fatal("connection was not evicted")
	}

	assert.Equal(t, testThreshold+1, target.count(), "no probe is sent on the evicting tick")
	assert.Equal(t, StateEvicting, monitor.StateOf(id))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Evictions))
}

func TestAcknowledgingConnection_NeverEvicted(t *testing.T) {
	monitor, clock, m := newTestMonitor(t)
	target := &fakeTarget{}
	evicted := make(chan struct{}, 1)
	id := uuid.New()

	monitor.Track(id, target, func() { evicted <- struct{}{} })
	waitForTickers(t, clock, 1)

	for i := range 10 {
		monitor.Acknowledge(id, 0)
		advanceAndWait(t, clock, target, i+2)

		missed, ok := monitor.Missed(id)
		require.True(t, ok)
		assert.Equal(t, 1, missed)
	}

	assert.Empty(t, evicted)
	assert.Equal(t, StateAlive, monitor.StateOf(id))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Evictions))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.Acknowledgments))
}

func TestAcknowledge_ResetsMissedCount(t *testing.T) {
	monitor, clock, _ := newTestMonitor(t)
	target := &fakeTarget{}
	id := uuid.New()

	monitor.Track(id, target, nil)
	waitForTickers(t, clock, 1)
	advanceAndWait(t, clock, target, 2)

	missed, _ := monitor.Missed(id)
	require.Equal(t, 2, missed)

	assert.True(t, monitor.Acknowledge(id, 0))

	missed, _ = monitor.Missed(id)
	assert.Equal(t, 0, missed)
}

func TestAcknowledge_MatchesLatestSequence(t *testing.T) {
	monitor, clock, m := newTestMonitor(t)
	target := &fakeTarget{}
	id := uuid.New()

	monitor.Track(id, target, nil)
	waitForTickers(t, clock, 1)
	advanceAndWait(t, clock, target, 2)

	assert.False(t, monitor.Acknowledge(id, 1), "answer to an earlier probe")
	assert.False(t, monitor.Acknowledge(id, 7), "answer to a probe never sent")
	missed, _ := monitor.Missed(id)
	require.Equal(t, 2, missed)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Acknowledgments))

	assert.True(t, monitor.Acknowledge(id, 2))
	missed, _ = monitor.Missed(id)
	assert.Equal(t, 0, missed)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Acknowledgments))
}

func TestAcknowledge_UnknownIDIgnored(t *testing.T) {
	monitor, _, _ := newTestMonitor(t)

	assert.False(t, monitor.Acknowledge(uuid.New(), 0))
}

func TestUntrack_StopsProbes(t *testing.T) {
	monitor, clock, m := newTestMonitor(t)
	target := &fakeTarget{}
	id := uuid.New()

	monitor.Track(id, target, func() { t.Error("untracked connection must not be evicted") })
	waitForTickers(t, clock, 1)

	monitor.Untrack(id)
	sent := target.count()

	for range testThreshold + 3 {
		clock.Advance(testInterval)
	}
	time.Sleep(10 * time.Millisecond)

	assert.Equal(t, sent, target.count())
	assert.Equal(t, 0, monitor.Active())
	assert.Equal(t, StateRemoved, monitor.StateOf(id))
	_, ok := monitor.Missed(id)
	assert.False(t, ok)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Tracked))
}

func TestUntrack_Idempotent(t *testing.T) {
	monitor, _, _ := newTestMonitor(t)
	id := uuid.New()
	monitor.Track(id, &fakeTarget{}, nil)

	monitor.Untrack(id)
	assert.NotPanics(t, func() { monitor.Untrack(id) })
	assert.NotPanics(t, func() { monitor.Untrack(uuid.New()) })
}

func TestEviction_CallbackMayUntrack(t *testing.T) {
	monitor, clock, _ := newTestMonitor(t)
	target := &fakeTarget{}
	id := uuid.New()
	evicted := make(chan struct{})

	monitor.Track(id, target, func() {
		monitor.Untrack(id)
		close(evicted)
	})
	waitForTickers(t, clock, 1)

	for i := range testThreshold {
		advanceAndWait(t, clock, target, i+2)
	}
	clock.Advance(testInterval)

	select {
	case <-evicted:
	case <-time.After(time.Second):
		t.Fatal("eviction callback deadlocked or never ran")
	}
	assert.Equal(t, 0, monitor.Active())
}

func TestEviction_IndependentPerConnection(t *testing.T) {
	monitor, clock, _ := newTestMonitor(t)
	silent, responsive := &fakeTarget{}, &fakeTarget{}
	silentID, responsiveID := uuid.New(), uuid.New()
	evicted := make(chan uuid.UUID, 2)

	monitor.Track(silentID, silent, func() { evicted <- silentID })
	monitor.Track(responsiveID, responsive, func() { evicted <- responsiveID })
	waitForTickers(t, clock, 2)

	for i := range testThreshold + 1 {
		monitor.Acknowledge(responsiveID, 0)
		clock.Advance(testInterval)
		require.Eventually(t, func() bool { return responsive.count() == i+2 }, time.Second, time.Millisecond)
		if i < testThreshold {
			require.Eventually(t, func() bool { return silent.count() == i+2 }, time.Second, time.Millisecond)
		}
	}

	select {
	case id := <-evicted:
		assert.Equal(t, silentID, id)
	case <-time.After(time.Second):
		t.Fatal("silent connection was not evicted")
	}
	assert.Empty(t, evicted)
	assert.Equal(t, StateAlive, monitor.StateOf(responsiveID))
}

func TestProbeFailure_CountsAsMissed(t *testing.T) {
	monitor, clock, m := newTestMonitor(t)
	target := &fakeTarget{err: errors.New("send buffer full")}
	id := uuid.New()

	monitor.Track(id, target, nil)
	waitForTickers(t, clock, 1)
	advanceAndWait(t, clock, target, 2)

	missed, _ := monitor.Missed(id)
	assert.Equal(t, 2, missed)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ProbeFailures))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ProbesSent))
}

func TestStop_UntracksAll(t *testing.T) {
	monitor, _, _ := newTestMonitor(t)
	for range 3 {
		monitor.Track(uuid.New(), &fakeTarget{}, nil)
	}

	monitor.Stop()

	assert.Equal(t, 0, monitor.Active())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "alive", StateAlive.String())
	assert.Equal(t, "evicting", StateEvicting.String())
	assert.Equal(t, "removed", StateRemoved.String())
	assert.Equal(t, "unknown", State(42).String())
}
