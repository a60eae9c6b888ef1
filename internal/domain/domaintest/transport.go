package domaintest

import (
	"sync"

	"github.com/pscheid92/storepulse/internal/domain"
)

// Transport records frames in memory. Test use only.
type Transport struct {
	Addr string

	mu      sync.Mutex
	frames  [][]byte
	sendErr error
	closed  bool
	reason  string
}

func NewTransport(addr string) *Transport {
	return &Transport{Addr: addr}
}

func (t *Transport) Send(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return domain.ErrTransportClosed
	}
	if t.sendErr != nil {
		return t.sendErr
	}
	t.frames = append(t.frames, data)
	return nil
}

func (t *Transport) Close(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.closed = true
	t.reason = reason
}

func (t *Transport) RemoteAddr() string { return t.Addr }

// FailSends makes every later Send return err. A nil err restores delivery.
func (t *Transport) FailSends(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sendErr = err
}

// Messages decodes every recorded frame.
func (t *Transport) Messages() []domain.Message {
	t.mu.Lock()
	defer t.mu.Unlock()

	messages := make([]domain.Message, 0, len(t.frames))
	for _, frame := range t.frames {
		msg, err := domain.Decode(frame)
		if err != nil {
			panic(err)
		}
		messages = append(messages, msg)
	}
	return messages
}

// Events returns the event names of recorded frames, skipping probes.
func (t *Transport) Events() []string {
	var events []string
	for _, msg := range t.Messages() {
		if msg.Event == domain.EventPing {
			continue
		}
		events = append(events, msg.Event)
	}
	return events
}

func (t *Transport) Closed() (bool, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed, t.reason
}
