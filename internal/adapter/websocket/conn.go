package websocket

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/storepulse/internal/adapter/metrics"
	"github.com/pscheid92/storepulse/internal/domain"
)

const maxMessageSize = 4096

// Options tune a single connection. Zero values fall back to DefaultOptions.
type Options struct {
	SendBufferSize int
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	PongDeadline   time.Duration
}

func DefaultOptions() Options {
	return Options{
		SendBufferSize: 16,
		WriteTimeout:   5 * time.Second,
		PingInterval:   30 * time.Second,
		PongDeadline:   60 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.SendBufferSize <= 0 {
		o.SendBufferSize = d.SendBufferSize
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	if o.PingInterval <= 0 {
		o.PingInterval = d.PingInterval
	}
	if o.PongDeadline <= 0 {
		o.PongDeadline = d.PongDeadline
	}
	return o
}

// Conn adapts a gorilla connection to domain.Transport. Frames are queued and
// written by a single writer goroutine, so the order of Send calls is the order
// on the wire.
type Conn struct {
	connection *websocket.Conn
	clock      clockwork.Clock
	opts       Options
	metrics    *metrics.ConnectionMetrics
	remoteAddr string

	sendChannel chan []byte
	doneChannel chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
	writeFailed atomic.Bool
}

// NewConn wraps connection and starts its writer goroutine.
func NewConn(connection *websocket.Conn, remoteAddr string, clock clockwork.Clock, opts Options, m *metrics.ConnectionMetrics) *Conn {
	opts = opts.withDefaults()
	c := &Conn{
		connection:  connection,
		clock:       clock,
		opts:        opts,
		metrics:     m,
		remoteAddr:  remoteAddr,
		sendChannel: make(chan []byte, opts.SendBufferSize),
		doneChannel: make(chan struct{}),
	}
	c.configureReader()
	c.wg.Add(1)
	go c.run()
	return c
}

func (c *Conn) RemoteAddr() string { return c.remoteAddr }

// Send queues a frame without blocking.
func (c *Conn) Send(data []byte) error {
	select {
	case <-c.doneChannel:
		return domain.ErrTransportClosed
	default:
	}

	select {
	case c.sendChannel <- data:
		return nil
	default:
		c.metrics.SendErrors.WithLabelValues("buffer_full").Inc()
		return domain.ErrSendBufferFull
	}
}

func (c *Conn) run() {
	ticker := c.clock.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	defer c.wg.Done()

	for {
		select {
		case msg := <-c.sendChannel:
			c.updateWriteDeadline()
			if err := c.connection.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.fail("write", err)
				return
			}
		case <-ticker.Chan():
			c.updateWriteDeadline()
			if err := c.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.fail("ping", err)
				return
			}
		case <-c.doneChannel:
			return
		}
	}
}

// fail records a write fault and closes the socket so the read pump returns.
func (c *Conn) fail(op string, err error) {
	c.writeFailed.Store(true)
	c.metrics.SendErrors.WithLabelValues(op).Inc()
	slog.Debug("WebSocket write failed", "remote_addr", c.remoteAddr, "op", op, "error", err)
	_ = c.connection.Close()
}

// Close stops the writer and sends a close frame carrying reason. Only the
// first call has an effect.
func (c *Conn) Close(reason string) {
	c.stopOnce.Do(func() {
		close(c.doneChannel)

		// the close frame must not race the writer goroutine
		c.wg.Wait()

		if !c.writeFailed.Load() {
			closeMsg := websocket.FormatCloseMessage(closeCode(reason), reason)
			c.updateWriteDeadline()
			_ = c.connection.WriteMessage(websocket.CloseMessage, closeMsg)
		}
		_ = c.connection.Close()
	})
}

// ReadLoop reads client frames until the connection ends and returns the
// disconnect reason. onMessage runs on the calling goroutine.
func (c *Conn) ReadLoop(onMessage func(domain.Message)) string {
	for {
		_, frame, err := c.connection.ReadMessage()
		if err != nil {
			return c.disconnectReason(err)
		}
		c.updateReadDeadline()

		msg, err := domain.Decode(frame)
		if err != nil {
			slog.Debug("Ignoring malformed client frame", "remote_addr", c.remoteAddr, "error", err)
			continue
		}
		onMessage(msg)
	}
}

func (c *Conn) disconnectReason(err error) string {
	if c.writeFailed.Load() {
		return domain.ReasonError
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return domain.ReasonTransportClose
	}

	select {
	case <-c.doneChannel:
		// closed from our side; the registry has already recorded why
		return domain.ReasonTransportClose
	default:
	}

	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		slog.Debug("WebSocket read failed", "remote_addr", c.remoteAddr, "error", err)
	}
	return domain.ReasonError
}

func (c *Conn) configureReader() {
	c.connection.SetReadLimit(maxMessageSize)
	c.updateReadDeadline()
	c.connection.SetPongHandler(func(string) error {
		c.updateReadDeadline()
		return nil
	})
}

func (c *Conn) updateWriteDeadline() {
	_ = c.connection.SetWriteDeadline(c.clock.Now().Add(c.opts.WriteTimeout))
}

func (c *Conn) updateReadDeadline() {
	_ = c.connection.SetReadDeadline(c.clock.Now().Add(c.opts.PongDeadline))
}

func closeCode(reason string) int {
	switch reason {
	case domain.ReasonServerShutdown:
		return websocket.CloseGoingAway
	case domain.ReasonError:
		return websocket.CloseInternalServerErr
	case domain.ReasonLivenessTimeout:
		return websocket.ClosePolicyViolation
	default:
		return websocket.CloseNormalClosure
	}
}
