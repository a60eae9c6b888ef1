package domain

import (
	"time"

	"github.com/google/uuid"
)

// Disconnect reasons recorded in the connection event log.
const (
	ReasonLivenessTimeout = "liveness timeout"
	ReasonTransportClose  = "transport close"
	ReasonError           = "error"
	ReasonServerShutdown  = "server shutdown"
)

// Transport is the write side of a client connection. Send must not block:
// implementations queue the frame and report ErrSendBufferFull or
// ErrTransportClosed instead of waiting.
type Transport interface {
	Send(data []byte) error
	Close(reason string)
	RemoteAddr() string
}

// Connection is a registered client session. It is owned by the registry;
// other components hold it by ID.
type Connection struct {
	ID            uuid.UUID
	RemoteAddress string
	ConnectedAt   time.Time

	transport Transport
}

func NewConnection(id uuid.UUID, transport Transport, connectedAt time.Time) *Connection {
	return &Connection{
		ID:            id,
		RemoteAddress: transport.RemoteAddr(),
		ConnectedAt:   connectedAt,
		transport:     transport,
	}
}

// Send queues a pre-encoded frame on the connection's transport.
func (c *Connection) Send(data []byte) error {
	return c.transport.Send(data)
}

// SendProbe queues a liveness probe carrying the given sequence number.
func (c *Connection) SendProbe(seq uint64) error {
	data, err := Encode(EventPing, ProbePayload{Seq: seq})
	if err != nil {
		return err
	}
	return c.transport.Send(data)
}

// Close tears down the underlying transport with the given reason.
func (c *Connection) Close(reason string) {
	c.transport.Close(reason)
}

// ConnectionInfo is the read model for a live connection.
type ConnectionInfo struct {
	ID            uuid.UUID `json:"id"`
	RemoteAddress string    `json:"remoteAddress"`
	ConnectedAt   time.Time `json:"connectedAt"`
	MissedProbes  int       `json:"missedProbes"`
}
