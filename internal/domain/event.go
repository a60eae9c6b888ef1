package domain

import (
	"time"

	"github.com/google/uuid"
)

type ConnectionEventKind string

const (
	EventKindConnect    ConnectionEventKind = "connect"
	EventKindDisconnect ConnectionEventKind = "disconnect"
)

// ConnectionEvent is an immutable record of a connect or disconnect.
type ConnectionEvent struct {
	Kind          ConnectionEventKind `json:"kind"`
	ConnectionID  uuid.UUID           `json:"connectionId"`
	RemoteAddress string              `json:"remoteAddress"`
	ConnectedAt   time.Time           `json:"connectedAt"`
	OccurredAt    time.Time           `json:"occurredAt"`
	Reason        string              `json:"reason,omitempty"`
}

func ConnectEvent(c *Connection, at time.Time) ConnectionEvent {
	return ConnectionEvent{
		Kind:          EventKindConnect,
		ConnectionID:  c.ID,
		RemoteAddress: c.RemoteAddress,
		ConnectedAt:   c.ConnectedAt,
		OccurredAt:    at,
	}
}

func DisconnectEvent(c *Connection, at time.Time, reason string) ConnectionEvent {
	return ConnectionEvent{
		Kind:          EventKindDisconnect,
		ConnectionID:  c.ID,
		RemoteAddress: c.RemoteAddress,
		ConnectedAt:   c.ConnectedAt,
		OccurredAt:    at,
		Reason:        reason,
	}
}
