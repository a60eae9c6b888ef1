package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrSendBufferFull  = errors.New("send buffer full")
	ErrTransportClosed = errors.New("transport closed")
)
