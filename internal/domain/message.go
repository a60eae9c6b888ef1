package domain

import (
	"encoding/json"
	"fmt"
)

// Event names pushed to clients.
const (
	EventInitProducts   = "init_products"
	EventInitOrders     = "init_orders"
	EventNewProduct     = "new_product"
	EventProductDeleted = "product_deleted"
	EventProductsReset  = "products_reset"
	EventNewOrder       = "new_order"
	EventOrderDeleted   = "order_deleted"
	EventOrdersReset    = "orders_reset"
	EventPing           = "ping"
)

// EventPong is the only event clients send: the answer to a probe.
const EventPong = "pong"

// Message is the wire envelope shared by both directions.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type ProbePayload struct {
	Seq uint64 `json:"seq"`
}

type DeletedPayload struct {
	ID string `json:"id"`
}

type ResetPayload struct {
	Removed int `json:"removed"`
}

// Encode builds the JSON frame for an outbound event.
func Encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	frame, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", event, err)
	}
	return frame, nil
}

// Decode parses an inbound frame.
func Decode(frame []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(frame, &msg); err != nil {
		return Message{}, fmt.Errorf("unmarshal message: %w", err)
	}
	return msg, nil
}
