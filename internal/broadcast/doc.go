// Package broadcast fans catalog events out to every registered connection.
//
// An event is encoded once and queued on each connection's transport. Delivery is
// best-effort: a connection that cannot take the frame is skipped and counted, and
// the mutation that caused the event is never failed because of it.
package broadcast
