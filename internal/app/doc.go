// Package app is the boundary between the transports and the core.
//
// Hub serializes catalog mutations with connection registration, so a joining
// client receives a snapshot followed by every later event. Reporter publishes
// periodic hub statistics.
package app
