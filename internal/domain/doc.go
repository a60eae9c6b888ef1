// Package domain holds the types shared by the core components: connections
// and their transport contract, catalog entities, connection events and the
// wire envelope. It has no goroutines or locks.
package domain
