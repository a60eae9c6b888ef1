// Package store holds the authoritative in-memory product and order collections.
//
// Each Collection guards its slice with a RWMutex and hands out copies, so readers never
// observe a half-applied mutation. Nothing is persisted across restarts.
package store
