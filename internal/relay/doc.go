// Package relay owns the broadcast engine and its TCP service surface.
//
// Ownership boundary:
// - source-slot exclusivity and destination registry (Core)
// - per-destination bounded outboxes drained outside the registry lock
// - accept loops and per-connection handlers (Service)
package relay
