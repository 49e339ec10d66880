// Package ctmp owns the CTMP wire contract and parsing primitives.
//
// Ownership boundary:
// - header/frame primitives
// - one's-complement checksum
// - stateful stream decoder fed by arbitrary chunk boundaries
package ctmp
