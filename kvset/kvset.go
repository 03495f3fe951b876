// Package kvset implements the kv-set: one Bonsai tree plus the arena that
// backs it, the unit of slab locality a kvms shards writes across (spec
// §4.B), generalized from the per-core valuesMem/valueMemBlock buffer
// pairing in gholt-valuestore's valuesstore.go.
package kvset

import "errors"

// Flags select an iterator's scan behavior.
type Flags uint32

const (
	// FlagPtomb marks an iterator as scanning a ptomb (prefix-tombstone)
	// set; the kv-set itself ignores this, it exists for callers (cursor)
	// that apply ptomb-specific semantics to whatever this iterator yields.
	FlagPtomb Flags = 1 << iota
	// FlagIndex restricts the iterator to bkvs whose skidx matches the
	// skidx given to IteratorInit/Seek.
	FlagIndex
	// FlagReverse walks the sorted chain backward.
	FlagReverse
)

// ErrInvalidKey is returned for a zero-length key.
var ErrInvalidKey = errors.New("kvset: invalid key")
