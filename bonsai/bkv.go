package bonsai

import "sync/atomic"

// BKVFlags are the per-bkv flags carried alongside its value chain.
type BKVFlags uint32

const (
	// FlagPtomb marks a bkv that lives in a ptomb (prefix-tombstone) tree.
	FlagPtomb BKVFlags = 1 << iota
	// FlagTombHead marks a bkv that is the head of a tomb-span run; only
	// meaningful on a bkv whose current chain head IsTomb().
	FlagTombHead
)

// BKV is the per-unique-key record: its KI, the full composite key, its
// newest-first value chain, its links into the tree-wide sorted chain, and
// tomb-span bookkeeping.
type BKV struct {
	KI        KI
	RawKey    []byte // composite skidx ‖ userKey, as given to Tree
	Head      atomic.Pointer[Value]
	Flags     BKVFlags
	prev      atomic.Pointer[BKV]
	next      atomic.Pointer[BKV]
	spanCache atomic.Pointer[tombSpanCache]
	sentinel  bool
}

// tombSpanCache is the memoized result of walking past a run of
// tombstones starting at a given bkv, tagged with the tree's spanVer at
// the time it was computed so a later non-tomb insert that bumps spanVer
// invalidates it. Storing tail and ver together behind one atomic pointer
// keeps the cache update a single atomic write, avoiding a torn read
// between two fields on concurrent readers.
type tombSpanCache struct {
	tail *BKV
	ver  uint64
}

// Key returns the user-visible key (the composite key with its 2-byte
// skidx header stripped).
func (b *BKV) Key() []byte { return b.RawKey[2:] }

// Skidx returns the table index this bkv belongs to.
func (b *BKV) Skidx() uint16 { return b.KI.Skidx }

// IsTomb reports whether this bkv's current chain head is a tombstone.
func (b *BKV) IsTomb() bool {
	h := b.Head.Load()
	return h != nil && h.IsTomb()
}

// Next returns the next bkv in sorted chain order, or nil at the tail
// sentinel.
func (b *BKV) Next() *BKV { return derefSentinel(b.next.Load()) }

// Prev returns the previous bkv in sorted chain order, or nil at the head
// sentinel.
func (b *BKV) Prev() *BKV { return derefSentinel(b.prev.Load()) }

func derefSentinel(b *BKV) *BKV {
	if b != nil && b.sentinel {
		return nil
	}
	return b
}

// sentinel marks the root of the circular sorted chain; it carries no key
// or value of its own.
func newSentinel() *BKV {
	s := &BKV{sentinel: true}
	s.next.Store(s)
	s.prev.Store(s)
	return s
}
