// Package arena implements the allocation budget backing a kv-set's Bonsai
// tree, generalized from the teacher's valuesMem{toc, values []byte}
// pairing (valuesstore.go). An Arena only accounts bytes; the tree's
// node/bkv/value records are ordinary Go allocations, not carved out of a
// slab.
//
// An Arena is never shared across kv-sets (§5 "Shared resource policy").
package arena

import (
	"sync/atomic"

	"github.com/gholt/brimutil"
)

// outOfMemoryError is the type of ErrOutOfMemory, returned by Reserve when
// the arena's budget is exhausted; per §7, the caller's in-progress
// structural mutation must be discarded before this propagates, never
// partially committed.
type outOfMemoryError struct{}

func (outOfMemoryError) Error() string { return "arena: out of memory" }

// ErrOutOfMemory is the sentinel returned by Reserve on exhaustion.
var ErrOutOfMemory error = outOfMemoryError{}

// Allocator is the §6 "Consumed from collaborators: Allocator" contract:
// Reserve/Release account a budget, Used/Avail report it, Destroy tears
// it down. bonsai.Tree and kvset.Set are written against this interface
// rather than the concrete Arena so a test can substitute a fault-
// injecting double (internal/testutil.FakeAllocator) without needing a
// real power-of-two-rounded slab.
type Allocator interface {
	Reserve(size uint32) error
	Release(size uint32)
	Used() uint32
	Avail() uint32
	Destroy()
}

// Arena tracks a byte budget for the structures (nodes, bkvs, value
// records) a kv-set's Bonsai tree allocates. Node storage itself is
// ordinary garbage-collected Go memory (nodes and bkvs hold live pointers
// and must be precisely scanned by the GC, unlike the teacher's flat TOC
// byte slabs); Arena's role is purely the accounting and capacity policy
// the teacher's valuesMem{toc, values []byte} pairing implements for its
// own per-core staging buffers in valuesstore.go — one allocator per
// kv-set, sized once, exhausted deterministically rather than growing
// without bound.
type Arena struct {
	cap   uint32
	used  uint32
	avail uint32
}

// New creates an Arena with a budget rounded up to the next power of two
// of at least minSize bytes, mirroring how the teacher sizes
// MemValuesPageSize from MaxValueSize in NewValuesStoreOpts.
func New(minSize uint32) *Arena {
	if minSize < 64 {
		minSize = 64
	}
	sz := uint32(1) << brimutil.PowerOfTwoNeeded(uint64(minSize))
	return &Arena{cap: sz, avail: sz}
}

// Reserve accounts size bytes against the arena's budget, returning
// ErrOutOfMemory if doing so would exceed it. Call this once per logical
// allocation (a node, a bkv, a value record) immediately before
// constructing it.
func (a *Arena) Reserve(size uint32) error {
	for {
		used := atomic.LoadUint32(&a.used)
		if used+size > a.cap {
			return ErrOutOfMemory
		}
		if atomic.CompareAndSwapUint32(&a.used, used, used+size) {
			atomic.StoreUint32(&a.avail, a.cap-(used+size))
			return nil
		}
	}
}

// Release gives back size bytes of budget, used when a reservation is
// unwound (e.g. a clone discarded before publish, §4.A "Failure modes").
func (a *Arena) Release(size uint32) {
	for {
		used := atomic.LoadUint32(&a.used)
		n := size
		if n > used {
			n = used
		}
		if atomic.CompareAndSwapUint32(&a.used, used, used-n) {
			atomic.StoreUint32(&a.avail, a.cap-(used-n))
			return
		}
	}
}

// Used returns bytes reserved so far.
func (a *Arena) Used() uint32 { return atomic.LoadUint32(&a.used) }

// Avail returns bytes remaining in the budget.
func (a *Arena) Avail() uint32 { return atomic.LoadUint32(&a.avail) }

// Cap returns the total budget.
func (a *Arena) Cap() uint32 { return a.cap }

// Destroy marks the arena as no longer in use. Callers must ensure no
// reader holds an in-flight RCU read-side section over data it tracked
// (§3 "a kvms exclusively owns its kv-sets and their allocator").
func (a *Arena) Destroy() {
	atomic.StoreUint32(&a.used, 0)
	atomic.StoreUint32(&a.avail, a.cap)
}
