package kvms

import (
	"sync/atomic"

	"github.com/hse-project/c0kvms/bonsai"
)

// C0SnrMax bounds the size of a kvms's c0snr pool. It is a var rather than
// a const so config can tune it (c0.c0snr_max) before any kvms is created;
// changing it after a kvms exists has no effect on that kvms's
// already-allocated pool.
var C0SnrMax uint32 = 2048

// C0Snr is one slot in a kvms's c0snr pool: a transaction's handle onto
// its own in-progress writes, carried through a write path instead of a
// bare seqref so the transaction manager has somewhere to stash
// per-transaction kvms-local state (spec §4.C "c0snr pool").
type C0Snr struct {
	idx uint32
	ref atomic.Pointer[bonsai.Seqref]
}

// Set stores the transaction's seqref into this slot.
func (c *C0Snr) Set(ref bonsai.Seqref) { c.ref.Store(&ref) }

// Get returns the slot's seqref and whether one has been set.
func (c *C0Snr) Get() (bonsai.Seqref, bool) {
	p := c.ref.Load()
	if p == nil {
		return bonsai.Seqref{}, false
	}
	return *p, true
}

// Drop clears the slot, the kvms-local analog of the transaction
// manager's droprefv. The transaction manager calls it when no live reader
// still needs this slot's seqref, and the kvms's own destroy calls it on
// every allocated slot.
func (c *C0Snr) Drop() { c.ref.Store(nil) }

// Index returns this slot's position in the pool, stable for its lifetime.
func (c *C0Snr) Index() uint32 { return c.idx }

// C0SnrAlloc claims the next free slot in this kvms's c0snr pool via an
// atomic fetch-add, returning ErrC0SnrExhausted once every slot has been
// handed out.
func (m *KVMS) C0SnrAlloc() (*C0Snr, error) {
	idx := m.c0snrNext.Add(1) - 1
	if idx >= uint32(len(m.c0snr)) {
		m.logger().Error("kvms: gen %d c0snr pool exhausted at %d slots\n", m.gen, len(m.c0snr))
		return nil, ErrC0SnrExhausted
	}
	m.c0snr[idx].idx = idx
	return &m.c0snr[idx], nil
}
