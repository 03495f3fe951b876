// Package cursor implements the merged cursor: a k-way min-heap over a
// kvms's per-kv-set element sources that yields bkvs in total (skidx, key)
// order with correct MVCC value selection and prefix-tombstone semantics
// (spec §4.D). Nothing in the teacher (gholt-valuestore has no cursor
// concept) grounds the merge itself; the heap-of-sorted-sources shape is
// learned from the pack's LSM compaction iterators instead (see
// DESIGN.md).
package cursor

import (
	"container/heap"

	"github.com/hse-project/c0kvms/bonsai"
	"github.com/hse-project/c0kvms/kvms"
	"github.com/hse-project/c0kvms/kvset"
)

// maxKeyLen bounds the 0xFF-filled seek key a reverse cursor uses to
// start at the last key under a prefix (spec §4.D "prefix bytes followed
// by 0xFF fill to KVS_KEY_LEN_MAX"), matching kvset's own reverse-iterator
// start key.
const maxKeyLen = 1024

// Cursor is a merged view over one kvms's W+1 kv-sets, scoped to one
// skidx. The prefix given to Create or Seek only sets the starting
// position; Next does not stop at the end of the keys under it.
type Cursor struct {
	m        *kvms.KVMS
	skidx    uint16
	prefix   []byte
	ctPfxLen int
	reverse  bool

	sources []*kvset.Iterator
	h       *itemHeap
}

// Create opens one iterator per kv-set in m (the ptomb set flagged
// FlagPtomb) and seeks them all to prefix, ready for Next.
func Create(m *kvms.KVMS, skidx uint16, prefix []byte, ctPfxLen int, reverse bool) *Cursor {
	c := &Cursor{
		m:        m,
		skidx:    skidx,
		ctPfxLen: ctPfxLen,
		reverse:  reverse,
	}
	c.openSources()
	c.Seek(prefix, ctPfxLen)
	return c
}

func (c *Cursor) openSources() {
	sets := c.m.Sets()
	c.sources = make([]*kvset.Iterator, len(sets))
	for i, s := range sets {
		flags := kvset.FlagIndex
		if i == 0 {
			flags |= kvset.FlagPtomb
		}
		if c.reverse {
			flags |= kvset.FlagReverse
		}
		c.sources[i] = s.IteratorInit(flags, c.skidx)
	}
}

func extendPrefix(prefix []byte) []byte {
	out := make([]byte, maxKeyLen)
	n := copy(out, prefix)
	for i := n; i < maxKeyLen; i++ {
		out[i] = 0xFF
	}
	return out
}

// Seek repositions every source at seek (extended with 0xFF fill for a
// reverse cursor) and rebuilds the heap. The ptomb source's seek key is
// truncated to ctPfxLen bytes since ptombs live at container-prefix
// granularity, not the full key (spec §4.D).
func (c *Cursor) Seek(seek []byte, ctPfxLen int) {
	c.prefix = append(c.prefix[:0], seek...)
	c.ctPfxLen = ctPfxLen

	ptombKey := seek
	if ctPfxLen < len(ptombKey) {
		ptombKey = ptombKey[:ctPfxLen]
	}

	for i, src := range c.sources {
		key := seek
		if i == 0 {
			key = ptombKey
		}
		if c.reverse {
			key = extendPrefix(key)
		}
		src.Seek(key, 0)
	}
	c.reload()
}

func (c *Cursor) lessFunc() func(a, b *heapItem) bool {
	if c.reverse {
		return bnKvCmpRev
	}
	return bnKvCmp
}

func (c *Cursor) reload() {
	h := &itemHeap{less: c.lessFunc()}
	for _, src := range c.sources {
		if bkv, ok := src.Peek(); ok {
			h.items = append(h.items, &heapItem{bkv: bkv, src: src, isPtomb: src.IsPtomb()})
		}
	}
	heap.Init(h)
	c.h = h
}

// Next pops and returns the smallest (forward) or largest (reverse)
// remaining bkv across every source, refilling the heap from whichever
// source it came from. A bkv popped from the ptomb source is flagged
// bonsai.FlagPtomb so the caller can apply prefix-tombstone logic.
func (c *Cursor) Next() (*bonsai.BKV, bool) {
	if c.h.Len() == 0 {
		return nil, false
	}
	top := heap.Pop(c.h).(*heapItem)
	bkv, ok := top.src.Pop()
	if !ok {
		return nil, false
	}
	if next, ok := top.src.Peek(); ok {
		heap.Push(c.h, &heapItem{bkv: next, src: top.src, isPtomb: top.isPtomb})
	}
	if top.isPtomb {
		bkv.Flags |= bonsai.FlagPtomb
	}
	return bkv, true
}

// Unget empties the heap without moving any source, per the source's
// documented (if possibly wasteful) always-reload behavior: a subsequent
// Seek or Update rebuilds it from the sources' current positions (spec §9
// Open Question, resolved in DESIGN.md).
func (c *Cursor) Unget() bool {
	c.h.items = c.h.items[:0]
	return true
}

// Update rebuilds the heap from the sources' current positions — needed
// after a concurrent write may have made a previously-exhausted source
// non-empty or extended one still open — and reports whether the visible
// set of next-elements actually changed.
func (c *Cursor) Update(ctPfxLen int) (changed bool) {
	before := make(map[*bonsai.BKV]bool, c.h.Len())
	for _, it := range c.h.items {
		before[it.bkv] = true
	}
	c.ctPfxLen = ctPfxLen
	c.reload()
	if len(c.h.items) != len(before) {
		return true
	}
	for _, it := range c.h.items {
		if !before[it.bkv] {
			return true
		}
	}
	return false
}

// Destroy invalidates every source this cursor opened.
func (c *Cursor) Destroy() {
	for _, src := range c.sources {
		src.Destroy()
	}
	c.sources = nil
	c.h = nil
}

// FindValue implements the MVCC value choice rule a cursor applies to
// each popped bkv's chain (spec §4.D "MVCC value choice"); it is a thin
// re-export of bonsai.ChooseValue so cursor callers don't need to import
// bonsai just for this one call.
func FindValue(chain *bonsai.Value, viewSeqno uint64, ref bonsai.Seqref) (*bonsai.Value, bool) {
	return bonsai.ChooseValue(chain, viewSeqno, ref)
}
