package cursor

import (
	"bytes"

	"github.com/hse-project/c0kvms/bonsai"
	"github.com/hse-project/c0kvms/kvset"
)

// heapItem pairs a source's current head with the source itself, so
// popping the heap's root tells the cursor which iterator to advance.
type heapItem struct {
	bkv     *bonsai.BKV
	src     *kvset.Iterator
	isPtomb bool
}

// itemHeap is the k-way min-heap container/heap.Interface driving the
// merged cursor (spec §4.D "Feed non-empty iterators into a k-way min-heap
// keyed by the bkv's (KI ‖ key)"). less is bnKvCmp for a forward cursor,
// bnKvCmpRev for a reverse one.
type itemHeap struct {
	items []*heapItem
	less  func(a, b *heapItem) bool
}

func (h *itemHeap) Len() int            { return len(h.items) }
func (h *itemHeap) Less(i, j int) bool  { return h.less(h.items[i], h.items[j]) }
func (h *itemHeap) Swap(i, j int)       { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *itemHeap) Push(x interface{})  { h.items = append(h.items, x.(*heapItem)) }
func (h *itemHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	h.items = old[:n-1]
	return it
}

// bnKvCmp orders ascending by (skidx, key) — the ordinary forward-cursor
// comparator. RawKey already carries the skidx header, so a plain
// bytes.Compare is the entire comparison (spec §4.A KI invariant).
func bnKvCmp(a, b *heapItem) bool {
	return bytes.Compare(a.bkv.RawKey, b.bkv.RawKey) < 0
}

// bnKvCmpRev orders descending by (skidx, key), except that a ptomb p
// always sorts before any non-ptomb key whose key starts with p — even
// though that key is lexicographically greater than p — so a single
// reverse walk surfaces a prefix tombstone before the keys it covers
// (spec §4.D, Testable Scenario 6).
func bnKvCmpRev(a, b *heapItem) bool {
	if a.isPtomb && bytes.HasPrefix(b.bkv.Key(), a.bkv.Key()) {
		return true
	}
	if b.isPtomb && bytes.HasPrefix(a.bkv.Key(), b.bkv.Key()) {
		return false
	}
	return bytes.Compare(a.bkv.RawKey, b.bkv.RawKey) > 0
}
