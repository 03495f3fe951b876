package bonsai

import (
	"bytes"
	"sync"
	"sync/atomic"

	"github.com/hse-project/c0kvms/arena"
	"github.com/hse-project/c0kvms/rcu"
)

// Tree is a single-writer, many-reader balanced ordered map. Structural
// mutations serialize through writeMu; readers only ever load root and
// never block on a writer.
type Tree struct {
	root atomic.Pointer[node]

	writeMu   sync.Mutex
	finalized bool
	count     uint64
	lcpBound  int32
	spanVer   uint64

	sentinel *BKV
	a        arena.Allocator
	slabSz   uint32
	cb       InsertCallback
	domain   *rcu.Domain
}

// New creates an empty tree backed by allocator a, using cb to resolve
// inserts against an existing key's chain. slabSz is stored on the tree
// but not otherwise used (the allocator owns the real budget).
func New(a arena.Allocator, slabSz uint32, cb InsertCallback) *Tree {
	return &Tree{
		sentinel: newSentinel(),
		a:        a,
		slabSz:   slabSz,
		cb:       cb,
		lcpBound: 1,
		domain:   rcu.New(),
	}
}

// bkvOverhead is the fixed accounting charge per bkv record (KI + chain
// head pointer + links), mirroring the teacher's per-TOC-entry fixed
// overhead in MemValuesPageSize sizing.
const bkvOverhead = 40

func reserveSize(key, val []byte) uint32 {
	return bkvOverhead + uint32(len(key)) + uint32(len(val))
}

// InsertOrReplace inserts key (a composite skidx‖userKey byte string) with
// val at ref, or splices it into an existing key's chain via the tree's
// InsertCallback. Returns ErrOutOfMemory if the arena can't cover the new
// record and ErrFinalized if Finalize was already called.
func (t *Tree) InsertOrReplace(key []byte, val []byte, tomb TombKind, ref Seqref) error {
	if len(key) < 3 {
		return ErrInvalidKey
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if t.finalized {
		return ErrFinalized
	}

	if existing := t.findLocked(key); existing != nil {
		head, code, replaced := t.cb(existing.Head.Load(), val, tomb, ref)
		_ = code
		_ = replaced
		existing.Head.Store(head)
		atomic.AddUint64(&t.spanVer, 1)
		return nil
	}

	if err := t.a.Reserve(reserveSize(key, val)); err != nil {
		return ErrOutOfMemory
	}

	ki, _ := decodeKI(key)
	bkv := &BKV{KI: ki, RawKey: append([]byte(nil), key...)}
	bkv.Head.Store(&Value{Bytes: val, Tomb: tomb, Ref: ref})

	newRoot, pred, succ := insertNode(t.root.Load(), bkv)
	t.spliceChain(bkv, pred, succ)
	t.root.Store(newRoot)
	t.count++
	atomic.AddUint64(&t.spanVer, 1)
	return nil
}

// insertNode clones the root-to-leaf path down to bkv's insertion point,
// rebalancing on the way back up, and reports the tightest predecessor
// and successor bkvs already in the tree (nil means "none closer found on
// this path yet").
func insertNode(n *node, bkv *BKV) (newN *node, pred, succ *BKV) {
	if n == nil {
		return newNode(bkv, nil, nil), nil, nil
	}
	c := bytes.Compare(bkv.RawKey, n.bkv.RawKey)
	if c < 0 {
		newLeft, p, s := insertNode(n.left.Load(), bkv)
		if s == nil {
			s = n.bkv
		}
		nn := cloneWith(n, newLeft, n.right.Load())
		return rebalance(nn), p, s
	}
	newRight, p, s := insertNode(n.right.Load(), bkv)
	if p == nil {
		p = n.bkv
	}
	nn := cloneWith(n, n.left.Load(), newRight)
	return rebalance(nn), p, s
}

// spliceChain links bkv into the sorted chain between pred and succ (nil
// meaning the sentinel on that side).
func (t *Tree) spliceChain(bkv, pred, succ *BKV) {
	prevNode, nextNode := t.sentinel, t.sentinel
	if pred != nil {
		prevNode = pred
	}
	if succ != nil {
		nextNode = succ
	}
	bkv.prev.Store(prevNode)
	bkv.next.Store(nextNode)
	prevNode.next.Store(bkv)
	nextNode.prev.Store(bkv)
}

// findLocked must be called with writeMu held; it is used by the write
// path to check for an existing key before deciding whether to run the
// structural insert.
func (t *Tree) findLocked(key []byte) *BKV {
	n := t.root.Load()
	for n != nil {
		c := bytes.Compare(key, n.bkv.RawKey)
		if c == 0 {
			return n.bkv
		}
		if c < 0 {
			n = n.left.Load()
		} else {
			n = n.right.Load()
		}
	}
	return nil
}

// Find returns the exact-match bkv for key under an RCU read-side section.
func (t *Tree) Find(key []byte) (*BKV, bool) {
	unlock := t.domain.ReadLock()
	defer unlock()
	n := t.root.Load()
	for n != nil {
		c := bytes.Compare(key, n.bkv.RawKey)
		if c == 0 {
			return n.bkv, true
		}
		if c < 0 {
			n = n.left.Load()
		} else {
			n = n.right.Load()
		}
	}
	return nil, false
}

// FindGE returns the smallest bkv >= key.
func (t *Tree) FindGE(key []byte) (*BKV, bool) {
	unlock := t.domain.ReadLock()
	defer unlock()
	var candidate *BKV
	n := t.root.Load()
	for n != nil {
		c := bytes.Compare(key, n.bkv.RawKey)
		switch {
		case c == 0:
			return n.bkv, true
		case c < 0:
			candidate = n.bkv
			n = n.left.Load()
		default:
			n = n.right.Load()
		}
	}
	if candidate == nil {
		return nil, false
	}
	return candidate, true
}

// FindLE returns the greatest bkv <= key.
func (t *Tree) FindLE(key []byte) (*BKV, bool) {
	unlock := t.domain.ReadLock()
	defer unlock()
	var candidate *BKV
	n := t.root.Load()
	for n != nil {
		c := bytes.Compare(key, n.bkv.RawKey)
		switch {
		case c == 0:
			return n.bkv, true
		case c > 0:
			candidate = n.bkv
			n = n.right.Load()
		default:
			n = n.left.Load()
		}
	}
	if candidate == nil {
		return nil, false
	}
	return candidate, true
}

// SkipTombsGE returns the first non-tombstone bkv >= key, using the span
// cache where it is still valid for the bkv FindGE lands on.
func (t *Tree) SkipTombsGE(key []byte) (*BKV, bool) {
	ge, ok := t.FindGE(key)
	if !ok {
		return nil, false
	}
	b := t.firstNonTomb(ge)
	if b == nil {
		return nil, false
	}
	return b, true
}

func (t *Tree) firstNonTomb(b *BKV) *BKV {
	if b == nil || !b.IsTomb() {
		return b
	}
	ver := atomic.LoadUint64(&t.spanVer)
	if c := b.spanCache.Load(); c != nil && c.ver == ver {
		return c.tail
	}
	cur := b
	for cur != nil && cur.IsTomb() {
		cur = cur.Next()
	}
	b.spanCache.Store(&tombSpanCache{tail: cur, ver: ver})
	return cur
}

// Finalize latches the tree against further writes and computes br_bounds:
// lcp(all keys)+1 when every bkv shares one skidx family, else 1 (no
// shared-prefix shortcut available).
func (t *Tree) Finalize() {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if t.finalized {
		return
	}
	t.finalized = true

	families := map[uint16][]byte{}
	lcps := map[uint16]int{}
	for b := t.sentinel.Next(); b != nil; b = b.Next() {
		sk := b.Skidx()
		prev, ok := families[sk]
		if !ok {
			families[sk] = b.Key()
			lcps[sk] = len(b.Key())
			continue
		}
		l := commonPrefixLen(prev, b.Key())
		if l < lcps[sk] {
			lcps[sk] = l
		}
		families[sk] = b.Key()
	}
	if len(lcps) == 1 {
		for _, l := range lcps {
			t.lcpBound = int32(l) + 1
		}
	} else {
		t.lcpBound = 1
	}
}

func commonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// Bounds returns the latched br_bounds; 1 before Finalize or when keys
// don't share one skidx family.
func (t *Tree) Bounds() int { return int(atomic.LoadInt32(&t.lcpBound)) }

// Traverse walks the sorted chain from the first key, calling fn for each
// bkv until fn returns false or the chain is exhausted.
func (t *Tree) Traverse(fn func(*BKV) bool) {
	for b := t.sentinel.Next(); b != nil; b = b.Next() {
		if !fn(b) {
			return
		}
	}
}

// Count returns the number of unique keys in the tree.
func (t *Tree) Count() uint64 { return atomic.LoadUint64(&t.count) }

// Height returns the tree's current root height (0 for an empty tree).
func (t *Tree) Height() int32 { return nodeHeight(t.root.Load()) }

// Destroy detaches the tree's root and chain so nothing but in-flight
// readers (bounded by a grace period) still reference its nodes. The
// backing arena is owned and destroyed by the caller (kvset.Set), not by
// Tree itself, since one arena may back bookkeeping beyond this tree.
func (t *Tree) Destroy() {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	t.domain.Synchronize()
	t.root.Store(nil)
	t.sentinel.next.Store(t.sentinel)
	t.sentinel.prev.Store(t.sentinel)
}
