package kvset

import (
	"bytes"
	"sync/atomic"

	"github.com/hse-project/c0kvms/arena"
	"github.com/hse-project/c0kvms/bonsai"
)

// Set wraps one bonsai.Tree and the arena.Arena backing it. A kv-set
// carries no skidx of its own — it is shared by every skidx routed into
// the same hash bucket — so every operation takes skidx explicitly.
type Set struct {
	tree *bonsai.Tree
	a    arena.Allocator

	maxValuesPerKey int32
}

// New creates a kv-set backed by a, with cb resolving inserts against an
// existing key's chain (kvms supplies the same policy callback to every
// kv-set it owns).
func New(a arena.Allocator, slabSz uint32, cb bonsai.InsertCallback) *Set {
	s := &Set{a: a, maxValuesPerKey: 1}
	s.tree = bonsai.New(a, slabSz, s.wrap(cb))
	return s
}

func (s *Set) wrap(cb bonsai.InsertCallback) bonsai.InsertCallback {
	return func(existing *bonsai.Value, val []byte, tomb bonsai.TombKind, ref bonsai.Seqref) (*bonsai.Value, bonsai.IorCode, *bonsai.Value) {
		head, code, replaced := cb(existing, val, tomb, ref)
		n := int32(0)
		for v := head; v != nil; v = v.Next {
			n++
		}
		for {
			cur := atomic.LoadInt32(&s.maxValuesPerKey)
			if n <= cur || atomic.CompareAndSwapInt32(&s.maxValuesPerKey, cur, n) {
				break
			}
		}
		return head, code, replaced
	}
}

// Put inserts or updates key under skidx with val at ref.
func (s *Set) Put(skidx uint16, key, val []byte, ref bonsai.Seqref) error {
	if len(key) == 0 {
		return ErrInvalidKey
	}
	return s.tree.InsertOrReplace(bonsai.ComposeKey(skidx, key), val, bonsai.TombNone, ref)
}

// Del inserts a regular (single-key) tombstone for key under skidx at ref.
func (s *Set) Del(skidx uint16, key []byte, ref bonsai.Seqref) error {
	if len(key) == 0 {
		return ErrInvalidKey
	}
	return s.tree.InsertOrReplace(bonsai.ComposeKey(skidx, key), nil, bonsai.TombReg, ref)
}

// PrefixDel inserts a prefix-tombstone for prefix under skidx at ref. The
// surrounding kvms always routes this to the ptomb set (index 0).
func (s *Set) PrefixDel(skidx uint16, prefix []byte, ref bonsai.Seqref) error {
	return s.tree.InsertOrReplace(bonsai.ComposeKey(skidx, prefix), nil, bonsai.TombPfx, ref)
}

// Get returns the value visible to (viewSeqno, ref) for key under skidx,
// or found=false if absent, never written, or visible only as a
// tombstone.
func (s *Set) Get(skidx uint16, key []byte, viewSeqno uint64, ref bonsai.Seqref) (val []byte, found bool) {
	bkv, ok := s.tree.Find(bonsai.ComposeKey(skidx, key))
	if !ok {
		return nil, false
	}
	v, ok := bonsai.ChooseValue(bkv.Head.Load(), viewSeqno, ref)
	if !ok || v.IsTomb() {
		return nil, false
	}
	return v.Bytes, true
}

// PrefixProbe returns the smallest bkv under skidx whose key starts with
// prefix.
func (s *Set) PrefixProbe(skidx uint16, prefix []byte, viewSeqno uint64, ref bonsai.Seqref) (*bonsai.BKV, bool) {
	bkv, ok := s.tree.FindGE(bonsai.ComposeKey(skidx, prefix))
	if !ok || bkv.Skidx() != skidx || !bytes.HasPrefix(bkv.Key(), prefix) {
		return nil, false
	}
	return bkv, true
}

// IteratorInit creates an element source over this set scoped by flags
// and skidx.
func (s *Set) IteratorInit(flags Flags, skidx uint16) *Iterator {
	it := &Iterator{set: s, flags: flags, skidx: skidx, reverse: flags&FlagReverse != 0}
	it.resetToStart()
	return it
}

// Finalize freezes the underlying tree against further writes.
func (s *Set) Finalize() { s.tree.Finalize() }

// Usage reports the arena's used and available byte budget.
func (s *Set) Usage() (used, avail uint64) {
	return uint64(s.a.Used()), uint64(s.a.Avail())
}

// ElementCount returns the number of unique keys in this set.
func (s *Set) ElementCount() uint64 { return s.tree.Count() }

// ElementCount2 returns the tree's current height and the largest value
// chain length observed for any single key, the telemetry kvms's
// should-ingest heuristic samples.
func (s *Set) ElementCount2() (height int, maxValuesPerKey int) {
	return int(s.tree.Height()), int(atomic.LoadInt32(&s.maxValuesPerKey))
}

// Destroy tears down the underlying tree and releases its arena. Callers
// must hold the same no-in-flight-reader guarantee bonsai.Tree.Destroy
// and arena.Arena.Destroy require.
func (s *Set) Destroy() {
	s.tree.Destroy()
	s.a.Destroy()
}
