// Package testutil collects small test doubles shared by this module's
// _test.go files, grounded on the teacher's msgRingPlaceholder pattern in
// bulksetack_test.go: a minimal stub satisfying just enough of a
// collaborator's contract to drive a specific test, nothing more.
package testutil

import (
	"sync"

	"github.com/hse-project/c0kvms/arena"
	"github.com/hse-project/c0kvms/bonsai"
	"github.com/hse-project/c0kvms/ingest"
	"github.com/hse-project/c0kvms/kvms"
)

// FakeAllocator is a hand-rolled arena.Allocator with no power-of-two
// rounding and an optionally injectable failure: set FailAfter to the
// number of Reserve calls that should succeed before every subsequent one
// returns arena.ErrOutOfMemory, letting a test exercise bonsai's
// out-of-memory path deterministically instead of sizing a real Arena
// down to the wire.
type FakeAllocator struct {
	mu        sync.Mutex
	used      uint32
	FailAfter int // 0 means never fail
	calls     int
}

var _ arena.Allocator = (*FakeAllocator)(nil)

// Reserve accounts size bytes, failing once FailAfter successful calls
// have already been made.
func (f *FakeAllocator) Reserve(size uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailAfter > 0 && f.calls >= f.FailAfter {
		return arena.ErrOutOfMemory
	}
	f.calls++
	f.used += size
	return nil
}

// Release gives back size bytes of accounted budget.
func (f *FakeAllocator) Release(size uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if size > f.used {
		size = f.used
	}
	f.used -= size
}

// Used returns the bytes reserved so far.
func (f *FakeAllocator) Used() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.used
}

// Avail always reports zero: FakeAllocator has no fixed capacity of its
// own, only the FailAfter call-count trigger.
func (f *FakeAllocator) Avail() uint32 { return 0 }

// Destroy resets the allocator's accounting.
func (f *FakeAllocator) Destroy() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.used = 0
	f.calls = 0
}

// DefaultCallback is the bonsai.InsertCallback every package's tests
// exercise against: it prepends each incoming value as the new chain head,
// replacing the current head in place when its seqref equals the incoming
// one. It does not sort by seqref, so the chain is newest-first only when
// values arrive in ascending seqref order. Centralized here instead of
// duplicated per _test.go file that only needs ordinary chain behavior
// and no special policy of its own.
func DefaultCallback(existing *bonsai.Value, val []byte, tomb bonsai.TombKind, ref bonsai.Seqref) (*bonsai.Value, bonsai.IorCode, *bonsai.Value) {
	nv := &bonsai.Value{Bytes: val, Tomb: tomb, Ref: ref}
	if existing == nil {
		return nv, bonsai.IorIns, nil
	}
	if existing.Ref.Equal(ref) {
		nv.Next = existing.Next
		return nv, bonsai.IorRep, existing
	}
	nv.Next = existing
	return nv, bonsai.IorAdd, nil
}

// SyncWorkQueue is kvms.InlineWorkQueue under a name that reads as a test
// double at call sites that pass it to KVMS.Finalize.
type SyncWorkQueue = kvms.InlineWorkQueue

// FakeLC is a synchronous ingest.LateCommitted stub that always returns a
// fixed slice of sources regardless of the requested seqno window,
// letting ingest tests assert on hand-off plumbing without a real
// late-committed buffer.
type FakeLC struct {
	Sources []*ingest.Source
}

// IngestIterators returns l.Sources unconditionally.
func (l *FakeLC) IngestIterators(minSeqno, maxSeqno uint64) ([]*ingest.Source, error) {
	return l.Sources, nil
}
