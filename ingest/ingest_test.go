package ingest_test

import (
	"context"
	"testing"

	"github.com/hse-project/c0kvms/arena"
	"github.com/hse-project/c0kvms/ingest"
	"github.com/hse-project/c0kvms/internal/testutil"
	"github.com/hse-project/c0kvms/kvms"
	"github.com/hse-project/c0kvms/kvset"
	"github.com/hse-project/c0kvms/seqref"
)

type fakeRegistry struct {
	minSeqno uint64
	order    uint64
}

func (r *fakeRegistry) MinSeqnoGet() uint64   { return r.minSeqno }
func (r *fakeRegistry) MinSeqnoSet(sn uint64) { r.minSeqno = sn }
func (r *fakeRegistry) IngestOrderRegister() uint64 {
	r.order++
	return r.order
}

func TestPrepareCollectsOneSourcePerNonEmptySet(t *testing.T) {
	m, _, err := kvms.Create(4, 1<<16, 1, testutil.DefaultCallback)
	if err != nil {
		t.Fatal(err)
	}

	keys := []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot"}
	for i, k := range keys {
		set := m.HashedSet(kvms.HashKey(1, []byte(k)))
		if err := set.Put(1, []byte(k), []byte("v"), seqref.Ord(uint64(i+1))); err != nil {
			t.Fatal(err)
		}
	}
	m.SeqnoSet(uint64(len(keys)))
	m.Finalize(testutil.SyncWorkQueue{})

	reg := &fakeRegistry{minSeqno: 0}
	work, err := ingest.Prepare(context.Background(), m, reg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer work.Destroy()

	if work.MaxSeqno != uint64(len(keys)) {
		t.Fatalf("got MaxSeqno %d, want %d", work.MaxSeqno, len(keys))
	}
	if work.MinSeqno != 0 {
		t.Fatalf("got MinSeqno %d, want 0", work.MinSeqno)
	}
	if reg.MinSeqnoGet() != work.MaxSeqno {
		t.Fatal("expected the registry's watermark to advance to the ingest window's max")
	}

	nonEmpty := 0
	for _, s := range m.Sets() {
		if s.ElementCount() > 0 {
			nonEmpty++
		}
	}
	if len(work.Sources) != nonEmpty {
		t.Fatalf("got %d sources, want one per non-empty set (%d)", len(work.Sources), nonEmpty)
	}

	seen := map[string]bool{}
	for _, src := range work.Sources {
		for {
			bkv, ok := src.Pop()
			if !ok {
				break
			}
			seen[string(bkv.Key())] = true
		}
	}
	if len(seen) != len(keys) {
		t.Fatalf("merged %d unique keys, want %d (%v)", len(seen), len(keys), seen)
	}
	for _, k := range keys {
		if !seen[k] {
			t.Fatalf("missing key %q after merge", k)
		}
	}
}

func TestPrepareAppendsLateCommittedSources(t *testing.T) {
	m, _, err := kvms.Create(2, 1<<16, 1, testutil.DefaultCallback)
	if err != nil {
		t.Fatal(err)
	}
	set := m.HashedSet(kvms.HashKey(1, []byte("only")))
	if err := set.Put(1, []byte("only"), []byte("v"), seqref.Ord(1)); err != nil {
		t.Fatal(err)
	}
	m.SeqnoSet(1)
	m.Finalize(nil)

	lcSet := kvset.New(arena.New(1<<16), 4096, testutil.DefaultCallback)
	if err := lcSet.Put(1, []byte("late"), []byte("v"), seqref.Ord(1)); err != nil {
		t.Fatal(err)
	}
	lc := &testutil.FakeLC{Sources: []*ingest.Source{lcSet.IteratorInit(0, 0)}}

	reg := &fakeRegistry{}
	work, err := ingest.Prepare(context.Background(), m, reg, lc)
	if err != nil {
		t.Fatal(err)
	}
	defer work.Destroy()

	foundLate := false
	for _, src := range work.Sources {
		for {
			bkv, ok := src.Pop()
			if !ok {
				break
			}
			if string(bkv.Key()) == "late" {
				foundLate = true
			}
		}
	}
	if !foundLate {
		t.Fatal("expected the late-committed buffer's key to appear in the merged sources")
	}
}
