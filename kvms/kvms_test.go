package kvms

import (
	"testing"

	"github.com/hse-project/c0kvms/bonsai"
	"github.com/hse-project/c0kvms/seqref"
)

func testCallback(existing *bonsai.Value, val []byte, tomb bonsai.TombKind, ref bonsai.Seqref) (*bonsai.Value, bonsai.IorCode, *bonsai.Value) {
	nv := &bonsai.Value{Bytes: val, Tomb: tomb, Ref: ref}
	if existing == nil {
		return nv, bonsai.IorIns, nil
	}
	nv.Next = existing
	return nv, bonsai.IorAdd, nil
}

func TestCreateClampsWidth(t *testing.T) {
	m, eff, err := Create(0, 1<<16, 1, testCallback)
	if err != nil {
		t.Fatal(err)
	}
	if eff != MinWidth || m.Width() != MinWidth {
		t.Fatalf("got effective width %d, want %d", eff, MinWidth)
	}

	m2, eff2, err := Create(1000, 1<<16, 1, testCallback)
	if err != nil {
		t.Fatal(err)
	}
	if eff2 != MaxWidth || m2.Width() != MaxWidth {
		t.Fatalf("got effective width %d, want %d", eff2, MaxWidth)
	}
}

func TestAliasingInvariant(t *testing.T) {
	m, width, err := Create(4, 1<<16, 1, testCallback)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= width; i++ {
		if m.sets[i] != m.sets[width+i] {
			t.Fatalf("sets[%d] and sets[%d] are not the same pointer", i, width+i)
		}
	}
}

func TestHashedSetRoutesWithinBounds(t *testing.T) {
	m, width, err := Create(4, 1<<16, 1, testCallback)
	if err != nil {
		t.Fatal(err)
	}
	for h := uint64(0); h < uint64(4*width); h++ {
		set := m.HashedSet(h)
		found := false
		for i := 1; i <= 2*width; i++ {
			if m.sets[i] == set {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("HashedSet(%d) returned a set outside [1..2W]", h)
		}
	}
}

func TestGenerationIsMonotonicAcrossCreates(t *testing.T) {
	m1, _, err := Create(1, 1<<16, 1, testCallback)
	if err != nil {
		t.Fatal(err)
	}
	m2, _, err := Create(1, 1<<16, 1, testCallback)
	if err != nil {
		t.Fatal(err)
	}
	if m2.Gen() <= m1.Gen() {
		t.Fatalf("got gen2=%d gen1=%d, want gen2 > gen1", m2.Gen(), m1.Gen())
	}
	before := m1.Gen()
	after := m1.GenUpdate()
	if after <= before {
		t.Fatalf("GenUpdate did not advance: before=%d after=%d", before, after)
	}
}

func TestPtombRoutingIsFixed(t *testing.T) {
	m, _, err := Create(4, 1<<16, 1, testCallback)
	if err != nil {
		t.Fatal(err)
	}
	if m.PtombSet() != m.sets[0] {
		t.Fatal("PtombSet did not return sets[0]")
	}
}

func TestSeqnoAndReservedSeqno(t *testing.T) {
	m, _, err := Create(1, 1<<16, 1, testCallback)
	if err != nil {
		t.Fatal(err)
	}
	if got := m.SeqnoGet(); got != InvalidSeqno {
		t.Fatalf("got initial seqno %d, want InvalidSeqno", got)
	}
	m.SeqnoSet(42)
	if got := m.SeqnoGet(); got != 42 {
		t.Fatalf("got seqno %d, want 42", got)
	}

	if _, ok := m.RsvdSnGet(); ok {
		t.Fatal("expected reserved seqno unset initially")
	}
	if err := m.RsvdSnSet(7); err != nil {
		t.Fatal(err)
	}
	if err := m.RsvdSnSet(8); err != ErrReservedSeqnoSet {
		t.Fatalf("got %v, want ErrReservedSeqnoSet", err)
	}
	sn, ok := m.RsvdSnGet()
	if !ok || sn != 7 {
		t.Fatalf("got (%d, %v), want (7, true)", sn, ok)
	}
}

func TestIngestingIsIdempotentAndReportsFirstCaller(t *testing.T) {
	m, _, err := Create(1, 1<<16, 1, testCallback)
	if err != nil {
		t.Fatal(err)
	}
	if !m.Ingesting() {
		t.Fatal("expected first Ingesting() call to report true")
	}
	if m.Ingesting() {
		t.Fatal("expected second Ingesting() call to report false")
	}
	if !m.IsIngesting() {
		t.Fatal("expected IsIngesting true after Ingesting")
	}
}

func TestRefCountDefersDestroyUntilZero(t *testing.T) {
	m, _, err := Create(1, 1<<16, 1, testCallback)
	if err != nil {
		t.Fatal(err)
	}
	m.GetRef()
	m.PutRef()
	if err := m.sets[0].Put(1, []byte("k"), []byte("v"), seqref.Ord(1)); err != nil {
		t.Fatal(err)
	}
	m.PutRef()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected GetRef after the last PutRef to panic")
		}
	}()
	m.GetRef()
}

func TestC0SnrAllocExhausts(t *testing.T) {
	old := C0SnrMax
	C0SnrMax = 2
	defer func() { C0SnrMax = old }()

	m, _, err := Create(1, 1<<16, 1, testCallback)
	if err != nil {
		t.Fatal(err)
	}
	s1, err := m.C0SnrAlloc()
	if err != nil {
		t.Fatal(err)
	}
	s1.Set(seqref.Ord(1))

	if _, err := m.C0SnrAlloc(); err != nil {
		t.Fatal(err)
	}
	if _, err := m.C0SnrAlloc(); err != ErrC0SnrExhausted {
		t.Fatalf("got %v, want ErrC0SnrExhausted", err)
	}

	ref, ok := s1.Get()
	if !ok || !ref.Equal(seqref.Ord(1)) {
		t.Fatalf("got (%v, %v), want (seqref.Ord(1), true)", ref, ok)
	}
	s1.Drop()
	if _, ok := s1.Get(); ok {
		t.Fatal("expected slot cleared after Drop")
	}
}

func TestShouldIngestTrueWhileIngesting(t *testing.T) {
	old := IngestSkipProbability
	IngestSkipProbability = 0
	defer func() { IngestSkipProbability = old }()

	m, _, err := Create(2, 1<<16, 1, testCallback)
	if err != nil {
		t.Fatal(err)
	}
	m.Ingesting()
	if !m.ShouldIngest() {
		t.Fatal("expected ShouldIngest to report true once ingesting has begun")
	}
}

func TestShouldIngestTrueWhenASampledSetIsOverThreshold(t *testing.T) {
	old := IngestSkipProbability
	IngestSkipProbability = 0
	defer func() { IngestSkipProbability = old }()

	m, _, err := Create(2, 1<<20, 1, testCallback)
	if err != nil {
		t.Fatal(err)
	}
	// ShouldIngest samples width/2 sets from a random offset, so drive the
	// hot key past the threshold in every ordinary set.
	key := []byte("hot")
	for s := 1; s <= m.Width(); s++ {
		for i := 0; i < ingestKeyvalsThreshold+1; i++ {
			if err := m.sets[s].Put(1, key, []byte("v"), seqref.Ord(uint64(i))); err != nil {
				t.Fatalf("put %d into set %d failed: %v", i, s, err)
			}
		}
	}
	if !m.ShouldIngest() {
		t.Fatal("expected ShouldIngest true once a sampled set's max values-per-key exceeds the keyvals threshold")
	}
}

func TestWidthNarrowsUnderGovernor(t *testing.T) {
	SetGovernor(6 * (1 << 16))
	defer SetGovernor(0)

	_, eff, err := Create(8, 1<<16, 1, testCallback)
	if err != nil {
		t.Fatal(err)
	}
	if eff >= 8 {
		t.Fatalf("got effective width %d, want it narrowed below 8", eff)
	}
	if eff <= 4 {
		t.Fatalf("got effective width %d, want it above width/2=4", eff)
	}
}

func TestCreateFailsWhenFewerThanHalfAllocate(t *testing.T) {
	SetGovernor(1 << 16)
	defer SetGovernor(0)

	if _, _, err := Create(8, 1<<16, 1, testCallback); err != ErrOutOfMemory {
		t.Fatalf("got %v, want ErrOutOfMemory", err)
	}
}

func TestDestroyDropsAllocatedC0Snrs(t *testing.T) {
	m, _, err := Create(2, 1<<16, 1, testCallback)
	if err != nil {
		t.Fatal(err)
	}
	s1, err := m.C0SnrAlloc()
	if err != nil {
		t.Fatal(err)
	}
	s2, err := m.C0SnrAlloc()
	if err != nil {
		t.Fatal(err)
	}
	s1.Set(seqref.Ord(1))
	s2.Set(seqref.Ord(2))

	m.destroy()

	if _, ok := s1.Get(); ok {
		t.Fatal("expected c0snr slot 1 dropped on destroy")
	}
	if _, ok := s2.Get(); ok {
		t.Fatal("expected c0snr slot 2 dropped on destroy")
	}
}

func TestStats(t *testing.T) {
	m, width, err := Create(4, 1<<16, 1, testCallback)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.sets[1].Put(1, []byte("a"), []byte("v"), seqref.Ord(1)); err != nil {
		t.Fatal(err)
	}

	s := m.Stats()
	if s.Width != width {
		t.Fatalf("got width %d, want %d", s.Width, width)
	}
	if s.KeyCount != 1 {
		t.Fatalf("got keyCount %d, want 1", s.KeyCount)
	}
	if s.Ingesting || s.Ingested {
		t.Fatal("expected a freshly created kvms to report not ingesting/ingested")
	}
	if s.RefCount != 1 {
		t.Fatalf("got refCount %d, want 1", s.RefCount)
	}
	if s.String() == "" {
		t.Fatal("expected non-empty Stats.String()")
	}
}
