package kvset

import (
	"testing"

	"github.com/hse-project/c0kvms/arena"
	"github.com/hse-project/c0kvms/bonsai"
	"github.com/hse-project/c0kvms/seqref"
)

func defaultCallback(existing *bonsai.Value, val []byte, tomb bonsai.TombKind, ref bonsai.Seqref) (*bonsai.Value, bonsai.IorCode, *bonsai.Value) {
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

func newTestSet(t *testing.T) *Set {
	t.Helper()
	return New(arena.New(1<<16), 4096, defaultCallback)
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestSet(t)
	if err := s.Put(2, []byte("alpha"), []byte("1"), seqref.Ord(3)); err != nil {
		t.Fatal(err)
	}
	val, found := s.Get(2, []byte("alpha"), 5, seqref.Invalid)
	if !found || string(val) != "1" {
		t.Fatalf("got (%v, %v), want (1, true)", val, found)
	}
	if _, found := s.Get(2, []byte("alpha"), 2, seqref.Invalid); found {
		t.Fatal("expected not found below the insert's seqno")
	}
	if _, found := s.Get(3, []byte("alpha"), 5, seqref.Invalid); found {
		t.Fatal("expected not found under a different skidx")
	}
}

func TestDelMakesKeyInvisible(t *testing.T) {
	s := newTestSet(t)
	s.Put(1, []byte("k"), []byte("v"), seqref.Ord(1))
	s.Del(1, []byte("k"), seqref.Ord(2))
	if _, found := s.Get(1, []byte("k"), 5, seqref.Invalid); found {
		t.Fatal("expected deleted key to be invisible")
	}
}

func TestPrefixProbe(t *testing.T) {
	s := newTestSet(t)
	s.Put(1, []byte("abcdef"), []byte("v"), seqref.Ord(1))
	s.Put(1, []byte("zzz"), []byte("v"), seqref.Ord(1))
	bkv, ok := s.PrefixProbe(1, []byte("abc"), 5, seqref.Invalid)
	if !ok || string(bkv.Key()) != "abcdef" {
		t.Fatalf("got %v, want abcdef", bkv)
	}
	if _, ok := s.PrefixProbe(1, []byte("nomatch"), 5, seqref.Invalid); ok {
		t.Fatal("expected no match for unrelated prefix")
	}
}

func TestElementCountAndMaxValuesPerKey(t *testing.T) {
	s := newTestSet(t)
	s.Put(1, []byte("a"), []byte("v"), seqref.Ord(1))
	s.Put(1, []byte("a"), []byte("v2"), seqref.Ord(2))
	s.Put(1, []byte("b"), []byte("v"), seqref.Ord(1))
	if s.ElementCount() != 2 {
		t.Fatalf("got %d elements, want 2", s.ElementCount())
	}
	_, maxVals := s.ElementCount2()
	if maxVals != 2 {
		t.Fatalf("got maxValuesPerKey %d, want 2", maxVals)
	}
}

func TestIteratorForwardAndReverse(t *testing.T) {
	s := newTestSet(t)
	for _, k := range []string{"b", "a", "c"} {
		s.Put(1, []byte(k), []byte("v"), seqref.Ord(1))
	}
	it := s.IteratorInit(FlagIndex, 1)
	var got []string
	for {
		b, ok := it.Pop()
		if !ok {
			break
		}
		got = append(got, string(b.Key()))
	}
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("got %v, want [a b c]", got)
	}

	rit := s.IteratorInit(FlagIndex|FlagReverse, 1)
	var rgot []string
	for {
		b, ok := rit.Pop()
		if !ok {
			break
		}
		rgot = append(rgot, string(b.Key()))
	}
	if len(rgot) != 3 || rgot[0] != "c" || rgot[1] != "b" || rgot[2] != "a" {
		t.Fatalf("got %v, want [c b a]", rgot)
	}
}

func TestIteratorUngetReplaysLastPopped(t *testing.T) {
	s := newTestSet(t)
	s.Put(1, []byte("a"), []byte("v"), seqref.Ord(1))
	s.Put(1, []byte("b"), []byte("v"), seqref.Ord(1))
	it := s.IteratorInit(FlagIndex, 1)
	first, _ := it.Pop()
	it.Unget()
	again, ok := it.Pop()
	if !ok || string(again.Key()) != string(first.Key()) {
		t.Fatalf("expected Unget to replay %q, got %v", first.Key(), again)
	}
	second, ok := it.Pop()
	if !ok || string(second.Key()) != "b" {
		t.Fatalf("got %v, want b", second)
	}
}

func TestIteratorIndexFlagScopesToSkidx(t *testing.T) {
	s := newTestSet(t)
	s.Put(1, []byte("a"), []byte("v"), seqref.Ord(1))
	s.Put(2, []byte("b"), []byte("v"), seqref.Ord(1))
	it := s.IteratorInit(FlagIndex, 1)
	count := 0
	for {
		_, ok := it.Pop()
		if !ok {
			break
		}
		count++
	}
	if count != 1 {
		t.Fatalf("got %d elements for skidx 1, want 1", count)
	}
}
