package cursor

import (
	"testing"

	"github.com/hse-project/c0kvms/bonsai"
	"github.com/hse-project/c0kvms/internal/testutil"
	"github.com/hse-project/c0kvms/kvms"
	"github.com/hse-project/c0kvms/seqref"
)

func newTestKVMS(t *testing.T, width int) *kvms.KVMS {
	t.Helper()
	m, _, err := kvms.Create(width, 1<<16, 1, testutil.DefaultCallback)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func put(t *testing.T, m *kvms.KVMS, skidx uint16, key, val string, sn uint64) {
	t.Helper()
	set := m.HashedSet(kvms.HashKey(skidx, []byte(key)))
	if err := set.Put(skidx, []byte(key), []byte(val), seqref.Ord(sn)); err != nil {
		t.Fatal(err)
	}
}

func TestForwardMergeYieldsSortedKeys(t *testing.T) {
	m := newTestKVMS(t, 4)
	want := []string{"alpha", "bravo", "charlie", "delta", "echo"}
	for i, k := range want {
		put(t, m, 1, k, "v", uint64(i+1))
	}

	c := Create(m, 1, nil, 0, false)
	defer c.Destroy()

	var got []string
	for {
		bkv, ok := c.Next()
		if !ok {
			break
		}
		got = append(got, string(bkv.Key()))
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestForwardMergeFiltersOtherSkidx(t *testing.T) {
	m := newTestKVMS(t, 4)
	put(t, m, 1, "alpha", "v", 1)
	put(t, m, 2, "beta", "v", 2)

	c := Create(m, 1, nil, 0, false)
	defer c.Destroy()

	bkv, ok := c.Next()
	if !ok || string(bkv.Key()) != "alpha" {
		t.Fatalf("got (%v, %v), want alpha", bkv, ok)
	}
	if _, ok := c.Next(); ok {
		t.Fatal("expected only one key visible under skidx=1")
	}
}

func TestReverseCursorSurfacesPtombBeforeCoveredKeys(t *testing.T) {
	m := newTestKVMS(t, 4)
	const skidx = uint16(7)
	const ctPfxLen = 2

	put(t, m, skidx, "aa", "v", 1)
	put(t, m, skidx, "ac", "v", 2)
	put(t, m, skidx, "ab1234", "v", 3)
	if err := m.PtombSet().PrefixDel(skidx, []byte("ab"), seqref.Ord(4)); err != nil {
		t.Fatal(err)
	}

	c := Create(m, skidx, []byte("a"), ctPfxLen, true)
	defer c.Destroy()

	var gotKeys []string
	var ptombSeen bool
	for i := 0; i < 4; i++ {
		bkv, ok := c.Next()
		if !ok {
			break
		}
		gotKeys = append(gotKeys, string(bkv.Key()))
		if bkv.Flags&bonsai.FlagPtomb != 0 {
			ptombSeen = true
			if string(bkv.Key()) != "ab" {
				t.Fatalf("ptomb bkv had key %q, want ab", bkv.Key())
			}
		}
	}

	if !ptombSeen {
		t.Fatal("expected the ptomb for \"ab\" to surface in the reverse walk")
	}
	if gotKeys[0] != "ac" {
		t.Fatalf("got first key %q, want ac", gotKeys[0])
	}
	abIdx, ab1234Idx := -1, -1
	for i, k := range gotKeys {
		if k == "ab" {
			abIdx = i
		}
		if k == "ab1234" {
			ab1234Idx = i
		}
	}
	if abIdx == -1 || ab1234Idx == -1 || abIdx > ab1234Idx {
		t.Fatalf("expected ptomb \"ab\" before \"ab1234\", got order %v", gotKeys)
	}
}
