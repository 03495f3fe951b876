package bonsai

import "bytes"

// inlineLen is the number of key bytes (after the 2-byte skidx header)
// inlined into a KI for branch-free comparison.
const inlineLen = 12

// KI is the packed key header: table index, declared key length, and the
// first inlineLen bytes of the key, inlined for a cache-friendly,
// branch-free comparison path.
type KI struct {
	Skidx  uint16
	KeyLen uint32
	Inline [inlineLen]byte
}

// ComposeKey builds the composite skidx‖key byte string Tree's operations
// expect, for callers (kvset.Set) that hold a separate skidx and key.
func ComposeKey(skidx uint16, key []byte) []byte {
	b := make([]byte, 2+len(key))
	b[0] = byte(skidx >> 8)
	b[1] = byte(skidx)
	copy(b[2:], key)
	return b
}

// decodeKI splits a composite key (skidx ‖ userKey) into a KI plus the
// user-visible key slice.
func decodeKI(composite []byte) (KI, []byte) {
	var ki KI
	ki.Skidx = uint16(composite[0])<<8 | uint16(composite[1])
	userKey := composite[2:]
	ki.KeyLen = uint32(len(userKey))
	copy(ki.Inline[:], userKey)
	return ki, userKey
}

// Compare is a branch-free ordering test over the inlined bytes: exact and
// correct whenever both keys fit within inlineLen bytes, and a fast
// reject/accept otherwise (ties on Skidx and the inlined prefix fall back
// to KeyLen, which is still only a heuristic for keys longer than
// inlineLen that share a 12-byte prefix — callers needing an exact answer
// for such keys compare full key bytes instead, as Tree's internal search
// does).
func (a KI) Compare(b KI) int {
	if a.Skidx != b.Skidx {
		if a.Skidx < b.Skidx {
			return -1
		}
		return 1
	}
	if c := bytes.Compare(a.Inline[:], b.Inline[:]); c != 0 {
		return c
	}
	if a.KeyLen != b.KeyLen {
		if a.KeyLen < b.KeyLen {
			return -1
		}
		return 1
	}
	return 0
}
