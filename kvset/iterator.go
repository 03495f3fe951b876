package kvset

import "github.com/hse-project/c0kvms/bonsai"

// maxKeyLen bounds the 0xFF-filled seek key a reverse iterator uses to
// start at the last key under a prefix (spec §4.D "prefix bytes followed
// by 0xFF fill to KVS_KEY_LEN_MAX").
const maxKeyLen = 1024

// Iterator is a kv-set's element source: peek/pop/eof/unget/seek over its
// sorted chain, scoped to one skidx when FlagIndex is set. It has no
// independent lifetime; once Destroy is called (or the owning Set is
// destroyed) the source is invalid.
type Iterator struct {
	set     *Set
	flags   Flags
	skidx   uint16
	reverse bool

	value      *bonsai.BKV // next to be popped, nil at EOF
	ungot      *bonsai.BKV // pushed-back value, consumed by the next Peek/Pop
	lastPopped *bonsai.BKV // most recent value returned by Pop, for Unget
}

// IsPtomb reports whether this iterator was created with FlagPtomb.
func (it *Iterator) IsPtomb() bool { return it.flags&FlagPtomb != 0 }

func (it *Iterator) matches(b *bonsai.BKV) bool {
	if it.flags&FlagIndex == 0 {
		return true
	}
	return b.Skidx() == it.skidx
}

func (it *Iterator) step(b *bonsai.BKV) *bonsai.BKV {
	if it.reverse {
		return b.Prev()
	}
	return b.Next()
}

func (it *Iterator) skipToMatch() {
	for it.value != nil && !it.matches(it.value) {
		it.value = it.step(it.value)
	}
}

func (it *Iterator) resetToStart() {
	var start []byte
	if it.reverse {
		start = make([]byte, maxKeyLen)
		for i := range start {
			start[i] = 0xFF
		}
		bkv, ok := it.set.tree.FindLE(bonsai.ComposeKey(it.skidx, start))
		if ok {
			it.value = bkv
		}
	} else {
		bkv, ok := it.set.tree.FindGE(bonsai.ComposeKey(it.skidx, nil))
		if ok {
			it.value = bkv
		}
	}
	it.ungot = nil
	it.lastPopped = nil
	it.skipToMatch()
}

// Peek returns the element that the next Pop would return, without
// consuming it.
func (it *Iterator) Peek() (*bonsai.BKV, bool) {
	if it.ungot != nil {
		return it.ungot, true
	}
	if it.value == nil {
		return nil, false
	}
	return it.value, true
}

// Pop returns and consumes the next element.
func (it *Iterator) Pop() (*bonsai.BKV, bool) {
	v, ok := it.Peek()
	if !ok {
		return nil, false
	}
	if it.ungot != nil {
		it.ungot = nil
		it.lastPopped = v
		return v, true
	}
	it.value = it.step(it.value)
	it.skipToMatch()
	it.lastPopped = v
	return v, true
}

// Eof reports whether the iterator has no further elements.
func (it *Iterator) Eof() bool {
	_, ok := it.Peek()
	return !ok
}

// Unget restores the single most recently popped element so the next Peek
// or Pop returns it again. Only one level of unget is supported, matching
// the element-source contract every caller in this module relies on.
func (it *Iterator) Unget() {
	if it.lastPopped != nil {
		it.ungot = it.lastPopped
		it.lastPopped = nil
	}
}

// Seek repositions the iterator at the first element >= key (or <= key
// when flags carries FlagReverse), scoped to this iterator's skidx.
func (it *Iterator) Seek(key []byte, flags Flags) {
	reverse := it.reverse || flags&FlagReverse != 0
	composite := bonsai.ComposeKey(it.skidx, key)
	it.ungot = nil
	it.lastPopped = nil
	if reverse {
		bkv, ok := it.set.tree.FindLE(composite)
		it.value = nil
		if ok {
			it.value = bkv
		}
	} else {
		bkv, ok := it.set.tree.FindGE(composite)
		it.value = nil
		if ok {
			it.value = bkv
		}
	}
	it.skipToMatch()
}

// Destroy invalidates this element source.
func (it *Iterator) Destroy() {
	it.value = nil
	it.ungot = nil
	it.lastPopped = nil
}
