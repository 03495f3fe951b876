package bonsai

// Value is a single versioned value in a bkv's chain: opaque bytes (unused
// when Tomb != TombNone), the seqref that ordered it into the chain, and
// the link to the next-older value. Chains are newest-first.
type Value struct {
	Bytes []byte
	Tomb  TombKind
	Ref   Seqref
	Next  *Value
}

// IsTomb reports whether this value is either tombstone sentinel.
func (v *Value) IsTomb() bool { return v != nil && v.Tomb != TombNone }

// ChooseValue implements the MVCC value choice rule (spec §4.D): given a
// chain and a reader's (viewSeqno, ref), pick (a) the value whose seqref
// exactly equals ref if present, else (b) the newest value whose ordinal
// seqno is <= viewSeqno, else (c) nothing. A transaction-seqref value is
// only ever chosen by rule (a); rule (b) skips it, since VisibleTo treats
// an unresolved transaction value as invisible to ordinal readers.
func ChooseValue(chain *Value, viewSeqno uint64, ref Seqref) (*Value, bool) {
	for v := chain; v != nil; v = v.Next {
		if v.Ref.IsValid() && ref.IsValid() && v.Ref.Equal(ref) {
			return v, true
		}
	}
	for v := chain; v != nil; v = v.Next {
		if v.Ref.VisibleTo(viewSeqno, ref) {
			return v, true
		}
	}
	return nil, false
}
