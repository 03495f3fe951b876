// Package seqref implements the seqref: a discriminated reference to
// either a committed ordinal sequence number or a live transaction token.
// Seqref ordering is total within ordinals and places live-transaction
// seqrefs above all ordinals until they resolve (GLOSSARY, "seqref").
package seqref

import "fmt"

// Kind distinguishes an ordinal (committed) seqref from a transaction
// (uncommitted) one.
type Kind uint8

const (
	// Ordinal identifies a committed sequence number, comparable by value.
	Ordinal Kind = iota
	// Txn identifies a live transaction's snapshot token. A Txn seqref
	// compares as newer than every Ordinal until it resolves into one.
	Txn
)

// Invalid is the zero value: neither an ordinal nor a resolved txn seqref.
var Invalid = Seqref{}

// Seqref is a small value type; it is cheap to copy and compare.
type Seqref struct {
	kind  Kind
	valid bool
	seqno uint64 // meaningful only when kind == Ordinal
	token uint64 // meaningful only when kind == Txn; opaque txn identity
}

// Ord constructs a committed seqref for the given sequence number.
func Ord(seqno uint64) Seqref {
	return Seqref{kind: Ordinal, valid: true, seqno: seqno}
}

// TxnRef constructs a live-transaction seqref for the given opaque token.
// The transaction manager (external collaborator, §6) owns token identity.
func TxnRef(token uint64) Seqref {
	return Seqref{kind: Txn, valid: true, token: token}
}

// IsValid reports whether this seqref was ever assigned.
func (s Seqref) IsValid() bool { return s.valid }

// IsTxn reports whether this seqref is a live transaction token.
func (s Seqref) IsTxn() bool { return s.valid && s.kind == Txn }

// Ordno returns the ordinal sequence number; only meaningful if !IsTxn().
func (s Seqref) Ordno() uint64 { return s.seqno }

// Token returns the opaque transaction token; only meaningful if IsTxn().
func (s Seqref) Token() uint64 { return s.token }

// Equal reports whether two seqrefs denote the same reference: same kind
// and same underlying value.
func (s Seqref) Equal(o Seqref) bool {
	if s.valid != o.valid {
		return false
	}
	if !s.valid {
		return true
	}
	if s.kind != o.kind {
		return false
	}
	if s.kind == Ordinal {
		return s.seqno == o.seqno
	}
	return s.token == o.token
}

// Less reports whether s is older than o under the value-chain ordering
// rule: ordinals compare numerically, a Txn seqref is newer than every
// Ordinal, and two Txn seqrefs are incomparable by age (treated as equal
// rank; callers disambiguate by identity via Equal).
func (s Seqref) Less(o Seqref) bool {
	if s.kind == Ordinal && o.kind == Ordinal {
		return s.seqno < o.seqno
	}
	if s.kind == Txn && o.kind == Ordinal {
		return false
	}
	if s.kind == Ordinal && o.kind == Txn {
		return true
	}
	return false
}

// VisibleTo reports whether this seqref is visible to a reader viewing at
// viewSeqno with caller seqref callerRef: an ordinal is visible if it is
// <= viewSeqno; a txn seqref is visible only if it matches callerRef
// exactly (§4.D MVCC value choice, rule c).
func (s Seqref) VisibleTo(viewSeqno uint64, callerRef Seqref) bool {
	if !s.valid {
		return false
	}
	if s.kind == Ordinal {
		return s.seqno <= viewSeqno
	}
	return callerRef.valid && callerRef.kind == Txn && callerRef.token == s.token
}

func (s Seqref) String() string {
	if !s.valid {
		return "seqref(invalid)"
	}
	if s.kind == Ordinal {
		return fmt.Sprintf("seqref(ord=%d)", s.seqno)
	}
	return fmt.Sprintf("seqref(txn=%d)", s.token)
}
