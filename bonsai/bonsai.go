// Package bonsai implements the Bonsai tree: a single-writer, many-reader
// balanced ordered map from composite keys to newest-first value chains.
// Keys passed to Tree are the composite byte string skidx(2 bytes, big
// endian) ++ userKey; this lets every ordering comparison in the tree be a
// plain bytes.Compare over one slice instead of a two-part comparison, and
// keeps KI's "skidx ‖ key" byte-lexicographic invariant literal rather
// than conceptual. Callers that need per-table (skidx) operations, such as
// kvset.Set, build and strip this prefix; Tree itself does not know how
// many distinct skidx values it holds.
//
// Writers serialize through a single tree-wide lock; structural changes
// clone the touched root-to-leaf path and publish the new shape with one
// atomic store to the tree's root pointer, so a concurrent reader either
// sees the entire old tree or the entire new one, never a partial rotation.
package bonsai

import (
	"errors"

	"github.com/hse-project/c0kvms/seqref"
)

// Seqref is the ordinal-vs-transaction reference used to order a bkv's
// value chain. It is an alias so bonsai, cursor, and kvms share one type.
type Seqref = seqref.Seqref

// TombKind distinguishes a live value from the two tombstone sentinels the
// engine recognizes.
type TombKind uint8

const (
	// TombNone marks an ordinary, non-deleting value.
	TombNone TombKind = iota
	// TombReg is a regular (single-key) tombstone.
	TombReg
	// TombPfx is a prefix-tombstone sentinel; only meaningful in a kv-set's
	// ptomb tree.
	TombPfx
)

func (k TombKind) String() string {
	switch k {
	case TombNone:
		return "none"
	case TombReg:
		return "reg"
	case TombPfx:
		return "pfx"
	default:
		return "unknown"
	}
}

// IorCode reports how InsertOrReplace's callback spliced an incoming value
// into an existing chain.
type IorCode int

const (
	// IorIns means a brand new bkv was created (no prior chain existed).
	IorIns IorCode = iota
	// IorAdd means the incoming value was prepended to an existing chain.
	IorAdd
	// IorRep means the incoming value replaced the chain head in place
	// (equal seqref).
	IorRep
)

func (c IorCode) String() string {
	switch c {
	case IorIns:
		return "ins"
	case IorAdd:
		return "add"
	case IorRep:
		return "rep"
	default:
		return "unknown"
	}
}

// InsertCallback decides, for an existing key, how an incoming (value,
// tomb, seqref) is spliced into the current chain head. It is never called
// for a brand new key — that path is always IorIns and needs no policy
// input. Returning replaced non-nil hands the caller the chain link that
// fell out of the chain (equal-seqref replace); the core never frees it,
// it is simply no longer reachable from the new head once Go's GC takes
// it.
type InsertCallback func(existing *Value, val []byte, tomb TombKind, ref Seqref) (head *Value, code IorCode, replaced *Value)

// ErrOutOfMemory is returned by InsertOrReplace when the tree's arena
// budget is exhausted; no partial structural change is left published.
var ErrOutOfMemory = errors.New("bonsai: out of memory")

// ErrFinalized is returned by any write attempted after Finalize.
var ErrFinalized = errors.New("bonsai: tree is finalized")

// ErrInvalidKey is returned for a zero-length or otherwise malformed key.
var ErrInvalidKey = errors.New("bonsai: invalid key")
