// Package kvms implements the kv-multiset: a width-W bank of kv-sets plus
// one dedicated prefix-tombstone set, the unit of concurrency a C0 staging
// index hands writers (spec §4.C), generalized from the teacher's
// per-core free-channel pools in valuesstore.go (freeVWRChans, freeVMChan)
// and the splitCount/used sampling in valuelocmap.go.
package kvms

import (
	"errors"
	"sync/atomic"

	"github.com/hse-project/c0kvms/bonsai"
	"github.com/hse-project/c0kvms/c0log"
	"github.com/hse-project/c0kvms/kvset"
	"github.com/hse-project/c0kvms/rcu"
)

// MinWidth and MaxWidth clamp the width a caller may request from Create,
// mirroring the teacher's clamping of WorkersInFileWriters and similar
// knobs in NewValuesStoreOpts.
const (
	MinWidth = 1
	MaxWidth = 64
)

// InvalidSeqno marks a kvms seqno/reserved-seqno slot as unset.
const InvalidSeqno = ^uint64(0)

// ErrOutOfMemory is returned by Create when no more than half the
// requested kv-sets (width/2 or fewer) could be allocated.
var ErrOutOfMemory = errors.New("kvms: out of memory creating kv-sets")

// Governor is an optional process-wide memory budget kv-set creation draws
// from, nil by default (unlimited). Tests exercise the width-narrowing
// path in Create by installing a small Governor via SetGovernor; it is a
// plain byte counter (governorArena), not an arena.Arena.
var Governor *governorArena

// KVMS is a width-W bank of kv-sets aliased twice (indices [1..W] and
// [W+1..2W] are the same *kvset.Set pointers) so hash routing can take
// hash % 2W and still land on a valid set, plus one dedicated ptomb set at
// index 0.
type KVMS struct {
	sets  []*kvset.Set // len 2*width+1; sets[0] is the ptomb set
	width int

	domain *rcu.Domain

	kvdbSeq uint64
	seqno   atomic.Uint64
	rsvdSn  atomic.Uint64
	rsvdSet atomic.Bool

	ingesting atomic.Bool
	ingested  atomic.Bool
	refCount  atomic.Int32
	wq        WorkQueue

	gen uint64

	c0snr     []C0Snr
	c0snrNext atomic.Uint32

	log *c0log.Logger
}

// SetLogger installs the Logger this kvms reports lifecycle events
// through (Finalize, Ingesting, c0snr exhaustion, deferred destruction);
// a nil logger (the default) discards everything, matching a
// DefaultValueStore built without explicit *LogXxx hooks.
func (m *KVMS) SetLogger(l *c0log.Logger) { m.log = c0log.Normalize(l) }

func (m *KVMS) logger() *c0log.Logger {
	if m.log == nil {
		return c0log.Discard
	}
	return m.log
}

// Create builds a kvms with the given requested width, per-kv-set arena
// size, and the kvdb sequence number this kvms was opened at. It returns
// the effective width actually achieved, which may be narrower than
// requested if the Governor ran low (spec §4.C, Open Question "what does
// Create do under partial allocation failure": surface the narrower width
// rather than hide it).
func Create(width int, allocSz uint32, kvdbSeq uint64, cb bonsai.InsertCallback) (*KVMS, int, error) {
	if width < MinWidth {
		width = MinWidth
	}
	if width > MaxWidth {
		width = MaxWidth
	}

	m := &KVMS{
		domain:  rcu.New(),
		kvdbSeq: kvdbSeq,
		wq:      InlineWorkQueue{},
	}
	m.seqno.Store(InvalidSeqno)
	m.rsvdSn.Store(InvalidSeqno)
	m.refCount.Store(1)

	ptombArena := newArena(allocSz / 4)
	m.sets = []*kvset.Set{kvset.New(ptombArena, allocSz/4, cb)}

	created := make([]*kvset.Set, 0, width)
	for i := 0; i < width; i++ {
		a, err := reserveArena(allocSz)
		if err != nil {
			break
		}
		created = append(created, kvset.New(a, allocSz, cb))
	}

	if len(created) <= width/2 {
		return nil, 0, ErrOutOfMemory
	}

	effective := len(created)
	m.width = effective
	sets := make([]*kvset.Set, 2*effective+1)
	sets[0] = m.sets[0]
	for i := 0; i < effective; i++ {
		sets[1+i] = created[i]
		sets[1+effective+i] = created[i]
	}
	m.sets = sets

	m.c0snr = make([]C0Snr, C0SnrMax)
	m.gen = atomic.AddUint64(&globalGen, 1)

	return m, effective, nil
}

// Width returns the kvms's effective width.
func (m *KVMS) Width() int { return m.width }
