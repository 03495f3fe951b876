package kvms

import (
	"errors"
	"sync/atomic"

	"github.com/hse-project/c0kvms/arena"
)

var errGovernorExhausted = errors.New("kvms: governor budget exhausted")

// governorArena is the optional process-wide admission-control budget a
// kvms draws kv-set allocations from, a plain byte counter rather than an
// arena.Arena: arena's power-of-two rounding is a kv-set capacity-sizing
// policy (so the tree's bump allocator never straddles an awkward size),
// not appropriate for a coarse "can we afford one more kv-set" gate.
type governorArena struct {
	cap  uint32
	used uint32
}

// SetGovernor installs a process-wide budget of cap bytes that every
// subsequent kvms.Create draws kv-set allocations from; pass 0 to remove
// the governor (unlimited, the default). Tests use this to exercise
// Create's width-narrowing and out-of-memory paths, which otherwise never
// trigger since arena.New itself cannot fail.
func SetGovernor(cap uint32) {
	if cap == 0 {
		Governor = nil
		return
	}
	Governor = &governorArena{cap: cap}
}

func (g *governorArena) reserve(size uint32) error {
	for {
		used := atomic.LoadUint32(&g.used)
		if used+size > g.cap {
			return errGovernorExhausted
		}
		if atomic.CompareAndSwapUint32(&g.used, used, used+size) {
			return nil
		}
	}
}

// newArena always succeeds, used for the ptomb set which is not subject
// to the governor (it is sized as a quarter of a regular kv-set). The
// kvms's c0snr pool is a separate slice and is not charged to this arena.
func newArena(sz uint32) *arena.Arena {
	return arena.New(sz)
}

// reserveArena allocates a regular kv-set's arena, failing if a Governor
// is installed and its budget is exhausted.
func reserveArena(sz uint32) (*arena.Arena, error) {
	if Governor != nil {
		if err := Governor.reserve(sz); err != nil {
			return nil, err
		}
	}
	return arena.New(sz), nil
}
