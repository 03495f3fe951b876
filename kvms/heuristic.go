package kvms

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spaolacci/murmur3"
	"golang.org/x/exp/rand"
)

const (
	ingestKeyvalsThreshold = 4096
	ingestHeightThreshold  = 24
	ingestMeanKeyvals      = 2048
	ingestMeanHeight       = 22
)

// IngestSkipProbability is the chance ShouldIngest skips its sampling pass
// and reports false without looking at any kv-set. It is a var, not a
// const, so tests can zero it out to make the heuristic deterministic.
var IngestSkipProbability = 0.97

var rngSeedCounter uint64

func newRand() *rand.Rand {
	n := atomic.AddUint64(&rngSeedCounter, 1)
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], n)
	seed := murmur3.Sum64(buf[:]) ^ uint64(time.Now().UnixNano())
	return rand.New(rand.NewSource(seed))
}

var rngPool = sync.Pool{New: func() interface{} { return newRand() }}

// ShouldIngest samples a subset of this kvms's ordinary kv-sets and
// reports whether it looks full enough to hand to ingest. A kvms already
// ingesting always reports true. Otherwise a 97% coin flip skips the
// (comparatively expensive) sampling pass entirely, matching the teacher's
// preference for cheap, slightly-stale admission checks over exact ones
// on a hot path (spec §4.C, Open Question "how often to evaluate this").
func (m *KVMS) ShouldIngest() bool {
	if m.IsIngesting() {
		return true
	}

	r := rngPool.Get().(*rand.Rand)
	skip := r.Float64() < IngestSkipProbability
	rngPool.Put(r)
	if skip {
		return false
	}

	n := m.width / 2
	if n < 1 {
		n = 1
	}
	offset := 0
	if m.width > 1 {
		r2 := rngPool.Get().(*rand.Rand)
		offset = int(r2.Uint32()) % m.width
		rngPool.Put(r2)
	}

	var sumKeyvals, sumHeight int
	for i := 0; i < n; i++ {
		idx := 1 + (offset+i)%m.width
		set := m.sets[idx]
		height, keyvals := set.ElementCount2()
		if keyvals > ingestKeyvalsThreshold || height > ingestHeightThreshold {
			return true
		}
		sumKeyvals += keyvals
		sumHeight += height
	}

	meanKeyvals := sumKeyvals / n
	meanHeight := sumHeight / n
	return meanKeyvals > ingestMeanKeyvals || meanHeight > ingestMeanHeight
}
