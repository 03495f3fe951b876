package kvms

import (
	"github.com/hse-project/c0kvms/bonsai"
	"github.com/hse-project/c0kvms/kvset"
	"github.com/spaolacci/murmur3"
)

// PtombSet returns the dedicated prefix-tombstone set every PrefixDel is
// routed to, regardless of skidx or key (spec §4.C routing rule).
func (m *KVMS) PtombSet() *kvset.Set { return m.sets[0] }

// Sets returns every distinct kv-set this kvms owns, ptomb set first,
// each one exactly once — the aliased range [width+1..2*width] is skipped
// since it points at the same *kvset.Set values as [1..width]. Consumers
// that need one element source per kv-set (cursor, ingest) build their
// fan-out from this slice.
func (m *KVMS) Sets() []*kvset.Set {
	out := make([]*kvset.Set, 0, m.width+1)
	out = append(out, m.sets[0])
	for i := 1; i <= m.width; i++ {
		out = append(out, m.sets[i])
	}
	return out
}

// HashKey hashes a composite (skidx, key) pair for bucket routing, reusing
// the same skidx-prefixed composite layout bonsai.ComposeKey already
// defines rather than inventing a second one.
func HashKey(skidx uint16, key []byte) uint64 {
	return murmur3.Sum64(bonsai.ComposeKey(skidx, key))
}

// HashedSet returns the kv-set a given hash routes to. Because sets
// [1..W] are aliased at [W+1..2W], hash % 2W (not just hash % W) always
// maps into a valid bucket.
func (m *KVMS) HashedSet(hash uint64) *kvset.Set {
	return m.sets[1+hash%uint64(2*m.width)]
}

// PfxProbeRCU probes the one kv-set that HashKey(skidx, prefix) routes to
// for its smallest key under skidx starting with prefix, taking an RCU
// read-side section around the probe (the path a live reader uses while
// writers may still be mutating the kvms). Keys routed by their own hash
// to other kv-sets are not searched.
func (m *KVMS) PfxProbeRCU(skidx uint16, prefix []byte, viewSeqno uint64, ref bonsai.Seqref) (*bonsai.BKV, bool) {
	unlock := m.domain.ReadLock()
	defer unlock()
	return m.probe(skidx, prefix, viewSeqno, ref)
}

// PfxProbeExcl is the same probe without an RCU section, for callers that
// already hold exclusive access (a finalized, ingesting kvms no writer can
// still be mutating).
func (m *KVMS) PfxProbeExcl(skidx uint16, prefix []byte, viewSeqno uint64, ref bonsai.Seqref) (*bonsai.BKV, bool) {
	return m.probe(skidx, prefix, viewSeqno, ref)
}

func (m *KVMS) probe(skidx uint16, prefix []byte, viewSeqno uint64, ref bonsai.Seqref) (*bonsai.BKV, bool) {
	set := m.HashedSet(HashKey(skidx, prefix))
	return set.PrefixProbe(skidx, prefix, viewSeqno, ref)
}
