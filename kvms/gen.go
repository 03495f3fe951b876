package kvms

import "sync/atomic"

// globalGen is a process-wide monotonic counter every kvms's generation is
// drawn from, mirroring the teacher's atValuesLocBlocksIDer fetch-add ID
// assignment in valuesstore.go: generation order across kvms instances is
// creation order, useful for a caller comparing two kvms for "which one
// came later" without a wall clock.
var globalGen uint64

// Gen returns this kvms's generation, assigned once at Create time.
func (m *KVMS) Gen() uint64 { return m.gen }

// GenUpdate bumps the process-wide generation counter and restamps this
// kvms with the new value, used when a kvms is reused for a subsequent
// ingest cycle rather than replaced.
func (m *KVMS) GenUpdate() uint64 {
	m.gen = atomic.AddUint64(&globalGen, 1)
	return m.gen
}
