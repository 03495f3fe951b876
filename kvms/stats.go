package kvms

import (
	"fmt"

	"github.com/gholt/brimtext"
)

// Stats is a point-in-time snapshot of a kvms's shape, rendered the way
// every stats struct in this module is (brimtext.Align, matching
// ValuesStoreStats.String()).
type Stats struct {
	Gen        uint64
	Width      int
	Seqno      uint64
	Ingesting  bool
	Ingested   bool
	RefCount   int32
	C0SnrUsed  uint32
	C0SnrMax   uint32
	KeyCount   uint64
	AllocUsed  uint64
	AllocAvail uint64
}

// Stats captures a snapshot of m's current shape: generation, lifecycle
// flags, c0snr pool occupancy, and aggregate key count / arena usage
// across every distinct kv-set this kvms owns (the ptomb set and
// [1..width], skipping the [width+1..2*width] alias range).
func (m *KVMS) Stats() Stats {
	s := Stats{
		Gen:       m.gen,
		Width:     m.width,
		Seqno:     m.seqno.Load(),
		Ingesting: m.ingesting.Load(),
		Ingested:  m.ingested.Load(),
		RefCount:  m.refCount.Load(),
		C0SnrUsed: m.c0snrNext.Load(),
		C0SnrMax:  uint32(len(m.c0snr)),
	}
	for i := 0; i <= m.width; i++ {
		s.KeyCount += m.sets[i].ElementCount()
		used, avail := m.sets[i].Usage()
		s.AllocUsed += used
		s.AllocAvail += avail
	}
	return s
}

func (s Stats) String() string {
	return brimtext.Align([][]string{
		{"gen", fmt.Sprintf("%d", s.Gen)},
		{"width", fmt.Sprintf("%d", s.Width)},
		{"seqno", fmt.Sprintf("%d", s.Seqno)},
		{"ingesting", fmt.Sprintf("%t", s.Ingesting)},
		{"ingested", fmt.Sprintf("%t", s.Ingested)},
		{"refCount", fmt.Sprintf("%d", s.RefCount)},
		{"c0snrUsed", fmt.Sprintf("%d", s.C0SnrUsed)},
		{"c0snrMax", fmt.Sprintf("%d", s.C0SnrMax)},
		{"keyCount", fmt.Sprintf("%d", s.KeyCount)},
		{"allocUsed", fmt.Sprintf("%d", s.AllocUsed)},
		{"allocAvail", fmt.Sprintf("%d", s.AllocAvail)},
	}, nil)
}
