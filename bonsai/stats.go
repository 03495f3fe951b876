package bonsai

import (
	"fmt"

	"github.com/gholt/brimtext"
)

// Stats is a point-in-time snapshot of a tree's shape, rendered the way
// the teacher renders ValuesStoreStats and valuesLocMapStats.
type Stats struct {
	Count      uint64
	Height     int32
	Bounds     int
	Finalized  bool
	AllocUsed  uint32
	AllocAvail uint32
}

// Stats captures a snapshot of t's current shape and arena usage.
func (t *Tree) Stats() Stats {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return Stats{
		Count:      t.count,
		Height:     t.Height(),
		Bounds:     int(t.lcpBound),
		Finalized:  t.finalized,
		AllocUsed:  t.a.Used(),
		AllocAvail: t.a.Avail(),
	}
}

func (s Stats) String() string {
	return brimtext.Align([][]string{
		{"count", fmt.Sprintf("%d", s.Count)},
		{"height", fmt.Sprintf("%d", s.Height)},
		{"bounds", fmt.Sprintf("%d", s.Bounds)},
		{"finalized", fmt.Sprintf("%t", s.Finalized)},
		{"allocUsed", fmt.Sprintf("%d", s.AllocUsed)},
		{"allocAvail", fmt.Sprintf("%d", s.AllocAvail)},
	}, nil)
}
