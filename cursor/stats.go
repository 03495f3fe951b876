package cursor

import (
	"fmt"

	"github.com/gholt/brimtext"
)

// Stats is a point-in-time snapshot of a cursor's shape, rendered the way
// every stats struct in this module is (brimtext.Align, matching
// ValuesStoreStats.String()).
type Stats struct {
	Skidx       uint16
	Reverse     bool
	SourceCount int
	HeapLen     int
}

// Stats captures c's current shape.
func (c *Cursor) Stats() Stats {
	return Stats{
		Skidx:       c.skidx,
		Reverse:     c.reverse,
		SourceCount: len(c.sources),
		HeapLen:     c.h.Len(),
	}
}

func (s Stats) String() string {
	return brimtext.Align([][]string{
		{"skidx", fmt.Sprintf("%d", s.Skidx)},
		{"reverse", fmt.Sprintf("%t", s.Reverse)},
		{"sources", fmt.Sprintf("%d", s.SourceCount)},
		{"heapLen", fmt.Sprintf("%d", s.HeapLen)},
	}, nil)
}
