// Package ingest implements the hand-off from a finalized kvms to the
// background ingest pipeline (spec §4.E): collecting one element source
// per non-empty kv-set, appending the late-committed buffer's sources for
// the same seqno window, and handing the result to a worker as a
// WorkItem. Grounded on vs.vfWriter/vs.tocWriter in the teacher's
// valuesstore.go — the "drain N producer channels, batch into a file,
// signal done" shape, generalized here from "batch TOC entries" to
// "collect per-set iterators".
package ingest

import (
	"context"

	"github.com/hse-project/c0kvms/kvms"
	"github.com/hse-project/c0kvms/kvset"
	"golang.org/x/sync/errgroup"
)

// Source is the element-source contract ingest collects, reused verbatim
// from kvset rather than redefined.
type Source = kvset.Iterator

// LateCommitted is the external collaborator that produces iterators over
// values whose commit lies within [minSeqno, maxSeqno] (spec §6
// "ingest_iterv_init"). A kvms never holds one of these directly; it is
// supplied fresh to every Prepare call by the surrounding engine.
type LateCommitted interface {
	IngestIterators(minSeqno, maxSeqno uint64) ([]*Source, error)
}

// OrderRegistry is the c0sk collaborator Prepare consults for ingest
// ordering and the running min-seqno watermark (spec §6 "cN / c0sk:
// min_seqno_get, min_seqno_set, ingest_order_register").
type OrderRegistry interface {
	MinSeqnoGet() uint64
	MinSeqnoSet(uint64)
	IngestOrderRegister() uint64
}

// WorkItem is the pre-sized unit Prepare fills and hands to a worker
// thread for merging into cN. When the kvms's ptomb set is non-empty,
// Sources[0] is its iterator, flagged FlagPtomb; empty kv-sets get no
// source. The remainder are its non-empty ordinary kv-sets' iterators
// followed by the late-committed buffer's.
type WorkItem struct {
	Order    uint64
	MinSeqno uint64
	MaxSeqno uint64
	Sources  []*Source

	m *kvms.KVMS
}

// Prepare fills a WorkItem for m: it registers an ingest order, latches
// m's seqno as the window's max and the registry's running watermark as
// the window's min, bumps that watermark to the new max (so consecutive
// ingest orders never see overlapping seqno windows, spec §4.E), fans out
// one goroutine per non-empty kv-set to materialize its iterator, and
// appends the late-committed buffer's iterators for the same window.
//
// m must already be finalized (spec Testable Scenario 5: "call
// finalize(wq) then ingest_work_prepare"); Prepare does not finalize it.
func Prepare(ctx context.Context, m *kvms.KVMS, reg OrderRegistry, lc LateCommitted) (*WorkItem, error) {
	order := reg.IngestOrderRegister()
	maxSeqno := m.SeqnoGet()
	minSeqno := reg.MinSeqnoGet()
	reg.MinSeqnoSet(maxSeqno)

	sets := m.Sets()
	slots := make([]*Source, len(sets))

	g, _ := errgroup.WithContext(ctx)
	for i, s := range sets {
		i, s := i, s
		if s.ElementCount() == 0 {
			continue
		}
		g.Go(func() error {
			flags := kvset.Flags(0)
			if i == 0 {
				flags |= kvset.FlagPtomb
			}
			slots[i] = s.IteratorInit(flags, 0)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sources := make([]*Source, 0, len(slots)+4)
	for _, src := range slots {
		if src != nil {
			sources = append(sources, src)
		}
	}

	if lc != nil {
		lcSources, err := lc.IngestIterators(minSeqno, maxSeqno)
		if err != nil {
			return nil, err
		}
		sources = append(sources, lcSources...)
	}

	m.GetRef()
	return &WorkItem{
		Order:    order,
		MinSeqno: minSeqno,
		MaxSeqno: maxSeqno,
		Sources:  sources,
		m:        m,
	}, nil
}

// Destroy releases this work item's reference on the kvms it drew
// iterators from. If that was the last reference, destruction is queued
// on the WorkQueue captured at Finalize time; with the default
// InlineWorkQueue it runs on the calling goroutine. Callers invoke this
// once the merge into cN has fully drained every Source.
func (w *WorkItem) Destroy() {
	for _, src := range w.Sources {
		src.Destroy()
	}
	w.m.PutRef()
}
