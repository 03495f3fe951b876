package kvms

import "errors"

// ErrC0SnrExhausted is returned by C0SnrAlloc when the pool is full.
var ErrC0SnrExhausted = errors.New("kvms: c0snr pool exhausted")

// ErrReservedSeqnoSet is returned by RsvdSnSet on a second call; a kvms's
// reserved seqno is a one-shot slot, claimed once by whichever writer
// finalizes the kvms for ingest.
var ErrReservedSeqnoSet = errors.New("kvms: reserved seqno already set")

// KvdbSeq returns the kvdb sequence number this kvms was opened at.
func (m *KVMS) KvdbSeq() uint64 { return m.kvdbSeq }

// SeqnoSet records the seqno of the most recent mutation admitted into
// this kvms.
func (m *KVMS) SeqnoSet(sn uint64) { m.seqno.Store(sn) }

// SeqnoGet returns the most recently recorded seqno, or InvalidSeqno if
// none has ever been set.
func (m *KVMS) SeqnoGet() uint64 { return m.seqno.Load() }

// RsvdSnSet claims the one-shot reserved-seqno slot, used to stamp the
// seqno a kvms will ingest under before any of its mutations are visible
// at that seqno. It fails if already claimed.
func (m *KVMS) RsvdSnSet(sn uint64) error {
	if !m.rsvdSet.CompareAndSwap(false, true) {
		return ErrReservedSeqnoSet
	}
	m.rsvdSn.Store(sn)
	return nil
}

// RsvdSnGet returns the reserved seqno and whether it has been set.
func (m *KVMS) RsvdSnGet() (uint64, bool) {
	if !m.rsvdSet.Load() {
		return InvalidSeqno, false
	}
	return m.rsvdSn.Load(), true
}

// Ingesting idempotently marks this kvms as having begun ingest, returning
// true only for the caller that made the transition (spec §4.C "exactly
// one caller observes the ingest start").
func (m *KVMS) Ingesting() (first bool) {
	first = m.ingesting.CompareAndSwap(false, true)
	if first {
		m.logger().Debug("kvms: gen %d began ingest\n", m.gen)
	}
	return first
}

// IsIngesting reports whether this kvms has begun ingest.
func (m *KVMS) IsIngesting() bool { return m.ingesting.Load() }

// Finalize freezes every kv-set this kvms owns against further writes and
// records wq as the queue subsequent destruction is deferred onto.
// Finalize only ever touches each distinct kv-set once even though
// [1..width] and [width+1..2*width] alias the same pointers.
func (m *KVMS) Finalize(wq WorkQueue) {
	if wq != nil {
		m.wq = wq
	}
	m.sets[0].Finalize()
	for i := 1; i <= m.width; i++ {
		m.sets[i].Finalize()
	}
	m.logger().Info("kvms: gen %d finalized, width %d\n", m.gen, m.width)
}

// Ingested marks this kvms as fully drained by ingest; its kv-sets remain
// readable (a late reader holding a ref may still probe them) until the
// last ref drops.
func (m *KVMS) Ingested() { m.ingested.Store(true) }

// IsIngested reports whether Ingested has been called.
func (m *KVMS) IsIngested() bool { return m.ingested.Load() }

// GetRef takes a reference on this kvms, keeping it alive for a reader
// that may still be probing it after ingest has started. It panics if
// called after the reference count has already reached zero, the same
// "must not resurrect a destroyed object" invariant the teacher's
// ValuesStore ref-counted memory blocks carry.
func (m *KVMS) GetRef() {
	if m.refCount.Add(1) <= 1 {
		panic("kvms: GetRef on a kvms with no remaining references")
	}
}

// PutRef drops a reference, destroying the kvms's kv-sets once the count
// reaches zero. Destruction runs on the WorkQueue passed to Finalize (or
// inline if Finalize was never called with one).
func (m *KVMS) PutRef() {
	if m.refCount.Add(-1) == 0 {
		wq := m.wq
		if wq == nil {
			wq = InlineWorkQueue{}
		}
		m.logger().Debug("kvms: gen %d last ref dropped, deferring destroy\n", m.gen)
		wq.QueueWork(funcWork(m.destroy))
	}
}

// destroy drops every allocated c0snr slot (spec §4.C "On destroy, all
// allocated slots have droprefv called") so the transaction manager sees
// cancellation, then tears down every distinct kv-set exactly once,
// skipping the [width+1..2*width] alias range since it points at the
// same sets as [1..width].
func (m *KVMS) destroy() {
	n := m.c0snrNext.Load()
	if n > uint32(len(m.c0snr)) {
		n = uint32(len(m.c0snr))
	}
	for i := uint32(0); i < n; i++ {
		m.c0snr[i].Drop()
	}

	for i := 0; i <= m.width; i++ {
		m.sets[i].Destroy()
	}
}
