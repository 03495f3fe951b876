package kvms

// Work is one unit of deferred work a WorkQueue runs, used here for kvms
// destruction once its last reference drops: PutRef queues it on the
// WorkQueue recorded by Finalize.
type Work interface {
	Run()
}

// WorkQueue is the external collaborator kvms hands deferred work to. The
// teacher's analog is the channel-backed worker pool feeding
// freeVWRChans/freeVMChan in valuesstore.go; this module only needs the
// two operations a caller schedules against.
type WorkQueue interface {
	InitWork(w Work)
	QueueWork(w Work)
}

type funcWork func()

func (f funcWork) Run() { f() }

// InlineWorkQueue runs work synchronously on the calling goroutine. It is
// the default when a kvms is created without an explicit WorkQueue, and
// is what tests use so destruction is observable without a background
// worker.
type InlineWorkQueue struct{}

func (InlineWorkQueue) InitWork(w Work)  {}
func (InlineWorkQueue) QueueWork(w Work) { w.Run() }
