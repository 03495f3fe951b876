// Command c0bench drives a kvms through write/read/cursor/ingest workloads
// and reports timing and stats, grounded on
// gholt-valuestore/brimstore-valuesstore/main.go: a global opts struct
// populated from flags, a positional list of test names, a memstat
// helper printed between each, and a per-test function running opts.clients
// goroutines over a partitioned keyspace.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hse-project/c0kvms/bonsai"
	"github.com/hse-project/c0kvms/config"
	"github.com/hse-project/c0kvms/cursor"
	"github.com/hse-project/c0kvms/ingest"
	"github.com/hse-project/c0kvms/kvms"
	"github.com/hse-project/c0kvms/seqref"
)

type optsStruct struct {
	clients       int
	ingestWidth   int
	slabSz        uint32
	number        int
	length        int
	extendedStats bool
	keyspace      [][]byte
	value         []byte
	st            runtime.MemStats
	m             *kvms.KVMS
}

var opts optsStruct

func main() {
	clients := flag.Int("clients", runtime.NumCPU(), "number of client goroutines")
	width := flag.Int("ingest-width", 0, "kvms ingest width; 0 uses config.Resolve's default")
	slabSz := flag.Uint("slab-sz", 0, "per-kv-set arena size in bytes; 0 uses config.Resolve's default")
	number := flag.Int("n", 1000, "number of keys")
	length := flag.Int("l", 32, "length of values")
	extendedStats := flag.Bool("extended-stats", false, "print full Stats.String() output at exit")
	flag.Parse()

	tests := flag.Args()
	if len(tests) == 0 {
		tests = []string{"write", "read", "cursor", "ingest"}
	}
	for _, arg := range tests {
		switch arg {
		case "write", "read", "cursor", "ingest":
		default:
			fmt.Fprintf(os.Stderr, "Unknown test named %q.\n", arg)
			os.Exit(1)
		}
	}

	opts.clients = *clients
	opts.ingestWidth = *width
	opts.slabSz = uint32(*slabSz)
	opts.number = *number
	opts.length = *length
	opts.extendedStats = *extendedStats

	opts.keyspace = make([][]byte, opts.number)
	for i := range opts.keyspace {
		opts.keyspace[i] = []byte(fmt.Sprintf("key-%08d", i))
	}
	opts.value = make([]byte, opts.length)
	for i := range opts.value {
		opts.value[i] = byte('a' + i%26)
	}

	cfgOpts := []config.Opt{}
	if opts.ingestWidth > 0 {
		cfgOpts = append(cfgOpts, config.OptIngestWidth(opts.ingestWidth))
	}
	if opts.slabSz > 0 {
		cfgOpts = append(cfgOpts, config.OptSlabSz(opts.slabSz))
	}
	cfg := config.Resolve("C0BENCH_", cfgOpts...)
	kvms.C0SnrMax = cfg.C0SnrMax

	fmt.Println(runtime.NumCPU(), "cores")
	fmt.Println(opts.clients, "clients")
	fmt.Println(opts.number, "keys")
	fmt.Println(opts.length, "value length")
	fmt.Println(cfg.IngestWidth, "ingest width")
	memstat()

	begin := time.Now()
	m, effective, err := kvms.Create(cfg.IngestWidth, cfg.SlabSz, 1, lastWriterWins)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	opts.m = m
	fmt.Println(time.Since(begin), "to create kvms, effective width", effective)
	memstat()

	for _, arg := range tests {
		switch arg {
		case "write":
			write()
		case "read":
			read()
		case "cursor":
			cursorScan()
		case "ingest":
			ingestOnce()
		}
		memstat()
	}

	if opts.extendedStats {
		printSetStats()
	}
}

// printSetStats reports each kv-set's element count and arena usage, the
// extended view brimstore-valuesstore/main.go's ExtendedStats flag
// unlocks via ValuesStoreStats.String().
func printSetStats() {
	for i, set := range opts.m.Sets() {
		used, avail := set.Usage()
		height, maxVals := set.ElementCount2()
		fmt.Printf("set %d: %d keys, height %d, max chain %d, %d/%d bytes used\n",
			i, set.ElementCount(), height, maxVals, used, used+avail)
	}
}

// lastWriterWins is the resolution policy c0bench exercises its kvms
// with: the most recently inserted value for a key always replaces
// whatever was there, with no multi-version chain retained.
func lastWriterWins(existing *bonsai.Value, val []byte, tomb bonsai.TombKind, ref bonsai.Seqref) (*bonsai.Value, bonsai.IorCode, *bonsai.Value) {
	nv := &bonsai.Value{Bytes: val, Tomb: tomb, Ref: ref}
	if existing == nil {
		return nv, bonsai.IorIns, nil
	}
	return nv, bonsai.IorRep, existing
}

func memstat() {
	runtime.ReadMemStats(&opts.st)
	fmt.Printf("%0.2fM total alloc\n\n", float64(opts.st.TotalAlloc)/1024/1024)
}

func partition(client int) []int {
	numberPer := opts.number / opts.clients
	lo := numberPer * client
	hi := lo + numberPer
	if client == opts.clients-1 {
		hi = opts.number
	}
	idx := make([]int, 0, hi-lo)
	for i := lo; i < hi; i++ {
		idx = append(idx, i)
	}
	return idx
}

func write() {
	begin := time.Now()
	var seq atomic.Uint64
	wg := &sync.WaitGroup{}
	wg.Add(opts.clients)
	for c := 0; c < opts.clients; c++ {
		go func(client int) {
			defer wg.Done()
			for _, i := range partition(client) {
				sn := seq.Add(1)
				set := opts.m.HashedSet(kvms.HashKey(1, opts.keyspace[i]))
				if err := set.Put(1, opts.keyspace[i], opts.value, seqref.Ord(sn)); err != nil {
					panic(err)
				}
			}
		}(c)
	}
	wg.Wait()
	opts.m.SeqnoSet(seq.Load())
	fmt.Println(time.Since(begin), "to write", opts.number, "keys")
}

func read() {
	begin := time.Now()
	var found, missing atomic.Uint64
	wg := &sync.WaitGroup{}
	wg.Add(opts.clients)
	for c := 0; c < opts.clients; c++ {
		go func(client int) {
			defer wg.Done()
			for _, i := range partition(client) {
				set := opts.m.HashedSet(kvms.HashKey(1, opts.keyspace[i]))
				if _, ok := set.Get(1, opts.keyspace[i], ^uint64(0), seqref.Ord(^uint64(0))); ok {
					found.Add(1)
				} else {
					missing.Add(1)
				}
			}
		}(c)
	}
	wg.Wait()
	fmt.Println(time.Since(begin), "to read", opts.number, "keys,", found.Load(), "found,", missing.Load(), "missing")
}

func cursorScan() {
	begin := time.Now()
	c := cursor.Create(opts.m, 1, nil, 0, false)
	defer c.Destroy()
	n := 0
	for {
		_, ok := c.Next()
		if !ok {
			break
		}
		n++
	}
	fmt.Println(time.Since(begin), "to scan", n, "entries via merged cursor")
}

// benchRegistry is the simplest OrderRegistry that satisfies ingest.Prepare
// for a single-kvms benchmark run: one running watermark, no fan-out
// across multiple concurrently-finalizing kvms instances.
type benchRegistry struct {
	minSeqno atomic.Uint64
	order    atomic.Uint64
}

func (r *benchRegistry) MinSeqnoGet() uint64         { return r.minSeqno.Load() }
func (r *benchRegistry) MinSeqnoSet(sn uint64)       { r.minSeqno.Store(sn) }
func (r *benchRegistry) IngestOrderRegister() uint64 { return r.order.Add(1) }

func ingestOnce() {
	begin := time.Now()
	opts.m.Finalize(nil)
	reg := &benchRegistry{}
	work, err := ingest.Prepare(context.Background(), opts.m, reg, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	n := 0
	for _, src := range work.Sources {
		for {
			if _, ok := src.Pop(); !ok {
				break
			}
			n++
		}
	}
	work.Destroy()
	fmt.Println(time.Since(begin), "to prepare and drain ingest work item,", n, "entries across", len(work.Sources), "sources")
}
