// Package config resolves the tunables a C0 multi-set is constructed
// with (spec §6 "Tunables"), grounded on ValuesStoreOpts/NewValuesStoreOpts
// in gholt-valuestore's valuesstore.go: an env-var-overridable struct with
// sane defaults, plus a functional-options layer mirroring
// valuelocmap.OptCores/OptPageSize/OptSplitMultiplier for callers that
// construct one programmatically instead of from the environment.
package config

import (
	"os"
	"strconv"

	"github.com/hse-project/c0kvms/kvms"
)

// Options holds every tunable this module recognizes.
type Options struct {
	// IngestWidth is c0.ingest_width: the number of ordinary kv-sets a
	// kvms is created with, clamped to [kvms.MinWidth, kvms.MaxWidth].
	IngestWidth int
	// SlabSz is c0.slab_sz: the per-kv-set arena size in bytes.
	SlabSz uint32
	// C0SnrMax is c0.c0snr_max: the size of a kvms's c0snr pool.
	C0SnrMax uint32
	// PfxLen is kvs.pfx_len: the container prefix length ptombs operate
	// at; 0 disables prefix tombstones entirely.
	PfxLen int
}

// Opt mutates an in-progress Options, the functional-options idiom
// valuelocmap.go uses for OptCores/OptPageSize/OptSplitMultiplier.
type Opt func(*Options)

// OptIngestWidth overrides c0.ingest_width.
func OptIngestWidth(n int) Opt { return func(o *Options) { o.IngestWidth = n } }

// OptSlabSz overrides c0.slab_sz.
func OptSlabSz(n uint32) Opt { return func(o *Options) { o.SlabSz = n } }

// OptC0SnrMax overrides c0.c0snr_max.
func OptC0SnrMax(n uint32) Opt { return func(o *Options) { o.C0SnrMax = n } }

// OptPfxLen overrides kvs.pfx_len.
func OptPfxLen(n int) Opt { return func(o *Options) { o.PfxLen = n } }

const (
	defaultIngestWidth = 8
	defaultSlabSz      = 4 * 1024 * 1024
	defaultC0SnrMax    = 2048
	defaultPfxLen      = 0
)

// Resolve builds an Options by reading envPrefix+"INGEST_WIDTH",
// envPrefix+"SLAB_SZ", envPrefix+"C0SNR_MAX", and envPrefix+"PFX_LEN" from
// the environment (falling back to the package defaults exactly the way
// NewValuesStoreOpts falls back to MaxValueSize/MemValuesPageSize/etc.),
// then applies opts on top — so a caller can override a single field
// without forgoing the rest of the environment-derived configuration.
func Resolve(envPrefix string, opts ...Opt) *Options {
	if envPrefix == "" {
		envPrefix = "C0_"
	}

	o := &Options{
		IngestWidth: envInt(envPrefix+"INGEST_WIDTH", defaultIngestWidth),
		SlabSz:      uint32(envInt(envPrefix+"SLAB_SZ", defaultSlabSz)),
		C0SnrMax:    uint32(envInt(envPrefix+"C0SNR_MAX", defaultC0SnrMax)),
		PfxLen:      envInt(envPrefix+"PFX_LEN", defaultPfxLen),
	}

	if o.IngestWidth < kvms.MinWidth {
		o.IngestWidth = kvms.MinWidth
	}
	if o.IngestWidth > kvms.MaxWidth {
		o.IngestWidth = kvms.MaxWidth
	}
	if o.SlabSz == 0 {
		o.SlabSz = defaultSlabSz
	}
	if o.C0SnrMax == 0 {
		o.C0SnrMax = defaultC0SnrMax
	}
	if o.PfxLen < 0 {
		o.PfxLen = 0
	}

	for _, opt := range opts {
		opt(o)
	}
	return o
}

func envInt(name string, def int) int {
	env := os.Getenv(name)
	if env == "" {
		return def
	}
	val, err := strconv.Atoi(env)
	if err != nil {
		return def
	}
	return val
}
