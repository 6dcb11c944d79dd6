// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package slab implements the per-core slab memory allocator: the core of
// corelib. It returns 16-byte-aligned, zero-filled memory, coexists with
// (but never depends on) the Go runtime's own allocator for its backing
// storage, and is the allocator bstr.String and varray.RawArray default
// to.
//
// Grounded on lldb/falloc.go's block/atom/handle model (collapsed to a
// single fixed block size, since this spec has no size-class ladder) and
// on modernc.org/memory's page/free-list design. Where the C/GOPATH
// sources reinterpret raw mapped bytes as a header struct living at
// offset 0 of the mapping, corelib instead keeps block and super-alloc
// bookkeeping in ordinary Go heap structs and recovers the owning block
// of a freed slice via an address-sorted region registry. Reinterpreting
// arbitrary off-heap bytes as a Go struct containing pointers would be
// unsound under the Go garbage collector's scanning rules; the registry
// preserves the same "recover metadata from the pointer alone" contract
// at O(log R) in the number of live super-allocations/big allocations,
// not in the number of live objects.
package slab

import (
	"sync"

	"go.uber.org/zap"

	"github.com/cznic/corelib/internal/spin"
	"github.com/cznic/corelib/internal/vmem"
)

const (
	// SliceSize is the fixed allocation unit inside a block, in bytes.
	SliceSize = 16

	// DefaultBlockSizeLog is B in spec.md §3: blocks are 2^B bytes.
	DefaultBlockSizeLog = 15 // 32 KiB
	// DefaultSuperBlocks is K in spec.md §3: blocks per super-allocation.
	DefaultSuperBlocks = 256 // 8 MiB per super-allocation

	// maxArenasFallback is the spec's documented cap when the CPU count
	// cannot be detected: it is used only when numCPU() reports a
	// non-positive count. WithMaxArenas sets the arena count on its own and
	// does not use it.
	maxArenasFallback = 8
)

// Allocator is one independent slab heap: an arena per CPU, a global
// free-list, and a registry of live mmap'd regions. The zero value is not
// ready for use; construct with New.
type Allocator struct {
	arenas []arena

	regionsMu sync.Mutex // protects regions (rare: grow/shrink of region set only)
	regions   []*region  // sorted by base address

	freeMu   spin.Mutex
	freeHead *block

	zeroSentinel []byte
	log          *zap.Logger

	superBlockSizeLog uint
	superBlocks       int
	blockSize         int
}

// Option configures an Allocator at construction time.
type Option func(*Allocator)

// WithMaxArenas caps the number of per-CPU arenas. Mostly useful in tests
// that want to exercise arena contention without spinning up NumCPU
// goroutines worth of state.
func WithMaxArenas(n int) Option {
	return func(a *Allocator) {
		if n > 0 && n < len(a.arenas) {
			a.arenas = a.arenas[:n]
		}
	}
}

// WithSuperBlocks overrides K, the number of blocks per super-allocation.
// Exposed for tests that want to exercise super-allocation unmap without
// allocating the 8 MiB default.
func WithSuperBlocks(k int) Option {
	return func(a *Allocator) {
		if k > 0 {
			a.superBlocks = k
		}
	}
}

// WithBlockSizeLog overrides B, the block size exponent. Exposed for the
// same reason as WithSuperBlocks.
func WithBlockSizeLog(log uint) Option {
	return func(a *Allocator) {
		if log >= 8 { // refuse anything smaller than 256B, nonsensical
			a.superBlockSizeLog = log
			a.blockSize = 1 << log
		}
	}
}

// WithLogger attaches a structured logger. The default is a no-op logger,
// matching corelib's "silent unless a caller opts in" logging contract.
func WithLogger(l *zap.Logger) Option {
	return func(a *Allocator) { a.log = l }
}

func detectCPUCount() int {
	n := numCPU()
	if n <= 0 {
		return maxArenasFallback
	}
	return n
}

// New constructs an independent Allocator with its own arenas and
// free-list, detecting the CPU count at call time.
func New(opts ...Option) *Allocator {
	n := detectCPUCount()
	a := &Allocator{
		arenas:            make([]arena, n),
		superBlockSizeLog: DefaultBlockSizeLog,
		superBlocks:       DefaultSuperBlocks,
		blockSize:         1 << DefaultBlockSizeLog,
		log:               zap.NewNop(),
	}
	for _, o := range opts {
		o(a)
	}
	sentinelPage := vmem.Map(1, 12)
	if sentinelPage == nil {
		panic("slab: failed to reserve zero-size sentinel page")
	}
	a.zeroSentinel = sentinelPage[:0:SliceSize]
	return a
}

var (
	defaultOnce sync.Once
	defaultA    *Allocator
	defaultMu   sync.Mutex
)

// Default returns the process-wide singleton Allocator, constructing it
// on first use.
func Default() *Allocator {
	defaultOnce.Do(func() {
		defaultMu.Lock()
		defer defaultMu.Unlock()
		if defaultA == nil {
			defaultA = New()
		}
	})
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultA
}

// SetDefault overrides the process-wide singleton. Intended for tests and
// for processes that want non-default tuning (e.g. WithMaxArenas) applied
// globally before any package reaches for slab.Default().
func SetDefault(a *Allocator) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultA = a
	defaultOnce.Do(func() {}) // mark as initialized so Default() won't overwrite
}

// SetLogger reconfigures the logger of the process-wide default Allocator,
// matching corelib.SetLogger's role for the rest of the module.
func SetLogger(l *zap.Logger) {
	Default().log = l
}
