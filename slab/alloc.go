package slab

import (
	"sync"
	"time"

	"modernc.org/mathutil"

	"github.com/cznic/corelib/internal/spin"
	"github.com/cznic/corelib/internal/vmem"
)

// arenaHintPool caches, per calling goroutine-ish context, the index of
// the arena last used. This is corelib's substitute for a true
// thread-local "cached arena" (Go does not expose OS thread identity to
// library code); like prng.ThreadLocal, it reuses the same sync.Pool
// idiom the standard library itself uses for per-P scratch state.
var arenaHintPool = sync.Pool{New: func() any { return 0 }}

// acquireArena returns a locked arena, trying the cached hint first and
// falling back to a full scan with a 1ns back-off between sweeps, exactly
// as spec.md §4.5 describes. The caller must call the returned release
// func when done (it unlocks the arena and returns the hint to the pool).
func (a *Allocator) acquireArena() (*arena, func()) {
	hint := arenaHintPool.Get().(int)
	if hint < len(a.arenas) && a.arenas[hint].lock.TryLock() {
		idx := hint
		return &a.arenas[idx], func() {
			a.arenas[idx].lock.Unlock()
			arenaHintPool.Put(idx)
		}
	}
	for {
		for i := range a.arenas {
			if a.arenas[i].lock.TryLock() {
				idx := i
				return &a.arenas[idx], func() {
					a.arenas[idx].lock.Unlock()
					arenaHintPool.Put(idx)
				}
			}
		}
		time.Sleep(time.Nanosecond)
	}
}

func ceilDivSlices(n int) int {
	return (n + SliceSize - 1) / SliceSize
}

// IsZeroSentinel reports whether p is the distinguished Malloc(0) value,
// or nil (which Free/Realloc also accept as a harmless no-op/alloc).
func (a *Allocator) IsZeroSentinel(p []byte) bool {
	return p == nil || addrOf(p) == addrOf(a.zeroSentinel)
}

// Malloc returns n bytes of zero-filled, 16-byte-aligned memory, or nil
// on out-of-memory. Malloc(0) returns a distinguished non-nil pointer
// that Free accepts as a no-op.
func (a *Allocator) Malloc(n int) []byte {
	if n < 0 {
		panic(CorruptionError{Reason: "negative malloc size"})
	}
	if n == 0 {
		return a.zeroSentinel
	}
	if n > a.blockSize/2 {
		return a.mallocBig(n)
	}
	return a.mallocSmall(n)
}

func (a *Allocator) mallocSmall(n int) []byte {
	sliceCount := ceilDivSlices(n)
	aren, release := a.acquireArena()
	defer release()

	if aren.active == nil || int(aren.active.pos)+sliceCount > a.blockSize/SliceSize {
		old := aren.active
		nb := a.popFreeBlock()
		if nb == nil {
			return nil
		}
		aren.active = nb
		if old != nil {
			a.releaseBlockRef(old, 1)
		}
	}

	b := aren.active
	start := int(b.pos) * SliceSize
	end := start + n
	capEnd := start + sliceCount*SliceSize
	b.pos += int32(sliceCount)
	spin.Add(&b.ref, int64(sliceCount))
	return b.data[start:end:capEnd]
}

func bigAllocPages(n int) int {
	// mathutil.Max keeps the page count at least 1, the same way lldb
	// clamps request sizes before handing them to its own block allocator.
	// Malloc and MmapAlloc both return the zero-size sentinel for n<=0, so
	// n==0 does not reach this path.
	return mathutil.Max((n+vmem.PageSize-1)/vmem.PageSize, 1)
}

func (a *Allocator) mallocBig(n int) []byte {
	pages := bigAllocPages(n)
	raw := vmem.Map(pages, 12)
	if raw == nil {
		return nil
	}
	ba := &bigAlloc{raw: raw, reserved: n, base: addrOf(raw)}
	a.insertRegion(&region{base: ba.base, size: len(raw), kind: regionBig, big: ba})
	return raw[:n:n]
}

// Calloc behaves as Malloc(n*m): slab memory is always zero-filled,
// because pages come zeroed from the OS and a block is cleared when its
// last live slice is freed, before the block is reused.
func (a *Allocator) Calloc(n, m int) []byte {
	return a.Malloc(n * m)
}

// MmapAlloc bypasses slab slicing entirely and serves n bytes straight
// from the page layer, for callers that know they want a dedicated
// mapping regardless of size.
func (a *Allocator) MmapAlloc(n int) []byte {
	if n <= 0 {
		return a.zeroSentinel
	}
	return a.mallocBig(n)
}

// Free releases p, which must have been returned by Malloc, Calloc,
// Realloc, ReallocWithCopyHint, or MmapAlloc on the same Allocator.
// Freeing a foreign pointer panics with CorruptionError, matching spec.md
// §7's "invalid use is fatal" taxonomy. A double free panics the same way
// only when it drives its block's ref count below zero; a double free
// while other slices of that block are still live goes undetected.
func (a *Allocator) Free(p []byte) {
	if a.IsZeroSentinel(p) {
		return
	}
	addr := addrOf(p)
	r := a.lookupRegion(addr)
	if r == nil {
		panic(CorruptionError{Reason: "free of pointer not owned by this allocator"})
	}
	switch r.kind {
	case regionBig:
		a.removeRegion(r)
		_ = vmem.Unmap(r.big.raw)
	case regionSuper:
		blockIdx := int(addr-r.base) / a.blockSize
		if blockIdx < 0 || blockIdx >= len(r.super.blocks) {
			panic(CorruptionError{Reason: "free address maps outside its super-allocation"})
		}
		b := r.super.blocks[blockIdx]
		sliceCount := cap(p) / SliceSize
		if sliceCount <= 0 {
			panic(CorruptionError{Reason: "free of non-slab-shaped slice"})
		}
		a.releaseBlockRef(b, int32(sliceCount))
	}
}

// Realloc resizes p to newSize, preserving the overlap of old and new
// content. p may be nil or the zero-sentinel, in which case Realloc
// behaves as Malloc.
func (a *Allocator) Realloc(p []byte, newSize int) []byte {
	return a.ReallocWithCopyHint(p, newSize, newSize)
}

// ReallocWithCopyHint is Realloc with an explicit cap on how many bytes of
// the old content to preserve (clamped to newSize and to the remainder of
// the source), matching spec.md §4.5's realloc_with_copy_hint.
func (a *Allocator) ReallocWithCopyHint(p []byte, newSize, copyLen int) []byte {
	if a.IsZeroSentinel(p) {
		return a.Malloc(newSize)
	}
	if newSize == 0 {
		a.Free(p)
		return a.zeroSentinel
	}
	if copyLen > newSize {
		copyLen = newSize
	}
	if copyLen > len(p) {
		copyLen = len(p)
	}

	r := a.lookupRegion(addrOf(p))
	if r != nil && r.kind == regionBig && newSize > a.blockSize/2 {
		nb := vmem.Remap(r.big.raw, bigAllocPages(newSize))
		if nb != nil {
			a.removeRegion(r)
			r.big.raw = nb
			r.big.reserved = newSize
			r.big.base = addrOf(nb)
			a.insertRegion(&region{base: r.big.base, size: len(nb), kind: regionBig, big: r.big})
			return nb[:newSize:newSize]
		}
	}

	nb := a.Malloc(newSize)
	if nb == nil {
		return nil
	}
	copy(nb, p[:copyLen])
	a.Free(p)
	return nb
}

// AfterFork resets every arena lock and the global locks to unlocked, in
// case a fork happened while a thread held one. Go processes rarely fork
// without exec, but embedders (cgo callers, process-supervisor CLIs) that
// do must call this in the child before touching the allocator again.
func (a *Allocator) AfterFork() {
	for i := range a.arenas {
		a.arenas[i].lock.Reset()
	}
	a.freeMu.Reset()
	a.regionsMu = sync.Mutex{}
}
