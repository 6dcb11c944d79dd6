package slab

import (
	"sort"
	"unsafe"

	"github.com/cznic/corelib/internal/spin"
	"github.com/cznic/corelib/internal/vmem"
)

// arena is the per-CPU allocation front-end: one active block and the
// spinlock guarding it, matching spec.md §3's {active_block, lock}.
type arena struct {
	lock   spin.Mutex
	active *block
}

// block is one 2^B byte region sliced into SliceSize-byte units.
// ref counts live slices PLUS one extra unit of "arena hold" while the
// block is an arena's active block (released on rotation, matching the
// spec's "release the previous active block via the slice-free path").
type block struct {
	data []byte // blockSize bytes, a sub-slice of super.raw

	ref int64 // atomic; see doc above
	pos int32 // next free slice index (not atomic: only the lock holder mutates it)

	super *superAlloc
	index int // index of this block within its super-allocation

	// free-list intrusive links, valid only while the block sits on
	// Allocator.freeHead.
	freeNext, freePrev *block
}

// superAlloc is K contiguous blocks obtained from one vmem.Map call.
type superAlloc struct {
	raw     []byte
	blocks  []*block
	rootRef int64 // atomic: count of blocks currently in use by an arena or with live slices
	base    uintptr
}

// bigAlloc is a single oversized allocation served directly by the page
// layer, bypassing blocks entirely.
type bigAlloc struct {
	raw      []byte
	reserved int
	base     uintptr
}

type regionKind int

const (
	regionSuper regionKind = iota
	regionBig
)

// region is one entry in the Allocator's address registry, used to
// recover a block or big allocation from a bare pointer on Free.
type region struct {
	base  uintptr
	size  int
	kind  regionKind
	super *superAlloc
	big   *bigAlloc
}

// addrOf returns the address of p's backing array, including for
// zero-length slices derived from a non-nil array (as the zero-size
// sentinel is) via unsafe.SliceData rather than &p[0], which would panic
// on an empty slice.
func addrOf(p []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(p)))
}

// insertRegion adds r to the sorted registry.
func (a *Allocator) insertRegion(r *region) {
	a.regionsMu.Lock()
	defer a.regionsMu.Unlock()
	i := sort.Search(len(a.regions), func(i int) bool { return a.regions[i].base >= r.base })
	a.regions = append(a.regions, nil)
	copy(a.regions[i+1:], a.regions[i:])
	a.regions[i] = r
}

// removeRegion deletes r from the registry.
func (a *Allocator) removeRegion(r *region) {
	a.regionsMu.Lock()
	defer a.regionsMu.Unlock()
	i := sort.Search(len(a.regions), func(i int) bool { return a.regions[i].base >= r.base })
	if i < len(a.regions) && a.regions[i] == r {
		a.regions = append(a.regions[:i], a.regions[i+1:]...)
	}
}

// lookupRegion finds the region containing addr, or nil.
func (a *Allocator) lookupRegion(addr uintptr) *region {
	a.regionsMu.Lock()
	defer a.regionsMu.Unlock()
	i := sort.Search(len(a.regions), func(i int) bool { return a.regions[i].base > addr }) - 1
	if i < 0 || i >= len(a.regions) {
		return nil
	}
	r := a.regions[i]
	if addr >= r.base && addr < r.base+uintptr(r.size) {
		return r
	}
	return nil
}

// newSuperAlloc maps a fresh K-block super-allocation, registers it, and
// pushes all K of its blocks onto the free-list.
func (a *Allocator) newSuperAlloc() *superAlloc {
	pages := (a.superBlocks * a.blockSize) / vmem.PageSize
	raw := vmem.Map(pages, a.superBlockSizeLog)
	if raw == nil {
		return nil
	}
	sa := &superAlloc{raw: raw, base: addrOf(raw)}
	sa.blocks = make([]*block, a.superBlocks)
	for i := 0; i < a.superBlocks; i++ {
		b := &block{
			data:  raw[i*a.blockSize : (i+1)*a.blockSize],
			super: sa,
			index: i,
		}
		sa.blocks[i] = b
	}
	a.insertRegion(&region{base: sa.base, size: len(raw), kind: regionSuper, super: sa})
	for _, b := range sa.blocks {
		a.pushFree(b)
	}
	return sa
}

// pushFree pushes b onto the LIFO free-list, matching spec.md §5's "the
// global free-list is LIFO under its lock".
func (a *Allocator) pushFree(b *block) {
	a.freeMu.Lock()
	defer a.freeMu.Unlock()
	b.freePrev = nil
	b.freeNext = a.freeHead
	if a.freeHead != nil {
		a.freeHead.freePrev = b
	}
	a.freeHead = b
}

// unlinkFreeLocked removes b from the free-list in O(1), wherever it sits.
// Caller must hold a.freeMu.
func (a *Allocator) unlinkFreeLocked(b *block) {
	if b.freePrev != nil {
		b.freePrev.freeNext = b.freeNext
	} else if a.freeHead == b {
		a.freeHead = b.freeNext
	}
	if b.freeNext != nil {
		b.freeNext.freePrev = b.freePrev
	}
	b.freeNext, b.freePrev = nil, nil
}

// popFreeBlock pops the most recently freed block, allocating a fresh
// super-allocation if the free-list is empty. The returned block is given
// ref=1 (the arena-hold unit) and its super's rootRef is incremented.
func (a *Allocator) popFreeBlock() *block {
	a.freeMu.Lock()
	if a.freeHead == nil {
		a.freeMu.Unlock()
		if a.newSuperAlloc() == nil {
			return nil
		}
		a.freeMu.Lock()
	}
	b := a.freeHead
	if b == nil {
		a.freeMu.Unlock()
		return nil
	}
	a.unlinkFreeLocked(b)
	a.freeMu.Unlock()

	b.pos = 0
	b.ref = 1
	spin.Add(&b.super.rootRef, 1)
	return b
}

// releaseBlockRef subtracts delta from b.ref (which may be the 1-unit
// arena-hold on rotation, or a freed slice count on Free). When ref
// reaches zero the block is zeroed and returned to the free-list, and its
// super's rootRef is decremented; a rootRef of zero unmaps the whole
// super-allocation.
func (a *Allocator) releaseBlockRef(b *block, delta int32) {
	nv := spin.Sub(&b.ref, int64(delta))
	if nv > 0 {
		return
	}
	if nv < 0 {
		panic(CorruptionError{Reason: "block ref underflow: double free or corrupted accounting"})
	}

	for i := range b.data {
		b.data[i] = 0
	}
	a.pushFree(b)

	rr := spin.Sub(&b.super.rootRef, 1)
	if rr > 0 {
		return
	}
	if rr < 0 {
		panic(CorruptionError{Reason: "super-allocation rootRef underflow"})
	}
	a.unmapSuper(b.super)
}

// unmapSuper removes every block of sa from the free-list and unmaps the
// whole super-allocation.
func (a *Allocator) unmapSuper(sa *superAlloc) {
	a.freeMu.Lock()
	for _, b := range sa.blocks {
		if b.freeNext != nil || b.freePrev != nil || a.freeHead == b {
			a.unlinkFreeLocked(b)
		}
	}
	a.freeMu.Unlock()

	a.removeRegionBySuper(sa)
	_ = vmem.Unmap(sa.raw)
}

func (a *Allocator) removeRegionBySuper(sa *superAlloc) {
	a.regionsMu.Lock()
	defer a.regionsMu.Unlock()
	for i, r := range a.regions {
		if r.kind == regionSuper && r.super == sa {
			a.regions = append(a.regions[:i], a.regions[i+1:]...)
			return
		}
	}
}
