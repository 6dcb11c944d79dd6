package slab

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAllocator(t *testing.T) *Allocator {
	t.Helper()
	// Small super-allocations/blocks keep these tests fast and exercise
	// unmap/rotation paths without requiring the 8MiB default.
	return New(WithMaxArenas(4), WithSuperBlocks(4), WithBlockSizeLog(12))
}

func TestMallocZeroReturnsSentinel(t *testing.T) {
	a := testAllocator(t)
	p := a.Malloc(0)
	require.NotNil(t, p)
	assert.Equal(t, 0, len(p))
	assert.True(t, a.IsZeroSentinel(p))
	assert.NotPanics(t, func() { a.Free(p) })
}

func TestMallocAlignment(t *testing.T) {
	a := testAllocator(t)
	sizes := []int{1, 2, 15, 16, 17, 100, 1000, 3000}
	var live [][]byte
	for _, n := range sizes {
		p := a.Malloc(n)
		require.NotNil(t, p)
		assert.Len(t, p, n)
		assert.Equal(t, uintptr(0), addrOf(p)%SliceSize, "size %d misaligned", n)
		live = append(live, p)
	}
	for _, p := range live {
		a.Free(p)
	}
}

func TestNoOverlapAmongLiveAllocations(t *testing.T) {
	a := testAllocator(t)
	const n = 200
	ptrs := make([][]byte, n)
	for i := range ptrs {
		ptrs[i] = a.Malloc(32)
		require.NotNil(t, ptrs[i])
		for j := range ptrs[i] {
			ptrs[i][j] = byte(i)
		}
	}
	for i, p := range ptrs {
		for _, b := range p {
			require.Equal(t, byte(i), b)
		}
	}
	for _, p := range ptrs {
		a.Free(p)
	}
}

func TestFreeUnmapsAllButArenaHeldSuperAlloc(t *testing.T) {
	a := testAllocator(t)
	before := len(a.regions)

	var ptrs [][]byte
	for i := 0; i < 64; i++ {
		ptrs = append(ptrs, a.Malloc(64))
	}
	for _, p := range ptrs {
		a.Free(p)
	}
	assert.Equal(t, before+1, len(a.regions), "only the super-allocation holding the arena's active block stays mapped once every slice is freed")
}

func TestBigAllocationPassthrough(t *testing.T) {
	a := testAllocator(t)
	big := a.Malloc(a.blockSize) // > blockSize/2 forces the big path
	require.NotNil(t, big)
	big[0] = 0xFF
	big[len(big)-1] = 0xEE
	a.Free(big)
}

func TestMmapAllocZeroReturnsSentinel(t *testing.T) {
	a := testAllocator(t)
	p := a.MmapAlloc(0)
	assert.True(t, a.IsZeroSentinel(p))
}

func TestReallocPreservesPrefix(t *testing.T) {
	a := testAllocator(t)
	p := a.Malloc(32)
	for i := range p {
		p[i] = 0xAA
	}
	p2 := a.Realloc(p, 64)
	require.Len(t, p2, 64)
	for i := 0; i < 32; i++ {
		assert.Equal(t, byte(0xAA), p2[i])
	}
	a.Free(p2)
}

func TestEndToEndScenario1(t *testing.T) {
	a := testAllocator(t)
	const n = 4096
	ptrs := make([][]byte, n)
	for i := range ptrs {
		ptrs[i] = a.Malloc(32)
		require.NotNil(t, ptrs[i])
		for j := range ptrs[i] {
			ptrs[i][j] = 0xAA
		}
	}
	for i := range ptrs {
		grown := a.Realloc(ptrs[i], 64)
		require.Len(t, grown, 64)
		for j := 0; j < 32; j++ {
			require.Equal(t, byte(0xAA), grown[j])
		}
		ptrs[i] = grown
	}
	for _, p := range ptrs {
		a.Free(p)
	}
	assert.LessOrEqual(t, len(a.regions), 1)
}

func TestConcurrentAllocateTouchFree(t *testing.T) {
	a := testAllocator(t)
	const goroutines = 16
	const cycles = 200
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for c := 0; c < cycles; c++ {
				p := a.Malloc(48)
				for i := range p {
					p[i] = byte(c)
				}
				a.Free(p)
			}
		}()
	}
	wg.Wait()
	held := map[*superAlloc]bool{}
	for i := range a.arenas {
		if b := a.arenas[i].active; b != nil {
			held[b.super] = true
		}
	}
	assert.Equal(t, len(held), len(a.regions))
}

func TestDoubleFreePanics(t *testing.T) {
	a := testAllocator(t)
	p := a.Malloc(32)
	a.Free(p)
	assert.Panics(t, func() { a.Free(p) })
}

func TestAfterForkResetsLocks(t *testing.T) {
	a := testAllocator(t)
	a.arenas[0].lock.Lock()
	a.freeMu.Lock()
	a.AfterFork()
	assert.False(t, a.arenas[0].lock.IsLocked())
	assert.False(t, a.freeMu.IsLocked())
}
