package varray

import (
	"unsafe"

	"github.com/cznic/corelib/slab"
)

// RawArray is the slab-backed counterpart to Array[T]: a flat,
// fixed-stride buffer of POD-like records carved out of a
// slab.Allocator instead of the Go heap, grounded on lldb's
// block-slicing of a flat byte buffer (falloc.go) applied here to a
// dynamic array instead of a free-list of fixed-size atoms.
//
// RawArray stores raw bytes; callers reinterpret slots via At/Set with
// a fixed stride they choose at construction (sizeof their record type).
// It does not run Go finalizers or hold live pointers into Go-managed
// memory inside a slot — only flat, pointer-free records belong here.
type RawArray struct {
	alloc  *slab.Allocator
	stride int
	buf    []byte // len(buf)/stride == capacity in elements
	n      int    // live element count
}

// NewRaw returns an empty RawArray whose elements are stride bytes wide,
// allocated from a (nil means slab.Default()).
func NewRaw(a *slab.Allocator, stride int) *RawArray {
	if a == nil {
		a = slab.Default()
	}
	if stride <= 0 {
		panic("varray: RawArray stride must be positive")
	}
	return &RawArray{alloc: a, stride: stride}
}

// Len returns the number of live elements.
func (r *RawArray) Len() int { return r.n }

// Cap returns the number of elements the current backing buffer can hold
// without reallocating.
func (r *RawArray) Cap() int {
	if r.stride == 0 {
		return 0
	}
	return len(r.buf) / r.stride
}

func (r *RawArray) slot(i int) []byte {
	off := i * r.stride
	return r.buf[off : off+r.stride]
}

func (r *RawArray) growTo(capElems int) {
	if capElems <= r.Cap() {
		return
	}
	newBytes := growthCap(capElems) * r.stride
	nb := r.alloc.Malloc(newBytes)
	copy(nb, r.buf)
	if r.buf != nil {
		r.alloc.Free(r.buf)
	}
	r.buf = nb
}

// At returns a slice view of element i's storage (negative counts from
// the end). The returned slice aliases the backing buffer until the next
// mutating call.
func (r *RawArray) At(i int) ([]byte, bool) {
	if i < 0 {
		i += r.n
	}
	if i < 0 || i >= r.n {
		return nil, false
	}
	return r.slot(i), true
}

// Push appends a copy of v (which must be exactly stride bytes) to the
// back.
func (r *RawArray) Push(v []byte) {
	if len(v) != r.stride {
		panic("varray: RawArray element size mismatch")
	}
	r.growTo(r.n + 1)
	copy(r.slot(r.n), v)
	r.n++
}

// Pop removes and returns a copy of the last element.
func (r *RawArray) Pop() ([]byte, bool) {
	if r.n == 0 {
		return nil, false
	}
	r.n--
	out := make([]byte, r.stride)
	copy(out, r.slot(r.n))
	return out, true
}

// Shift removes and returns a copy of the first element, shifting the
// remainder down by one stride.
func (r *RawArray) Shift() ([]byte, bool) {
	if r.n == 0 {
		return nil, false
	}
	out := make([]byte, r.stride)
	copy(out, r.slot(0))
	copy(r.buf, r.buf[r.stride:r.n*r.stride])
	r.n--
	return out, true
}

// Remove deletes element i (negative counts from the end), shifting the
// tail down by one stride.
func (r *RawArray) Remove(i int) bool {
	if i < 0 {
		i += r.n
	}
	if i < 0 || i >= r.n {
		return false
	}
	if i < r.n-1 {
		copy(r.buf[i*r.stride:], r.buf[(i+1)*r.stride:r.n*r.stride])
	}
	r.n--
	return true
}

// Compact reallocates the backing buffer to exactly r.Len() elements.
func (r *RawArray) Compact() {
	newBytes := r.n * r.stride
	nb := r.alloc.Malloc(newBytes)
	copy(nb, r.buf[:newBytes])
	if r.buf != nil {
		r.alloc.Free(r.buf)
	}
	r.buf = nb
}

// Free returns the backing buffer to its allocator. The RawArray is
// empty and unusable (other than zero-value reuse) afterward.
func (r *RawArray) Free() {
	if r.buf != nil {
		r.alloc.Free(r.buf)
	}
	r.buf = nil
	r.n = 0
}

// Each visits element byte-slices in order, stopping early if fn returns
// false. The slice passed to fn aliases live storage and must not be
// retained past the call.
func (r *RawArray) Each(fn func(i int, v []byte) bool) {
	for i := 0; i < r.n; i++ {
		if !fn(i, r.slot(i)) {
			return
		}
	}
}

// addrOf is used only by tests to assert RawArray storage really comes
// from the slab address space rather than the Go heap.
func addrOf(p []byte) uintptr {
	if len(p) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&p[0]))
}
