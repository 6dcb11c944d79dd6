// Package refcount implements the generic atomic reference-counting
// envelope described in spec.md §4.10: given any value type T plus
// optional init/destroy hooks, it allocates T together with a small
// envelope header (the atomic count and optional metadata) as a single
// Go-heap object and hands callers a pointer to the embedded value. The
// envelope is recovered from that pointer by a fixed offset subtraction,
// exactly as the spec describes.
//
// The envelope deliberately lives in ordinary GC-managed memory rather
// than a slab.Allocator allocation: T and M are caller-supplied and
// routinely hold Go pointers, strings, or slices, while slab's backing
// store is raw anonymous mmap (internal/vmem) that the garbage
// collector never scans. slab/slab.go's package doc and
// varray/rawarray.go both restrict slab-backed memory to flat,
// pointer-free records for exactly that reason; the envelope here
// follows the same rule by staying off slab instead of trying to make
// off-heap memory GC-safe for an arbitrary T.
//
// Grounded on the header-prefixed allocation shape of
// modernc.org/memory's page struct (a Go struct placed at the front of
// an allocation, with the usable region following it) applied here to a
// generic T instead of a byte buffer.
package refcount

import (
	"sync/atomic"
	"unsafe"

	"github.com/cznic/corelib/tag"
)

// Hooks customizes construction and teardown of a ref-counted value of
// type T, plus an optional metadata companion value M.
type Hooks[T, M any] struct {
	// Destroy is called once, when the reference count reaches zero,
	// before the envelope becomes eligible for the value's last
	// reference to drop.
	Destroy func(*T)
	// InitMeta/DestroyMeta bracket the optional metadata value's
	// lifetime the same way Destroy brackets T's.
	InitMeta    func(*M)
	DestroyMeta func(*M)
}

type envelope[T, M any] struct {
	ref   int64
	meta  M
	value T
}

// envelopeOf recovers the envelope header from a pointer previously
// returned by New2, via the same fixed-offset trick the spec describes:
// T is the envelope's last field, so subtracting its offset within
// envelope[T,M] from p's address yields the envelope's address. This
// stays sound under the Go GC because p is always an interior pointer
// into the same heap allocation envelopeOf reconstructs the base of;
// the runtime keeps the whole object alive as long as any pointer into
// it is reachable.
func envelopeOf[T, M any](p *T) *envelope[T, M] {
	var e envelope[T, M]
	offset := unsafe.Offsetof(e.value)
	base := uintptr(unsafe.Pointer(p)) - offset
	return (*envelope[T, M])(unsafe.Pointer(base))
}

// Ref is a generic atomic-refcount wrapper around a value of type T, with
// optional metadata of type M. Construct with New2.
type Ref[T, M any] struct {
	hooks Hooks[T, M]
	tag   tag.Hooks[*T]
}

// New creates a Ref factory bound to a set of construction/teardown
// hooks, and optionally a tag.Hooks pair applied to the public pointer
// handed back by New2 (see package tag).
func New[T, M any](hooks Hooks[T, M], tagHooks ...tag.Hooks[*T]) *Ref[T, M] {
	var th tag.Hooks[*T]
	if len(tagHooks) > 0 {
		th = tagHooks[0]
	} else {
		th = tag.Identity[*T]()
	}
	return &Ref[T, M]{hooks: hooks, tag: tag.Normalize(th)}
}

// New2 allocates and initializes a new envelope holding value, with
// ref=1, and returns a (possibly tagged) pointer to the embedded value.
func (r *Ref[T, M]) New2(value T) *T {
	env := &envelope[T, M]{ref: 1}
	if r.hooks.InitMeta != nil {
		r.hooks.InitMeta(&env.meta)
	}
	env.value = value
	return r.tag.Tag(&env.value)
}

// UpRef atomically increments p's reference count and returns p, so
// callers can chain it: held = ref.UpRef(p).
func (r *Ref[T, M]) UpRef(p *T) *T {
	env := envelopeOf[T, M](r.tag.Untag(p))
	atomic.AddInt64(&env.ref, 1)
	return p
}

// Free2 atomically decrements p's reference count. When the count
// reaches zero, Destroy/DestroyMeta run once; the envelope itself is
// ordinary Go memory and needs no explicit release, since it becomes
// collectible the moment the caller drops its last pointer to it.
func (r *Ref[T, M]) Free2(p *T) {
	env := envelopeOf[T, M](r.tag.Untag(p))
	nv := atomic.AddInt64(&env.ref, -1)
	if nv > 0 {
		return
	}
	if nv < 0 {
		panic("refcount: Free2 called more times than New2+UpRef")
	}
	if r.hooks.Destroy != nil {
		r.hooks.Destroy(&env.value)
	}
	if r.hooks.DestroyMeta != nil {
		r.hooks.DestroyMeta(&env.meta)
	}
}

// Meta returns a pointer to p's metadata companion value.
func (r *Ref[T, M]) Meta(p *T) *M {
	return &envelopeOf[T, M](r.tag.Untag(p)).meta
}

// Count returns the current reference count. Racy by nature; intended
// for diagnostics and tests.
func (r *Ref[T, M]) Count(p *T) int64 {
	return atomic.LoadInt64(&envelopeOf[T, M](r.tag.Untag(p)).ref)
}
