// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vmem is the page layer: a thin, OS-specific wrapper over
// anonymous mmap/munmap/mremap that hands the slab allocator
// 2^alignLog-aligned runs of whole pages. It has no knowledge of slabs,
// blocks, or slices — those live in package slab.
package vmem

import (
	"fmt"
	"unsafe"
)

func addrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}

// PageSize is the page granularity every Map/Remap/Unmap call works in
// bytes. All size/alignment arguments to this package are expressed in
// pages unless the name says otherwise.
const PageSize = 4096

// Prot controls the memory protection requested for a mapping.
type Prot int

const (
	// ProtReadWrite is the default: no execute permission. The spec's
	// open question about PROT_EXEC is resolved here in favor of the
	// safer default; WithExec opts a caller into RWX.
	ProtReadWrite Prot = iota
	ProtReadWriteExec
)

// Options configures a Map call.
type Options struct {
	prot Prot
}

// Option mutates Options.
type Option func(*Options)

// WithExec requests an executable mapping (PROT_EXEC set). Off by default:
// without it Map uses ProtReadWrite. See SPEC_FULL.md's Open Question
// resolution.
func WithExec() Option {
	return func(o *Options) { o.prot = ProtReadWriteExec }
}

// Map requests pages page-sized regions from the OS, aligned to
// 1<<alignLog bytes, and zero-filled (anonymous mappings are always
// zero-filled by the kernel). It returns nil on failure.
func Map(pages int, alignLog uint, opts ...Option) []byte {
	if pages <= 0 {
		return nil
	}
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	size := pages * PageSize
	align := 1 << alignLog
	if align <= PageSize {
		b, err := mapAnon(size, o.prot)
		if err != nil {
			return nil
		}
		return b
	}

	// Over-allocate once, then trim head and tail to the desired
	// alignment, exactly as spec.md §4.4 describes.
	big, err := mapAnon(size+align, o.prot)
	if err != nil {
		return nil
	}
	addr := addrOf(big)
	aligned := (addr + uintptrT(align-1)) &^ uintptrT(align-1)
	head := int(aligned - addr)
	if head > 0 {
		_ = Unmap(big[:head])
		big = big[head:]
	}
	if extra := len(big) - size; extra > 0 {
		_ = Unmap(big[size:])
		big = big[:size]
	}
	return big
}

// Remap attempts to resize b in place, falling back to allocate-copy-free.
// newPages is the requested size in pages. Returns nil on failure; b
// remains valid (unchanged) in that case.
func Remap(b []byte, newPages int) []byte {
	newSize := newPages * PageSize
	if nb, ok := tryPlatformRemap(b, newSize); ok {
		return nb
	}
	nb := Map(newPages, 0)
	if nb == nil {
		return nil
	}
	n := len(b)
	if n > newSize {
		n = newSize
	}
	copy(nb, b[:n])
	_ = Unmap(b)
	return nb
}

// Unmap releases b back to the OS. b must have been returned by Map or
// Remap (or be an exact subslice used during the alignment-trim dance in
// Map).
func Unmap(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return munmap(b)
}

func uintptrT(n int) uintptr { return uintptr(n) }

func errf(op string, err error) error {
	return fmt.Errorf("vmem: %s: %w", op, err)
}
