// Copyright 2013 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package prng implements the deterministic, reseeding pseudo-random
// generator for fast, non-cryptographic random bytes. It is not suitable
// for security-sensitive randomness.
package prng

import (
	"sync"
	"time"
	"unsafe"

	"github.com/cznic/corelib/riskyhash"
)

const (
	p0 = 0x37701261ED6C16C7
	p1 = 0x764DBBB75F3B3E0D

	reseedEvery = 1 << 16 // 65536 draws
)

// Source is one PRNG stream. New returns a seeded Source; a zero Source
// seeds itself on its first draw. A Source must not be used concurrently from multiple goroutines —
// ThreadLocal hands out one Source per borrow via a sync.Pool, which is
// corelib's stand-in for the source's native thread-local storage.
type Source struct {
	s0, s1 uint64
	draws  uint16
}

// New returns a freshly seeded Source.
func New() *Source {
	s := &Source{}
	s.reseed()
	return s
}

func rotl(v uint64, n uint) uint64 {
	return v<<n | v>>(64-n)
}

// reseed hashes the bytes from reseedEntropy (getrusage(RUSAGE_SELF) on
// Linux, see prng_linux.go; wall-clock time otherwise, prng_other.go)
// twice with riskyhash, seeding the first pass with the current time, and
// resets the draw counter.
func (s *Source) reseed() {
	now := uint64(time.Now().UnixNano())
	buf := reseedEntropy()
	seedA := riskyhash.Sum64(buf, now)
	seedB := riskyhash.Sum64(buf, seedA)
	s.s0 = seedA
	s.s1 = seedB
	s.draws = 0
}

func putLE64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

// fallbackEntropy returns wall-clock-derived bytes, used when a richer
// process-accounting source (getrusage) is unavailable on the platform.
func fallbackEntropy() []byte {
	now := uint64(time.Now().UnixNano())
	var buf [16]byte
	putLE64(buf[:8], now)
	putLE64(buf[8:], uint64(time.Now().Unix()))
	return buf[:]
}

// Rand64 returns the next 64-bit draw, reseeding every 65536 draws.
func (s *Source) Rand64() uint64 {
	if s.draws == 0 && s.s0 == 0 && s.s1 == 0 {
		s.reseed()
	}
	s.draws++
	if s.draws == 0 { // wrapped back to zero: 65536th draw
		defer s.reseed()
	}
	s.s0 += rotl(s.s0, 33) * p0
	s.s1 += rotl(s.s1, 33) * p1
	return rotl(s.s0, 31) + rotl(s.s1, 29)
}

// Bytes fills buf with random bytes, aligning to 8-byte writes and handling
// a 1-7 byte tail with one extra draw.
func (s *Source) Bytes(buf []byte) {
	i := 0
	// Align destination start to 8 bytes by writing single bytes first,
	// matching the source's "align then bulk fill" strategy.
	for i < len(buf) && (uintptr(unsafe.Pointer(&buf[0]))+uintptr(i))%8 != 0 {
		buf[i] = byte(s.Rand64())
		i++
	}
	for len(buf)-i >= 16 {
		a := s.Rand64()
		b := s.Rand64()
		putLE64(buf[i:], a)
		putLE64(buf[i+8:], b)
		i += 16
	}
	for len(buf)-i >= 8 {
		putLE64(buf[i:], s.Rand64())
		i += 8
	}
	if rem := len(buf) - i; rem > 0 {
		var tmp [8]byte
		putLE64(tmp[:], s.Rand64())
		copy(buf[i:], tmp[:rem])
	}
}

var pool = sync.Pool{New: func() any { return New() }}

// ThreadLocal borrows a Source from the shared pool and returns it along
// with a release function. This is corelib's substitute for true
// thread-local storage, which Go does not expose to library code; the
// pattern is the same one sync.Pool itself uses internally for per-P
// scratch state.
func ThreadLocal() (src *Source, release func()) {
	s := pool.Get().(*Source)
	return s, func() { pool.Put(s) }
}

// Rand64 draws one uint64 from a pooled Source.
func Rand64() uint64 {
	s, release := ThreadLocal()
	defer release()
	return s.Rand64()
}

// RandBytes fills buf using a pooled Source.
func RandBytes(buf []byte) {
	s, release := ThreadLocal()
	defer release()
	s.Bytes(buf)
}
