// Package bstr implements the binary-safe, small-string-optimized string
// type of spec.md §4.9: a two-representation struct (an inline small
// form, and a long form backed by a slab allocation or borrowed static
// memory), with freeze/detach, UTF-8 helpers, and file reading.
//
// Grounded on lldb's Slice type (lldb/slice.go) for the
// "small-representation-with-overflow-to-heap" shape, generalized to a
// byte string instead of a column-tuple slice.
package bstr

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/cznic/corelib/riskyhash"
	"github.com/cznic/corelib/slab"
)

// smallCap is the inline capacity of the small representation: large
// enough to avoid a heap allocation for typical short identifiers and
// messages, mirroring spec.md §4.9's "sizeof(struct) - 2 bytes"
// threshold without needing to express struct layout arithmetic in Go.
const smallCap = 22

// String is a binary-safe, copy-on-write-free byte string with an inline
// small-string optimization. The zero value is a valid empty String.
type String struct {
	alloc *slab.Allocator

	isLong bool
	frozen bool

	small    [smallCap]byte
	smallLen int

	long     []byte // long.alloc-or-static backing storage
	longCap  int
	borrowed bool // true when long is caller-owned memory bstr must not free
}

// New returns a String allocated from a (nil means slab.Default())
// initialized with a copy of data.
func New(a *slab.Allocator, data []byte) *String {
	if a == nil {
		a = slab.Default()
	}
	s := &String{alloc: a}
	s.assign(data)
	return s
}

// FromStatic wraps data without copying it. data must outlive s and must
// not be mutated externally while s is alive; Destroy is a no-op on the
// underlying bytes since the deallocator is null, exactly as spec.md
// §4.9 describes static strings.
func FromStatic(data []byte) *String {
	return &String{isLong: true, long: data, longCap: len(data), borrowed: true}
}

func (s *String) assign(data []byte) {
	if len(data) <= smallCap {
		s.isLong = false
		s.smallLen = copy(s.small[:], data)
		return
	}
	s.growLong(len(data))
	copy(s.long[:len(data)], data)
	s.long = s.long[:len(data)]
}

func (s *String) allocator() *slab.Allocator {
	if s.alloc == nil {
		s.alloc = slab.Default()
	}
	return s.alloc
}

func (s *String) growLong(n int) {
	if s.isLong && !s.borrowed && n <= s.longCap {
		s.long = s.long[:n]
		return
	}
	buf := s.allocator().Malloc(n)
	if s.isLong && !s.borrowed && s.long != nil {
		s.allocator().Free(s.long[:s.longCap])
	}
	s.isLong = true
	s.borrowed = false
	s.long = buf[:n]
	s.longCap = len(buf)
}

// Destroy returns s's long-form buffer, if s owns one, to its slab
// allocator, and resets s to the empty String. Borrowed (static) buffers
// are not freed. There is no user deallocator hook.
func (s *String) Destroy() {
	if s.isLong && !s.borrowed && s.long != nil {
		s.allocator().Free(s.long[:s.longCap])
	}
	*s = String{}
}

// Free is an alias for Destroy, matching spec.md §4.9's naming.
func (s *String) Free() { s.Destroy() }

// Detach transfers ownership of s's long-form heap buffer to the caller
// and resets s to empty. If s is in small form or borrowed, Detach
// returns a freshly allocated copy instead (there is no heap buffer to
// transfer).
func (s *String) Detach() []byte {
	if s.isLong && !s.borrowed {
		out := s.long
		*s = String{}
		return out
	}
	out := append([]byte(nil), s.Data()...)
	s.assign(nil)
	return out
}

// Data returns a view of s's bytes. The slice aliases s's storage and is
// invalidated by the next mutating call.
func (s *String) Data() []byte {
	if s.isLong {
		return s.long
	}
	return s.small[:s.smallLen]
}

// Len returns the number of live bytes.
func (s *String) Len() int {
	if s.isLong {
		return len(s.long)
	}
	return s.smallLen
}

// Capa returns the usable capacity of the current representation.
func (s *String) Capa() int {
	if s.isLong {
		return s.longCap
	}
	return smallCap
}

// Info returns the (data, len, capa) tuple spec.md §4.9 calls `info`.
func (s *String) Info() (data []byte, length, capa int) {
	return s.Data(), s.Len(), s.Capa()
}

// Freeze marks s read-only; every mutator below becomes a silent no-op
// afterward.
func (s *String) Freeze() { s.frozen = true }

// IsFrozen reports whether Freeze has been called.
func (s *String) IsFrozen() bool { return s.frozen }

// Equal reports byte-for-byte equality with other.
func (s *String) Equal(other *String) bool {
	return string(s.Data()) == string(other.Data())
}

// Hash returns the Risky Hash of s's bytes with the given seed.
func (s *String) Hash(seed uint64) uint64 {
	return riskyhash.Sum64(s.Data(), seed)
}

// Resize truncates or zero-extends s to n bytes, reserving additional
// capacity if n exceeds the current capacity.
func (s *String) Resize(n int) {
	if s.frozen {
		return
	}
	cur := s.Data()
	switch {
	case n <= len(cur):
		s.assignTruncate(n)
	default:
		s.Reserve(n)
		grown := s.Data()[:n]
		for i := len(cur); i < n; i++ {
			grown[i] = 0
		}
		s.setLen(n)
	}
}

func (s *String) assignTruncate(n int) {
	if s.isLong {
		s.long = s.long[:n]
	} else {
		s.smallLen = n
	}
}

func (s *String) setLen(n int) {
	if s.isLong {
		s.long = s.long[:n]
	} else {
		s.smallLen = n
	}
}

// Reserve ensures s can grow to at least n bytes without reallocating.
func (s *String) Reserve(n int) {
	if s.frozen || n <= s.Capa() {
		return
	}
	cur := append([]byte(nil), s.Data()...)
	buf := s.allocator().Malloc(n)
	copy(buf, cur)
	if s.isLong && !s.borrowed && s.long != nil {
		s.allocator().Free(s.long[:s.longCap])
	}
	s.long = buf[:len(cur)]
	s.longCap = len(buf)
	s.isLong = true
	s.borrowed = false
}

// Compact shrinks capacity to exactly the live length.
func (s *String) Compact() {
	if s.frozen || !s.isLong {
		return
	}
	n := len(s.long)
	buf := s.allocator().Malloc(n)
	copy(buf, s.long)
	if !s.borrowed {
		s.allocator().Free(s.long[:s.longCap])
	}
	s.long = buf[:n]
	s.longCap = n
	s.borrowed = false
}

// Write appends p to s.
func (s *String) Write(p []byte) (int, error) {
	if s.frozen {
		return 0, nil
	}
	cur := s.Data()
	combined := append(append([]byte(nil), cur...), p...)
	s.assign(combined)
	return len(p), nil
}

// WriteInt appends the base-10 representation of v.
func (s *String) WriteInt(v int64) {
	if s.frozen {
		return
	}
	_, _ = s.Write([]byte(fmt.Sprintf("%d", v)))
}

// Concat appends other's bytes to s.
func (s *String) Concat(other *String) {
	_, _ = s.Write(other.Data())
}

// Replace substitutes oldLen bytes starting at start (negative counts
// from the end) with src, growing or shrinking s as needed.
func (s *String) Replace(start, oldLen int, src []byte) {
	if s.frozen {
		return
	}
	cur := s.Data()
	if start < 0 {
		start += len(cur)
	}
	if start < 0 {
		start = 0
	}
	if start > len(cur) {
		start = len(cur)
	}
	end := start + oldLen
	if end > len(cur) {
		end = len(cur)
	}
	out := append([]byte(nil), cur[:start]...)
	out = append(out, src...)
	out = append(out, cur[end:]...)
	s.assign(out)
}

// Printf replaces s's content with a formatted string.
func (s *String) Printf(format string, args ...any) {
	if s.frozen {
		return
	}
	s.assign([]byte(fmt.Sprintf(format, args...)))
}

// ReadFile replaces s's content with the contents of path, expanding a
// leading "~" against the user's home directory the way spec.md §4.9's
// readfile describes.
func (s *String) ReadFile(path string) error {
	if s.frozen {
		return nil
	}
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			home = os.Getenv("HOME")
		}
		path = home + path[1:]
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	s.assign(data)
	return nil
}

// WriteBase64Enc appends the standard base64 encoding of data to s.
// Base64 is a collaborator here, delegated to stdlib encoding/base64
// rather than reimplemented, matching spec.md §1's framing of the codec
// as outside this library's core scope.
func (s *String) WriteBase64Enc(data []byte) {
	if s.frozen {
		return
	}
	enc := base64.StdEncoding.EncodedLen(len(data))
	buf := make([]byte, enc)
	base64.StdEncoding.Encode(buf, data)
	_, _ = s.Write(buf)
}

// WriteBase64Dec appends the base64 decoding of enc to s.
func (s *String) WriteBase64Dec(enc []byte) error {
	if s.frozen {
		return nil
	}
	buf := make([]byte, base64.StdEncoding.DecodedLen(len(enc)))
	n, err := base64.StdEncoding.Decode(buf, enc)
	if err != nil {
		return err
	}
	_, _ = s.Write(buf[:n])
	return nil
}

// ValidUTF8 reports whether s's bytes form valid UTF-8.
func (s *String) ValidUTF8() bool { return utf8.Valid(s.Data()) }

// UTF8Len returns the number of UTF-8 runes in s, or 0 if s's bytes are
// not valid UTF-8 (spec.md §7's UTF-8 validation failure taxonomy:
// utf8_len returns 0 when any byte sequence is malformed, rather than
// counting bad bytes as individual RuneError runes).
func (s *String) UTF8Len() int {
	if !s.ValidUTF8() {
		return 0
	}
	return utf8.RuneCount(s.Data())
}

// UTF8Select converts a (char position, char length) pair into a (byte
// position, byte length) pair, matching spec.md §4.9's utf8_select.
// Returns (-1, 0) if s's bytes are not valid UTF-8, per spec.md §7.
func (s *String) UTF8Select(charPos, charLen int) (bytePos, byteLen int) {
	if !s.ValidUTF8() {
		return -1, 0
	}
	data := s.Data()
	if charPos < 0 {
		charPos += s.UTF8Len()
	}
	i, runes := 0, 0
	for runes < charPos && i < len(data) {
		_, w := utf8.DecodeRune(data[i:])
		i += w
		runes++
	}
	bytePos = i
	runesWanted := charLen
	j := i
	seen := 0
	for seen < runesWanted && j < len(data) {
		_, w := utf8.DecodeRune(data[j:])
		j += w
		seen++
	}
	byteLen = j - i
	return bytePos, byteLen
}
