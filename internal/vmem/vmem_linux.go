//go:build linux

package vmem

import "golang.org/x/sys/unix"

// tryPlatformRemap uses mremap on Linux, the one platform where the
// page layer can resize a mapping in place without a copy.
func tryPlatformRemap(b []byte, newSize int) ([]byte, bool) {
	if len(b) == 0 {
		return nil, false
	}
	nb, err := unix.Mremap(b, newSize, unix.MREMAP_MAYMOVE)
	if err != nil {
		return nil, false
	}
	return nb, true
}
