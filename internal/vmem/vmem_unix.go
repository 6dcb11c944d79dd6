//go:build linux || darwin

package vmem

import (
	"golang.org/x/sys/unix"
)

func protFlags(p Prot) int {
	f := unix.PROT_READ | unix.PROT_WRITE
	if p == ProtReadWriteExec {
		f |= unix.PROT_EXEC
	}
	return f
}

func mapAnon(size int, p Prot) ([]byte, error) {
	b, err := unix.Mmap(-1, 0, size, protFlags(p), unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, errf("mmap", err)
	}
	return b, nil
}

func munmap(b []byte) error {
	if err := unix.Munmap(b); err != nil {
		return errf("munmap", err)
	}
	return nil
}
