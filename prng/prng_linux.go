//go:build linux

package prng

import "syscall"

// reseedEntropy packs getrusage(RUSAGE_SELF) fields into a byte buffer,
// matching the spec's primary reseed source.
func reseedEntropy() []byte {
	var ru syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &ru); err != nil {
		return fallbackEntropy()
	}
	buf := make([]byte, 0, 64)
	fields := []int64{
		int64(ru.Utime.Sec), int64(ru.Utime.Usec),
		int64(ru.Stime.Sec), int64(ru.Stime.Usec),
		ru.Maxrss, ru.Minflt, ru.Majflt, ru.Nvcsw,
	}
	var tmp [8]byte
	for _, f := range fields {
		putLE64(tmp[:], uint64(f))
		buf = append(buf, tmp[:]...)
	}
	return buf
}
