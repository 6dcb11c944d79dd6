package slab

import "fmt"

// CorruptionError is raised, as a panic, when the allocator observes state
// that should be impossible under correct use: a negative size request, a
// pointer outside every registered region or outside its super-allocation,
// a slice not shaped like a slab allocation, or a block ref or
// super-allocation rootRef count going negative (double free). spec.md §7 treats this class of error as fatal
// and signals the process; Go's nearest equivalent to "fatal,
// non-recoverable" is an unrecoverable panic, so CorruptionError is never
// meant to be recovered from in normal operation.
type CorruptionError struct {
	Reason string
}

func (e CorruptionError) Error() string {
	return fmt.Sprintf("slab: corruption detected: %s", e.Reason)
}
