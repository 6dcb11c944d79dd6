// Package corelib is the process-wide configuration surface for the
// module's packages: a single SetLogger call installs a structured logger
// as the process default, applies it to slab.Default(), and hands it to
// every callback registered with RegisterLoggerObserver (spec.md §4.0's
// ambient stack). Other packages, such as ordmap, take a logger only
// through their own With*Logger option and are not reached by SetLogger.
package corelib

import (
	"sync"

	"go.uber.org/zap"

	"github.com/cznic/corelib/slab"
)

var (
	mu        sync.Mutex
	logger    = zap.NewNop()
	observers []func(*zap.Logger)
)

// SetLogger sets the process-wide default logger returned by Logger,
// installs it on slab.Default(), and calls every registered observer with
// it. Objects configured through a With*Logger option are not changed.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	logger = l
	obs := append([]func(*zap.Logger){}, observers...)
	mu.Unlock()

	slab.SetLogger(l)
	for _, fn := range obs {
		fn(l)
	}
}

// Logger returns the current process-wide default logger.
func Logger() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// RegisterLoggerObserver arranges for fn to be called with every future
// logger SetLogger installs, and immediately once with the current one.
// Callers can use it to keep objects that take their logger at
// construction (an ordmap.Map, for instance) in step with the process
// default; no package in this module registers an observer itself.
func RegisterLoggerObserver(fn func(*zap.Logger)) {
	mu.Lock()
	observers = append(observers, fn)
	current := logger
	mu.Unlock()
	fn(current)
}
