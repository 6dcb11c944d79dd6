package slab

import "runtime"

func numCPU() int { return runtime.NumCPU() }
