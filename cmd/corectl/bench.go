package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cznic/corelib/slab"
)

func newBenchCmd() *cobra.Command {
	var count, size int

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Allocate/touch/free a batch of slab allocations and report throughput",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := slab.New()
			start := time.Now()
			for i := 0; i < count; i++ {
				p := a.Malloc(size)
				if len(p) > 0 {
					p[0] = byte(i)
				}
				a.Free(p)
			}
			elapsed := time.Since(start)
			fmt.Fprintf(cmd.OutOrStdout(), "%d allocations of %d bytes in %s (%.0f allocs/sec)\n",
				count, size, elapsed, float64(count)/elapsed.Seconds())
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 100000, "number of allocate/free cycles")
	cmd.Flags().IntVar(&size, "size", 64, "bytes per allocation")
	return cmd
}
