// Command corectl is a small inspector binary that exercises corelib's
// allocator, hash, and map end to end. It is a collaborator, not part of
// the core library, matching spec.md §6's framing of the CLI module.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cznic/corelib"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "corectl",
		Short: "Inspect and benchmark the corelib allocator, hash, and map",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				l, err := zap.NewDevelopment()
				if err != nil {
					return err
				}
				corelib.SetLogger(l)
			}
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable structured logging")

	root.AddCommand(newBenchCmd(), newHashDemoCmd(), newMapDemoCmd())
	return root
}
