package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cznic/corelib/riskyhash"
)

func newHashDemoCmd() *cobra.Command {
	var seed uint64

	cmd := &cobra.Command{
		Use:   "hashdemo [text...]",
		Short: "Print the Risky Hash of each argument",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{""}
			}
			for _, s := range args {
				fmt.Fprintf(cmd.OutOrStdout(), "%016x  %q\n", riskyhash.Sum64([]byte(s), seed), s)
			}
			return nil
		},
	}
	cmd.Flags().Uint64Var(&seed, "seed", 0, "hash seed")
	return cmd
}
