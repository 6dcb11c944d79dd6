package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cznic/corelib/ordmap"
	"github.com/cznic/corelib/riskyhash"
)

func newMapDemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mapdemo key=value [key=value...]",
		Short: "Build an ordmap.Map from key=value pairs and print it back in insertion order",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := ordmap.New[string, string](
				func(s string) uint64 { return riskyhash.Sum64([]byte(s), 0) },
				func(a, b string) bool { return a == b },
			)
			for _, arg := range args {
				k, v, ok := strings.Cut(arg, "=")
				if !ok {
					return fmt.Errorf("invalid key=value pair %q", arg)
				}
				m.Set(k, v)
			}
			m.Range(func(k, v string) bool {
				fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", k, v)
				return true
			})
			return nil
		},
	}
	return cmd
}
