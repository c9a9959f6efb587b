package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ZaguanLabs/lazytl"
)

// Build-time variables (can be overridden with ldflags)
var (
	version   = lazytl.Version
	commit    = lazytl.GitCommit
	buildDate = lazytl.BuildDate
)

func (c *cli) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the application version",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(c.stdout, "%s %s\n", lazytl.Name, version)
			if commit != "unknown" && commit != "" {
				fmt.Fprintf(c.stdout, "  commit:  %s\n", commit)
			}
			if buildDate != "unknown" && buildDate != "" {
				fmt.Fprintf(c.stdout, "  built:   %s\n", buildDate)
			}
		},
	}
}
