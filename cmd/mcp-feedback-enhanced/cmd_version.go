package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/minidoracat/mcp-feedback-enhanced/internal/version"
)

func (l *launcher) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  noArgs,
		RunE: func(*cobra.Command, []string) error {
			fmt.Fprintf(l.stdout, "%s v%s\n", version.Name, version.Version)
			fmt.Fprintf(l.stdout, "Author: %s\n", version.Author)
			fmt.Fprintf(l.stdout, "GitHub: %s\n", version.RepositoryURL)
			return nil
		},
	}
}
