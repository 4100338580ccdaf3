// Command hyperast generates HyperASTs from source files and diffs them.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hyperast",
		Short: "HyperAST - deduplicated syntax trees and GumTree diffs",
		Long: `hyperast parses source files into a shared, hash-consed syntax tree store
and computes GumTree edit scripts between any two interned trees.

Run 'hyperast serve' to start the HTTP API.
Run 'hyperast --help' for available commands.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "config file path")
	root.PersistentFlags().BoolP("verbose", "v", false, "verbose output")

	root.AddCommand(
		genCmd(),
		diffCmd(),
		watchCmd(),
		serveCmd(),
		eventsCmd(),
		versionCmd(),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "hyperast %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}
}
