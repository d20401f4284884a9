// Package main provides the refsweep CLI entry point.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "refsweep",
	Short: "Sweep bibliographic references out of manuscripts",
	Long: `refsweep extracts the bibliographic references embedded in authored
documents: citation fields in .docx manuscripts, and PDF bibliography
sections parsed through a GROBID service. The combined reference list
is deduplicated, merged, sorted, and rendered as CSL-JSON, BibTeX,
BibLaTeX, or RIS.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Version = Version
}
