package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "commonplace",
	Short: "Commonplace shared memory server",
	Long:  "Commonplace — a shared, keyed text store for agents, with URL scraping, search, and attribution.",
}

func Execute() error {
	return rootCmd.Execute()
}
