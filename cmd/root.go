package cmd

import (
	"github.com/spf13/cobra"
	"media-library/config"
)

func Root(config *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{}
	rootCmd.AddCommand(server(config))
	rootCmd.AddCommand(reconcile(config))
	return rootCmd
}
