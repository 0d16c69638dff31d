package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oliulv/yc-eval-game/config"
)

func Root(config *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{}
	rootCmd.AddCommand(server(config))
	rootCmd.AddCommand(backfill(config))
	return rootCmd
}
