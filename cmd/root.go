// Package cmd wires the command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "loreweaver",
	Short: "Loreweaver - a conversational archive for world builders",
	Long: `Loreweaver keeps the lore of your worlds in long conversations.
It remembers past sessions, consults its archive while answering, and
serves both an HTTP API and maintenance commands.

Run "loreweaver serve" to start the API server.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newSessionsCmd())
	rootCmd.AddCommand(newVersionCmd())
}
