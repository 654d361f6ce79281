package cmd

import (
	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:   "rm <url>...",
	Short: "Remove objects",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRm,
}

func init() {
	rootCmd.AddCommand(rmCmd)
}

func runRm(cmd *cobra.Command, args []string) error {
	fs, err := newFS(cmd)
	if err != nil {
		return err
	}
	for _, url := range args {
		if err := fs.Rm(cmd.Context(), url); err != nil {
			return err
		}
	}
	return nil
}
