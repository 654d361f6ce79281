package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var catCmd = &cobra.Command{
	Use:   "cat <url>...",
	Short: "Print object contents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCat,
}

func init() {
	rootCmd.AddCommand(catCmd)
}

func runCat(cmd *cobra.Command, args []string) error {
	fs, err := newFS(cmd)
	if err != nil {
		return err
	}

	for _, url := range args {
		data, err := fs.ReadFile(cmd.Context(), url)
		if err != nil {
			return err
		}
		if _, err := os.Stdout.Write(data); err != nil {
			return err
		}
	}
	return nil
}
