package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fsbridge/fsbridge/pkg/types"
)

var lsLong bool

var lsCmd = &cobra.Command{
	Use:   "ls <url>",
	Short: "List entries under a URL",
	Args:  cobra.ExactArgs(1),
	RunE:  runLs,
}

func init() {
	lsCmd.Flags().BoolVarP(&lsLong, "long", "l", false, "show size and type")
	rootCmd.AddCommand(lsCmd)
}

func runLs(cmd *cobra.Command, args []string) error {
	fs, err := newFS(cmd)
	if err != nil {
		return err
	}

	entries, err := fs.Ls(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if lsLong {
			size := fmt.Sprintf("%d", entry.Size)
			if entry.Type == types.TypeDirectory {
				size = "-"
			}
			fmt.Printf("%-9s %10s  %s\n", entry.Type, size, entry.Path)
			continue
		}
		fmt.Println(entry.Path)
	}
	if len(entries) == 0 {
		fmt.Println("(no entries)")
	}
	return nil
}
