package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fsbridge/fsbridge/pkg/types"
)

var infoCmd = &cobra.Command{
	Use:   "info <url>",
	Short: "Show object metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	fs, err := newFS(cmd)
	if err != nil {
		return err
	}
	info, err := fs.Info(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("path:     %s\n", info.Path)
	fmt.Printf("type:     %s\n", info.Type)
	if info.Type == types.TypeFile {
		fmt.Printf("size:     %d\n", info.Size)
	}
	if !info.ModTime.IsZero() {
		fmt.Printf("modified: %s\n", info.ModTime.Format("2006-01-02 15:04:05"))
	}
	if info.ETag != "" {
		fmt.Printf("etag:     %s\n", info.ETag)
	}
	return nil
}
