package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fsbridge/fsbridge/internal/txn"
)

var cpCmd = &cobra.Command{
	Use:   "cp <src-url>... <dst-url>",
	Short: "Copy objects between URLs",
	Long: "Copy one or more objects. All destination writes happen inside a\n" +
		"single transaction: either every copy lands or none does.",
	Args: cobra.MinimumNArgs(2),
	RunE: runCp,
}

func init() {
	rootCmd.AddCommand(cpCmd)
}

func runCp(cmd *cobra.Command, args []string) error {
	fs, err := newFS(cmd)
	if err != nil {
		return err
	}

	sources, dst := args[:len(args)-1], args[len(args)-1]
	ctx := cmd.Context()

	return fs.WithTransaction(ctx, func(tx *txn.Transaction) error {
		for _, src := range sources {
			data, err := fs.ReadFile(ctx, src)
			if err != nil {
				return err
			}
			target := dst
			if len(sources) > 1 {
				target = dst + "/" + baseName(src)
			}
			if err := fs.WriteFile(ctx, target, data); err != nil {
				return err
			}
		}
		return nil
	})
}

func baseName(url string) string {
	for i := len(url) - 1; i >= 0; i-- {
		if url[i] == '/' {
			return url[i+1:]
		}
	}
	return url
}
