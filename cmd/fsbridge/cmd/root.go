package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/fsbridge/fsbridge"
	"github.com/fsbridge/fsbridge/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "fsbridge",
	Short: "Uniform access to heterogeneous storage backends",
	Long: "fsbridge addresses objects by URL (memory://, file://, s3://) and\n" +
		"serves them through a shared caching and transaction layer.",
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./fsbridge.yaml)")
}

// newFS builds a filesystem from the effective configuration.
func newFS(cmd *cobra.Command) (*fsbridge.FS, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return fsbridge.FromConfiguration(cfg)
}
