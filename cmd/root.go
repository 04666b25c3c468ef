package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/luma/respio/cmd/gen"
	"github.com/luma/respio/internal/meta"
)

var rootCmd = &cobra.Command{
	Use:   "respio",
	Short: "A pipelining Redis protocol client",
	Long: `respio is a RESP2/RESP3 client built around a sans-IO protocol
engine: commands and replies are encoded and decoded independently of
the sockets that carry them.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		info := meta.GetInfo()
		fmt.Printf("respio %s (%s, %s, %s)\n",
			info.Version, info.Build, info.GoVersion, info.Platform)
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(gen.RootCmd)
}

// Execute runs the root command. Errors have already been printed by
// cobra, so the process just exits non-zero.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
