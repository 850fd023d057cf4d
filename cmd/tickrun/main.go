package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "tickrun",
	Short:         "tickrun - recurring program launcher",
	Long:          `tickrun keeps a list of programs and launches each one on its schedule: once, daily, weekly, monthly or every N minutes.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	apiAddr string
	cfgPath string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", envOr("TICKRUN_API_URL", "http://127.0.0.1:7070"), "control API base URL")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", envOr("TICKRUN_CONFIG", "./tickrun.yaml"), "path to config file (yaml or json)")

	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the tickrun version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "tickrun", version)
	},
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tickrun:", err)
		os.Exit(1)
	}
}
