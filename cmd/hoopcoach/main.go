package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build-time version identity, injected via -ldflags:
//
//	go build -ldflags="-X main.commitHash=$(git rev-parse --short HEAD) -X main.buildTime=$(date -u +%Y%m%dT%H%M%SZ)"
var (
	commitHash = "dev"
	buildTime  = "unknown"
)

// Persistent flags shared by every command.
var (
	configFlag   string
	logLevelFlag string
	serverFlag   string
)

// rootCmd is the main Cobra command for the hoopcoach CLI.
var rootCmd = &cobra.Command{
	Use:   "hoopcoach",
	Short: "Upload basketball footage for AI coaching analysis",
	Long: `hoopcoach submits a basketball video to the analysis service, follows the
job through frame extraction, commentary generation and rendering, and
prints the timestamped coaching feedback when it completes.

Examples:
  hoopcoach analyze practice.mp4
  hoopcoach analyze --pick --download
  hoopcoach status 1718035200
  hoopcoach export 1718035200 --s3-bucket my-clips
  hoopcoach history`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       version(),
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Path to config file (default ~/.config/hoopcoach/config.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "Analysis service base URL")

	rootCmd.AddCommand(
		newAnalyzeCmd(),
		newStatusCmd(),
		newDownloadCmd(),
		newExportCmd(),
		newHistoryCmd(),
		newConfigCmd(),
	)
}

func version() string {
	return fmt.Sprintf("%s (built %s)", commitHash, buildTime)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
