// rover: control loop, safety layer and survey engine for the rescue rover.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/teslashibe/go-rescue/internal/config"
	"github.com/teslashibe/go-rescue/internal/log"
	"github.com/teslashibe/go-rescue/pkg/debug"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	configPath string
	simulate   bool
	debugMode  bool
	sweepTrace bool
)

var rootCmd = &cobra.Command{
	Use:   "rover",
	Short: "Rescue rover controller",
	Long: "rover drives an iRobot Create base with a scanning sensor mount.\n" +
		"It reacts to drop-offs, boundaries and collisions, takes single-key\n" +
		"operator commands and surveys its surroundings for survivors.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "rover", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "rover.yaml", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().BoolVar(&simulate, "sim", false, "Run against the in-memory simulator")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable verbose debug logging")
	rootCmd.PersistentFlags().BoolVar(&sweepTrace, "debug-sweep", false, "Print every sweep sample")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(surveyCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.Version = version
}

// loadConfig reads the configuration and applies global flags.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if simulate {
		cfg.Simulate = true
	}
	if debugMode {
		cfg.LogLevel = "debug"
	}
	debug.Enabled = debugMode
	debug.Sweep = sweepTrace
	log.Init(cfg.LogLevel)
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
