package main

import (
	"ceksiak/internal/serviceutil"
	"ceksiak/internal/telemetry"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "ceksiak",
	Short: "ceksiak watches the SIAK course history and notifies you when a grade status changes.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json5", "The config file to read.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging.")
}

// mustLoadConfig exits when the config cannot be read or is incomplete.
func mustLoadConfig(requireNotifier bool) Config {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	err = cfg.Validate(requireNotifier)
	if err != nil {
		serviceutil.Fatal("invalid config", err)
	}
	return cfg
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}
