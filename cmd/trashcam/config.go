package main

import (
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-trashcam/internal/log"
	"github.com/teslashibe/go-trashcam/pkg/app"
)

// loadConfig layers defaults, the config file, TRASHCAM_* variables and
// explicitly set flags, in that order.
func loadConfig(cmd *cobra.Command) (app.Config, error) {
	cfg := app.DefaultConfig()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		var err error
		if cfg, err = app.LoadFile(path); err != nil {
			return cfg, err
		}
	}
	cfg.LoadEnvConfig()

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	log.Init(cfg.LogLevel)
	return cfg, nil
}
