package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/humanmark/forensics/internal/config"
	"github.com/humanmark/forensics/internal/service"
	"github.com/humanmark/forensics/internal/signals"
	"github.com/humanmark/forensics/pkg/logger"
)

// app is the state every subcommand shares once the root has loaded config.
type app struct {
	configPath string
	logLevel   string

	loader *config.Loader
	cfg    *config.Config
	log    *logger.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "humanmark",
		Short:         "humanmark - tell camera-captured media from generated media",
		Long:          "humanmark runs a panel of forensic signals over images and video frames and combines them into an AI-likelihood verdict.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}
	root.SetHelpCommand(&cobra.Command{Hidden: true})

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", os.Getenv("HUMANMARK_CONFIG"), "config file (toml, yaml or json)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newAnalyzeCmd(a),
		newServeCmd(a),
		newSignalsCmd(a),
		newConfigCmd(a),
	)
	return root
}

func (a *app) load() error {
	a.loader = config.NewLoader(a.configPath)
	cfg, err := a.loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	a.cfg = cfg
	a.log = logger.NewWithOptions(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	return nil
}

// engineOptions maps the engine section of the config onto service options.
func engineOptions(cfg config.EngineConfig) service.Options {
	opts := service.DefaultOptions()
	opts.MaxDimension = cfg.MaxDimension
	opts.MaxBytes = cfg.MaxImageBytes
	opts.MaxPixels = cfg.MaxPixels
	opts.MaxVideoBytes = cfg.MaxVideoBytes
	opts.VideoMaxFrames = cfg.VideoMaxFrames
	opts.Workers = cfg.Workers
	opts.FFmpegPath = cfg.FFmpegPath
	opts.FFprobePath = cfg.FFprobePath
	opts.Params = signals.Params{
		BlockSize:      cfg.BlockSize,
		SpectralWindow: cfg.SpectralWindow,
	}
	if len(cfg.Weights) > 0 {
		opts.Weights = signals.Weights(cfg.Weights).Clone()
	}
	return opts
}

func (a *app) newEngine() (*service.Engine, error) {
	return service.NewEngine(engineOptions(a.cfg.Engine), a.log)
}
