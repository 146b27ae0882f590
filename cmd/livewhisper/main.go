package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/obiente/translate/livewhisper/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "livewhisper",
	Short:         "Live microphone transcription with whisper.cpp",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default $LIVEWHISPER_CONFIG or ./config.yaml)")
	rootCmd.AddCommand(
		serveCmd(),
		modelsCmd(),
		transcribeCmd(),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("livewhisper failed")
	}
}

// loadConfig reads the configuration and sets up the global logger from it.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	setupLogging(cfg.Log)
	return cfg, nil
}

func setupLogging(c config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	lvl := zerolog.InfoLevel
	if c.Level != "" {
		if l, err := zerolog.ParseLevel(c.Level); err == nil {
			lvl = l
		}
	}
	if c.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	log.Logger = log.Level(lvl)
}
