package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rbenyoussef/wird/internal/cache"
	"github.com/rbenyoussef/wird/internal/config"
	"github.com/rbenyoussef/wird/internal/library"
)

var (
	cfg        *config.Config
	logger     zerolog.Logger
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "wird",
	Short: "Quran recitation practice player",
	Long:  "Wird resolves verse audio across personal recordings and remote reciters and plays practice sessions with repeat and continuation control.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: ~/.config/wird/config.toml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration and sets up logging (called by commands
// that need it).
func loadConfig() error {
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger = zerolog.New(os.Stderr).
		Level(level).
		With().
		Timestamp().
		Logger()
	return nil
}

func openLibrary() (*library.Store, error) {
	return library.Open()
}

func openCache() (*cache.Manager, error) {
	if cfg.CacheDir != "" {
		return cache.New(cfg.CacheDir, logger), nil
	}
	return cache.Open(logger)
}
