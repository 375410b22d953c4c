package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rbenyoussef/wird/internal/errmsg"
	"github.com/rbenyoussef/wird/internal/manifest"
)

var importCmd = &cobra.Command{
	Use:   "import <manifest.json>",
	Short: "Import a reciter from a source manifest",
	Long:  "Validate a reciter manifest and register the reciter and its remote source in the library.",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	store, err := openLibrary()
	if err != nil {
		return fmt.Errorf("open library: %w", err)
	}
	defer store.Close()

	reciter, err := manifest.Import(f, store)
	if err != nil {
		return errors.New(errmsg.FormatWith(errmsg.OpManifestImport, args[0], err))
	}

	logger.Info().
		Str("reciter_id", reciter.ID).
		Str("name", reciter.Name).
		Msg("reciter imported")
	fmt.Printf("Imported %s (%s, %s)\n", reciter.Name, reciter.Tradition, reciter.ID)
	return nil
}
