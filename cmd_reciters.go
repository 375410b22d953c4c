package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rbenyoussef/wird/internal/errmsg"
)

var recitersCmd = &cobra.Command{
	Use:   "reciters",
	Short: "List registered reciters",
	RunE:  runReciters,
}

func init() {
	rootCmd.AddCommand(recitersCmd)
}

func runReciters(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	store, err := openLibrary()
	if err != nil {
		return fmt.Errorf("open library: %w", err)
	}
	defer store.Close()

	reciters, err := store.Reciters()
	if err != nil {
		return errors.New(errmsg.Format(errmsg.OpReciterLoad, err))
	}
	if len(reciters) == 0 {
		fmt.Println("No reciters registered. Add one with `wird import`.")
		return nil
	}

	for _, r := range reciters {
		sources, err := store.SourcesFor(r.ID)
		if err != nil {
			return fmt.Errorf("list sources for %s: %w", r.ID, err)
		}
		recordings, err := store.RecordingsFor(r.ID)
		if err != nil {
			return fmt.Errorf("list recordings for %s: %w", r.ID, err)
		}
		fmt.Printf("%s  %-30s %-7s %d source(s), %d recording(s)\n",
			r.ID, r.Name, r.Tradition, len(sources), len(recordings))
	}
	return nil
}
