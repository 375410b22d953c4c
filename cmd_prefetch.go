package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rbenyoussef/wird/internal/errmsg"
	"github.com/rbenyoussef/wird/internal/quran"
)

var prefetchCmd = &cobra.Command{
	Use:   "prefetch <reciter-id> <start> [end]",
	Short: "Download a verse range into the cache",
	Long:  "Fetch the audio for a verse range from a reciter's remote sources ahead of time, so playback never waits on the network.",
	Args:  cobra.RangeArgs(2, 3),
	RunE:  runPrefetch,
}

func init() {
	rootCmd.AddCommand(prefetchCmd)
}

func runPrefetch(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	start, err := quran.ParseRef(args[1])
	if err != nil {
		return err
	}
	end := start
	if len(args) == 3 {
		if end, err = quran.ParseRef(args[2]); err != nil {
			return err
		}
	}
	rng, err := quran.NewRange(start, end)
	if err != nil {
		return err
	}

	store, err := openLibrary()
	if err != nil {
		return fmt.Errorf("open library: %w", err)
	}
	defer store.Close()

	reciter, err := store.Reciter(args[0])
	if err != nil {
		return fmt.Errorf("unknown reciter %q: %w", args[0], err)
	}
	sources, err := store.SourcesFor(reciter.ID)
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}
	if len(sources) == 0 {
		return fmt.Errorf("reciter %q has no remote sources", reciter.Name)
	}

	// Explicitly ranked sources first, in rank order.
	sort.SliceStable(sources, func(i, j int) bool {
		ri, rj := sources[i].Rank, sources[j].Rank
		if ri > 0 && rj > 0 {
			return ri < rj
		}
		return ri > 0 && rj == 0
	})

	cacheMgr, err := openCache()
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}

	verses := make([]quran.VerseRef, 0, rng.Len())
	for v := rng.Start; ; {
		verses = append(verses, v)
		if v == rng.End {
			break
		}
		next, ok := v.Successor()
		if !ok {
			break
		}
		v = next
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	remaining := verses
	total := 0
	for _, src := range sources {
		if len(remaining) == 0 {
			break
		}
		logger.Info().
			Str("source", src.BaseURL).
			Int("verses", len(remaining)).
			Msg("prefetching")

		fetched, err := cacheMgr.Prefetch(ctx, remaining, src)
		total += fetched
		if err != nil {
			fmt.Fprintln(os.Stderr)
			return errors.New(errmsg.FormatWith(errmsg.OpCachePrefetch, rng.String(), err))
		}

		// Retry whatever this source could not supply against the next one.
		missing := remaining[:0]
		for _, v := range remaining {
			if !cacheMgr.IsObtainable(ctx, v, src) {
				missing = append(missing, v)
			}
		}
		remaining = missing
	}

	fmt.Printf("Fetched %d/%d verse(s) for %s\n", total, len(verses), reciter.Name)
	if len(remaining) > 0 {
		fmt.Printf("%d verse(s) unavailable from every source\n", len(remaining))
	}
	return nil
}
