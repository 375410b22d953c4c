package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rbenyoussef/wird/internal/errmsg"
	"github.com/rbenyoussef/wird/internal/nowplaying"
	"github.com/rbenyoussef/wird/internal/platform"
	"github.com/rbenyoussef/wird/internal/playback"
	"github.com/rbenyoussef/wird/internal/player"
	"github.com/rbenyoussef/wird/internal/quran"
	"github.com/rbenyoussef/wird/internal/resolver"
	"github.com/rbenyoussef/wird/internal/session"
)

var playCmd = &cobra.Command{
	Use:   "play <start> [end]",
	Short: "Play a verse range",
	Long:  "Play a verse range through the configured reciter priority list, e.g. `wird play 2:255` or `wird play 1:1 1:7 --reciter husary`.",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runPlay,
}

var (
	playReciters       []string
	playTradition      string
	playSpeed          float64
	playVerseRepeat    int
	playRangeRepeat    int
	playGapMillis      int
	playConnectBefore  bool
	playConnectAfter   bool
	playPostRange      string
	playPostRangeCount int
)

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().StringArrayVar(&playReciters, "reciter", nil, "Reciter id, repeatable; order is the priority order (required)")
	playCmd.Flags().StringVar(&playTradition, "tradition", "", "Recitation tradition (hafs, warsh, qalun, alduri, shuba)")
	playCmd.Flags().Float64Var(&playSpeed, "speed", 1.0, "Playback rate")
	playCmd.Flags().IntVar(&playVerseRepeat, "repeat", 1, "Times each verse plays, 0 = until skipped")
	playCmd.Flags().IntVar(&playRangeRepeat, "range-repeat", 1, "Times the range plays, 0 = until stopped")
	playCmd.Flags().IntVar(&playGapMillis, "gap-ms", 500, "Silence between verses in milliseconds")
	playCmd.Flags().BoolVar(&playConnectBefore, "connect-before", false, "Prepend the verse before the range")
	playCmd.Flags().BoolVar(&playConnectAfter, "connect-after", false, "Append the verse after the range")
	playCmd.Flags().StringVar(&playPostRange, "post-range", "", "After the last pass: stop, verses or pages")
	playCmd.Flags().IntVar(&playPostRangeCount, "post-range-count", 0, "How many verses or pages to continue with")
	playCmd.MarkFlagRequired("reciter")
}

func runPlay(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	snap, err := buildSnapshot(cmd, args)
	if err != nil {
		return err
	}

	layout, err := loadLayout()
	if err != nil {
		return err
	}
	if snap.PostRange.Kind == session.PostRangeContinuePages && layout == nil {
		return fmt.Errorf("post-range %q needs layout_path in the config", "pages")
	}

	store, err := openLibrary()
	if err != nil {
		return fmt.Errorf("open library: %w", err)
	}
	defer store.Close()

	cacheMgr, err := openCache()
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}

	res := resolver.New(store, cacheMgr, logger)
	graph := player.New(logger)
	defer graph.Close()

	service := playback.New(res, graph, cacheMgr, platform.NewNullMonitor(), layout, logger)
	defer service.Close()

	remote, err := nowplaying.New(service)
	if err != nil {
		logger.Warn().Err(err).Msg("media-control surface unavailable")
	} else {
		defer remote.Close()
	}

	sub := service.Subscribe()

	if err := service.Play(snap.Range, snap); err != nil {
		return errors.New(errmsg.Format(errmsg.OpPlaybackStart, err))
	}

	logger.Info().
		Str("range", snap.Range.String()).
		Float64("speed", snap.Speed).
		Msg("session started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-quit:
			fmt.Println()
			return service.Stop()

		case <-sub.Done:
			return nil

		case ev := <-sub.VerseChanged:
			name := ev.Verse.String()
			if ev.DisplayName != "" {
				name = fmt.Sprintf("%s (%s)", ev.Verse, ev.DisplayName)
			}
			fmt.Printf("▶ %s  [%d/%d]  %s\n", name, ev.Index+1, ev.QueueLen, ev.ReciterName)

		case ev := <-sub.RepeatChanged:
			if !ev.Target.IsInfinite() && ev.Target > 1 {
				fmt.Printf("  repeat %d/%d\n", ev.Completed, ev.Target)
			}

		case ev := <-sub.Unavailable:
			fmt.Printf("✕ %s unavailable, skipping\n", ev.Verse)

		case ev := <-sub.StateChanged:
			switch ev.Current {
			case playback.StateIdle:
				return nil
			case playback.StateError:
				return fmt.Errorf("playback halted")
			case playback.StatePaused:
				fmt.Println("paused")
			}

		case ev := <-sub.Error:
			fmt.Fprintln(os.Stderr, errmsg.Format(errmsg.Op(ev.Operation), ev.Err))
		}
	}
}

// buildSnapshot starts from the configured session defaults and lets
// explicitly set flags override them.
func buildSnapshot(cmd *cobra.Command, args []string) (session.Snapshot, error) {
	var zero session.Snapshot

	start, err := quran.ParseRef(args[0])
	if err != nil {
		return zero, err
	}
	end := start
	if len(args) == 2 {
		if end, err = quran.ParseRef(args[1]); err != nil {
			return zero, err
		}
	}
	rng, err := quran.NewRange(start, end)
	if err != nil {
		return zero, err
	}

	snap := cfg.Snapshot()
	snap.Range = rng

	for _, id := range playReciters {
		snap.Priority = append(snap.Priority, session.PriorityEntry{ReciterID: id, Enabled: true})
	}

	flags := cmd.Flags()
	if flags.Changed("tradition") {
		t, err := session.ParseTradition(playTradition)
		if err != nil {
			return zero, err
		}
		snap.Tradition = t
	}
	if flags.Changed("speed") {
		snap.Speed = playSpeed
	}
	if flags.Changed("repeat") {
		snap.VerseRepeat = session.RepeatCount(playVerseRepeat)
	}
	if flags.Changed("range-repeat") {
		snap.RangeRepeat = session.RepeatCount(playRangeRepeat)
	}
	if flags.Changed("gap-ms") {
		if playGapMillis < 0 {
			return zero, fmt.Errorf("gap-ms must not be negative")
		}
		snap.Gap = time.Duration(playGapMillis) * time.Millisecond
	}
	if flags.Changed("connect-before") {
		snap.ConnectBefore = playConnectBefore
	}
	if flags.Changed("connect-after") {
		snap.ConnectAfter = playConnectAfter
	}
	if flags.Changed("post-range") {
		switch playPostRange {
		case "stop":
			snap.PostRange = session.PostRangeAction{Kind: session.PostRangeStop}
		case "verses":
			snap.PostRange = session.PostRangeAction{Kind: session.PostRangeContinueVerses, Count: playPostRangeCount}
		case "pages":
			snap.PostRange = session.PostRangeAction{Kind: session.PostRangeContinuePages, Count: playPostRangeCount}
		default:
			return zero, fmt.Errorf("invalid post-range %q", playPostRange)
		}
		if playPostRange != "stop" && playPostRangeCount <= 0 {
			return zero, fmt.Errorf("post-range %q needs a positive post-range-count", playPostRange)
		}
	}

	if err := snap.Validate(); err != nil {
		return zero, err
	}
	return snap, nil
}

func loadLayout() (quran.PageLayout, error) {
	if cfg.LayoutPath == "" {
		return nil, nil
	}
	f, err := os.Open(cfg.LayoutPath)
	if err != nil {
		return nil, fmt.Errorf("open layout table: %w", err)
	}
	defer f.Close()

	layout, err := quran.LoadTableLayout(f)
	if err != nil {
		return nil, fmt.Errorf("load layout table: %w", err)
	}
	return layout, nil
}
