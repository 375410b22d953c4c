//go:build linux

// Package nowplaying exposes the engine on the desktop's media-control
// surface (MPRIS over D-Bus): verse and reciter metadata out, the five
// transport commands in. Time scrubbing is deliberately not offered;
// navigation is verse-granular.
package nowplaying

import (
	"fmt"
	"hash/fnv"

	"github.com/godbus/dbus/v5"
	"github.com/quarckster/go-mpris-server/pkg/events"
	"github.com/quarckster/go-mpris-server/pkg/server"
	"github.com/quarckster/go-mpris-server/pkg/types"

	"github.com/rbenyoussef/wird/internal/playback"
)

// Adapter connects the playback engine to MPRIS over D-Bus.
type Adapter struct {
	service playback.Service
	server  *server.Server
	events  *events.EventHandler
	sub     *playback.Subscription
	done    chan struct{}
}

// New creates and starts a now-playing adapter.
func New(service playback.Service) (*Adapter, error) {
	a := &Adapter{
		service: service,
		done:    make(chan struct{}),
	}

	rootAdapter := &rootAdapter{}
	playerAdapter := &playerAdapter{service: service}

	a.server = server.NewServer("wird", rootAdapter, playerAdapter)
	a.events = events.NewEventHandler(a.server)
	a.sub = service.Subscribe()

	// Push property changes out to MPRIS clients as the engine moves;
	// clients read the fresh values back through the property getters.
	go a.watch()

	go func() {
		_ = a.server.Listen()
	}()

	return a, nil
}

func (a *Adapter) watch() {
	for {
		select {
		case <-a.done:
			return
		case <-a.sub.Done:
			return
		case <-a.sub.VerseChanged:
			_ = a.events.Player.OnTitle()
		case <-a.sub.StateChanged:
			_ = a.events.Player.OnPlayPause()
		case <-a.sub.RepeatChanged:
			// Repeat progress is folded into the title.
			_ = a.events.Player.OnTitle()
		case <-a.sub.Unavailable:
			_ = a.events.Player.OnTitle()
		case <-a.sub.Error:
		}
	}
}

// Close stops the adapter and releases D-Bus resources.
func (a *Adapter) Close() error {
	close(a.done)
	return a.server.Stop()
}

// rootAdapter implements OrgMprisMediaPlayer2Adapter.
type rootAdapter struct{}

func (r *rootAdapter) Raise() error {
	return nil // Not supported
}

func (r *rootAdapter) Quit() error {
	return nil // Not supported - app manages its own lifecycle
}

func (r *rootAdapter) CanQuit() (bool, error) {
	return false, nil
}

func (r *rootAdapter) CanRaise() (bool, error) {
	return false, nil
}

func (r *rootAdapter) HasTrackList() (bool, error) {
	return false, nil
}

func (r *rootAdapter) Identity() (string, error) {
	return "Wird", nil
}

//nolint:revive // Method name required by interface.
func (r *rootAdapter) SupportedUriSchemes() ([]string, error) {
	return []string{"file"}, nil
}

func (r *rootAdapter) SupportedMimeTypes() ([]string, error) {
	return []string{"audio/mpeg", "audio/mp3"}, nil
}

// playerAdapter implements OrgMprisMediaPlayer2PlayerAdapter.
type playerAdapter struct {
	service playback.Service
}

func (p *playerAdapter) Next() error {
	return p.service.Next()
}

func (p *playerAdapter) Previous() error {
	return p.service.Previous()
}

func (p *playerAdapter) Pause() error {
	return p.service.Pause()
}

func (p *playerAdapter) PlayPause() error {
	return p.service.Toggle()
}

func (p *playerAdapter) Stop() error {
	return p.service.Stop()
}

func (p *playerAdapter) Play() error {
	// Starting a session needs a range and snapshot; from the remote
	// surface Play can only unpause.
	return p.service.Resume()
}

func (p *playerAdapter) Seek(_ types.Microseconds) error {
	return nil // Verse-granular navigation only
}

func (p *playerAdapter) SetPosition(_ string, _ types.Microseconds) error {
	return nil // Verse-granular navigation only
}

//nolint:revive // Method name required by interface.
func (p *playerAdapter) OpenUri(_ string) error {
	return nil // Not supported
}

func (p *playerAdapter) PlaybackStatus() (types.PlaybackStatus, error) {
	switch p.service.State() {
	case playback.StatePaused:
		return types.PlaybackStatusPaused, nil
	case playback.StateIdle, playback.StateError:
		return types.PlaybackStatusStopped, nil
	default:
		return types.PlaybackStatusPlaying, nil
	}
}

func (p *playerAdapter) Rate() (float64, error) {
	if !p.service.State().IsActive() {
		return 1.0, nil
	}
	return p.service.Snapshot().Speed, nil
}

func (p *playerAdapter) SetRate(_ float64) error {
	return nil // Rate is fixed per session
}

func (p *playerAdapter) Metadata() (types.Metadata, error) {
	cur := p.service.Current()
	if cur == nil {
		return types.Metadata{}, nil
	}

	title := cur.Verse.String()
	if cur.DisplayName != "" {
		title = cur.DisplayName
	}
	target := p.service.Snapshot().VerseRepeat
	if !target.IsInfinite() && target > 1 {
		title = fmt.Sprintf("%s (%d/%d)", title, cur.Completions+1, target)
	}

	return types.Metadata{
		TrackId: dbus.ObjectPath(formatTrackID(cur.Verse.String())),
		Length:  types.Microseconds(p.service.Duration().Microseconds()),
		Title:   title,
		Artist:  []string{cur.ReciterName},
	}, nil
}

func (p *playerAdapter) Volume() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) SetVolume(_ float64) error {
	return nil // Not supported
}

func (p *playerAdapter) Position() (int64, error) {
	return p.service.Position().Microseconds(), nil
}

func (p *playerAdapter) MinimumRate() (float64, error) {
	return 0.5, nil
}

func (p *playerAdapter) MaximumRate() (float64, error) {
	return 2.0, nil
}

func (p *playerAdapter) CanGoNext() (bool, error) {
	cur := p.service.Current()
	return cur != nil && cur.Index+1 < cur.QueueLen, nil
}

func (p *playerAdapter) CanGoPrevious() (bool, error) {
	cur := p.service.Current()
	return cur != nil && cur.Index > 0, nil
}

func (p *playerAdapter) CanPlay() (bool, error) {
	return p.service.State().IsActive(), nil
}

func (p *playerAdapter) CanPause() (bool, error) {
	return true, nil
}

func (p *playerAdapter) CanSeek() (bool, error) {
	return false, nil
}

func (p *playerAdapter) CanControl() (bool, error) {
	return true, nil
}

func formatTrackID(verse string) string {
	h := fnv.New64a()
	h.Write([]byte(verse))
	return fmt.Sprintf("/org/mpris/MediaPlayer2/Track/%x", h.Sum64())
}
