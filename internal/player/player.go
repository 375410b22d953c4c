package player

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"
	"github.com/rs/zerolog"

	"github.com/rbenyoussef/wird/internal/resolver"
)

const (
	// graphRate is the fixed output sample rate; decoded audio is
	// resampled to it so the speaker never needs re-initialization
	// between files.
	graphRate       = beep.SampleRate(44100)
	resampleQuality = 4
)

// Player is the beep-backed Graph implementation.
type Player struct {
	log zerolog.Logger

	mu           sync.Mutex
	speakerReady bool
	current      *schedule
}

// schedule holds the resources of the segment currently in the graph.
type schedule struct {
	ctrl     *beep.Ctrl
	streamer beep.StreamSeekCloser
	file     *os.File
	format   beep.Format
	// start and end bound the playback window in source samples.
	start, end int
	silence    time.Duration
	cleared    bool
}

// New creates an idle graph. The speaker is initialized lazily on the
// first Schedule so construction never touches the audio device.
func New(log zerolog.Logger) *Player {
	return &Player{log: log.With().Str("component", "player").Logger()}
}

// ErrDeviceInit marks a failure to start the audio output device. The
// engine treats it as terminal, unlike per-item load failures.
var ErrDeviceInit = errors.New("audio device initialization failed")

func (p *Player) ensureSpeakerLocked() error {
	if p.speakerReady {
		return nil
	}
	if err := speaker.Init(graphRate, graphRate.N(time.Second/10)); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceInit, err)
	}
	p.speakerReady = true
	return nil
}

// Schedule loads the item's playback window into the graph and starts
// it. onDone fires once when the window plays to its end; a Stop or a
// replacing Schedule discards the pending callback.
func (p *Player) Schedule(item *resolver.PlayableItem, opts Options, token uuid.UUID, onDone DoneFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.clearLocked()
	if err := p.ensureSpeakerLocked(); err != nil {
		return err
	}

	f, err := os.Open(item.Locator)
	if err != nil {
		return fmt.Errorf("open audio: %w", err)
	}
	streamer, format, err := decode(f, item.Locator)
	if err != nil {
		f.Close()
		return fmt.Errorf("decode audio: %w", err)
	}

	start := format.SampleRate.N(item.Start)
	end := streamer.Len()
	if item.End > 0 {
		if n := format.SampleRate.N(item.End); n < end {
			end = n
		}
	}
	if start >= end {
		streamer.Close()
		f.Close()
		return fmt.Errorf("empty playback window [%v, %v] in %s", item.Start, item.End, item.Locator)
	}

	var gain float64
	if opts.Normalize {
		gain = normalizationGain(streamer, start, end)
	}
	if err := streamer.Seek(start); err != nil {
		streamer.Close()
		f.Close()
		return fmt.Errorf("seek to window start: %w", err)
	}

	var s beep.Streamer = beep.Take(end-start, streamer)
	if opts.Clarity {
		s = newClarityFilter(s, format.SampleRate)
	}
	s = &effects.Volume{Streamer: s, Base: 2, Volume: gain}
	if format.SampleRate != graphRate {
		s = beep.Resample(resampleQuality, format.SampleRate, graphRate, s)
	}
	if opts.Rate > 0 && opts.Rate != 1.0 {
		s = beep.ResampleRatio(resampleQuality, opts.Rate, s)
	}

	sched := &schedule{
		ctrl:     &beep.Ctrl{Streamer: s},
		streamer: streamer,
		file:     f,
		format:   format,
		start:    start,
		end:      end,
	}
	p.current = sched
	p.playLocked(sched, token, onDone)

	p.log.Debug().
		Str("item", item.DisplayName).
		Str("locator", item.Locator).
		Float64("gain", gain).
		Msg("scheduled segment")
	return nil
}

// ScheduleSilence plays d of silence, then fires onDone. Used for gaps
// between verses and as the placeholder for unavailable audio.
func (p *Player) ScheduleSilence(d time.Duration, token uuid.UUID, onDone DoneFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.clearLocked()
	if err := p.ensureSpeakerLocked(); err != nil {
		// Silence without a device degrades to a timer.
		go func() {
			time.Sleep(d)
			if onDone != nil {
				onDone(token)
			}
		}()
		return
	}

	sched := &schedule{
		ctrl:    &beep.Ctrl{Streamer: beep.Silence(graphRate.N(d))},
		silence: d,
	}
	p.current = sched
	p.playLocked(sched, token, onDone)
}

func (p *Player) playLocked(sched *schedule, token uuid.UUID, onDone DoneFunc) {
	var once sync.Once
	speaker.Play(beep.Seq(sched.ctrl, beep.Callback(func() {
		// The callback runs on the speaker goroutine with its lock
		// held; hand off so the listener can call back into the graph.
		once.Do(func() {
			go func() {
				p.mu.Lock()
				cleared := sched.cleared
				p.mu.Unlock()
				if !cleared && onDone != nil {
					onDone(token)
				}
			}()
		})
	})))
}

// clearLocked drops the current schedule and releases its resources.
// A cleared schedule's completion callback never fires.
func (p *Player) clearLocked() {
	if p.current == nil {
		return
	}
	if p.speakerReady {
		speaker.Clear()
	}
	p.current.cleared = true
	if p.current.streamer != nil {
		p.current.streamer.Close()
	}
	if p.current.file != nil {
		p.current.file.Close()
	}
	p.current = nil
}

// Stop clears the graph. Pending completion callbacks are discarded.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearLocked()
}

func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return
	}
	speaker.Lock()
	p.current.ctrl.Paused = true
	speaker.Unlock()
}

func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return
	}
	speaker.Lock()
	p.current.ctrl.Paused = false
	speaker.Unlock()
}

// Position returns elapsed time within the current segment's window.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil || p.current.streamer == nil {
		return 0
	}
	speaker.Lock()
	pos := p.current.streamer.Position()
	speaker.Unlock()
	return p.current.format.SampleRate.D(pos - p.current.start)
}

// Duration returns the length of the current segment's window.
func (p *Player) Duration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return 0
	}
	if p.current.streamer == nil {
		return p.current.silence
	}
	return p.current.format.SampleRate.D(p.current.end - p.current.start)
}

// Rebuild tears the audio graph down and re-initializes the output
// device. Used after an interruption or route change left the device in
// an unknown state. The current segment is dropped; the engine
// reschedules it from the verse start.
func (p *Player) Rebuild() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.clearLocked()
	p.speakerReady = false
	if err := speaker.Init(graphRate, graphRate.N(time.Second/10)); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceInit, err)
	}
	p.speakerReady = true
	p.log.Debug().Msg("audio graph rebuilt")
	return nil
}

// Close releases the audio device.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearLocked()
	if p.speakerReady {
		speaker.Close()
		p.speakerReady = false
	}
}

func decode(f *os.File, path string) (beep.StreamSeekCloser, beep.Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		return mp3.Decode(f)
	case ".flac":
		return flac.Decode(f)
	case ".wav":
		return wav.Decode(f)
	default:
		return nil, beep.Format{}, fmt.Errorf("unsupported format: %s", ext)
	}
}
