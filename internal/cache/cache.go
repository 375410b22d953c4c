package cache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rbenyoussef/wird/internal/library"
	"github.com/rbenyoussef/wird/internal/quran"
)

const (
	fetchTimeout = 15 * time.Second
	// prefetchWorkers bounds batch prefetch so a range download never
	// overwhelms the network or filesystem.
	prefetchWorkers = 4
)

// Manager is the source cache: it answers whether a verse's audio is
// obtainable for a source and fetches it into the local cache directory.
// Fetches for the same key are coalesced so near-simultaneous resolutions
// issue a single download.
type Manager struct {
	root   string
	client *http.Client
	log    zerolog.Logger

	mu       sync.Mutex
	inflight map[string]*fetchCall
}

type fetchCall struct {
	done chan struct{}
	err  error
}

// New creates a cache manager rooted at dir.
func New(dir string, log zerolog.Logger) *Manager {
	return &Manager{
		root:     dir,
		client:   &http.Client{Timeout: fetchTimeout},
		log:      log.With().Str("component", "cache").Logger(),
		inflight: make(map[string]*fetchCall),
	}
}

// Open creates a cache manager in the XDG cache directory.
func Open(log zerolog.Logger) (*Manager, error) {
	dir, err := xdg.CacheFile("wird/audio")
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return New(dir, log), nil
}

// LocalPath returns where a verse's audio lives (or would live) for a
// source. Naming is source-specific.
func (m *Manager) LocalPath(v quran.VerseRef, src library.RemoteSource) (string, error) {
	key, err := VerseKey(src.Naming, v, src.Format)
	if err != nil {
		return "", err
	}
	return filepath.Join(m.root, src.ID, key), nil
}

// IsObtainable reports whether the verse's audio is present locally or
// could be fetched right now. A fetch failure or timeout means "no".
func (m *Manager) IsObtainable(ctx context.Context, v quran.VerseRef, src library.RemoteSource) bool {
	path, err := m.LocalPath(v, src)
	if err != nil {
		return false
	}
	if _, err := os.Stat(path); err == nil {
		return true
	}
	return m.Fetch(ctx, v, src) == nil
}

// Fetch downloads the verse's audio into the cache. It is idempotent:
// already-cached files return immediately. Concurrent fetches of the same
// key share one download.
func (m *Manager) Fetch(ctx context.Context, v quran.VerseRef, src library.RemoteSource) error {
	path, err := m.LocalPath(v, src)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	m.mu.Lock()
	if call, ok := m.inflight[path]; ok {
		m.mu.Unlock()
		select {
		case <-call.done:
			return call.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	// Re-check under the lock: a download that completed between the
	// stat above and acquiring the lock must not be repeated.
	if _, err := os.Stat(path); err == nil {
		m.mu.Unlock()
		return nil
	}
	call := &fetchCall{done: make(chan struct{})}
	m.inflight[path] = call
	m.mu.Unlock()

	call.err = m.download(ctx, v, src, path)
	close(call.done)

	m.mu.Lock()
	delete(m.inflight, path)
	m.mu.Unlock()

	return call.err
}

func (m *Manager) download(ctx context.Context, v quran.VerseRef, src library.RemoteSource, path string) error {
	url, err := VerseURL(src.Naming, src.BaseURL, src.Format, v)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	// Download to a temp file, then rename, so a half-written file never
	// looks cached.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".fetch-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	m.log.Debug().Str("verse", v.String()).Str("source", src.ID).Msg("fetched verse audio")
	return nil
}

// Evict removes a cached file by its local path, forcing a re-fetch on
// the next attempt. Paths outside the cache root are refused.
func (m *Manager) Evict(path string) error {
	rel, err := filepath.Rel(m.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("path outside cache: %s", path)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	m.log.Debug().Str("path", path).Msg("evicted cached file")
	return nil
}

// Remove evicts a cached file, forcing a re-fetch on the next attempt.
// Used when a cached file fails to load into the audio graph.
func (m *Manager) Remove(v quran.VerseRef, src library.RemoteSource) error {
	path, err := m.LocalPath(v, src)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Prefetch downloads a batch of verses with bounded concurrency.
// Individual fetch failures are logged and counted, not fatal; the
// returned error reflects cancellation only.
func (m *Manager) Prefetch(ctx context.Context, verses []quran.VerseRef, src library.RemoteSource) (fetched int, err error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(prefetchWorkers)

	var mu sync.Mutex
	for _, v := range verses {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := m.Fetch(ctx, v, src); err != nil {
				m.log.Warn().Str("verse", v.String()).Err(err).Msg("prefetch failed")
				return nil
			}
			mu.Lock()
			fetched++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fetched, err
	}
	return fetched, nil
}
