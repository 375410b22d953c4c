//go:build !linux

package nowplaying

import "github.com/rbenyoussef/wird/internal/playback"

// Adapter is a no-op on platforms without a media-control surface.
type Adapter struct{}

// New returns a no-op adapter.
func New(_ playback.Service) (*Adapter, error) {
	return &Adapter{}, nil
}

// Close is a no-op.
func (a *Adapter) Close() error {
	return nil
}
