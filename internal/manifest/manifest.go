// Package manifest parses and validates reciter manifests: versioned
// JSON documents declaring a reciter identity and one remote audio
// source. A manifest is rejected whole; nothing is partially applied.
package manifest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/rbenyoussef/wird/internal/cache"
	"github.com/rbenyoussef/wird/internal/library"
	"github.com/rbenyoussef/wird/internal/quran"
	"github.com/rbenyoussef/wird/internal/session"
)

// SupportedVersion is the only manifest schema version accepted.
const SupportedVersion = 1

// Manifest is the on-disk import document.
type Manifest struct {
	Version   int    `json:"version" validate:"required"`
	Name      string `json:"name" validate:"required,min=1,max=200"`
	Tradition string `json:"tradition" validate:"required"`
	Source    Source `json:"source" validate:"required"`
}

// Source describes where the reciter's audio lives.
type Source struct {
	BaseURL string `json:"base_url" validate:"required"`
	Format  string `json:"format" validate:"required,oneof=mp3"`
	Naming  string `json:"naming" validate:"required"`
	Rank    int    `json:"rank" validate:"gte=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Parse reads and validates a manifest. Unknown fields, unsupported
// versions, unknown traditions, malformed URLs and unsupported naming
// schemes are all rejected with a descriptive error.
func Parse(r io.Reader) (*Manifest, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("malformed manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the structural rules and the domain rules.
func (m *Manifest) Validate() error {
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}
	if m.Version != SupportedVersion {
		return fmt.Errorf("unsupported manifest version %d (supported: %d)", m.Version, SupportedVersion)
	}
	if _, err := session.ParseTradition(m.Tradition); err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}
	if !cache.SupportedNaming(m.Source.Naming) {
		return fmt.Errorf("invalid manifest: unsupported naming scheme %q", m.Source.Naming)
	}
	u, err := url.Parse(m.Source.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid manifest: malformed base URL %q", m.Source.BaseURL)
	}
	// Template sources must produce a usable URL before anything is
	// persisted.
	if strings.Contains(m.Source.BaseURL, "{") || m.Source.Naming == cache.NamingTemplate {
		if _, err := cache.VerseURL(m.Source.Naming, m.Source.BaseURL, m.Source.Format, quran.First); err != nil {
			return fmt.Errorf("invalid manifest: %w", err)
		}
	}
	return nil
}

// Materialize builds the library entities the manifest declares, with
// fresh identities.
func (m *Manifest) Materialize() (library.Reciter, library.RemoteSource) {
	tradition := session.Tradition(m.Tradition)
	reciter := library.Reciter{
		ID:        uuid.NewString(),
		Name:      m.Name,
		Tradition: tradition,
	}
	source := library.RemoteSource{
		ID:        uuid.NewString(),
		ReciterID: reciter.ID,
		Tradition: tradition,
		BaseURL:   m.Source.BaseURL,
		Format:    m.Source.Format,
		Naming:    m.Source.Naming,
		Rank:      m.Source.Rank,
	}
	return reciter, source
}

// Import parses a manifest and persists its reciter and source in one
// transaction.
func Import(r io.Reader, store *library.Store) (*library.Reciter, error) {
	m, err := Parse(r)
	if err != nil {
		return nil, err
	}
	reciter, source := m.Materialize()
	if err := store.ImportReciter(reciter, source); err != nil {
		return nil, fmt.Errorf("persist manifest: %w", err)
	}
	return &reciter, nil
}
