// Package cache implements the verse-audio source cache: naming schemes,
// a read-through store with per-key fetch coalescing, and bounded-
// concurrency prefetch.
package cache

import (
	"fmt"
	"strings"

	"github.com/rbenyoussef/wird/internal/quran"
)

// Naming scheme names as stored on a remote source.
const (
	NamingPadded     = "padded"     // 002255.mp3
	NamingSequential = "sequential" // flat 1..6236 index
	NamingTemplate   = "template"   // URL with {chapter}/{verse} tokens
)

// SupportedNaming reports whether the scheme name is known.
func SupportedNaming(name string) bool {
	switch name {
	case NamingPadded, NamingSequential, NamingTemplate:
		return true
	}
	return false
}

// VerseKey returns the cache file name for a verse under a scheme.
// Template sources cache under the padded name so the key is stable
// regardless of the URL shape.
func VerseKey(naming string, v quran.VerseRef, format string) (string, error) {
	switch naming {
	case NamingPadded, NamingTemplate:
		return fmt.Sprintf("%03d%03d.%s", v.Chapter, v.Verse, format), nil
	case NamingSequential:
		n := v.SequenceNumber()
		if n == 0 {
			return "", fmt.Errorf("naming: invalid verse %s", v)
		}
		return fmt.Sprintf("%d.%s", n, format), nil
	default:
		return "", fmt.Errorf("naming: unsupported scheme %q", naming)
	}
}

// VerseURL builds the remote URL for a verse. For padded and sequential
// schemes the key is appended to the base URL; for templates the tokens
// {chapter} and {verse} (optionally {chapter:2}, {chapter:3}, {verse:2},
// {verse:3} for zero-padded widths) are substituted in place.
func VerseURL(naming, baseURL, format string, v quran.VerseRef) (string, error) {
	switch naming {
	case NamingPadded, NamingSequential:
		key, err := VerseKey(naming, v, format)
		if err != nil {
			return "", err
		}
		return strings.TrimSuffix(baseURL, "/") + "/" + key, nil
	case NamingTemplate:
		return expandTemplate(baseURL, v)
	default:
		return "", fmt.Errorf("naming: unsupported scheme %q", naming)
	}
}

func expandTemplate(tmpl string, v quran.VerseRef) (string, error) {
	replacements := []struct {
		token string
		value string
	}{
		{"{chapter:3}", fmt.Sprintf("%03d", v.Chapter)},
		{"{chapter:2}", fmt.Sprintf("%02d", v.Chapter)},
		{"{chapter}", fmt.Sprintf("%d", v.Chapter)},
		{"{verse:3}", fmt.Sprintf("%03d", v.Verse)},
		{"{verse:2}", fmt.Sprintf("%02d", v.Verse)},
		{"{verse}", fmt.Sprintf("%d", v.Verse)},
	}
	out := tmpl
	substituted := false
	for _, r := range replacements {
		if strings.Contains(out, r.token) {
			out = strings.ReplaceAll(out, r.token, r.value)
			substituted = true
		}
	}
	if !substituted {
		return "", fmt.Errorf("naming: template %q has no chapter/verse tokens", tmpl)
	}
	if strings.Contains(out, "{") || strings.Contains(out, "}") {
		return "", fmt.Errorf("naming: template %q has unresolved tokens", tmpl)
	}
	return out, nil
}
