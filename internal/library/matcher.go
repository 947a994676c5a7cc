package library

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonKeyChars = regexp.MustCompile(`[^\w\s-]`)
	whitespace  = regexp.MustCompile(`\s+`)
	hyphenRuns  = regexp.MustCompile(`-+`)

	// decomposer strips diacritics: NFKD decomposition, combining marks removed
	decomposer = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// Normalize turns an arbitrary track or file name into a matching key:
// lowercase, diacritics stripped, punctuation removed, whitespace collapsed
// to single hyphens.
func Normalize(s string) string {
	if decomposed, _, err := transform.String(decomposer, s); err == nil {
		s = decomposed
	}
	s = strings.ToLower(s)
	s = nonKeyChars.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(strings.TrimSpace(s), "-")
	return hyphenRuns.ReplaceAllString(s, "-")
}

// TrackKey derives the matching key for a track from its artists and title
func TrackKey(artists []string, name string) string {
	return Normalize(strings.TrimSpace(strings.Join(artists, " ") + " " + name))
}

// FileKey derives the matching key for an on-disk filename (extension stripped)
func FileKey(filename string) string {
	return Normalize(strings.TrimSuffix(filename, filepath.Ext(filename)))
}

// IsDownloaded reports whether any file key contains the track key as a
// substring. Containment rather than equality tolerates downloader-added
// suffixes (quality tags, numeric prefixes), at the cost of occasionally
// matching an unrelated file whose name happens to contain the key.
func IsDownloaded(trackKey string, fileKeys []string) bool {
	if trackKey == "" {
		return false
	}
	for _, fk := range fileKeys {
		if strings.Contains(fk, trackKey) {
			return true
		}
	}
	return false
}
