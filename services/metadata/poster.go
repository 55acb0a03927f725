package metadata

import (
	"fmt"
	"strings"
)

const rpdbBaseURL = "https://api.ratingposterdb.com"

// Poster preferences.
const (
	PosterPreferencePrimary = "primary"
	PosterPreferenceRated   = "rated"
)

// ResolvePoster picks the best poster URL for a record. Evaluated in order:
// a rated poster when preferred and buildable, then the primary provider's
// poster path, then the fallback URL from a secondary source. The rated
// poster URL is constructed deterministically and never verified; RPDB serves
// a placeholder for unknown ids.
//
// Pure and synchronous, no I/O.
func ResolvePoster(tmdbID, posterPath, fallbackURL, preference, rpdbKey string) string {
	tmdbID = strings.TrimSpace(tmdbID)
	rpdbKey = strings.TrimSpace(rpdbKey)

	if preference == PosterPreferenceRated && rpdbKey != "" && tmdbID != "" {
		return fmt.Sprintf("%s/%s/tmdb/poster-default/%s.jpg", rpdbBaseURL, rpdbKey, tmdbID)
	}

	if path := strings.TrimSpace(posterPath); path != "" {
		if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
			return path
		}
		return tmdbPosterURL(path)
	}

	if fallback := strings.TrimSpace(fallbackURL); fallback != "" {
		return fallback
	}

	return ""
}
