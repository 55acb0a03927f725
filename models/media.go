package models

import (
	"strings"
	"time"
)

// Media kinds. A record's kind is assigned at creation and never changes.
const (
	KindMovie = "movie"
	KindShow  = "show"
	KindAnime = "anime"
)

// Watch statuses.
const (
	StatusWatching    = "watching"
	StatusCompleted   = "completed"
	StatusHold        = "hold"
	StatusDropped     = "dropped"
	StatusPlanToWatch = "plantowatch"
)

// External ID namespaces used for deduplication across providers.
const (
	NamespaceTMDB  = "tmdb"
	NamespaceIMDB  = "imdb"
	NamespaceMAL   = "mal"
	NamespaceSimkl = "simkl"
)

// Namespaces lists every known external ID namespace in merge priority order.
var Namespaces = []string{NamespaceTMDB, NamespaceIMDB, NamespaceMAL, NamespaceSimkl}

// Statuses lists every valid watch status.
var Statuses = []string{StatusWatching, StatusCompleted, StatusHold, StatusDropped, StatusPlanToWatch}

// MediaRecord is the normalized representation of a movie, show or anime used
// throughout the tracker, independent of which provider supplied it. A record
// with an empty ID is "virtual": a provider search result that has not been
// saved to the library.
type MediaRecord struct {
	ID    string `json:"id,omitempty"`
	Kind  string `json:"kind"`
	Title string `json:"title"`
	Year  *int   `json:"year,omitempty"`

	// At most one id per namespace. These are the merge key during
	// reconciliation; they are never reused as primary keys.
	ExternalIDs map[string]string `json:"externalIds,omitempty"`

	// Descriptive fields, fill-if-missing during merge.
	Overview      string   `json:"overview,omitempty"`
	Genres        []string `json:"genres,omitempty"`
	Runtime       *int     `json:"runtime,omitempty"`
	Certification string   `json:"certification,omitempty"`
	Country       string   `json:"country,omitempty"`
	Director      string   `json:"director,omitempty"`

	// Poster candidates, independently cacheable URLs.
	PosterURL         string `json:"posterUrl,omitempty"`
	RatedPosterURL    string `json:"ratedPosterUrl,omitempty"`
	FallbackPosterURL string `json:"fallbackPosterUrl,omitempty"`

	// User state. Provider sync never touches these; status is the single
	// exception during import-merge (re-sync of watch state from the source
	// of truth service).
	Status    string     `json:"status,omitempty"`
	Rating    *int       `json:"rating,omitempty"`
	Memo      string     `json:"memo,omitempty"`
	WatchedAt *time.Time `json:"watchedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ExternalID returns the id stored for a namespace, or "" when absent.
func (m *MediaRecord) ExternalID(namespace string) string {
	if m.ExternalIDs == nil {
		return ""
	}
	return m.ExternalIDs[namespace]
}

// SetExternalID stores an id under a namespace, ignoring empty values.
func (m *MediaRecord) SetExternalID(namespace, id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	if m.ExternalIDs == nil {
		m.ExternalIDs = make(map[string]string)
	}
	m.ExternalIDs[namespace] = id
}

// ValidKind reports whether kind is one of the supported media kinds.
func ValidKind(kind string) bool {
	switch kind {
	case KindMovie, KindShow, KindAnime:
		return true
	}
	return false
}

// ValidStatus reports whether status is one of the supported watch statuses.
func ValidStatus(status string) bool {
	for _, s := range Statuses {
		if s == status {
			return true
		}
	}
	return false
}

// UserStateUpdate captures an explicit user edit to a library record. Nil
// pointers mean "leave unchanged"; these are the only writes allowed to touch
// status, rating, memo and watched timestamp.
type UserStateUpdate struct {
	Status    *string    `json:"status,omitempty"`
	Rating    *int       `json:"rating,omitempty"`
	Memo      *string    `json:"memo,omitempty"`
	WatchedAt *time.Time `json:"watchedAt,omitempty"`
}

// ImportReport summarizes one bulk import run. Partial imports are an
// accepted outcome: failed partitions are skipped and reported, never fatal.
type ImportReport struct {
	Created          int      `json:"created"`
	Merged           int      `json:"merged"`
	TotalSeen        int      `json:"totalSeen"`
	FailedPartitions []string `json:"failedPartitions,omitempty"`
}
