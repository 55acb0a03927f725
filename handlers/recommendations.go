package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"medialog/models"
	geminipkg "medialog/services/gemini"
	librarypkg "medialog/services/library"
)

type recommender interface {
	Recommend(ctx context.Context, seeds []string, kind string) ([]geminipkg.Recommendation, error)
}

type libraryLister interface {
	List() ([]models.MediaRecord, error)
}

var (
	_ recommender   = (*geminipkg.Client)(nil)
	_ libraryLister = (*librarypkg.Service)(nil)
)

// maxRecommendationSeeds caps how many library titles go into the prompt.
const maxRecommendationSeeds = 25

type RecommendationsHandler struct {
	Gemini  recommender
	Library libraryLister
}

func NewRecommendationsHandler(g recommender, lib libraryLister) *RecommendationsHandler {
	return &RecommendationsHandler{Gemini: g, Library: lib}
}

// Recommendations suggests new titles seeded from what the user has
// watched and liked. An exhausted or unconfigured AI backend yields an
// empty list, not an error page.
func (h *RecommendationsHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	kind := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("kind")))
	if kind != "" && !models.ValidKind(kind) {
		writeError(w, http.StatusBadRequest, "kind must be movie, show or anime")
		return
	}

	records, err := h.Library.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	seeds := recommendationSeeds(records, kind)
	if len(seeds) == 0 {
		writeJSON(w, http.StatusOK, []geminipkg.Recommendation{})
		return
	}

	recs, err := h.Gemini.Recommend(r.Context(), seeds, kind)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, geminipkg.ErrNotConfigured) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}
	if recs == nil {
		recs = []geminipkg.Recommendation{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// recommendationSeeds picks the titles worth mentioning in the prompt:
// completed and in-progress entries first, highly rated ones ahead of the
// rest. Records the user dropped are not a taste signal worth sending.
func recommendationSeeds(records []models.MediaRecord, kind string) []string {
	var rated, unrated []string
	for i := range records {
		rec := &records[i]
		if kind != "" && rec.Kind != kind {
			continue
		}
		switch rec.Status {
		case models.StatusCompleted, models.StatusWatching:
		default:
			continue
		}
		if rec.Rating != nil && *rec.Rating >= 7 {
			rated = append(rated, rec.Title)
		} else {
			unrated = append(unrated, rec.Title)
		}
	}

	seeds := append(rated, unrated...)
	if len(seeds) > maxRecommendationSeeds {
		seeds = seeds[:maxRecommendationSeeds]
	}
	return seeds
}
