package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"medialog/models"
	metadatapkg "medialog/services/metadata"
)

type searchService interface {
	Search(ctx context.Context, query, kindHint string) ([]models.MediaRecord, error)
}

var _ searchService = (*metadatapkg.Service)(nil)

type SearchHandler struct {
	Service searchService
	Posters posterResolver
}

func NewSearchHandler(s searchService, posters posterResolver) *SearchHandler {
	return &SearchHandler{Service: s, Posters: posters}
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "q parameter is required")
		return
	}
	kind := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("kind")))
	if kind != "" && !models.ValidKind(kind) {
		writeError(w, http.StatusBadRequest, "kind must be movie, show or anime")
		return
	}

	records, err := h.Service.Search(r.Context(), query, kind)
	if err != nil {
		writeError(w, metadataErrorStatus(err), err.Error())
		return
	}

	out := make([]recordResponse, 0, len(records))
	for i := range records {
		item := recordResponse{MediaRecord: records[i]}
		if h.Posters != nil {
			item.Poster = h.Posters.PosterFor(&records[i])
		}
		out = append(out, item)
	}
	writeJSON(w, http.StatusOK, out)
}

func metadataErrorStatus(err error) int {
	switch {
	case errors.Is(err, metadatapkg.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, metadatapkg.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, metadatapkg.ErrProviderUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
