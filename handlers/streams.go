package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	debridpkg "medialog/services/debrid"
	torrentiopkg "medialog/services/torrentio"
)

type streamScraper interface {
	Streams(ctx context.Context, mediaType, imdbID string) ([]torrentiopkg.Stream, error)
}

type magnetResolver interface {
	ResolveMagnet(ctx context.Context, magnet string) (*debridpkg.ResolvedStream, error)
}

var (
	_ streamScraper  = (*torrentiopkg.Client)(nil)
	_ magnetResolver = (*debridpkg.RealDebridClient)(nil)
)

type StreamsHandler struct {
	Scraper streamScraper
	Debrid  magnetResolver
}

func NewStreamsHandler(scraper streamScraper, debrid magnetResolver) *StreamsHandler {
	return &StreamsHandler{Scraper: scraper, Debrid: debrid}
}

type streamResponse struct {
	Name     string `json:"name"`
	Title    string `json:"title"`
	InfoHash string `json:"infoHash"`
	Magnet   string `json:"magnet"`
}

// List scrapes available torrent streams for a title by IMDB id.
func (h *StreamsHandler) List(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	mediaType := vars["type"]
	if mediaType != "movie" && mediaType != "series" {
		writeError(w, http.StatusBadRequest, "type must be movie or series")
		return
	}

	streams, err := h.Scraper.Streams(r.Context(), mediaType, vars["imdbID"])
	if err != nil {
		if errors.Is(err, torrentiopkg.ErrIMDBIDRequired) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	out := make([]streamResponse, 0, len(streams))
	for _, s := range streams {
		out = append(out, streamResponse{
			Name:     s.Name,
			Title:    s.Title,
			InfoHash: s.InfoHash,
			Magnet:   s.Magnet(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// Resolve turns a magnet link into a direct HTTP stream URL through the
// configured debrid service.
func (h *StreamsHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Magnet string `json:"magnet"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(body.Magnet) == "" {
		writeError(w, http.StatusBadRequest, "magnet is required")
		return
	}

	resolved, err := h.Debrid.ResolveMagnet(r.Context(), body.Magnet)
	if err != nil {
		switch {
		case errors.Is(err, debridpkg.ErrNotConfigured):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		case errors.Is(err, debridpkg.ErrNotReady):
			// Not cached upstream; the client can retry later.
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, resolved)
}
