package handlers

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"medialog/models"
	librarypkg "medialog/services/library"
	metadatapkg "medialog/services/metadata"
)

type libraryService interface {
	List() ([]models.MediaRecord, error)
	Get(ctx context.Context, id string) (*models.MediaRecord, error)
	Add(ctx context.Context, incoming models.MediaRecord) (*models.MediaRecord, bool, error)
	UpdateUserState(id string, update models.UserStateUpdate) (*models.MediaRecord, error)
	Delete(id string) error
	Clear() error
}

// posterResolver picks the poster the UI should show for a record.
type posterResolver interface {
	PosterFor(rec *models.MediaRecord) string
}

var (
	_ libraryService = (*librarypkg.Service)(nil)
	_ posterResolver = (*metadatapkg.Service)(nil)
)

type LibraryHandler struct {
	Service libraryService
	Posters posterResolver
}

func NewLibraryHandler(s libraryService, posters posterResolver) *LibraryHandler {
	return &LibraryHandler{Service: s, Posters: posters}
}

// recordResponse adds the preference-resolved poster on top of the stored
// record; the raw poster slots stay in the payload for clients that want
// them.
type recordResponse struct {
	models.MediaRecord
	Poster string `json:"poster,omitempty"`
}

func (h *LibraryHandler) wrap(rec *models.MediaRecord) recordResponse {
	out := recordResponse{MediaRecord: *rec}
	if h.Posters != nil {
		out.Poster = h.Posters.PosterFor(rec)
	}
	return out
}

func libraryErrorStatus(err error) int {
	switch {
	case errors.Is(err, librarypkg.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, librarypkg.ErrTitleRequired),
		errors.Is(err, librarypkg.ErrInvalidKind),
		errors.Is(err, librarypkg.ErrInvalidStatus):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *LibraryHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.Service.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	kind := r.URL.Query().Get("kind")
	status := r.URL.Query().Get("status")
	out := make([]recordResponse, 0, len(records))
	for i := range records {
		if kind != "" && records[i].Kind != kind {
			continue
		}
		if status != "" && records[i].Status != status {
			continue
		}
		out = append(out, h.wrap(&records[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *LibraryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, err := h.Service.Get(r.Context(), id)
	if err != nil {
		writeError(w, libraryErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.wrap(rec))
}

func (h *LibraryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var incoming models.MediaRecord
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rec, created, err := h.Service.Add(r.Context(), incoming)
	if err != nil {
		writeError(w, libraryErrorStatus(err), err.Error())
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, h.wrap(rec))
}

func (h *LibraryHandler) UpdateState(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var update models.UserStateUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rec, err := h.Service.UpdateUserState(id, update)
	if err != nil {
		writeError(w, libraryErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.wrap(rec))
}

func (h *LibraryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.Service.Delete(id); err != nil {
		writeError(w, libraryErrorStatus(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LibraryHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Clear(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

var exportHeader = []string{"Type", "Title", "Year", "WatchedAt", "IMDB", "TMDB", "MAL", "SimklID", "Status", "Rating"}

// ExportCSV streams the whole library as a CSV download.
func (h *LibraryHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	records, err := h.Service.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "medialog-export.csv"))

	cw := csv.NewWriter(w)
	_ = cw.Write(exportHeader)
	for i := range records {
		rec := &records[i]
		year := ""
		if rec.Year != nil {
			year = strconv.Itoa(*rec.Year)
		}
		watched := ""
		if rec.WatchedAt != nil {
			watched = rec.WatchedAt.UTC().Format(time.RFC3339)
		}
		rating := ""
		if rec.Rating != nil {
			rating = strconv.Itoa(*rec.Rating)
		}
		_ = cw.Write([]string{
			rec.Kind,
			rec.Title,
			year,
			watched,
			rec.ExternalID(models.NamespaceIMDB),
			rec.ExternalID(models.NamespaceTMDB),
			rec.ExternalID(models.NamespaceMAL),
			rec.ExternalID(models.NamespaceSimkl),
			rec.Status,
			rating,
		})
	}
	cw.Flush()
}
