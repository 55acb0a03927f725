package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"medialog/models"
	librarypkg "medialog/services/library"
)

type refreshService interface {
	RefreshAllMetadata(hard bool) (*models.RefreshStarted, error)
	Task(id string) (*models.RefreshTask, error)
}

var _ refreshService = (*librarypkg.Service)(nil)

type RefreshHandler struct {
	Service refreshService
}

func NewRefreshHandler(s refreshService) *RefreshHandler {
	return &RefreshHandler{Service: s}
}

// Start kicks off a background metadata refresh and returns the task
// handle immediately.
func (h *RefreshHandler) Start(w http.ResponseWriter, r *http.Request) {
	hard := strings.EqualFold(r.URL.Query().Get("hard"), "true")
	started, err := h.Service.RefreshAllMetadata(hard)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, started)
}

func (h *RefreshHandler) Task(w http.ResponseWriter, r *http.Request) {
	task, err := h.Service.Task(mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, librarypkg.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown task")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, task)
}
