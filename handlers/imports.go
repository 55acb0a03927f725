package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"medialog/config"
	"medialog/models"
	librarypkg "medialog/services/library"
	simklpkg "medialog/services/simkl"
)

type importService interface {
	ImportSimkl(ctx context.Context, accessToken string) (*models.ImportReport, error)
}

type codeExchanger interface {
	ExchangeCode(ctx context.Context, code, redirectURI string) (*simklpkg.TokenResponse, error)
}

var (
	_ importService = (*librarypkg.Service)(nil)
	_ codeExchanger = (*simklpkg.Client)(nil)
)

type ImportHandler struct {
	Library    importService
	Simkl      codeExchanger
	CfgManager *config.Manager
}

func NewImportHandler(lib importService, simkl codeExchanger, cfgManager *config.Manager) *ImportHandler {
	return &ImportHandler{Library: lib, Simkl: simkl, CfgManager: cfgManager}
}

// ImportSimkl runs a full history import with a previously obtained access
// token. The run is synchronous; the response is the import report.
func (h *ImportHandler) ImportSimkl(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	report, err := h.Library.ImportSimkl(r.Context(), strings.TrimSpace(body.AccessToken))
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, librarypkg.ErrTokenRequired):
			status = http.StatusBadRequest
		case errors.Is(err, simklpkg.ErrNotConfigured):
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ExchangeCode trades an OAuth authorization code for an access token.
func (h *ImportHandler) ExchangeCode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code        string `json:"code"`
		RedirectURI string `json:"redirectUri"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(body.Code) == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	redirectURI := strings.TrimSpace(body.RedirectURI)
	if redirectURI == "" && h.CfgManager != nil {
		if s, err := h.CfgManager.Load(); err == nil {
			redirectURI = s.Simkl.RedirectURI
		}
	}

	token, err := h.Simkl.ExchangeCode(r.Context(), body.Code, redirectURI)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, simklpkg.ErrNotConfigured) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, token)
}
