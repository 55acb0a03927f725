package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"medialog/config"
	"medialog/services/debrid"
	"medialog/services/gemini"
	"medialog/services/metadata"
	"medialog/services/simkl"
	"medialog/services/torrentio"
)

type SettingsHandler struct {
	Manager         *config.Manager
	MetadataService *metadata.Service
	SimklClient     *simkl.Client
	GeminiClient    *gemini.Client
	TorrentioClient *torrentio.Client
	DebridClient    *debrid.RealDebridClient
}

func NewSettingsHandler(m *config.Manager) *SettingsHandler {
	return &SettingsHandler{Manager: m}
}

// SetMetadataService sets the metadata service for hot reloading API keys
func (h *SettingsHandler) SetMetadataService(ms *metadata.Service) {
	h.MetadataService = ms
}

// SetClients registers the provider clients whose credentials are hot
// reloaded when the settings change.
func (h *SettingsHandler) SetClients(s *simkl.Client, g *gemini.Client, t *torrentio.Client, d *debrid.RealDebridClient) {
	h.SimklClient = s
	h.GeminiClient = g
	h.TorrentioClient = t
	h.DebridClient = d
}

func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.Manager.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// UpdateSettings persists the posted settings and pushes the new
// credentials into the running services without a restart.
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var s config.Settings
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.Manager.Save(s); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if h.MetadataService != nil {
		h.MetadataService.UpdateSettings(metadata.Config{
			TMDBAPIKey:       s.Metadata.TMDBAPIKey,
			Language:         s.Metadata.Language,
			RPDBAPIKey:       s.Metadata.RPDBAPIKey,
			PosterPreference: s.Metadata.PosterPreference,
			SearchTTL:        time.Duration(s.Cache.SearchTTLMinutes) * time.Minute,
			DetailTTL:        time.Duration(s.Cache.DetailTTLMinutes) * time.Minute,
		})
	}
	if h.SimklClient != nil {
		h.SimklClient.UpdateCredentials(s.Simkl.ClientID, s.Simkl.ClientSecret)
	}
	if h.GeminiClient != nil {
		h.GeminiClient.UpdateAPIKey(s.Gemini.APIKey)
	}
	if h.TorrentioClient != nil {
		h.TorrentioClient.UpdateOptions(s.Torrentio.Options)
	}
	if h.DebridClient != nil {
		h.DebridClient.UpdateAPIKey(s.Debrid.RealDebridAPIKey)
	}

	log.Printf("[settings] configuration updated")
	writeJSON(w, http.StatusOK, s)
}
