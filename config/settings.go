package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Server    ServerSettings    `json:"server"`
	Metadata  MetadataSettings  `json:"metadata"`
	Simkl     SimklSettings     `json:"simkl"`
	Gemini    GeminiSettings    `json:"gemini"`
	Torrentio TorrentioSettings `json:"torrentio"`
	Debrid    DebridSettings    `json:"debrid"`
	Cache     CacheSettings     `json:"cache"`
	Database  DatabaseSettings  `json:"database"`
	Log       LogConfig         `json:"log"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type MetadataSettings struct {
	TMDBAPIKey string `json:"tmdbApiKey"`
	Language   string `json:"language"`
	// PosterPreference selects which artwork the API surfaces: "primary"
	// for provider posters or "rated" for rating-overlay posters.
	PosterPreference string `json:"posterPreference"`
	RPDBAPIKey       string `json:"rpdbApiKey"`
}

// SimklSettings holds the OAuth app credentials used for history import.
type SimklSettings struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	RedirectURI  string `json:"redirectUri"`
}

type GeminiSettings struct {
	APIKey string `json:"apiKey"`
}

type TorrentioSettings struct {
	// Options is the Torrentio URL path options segment
	// (e.g., "sort=qualitysize|qualityfilter=480p,scr,cam").
	Options string `json:"options"`
}

type DebridSettings struct {
	RealDebridAPIKey string `json:"realDebridApiKey"`
}

type CacheSettings struct {
	SearchTTLMinutes int `json:"searchTtlMinutes"`
	DetailTTLMinutes int `json:"detailTtlMinutes"`
}

// DatabaseSettings defines where the library database lives.
type DatabaseSettings struct {
	Path string `json:"path"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	File       string `json:"file"`
	Level      string `json:"level"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

// DefaultSettings returns the configuration a fresh install starts with.
func DefaultSettings() Settings {
	return Settings{
		Server:    ServerSettings{Host: "0.0.0.0", Port: 8585},
		Metadata:  MetadataSettings{TMDBAPIKey: "", Language: "en", PosterPreference: "primary", RPDBAPIKey: ""},
		Simkl:     SimklSettings{RedirectURI: "http://localhost:8585/api/auth/simkl/exchange"},
		Gemini:    GeminiSettings{},
		Torrentio: TorrentioSettings{Options: "sort=qualitysize|qualityfilter=480p,scr,cam"},
		Debrid:    DebridSettings{},
		Cache:     CacheSettings{SearchTTLMinutes: 10, DetailTTLMinutes: 60},
		Database:  DatabaseSettings{Path: "data/library.db"},
		Log: LogConfig{
			File:       "data/logs/medialog.log",
			Level:      "info",
			MaxSize:    50, // 50 MB per file
			MaxBackups: 3,  // keep 3 old files
			MaxAge:     7,  // 7 days
			Compress:   true,
		},
	}
}

// DefaultPath resolves the settings file location, honoring the
// MEDIALOG_CONFIG environment variable when set.
func DefaultPath() string {
	if p := strings.TrimSpace(os.Getenv("MEDIALOG_CONFIG")); p != "" {
		return p
	}
	return "data/settings.json"
}

// Manager loads and persists settings to a JSON file.
type Manager struct {
	path string
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Load reads settings.json from disk or creates defaults if missing.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		// create with defaults
		defaults := DefaultSettings()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}
	f, err := os.Open(m.path)
	if err != nil {
		return Settings{}, err
	}
	defer f.Close()

	var s Settings
	if err := json.NewDecoder(f).Decode(&s); err != nil {
		return Settings{}, err
	}

	// Backfill defaults for newly introduced settings when the config
	// file predates them.
	if strings.TrimSpace(s.Metadata.Language) == "" {
		s.Metadata.Language = "en"
	}
	if strings.TrimSpace(s.Metadata.PosterPreference) == "" {
		s.Metadata.PosterPreference = "primary"
	}
	if s.Cache.SearchTTLMinutes <= 0 {
		s.Cache.SearchTTLMinutes = 10
	}
	if s.Cache.DetailTTLMinutes <= 0 {
		s.Cache.DetailTTLMinutes = 60
	}
	if strings.TrimSpace(s.Database.Path) == "" {
		s.Database.Path = "data/library.db"
	}
	if strings.TrimSpace(s.Log.File) == "" {
		s.Log = DefaultSettings().Log
	}

	return s, nil
}

// Save writes the provided settings to disk atomically.
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, m.path)
}
