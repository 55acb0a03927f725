package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"gopkg.in/natefinch/lumberjack.v2"

	"medialog/api"
	"medialog/config"
	"medialog/handlers"
	"medialog/internal/cache"
	"medialog/internal/database"
	"medialog/services/debrid"
	"medialog/services/gemini"
	"medialog/services/library"
	"medialog/services/metadata"
	"medialog/services/simkl"
	"medialog/services/torrentio"
)

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	configFlag := flag.String("config", "", "path to settings.json (default: MEDIALOG_CONFIG or data/settings.json)")
	flag.Parse()

	configPath := *configFlag
	if configPath == "" {
		configPath = config.DefaultPath()
	}

	// Init config manager and load settings (creates defaults if missing)
	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	// Set up file logging with rotation
	if settings.Log.File != "" {
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			log.Printf("Warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSize,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAge,
				Compress:   settings.Log.Compress,
			}
			log.SetOutput(io.MultiWriter(os.Stdout, fileWriter))
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			log.Printf("Logging to file: %s", settings.Log.File)
		}
	}

	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	// Storage
	db, err := database.NewDB(database.Config{DatabasePath: settings.Database.Path})
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()
	mediaRepo := database.NewMediaRepository(db.Connection())

	// Services
	metadataCache := cache.New()
	metadataService := metadata.NewService(metadata.Config{
		TMDBAPIKey:       settings.Metadata.TMDBAPIKey,
		Language:         settings.Metadata.Language,
		RPDBAPIKey:       settings.Metadata.RPDBAPIKey,
		PosterPreference: settings.Metadata.PosterPreference,
		SearchTTL:        time.Duration(settings.Cache.SearchTTLMinutes) * time.Minute,
		DetailTTL:        time.Duration(settings.Cache.DetailTTLMinutes) * time.Minute,
	}, metadataCache)
	simklClient := simkl.NewClient(settings.Simkl.ClientID, settings.Simkl.ClientSecret)
	geminiClient := gemini.NewClient(settings.Gemini.APIKey)
	torrentioClient := torrentio.NewClient(nil, settings.Torrentio.Options)
	debridClient := debrid.NewRealDebridClient(settings.Debrid.RealDebridAPIKey)
	libraryService := library.NewService(mediaRepo, metadataService, simklClient)

	// Handlers
	libraryHandler := handlers.NewLibraryHandler(libraryService, metadataService)
	searchHandler := handlers.NewSearchHandler(metadataService, metadataService)
	importHandler := handlers.NewImportHandler(libraryService, simklClient, cfgManager)
	refreshHandler := handlers.NewRefreshHandler(libraryService)
	recommendationsHandler := handlers.NewRecommendationsHandler(geminiClient, libraryService)
	streamsHandler := handlers.NewStreamsHandler(torrentioClient, debridClient)
	settingsHandler := handlers.NewSettingsHandler(cfgManager)
	settingsHandler.SetMetadataService(metadataService)
	settingsHandler.SetClients(simklClient, geminiClient, torrentioClient, debridClient)

	r := mux.NewRouter()
	api.Register(r,
		libraryHandler,
		searchHandler,
		importHandler,
		refreshHandler,
		recommendationsHandler,
		streamsHandler,
		settingsHandler,
	)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	log.Printf("medialog listening on %s", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Setup graceful shutdown
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("Shutdown signal received, cleaning up...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
}
