package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"medialog/handlers"
)

// corsMiddleware handles CORS for API routes
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleOptions handles OPTIONS requests for CORS preflight
func handleOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Register mounts API endpoints onto the provided router.
func Register(
	r *mux.Router,
	libraryHandler *handlers.LibraryHandler,
	searchHandler *handlers.SearchHandler,
	importHandler *handlers.ImportHandler,
	refreshHandler *handlers.RefreshHandler,
	recommendationsHandler *handlers.RecommendationsHandler,
	streamsHandler *handlers.StreamsHandler,
	settingsHandler *handlers.SettingsHandler,
) {
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(corsMiddleware)

	// Library CRUD and user state. The refresh route is registered before
	// the {id} routes so it does not get swallowed as an id.
	api.HandleFunc("/library/refresh", refreshHandler.Start).Methods(http.MethodPost)
	api.HandleFunc("/library/refresh", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/library/export.csv", libraryHandler.ExportCSV).Methods(http.MethodGet)
	api.HandleFunc("/library", libraryHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/library", libraryHandler.Create).Methods(http.MethodPost)
	api.HandleFunc("/library", libraryHandler.Clear).Methods(http.MethodDelete)
	api.HandleFunc("/library", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/library/{id}", libraryHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/library/{id}", libraryHandler.UpdateState).Methods(http.MethodPatch)
	api.HandleFunc("/library/{id}", libraryHandler.Delete).Methods(http.MethodDelete)
	api.HandleFunc("/library/{id}", handleOptions).Methods(http.MethodOptions)

	api.HandleFunc("/tasks/{id}", refreshHandler.Task).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id}", handleOptions).Methods(http.MethodOptions)

	api.HandleFunc("/search", searchHandler.Search).Methods(http.MethodGet)
	api.HandleFunc("/search", handleOptions).Methods(http.MethodOptions)

	api.HandleFunc("/import/simkl", importHandler.ImportSimkl).Methods(http.MethodPost)
	api.HandleFunc("/import/simkl", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/auth/simkl/exchange", importHandler.ExchangeCode).Methods(http.MethodPost)
	api.HandleFunc("/auth/simkl/exchange", handleOptions).Methods(http.MethodOptions)

	api.HandleFunc("/recommendations", recommendationsHandler.Recommendations).Methods(http.MethodGet)
	api.HandleFunc("/recommendations", handleOptions).Methods(http.MethodOptions)

	api.HandleFunc("/streams/resolve", streamsHandler.Resolve).Methods(http.MethodPost)
	api.HandleFunc("/streams/resolve", handleOptions).Methods(http.MethodOptions)
	api.HandleFunc("/streams/{type}/{imdbID}", streamsHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/streams/{type}/{imdbID}", handleOptions).Methods(http.MethodOptions)

	api.HandleFunc("/settings", settingsHandler.GetSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings", settingsHandler.UpdateSettings).Methods(http.MethodPut)
	api.HandleFunc("/settings", handleOptions).Methods(http.MethodOptions)
}
