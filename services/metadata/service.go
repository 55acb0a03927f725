package metadata

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"medialog/internal/cache"
	"medialog/models"
)

const (
	defaultSearchTTL = 10 * time.Minute
	defaultDetailTTL = time.Hour
)

// Config holds metadata service configuration.
type Config struct {
	TMDBAPIKey       string
	Language         string
	RPDBAPIKey       string
	PosterPreference string

	// TTLs for cached provider responses. Zero means the default
	// (10 minutes for searches, 1 hour for per-id detail lookups).
	SearchTTL time.Duration
	DetailTTL time.Duration

	// HTTPClient overrides the default client, used in tests.
	HTTPClient *http.Client
}

// Service fronts the external metadata providers. Every provider call checks
// the injected cache first; misses call through, map the raw response into a
// canonical record and store the result.
type Service struct {
	mu    sync.RWMutex
	tmdb  *tmdbClient
	jikan *jikanClient

	cache     *cache.Cache
	searchTTL time.Duration
	detailTTL time.Duration

	rpdbKey          string
	posterPreference string
}

// NewService creates a metadata service backed by the given cache instance.
func NewService(cfg Config, c *cache.Cache) *Service {
	searchTTL := cfg.SearchTTL
	if searchTTL <= 0 {
		searchTTL = defaultSearchTTL
	}
	detailTTL := cfg.DetailTTL
	if detailTTL <= 0 {
		detailTTL = defaultDetailTTL
	}

	return &Service{
		tmdb:             newTMDBClient(cfg.TMDBAPIKey, cfg.Language, cfg.HTTPClient),
		jikan:            newJikanClient(cfg.HTTPClient),
		cache:            c,
		searchTTL:        searchTTL,
		detailTTL:        detailTTL,
		rpdbKey:          strings.TrimSpace(cfg.RPDBAPIKey),
		posterPreference: cfg.PosterPreference,
	}
}

// UpdateSettings swaps provider credentials at runtime and clears the cache
// so fresh data is fetched with the new keys.
func (s *Service) UpdateSettings(cfg Config) {
	s.mu.Lock()
	s.tmdb = newTMDBClient(cfg.TMDBAPIKey, cfg.Language, cfg.HTTPClient)
	s.rpdbKey = strings.TrimSpace(cfg.RPDBAPIKey)
	s.posterPreference = cfg.PosterPreference
	s.mu.Unlock()

	s.cache.Clear()
	log.Printf("[metadata] cleared cache after settings change")
}

func (s *Service) tmdbClient() *tmdbClient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tmdb
}

// Search queries the providers appropriate for kindHint and returns virtual
// records. An empty kindHint searches movies and shows; "anime" searches MAL.
func (s *Service) Search(ctx context.Context, query, kindHint string) ([]models.MediaRecord, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	key := cache.Key("search", kindHint, query)
	var cached []models.MediaRecord
	if ok, err := s.cache.Get(key, &cached); ok {
		return cached, nil
	} else if err != nil {
		log.Printf("[metadata] cache read failed for %s: %v", key, err)
	}

	var records []models.MediaRecord
	switch kindHint {
	case models.KindAnime:
		found, err := s.jikan.searchAnime(ctx, query)
		if err != nil {
			return nil, err
		}
		records = found
	case models.KindMovie, models.KindShow:
		found, err := s.tmdbClient().search(ctx, query, kindHint)
		if err != nil {
			return nil, err
		}
		records = found
	default:
		// No hint: both TMDB indexes are independent reads, so fetch them
		// concurrently. A partial failure still returns the other index's
		// results.
		var (
			movies, shows     []models.MediaRecord
			movieErr, showErr error
		)
		var wg conc.WaitGroup
		wg.Go(func() { movies, movieErr = s.tmdbClient().search(ctx, query, models.KindMovie) })
		wg.Go(func() { shows, showErr = s.tmdbClient().search(ctx, query, models.KindShow) })
		wg.Wait()
		if movieErr != nil && showErr != nil {
			return nil, movieErr
		}
		if movieErr != nil {
			log.Printf("[metadata] movie search failed, returning shows only: %v", movieErr)
		}
		if showErr != nil {
			log.Printf("[metadata] show search failed, returning movies only: %v", showErr)
		}
		records = append(movies, shows...)
	}

	for i := range records {
		s.DecoratePosters(&records[i])
	}

	if err := s.cache.Set(key, records, s.searchTTL); err != nil {
		log.Printf("[metadata] cache write failed for %s: %v", key, err)
	}
	return records, nil
}

// MovieDetails fetches full movie metadata by TMDB id.
func (s *Service) MovieDetails(ctx context.Context, tmdbID int64) (*models.MediaRecord, error) {
	return s.cachedDetails(ctx, cache.Key("tmdb", "movie", strconv.FormatInt(tmdbID, 10)), func() (*models.MediaRecord, error) {
		return s.tmdbClient().movieDetails(ctx, tmdbID)
	})
}

// ShowDetails fetches full series metadata by TMDB id.
func (s *Service) ShowDetails(ctx context.Context, tmdbID int64) (*models.MediaRecord, error) {
	return s.cachedDetails(ctx, cache.Key("tmdb", "show", strconv.FormatInt(tmdbID, 10)), func() (*models.MediaRecord, error) {
		return s.tmdbClient().showDetails(ctx, tmdbID)
	})
}

// AnimeDetails fetches full anime metadata by MAL id.
func (s *Service) AnimeDetails(ctx context.Context, malID int64) (*models.MediaRecord, error) {
	return s.cachedDetails(ctx, cache.Key("jikan", "details", strconv.FormatInt(malID, 10)), func() (*models.MediaRecord, error) {
		return s.jikan.animeDetails(ctx, malID)
	})
}

// FindByIMDB resolves an IMDB id to a canonical record via TMDB.
func (s *Service) FindByIMDB(ctx context.Context, imdbID string) (*models.MediaRecord, error) {
	return s.cachedDetails(ctx, cache.Key("tmdb", "find", imdbID), func() (*models.MediaRecord, error) {
		return s.tmdbClient().findByIMDB(ctx, imdbID)
	})
}

func (s *Service) cachedDetails(ctx context.Context, key string, fetch func() (*models.MediaRecord, error)) (*models.MediaRecord, error) {
	var cached models.MediaRecord
	if ok, err := s.cache.Get(key, &cached); ok {
		return &cached, nil
	} else if err != nil {
		log.Printf("[metadata] cache read failed for %s: %v", key, err)
	}

	rec, err := fetch()
	if err != nil {
		return nil, err
	}
	s.DecoratePosters(rec)

	if err := s.cache.Set(key, rec, s.detailTTL); err != nil {
		log.Printf("[metadata] cache write failed for %s: %v", key, err)
	}
	return rec, nil
}

// Details resolves the richest available metadata for a set of external ids,
// trying the primary provider first and falling back to cross-reference
// lookups: a known TMDB id is used directly, an IMDB id resolves through
// /find, and an anime with only a MAL id goes to Jikan.
func (s *Service) Details(ctx context.Context, kind string, externalIDs map[string]string) (*models.MediaRecord, error) {
	if tmdbID := parseID(externalIDs[models.NamespaceTMDB]); tmdbID > 0 {
		switch kind {
		case models.KindShow:
			return s.ShowDetails(ctx, tmdbID)
		case models.KindAnime:
			// Anime with a TMDB id is served by TMDB's TV index; MAL
			// fills anything still missing below.
			if rec, err := s.ShowDetails(ctx, tmdbID); err == nil {
				return rec, nil
			}
		default:
			return s.MovieDetails(ctx, tmdbID)
		}
	}

	if imdbID := strings.TrimSpace(externalIDs[models.NamespaceIMDB]); imdbID != "" && kind != models.KindAnime {
		found, err := s.FindByIMDB(ctx, imdbID)
		if err != nil {
			return nil, err
		}
		if tmdbID := parseID(found.ExternalID(models.NamespaceTMDB)); tmdbID > 0 {
			if found.Kind == models.KindShow {
				return s.ShowDetails(ctx, tmdbID)
			}
			return s.MovieDetails(ctx, tmdbID)
		}
		return found, nil
	}

	if malID := parseID(externalIDs[models.NamespaceMAL]); malID > 0 {
		return s.AnimeDetails(ctx, malID)
	}

	return nil, fmt.Errorf("metadata details: no resolvable external id: %w", ErrNotFound)
}

// DecoratePosters fills the rated poster slot when an RPDB key is configured
// and the record carries a TMDB id. The other slots come from the providers.
func (s *Service) DecoratePosters(rec *models.MediaRecord) {
	s.mu.RLock()
	rpdbKey := s.rpdbKey
	s.mu.RUnlock()

	if rpdbKey == "" || rec.RatedPosterURL != "" {
		return
	}
	tmdbID := rec.ExternalID(models.NamespaceTMDB)
	if tmdbID == "" {
		return
	}
	rec.RatedPosterURL = fmt.Sprintf("%s/%s/tmdb/poster-default/%s.jpg", rpdbBaseURL, rpdbKey, tmdbID)
}

// PosterFor applies the configured poster preference to a record's candidate
// slots and returns the chosen URL, or "" when no candidate exists.
func (s *Service) PosterFor(rec *models.MediaRecord) string {
	s.mu.RLock()
	preference, rpdbKey := s.posterPreference, s.rpdbKey
	s.mu.RUnlock()

	return ResolvePoster(rec.ExternalID(models.NamespaceTMDB), rec.PosterURL, rec.FallbackPosterURL, preference, rpdbKey)
}

func parseID(raw string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
