package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"medialog/models"
)

const (
	tmdbBaseURL      = "https://api.themoviedb.org/3"
	tmdbImageBaseURL = "https://image.tmdb.org/t/p"
	// w500 is plenty for library cards; "original" wastes bandwidth.
	tmdbPosterSize = "w500"
)

// tmdbClient is the primary metadata provider adapter.
type tmdbClient struct {
	apiKey   string
	language string
	httpc    *http.Client

	// Rate limiting
	throttleMu  sync.Mutex
	lastRequest time.Time
	minInterval time.Duration
}

func newTMDBClient(apiKey, language string, httpc *http.Client) *tmdbClient {
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	return &tmdbClient{
		apiKey:      strings.TrimSpace(apiKey),
		language:    language,
		httpc:       httpc,
		minInterval: 20 * time.Millisecond, // TMDB has generous rate limits
	}
}

func (c *tmdbClient) isConfigured() bool {
	return c != nil && c.apiKey != ""
}

// doGET performs an HTTP GET with rate limiting and retry with exponential
// backoff on transient failures. Non-2xx terminal statuses map onto the
// provider error taxonomy so callers can degrade instead of crashing.
func (c *tmdbClient) doGET(ctx context.Context, endpoint string, query url.Values, v any) error {
	if !c.isConfigured() {
		return fmt.Errorf("tmdb: %w", ErrNotConfigured)
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("api_key", c.apiKey)
	if lang := strings.TrimSpace(c.language); lang != "" {
		query.Set("language", normalizeLanguage(lang))
	} else {
		query.Set("language", "en-US")
	}

	var lastErr error
	backoff := 300 * time.Millisecond

	for attempt := 0; attempt < 3; attempt++ {
		c.throttleMu.Lock()
		since := time.Since(c.lastRequest)
		if since < c.minInterval {
			time.Sleep(c.minInterval - since)
		}
		c.lastRequest = time.Now()
		c.throttleMu.Unlock()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.URL.RawQuery = query.Encode()

		resp, err := c.httpc.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("tmdb request: %w: %v", ErrProviderUnavailable, err)
			log.Printf("[tmdb] http error (attempt %d/3): %v", attempt+1, err)
			time.Sleep(backoff)
			backoff *= 2
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			log.Printf("[tmdb] rate limited or server error (attempt %d/3): status %d", attempt+1, resp.StatusCode)
			lastErr = fmt.Errorf("tmdb request %s: %w", resp.Status, ErrProviderUnavailable)
			time.Sleep(backoff)
			backoff *= 2
			continue
		}

		if resp.StatusCode == http.StatusNotFound {
			resp.Body.Close()
			return fmt.Errorf("tmdb %s: %w", req.URL.Path, ErrNotFound)
		}

		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return fmt.Errorf("tmdb request %s: %w", resp.Status, ErrProviderUnavailable)
		}

		err = json.NewDecoder(resp.Body).Decode(v)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("tmdb decode: %w: %v", ErrMalformedResponse, err)
		}
		return nil
	}

	return lastErr
}

type tmdbSearchResponse struct {
	Results []tmdbSearchResult `json:"results"`
}

type tmdbSearchResult struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Name         string `json:"name"`
	Overview     string `json:"overview"`
	PosterPath   string `json:"poster_path"`
	ReleaseDate  string `json:"release_date"`
	FirstAirDate string `json:"first_air_date"`
}

type tmdbDetailsResponse struct {
	ID             int64  `json:"id"`
	Title          string `json:"title"`
	Name           string `json:"name"`
	Overview       string `json:"overview"`
	PosterPath     string `json:"poster_path"`
	ReleaseDate    string `json:"release_date"`
	FirstAirDate   string `json:"first_air_date"`
	Runtime        int    `json:"runtime"`
	EpisodeRunTime []int  `json:"episode_run_time"`
	Genres         []struct {
		Name string `json:"name"`
	} `json:"genres"`
	ProductionCountries []struct {
		ISO31661 string `json:"iso_3166_1"`
	} `json:"production_countries"`
	OriginCountry []string `json:"origin_country"`
	CreatedBy     []struct {
		Name string `json:"name"`
	} `json:"created_by"`
	Credits struct {
		Crew []struct {
			Name string `json:"name"`
			Job  string `json:"job"`
		} `json:"crew"`
	} `json:"credits"`
	ExternalIDs struct {
		IMDBID string `json:"imdb_id"`
	} `json:"external_ids"`
	ReleaseDates struct {
		Results []struct {
			ISO31661     string `json:"iso_3166_1"`
			ReleaseDates []struct {
				Certification string `json:"certification"`
			} `json:"release_dates"`
		} `json:"results"`
	} `json:"release_dates"`
	ContentRatings struct {
		Results []struct {
			ISO31661 string `json:"iso_3166_1"`
			Rating   string `json:"rating"`
		} `json:"results"`
	} `json:"content_ratings"`
}

type tmdbFindResponse struct {
	MovieResults []tmdbSearchResult `json:"movie_results"`
	TVResults    []tmdbSearchResult `json:"tv_results"`
}

// search queries TMDB for movies or shows and maps the results into virtual
// library records.
func (c *tmdbClient) search(ctx context.Context, query, kind string) ([]models.MediaRecord, error) {
	endpoint := tmdbBaseURL + "/search/movie"
	if kind == models.KindShow {
		endpoint = tmdbBaseURL + "/search/tv"
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("include_adult", "false")

	var payload tmdbSearchResponse
	if err := c.doGET(ctx, endpoint, params, &payload); err != nil {
		return nil, err
	}

	records := make([]models.MediaRecord, 0, len(payload.Results))
	for _, result := range payload.Results {
		rec, err := parseTMDBSearchResult(result, kind)
		if err != nil {
			log.Printf("[tmdb] skipping malformed search result: %v", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// movieDetails fetches full movie metadata including credits, external IDs
// and certifications in a single call.
func (c *tmdbClient) movieDetails(ctx context.Context, tmdbID int64) (*models.MediaRecord, error) {
	endpoint := fmt.Sprintf("%s/movie/%d", tmdbBaseURL, tmdbID)

	params := url.Values{}
	params.Set("append_to_response", "credits,external_ids,release_dates")

	var payload tmdbDetailsResponse
	if err := c.doGET(ctx, endpoint, params, &payload); err != nil {
		return nil, err
	}

	return parseTMDBDetails(payload, models.KindMovie)
}

// showDetails fetches full series metadata.
func (c *tmdbClient) showDetails(ctx context.Context, tmdbID int64) (*models.MediaRecord, error) {
	endpoint := fmt.Sprintf("%s/tv/%d", tmdbBaseURL, tmdbID)

	params := url.Values{}
	params.Set("append_to_response", "credits,external_ids,content_ratings")

	var payload tmdbDetailsResponse
	if err := c.doGET(ctx, endpoint, params, &payload); err != nil {
		return nil, err
	}

	return parseTMDBDetails(payload, models.KindShow)
}

// findByIMDB resolves an IMDB ID to a TMDB record. The result carries only
// identity fields; callers follow up with movieDetails/showDetails.
func (c *tmdbClient) findByIMDB(ctx context.Context, imdbID string) (*models.MediaRecord, error) {
	imdbID = strings.TrimSpace(imdbID)
	if imdbID == "" {
		return nil, fmt.Errorf("tmdb find: %w: empty imdb id", ErrNotFound)
	}
	if !strings.HasPrefix(imdbID, "tt") {
		imdbID = "tt" + imdbID
	}

	endpoint := fmt.Sprintf("%s/find/%s", tmdbBaseURL, imdbID)

	params := url.Values{}
	params.Set("external_source", "imdb_id")

	var payload tmdbFindResponse
	if err := c.doGET(ctx, endpoint, params, &payload); err != nil {
		return nil, err
	}

	if len(payload.MovieResults) > 0 {
		rec, err := parseTMDBSearchResult(payload.MovieResults[0], models.KindMovie)
		if err != nil {
			return nil, err
		}
		rec.SetExternalID(models.NamespaceIMDB, imdbID)
		return &rec, nil
	}
	if len(payload.TVResults) > 0 {
		rec, err := parseTMDBSearchResult(payload.TVResults[0], models.KindShow)
		if err != nil {
			return nil, err
		}
		rec.SetExternalID(models.NamespaceIMDB, imdbID)
		return &rec, nil
	}

	return nil, fmt.Errorf("tmdb find %s: %w", imdbID, ErrNotFound)
}

// parseTMDBSearchResult maps one raw search result, failing fast on shape
// mismatch instead of propagating half-empty records.
func parseTMDBSearchResult(result tmdbSearchResult, kind string) (models.MediaRecord, error) {
	title := strings.TrimSpace(result.Title)
	if title == "" {
		title = strings.TrimSpace(result.Name)
	}
	if result.ID <= 0 || title == "" {
		return models.MediaRecord{}, fmt.Errorf("tmdb result missing id or title: %w", ErrMalformedResponse)
	}

	rec := models.MediaRecord{
		Kind:      kind,
		Title:     title,
		Overview:  strings.TrimSpace(result.Overview),
		PosterURL: tmdbPosterURL(result.PosterPath),
	}
	rec.SetExternalID(models.NamespaceTMDB, strconv.FormatInt(result.ID, 10))

	if year := yearFromDate(firstNonEmpty(result.ReleaseDate, result.FirstAirDate)); year > 0 {
		rec.Year = &year
	}

	return rec, nil
}

func parseTMDBDetails(payload tmdbDetailsResponse, kind string) (*models.MediaRecord, error) {
	title := strings.TrimSpace(payload.Title)
	if title == "" {
		title = strings.TrimSpace(payload.Name)
	}
	if payload.ID <= 0 || title == "" {
		return nil, fmt.Errorf("tmdb details missing id or title: %w", ErrMalformedResponse)
	}

	rec := &models.MediaRecord{
		Kind:      kind,
		Title:     title,
		Overview:  strings.TrimSpace(payload.Overview),
		PosterURL: tmdbPosterURL(payload.PosterPath),
	}
	rec.SetExternalID(models.NamespaceTMDB, strconv.FormatInt(payload.ID, 10))
	rec.SetExternalID(models.NamespaceIMDB, payload.ExternalIDs.IMDBID)

	if year := yearFromDate(firstNonEmpty(payload.ReleaseDate, payload.FirstAirDate)); year > 0 {
		rec.Year = &year
	}

	for _, g := range payload.Genres {
		if name := strings.TrimSpace(g.Name); name != "" {
			rec.Genres = append(rec.Genres, name)
		}
	}

	if payload.Runtime > 0 {
		runtime := payload.Runtime
		rec.Runtime = &runtime
	} else if len(payload.EpisodeRunTime) > 0 && payload.EpisodeRunTime[0] > 0 {
		runtime := payload.EpisodeRunTime[0]
		rec.Runtime = &runtime
	}

	if len(payload.ProductionCountries) > 0 {
		rec.Country = payload.ProductionCountries[0].ISO31661
	} else if len(payload.OriginCountry) > 0 {
		rec.Country = payload.OriginCountry[0]
	}

	rec.Director = tmdbDirector(payload, kind)
	rec.Certification = tmdbCertification(payload, kind)

	return rec, nil
}

func tmdbDirector(payload tmdbDetailsResponse, kind string) string {
	if kind == models.KindShow {
		if len(payload.CreatedBy) > 0 {
			return strings.TrimSpace(payload.CreatedBy[0].Name)
		}
		return ""
	}
	for _, member := range payload.Credits.Crew {
		if member.Job == "Director" {
			return strings.TrimSpace(member.Name)
		}
	}
	return ""
}

// tmdbCertification prefers the US rating, falling back to the first country
// that carries one.
func tmdbCertification(payload tmdbDetailsResponse, kind string) string {
	if kind == models.KindShow {
		fallback := ""
		for _, result := range payload.ContentRatings.Results {
			rating := strings.TrimSpace(result.Rating)
			if rating == "" {
				continue
			}
			if result.ISO31661 == "US" {
				return rating
			}
			if fallback == "" {
				fallback = rating
			}
		}
		return fallback
	}

	fallback := ""
	for _, country := range payload.ReleaseDates.Results {
		for _, release := range country.ReleaseDates {
			cert := strings.TrimSpace(release.Certification)
			if cert == "" {
				continue
			}
			if country.ISO31661 == "US" {
				return cert
			}
			if fallback == "" {
				fallback = cert
			}
		}
	}
	return fallback
}

// tmdbPosterURL builds an absolute poster URL from a TMDB poster path.
func tmdbPosterURL(posterPath string) string {
	trimmed := strings.TrimSpace(posterPath)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/%s", tmdbImageBaseURL, tmdbPosterSize, strings.TrimPrefix(trimmed, "/"))
}

func normalizeLanguage(lang string) string {
	lang = strings.ReplaceAll(lang, "_", "-")
	if len(lang) == 2 {
		return strings.ToLower(lang) + "-US"
	}
	if len(lang) >= 5 {
		return strings.ToLower(lang[:2]) + "-" + strings.ToUpper(lang[3:])
	}
	return "en-US"
}

func yearFromDate(date string) int {
	date = strings.TrimSpace(date)
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
