package simkl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"medialog/models"
)

const (
	simklAPIBaseURL    = "https://api.simkl.com"
	simklPosterBaseURL = "https://simkl.in/posters"
)

var (
	ErrNotConfigured = errors.New("simkl client id not configured")
	ErrTokenRequired = errors.New("simkl access token is required")
)

// Kinds understood by the Simkl history API, in the order partitions are
// walked during a bulk import.
var Kinds = []string{"movies", "shows", "anime"}

// Client handles Simkl API interactions: the OAuth code exchange and the
// per-status watch history fetches that feed bulk import.
type Client struct {
	mu           sync.RWMutex
	httpClient   *http.Client
	clientID     string
	clientSecret string
}

// NewClient creates a Simkl API client.
func NewClient(clientID, clientSecret string) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		clientID:     strings.TrimSpace(clientID),
		clientSecret: strings.TrimSpace(clientSecret),
	}
}

// SetHTTPClient overrides the HTTP client, used in tests.
func (c *Client) SetHTTPClient(httpc *http.Client) {
	if httpc != nil {
		c.httpClient = httpc
	}
}

// UpdateCredentials swaps the OAuth app credentials at runtime. Safe to call
// while requests are in flight.
func (c *Client) UpdateCredentials(clientID, clientSecret string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clientID = strings.TrimSpace(clientID)
	c.clientSecret = strings.TrimSpace(clientSecret)
}

func (c *Client) currentCredentials() (string, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clientID, c.clientSecret
}

// IsConfigured reports whether OAuth credentials are present.
func (c *Client) IsConfigured() bool {
	if c == nil {
		return false
	}
	clientID, _ := c.currentCredentials()
	return clientID != ""
}

// TokenResponse represents the response from /oauth/token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
}

// simklIDs holds the external identifiers Simkl attaches to a title.
type simklIDs struct {
	Simkl int64  `json:"simkl,omitempty"`
	IMDB  string `json:"imdb,omitempty"`
	TMDB  any    `json:"tmdb,omitempty"` // Simkl serves both numbers and strings here
	MAL   any    `json:"mal,omitempty"`
}

// simklTitle is the title object nested inside a history item, keyed as
// movie, show or anime depending on the partition.
type simklTitle struct {
	Title  string   `json:"title"`
	Year   int      `json:"year"`
	Poster string   `json:"poster"`
	IDs    simklIDs `json:"ids"`
}

// simklHistoryItem is one entry of /sync/all-items.
type simklHistoryItem struct {
	LastWatchedAt string      `json:"last_watched_at"`
	UserRating    *int        `json:"user_rating"`
	Movie         *simklTitle `json:"movie,omitempty"`
	Show          *simklTitle `json:"show,omitempty"`
	Anime         *simklTitle `json:"anime,omitempty"`
}

// simklAllItemsResponse is keyed by kind; only one key is populated per call.
type simklAllItemsResponse struct {
	Movies []simklHistoryItem `json:"movies"`
	Shows  []simklHistoryItem `json:"shows"`
	Anime  []simklHistoryItem `json:"anime"`
}

// ExchangeCode swaps an authorization code for an access token.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (*TokenResponse, error) {
	clientID, clientSecret := c.currentCredentials()
	if clientID == "" {
		return nil, ErrNotConfigured
	}

	payload := map[string]string{
		"code":          code,
		"client_id":     clientID,
		"client_secret": clientSecret,
		"redirect_uri":  redirectURI,
		"grant_type":    "authorization_code",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, simklAPIBaseURL+"/oauth/token", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("simkl token exchange failed: %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("simkl token exchange returned no access token")
	}
	return &token, nil
}

// AllItems fetches one (kind, status) partition of the user's watch history
// and maps every entry into a canonical record carrying the imported status.
// extended=full makes Simkl include the cross-provider ids.
func (c *Client) AllItems(ctx context.Context, accessToken, kind, status string) ([]models.MediaRecord, error) {
	clientID, _ := c.currentCredentials()
	if clientID == "" {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(accessToken) == "" {
		return nil, ErrTokenRequired
	}

	endpoint := fmt.Sprintf("%s/sync/all-items/%s/%s?extended=full", simklAPIBaseURL, kind, status)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("simkl-api-key", clientID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s/%s: %w", kind, status, err)
	}
	defer resp.Body.Close()

	// Simkl returns 204 when a partition is empty.
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s/%s failed: %s", kind, status, resp.Status)
	}

	var payload simklAllItemsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode %s/%s response: %w", kind, status, err)
	}

	items := payload.Movies
	recordKind := models.KindMovie
	switch kind {
	case "shows":
		items = payload.Shows
		recordKind = models.KindShow
	case "anime":
		items = payload.Anime
		recordKind = models.KindAnime
	}

	records := make([]models.MediaRecord, 0, len(items))
	for _, item := range items {
		rec, ok := mapHistoryItem(item, recordKind, status)
		if !ok {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// mapHistoryItem extracts the source-specific fields of one history entry.
// Entries with no title object or no usable title are dropped.
func mapHistoryItem(item simklHistoryItem, kind, status string) (models.MediaRecord, bool) {
	title := item.Movie
	if title == nil {
		title = item.Show
	}
	if title == nil {
		title = item.Anime
	}
	if title == nil || strings.TrimSpace(title.Title) == "" {
		return models.MediaRecord{}, false
	}

	rec := models.MediaRecord{
		Kind:   kind,
		Title:  strings.TrimSpace(title.Title),
		Status: status,
		Rating: item.UserRating,
	}

	if title.Year > 0 {
		year := title.Year
		rec.Year = &year
	}
	if poster := strings.TrimSpace(title.Poster); poster != "" {
		rec.FallbackPosterURL = fmt.Sprintf("%s/%s_m.webp", simklPosterBaseURL, poster)
	}

	if title.IDs.Simkl > 0 {
		rec.SetExternalID(models.NamespaceSimkl, strconv.FormatInt(title.IDs.Simkl, 10))
	}
	rec.SetExternalID(models.NamespaceIMDB, title.IDs.IMDB)
	rec.SetExternalID(models.NamespaceTMDB, flexibleID(title.IDs.TMDB))
	rec.SetExternalID(models.NamespaceMAL, flexibleID(title.IDs.MAL))

	if raw := strings.TrimSpace(item.LastWatchedAt); raw != "" {
		if watched, err := time.Parse(time.RFC3339, raw); err == nil {
			rec.WatchedAt = &watched
		}
	}

	return rec, true
}

// flexibleID renders an id Simkl may serve as either a JSON number or string.
func flexibleID(v any) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case float64:
		if id <= 0 {
			return ""
		}
		return strconv.FormatInt(int64(id), 10)
	}
	return ""
}
