package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"medialog/models"
)

const jikanBaseURL = "https://api.jikan.moe/v4"

// jikanClient is the anime metadata adapter backed by the Jikan mirror of
// MyAnimeList. Jikan needs no API key but enforces a strict per-second rate
// limit, hence the conservative throttle.
type jikanClient struct {
	httpc *http.Client

	throttleMu  sync.Mutex
	lastRequest time.Time
	minInterval time.Duration
}

func newJikanClient(httpc *http.Client) *jikanClient {
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	return &jikanClient{
		httpc:       httpc,
		minInterval: 350 * time.Millisecond,
	}
}

type jikanAnime struct {
	MALID    int64  `json:"mal_id"`
	Title    string `json:"title"`
	TitleEn  string `json:"title_english"`
	Synopsis string `json:"synopsis"`
	Year     int    `json:"year"`
	Rating   string `json:"rating"`
	Images   struct {
		JPG struct {
			LargeImageURL string `json:"large_image_url"`
			ImageURL      string `json:"image_url"`
		} `json:"jpg"`
	} `json:"images"`
	Genres []struct {
		Name string `json:"name"`
	} `json:"genres"`
	Aired struct {
		Prop struct {
			From struct {
				Year int `json:"year"`
			} `json:"from"`
		} `json:"prop"`
	} `json:"aired"`
}

type jikanSearchResponse struct {
	Data []jikanAnime `json:"data"`
}

type jikanDetailsResponse struct {
	Data jikanAnime `json:"data"`
}

func (c *jikanClient) doGET(ctx context.Context, endpoint string, v any) error {
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

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("jikan request: %w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("jikan %s: %w", req.URL.Path, ErrNotFound)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("jikan request %s: %w", resp.Status, ErrProviderUnavailable)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("jikan decode: %w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// searchAnime queries Jikan for anime matching the query.
func (c *jikanClient) searchAnime(ctx context.Context, query string) ([]models.MediaRecord, error) {
	endpoint := fmt.Sprintf("%s/anime?q=%s&limit=20&sfw=true", jikanBaseURL, url.QueryEscape(query))

	var payload jikanSearchResponse
	if err := c.doGET(ctx, endpoint, &payload); err != nil {
		return nil, err
	}

	records := make([]models.MediaRecord, 0, len(payload.Data))
	for _, anime := range payload.Data {
		rec, err := parseJikanAnime(anime)
		if err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// animeDetails fetches full metadata for a single MAL entry.
func (c *jikanClient) animeDetails(ctx context.Context, malID int64) (*models.MediaRecord, error) {
	endpoint := fmt.Sprintf("%s/anime/%d/full", jikanBaseURL, malID)

	var payload jikanDetailsResponse
	if err := c.doGET(ctx, endpoint, &payload); err != nil {
		return nil, err
	}

	rec, err := parseJikanAnime(payload.Data)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func parseJikanAnime(anime jikanAnime) (models.MediaRecord, error) {
	title := strings.TrimSpace(anime.TitleEn)
	if title == "" {
		title = strings.TrimSpace(anime.Title)
	}
	if anime.MALID <= 0 || title == "" {
		return models.MediaRecord{}, fmt.Errorf("jikan entry missing id or title: %w", ErrMalformedResponse)
	}

	rec := models.MediaRecord{
		Kind:              models.KindAnime,
		Title:             title,
		Overview:          strings.TrimSpace(anime.Synopsis),
		Certification:     strings.TrimSpace(anime.Rating),
		FallbackPosterURL: firstNonEmpty(anime.Images.JPG.LargeImageURL, anime.Images.JPG.ImageURL),
	}
	rec.SetExternalID(models.NamespaceMAL, strconv.FormatInt(anime.MALID, 10))

	year := anime.Year
	if year == 0 {
		year = anime.Aired.Prop.From.Year
	}
	if year > 0 {
		rec.Year = &year
	}

	for _, g := range anime.Genres {
		if name := strings.TrimSpace(g.Name); name != "" {
			rec.Genres = append(rec.Genres, name)
		}
	}

	return rec, nil
}
