package torrentio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const torrentioDefaultBaseURL = "https://torrentio.strem.fun"

var ErrIMDBIDRequired = errors.New("imdb id is required")

// Client queries the Torrentio Stremio addon for magnet candidates.
type Client struct {
	mu         sync.RWMutex
	baseURL    string
	options    string // URL path options (e.g., "sort=qualitysize|qualityfilter=480p,scr,cam")
	httpClient *http.Client
}

// NewClient constructs a Torrentio client with sane defaults. The options
// string is inserted between the base URL and the /stream path.
func NewClient(httpc *http.Client, options string) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:    torrentioDefaultBaseURL,
		options:    strings.TrimSpace(options),
		httpClient: httpc,
	}
}

// UpdateOptions swaps the options path segment at runtime. Safe to call
// while requests are in flight.
func (c *Client) UpdateOptions(options string) {
	c.mu.Lock()
	c.options = strings.TrimSpace(options)
	c.mu.Unlock()
}

func (c *Client) currentOptions() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.options
}

// Stream is one release offered by Torrentio.
type Stream struct {
	Name     string `json:"name"`
	Title    string `json:"title"`
	InfoHash string `json:"infoHash"`
	FileIdx  int    `json:"fileIdx"`
}

type streamsResponse struct {
	Streams []Stream `json:"streams"`
}

// Magnet builds a magnet link for the stream.
func (s Stream) Magnet() string {
	if s.InfoHash == "" {
		return ""
	}
	magnet := "magnet:?xt=urn:btih:" + s.InfoHash
	if name := strings.TrimSpace(strings.Split(s.Title, "\n")[0]); name != "" {
		magnet += "&dn=" + url.QueryEscape(name)
	}
	return magnet
}

// Streams fetches release candidates for an IMDB id. The media type must be
// "movie" or "series" in Stremio terms; anime trackers are folded into both.
func (c *Client) Streams(ctx context.Context, mediaType, imdbID string) ([]Stream, error) {
	imdbID = strings.TrimSpace(imdbID)
	if imdbID == "" {
		return nil, ErrIMDBIDRequired
	}
	if !strings.HasPrefix(imdbID, "tt") {
		imdbID = "tt" + imdbID
	}
	if mediaType != "movie" {
		mediaType = "series"
	}

	endpoint := c.baseURL
	if options := c.currentOptions(); options != "" {
		endpoint += "/" + options
	}
	endpoint += fmt.Sprintf("/stream/%s/%s.json", mediaType, imdbID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("torrentio request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("torrentio request failed: %s", resp.Status)
	}

	var payload streamsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode torrentio response: %w", err)
	}

	streams := payload.Streams[:0]
	for _, s := range payload.Streams {
		if s.InfoHash != "" {
			streams = append(streams, s)
		}
	}
	return streams, nil
}
