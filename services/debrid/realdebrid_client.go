package debrid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const realDebridBaseURL = "https://api.real-debrid.com/rest/1.0"

var (
	ErrNotConfigured = errors.New("debrid api key not configured")
	ErrNotReady      = errors.New("torrent not ready for streaming")
)

// RealDebridClient resolves magnet links into directly streamable URLs via
// the Real-Debrid API.
type RealDebridClient struct {
	mu         sync.RWMutex
	apiKey     string
	httpClient *http.Client
	baseURL    string

	// pollInterval/pollAttempts bound the wait for cached torrents to be
	// listed; uncached magnets fail with ErrNotReady rather than blocking.
	pollInterval time.Duration
	pollAttempts int
}

// NewRealDebridClient creates a Real-Debrid API client.
func NewRealDebridClient(apiKey string) *RealDebridClient {
	return &RealDebridClient{
		apiKey:       strings.TrimSpace(apiKey),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      realDebridBaseURL,
		pollInterval: time.Second,
		pollAttempts: 5,
	}
}

// UpdateAPIKey swaps the API key at runtime. Safe to call while requests are
// in flight.
func (c *RealDebridClient) UpdateAPIKey(apiKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apiKey = strings.TrimSpace(apiKey)
}

func (c *RealDebridClient) currentAPIKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey
}

// IsConfigured reports whether an API key is present.
func (c *RealDebridClient) IsConfigured() bool {
	return c != nil && c.currentAPIKey() != ""
}

type rdAddMagnetResponse struct {
	ID  string `json:"id"`
	URI string `json:"uri"`
}

type rdTorrentInfo struct {
	ID       string   `json:"id"`
	Status   string   `json:"status"` // waiting_files_selection | queued | downloading | downloaded | error
	Links    []string `json:"links"`
	Filename string   `json:"filename"`
	Files    []struct {
		ID       int    `json:"id"`
		Path     string `json:"path"`
		Bytes    int64  `json:"bytes"`
		Selected int    `json:"selected"`
	} `json:"files"`
}

type rdUnrestrictResponse struct {
	Download string `json:"download"`
	Filename string `json:"filename"`
	Filesize int64  `json:"filesize"`
}

// ResolvedStream is the outcome of a successful magnet resolution.
type ResolvedStream struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Filesize int64  `json:"filesize"`
}

// ResolveMagnet adds a magnet, selects the largest video file and unrestricts
// the resulting link. Only instantly-available (cached) magnets resolve;
// anything still downloading fails with ErrNotReady.
func (c *RealDebridClient) ResolveMagnet(ctx context.Context, magnet string) (*ResolvedStream, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(magnet) == "" {
		return nil, fmt.Errorf("magnet link is required")
	}

	added, err := c.addMagnet(ctx, magnet)
	if err != nil {
		return nil, err
	}

	info, err := c.torrentInfo(ctx, added.ID)
	if err != nil {
		return nil, err
	}

	if info.Status == "waiting_files_selection" {
		if err := c.selectLargestFile(ctx, info); err != nil {
			return nil, err
		}
	}

	// Cached torrents flip to downloaded almost immediately after selection.
	for attempt := 0; attempt < c.pollAttempts; attempt++ {
		info, err = c.torrentInfo(ctx, added.ID)
		if err != nil {
			return nil, err
		}
		if info.Status == "downloaded" && len(info.Links) > 0 {
			return c.unrestrict(ctx, info.Links[0])
		}
		if info.Status == "error" || info.Status == "magnet_error" {
			return nil, fmt.Errorf("real-debrid reported status %s", info.Status)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}

	log.Printf("[debrid] magnet not cached, giving up after %d polls (status %s)", c.pollAttempts, info.Status)
	return nil, ErrNotReady
}

func (c *RealDebridClient) addMagnet(ctx context.Context, magnet string) (*rdAddMagnetResponse, error) {
	form := url.Values{}
	form.Set("magnet", magnet)

	var payload rdAddMagnetResponse
	if err := c.doForm(ctx, "/torrents/addMagnet", form, &payload); err != nil {
		return nil, fmt.Errorf("add magnet: %w", err)
	}
	if payload.ID == "" {
		return nil, fmt.Errorf("add magnet: empty torrent id in response")
	}
	return &payload, nil
}

func (c *RealDebridClient) selectLargestFile(ctx context.Context, info *rdTorrentInfo) error {
	selection := "all"
	var (
		bestID    int
		bestBytes int64
	)
	for _, f := range info.Files {
		if f.Bytes > bestBytes && isVideoPath(f.Path) {
			bestID, bestBytes = f.ID, f.Bytes
		}
	}
	if bestID > 0 {
		selection = strconv.Itoa(bestID)
	}

	form := url.Values{}
	form.Set("files", selection)
	if err := c.doForm(ctx, "/torrents/selectFiles/"+info.ID, form, nil); err != nil {
		return fmt.Errorf("select files: %w", err)
	}
	return nil
}

func (c *RealDebridClient) torrentInfo(ctx context.Context, id string) (*rdTorrentInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/torrents/info/"+id, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.currentAPIKey())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("torrent info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("torrent info failed: %s", resp.Status)
	}

	var info rdTorrentInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode torrent info: %w", err)
	}
	return &info, nil
}

func (c *RealDebridClient) unrestrict(ctx context.Context, link string) (*ResolvedStream, error) {
	form := url.Values{}
	form.Set("link", link)

	var payload rdUnrestrictResponse
	if err := c.doForm(ctx, "/unrestrict/link", form, &payload); err != nil {
		return nil, fmt.Errorf("unrestrict: %w", err)
	}
	if payload.Download == "" {
		return nil, fmt.Errorf("unrestrict: empty download url in response")
	}

	return &ResolvedStream{
		URL:      payload.Download,
		Filename: payload.Filename,
		Filesize: payload.Filesize,
	}, nil
}

func (c *RealDebridClient) doForm(ctx context.Context, path string, form url.Values, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.currentAPIKey())
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}
	if v == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func isVideoPath(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range []string{".mkv", ".mp4", ".avi", ".m4v", ".webm"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
