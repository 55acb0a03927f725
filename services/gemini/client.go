package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	geminiModel   = "gemini-1.5-flash"

	// Rate-limit retry schedule: 10s then 20s, 3 attempts total.
	retryAttempts  = 3
	retryBaseDelay = 10 * time.Second
)

var (
	ErrNotConfigured = errors.New("gemini api key not configured")
	ErrRateLimited   = errors.New("gemini rate limited")
	ErrUnavailable   = errors.New("gemini unavailable")
)

// Client calls the Gemini generative API for watch recommendations. Rate
// limited responses are retried on a fixed backoff schedule before degrading
// to an empty result; every other failure is surfaced as a typed error.
type Client struct {
	mu         sync.RWMutex
	apiKey     string
	httpClient *http.Client

	// retryDelay is shortened in tests.
	retryDelay time.Duration
}

// NewClient creates a Gemini API client.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retryDelay: retryBaseDelay,
	}
}

// SetHTTPClient overrides the HTTP client, used in tests.
func (c *Client) SetHTTPClient(httpc *http.Client) {
	if httpc != nil {
		c.httpClient = httpc
	}
}

// UpdateAPIKey swaps the API key at runtime. Safe to call while requests
// are in flight.
func (c *Client) UpdateAPIKey(apiKey string) {
	c.mu.Lock()
	c.apiKey = strings.TrimSpace(apiKey)
	c.mu.Unlock()
}

func (c *Client) currentAPIKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey
}

// IsConfigured reports whether an API key is present.
func (c *Client) IsConfigured() bool {
	return c != nil && c.currentAPIKey() != ""
}

type generatePart struct {
	Text string `json:"text"`
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
}

type generateRequest struct {
	Contents []generateContent `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content generateContent `json:"content"`
	} `json:"candidates"`
}

// Recommendation is one AI-suggested title.
type Recommendation struct {
	Title string `json:"title"`
	Year  int    `json:"year,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

// Recommend asks for titles similar to the seeds. Returns an empty slice,
// not an error, when the provider stays rate limited through every retry.
func (c *Client) Recommend(ctx context.Context, seeds []string, kind string) ([]Recommendation, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	if len(seeds) == 0 {
		return nil, nil
	}

	prompt := buildPrompt(seeds, kind)

	var recommendations []Recommendation
	err := retry.Do(
		func() error {
			recs, err := c.generate(ctx, prompt)
			if err != nil {
				return err
			}
			recommendations = recs
			return nil
		},
		retry.Attempts(retryAttempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(func(err error) bool { return errors.Is(err, ErrRateLimited) }),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if errors.Is(err, ErrRateLimited) {
		log.Printf("[gemini] rate limited through all retries, returning no recommendations")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return recommendations, nil
}

func (c *Client) generate(ctx context.Context, prompt string) ([]Recommendation, error) {
	reqBody := generateRequest{
		Contents: []generateContent{{Parts: []generatePart{{Text: prompt}}}},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", geminiBaseURL, geminiModel, c.currentAPIKey())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini request %s: %w", resp.Status, ErrUnavailable)
	}

	var payload generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode gemini response: %w", err)
	}
	if len(payload.Candidates) == 0 || len(payload.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini returned no candidates: %w", ErrUnavailable)
	}

	return parseRecommendations(payload.Candidates[0].Content.Parts[0].Text)
}

func buildPrompt(seeds []string, kind string) string {
	subject := "movies and shows"
	switch kind {
	case "movie":
		subject = "movies"
	case "show":
		subject = "TV shows"
	case "anime":
		subject = "anime"
	}
	return fmt.Sprintf(
		"Recommend 10 %s similar to: %s. Respond with only a JSON array of objects with keys title, year, kind (movie|show|anime). No prose.",
		subject, strings.Join(seeds, ", "))
}

// parseRecommendations extracts the JSON array from the model's reply, which
// often arrives wrapped in a markdown code fence.
func parseRecommendations(text string) ([]Recommendation, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON array in gemini reply")
	}

	var recs []Recommendation
	if err := json.Unmarshal([]byte(text[start:end+1]), &recs); err != nil {
		return nil, fmt.Errorf("decode recommendations: %w", err)
	}

	filtered := recs[:0]
	for _, r := range recs {
		if strings.TrimSpace(r.Title) != "" {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}
