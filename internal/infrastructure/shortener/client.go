package shortener

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-filegate/internal/config"
	"github.com/go-filegate/internal/domain"
)

// ShortLink converts a callback URL into a shortened, trackable URL.
type ShortLink interface {
	Shorten(ctx context.Context, originalURL string) (string, error)
}

// Client talks to an inshorturl-style API: GET {base}?api={key}&url={url}&format=text
// returning the short URL as plain text.
type Client struct {
	apiURL string
	apiKey string
	http   *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		apiURL: cfg.ShortenerAPIURL,
		apiKey: cfg.ShortenerAPIKey,
		http:   &http.Client{Timeout: cfg.ExternalCallTimeout},
	}
}

// Shorten returns the shortened URL, or ErrShortenerUnavailable when the
// service errors, times out, or answers with something that is not a URL.
// Callers degrade to the original URL.
func (c *Client) Shorten(ctx context.Context, originalURL string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("shortener api key not configured: %w", domain.ErrShortenerUnavailable)
	}
	reqURL := fmt.Sprintf("%s?api=%s&url=%s&format=text",
		c.apiURL, url.QueryEscape(c.apiKey), url.QueryEscape(originalURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("build shorten request: %w", domain.ErrShortenerUnavailable)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("shorten request failed: %w", domain.ErrShortenerUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("shortener returned status %d: %w", resp.StatusCode, domain.ErrShortenerUnavailable)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("read shortener response: %w", domain.ErrShortenerUnavailable)
	}
	short := strings.TrimSpace(string(body))
	if !strings.HasPrefix(short, "http") {
		return "", fmt.Errorf("shortener returned invalid body: %w", domain.ErrShortenerUnavailable)
	}
	return short, nil
}
