// Package lyrics resolves a lyrics page link for a track. Lookups are best-effort:
// callers always get a usable URL, falling back to a deterministic search page.
package lyrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	geniusAPIURL    = "https://api.genius.com"
	geniusSearchURL = "https://genius.com/search"
)

var (
	ErrNotConfigured = errors.New("lyrics lookup not configured")
	ErrNotFound      = errors.New("lyrics not found")
)

// SearchURL is the deterministic fallback link for a track.
func SearchURL(title, artist string) string {
	q := strings.TrimSpace(artist + " " + title)
	return geniusSearchURL + "?q=" + url.QueryEscape(q)
}

// GeniusClient looks up song pages through the Genius search API.
type GeniusClient struct {
	Token      string
	BaseURL    string
	HTTPClient *http.Client
}

func (gc *GeniusClient) http() *http.Client {
	if gc.HTTPClient != nil {
		return gc.HTTPClient
	}
	return http.DefaultClient
}

func (gc *GeniusClient) baseURL() string {
	if gc.BaseURL != "" {
		return strings.TrimRight(gc.BaseURL, "/")
	}
	return geniusAPIURL
}

// Find returns the page URL of the best search hit for title/artist.
func (gc *GeniusClient) Find(ctx context.Context, title, artist string) (string, error) {
	if gc == nil || gc.Token == "" {
		return "", ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, gc.baseURL()+"/search", nil)
	if err != nil {
		return "", err
	}
	q := req.URL.Query()
	q.Set("q", strings.TrimSpace(artist+" "+title))
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Authorization", "Bearer "+gc.Token)
	resp, err := gc.http().Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("genius search failed: %s: %s", resp.Status, string(b))
	}
	var body struct {
		Response struct {
			Hits []struct {
				Type   string `json:"type"`
				Result struct {
					URL string `json:"url"`
				} `json:"result"`
			} `json:"hits"`
		} `json:"response"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return "", fmt.Errorf("decode genius search: %w", err)
	}
	for _, h := range body.Response.Hits {
		if h.Type == "song" && h.Result.URL != "" {
			return h.Result.URL, nil
		}
	}
	return "", ErrNotFound
}

// Finder is anything that can look up a lyrics page.
type Finder interface {
	Find(ctx context.Context, title, artist string) (string, error)
}

// DefaultTimeout bounds a single lookup.
const DefaultTimeout = 5 * time.Second
