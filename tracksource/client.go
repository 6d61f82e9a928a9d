package tracksource

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/onnwee/nowplaying/config"
	"github.com/onnwee/nowplaying/lyrics"
	"github.com/onnwee/nowplaying/telemetry"
)

const (
	userAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	maxBodyBytes = 1 << 20
)

// LyricsLinker resolves the lyrics button URL. Implementations must not fail.
type LyricsLinker interface {
	Link(ctx context.Context, trackID, title, artist string) string
}

// Client polls the now-playing endpoint.
type Client struct {
	URL            string
	AuthHeader     string
	Token          string
	PauseDetection string
	ShowArtwork    bool
	ShowLyrics     bool
	Lyrics         LyricsLinker
	HTTPClient     *http.Client

	// bearer is set when the credential is injected by an oauth2 transport.
	bearer bool
}

// New builds a Client from configuration. When the auth header is "Authorization" the
// credential is sent as an OAuth2 bearer token.
func New(cfg *config.Config, linker LyricsLinker) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.SourceInsecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // G402: upstream serves a mismatched certificate
	}
	var rt http.RoundTripper = transport
	bearer := strings.EqualFold(cfg.SourceAuthHeader, "Authorization")
	if bearer {
		rt = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.YandexToken, TokenType: "Bearer"}),
			Base:   transport,
		}
	}
	return &Client{
		URL:            cfg.SourceURL,
		AuthHeader:     cfg.SourceAuthHeader,
		Token:          cfg.YandexToken,
		PauseDetection: cfg.PauseDetection,
		ShowArtwork:    cfg.ShowArtwork,
		ShowLyrics:     cfg.ShowLyricsLink,
		Lyrics:         linker,
		HTTPClient:     &http.Client{Timeout: cfg.SourceTimeout, Transport: rt},
		bearer:         bearer,
	}
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// Fetch polls once. Every failure is logged at debug level and reported as Unavailable.
func (c *Client) Fetch(ctx context.Context) Sample {
	ctx, span := telemetry.StartSpan(ctx, "tracksource", "tracksource.Fetch")
	var (
		s   Sample
		err error
	)
	telemetry.TimeFunc(telemetry.FetchDuration, func() { s, err = c.fetch(ctx) })
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Debug("now-playing sample unavailable", slog.String("component", "tracksource"), slog.Any("err", err))
	}
	telemetry.CountSample(s.Kind.String())
	span.SetAttributes(telemetry.SampleKindAttr(s.Kind.String()), telemetry.TrackIDAttr(s.TrackID))
	telemetry.EndSpan(span, err)
	return s
}

func (c *Client) fetch(ctx context.Context) (Sample, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return Unavailable(), &FetchError{Stage: StageRequest, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if c.AuthHeader != "" && !c.bearer {
		req.Header.Set(c.AuthHeader, c.Token)
	}
	resp, err := c.http().Do(req)
	if err != nil {
		return Unavailable(), &FetchError{Stage: StageRequest, Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Unavailable(), &FetchError{Stage: StageStatus, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return Unavailable(), &FetchError{Stage: StageRequest, Err: err}
	}
	if len(body) > maxBodyBytes {
		return Unavailable(), &FetchError{Stage: StageDecode, Err: errors.New("response body too large")}
	}
	s, err := Normalize(body, c.PauseDetection, c.ShowArtwork)
	if err != nil || !s.IsPlaying() {
		return s, err
	}
	lyricsURL := ""
	if c.ShowLyrics {
		if c.Lyrics != nil {
			lyricsURL = c.Lyrics.Link(ctx, s.TrackID, s.Title, s.ArtistLine())
		} else {
			lyricsURL = lyrics.SearchURL(s.Title, s.ArtistLine())
		}
	}
	s.Links = BuildLinks(s.TrackID, s.Title, s.Artists, lyricsURL)
	return s, nil
}
