package tracksource

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/nowplaying/config"
	"github.com/onnwee/nowplaying/lyrics"
	"github.com/onnwee/nowplaying/testutil"
)

type stubLinker struct {
	calls int
	url   string
}

func (s *stubLinker) Link(ctx context.Context, trackID, title, artist string) string {
	s.calls++
	return s.url
}

func newTestClient(url string, linker LyricsLinker) *Client {
	return &Client{
		URL:            url,
		AuthHeader:     config.DefaultSourceAuthHeader,
		Token:          "secret",
		PauseDetection: config.PauseDetectBoth,
		ShowArtwork:    true,
		ShowLyrics:     true,
		Lyrics:         linker,
		HTTPClient:     &http.Client{Timeout: 2 * time.Second},
	}
}

func TestFetch_Playing(t *testing.T) {
	src := testutil.NewMockSourceServer(t)
	src.SetPlaying("77", "Song", "img/%%", "A", "B")
	linker := &stubLinker{url: "https://genius.com/A-song-lyrics"}

	s := newTestClient(src.URL, linker).Fetch(context.Background())
	if s.Kind != KindPlaying {
		t.Fatalf("Kind = %v, want playing", s.Kind)
	}
	if s.TrackID != "77" || s.ArtistLine() != "A, B" {
		t.Errorf("sample = %+v", s)
	}
	if s.ArtworkURL != "https://img/400x400" {
		t.Errorf("ArtworkURL = %q", s.ArtworkURL)
	}
	if got := s.Link(ServiceLyrics); got != linker.url {
		t.Errorf("lyrics link = %q, want %q", got, linker.url)
	}
	if got := src.LastHeader("ya-token"); got != "secret" {
		t.Errorf("ya-token header = %q, want secret", got)
	}
	if got := src.LastHeader("User-Agent"); !strings.HasPrefix(got, "Mozilla/") {
		t.Errorf("User-Agent = %q", got)
	}
}

func TestFetch_LyricsDisabledAndFallback(t *testing.T) {
	src := testutil.NewMockSourceServer(t)
	src.SetPlaying("1", "Song", "", "A")

	c := newTestClient(src.URL, nil)
	s := c.Fetch(context.Background())
	if got := s.Link(ServiceLyrics); got != lyrics.SearchURL("Song", "A") {
		t.Errorf("fallback lyrics link = %q", got)
	}

	linker := &stubLinker{url: "x"}
	c = newTestClient(src.URL, linker)
	c.ShowLyrics = false
	s = c.Fetch(context.Background())
	if s.Link(ServiceLyrics) != "" || linker.calls != 0 {
		t.Errorf("lyrics link present while disabled: %v (calls=%d)", s.Links, linker.calls)
	}
}

type missingFinder struct{ calls int }

func (f *missingFinder) Find(ctx context.Context, title, artist string) (string, error) {
	f.calls++
	return "", lyrics.ErrNotFound
}

func TestFetch_RepeatedPollsLookUpLyricsOnce(t *testing.T) {
	src := testutil.NewMockSourceServer(t)
	src.SetPlaying("77", "Song", "", "A")
	finder := &missingFinder{}
	resolver, err := lyrics.NewResolver(finder, 16, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	c := newTestClient(src.URL, resolver)

	for i := 0; i < 5; i++ {
		s := c.Fetch(context.Background())
		if got := s.Link(ServiceLyrics); got != lyrics.SearchURL("Song", "A") {
			t.Fatalf("poll %d lyrics link = %q", i, got)
		}
	}
	if finder.calls != 1 {
		t.Errorf("lyrics lookups for one track over 5 polls = %d, want 1", finder.calls)
	}

	src.SetPlaying("78", "Next", "", "A")
	c.Fetch(context.Background())
	if finder.calls != 2 {
		t.Errorf("lookups after track change = %d, want 2", finder.calls)
	}
}

func TestFetch_PausedAndIdle(t *testing.T) {
	src := testutil.NewMockSourceServer(t)
	c := newTestClient(src.URL, nil)

	src.SetPaused()
	if s := c.Fetch(context.Background()); s.Kind != KindPaused {
		t.Errorf("paused flag: Kind = %v", s.Kind)
	}
	src.SetIdle()
	if s := c.Fetch(context.Background()); s.Kind != KindPaused {
		t.Errorf("idle: Kind = %v", s.Kind)
	}
}

func TestFetch_Unavailable(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusBadGateway, `{"track":{"track_id":"1"}}`},
		{"unauthorized", http.StatusUnauthorized, `{"error":"bad token"}`},
		{"html body", http.StatusOK, `<html></html>`},
		{"truncated json", http.StatusOK, `{"track":{"track_id":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := testutil.NewMockSourceServer(t)
			src.SetRaw(tt.status, tt.body)
			if s := newTestClient(src.URL, nil).Fetch(context.Background()); s.Kind != KindUnavailable {
				t.Errorf("Kind = %v, want unavailable", s.Kind)
			}
		})
	}
}

func TestFetch_TransportError(t *testing.T) {
	c := newTestClient("http://127.0.0.1:1/none", nil)
	if s := c.Fetch(context.Background()); s.Kind != KindUnavailable {
		t.Errorf("Kind = %v, want unavailable", s.Kind)
	}
}

func TestNew_BearerMode(t *testing.T) {
	src := testutil.NewMockSourceServer(t)
	src.SetPlaying("1", "S", "", "A")
	cfg := &config.Config{
		SourceURL:        src.URL,
		SourceAuthHeader: "Authorization",
		YandexToken:      "tok",
		SourceTimeout:    time.Second,
		PauseDetection:   config.PauseDetectBoth,
	}
	s := New(cfg, nil).Fetch(context.Background())
	if s.Kind != KindPlaying {
		t.Fatalf("Kind = %v", s.Kind)
	}
	if got := src.LastHeader("Authorization"); got != "Bearer tok" {
		t.Errorf("Authorization = %q, want Bearer tok", got)
	}
}
