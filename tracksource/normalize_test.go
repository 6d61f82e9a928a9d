package tracksource

import (
	"errors"
	"reflect"
	"testing"

	"github.com/onnwee/nowplaying/config"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		mode        string
		wantKind    Kind
		wantID      string
		wantTitle   string
		wantArtists []string
		wantArtwork string
		wantErr     bool
	}{
		{
			name:        "single artist string",
			body:        `{"track":{"track_id":"123","title":"Song","artist":"Band","cover":"avatars.yandex.net/get-music-content/1/%%"}}`,
			wantKind:    KindPlaying,
			wantID:      "123",
			wantTitle:   "Song",
			wantArtists: []string{"Band"},
			wantArtwork: "https://avatars.yandex.net/get-music-content/1/400x400",
		},
		{
			name:        "artist list preserves order",
			body:        `{"track":{"track_id":"9","title":"Duet","artist":["B","A"]}}`,
			wantKind:    KindPlaying,
			wantID:      "9",
			wantTitle:   "Duet",
			wantArtists: []string{"B", "A"},
		},
		{
			name:        "numeric id and artist objects",
			body:        `{"track":{"track_id":4567,"title":"X","artists":[{"name":"One"},{"name":"Two"}]}}`,
			wantKind:    KindPlaying,
			wantID:      "4567",
			wantTitle:   "X",
			wantArtists: []string{"One", "Two"},
		},
		{
			name:        "missing title and artist use placeholders",
			body:        `{"track":{"track_id":"1"}}`,
			wantKind:    KindPlaying,
			wantID:      "1",
			wantTitle:   UnknownTitle,
			wantArtists: []string{UnknownArtist},
		},
		{
			name:     "missing id is paused",
			body:     `{"track":{"title":"Song","artist":"Band"}}`,
			wantKind: KindPaused,
		},
		{
			name:     "null track is paused",
			body:     `{"track":null}`,
			wantKind: KindPaused,
		},
		{
			name:     "top-level pause flag",
			body:     `{"paused":true,"track":{"track_id":"1","title":"S"}}`,
			wantKind: KindPaused,
		},
		{
			name:     "pause flag inside track",
			body:     `{"track":{"track_id":"1","paused":true}}`,
			wantKind: KindPaused,
		},
		{
			name:     "flag mode treats absent track as paused",
			body:     `{}`,
			mode:     config.PauseDetectFlag,
			wantKind: KindPaused,
		},
		{
			name:     "flag mode treats null track as paused",
			body:     `{"track":null,"paused":false}`,
			mode:     config.PauseDetectFlag,
			wantKind: KindPaused,
		},
		{
			name:     "absent mode treats absent track as paused",
			body:     `{"paused":false}`,
			mode:     config.PauseDetectAbsent,
			wantKind: KindPaused,
		},
		{
			name:     "flag mode honors flag",
			body:     `{"paused":true}`,
			mode:     config.PauseDetectFlag,
			wantKind: KindPaused,
		},
		{
			name:        "absent mode ignores flag",
			body:        `{"paused":true,"track":{"track_id":"5","title":"S","artist":"A"}}`,
			mode:        config.PauseDetectAbsent,
			wantKind:    KindPlaying,
			wantID:      "5",
			wantTitle:   "S",
			wantArtists: []string{"A"},
		},
		{
			name:     "not an object",
			body:     `<html>bad gateway</html>`,
			wantKind: KindUnavailable,
			wantErr:  true,
		},
		{
			name:     "wrong artist type",
			body:     `{"track":{"track_id":"1","artist":42}}`,
			wantKind: KindUnavailable,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode := tt.mode
			if mode == "" {
				mode = config.PauseDetectBoth
			}
			s, err := Normalize([]byte(tt.body), mode, true)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Normalize() err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var fe *FetchError
				if !errors.As(err, &fe) || fe.Stage != StageDecode {
					t.Errorf("error = %v, want decode FetchError", err)
				}
			}
			if s.Kind != tt.wantKind {
				t.Fatalf("Kind = %v, want %v", s.Kind, tt.wantKind)
			}
			if s.Kind != KindPlaying {
				return
			}
			if s.TrackID != tt.wantID || s.Title != tt.wantTitle {
				t.Errorf("id/title = %q/%q, want %q/%q", s.TrackID, s.Title, tt.wantID, tt.wantTitle)
			}
			if !reflect.DeepEqual(s.Artists, tt.wantArtists) {
				t.Errorf("Artists = %v, want %v", s.Artists, tt.wantArtists)
			}
			if s.ArtworkURL != tt.wantArtwork {
				t.Errorf("ArtworkURL = %q, want %q", s.ArtworkURL, tt.wantArtwork)
			}
		})
	}
}

func TestNormalize_ArtworkDisabled(t *testing.T) {
	s, err := Normalize([]byte(`{"track":{"track_id":"1","cover":"x/%%"}}`), config.PauseDetectBoth, false)
	if err != nil {
		t.Fatal(err)
	}
	if s.ArtworkURL != "" {
		t.Errorf("ArtworkURL = %q, want empty", s.ArtworkURL)
	}
}

func TestNormalizeArtwork(t *testing.T) {
	tests := map[string]string{
		"":                         "",
		"  ":                       "",
		"host/img/%%":              "https://host/img/400x400",
		"//host/a.jpg":             "https://host/a.jpg",
		"http://host/a.jpg":        "http://host/a.jpg",
		"https://host/%%/cover.jp": "https://host/400x400/cover.jp",
	}
	for in, want := range tests {
		if got := NormalizeArtwork(in); got != want {
			t.Errorf("NormalizeArtwork(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildLinks(t *testing.T) {
	links := BuildLinks("42", "Song", []string{"A", "B"}, "")
	want := []Link{
		{ServiceYandex, "https://music.yandex.ru/track/42"},
		{ServiceSongLink, "https://song.link/ya/42"},
		{ServiceYouTube, "https://music.youtube.com/search?q=A+B+Song"},
	}
	if !reflect.DeepEqual(links, want) {
		t.Errorf("BuildLinks() = %v, want %v", links, want)
	}

	withLyrics := BuildLinks("42", "Song", []string{"A"}, "https://genius.com/x")
	if got := withLyrics[len(withLyrics)-1]; got.Service != ServiceLyrics || got.URL != "https://genius.com/x" {
		t.Errorf("last link = %+v, want lyrics", got)
	}
}

func TestSampleHelpers(t *testing.T) {
	s := Sample{Kind: KindPlaying, Title: "T", Artists: []string{"A", "B"}, Links: BuildLinks("1", "T", []string{"A"}, "")}
	if s.ArtistLine() != "A, B" {
		t.Errorf("ArtistLine() = %q", s.ArtistLine())
	}
	if s.Link(ServiceYandex) != TrackURL("1") {
		t.Errorf("Link(yandex) = %q", s.Link(ServiceYandex))
	}
	if s.Link("nope") != "" {
		t.Error("unknown service should be empty")
	}
	if Paused().ArtistLine() != UnknownArtist || Paused().DisplayTitle() != UnknownTitle {
		t.Error("placeholders not applied")
	}
	for k, want := range map[Kind]string{KindPlaying: "playing", KindPaused: "paused", KindUnavailable: "unavailable", Kind(9): "unavailable"} {
		if k.String() != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, k.String(), want)
		}
	}
}
