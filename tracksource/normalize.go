package tracksource

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/onnwee/nowplaying/config"
)

type payload struct {
	Track  *trackPayload `json:"track"`
	Paused *bool         `json:"paused"`
}

type trackPayload struct {
	TrackID  flexString  `json:"track_id"`
	ID       flexString  `json:"id"`
	Title    string      `json:"title"`
	Artist   artistField `json:"artist"`
	Artists  artistField `json:"artists"`
	Cover    string      `json:"cover"`
	CoverURI string      `json:"cover_uri"`
	Artwork  string      `json:"artwork"`
	Paused   *bool       `json:"paused"`
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("track id: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

// artistField accepts a single name, a list of names, or a list of {"name": ...} objects.
type artistField []string

func (a *artistField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*a = nil
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = appendName(nil, s)
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		return fmt.Errorf("artist: %w", err)
	}
	var out []string
	for _, it := range items {
		var s string
		if err := json.Unmarshal(it, &s); err == nil {
			out = appendName(out, s)
			continue
		}
		var obj struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(it, &obj); err != nil {
			return fmt.Errorf("artist entry: %w", err)
		}
		out = appendName(out, obj.Name)
	}
	*a = out
	return nil
}

func appendName(dst []string, name string) []string {
	if name = strings.TrimSpace(name); name != "" {
		dst = append(dst, name)
	}
	return dst
}

// Normalize maps a response body onto a Sample without links. mode is one of the
// config.PauseDetect* strategies; anything unknown behaves like config.PauseDetectBoth.
func Normalize(body []byte, mode string, withArtwork bool) (Sample, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '{' {
		return Unavailable(), &FetchError{Stage: StageDecode, Err: errors.New("body is not a JSON object")}
	}
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return Unavailable(), &FetchError{Stage: StageDecode, Err: err}
	}

	flagged := (p.Paused != nil && *p.Paused) || (p.Track != nil && p.Track.Paused != nil && *p.Track.Paused)
	absent := p.Track == nil
	// A missing track is never playable, so every mode treats it as paused; the modes
	// differ only in whether the explicit flag is honored.
	if absent {
		return Paused(), nil
	}
	if flagged && mode != config.PauseDetectAbsent {
		return Paused(), nil
	}

	t := p.Track
	id := string(t.TrackID)
	if id == "" {
		id = string(t.ID)
	}
	if id == "" {
		return Paused(), nil
	}

	title := strings.TrimSpace(t.Title)
	if title == "" {
		title = UnknownTitle
	}
	artists := []string(t.Artist)
	if len(artists) == 0 {
		artists = []string(t.Artists)
	}
	if len(artists) == 0 {
		artists = []string{UnknownArtist}
	}

	s := Sample{Kind: KindPlaying, TrackID: id, Title: title, Artists: artists}
	if withArtwork {
		s.ArtworkURL = NormalizeArtwork(firstNonEmpty(t.Cover, t.CoverURI, t.Artwork))
	}
	return s, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
