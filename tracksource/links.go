package tracksource

import (
	"net/url"
	"strings"
)

// Link service labels, in keyboard order.
const (
	ServiceYandex   = "Yandex Music"
	ServiceSongLink = "song.link"
	ServiceYouTube  = "YouTube Music"
	ServiceLyrics   = "Lyrics"
)

// TrackURL is the canonical store page of a track.
func TrackURL(trackID string) string {
	return "https://music.yandex.ru/track/" + url.PathEscape(trackID)
}

// BuildLinks derives the deterministic links for a track. lyricsURL is appended last when
// non-empty.
func BuildLinks(trackID, title string, artists []string, lyricsURL string) []Link {
	query := strings.TrimSpace(strings.Join(artists, " ") + " " + title)
	links := []Link{
		{Service: ServiceYandex, URL: TrackURL(trackID)},
		{Service: ServiceSongLink, URL: "https://song.link/ya/" + url.PathEscape(trackID)},
		{Service: ServiceYouTube, URL: "https://music.youtube.com/search?q=" + url.QueryEscape(query)},
	}
	if lyricsURL != "" {
		links = append(links, Link{Service: ServiceLyrics, URL: lyricsURL})
	}
	return links
}

// NormalizeArtwork turns the source's cover reference into a fetchable URL. Yandex covers
// carry a "%%" size placeholder and usually omit the scheme.
func NormalizeArtwork(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	ref = strings.ReplaceAll(ref, "%%", "400x400")
	switch {
	case strings.HasPrefix(ref, "https://"), strings.HasPrefix(ref, "http://"):
		return ref
	case strings.HasPrefix(ref, "//"):
		return "https:" + ref
	default:
		return "https://" + ref
	}
}
