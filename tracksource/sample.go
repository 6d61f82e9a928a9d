// Package tracksource fetches the listener's current playback from the now-playing API and
// normalizes it into a Sample. Fetch never fails: any problem upstream becomes KindUnavailable.
package tracksource

import "strings"

// Kind is the playback state observed on one poll.
type Kind int

const (
	// KindUnavailable means the fetch failed or the payload was unusable.
	KindUnavailable Kind = iota
	// KindPaused means nothing is actively playing.
	KindPaused
	// KindPlaying means a track with a known id is playing.
	KindPlaying
)

func (k Kind) String() string {
	switch k {
	case KindPaused:
		return "paused"
	case KindPlaying:
		return "playing"
	default:
		return "unavailable"
	}
}

// Placeholders used when the source omits a field.
const (
	UnknownTitle  = "Unknown title"
	UnknownArtist = "Unknown artist"
)

// Link is one labelled outbound URL shown under the message.
type Link struct {
	Service string
	URL     string
}

// Sample is one normalized observation. Track fields are only set for KindPlaying.
type Sample struct {
	Kind       Kind
	TrackID    string
	Title      string
	Artists    []string
	ArtworkURL string
	Links      []Link
}

// Unavailable is the sample for a missed observation.
func Unavailable() Sample { return Sample{Kind: KindUnavailable} }

// Paused is the sample for an idle or paused player.
func Paused() Sample { return Sample{Kind: KindPaused} }

// IsPlaying reports whether s carries a track.
func (s Sample) IsPlaying() bool { return s.Kind == KindPlaying }

// ArtistLine joins artists for display.
func (s Sample) ArtistLine() string {
	if len(s.Artists) == 0 {
		return UnknownArtist
	}
	return strings.Join(s.Artists, ", ")
}

// DisplayTitle returns the title or its placeholder.
func (s Sample) DisplayTitle() string {
	if s.Title == "" {
		return UnknownTitle
	}
	return s.Title
}

// Link returns the URL for service, or "".
func (s Sample) Link(service string) string {
	for _, l := range s.Links {
		if l.Service == service {
			return l.URL
		}
	}
	return ""
}
