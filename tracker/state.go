package tracker

import (
	"time"

	"github.com/onnwee/nowplaying/publisher"
	"github.com/onnwee/nowplaying/tracksource"
)

// Observed is the last playback state the channel message reflects.
type Observed int

const (
	ObservedNone Observed = iota
	ObservedPlaying
	ObservedPaused
)

func (o Observed) String() string {
	switch o {
	case ObservedPlaying:
		return "playing"
	case ObservedPaused:
		return "paused"
	default:
		return "none"
	}
}

// LastKnown is None, Playing(TrackID) or Paused.
type LastKnown struct {
	Kind    Observed
	TrackID string
}

// PlayingID reports whether l is Playing(id).
func (l LastKnown) PlayingID(id string) bool {
	return l.Kind == ObservedPlaying && l.TrackID == id
}

// State is owned by a Loop and reset on every start and stop.
type State struct {
	Running     bool
	LastKnown   LastKnown
	Handle      *publisher.Handle
	LastArtwork string
	Current     *tracksource.Sample

	// lastAppended is the track id of the most recent history line.
	lastAppended string
}

// Status is a read-only snapshot for commands and HTTP.
type Status struct {
	Running    bool      `json:"running"`
	State      string    `json:"state"`
	TrackID    string    `json:"track_id,omitempty"`
	Title      string    `json:"title,omitempty"`
	Artists    string    `json:"artists,omitempty"`
	TrackURL   string    `json:"track_url,omitempty"`
	MessageID  int       `json:"message_id,omitempty"`
	LastTickAt time.Time `json:"last_tick_at,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
}

// Playing reports whether the snapshot carries a current track.
func (s Status) Playing() bool { return s.State == ObservedPlaying.String() && s.TrackID != "" }
