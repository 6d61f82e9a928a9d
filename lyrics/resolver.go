package lyrics

import (
	"context"
	"errors"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/onnwee/nowplaying/telemetry"
)

// MissTTL is how long a track id whose lookup failed keeps the search fallback before
// the finder is asked again.
const MissTTL = 15 * time.Minute

// Resolver caches found links per track id and never fails. Failed lookups are
// remembered for MissTTL so a track that stays on air is looked up once.
type Resolver struct {
	finder  Finder
	cache   *lru.Cache[string, string]
	misses  *expirable.LRU[string, struct{}]
	timeout time.Duration
}

// NewResolver wraps finder with an LRU of the given size. A nil finder always yields the
// search fallback.
func NewResolver(finder Finder, size int, timeout time.Duration) (*Resolver, error) {
	return newResolver(finder, size, timeout, MissTTL)
}

func newResolver(finder Finder, size int, timeout, missTTL time.Duration) (*Resolver, error) {
	if size <= 0 {
		size = 256
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	misses := expirable.NewLRU[string, struct{}](size, nil, missTTL)
	return &Resolver{finder: finder, cache: cache, misses: misses, timeout: timeout}, nil
}

// Link returns the lyrics page for trackID, or SearchURL(title, artist) on any failure.
// Found links are cached per track id; a failure serves the fallback until MissTTL elapses.
func (r *Resolver) Link(ctx context.Context, trackID, title, artist string) string {
	fallback := SearchURL(title, artist)
	if r == nil || r.finder == nil {
		return fallback
	}
	if trackID != "" {
		if u, ok := r.cache.Get(trackID); ok {
			telemetry.CountLyricsLookup("hit")
			return u
		}
		if _, missed := r.misses.Get(trackID); missed {
			telemetry.CountLyricsLookup("fallback")
			return fallback
		}
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	u, err := r.finder.Find(ctx, title, artist)
	if err != nil || u == "" {
		if err != nil && !errors.Is(err, ErrNotConfigured) {
			slog.Debug("lyrics lookup failed; using search link", slog.String("track_id", trackID), slog.Any("err", err))
		}
		if trackID != "" {
			r.misses.Add(trackID, struct{}{})
		}
		telemetry.CountLyricsLookup("fallback")
		return fallback
	}
	if trackID != "" {
		r.cache.Add(trackID, u)
	}
	telemetry.CountLyricsLookup("found")
	return u
}
