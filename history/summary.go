package history

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ArtistCount is one row of TopArtists.
type ArtistCount struct {
	Artist string
	Plays  int
}

// TopArtists counts plays per artist (a record with several artists counts for each) and
// returns the n most played, ties broken by name.
func TopArtists(recs []Record, n int) []ArtistCount {
	counts := map[string]int{}
	for _, r := range recs {
		for _, a := range strings.Split(r.Artists, ", ") {
			if a = strings.TrimSpace(a); a != "" {
				counts[a]++
			}
		}
	}
	out := make([]ArtistCount, 0, len(counts))
	for a, c := range counts {
		out = append(out, ArtistCount{Artist: a, Plays: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Plays != out[j].Plays {
			return out[i].Plays > out[j].Plays
		}
		return out[i].Artist < out[j].Artist
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// HourlyActivity buckets records by hour of day in loc (UTC when nil).
func HourlyActivity(recs []Record, loc *time.Location) [24]int {
	if loc == nil {
		loc = time.UTC
	}
	var hours [24]int
	for _, r := range recs {
		hours[r.Time.In(loc).Hour()]++
	}
	return hours
}

// RenderChart draws hours as a fixed-width text bar chart, one row per hour.
func RenderChart(hours [24]int, width int) string {
	if width <= 0 {
		width = 20
	}
	peak := 0
	for _, c := range hours {
		if c > peak {
			peak = c
		}
	}
	var b strings.Builder
	for h, c := range hours {
		bar := 0
		if peak > 0 {
			bar = c * width / peak
			if c > 0 && bar == 0 {
				bar = 1
			}
		}
		fmt.Fprintf(&b, "%02d %s %d\n", h, strings.Repeat("█", bar), c)
	}
	return b.String()
}
