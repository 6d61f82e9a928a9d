package chat

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/nowplaying/config"
	"github.com/onnwee/nowplaying/tracker"
)

func TestReply(t *testing.T) {
	playing := tracker.Status{Running: true, State: "playing", TrackID: "42", Title: "Song", Artists: "A, B", TrackURL: "https://music.yandex.ru/track/42"}
	tests := []struct {
		name   string
		text   string
		user   string
		st     tracker.Status
		wantOK bool
		want   string
	}{
		{"not a command", "hello chat", "u", playing, false, ""},
		{"empty", "   ", "u", playing, false, ""},
		{"playing", "!song", "viewer", playing, true, "@viewer 🎶 Song — A, B https://music.yandex.ru/track/42"},
		{"alias case-insensitive", "!NP please", "", playing, true, "🎶 Song — A, B https://music.yandex.ru/track/42"},
		{"paused", "!track", "v", tracker.Status{Running: true, State: "paused"}, true, "@v ⏸ music is paused"},
		{"idle", "!song", "v", tracker.Status{Running: true, State: "none"}, true, "@v nothing is playing right now"},
		{"stopped", "!song", "v", tracker.Status{State: "stopped"}, true, "@v now-playing tracker is off"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Reply(tt.text, tt.user, tt.st)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("Reply() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCooldown(t *testing.T) {
	now := time.Unix(1000, 0)
	cd := &cooldown{window: 10 * time.Second, now: func() time.Time { return now }}
	if !cd.allow() {
		t.Fatal("first reply should be allowed")
	}
	now = now.Add(5 * time.Second)
	if cd.allow() {
		t.Error("reply inside window should be suppressed")
	}
	now = now.Add(6 * time.Second)
	if !cd.allow() {
		t.Error("reply after window should be allowed")
	}
}

type staticStatus struct{ st tracker.Status }

func (s staticStatus) Status() tracker.Status { return s.st }

func TestStartSongResponder_NotConfigured(t *testing.T) {
	done := make(chan struct{})
	go func() {
		StartSongResponder(context.Background(), &config.Config{}, staticStatus{})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("responder should return immediately without credentials")
	}
}

func TestSongCommandsLowercase(t *testing.T) {
	for c := range songCommands {
		if c != strings.ToLower(c) || !strings.HasPrefix(c, "!") {
			t.Errorf("command %q must be lowercase and start with !", c)
		}
	}
}
