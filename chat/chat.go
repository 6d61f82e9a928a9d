package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/nowplaying/config"
	"github.com/onnwee/nowplaying/telemetry"
	"github.com/onnwee/nowplaying/tracker"
)

const defaultCooldown = 10 * time.Second

var songCommands = map[string]bool{"!song": true, "!np": true, "!track": true}

// StatusProvider exposes the tracker snapshot.
type StatusProvider interface {
	Status() tracker.Status
}

// Reply builds the answer to a chat line, or reports false when the line is not a song command.
func Reply(text, user string, st tracker.Status) (string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !songCommands[strings.ToLower(fields[0])] {
		return "", false
	}
	prefix := ""
	if user != "" {
		prefix = "@" + user + " "
	}
	switch {
	case !st.Running:
		return prefix + "now-playing tracker is off", true
	case st.Playing():
		return fmt.Sprintf("%s🎶 %s — %s %s", prefix, st.Title, st.Artists, st.TrackURL), true
	case st.State == tracker.ObservedPaused.String():
		return prefix + "⏸ music is paused", true
	default:
		return prefix + "nothing is playing right now", true
	}
}

// cooldown allows one reply per window.
type cooldown struct {
	mu     sync.Mutex
	window time.Duration
	last   time.Time
	now    func() time.Time
}

func (c *cooldown) allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now()
	if !c.last.IsZero() && t.Sub(c.last) < c.window {
		return false
	}
	c.last = t
	return true
}

// StartSongResponder blocks until ctx is done, answering song commands in the configured
// channel. It returns immediately when Twitch chat is not configured.
func StartSongResponder(ctx context.Context, cfg *config.Config, sp StatusProvider) {
	if !cfg.TwitchChatReady() {
		slog.Info("twitch chat not configured; skipping !song responder")
		return
	}
	channel := strings.TrimPrefix(strings.ToLower(cfg.TwitchChannel), "#")
	token := cfg.TwitchOAuthToken
	if !strings.HasPrefix(token, "oauth:") {
		token = "oauth:" + token
	}
	client := twitch.NewClient(cfg.TwitchBotUsername, token)
	cd := &cooldown{window: defaultCooldown, now: time.Now}

	client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		reply, ok := Reply(msg.Message, msg.User.DisplayName, sp.Status())
		if !ok {
			return
		}
		telemetry.CountCommand("twitch_song")
		if !cd.allow() {
			slog.Debug("song reply suppressed by cooldown", slog.String("user", msg.User.Name))
			return
		}
		client.Say(channel, reply)
	})
	client.OnConnect(func() {
		slog.Info("twitch chat connected", slog.String("channel", channel))
	})

	// Handle context cancellation by closing the client
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		if err := client.Disconnect(); err != nil {
			slog.Debug("twitch disconnect", slog.Any("err", err))
		}
		close(done)
	}()

	client.Join(channel)
	if err := client.Connect(); err != nil && ctx.Err() == nil {
		slog.Error("twitch chat connect error", slog.Any("err", err))
	}
	<-done
}
