// Package commands serves the Telegram bot commands that control the tracker and report
// on listening history.
package commands

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/onnwee/nowplaying/history"
	"github.com/onnwee/nowplaying/telemetry"
	"github.com/onnwee/nowplaying/tracker"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 50
	defaultTopLimit     = 5
	maxTopLimit         = 25
	chartWidth          = 20
)

// Controller is the tracker's start/stop contract plus its snapshot.
type Controller interface {
	Start(ctx context.Context) tracker.Ack
	Stop(ctx context.Context) tracker.Ack
	Status() tracker.Status
}

// HistoryReader reads back the history log.
type HistoryReader interface {
	Read(limit int) ([]history.Record, error)
}

// Bot is the subset of *tgbotapi.BotAPI used to receive commands and reply.
type Bot interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Reply is the text answer to one command.
type Reply struct {
	Text      string
	ParseMode string
}

// Handler dispatches commands.
type Handler struct {
	ctl    Controller
	hist   HistoryReader
	admins map[int64]bool
	loc    *time.Location
	now    func() time.Time
}

// NewHandler builds a Handler. With no admin ids every user may start and stop the tracker.
func NewHandler(ctl Controller, hist HistoryReader, adminIDs []int64) *Handler {
	admins := make(map[int64]bool, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = true
	}
	return &Handler{ctl: ctl, hist: hist, admins: admins, loc: time.Local, now: time.Now}
}

func (h *Handler) allowed(userID int64) bool {
	return len(h.admins) == 0 || h.admins[userID]
}

// Handle answers one command. userID is 0 when the sender is unknown.
func (h *Handler) Handle(ctx context.Context, command, args string, userID int64) Reply {
	command = strings.ToLower(command)
	if known[command] {
		telemetry.CountCommand(command)
	} else {
		telemetry.CountCommand("unknown")
	}
	switch command {
	case "start":
		if !h.allowed(userID) {
			return Reply{Text: "⛔ Only the channel admins can start the tracker."}
		}
		return ackReply(h.ctl.Start(ctx), "▶️ Tracker started.")
	case "stop":
		if !h.allowed(userID) {
			return Reply{Text: "⛔ Only the channel admins can stop the tracker."}
		}
		return ackReply(h.ctl.Stop(ctx), "⏹ Tracker stopped.")
	case "status":
		return Reply{Text: FormatStatus(h.ctl.Status())}
	case "history":
		return h.history(parseLimit(args, defaultHistoryLimit, maxHistoryLimit))
	case "top":
		return h.top(parseLimit(args, defaultTopLimit, maxTopLimit))
	case "chart":
		return h.chart()
	case "help":
		return Reply{Text: helpText}
	default:
		return Reply{Text: "Unknown command. " + helpText}
	}
}

var known = map[string]bool{"start": true, "stop": true, "status": true, "history": true, "top": true, "chart": true, "help": true}

const helpText = "Commands: /start, /stop, /status, /history [n], /top [n], /chart"

func ackReply(ack tracker.Ack, changed string) Reply {
	switch {
	case ack.Changed && ack.Err != nil:
		return Reply{Text: fmt.Sprintf("%s\n⚠️ The channel message could not be updated yet: %v. Retrying every tick.", changed, ack.Err)}
	case ack.Err != nil:
		return Reply{Text: fmt.Sprintf("⚠️ %s: %v", ack.Reason, ack.Err)}
	case ack.Changed:
		return Reply{Text: changed}
	default:
		return Reply{Text: "ℹ️ Tracker " + ack.Reason + "."}
	}
}

// FormatStatus renders a tracker snapshot for chat.
func FormatStatus(st tracker.Status) string {
	if !st.Running {
		return "Tracker is stopped."
	}
	var b strings.Builder
	b.WriteString("Tracker is running.\n")
	switch {
	case st.Playing():
		fmt.Fprintf(&b, "Now playing: %s — %s\n", st.Title, st.Artists)
	case st.State == tracker.ObservedPaused.String():
		b.WriteString("Playback is paused.\n")
	default:
		b.WriteString("Waiting for the first sample.\n")
	}
	if st.MessageID != 0 {
		fmt.Fprintf(&b, "Channel message: #%d\n", st.MessageID)
	}
	if st.LastError != "" {
		fmt.Fprintf(&b, "Last error: %s\n", st.LastError)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (h *Handler) history(limit int) Reply {
	recs, err := h.read(limit)
	if err != nil {
		return Reply{Text: "⚠️ Could not read history."}
	}
	if len(recs) == 0 {
		return Reply{Text: "History is empty."}
	}
	now := h.now()
	var b strings.Builder
	for i := len(recs) - 1; i >= 0; i-- {
		r := recs[i]
		fmt.Fprintf(&b, "• %s — %s (%s)\n", r.Title, r.Artists, humanize.RelTime(r.Time, now, "ago", "from now"))
	}
	return Reply{Text: strings.TrimRight(b.String(), "\n")}
}

func (h *Handler) top(n int) Reply {
	recs, err := h.read(0)
	if err != nil {
		return Reply{Text: "⚠️ Could not read history."}
	}
	top := history.TopArtists(recs, n)
	if len(top) == 0 {
		return Reply{Text: "History is empty."}
	}
	var b strings.Builder
	for i, a := range top {
		fmt.Fprintf(&b, "%d. %s — %s\n", i+1, a.Artist, playsLabel(a.Plays))
	}
	return Reply{Text: strings.TrimRight(b.String(), "\n")}
}

func playsLabel(n int) string {
	if n == 1 {
		return "1 play"
	}
	return humanize.Comma(int64(n)) + " plays"
}

func (h *Handler) chart() Reply {
	recs, err := h.read(0)
	if err != nil {
		return Reply{Text: "⚠️ Could not read history."}
	}
	if len(recs) == 0 {
		return Reply{Text: "History is empty."}
	}
	chart := history.RenderChart(history.HourlyActivity(recs, h.loc), chartWidth)
	return Reply{Text: "<pre>" + html.EscapeString(chart) + "</pre>", ParseMode: tgbotapi.ModeHTML}
}

func (h *Handler) read(limit int) ([]history.Record, error) {
	if h.hist == nil {
		return nil, nil
	}
	recs, err := h.hist.Read(limit)
	if err != nil {
		slog.Warn("history read failed", slog.String("component", "commands"), slog.Any("err", err))
	}
	return recs, err
}

func parseLimit(args string, def, hi int) int {
	n, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil || n <= 0 {
		return def
	}
	if n > hi {
		return hi
	}
	return n
}

// Serve answers commands from bot updates until ctx is done.
func (h *Handler) Serve(ctx context.Context, bot Bot) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 50
	updates := bot.GetUpdatesChan(u)
	defer bot.StopReceivingUpdates()
	slog.Info("bot command listener started", slog.String("component", "commands"))

	for {
		select {
		case <-ctx.Done():
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			msg := upd.Message
			if msg == nil || !msg.IsCommand() {
				continue
			}
			var userID int64
			if msg.From != nil {
				userID = msg.From.ID
			}
			reply := h.Handle(ctx, msg.Command(), msg.CommandArguments(), userID)
			out := tgbotapi.NewMessage(msg.Chat.ID, reply.Text)
			out.ParseMode = reply.ParseMode
			out.ReplyToMessageID = msg.MessageID
			if _, err := bot.Send(out); err != nil {
				slog.Warn("command reply failed", slog.String("component", "commands"), slog.String("command", msg.Command()), slog.Any("err", err))
			}
		}
	}
}
