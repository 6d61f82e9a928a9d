// Package publisher owns the Telegram mutations of the single tracked channel message.
// Every operation makes exactly one Bot API call, gated by a shared rate limiter.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/onnwee/nowplaying/telemetry"
	"github.com/onnwee/nowplaying/tracksource"
)

// Operation names used in errors, spans and metrics.
const (
	OpPublish    = "publish"
	OpUpdate     = "update"
	OpMarkPaused = "mark_paused"
	OpRetract    = "retract"
)

// DefaultTimeout bounds the limiter wait of a single call. The HTTP round trip itself is
// bounded by the bot's http.Client.
const DefaultTimeout = 10 * time.Second

// BotAPI is the subset of *tgbotapi.BotAPI used here.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Handle identifies a published message.
type Handle struct {
	ChatID    int64
	MessageID int
	HasMedia  bool
}

// Options configures a Publisher. Exactly one of ChatID or ChannelUsername addresses the
// channel for new messages.
type Options struct {
	ChatID          int64
	ChannelUsername string
	RatePerMin      int
	Burst           int
	Timeout         time.Duration
}

// Publisher implements the channel side of the tracker.
type Publisher struct {
	bot             BotAPI
	chatID          int64
	channelUsername string
	limiter         *rate.Limiter
	timeout         time.Duration
}

// New wraps bot. RatePerMin <= 0 disables throttling.
func New(bot BotAPI, opts Options) *Publisher {
	limit := rate.Inf
	if opts.RatePerMin > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.RatePerMin))
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 3
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Publisher{
		bot:             bot,
		chatID:          opts.ChatID,
		channelUsername: opts.ChannelUsername,
		limiter:         rate.NewLimiter(limit, burst),
		timeout:         timeout,
	}
}

// Publish creates a new message for s. A non-playing sample produces the paused placeholder.
func (p *Publisher) Publish(ctx context.Context, s tracksource.Sample) (Handle, error) {
	var (
		c        tgbotapi.Chattable
		hasMedia bool
	)
	switch {
	case s.IsPlaying() && s.ArtworkURL != "":
		photo := tgbotapi.NewPhoto(p.chatID, tgbotapi.FileURL(s.ArtworkURL))
		photo.ChannelUsername = p.channelUsername
		photo.Caption = Caption(s)
		if kb := Keyboard(s.Links); kb != nil {
			photo.ReplyMarkup = *kb
		}
		c, hasMedia = photo, true
	case s.IsPlaying():
		msg := p.newMessage(Caption(s))
		text, mode, noPreview := textBody(s)
		msg.Text, msg.ParseMode, msg.DisableWebPagePreview = text, mode, noPreview
		if kb := Keyboard(s.Links); kb != nil {
			msg.ReplyMarkup = *kb
		}
		c = msg
	default:
		c = p.newMessage(PausedText)
	}

	var sent tgbotapi.Message
	err := p.do(ctx, OpPublish, 0, func() error {
		var err error
		sent, err = p.bot.Send(c)
		return err
	})
	if err != nil {
		return Handle{}, err
	}
	h := Handle{ChatID: p.chatID, MessageID: sent.MessageID, HasMedia: hasMedia}
	if sent.Chat != nil && sent.Chat.ID != 0 {
		h.ChatID = sent.Chat.ID
	}
	return h, nil
}

// Update edits the message behind h in place to show s. A media message and a sample
// without artwork yield ErrNeedsRepublish without any outbound call.
func (p *Publisher) Update(ctx context.Context, h Handle, s tracksource.Sample) error {
	if h.HasMedia && s.ArtworkURL == "" {
		return ErrNeedsRepublish
	}
	kb := Keyboard(s.Links)
	var c tgbotapi.Chattable
	switch {
	case h.HasMedia && s.ArtworkURL != "":
		media := tgbotapi.NewInputMediaPhoto(tgbotapi.FileURL(s.ArtworkURL))
		media.Caption = Caption(s)
		c = tgbotapi.EditMessageMediaConfig{
			BaseEdit: tgbotapi.BaseEdit{ChatID: h.ChatID, MessageID: h.MessageID, ReplyMarkup: kb},
			Media:    media,
		}
	default:
		edit := tgbotapi.NewEditMessageText(h.ChatID, h.MessageID, "")
		edit.Text, edit.ParseMode, edit.DisableWebPagePreview = textBody(s)
		edit.ReplyMarkup = kb
		c = edit
	}
	return p.request(ctx, OpUpdate, h, c)
}

// MarkPaused switches the message to the paused indicator, keeping lastArtwork on media
// messages when known.
func (p *Publisher) MarkPaused(ctx context.Context, h Handle, lastArtwork string) error {
	var c tgbotapi.Chattable
	switch {
	case h.HasMedia && lastArtwork != "":
		media := tgbotapi.NewInputMediaPhoto(tgbotapi.FileURL(lastArtwork))
		media.Caption = PausedText
		c = tgbotapi.EditMessageMediaConfig{
			BaseEdit: tgbotapi.BaseEdit{ChatID: h.ChatID, MessageID: h.MessageID},
			Media:    media,
		}
	case h.HasMedia:
		c = tgbotapi.NewEditMessageCaption(h.ChatID, h.MessageID, PausedText)
	default:
		c = tgbotapi.NewEditMessageText(h.ChatID, h.MessageID, PausedText)
	}
	return p.request(ctx, OpMarkPaused, h, c)
}

// Retract deletes the message behind h. Failures are logged and swallowed.
func (p *Publisher) Retract(ctx context.Context, h Handle) {
	err := p.request(ctx, OpRetract, h, tgbotapi.NewDeleteMessage(h.ChatID, h.MessageID))
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Info("retract failed; message may already be gone",
			slog.String("component", "publisher"), slog.Int("message_id", h.MessageID), slog.Any("err", err))
	}
}

func (p *Publisher) newMessage(text string) tgbotapi.MessageConfig {
	if p.channelUsername != "" {
		return tgbotapi.NewMessageToChannel(p.channelUsername, text)
	}
	return tgbotapi.NewMessage(p.chatID, text)
}

func (p *Publisher) request(ctx context.Context, op string, h Handle, c tgbotapi.Chattable) error {
	return p.do(ctx, op, h.MessageID, func() error {
		_, err := p.bot.Request(c)
		return err
	})
}

// do waits for the limiter, performs call and classifies its error.
func (p *Publisher) do(ctx context.Context, op string, messageID int, call func() error) error {
	ctx, span := telemetry.StartSpan(ctx, "publisher", "publisher."+op, telemetry.MessageIDAttr(messageID))
	wctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var err error
	if werr := p.limiter.Wait(wctx); werr != nil {
		err = &ChannelError{Op: op, Err: werr}
	} else {
		err = classify(op, call())
	}
	if errors.Is(err, ErrStaleHandle) {
		telemetry.CountStaleHandle()
	}
	telemetry.CountPublisherCall(op, err)
	telemetry.EndSpan(span, err)
	return err
}
