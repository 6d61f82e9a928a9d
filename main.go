// Command nowplaying runs the now-playing bot.
// It:
//   - Loads configuration and initializes structured logging.
//   - Polls the now-playing source and keeps one Telegram channel message in sync.
//   - Serves bot commands (/start, /stop, /status, /history, /top, /chart).
//   - Optionally answers !song in Twitch chat.
//   - Exposes /healthz, /readyz, /status, /metrics and admin start/stop over HTTP.
//
// Shutdown is graceful on SIGINT/SIGTERM; the tracked message is retracted on the way out.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/nowplaying/chat"
	"github.com/onnwee/nowplaying/commands"
	"github.com/onnwee/nowplaying/config"
	"github.com/onnwee/nowplaying/history"
	"github.com/onnwee/nowplaying/lyrics"
	"github.com/onnwee/nowplaying/publisher"
	"github.com/onnwee/nowplaying/server"
	"github.com/onnwee/nowplaying/telemetry"
	"github.com/onnwee/nowplaying/tracker"
	"github.com/onnwee/nowplaying/tracksource"
)

var version = "dev"

// pollTimeout bounds one getUpdates long poll; it must exceed the 50s server-side wait.
const pollTimeout = 65 * time.Second

var rootCmd = &cobra.Command{
	Use:           "nowplaying",
	Short:         "Mirror the current track into a Telegram channel message",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          func(cmd *cobra.Command, args []string) error { return runServe(cmd.Context()) },
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tracker, bot commands and HTTP server (default)",
	RunE:  func(cmd *cobra.Command, args []string) error { return runServe(cmd.Context()) },
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addReportCommands(rootCmd)
}

func main() {
	logger, closer := telemetry.NewLogger(telemetry.LogSettingsFromEnv(), os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	_ = closer.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	chatID, channelUsername, _ := cfg.ChannelTarget()

	telemetry.Init()
	shutdownTracing, err := telemetry.InitTracing(telemetry.TracingOptionsFromEnv("nowplaying", version, cfg.ChannelID))
	if err != nil {
		return fmt.Errorf("tracing initialization failed: %w", err)
	}
	defer shutdownTracing()

	// Channel writes and the getUpdates long poll use separate clients with their own timeouts.
	pubBot, err := tgbotapi.NewBotAPIWithClient(cfg.TelegramBotToken, tgbotapi.APIEndpoint, &http.Client{Timeout: cfg.PublishTimeout})
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	cmdBot, err := tgbotapi.NewBotAPIWithClient(cfg.TelegramBotToken, tgbotapi.APIEndpoint, &http.Client{Timeout: pollTimeout})
	if err != nil {
		return fmt.Errorf("telegram command bot init: %w", err)
	}
	slog.Info("telegram bot authorized", slog.String("username", pubBot.Self.UserName))

	var finder lyrics.Finder
	if cfg.GeniusToken != "" {
		finder = &lyrics.GeniusClient{Token: cfg.GeniusToken, HTTPClient: &http.Client{Timeout: cfg.LyricsTimeout}}
	}
	resolver, err := lyrics.NewResolver(finder, 512, cfg.LyricsTimeout)
	if err != nil {
		return fmt.Errorf("lyrics cache: %w", err)
	}

	src := tracksource.New(cfg, resolver)
	hist := history.NewFileLog(cfg.HistoryFile)
	pub := publisher.New(pubBot, publisher.Options{
		ChatID:          chatID,
		ChannelUsername: channelUsername,
		RatePerMin:      cfg.PublishRatePerMin,
		Timeout:         cfg.PublishTimeout,
	})
	loop := tracker.New(src, pub, hist, cfg.PollInterval)
	cmds := commands.NewHandler(loop, hist, cfg.AdminUserIDs)

	slog.Info("nowplaying starting",
		slog.String("version", version),
		slog.String("channel", cfg.ChannelID),
		slog.Duration("poll_interval", cfg.PollInterval),
		slog.String("history_file", hist.Path()),
		slog.Bool("auto_start", cfg.AutoStart))

	if cfg.AutoStart {
		switch ack := loop.Start(ctx); {
		case ack.Changed && ack.Err != nil:
			slog.Warn("tracker started but the first channel update failed", slog.Any("err", ack.Err))
		case ack.Err != nil:
			slog.Error("auto start failed", slog.String("reason", ack.Reason), slog.Any("err", ack.Err))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx, server.NewMux(loop, cfg), cfg.HTTPAddr)
	})
	g.Go(func() error { return cmds.Serve(gctx, cmdBot) })
	g.Go(func() error {
		chat.StartSongResponder(gctx, cfg, loop)
		return nil
	})

	err = g.Wait()
	slog.Info("shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*cfg.PublishTimeout)
	defer cancel()
	if ack := loop.Stop(stopCtx); ack.Changed {
		slog.Info("tracker stopped")
	}
	return err
}
