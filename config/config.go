// Package config loads environment variables and provides a typed Config used across the service.
// Values come from (lowest to highest precedence) built-in defaults, an optional YAML file
// (CONFIG_FILE), a local .env file, and the real process environment.
// Required credentials are checked by Validate; a missing one is a startup failure.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Pause detection strategies for the track source.
const (
	PauseDetectFlag   = "flag"
	PauseDetectAbsent = "absent"
	PauseDetectBoth   = "both"
)

const (
	DefaultSourceURL        = "https://api_1.mipoh.ru/get_current_track_beta"
	DefaultSourceAuthHeader = "ya-token"
	DefaultHistoryFile      = "history.txt"
)

type Config struct {
	// Telegram
	TelegramBotToken string  `yaml:"telegram_bot_token"`
	ChannelID        string  `yaml:"channel_id"`
	AdminUserIDs     []int64 `yaml:"admin_user_ids"`

	// Now-playing source
	YandexToken      string        `yaml:"yandex_token"`
	SourceURL        string        `yaml:"source_url"`
	SourceAuthHeader string        `yaml:"source_auth_header"`
	SourceTimeout    time.Duration `yaml:"source_timeout"`
	SourceInsecure   bool          `yaml:"source_insecure_tls"`
	PauseDetection   string        `yaml:"pause_detection"`

	// Tracker / publisher
	PollInterval      time.Duration `yaml:"poll_interval"`
	PublishTimeout    time.Duration `yaml:"publish_timeout"`
	PublishRatePerMin int           `yaml:"publish_rate_per_min"`
	ShowArtwork       bool          `yaml:"show_artwork"`
	ShowLyricsLink    bool          `yaml:"show_lyrics_link"`
	AutoStart         bool          `yaml:"auto_start"`

	// Lyrics
	GeniusToken   string        `yaml:"genius_token"`
	LyricsTimeout time.Duration `yaml:"lyrics_timeout"`

	// History
	HistoryFile string `yaml:"history_file"`

	// HTTP
	HTTPAddr      string `yaml:"http_addr"`
	AdminToken    string `yaml:"admin_token"`
	AdminUsername string `yaml:"admin_username"`
	AdminPassword string `yaml:"admin_password"`

	// Twitch chat (!song responder, optional)
	TwitchChannel     string `yaml:"twitch_channel"`
	TwitchBotUsername string `yaml:"twitch_bot_username"`
	TwitchOAuthToken  string `yaml:"twitch_oauth_token"`
}

// ConfigError reports required settings that are absent or malformed.
type ConfigError struct {
	Missing []string
	Invalid []string
}

func (e *ConfigError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required env: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid env: "+strings.Join(e.Invalid, ", "))
	}
	return "config: " + strings.Join(parts, "; ")
}

func defaults() *Config {
	return &Config{
		SourceURL:         DefaultSourceURL,
		SourceAuthHeader:  DefaultSourceAuthHeader,
		SourceTimeout:     10 * time.Second,
		SourceInsecure:    true,
		PauseDetection:    PauseDetectBoth,
		PollInterval:      10 * time.Second,
		PublishTimeout:    10 * time.Second,
		PublishRatePerMin: 20,
		ShowArtwork:       true,
		ShowLyricsLink:    true,
		LyricsTimeout:     5 * time.Second,
		HistoryFile:       DefaultHistoryFile,
		HTTPAddr:          ":8080",
	}
}

// Load reads CONFIG_FILE (if set), .env (if present) and the environment.
// It doesn't fail when required credentials are missing; call Validate for that.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv("CONFIG_FILE"))
}

// LoadFrom is Load with an explicit YAML file path ("" to skip the file).
func LoadFrom(path string) (*Config, error) {
	// Local dev convenience only; real env always wins.
	_ = godotenv.Load()

	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	var errs []error
	envString(&cfg.TelegramBotToken, "TELEGRAM_BOT_TOKEN")
	envString(&cfg.ChannelID, "CHANNEL_ID")
	envString(&cfg.YandexToken, "YANDEX_TOKEN")
	envString(&cfg.SourceURL, "SOURCE_URL")
	envString(&cfg.SourceAuthHeader, "SOURCE_AUTH_HEADER")
	envString(&cfg.PauseDetection, "PAUSE_DETECTION")
	envString(&cfg.GeniusToken, "GENIUS_TOKEN")
	envString(&cfg.HistoryFile, "HISTORY_FILE")
	envString(&cfg.HTTPAddr, "HTTP_ADDR")
	envString(&cfg.AdminToken, "ADMIN_TOKEN")
	envString(&cfg.AdminUsername, "ADMIN_USERNAME")
	envString(&cfg.AdminPassword, "ADMIN_PASSWORD")
	envString(&cfg.TwitchChannel, "TWITCH_CHANNEL")
	envString(&cfg.TwitchBotUsername, "TWITCH_BOT_USERNAME")
	envString(&cfg.TwitchOAuthToken, "TWITCH_OAUTH_TOKEN")

	errs = append(errs,
		envDuration(&cfg.SourceTimeout, "SOURCE_TIMEOUT"),
		envDuration(&cfg.PollInterval, "POLL_INTERVAL"),
		envDuration(&cfg.PublishTimeout, "PUBLISH_TIMEOUT"),
		envDuration(&cfg.LyricsTimeout, "LYRICS_TIMEOUT"),
		envInt(&cfg.PublishRatePerMin, "PUBLISH_RATE_PER_MIN"),
		envBool(&cfg.SourceInsecure, "SOURCE_INSECURE_TLS"),
		envBool(&cfg.ShowArtwork, "SHOW_ARTWORK"),
		envBool(&cfg.ShowLyricsLink, "SHOW_LYRICS_LINK"),
		envBool(&cfg.AutoStart, "AUTO_START"),
	)

	if v, ok := os.LookupEnv("ADMIN_USER_IDS"); ok {
		ids, err := parseIDList(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid ADMIN_USER_IDS: %w", err))
		} else {
			cfg.AdminUserIDs = ids
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the service cannot run without.
func (c *Config) Validate() error {
	ce := &ConfigError{}
	if c.TelegramBotToken == "" {
		ce.Missing = append(ce.Missing, "TELEGRAM_BOT_TOKEN")
	}
	if c.YandexToken == "" {
		ce.Missing = append(ce.Missing, "YANDEX_TOKEN")
	}
	if c.ChannelID == "" {
		ce.Missing = append(ce.Missing, "CHANNEL_ID")
	} else if _, _, err := c.ChannelTarget(); err != nil {
		ce.Invalid = append(ce.Invalid, "CHANNEL_ID")
	}
	switch c.PauseDetection {
	case PauseDetectFlag, PauseDetectAbsent, PauseDetectBoth:
	default:
		ce.Invalid = append(ce.Invalid, "PAUSE_DETECTION")
	}
	if c.PollInterval <= 0 {
		ce.Invalid = append(ce.Invalid, "POLL_INTERVAL")
	}
	if len(ce.Missing) > 0 || len(ce.Invalid) > 0 {
		return ce
	}
	return nil
}

// ChannelTarget resolves CHANNEL_ID into either a numeric chat id or an @username.
func (c *Config) ChannelTarget() (chatID int64, username string, err error) {
	id := strings.TrimSpace(c.ChannelID)
	if strings.HasPrefix(id, "@") {
		if len(id) < 2 {
			return 0, "", fmt.Errorf("channel username empty")
		}
		return 0, id, nil
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("channel id %q: %w", id, err)
	}
	return n, "", nil
}

// TwitchChatReady reports whether the optional Twitch !song responder can run.
func (c *Config) TwitchChatReady() bool {
	return c.TwitchChannel != "" && c.TwitchBotUsername != "" && c.TwitchOAuthToken != ""
}

func envString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fmt.Errorf("invalid %s %q (want a positive duration like 10s)", key, v)
	}
	*dst = d
	return nil
}

func envInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fmt.Errorf("invalid %s %q (want a positive integer)", key, v)
	}
	*dst = n
	return nil
}

func envBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q (want 1/0/true/false)", key, v)
	}
	*dst = b
	return nil
}

func parseIDList(v string) ([]int64, error) {
	var out []int64
	for _, f := range strings.Split(v, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
