// Package config loads the bot configuration from the environment, reading a
// .env file first when there is one.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

type Config struct {
	DiscordToken      string `env:"DISCORD_TOKEN,required"`
	InitSlashCommands bool   `env:"DISCORD_INIT_SLASH_COMMANDS" envDefault:"true"`
	CommandCachePath  string `env:"DISCORD_COMMAND_CACHE" envDefault:"data/commands"`

	JellyfinURL         string        `env:"JELLYFIN_URL,required"`
	JellyfinToken       string        `env:"JELLYFIN_TOKEN,required"`
	JellyfinUserID      string        `env:"JELLYFIN_USER_ID,required"`
	JellyfinDeviceID    string        `env:"JELLYFIN_DEVICE_ID"`
	JellyfinClientName  string        `env:"JELLYFIN_CLIENT_NAME" envDefault:"jellycord"`
	JellyfinMaxBitrate  int           `env:"JELLYFIN_MAX_BITRATE" envDefault:"320000"`
	JellyfinRequestRate float64       `env:"JELLYFIN_REQUEST_RATE" envDefault:"10"`
	JellyfinCacheTTL    time.Duration `env:"JELLYFIN_CACHE_TTL" envDefault:"5m"`

	FFmpegPath  string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	StoragePath string `env:"STORAGE_PATH" envDefault:"datastore.json"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"text"`
	StatusAddr  string `env:"STATUS_ADDR" envDefault:":8080"`

	PlaylistViewTimeout    time.Duration `env:"PLAYLIST_VIEW_TIMEOUT" envDefault:"60s"`
	PlaylistViewRefresh    time.Duration `env:"PLAYLIST_VIEW_REFRESH" envDefault:"5s"`
	PlaylistPageSize       int           `env:"PLAYLIST_PAGE_SIZE" envDefault:"10"`
	ProgressReportInterval time.Duration `env:"PROGRESS_REPORT_INTERVAL" envDefault:"10s"`
}

// Load reads .env (if present) and parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return Parse(env.Options{})
}

// Parse decodes the configuration with opts and validates it.
func Parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.JellyfinDeviceID == "" {
		cfg.JellyfinDeviceID = uuid.NewString()
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.JellyfinURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("JELLYFIN_URL %q is not an http(s) URL", c.JellyfinURL)
	}
	if c.JellyfinRequestRate <= 0 {
		return errors.New("JELLYFIN_REQUEST_RATE must be positive")
	}
	if c.PlaylistPageSize < 1 || c.PlaylistPageSize > 25 {
		return errors.New("PLAYLIST_PAGE_SIZE must be between 1 and 25")
	}
	if c.PlaylistViewRefresh <= 0 || c.PlaylistViewTimeout < c.PlaylistViewRefresh {
		return errors.New("PLAYLIST_VIEW_TIMEOUT must be at least PLAYLIST_VIEW_REFRESH")
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT %q must be text or json", c.LogFormat)
	}
	return nil
}

// Redacted returns name/value pairs with secrets masked, in a stable order.
func (c *Config) Redacted() [][2]string {
	return [][2]string{
		{"DISCORD_TOKEN", mask(c.DiscordToken)},
		{"DISCORD_INIT_SLASH_COMMANDS", fmt.Sprint(c.InitSlashCommands)},
		{"DISCORD_COMMAND_CACHE", c.CommandCachePath},
		{"JELLYFIN_URL", c.JellyfinURL},
		{"JELLYFIN_TOKEN", mask(c.JellyfinToken)},
		{"JELLYFIN_USER_ID", c.JellyfinUserID},
		{"JELLYFIN_DEVICE_ID", c.JellyfinDeviceID},
		{"JELLYFIN_CLIENT_NAME", c.JellyfinClientName},
		{"JELLYFIN_MAX_BITRATE", fmt.Sprint(c.JellyfinMaxBitrate)},
		{"JELLYFIN_REQUEST_RATE", fmt.Sprint(c.JellyfinRequestRate)},
		{"JELLYFIN_CACHE_TTL", c.JellyfinCacheTTL.String()},
		{"FFMPEG_PATH", c.FFmpegPath},
		{"STORAGE_PATH", c.StoragePath},
		{"LOG_LEVEL", c.LogLevel},
		{"LOG_FORMAT", c.LogFormat},
		{"STATUS_ADDR", c.StatusAddr},
		{"PLAYLIST_VIEW_TIMEOUT", c.PlaylistViewTimeout.String()},
		{"PLAYLIST_VIEW_REFRESH", c.PlaylistViewRefresh.String()},
		{"PLAYLIST_PAGE_SIZE", fmt.Sprint(c.PlaylistPageSize)},
		{"PROGRESS_REPORT_INTERVAL", c.ProgressReportInterval.String()},
	}
}

func mask(secret string) string {
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:2] + strings.Repeat("*", len(secret)-4) + secret[len(secret)-2:]
}
