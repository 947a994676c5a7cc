package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `json:"server" mapstructure:"server"`
	Spotify    SpotifyConfig    `json:"spotify" mapstructure:"spotify"`
	Sync       SyncConfig       `json:"sync" mapstructure:"sync"`
	Downloader DownloaderConfig `json:"downloader" mapstructure:"downloader"`
	Logging    LoggingConfig    `json:"logging" mapstructure:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port int `json:"port" mapstructure:"port"`
}

// SpotifyConfig contains Spotify API credentials
type SpotifyConfig struct {
	ClientID     string `json:"client_id" mapstructure:"client_id"`
	ClientSecret string `json:"client_secret" mapstructure:"client_secret"`
}

// SyncConfig contains playlist tracking and scheduling settings
type SyncConfig struct {
	// PlaylistURLs is a comma-separated list of playlist URLs tracked from boot
	PlaylistURLs string `json:"playlist_urls" mapstructure:"playlist_urls"`
	// MetadataRefreshMinutes is the metadata refresh interval; 0 disables
	MetadataRefreshMinutes int `json:"metadata_refresh_minutes" mapstructure:"metadata_refresh_minutes"`
	// DownloadScanSeconds is the download status scan interval; 0 disables
	DownloadScanSeconds int `json:"download_scan_seconds" mapstructure:"download_scan_seconds"`
	// ContentTTLHours is how long downloaded content is kept; 0 disables cleanup
	ContentTTLHours int    `json:"content_ttl_hours" mapstructure:"content_ttl_hours"`
	DownloadRoot    string `json:"download_root" mapstructure:"download_root"`
	DataDir         string `json:"data_dir" mapstructure:"data_dir"`
}

// DownloaderConfig describes the external downloader executable
type DownloaderConfig struct {
	Executable string `json:"executable" mapstructure:"executable"`
	// ExtraArgs are prepended to the playlist URL argument
	ExtraArgs []string `json:"extra_args" mapstructure:"extra_args"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `json:"level" mapstructure:"level"`
	Format     string `json:"format" mapstructure:"format"`
	Output     string `json:"output" mapstructure:"output"`
	FilePath   string `json:"file_path" mapstructure:"file_path"`
	MaxSizeMB  int    `json:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `json:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `json:"compress" mapstructure:"compress"`
}

// Load builds configuration from environment variables (prefixed SPOTIVAULT_),
// reading a .env file first if one is present.
func Load() (*Config, error) {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SPOTIVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Sync.DownloadRoot == "" {
		return fmt.Errorf("download root cannot be empty")
	}

	if c.Sync.MetadataRefreshMinutes < 0 {
		return fmt.Errorf("metadata refresh interval cannot be negative")
	}

	if c.Sync.DownloadScanSeconds < 0 {
		return fmt.Errorf("download scan interval cannot be negative")
	}

	if c.Sync.ContentTTLHours < 0 {
		return fmt.Errorf("content TTL cannot be negative")
	}

	if c.Downloader.Executable == "" {
		return fmt.Errorf("downloader executable cannot be empty")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Logging.Format)
	}

	validOutputs := map[string]bool{"file": true, "console": true, "both": true}
	if !validOutputs[c.Logging.Output] {
		return fmt.Errorf("invalid log output: %s (must be file, console, or both)", c.Logging.Output)
	}

	return nil
}

// Playlists returns the configured playlist URLs, trimmed and with empty
// entries dropped.
func (c *Config) Playlists() []string {
	if strings.TrimSpace(c.Sync.PlaylistURLs) == "" {
		return nil
	}
	parts := strings.Split(c.Sync.PlaylistURLs, ",")
	urls := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			urls = append(urls, trimmed)
		}
	}
	return urls
}

// MetadataRefreshInterval returns the refresh interval, or 0 when disabled
func (c *Config) MetadataRefreshInterval() time.Duration {
	return time.Duration(c.Sync.MetadataRefreshMinutes) * time.Minute
}

// DownloadScanInterval returns the scan interval, or 0 when disabled
func (c *Config) DownloadScanInterval() time.Duration {
	return time.Duration(c.Sync.DownloadScanSeconds) * time.Second
}

// ContentTTL returns the content time-to-live, or 0 when cleanup is disabled
func (c *Config) ContentTTL() time.Duration {
	return time.Duration(c.Sync.ContentTTLHours) * time.Hour
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	dataDir := defaultDataDir()

	v.SetDefault("server.port", 8080)

	v.SetDefault("spotify.client_id", "")
	v.SetDefault("spotify.client_secret", "")

	v.SetDefault("sync.playlist_urls", "")
	v.SetDefault("sync.metadata_refresh_minutes", 60)
	v.SetDefault("sync.download_scan_seconds", 120)
	v.SetDefault("sync.content_ttl_hours", 0)
	v.SetDefault("sync.download_root", filepath.Join(dataDir, "downloads"))
	v.SetDefault("sync.data_dir", dataDir)

	v.SetDefault("downloader.executable", "spotdl")
	v.SetDefault("downloader.extra_args", []string{})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "console")
	v.SetDefault("logging.file_path", filepath.Join(dataDir, "logs", "spotivault.log"))
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 14)
	v.SetDefault("logging.compress", true)
}

// defaultDataDir returns the application data directory
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".spotivault")
}
