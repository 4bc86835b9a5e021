package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	defaultAPIBaseURL  = "https://api.easel.art/api"
	defaultPageSize    = 20
	defaultColumns     = 2
	defaultColumnWidth = 160
	defaultLikedFeed   = "artworks"
	defaultLogLevel    = "info"
	defaultRateLimit   = 10
)

// Config holds runtime settings for the CLI app.
type Config struct {
	APIBaseURL  string
	Token       string
	PageSize    int
	Columns     int
	ColumnWidth float64
	LikedFeed   string
	LogPath     string
	LogLevel    string
	MetricsAddr string
	RateLimit   float64
}

// LoadDotEnv loads variables from a .env file without overriding ones that
// are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		APIBaseURL:  os.Getenv("EASEL_API_BASE_URL"),
		Token:       strings.TrimSpace(os.Getenv("EASEL_TOKEN")),
		LikedFeed:   os.Getenv("EASEL_LIKED_FEED"),
		LogPath:     os.Getenv("EASEL_LOG_PATH"),
		LogLevel:    os.Getenv("EASEL_LOG_LEVEL"),
		MetricsAddr: os.Getenv("EASEL_METRICS_ADDR"),
	}

	var err error
	if cfg.PageSize, err = intFromEnv("EASEL_PAGE_SIZE", defaultPageSize); err != nil {
		return Config{}, err
	}
	if cfg.Columns, err = intFromEnv("EASEL_COLUMNS", defaultColumns); err != nil {
		return Config{}, err
	}
	if cfg.ColumnWidth, err = floatFromEnv("EASEL_COLUMN_WIDTH", defaultColumnWidth); err != nil {
		return Config{}, err
	}
	if cfg.RateLimit, err = floatFromEnv("EASEL_RATE_LIMIT", defaultRateLimit); err != nil {
		return Config{}, err
	}

	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	if cfg.LikedFeed == "" {
		cfg.LikedFeed = defaultLikedFeed
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %s", key, raw)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %s", key, raw)
	}
	return f, nil
}

// Authenticated reports whether a bearer token is configured.
func (c Config) Authenticated() bool {
	return c.Token != ""
}

func (c Config) Validate() error {
	if c.APIBaseURL == "" {
		return errors.New("APIBaseURL is required")
	}
	if c.APIBaseURL[len(c.APIBaseURL)-1] == '/' {
		return fmt.Errorf("APIBaseURL must not end with '/': %s", c.APIBaseURL)
	}
	if c.PageSize < 1 || c.PageSize > 100 {
		return fmt.Errorf("PageSize must be between 1 and 100: %d", c.PageSize)
	}
	if c.Columns < 1 || c.Columns > 6 {
		return fmt.Errorf("Columns must be between 1 and 6: %d", c.Columns)
	}
	if c.ColumnWidth <= 0 {
		return fmt.Errorf("ColumnWidth must be positive: %g", c.ColumnWidth)
	}
	if c.LikedFeed == "" || strings.Contains(c.LikedFeed, "/") {
		return fmt.Errorf("LikedFeed must be a single path segment: %q", c.LikedFeed)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LogLevel must be debug, info, warn or error: %s", c.LogLevel)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("RateLimit must not be negative: %g", c.RateLimit)
	}
	return nil
}
