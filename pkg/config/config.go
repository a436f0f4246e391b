// Package config loads runtime settings from the environment and an optional
// .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"stattrack/pkg/calibration"
	"stattrack/pkg/ocr"
	"stattrack/pkg/sink"
	"stattrack/pkg/snapshot"
)

// Config is the full runtime configuration.
type Config struct {
	DiscordToken     string
	DiscordChannelID string
	MessageLimit     int
	FetchTimeout     time.Duration
	DownloadTimeout  time.Duration
	ImageDir         string

	Sink sink.Config

	Recognizer ocr.RecognizerOptions

	Template        string
	CalibrationFile string
	// Threshold overrides the template when >= 0.
	Threshold int
	// Upscale overrides the template when > 0.
	Upscale  int
	Location *time.Location
	Bounds   snapshot.Bounds

	ArchiveDir     string
	AzureAccount   string
	AzureKey       string
	AzureContainer string

	JWTSecret string
	// APIKeyHash is a bcrypt hash of the key clients exchange for a token.
	APIKeyHash string
	TokenTTL   time.Duration
	HTTPAddr   string
	LogLevel   string
}

// Load reads envFile (if it exists, without overriding variables already set)
// and then the environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	p := &envParser{}
	cfg := &Config{
		DiscordToken:     os.Getenv("DISCORD_TOKEN"),
		DiscordChannelID: os.Getenv("DISCORD_CHANNEL_ID"),
		MessageLimit:     int(p.intOr("MESSAGE_LIMIT", 10)),
		FetchTimeout:     p.durationOr("FETCH_TIMEOUT", 30*time.Second),
		DownloadTimeout:  p.durationOr("DOWNLOAD_TIMEOUT", 15*time.Second),
		ImageDir:         os.Getenv("IMAGE_DIR"),
		Sink: sink.Config{
			Backend:     strings.ToLower(getEnvOrDefault("SINK", sink.BackendSQLite)),
			CSVPath:     getEnvOrDefault("CSV_PATH", "data/stats.csv"),
			SQLitePath:  getEnvOrDefault("SQLITE_PATH", "data/stats.db"),
			DSN:         os.Getenv("DB_DSN"),
			AutoMigrate: p.boolOr("DB_AUTO_MIGRATE", true),
		},
		Recognizer: ocr.RecognizerOptions{
			Backend:       strings.ToLower(getEnvOrDefault("RECOGNIZER", ocr.BackendTesseract)),
			Language:      getEnvOrDefault("TESSERACT_LANG", "eng"),
			TesseractBin:  getEnvOrDefault("TESSERACT_BIN", "tesseract"),
			VisionAPIKey:  os.Getenv("OPENROUTER_API_KEY"),
			VisionModel:   os.Getenv("VISION_MODEL"),
			VisionTimeout: p.durationOr("VISION_TIMEOUT", 30*time.Second),
		},
		Template:        getEnvOrDefault("TEMPLATE", calibration.Extended),
		CalibrationFile: os.Getenv("CALIBRATION_FILE"),
		Threshold:       int(p.intOr("THRESHOLD", -1)),
		Upscale:         int(p.intOr("UPSCALE", 0)),
		Bounds: snapshot.Bounds{
			Stat:      int(p.intOr("STAT_BOUND", 1000)),
			Level:     int(p.intOr("LEVEL_BOUND", 10)),
			Influence: int(p.intOr("INFLUENCE_BOUND", 10)),
			Activity:  int(p.intOr("ACTIVITY_BOUND", 100)),
		},
		ArchiveDir:     os.Getenv("ARCHIVE_DIR"),
		AzureAccount:   os.Getenv("AZURE_STORAGE_ACCOUNT"),
		AzureKey:       os.Getenv("AZURE_STORAGE_KEY"),
		AzureContainer: getEnvOrDefault("AZURE_CONTAINER", "screenshots"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		APIKeyHash:     os.Getenv("API_KEY_HASH"),
		TokenTTL:       p.durationOr("TOKEN_TTL", 24*time.Hour),
		HTTPAddr:       getEnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
	}

	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(getEnvOrDefault("TIMEZONE", "Asia/Taipei"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.Location = loc

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.MessageLimit < 1 || c.MessageLimit > 100 {
		return fmt.Errorf("MESSAGE_LIMIT must be in 1..100 (got %d)", c.MessageLimit)
	}
	switch c.Sink.Backend {
	case sink.BackendCSV, sink.BackendSQLite:
	case sink.BackendPostgres:
		if c.Sink.DSN == "" {
			return errors.New("SINK=postgres requires DB_DSN")
		}
	default:
		return fmt.Errorf("invalid SINK: %q", c.Sink.Backend)
	}
	switch c.Recognizer.Backend {
	case ocr.BackendTesseract, ocr.BackendTesseractCLI:
	case ocr.BackendVision:
		if c.Recognizer.VisionAPIKey == "" || c.Recognizer.VisionModel == "" {
			return errors.New("RECOGNIZER=vision requires OPENROUTER_API_KEY and VISION_MODEL")
		}
	default:
		return fmt.Errorf("invalid RECOGNIZER: %q", c.Recognizer.Backend)
	}
	if c.Threshold > 255 || c.Threshold < -1 {
		return fmt.Errorf("THRESHOLD must be in 0..255 (got %d)", c.Threshold)
	}
	if c.Upscale < 0 || c.Upscale > 8 {
		return fmt.Errorf("UPSCALE must be in 0..8 (got %d)", c.Upscale)
	}
	b := c.Bounds
	if b.Stat <= 0 || b.Level <= 0 || b.Influence <= 0 || b.Activity <= 0 {
		return fmt.Errorf("growth bounds must be > 0 (got stat=%d level=%d influence=%d activity=%d)",
			b.Stat, b.Level, b.Influence, b.Activity)
	}
	if (c.AzureAccount == "") != (c.AzureKey == "") {
		return errors.New("AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY must be set together")
	}
	return nil
}

// RequireSource checks that a screenshot source is configured.
func (c *Config) RequireSource() error {
	if c.ImageDir != "" {
		return nil
	}
	if c.DiscordToken == "" || c.DiscordChannelID == "" {
		return errors.New("set IMAGE_DIR, or DISCORD_TOKEN and DISCORD_CHANNEL_ID")
	}
	return nil
}

// Calibration loads the configured template and applies the THRESHOLD and
// UPSCALE overrides.
func (c *Config) Calibration() (calibration.Calibration, error) {
	cal, err := calibration.Load(c.CalibrationFile, c.Template)
	if err != nil {
		return calibration.Calibration{}, err
	}
	if c.Threshold >= 0 {
		cal.Template.Threshold = c.Threshold
	}
	if c.Upscale > 0 {
		cal.Template.Upscale = c.Upscale
	}
	return cal, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envParser reads typed variables and collects malformed values instead of
// silently falling back to the default.
type envParser struct {
	errs []error
}

func (p *envParser) durationOr(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil || duration <= 0 {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %q is not a positive duration", key, value))
		return defaultValue
	}
	return duration
}

func (p *envParser) intOr(key string, defaultValue int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %q is not an integer", key, value))
		return defaultValue
	}
	return intValue
}

func (p *envParser) boolOr(key string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "":
		return defaultValue
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		p.errs = append(p.errs, fmt.Errorf("invalid %s: %q is not a boolean", key, os.Getenv(key)))
		return defaultValue
	}
}
