package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreSQLite   = "sqlite"
	StoreJSONFile = "jsonfile"
	StoreRedis    = "redis"
)

type Config struct {
	Port            int
	DataDir         string
	StoreDriver     string
	RedisURL        string
	ImgurClientID   string
	ImgurUploadURL  string
	JPEGQuality     int
	UploadAttempts  int
	UploadDelay     time.Duration
	HTTPTimeout     time.Duration
	JobWorkers      int
	JobQueueSize    int
	EntityWorkers   int
	ImageWorkers    int
	ReportFormat    string
	RetentionDays   int
	MaxUploadSizeMB int
	APITokenHash    string
	SubmitRateLimit int
	BehindProxy     bool
}

// Retention is zero when cleanup is disabled.
func (c *Config) Retention() time.Duration {
	if c.RetentionDays <= 0 {
		return 0
	}
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// Load reads .env from the working directory when present, then the process
// environment. Variables already set win over the file.
func Load() (*Config, error) {
	return LoadFile(".env")
}

func LoadFile(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", envFile, err)
		}
	}
	return fromEnv()
}

func fromEnv() (*Config, error) {
	p := &parser{}

	cfg := &Config{
		Port:            p.int("PORT", 8080),
		DataDir:         getEnv("DATA_DIR", "./data"),
		StoreDriver:     strings.ToLower(getEnv("STORE_DRIVER", StoreSQLite)),
		RedisURL:        os.Getenv("REDIS_URL"),
		ImgurClientID:   os.Getenv("IMGUR_CLIENT_ID"),
		ImgurUploadURL:  getEnv("IMGUR_UPLOAD_URL", "https://api.imgur.com/3/image"),
		JPEGQuality:     p.int("JPEG_QUALITY", 50),
		UploadAttempts:  p.int("UPLOAD_MAX_ATTEMPTS", 5),
		UploadDelay:     p.duration("UPLOAD_RETRY_DELAY", 2*time.Second),
		HTTPTimeout:     p.duration("HTTP_TIMEOUT", 30*time.Second),
		JobWorkers:      p.int("JOB_WORKERS", 2),
		JobQueueSize:    p.int("JOB_QUEUE_SIZE", 100),
		EntityWorkers:   p.int("ENTITY_WORKERS", 1),
		ImageWorkers:    p.int("IMAGE_WORKERS", 1),
		ReportFormat:    strings.ToLower(getEnv("REPORT_FORMAT", "csv")),
		RetentionDays:   p.int("RETENTION_DAYS", 7),
		MaxUploadSizeMB: p.int("MAX_UPLOAD_SIZE_MB", 10),
		APITokenHash:    os.Getenv("API_TOKEN_HASH"),
		SubmitRateLimit: p.int("SUBMIT_RATE_LIMIT", 30),
		BehindProxy:     p.bool("BEHIND_PROXY", false),
	}
	if p.err != nil {
		return nil, p.err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ImgurClientID == "" {
		return fmt.Errorf("IMGUR_CLIENT_ID is required")
	}
	switch c.StoreDriver {
	case StoreSQLite, StoreJSONFile:
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when STORE_DRIVER=redis")
		}
	default:
		return fmt.Errorf("invalid STORE_DRIVER: %q", c.StoreDriver)
	}
	if c.ReportFormat != "csv" && c.ReportFormat != "xlsx" {
		return fmt.Errorf("invalid REPORT_FORMAT: %q", c.ReportFormat)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("invalid JPEG_QUALITY: %d (1-100)", c.JPEGQuality)
	}
	if c.UploadAttempts < 1 {
		return fmt.Errorf("invalid UPLOAD_MAX_ATTEMPTS: %d", c.UploadAttempts)
	}
	if c.UploadDelay < 0 {
		return fmt.Errorf("invalid UPLOAD_RETRY_DELAY: %s", c.UploadDelay)
	}
	for name, v := range map[string]int{
		"JOB_WORKERS":        c.JobWorkers,
		"JOB_QUEUE_SIZE":     c.JobQueueSize,
		"ENTITY_WORKERS":     c.EntityWorkers,
		"IMAGE_WORKERS":      c.ImageWorkers,
		"MAX_UPLOAD_SIZE_MB": c.MaxUploadSizeMB,
	} {
		if v < 1 {
			return fmt.Errorf("invalid %s: %d", name, v)
		}
	}
	return nil
}

// parser keeps the first parse error so Load can report it by key.
type parser struct {
	err error
}

func (p *parser) int(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return v
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return v
}

func (p *parser) bool(key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
	return v
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
