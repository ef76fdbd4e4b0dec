package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Feed      FeedConfig
	Importer  ImporterConfig
	Scheduler SchedulerConfig
	Photos    PhotosConfig
	S3        S3Config

	DatabaseURL string
	OpsDBPath   string
	LogPath     string
	LogLevel    string
}

type FeedConfig struct {
	// URL is the full OData endpoint including the access_token parameter;
	// the feed client validates it at construction.
	URL       string
	Filter    string
	PageSize  int
	PageDelay time.Duration
	Timeout   time.Duration
}

type ImporterConfig struct {
	OwnerID uuid.UUID
	// MaxRecords caps imported records per run; 0 means no cap.
	MaxRecords int
}

type SchedulerConfig struct {
	Enabled bool
	Cron    string
	// Budget is the per-firing record cap, sized to the cadence.
	Budget int
}

type PhotosConfig struct {
	BatchSize int
	Interval  time.Duration
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

func (c S3Config) Enabled() bool { return c.Bucket != "" }

const defaultFilter = "(City eq 'Houston') and (PropertyType eq 'Residential')"

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Feed: FeedConfig{
			URL:       os.Getenv("HAR_API_URL"),
			Filter:    getEnv("HAR_FILTER", defaultFilter),
			PageSize:  getEnvInt("PAGE_SIZE", 100),
			PageDelay: time.Duration(getEnvInt("PAGE_DELAY_MS", 1000)) * time.Millisecond,
			Timeout:   time.Duration(getEnvInt("FEED_TIMEOUT_SEC", 30)) * time.Second,
		},
		Importer: ImporterConfig{
			MaxRecords: getEnvInt("MAX_LISTINGS", 0),
		},
		Scheduler: SchedulerConfig{
			Enabled: os.Getenv("RUN_HAR_CRON") == "true",
			Cron:    getEnv("HAR_CRON", "0 */2 * * *"),
			Budget:  getEnvInt("CRON_MAX_LISTINGS", 200),
		},
		Photos: PhotosConfig{
			BatchSize: getEnvInt("PHOTO_BATCH_SIZE", 20),
			Interval:  time.Duration(getEnvInt("PHOTO_INTERVAL_SEC", 120)) * time.Second,
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		DatabaseURL: os.Getenv("DATABASE_URL"),
		OpsDBPath:   getEnv("OPS_DB_PATH", "importer.db"),
		LogPath:     getEnv("LOG_PATH", "importer.log"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}

	if cfg.Feed.URL == "" {
		return nil, fmt.Errorf("HAR_API_URL is required (full OData URL including access_token)")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	rawOwner := os.Getenv("HAR_IMPORT_USER_ID")
	if rawOwner == "" {
		return nil, fmt.Errorf("HAR_IMPORT_USER_ID is required (UUID of the account imported listings belong to)")
	}
	owner, err := uuid.Parse(rawOwner)
	if err != nil {
		return nil, fmt.Errorf("HAR_IMPORT_USER_ID: %w", err)
	}
	cfg.Importer.OwnerID = owner

	if path := os.Getenv("FEED_PROFILE"); path != "" {
		if err := cfg.applyProfile(path); err != nil {
			return nil, fmt.Errorf("feed profile %s: %w", path, err)
		}
	}

	return cfg, nil
}

// feedProfile is an optional YAML file overriding feed tuning without
// touching the environment, so per-deployment settings can ship as files.
type feedProfile struct {
	Filter      string `yaml:"filter"`
	PageSize    int    `yaml:"page_size"`
	PageDelayMS int    `yaml:"page_delay_ms"`
	MaxRecords  int    `yaml:"max_records"`
	CronBudget  int    `yaml:"cron_budget"`
}

func (c *Config) applyProfile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var p feedProfile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return err
	}

	if p.Filter != "" {
		c.Feed.Filter = p.Filter
	}
	if p.PageSize > 0 {
		c.Feed.PageSize = p.PageSize
	}
	if p.PageDelayMS > 0 {
		c.Feed.PageDelay = time.Duration(p.PageDelayMS) * time.Millisecond
	}
	if p.MaxRecords > 0 {
		c.Importer.MaxRecords = p.MaxRecords
	}
	if p.CronBudget > 0 {
		c.Scheduler.Budget = p.CronBudget
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
