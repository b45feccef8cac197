package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DatabaseURL string
	HTTPAddr    string
	// Shared secret for the maintenance endpoints. Empty disables auth
	// (local development only).
	MaintenanceSecret string
	SnapshotDBPath    string
	LogPath           string

	Proxy     ProxyConfig
	Scheduler SchedulerConfig
	Scraper   ScraperConfig
	S3        S3Config

	Sites map[string]*SiteConfig
}

type ProxyConfig struct {
	URL string
}

type SchedulerConfig struct {
	ScrapeCron      string
	MaintenanceCron string
	Interval        time.Duration
}

type ScraperConfig struct {
	// MinYield is the aggregate listing count under which the
	// orchestrator escalates to the browser transport.
	MinYield int
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// Enabled reports whether photo archiving is configured.
func (c S3Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKeyID != ""
}

type SiteConfig struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Transport   string `yaml:"transport"` // static | api | browser
	BaseURL     string `yaml:"base_url"`
	SearchURL   string `yaml:"search_url"`
	RateLimitMS int    `yaml:"rate_limit_ms"`
	ListingType string `yaml:"listing_type"`
	PartnerFeed bool   `yaml:"partner_feed"`
	// BrowserFallback marks sites the orchestrator may re-run through
	// the headless browser when the plain transport under-delivers.
	BrowserFallback bool `yaml:"browser_fallback"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		HTTPAddr:          getEnv("HTTP_ADDR", ":8090"),
		MaintenanceSecret: os.Getenv("MAINTENANCE_SECRET"),
		SnapshotDBPath:    getEnv("SNAPSHOT_DB_PATH", "snapshot.db"),
		LogPath:           getEnv("LOG_PATH", "daemon.log"),
		Proxy: ProxyConfig{
			URL: os.Getenv("PROXY_URL"),
		},
		Scheduler: SchedulerConfig{
			ScrapeCron:      os.Getenv("SCRAPE_CRON"),
			MaintenanceCron: getEnv("MAINTENANCE_CRON", "0 4 * * *"),
		},
		Scraper: ScraperConfig{
			MinYield: getEnvInt("SCRAPE_MIN_YIELD", 10),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "ap-northeast-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		Sites: make(map[string]*SiteConfig),
	}

	if interval := os.Getenv("SCRAPE_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if err := cfg.loadSiteConfigs(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadSiteConfigs() error {
	configDir := "config/sites"
	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(configDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var site SiteConfig
		if err := yaml.Unmarshal(data, &site); err != nil {
			return err
		}

		c.Sites[site.ID] = &site
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
