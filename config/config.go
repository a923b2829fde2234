package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	API       APIConfig
	Gemini    GeminiConfig
	Discord   DiscordConfig
	GitHub    GitHubConfig
	Scheduler SchedulerConfig
	Scraper   ScraperConfig
	DBPath    string
	DataDir   string
	// PostgresURL enables the entry archive when set.
	PostgresURL string
	LogLevel    string
	Sites       map[string]*SiteConfig
}

// APIConfig locates the publication API every mapped batch is uploaded
// to.
type APIConfig struct {
	URL         string
	AgentID     string
	UserID      string
	ComponentID int
	HideTinyURL bool
}

type GeminiConfig struct {
	APIKey string
}

type DiscordConfig struct {
	WebhookURL string
}

type GitHubConfig struct {
	Repo         string
	Token        string
	WorkflowName string
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type ScraperConfig struct {
	DelayMS int
	// ProxyURL routes portal requests through a proxy. Requests that
	// fail through the proxy are retried once directly.
	ProxyURL string
}

// SiteConfig describes one portal. Variant selects the handler; the
// remaining fields parameterize it.
type SiteConfig struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	Variant        string `yaml:"variant"`
	BaseURL        string `yaml:"base_url"`
	StartPath      string `yaml:"start_path"`
	DetailBasePath string `yaml:"detail_base_path"`
	CityName       string `yaml:"city_name"`
	RegionName     string `yaml:"region_name"`

	// TenderAuthority is set for tender portals only.
	TenderAuthority string `yaml:"tender_authority"`

	// Recency names the filter policy: weekday_snap, today_yesterday
	// or publication_cycle.
	Recency string `yaml:"recency"`

	// FilterPayload holds the deployment-specific form fields POSTed to
	// apply the search filter. Checkbox-group names vary per portal.
	FilterPayload map[string]string `yaml:"filter_payload"`

	// IncludeTypes/ExcludeTypes filter permit records by their type
	// string. Prospero sites must set exactly one of them.
	IncludeTypes []string `yaml:"include_types"`
	ExcludeTypes []string `yaml:"exclude_types"`

	// Fetcher selects http (default) or browser for portals behind
	// anti-bot challenges.
	Fetcher string `yaml:"fetcher"`

	// ReportFormID names the report form submitted after a PIP date
	// search (form0 or form1, deployment dependent).
	ReportFormID string `yaml:"report_form_id"`

	FilePrefix  string `yaml:"file_prefix"`
	ComponentID int    `yaml:"component_id"`
	DelayMS     int    `yaml:"delay_ms"`
	MaxPages    int    `yaml:"max_pages"`
}

// Handler variant names.
const (
	VariantProspero    = "prospero"
	VariantPIP         = "pip"
	VariantPIPReport   = "pip_report"
	VariantBonfire     = "bonfire"
	VariantBidsTenders = "bidsandtenders"
)

// IsTenderVariant reports whether the site publishes tenders rather
// than building permits.
func (s *SiteConfig) IsTenderVariant() bool {
	return s.Variant == VariantBonfire || s.Variant == VariantBidsTenders
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		API: APIConfig{
			URL:         getEnv("YS_APIURL", "http://localhost"),
			AgentID:     getEnv("YS_AGENTID", "AutoHarvest"),
			UserID:      getEnv("YS_USERID", "2025060339"),
			ComponentID: getEnvInt("YS_COMPONENTID", 7),
			HideTinyURL: parseBool(os.Getenv("HIDE_TINY_URL")),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GOOGLE_API_KEY"),
		},
		Discord: DiscordConfig{
			WebhookURL: os.Getenv("DISCORD_WEBHOOK_URL"),
		},
		GitHub: GitHubConfig{
			Repo:         getEnv("GH_REPO", "ys-23412/sbcontest2"),
			Token:        os.Getenv("GITHUB_TOKEN"),
			WorkflowName: getEnv("GH_WORKFLOW_NAME", "Scrap Sites Dev"),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("SCRAPE_CRON"),
		},
		Scraper: ScraperConfig{
			DelayMS:  getEnvInt("SCRAPE_DELAY_MS", 2000),
			ProxyURL: os.Getenv("PROXY_URL"),
		},
		DBPath:      getEnv("DB_PATH", "scraper.db"),
		DataDir:     getEnv("DATA_DIR", "data"),
		PostgresURL: os.Getenv("POSTGRES_URL"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Sites:       make(map[string]*SiteConfig),
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
	if err := cfg.validateSites(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadSiteConfigs() error {
	configDir := getEnv("SITES_DIR", "config/sites")
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
			return fmt.Errorf("parse %s: %w", path, err)
		}

		c.Sites[site.ID] = &site
	}

	return nil
}

// validateSites rejects defective site configs up front. These are
// programming errors, not transient conditions, so loading fails.
func (c *Config) validateSites() error {
	for id, site := range c.Sites {
		if site.BaseURL == "" {
			return fmt.Errorf("config: site %s has no base_url", id)
		}
		switch site.Variant {
		case VariantProspero:
			if len(site.IncludeTypes) == 0 && len(site.ExcludeTypes) == 0 {
				return fmt.Errorf("config: prospero site %s must define include_types or exclude_types", id)
			}
		case VariantPIP, VariantPIPReport, VariantBonfire, VariantBidsTenders:
		default:
			return fmt.Errorf("config: site %s has unsupported variant %q", id, site.Variant)
		}
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

func parseBool(val string) bool {
	return strings.EqualFold(strings.TrimSpace(val), "true")
}
