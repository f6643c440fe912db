package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // scheduler.timezone must resolve on hosts without a zoneinfo database

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"

	"github.com/ternarybob/specials/internal/models"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	HTTP        HTTPConfig      `toml:"http"`
	Sources     SourcesConfig   `toml:"sources"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	LLM         LLMConfig       `toml:"llm"`
	Stores      []StoreConfig   `toml:"stores"` // Seed list, used when the store table is empty
}

// Storage engine names
const (
	StorageBadger   = "badger"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

type StorageConfig struct {
	Type   string       `toml:"type"` // "badger" (default), "sqlite" or "postgres"
	Badger BadgerConfig `toml:"badger"`
	SQL    SQLConfig    `toml:"sql"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// SQLConfig configures the relational catalogue store
type SQLConfig struct {
	DSN           string `toml:"dsn"`             // File path / ":memory:" for sqlite, connection URL for postgres
	MaxOpenConns  int    `toml:"max_open_conns"`  // Connection pool ceiling (sqlite is forced to 1)
	BusyTimeoutMS int    `toml:"busy_timeout_ms"` // sqlite busy_timeout pragma
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05")
}

// SchedulerConfig controls the cron scheduler and job fan-out
type SchedulerConfig struct {
	Enabled          bool              `toml:"enabled"`           // Start cron triggers with `serve`
	Timezone         string            `toml:"timezone"`          // IANA zone the schedule is evaluated in
	StoreTimeout     string            `toml:"store_timeout"`     // Per-store fetch+reconcile bound (default: "2m")
	StoreConcurrency int               `toml:"store_concurrency"` // Stores processed in parallel per job (default: 2)
	Schedules        map[string]string `toml:"schedules"`         // Optional per-job cron overrides, keyed by job id
}

// HTTPConfig configures the shared outbound HTTP client
type HTTPConfig struct {
	UserAgent string `toml:"user_agent"`
	Timeout   string `toml:"timeout"`    // Request timeout (default: "30s")
	RateLimit string `toml:"rate_limit"` // Minimum interval between requests to one host (default: "300ms")
	Burst     int    `toml:"burst"`      // Requests allowed to exceed the rate momentarily (default: 1)
}

// SourcesConfig groups the per-source settings
type SourcesConfig struct {
	AIExtract   AIExtractConfig   `toml:"ai_extract"`
	SaleFinder  SaleFinderConfig  `toml:"salefinder"`
	Catalogue   CatalogueConfig   `toml:"catalogue"`
	FreshFoods  FreshFoodsConfig  `toml:"fresh_foods"`
	ImageRepair ImageRepairConfig `toml:"image_repair"`
}

// AIExtractConfig configures the LLM-driven specials page extractor
type AIExtractConfig struct {
	Enabled          bool              `toml:"enabled"`
	Provider         LLMProvider       `toml:"provider"`          // Overrides llm.default_provider when set
	RenderJavaScript bool              `toml:"render_javascript"` // Render pages with headless Chrome before extraction
	RenderWait       string            `toml:"render_wait"`       // Wait after navigation when rendering (default: "3s")
	MaxContentChars  int               `toml:"max_content_chars"` // Markdown sent to the model is cut to this length
	Pages            map[string]string `toml:"pages"`             // store slug -> specials page URL
}

// SaleFinderConfig configures the SaleFinder catalogue API
type SaleFinderConfig struct {
	Enabled    bool              `toml:"enabled"`
	BaseURL    string            `toml:"base_url"`
	LocationID string            `toml:"location_id"`
	Retailers  map[string]string `toml:"retailers"` // store slug -> SaleFinder retailer id
}

// CatalogueConfig configures the paged JSON catalogue feeds
type CatalogueConfig struct {
	Enabled  bool              `toml:"enabled"`
	PageSize int               `toml:"page_size"`
	MaxPages int               `toml:"max_pages"`
	Feeds    map[string]string `toml:"feeds"` // store slug -> feed URL
}

// FreshFoodsConfig configures the produce/meat everyday price feeds
type FreshFoodsConfig struct {
	Enabled bool              `toml:"enabled"`
	Feeds   map[string]string `toml:"feeds"` // store slug -> feed URL
}

// ImageRepairConfig configures the missing-image sweep
type ImageRepairConfig struct {
	Enabled    bool              `toml:"enabled"`
	Delay      string            `toml:"delay"`     // Minimum interval between search calls (default: "300ms")
	MaxItems   int               `toml:"max_items"` // Upper bound of specials repaired per store and run
	SearchURLs map[string]string `toml:"search"`    // store slug -> product search endpoint
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Timeout     string  `toml:"timeout"`
	Temperature float32 `toml:"temperature"`
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Timeout     string  `toml:"timeout"`
	Temperature float32 `toml:"temperature"`
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig contains unified configuration for all AI providers
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"`
}

// StoreConfig is one seeded retailer
type StoreConfig struct {
	ID          int64  `toml:"id"`
	Name        string `toml:"name"`
	Slug        string `toml:"slug"`
	LogoURL     string `toml:"logo_url"`
	WebsiteURL  string `toml:"website_url"`
	SpecialsDay string `toml:"specials_day"`
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	stores := make([]StoreConfig, 0, 4)
	for _, s := range models.DefaultStores() {
		stores = append(stores, StoreConfig{
			ID:          s.ID,
			Name:        s.Name,
			Slug:        s.Slug,
			LogoURL:     s.LogoURL,
			WebsiteURL:  s.WebsiteURL,
			SpecialsDay: s.SpecialsDay,
		})
	}

	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			Type: StorageBadger,
			Badger: BadgerConfig{
				Path: "./data/specials",
			},
			SQL: SQLConfig{
				DSN:           "./data/specials.db",
				MaxOpenConns:  4,
				BusyTimeoutMS: 5000,
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
		},
		Scheduler: SchedulerConfig{
			Enabled:          true,
			Timezone:         "Australia/Sydney",
			StoreTimeout:     "2m",
			StoreConcurrency: 2,
		},
		HTTP: HTTPConfig{
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			Timeout:   "30s",
			RateLimit: "300ms",
			Burst:     1,
		},
		Sources: SourcesConfig{
			AIExtract: AIExtractConfig{
				Enabled:          true, // Still needs an API key; without one the source reports not configured
				RenderJavaScript: false,
				RenderWait:       "3s",
				MaxContentChars:  60000,
				Pages: map[string]string{
					"woolworths": "https://www.woolworths.com.au/shop/catalogue",
					"coles":      "https://www.coles.com.au/on-special",
					"aldi":       "https://www.aldi.com.au/special-buys",
					"iga":        "https://www.iga.com.au/catalogue/",
				},
			},
			SaleFinder: SaleFinderConfig{
				Enabled:    true,
				BaseURL:    "https://embed.salefinder.com.au",
				LocationID: "0",
				Retailers: map[string]string{
					"woolworths": "126",
					"coles":      "148",
					"iga":        "183",
				},
			},
			Catalogue: CatalogueConfig{
				Enabled:  false, // Feeds are deployment specific
				PageSize: 100,
				MaxPages: 50,
				Feeds:    map[string]string{},
			},
			FreshFoods: FreshFoodsConfig{
				Enabled: false,
				Feeds:   map[string]string{},
			},
			ImageRepair: ImageRepairConfig{
				Enabled:  true,
				Delay:    "300ms",
				MaxItems: 500,
				SearchURLs: map[string]string{
					"iga": "https://www.igashop.com.au/api/storefront/stores/32600/search",
				},
			},
		},
		Gemini: GeminiConfig{
			Model:       "gemini-2.5-flash",
			Timeout:     "2m",
			Temperature: 0.1,
		},
		Claude: ClaudeConfig{
			Model:       "claude-haiku-4-5",
			MaxTokens:   8192,
			Timeout:     "2m",
			Temperature: 0.1,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderClaude,
		},
		Stores: stores,
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env.
// Later files override earlier files. CLI flags are applied afterwards by ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("SPECIALS_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Storage
	if storageType := os.Getenv("SPECIALS_STORAGE_TYPE"); storageType != "" {
		config.Storage.Type = storageType
	}
	if badgerPath := os.Getenv("SPECIALS_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if dsn := os.Getenv("SPECIALS_SQL_DSN"); dsn != "" {
		config.Storage.SQL.DSN = dsn
	}

	// Logging
	if level := os.Getenv("SPECIALS_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("SPECIALS_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if o = strings.TrimSpace(o); o != "" {
				outputs = append(outputs, o)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Scheduler
	if enabled := os.Getenv("SPECIALS_SCHEDULER_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			config.Scheduler.Enabled = b
		}
	}
	if tz := os.Getenv("SPECIALS_SCHEDULER_TIMEZONE"); tz != "" {
		config.Scheduler.Timezone = tz
	}
	if timeout := os.Getenv("SPECIALS_STORE_TIMEOUT"); timeout != "" {
		config.Scheduler.StoreTimeout = timeout
	}
	if concurrency := os.Getenv("SPECIALS_STORE_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.Scheduler.StoreConcurrency = c
		}
	}

	// HTTP
	if userAgent := os.Getenv("SPECIALS_HTTP_USER_AGENT"); userAgent != "" {
		config.HTTP.UserAgent = userAgent
	}
	if timeout := os.Getenv("SPECIALS_HTTP_TIMEOUT"); timeout != "" {
		config.HTTP.Timeout = timeout
	}
	if rateLimit := os.Getenv("SPECIALS_HTTP_RATE_LIMIT"); rateLimit != "" {
		config.HTTP.RateLimit = rateLimit
	}

	// Sources
	if locationID := os.Getenv("SPECIALS_SALEFINDER_LOCATION_ID"); locationID != "" {
		config.Sources.SaleFinder.LocationID = locationID
	}

	// Gemini
	if apiKey := os.Getenv("SPECIALS_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	} else if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("SPECIALS_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}

	// Claude (ANTHROPIC_API_KEY is the SDK's standard variable; SPECIALS_ wins when both are set)
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("SPECIALS_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if model := os.Getenv("SPECIALS_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}

	if provider := os.Getenv("SPECIALS_LLM_DEFAULT_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, storageType, logLevel string) {
	if storageType != "" {
		config.Storage.Type = storageType
	}
	if logLevel != "" {
		config.Logging.Level = logLevel
	}
}

// ResolveAPIKey resolves an API key by name with environment variable priority.
// Resolution order: environment variables -> config fallback -> error
func ResolveAPIKey(name string, configFallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"gemini_api_key": {"SPECIALS_GEMINI_API_KEY", "GEMINI_API_KEY"},
		"claude_api_key": {"SPECIALS_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
	}

	if envVarNames, ok := keyToEnvMapping[name]; ok {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment or config", name)
}

// Validate checks values that would otherwise fail late at runtime
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case StorageBadger, StorageSQLite, StoragePostgres:
	default:
		return fmt.Errorf("unsupported storage type: %q (badger, sqlite or postgres)", c.Storage.Type)
	}

	durations := map[string]string{
		"scheduler.store_timeout":        c.Scheduler.StoreTimeout,
		"http.timeout":                   c.HTTP.Timeout,
		"http.rate_limit":                c.HTTP.RateLimit,
		"sources.ai_extract.render_wait": c.Sources.AIExtract.RenderWait,
		"sources.image_repair.delay":     c.Sources.ImageRepair.Delay,
		"gemini.timeout":                 c.Gemini.Timeout,
		"claude.timeout":                 c.Claude.Timeout,
	}
	for key, value := range durations {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", key, err)
		}
	}

	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("invalid scheduler.timezone %q: %w", c.Scheduler.Timezone, err)
	}
	if c.Scheduler.StoreConcurrency < 1 {
		return fmt.Errorf("scheduler.store_concurrency must be at least 1, got %d", c.Scheduler.StoreConcurrency)
	}
	for jobID, schedule := range c.Scheduler.Schedules {
		if err := ValidateJobSchedule(schedule); err != nil {
			return fmt.Errorf("scheduler.schedules.%s: %w", jobID, err)
		}
	}

	switch c.LLM.DefaultProvider {
	case LLMProviderClaude, LLMProviderGemini:
	default:
		return fmt.Errorf("unsupported llm.default_provider: %q", c.LLM.DefaultProvider)
	}

	seenSlug := map[string]bool{}
	seenID := map[int64]bool{}
	for _, s := range c.Stores {
		if s.Slug == "" || s.ID <= 0 {
			return fmt.Errorf("store %q requires a slug and a positive id", s.Name)
		}
		if seenSlug[s.Slug] || seenID[s.ID] {
			return fmt.Errorf("duplicate store %q (id %d)", s.Slug, s.ID)
		}
		seenSlug[s.Slug] = true
		seenID[s.ID] = true
	}

	return nil
}

// ValidateJobSchedule validates a standard five-field cron expression and
// rejects schedules firing more often than every five minutes
func ValidateJobSchedule(schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	parts := strings.Fields(schedule)
	if len(parts) != 5 {
		return fmt.Errorf("invalid cron format: expected 5 fields")
	}

	minuteField := parts[0]
	if minuteField == "*" {
		return fmt.Errorf("schedule must have minimum 5-minute interval (every minute is not allowed)")
	}
	if strings.HasPrefix(minuteField, "*/") {
		interval, err := strconv.Atoi(strings.TrimPrefix(minuteField, "*/"))
		if err == nil && interval < 5 {
			return fmt.Errorf("schedule interval must be at least 5 minutes, got %d", interval)
		}
	}

	return nil
}

// Location returns the scheduler time zone, falling back to UTC
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// StoreModels converts the seed list into catalogue stores
func (c *Config) StoreModels() []models.Store {
	stores := make([]models.Store, 0, len(c.Stores))
	for _, s := range c.Stores {
		stores = append(stores, models.Store{
			ID:          s.ID,
			Name:        s.Name,
			Slug:        s.Slug,
			LogoURL:     s.LogoURL,
			WebsiteURL:  s.WebsiteURL,
			SpecialsDay: s.SpecialsDay,
		})
	}
	return stores
}

// ParseDurationOr parses value, returning fallback when it is empty or invalid
func ParseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
