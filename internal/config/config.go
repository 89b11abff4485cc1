package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Paths     PathsConfig     `yaml:"paths"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Warehouse WarehouseConfig `yaml:"warehouse"`
	Database  DatabaseConfig  `yaml:"database"`
	Cache     CacheConfig     `yaml:"cache"`
	Learner   LearnerConfig   `yaml:"learner"`
	Benchmark BenchmarkConfig `yaml:"benchmark"`
	Synthesis SynthesisConfig `yaml:"synthesis"`
	Predict   PredictConfig   `yaml:"predict"`
	Directive DirectiveConfig `yaml:"directive"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// PathsConfig holds the flat-file locations for every pipeline table
type PathsConfig struct {
	InputDir     string `yaml:"input_dir"`
	GeneratedDir string `yaml:"generated_dir"`
	OutputDir    string `yaml:"output_dir"`

	RawSegmentsFile string `yaml:"raw_segments_file"`
	SegmentsFile    string `yaml:"segments_file"`
	CampaignsFile   string `yaml:"campaigns_file"`
	ResultsFile     string `yaml:"results_file"`
	MetricsFile     string `yaml:"metrics_file"`
}

// AnalyticsConfig holds the remote analytics platform connection.
// Credentials are exchanged for a bearer token via client-credential grant.
type AnalyticsConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Remote         string `yaml:"remote"`
	Hostname       string `yaml:"hostname"`
	ClientID       string `yaml:"client_id"`
	ClientSecret   string `yaml:"client_secret"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c AnalyticsConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// WarehouseConfig holds the data warehouse connection for raw segment input
type WarehouseConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Account   string `yaml:"account"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	Database  string `yaml:"database"`
	Schema    string `yaml:"schema"`
	Warehouse string `yaml:"warehouse"`
	Table     string `yaml:"table"`
}

// DatabaseConfig holds Postgres persistence settings
type DatabaseConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

// CacheConfig holds the Redis directive cache settings
type CacheConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

// TTL returns the cache entry lifetime as a duration
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// LearnerConfig holds the attribute derivation constants. Every value is
// overridable; zero values are replaced with the documented defaults in Load.
type LearnerConfig struct {
	WindowSize           int     `yaml:"window_size"`
	DefaultEngagement    float64 `yaml:"default_engagement"`
	DefaultConversion    float64 `yaml:"default_conversion"`
	EngagementMin        float64 `yaml:"engagement_min"`
	EngagementScale      float64 `yaml:"engagement_scale"`
	PriceSensitivityHigh float64 `yaml:"price_sensitivity_high"`
	PriceSensitivityMed  float64 `yaml:"price_sensitivity_med"`
	PriceSensitivityLow  float64 `yaml:"price_sensitivity_low"`
	BrandLoyaltyHigh     float64 `yaml:"brand_loyalty_high"`
	BrandLoyaltyLow      float64 `yaml:"brand_loyalty_low"`
	ChannelScale         float64 `yaml:"channel_scale"`
}

// BenchmarkConfig holds cohort baseline settings
type BenchmarkConfig struct {
	MinObservations int `yaml:"min_observations"`
}

// SynthesisConfig holds the seeded data synthesis settings
type SynthesisConfig struct {
	Seed          int64 `yaml:"seed"`
	CampaignCount int   `yaml:"campaign_count"`
}

// PredictConfig holds predictive model and clustering settings
type PredictConfig struct {
	TestFraction        float64 `yaml:"test_fraction"`
	Clusters            int     `yaml:"clusters"`
	ValueMatchThreshold float64 `yaml:"value_match_threshold"`
}

// DirectiveConfig selects the threshold/cadence profile for directive generation
type DirectiveConfig struct {
	Profile string `yaml:"profile"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a configuration with every default applied and no file read.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Paths.InputDir == "" {
		cfg.Paths.InputDir = "data/input"
	}
	if cfg.Paths.GeneratedDir == "" {
		cfg.Paths.GeneratedDir = "data/generated"
	}
	if cfg.Paths.OutputDir == "" {
		cfg.Paths.OutputDir = "data/output"
	}
	if cfg.Paths.RawSegmentsFile == "" {
		cfg.Paths.RawSegmentsFile = "user_segments.csv"
	}
	if cfg.Paths.SegmentsFile == "" {
		cfg.Paths.SegmentsFile = "user_segments_enriched.csv"
	}
	if cfg.Paths.CampaignsFile == "" {
		cfg.Paths.CampaignsFile = "campaigns.csv"
	}
	if cfg.Paths.ResultsFile == "" {
		cfg.Paths.ResultsFile = "campaign_results.csv"
	}
	if cfg.Paths.MetricsFile == "" {
		cfg.Paths.MetricsFile = "campaign_metrics.csv"
	}
	if cfg.Analytics.TimeoutSeconds == 0 {
		cfg.Analytics.TimeoutSeconds = 60
	}
	if cfg.Warehouse.Table == "" {
		cfg.Warehouse.Table = "USER_SEGMENTS"
	}
	if cfg.Learner.WindowSize == 0 {
		cfg.Learner.WindowSize = 100
	}
	if cfg.Learner.DefaultEngagement == 0 {
		cfg.Learner.DefaultEngagement = 0.08
	}
	if cfg.Learner.DefaultConversion == 0 {
		cfg.Learner.DefaultConversion = 0.02
	}
	if cfg.Learner.EngagementMin == 0 {
		cfg.Learner.EngagementMin = 0.05
	}
	if cfg.Learner.EngagementScale == 0 {
		cfg.Learner.EngagementScale = 0.10
	}
	if cfg.Learner.PriceSensitivityHigh == 0 {
		cfg.Learner.PriceSensitivityHigh = 0.8
	}
	if cfg.Learner.PriceSensitivityMed == 0 {
		cfg.Learner.PriceSensitivityMed = 0.5
	}
	if cfg.Learner.PriceSensitivityLow == 0 {
		cfg.Learner.PriceSensitivityLow = 0.3
	}
	if cfg.Learner.BrandLoyaltyHigh == 0 {
		cfg.Learner.BrandLoyaltyHigh = 0.7
	}
	if cfg.Learner.BrandLoyaltyLow == 0 {
		cfg.Learner.BrandLoyaltyLow = 0.4
	}
	if cfg.Learner.ChannelScale == 0 {
		cfg.Learner.ChannelScale = 1.5
	}
	if cfg.Benchmark.MinObservations == 0 {
		cfg.Benchmark.MinObservations = 5
	}
	if cfg.Synthesis.Seed == 0 {
		cfg.Synthesis.Seed = 42
	}
	if cfg.Synthesis.CampaignCount == 0 {
		cfg.Synthesis.CampaignCount = 50
	}
	if cfg.Predict.TestFraction == 0 {
		cfg.Predict.TestFraction = 0.2
	}
	if cfg.Predict.Clusters == 0 {
		cfg.Predict.Clusters = 5
	}
	if cfg.Predict.ValueMatchThreshold == 0 {
		cfg.Predict.ValueMatchThreshold = 0.27
	}
	if cfg.Cache.TTLSeconds == 0 {
		cfg.Cache.TTLSeconds = 300
	}
	if cfg.Directive.Profile == "" {
		cfg.Directive.Profile = "standard"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in deployment.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("ANALYTICS_REMOTE"); v != "" {
		cfg.Analytics.Remote = v
	}
	if v := os.Getenv("ANALYTICS_HOSTNAME"); v != "" {
		cfg.Analytics.Hostname = v
	}
	if v := os.Getenv("ANALYTICS_CLIENT_ID"); v != "" {
		cfg.Analytics.ClientID = v
	}
	if v := os.Getenv("ANALYTICS_CLIENT_SECRET"); v != "" {
		cfg.Analytics.ClientSecret = v
	}
	if v := os.Getenv("WAREHOUSE_ACCOUNT"); v != "" {
		cfg.Warehouse.Account = v
	}
	if v := os.Getenv("WAREHOUSE_USER"); v != "" {
		cfg.Warehouse.User = v
	}
	if v := os.Getenv("WAREHOUSE_PASSWORD"); v != "" {
		cfg.Warehouse.Password = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
		if !cfg.Database.Enabled {
			cfg.Database.Enabled = true
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}

	return cfg, nil
}

// Validate reports configuration errors that must abort the run before any
// stage executes. Data-quality concerns are handled downstream with defaults;
// missing credentials for an enabled collaborator are not.
func (c *Config) Validate() error {
	if c.Analytics.Enabled {
		if c.Analytics.Hostname == "" || c.Analytics.ClientID == "" || c.Analytics.ClientSecret == "" {
			return fmt.Errorf("analytics enabled but missing required settings: ANALYTICS_HOSTNAME, ANALYTICS_CLIENT_ID, ANALYTICS_CLIENT_SECRET")
		}
	}
	if c.Warehouse.Enabled {
		if c.Warehouse.Account == "" || c.Warehouse.User == "" || c.Warehouse.Password == "" {
			return fmt.Errorf("warehouse enabled but missing required settings: WAREHOUSE_ACCOUNT, WAREHOUSE_USER, WAREHOUSE_PASSWORD")
		}
	}
	if c.Database.Enabled && c.Database.URL == "" {
		return fmt.Errorf("database enabled but DATABASE_URL is not set")
	}
	switch c.Directive.Profile {
	case "standard", "legacy":
	default:
		return fmt.Errorf("unknown directive profile %q", c.Directive.Profile)
	}
	return nil
}
