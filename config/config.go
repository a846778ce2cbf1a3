package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Workflow  WorkflowConfig  `mapstructure:"workflow"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Advisory  AdvisoryConfig  `mapstructure:"advisory"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// GeneralConfig contains application-wide settings, including the
// fallback location used when detection fails.
type GeneralConfig struct {
	Debug            bool    `mapstructure:"debug"`
	LogLevel         string  `mapstructure:"log_level"`
	DefaultCity      string  `mapstructure:"default_city"`
	DefaultState     string  `mapstructure:"default_state"`
	DefaultCountry   string  `mapstructure:"default_country"`
	DefaultZip       string  `mapstructure:"default_zip"`
	DefaultLatitude  float64 `mapstructure:"default_latitude"`
	DefaultLongitude float64 `mapstructure:"default_longitude"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address   string `mapstructure:"address"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// LLMConfig contains the LLM provider configuration. Generation is
// optional: with no API key the workflow runs entirely on deterministic
// fallbacks.
type LLMConfig struct {
	Provider        string        `mapstructure:"provider"`
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	Model           string        `mapstructure:"model"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
	Retries         int           `mapstructure:"retries"`
	Backoff         time.Duration `mapstructure:"backoff"`
	CostPer1KInput  float64       `mapstructure:"cost_per_1k_input"`
	CostPer1KOutput float64       `mapstructure:"cost_per_1k_output"`
}

// WorkflowConfig bounds the workflow driver.
type WorkflowConfig struct {
	MaxIterations    int           `mapstructure:"max_iterations"`
	StageTimeout     time.Duration `mapstructure:"stage_timeout"`
	MaxConcurrent    int           `mapstructure:"max_concurrent"`
	FacilityRadiusKm float64       `mapstructure:"facility_radius_km"`
}

// Normalize applies defaults for unset workflow values.
func (w WorkflowConfig) Normalize() WorkflowConfig {
	if w.MaxIterations <= 0 {
		w.MaxIterations = 10
	}
	if w.StageTimeout <= 0 {
		w.StageTimeout = 30 * time.Second
	}
	if w.MaxConcurrent <= 0 {
		w.MaxConcurrent = 8
	}
	if w.FacilityRadiusKm <= 0 {
		w.FacilityRadiusKm = 25
	}
	return w
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	MetricsPort  int    `mapstructure:"metrics_port"`
	PeriodicLogs bool   `mapstructure:"periodic_logs"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

func (t TelemetryConfig) Validate() error {
	if t.Enabled && t.MetricsPort <= 0 {
		return fmt.Errorf("telemetry.metrics_port must be > 0 when telemetry is enabled")
	}
	return nil
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// Addr returns the host:port pair for the Redis client.
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.Port) == "" {
		return fmt.Errorf("storage.postgres.port required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN returns the connection string, preferring an explicit URL.
func (p PostgresConfig) DSN() string {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL
	}
	sslMode := p.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, sslMode)
}

// AdvisoryConfig controls the regulatory advisory fetcher, which scrapes
// state environmental sites and annotates regulation lookups.
type AdvisoryConfig struct {
	Enabled bool                   `mapstructure:"enabled"`
	Timeout time.Duration          `mapstructure:"timeout"`
	Sources []AdvisorySourceConfig `mapstructure:"sources"`
	Policy  FetchPolicyConfig      `mapstructure:"policy"`
}

// AdvisorySourceConfig names one page to scrape for a state and waste
// type.
type AdvisorySourceConfig struct {
	State     string `mapstructure:"state"`
	WasteType string `mapstructure:"waste_type"`
	URL       string `mapstructure:"url"`
}

// SchedulerConfig drives the background jobs.
type SchedulerConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	AdvisoryRefreshCron string        `mapstructure:"advisory_refresh_cron"`
	RetentionCron       string        `mapstructure:"retention_cron"`
	RetentionDays       int           `mapstructure:"retention_days"`
	LockTTL             time.Duration `mapstructure:"lock_ttl"`
	MaxStartupDelay     time.Duration `mapstructure:"max_startup_delay"`
}

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("json")   // REQUIRED if the config file does not have the extension in the name

	viper.SetDefault("general.default_city", "New York")
	viper.SetDefault("general.default_state", "NY")
	viper.SetDefault("general.default_country", "US")
	viper.SetDefault("general.default_zip", "10001")
	viper.SetDefault("general.default_latitude", 40.7128)
	viper.SetDefault("general.default_longitude", -74.0060)
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.max_tokens", 1000)
	viper.SetDefault("llm.timeout", "60s")
	viper.SetDefault("llm.retries", 2)
	viper.SetDefault("llm.backoff", "2s")
	viper.SetDefault("workflow.max_iterations", 10)
	viper.SetDefault("workflow.stage_timeout", "30s")
	viper.SetDefault("workflow.max_concurrent", 8)
	viper.SetDefault("workflow.facility_radius_km", 25)
	viper.SetDefault("telemetry.periodic_logs", true)
	viper.SetDefault("storage.redis.cache_ttl", "10m")
	viper.SetDefault("scheduler.advisory_refresh_cron", "0 3 * * *")
	viper.SetDefault("scheduler.retention_cron", "30 4 * * *")
	viper.SetDefault("scheduler.retention_days", 90)
	viper.SetDefault("scheduler.lock_ttl", "2m")
	viper.SetDefault("scheduler.max_startup_delay", "30s")
	viper.SetDefault("advisory.timeout", "45s")

	if path == "" {
		viper.AddConfigPath("./app/config") // path to look for the config file in
		viper.AddConfigPath("./config")     // path to look for the config file in
		viper.AddConfigPath(".")            // optionally look for config in the working directory
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)                                // bin/
		viper.AddConfigPath(filepath.Join(exeDir, ".."))           // repo root
		viper.AddConfigPath(filepath.Join(exeDir, "..", "config")) // repo root/config
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("KURA")
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)

	viper.AutomaticEnv() // read in environment variables that match (KURA_*)

	err := viper.ReadInConfig() // Find and read the config file
	if err != nil {             // Handle errors reading the config file
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	// unmarshal config
	var config Config

	if err = viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	config.Workflow = config.Workflow.Normalize()
	config.Advisory = config.Advisory.Normalize()
	config.Scheduler = config.Scheduler.Normalize()

	if err := config.Telemetry.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Redis.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Postgres.Validate(); err != nil {
		panic(err)
	}
	if err := config.Advisory.Validate(); err != nil {
		panic(err)
	}
	if err := config.Scheduler.Validate(); err != nil {
		panic(err)
	}
	return &config
}
