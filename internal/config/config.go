// Package config loads postsync settings from config.yml, .env files and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"postsync/internal/core/domain"
	"postsync/internal/csvcodec"
)

// Defaults mirror the behaviour of the hosted job.
const (
	DefaultAccount       = "kantorstafpresidenri"
	DefaultTimezone      = "Asia/Jakarta"
	DefaultCategory      = "Update KSP"
	DefaultMaxRetries    = 2
	DefaultRetryDelay    = 3 * time.Second
	DefaultBucket        = "csv-files"
	DefaultObjectKey     = "instagram-output.csv"
	DefaultSheetRange    = "Sheet1!A:H"
	DefaultPublicBaseURL = "http://localhost:3000"
	DefaultSchedule      = "@every 15m"
	DefaultServerAddress = ":8080"

	supabaseS3Path = "/storage/v1/s3"
)

// Config is the root configuration.
type Config struct {
	Account  string         `mapstructure:"account"`
	Timezone string         `mapstructure:"timezone"`
	Category string         `mapstructure:"category"`
	Apify    ApifyConfig    `mapstructure:"apify"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Local    LocalConfig    `mapstructure:"local"`
	Sheets   SheetsConfig   `mapstructure:"sheets"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Server   ServerConfig   `mapstructure:"server"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

type ApifyConfig struct {
	Token        string        `mapstructure:"token"`
	BaseURL      string        `mapstructure:"base_url"`
	ActorID      string        `mapstructure:"actor_id"`
	ResultsLimit int           `mapstructure:"results_limit"`
	SkipPinned   bool          `mapstructure:"skip_pinned"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type WorkflowConfig struct {
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"`
	MaxResumeFailures int           `mapstructure:"max_resume_failures"`
}

// StorageConfig is the S3-compatible primary sink.
type StorageConfig struct {
	// Enabled is resolved at load time from the endpoint and keys.
	Enabled         bool          `mapstructure:"-"`
	SupabaseURL     string        `mapstructure:"supabase_url"`
	Endpoint        string        `mapstructure:"endpoint"`
	Region          string        `mapstructure:"region"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	Bucket          string        `mapstructure:"bucket"`
	ObjectKey       string        `mapstructure:"object_key"`
	PublicBaseURL   string        `mapstructure:"public_base_url"`
	Schema          string        `mapstructure:"schema"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// LocalConfig is the filesystem fallback sink.
type LocalConfig struct {
	BaseDir       string `mapstructure:"base_dir"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

// SheetsConfig is the optional spreadsheet sink. A Google spreadsheet takes
// precedence over a local workbook when both are configured.
type SheetsConfig struct {
	// Enabled is resolved at load time from the credentials or workbook path.
	Enabled         bool   `mapstructure:"-"`
	SpreadsheetID   string `mapstructure:"spreadsheet_id"`
	Range           string `mapstructure:"range"`
	CredentialsJSON string        `mapstructure:"credentials_json"`
	WorkbookPath    string        `mapstructure:"workbook_path"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// RedisConfig enables the shared pending-run store when Address is set.
type RedisConfig struct {
	Address    string        `mapstructure:"address"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	PendingTTL time.Duration `mapstructure:"pending_ttl"`
}

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type ScheduleConfig struct {
	Spec string `mapstructure:"spec"`
}

type LoggerConfig struct {
	Level       string   `mapstructure:"level"`
	Development bool     `mapstructure:"development"`
	OutputPaths []string `mapstructure:"output_paths"`
}

// Load reads configuration. .env.local and .env are loaded first without
// overriding variables already set; path names an optional YAML file,
// otherwise config.yml is looked up in the working directory.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	setupViper(v, path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w: %w", domain.ErrConfiguration, err)
		}
	}

	if err := bindEnvironmentVariables(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w: %w", domain.ErrConfiguration, err)
	}
	cfg.resolve()

	return &cfg, nil
}

func loadEnvFiles() {
	for _, name := range []string{".env.local", ".env"} {
		_ = godotenv.Load(name)
	}
}

func setupViper(v *viper.Viper, path string) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("POSTSYNC")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		return
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("account", DefaultAccount)
	v.SetDefault("timezone", DefaultTimezone)
	v.SetDefault("category", DefaultCategory)

	v.SetDefault("apify.token", "")
	v.SetDefault("apify.base_url", "https://api.apify.com/v2")
	v.SetDefault("apify.actor_id", "apify~instagram-post-scraper")
	v.SetDefault("apify.results_limit", 1)
	v.SetDefault("apify.skip_pinned", true)
	v.SetDefault("apify.timeout", "30s")

	v.SetDefault("workflow.max_retries", DefaultMaxRetries)
	v.SetDefault("workflow.retry_delay", DefaultRetryDelay.String())
	v.SetDefault("workflow.max_resume_failures", 3)

	v.SetDefault("storage.supabase_url", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.access_key_id", "")
	v.SetDefault("storage.secret_access_key", "")
	v.SetDefault("storage.bucket", DefaultBucket)
	v.SetDefault("storage.object_key", DefaultObjectKey)
	v.SetDefault("storage.public_base_url", "")
	v.SetDefault("storage.schema", csvcodec.Compact.Name())
	v.SetDefault("storage.timeout", "30s")

	v.SetDefault("local.base_dir", ".")
	v.SetDefault("local.public_base_url", DefaultPublicBaseURL)

	v.SetDefault("sheets.spreadsheet_id", "")
	v.SetDefault("sheets.range", DefaultSheetRange)
	v.SetDefault("sheets.credentials_json", "")
	v.SetDefault("sheets.workbook_path", "")
	v.SetDefault("sheets.timeout", "30s")

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pending_ttl", "24h")

	v.SetDefault("server.address", DefaultServerAddress)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "2m")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("schedule.spec", DefaultSchedule)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.development", false)
	v.SetDefault("logger.output_paths", []string{"stdout"})
}

// envBindings maps config keys to the environment names used by the hosted job.
var envBindings = map[string][]string{
	"apify.token":               {"APIFY_TOKEN", "APIFY_API_TOKEN"},
	"storage.supabase_url":      {"SUPABASE_URL"},
	"storage.endpoint":          {"SUPABASE_S3_ENDPOINT"},
	"storage.region":            {"SUPABASE_S3_REGION"},
	"storage.access_key_id":     {"SUPABASE_S3_ACCESS_KEY_ID"},
	"storage.secret_access_key": {"SUPABASE_S3_SECRET_ACCESS_KEY"},
	"sheets.spreadsheet_id":     {"GOOGLE_SHEET_ID"},
	"sheets.credentials_json":   {"GOOGLE_SERVICE_ACCOUNT_JSON"},
	"sheets.workbook_path":      {"SHEETS_WORKBOOK_PATH"},
	"local.public_base_url":     {"PUBLIC_BASE_URL"},
	"redis.address":             {"REDIS_ADDRESS"},
	"redis.password":            {"REDIS_PASSWORD"},
	"logger.level":              {"LOG_LEVEL"},
}

func bindEnvironmentVariables(v *viper.Viper) error {
	for key, names := range envBindings {
		args := append([]string{key}, names...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", strings.Join(names, ","), err)
		}
	}
	return nil
}

// resolve fills derived settings. Sink enablement is decided here once.
func (c *Config) resolve() {
	if c.Storage.Endpoint == "" && c.Storage.SupabaseURL != "" {
		c.Storage.Endpoint = strings.TrimRight(c.Storage.SupabaseURL, "/") + supabaseS3Path
	}
	c.Storage.Enabled = c.Storage.Endpoint != "" &&
		c.Storage.AccessKeyID != "" &&
		c.Storage.SecretAccessKey != ""

	c.Sheets.Enabled = (c.Sheets.CredentialsJSON != "" && c.Sheets.SpreadsheetID != "") ||
		c.Sheets.WorkbookPath != ""
}

// GoogleSheetsEnabled reports whether the secondary sink is a Google spreadsheet.
func (c *Config) GoogleSheetsEnabled() bool {
	return c.Sheets.CredentialsJSON != "" && c.Sheets.SpreadsheetID != ""
}

// Validate checks that required settings are present and well formed.
func (c *Config) Validate() error {
	var errs []error
	if c.Apify.Token == "" {
		errs = append(errs, errors.New("APIFY_TOKEN environment variable not set"))
	}
	if c.Account == "" {
		errs = append(errs, errors.New("account is required"))
	}
	if c.Workflow.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("workflow.max_retries must be at least 1, got %d", c.Workflow.MaxRetries))
	}
	if c.Workflow.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("workflow.retry_delay must not be negative, got %s", c.Workflow.RetryDelay))
	}
	if _, err := csvcodec.SchemaByName(c.Storage.Schema); err != nil {
		errs = append(errs, err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	if c.Storage.Enabled && c.Storage.Bucket == "" {
		errs = append(errs, errors.New("storage.bucket is required when object storage is enabled"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

// Location returns the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w: %w", c.Timezone, domain.ErrConfiguration, err)
	}
	return loc, nil
}

// Schema returns the CSV schema used for new artifacts.
func (c *Config) Schema() (csvcodec.Schema, error) {
	return csvcodec.SchemaByName(c.Storage.Schema)
}
