package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. MARKETDASH_SERVER_ADDR.
const EnvPrefix = "MARKETDASH"

// ConfigPathEnv names the variable consulted when no --config flag is given.
const ConfigPathEnv = "MARKETDASH_CONFIG"

type Config struct {
	Env       string          `mapstructure:"env"` // "dev" or "prod"
	Server    ServerConfig    `mapstructure:"server"`
	Yahoo     RESTConfig      `mapstructure:"yahoo"`
	Alpha     AlphaConfig     `mapstructure:"alphavantage"`
	Synthetic SyntheticConfig `mapstructure:"synthetic"`
	Normalize NormalizeConfig `mapstructure:"normalize"`
	Quotes    QuotesConfig    `mapstructure:"quotes"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Listing   ListingConfig   `mapstructure:"listing"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Log       LogConfig       `mapstructure:"log"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	CORSOrigin      string        `mapstructure:"cors_origin"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type RESTConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type AlphaConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SyntheticConfig mirrors synth.Params plus base price resolution.
type SyntheticConfig struct {
	Points           int                `mapstructure:"points"`
	Step             time.Duration      `mapstructure:"step"`
	Volatility       float64            `mapstructure:"volatility"`
	Drift            float64            `mapstructure:"drift"`
	MeanReversion    float64            `mapstructure:"mean_reversion"`
	Band             float64            `mapstructure:"band"`
	SpreadMin        float64            `mapstructure:"spread_min"`
	SpreadMax        float64            `mapstructure:"spread_max"`
	VolumeMin        int64              `mapstructure:"volume_min"`
	VolumeMax        int64              `mapstructure:"volume_max"`
	TickStep         float64            `mapstructure:"tick_step"`
	TickBias         float64            `mapstructure:"tick_bias"`
	Seed             uint64             `mapstructure:"seed"` // 0 seeds from the clock
	DefaultBasePrice float64            `mapstructure:"default_base_price"`
	BasePrices       map[string]float64 `mapstructure:"base_prices"` // display symbol -> price
}

type NormalizeConfig struct {
	MaxPoints     int    `mapstructure:"max_points"`
	DefaultSuffix string `mapstructure:"default_suffix"`
}

type QuotesConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	MaxSymbols  int `mapstructure:"max_symbols"`
}

type CacheConfig struct {
	Backend string        `mapstructure:"backend"` // "memory", "redis" or "none"
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type ListingConfig struct {
	TTL         time.Duration `mapstructure:"ttl"`
	RefreshCron string        `mapstructure:"refresh_cron"`
	Schedule    bool          `mapstructure:"schedule"`
}

type StreamConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
	MaxSymbols   int           `mapstructure:"max_symbols"`
}

type StorageConfig struct {
	Driver     string `mapstructure:"driver"` // "postgres", "sqlite" or "none"
	SQLitePath string `mapstructure:"sqlite_path"`
	CreateDB   bool   `mapstructure:"create_db"`
}

// LogConfig defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`        // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`       // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"`  // file path to store logs (optional)
	Environment string `mapstructure:"environment"`  // environment: "dev" or "prod"
	MaxSizeMB   int    `mapstructure:"max_size_mb"`  // rotate after this many megabytes
	MaxBackups  int    `mapstructure:"max_backups"`  // rotated files kept
	MaxAgeDays  int    `mapstructure:"max_age_days"` // days a rotated file is kept
	Sampling    bool   `mapstructure:"sampling"`     // sample repetitive stdout entries
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cors_origin", "*")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("yahoo.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("yahoo.user_agent", "")
	v.SetDefault("yahoo.timeout", 8*time.Second)

	v.SetDefault("alphavantage.base_url", "https://www.alphavantage.co")
	v.SetDefault("alphavantage.api_key", "demo")
	v.SetDefault("alphavantage.timeout", 30*time.Second)

	v.SetDefault("synthetic.points", 60)
	v.SetDefault("synthetic.step", 5*time.Minute)
	v.SetDefault("synthetic.volatility", 0.002)
	v.SetDefault("synthetic.drift", 0.0001)
	v.SetDefault("synthetic.mean_reversion", 0.0)
	v.SetDefault("synthetic.band", 0.05)
	v.SetDefault("synthetic.spread_min", 0.003)
	v.SetDefault("synthetic.spread_max", 0.005)
	v.SetDefault("synthetic.volume_min", 500_000)
	v.SetDefault("synthetic.volume_max", 2_500_000)
	v.SetDefault("synthetic.tick_step", 0.001)
	v.SetDefault("synthetic.tick_bias", 0.48)
	v.SetDefault("synthetic.seed", 0)
	v.SetDefault("synthetic.default_base_price", 1000.0)
	v.SetDefault("synthetic.base_prices", map[string]float64{})

	v.SetDefault("normalize.max_points", 100)
	v.SetDefault("normalize.default_suffix", ".NS")

	v.SetDefault("quotes.concurrency", 8)
	v.SetDefault("quotes.max_symbols", 50)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", 15*time.Minute)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.key_prefix", "marketdash:series:")

	v.SetDefault("listing.ttl", 24*time.Hour)
	v.SetDefault("listing.refresh_cron", "0 0 * * *")
	v.SetDefault("listing.schedule", true)

	v.SetDefault("stream.tick_interval", 2*time.Second)
	v.SetDefault("stream.max_symbols", 20)

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.sqlite_path", "marketdash.db")
	v.SetDefault("storage.create_db", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output_file", "")
	v.SetDefault("log.environment", "dev")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 7)
	v.SetDefault("log.sampling", false)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.dbname", "marketdash")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.timezone", "UTC")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime", time.Hour)
}

// Load builds the configuration from defaults, an optional YAML file and
// MARKETDASH_* environment overrides, in increasing precedence. An empty
// path falls back to $MARKETDASH_CONFIG; no file at all is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		path = os.Getenv(ConfigPathEnv)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	// Support environment variables with dot notation (e.g., MARKETDASH_CACHE_TTL)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings that would otherwise fail at first use.
func (c *Config) Validate() error {
	var errs []error

	if c.Env != "dev" && c.Env != "prod" {
		errs = append(errs, fmt.Errorf("env must be dev or prod, got %q", c.Env))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Synthetic.DefaultBasePrice <= 0 {
		errs = append(errs, errors.New("synthetic.default_base_price must be positive"))
	}
	for sym, p := range c.Synthetic.BasePrices {
		if p <= 0 {
			errs = append(errs, fmt.Errorf("synthetic.base_prices.%s must be positive", sym))
		}
	}
	if c.Synthetic.TickStep <= 0 || c.Synthetic.TickStep > 0.001 {
		errs = append(errs, fmt.Errorf("synthetic.tick_step must be in (0, 0.001], got %v", c.Synthetic.TickStep))
	}
	if c.Normalize.MaxPoints <= 0 {
		errs = append(errs, errors.New("normalize.max_points must be positive"))
	}
	if c.Quotes.Concurrency <= 0 || c.Quotes.MaxSymbols <= 0 {
		errs = append(errs, errors.New("quotes.concurrency and quotes.max_symbols must be positive"))
	}
	switch c.Cache.Backend {
	case "memory", "redis", "none":
	default:
		errs = append(errs, fmt.Errorf("cache.backend must be memory, redis or none, got %q", c.Cache.Backend))
	}
	switch c.Storage.Driver {
	case "postgres", "sqlite", "none":
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be postgres, sqlite or none, got %q", c.Storage.Driver))
	}
	if _, err := cron.ParseStandard(c.Listing.RefreshCron); err != nil {
		errs = append(errs, fmt.Errorf("listing.refresh_cron: %w", err))
	}
	if c.Stream.TickInterval <= 0 {
		errs = append(errs, errors.New("stream.tick_interval must be positive"))
	}

	return errors.Join(errs...)
}
