package config

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// SSM parameter names read in prod.
const (
	ssmDBHost       = "MARKETDASH_DB_HOST"
	ssmDBUser       = "MARKETDASH_DB_USER"
	ssmDBPassword   = "MARKETDASH_DB_PASSWORD"
	ssmAlphaVantage = "MARKETDASH_ALPHAVANTAGE_API_KEY"
)

const ssmTimeout = 5 * time.Second

// lookupParameters resolves SSM parameters by name. Tests replace it.
var lookupParameters = parameterStore

// PostgresConfig defines the configuration for connecting to a PostgreSQL database.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN builds the connection string. In prod, run ResolveSecrets first so
// host and credentials reflect SSM Parameter Store.
func (cfg *PostgresConfig) DSN() string {
	return cfg.dsn(cfg.Host, cfg.User, cfg.Password, cfg.DBName)
}

// AdminDSN connects to the default "postgres" database, used to create DBName.
func (cfg *PostgresConfig) AdminDSN() string {
	return cfg.dsn(cfg.Host, cfg.User, cfg.Password, "postgres")
}

func (cfg *PostgresConfig) dsn(host, user, password, dbname string) string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, cfg.Port, user, password, dbname, cfg.SSLMode)
	if cfg.TimeZone != "" {
		dsn += " TimeZone=" + cfg.TimeZone
	}
	return dsn
}

// ResolveSecrets fills the database credentials and provider key from SSM in
// prod. The configured values are kept when a parameter is missing or the
// lookup fails; a failed lookup is returned so the caller can report it.
func (c *Config) ResolveSecrets() error {
	if c.Env != "prod" {
		return nil
	}
	p, err := lookupParameters(ssmDBHost, ssmDBUser, ssmDBPassword, ssmAlphaVantage)
	if err != nil {
		return fmt.Errorf("resolve secrets from ssm: %w", err)
	}
	c.Postgres.Host = orElse(p[ssmDBHost], c.Postgres.Host)
	c.Postgres.User = orElse(p[ssmDBUser], c.Postgres.User)
	c.Postgres.Password = orElse(p[ssmDBPassword], c.Postgres.Password)
	c.Alpha.APIKey = orElse(p[ssmAlphaVantage], c.Alpha.APIKey)
	return nil
}

func orElse(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// parameterStore fetches decrypted parameters in one request. Names SSM does
// not know are absent from the map.
func parameterStore(names ...string) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), ssmTimeout)
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	out, err := ssm.NewFromConfig(awsCfg).GetParameters(ctx, &ssm.GetParametersInput{
		Names:          names,
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get parameters: %w", err)
	}

	values := make(map[string]string, len(out.Parameters))
	for _, p := range out.Parameters {
		if p.Name != nil && p.Value != nil {
			values[*p.Name] = *p.Value
		}
	}
	return values, nil
}
