package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/finguard/finguard-server/auth"
	"github.com/finguard/finguard-server/internal/database"
	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix is prepended to every environment override
	EnvPrefix = "FINGUARD_"
	// PathEnvKey names the YAML file when no -config flag is given
	PathEnvKey = EnvPrefix + "CONFIG"
)

type Config struct {
	Server   ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	Auth     AuthConfig      `yaml:"auth" envPrefix:"AUTH_"`
	Database database.Config `yaml:"database" envPrefix:"DATABASE_"`
	Expenses ExpensesConfig  `yaml:"expenses" envPrefix:"EXPENSES_"`
	Log      LogConfig       `yaml:"log" envPrefix:"LOG_"`
}

type ServerConfig struct {
	Addr            string   `yaml:"addr" env:"ADDR"`
	BasePath        string   `yaml:"base_path" env:"BASE_PATH"`
	CORSOrigins     []string `yaml:"cors_origins" env:"CORS_ORIGINS" envSeparator:","`
	ShutdownSeconds int      `yaml:"shutdown_seconds" env:"SHUTDOWN_SECONDS"`
}

type AuthConfig struct {
	SigningKey    string   `yaml:"signing_key" env:"SIGNING_KEY"`
	Issuer        string   `yaml:"issuer" env:"ISSUER"`
	Audience      []string `yaml:"audience" env:"AUDIENCE" envSeparator:","`
	TTLMinutes    int      `yaml:"ttl_minutes" env:"TTL_MINUTES"`
	BcryptCost    int      `yaml:"bcrypt_cost" env:"BCRYPT_COST"`
	HashWorkers   int      `yaml:"hash_workers" env:"HASH_WORKERS"`
	HashTimeoutMS int      `yaml:"hash_timeout_ms" env:"HASH_TIMEOUT_MS"`
	HashidUserIDs bool     `yaml:"hashid_user_ids" env:"HASHID_USER_IDS"`
}

type ExpensesConfig struct {
	ReadScope string `yaml:"read_scope" env:"READ_SCOPE"`
}

type LogConfig struct {
	Env   string `yaml:"env" env:"ENV"`
	Debug bool   `yaml:"debug" env:"DEBUG"`
}

// Defaults returns the configuration used when nothing overrides it. It
// has no signing key.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			CORSOrigins:     []string{"*"},
			ShutdownSeconds: 10,
		},
		Auth: AuthConfig{
			Issuer:        "finguard",
			Audience:      []string{"finguard-api"},
			TTLMinutes:    60,
			BcryptCost:    auth.DefaultPasswordHashCost,
			HashTimeoutMS: 5000,
		},
		Database: database.Config{
			Driver: database.DriverSQLite,
			DSN:    "file:finguard.db",
		},
		Expenses: ExpensesConfig{
			ReadScope: string(auth.ReadScopeOwner),
		},
		Log: LogConfig{
			Env: "dev",
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when empty), then FINGUARD_ prefixed environment variables.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv(PathEnvKey)
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "reading config file")
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "parsing config yaml")
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "parsing config env")
	}

	cfg.Server.BasePath = normalizeBasePath(cfg.Server.BasePath)

	return cfg, nil
}

// Validate reports the first configuration problem found
func (c Config) Validate() error {
	if c.Auth.SigningKey == "" {
		return invalid("auth.signing_key is required (set " + EnvPrefix + "AUTH_SIGNING_KEY)")
	}

	if len(c.Auth.SigningKey) < auth.MinSigningKeyBytes {
		return invalid(fmt.Sprintf("auth.signing_key must be at least %d bytes", auth.MinSigningKeyBytes))
	}

	if c.Auth.TTLMinutes <= 0 {
		return invalid("auth.ttl_minutes must be positive")
	}

	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return invalid(fmt.Sprintf("auth.bcrypt_cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}

	if c.Auth.HashWorkers < 0 {
		return invalid("auth.hash_workers must not be negative")
	}

	if c.Auth.HashTimeoutMS < 0 {
		return invalid("auth.hash_timeout_ms must not be negative")
	}

	if err := c.Database.Validate(); err != nil {
		return err
	}

	if _, err := auth.ParseReadScope(c.Expenses.ReadScope); err != nil {
		return invalid("expenses.read_scope must be owner or global")
	}

	switch c.Log.Env {
	case "dev", "prod":
	default:
		return invalid("log.env must be dev or prod")
	}

	return nil
}

// TokenConfig maps the auth section onto the token service settings
func (c Config) TokenConfig() auth.TokenConfig {
	return auth.TokenConfig{
		SigningKey: []byte(c.Auth.SigningKey),
		Issuer:     c.Auth.Issuer,
		Audience:   c.Auth.Audience,
		TTL:        time.Duration(c.Auth.TTLMinutes) * time.Minute,
	}
}

// HasherConfig maps the auth section onto the password hasher settings
func (c Config) HasherConfig() auth.HasherConfig {
	return auth.HasherConfig{
		Cost:    c.Auth.BcryptCost,
		Workers: c.Auth.HashWorkers,
		Timeout: time.Duration(c.Auth.HashTimeoutMS) * time.Millisecond,
	}
}

// ReadScope returns the parsed expenses read scope. Call Validate first.
func (c Config) ReadScope() auth.ReadScope {
	scope, err := auth.ParseReadScope(c.Expenses.ReadScope)
	if err != nil {
		return auth.ReadScopeOwner
	}
	return scope
}

func invalid(msg string) error {
	return goerrors.New(msg, goerrors.CategoryValidation).
		WithCode(goerrors.CodeBadRequest)
}

func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.TrimRight(p, "/")
	if p != "" && !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
