// Package config loads launch layer configuration from the environment and
// from the launch catalog YAML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config holds process level settings decoded from environment variables.
type Config struct {
	HTTPAddr         string `env:"HTTP_ADDR,default=:8080"`
	LogLevel         string `env:"LOG_LEVEL,default=info"`
	LogFormat        string `env:"LOG_FORMAT,default=json"`
	DataDir          string `env:"DATA_DIR,default=."`
	LaunchConfigPath string `env:"LAUNCH_CONFIG,default=config/launch.yaml"`

	SupabaseURL        string `env:"SUPABASE_URL"`
	SupabaseServiceKey string `env:"SUPABASE_SERVICE_KEY"`
	DatabaseURL        string `env:"DATABASE_URL"`
	RedisURL           string `env:"REDIS_URL"`

	AdminJWTSecret string   `env:"ADMIN_JWT_SECRET"`
	AdminUserIDs   []string `env:"ADMIN_USER_IDS"`
	CORSOrigins    []string `env:"CORS_ORIGINS,default=*"`
	RateLimitRPS   int      `env:"RATE_LIMIT_RPS,default=20"`
	RateLimitBurst int      `env:"RATE_LIMIT_BURST,default=40"`

	DeployerPrivateKey  string        `env:"DEPLOYER_PRIVATE_KEY"`
	FundingNetwork      string        `env:"FUNDING_NETWORK,default=polygon"`
	FundingThreshold    string        `env:"FUNDING_THRESHOLD,default=0.1"`
	FundingPollInterval time.Duration `env:"FUNDING_POLL_INTERVAL,default=30s"`
	TokenArtifact       string        `env:"TOKEN_ARTIFACT,default=artifacts/GuardianToken.json"`
}

// Default returns the configuration used when no environment is set.
func Default() Config {
	return Config{
		HTTPAddr:            ":8080",
		LogLevel:            "info",
		LogFormat:           "json",
		DataDir:             ".",
		LaunchConfigPath:    "config/launch.yaml",
		CORSOrigins:         []string{"*"},
		RateLimitRPS:        20,
		RateLimitBurst:      40,
		FundingNetwork:      "polygon",
		FundingThreshold:    "0.1",
		FundingPollInterval: 30 * time.Second,
		TokenArtifact:       "artifacts/GuardianToken.json",
	}
}

// Load reads an optional .env file and decodes the environment.
func Load() (Config, error) {
	return LoadWithEnvFiles(".env")
}

// LoadWithEnvFiles loads the given dotenv files (missing files are ignored)
// and decodes the environment into a Config.
func LoadWithEnvFiles(files ...string) (Config, error) {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		if !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
			return Config{}, fmt.Errorf("decode environment: %w", err)
		}
		cfg = Default()
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges that envdecode cannot express.
func (c Config) Validate() error {
	if c.RateLimitRPS <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be positive")
	}
	if c.RateLimitBurst < c.RateLimitRPS {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= RATE_LIMIT_RPS")
	}
	if c.FundingPollInterval < time.Second {
		return fmt.Errorf("FUNDING_POLL_INTERVAL must be at least 1s")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("DATA_DIR must not be empty")
	}
	return nil
}

// SupabaseConfigured reports whether Supabase credentials are present.
func (c Config) SupabaseConfigured() bool {
	return c.SupabaseURL != "" && c.SupabaseServiceKey != ""
}
