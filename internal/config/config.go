package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

var ErrAdminKeyRequired = errors.New("ADMIN_KEY must be configured")

type Config struct {
	AppName     string
	Environment string
	Port        string
	LogLevel    string
	BodyLimit   int64
	NodeID      int64

	Database      DatabaseConfig
	Redis         RedisConfig
	Anthropic     AnthropicConfig
	Perplexity    PerplexityConfig
	Webhook       WebhookConfig
	Admin         AdminConfig
	CORS          CORSConfig
	Observability ObservabilityConfig
}

type DatabaseConfig struct {
	Driver          string
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Enabled reports whether a ledger store is configured at all.
func (c DatabaseConfig) Enabled() bool {
	return strings.TrimSpace(c.URL) != ""
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

type AnthropicConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Version     string
	MaxTokens   int
	HTTPTimeout time.Duration
}

type PerplexityConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	HTTPTimeout time.Duration
}

type WebhookConfig struct {
	// Secret is compared against "Authorization: Bearer <secret>". Empty disables the check.
	Secret   string
	DedupTTL time.Duration
}

type AdminConfig struct {
	Key string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type ObservabilityConfig struct {
	OTLPEndpoint string
	ServiceName  string
}

func (c Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (Config, error) {
	_ = godotenv.Load()
	return load(viper.New())
}

func load(v *viper.Viper) (Config, error) {
	v.AutomaticEnv()
	setDefaults(v)

	cfg := Config{
		AppName:     v.GetString("APP_NAME"),
		Environment: strings.ToLower(strings.TrimSpace(v.GetString("APP_ENV"))),
		Port:        strings.TrimSpace(v.GetString("PORT")),
		LogLevel:    v.GetString("LOG_LEVEL"),
		BodyLimit:   v.GetInt64("BODY_LIMIT_BYTES"),
		NodeID:      v.GetInt64("SNOWFLAKE_NODE_ID"),
		Database: DatabaseConfig{
			Driver:          strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER"))),
			URL:             strings.TrimSpace(v.GetString("DATABASE_URL")),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(v.GetString("REDIS_ADDR")),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Anthropic: AnthropicConfig{
			APIKey:      v.GetString("CLAUDE_API_KEY"),
			BaseURL:     strings.TrimRight(v.GetString("CLAUDE_BASE_URL"), "/"),
			Model:       v.GetString("CLAUDE_MODEL"),
			Version:     v.GetString("CLAUDE_API_VERSION"),
			MaxTokens:   v.GetInt("CLAUDE_MAX_TOKENS"),
			HTTPTimeout: v.GetDuration("GATEWAY_TIMEOUT"),
		},
		Perplexity: PerplexityConfig{
			APIKey:      v.GetString("PERPLEXITY_API_KEY"),
			BaseURL:     strings.TrimRight(v.GetString("PERPLEXITY_BASE_URL"), "/"),
			Model:       v.GetString("PERPLEXITY_MODEL"),
			HTTPTimeout: v.GetDuration("GATEWAY_TIMEOUT"),
		},
		Webhook: WebhookConfig{
			Secret:   v.GetString("REVENUECAT_WEBHOOK_SECRET"),
			DedupTTL: v.GetDuration("WEBHOOK_DEDUP_TTL"),
		},
		Admin: AdminConfig{
			Key: v.GetString("ADMIN_KEY"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Observability: ObservabilityConfig{
			OTLPEndpoint: strings.TrimSpace(v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT")),
			ServiceName:  v.GetString("OTEL_SERVICE_NAME"),
		},
	}

	if strings.TrimSpace(cfg.Admin.Key) == "" {
		return Config{}, ErrAdminKeyRequired
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_NAME", "gains-backend")
	v.SetDefault("APP_ENV", EnvProduction)
	v.SetDefault("PORT", "3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("BODY_LIMIT_BYTES", 50<<20)
	v.SetDefault("SNOWFLAKE_NODE_ID", 1)

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", 30*time.Minute)

	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("CLAUDE_BASE_URL", "https://api.anthropic.com")
	v.SetDefault("CLAUDE_MODEL", "claude-sonnet-4-20250514")
	v.SetDefault("CLAUDE_API_VERSION", "2023-06-01")
	v.SetDefault("CLAUDE_MAX_TOKENS", 2048)
	v.SetDefault("PERPLEXITY_BASE_URL", "https://api.perplexity.ai")
	v.SetDefault("PERPLEXITY_MODEL", "sonar")
	v.SetDefault("GATEWAY_TIMEOUT", 2*time.Minute)

	v.SetDefault("WEBHOOK_DEDUP_TTL", 72*time.Hour)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("OTEL_SERVICE_NAME", "gains-backend")
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
