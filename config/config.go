package config

import (
	"strings"
	"time"
)

// StoreBackend selects where job history and settings live.
type StoreBackend string

const (
	StoreMemory   StoreBackend = "memory"
	StoreRedis    StoreBackend = "redis"
	StorePostgres StoreBackend = "postgres"
)

// AppConfig is the root configuration, loaded from environment variables
// with github.com/caarlos0/env. See the nested structs for variables.
type AppConfig struct {
	HTTP      HTTPConfig
	Store     StoreConfig
	Redis     RedisConfig `envPrefix:"REDIS_"`
	Generator GeneratorConfig
	Compiler  CompilerConfig
	Pipeline  PipelineConfig
	Notify    NotifyConfig
	Seed      SeedConfig
	Logging   LoggingConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Store.Sanitize()
	c.Generator.Sanitize()
	c.Compiler.Sanitize()
	c.Pipeline.Sanitize()
	c.Logging.Sanitize()
}

type HTTPConfig struct {
	Port            int           `env:"HTTP_PORT"             envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"15s"`
	BodyLimitMB     int           `env:"HTTP_BODY_LIMIT_MB"    envDefault:"4"`
}

func (h *HTTPConfig) Sanitize() {
	if h.Port <= 0 || h.Port > 65535 {
		h.Port = 8080
	}
	if h.ShutdownTimeout <= 0 {
		h.ShutdownTimeout = 15 * time.Second
	}
	if h.BodyLimitMB <= 0 {
		h.BodyLimitMB = 4
	}
}

type StoreConfig struct {
	Backend     StoreBackend `env:"STORE_BACKEND"     envDefault:"memory"`
	DatabaseURL string       `env:"JOBS_DATABASE_URL"`
}

func (s *StoreConfig) Sanitize() {
	switch StoreBackend(strings.ToLower(strings.TrimSpace(string(s.Backend)))) {
	case StoreRedis:
		s.Backend = StoreRedis
	case StorePostgres:
		s.Backend = StorePostgres
	default:
		s.Backend = StoreMemory
	}
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Addr      string `env:"ADDR"       envDefault:"localhost:6379"`
	Password  string `env:"PASSWORD"   envDefault:""`
	DB        int    `env:"DB"         envDefault:"0"`
	KeyPrefix string `env:"KEY_PREFIX" envDefault:"resumeforge:"`
}

type GeneratorConfig struct {
	BaseURL       string        `env:"GENERATOR_BASE_URL"        envDefault:"https://api.anthropic.com"`
	APIVersion    string        `env:"GENERATOR_API_VERSION"     envDefault:"2023-06-01"`
	Timeout       time.Duration `env:"GENERATOR_TIMEOUT"         envDefault:"90s"`
	MaxTokens     int           `env:"GENERATOR_MAX_TOKENS"      envDefault:"4000"`
	TrimMaxTokens int           `env:"GENERATOR_TRIM_MAX_TOKENS" envDefault:"8000"`
}

func (g *GeneratorConfig) Sanitize() {
	g.BaseURL = strings.TrimRight(strings.TrimSpace(g.BaseURL), "/")
	if g.Timeout <= 0 {
		g.Timeout = 90 * time.Second
	}
	if g.MaxTokens <= 0 {
		g.MaxTokens = 4000
	}
	if g.TrimMaxTokens <= 0 {
		g.TrimMaxTokens = 8000
	}
}

type CompilerConfig struct {
	URL     string        `env:"COMPILER_URL"     envDefault:"https://latex.ytotech.com/builds/sync"`
	Timeout time.Duration `env:"COMPILER_TIMEOUT" envDefault:"60s"`
	Engine  string        `env:"COMPILER_ENGINE"  envDefault:"pdflatex"`
}

func (c *CompilerConfig) Sanitize() {
	c.URL = strings.TrimSpace(c.URL)
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if strings.TrimSpace(c.Engine) == "" {
		c.Engine = "pdflatex"
	}
}

type PipelineConfig struct {
	MaxHistory      int           `env:"PIPELINE_MAX_HISTORY"       envDefault:"20"`
	MaxTrimAttempts int           `env:"PIPELINE_MAX_TRIM_ATTEMPTS" envDefault:"2"`
	RunGuardTTL     time.Duration `env:"RUN_GUARD_TTL"              envDefault:"10m"`
}

func (p *PipelineConfig) Sanitize() {
	if p.MaxHistory <= 0 {
		p.MaxHistory = 20
	}
	if p.MaxTrimAttempts < 0 {
		p.MaxTrimAttempts = 0
	}
	if p.MaxTrimAttempts > 5 {
		p.MaxTrimAttempts = 5
	}
	if p.RunGuardTTL < time.Minute {
		p.RunGuardTTL = 10 * time.Minute
	}
}

type NotifyConfig struct {
	WebhookURL   string `env:"NOTIFY_WEBHOOK_URL"`
	RedisChannel string `env:"NOTIFY_REDIS_CHANNEL"`
}

// SeedConfig pre-populates settings at startup when the store has none.
type SeedConfig struct {
	APIKey     string `env:"ANTHROPIC_API_KEY"`
	Model      string `env:"ANTHROPIC_MODEL" envDefault:"claude-sonnet-4-5-20250929"`
	ResumeFile string `env:"RESUME_FILE"`
}

type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL"  envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

func (l *LoggingConfig) Sanitize() {
	l.Level = strings.ToLower(strings.TrimSpace(l.Level))
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		l.Level = "info"
	}
	l.Format = strings.ToLower(strings.TrimSpace(l.Format))
	if l.Format != "text" {
		l.Format = "json"
	}
}
