// Package bootstrap assembles the pipeline from configuration. It is shared
// by the server and the CLI.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	env "github.com/caarlos0/env/v11"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"resume-forge/config"
	"resume-forge/internal/adapter/repository"
	"resume-forge/internal/domain"
	"resume-forge/internal/infrastructure/migration"
	"resume-forge/internal/model"
	"resume-forge/internal/notify"
	"resume-forge/internal/usecase"
	"resume-forge/pkg/ai"
	"resume-forge/pkg/infrastructure"
)

// LoadConfig loads configuration from environment variables.
func LoadConfig() (config.AppConfig, error) {
	// Load .env file if it exists (development)
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.Sanitize()
	return cfg, nil
}

// InitLogger initializes the structured logger and makes it the default.
func InitLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// Backends holds the storage side of the pipeline.
type Backends struct {
	Jobs     usecase.JobStore
	Settings usecase.SettingsStore
	Guard    usecase.RunGuard
	Redis    redis.UniversalClient
	Pool     *pgxpool.Pool
}

// Close releases any connections opened by NewBackends.
func (b *Backends) Close() {
	if b.Pool != nil {
		b.Pool.Close()
	}
	if b.Redis != nil {
		_ = b.Redis.Close()
	}
}

// NewBackends connects the configured store. A Redis client is also opened
// when a notification channel is configured.
func NewBackends(ctx context.Context, cfg config.AppConfig, logger *slog.Logger) (*Backends, error) {
	opts := repository.Options{MaxHistory: cfg.Pipeline.MaxHistory}
	b := &Backends{}

	needRedis := cfg.Store.Backend == config.StoreRedis || cfg.Notify.RedisChannel != ""
	if needRedis {
		client, err := infrastructure.NewRedisClient(ctx, infrastructure.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		b.Redis = client
	}

	switch cfg.Store.Backend {
	case config.StoreRedis:
		store := repository.NewRedisStore(b.Redis, cfg.Redis.KeyPrefix, opts)
		b.Jobs, b.Settings = store, store.Settings()
		b.Guard = repository.NewRedisRunGuard(b.Redis, cfg.Redis.KeyPrefix, cfg.Pipeline.RunGuardTTL)
	case config.StorePostgres:
		pool, err := infrastructure.NewJobsPool(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Pool = pool
		if err := migration.RunMigrations(ctx, pool); err != nil {
			b.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		store := repository.NewPostgresStore(pool, opts)
		b.Jobs, b.Settings = store, store.Settings()
		b.Guard = usecase.NewLocalRunGuard()
	default:
		store := repository.NewMemoryStore(opts)
		b.Jobs, b.Settings = store, store.Settings()
		b.Guard = usecase.NewLocalRunGuard()
	}

	logger.Info("store ready", "backend", cfg.Store.Backend, "max_history", opts.MaxHistory)
	return b, nil
}

// NewNotifier builds the notification fan-out from configuration.
func NewNotifier(cfg config.NotifyConfig, redisClient redis.UniversalClient, logger *slog.Logger) (*notify.Service, error) {
	sinks := []notify.SinkRegistration{{Name: "log", Sink: notify.NewLogSink(logger.With("component", "notifications"))}}
	if cfg.WebhookURL != "" {
		hook, err := notify.NewWebhookSink(notify.WebhookConfig{URL: cfg.WebhookURL, RetryLimit: 2})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, notify.SinkRegistration{Name: "webhook", Sink: hook})
	}
	if cfg.RedisChannel != "" && redisClient != nil {
		sinks = append(sinks, notify.SinkRegistration{Name: "redis", Sink: notify.NewRedisSink(redisClient, cfg.RedisChannel)})
	}
	return notify.NewService(notify.Options{Logger: logger, Sinks: sinks}), nil
}

// NewGenerator builds the generation client.
func NewGenerator(cfg config.GeneratorConfig, logger *slog.Logger) *ai.Client {
	return ai.NewClient(ai.Config{
		BaseURL:    cfg.BaseURL,
		APIVersion: cfg.APIVersion,
		Timeout:    cfg.Timeout,
		MaxTokens:  cfg.MaxTokens,
		Logger:     logger.With("component", "generator"),
	})
}

// NewCompiler builds the compilation client.
func NewCompiler(cfg config.CompilerConfig, logger *slog.Logger) *infrastructure.LatexCompiler {
	return infrastructure.NewLatexCompiler(infrastructure.CompilerConfig{
		Endpoint: cfg.URL,
		Timeout:  cfg.Timeout,
		Engine:   cfg.Engine,
		Logger:   logger.With("component", "compiler"),
	})
}

// NewProcessor wires the pipeline driver.
func NewProcessor(cfg config.AppConfig, b *Backends, n usecase.Notifier, logger *slog.Logger) *usecase.Processor {
	return usecase.NewProcessor(usecase.Dependencies{
		Jobs:      b.Jobs,
		Settings:  b.Settings,
		Generator: NewGenerator(cfg.Generator, logger),
		Compiler:  NewCompiler(cfg.Compiler, logger),
		Notifier:  n,
		Guard:     b.Guard,
		Logger:    logger.With("component", "processor"),
	}, usecase.ProcessorConfig{
		MaxTrimAttempts: cfg.Pipeline.MaxTrimAttempts,
		TrimMaxTokens:   cfg.Generator.TrimMaxTokens,
		MaxTokens:       cfg.Generator.MaxTokens,
	})
}

// SettingsFromResume parses raw resume text into a settings record.
func SettingsFromResume(apiKey, modelName, compilerURL, raw string) (domain.Settings, error) {
	res, err := model.ParseResume(raw)
	if err != nil {
		return domain.Settings{}, err
	}
	if err := res.Err(); err != nil {
		return domain.Settings{}, err
	}
	return domain.Settings{
		APIKey:      strings.TrimSpace(apiKey),
		Model:       strings.TrimSpace(modelName),
		CompilerURL: strings.TrimSpace(compilerURL),
		Resume:      &res.Data,
		RawResume:   raw,
	}, nil
}

// SeedSettings stores settings from the environment when none are saved yet.
func SeedSettings(ctx context.Context, cfg config.SeedConfig, store usecase.SettingsStore, logger *slog.Logger) error {
	current, err := store.Get(ctx)
	if err != nil {
		return err
	}
	if len(current.Missing()) == 0 || cfg.APIKey == "" || cfg.ResumeFile == "" {
		return nil
	}
	raw, err := os.ReadFile(cfg.ResumeFile)
	if err != nil {
		return fmt.Errorf("read resume file: %w", err)
	}
	st, err := SettingsFromResume(cfg.APIKey, cfg.Model, current.CompilerURL, string(raw))
	if err != nil {
		return fmt.Errorf("parse resume file: %w", err)
	}
	if err := store.Set(ctx, st); err != nil {
		return err
	}
	logger.Info("settings seeded from environment", "resume_file", cfg.ResumeFile, "model", st.Model)
	return nil
}
