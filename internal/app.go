package internal

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/starford/vaultlinker/internal/ai"
	"github.com/starford/vaultlinker/internal/ai/backends"
	"github.com/starford/vaultlinker/internal/cache"
	"github.com/starford/vaultlinker/internal/index"
	"github.com/starford/vaultlinker/internal/knowledge"
	"github.com/starford/vaultlinker/internal/knowledge/sources"
	"github.com/starford/vaultlinker/internal/linkservice"
	"github.com/starford/vaultlinker/internal/storage"
)

// App holds the components shared by every command.
type App struct {
	Config  *Config
	Logger  *slog.Logger
	Store   *storage.FS
	DB      *index.DB
	Service *linkservice.Service
}

// Close releases the index database.
func (a *App) Close() error {
	return a.DB.Close()
}

// Open builds the service stack for one-shot commands.
func Open(opts ...Option) (*App, error) {
	app, err := newApplication(opts, os.Stdout)
	if err != nil {
		return nil, err
	}
	return app.open(nil)
}

func newApplication(opts []Option, defaultLog io.Writer) (*application, error) {
	app := &application{version: "dev", logOutput: defaultLog}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// NewLogger returns the JSON logger used by every command.
func NewLogger(level slog.Level, w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func (a *application) open(notifier linkservice.Notifier) (*App, error) {
	cfg := a.config

	logger := NewLogger(cfg.App.LogLevel, a.logOutput)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("default_backend", cfg.AI.DefaultBackend),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	store, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	if stats, err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	} else {
		logger.Info("initial sync done",
			slog.Int("indexed", stats.Indexed),
			slog.Int("removed", stats.Removed),
			slog.Int("unchanged", stats.Unchanged))
	}

	backendRegistry := ai.NewRegistry(cfg.AI.Timeout, logger)
	if err := backends.RegisterAll(backendRegistry, cfg.AI.Backends, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init backends: %w", err)
	}

	svcOpts := []linkservice.Option{linkservice.WithSettings(cfg.ServiceSettings())}
	if notifier != nil {
		svcOpts = append(svcOpts, linkservice.WithNotifier(notifier))
	}
	svc := linkservice.New(store, db, newKnowledgeRegistry(&cfg.Knowledge, logger), backendRegistry, logger, svcOpts...)

	return &App{
		Config:  cfg,
		Logger:  logger,
		Store:   store,
		DB:      db,
		Service: svc,
	}, nil
}

func newKnowledgeRegistry(cfg *KnowledgeConfig, logger *slog.Logger) *knowledge.Registry {
	opts := []knowledge.RegistryOption{knowledge.WithTimeout(cfg.Timeout)}
	if len(cfg.Order) > 0 {
		opts = append(opts, knowledge.WithOrder(cfg.Order...))
	}
	kr := knowledge.NewRegistry(cache.New[knowledge.LookupResult](cfg.CacheCapacity, cfg.CacheTTL), logger, opts...)
	for _, p := range sources.All(sources.Settings{
		UserAgent:    cfg.UserAgent,
		GitHubToken:  cfg.GitHubToken,
		ShodanAPIKey: cfg.ShodanAPIKey,
	}) {
		kr.Register(p)
	}
	return kr
}
