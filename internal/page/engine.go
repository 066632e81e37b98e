package page

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/olgasafonova/wiki-resolver-mcp-server/internal/audit"
	"github.com/olgasafonova/wiki-resolver-mcp-server/internal/base"
	"github.com/olgasafonova/wiki-resolver-mcp-server/internal/locale"
	"github.com/olgasafonova/wiki-resolver-mcp-server/internal/moderation"
	"github.com/olgasafonova/wiki-resolver-mcp-server/internal/mwapi"
	"github.com/olgasafonova/wiki-resolver-mcp-server/internal/site"
	"github.com/olgasafonova/wiki-resolver-mcp-server/internal/sitecache"
)

// memoryCacheSize bounds the in-memory site cache.
const memoryCacheSize = 512

// Engine owns the shared pieces of page resolution: the site resolver with
// its cache, the moderation checker and the configuration.
type Engine struct {
	sites   *site.Resolver
	api     *mwapi.Client
	checker moderation.Checker
	cfg     Config
	msgs    locale.Messages
	logger  *slog.Logger
	closers []io.Closer
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithChecker sets the moderation checker.
func WithChecker(c moderation.Checker) EngineOption {
	return func(e *Engine) {
		if c != nil {
			e.checker = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an Engine on top of an existing site resolver.
func NewEngine(sites *site.Resolver, cfg Config, opts ...EngineOption) *Engine {
	e := &Engine{
		sites:   sites,
		api:     sites.API(),
		checker: moderation.PassAll,
		cfg:     cfg,
		msgs:    sites.Messages(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Open builds an Engine with the default collaborators selected by cfg:
// an SQLite or in-memory site cache, the audit file and the word-list checker.
func Open(cfg Config, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fetcher := base.NewClient(
		base.WithLogger(logger),
		base.WithTimeout(cfg.Timeout),
		base.WithMaxRetry(cfg.MaxRetries),
		base.WithUserAgent(cfg.UserAgent),
		base.WithHeader("Accept-Language", cfg.AcceptLanguage),
	)

	var (
		store   sitecache.Store
		closers []io.Closer
	)
	if cfg.CachePath != "" {
		s, err := sitecache.OpenSQLite(cfg.CachePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open site cache: %w", err)
		}
		store = s
		closers = append(closers, s)
		logger.Info("site cache opened", "path", s.Path())
	} else {
		s := sitecache.NewMemoryStore(memoryCacheSize)
		store = s
		closers = append(closers, s)
	}

	var auditor audit.Auditor = audit.None{}
	if cfg.AuditFile != "" {
		l, err := audit.Load(cfg.AuditFile)
		if err != nil {
			closeAll(closers)
			return nil, err
		}
		auditor = l
	}

	checker := moderation.PassAll
	if cfg.BlockedWordsFile != "" {
		wl, err := moderation.LoadWordList(cfg.BlockedWordsFile)
		if err != nil {
			closeAll(closers)
			return nil, err
		}
		checker = wl
		logger.Info("moderation word list loaded", "words", wl.Len())
	}

	msgs := cfg.Messages()
	sites := site.NewResolver(fetcher, store,
		site.WithLogger(logger),
		site.WithAuditor(auditor),
		site.WithMessages(msgs),
	)

	e := NewEngine(sites, cfg, WithChecker(checker), WithLogger(logger))
	e.closers = closers
	return e, nil
}

// For returns a resolver bound to the wiki at baseURL.
func (e *Engine) For(baseURL string) *Resolver {
	return &Resolver{engine: e, baseURL: baseURL}
}

// Sites returns the site resolver.
func (e *Engine) Sites() *site.Resolver {
	return e.sites
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// SiteInfo resolves the metadata of the wiki at baseURL.
func (e *Engine) SiteInfo(ctx context.Context, baseURL string) (*site.Metadata, string, error) {
	return e.sites.Resolve(ctx, baseURL)
}

// Close releases the site cache.
func (e *Engine) Close() error {
	return closeAll(e.closers)
}

func closeAll(closers []io.Closer) error {
	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
