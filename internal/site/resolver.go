package site

import (
	"context"
	"log/slog"
	"time"

	"github.com/olgasafonova/wiki-resolver-mcp-server/internal/audit"
	apierrors "github.com/olgasafonova/wiki-resolver-mcp-server/internal/errors"
	"github.com/olgasafonova/wiki-resolver-mcp-server/internal/infra"
	"github.com/olgasafonova/wiki-resolver-mcp-server/internal/locale"
	"github.com/olgasafonova/wiki-resolver-mcp-server/internal/mwapi"
	"github.com/olgasafonova/wiki-resolver-mcp-server/internal/sitecache"
	"github.com/olgasafonova/wiki-resolver-mcp-server/metrics"
	"github.com/olgasafonova/wiki-resolver-mcp-server/tracing"
)

// Freshness is how long a cached siteinfo response is served without refetching.
const Freshness = 12 * time.Hour

type result struct {
	meta    *Metadata
	warning string
}

// Resolver turns base URLs into site metadata. It is safe for concurrent use.
type Resolver struct {
	api       *mwapi.Client
	fetcher   mwapi.Fetcher
	store     sitecache.Store
	auditor   audit.Auditor
	group     *infra.Group[result]
	logger    *slog.Logger
	now       infra.Clock
	freshness time.Duration
	headers   map[string]string
	msgs      locale.Messages
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock replaces time.Now for freshness checks.
func WithClock(now infra.Clock) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// WithAuditor sets the allow/block-list lookup.
func WithAuditor(a audit.Auditor) Option {
	return func(r *Resolver) {
		if a != nil {
			r.auditor = a
		}
	}
}

// WithMessages sets the user-facing phrasing of errors and warnings.
func WithMessages(m locale.Messages) Option {
	return func(r *Resolver) {
		r.msgs = m
	}
}

// WithFreshness overrides the cache freshness window.
func WithFreshness(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.freshness = d
		}
	}
}

// WithHeaders adds headers to the discovery request.
func WithHeaders(h map[string]string) Option {
	return func(r *Resolver) {
		r.headers = h
	}
}

// NewResolver creates a Resolver that fetches through fetcher and caches in store.
func NewResolver(fetcher mwapi.Fetcher, store sitecache.Store, opts ...Option) *Resolver {
	r := &Resolver{
		fetcher:   fetcher,
		store:     store,
		auditor:   audit.None{},
		group:     infra.NewGroup[result](),
		logger:    slog.Default(),
		now:       time.Now,
		freshness: Freshness,
		msgs:      locale.ZhCN,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.api = mwapi.NewClient(fetcher, r.logger)
	return r
}

// API returns the action API client the resolver uses.
func (r *Resolver) API() *mwapi.Client {
	return r.api
}

// Messages returns the resolver's message set.
func (r *Resolver) Messages() locale.Messages {
	return r.msgs
}

// Resolve returns the metadata of the wiki at baseURL. The string is a
// warning for the caller, set when a freshly fetched wiki lacks TextExtracts.
func (r *Resolver) Resolve(ctx context.Context, baseURL string) (*Metadata, string, error) {
	ctx, span := tracing.StartSpan(ctx, "site.resolve")
	defer span.End()
	tracing.AddWikiAttributes(span, baseURL, "")

	api, err := r.DiscoverAPI(ctx, baseURL)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, "", err
	}

	res, shared, err := r.group.Do(ctx, api, func() (result, error) {
		return r.load(ctx, api, baseURL)
	})
	if err != nil {
		tracing.RecordError(span, err)
		return nil, "", err
	}
	if shared {
		r.logger.Debug("joined in-flight site resolution", "api", api)
	}
	return res.meta, res.warning, nil
}

func (r *Resolver) load(ctx context.Context, api, baseURL string) (result, error) {
	membership := r.auditor.Lookup(api)

	entry, ok, err := r.store.Get(ctx, api)
	switch {
	case err != nil:
		r.logger.Warn("site cache lookup failed", "api", api, "error", err)
		metrics.RecordSiteCache(false, "error")
	case !ok:
		metrics.RecordSiteCache(false, "absent")
	case r.now().Sub(entry.UpdatedAt) >= r.freshness:
		metrics.RecordSiteCache(false, "stale")
	default:
		meta, skipped, perr := Parse(api, baseURL, entry.Blob, membership)
		if perr == nil {
			r.logSkipped(api, skipped)
			metrics.RecordSiteCache(true, "")
			return result{meta: meta}, nil
		}
		r.logger.Warn("cached siteinfo is unreadable, refetching", "api", api, "error", perr)
		metrics.RecordSiteCache(false, "corrupt")
	}

	hint := r.msgs.Hint(api)
	blob, err := r.api.SiteInfo(ctx, api)
	if err != nil {
		return result{}, &apierrors.TransportError{
			URL: api, Op: "siteinfo", Message: r.msgs.SiteInfoFailed + err.Error(), Hint: hint, Err: err,
		}
	}

	meta, skipped, err := Parse(api, baseURL, blob, membership)
	if err != nil {
		r.logger.Error("failed to parse siteinfo", "api", api, "error", err)
		return result{}, &apierrors.TransportError{
			URL: api, Op: "siteinfo", Message: r.msgs.SiteInfoFailed + err.Error(), Hint: hint, Err: err,
		}
	}
	r.logSkipped(api, skipped)

	if err := r.store.Upsert(ctx, api, blob); err != nil {
		r.logger.Warn("failed to store siteinfo", "api", api, "error", err)
	}

	res := result{meta: meta}
	if !meta.HasExtension(TextExtracts) {
		res.warning = r.msgs.NoTextExtracts
	}
	return res, nil
}

func (r *Resolver) logSkipped(api string, skipped []EntryError) {
	for _, e := range skipped {
		r.logger.Warn("skipped malformed siteinfo entry", "api", api, "section", e.Section, "key", e.Key, "error", e.Err)
	}
}
