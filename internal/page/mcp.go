package page

import (
	"context"

	apierrors "github.com/olgasafonova/wiki-resolver-mcp-server/internal/errors"
	"github.com/olgasafonova/wiki-resolver-mcp-server/internal/site"
)

// MCP Tool wrapper methods
// These methods wrap the engine with Args/Result types for MCP integration.

// wiki picks the requested wiki or the configured default.
func (e *Engine) wiki(requested string) (string, error) {
	if requested != "" {
		return requested, nil
	}
	if e.cfg.DefaultWiki != "" {
		return e.cfg.DefaultWiki, nil
	}
	return "", apierrors.NewValidationError("wiki", "", "no wiki given and WIKI_RESOLVER_DEFAULT_WIKI is not set")
}

// ResolvePageMCP is the MCP wrapper for Resolver.ResolvePage
func (e *Engine) ResolvePageMCP(ctx context.Context, args ResolvePageArgs) (ResolvePageResult, error) {
	wiki, err := e.wiki(args.Wiki)
	if err != nil {
		return ResolvePageResult{}, err
	}

	var q Query
	switch {
	case args.Title != nil:
		q = TitleQuery(*args.Title)
	case args.PageID != nil:
		if *args.PageID <= 0 {
			return ResolvePageResult{}, apierrors.NewValidationError("page_id", "", "must be a positive integer")
		}
		q = IDQuery(*args.PageID)
	default:
		return ResolvePageResult{}, apierrors.NewValidationError("title", "", "either title or page_id is required")
	}

	d, err := e.For(wiki).ResolvePage(ctx, q)
	if err != nil {
		return ResolvePageResult{}, err
	}
	return newResolvePageResult(wiki, d), nil
}

// RandomPageMCP is the MCP wrapper for Resolver.RandomPage
func (e *Engine) RandomPageMCP(ctx context.Context, args RandomPageArgs) (ResolvePageResult, error) {
	wiki, err := e.wiki(args.Wiki)
	if err != nil {
		return ResolvePageResult{}, err
	}
	d, err := e.For(wiki).RandomPage(ctx)
	if err != nil {
		return ResolvePageResult{}, err
	}
	return newResolvePageResult(wiki, d), nil
}

// SiteInfoMCP is the MCP wrapper for Engine.SiteInfo
func (e *Engine) SiteInfoMCP(ctx context.Context, args SiteInfoArgs) (SiteInfoResult, error) {
	wiki, err := e.wiki(args.Wiki)
	if err != nil {
		return SiteInfoResult{}, err
	}
	meta, warning, err := e.SiteInfo(ctx, wiki)
	if err != nil {
		return SiteInfoResult{}, err
	}
	return SiteInfoResult{
		API:          meta.API,
		Name:         meta.Name,
		Homepage:     meta.Homepage(),
		ArticlePath:  meta.ArticlePath,
		Script:       meta.Script,
		LogoURL:      meta.LogoURL,
		Extensions:   meta.Extensions,
		Interwiki:    meta.Interwiki,
		InAllowList:  meta.InAllowList,
		InBlockList:  meta.InBlockList,
		TextExtracts: meta.HasExtension(site.TextExtracts),
		Warning:      warning,
	}, nil
}

func newResolvePageResult(wiki string, d *Descriptor) ResolvePageResult {
	res := ResolvePageResult{Wiki: wiki, Page: d}
	if d.Site != nil {
		res.SiteName = d.Site.Name
	}
	if !d.Status && d.Cause != nil {
		res.Error = d.Cause.Error()
	}
	return res
}
