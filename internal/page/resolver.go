package page

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	apierrors "github.com/olgasafonova/wiki-resolver-mcp-server/internal/errors"
	"github.com/olgasafonova/wiki-resolver-mcp-server/internal/moderation"
	"github.com/olgasafonova/wiki-resolver-mcp-server/internal/mwapi"
	"github.com/olgasafonova/wiki-resolver-mcp-server/internal/site"
	"github.com/olgasafonova/wiki-resolver-mcp-server/internal/textextract"
	"github.com/olgasafonova/wiki-resolver-mcp-server/metrics"
	"github.com/olgasafonova/wiki-resolver-mcp-server/tracing"
)

// MaxInterwikiDepth is the number of interwiki hops a resolution may take.
const MaxInterwikiDepth = 5

var (
	// The last {{documentation}} transclusion on a template page.
	docTransclusion = regexp.MustCompile(`(?is)^.*\{\{documentation\|?(.*?)\}\}`)
	docLinkArg      = regexp.MustCompile(`(?is)^link=(.*)`)
)

// Resolver resolves pages on one wiki. It is cheap to create; all shared
// state lives in the Engine.
type Resolver struct {
	engine  *Engine
	baseURL string
}

// BaseURL returns the wiki the resolver is bound to.
func (r *Resolver) BaseURL() string {
	return r.baseURL
}

// ResolvePage resolves q into a descriptor. Failures the wiki reports about
// the page itself (missing, invalid, redacted) come back as a descriptor with
// Status false; the error is reserved for transport failures, a query with
// neither title nor ID, and runaway interwiki chains.
func (r *Resolver) ResolvePage(ctx context.Context, q Query) (*Descriptor, error) {
	start := time.Now()
	d, err := r.resolve(ctx, q)
	duration := time.Since(start).Seconds()
	if err != nil {
		metrics.RecordPageResolution("error", duration)
		return nil, err
	}
	metrics.RecordPageResolution(outcome(d), duration)
	return &d, nil
}

// RandomPage resolves a random page of the wiki's main namespace.
func (r *Resolver) RandomPage(ctx context.Context) (*Descriptor, error) {
	meta, _, err := r.engine.sites.Resolve(ctx, r.baseURL)
	if err != nil {
		return nil, err
	}
	title, err := r.engine.api.Random(ctx, meta.API)
	if err != nil {
		return nil, fmt.Errorf("failed to pick a random page: %w", err)
	}
	return r.ResolvePage(ctx, TitleQuery(title))
}

func outcome(d Descriptor) string {
	switch {
	case d.Redacted:
		return "redacted"
	case d.Status:
		return "found"
	default:
		return "not_found"
	}
}

func (r *Resolver) resolve(ctx context.Context, q Query) (Descriptor, error) {
	if q.Title == nil && q.PageID == nil {
		return Descriptor{}, apierrors.ErrNoTitleOrID
	}

	ctx, span := tracing.StartSpan(ctx, "page.resolve")
	defer span.End()
	tracing.AddWikiAttributes(span, r.baseURL, deref(q.Title))
	tracing.AddResolutionAttributes(span, q.InterwikiDepth, q.DocMode, q.InterwikiMode)

	d, err := r.resolveOnSite(ctx, q)
	if err != nil {
		tracing.RecordError(span, err)
	}
	return d, err
}

func (r *Resolver) resolveOnSite(ctx context.Context, q Query) (Descriptor, error) {
	logger := r.engine.logger.With("site", r.baseURL, "depth", q.InterwikiDepth)
	msgs := r.engine.msgs

	meta, warning, err := r.engine.sites.Resolve(ctx, r.baseURL)
	if err != nil {
		logger.Warn("site resolution failed", "error", err)
		return r.siteFailure(q, err), nil
	}

	if q.InterwikiDepth > MaxInterwikiDepth {
		return Descriptor{}, &apierrors.RunawayRecursionError{
			Title: deref(q.Title),
			Depth: q.InterwikiDepth,
			Limit: MaxInterwikiDepth,
		}
	}

	banReason := ""
	if meta.Banned() {
		banReason = "blocklist"
	}

	var (
		d  Descriptor
		pq mwapi.PageQuery
	)
	if q.Title != nil {
		if *q.Title == "" {
			d = newDescriptor(meta, ptr(""), q.InterwikiPrefix)
			d.Link = ptr(meta.Homepage())
			d.Warning = warning
			return d, nil
		}
		title, args, section := splitTitle(*q.Title)
		d = newDescriptor(meta, &title, q.InterwikiPrefix)
		d.Args = args
		d.Section = section
		pq.Title = &title
	} else {
		d = newDescriptor(meta, nil, q.InterwikiPrefix)
		pq.PageID = q.PageID
	}
	d.Warning = warning
	pq.WithExtract = meta.HasExtension(site.TextExtracts) && d.Section == nil

	query, err := r.engine.api.QueryPage(ctx, meta.API, pq)
	if err != nil {
		return Descriptor{}, fmt.Errorf("failed to query page on %s: %w", meta.API, err)
	}
	if query == nil {
		d.Link = nil
		d.Status = false
		d.Description = ptr(msgs.EmptyQuery)
		return d, nil
	}

	requested := deref(pq.Title)
	for _, p := range query.Redirects {
		if pq.Title != nil && p.From == requested {
			d.BeforeTitle = ptr(p.From)
			d.Title = ptr(p.To)
		}
	}
	for _, p := range query.Normalized {
		if pq.Title != nil && p.From == requested {
			d.BeforeTitle = ptr(p.From)
			d.Title = ptr(p.To)
		}
	}

	for _, key := range sortedPageKeys(query.Pages) {
		d, err = r.applyPage(ctx, logger, meta, q, pq, d, key, query.Pages[key])
		if err != nil {
			return Descriptor{}, err
		}
	}

	for _, iw := range query.Interwiki {
		if d.Title == nil || iw.Title != *d.Title {
			continue
		}
		d, err = r.followInterwiki(ctx, logger, meta, q, d, iw)
		if err != nil {
			return Descriptor{}, err
		}
	}

	if banReason == "" && r.engine.cfg.ModerationEnabled && !meta.InAllowList {
		banReason = r.moderate(ctx, logger, d)
	}
	if banReason != "" {
		metrics.RecordModerationRejection(banReason)
		d = r.redact(d, banReason)
	}
	return d, nil
}

// siteFailure describes a wiki that could not be resolved. A base URL that is
// itself a "$1" link template still yields a best-effort link.
func (r *Resolver) siteFailure(q Query, err error) Descriptor {
	d := newDescriptor(nil, nil, q.InterwikiPrefix)
	switch {
	case q.Title != nil:
		d.Title = ptr(*q.Title)
		if strings.Contains(r.baseURL, "$1") {
			d.Link = ptr(strings.ReplaceAll(r.baseURL, "$1", site.EscapeTitle(*q.Title)))
		}
	case q.PageID != nil:
		d.Title = ptr(strconv.Itoa(*q.PageID))
		d.ID = *q.PageID
	}
	d.Status = false
	d.Description = ptr(r.engine.msgs.ErrorPrefix + err.Error())
	d.Cause = err
	return d
}

func (r *Resolver) applyPage(ctx context.Context, logger *slog.Logger, meta *site.Metadata, q Query, pq mwapi.PageQuery, d Descriptor, key string, p mwapi.Page) (Descriptor, error) {
	if id, err := strconv.Atoi(key); err == nil {
		d.ID = id
	}

	cur := deref(d.Title)
	if d.Title == nil && p.Title != nil {
		cur = *p.Title
	}

	if p.Missing {
		switch {
		case p.Title == nil:
			logger.Warn("missing page without a title", "key", key)
			d.Status = false
			d.Link = nil
			d.Description = nil
		case bool(p.Invalid):
			d.Description = ptr(r.engine.msgs.InvalidTitle(p.InvalidReason))
			d.Status = false
			d.Cause = &apierrors.InvalidPageTitleError{Title: cur, Reason: p.InvalidReason}
		case bool(p.Known):
			d.Link = ptr(meta.ArticleURL(cur) + d.Args)
			if file, ok := p.FileURL(); ok {
				d.File = ptr(file)
			}
			d.Status = true
		default:
			if rest, ok := meta.TemplateName(cur); ok {
				sub, err := r.resolve(ctx, Query{
					Title:           ptr(rest + rawSuffix(q)),
					InterwikiDepth:  q.InterwikiDepth,
					InterwikiPrefix: q.InterwikiPrefix,
				})
				if err != nil {
					return d, err
				}
				d.Title = sub.Title
				d.Link = sub.Link
				d.Description = sub.Description
				d.File = sub.File
				d.BeforeTitle = ptr(cur)
				d.BeforePageProperty = PropertyTemplate
				d.Status = sub.Status
				return d, nil
			}
			suggestion, err := r.engine.api.Search(ctx, meta.API, cur)
			if err != nil {
				return d, fmt.Errorf("failed to search %s: %w", meta.API, err)
			}
			d.Title = nil
			if suggestion != "" {
				d.Title = ptr(suggestion)
			}
			d.BeforeTitle = ptr(cur)
			d.InvalidNamespace = unknownNamespace(meta, cur)
			d.Status = false
		}
		return d, nil
	}

	if p.Special {
		d.Link = ptr(meta.ArticleURL(cur) + d.Args)
		d.Status = true
		return d, nil
	}

	title := cur
	if p.Title != nil {
		title = *p.Title
	}

	desc := ""
	describe := true
	if !q.DocMode {
		if _, ok := meta.TemplateName(title); ok {
			wikitext, err := r.engine.api.ParseWikitext(ctx, meta.API, title)
			if err != nil {
				logger.Warn("failed to fetch template wikitext", "title", title, "error", err)
			}
			if m := docTransclusion.FindStringSubmatch(wikitext); m != nil {
				target := title + "/doc"
				if lm := docLinkArg.FindStringSubmatch(m[1]); lm != nil {
					target = lm[1]
				}
				describe = false
				doc, err := r.resolve(ctx, Query{Title: &target, DocMode: true, InterwikiDepth: q.InterwikiDepth})
				if err != nil {
					return d, err
				}
				desc = deref(doc.Description)
				d.BeforePageProperty = PropertyTemplate
				d.PageProperty = PropertyTemplate
			}
		}
	}

	if describe {
		var err error
		desc, err = r.describe(ctx, meta, pq.WithExtract, p, title, d.Section)
		if err != nil {
			return d, err
		}
	}

	link := p.FullURL + d.Args
	if !q.InterwikiMode && d.Args == "" {
		link = meta.Script + "?curid=" + strconv.Itoa(d.ID)
	}

	d.Title = ptr(title)
	d.Link = ptr(link)
	d.File = nil
	if file, ok := p.FileURL(); ok {
		d.File = ptr(file)
	}
	d.Description = ptr(desc)
	return d, nil
}

// describe summarizes the page, from the extract when one was requested and
// otherwise from the rendered (optionally sectioned) HTML.
func (r *Resolver) describe(ctx context.Context, meta *site.Metadata, withExtract bool, p mwapi.Page, title string, section *string) (string, error) {
	if withExtract {
		if p.Extract == nil {
			return "", nil
		}
		return textextract.Summarize(*p.Extract), nil
	}

	rendered, err := r.engine.api.ParseText(ctx, meta.API, title)
	if err != nil {
		return "", fmt.Errorf("failed to render %q on %s: %w", title, meta.API, err)
	}
	text, err := textextract.HTMLToText(rendered)
	if err != nil {
		return "", err
	}
	return textextract.Summarize(textextract.ExtractSection(text, deref(section))), nil
}

func (r *Resolver) followInterwiki(ctx context.Context, logger *slog.Logger, meta *site.Metadata, q Query, d Descriptor, iw mwapi.InterwikiTitle) (Descriptor, error) {
	target, ok := meta.Interwiki[iw.IW]
	if !ok {
		logger.Warn("interwiki prefix has no map entry", "prefix", iw.IW)
		d.Status = false
		d.Link = nil
		d.Description = nil
		return d, nil
	}

	rest := strings.TrimPrefix(iw.Title, iw.IW+":")
	depth := q.InterwikiDepth + 1
	metrics.RecordInterwikiHop(depth)

	sub, err := r.engine.For(target).resolve(ctx, Query{
		Title:           &rest,
		InterwikiDepth:  depth,
		InterwikiPrefix: q.InterwikiPrefix + iw.IW + ":",
		InterwikiMode:   true,
	})
	if err != nil {
		return d, err
	}

	before := d
	d = sub
	if d.Title != nil && *d.Title == "" {
		d.Title = before.Title
		return d, nil
	}
	if d.Title == nil {
		d.BeforeTitle = before.Title
		return d, nil
	}

	args := before.Args
	if unescaped, err := url.PathUnescape(args); err == nil {
		args = unescaped
	}
	d.BeforeTitle = ptr(deref(before.Title) + args)
	title := *d.Title + args
	if d.Link != nil {
		d.Link = ptr(*d.Link + before.Args)
	}
	if q.InterwikiDepth == 0 {
		title = d.InterwikiPrefix + title
		if before.Section != nil {
			d.Section = before.Section
		}
	}
	d.Title = ptr(title)
	return d, nil
}

// moderate submits the visible fields to the checker and returns a ban
// reason, or "" when everything passed.
func (r *Resolver) moderate(ctx context.Context, logger *slog.Logger, d Descriptor) string {
	var fragments []string
	for _, s := range []*string{d.Title, d.BeforeTitle, d.Description} {
		if s != nil {
			fragments = append(fragments, *s)
		}
	}
	if len(fragments) == 0 {
		return ""
	}

	verdicts, err := r.engine.checker.Check(ctx, fragments...)
	if err != nil {
		logger.Warn("moderation check failed, withholding result", "error", err)
		return "checker_error"
	}
	if moderation.Rejected(verdicts) {
		return "content"
	}
	return ""
}

// splitTitle separates a requested title into the page title, the trailing
// "#section" / "?args" string and the section name. Underscores in the title
// become spaces; the section fragment is percent-encoded in args.
func splitTitle(raw string) (title, args string, section *string) {
	i := strings.IndexAny(raw, "#?")
	if i < 0 {
		return strings.ReplaceAll(raw, "_", " "), "", nil
	}
	title = strings.ReplaceAll(raw[:i], "_", " ")

	var (
		sb       strings.Builder
		fragment strings.Builder // current "#..." run, without the leading '#'
		inFrag   bool
		sections strings.Builder // every fragment run, '#' separators kept
	)
	flush := func() {
		if inFrag {
			sb.WriteByte('#')
			sb.WriteString(site.EscapeTitle(fragment.String()))
			fragment.Reset()
		}
	}

	rest := raw[i:]
	for len(rest) > 0 {
		sep := rest[0]
		j := strings.IndexAny(rest[1:], "#?")
		var text string
		if j < 0 {
			text, rest = rest[1:], ""
		} else {
			text, rest = rest[1:j+1], rest[j+1:]
		}

		switch sep {
		case '#':
			if inFrag {
				fragment.WriteByte('#')
			}
			inFrag = true
			fragment.WriteString(text)
			sections.WriteByte('#')
			sections.WriteString(text)
		case '?':
			flush()
			inFrag = false
			sb.WriteByte('?')
			sb.WriteString(text)
		}
	}
	flush()

	if s := strings.TrimPrefix(sections.String(), "#"); s != "" {
		section = &s
	}
	return title, sb.String(), section
}

// rawSuffix returns the "#section" / "?args" tail of the requested title as given.
func rawSuffix(q Query) string {
	if q.Title == nil {
		return ""
	}
	if i := strings.IndexAny(*q.Title, "#?"); i >= 0 {
		return (*q.Title)[i:]
	}
	return ""
}

func unknownNamespace(meta *site.Metadata, title string) bool {
	prefix, _, found := strings.Cut(title, ":")
	return found && !meta.HasNamespace(prefix)
}

// sortedPageKeys orders query.pages keys so results do not depend on map order.
func sortedPageKeys(pages map[string]mwapi.Page) []string {
	keys := make([]string, 0, len(pages))
	for k := range pages {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
