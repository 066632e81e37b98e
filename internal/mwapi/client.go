// Package mwapi is a typed client for the read-only parts of the MediaWiki
// action API that page resolution needs.
package mwapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/olgasafonova/wiki-resolver-mcp-server/internal/base"
	apierrors "github.com/olgasafonova/wiki-resolver-mcp-server/internal/errors"
	"github.com/olgasafonova/wiki-resolver-mcp-server/metrics"
)

// SiteInfoProps are the siteinfo properties the site resolver parses.
const SiteInfoProps = "general|namespaces|namespacealiases|interwikimap|extensions"

// ExtractChars bounds the plain-text extract requested with a page query.
const ExtractChars = 200

// Fetcher performs a single classified HTTP GET.
type Fetcher interface {
	Fetch(ctx context.Context, req base.Request) (*base.Response, error)
}

// Client issues action API calls against any wiki; the endpoint is passed per call.
type Client struct {
	fetcher Fetcher
	logger  *slog.Logger
}

// NewClient creates a Client on top of fetcher.
func NewClient(fetcher Fetcher, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{fetcher: fetcher, logger: logger}
}

// get performs a GET against api with format=json and decodes the body into v.
func (c *Client) get(ctx context.Context, api, action string, params url.Values, v any) ([]byte, error) {
	params.Set("action", action)
	params.Set("format", "json")

	start := time.Now()
	resp, err := c.fetcher.Fetch(ctx, base.Request{
		URL:          api,
		Query:        params,
		ExpectStatus: http.StatusOK,
	})
	duration := time.Since(start).Seconds()
	if err != nil {
		metrics.RecordAPICall(action, duration, false, errorKind(err))
		return nil, err
	}

	if err := json.Unmarshal(resp.Body, v); err != nil {
		metrics.RecordAPICall(action, duration, false, "decode")
		return nil, fmt.Errorf("decode %s response from %s: %w", action, api, err)
	}

	metrics.RecordAPICall(action, duration, true, "")
	c.logger.Debug("wiki API call", "api", api, "action", action, "duration", duration)
	return resp.Body, nil
}

// SiteInfo fetches meta=siteinfo and returns the raw response, which is what
// the site cache stores.
func (c *Client) SiteInfo(ctx context.Context, api string) ([]byte, error) {
	params := url.Values{}
	params.Set("meta", "siteinfo")
	params.Set("siprop", SiteInfoProps)

	var probe struct {
		Error *APIError `json:"error"`
	}
	blob, err := c.get(ctx, api, "query", params, &probe)
	if err != nil {
		return nil, err
	}
	if probe.Error != nil {
		return nil, probe.Error
	}
	return blob, nil
}

// PageQuery selects the page to look up. Exactly one of Title and PageID is used;
// Title wins when both are set.
type PageQuery struct {
	Title       *string
	PageID      *int
	WithExtract bool // also request a short plain-text extract and page props
}

// QueryPage runs prop=info|imageinfo with redirect resolution. A nil Query in
// the result means the wiki answered without a query object.
func (c *Client) QueryPage(ctx context.Context, api string, q PageQuery) (*Query, error) {
	params := url.Values{}
	params.Set("prop", "info|imageinfo")
	params.Set("inprop", "url")
	params.Set("iiprop", "url")
	params.Set("redirects", "true")

	switch {
	case q.Title != nil:
		params.Set("titles", *q.Title)
	case q.PageID != nil:
		params.Set("pageids", strconv.Itoa(*q.PageID))
	default:
		return nil, apierrors.ErrNoTitleOrID
	}

	if q.WithExtract {
		params.Set("prop", "info|imageinfo|extracts|pageprops")
		params.Set("ppprop", "description|displaytitle|disambiguation|infoboxes")
		params.Set("explaintext", "true")
		params.Set("exsectionformat", "plain")
		params.Set("exchars", strconv.Itoa(ExtractChars))
	}

	var resp queryResponse
	if _, err := c.get(ctx, api, "query", params, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Query, nil
}

// Search returns the best full-text match for term, or "" when nothing matched.
func (c *Client) Search(ctx context.Context, api, term string) (string, error) {
	params := url.Values{}
	params.Set("list", "search")
	params.Set("srsearch", term)
	params.Set("srwhat", "text")
	params.Set("srlimit", "1")
	params.Set("srenablerewrites", "true")

	var resp queryResponse
	if _, err := c.get(ctx, api, "query", params, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", resp.Error
	}
	if resp.Query == nil || len(resp.Query.Search) == 0 {
		return "", nil
	}
	return resp.Query.Search[0].Title, nil
}

// Random returns the title of a random page in the content namespaces.
func (c *Client) Random(ctx context.Context, api string) (string, error) {
	params := url.Values{}
	params.Set("list", "random")
	params.Set("rnnamespace", "0")
	params.Set("rnlimit", "1")

	var resp queryResponse
	if _, err := c.get(ctx, api, "query", params, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", resp.Error
	}
	if resp.Query == nil || len(resp.Query.Random) == 0 {
		return "", fmt.Errorf("random page list from %s is empty", api)
	}
	return resp.Query.Random[0].Title, nil
}

// ParseText returns the rendered HTML of page.
func (c *Client) ParseText(ctx context.Context, api, page string) (string, error) {
	resp, err := c.parse(ctx, api, page, "text")
	if err != nil {
		return "", err
	}
	return resp.Parse.Text.Content, nil
}

// ParseWikitext returns the raw wikitext of page.
func (c *Client) ParseWikitext(ctx context.Context, api, page string) (string, error) {
	resp, err := c.parse(ctx, api, page, "wikitext")
	if err != nil {
		return "", err
	}
	return resp.Parse.Wikitext.Content, nil
}

func (c *Client) parse(ctx context.Context, api, page, prop string) (*parseResponse, error) {
	params := url.Values{}
	params.Set("page", page)
	params.Set("prop", prop)

	var resp parseResponse
	if _, err := c.get(ctx, api, "parse", params, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	if resp.Parse == nil {
		return nil, fmt.Errorf("parse response from %s has no parse object", api)
	}
	return &resp, nil
}

func errorKind(err error) string {
	switch {
	case apierrors.IsTimeout(err):
		return "timeout"
	case apierrors.StatusCode(err) != 0:
		return "status_" + strconv.Itoa(apierrors.StatusCode(err))
	default:
		return "fetch"
	}
}
