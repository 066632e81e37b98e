package site

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/olgasafonova/wiki-resolver-mcp-server/internal/base"
	apierrors "github.com/olgasafonova/wiki-resolver-mcp-server/internal/errors"
)

// directAPI matches base URLs that already point at the action API.
var directAPI = regexp.MustCompile(`^https?://.*?/api\.php$`)

var hasScheme = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)

const cloudflareTitle = "Attention Required! | Cloudflare"

// IsDirectAPI reports whether baseURL is used as the API endpoint unchanged.
func IsDirectAPI(baseURL string) bool {
	return directAPI.MatchString(baseURL)
}

// DiscoverAPI finds the action API endpoint of the wiki at baseURL, either
// directly or through the EditURI link of its HTML page.
func (r *Resolver) DiscoverAPI(ctx context.Context, baseURL string) (string, error) {
	if IsDirectAPI(baseURL) {
		return baseURL, nil
	}

	hint := r.msgs.Hint(baseURL)
	if !hasScheme.MatchString(baseURL) {
		return "", &apierrors.DiscoveryError{URL: baseURL, Reason: r.msgs.NoScheme, Hint: hint}
	}

	resp, err := r.fetcher.Fetch(ctx, base.Request{URL: baseURL, Headers: r.headers})
	if err != nil {
		if apierrors.IsTimeout(err) {
			return "", &apierrors.TransportError{URL: baseURL, Op: "discovery", Message: r.msgs.Timeout, Hint: hint, Err: err}
		}
		return "", &apierrors.DiscoveryError{URL: baseURL, Reason: r.msgs.NotMediaWiki + err.Error(), Hint: hint, Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(decodeHTML(resp.Body, resp.Header.Get("Content-Type"))))
	if err != nil {
		return "", &apierrors.DiscoveryError{URL: baseURL, Reason: r.msgs.NotMediaWiki + err.Error(), Hint: hint, Err: err}
	}

	if strings.TrimSpace(doc.Find("title").First().Text()) == cloudflareTitle {
		return "", &apierrors.TransportError{
			URL: baseURL, Op: "discovery", Message: r.msgs.Cloudflare, Hint: hint,
			Err: &apierrors.CloudflareError{URL: baseURL},
		}
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden:
		return "", &apierrors.TransportError{
			URL: baseURL, Op: "discovery", Message: r.msgs.Refused, Hint: hint,
			Err: &apierrors.StatusError{URL: baseURL, Code: resp.StatusCode, Expected: http.StatusOK},
		}
	default:
		statusErr := &apierrors.StatusError{URL: baseURL, Code: resp.StatusCode, Expected: http.StatusOK}
		return "", &apierrors.DiscoveryError{URL: baseURL, Reason: r.msgs.NotMediaWiki + statusErr.Error(), Hint: hint, Err: statusErr}
	}

	href, ok := doc.Find(`link[rel="EditURI"][type="application/rsd+xml"]`).First().Attr("href")
	if !ok || href == "" {
		return "", &apierrors.DiscoveryError{URL: baseURL, Reason: r.msgs.NotMediaWiki + "no EditURI link", Hint: hint}
	}

	api, err := absoluteAPI(baseURL, strings.TrimSuffix(href, "?action=rsd"))
	if err != nil {
		return "", &apierrors.DiscoveryError{URL: baseURL, Reason: r.msgs.NotMediaWiki + err.Error(), Hint: hint, Err: err}
	}
	return api, nil
}

// absoluteAPI resolves a possibly protocol-relative or relative href against baseURL.
func absoluteAPI(baseURL, href string) (string, error) {
	if strings.HasPrefix(href, "//") {
		scheme, _, _ := strings.Cut(baseURL, "//")
		return scheme + href, nil
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	if ref.IsAbs() {
		return href, nil
	}
	b, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(ref).String(), nil
}

// decodeHTML converts body to UTF-8 using the declared or sniffed charset.
func decodeHTML(body []byte, contentType string) []byte {
	enc, name, _ := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" || enc == nil {
		return body
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		if utf8.Valid(body) {
			return body
		}
		return decoded
	}
	return decoded
}
