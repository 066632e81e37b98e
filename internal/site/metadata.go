// Package site discovers a wiki's API endpoint and builds its metadata from
// siteinfo, caching the raw response for a fixed freshness window.
package site

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/olgasafonova/wiki-resolver-mcp-server/internal/audit"
	apierrors "github.com/olgasafonova/wiki-resolver-mcp-server/internal/errors"
	"github.com/olgasafonova/wiki-resolver-mcp-server/internal/mwapi"
)

// TextExtracts is the extension that provides plain-text page extracts.
const TextExtracts = "TextExtracts"

// TemplateNamespace is the canonical name of the template namespace.
const TemplateNamespace = "Template"

// Metadata describes one wiki. It is never modified after Parse returns it.
type Metadata struct {
	API             string            `json:"api"`
	ArticlePath     string            `json:"article_path"` // absolute, exactly one "$1"
	Extensions      []string          `json:"extensions"`
	Interwiki       map[string]string `json:"interwiki"` // prefix -> URL template
	RealURL         string            `json:"real_url"`  // absolute server URL
	Name            string            `json:"name"`
	Namespaces      []string          `json:"namespaces"`       // every known spelling, duplicates allowed
	NamespacesLocal map[string]string `json:"namespaces_local"` // localized -> canonical
	InAllowList     bool              `json:"in_allow_list"`
	InBlockList     bool              `json:"in_block_list"`
	Script          string            `json:"script"`
	LogoURL         string            `json:"logo_url,omitempty"`
}

// HasExtension reports whether the wiki runs the named extension.
func (m *Metadata) HasExtension(name string) bool {
	for _, e := range m.Extensions {
		if e == name {
			return true
		}
	}
	return false
}

// HasNamespace reports whether name is any known spelling of a namespace.
func (m *Metadata) HasNamespace(name string) bool {
	for _, ns := range m.Namespaces {
		if ns == name {
			return true
		}
	}
	return false
}

// TemplateName returns the title without its namespace when the title's
// localized namespace maps to the canonical Template namespace.
func (m *Metadata) TemplateName(title string) (string, bool) {
	prefix, rest, found := strings.Cut(title, ":")
	if !found {
		return "", false
	}
	if m.NamespacesLocal[prefix] != TemplateNamespace {
		return "", false
	}
	return rest, true
}

// ArticleURL returns the article path with title substituted for "$1".
func (m *Metadata) ArticleURL(title string) string {
	return strings.ReplaceAll(m.ArticlePath, "$1", EscapeTitle(title))
}

// Homepage returns the article path with an empty title.
func (m *Metadata) Homepage() string {
	return strings.ReplaceAll(m.ArticlePath, "$1", "")
}

// Banned reports whether the wiki is block-listed without being allow-listed.
func (m *Metadata) Banned() bool {
	return m.InBlockList && !m.InAllowList
}

// EscapeTitle percent-encodes everything in title except unreserved
// characters and "/".
func EscapeTitle(title string) string {
	const hex = "0123456789ABCDEF"
	var sb strings.Builder
	for i := 0; i < len(title); i++ {
		c := title[i]
		if isUnreserved(c) || c == '/' {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(hex[c>>4])
		sb.WriteByte(hex[c&15])
	}
	return sb.String()
}

func isUnreserved(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' ||
		c == '-' || c == '.' || c == '_' || c == '~'
}

// EntryError describes one siteinfo entry that was skipped during Parse.
type EntryError struct {
	Section string // "namespaces", "namespacealiases", "interwikimap", "extensions"
	Key     string
	Err     error
}

func (e EntryError) Error() string {
	return fmt.Sprintf("skipped %s entry %s: %v", e.Section, e.Key, e.Err)
}

// Parse builds Metadata from a raw siteinfo response. Malformed list entries
// are skipped and reported; only an unusable response as a whole is an error.
// baseURL supplies the scheme for a protocol-relative server.
func Parse(api, baseURL string, blob []byte, membership audit.Membership) (*Metadata, []EntryError, error) {
	info, err := mwapi.DecodeSiteInfo(blob)
	if err != nil {
		return nil, nil, &apierrors.MetadataParseError{API: api, Err: err}
	}

	g := info.General
	if g.Server == "" {
		return nil, nil, &apierrors.MetadataParseError{API: api, Reason: "general.server is empty"}
	}
	if n := strings.Count(g.ArticlePath, "$1"); n != 1 {
		return nil, nil, &apierrors.MetadataParseError{
			API:    api,
			Reason: fmt.Sprintf("general.articlepath %q must contain $1 exactly once, has %d", g.ArticlePath, n),
		}
	}

	server := g.Server
	if strings.HasPrefix(server, "//") {
		scheme, _, _ := strings.Cut(baseURL, "//")
		server = scheme + server
	}

	meta := &Metadata{
		API:             api,
		ArticlePath:     server + g.ArticlePath,
		Interwiki:       make(map[string]string),
		RealURL:         server,
		Name:            g.SiteName,
		NamespacesLocal: make(map[string]string),
		InAllowList:     membership.Allow,
		InBlockList:     membership.Block,
		Script:          server + g.Script,
		LogoURL:         g.Logo,
	}

	var skipped []EntryError

	for i, raw := range info.Extensions {
		var ext mwapi.Extension
		if err := json.Unmarshal(raw, &ext); err != nil {
			skipped = append(skipped, EntryError{Section: "extensions", Key: strconv.Itoa(i), Err: err})
			continue
		}
		if ext.Name != "" {
			meta.Extensions = append(meta.Extensions, ext.Name)
		}
	}

	for _, key := range sortedNamespaceKeys(info.Namespaces) {
		var ns mwapi.Namespace
		if err := json.Unmarshal(info.Namespaces[key], &ns); err != nil {
			skipped = append(skipped, EntryError{Section: "namespaces", Key: key, Err: err})
			continue
		}
		if ns.Local != nil {
			meta.Namespaces = append(meta.Namespaces, *ns.Local)
		}
		if ns.Canonical != nil {
			meta.Namespaces = append(meta.Namespaces, *ns.Canonical)
		}
		if ns.Local != nil && ns.Canonical != nil {
			meta.NamespacesLocal[*ns.Local] = *ns.Canonical
		}
	}

	for i, raw := range info.NamespaceAliases {
		var alias mwapi.Namespace
		if err := json.Unmarshal(raw, &alias); err != nil {
			skipped = append(skipped, EntryError{Section: "namespacealiases", Key: strconv.Itoa(i), Err: err})
			continue
		}
		if alias.Local != nil {
			meta.Namespaces = append(meta.Namespaces, *alias.Local)
		}
	}

	for i, raw := range info.InterwikiMap {
		var iw mwapi.InterwikiEntry
		if err := json.Unmarshal(raw, &iw); err != nil {
			skipped = append(skipped, EntryError{Section: "interwikimap", Key: strconv.Itoa(i), Err: err})
			continue
		}
		if iw.Prefix == "" || iw.URL == "" {
			skipped = append(skipped, EntryError{Section: "interwikimap", Key: strconv.Itoa(i), Err: fmt.Errorf("prefix and url are required")})
			continue
		}
		meta.Interwiki[iw.Prefix] = iw.URL
	}

	return meta, skipped, nil
}

// sortedNamespaceKeys orders namespace ids numerically, non-numeric keys last.
func sortedNamespaceKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return keys[i] < keys[j]
		}
	})
	return keys
}
