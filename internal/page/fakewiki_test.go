package page

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/olgasafonova/wiki-resolver-mcp-server/internal/audit"
	"github.com/olgasafonova/wiki-resolver-mcp-server/internal/base"
	"github.com/olgasafonova/wiki-resolver-mcp-server/internal/moderation"
	"github.com/olgasafonova/wiki-resolver-mcp-server/internal/site"
	"github.com/olgasafonova/wiki-resolver-mcp-server/internal/sitecache"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeWiki is a minimal MediaWiki deployment: an HTML page advertising the
// API through EditURI and an api.php answering from canned responses.
type fakeWiki struct {
	*httptest.Server

	mu         sync.Mutex
	extensions []string
	interwiki  map[string]string // prefix -> URL template
	queries    map[string]string // "title:X" or "id:N" -> raw query object
	wikitext   map[string]string
	html       map[string]string
	search     map[string]string
	random     string
	loopIW     string // when set, unknown titles answer with an interwiki hop to this prefix
	calls      map[string]int
}

func newFakeWiki(t *testing.T) *fakeWiki {
	t.Helper()
	w := &fakeWiki{
		extensions: []string{"TextExtracts"},
		interwiki:  map[string]string{},
		queries:    map[string]string{},
		wikitext:   map[string]string{},
		html:       map[string]string{},
		search:     map[string]string{},
		calls:      map[string]int{},
	}
	w.Server = httptest.NewServer(http.HandlerFunc(w.serve))
	t.Cleanup(w.Close)
	return w
}

// API returns the api.php URL.
func (w *fakeWiki) API() string {
	return w.URL + "/w/api.php"
}

// Page registers a present page with an extract.
func (w *fakeWiki) Page(id int, title, extract string) {
	w.SetQuery("title:"+title, fmt.Sprintf(`{"pages":{"%d":{"pageid":%d,"ns":0,"title":%q,"fullurl":%q,"extract":%q}}}`,
		id, id, title, w.URL+"/wiki/"+site.EscapeTitle(title), extract))
}

// SetQuery registers the query object returned for key.
func (w *fakeWiki) SetQuery(key, query string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.queries[key] = query
}

func (w *fakeWiki) Calls(kind string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls[kind]
}

func (w *fakeWiki) serve(rw http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/w/api.php" {
		rw.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(rw, `<html><head><title>Wiki</title><link rel="EditURI" type="application/rsd+xml" href="//%s/w/api.php?action=rsd"></head></html>`, r.Host)
		return
	}

	q := r.URL.Query()
	w.mu.Lock()
	defer w.mu.Unlock()
	rw.Header().Set("Content-Type", "application/json")

	switch q.Get("action") {
	case "parse":
		w.calls["parse:"+q.Get("prop")]++
		page := q.Get("page")
		if q.Get("prop") == "wikitext" {
			text, ok := w.wikitext[page]
			if !ok {
				io.WriteString(rw, `{"error":{"code":"missingtitle","info":"The page you specified doesn't exist."}}`)
				return
			}
			writeJSON(rw, map[string]any{"parse": map[string]any{"title": page, "wikitext": map[string]string{"*": text}}})
			return
		}
		writeJSON(rw, map[string]any{"parse": map[string]any{"title": page, "text": map[string]string{"*": w.html[page]}}})

	case "query":
		switch {
		case q.Get("meta") == "siteinfo":
			w.calls["siteinfo"]++
			io.WriteString(rw, w.siteInfo(r.Host))
		case q.Get("list") == "search":
			w.calls["search"]++
			hits := []map[string]any{}
			if hit, ok := w.search[q.Get("srsearch")]; ok {
				hits = append(hits, map[string]any{"ns": 0, "title": hit})
			}
			writeJSON(rw, map[string]any{"query": map[string]any{"search": hits}})
		case q.Get("list") == "random":
			w.calls["random"]++
			writeJSON(rw, map[string]any{"query": map[string]any{"random": []map[string]any{{"id": 1, "ns": 0, "title": w.random}}}})
		default:
			w.calls["page"]++
			if q.Get("prop") == "info|imageinfo|extracts|pageprops" {
				w.calls["page+extract"]++
			}
			key := "title:" + q.Get("titles")
			if q.Get("titles") == "" {
				key = "id:" + q.Get("pageids")
			}
			query, ok := w.queries[key]
			switch {
			case ok:
				fmt.Fprintf(rw, `{"batchcomplete":"","query":%s}`, query)
			case w.loopIW != "":
				title := q.Get("titles")
				fmt.Fprintf(rw, `{"query":{"interwiki":[{"title":%q,"iw":%q}]}}`, title, w.loopIW)
			default:
				io.WriteString(rw, `{"batchcomplete":""}`)
			}
		}
	default:
		http.Error(rw, "unknown action", http.StatusBadRequest)
	}
}

func (w *fakeWiki) siteInfo(host string) string {
	exts := make([]map[string]string, 0, len(w.extensions))
	for _, e := range w.extensions {
		exts = append(exts, map[string]string{"name": e})
	}
	iw := make([]map[string]string, 0, len(w.interwiki))
	for p, u := range w.interwiki {
		iw = append(iw, map[string]string{"prefix": p, "url": u})
	}
	info := map[string]any{
		"query": map[string]any{
			"general": map[string]any{
				"sitename":    "Fake " + host,
				"server":      "//" + host,
				"articlepath": "/wiki/$1",
				"script":      "/w/index.php",
			},
			"namespaces": map[string]any{
				"-1": map[string]any{"id": -1, "*": "特殊", "canonical": "Special"},
				"0":  map[string]any{"id": 0, "*": ""},
				"6":  map[string]any{"id": 6, "*": "文件", "canonical": "File"},
				"10": map[string]any{"id": 10, "*": "模板", "canonical": "Template"},
			},
			"namespacealiases": []any{map[string]any{"id": 10, "*": "Template"}},
			"interwikimap":     iw,
			"extensions":       exts,
		},
	}
	b, _ := json.Marshal(info)
	return string(b)
}

func writeJSON(w io.Writer, v any) {
	_ = json.NewEncoder(w).Encode(v)
}

type engineOpts struct {
	cfg     Config
	checker moderation.Checker
	auditor audit.Auditor
}

// newTestEngine builds an Engine with an in-memory cache and single-attempt fetches.
func newTestEngine(t *testing.T, o engineOpts) *Engine {
	t.Helper()
	fetcher := base.NewClient(base.WithLogger(quietLogger()), base.WithMaxRetry(1))
	store := sitecache.NewMemoryStore(16)
	t.Cleanup(func() { _ = store.Close() })

	cfg := o.cfg
	if cfg.Lang == "" {
		cfg = DefaultConfig()
		cfg.ModerationEnabled = o.cfg.ModerationEnabled
		cfg.RedactMirror = o.cfg.RedactMirror
		cfg.RedactedPrefix = o.cfg.RedactedPrefix
	}

	sites := site.NewResolver(fetcher, store,
		site.WithLogger(quietLogger()),
		site.WithAuditor(o.auditor),
		site.WithMessages(cfg.Messages()),
	)
	return NewEngine(sites, cfg, WithChecker(o.checker), WithLogger(quietLogger()))
}
