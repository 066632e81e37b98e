package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/olgasafonova/wiki-resolver-mcp-server/internal/base"
	"github.com/olgasafonova/wiki-resolver-mcp-server/internal/page"
	"github.com/olgasafonova/wiki-resolver-mcp-server/internal/site"
	"github.com/olgasafonova/wiki-resolver-mcp-server/internal/sitecache"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newWiki serves a tiny api.php: siteinfo, one page and a random pick.
func newWiki(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		switch {
		case q.Get("meta") == "siteinfo":
			fmt.Fprintf(w, `{"query":{"general":{"sitename":"Tiny","server":"//%s","articlepath":"/wiki/$1","script":"/w/index.php"},`+
				`"namespaces":{"0":{"id":0,"*":""}},"namespacealiases":[],"interwikimap":[],"extensions":[{"name":"TextExtracts"}]}}`, r.Host)
		case q.Get("list") == "random":
			io.WriteString(w, `{"query":{"random":[{"id":1,"ns":0,"title":"Hello"}]}}`)
		case q.Get("titles") == "Hello" || q.Get("pageids") == "1":
			fmt.Fprintf(w, `{"query":{"pages":{"1":{"pageid":1,"ns":0,"title":"Hello","fullurl":"http://%s/wiki/Hello","extract":"Hello is a greeting."}}}}`, r.Host)
		default:
			io.WriteString(w, `{"batchcomplete":""}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestRegistry(t *testing.T, defaultWiki string) *HandlerRegistry {
	t.Helper()
	store := sitecache.NewMemoryStore(8)
	t.Cleanup(func() { _ = store.Close() })
	fetcher := base.NewClient(base.WithLogger(quietLogger()), base.WithMaxRetry(1))
	sites := site.NewResolver(fetcher, store, site.WithLogger(quietLogger()))

	cfg := page.DefaultConfig()
	cfg.ModerationEnabled = false
	cfg.DefaultWiki = defaultWiki
	engine := page.NewEngine(sites, cfg, page.WithLogger(quietLogger()))
	return NewHandlerRegistry(engine, quietLogger())
}

// connect registers every tool on a fresh server and returns a client session.
func connect(t *testing.T, h *HandlerRegistry) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	server := mcp.NewServer(&mcp.Implementation{Name: "test-server", Version: "v0"}, nil)
	h.RegisterAll(server)

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func decode[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	var out T
	b, err := json.Marshal(res.StructuredContent)
	if err != nil {
		t.Fatalf("marshal structured content: %v", err)
	}
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal %s: %v", b, err)
	}
	return out
}

func TestBuildTool(t *testing.T) {
	registry := newTestRegistry(t, "")

	tests := []struct {
		name      string
		spec      ToolSpec
		wantRO    bool
		wantIdem  bool
		wantDestr bool
		wantOpen  bool
	}{
		{
			name:     "read-only idempotent tool",
			spec:     ToolSpec{Name: "wiki_resolve_page", Title: "Resolve", Description: "d", ReadOnly: true, Idempotent: true, OpenWorld: true},
			wantRO:   true,
			wantIdem: true,
			wantOpen: true,
		},
		{
			name:      "destructive tool",
			spec:      ToolSpec{Name: "wiki_purge", Title: "Purge", Description: "d", Destructive: true},
			wantDestr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool := registry.buildTool(tt.spec)

			if tool.Name != tt.spec.Name || tool.Description != tt.spec.Description {
				t.Errorf("name/description = %q/%q", tool.Name, tool.Description)
			}
			if tool.Annotations == nil {
				t.Fatal("Expected annotations")
			}
			if tool.Annotations.ReadOnlyHint != tt.wantRO {
				t.Errorf("ReadOnlyHint = %v, want %v", tool.Annotations.ReadOnlyHint, tt.wantRO)
			}
			if tool.Annotations.IdempotentHint != tt.wantIdem {
				t.Errorf("IdempotentHint = %v, want %v", tool.Annotations.IdempotentHint, tt.wantIdem)
			}
			if tool.Annotations.DestructiveHint == nil || *tool.Annotations.DestructiveHint != tt.wantDestr {
				t.Errorf("DestructiveHint = %v, want %v", tool.Annotations.DestructiveHint, tt.wantDestr)
			}
			if tt.wantOpen && (tool.Annotations.OpenWorldHint == nil || !*tool.Annotations.OpenWorldHint) {
				t.Error("Expected OpenWorldHint to be true")
			}
		})
	}
}

func TestRecoverPanic(t *testing.T) {
	registry := newTestRegistry(t, "")

	var err error
	func() {
		defer registry.recoverPanic("test_tool", &err)
		panic("test panic")
	}()

	if err == nil || !strings.Contains(err.Error(), "test_tool") {
		t.Errorf("err = %v, want a test_tool failure", err)
	}
}

func TestLogExecution(t *testing.T) {
	var buf bytes.Buffer
	registry := newTestRegistry(t, "")
	registry.logger = slog.New(slog.NewTextHandler(&buf, nil))

	title := "Hello"
	registry.logExecution(ToolSpec{Name: "wiki_resolve_page", Category: "page"},
		page.ResolvePageArgs{Wiki: "https://wiki.example", Title: &title},
		page.ResolvePageResult{Page: &page.Descriptor{Title: &title, Status: true}})

	out := buf.String()
	for _, want := range []string{"tool=wiki_resolve_page", "title=Hello", "resolved_title=Hello", "status=true"} {
		if !strings.Contains(out, want) {
			t.Errorf("log %q missing %q", out, want)
		}
	}
}

func TestAllToolsNotEmpty(t *testing.T) {
	if len(AllTools) == 0 {
		t.Error("AllTools should not be empty")
	}

	seen := map[string]bool{}
	for i, spec := range AllTools {
		if spec.Name == "" {
			t.Errorf("Tool %d has empty Name", i)
		}
		if spec.Method == "" {
			t.Errorf("Tool %s has empty Method", spec.Name)
		}
		if spec.Description == "" {
			t.Errorf("Tool %s has empty Description", spec.Name)
		}
		if spec.Category == "" {
			t.Errorf("Tool %s has empty Category", spec.Name)
		}
		if !spec.ReadOnly {
			t.Errorf("Tool %s should be read-only", spec.Name)
		}
		if seen[spec.Name] {
			t.Errorf("Tool %s defined twice", spec.Name)
		}
		seen[spec.Name] = true
	}
}

func TestToolsByCategory(t *testing.T) {
	pageTools := ToolsByCategory("page")
	if len(pageTools) != 2 {
		t.Errorf("page tools = %d, want 2", len(pageTools))
	}
	for _, tool := range pageTools {
		if tool.Category != "page" {
			t.Errorf("Tool %s has category %s, expected page", tool.Name, tool.Category)
		}
	}
	if got := ToolsByCategory("unknown"); len(got) != 0 {
		t.Errorf("Expected 0 tools for unknown category, got %d", len(got))
	}

	if _, ok := ToolByName("wiki_site_info"); !ok {
		t.Error("wiki_site_info should be defined")
	}
}

func TestRegisterAll_ListsTools(t *testing.T) {
	cs := connect(t, newTestRegistry(t, ""))

	res, err := cs.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}
	if len(res.Tools) != len(AllTools) {
		t.Errorf("listed %d tools, want %d", len(res.Tools), len(AllTools))
	}
	for _, tool := range res.Tools {
		if _, ok := ToolByName(tool.Name); !ok {
			t.Errorf("unexpected tool %q", tool.Name)
		}
	}
}

func TestCallTool_ResolvePage(t *testing.T) {
	wiki := newWiki(t)
	cs := connect(t, newTestRegistry(t, wiki.URL+"/w/api.php"))

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "wiki_resolve_page",
		Arguments: map[string]any{"title": "Hello"},
	})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if res.IsError {
		t.Fatalf("tool error: %+v", res.Content)
	}

	got := decode[page.ResolvePageResult](t, res)
	if got.Page == nil || got.Page.TitleOr("") != "Hello" || got.Page.ID != 1 {
		t.Fatalf("page = %+v", got.Page)
	}
	if got.Page.Description == nil || *got.Page.Description != "Hello is a greeting." {
		t.Errorf("description = %v", got.Page.Description)
	}
	if got.SiteName != "Tiny" {
		t.Errorf("site name = %q", got.SiteName)
	}
}

func TestCallTool_RandomAndSiteInfo(t *testing.T) {
	wiki := newWiki(t)
	api := wiki.URL + "/w/api.php"
	cs := connect(t, newTestRegistry(t, ""))
	ctx := context.Background()

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "wiki_random_page",
		Arguments: map[string]any{"wiki": api},
	})
	if err != nil || res.IsError {
		t.Fatalf("wiki_random_page: err=%v result=%+v", err, res)
	}
	if got := decode[page.ResolvePageResult](t, res); got.Page.TitleOr("") != "Hello" {
		t.Errorf("random title = %q", got.Page.TitleOr(""))
	}

	res, err = cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "wiki_site_info",
		Arguments: map[string]any{"wiki": api},
	})
	if err != nil || res.IsError {
		t.Fatalf("wiki_site_info: err=%v result=%+v", err, res)
	}
	info := decode[page.SiteInfoResult](t, res)
	if info.Name != "Tiny" || !info.TextExtracts || info.API != api {
		t.Errorf("site info = %+v", info)
	}
}

func TestCallTool_ValidationError(t *testing.T) {
	cs := connect(t, newTestRegistry(t, ""))

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "wiki_resolve_page",
		Arguments: map[string]any{"title": "Hello"},
	})
	if err == nil && !res.IsError {
		t.Fatal("resolving without a wiki should fail")
	}
	if err == nil {
		text := ""
		for _, c := range res.Content {
			if tc, ok := c.(*mcp.TextContent); ok {
				text += tc.Text
			}
		}
		if !strings.Contains(text, "wiki_resolve_page failed") {
			t.Errorf("error content = %q", text)
		}
	}
}
