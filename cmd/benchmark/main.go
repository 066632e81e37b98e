package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/olgasafonova/wiki-resolver-mcp-server/internal/page"
)

// measureSiteCache compares a cold siteinfo load with a cached one
func measureSiteCache(ctx context.Context, engine *page.Engine, wiki string) bool {
	fmt.Println("1. Site metadata cache:")

	start := time.Now()
	meta, _, err := engine.SiteInfo(ctx, wiki)
	if err != nil {
		fmt.Printf("   Error: %v\n", err)
		return false
	}
	cold := time.Since(start)
	fmt.Printf("   First call (discovery + siteinfo): %v\n", cold)

	start = time.Now()
	_, _, _ = engine.SiteInfo(ctx, wiki)
	warm := time.Since(start)
	fmt.Printf("   Second call (cached):              %v\n", warm)
	fmt.Printf("   Speedup: %.0fx faster\n", float64(cold)/float64(max(warm, time.Microsecond)))
	fmt.Printf("   Site: %s (%s)\n", meta.Name, meta.API)
	fmt.Println()
	return true
}

// measureResolution times page resolutions with a warm site cache
func measureResolution(ctx context.Context, engine *page.Engine, wiki string, titles []string) {
	fmt.Println("2. Page resolution (warm site cache):")
	r := engine.For(wiki)

	var total time.Duration
	for _, title := range titles {
		start := time.Now()
		d, err := r.ResolvePage(ctx, page.TitleQuery(title))
		elapsed := time.Since(start)
		total += elapsed
		if err != nil {
			fmt.Printf("   %-30s error: %v\n", title, err)
			continue
		}
		fmt.Printf("   %-30s %-8v status=%v title=%q\n", title, elapsed.Round(time.Millisecond), d.Status, d.TitleOr(""))
	}
	if len(titles) > 0 {
		fmt.Printf("   Average: %v\n", (total / time.Duration(len(titles))).Round(time.Millisecond))
	}
	fmt.Println()
}

// measureCoalescing resolves one page from many goroutines at once
func measureCoalescing(ctx context.Context, engine *page.Engine, wiki, title string, n int) {
	fmt.Printf("3. %d concurrent resolutions of %q:\n", n, title)
	r := engine.For(wiki)

	var wg sync.WaitGroup
	errs := make(chan error, n)
	start := time.Now()
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.ResolvePage(ctx, page.TitleQuery(title)); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	failed := 0
	for range errs {
		failed++
	}
	fmt.Printf("   Wall time: %v, failures: %d\n", time.Since(start).Round(time.Millisecond), failed)
	fmt.Println()
}

func main() {
	fmt.Println("Wiki Resolver MCP Server - Performance Measurements")
	fmt.Println("===================================================")
	fmt.Println()

	config, err := page.LoadConfig()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	wiki := config.DefaultWiki
	if len(os.Args) > 1 {
		wiki = os.Args[1]
	}
	if wiki == "" {
		fmt.Println("Usage: benchmark <wiki-url> [title...] (or set WIKI_RESOLVER_DEFAULT_WIKI)")
		os.Exit(2)
	}
	titles := []string{"", "Main Page"}
	if len(os.Args) > 2 {
		titles = os.Args[2:]
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	engine, err := page.Open(*config, logger)
	if err != nil {
		fmt.Printf("Engine error: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	ctx := context.Background()
	if !measureSiteCache(ctx, engine, wiki) {
		return
	}
	measureResolution(ctx, engine, wiki, titles)
	measureCoalescing(ctx, engine, wiki, titles[len(titles)-1], 8)
}
