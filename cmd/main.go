package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/lexwatch/lexwatch/internal/cache"
	"github.com/lexwatch/lexwatch/internal/feed"
	"github.com/lexwatch/lexwatch/pkg/analysis"
	"github.com/lexwatch/lexwatch/pkg/config"
	"github.com/lexwatch/lexwatch/pkg/extractor"
	"github.com/lexwatch/lexwatch/pkg/related"
	"github.com/lexwatch/lexwatch/server"
)

type options struct {
	configPath string
	fetch      bool
	serve      bool
	analyze    string
	search     string
	source     string
	category   string
	sinceDays  int
	unread     bool
	stream     bool
}

func main() {
	opts := parseFlags()

	if err := run(opts); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() options {
	var opts options

	flag.StringVar(&opts.configPath, "config", "", "Path to config file")
	flag.BoolVar(&opts.fetch, "fetch", false, "Fetch configured feeds into the local cache")
	flag.BoolVar(&opts.serve, "serve", false, "Run the document fetch server")
	flag.StringVar(&opts.analyze, "analyze", "", "Analyze one cached item by id or URL")
	flag.StringVar(&opts.search, "search", "", "Filter listed items by title/summary text")
	flag.StringVar(&opts.source, "source", "", "Filter listed items by source")
	flag.StringVar(&opts.category, "category", "", "Filter listed items by category")
	flag.IntVar(&opts.sinceDays, "since", 0, "Only list items published in the last N days")
	flag.BoolVar(&opts.unread, "unread", false, "Only list unread items")
	flag.BoolVar(&opts.stream, "stream", true, "Stream the analysis response")
	flag.Parse()

	return opts
}

func run(opts options) error {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %s", e.Error())
		}
		return fmt.Errorf("invalid configuration")
	}

	if opts.serve {
		return runServe(cfg)
	}

	db, err := cache.Open(cfg.Cache.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	switch {
	case opts.fetch:
		return runFetch(cfg, db)
	case opts.analyze != "":
		return runAnalyze(cfg, db, opts)
	default:
		return runList(cfg, db, opts)
	}
}

// refreshInterval is how long the cache stays fresh before listing
// triggers a new feed fetch.
const refreshInterval = 1 * time.Hour

func runFetch(cfg *config.Config, db *cache.Cache) error {
	if len(cfg.Feeds) == 0 {
		return fmt.Errorf("no feeds configured")
	}

	color.Blue("Fetching %d feeds\n", len(cfg.Feeds))

	fetcher := feed.NewFetcher(feed.FetcherConfig{
		Keywords:   cfg.Keywords,
		Taxonomy:   cfg.Taxonomy.Categories,
		MaxPerFeed: cfg.Feed.MaxPerFeed,
		RateLimit:  cfg.Feed.RateLimit,
	})

	spinner := getSpinner("📡 Fetching feeds...")
	result := fetcher.FetchAll(context.Background(), cfg.Feeds)
	spinner.Finish()
	fmt.Print("\r")

	items := result.Items
	if len(items) > cfg.Feed.MaxTotal {
		items = items[:cfg.Feed.MaxTotal]
	}
	if err := db.UpsertItems(items); err != nil {
		return fmt.Errorf("failed to store items: %v", err)
	}
	if err := db.SetLastRefresh(); err != nil {
		return fmt.Errorf("failed to record refresh: %v", err)
	}

	pruned, err := db.Prune(time.Duration(cfg.Feed.RetentionDays) * 24 * time.Hour)
	if err != nil {
		return fmt.Errorf("failed to prune items: %v", err)
	}

	color.Green("\n✓ Stored %d items\n", len(items))
	if pruned > 0 {
		color.Blue("Pruned %d items older than %d days\n", pruned, cfg.Feed.RetentionDays)
	}
	for _, err := range result.Errors {
		color.Red("✗ %v", err)
	}
	return nil
}

func runList(cfg *config.Config, db *cache.Cache, opts options) error {
	// Stale cache refreshes itself before listing.
	if len(cfg.Feeds) > 0 && db.NeedsRefresh(refreshInterval) {
		if err := runFetch(cfg, db); err != nil {
			color.Red("refresh failed: %v", err)
		}
	}

	query := cache.QueryOpts{
		Search:     opts.search,
		Category:   opts.category,
		UnreadOnly: opts.unread,
	}
	if opts.source != "" {
		query.Sources = []string{opts.source}
	}
	if opts.sinceDays > 0 {
		query.Since = time.Now().AddDate(0, 0, -opts.sinceDays)
	}

	items, err := db.GetItems(query)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		color.Yellow("No items. Run with -fetch first.")
		return nil
	}

	source := color.New(color.FgCyan).SprintFunc()
	title := color.New(color.Bold).SprintFunc()
	for _, item := range items {
		fmt.Printf("%s  %s  [%s]\n", item.Published.Format("2006-01-02"), source(item.Source), item.ID)
		fmt.Printf("  %s\n", title(item.Title))
		if item.Summary != "" {
			fmt.Printf("  %s\n", item.Summary)
		}
	}
	color.Blue("\n%d items\n", len(items))
	return nil
}

func runAnalyze(cfg *config.Config, db *cache.Cache, opts options) error {
	item, err := db.GetItem(opts.analyze)
	if err != nil {
		return err
	}

	corpus, err := db.GetItems(cache.QueryOpts{})
	if err != nil {
		return err
	}

	ex := extractor.NewWithConfig(extractor.Config{
		ProxyURL:  cfg.Extractor.ProxyURL,
		MaxLength: cfg.Extractor.MaxLength,
		Timeout:   time.Duration(cfg.Extractor.TimeoutSeconds) * time.Second,
		UserAgent: cfg.Extractor.UserAgent,
	})

	color.Cyan("\n%s\n%s\n", item.Title, item.URL)

	matches := related.FindRelated(item, corpus, related.Options{MaxResults: cfg.Related.MaxResults})
	if len(matches) == 0 {
		color.Yellow("No related documents found")
	}
	for _, m := range matches {
		color.Yellow("  %s (score %d): %s", m.Relationship, m.Score, m.Candidate.Title)
	}

	spinner := getSpinner("📄 Building document context...")
	builder := analysis.NewBuilder(analysis.BuilderConfig{Fetcher: ex})
	result := builder.BuildContext(context.Background(), matches, analysis.ContextOptions{
		FetchContent: true,
	})
	spinner.Finish()
	fmt.Print("\r")

	analyzer, err := analysis.NewAnalyzerWithConfig(analysis.AnalyzerConfig{
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize analyzer: %v", err)
	}

	output := color.New(color.FgCyan).PrintfFunc()
	if opts.stream {
		stream, err := analyzer.AnalyzeStream(context.Background(), item, result.Context)
		if err != nil {
			return fmt.Errorf("analysis failed: %v", err)
		}
		fmt.Print("\n")
		for chunk := range stream {
			output("%s", chunk)
		}
		fmt.Print("\n")
	} else {
		spinner := getSpinner("🤖 Generating analysis...")
		text, err := analyzer.Analyze(context.Background(), item, result.Context)
		spinner.Finish()
		fmt.Print("\r")
		if err != nil {
			return fmt.Errorf("analysis failed: %v", err)
		}
		output("\n%s\n", text)
	}

	return db.MarkRead(item.ID)
}

func runServe(cfg *config.Config) error {
	// The server is the proxy, so its extractor only fetches directly.
	ex := extractor.NewWithConfig(extractor.Config{
		MaxLength: cfg.Extractor.MaxLength,
		Timeout:   time.Duration(cfg.Extractor.TimeoutSeconds) * time.Second,
		UserAgent: cfg.Extractor.UserAgent,
	})

	analyzer, err := analysis.NewAnalyzerWithConfig(analysis.AnalyzerConfig{
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize analyzer: %v", err)
	}

	s := server.New(server.Config{
		Port:           cfg.Server.Port,
		AllowedDomains: cfg.Server.AllowedDomains,
	}, ex, analyzer)
	return s.ListenAndServe()
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}
