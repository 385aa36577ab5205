package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wanderdesk/wanderdesk/internal/archive"
	"github.com/wanderdesk/wanderdesk/internal/config"
	"github.com/wanderdesk/wanderdesk/internal/fetch"
	"github.com/wanderdesk/wanderdesk/internal/index"
	"github.com/wanderdesk/wanderdesk/internal/language"
	"github.com/wanderdesk/wanderdesk/internal/normalize"
	"github.com/wanderdesk/wanderdesk/internal/pipeline"
	"github.com/wanderdesk/wanderdesk/internal/sources"
)

var crawlSource string

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Run the acquisition pipeline",
	Long: `Crawl the configured sources: discover candidate Q&A items, fetch,
normalize, deduplicate, store, and embed them.

Examples:
  # Crawl every configured source
  wanderdesk crawl

  # Crawl a single source by name
  wanderdesk crawl --source airbnb-help`,
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	crawlCmd.Flags().StringVar(&crawlSource, "source", "", "Source name from config to crawl")
}

func runCrawl(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	if len(cfg.Sources) == 0 {
		return fmt.Errorf("no sources configured")
	}

	s, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}

	kw, err := newKeyword(cfg)
	if err != nil {
		return err
	}

	var ar *archive.Client
	if cfg.Archive.Enabled {
		ar, err = archive.New(archive.Config{
			Endpoint:        cfg.Archive.Endpoint,
			Bucket:          cfg.Archive.Bucket,
			AccessKeyID:     cfg.Archive.AccessKeyID,
			SecretAccessKey: cfg.Archive.SecretAccessKey,
			UseSSL:          cfg.Archive.UseSSL,
		})
		if err != nil {
			return fmt.Errorf("failed to create archive client: %w", err)
		}
	}

	registry, browser, byName, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	if browser != nil {
		defer browser.Close()
	}

	var names []string
	if crawlSource != "" {
		adapterName, ok := byName[crawlSource]
		if !ok {
			return fmt.Errorf("source %q not found in config", crawlSource)
		}
		names = []string{adapterName}
	} else {
		seen := make(map[string]bool)
		for _, src := range cfg.Sources {
			if name := byName[src.Name]; !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}

	normalizer := normalize.New(language.NewDetector(), normalize.Config{
		MinAnswerChars: cfg.Crawler.MinAnswerChars,
	})
	indexer := index.New(embedder, s, index.Config{})

	p := pipeline.New(pipeline.Config{
		MaxConcurrentSources: cfg.Crawler.MaxConcurrentSources,
		SourceTimeout:        cfg.Crawler.SourceTimeout,
	}, registry, normalizer, s, indexer, kw, ar)

	slog.Debug("crawl starting", "sources", names)

	report, err := p.Run(ctx, names)
	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}

	fmt.Printf("Crawl complete in %v:\n", report.Duration.Round(time.Second))
	for _, sr := range report.Sources {
		fmt.Printf("  %-24s discovered %3d  admitted %3d  refreshed %3d  duplicates %3d  rejected %3d  failed %3d\n",
			sr.Source, sr.Discovered, sr.Admitted, sr.Refreshed, sr.Duplicates, sr.Rejected, sr.Failed)
		if sr.Err != nil {
			fmt.Printf("  %-24s aborted early: %v\n", sr.Source, sr.Err)
		}
	}
	return nil
}

// buildRegistry instantiates one adapter per configured source and maps
// config source names to adapter names. A browser is launched only when
// a community source needs it.
func buildRegistry(cfg config.Config) (*sources.Registry, *fetch.Browser, map[string]string, error) {
	registry := sources.NewRegistry()
	var browser *fetch.Browser
	byName := make(map[string]string)

	throttle := sources.ThrottleConfig{
		MinDelay: cfg.Crawler.MinDelay,
		MaxDelay: cfg.Crawler.MaxDelay,
	}
	apiClient := fetch.NewClient(fetch.Config{Profile: fetch.ProfileAPI, UserAgent: cfg.Crawler.UserAgent})
	webClient := fetch.NewClient(fetch.Config{Profile: fetch.ProfileBrowser})

	for _, src := range cfg.Sources {
		var adapter sources.Adapter

		switch src.Kind {
		case "helpcenter":
			adapter = sources.NewHelpCenter(sources.HelpCenterConfig{
				Platform:    src.Platform,
				StartURLs:   src.URLs,
				PerCategory: src.Limit,
				UserAgent:   cfg.Crawler.UserAgent,
				Throttle:    throttle,
			}, webClient)

		case "community":
			if browser == nil {
				var err error
				browser, err = fetch.NewBrowser(fetch.BrowserConfig{
					Headless: cfg.Browser.Headless,
					Timeout:  cfg.Browser.PageTimeout,
				})
				if err != nil {
					return nil, nil, nil, fmt.Errorf("failed to launch browser: %w", err)
				}
			}
			var err error
			adapter, err = sources.NewCommunity(sources.CommunityConfig{
				Platform:    src.Platform,
				ListingURLs: src.URLs,
				PerListing:  src.Limit,
				Throttle:    throttle,
			}, browser)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("source %s: %w", src.Name, err)
			}

		case "reddit":
			adapter = sources.NewReddit(sources.RedditConfig{
				Subreddits:  src.Subreddits,
				PerSubLimit: src.Limit,
				Throttle:    throttle,
			}, apiClient)

		case "stackexchange":
			adapter = sources.NewStackOverflow(sources.StackOverflowConfig{
				Site:        src.Site,
				Tags:        src.Tags,
				PerTagLimit: src.Limit,
				Throttle:    throttle,
			}, apiClient)

		default:
			return nil, nil, nil, fmt.Errorf("source %s: unknown kind %q", src.Name, src.Kind)
		}

		// Two config entries of the same kind and platform would shadow
		// each other in the registry; merge them in the config instead.
		if _, err := registry.Lookup(adapter.Name()); err == nil {
			return nil, nil, nil, fmt.Errorf("source %s: adapter %q is already configured, merge the entries", src.Name, adapter.Name())
		}
		registry.Register(adapter)
		byName[src.Name] = adapter.Name()
	}

	return registry, browser, byName, nil
}
