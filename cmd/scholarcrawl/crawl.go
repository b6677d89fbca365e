package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-scrape-scholar/cleaner"
	"github.com/aluiziolira/go-scrape-scholar/config"
	"github.com/aluiziolira/go-scrape-scholar/models"
	"github.com/aluiziolira/go-scrape-scholar/scraper"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Scrape research-paper titles into a raw corpus file",
	RunE:  runCrawl,
}

func init() {
	defaults := config.DefaultCrawlConfig()

	crawlCmd.Flags().String("query", defaults.Query, "search query")
	crawlCmd.Flags().Int("pages", defaults.MaxPages, "maximum result pages to fetch")
	crawlCmd.Flags().String("output", defaults.OutputFile, "output corpus path")
	crawlCmd.Flags().String("format", defaults.OutputFormat, "output format: csv, json, or dual")
	crawlCmd.Flags().String("base-url", defaults.BaseURL, "search results base URL")
	crawlCmd.Flags().Int("max-retries", defaults.MaxRetries, "retry ceiling per page")
	crawlCmd.Flags().Int("timeout", int(defaults.Timeout/time.Millisecond), "request timeout (milliseconds)")
	crawlCmd.Flags().Bool("chain", false, "run the clean stage after a successful crawl")
	crawlCmd.Flags().String("language", "english", "language for the chained clean stage")

	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultCrawlConfig()

	file, err := loadConfigFile()
	if err != nil {
		return err
	}
	file.ApplyCrawl(cfg)

	flags := cmd.Flags()
	if flags.Changed("query") {
		cfg.Query, _ = flags.GetString("query")
	}
	if flags.Changed("pages") {
		cfg.MaxPages, _ = flags.GetInt("pages")
	}
	if flags.Changed("output") {
		cfg.OutputFile, _ = flags.GetString("output")
	}
	if flags.Changed("format") {
		cfg.OutputFormat, _ = flags.GetString("format")
	}
	if flags.Changed("base-url") {
		cfg.BaseURL, _ = flags.GetString("base-url")
	}
	if flags.Changed("max-retries") {
		cfg.MaxRetries, _ = flags.GetInt("max-retries")
	}
	if flags.Changed("timeout") {
		ms, _ := flags.GetInt("timeout")
		cfg.Timeout = time.Duration(ms) * time.Millisecond
	}

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting crawl",
		slog.String("query", cfg.Query),
		slog.Int("pages", cfg.MaxPages),
		slog.String("output", cfg.OutputFile),
	)

	result, err := s.Run(ctx)
	if err != nil {
		var fetchErr scraper.ErrFetch
		if errors.As(err, &fetchErr) {
			slog.Error("crawl aborted with partial results",
				slog.Int("persisted", fetchErr.Persisted),
				slog.Any("error", err),
			)
			printCrawlSummary(result, cfg.OutputFile)
			return err
		}
		return err
	}

	printCrawlSummary(result, cfg.OutputFile)

	if chain, _ := flags.GetBool("chain"); chain {
		language, _ := flags.GetString("language")
		return chainClean(ctx, file, cfg.OutputFile, language)
	}
	return nil
}

func chainClean(ctx context.Context, file *config.File, input, language string) error {
	cleanCfg := config.DefaultCleanConfig()
	file.ApplyClean(cleanCfg)
	cleanCfg.InputFile = input
	cleanCfg.OutputFile = ""
	if language != "" {
		cleanCfg.Language = language
	}

	c, err := cleaner.New(cleanCfg)
	if err != nil {
		return err
	}
	result, err := c.Run(ctx)
	if err != nil {
		return err
	}
	printCleanSummary(result, cleanCfg.ResolvedOutput())
	return nil
}

func printCrawlSummary(result *models.CrawlResult, output string) {
	if result == nil {
		return
	}
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Crawl complete")
	fmt.Printf("  Unique titles: %d\n", result.UniqueTitles)
	fmt.Printf("  Pages fetched: %d\n", result.PagesFetched)
	fmt.Printf("  Requests:      %d\n", result.RequestCount)
	fmt.Printf("  Retries:       %d\n", result.RetryCount)
	if len(result.ErrorsByType) > 0 {
		fmt.Printf("  Error types:   %v\n", result.ErrorsByType)
	}
	fmt.Printf("  Stop reason:   %s\n", result.StopReason)
	fmt.Printf("  Duration:      %v\n", result.EndTime.Sub(result.StartTime))
	fmt.Printf("  Output file:   %s\n", output)
	fmt.Println(separator)
}
