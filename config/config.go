// Package config holds the configuration surface for the crawl and clean stages.
package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// CrawlConfig drives a single crawl run.
type CrawlConfig struct {
	BaseURL         string
	Query           string
	MaxPages        int
	Timeout         time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration
	// RateLimitFactor multiplies the backoff when the source answers 429.
	RateLimitFactor int
	DelayMin        time.Duration
	DelayMax        time.Duration
	UserAgents      []string
	OutputFile      string
	OutputFormat    string // csv, json, or dual
}

// DefaultCrawlConfig returns conservative defaults for the scholar target,
// with SCHOLAR_* environment overrides applied.
func DefaultCrawlConfig() *CrawlConfig {
	cfg := &CrawlConfig{
		BaseURL:         "https://scholar.google.com/scholar",
		Query:           "research OR review OR paper",
		MaxPages:        5,
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		RetryBackoff:    500 * time.Millisecond,
		RetryBackoffMax: 8 * time.Second,
		RateLimitFactor: 4,
		DelayMin:        2 * time.Second,
		DelayMax:        5 * time.Second,
		UserAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.5 Safari/605.1.15",
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36",
		},
		OutputFile:   "data/research_titles.csv",
		OutputFormat: "csv",
	}

	if v, ok := EnvString("SCHOLAR_QUERY"); ok {
		cfg.Query = v
	}
	if v, ok := EnvString("SCHOLAR_BASE_URL"); ok {
		cfg.BaseURL = v
	}
	if v, ok := EnvString("SCHOLAR_OUTPUT"); ok {
		cfg.OutputFile = v
	}
	if v, ok, err := EnvInt("SCHOLAR_MAX_PAGES"); err == nil && ok {
		cfg.MaxPages = v
	}
	return cfg
}

// Validate ensures all crawl configuration values are coherent.
func (c *CrawlConfig) Validate() error {
	if strings.TrimSpace(c.Query) == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}
	if c.MaxPages < 1 {
		return fmt.Errorf("max pages must be at least 1")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.RateLimitFactor < 1 {
		return fmt.Errorf("rate limit factor must be at least 1")
	}
	if c.DelayMin < 0 || c.DelayMax < 0 {
		return fmt.Errorf("delay bounds cannot be negative")
	}
	if c.DelayMax < c.DelayMin {
		return fmt.Errorf("delay max (%s) cannot be below delay min (%s)", c.DelayMax, c.DelayMin)
	}
	if len(c.UserAgents) == 0 {
		return fmt.Errorf("user agent pool cannot be empty")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	return nil
}

// CleanConfig drives a single clean run.
type CleanConfig struct {
	InputFile   string
	OutputFile  string
	Language    string
	DropNumbers bool
	Parallelism int
}

// DefaultCleanConfig returns defaults matching the crawl stage output, with
// SCHOLAR_* environment overrides applied.
func DefaultCleanConfig() *CleanConfig {
	cfg := &CleanConfig{
		InputFile:   "data/research_titles.csv",
		Language:    "english",
		DropNumbers: true,
		Parallelism: 4,
	}

	if v, ok := EnvString("SCHOLAR_INPUT"); ok {
		cfg.InputFile = v
	}
	if v, ok := EnvString("SCHOLAR_LANGUAGE"); ok {
		cfg.Language = v
	}
	if v, ok, err := EnvInt("SCHOLAR_PARALLELISM"); err == nil && ok {
		cfg.Parallelism = v
	}
	if v, ok, err := EnvBool("SCHOLAR_KEEP_NUMBERS"); err == nil && ok && v {
		cfg.DropNumbers = false
	}
	return cfg
}

// Validate ensures all clean configuration values are coherent.
func (c *CleanConfig) Validate() error {
	if c.InputFile == "" {
		return fmt.Errorf("input file cannot be empty")
	}
	if c.Language == "" {
		return fmt.Errorf("language cannot be empty")
	}
	if c.Parallelism < 1 {
		return fmt.Errorf("parallelism must be at least 1")
	}
	return nil
}

// ResolvedOutput returns the configured output path, deriving
// "<input>_cleaned<ext>" when none was set.
func (c *CleanConfig) ResolvedOutput() string {
	if c.OutputFile != "" {
		return c.OutputFile
	}
	ext := filepath.Ext(c.InputFile)
	base := strings.TrimSuffix(c.InputFile, ext)
	return base + "_cleaned" + ext
}

// ServerConfig configures the HTTP trigger/query server.
type ServerConfig struct {
	ListenAddr string
	// DataDir bounds the corpus files the server will read or serve.
	DataDir         string
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns the default server settings, with SCHOLAR_*
// environment overrides applied.
func DefaultServerConfig() *ServerConfig {
	cfg := &ServerConfig{
		ListenAddr:      ":8080",
		DataDir:         "data",
		ShutdownTimeout: 5 * time.Second,
	}

	if v, ok := EnvString("SCHOLAR_LISTEN"); ok {
		cfg.ListenAddr = v
	}
	if v, ok := EnvString("SCHOLAR_DATA_DIR"); ok {
		cfg.DataDir = v
	}
	return cfg
}

// Validate ensures the server configuration is coherent.
func (c *ServerConfig) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address cannot be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	return nil
}
