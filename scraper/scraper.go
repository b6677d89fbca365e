// Package scraper implements the crawl stage: a sequential, throttled page
// loop over paginated search results, collecting de-duplicated titles.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/go-scrape-scholar/config"
	"github.com/aluiziolira/go-scrape-scholar/models"
	"github.com/aluiziolira/go-scrape-scholar/parser"
	"github.com/aluiziolira/go-scrape-scholar/pipeline"
	"github.com/gocolly/colly/v2"
)

const resultsPerPage = 10

// Scraper drives a single crawl run. Page fetches are issued strictly
// sequentially; the only retry concurrency is the backoff timer.
type Scraper struct {
	cfg       *config.CrawlConfig
	collector *colly.Collector
	strategy  Strategy
	Metrics   *Metrics

	requestCount int64
	retryCount   int64
	errorCount   int64

	mu           sync.Mutex
	currentUA    string
	lastStatus   int
	lastBody     []byte
	lastErr      error
	errorsByType map[string]int

	handlersOnce sync.Once
}

// Option customizes a Scraper at construction time.
type Option func(*Scraper)

// WithStrategy replaces the default randomized evasion strategy.
func WithStrategy(s Strategy) Option {
	return func(sc *Scraper) {
		sc.strategy = s
	}
}

// WithTransport replaces the HTTP transport (used by tests).
func WithTransport(rt http.RoundTripper) Option {
	return func(sc *Scraper) {
		sc.collector.WithTransport(rt)
	}
}

// WithMetrics shares an existing metrics bundle instead of a fresh registry,
// so runs dispatched by a long-lived server accumulate on one registry.
func WithMetrics(m *Metrics) Option {
	return func(sc *Scraper) {
		if m != nil {
			sc.Metrics = m
		}
	}
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.CrawlConfig, opts ...Option) (*Scraper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, ErrConfig{Err: err}
	}

	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, ErrConfig{Err: fmt.Errorf("parse base url: %w", err)}
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Host),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	s := &Scraper{
		cfg:          cfg,
		collector:    collector,
		strategy:     NewRandomStrategy(cfg.UserAgents, cfg.DelayMin, cfg.DelayMax),
		Metrics:      NewMetrics(),
		errorsByType: make(map[string]int),
	}
	s.configureHandlers()

	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run executes the crawl and persists the collected unique titles. On a
// fetch failure past the retry ceiling it persists what was collected so
// far and returns ErrFetch. A context cancellation is a cooperative stop:
// partial results are persisted and no error is returned.
func (s *Scraper) Run(ctx context.Context) (*models.CrawlResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	seen := make(map[string]struct{})
	records := make([]models.RawRecord, 0, s.cfg.MaxPages*resultsPerPage)
	result := &models.CrawlResult{
		StartTime:  start,
		StopReason: models.StopMaxPages,
	}

	var fetchErr error

pages:
	for page := 1; page <= s.cfg.MaxPages; page++ {
		if ctx.Err() != nil {
			result.StopReason = models.StopCancelled
			break
		}

		body, attempts, err := s.fetchPage(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				result.StopReason = models.StopCancelled
				break
			}
			result.StopReason = models.StopAborted
			fetchErr = ErrFetch{
				Page:      page,
				Attempts:  attempts,
				Persisted: len(records),
				Err:       err,
			}
			break
		}
		s.Metrics.IncPages()
		result.PagesFetched++

		res := parser.ParsePage(body)
		switch res.Kind {
		case parser.KindParseFailure:
			slog.Warn("unparseable result page, stopping pagination",
				slog.Int("page", page),
				slog.Any("error", res.Err),
			)
			result.StopReason = models.StopParseFail
			break pages
		case parser.KindEmpty:
			slog.Info("no titles on page, assuming end of results", slog.Int("page", page))
			result.StopReason = models.StopEmptyPage
			break pages
		case parser.KindFound:
			added := 0
			for _, title := range res.Titles {
				key := parser.DedupKey(title)
				if _, dup := seen[key]; dup {
					s.Metrics.IncDuplicates()
					continue
				}
				seen[key] = struct{}{}
				records = append(records, models.RawRecord{
					Title:      title,
					SourcePage: page,
					FetchedAt:  time.Now().UTC(),
				})
				s.Metrics.IncTitles()
				added++
			}
			slog.Info("page scraped",
				slog.Int("page", page),
				slog.Int("titles", len(res.Titles)),
				slog.Int("new", added),
				slog.Int("total", len(records)),
			)
		}
	}

	result.EndTime = time.Now()
	result.Records = records
	result.UniqueTitles = len(records)
	result.RequestCount = int(atomic.LoadInt64(&s.requestCount))
	result.RetryCount = int(atomic.LoadInt64(&s.retryCount))
	result.ErrorCount = int(atomic.LoadInt64(&s.errorCount))
	result.ErrorsByType = s.snapshotErrors()

	if err := pipeline.PersistRaw(s.cfg.OutputFormat, s.cfg.OutputFile, records); err != nil {
		if fetchErr != nil {
			return result, fmt.Errorf("persist after fetch failure (%v): %w", fetchErr, err)
		}
		return result, fmt.Errorf("persist corpus: %w", err)
	}

	slog.Info("crawl finished",
		slog.Int("unique_titles", result.UniqueTitles),
		slog.Int("pages", result.PagesFetched),
		slog.String("stop_reason", string(result.StopReason)),
		slog.String("output", s.cfg.OutputFile),
	)
	return result, fetchErr
}

// fetchPage fetches one results page, retrying transient failures with
// exponential backoff. Rate-limit responses back off RateLimitFactor times
// longer. The evasion strategy runs before every attempt. The returned count
// is the number of attempts actually issued.
func (s *Scraper) fetchPage(ctx context.Context, page int) (string, int, error) {
	target := s.pageURL(page)

	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			atomic.AddInt64(&s.retryCount, 1)
			s.Metrics.IncRetries()

			delay := s.backoff(attempt, lastErr)
			slog.Debug("retrying page",
				slog.Int("page", page),
				slog.Int("attempt", attempt),
				slog.Duration("backoff", delay),
			)
			if err := sleepCtx(ctx, delay); err != nil {
				return "", attempt, err
			}
		}

		ua := s.strategy.NextUserAgent()
		if pause := s.strategy.NextDelay(); pause > 0 {
			if err := sleepCtx(ctx, pause); err != nil {
				return "", attempt, err
			}
		}

		body, err := s.visit(target, ua)
		if err == nil {
			return body, attempt + 1, nil
		}

		atomic.AddInt64(&s.errorCount, 1)
		label := errorTypeLabel(err)
		s.Metrics.IncError(label)
		s.mu.Lock()
		s.errorsByType[label]++
		s.mu.Unlock()
		slog.Warn("page fetch failed",
			slog.Int("page", page),
			slog.Int("attempt", attempt+1),
			slog.String("category", label),
			slog.Any("error", err),
		)

		if !retryable(err) {
			return "", attempt + 1, err
		}
		lastErr = err
	}
	return "", s.cfg.MaxRetries + 1, lastErr
}

// visit issues one request through the collector and returns the body.
func (s *Scraper) visit(target, userAgent string) (string, error) {
	s.mu.Lock()
	s.currentUA = userAgent
	s.lastStatus = 0
	s.lastBody = nil
	s.lastErr = nil
	s.mu.Unlock()

	atomic.AddInt64(&s.requestCount, 1)
	s.Metrics.IncRequest("started")

	visitErr := s.collector.Visit(target)
	s.collector.Wait()

	s.mu.Lock()
	status, body, err := s.lastStatus, s.lastBody, s.lastErr
	s.mu.Unlock()

	if err == nil && visitErr != nil {
		err = visitErr
	}
	if err != nil || status >= http.StatusBadRequest {
		return "", classifyError(err, status)
	}
	return string(body), nil
}

func (s *Scraper) configureHandlers() {
	s.handlersOnce.Do(func() {
		s.collector.OnRequest(func(r *colly.Request) {
			s.mu.Lock()
			ua := s.currentUA
			s.mu.Unlock()
			if ua != "" {
				r.Headers.Set("User-Agent", ua)
			}
			r.Ctx.Put("start", time.Now())
		})

		s.collector.OnResponse(func(r *colly.Response) {
			s.mu.Lock()
			s.lastStatus = r.StatusCode
			s.lastBody = r.Body
			s.mu.Unlock()
			if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
				s.Metrics.ObserveDuration(time.Since(start))
			}
		})

		s.collector.OnError(func(r *colly.Response, err error) {
			s.mu.Lock()
			if r != nil {
				s.lastStatus = r.StatusCode
			}
			s.lastErr = err
			s.mu.Unlock()
		})
	})
}

// pageURL builds the target URL for a 1-based page index.
func (s *Scraper) pageURL(page int) string {
	values := url.Values{}
	values.Set("q", s.cfg.Query)
	if page > 1 {
		values.Set("start", fmt.Sprintf("%d", (page-1)*resultsPerPage))
	}
	return s.cfg.BaseURL + "?" + values.Encode()
}

// backoff computes the retry delay: exponential on the attempt number,
// capped at RetryBackoffMax, multiplied for rate-limit responses.
func (s *Scraper) backoff(attempt int, lastErr error) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := s.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if ceiling := s.cfg.RetryBackoffMax; ceiling > 0 && delay > ceiling {
		delay = ceiling
	}
	if errorTypeLabel(lastErr) == "rate_limited" {
		delay *= time.Duration(s.cfg.RateLimitFactor)
	}
	return delay
}

func (s *Scraper) snapshotErrors() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.errorsByType))
	for k, v := range s.errorsByType {
		out[k] = v
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
