package scraper

import (
	"context"
	"encoding/csv"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/aluiziolira/go-scrape-scholar/config"
	"github.com/aluiziolira/go-scrape-scholar/models"
)

const (
	page1HTML = `<html><body>
<div class="gs_ri"><h3 class="gs_rt"><a href="/p1">Deep Learning Review</a></h3></div>
<div class="gs_ri"><h3 class="gs_rt"><a href="/p2">deep   learning review</a></h3></div>
<div class="gs_ri"><h3 class="gs_rt"><a href="/p3">A Study on NLP</a></h3></div>
</body></html>`
	page2HTML = `<html><body>
<div class="gs_ri"><h3 class="gs_rt"><a href="/p4">Graph Neural Networks</a></h3></div>
</body></html>`
	emptyHTML = `<html><body><div id="gs_res"></div></body></html>`
)

type fakeStrategy struct {
	uaCalls    int64
	delayCalls int64
}

func (f *fakeStrategy) NextUserAgent() string {
	atomic.AddInt64(&f.uaCalls, 1)
	return "test-agent"
}

func (f *fakeStrategy) NextDelay() time.Duration {
	atomic.AddInt64(&f.delayCalls, 1)
	return 0
}

func testConfig(t *testing.T) *config.CrawlConfig {
	t.Helper()
	cfg := config.DefaultCrawlConfig()
	cfg.BaseURL = "http://example.test/search"
	cfg.Query = "deep learning"
	cfg.MaxPages = 3
	cfg.MaxRetries = 1
	cfg.Timeout = time.Second
	cfg.RetryBackoff = time.Millisecond
	cfg.RetryBackoffMax = 2 * time.Millisecond
	cfg.DelayMin = 0
	cfg.DelayMax = 0
	cfg.OutputFile = filepath.Join(t.TempDir(), "titles.csv")
	return cfg
}

func pageURL(cfg *config.CrawlConfig, page int) string {
	if page == 1 {
		return cfg.BaseURL + "?q=deep+learning"
	}
	return cfg.BaseURL + "?q=deep+learning&start=10"
}

func newTestScraper(t *testing.T, cfg *config.CrawlConfig, transport *httpmock.MockTransport) (*Scraper, *fakeStrategy) {
	t.Helper()
	strategy := &fakeStrategy{}
	s, err := NewScraper(cfg, WithTransport(transport), WithStrategy(strategy))
	if err != nil {
		t.Fatalf("new scraper: %v", err)
	}
	return s, strategy
}

func readOutput(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	return rows
}

func TestRunDedupAndDiscoveryOrder(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxPages = 2

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", pageURL(cfg, 1), httpmock.NewStringResponder(200, page1HTML))
	transport.RegisterResponder("GET", pageURL(cfg, 2), httpmock.NewStringResponder(200, page2HTML))

	s, _ := newTestScraper(t, cfg, transport)
	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.UniqueTitles != 3 {
		t.Fatalf("unique titles = %d, want 3", result.UniqueTitles)
	}
	want := []string{"Deep Learning Review", "A Study on NLP", "Graph Neural Networks"}
	for i, title := range want {
		if result.Records[i].Title != title {
			t.Fatalf("records[%d].Title = %q, want %q", i, result.Records[i].Title, title)
		}
	}
	if result.Records[0].SourcePage != 1 || result.Records[2].SourcePage != 2 {
		t.Fatalf("source pages wrong: %+v", result.Records)
	}

	rows := readOutput(t, cfg.OutputFile)
	if len(rows) != 4 {
		t.Fatalf("output rows = %d, want header + 3", len(rows))
	}
	if rows[0][0] != "title" {
		t.Fatalf("unexpected header: %v", rows[0])
	}
	if rows[1][0] != "Deep Learning Review" {
		t.Fatalf("first record = %v", rows[1])
	}
}

func TestRunStopsOnEmptyPage(t *testing.T) {
	cfg := testConfig(t)

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", pageURL(cfg, 1), httpmock.NewStringResponder(200, page1HTML))
	transport.RegisterResponder("GET", pageURL(cfg, 2), httpmock.NewStringResponder(200, emptyHTML))

	s, _ := newTestScraper(t, cfg, transport)
	result, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.StopReason != models.StopEmptyPage {
		t.Fatalf("stop reason = %s, want %s", result.StopReason, models.StopEmptyPage)
	}
	if result.UniqueTitles != 2 {
		t.Fatalf("unique titles = %d, want 2", result.UniqueTitles)
	}
}

func TestRunPageCap(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxPages = 2

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", pageURL(cfg, 1), httpmock.NewStringResponder(200, page1HTML))
	transport.RegisterResponder("GET", pageURL(cfg, 2), httpmock.NewStringResponder(200, page2HTML))

	s, strategy := newTestScraper(t, cfg, transport)
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := transport.GetTotalCallCount(); got != 2 {
		t.Fatalf("page fetches = %d, want 2", got)
	}
	// Evasion runs before every attempt, never skipped.
	if got := atomic.LoadInt64(&strategy.uaCalls); got != 2 {
		t.Fatalf("user-agent rotations = %d, want 2", got)
	}
	if got := atomic.LoadInt64(&strategy.delayCalls); got != 2 {
		t.Fatalf("delay draws = %d, want 2", got)
	}
}

func TestRunPartialPersistenceOnFetchFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxRetries = 2

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", pageURL(cfg, 1), httpmock.NewStringResponder(200, page1HTML))
	transport.RegisterResponder("GET", pageURL(cfg, 2), httpmock.NewStringResponder(500, "upstream broken"))

	s, _ := newTestScraper(t, cfg, transport)
	result, err := s.Run(context.Background())

	var fetchErr ErrFetch
	if !errors.As(err, &fetchErr) {
		t.Fatalf("error = %v, want ErrFetch", err)
	}
	if fetchErr.Page != 2 {
		t.Fatalf("failed page = %d, want 2", fetchErr.Page)
	}
	if fetchErr.Persisted != 2 {
		t.Fatalf("persisted = %d, want 2", fetchErr.Persisted)
	}
	if fetchErr.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3 (retries exhausted)", fetchErr.Attempts)
	}
	if result.StopReason != models.StopAborted {
		t.Fatalf("stop reason = %s, want %s", result.StopReason, models.StopAborted)
	}
	if result.RetryCount != 2 {
		t.Fatalf("retries = %d, want 2", result.RetryCount)
	}

	rows := readOutput(t, cfg.OutputFile)
	if len(rows) != 3 {
		t.Fatalf("output rows = %d, want header + 2 titles from page 1", len(rows))
	}
}

func TestRunNonRetryableFailsOnFirstAttempt(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxRetries = 3

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", pageURL(cfg, 1), httpmock.NewStringResponder(403, "blocked"))

	s, _ := newTestScraper(t, cfg, transport)
	result, err := s.Run(context.Background())

	var fetchErr ErrFetch
	if !errors.As(err, &fetchErr) {
		t.Fatalf("error = %v, want ErrFetch", err)
	}
	if fetchErr.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (forbidden is not retried)", fetchErr.Attempts)
	}
	if got := transport.GetTotalCallCount(); got != 1 {
		t.Fatalf("requests = %d, want 1", got)
	}
	if result.RetryCount != 0 {
		t.Fatalf("retries = %d, want 0", result.RetryCount)
	}
}

func TestRunCancelledBeforeFirstPage(t *testing.T) {
	cfg := testConfig(t)
	transport := httpmock.NewMockTransport()

	s, _ := newTestScraper(t, cfg, transport)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := s.Run(ctx)
	if err != nil {
		t.Fatalf("cooperative stop should not fail: %v", err)
	}
	if result.StopReason != models.StopCancelled {
		t.Fatalf("stop reason = %s, want %s", result.StopReason, models.StopCancelled)
	}
	if transport.GetTotalCallCount() != 0 {
		t.Fatal("no request should be issued after cancellation")
	}
	if _, err := os.Stat(cfg.OutputFile); err != nil {
		t.Fatalf("collected data (empty corpus) should still be persisted: %v", err)
	}
}

func TestNewScraperRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Query = "   "

	_, err := NewScraper(cfg)
	var cfgErr ErrConfig
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error = %v, want ErrConfig", err)
	}
}

func TestBackoffRateLimitedLonger(t *testing.T) {
	cfg := testConfig(t)
	cfg.RetryBackoff = 100 * time.Millisecond
	cfg.RetryBackoffMax = time.Second
	cfg.RateLimitFactor = 4

	s, _ := newTestScraper(t, cfg, httpmock.NewMockTransport())

	generic := s.backoff(1, ErrTimeout{Err: errors.New("t")})
	limited := s.backoff(1, ErrRateLimited{Err: errors.New("429")})
	if limited != generic*4 {
		t.Fatalf("rate-limited backoff = %v, want 4x generic %v", limited, generic)
	}

	if capped := s.backoff(6, ErrTimeout{Err: errors.New("t")}); capped > cfg.RetryBackoffMax {
		t.Fatalf("backoff %v exceeds max %v", capped, cfg.RetryBackoffMax)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
	}{
		{name: "nil", err: nil, statusCode: 0, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, statusCode: 0, expected: "timeout"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, statusCode: 0, expected: "timeout"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, statusCode: 0, expected: "connection"},
		{name: "forbidden", err: nil, statusCode: http.StatusForbidden, expected: "forbidden"},
		{name: "not found", err: nil, statusCode: http.StatusNotFound, expected: "not_found"},
		{name: "rate limited", err: nil, statusCode: http.StatusTooManyRequests, expected: "rate_limited"},
		{name: "server", err: nil, statusCode: http.StatusBadGateway, expected: "server"},
		{name: "other", err: errors.New("some other error"), statusCode: 0, expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorTypeLabel(classifyError(tt.err, tt.statusCode)); got != tt.expected {
				t.Fatalf("classifyError(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestRetryableClassification(t *testing.T) {
	if !retryable(ErrRateLimited{Err: errors.New("429")}) {
		t.Fatal("rate limited must be retryable")
	}
	if !retryable(ErrServer{Status: 502, Err: errors.New("bad gateway")}) {
		t.Fatal("5xx must be retryable")
	}
	if retryable(ErrNotFound{Err: errors.New("404")}) {
		t.Fatal("404 must not be retryable")
	}
}
