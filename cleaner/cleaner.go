// Package cleaner implements the normalization stage: it repairs encoding
// artifacts, tokenizes, filters, and lemmatizes scraped titles. The
// per-record transform is a pure function of (title, language resources),
// so re-running the stage over its own output reproduces it byte for byte.
package cleaner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/aluiziolira/go-scrape-scholar/config"
	"github.com/aluiziolira/go-scrape-scholar/models"
	"github.com/aluiziolira/go-scrape-scholar/pipeline"
	"github.com/clipperhouse/uax29/v2/words"
)

// Cleaner runs the normalization stage for one configured language.
type Cleaner struct {
	cfg        *config.CleanConfig
	stopwords  map[string]struct{}
	lemmatizer *lemmatizer
}

// New builds a Cleaner, failing fast when the language has no configured
// resources.
func New(cfg *config.CleanConfig) (*Cleaner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	stopwords, ok := stopwordsFor(cfg.Language)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, cfg.Language)
	}

	return &Cleaner{
		cfg:        cfg,
		stopwords:  stopwords,
		lemmatizer: newLemmatizer(),
	}, nil
}

func stopwordsFor(language string) (map[string]struct{}, bool) {
	switch strings.ToLower(language) {
	case "english", "en":
		return englishStopwords, true
	default:
		return nil, false
	}
}

// Run reads the input corpus, normalizes every record, and atomically writes
// the cleaned corpus. Records are processed by a worker pool; output order
// always matches input order. Cancellation between records persists the
// records processed so far.
func (c *Cleaner) Run(ctx context.Context) (*models.CleanResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	titles, err := pipeline.ReadTitles(c.cfg.InputFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrInputNotFound, c.cfg.InputFile)
		}
		return nil, err
	}
	if len(titles) == 0 {
		return nil, fmt.Errorf("%w: %s has no records", ErrInputNotFound, c.cfg.InputFile)
	}

	records := make([]models.CleanedRecord, len(titles))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < c.cfg.Parallelism; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				records[i] = c.CleanTitle(titles[i])
			}
		}()
	}

	processed := len(titles)
feed:
	for i := range titles {
		select {
		case <-ctx.Done():
			processed = i
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	records = records[:processed]

	result := &models.CleanResult{
		Records:    records,
		StartTime:  start,
		InputCount: len(titles),
	}
	for _, r := range records {
		if r.NormalizedText == "" {
			result.EmptyCount++
		}
	}

	output := c.cfg.ResolvedOutput()
	if err := pipeline.WriteCleanedCSV(output, records); err != nil {
		return result, fmt.Errorf("persist cleaned corpus: %w", err)
	}
	result.EndTime = time.Now()

	slog.Info("clean finished",
		slog.Int("records", len(records)),
		slog.Int("empty", result.EmptyCount),
		slog.String("output", output),
	)
	return result, nil
}

// CleanTitle normalizes a single title. Titles that reduce to zero tokens
// are kept with an empty NormalizedText so downstream consumers decide
// whether to drop them.
func (c *Cleaner) CleanTitle(title string) models.CleanedRecord {
	repaired := RepairMojibake(title)

	var tokens []string
	segments := words.FromString(repaired)
	for segments.Next() {
		token := strings.ToLower(segments.Value())
		if !c.keepToken(token) {
			continue
		}
		tokens = append(tokens, c.lemmatizer.Lemma(token))
	}

	return models.CleanedRecord{
		OriginalTitle:  title,
		Tokens:         tokens,
		NormalizedText: strings.Join(tokens, " "),
		Language:       strings.ToLower(c.cfg.Language),
	}
}

func (c *Cleaner) keepToken(token string) bool {
	hasLetter := false
	hasDigit := false
	for _, r := range token {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter && !hasDigit {
		return false // pure punctuation or whitespace
	}
	if !hasLetter && c.cfg.DropNumbers {
		return false
	}
	if _, stop := c.stopwords[token]; stop {
		return false
	}
	return true
}
