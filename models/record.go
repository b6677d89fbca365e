// Package models defines data structures shared by the crawl and clean stages.
package models

import "time"

// RawRecord is one scraped title as discovered on a results page.
type RawRecord struct {
	Title      string    `csv:"title" json:"title"`
	SourcePage int       `csv:"source_page" json:"source_page"`
	FetchedAt  time.Time `csv:"fetched_at" json:"fetched_at"`
}

// CleanedRecord is the normalized form of a RawRecord.
type CleanedRecord struct {
	OriginalTitle  string   `csv:"original_title" json:"original_title"`
	Tokens         []string `csv:"tokens" json:"tokens"`
	NormalizedText string   `csv:"normalized_text" json:"normalized_text"`
	Language       string   `csv:"language" json:"language"`
}

// StopReason records why a crawl run stopped paginating.
type StopReason string

const (
	StopMaxPages  StopReason = "max_pages"
	StopEmptyPage StopReason = "empty_page"
	StopParseFail StopReason = "parse_failure"
	StopAborted   StopReason = "aborted"
	StopCancelled StopReason = "cancelled"
)

// CrawlResult holds the overall result of a crawl run.
type CrawlResult struct {
	Records      []RawRecord
	StartTime    time.Time
	EndTime      time.Time
	UniqueTitles int
	PagesFetched int
	RequestCount int
	RetryCount   int
	ErrorCount   int
	ErrorsByType map[string]int
	StopReason   StopReason
}

// CleanResult holds the overall result of a clean run.
type CleanResult struct {
	Records    []CleanedRecord
	StartTime  time.Time
	EndTime    time.Time
	InputCount int
	EmptyCount int
}
