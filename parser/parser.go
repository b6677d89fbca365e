// Package parser extracts research-paper titles from result-page markup.
package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Selectors tried in order. The source shifts its markup between the plain
// result heading and the anchor-wrapped variant, so a zero match on the
// primary is retried on the fallback before a page counts as empty.
const (
	primarySelector  = "h3.gs_rt"
	fallbackSelector = "div.gs_ri h3, h3.gs_title"
	citationSelector = "span.gs_ctu"
)

// Kind discriminates the outcome of parsing one result page.
type Kind int

const (
	// KindFound means at least one title was extracted.
	KindFound Kind = iota
	// KindEmpty means the page parsed but held no titles (end of results).
	KindEmpty
	// KindParseFailure means the markup could not be parsed at all.
	KindParseFailure
)

// PageResult is the tagged outcome of parsing one page of markup.
type PageResult struct {
	Kind   Kind
	Titles []string
	Err    error
}

// Found builds a result carrying extracted titles.
func Found(titles []string) PageResult {
	return PageResult{Kind: KindFound, Titles: titles}
}

// Empty reports a well-formed page without titles.
func Empty() PageResult {
	return PageResult{Kind: KindEmpty}
}

// ParseFailure reports unparseable markup.
func ParseFailure(err error) PageResult {
	return PageResult{Kind: KindParseFailure, Err: err}
}

// ParsePage extracts titles from one page of result markup.
func ParsePage(html string) PageResult {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ParseFailure(err)
	}

	titles := extract(doc, primarySelector)
	if len(titles) == 0 {
		titles = extract(doc, fallbackSelector)
	}
	if len(titles) == 0 {
		return Empty()
	}
	return Found(titles)
}

func extract(doc *goquery.Document, selector string) []string {
	var titles []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		// Citation markers ("[CITATION]", "[BOOK]") render inside the
		// heading and must not leak into the title text.
		s.Find(citationSelector).Remove()

		text := s.Find("a").Text()
		if strings.TrimSpace(text) == "" {
			text = s.Text()
		}

		title := NormalizeTitle(text)
		if title != "" {
			titles = append(titles, title)
		}
	})
	return titles
}

// NormalizeTitle applies NFKC normalization, repairs non-breaking spaces, and
// collapses runs of whitespace. Original letter casing is preserved.
func NormalizeTitle(raw string) string {
	s := norm.NFKC.String(raw)
	s = strings.ReplaceAll(s, " ", " ")
	return strings.Join(strings.Fields(s), " ")
}

// DedupKey derives the identity used for run-scoped de-duplication:
// the case-folded form of the whitespace-collapsed title.
func DedupKey(title string) string {
	return cases.Fold().String(NormalizeTitle(title))
}
