package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-scholar/models"
)

// ReadRawCorpus loads a raw corpus CSV, preserving record order.
func ReadRawCorpus(path string) ([]models.RawRecord, error) {
	rows, header, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	titleIdx := columnIndex(header, "title")
	if titleIdx < 0 {
		return nil, fmt.Errorf("corpus %q has no title column (header: %v)", path, header)
	}
	pageIdx := columnIndex(header, "source_page")
	fetchedIdx := columnIndex(header, "fetched_at")

	records := make([]models.RawRecord, 0, len(rows))
	for _, row := range rows {
		rec := models.RawRecord{Title: field(row, titleIdx)}
		if v, err := strconv.Atoi(field(row, pageIdx)); err == nil {
			rec.SourcePage = v
		}
		if t, err := time.Parse(time.RFC3339, field(row, fetchedIdx)); err == nil {
			rec.FetchedAt = t
		}
		records = append(records, rec)
	}
	return records, nil
}

// ReadCleanedCorpus loads a cleaned corpus CSV, preserving record order.
func ReadCleanedCorpus(path string) ([]models.CleanedRecord, error) {
	rows, header, err := readCSV(path)
	if err != nil {
		return nil, err
	}

	origIdx := columnIndex(header, "original_title")
	normIdx := columnIndex(header, "normalized_text")
	langIdx := columnIndex(header, "language")
	if origIdx < 0 || normIdx < 0 {
		return nil, fmt.Errorf("corpus %q is not a cleaned corpus (header: %v)", path, header)
	}

	records := make([]models.CleanedRecord, 0, len(rows))
	for _, row := range rows {
		rec := models.CleanedRecord{
			OriginalTitle:  field(row, origIdx),
			NormalizedText: field(row, normIdx),
			Language:       field(row, langIdx),
		}
		if rec.NormalizedText != "" {
			rec.Tokens = strings.Split(rec.NormalizedText, " ")
		}
		records = append(records, rec)
	}
	return records, nil
}

// ReadTitles loads the title column from a corpus file, accepting raw
// corpora ("title") and cleaned corpora ("original_title") alike so a
// cleaned file can be fed back through the normalizer. A zero-byte file
// yields no titles, not an error, matching a header-only corpus.
func ReadTitles(path string) ([]string, error) {
	rows, header, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	if len(header) == 0 {
		return nil, nil
	}

	idx := columnIndex(header, "title")
	if idx < 0 {
		idx = columnIndex(header, "original_title")
	}
	if idx < 0 {
		return nil, fmt.Errorf("corpus %q has no title column (header: %v)", path, header)
	}

	titles := make([]string, 0, len(rows))
	for _, row := range rows {
		titles = append(titles, field(row, idx))
	}
	return titles, nil
}

func readCSV(path string) (rows [][]string, header []string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	all, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read csv %q: %w", path, err)
	}
	if len(all) == 0 {
		return nil, nil, nil
	}
	return all[1:], all[0], nil
}

func columnIndex(header []string, name string) int {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")), name) {
			return i
		}
	}
	return -1
}

func field(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
