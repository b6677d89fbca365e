// Package pipeline persists and loads corpus files for the crawl and clean
// stages. Writers are atomic: output is staged in a temporary file and
// renamed into place, so a failed run never clobbers an existing corpus.
package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-scholar/models"
)

var (
	rawHeader     = []string{"title", "source_page", "fetched_at"}
	cleanedHeader = []string{"original_title", "normalized_text", "language"}
)

// PersistRaw writes the raw corpus in the requested format: "csv", "json"
// (JSONL), or "dual" which writes the CSV at path plus a .json sibling.
func PersistRaw(format, path string, records []models.RawRecord) error {
	switch format {
	case "csv":
		return WriteRawCSV(path, records)
	case "json":
		return WriteRawJSON(path, records)
	case "dual":
		if err := WriteRawCSV(path, records); err != nil {
			return err
		}
		return WriteRawJSON(RawOutputPaths(format, path)[1], records)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// RawOutputPaths lists every file PersistRaw writes for the format, so
// callers can reserve all of them before starting a run.
func RawOutputPaths(format, path string) []string {
	if format == "dual" {
		return []string{path, strings.TrimSuffix(path, filepath.Ext(path)) + ".json"}
	}
	return []string{path}
}

// WriteRawCSV writes the raw corpus as header-first CSV.
func WriteRawCSV(path string, records []models.RawRecord) error {
	return atomicWrite(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(rawHeader); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
		for _, r := range records {
			row := []string{
				r.Title,
				strconv.Itoa(r.SourcePage),
				r.FetchedAt.UTC().Format(time.RFC3339),
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write csv record: %w", err)
			}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return fmt.Errorf("flush csv records: %w", err)
		}
		return nil
	})
}

// WriteRawJSON writes the raw corpus as newline-delimited JSON.
func WriteRawJSON(path string, records []models.RawRecord) error {
	return atomicWrite(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		for _, r := range records {
			if err := enc.Encode(r); err != nil {
				return fmt.Errorf("encode json record: %w", err)
			}
		}
		return nil
	})
}

// WriteCleanedCSV writes the cleaned corpus as header-first CSV. Tokens are
// not stored separately; they are the space-split of normalized_text.
func WriteCleanedCSV(path string, records []models.CleanedRecord) error {
	return atomicWrite(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(cleanedHeader); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
		for _, r := range records {
			row := []string{r.OriginalTitle, r.NormalizedText, r.Language}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write csv record: %w", err)
			}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return fmt.Errorf("flush csv records: %w", err)
		}
		return nil
	})
}

// atomicWrite streams output into a temp file in the target directory and
// renames it over path only after write succeeds.
func atomicWrite(path string, fill func(io.Writer) error) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	buf := bufio.NewWriter(tmp)
	if err := fill(buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %q: %w", path, err)
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
