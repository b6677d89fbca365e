package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-scholar/models"
)

func sampleRaw() []models.RawRecord {
	return []models.RawRecord{
		{
			Title:      `Attention, "Please": Transformers at Scale`,
			SourcePage: 1,
			FetchedAt:  time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		},
		{
			Title:      "A Study on NLP",
			SourcePage: 2,
			FetchedAt:  time.Date(2026, 3, 14, 9, 31, 0, 0, time.UTC),
		},
	}
}

func TestWriteRawCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.csv")
	records := sampleRaw()

	if err := WriteRawCSV(path, records); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := ReadRawCorpus(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("records = %d, want 2", len(got))
	}
	if got[0].Title != records[0].Title {
		t.Fatalf("title with comma and quotes corrupted: %q", got[0].Title)
	}
	if got[1].SourcePage != 2 {
		t.Fatalf("source page = %d, want 2", got[1].SourcePage)
	}
	if !got[0].FetchedAt.Equal(records[0].FetchedAt) {
		t.Fatalf("fetched_at = %v, want %v", got[0].FetchedAt, records[0].FetchedAt)
	}
}

func TestWriteRawCSVHeaderFirst(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.csv")
	if err := WriteRawCSV(path, nil); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(rows) != 1 || rows[0][0] != "title" {
		t.Fatalf("header row = %v", rows)
	}
}

func TestAtomicWriteReplacesWholeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.csv")
	if err := WriteRawCSV(path, sampleRaw()); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteRawCSV(path, sampleRaw()[:1]); err != nil {
		t.Fatalf("second write: %v", err)
	}

	got, err := ReadRawCorpus(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("records = %d, want 1 (no residue from the first write)", len(got))
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestPersistRawDual(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "raw.csv")

	if err := PersistRaw("dual", path, sampleRaw()); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("csv missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "raw.json")); err != nil {
		t.Fatalf("json missing: %v", err)
	}
}

func TestPersistRawUnknownFormat(t *testing.T) {
	if err := PersistRaw("xml", "out.xml", nil); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWriteCleanedCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cleaned.csv")
	records := []models.CleanedRecord{
		{OriginalTitle: "A Study on NLP", Tokens: []string{"study", "nlp"}, NormalizedText: "study nlp", Language: "english"},
		{OriginalTitle: "Of the and a", NormalizedText: "", Language: "english"},
	}

	if err := WriteCleanedCSV(path, records); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := ReadCleanedCorpus(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("records = %d, want 2", len(got))
	}
	if got[0].NormalizedText != "study nlp" {
		t.Fatalf("normalized = %q", got[0].NormalizedText)
	}
	if len(got[0].Tokens) != 2 || got[0].Tokens[0] != "study" {
		t.Fatalf("tokens = %v", got[0].Tokens)
	}
	if got[1].Tokens != nil {
		t.Fatalf("empty record must have no tokens, got %v", got[1].Tokens)
	}
}

func TestReadTitlesAcceptsBothSchemas(t *testing.T) {
	dir := t.TempDir()

	rawPath := filepath.Join(dir, "raw.csv")
	if err := WriteRawCSV(rawPath, sampleRaw()); err != nil {
		t.Fatalf("write raw: %v", err)
	}
	cleanedPath := filepath.Join(dir, "cleaned.csv")
	cleaned := []models.CleanedRecord{{OriginalTitle: "A Study on NLP", NormalizedText: "study nlp", Language: "english"}}
	if err := WriteCleanedCSV(cleanedPath, cleaned); err != nil {
		t.Fatalf("write cleaned: %v", err)
	}

	rawTitles, err := ReadTitles(rawPath)
	if err != nil {
		t.Fatalf("read raw titles: %v", err)
	}
	if len(rawTitles) != 2 {
		t.Fatalf("raw titles = %v", rawTitles)
	}

	cleanedTitles, err := ReadTitles(cleanedPath)
	if err != nil {
		t.Fatalf("read cleaned titles: %v", err)
	}
	if len(cleanedTitles) != 1 || cleanedTitles[0] != "A Study on NLP" {
		t.Fatalf("cleaned titles = %v", cleanedTitles)
	}
}

func TestReadTitlesZeroByteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zero.csv")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	titles, err := ReadTitles(path)
	if err != nil {
		t.Fatalf("zero-byte corpus must read as empty, got %v", err)
	}
	if len(titles) != 0 {
		t.Fatalf("titles = %v, want none", titles)
	}
}

func TestReadTitlesStripsHeaderBOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bom.csv")
	data := "\uFEFFtitle\nDeep Learning Review\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	titles, err := ReadTitles(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(titles) != 1 || titles[0] != "Deep Learning Review" {
		t.Fatalf("titles = %v", titles)
	}
}

func TestConvertCSVToJSON(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "raw.csv")
	jsonPath := filepath.Join(dir, "raw.json")

	if err := WriteRawCSV(csvPath, sampleRaw()); err != nil {
		t.Fatalf("write: %v", err)
	}

	count, err := ConvertCSVToJSON(csvPath, jsonPath)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}

	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	var objects []map[string]string
	if err := json.Unmarshal(data, &objects); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if objects[0]["title"] != sampleRaw()[0].Title {
		t.Fatalf("title = %q", objects[0]["title"])
	}
}
