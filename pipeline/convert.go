package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// ConvertCSVToJSON rewrites a corpus CSV as a JSON array of objects keyed by
// the header row. The JSON file is written atomically.
func ConvertCSVToJSON(csvPath, jsonPath string) (int, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("read csv %q: %w", csvPath, err)
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("csv %q is empty", csvPath)
	}

	header := rows[0]
	objects := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		obj := make(map[string]string, len(header))
		for i, key := range header {
			obj[key] = field(row, i)
		}
		objects = append(objects, obj)
	}

	err = atomicWrite(jsonPath, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(objects)
	})
	if err != nil {
		return 0, err
	}
	return len(objects), nil
}
