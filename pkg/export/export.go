// Package export writes scraped records to JSON and CSV files.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	xerrors "github.com/CNHLAIA/XHS-Scraper/pkg/errors"
)

// Output formats
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatBoth = "both"
)

// utf8BOM lets spreadsheet tools detect the encoding
const utf8BOM = "\ufeff"

func marshal(v any, indent bool) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func ensureDir(path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ToJSON writes v as indented JSON. A slice is written as an array and
// anything else as a single value.
func ToJSON(v any, path string) (string, error) {
	if err := ensureDir(path); err != nil {
		return "", err
	}
	data, err := marshal(v, true)
	if err != nil {
		return "", fmt.Errorf("failed to encode JSON: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// ToCSV writes v as CSV with a UTF-8 BOM. Each record becomes a row; the
// header is the union of record keys in first-seen order. Nested objects
// and arrays are written as JSON text. An empty slice yields an empty row.
func ToCSV(v any, path string) (string, error) {
	if err := ensureDir(path); err != nil {
		return "", err
	}
	data, err := marshal(v, false)
	if err != nil {
		return "", fmt.Errorf("failed to encode records: %w", err)
	}

	var records []gjson.Result
	doc := gjson.ParseBytes(data)
	if doc.IsArray() {
		records = doc.Array()
	} else {
		records = []gjson.Result{doc}
	}

	var columns []string
	seen := make(map[string]bool)
	rows := make([]map[string]string, 0, len(records))
	for _, rec := range records {
		row := make(map[string]string)
		if rec.IsObject() {
			rec.ForEach(func(key, value gjson.Result) bool {
				k := key.String()
				if !seen[k] {
					seen[k] = true
					columns = append(columns, k)
				}
				row[k] = cell(value)
				return true
			})
		} else {
			if !seen["data"] {
				seen["data"] = true
				columns = append(columns, "data")
			}
			row["data"] = cell(rec)
		}
		rows = append(rows, row)
	}

	var buf bytes.Buffer
	buf.WriteString(utf8BOM)
	w := csv.NewWriter(&buf)
	if err := w.Write(columns); err != nil {
		return "", err
	}
	for _, row := range rows {
		line := make([]string, len(columns))
		for i, c := range columns {
			line[i] = row[c]
		}
		if err := w.Write(line); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to encode CSV: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

func cell(v gjson.Result) string {
	switch v.Type {
	case gjson.Null:
		return ""
	case gjson.String:
		return v.String()
	default:
		return v.Raw
	}
}

// Write exports v to base+".json", base+".csv", or both, and returns the
// paths written. base must not carry an extension.
func Write(v any, base, format string) ([]string, error) {
	base = strings.TrimSuffix(strings.TrimSuffix(base, ".json"), ".csv")

	var paths []string
	switch strings.ToLower(format) {
	case FormatJSON, "":
		p, err := ToJSON(v, base+".json")
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	case FormatCSV:
		p, err := ToCSV(v, base+".csv")
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	case FormatBoth:
		for _, f := range []string{FormatJSON, FormatCSV} {
			p, err := Write(v, base, f)
			if err != nil {
				return paths, err
			}
			paths = append(paths, p...)
		}
	default:
		return nil, xerrors.Usage("unknown output format %q (want json, csv or both)", format)
	}
	return paths, nil
}
