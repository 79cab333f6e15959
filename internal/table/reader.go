package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedExtension is returned for inputs that are neither .csv nor .tsv.
var ErrUnsupportedExtension = errors.New("unsupported file extension")

// ErrMissingColumn is returned when a required header is absent.
var ErrMissingColumn = errors.New("missing column")

// Table is a header row plus data rows. Every row has at least len(Headers) cells.
type Table struct {
	Headers []string
	Rows    [][]string
	index   map[string]int
}

// Extension returns the lowercased extension of path without the dot.
func Extension(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Delimiter picks the field separator from the file extension.
func Delimiter(path string) (rune, error) {
	switch Extension(path) {
	case "csv":
		return ',', nil
	case "tsv":
		return '\t', nil
	default:
		return 0, fmt.Errorf("%w: %s (only .tsv and .csv files are supported)", ErrUnsupportedExtension, path)
	}
}

// ReadFile reads a CSV or TSV file. The extension is checked before the file is opened.
func ReadFile(path string) (*Table, error) {
	comma, err := Delimiter(path)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Parse(content, comma)
}

// Parse parses delimited content whose first record is the header row.
func Parse(content []byte, comma rune) (*Table, error) {
	content = bytes.TrimPrefix(content, []byte("\ufeff"))

	reader := csv.NewReader(bytes.NewReader(content))
	reader.Comma = comma
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	allRows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse table: %w", err)
	}
	if len(allRows) == 0 {
		return nil, fmt.Errorf("empty table")
	}

	headers := allRows[0]
	index := make(map[string]int, len(headers))
	for i, header := range headers {
		headers[i] = strings.TrimSpace(header)
		if _, dup := index[headers[i]]; !dup {
			index[headers[i]] = i
		}
	}

	rows := allRows[1:]
	// Pad short rows so column lookups never go out of range
	for i, row := range rows {
		for j := len(row); j < len(headers); j++ {
			rows[i] = append(rows[i], "")
		}
	}

	return &Table{Headers: headers, Rows: rows, index: index}, nil
}

// Column returns the position of the named header. An exact match wins over a
// case-insensitive one.
func (t *Table) Column(name string) (int, error) {
	if i, ok := t.index[name]; ok {
		return i, nil
	}
	for i, header := range t.Headers {
		if strings.EqualFold(header, name) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q (have %v)", ErrMissingColumn, name, t.Headers)
}

// Columns resolves several headers at once.
func (t *Table) Columns(names ...string) (map[string]int, error) {
	out := make(map[string]int, len(names))
	for _, name := range names {
		i, err := t.Column(name)
		if err != nil {
			return nil, err
		}
		out[name] = i
	}
	return out, nil
}
