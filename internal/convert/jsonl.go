package convert

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Record is one prompt line: the text, the presented choices and the index of
// the correct one. Dimension is only set for multi-axis datasets.
type Record struct {
	Text      string   `json:"text"`
	Choices   []string `json:"choices"`
	Label     int      `json:"label"`
	Dimension string   `json:"dimension,omitempty"`
}

// Writer appends records to a JSON Lines file in call order.
type Writer struct {
	path  string
	file  *os.File
	buf   *bufio.Writer
	line  bytes.Buffer
	enc   *json.Encoder
	count int
}

// Create truncates or creates path, creating parent directories first.
func Create(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}

	w := &Writer{path: path, file: file, buf: bufio.NewWriter(file)}
	w.enc = json.NewEncoder(&w.line)
	// Keep <, > and & literal; non-ASCII is already written as UTF-8.
	w.enc.SetEscapeHTML(false)
	return w, nil
}

// Write serialises rec as a single line. U+2028 and U+2029 are written as
// raw UTF-8 like every other non-ASCII character.
func (w *Writer) Write(rec Record) error {
	w.line.Reset()
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to encode record for %s: %w", w.path, err)
	}
	if _, err := w.buf.Write(unescapeSeparators(w.line.Bytes())); err != nil {
		return fmt.Errorf("failed to write record to %s: %w", w.path, err)
	}
	w.count++
	return nil
}

func (w *Writer) Path() string { return w.path }

func (w *Writer) Count() int { return w.count }

// Close flushes buffered lines and closes the file.
func (w *Writer) Close() error {
	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to flush %s: %w", w.path, err)
	}
	return w.file.Close()
}

// unescapeSeparators turns the \u2028 and \u2029 escapes emitted by
// encoding/json back into raw characters. Every backslash in encoder output
// starts a two-byte escape, so escaped backslashes are copied as pairs.
func unescapeSeparators(line []byte) []byte {
	if !bytes.Contains(line, []byte(`\u202`)) {
		return line
	}
	out := make([]byte, 0, len(line))
	for i := 0; i < len(line); i++ {
		if line[i] != '\\' || i+1 >= len(line) {
			out = append(out, line[i])
			continue
		}
		if rest := line[i:]; len(rest) >= 6 && rest[1] == 'u' && string(rest[2:5]) == "202" && (rest[5] == '8' || rest[5] == '9') {
			if rest[5] == '8' {
				out = append(out, "\u2028"...)
			} else {
				out = append(out, "\u2029"...)
			}
			i += 5
			continue
		}
		out = append(out, line[i], line[i+1])
		i++
	}
	return out
}
