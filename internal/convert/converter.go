package convert

import (
	"fmt"
	"log"
	"maps"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/goldfish-inc/evalita-prep/internal/labels"
	"github.com/goldfish-inc/evalita-prep/internal/metrics"
	"github.com/goldfish-inc/evalita-prep/internal/table"
)

// Options controls how rows become records.
type Options struct {
	Shuffler *labels.Shuffler
	// Verbose traces the first TraceRows rows before and after shuffling.
	Verbose   bool
	TraceRows int
	// NormalizeText applies Unicode NFC to the text field. Off by default so
	// text is copied byte for byte.
	NormalizeText bool
}

// Converter turns annotation tables into JSONL prompt files.
type Converter struct {
	opts    Options
	logger  *log.Logger
	metrics *metrics.Recorder
}

// New creates a Converter. A nil Shuffler means choices keep their order.
func New(opts Options, logger *log.Logger, rec *metrics.Recorder) *Converter {
	if opts.Shuffler == nil {
		opts.Shuffler = labels.NewShuffler(false, nil)
	}
	return &Converter{opts: opts, logger: logger, metrics: rec}
}

// OutputFile describes one written JSONL file.
type OutputFile struct {
	Path      string
	Dimension string
	Records   int
}

// Summary is the result of one conversion.
type Summary struct {
	Dataset    string
	InputPath  string
	Categories []string
	Rows       int
	Files      []OutputFile
	// LabelCounts maps dimension ("" for single-axis datasets) to the number of
	// records whose correct answer is each label.
	LabelCounts map[string]map[string]int
}

// Records returns the total number of lines written across all files.
func (s Summary) Records() int {
	n := 0
	for _, f := range s.Files {
		n += f.Records
	}
	return n
}

// Totals folds LabelCounts over every dimension.
func (s Summary) Totals() map[string]int {
	out := make(map[string]int, len(s.Categories))
	for _, counts := range s.LabelCounts {
		for label, n := range counts {
			out[label] += n
		}
	}
	return out
}

func (s Summary) Paths() []string {
	paths := make([]string, 0, len(s.Files))
	for _, f := range s.Files {
		paths = append(paths, f.Path)
	}
	return paths
}

func (c *Converter) readTable(path string) (*table.Table, error) {
	c.logger.Printf("File extension: %s", table.Extension(path))
	return table.ReadFile(path)
}

func (c *Converter) text(raw string) string {
	if c.opts.NormalizeText {
		return norm.NFC.String(raw)
	}
	return raw
}

// choose shuffles categories for one record and traces the result when asked.
func (c *Converter) choose(categories []string, label, row int, dimension string) (labels.ChoiceSet, error) {
	trace := c.opts.Verbose && row < c.opts.TraceRows
	if trace {
		c.logger.Printf("Before shuffle choices=%q, label_str=%q, label_index=%d %s",
			categories, categories[label], label, dimension)
	}
	set, err := c.opts.Shuffler.Shuffle(categories, label)
	if err != nil {
		return set, err
	}
	if trace {
		c.logger.Printf("After shuffle choices=%q, label_str=%q, label_index=%d %s",
			set.Choices, set.Correct(), set.Label, dimension)
	}
	return set, nil
}

func (c *Converter) logCounts(counts map[string]map[string]int) {
	for _, dim := range slices.Sorted(maps.Keys(counts)) {
		var parts []string
		for _, label := range slices.Sorted(maps.Keys(counts[dim])) {
			parts = append(parts, fmt.Sprintf("%s=%d", label, counts[dim][label]))
		}
		name := dim
		if name == "" {
			name = "all"
		}
		c.logger.Printf("End -- %s label counts: %s", name, strings.Join(parts, ", "))
	}
}

// closeAll closes every writer and keeps the first error.
func closeAll(writers []*Writer, err error) error {
	for _, w := range writers {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
