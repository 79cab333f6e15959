package convert

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// HODIChoices are the answers offered for "is this text homotransphobic?".
var HODIChoices = []string{"Vero", "Falso"}

const hodiDataset = "hodi"

// HODI converts a table with text and homotransphobic columns into a single
// JSONL file. A true label selects "Vero", a false one "Falso".
func (c *Converter) HODI(inputPath, outputPath string) (Summary, error) {
	start := time.Now()
	summary := Summary{
		Dataset:     hodiDataset,
		InputPath:   inputPath,
		Categories:  append([]string(nil), HODIChoices...),
		LabelCounts: map[string]map[string]int{"": make(map[string]int, len(HODIChoices))},
	}

	tbl, err := c.readTable(inputPath)
	if err != nil {
		return summary, err
	}
	cols, err := tbl.Columns("text", "homotransphobic")
	if err != nil {
		return summary, fmt.Errorf("%s: %w", inputPath, err)
	}

	w, err := Create(outputPath)
	if err != nil {
		return summary, err
	}

	for i, row := range tbl.Rows {
		c.metrics.RowRead(hodiDataset)

		raw := row[cols["text"]]
		if !utf8.ValidString(raw) {
			return summary, closeAll([]*Writer{w}, fmt.Errorf("row %d: text is not valid UTF-8", i+1))
		}

		positive, err := parseFlag(row[cols["homotransphobic"]])
		if err != nil {
			return summary, closeAll([]*Writer{w}, fmt.Errorf("row %d: %w", i+1, err))
		}
		label := 1
		if positive {
			label = 0
		}

		set, err := c.choose(HODIChoices, label, i, "")
		if err != nil {
			return summary, closeAll([]*Writer{w}, fmt.Errorf("row %d: %w", i+1, err))
		}

		rec := Record{Text: c.text(raw), Choices: set.Choices, Label: set.Label}
		if err := w.Write(rec); err != nil {
			return summary, closeAll([]*Writer{w}, err)
		}
		summary.LabelCounts[""][set.Correct()]++
		c.metrics.RecordWritten(hodiDataset, "", set.Correct())
		summary.Rows++
	}

	if err := w.Close(); err != nil {
		return summary, err
	}
	summary.Files = []OutputFile{{Path: w.Path(), Records: w.Count()}}
	c.logger.Printf("Data written to: %s (%d records)", w.Path(), w.Count())

	c.logCounts(summary.LabelCounts)
	c.metrics.ObserveDuration(hodiDataset, time.Since(start))
	return summary, nil
}

// parseFlag reads the boolean annotation column.
func parseFlag(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "1.0", "true", "vero", "yes":
		return true, nil
	case "0", "0.0", "false", "falso", "no":
		return false, nil
	default:
		return false, fmt.Errorf("unexpected homotransphobic value %q", raw)
	}
}
