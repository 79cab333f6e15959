package convert

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goldfish-inc/evalita-prep/internal/labels"
)

// Dimension is one affective axis of the EmotivITA annotations.
type Dimension struct {
	Name   string // written to the dimension field
	Column string // source score column
}

// Dimensions lists the Valence/Arousal/Dominance axes in output order.
var Dimensions = []Dimension{
	{Name: "Valence", Column: "V"},
	{Name: "Arousal", Column: "A"},
	{Name: "Dominance", Column: "D"},
}

const emotivitaDataset = "emotivita"

// EmotivITA converts a table with text, V, A and D columns into one JSONL
// file per dimension. outputPath maps a dimension name to its file.
func (c *Converter) EmotivITA(inputPath string, outputPath func(dimension string) string, scheme labels.Scheme) (Summary, error) {
	start := time.Now()
	categories := scheme.Categories()
	summary := Summary{
		Dataset:     emotivitaDataset,
		InputPath:   inputPath,
		Categories:  categories,
		LabelCounts: make(map[string]map[string]int, len(Dimensions)),
	}

	tbl, err := c.readTable(inputPath)
	if err != nil {
		return summary, err
	}

	names := []string{"text"}
	for _, d := range Dimensions {
		names = append(names, d.Column)
	}
	cols, err := tbl.Columns(names...)
	if err != nil {
		return summary, fmt.Errorf("%s: %w", inputPath, err)
	}

	writers := make([]*Writer, 0, len(Dimensions))
	for _, d := range Dimensions {
		w, err := Create(outputPath(d.Name))
		if err != nil {
			return summary, closeAll(writers, err)
		}
		writers = append(writers, w)
		summary.LabelCounts[d.Name] = make(map[string]int, len(categories))
	}

	for i, row := range tbl.Rows {
		c.metrics.RowRead(emotivitaDataset)
		raw := row[cols["text"]]
		if !utf8.ValidString(raw) {
			return summary, closeAll(writers, fmt.Errorf("row %d: text is not valid UTF-8", i+1))
		}
		text := c.text(raw)

		for j, d := range Dimensions {
			score, err := parseScore(row[cols[d.Column]])
			if err != nil {
				return summary, closeAll(writers, fmt.Errorf("row %d column %s: %w", i+1, d.Column, err))
			}

			set, err := c.choose(categories, scheme.Index(score), i, d.Name)
			if err != nil {
				return summary, closeAll(writers, fmt.Errorf("row %d: %w", i+1, err))
			}

			rec := Record{Text: text, Choices: set.Choices, Label: set.Label, Dimension: d.Name}
			if err := writers[j].Write(rec); err != nil {
				return summary, closeAll(writers, err)
			}
			summary.LabelCounts[d.Name][set.Correct()]++
			c.metrics.RecordWritten(emotivitaDataset, d.Name, set.Correct())
		}
		summary.Rows++
	}

	if err := closeAll(writers, nil); err != nil {
		return summary, err
	}
	for i, d := range Dimensions {
		summary.Files = append(summary.Files, OutputFile{
			Path:      writers[i].Path(),
			Dimension: d.Name,
			Records:   writers[i].Count(),
		})
		c.logger.Printf("Data written successfully to: %s (%d records)", writers[i].Path(), writers[i].Count())
	}

	c.logCounts(summary.LabelCounts)
	c.metrics.ObserveDuration(emotivitaDataset, time.Since(start))
	return summary, nil
}

func parseScore(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid score %q", raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite score %q", raw)
	}
	return v, nil
}
