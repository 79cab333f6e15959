package report

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/xuri/excelize/v2"

	"github.com/goldfish-inc/evalita-prep/internal/convert"
)

const (
	labelsSheet = "Labels"
	filesSheet  = "Files"
)

// WriteLabelReport saves a workbook with the label distribution of a
// conversion (one row per dimension and label, in category order) and the
// list of files it produced.
func WriteLabelReport(path string, summary convert.Summary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", labelsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(filesSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	if err := f.SetSheetRow(labelsSheet, "A1", &[]interface{}{"Dataset", "Dimension", "Label", "Count", "Share"}); err != nil {
		return err
	}
	row := 2
	for _, dim := range slices.Sorted(maps.Keys(summary.LabelCounts)) {
		counts := summary.LabelCounts[dim]
		total := 0
		for _, n := range counts {
			total += n
		}
		for _, label := range summary.Categories {
			share := 0.0
			if total > 0 {
				share = float64(counts[label]) / float64(total)
			}
			cell, _ := excelize.CoordinatesToCellName(1, row)
			if err := f.SetSheetRow(labelsSheet, cell, &[]interface{}{summary.Dataset, dim, label, counts[label], share}); err != nil {
				return err
			}
			row++
		}
	}

	if err := f.SetSheetRow(filesSheet, "A1", &[]interface{}{"Path", "Dimension", "Records"}); err != nil {
		return err
	}
	for i, out := range summary.Files {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(filesSheet, cell, &[]interface{}{out.Path, out.Dimension, out.Records}); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report %s: %w", path, err)
	}
	return nil
}
