package pipeline

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"sunmatch/internal"
)

// ExportRowsToXLSX writes one flattened candidate row per line: grouped by
// product type, ranked within type, with the strongest evidence snippet so a
// reviewer can eyeball a match without opening the source document.
func ExportRowsToXLSX(rows []internal.MatchExportRow, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	headers := []string{
		"document_id", "product_type", "rank",
		"product_id", "brand", "model", "spec",
		"confidence", "needs_confirmation",
		"evidence_count", "best_snippet",
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, row.DocumentID)
		set(2, row.ProductType)
		set(3, row.Rank)
		set(4, row.ProductID)
		set(5, row.Brand)
		set(6, row.Model)
		set(7, derefFloat(row.Spec))
		set(8, row.Confidence)
		set(9, row.NeedsConfirmation)
		set(10, row.EvidenceCount)
		set(11, row.BestSnippet)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

// FlattenResult converts an in-memory engine result to export rows without a
// database round trip, for the one-shot match command.
func FlattenResult(documentID int, result *internal.DocumentMatchResult) []internal.MatchExportRow {
	out := []internal.MatchExportRow{}
	for _, t := range []internal.ProductType{internal.TypePanel, internal.TypeBattery, internal.TypeInverter} {
		for rank, c := range result.Candidates(t) {
			row := internal.MatchExportRow{
				DocumentID:        documentID,
				ProductType:       string(t),
				Rank:              rank + 1,
				ProductID:         c.Product.ID,
				Brand:             c.Product.Brand,
				Model:             c.Product.Model,
				Spec:              c.Product.Spec,
				Confidence:        c.Confidence,
				NeedsConfirmation: c.NeedsConfirmation,
				EvidenceCount:     len(c.Evidence),
			}
			best := -1.0
			for _, ev := range c.Evidence {
				if ev.Score > best {
					best = ev.Score
					row.BestSnippet = ev.Snippet
				}
			}
			out = append(out, row)
		}
	}
	return out
}

func derefFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
