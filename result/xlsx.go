package result

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	linksSheet   = "Links"
	summarySheet = "Summary"
)

// WriteXLSX writes a workbook with a "Links" sheet holding every record and a
// "Summary" sheet holding the run statistics.
func WriteXLSX(w io.Writer, res *Result) (err error) {
	f := excelize.NewFile()
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close workbook: %w", closeErr)
		}
	}()

	if err := f.SetSheetName("Sheet1", linksSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeRow(f, linksSheet, 1, toAny(csvHeader)); err != nil {
		return err
	}
	for i, rec := range res.Records {
		if err := writeRow(f, linksSheet, i+2, toAny(recordRow(rec))); err != nil {
			return err
		}
	}
	for i, raw := range res.Unprocessed {
		row := []any{raw, "", OutcomeUnresolved.String(), string(ReasonNotChecked)}
		if err := writeRow(f, linksSheet, len(res.Records)+i+2, row); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}
	summary := [][]any{
		{"total", res.Stats.Total},
		{"canonical", res.Stats.Canonical},
		{"alive", res.Stats.Alive},
		{"dead", res.Stats.Dead},
		{"unresolved", res.Stats.Unresolved},
		{"unprocessed", res.Stats.Unprocessed},
		{"duration_seconds", res.Stats.Duration.Seconds()},
	}
	for i, row := range summary {
		if err := writeRow(f, summarySheet, i+1, row); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx output: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name for row %d: %w", row, err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
