package core

// export.go writes diagnostic files, start lists and rosters.
//
// CSV is the canonical format. When XLSX export is enabled the same
// records are also written to a single-sheet workbook for printing.

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Diagnostic file names inside the conflicts directory.
const (
	InvalidFileName   = "invalid_registrations.csv"
	DuplicateFileName = "duplicate_registrations.csv"
)

// WriteCSV writes header and rows to path, creating parent directories.
func WriteCSV(path string, header []string, rows [][]string) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

// WriteXLSX writes header and rows to the first sheet of a new workbook.
func WriteXLSX(path string, header []string, rows [][]string) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close workbook: %w", cerr)
		}
	}()

	sheet := f.GetSheetName(0)
	all := append([][]string{header}, rows...)
	for i, rec := range all {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(rec))
		for j, v := range rec {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// xlsxPath returns the workbook path that accompanies a CSV export.
func xlsxPath(csvPath string) string {
	return strings.TrimSuffix(csvPath, filepath.Ext(csvPath)) + ".xlsx"
}

// invalidRecords renders invalid rows as "Invalid Reason" followed by the
// original columns, minus the trailing accepted-terms column.
func invalidRecords(header []string, rows []ImportRow) ([]string, [][]string) {
	h := append([]string{"Invalid Reason"}, headerColumns(header)[:NumColumns-1]...)
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string{r.Reason}, r.Fields[:NumColumns-1]...)
	}
	return h, out
}

// duplicateRecords renders rows matching an existing registration as
// "Existing Registration ID" followed by the original columns.
func duplicateRecords(header []string, rows []ImportRow) ([]string, [][]string) {
	h := append([]string{"Existing Registration ID"}, headerColumns(header)...)
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string{fmt.Sprint(r.ExistingID)}, r.Fields[:NumColumns]...)
	}
	return h, out
}

// headerColumns returns the file's header padded with the default names.
func headerColumns(header []string) []string {
	out := make([]string, NumColumns)
	for i := range out {
		if i < len(header) && strings.TrimSpace(header[i]) != "" {
			out[i] = header[i]
		} else {
			out[i] = InputColumns[i]
		}
	}
	return out
}
