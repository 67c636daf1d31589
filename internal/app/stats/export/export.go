// internal/app/stats/export/export.go
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/dkpmalut/lautdata/internal/app/stats"
	"github.com/xuri/excelize/v2"
)

// ErrNothingToExport is returned when every series is switched off or the
// table has no data rows.
var ErrNothingToExport = errors.New("export: nothing to export")

// utf8BOM makes spreadsheet applications read the file as UTF-8.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// SheetName is the worksheet that holds the table in XLSX exports.
const SheetName = "Data"

// Check reports ErrNothingToExport when the table is empty or no series
// contributes to it.
func Check(t stats.Table, anyActive bool) error {
	if !anyActive || t.Empty() {
		return ErrNothingToExport
	}
	return nil
}

// WriteCSV writes the table as CSV: a UTF-8 BOM, the header row, one line
// per data row and the grand-total row, CRLF line endings. Numbers are
// plain decimal text and fields are quoted only when needed.
func WriteCSV(w io.Writer, t stats.Table) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("write csv bom: %w", err)
	}
	cw := csv.NewWriter(w)
	cw.UseCRLF = true
	if err := cw.WriteAll(t.Records()); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// WriteXLSX writes the table as a single-sheet workbook. Label cells are
// strings and every value cell is numeric.
func WriteXLSX(w io.Writer, t stats.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(t.Header))
	for i, h := range t.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	rows := append(append([]stats.TableRow(nil), t.Rows...), t.GrandTotal)
	for i, r := range rows {
		cells := make([]any, 0, len(r.Values)+2)
		cells = append(cells, r.Label)
		for _, v := range r.Values {
			cells = append(cells, v)
		}
		cells = append(cells, r.Total)

		anchor, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, anchor, &cells); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// Content types for the supported formats.
const (
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

const forbiddenFilenameChars = `/\?%*:|"<>`

// Filename derives a download filename from a chart title: reserved
// characters are removed, runs of whitespace become a single underscore,
// and ext is appended. An empty result falls back to "export".
func Filename(title, ext string) string {
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(forbiddenFilenameChars, r) || unicode.IsControl(r) {
			return -1
		}
		return r
	}, title)

	base := strings.Join(strings.Fields(cleaned), "_")
	if base == "" {
		base = "export"
	}
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		return base
	}
	return base + "." + ext
}
