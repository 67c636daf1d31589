// internal/app/features/imports/tabular/parser.go
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dkpmalut/lautdata/internal/app/stats"
	"github.com/xuri/excelize/v2"
)

var (
	ErrTooManyRows       = errors.New("too many rows")
	ErrNoHeader          = errors.New("file has no header row")
	ErrUnsupportedFormat = errors.New("unsupported file format (want .csv or .xlsx)")
)

// RowError describes one rejected line of an upload.
type RowError struct {
	Line   int
	Reason string
}

func (e RowError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
	}
	return e.Reason
}

// ParseOptions controls parsing.
type ParseOptions struct {
	MaxRows int // 0 means unlimited
}

// Result is a parsed upload: normalized column names and one record per
// non-blank data row. Cell values are trimmed strings; blank cells are
// left out of the record.
type Result struct {
	Columns []string
	Records []stats.Record
	Errors  []RowError
}

// HasErrors returns true if any row was rejected.
func (r *Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// Missing returns the required columns absent from the header.
func (r *Result) Missing(required []string) []string {
	have := make(map[string]bool, len(r.Columns))
	for _, c := range r.Columns {
		have[c] = true
	}
	var out []string
	for _, c := range required {
		if !have[c] {
			out = append(out, c)
		}
	}
	return out
}

// Parse reads a CSV or XLSX upload, choosing the format by the file
// name's extension.
func Parse(filename string, r io.Reader, opts ParseOptions) (Result, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return ParseCSV(r, opts)
	case ".xlsx":
		return ParseXLSX(r, opts)
	default:
		return Result{}, ErrUnsupportedFormat
	}
}

// ParseCSV parses a comma-separated file whose first non-blank row is the
// header. A leading UTF-8 BOM is ignored.
func ParseCSV(r io.Reader, opts ParseOptions) (Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // allow variable fields
	reader.TrimLeadingSpace = true

	var rows [][]string
	var readErrs []RowError
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				readErrs = append(readErrs, RowError{Line: pe.Line, Reason: pe.Err.Error()})
				continue
			}
			return Result{}, err
		}
		rows = append(rows, rec)
	}

	// Reject the whole file on malformed quoting.
	if len(readErrs) > 0 {
		return Result{Errors: readErrs}, nil
	}
	return build(rows, opts)
}

// ParseXLSX parses the first sheet of a workbook whose first non-blank
// row is the header.
func ParseXLSX(r io.Reader, opts ParseOptions) (Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Result{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Result{}, ErrNoHeader
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Result{}, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return build(rows, opts)
}

// build turns raw rows into records. Line numbers are 1-based row indexes
// of the source.
func build(rows [][]string, opts ParseOptions) (Result, error) {
	var res Result

	head := -1
	for i, row := range rows {
		if !blank(row) {
			head = i
			break
		}
	}
	if head < 0 {
		return res, ErrNoHeader
	}

	header := rows[head]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := ColumnName(h)
		if name == "" {
			// Trailing empty header cells are common in spreadsheets.
			if blank(header[i:]) {
				break
			}
			res.Errors = append(res.Errors, RowError{Line: head + 1, Reason: fmt.Sprintf("column %d has no name", i+1)})
			continue
		}
		if prev, dup := seen[name]; dup {
			res.Errors = append(res.Errors, RowError{Line: head + 1, Reason: fmt.Sprintf("column %q repeats column %d", name, prev+1)})
			continue
		}
		seen[name] = i
		res.Columns = append(res.Columns, name)
	}
	if res.HasErrors() {
		return res, nil
	}

	for i := head + 1; i < len(rows); i++ {
		row := rows[i]
		if blank(row) {
			continue
		}
		if opts.MaxRows > 0 && len(res.Records) >= opts.MaxRows {
			return res, ErrTooManyRows
		}
		if extra := trimmedLen(row); extra > len(res.Columns) {
			res.Errors = append(res.Errors, RowError{
				Line:   i + 1,
				Reason: fmt.Sprintf("%d values for %d columns", extra, len(res.Columns)),
			})
			continue
		}
		rec := make(stats.Record, len(res.Columns))
		for j, col := range res.Columns {
			if j >= len(row) {
				break
			}
			if v := strings.TrimSpace(row[j]); v != "" {
				rec[col] = v
			}
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

// ColumnName normalizes a header cell: trimmed, lower case, inner runs of
// spaces, dashes and slashes replaced by a single underscore.
func ColumnName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '-' || r == '/' || r == '_'
	}), "_")
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// trimmedLen is len(row) ignoring trailing blank cells.
func trimmedLen(row []string) int {
	n := len(row)
	for n > 0 && strings.TrimSpace(row[n-1]) == "" {
		n--
	}
	return n
}
