// Package stats turns loosely-typed dataset rows into chart and table
// models.
//
// The pipeline is pure and stateless:
//
//	NormalizeRows → Selection.Filter → AggregateRows → MergeSeries → OrderKeys → BuildChart / BuildTable
//
// Nothing in this package touches the network or the database; callers
// hand it raw records and a Selection and get fresh models back.
package stats

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Record is one raw row as it comes out of the data store: column name to
// value, with no schema enforced.
type Record map[string]any

// Drop reasons recorded in ParseOutcome.Reason.
const (
	ReasonMissing    = "missing"
	ReasonNotNumeric = "not_numeric"
	ReasonNotFinite  = "not_finite"
	ReasonNoYear     = "no_year"
	ReasonNoSemester = "no_semester"
	ReasonWrongType  = "wrong_type"
)

// ParseOutcome is the result of normalizing one raw field.
// When Dropped is true, Value is the zero value and Reason says why.
type ParseOutcome[T any] struct {
	Value   T
	Dropped bool
	Reason  string
}

func accept[T any](v T) ParseOutcome[T] { return ParseOutcome[T]{Value: v} }

func dropped[T any](reason string) ParseOutcome[T] {
	return ParseOutcome[T]{Dropped: true, Reason: reason}
}

// ParseNumber normalizes a numeric field.
//
// Numbers pass through when finite. Strings keep only digits, '.' and '-'
// and are then parsed; when more than one '.' survives, every dot is taken
// as a thousands separator, so "164,158,670" and "164.158.670" both yield
// 164158670. A single dot stays a decimal point.
func ParseNumber(raw any) ParseOutcome[float64] {
	switch v := raw.(type) {
	case nil:
		return dropped[float64](ReasonMissing)
	case float64:
		return finite(v)
	case float32:
		return finite(float64(v))
	case int:
		return accept(float64(v))
	case int32:
		return accept(float64(v))
	case int64:
		return accept(float64(v))
	case uint32:
		return accept(float64(v))
	case uint64:
		return accept(float64(v))
	case json.Number:
		return parseNumberString(string(v))
	case string:
		return parseNumberString(v)
	default:
		return dropped[float64](ReasonWrongType)
	}
}

func finite(v float64) ParseOutcome[float64] {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return dropped[float64](ReasonNotFinite)
	}
	return accept(v)
}

func parseNumberString(s string) ParseOutcome[float64] {
	if strings.TrimSpace(s) == "" {
		return dropped[float64](ReasonMissing)
	}

	var b strings.Builder
	dots := 0
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
			b.WriteRune(r)
		case r == '.':
			dots++
			b.WriteRune(r)
		case r == '-':
			b.WriteRune(r)
		}
	}
	if digits == 0 {
		return dropped[float64](ReasonNotNumeric)
	}

	cleaned := b.String()
	if dots > 1 {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return dropped[float64](ReasonNotNumeric)
	}
	return finite(f)
}

var yearRun = regexp.MustCompile(`\d{4}`)

// ParseYear normalizes a year field. Finite numbers are truncated to an
// integer; strings yield their first run of four consecutive digits
// ("Tahun 2021 Semester I" → 2021).
func ParseYear(raw any) ParseOutcome[int] {
	switch v := raw.(type) {
	case nil:
		return dropped[int](ReasonMissing)
	case string:
		return parseYearString(v)
	case json.Number:
		return parseYearString(string(v))
	}

	n := ParseNumber(raw)
	if n.Dropped {
		return dropped[int](n.Reason)
	}
	return accept(int(math.Trunc(n.Value)))
}

func parseYearString(s string) ParseOutcome[int] {
	m := yearRun.FindString(s)
	if m == "" {
		return dropped[int](ReasonNoYear)
	}
	y, err := strconv.Atoi(m)
	if err != nil {
		return dropped[int](ReasonNoYear)
	}
	return accept(y)
}

var standaloneSemester = regexp.MustCompile(`(?:^|\D)([12])(?:\D|$)`)

// ParseSemester normalizes a half-year code to 1 or 2.
//
// Numbers must be exactly 1 or 2. Strings are searched for a standalone
// digit 1 or 2 once any four-digit year has been removed, and fall back
// to the roman tokens "I" and "II" (any case) when no digit is present.
func ParseSemester(raw any) ParseOutcome[int] {
	switch v := raw.(type) {
	case nil:
		return dropped[int](ReasonMissing)
	case string:
		return parseSemesterString(v)
	}

	n := ParseNumber(raw)
	if n.Dropped {
		return dropped[int](n.Reason)
	}
	switch n.Value {
	case 1:
		return accept(1)
	case 2:
		return accept(2)
	}
	return dropped[int](ReasonNoSemester)
}

func parseSemesterString(s string) ParseOutcome[int] {
	s = yearRun.ReplaceAllString(s, " ")
	if m := standaloneSemester.FindStringSubmatch(s); m != nil {
		if m[1] == "1" {
			return accept(1)
		}
		return accept(2)
	}

	hasDigit := strings.IndexFunc(s, unicode.IsDigit) >= 0
	if hasDigit {
		return dropped[int](ReasonNoSemester)
	}

	tokens := strings.FieldsFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
	for _, t := range tokens {
		switch strings.ToLower(t) {
		case "i":
			return accept(1)
		case "ii":
			return accept(2)
		}
	}
	return dropped[int](ReasonNoSemester)
}

// Columns maps the logical fields of a dataset onto its stored column
// names. Year, Semester and Category may be empty when a dataset does not
// carry that dimension.
type Columns struct {
	Region   string `yaml:"region" json:"region"`
	Year     string `yaml:"year" json:"year,omitempty"`
	Semester string `yaml:"semester" json:"semester,omitempty"`
	Category string `yaml:"category" json:"category,omitempty"`
}

// Names returns the non-empty column names.
func (c Columns) Names() []string {
	out := make([]string, 0, 4)
	for _, n := range []string{c.Region, c.Year, c.Semester, c.Category} {
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

// Row is a normalized record for one metric.
//
// Region is never empty. Year is zero only for datasets without a year
// column. Semester is 0 when unknown.
type Row struct {
	Region   string
	Year     int
	Semester int
	Category string
	Value    float64
}

// Fields that can cause a row to be dropped.
const (
	FieldRegion = "region"
	FieldYear   = "year"
	FieldValue  = "value"
)

// DropReport counts rows excluded by NormalizeRows, keyed by the field that
// failed and the reason ("value/not_numeric", "year/no_year", …).
type DropReport struct {
	Total   int            `json:"total"`
	Kept    int            `json:"kept"`
	Dropped map[string]int `json:"dropped,omitempty"`
}

// DroppedCount returns the number of excluded rows.
func (d DropReport) DroppedCount() int { return d.Total - d.Kept }

func (d *DropReport) add(field, reason string) {
	if d.Dropped == nil {
		d.Dropped = make(map[string]int)
	}
	d.Dropped[field+"/"+reason]++
}

// NormalizeRows converts raw records into Rows for the given metric column.
// Records whose region, year (when the dataset has one) or metric value
// cannot be normalized are excluded and counted in the returned report.
func NormalizeRows(records []Record, cols Columns, metric string) ([]Row, DropReport) {
	report := DropReport{Total: len(records)}
	rows := make([]Row, 0, len(records))

	for _, rec := range records {
		row, field, reason := normalizeRecord(rec, cols, metric)
		if field != "" {
			report.add(field, reason)
			continue
		}
		rows = append(rows, row)
	}

	report.Kept = len(rows)
	return rows, report
}

func normalizeRecord(rec Record, cols Columns, metric string) (Row, string, string) {
	var row Row

	row.Region = strings.TrimSpace(stringOf(rec[cols.Region]))
	if row.Region == "" {
		return Row{}, FieldRegion, ReasonMissing
	}

	if cols.Year != "" {
		y := ParseYear(rec[cols.Year])
		if y.Dropped {
			return Row{}, FieldYear, y.Reason
		}
		row.Year = y.Value
	}

	v := ParseNumber(rec[metric])
	if v.Dropped {
		return Row{}, FieldValue, v.Reason
	}
	row.Value = v.Value

	row.Semester = semesterOf(rec, cols)

	if cols.Category != "" {
		row.Category = strings.TrimSpace(stringOf(rec[cols.Category]))
	}
	return row, "", ""
}

// semesterOf reads the semester column, falling back to a period string in
// the year column ("Tahun 2021 Semester I"). Semester is optional, so a
// value that cannot be read is reported as 0 rather than dropping the row.
func semesterOf(rec Record, cols Columns) int {
	if cols.Semester != "" {
		if s := ParseSemester(rec[cols.Semester]); !s.Dropped {
			return s.Value
		}
	}
	if cols.Year != "" {
		if str, isStr := rec[cols.Year].(string); isStr {
			if s := ParseSemester(str); !s.Dropped {
				return s.Value
			}
		}
	}
	return 0
}

func stringOf(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}
