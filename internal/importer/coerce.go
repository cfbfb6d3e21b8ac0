package importer

// coerce.go converts raw string values into typed pgtype values.
//
// Every coercion is a total function: unparseable input degrades to a
// documented default instead of failing the row. Rows that are genuinely
// unusable are rejected later by the storage collaborator and reported in
// the import outcome.

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// TwoDigitYearPivot defines how 2-digit years are interpreted. Years that
// would land more than this many years in the future are assumed to be in
// the previous century.
var TwoDigitYearPivot = 20

// Date layouts split by year format for proper 2-digit year handling.
var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"2006-01-02", "2006/01/02", "2006.01.02",
		"Jan 2, 2006", "2 Jan 2006",
		"20060102",
	}
)

var leadingDigitsRegex = regexp.MustCompile(`^\d+`)

// CoerceCurrency converts a raw amount to pgtype.Numeric. Every character
// that is not a digit or a decimal point is stripped; when more than one
// decimal point remains, only the first two dot-delimited segments are kept
// around a single point. Empty or unparseable input coerces to 0.
func CoerceCurrency(raw string) pgtype.Numeric {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	s := b.String()

	if strings.Count(s, ".") > 1 {
		segments := strings.Split(s, ".")
		s = segments[0] + "." + segments[1]
	}
	s = strings.Trim(s, ".")
	if s == "" {
		return zeroNumeric()
	}

	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		return zeroNumeric()
	}
	return n
}

func zeroNumeric() pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan("0")
	return n
}

// CoerceInteger extracts an integer count from a raw value. A leading run
// of digits wins (so "15 ($0.29)" yields 15); otherwise all non-digit
// characters are stripped and the remainder parsed. When no digits exist at
// all, the caller-supplied default is used.
func CoerceInteger(raw string, def int64) pgtype.Int8 {
	s := strings.TrimSpace(raw)

	digits := leadingDigitsRegex.FindString(s)
	if digits == "" {
		var b strings.Builder
		for _, r := range s {
			if r >= '0' && r <= '9' {
				b.WriteRune(r)
			}
		}
		digits = b.String()
	}

	if digits == "" {
		return pgtype.Int8{Int64: def, Valid: true}
	}

	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return pgtype.Int8{Int64: def, Valid: true}
	}
	return pgtype.Int8{Int64: v, Valid: true}
}

// CoerceDate parses a raw date value. Supports the common US, EU, and ISO
// layouts, with a pivot for 2-digit years. Unparseable or absent input
// coerces to "no date" (Valid=false), never to today.
func CoerceDate(raw string) pgtype.Date {
	s := strings.TrimSpace(raw)
	if s == "" {
		return pgtype.Date{Valid: false}
	}

	// 4-digit year layouts first, they are unambiguous
	for _, layout := range fourDigitYearLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return pgtype.Date{Time: t, Valid: true}
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return pgtype.Date{Time: t, Valid: true}
		}
	}

	return pgtype.Date{Valid: false}
}

// CoerceDateOrNow behaves like CoerceDate but falls back to the current
// processing date for unparseable or absent input. Used only for
// creation-timestamp fields.
func CoerceDateOrNow(raw string) pgtype.Date {
	d := CoerceDate(raw)
	if d.Valid {
		return d
	}
	return pgtype.Date{Time: time.Now(), Valid: true}
}

// CoerceText trims a raw value, strips one layer of enclosing quote
// characters when both ends match, and collapses doubled-quote escapes.
// Absent input coerces to NULL (Valid=false).
func CoerceText(raw string) pgtype.Text {
	s := strings.TrimSpace(raw)

	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '"' || first == '\'') {
			s = s[1 : len(s)-1]
		}
	}
	s = strings.ReplaceAll(s, `""`, `"`)
	s = strings.TrimSpace(s)

	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// coerceField dispatches on the spec's kind. Always produces a value.
func coerceField(spec FieldSpec, raw string) any {
	switch spec.Kind {
	case KindCurrency:
		return CoerceCurrency(raw)
	case KindInteger:
		return CoerceInteger(raw, spec.IntegerDefault)
	case KindDate:
		if spec.DateFallbackNow {
			return CoerceDateOrNow(raw)
		}
		return CoerceDate(raw)
	default:
		return CoerceText(raw)
	}
}

// FormatValue renders a coerced value back to its raw textual form, used by
// previews and the export serializer. The inverse of the coercions above up
// to formatting: dates become ISO, currency keeps two decimals.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case pgtype.Text:
		if !val.Valid {
			return ""
		}
		return val.String
	case pgtype.Int8:
		if !val.Valid {
			return ""
		}
		return strconv.FormatInt(val.Int64, 10)
	case pgtype.Date:
		if !val.Valid {
			return ""
		}
		return val.Time.Format("2006-01-02")
	case pgtype.Numeric:
		if !val.Valid {
			return ""
		}
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return ""
		}
		s := strconv.FormatFloat(f.Float64, 'f', 2, 64)
		s = strings.TrimRight(s, "0")
		s = strings.TrimRight(s, ".")
		if s == "" {
			s = "0"
		}
		return s
	case time.Time:
		return val.Format("2006-01-02")
	default:
		return fmt.Sprintf("%v", val)
	}
}
