// Package csvio parses and writes the delimited text formats used by the
// import/export pipeline.
//
// The tokenizer is deliberately line-based: quoting never spans lines, which
// matches every source format we accept (exports from spreadsheets and other
// small-business tools). Within a line it handles quoted fields and doubled
// quote characters, so values containing the delimiter or the quote character
// survive a write/read round trip.
package csvio

import (
	"fmt"
	"strings"
)

// HeaderScanLimit is the maximum number of leading lines scanned when
// locating an embedded header row (some exports put metadata lines first).
const HeaderScanLimit = 5

// MalformedInputError indicates input that cannot be tokenized at all:
// no rows after dropping blank lines, or (in strict mode) a data row whose
// field count does not match the header.
type MalformedInputError struct {
	Line   int // 1-indexed source line, 0 when the whole input is at fault
	Reason string
}

func (e *MalformedInputError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed input at line %d: %s", e.Line, e.Reason)
	}
	return "malformed input: " + e.Reason
}

// Options controls tokenization.
type Options struct {
	// Delimiter separates fields. Zero value means comma.
	Delimiter rune

	// Quote wraps fields that contain the delimiter or quote. Zero value
	// means double quote.
	Quote rune

	// StrictColumns fails the whole document when a data row's field count
	// differs from the header's. When false, mismatched rows are kept with
	// Row.Err set so the caller can report them individually instead of
	// aborting the import.
	StrictColumns bool

	// HeaderHints, when non-empty, triggers a bounded scan of the first
	// HeaderScanLimit lines for a row containing all hinted names. Lines
	// before the located header are discarded as metadata.
	HeaderHints []string
}

func (o Options) delimiter() rune {
	if o.Delimiter == 0 {
		return ','
	}
	return o.Delimiter
}

func (o Options) quote() rune {
	if o.Quote == 0 {
		return '"'
	}
	return o.Quote
}

// Row is one parsed input record before any type interpretation.
type Row struct {
	// Line is the 1-indexed line number in the original input.
	Line int

	// Fields holds the raw field values with enclosing quotes removed and
	// doubled quotes collapsed. Never mutated after tokenization.
	Fields []string

	// Err is set in lenient mode when the field count does not match the
	// header. Such rows are reported as per-row errors, not coerced.
	Err string
}

// Document is the result of tokenizing one input.
type Document struct {
	Headers []string
	Rows    []Row
}

type numberedLine struct {
	line   int
	fields []string
}

// Tokenize turns raw delimited text into a header row plus data rows.
// Lines that are entirely whitespace are dropped. Returns
// *MalformedInputError when no rows remain, or (strict mode only) on a
// field-count mismatch.
func Tokenize(text string, opts Options) (*Document, error) {
	delim, quote := opts.delimiter(), opts.quote()

	var lines []numberedLine
	for i, raw := range strings.Split(strings.TrimPrefix(text, "\uFEFF"), "\n") {
		raw = strings.TrimSuffix(raw, "\r")
		if strings.TrimSpace(raw) == "" {
			continue
		}
		lines = append(lines, numberedLine{line: i + 1, fields: splitLine(raw, delim, quote)})
	}

	if len(lines) == 0 {
		return nil, &MalformedInputError{Reason: "no rows"}
	}

	headerAt := 0
	if len(opts.HeaderHints) > 0 {
		headerAt = locateHeader(lines, opts.HeaderHints)
		if headerAt < 0 {
			return nil, &MalformedInputError{Reason: fmt.Sprintf("header not found (expected columns: %s)", strings.Join(opts.HeaderHints, ", "))}
		}
	}

	doc := &Document{Headers: lines[headerAt].fields}
	want := len(doc.Headers)

	for _, ln := range lines[headerAt+1:] {
		row := Row{Line: ln.line, Fields: ln.fields}
		if len(ln.fields) != want {
			reason := fmt.Sprintf("row has %d fields, expected %d", len(ln.fields), want)
			if opts.StrictColumns {
				return nil, &MalformedInputError{Line: ln.line, Reason: reason}
			}
			row.Err = reason
		}
		doc.Rows = append(doc.Rows, row)
	}

	if len(doc.Rows) == 0 {
		return nil, &MalformedInputError{Reason: "no data rows after header"}
	}

	return doc, nil
}

// splitLine scans a single line character by character. A quote toggles the
// insideQuotes flag unless it is immediately followed by another quote while
// already inside quotes, in which case one literal quote is emitted and the
// flag is left unchanged. The delimiter splits fields only outside quotes.
func splitLine(line string, delim, quote rune) []string {
	var fields []string
	var b strings.Builder
	inside := false

	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == quote:
			if inside && i+1 < len(runes) && runes[i+1] == quote {
				b.WriteRune(quote)
				i++
			} else {
				inside = !inside
			}
		case r == delim && !inside:
			fields = append(fields, b.String())
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	fields = append(fields, b.String())
	return fields
}

// locateHeader returns the index of the first line, within HeaderScanLimit,
// whose fields contain every hinted name after normalization. Returns -1
// when no line qualifies.
func locateHeader(lines []numberedLine, hints []string) int {
	limit := HeaderScanLimit
	if len(lines) < limit {
		limit = len(lines)
	}

	for i := 0; i < limit; i++ {
		if containsAll(lines[i].fields, hints) {
			return i
		}
	}
	return -1
}

func containsAll(fields, hints []string) bool {
	for _, hint := range hints {
		found := false
		for _, f := range fields {
			if NormalizeHeader(f) == NormalizeHeader(hint) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// NormalizeHeader reduces a cleaned header cell to a canonical comparison
// form: lowercase, with underscores and camelCase boundaries turned into
// spaces. "Order Number", "order_number" and "OrderNumber" all normalize to
// "order number". Header hints and column mapping compare in this form.
func NormalizeHeader(s string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range CleanHeader(s) {
		switch {
		case r == '_':
			b.WriteByte(' ')
			prevLower = false
		case r >= 'A' && r <= 'Z':
			if prevLower {
				b.WriteByte(' ')
			}
			b.WriteRune(r + ('a' - 'A'))
			prevLower = false
		default:
			b.WriteRune(r)
			prevLower = (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		}
	}
	return b.String()
}

// CleanHeader removes common artifacts from a header cell: surrounding
// whitespace, a UTF-8 BOM, and an Excel formula prefix (="value").
func CleanHeader(s string) string {
	s = strings.TrimPrefix(s, "\uFEFF")
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) > 2 {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(s)
}
