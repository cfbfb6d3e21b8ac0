package csvio

import (
	"bufio"
	"io"
	"strings"
)

// WriteDelimited writes a header row followed by one row per record.
// Fields containing the delimiter, the quote character, or a line break are
// wrapped in quotes with internal quote characters doubled, the inverse of
// the tokenizer's quote handling. Pass no rows to emit a headers-only
// template.
func WriteDelimited(w io.Writer, headers []string, rows [][]string, opts Options) error {
	delim, quote := opts.delimiter(), opts.quote()

	bw := bufio.NewWriter(w)

	if err := writeRecord(bw, headers, delim, quote); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writeRecord(bw, row, delim, quote); err != nil {
			return err
		}
	}

	return bw.Flush()
}

func writeRecord(bw *bufio.Writer, fields []string, delim, quote rune) error {
	for i, f := range fields {
		if i > 0 {
			if _, err := bw.WriteRune(delim); err != nil {
				return err
			}
		}
		if _, err := bw.WriteString(escapeField(f, delim, quote)); err != nil {
			return err
		}
	}
	_, err := bw.WriteString("\r\n")
	return err
}

// escapeField quotes a field when necessary. Line breaks inside a field are
// replaced with spaces first: the tokenizer is line-based, so a raw line
// break would split the record.
func escapeField(f string, delim, quote rune) string {
	if strings.ContainsAny(f, "\n\r") {
		f = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(f)
	}

	if !strings.ContainsRune(f, delim) && !strings.ContainsRune(f, quote) {
		return f
	}

	q := string(quote)
	return q + strings.ReplaceAll(f, q, q+q) + q
}
