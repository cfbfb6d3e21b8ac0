package importer

import (
	"strings"

	"github.com/craftbooks/craftbooks/internal/csvio"
)

// Unmapped is the sentinel column value for a field with no source column.
const Unmapped = ""

// MissingRequiredFieldError is returned when an import is committed while a
// required field has no mapped column.
type MissingRequiredFieldError struct {
	Labels []string
}

func (e *MissingRequiredFieldError) Error() string {
	return "missing required fields: " + strings.Join(e.Labels, ", ")
}

// ColumnMapping is the chosen correspondence between source columns and
// destination fields for one import session. Mutable until the session
// commits; manual overrides are never revisited by the automatic pass.
type ColumnMapping struct {
	headers []string
	columns map[string]string // field key -> source header (Unmapped when none)
	manual  map[string]bool
}

// matchStrategy is one rule for pairing a header with a field spec. The
// strategy list is ordered by precedence: an exact match always outranks a
// substring match, and within one strategy the first header in scan order
// wins. An assignment made by an earlier strategy (or manually) is never
// overwritten by a later one.
type matchStrategy struct {
	name  string
	match func(header, key, label string) bool
}

var matchStrategies = []matchStrategy{
	{"exact", func(h, k, l string) bool {
		return h == k || h == l
	}},
	{"header-contains-field", func(h, k, l string) bool {
		return strings.Contains(h, k) || strings.Contains(h, l)
	}},
	{"field-contains-header", func(h, k, l string) bool {
		return strings.Contains(k, h) || strings.Contains(l, h)
	}},
}

// ProposeMapping pairs each field spec with a source column using the
// ordered strategy table. Deterministic: the same headers and specs always
// produce the same mapping.
func ProposeMapping(headers []string, specs []FieldSpec) *ColumnMapping {
	m := &ColumnMapping{
		headers: headers,
		columns: make(map[string]string, len(specs)),
		manual:  make(map[string]bool),
	}

	// Headers, keys and labels all compare in the same canonical form, so
	// "order_number", "OrderNumber" and "Order Number" match the key
	// "orderNumber" via the exact rule.
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = csvio.NormalizeHeader(h)
	}

	for _, strategy := range matchStrategies {
		for _, spec := range specs {
			if m.columns[spec.Key] != Unmapped {
				continue
			}

			key := csvio.NormalizeHeader(spec.Key)
			label := csvio.NormalizeHeader(spec.Label)

			for i, h := range normalized {
				if h == "" {
					continue
				}
				if strategy.match(h, key, label) {
					m.columns[spec.Key] = headers[i]
					break
				}
			}
		}
	}

	return m
}

// Column returns the source header mapped to a field key, or Unmapped.
func (m *ColumnMapping) Column(key string) string {
	return m.columns[key]
}

// Index returns the position of a field's mapped column in the header row,
// or -1 when the field is unmapped.
func (m *ColumnMapping) Index(key string) int {
	col := m.columns[key]
	if col == Unmapped {
		return -1
	}
	for i, h := range m.headers {
		if h == col {
			return i
		}
	}
	return -1
}

// Set manually assigns a source header to a field key, overriding any
// automatic assignment. Pass Unmapped to clear the assignment.
func (m *ColumnMapping) Set(key, header string) {
	m.columns[key] = header
	m.manual[key] = true
}

// Columns returns a copy of the current assignments keyed by field key.
func (m *ColumnMapping) Columns() map[string]string {
	out := make(map[string]string, len(m.columns))
	for k, v := range m.columns {
		out[k] = v
	}
	return out
}

// Validate checks that every required field has a mapped column. Returns
// *MissingRequiredFieldError naming the unmapped labels.
func (m *ColumnMapping) Validate(specs []FieldSpec) error {
	var missing []string
	for _, spec := range specs {
		if spec.Required && m.columns[spec.Key] == Unmapped {
			missing = append(missing, spec.Label)
		}
	}
	if len(missing) > 0 {
		return &MissingRequiredFieldError{Labels: missing}
	}
	return nil
}
