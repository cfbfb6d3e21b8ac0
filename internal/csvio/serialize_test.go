package csvio

import (
	"strings"
	"testing"
)

func TestWriteDelimited(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		rows    [][]string
		want    string
	}{
		{
			name:    "plain fields",
			headers: []string{"Name", "Category"},
			rows:    [][]string{{"Cake", "Dessert"}},
			want:    "Name,Category\r\nCake,Dessert\r\n",
		},
		{
			name:    "field containing delimiter is quoted",
			headers: []string{"Name", "Notes"},
			rows:    [][]string{{"Tart", "sweet, tangy"}},
			want:    "Name,Notes\r\nTart,\"sweet, tangy\"\r\n",
		},
		{
			name:    "field containing quote is quoted and doubled",
			headers: []string{"Name", "Notes"},
			rows:    [][]string{{"Cake", `the "big" one`}},
			want:    "Name,Notes\r\nCake,\"the \"\"big\"\" one\"\r\n",
		},
		{
			name:    "line break replaced with space",
			headers: []string{"Name", "Notes"},
			rows:    [][]string{{"Cake", "line one\nline two"}},
			want:    "Name,Notes\r\nCake,line one line two\r\n",
		},
		{
			name:    "headers only template",
			headers: []string{"Name", "Category", "Servings"},
			want:    "Name,Category,Servings\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sb strings.Builder
			if err := WriteDelimited(&sb, tt.headers, tt.rows, Options{}); err != nil {
				t.Fatalf("WriteDelimited() error = %v", err)
			}
			if sb.String() != tt.want {
				t.Errorf("output = %q, want %q", sb.String(), tt.want)
			}
		})
	}
}

// TestRoundTrip verifies that writing rows and tokenizing the output yields
// the original values, including values containing the delimiter and quote
// characters.
func TestRoundTrip(t *testing.T) {
	headers := []string{"Name", "Notes", "Amount"}
	rows := [][]string{
		{"Chocolate Cake", "rich, dense", "$14.10"},
		{"Pie", `contains "real" fruit`, "8"},
		{"Bread", "", "0"},
		{`"Quoted" Name`, "delimiter, and \"quote\" together", "1.50"},
	}

	var sb strings.Builder
	if err := WriteDelimited(&sb, headers, rows, Options{}); err != nil {
		t.Fatalf("WriteDelimited() error = %v", err)
	}

	doc, err := Tokenize(sb.String(), Options{})
	if err != nil {
		t.Fatalf("Tokenize() error = %v", err)
	}

	if !equalStrings(doc.Headers, headers) {
		t.Errorf("Headers = %v, want %v", doc.Headers, headers)
	}
	if len(doc.Rows) != len(rows) {
		t.Fatalf("got %d rows, want %d", len(doc.Rows), len(rows))
	}
	for i, want := range rows {
		if !equalStrings(doc.Rows[i].Fields, want) {
			t.Errorf("row %d = %v, want %v", i, doc.Rows[i].Fields, want)
		}
	}
}

func TestRoundTrip_CustomDelimiter(t *testing.T) {
	opts := Options{Delimiter: ';'}
	headers := []string{"Name", "Notes"}
	rows := [][]string{{"Cake", "semi;colon"}}

	var sb strings.Builder
	if err := WriteDelimited(&sb, headers, rows, opts); err != nil {
		t.Fatalf("WriteDelimited() error = %v", err)
	}

	doc, err := Tokenize(sb.String(), opts)
	if err != nil {
		t.Fatalf("Tokenize() error = %v", err)
	}
	if doc.Rows[0].Fields[1] != "semi;colon" {
		t.Errorf("field = %q, want %q", doc.Rows[0].Fields[1], "semi;colon")
	}
}
