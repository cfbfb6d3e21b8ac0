package csvio

import (
	"errors"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		opts        Options
		wantHeaders []string
		wantRows    [][]string
	}{
		{
			name:        "simple rows",
			input:       "Name,Category\nChocolate Cake,Dessert\nSourdough,Bread\n",
			wantHeaders: []string{"Name", "Category"},
			wantRows:    [][]string{{"Chocolate Cake", "Dessert"}, {"Sourdough", "Bread"}},
		},
		{
			name:        "quoted field with delimiter",
			input:       "Name,Notes\nTart,\"sweet, tangy\"\n",
			wantHeaders: []string{"Name", "Notes"},
			wantRows:    [][]string{{"Tart", "sweet, tangy"}},
		},
		{
			name:        "doubled quotes inside quoted field",
			input:       "Name,Notes\nCake,\"the \"\"big\"\" one\"\n",
			wantHeaders: []string{"Name", "Notes"},
			wantRows:    [][]string{{"Cake", `the "big" one`}},
		},
		{
			name:        "blank lines dropped",
			input:       "Name,Category\n\n   \nCake,Dessert\n\n",
			wantHeaders: []string{"Name", "Category"},
			wantRows:    [][]string{{"Cake", "Dessert"}},
		},
		{
			name:        "windows line endings",
			input:       "Name,Category\r\nCake,Dessert\r\n",
			wantHeaders: []string{"Name", "Category"},
			wantRows:    [][]string{{"Cake", "Dessert"}},
		},
		{
			name:        "leading BOM stripped",
			input:       "\uFEFFName,Category\nCake,Dessert\n",
			wantHeaders: []string{"Name", "Category"},
			wantRows:    [][]string{{"Cake", "Dessert"}},
		},
		{
			name:        "semicolon delimiter",
			input:       "Name;Category\nCake;Dessert\n",
			opts:        Options{Delimiter: ';'},
			wantHeaders: []string{"Name", "Category"},
			wantRows:    [][]string{{"Cake", "Dessert"}},
		},
		{
			name:        "empty trailing field",
			input:       "Name,Notes\nCake,\n",
			wantHeaders: []string{"Name", "Notes"},
			wantRows:    [][]string{{"Cake", ""}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Tokenize(tt.input, tt.opts)
			if err != nil {
				t.Fatalf("Tokenize() error = %v", err)
			}

			if !equalStrings(doc.Headers, tt.wantHeaders) {
				t.Errorf("Headers = %v, want %v", doc.Headers, tt.wantHeaders)
			}
			if len(doc.Rows) != len(tt.wantRows) {
				t.Fatalf("got %d rows, want %d", len(doc.Rows), len(tt.wantRows))
			}
			for i, want := range tt.wantRows {
				if !equalStrings(doc.Rows[i].Fields, want) {
					t.Errorf("row %d = %v, want %v", i, doc.Rows[i].Fields, want)
				}
			}
		})
	}
}

func TestTokenize_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
		opts  Options
	}{
		{"empty input", "", Options{}},
		{"only blank lines", "\n  \n\t\n", Options{}},
		{"header only", "Name,Category\n", Options{}},
		{"strict field count mismatch", "Name,Category\nCake\n", Options{StrictColumns: true}},
		{"hinted header absent", "a,b\nc,d\n", Options{HeaderHints: []string{"Order Number"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Tokenize(tt.input, tt.opts)
			if err == nil {
				t.Fatal("Tokenize() expected error")
			}
			var malformed *MalformedInputError
			if !errors.As(err, &malformed) {
				t.Errorf("error type = %T, want *MalformedInputError", err)
			}
		})
	}
}

func TestTokenize_LenientMismatchKeepsRow(t *testing.T) {
	doc, err := Tokenize("Name,Category\nCake\nPie,Dessert\n", Options{})
	if err != nil {
		t.Fatalf("Tokenize() error = %v", err)
	}

	if len(doc.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(doc.Rows))
	}
	if doc.Rows[0].Err == "" {
		t.Error("short row should carry a row error")
	}
	if doc.Rows[1].Err != "" {
		t.Errorf("well-formed row should have no error, got %q", doc.Rows[1].Err)
	}
}

func TestTokenize_HeaderHints(t *testing.T) {
	input := "Exported by AcmeTool\nGenerated 2024-01-05\nOrder Number,Status\n1001,paid\n"

	doc, err := Tokenize(input, Options{HeaderHints: []string{"Order Number"}})
	if err != nil {
		t.Fatalf("Tokenize() error = %v", err)
	}

	if !equalStrings(doc.Headers, []string{"Order Number", "Status"}) {
		t.Errorf("Headers = %v, want [Order Number Status]", doc.Headers)
	}
	if len(doc.Rows) != 1 || doc.Rows[0].Fields[0] != "1001" {
		t.Errorf("rows = %v, metadata lines should be discarded", doc.Rows)
	}
}

func TestTokenize_HeaderHintsMatchAlternateSpellings(t *testing.T) {
	// Hints name display labels; files spell the same columns in snake_case
	// or camelCase. The scan must accept them like the column mapper does.
	tests := []struct {
		name  string
		input string
	}{
		{"snake case", "order_number,Status\n1001,paid\n"},
		{"camel case", "OrderNumber,Status\n1001,paid\n"},
		{"upper snake", "ORDER_NUMBER,Status\n1001,paid\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Tokenize(tt.input, Options{HeaderHints: []string{"Order Number"}})
			if err != nil {
				t.Fatalf("Tokenize() error = %v", err)
			}
			if len(doc.Rows) != 1 || doc.Rows[0].Fields[0] != "1001" {
				t.Errorf("rows = %v, want the data row kept", doc.Rows)
			}
		})
	}
}

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Order Number", "order number"},
		{"order_number", "order number"},
		{"OrderNumber", "order number"},
		{"orderNumber", "order number"},
		{"ORDER NUMBER", "order number"},
		{"  Total Cost  ", "total cost"},
		{`="Order Number"`, "order number"},
		{"Phone2", "phone2"},
	}

	for _, tt := range tests {
		if got := NormalizeHeader(tt.input); got != tt.want {
			t.Errorf("NormalizeHeader(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestTokenize_HeaderHintsBeyondScanLimit(t *testing.T) {
	// Header sits on line 7, past the scan limit of 5.
	input := "m1\nm2\nm3\nm4\nm5\nm6\nOrder Number,Status\n1001,paid\n"

	_, err := Tokenize(input, Options{HeaderHints: []string{"Order Number"}})
	if err == nil {
		t.Fatal("Tokenize() expected error for header beyond scan limit")
	}
}

func TestTokenize_RowLineNumbers(t *testing.T) {
	doc, err := Tokenize("Name\n\nCake\nPie\n", Options{})
	if err != nil {
		t.Fatalf("Tokenize() error = %v", err)
	}

	if doc.Rows[0].Line != 3 {
		t.Errorf("first data row line = %d, want 3", doc.Rows[0].Line)
	}
	if doc.Rows[1].Line != 4 {
		t.Errorf("second data row line = %d, want 4", doc.Rows[1].Line)
	}
}

func TestCleanHeader(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"  Name  ", "Name"},
		{"\uFEFFName", "Name"},
		{`="Order Number"`, "Order Number"},
		{"=Name", "Name"},
		{"Name", "Name"},
	}

	for _, tt := range tests {
		if got := CleanHeader(tt.input); got != tt.want {
			t.Errorf("CleanHeader(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
