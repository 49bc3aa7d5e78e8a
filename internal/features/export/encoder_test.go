package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"go-export/internal/datasource"

	"github.com/xuri/excelize/v2"
)

func sampleData() *datasource.ExportData {
	return &datasource.ExportData{
		Headers: []string{"Name", "Email", "Notes"},
		Rows: [][]any{
			{"Ada", "ada@example.com", `said "hi", left`},
			{"Linus", "linus@example.com", "line\nbreak"},
		},
	}
}

func TestCSVEncoderRoundTrip(t *testing.T) {
	enc := NewCSVEncoder(CSVOptions{})
	payload, err := enc.Encode(sampleData())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	reader := csv.NewReader(bytes.NewReader(payload))
	records, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("parsed %d rows, want 3 (header + 2)", len(records))
	}
	if records[0][0] != "Name" || records[0][2] != "Notes" {
		t.Errorf("header row = %v", records[0])
	}
	if records[1][2] != `said "hi", left` {
		t.Errorf("quoted field = %q", records[1][2])
	}
	if records[2][2] != "line\nbreak" {
		t.Errorf("multiline field = %q", records[2][2])
	}
}

func TestCSVEncoderDelimiterAndBOM(t *testing.T) {
	enc := NewCSVEncoder(CSVOptions{Delimiter: ';', WithBOM: true})
	payload, err := enc.Encode(&datasource.ExportData{
		Headers: []string{"A", "B"},
		Rows:    [][]any{{"1", "2"}},
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.HasPrefix(payload, []byte("\xef\xbb\xbf")) {
		t.Error("output missing BOM")
	}
	if !strings.Contains(string(payload), "A;B") {
		t.Errorf("delimiter not applied:\n%s", payload)
	}
}

func TestCSVEncoderCustomEnclosure(t *testing.T) {
	enc := NewCSVEncoder(CSVOptions{Enclosure: '\''})
	payload, err := enc.Encode(&datasource.ExportData{
		Headers: []string{"Notes"},
		Rows:    [][]any{{"it's, complicated"}},
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := "'it''s, complicated'"
	if !strings.Contains(string(payload), want) {
		t.Errorf("output = %q, want enclosure doubling %q", payload, want)
	}
}

func TestJSONEncoderRoundTrip(t *testing.T) {
	enc := NewJSONEncoder()
	payload, err := enc.Encode(sampleData())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var records []map[string]any
	if err := json.Unmarshal(payload, &records); err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("parsed %d records, want 2", len(records))
	}
	if records[0]["Name"] != "Ada" || records[0]["Email"] != "ada@example.com" {
		t.Errorf("first record = %v", records[0])
	}
	if records[1]["Notes"] != "line\nbreak" {
		t.Errorf("notes = %q", records[1]["Notes"])
	}
}

func TestJSONEncoderNoHTMLEscaping(t *testing.T) {
	enc := NewJSONEncoder()
	payload, err := enc.Encode(&datasource.ExportData{
		Headers: []string{"URL"},
		Rows:    [][]any{{"https://example.com/?a=1&b=2"}},
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if strings.Contains(string(payload), `\u0026`) {
		t.Error("output is HTML-escaped")
	}
	if !strings.Contains(string(payload), "a=1&b=2") {
		t.Errorf("url mangled:\n%s", payload)
	}
}

func TestXLSXEncoderRoundTrip(t *testing.T) {
	enc := NewXLSXEncoder("Contacts")
	payload, err := enc.Encode(sampleData())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Contacts")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("sheet has %d rows, want 3", len(rows))
	}
	if rows[0][0] != "Name" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][1] != "ada@example.com" {
		t.Errorf("data row = %v", rows[1])
	}
}

func TestSanitizeSheetName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Contacts", "Contacts"},
		{"", "Export"},
		{"A/B:C", "A_B_C"},
		{strings.Repeat("x", 40), strings.Repeat("x", 31)},
	}
	for _, tc := range cases {
		if got := sanitizeSheetName(tc.in); got != tc.want {
			t.Errorf("sanitizeSheetName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNewEncoderUnknownFormat(t *testing.T) {
	if _, err := NewEncoder("pdf", CSVOptions{}, ""); err == nil {
		t.Error("NewEncoder accepted unknown format")
	}
}
