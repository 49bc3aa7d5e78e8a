package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go-export/internal/datasource"

	"github.com/xuri/excelize/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Encoder turns tabular export data into one output file.
type Encoder interface {
	Encode(data *datasource.ExportData) ([]byte, error)
	Ext() string
}

// CSVOptions configures the CSV encoder. Delimiter and Enclosure are single
// characters; zero values fall back to "," and `"`.
type CSVOptions struct {
	Delimiter rune
	Enclosure rune
	WithBOM   bool
}

type csvEncoder struct {
	opts CSVOptions
}

func NewCSVEncoder(opts CSVOptions) Encoder {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	if opts.Enclosure == 0 {
		opts.Enclosure = '"'
	}
	return &csvEncoder{opts: opts}
}

func (e *csvEncoder) Ext() string { return "csv" }

// Encode writes the header row first, then one row per record. Fields are
// wrapped in the enclosure character when they contain the delimiter, the
// enclosure, or a line break; enclosure characters inside a field are
// doubled. encoding/csv hardcodes the quote character, so the quoting is
// done here to honor a configurable enclosure.
func (e *csvEncoder) Encode(data *datasource.ExportData) ([]byte, error) {
	var buf bytes.Buffer
	if e.opts.WithBOM {
		buf.WriteString("\xef\xbb\xbf")
	}

	writeRow := func(fields []string) {
		for i, field := range fields {
			if i > 0 {
				buf.WriteRune(e.opts.Delimiter)
			}
			buf.WriteString(e.quote(field))
		}
		buf.WriteString("\r\n")
	}

	writeRow(data.Headers)
	for _, row := range data.Rows {
		fields := make([]string, len(row))
		for i, v := range row {
			fields[i] = cellString(v)
		}
		writeRow(fields)
	}
	return buf.Bytes(), nil
}

func (e *csvEncoder) quote(field string) string {
	enc := string(e.opts.Enclosure)
	needs := strings.ContainsRune(field, e.opts.Delimiter) ||
		strings.Contains(field, enc) ||
		strings.ContainsAny(field, "\r\n")
	if !needs {
		return field
	}
	return enc + strings.ReplaceAll(field, enc, enc+enc) + enc
}

type jsonEncoder struct{}

func NewJSONEncoder() Encoder { return &jsonEncoder{} }

func (e *jsonEncoder) Ext() string { return "json" }

// Encode produces a pretty-printed array of objects keyed by header label.
func (e *jsonEncoder) Encode(data *datasource.ExportData) ([]byte, error) {
	records := make([]map[string]any, 0, len(data.Rows))
	for _, row := range data.Rows {
		rec := make(map[string]any, len(data.Headers))
		for i, header := range data.Headers {
			if i < len(row) {
				rec[header] = jsonValue(row[i])
			} else {
				rec[header] = nil
			}
		}
		records = append(records, rec)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func jsonValue(v any) any {
	switch val := v.(type) {
	case time.Time:
		return val.Format(time.RFC3339)
	case primitive.ObjectID:
		return val.Hex()
	case primitive.DateTime:
		return val.Time().UTC().Format(time.RFC3339)
	default:
		return v
	}
}

type xlsxEncoder struct {
	sheetName string
}

// NewXLSXEncoder names the single worksheet after the export target.
func NewXLSXEncoder(sheetName string) Encoder {
	return &xlsxEncoder{sheetName: sanitizeSheetName(sheetName)}
}

func (e *xlsxEncoder) Ext() string { return "xlsx" }

func (e *xlsxEncoder) Encode(data *datasource.ExportData) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(e.sheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	if e.sheetName != "Sheet1" {
		f.DeleteSheet("Sheet1")
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})

	widths := make([]int, len(data.Headers))
	for i, header := range data.Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(e.sheetName, cell, header)
		f.SetCellStyle(e.sheetName, cell, cell, headerStyle)
		widths[i] = len(header)
	}

	for rowIdx, row := range data.Rows {
		for colIdx := range data.Headers {
			if colIdx >= len(row) {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			val := row[colIdx]
			switch v := val.(type) {
			case time.Time:
				f.SetCellValue(e.sheetName, cell, v.Format("2006-01-02 15:04:05"))
			case primitive.ObjectID:
				f.SetCellValue(e.sheetName, cell, v.Hex())
			case nil:
				// leave blank
			default:
				f.SetCellValue(e.sheetName, cell, v)
			}
			if w := len(cellString(val)); w > widths[colIdx] {
				widths[colIdx] = w
			}
		}
	}

	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if w < 10 {
			w = 10
		}
		if w > 60 {
			w = 60
		}
		f.SetColWidth(e.sheetName, col, col, float64(w)+2)
	}

	// Keep the header row visible while scrolling.
	f.SetPanes(e.sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})

	buffer, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// Worksheet names cap at 31 characters and reject a handful of characters.
func sanitizeSheetName(name string) string {
	if name == "" {
		return "Export"
	}
	replacer := strings.NewReplacer("[", "_", "]", "_", ":", "_", "*", "_", "?", "_", "/", "_", "\\", "_")
	name = replacer.Replace(name)
	runes := []rune(name)
	if len(runes) > 31 {
		name = string(runes[:31])
	}
	return name
}

func cellString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case time.Time:
		return val.Format("2006-01-02 15:04:05")
	case primitive.ObjectID:
		return val.Hex()
	case primitive.DateTime:
		return val.Time().UTC().Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprintf("%v", val)
	}
}

// NewEncoder selects the encoder for a format. sheetName only matters for
// XLSX output.
func NewEncoder(format Format, csvOpts CSVOptions, sheetName string) (Encoder, error) {
	switch format {
	case FormatCSV:
		return NewCSVEncoder(csvOpts), nil
	case FormatJSON:
		return NewJSONEncoder(), nil
	case FormatXLSX:
		return NewXLSXEncoder(sheetName), nil
	}
	return nil, fmt.Errorf("unsupported export format: %s", format)
}
