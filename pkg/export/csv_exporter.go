package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// utf8BOM marks the encoding for spreadsheet tools; the register carries
// accented ministry and policy names.
var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// Dataset is the tabular form of the policy register handed to a renderer.
// Row cells are keyed by header so the column order is declared once.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// CSVExporter renders the register as BOM-prefixed UTF-8 CSV.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render encodes the dataset. A cell missing from a row renders empty
// instead of shifting the remaining columns.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("register export needs at least one column")
	}
	buf := bytes.NewBuffer(append([]byte(nil), utf8BOM...))
	writer := csv.NewWriter(buf)
	if err := writer.Write(data.Headers); err != nil {
		return nil, fmt.Errorf("write register header: %w", err)
	}
	record := make([]string, len(data.Headers))
	for _, row := range data.Rows {
		for i, header := range data.Headers {
			record[i] = row[header]
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write register row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush register csv: %w", err)
	}
	return buf.Bytes(), nil
}
