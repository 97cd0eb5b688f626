package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// CSVExporter flattens every section into one CSV table prefixed by a section column.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

func (e *CSVExporter) ContentType() string { return "text/csv" }
func (e *CSVExporter) Extension() string   { return "csv" }

// Render writes a header row per distinct section layout and one record per row.
func (e *CSVExporter) Render(doc Document) ([]byte, error) {
	if err := doc.validate(); err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)

	var lastHeader string
	for _, section := range doc.Sections {
		header := append([]string{"section"}, section.Headers...)
		if key := fmt.Sprint(header); key != lastHeader {
			if err := writer.Write(header); err != nil {
				return nil, fmt.Errorf("write csv headers: %w", err)
			}
			lastHeader = key
		}
		for _, row := range section.Rows {
			if err := writer.Write(append([]string{section.Heading}, row...)); err != nil {
				return nil, fmt.Errorf("write csv row: %w", err)
			}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
