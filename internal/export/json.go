package export

import (
	"encoding/json"
	"io"

	"github.com/iksnae/chat-recorder/internal/record"
)

// JSONExporter exports records as one pretty-printed JSON array
type JSONExporter struct{}

// Export exports records to JSON format
func (e *JSONExporter) Export(records []record.MessageRecord, w io.Writer) error {
	if records == nil {
		records = []record.MessageRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(records)
}

// Extension returns the file extension for this format
func (e *JSONExporter) Extension() string {
	return "json"
}
