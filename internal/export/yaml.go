package export

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/iksnae/chat-recorder/internal/record"
)

// YAMLExporter exports records as a YAML sequence
type YAMLExporter struct{}

// Export exports records to YAML format
func (e *YAMLExporter) Export(records []record.MessageRecord, w io.Writer) error {
	if records == nil {
		records = []record.MessageRecord{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer func() { _ = enc.Close() }()

	return enc.Encode(records)
}

// Extension returns the file extension for this format
func (e *YAMLExporter) Extension() string {
	return "yaml"
}
