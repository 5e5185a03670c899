package export

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/iksnae/chat-recorder/internal/message"
	"github.com/iksnae/chat-recorder/internal/record"
)

// JSONLExporter exports records in JSONL format (one record per line)
type JSONLExporter struct{}

// Export exports records to JSONL format
func (e *JSONLExporter) Export(records []record.MessageRecord, w io.Writer) error {
	enc := json.NewEncoder(w)

	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			return fmt.Errorf("failed to encode record %d: %w", records[i].ID, err)
		}
	}

	return nil
}

// Extension returns the file extension for this format
func (e *JSONLExporter) Extension() string {
	return "jsonl"
}

// WriteMessages writes each message as a JSON array of its segments, one per line
func WriteMessages(msgs []message.Message, w io.Writer) error {
	enc := json.NewEncoder(w)
	for i, msg := range msgs {
		if err := enc.Encode(message.FromSegments(msg.Segments())); err != nil {
			return fmt.Errorf("failed to encode message %d: %w", i, err)
		}
	}
	return nil
}
