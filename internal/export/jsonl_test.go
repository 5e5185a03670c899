package export

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"

	"github.com/iksnae/chat-recorder/internal/message"
)

func TestJSONLExporter_Export(t *testing.T) {
	var buf bytes.Buffer
	exporter := &JSONLExporter{}
	records := sampleRecords()

	if err := exporter.Export(records, &buf); err != nil {
		t.Fatalf("JSONLExporter.Export() error = %v", err)
	}

	scanner := bufio.NewScanner(&buf)
	lines := 0
	for scanner.Scan() {
		var decoded map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Errorf("Line %d is not valid JSON: %v", lines+1, err)
			continue
		}
		if id, _ := decoded["id"].(float64); int64(id) != records[lines].ID {
			t.Errorf("Line %d id = %v, want %d", lines+1, decoded["id"], records[lines].ID)
		}
		lines++
	}
	if lines != len(records) {
		t.Errorf("Got %d lines, want %d", lines, len(records))
	}
}

func TestJSONLExporter_Export_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONLExporter{}).Export(nil, &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("Expected no output, got %q", buf.String())
	}
}

func TestJSONLExporter_Extension(t *testing.T) {
	exporter := &JSONLExporter{}
	if got := exporter.Extension(); got != "jsonl" {
		t.Errorf("JSONLExporter.Extension() = %v, want jsonl", got)
	}
}

type stubMessage []message.Segment

func (m stubMessage) Segments() []message.Segment { return m }
func (m stubMessage) PlainText() string            { return "" }

func TestWriteMessages(t *testing.T) {
	msgs := []message.Message{
		stubMessage{{Type: "text", Data: map[string]any{"text": "hi"}}},
		stubMessage{},
	}

	var buf bytes.Buffer
	if err := WriteMessages(msgs, &buf); err != nil {
		t.Fatalf("WriteMessages() error = %v", err)
	}

	want := "[{\"type\":\"text\",\"data\":{\"text\":\"hi\"}}]\n[]\n"
	if buf.String() != want {
		t.Errorf("WriteMessages() = %q, want %q", buf.String(), want)
	}
}
