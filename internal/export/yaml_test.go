package export

import (
	"bytes"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestYAMLExporter_Export(t *testing.T) {
	var buf bytes.Buffer
	exporter := &YAMLExporter{}

	if err := exporter.Export(sampleRecords(), &buf); err != nil {
		t.Fatalf("YAMLExporter.Export() error = %v", err)
	}

	var decoded []map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Output is not valid YAML: %v\n%s", err, buf.String())
	}
	if len(decoded) != 3 {
		t.Fatalf("Decoded %d records, want 3", len(decoded))
	}
	if decoded[1]["kind"] != "message_sent" {
		t.Errorf("kind = %v, want message_sent", decoded[1]["kind"])
	}

	output := buf.String()
	for _, want := range []string{"self_id: \"10001\"", "type: group", "adapter: OneBot V11"} {
		if !strings.Contains(output, want) {
			t.Errorf("Output should contain %q, got:\n%s", want, output)
		}
	}
}

func TestYAMLExporter_Export_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := (&YAMLExporter{}).Export(nil, &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "[]" {
		t.Errorf("Empty export = %q, want []", got)
	}
}

func TestYAMLExporter_Extension(t *testing.T) {
	exporter := &YAMLExporter{}
	if got := exporter.Extension(); got != "yaml" {
		t.Errorf("YAMLExporter.Extension() = %v, want yaml", got)
	}
}
