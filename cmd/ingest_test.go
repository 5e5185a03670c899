package cmd

import (
	"strings"
	"testing"

	"github.com/iksnae/chat-recorder/testutil"
)

func TestIngestFiles(t *testing.T) {
	configFile, dir := setupConfig(t)
	spool := testutil.WriteSpool(t, dir, "capture.jsonl", testutil.SampleSpool()...)

	out, err := execute(t, "", "ingest", "--config", configFile, spool)
	if err != nil {
		t.Fatalf("ingest error = %v", err)
	}
	if !strings.Contains(out, "3 line(s): 3 recorded, 0 skipped, 0 failed") {
		t.Errorf("unexpected summary: %q", out)
	}

	out, err = execute(t, "", "records", "--config", configFile, "--count")
	if err != nil {
		t.Fatalf("records error = %v", err)
	}
	if strings.TrimSpace(out) != "3" {
		t.Errorf("count = %q, want 3", out)
	}
}

func TestIngestStdin(t *testing.T) {
	configFile, _ := setupConfig(t)
	lines := append(testutil.SampleSpool(), "not json")

	out, err := execute(t, strings.Join(lines, "\n"), "ingest", "--config", configFile)
	if err != nil {
		t.Fatalf("ingest error = %v", err)
	}
	if !strings.Contains(out, "4 line(s): 3 recorded, 0 skipped, 1 failed") {
		t.Errorf("unexpected summary: %q", out)
	}
}

func TestIngestNoSent(t *testing.T) {
	configFile, _ := setupConfig(t)

	out, err := execute(t, strings.Join(testutil.SampleSpool(), "\n"), "ingest", "--config", configFile, "--no-sent")
	if err != nil {
		t.Fatalf("ingest error = %v", err)
	}
	if !strings.Contains(out, "2 recorded, 1 skipped") {
		t.Errorf("unexpected summary: %q", out)
	}
}

func TestIngestErrors(t *testing.T) {
	configFile, dir := setupConfig(t)

	tests := []struct {
		name string
		args []string
	}{
		{"missing file", []string{"ingest", "--config", configFile, dir + "/absent.jsonl"}},
		{"watch with files", []string{"ingest", "--config", configFile, "--watch", dir, "a.jsonl"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, "", tt.args...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
