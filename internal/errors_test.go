package internal

import (
	"errors"
	"strings"
	"testing"
)

func TestStorageError(t *testing.T) {
	originalErr := errors.New("UNIQUE constraint failed")
	err := &StorageError{
		Table: "sessions",
		Op:    "upsert",
		Err:   originalErr,
	}

	errorMsg := err.Error()
	if !strings.Contains(errorMsg, "storage error") {
		t.Errorf("StorageError.Error() should contain 'storage error', got: %q", errorMsg)
	}
	if !strings.Contains(errorMsg, "upsert sessions") {
		t.Errorf("StorageError.Error() should contain op and table, got: %q", errorMsg)
	}

	if !errors.Is(err, originalErr) {
		t.Error("StorageError.Unwrap() should return original error")
	}
}

func TestParseError(t *testing.T) {
	originalErr := errors.New("invalid JSON")
	err := &ParseError{
		Source: "OneBot V11",
		Key:    "send_group_msg",
		Err:    originalErr,
	}

	errorMsg := err.Error()
	if !strings.Contains(errorMsg, "parse error") {
		t.Errorf("ParseError.Error() should contain 'parse error', got: %q", errorMsg)
	}
	if !strings.Contains(errorMsg, "[OneBot V11] send_group_msg") {
		t.Errorf("ParseError.Error() should contain source and key, got: %q", errorMsg)
	}

	if !errors.Is(err, originalErr) {
		t.Error("ParseError.Unwrap() should return original error")
	}
}

func TestIngestError(t *testing.T) {
	originalErr := &ParseError{Source: "Telegram", Key: "event", Err: errors.New("unexpected EOF")}
	err := &IngestError{
		Stage:   "resolve",
		Adapter: "Telegram",
		Err:     originalErr,
	}

	errorMsg := err.Error()
	if !strings.Contains(errorMsg, "ingest error [Telegram] resolve") {
		t.Errorf("IngestError.Error() should contain adapter and stage, got: %q", errorMsg)
	}

	var parseErr *ParseError
	if !errors.As(err, &parseErr) || parseErr.Key != "event" {
		t.Error("IngestError should unwrap to the wrapped ParseError")
	}
}

func TestExportError(t *testing.T) {
	originalErr := errors.New("write failed")
	err := &ExportError{
		Format: "jsonl",
		Path:   "/output/file.jsonl",
		Err:    originalErr,
	}

	errorMsg := err.Error()
	if !strings.Contains(errorMsg, "export error") {
		t.Errorf("ExportError.Error() should contain 'export error', got: %q", errorMsg)
	}
	if !strings.Contains(errorMsg, "jsonl") {
		t.Errorf("ExportError.Error() should contain format, got: %q", errorMsg)
	}

	if !errors.Is(err, originalErr) {
		t.Error("ExportError.Unwrap() should return original error")
	}
}
