package export

import (
	"bytes"
	"testing"
)

func TestTextExporter_Export(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TextExporter{}).Export(sampleRecords(), &buf); err != nil {
		t.Fatalf("TextExporter.Export() error = %v", err)
	}

	want := "[2024-01-02 03:04:05] U1: hello **all**\n" +
		"[2024-01-02 03:04:06] bot 10001: hi\\nthere\n" +
		"[2024-01-02 03:04:07] u9: \n"
	if buf.String() != want {
		t.Errorf("Export() =\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestWriteTexts(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTexts([]string{"a\r\nb", "", "c"}, &buf); err != nil {
		t.Fatalf("WriteTexts() error = %v", err)
	}
	if want := "a\\nb\n\nc\n"; buf.String() != want {
		t.Errorf("WriteTexts() = %q, want %q", buf.String(), want)
	}
}

func TestTextExporter_Extension(t *testing.T) {
	if got := (&TextExporter{}).Extension(); got != "txt" {
		t.Errorf("TextExporter.Extension() = %v, want txt", got)
	}
}
