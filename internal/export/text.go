package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/iksnae/chat-recorder/internal/record"
)

// TextExporter writes one "[time] user: text" line per record
type TextExporter struct{}

// Export exports records as plain text lines
func (e *TextExporter) Export(records []record.MessageRecord, w io.Writer) error {
	for _, rec := range records {
		who := rec.Session.User
		if rec.Kind == record.KindMessageSent {
			who = "bot " + who
		}
		if _, err := fmt.Fprintf(w, "[%s] %s: %s\n", rec.Time.Format("2006-01-02 15:04:05"), who, oneLine(rec.PlainText)); err != nil {
			return err
		}
	}
	return nil
}

// Extension returns the file extension for this format
func (e *TextExporter) Extension() string {
	return "txt"
}

// WriteTexts writes bare plain texts, one per line
func WriteTexts(texts []string, w io.Writer) error {
	for _, text := range texts {
		if _, err := fmt.Fprintln(w, oneLine(text)); err != nil {
			return err
		}
	}
	return nil
}

var newlines = strings.NewReplacer("\r\n", `\n`, "\n", `\n`, "\r", `\n`)

func oneLine(s string) string {
	return newlines.Replace(s)
}
