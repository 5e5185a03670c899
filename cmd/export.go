package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/iksnae/chat-recorder/internal"
	"github.com/iksnae/chat-recorder/internal/export"
)

// Export views
const (
	viewRecords  = "records"
	viewMessages = "messages"
	viewPlain    = "plain"
)

var (
	format       string
	outputPath   string
	view         string
	exportFilter filterFlags
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export matching records to a file",
	Long: `Export the records matching the given filters (see 'chat-recorder records --help').

Views:
  records   full records with their sessions, in --format (jsonl, json, yaml, md, txt)
  messages  each message rebuilt by its adapter, one JSON segment array per line
  plain     the plain text of each message, one per line`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var exporter export.Exporter
		switch view {
		case viewRecords:
			var err error
			if exporter, err = export.NewExporter(format); err != nil {
				return err
			}
		case viewMessages, viewPlain:
		default:
			return fmt.Errorf("unknown view %q (valid: records, messages, plain)", view)
		}

		ctx := cmd.Context()
		a, err := openApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		f, err := exportFilter.filter(ctx, a.sessions)
		if err != nil {
			return err
		}
		spec, err := f.Build()
		if err != nil {
			return err
		}

		var (
			write func(io.Writer) error
			count int
		)
		switch view {
		case viewRecords:
			records, err := a.records.Records(ctx, spec)
			if err != nil {
				return err
			}
			count = len(records)
			write = func(w io.Writer) error { return exporter.Export(records, w) }
		case viewMessages:
			msgs, err := a.records.Messages(ctx, spec)
			if err != nil {
				return err
			}
			count = len(msgs)
			write = func(w io.Writer) error { return export.WriteMessages(msgs, w) }
		case viewPlain:
			texts, err := a.records.PlainTexts(ctx, spec)
			if err != nil {
				return err
			}
			count = len(texts)
			write = func(w io.Writer) error { return export.WriteTexts(texts, w) }
		}

		if outputPath == "" || outputPath == "-" {
			if err := write(cmd.OutOrStdout()); err != nil {
				return &internal.ExportError{Format: exportFormat(), Path: "stdout", Err: err}
			}
			return nil
		}

		err = internal.ShowProgress(ctx, fmt.Sprintf("Exporting %d %s to %s", count, view, outputPath), func() error {
			return writeFile(outputPath, write)
		})
		if err != nil {
			return &internal.ExportError{Format: exportFormat(), Path: outputPath, Err: err}
		}
		internal.PrintSuccess(fmt.Sprintf("Export complete: %d %s exported to %s", count, view, outputPath))
		return nil
	},
}

func exportFormat() string {
	switch view {
	case viewMessages:
		return "jsonl"
	case viewPlain:
		return "txt"
	}
	return format
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", path, err)
	}
	if err := write(file); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportFilter.register(exportCmd.Flags())
	exportCmd.Flags().StringVarP(&format, "format", "f", "jsonl", "Export format for the records view (jsonl, json, yaml, md, txt)")
	exportCmd.Flags().StringVarP(&outputPath, "out", "o", "-", "Output file ('-' for stdout)")
	exportCmd.Flags().StringVar(&view, "view", viewRecords, "What to export (records, messages, plain)")
}
