package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/iksnae/chat-recorder/internal"
	"github.com/iksnae/chat-recorder/internal/ingest"
	"github.com/iksnae/chat-recorder/internal/telemetry"
)

var (
	watchDir string
	noSent   bool
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Record messages from captured JSONL notifications",
	Long: `Replay JSONL notification captures into the record store.

Each line is either an inbound event:
  {"kind":"event","bot":{"adapter":"OneBot V11","self_id":"10001"},"payload":{...}}
or a completed outbound API call:
  {"kind":"call","bot":{...},"api":"send_group_msg","data":{...},"result":{...}}

With no files, lines are read from standard input. With --watch, every .jsonl
file already in the directory is replayed, then each new file as it appears,
until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if watchDir != "" && len(args) > 0 {
			return fmt.Errorf("--watch cannot be combined with file arguments")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		tel, err := telemetry.Setup(ctx, cfg.Telemetry, version)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tel.Shutdown(shutdownCtx); err != nil {
				internal.LogWarn("Failed to flush telemetry: %v", err)
			}
		}()

		c := *cfg
		if noSent {
			c.RecordSendMsg = false
		}
		rec, err := a.recorder(ctx, &c,
			ingest.WithTracerProvider(tel.TracerProvider()),
			ingest.WithMeterProvider(tel.MeterProvider()),
		)
		if err != nil {
			return err
		}

		var total ingest.Stats
		switch {
		case watchDir != "":
			internal.LogInfo("Watching %s for .jsonl files (Ctrl+C to stop)", watchDir)
			total, err = rec.Watch(ctx, watchDir, func(path string, stats ingest.Stats) {
				internal.LogInfo("%s: %s", path, describeStats(stats))
			})
		case len(args) == 0:
			total, err = rec.Replay(ctx, cmd.InOrStdin(), "stdin")
		default:
			for _, path := range args {
				var stats ingest.Stats
				perr := internal.ShowProgress(ctx, fmt.Sprintf("Recording %s", path), func() error {
					var rerr error
					stats, rerr = rec.ReplayFile(ctx, path)
					return rerr
				})
				total.Add(stats)
				if perr != nil {
					err = perr
					break
				}
			}
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), describeStats(total))
		if total.Failed > 0 {
			internal.PrintWarning(fmt.Sprintf("%d line(s) failed; run with --verbose for details", total.Failed))
		}
		return nil
	},
}

func describeStats(s ingest.Stats) string {
	return fmt.Sprintf("%d line(s): %d recorded, %d skipped, %d failed", s.Lines, s.Recorded, s.Skipped, s.Failed)
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVarP(&watchDir, "watch", "w", "", "Watch a spool directory for new .jsonl files")
	ingestCmd.Flags().BoolVar(&noSent, "no-sent", false, "Do not record messages sent by the bots (overrides record_send_msg)")
}
