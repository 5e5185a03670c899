package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/iksnae/chat-recorder/internal"
	"github.com/iksnae/chat-recorder/internal/adapters"
	"github.com/iksnae/chat-recorder/internal/blobcache"
	"github.com/iksnae/chat-recorder/internal/record"
)

var (
	healthcheckVerbose bool
)

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true).
			Underline(true)
)

// healthcheckCmd represents the healthcheck command
var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check that the recorder can reach its stores",
	Long: `Check the health of chat-recorder by verifying:
  • Database connectivity and schema
  • Redis session cache, when configured
  • Blob cache read and write
  • Installed adapters

This command is useful for debugging deployments before pointing a bot host at the recorder.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		fmt.Fprintln(out, sectionStyle.Render("🔍 Chat Recorder Health Check"))
		fmt.Fprintln(out)
		failed := 0

		// Step 1: database and migrations
		fmt.Fprintln(out, infoStyle.Render("Step 1: Opening database..."))
		a, err := openApp(ctx, cfg)
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render("❌ Database unavailable:"), err)
			return fmt.Errorf("health check failed: %w", err)
		}
		defer a.Close()
		fmt.Fprintln(out, successStyle.Render("✅ Database ready"))
		if healthcheckVerbose {
			fmt.Fprintf(out, "   Driver: %s\n", a.db.Dialect)
		}
		spec, _ := record.Filter{}.Build()
		if n, err := a.records.Count(ctx, spec); err != nil {
			fmt.Fprintln(out, errorStyle.Render("❌ Failed to count records:"), err)
			failed++
		} else {
			fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✅ %d record(s) stored", n)))
		}
		fmt.Fprintln(out)

		// Step 2: redis
		fmt.Fprintln(out, infoStyle.Render("Step 2: Checking session cache..."))
		if a.redis == nil {
			fmt.Fprintln(out, warningStyle.Render("⚠️  Redis not configured, sessions resolve against the database only"))
		} else if err := a.redis.Ping(ctx).Err(); err != nil {
			fmt.Fprintln(out, warningStyle.Render("⚠️  Redis unreachable, recording falls back to the database:"), err)
		} else {
			fmt.Fprintln(out, successStyle.Render("✅ Redis reachable"))
			if healthcheckVerbose {
				fmt.Fprintf(out, "   Address: %s\n", cfg.Redis.Addr)
			}
		}
		fmt.Fprintln(out)

		// Step 3: blob cache
		fmt.Fprintln(out, infoStyle.Render("Step 3: Checking blob cache..."))
		blobs, err := a.blobStore(ctx, cfg)
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render("❌ Blob cache unavailable:"), err)
			failed++
		} else {
			sample := []byte("chat-recorder healthcheck")
			ref, err := blobs.Put(ctx, blobcache.Records, sample)
			if err == nil {
				_, err = blobs.Get(ctx, ref)
			}
			if err != nil {
				fmt.Fprintln(out, errorStyle.Render("❌ Blob cache round trip failed:"), err)
				failed++
			} else {
				fmt.Fprintln(out, successStyle.Render("✅ Blob cache writable"))
				if healthcheckVerbose {
					fmt.Fprintf(out, "   Probe: %s\n", ref)
				}
			}
		}
		fmt.Fprintln(out)

		// Step 4: adapters
		fmt.Fprintln(out, infoStyle.Render("Step 4: Checking adapters..."))
		installed := adapters.Default.Installed()
		if len(installed) == 0 {
			fmt.Fprintln(out, errorStyle.Render("❌ No adapters installed"))
			failed++
		} else {
			fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✅ %d of %d adapter(s) installed", len(installed), len(adapters.Known))))
			if healthcheckVerbose {
				for _, key := range installed {
					fmt.Fprintf(out, "   • %s\n", key)
				}
			}
		}
		fmt.Fprintln(out)

		// Summary
		fmt.Fprintln(out, sectionStyle.Render("📊 Summary"))
		fmt.Fprintln(out)
		if failed > 0 {
			fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("❌ Health check failed (%d problem(s))", failed)))
			return fmt.Errorf("health check failed: %d problem(s)", failed)
		}
		fmt.Fprintln(out, successStyle.Render("✅ Health check passed!"))
		internal.LogDebug("healthcheck passed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)
	healthcheckCmd.Flags().BoolVar(&healthcheckVerbose, "details", false, "Show detailed diagnostic information")
}
