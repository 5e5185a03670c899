package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/iksnae/chat-recorder/internal"
	"github.com/iksnae/chat-recorder/internal/record"
	"github.com/iksnae/chat-recorder/internal/session"
)

var (
	recordsFilter filterFlags
	recordsLimit  int
	recordsCount  bool
	textWidth     int
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	sentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	fakeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List recorded messages",
	Long: `List recorded messages matching the given filters, oldest first.

Include flags keep records matching any of their values; exclude flags drop
records matching any of theirs; all flags combine with AND. --session seeds
equality filters from a stored session, and --skip leaves axes out of it.`,
	Example: `  chat-recorder records --adapter "OneBot V11" --scene-type group --since 2024-05-01
  chat-recorder records --session 3 --skip user --kind message_sent
  chat-recorder records --where 'segment_types.exists(t, t == "image")' --count`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		f, err := recordsFilter.filter(ctx, a.sessions)
		if err != nil {
			return err
		}
		spec, err := f.Build()
		if err != nil {
			return err
		}
		internal.LogDebug("records where %s", spec)

		if recordsCount && spec.Where == nil {
			n, err := a.records.Count(ctx, spec)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		}

		records, err := a.records.Records(ctx, spec)
		if err != nil {
			return err
		}
		if recordsCount {
			fmt.Fprintln(cmd.OutOrStdout(), len(records))
			return nil
		}
		if recordsLimit > 0 && len(records) > recordsLimit {
			records = records[len(records)-recordsLimit:]
		}
		if len(records) == 0 {
			internal.PrintWarning("No records match")
			return nil
		}

		styled := internal.IsTerminal(cmd.OutOrStdout())
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		header := "ID\tTIME\tADAPTER\tSCENE\tUSER\tKIND\tTEXT"
		if styled {
			header = headerStyle.Render(header)
		}
		fmt.Fprintln(w, header)
		for _, rec := range records {
			kind := string(rec.Kind)
			if styled {
				switch rec.Kind {
				case record.KindMessageSent:
					kind = sentStyle.Render(kind)
				case record.KindFake:
					kind = fakeStyle.Render(kind)
				}
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				rec.ID,
				rec.Time.Format("2006-01-02 15:04:05"),
				rec.Session.Adapter,
				sceneLabel(rec.Session.Scene),
				rec.Session.User,
				kind,
				truncateText(rec.PlainText, textWidth),
			)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		internal.LogInfo("%d record(s)", len(records))
		return nil
	},
}

func sceneLabel(sc session.Scene) string {
	label := sc.Type.String() + ":" + sc.ID
	if sc.Parent != nil {
		label = sc.Parent.Type.String() + ":" + sc.Parent.ID + "/" + label
	}
	return label
}

// truncateText flattens text to one line and cuts it to width display cells
func truncateText(text string, width int) string {
	text = strings.Join(strings.Fields(text), " ")
	if width <= 0 || runewidth.StringWidth(text) <= width {
		return text
	}
	return runewidth.Truncate(text, width, "…")
}

func init() {
	rootCmd.AddCommand(recordsCmd)
	recordsFilter.register(recordsCmd.Flags())
	recordsCmd.Flags().IntVarP(&recordsLimit, "limit", "n", 0, "Show only the most recent N records (0 = all)")
	recordsCmd.Flags().BoolVar(&recordsCount, "count", false, "Print the number of matching records only")
	recordsCmd.Flags().IntVar(&textWidth, "width", 60, "Truncate message text to this many columns (0 = no limit)")
}
