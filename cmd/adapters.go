package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iksnae/chat-recorder/internal"
	"github.com/iksnae/chat-recorder/internal/adapters"
)

var adaptersCmd = &cobra.Command{
	Use:   "adapters",
	Short: "List known adapters and whether this build can record them",
	Long: `List every adapter the recorder can name. Installed adapters have a
message codec and an event resolver linked into this binary; the others are
recognised in filters but their messages cannot be recorded or rebuilt.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		styled := internal.IsTerminal(cmd.OutOrStdout())
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		header := "ADAPTER\tCODEC\tRESOLVER"
		if styled {
			header = headerStyle.Render(header)
		}
		fmt.Fprintln(w, header)
		for _, key := range adapters.Known {
			_, resolverErr := adapters.Default.ResolverFor(key)
			fmt.Fprintf(w, "%s\t%s\t%s\n", key,
				installedLabel(adapters.Default.IsInstalled(key), styled),
				installedLabel(resolverErr == nil, styled))
		}
		return w.Flush()
	},
}

func installedLabel(ok, styled bool) string {
	switch {
	case ok && styled:
		return sentStyle.Render("installed")
	case ok:
		return "installed"
	case styled:
		return fakeStyle.Render("-")
	default:
		return "-"
	}
}

func init() {
	rootCmd.AddCommand(adaptersCmd)
}
