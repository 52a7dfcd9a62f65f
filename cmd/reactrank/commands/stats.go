package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewStatsCmd creates the stats command
func NewStatsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show catalog, reaction and model totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, _, cleanup, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			st := session.Stats()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session:  %s\n", session.ID())
			fmt.Fprintf(out, "Items:    %d\n", st.Items)
			fmt.Fprintf(out, "Reacted:  %d\n", st.Assigned)
			fmt.Fprintf(out, "Tags:     %d\n\n", st.Tags)

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "category\tcount\tprior\t")
			for _, name := range session.Scheme().Names() {
				fmt.Fprintf(tw, "%s\t%d\t%.4f\t\n", name, st.Totals[name], st.Priors[name])
			}
			return tw.Flush()
		},
	}
	return cmd
}
