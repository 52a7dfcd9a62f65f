package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cognicore/reactrank/pkg/reactrank"
)

// NewReactCmd creates the react command
func NewReactCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "react <id> <category>",
		Short: "Record a reaction to an item",
		Long:  "Assign an item to a category, or to \"unassigned\" to clear it. The model is updated for the item's tags.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			session, _, cleanup, err := e.open(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			id, name := args[0], args[1]
			before := session.CategoryOf(id)
			changed, err := session.React(ctx, id, name)
			if err != nil {
				return err
			}
			if !changed {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already %s\n", id, before)
				return nil
			}
			if err := session.Save(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s\n", id, before, session.CategoryOf(id))
			return nil
		},
	}
	return cmd
}

// NewSeenCmd creates the seen command
func NewSeenCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seen <id>...",
		Short: "Mark items as viewed without a reaction",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			session, _, cleanup, err := e.open(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			marked := 0
			for _, id := range args {
				changed, err := session.MarkSeen(ctx, id)
				if err != nil {
					return err
				}
				if changed {
					marked++
				}
			}
			if marked > 0 {
				if err := session.Save(ctx); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Marked %d of %d items as seen\n", marked, len(args))
			return nil
		},
	}
	return cmd
}

// NewReconcileCmd creates the reconcile command
func NewReconcileCmd(e *env) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "reconcile <id> <remote-category>",
		Short: "Correct an item to its authoritative remote category",
		Long: "Compare an item's local category with the category recorded remotely. " +
			"On mismatch the local ledger and counts are corrected for that item only.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			session, _, cleanup, err := e.open(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			id, remote := args[0], args[1]
			err = session.Verify(id, remote)
			if err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s in sync (%s)\n", id, remote)
				return nil
			}
			var desync *reactrank.DesyncError
			if !errors.As(err, &desync) {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s out of sync: local %s, remote %s\n", id, desync.Local, desync.Remote)
			if dryRun {
				return nil
			}

			if _, err := session.Reconcile(ctx, id, remote); err != nil {
				return err
			}
			if err := session.Save(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s reconciled to %s\n", id, session.CategoryOf(id))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report the mismatch without correcting it")
	return cmd
}
