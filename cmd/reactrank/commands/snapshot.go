package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cognicore/reactrank/pkg/reactrank/snapshot"
)

// NewExportCmd creates the export command
func NewExportCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <file|->",
		Short: "Write counts, reactions and item tags as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, _, cleanup, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			if args[0] == "-" {
				return snapshot.Encode(cmd.OutOrStdout(), session.Snapshot())
			}
			return writeSnapshotFile(args[0], session.Snapshot())
		},
	}
	return cmd
}

func writeSnapshotFile(path string, snap snapshot.Snapshot) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	return snapshot.Encode(f, snap)
}

// NewRestoreCmd creates the restore command
func NewRestoreCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <file|->",
		Short: "Replace counts and reactions with an exported snapshot",
		Long: "Load a snapshot written by export. Older exports that store positional " +
			"count arrays or numeric ids are accepted.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open %s: %w", args[0], err)
				}
				defer f.Close()
				r = f
			}
			snap, err := snapshot.Decode(r)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			session, _, cleanup, err := e.open(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := session.Restore(ctx, snap); err != nil {
				return err
			}
			if err := session.Save(ctx); err != nil {
				return err
			}
			st := session.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %d reactions over %d tags\n", st.Assigned, st.Tags)
			return nil
		},
	}
	return cmd
}
