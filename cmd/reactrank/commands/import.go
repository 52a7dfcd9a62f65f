package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cognicore/reactrank/internal/catalog"
)

// NewImportCmd creates the import command
func NewImportCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <items.jsonl>",
		Short: "Ingest items and their recorded reactions",
		Long: "Ingest catalog items from a JSONL file. Records carrying a \"reaction\" field are " +
			"assigned to that category; with an overlap rule configured, items listed under both " +
			"source categories move to the combined one.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			session, logger, cleanup, err := e.open(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			records, err := catalog.LoadFile(args[0], logger)
			if err != nil {
				return err
			}
			items := catalog.Items(records)
			if err := session.Ingest(ctx, items); err != nil {
				return fmt.Errorf("failed to ingest items: %w", err)
			}

			res, err := session.ImportHistory(ctx, catalog.History(records))
			if err != nil {
				return fmt.Errorf("failed to import reactions: %w", err)
			}
			if err := session.Save(ctx); err != nil {
				return err
			}

			logger.Info("import_complete",
				zap.String("file", args[0]),
				zap.Int("items", len(items)),
				zap.Int("assigned", res.Assigned))
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d items, %d reactions assigned (%d unchanged, %d missing)\n",
				len(items), res.Assigned, res.Unchanged, len(res.Missing))
			return nil
		},
	}
	return cmd
}
