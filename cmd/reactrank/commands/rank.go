package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/cognicore/reactrank/internal/catalog"
	"github.com/cognicore/reactrank/pkg/reactrank"
	"github.com/cognicore/reactrank/pkg/reactrank/internalerr"
	"github.com/cognicore/reactrank/pkg/reactrank/rank"
)

// NewRankCmd creates the rank command
func NewRankCmd(e *env) *cobra.Command {
	var (
		filter  string
		sortBy  string
		reverse bool
		limit   int
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "rank [items.jsonl]",
		Short: "Rank items by learned preference",
		Long: "Score items against the current model and print them best first. " +
			"Without a file, every ingested item is ranked.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFilter(filter)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			session, logger, cleanup, err := e.open(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			opts := reactrank.RankOptions{Filter: f, SortBy: sortBy, Reverse: reverse}
			var results []rank.Result
			if len(args) == 1 {
				records, err := catalog.LoadFile(args[0], logger)
				if err != nil {
					return err
				}
				results, err = session.Rank(catalog.Items(records), opts)
				if err != nil {
					return err
				}
			} else {
				results, err = session.RankCatalog(opts)
				if err != nil {
					return err
				}
			}
			if limit > 0 && len(results) > limit {
				results = results[:limit]
			}

			if asJSON {
				return writeRankJSON(cmd.OutOrStdout(), session.Scheme().Names(), results)
			}
			return writeRankTable(cmd.OutOrStdout(), session.Scheme().Names(), results)
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "all", "all, seen or unseen")
	cmd.Flags().StringVar(&sortBy, "sort", "", "Category to sort by (default: combined rank)")
	cmd.Flags().BoolVar(&reverse, "reverse", false, "Reverse the order")
	cmd.Flags().IntVar(&limit, "limit", 0, "Print at most this many items (0 = all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func parseFilter(s string) (rank.Filter, error) {
	switch strings.ToLower(s) {
	case "", "all":
		return rank.FilterAll, nil
	case "seen":
		return rank.FilterSeen, nil
	case "unseen":
		return rank.FilterUnseen, nil
	}
	return rank.FilterAll, fmt.Errorf("filter %q: %w", s, internalerr.ErrInvalidInput)
}

type rankedItem struct {
	ID     string             `json:"id"`
	Rank   float64            `json:"rank"`
	Seen   bool               `json:"seen"`
	Scores map[string]float64 `json:"scores"`
}

func writeRankJSON(w io.Writer, categories []string, results []rank.Result) error {
	out := make([]rankedItem, 0, len(results))
	for _, r := range results {
		scores := make(map[string]float64, len(categories))
		for c, name := range categories {
			scores[name] = r.Probs[c]
		}
		out = append(out, rankedItem{ID: r.ID, Rank: r.Rank, Seen: r.Seen, Scores: scores})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeRankTable(w io.Writer, categories []string, results []rank.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "id\trank\tseen\t%s\t\n", strings.Join(categories, "\t"))
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%.4f\t%t\t", r.ID, r.Rank, r.Seen)
		for _, p := range r.Probs {
			fmt.Fprintf(tw, "%.4f\t", p)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

// NewExplainCmd creates the explain command
func NewExplainCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain <id>",
		Short: "Show per-tag counts and weights behind an item's score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			session, _, cleanup, err := e.open(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			exp, ok := session.ExplainItem(args[0])
			if !ok {
				return fmt.Errorf("item %s: %w", args[0], internalerr.ErrNotFound)
			}
			it, found, err := session.Item(ctx, args[0])
			if err != nil {
				return err
			}
			if found && it.Title != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n\n", it.ID, it.Title)
			}
			return writeExplanation(cmd.OutOrStdout(), exp)
		},
	}
	return cmd
}

func writeExplanation(w io.Writer, exp reactrank.Explanation) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	header := make([]string, 0, 2*len(exp.Categories))
	for _, name := range exp.Categories {
		header = append(header, "n:"+name)
	}
	for _, name := range exp.Categories {
		header = append(header, "w:"+name)
	}
	fmt.Fprintf(tw, "tag\t%s\t\n", strings.Join(header, "\t"))

	rows := append(append([]reactrank.ExplainRow(nil), exp.Rows...), exp.Totals)
	for _, row := range rows {
		tag := row.Tag
		if !row.Counted {
			tag += " (new)"
		}
		fmt.Fprintf(tw, "%s\t", tag)
		for _, n := range row.Counts {
			fmt.Fprintf(tw, "%d\t", n)
		}
		for _, v := range row.Weights {
			fmt.Fprintf(tw, "%.4f\t", v)
		}
		fmt.Fprintln(tw)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "rank %.4f\n", exp.Rank)
	return nil
}
