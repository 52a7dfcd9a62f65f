package reactrank

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cognicore/reactrank/pkg/reactrank/category"
	"github.com/cognicore/reactrank/pkg/reactrank/ledger"
)

// ImportResult summarises an ImportHistory call.
type ImportResult struct {
	Assigned  int
	Unchanged int
	// Missing lists ids absent from the catalog; they were not assigned.
	Missing []string
}

// ImportHistory assigns previously recorded reactions, keyed by category name.
// With an overlap rule configured, ids present in both the first and second
// lists move to the combined category. Lists are applied from the lowest
// category up, so an id listed twice ends in the higher one. The model is
// rebuilt once at the end.
func (s *Session) ImportHistory(ctx context.Context, lists map[string][]string) (ImportResult, error) {
	byCat := make([][]string, s.scheme.Len())
	for name, ids := range lists {
		c, err := s.scheme.Parse(name)
		if err != nil {
			return ImportResult{}, fmt.Errorf("import history: %w", err)
		}
		if c == category.Unassigned {
			continue
		}
		byCat[c] = append(byCat[c], ids...)
	}

	if rule := s.overlap; rule != nil {
		both, firstOnly, secondOnly := ledger.SplitOverlap(byCat[rule.first], byCat[rule.second])
		byCat[rule.first] = firstOnly
		byCat[rule.second] = secondOnly
		byCat[rule.into] = append(byCat[rule.into], both...)
		if len(both) > 0 {
			s.logger.Info("history_overlap_derived",
				zap.String("into", s.scheme.Name(rule.into)),
				zap.Int("items", len(both)))
		}
	}

	var (
		res     ImportResult
		changed []string
	)
	for c, ids := range byCat {
		for _, id := range ids {
			tags, ok := s.items[id]
			if !ok {
				res.Missing = append(res.Missing, id)
				continue
			}
			moved, err := s.ledger.Assign(id, tags, category.Category(c))
			if err != nil {
				return res, err
			}
			if !moved {
				res.Unchanged++
				continue
			}
			res.Assigned++
			s.metrics.RecordAssignment(s.scheme.Name(category.Category(c)))
			changed = append(changed, tags...)
		}
	}

	if len(res.Missing) > 0 {
		s.logger.Warn("history_items_missing", zap.Int("count", len(res.Missing)))
	}
	s.logger.Info("history_imported",
		zap.Int("assigned", res.Assigned),
		zap.Int("unchanged", res.Unchanged))

	if len(changed) == 0 {
		return res, nil
	}
	return res, s.rebuild(ctx, changed)
}
