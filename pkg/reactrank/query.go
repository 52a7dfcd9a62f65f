package reactrank

import (
	"context"
	"fmt"
	"sort"

	"github.com/cognicore/reactrank/pkg/reactrank/category"
	"github.com/cognicore/reactrank/pkg/reactrank/counts"
	"github.com/cognicore/reactrank/pkg/reactrank/model"
	"github.com/cognicore/reactrank/pkg/reactrank/rank"
)

// RankOptions controls Rank output.
type RankOptions struct {
	Filter rank.Filter
	// SortBy names a category to order by its score; empty orders by the
	// combined rank.
	SortBy  string
	Reverse bool
}

// Rank scores the candidates against the current model. An item counts as
// seen when it has a category in the ledger.
func (s *Session) Rank(candidates []Item, opts RankOptions) ([]rank.Result, error) {
	q := rank.Query{Filter: opts.Filter, SortBy: rank.SortCombined, Reverse: opts.Reverse}
	if opts.SortBy != "" {
		c, err := s.scheme.Parse(opts.SortBy)
		if err != nil {
			return nil, err
		}
		q.SortBy = int(c)
	}

	cands := make([]rank.Candidate, 0, len(candidates))
	for _, it := range candidates {
		cands = append(cands, rank.Candidate{
			ID:   it.ID,
			Tags: uniqueStrings(it.Tags),
			Seen: s.ledger.CategoryOf(it.ID) != category.Unassigned,
		})
	}
	return s.scorer.Rank(cands, s.model, q), nil
}

// RankCatalog ranks every ingested item.
func (s *Session) RankCatalog(opts RankOptions) ([]rank.Result, error) {
	items := make([]Item, 0, len(s.items))
	for id, tags := range s.items {
		items = append(items, Item{ID: id, Tags: tags})
	}
	return s.Rank(items, opts)
}

// Score evaluates one tag set, returning the category scores and combined rank.
func (s *Session) Score(tags []string) (model.Vector, float64) {
	return s.scorer.Evaluate(uniqueStrings(tags), s.model)
}

// ExplainRow is one tag's contribution.
type ExplainRow struct {
	Tag     string
	Counts  counts.Vector
	Weights model.Vector
	// Counted is false for tags no reaction has touched yet.
	Counted bool
}

// Explanation breaks a score down by tag.
type Explanation struct {
	Categories []string
	Rows       []ExplainRow
	// Totals holds the category totals and the priors.
	Totals ExplainRow
	Probs  model.Vector
	Rank   float64
}

// Explain shows, for each tag of the set, its counts and weight vector,
// followed by the totals and priors. Rows are sorted by tag.
func (s *Session) Explain(tags []string) Explanation {
	tags = uniqueStrings(tags)
	sort.Strings(tags)

	store := s.ledger.Counts()
	exp := Explanation{
		Categories: s.scheme.Names(),
		Rows:       make([]ExplainRow, 0, len(tags)),
		Totals: ExplainRow{
			Tag:     "totals",
			Counts:  store.Totals(),
			Weights: s.model.Priors.Clone(),
			Counted: true,
		},
	}
	for _, tag := range tags {
		w, ok := s.model.Weight(tag)
		if !ok {
			w = make(model.Vector, s.scheme.Len())
		}
		exp.Rows = append(exp.Rows, ExplainRow{
			Tag:     tag,
			Counts:  store.Tag(tag),
			Weights: w.Clone(),
			Counted: store.HasTag(tag),
		})
	}
	exp.Probs, exp.Rank = s.scorer.Evaluate(tags, s.model)
	return exp
}

// ExplainItem explains a catalog item.
func (s *Session) ExplainItem(id string) (Explanation, bool) {
	tags, ok := s.items[id]
	if !ok {
		return Explanation{}, false
	}
	return s.Explain(tags), true
}

// Item returns the stored catalog entry, title and url included.
func (s *Session) Item(ctx context.Context, id string) (Item, bool, error) {
	it, ok, err := s.store.GetItem(ctx, id)
	if err != nil {
		return Item{}, false, fmt.Errorf("get item %s: %w", id, err)
	}
	return it, ok, nil
}

// Stats summarises session state.
type Stats struct {
	Items    int
	Assigned int
	Tags     int
	// Totals maps category name to its count.
	Totals map[string]int64
	Priors map[string]float64
}

// Stats reports catalog, ledger and count sizes.
func (s *Session) Stats() Stats {
	totals := s.ledger.Counts().Totals()
	st := Stats{
		Items:    len(s.items),
		Assigned: s.ledger.Len(),
		Tags:     s.ledger.Counts().UniqueTags(),
		Totals:   make(map[string]int64, len(totals)),
		Priors:   make(map[string]float64, len(totals)),
	}
	for _, c := range s.scheme.All() {
		name := s.scheme.Name(c)
		st.Totals[name] = totals[c]
		st.Priors[name] = s.model.Priors[c]
	}
	return st
}
