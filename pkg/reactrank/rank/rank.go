package rank

import (
	"math"
	"sort"

	"github.com/cognicore/reactrank/pkg/reactrank/model"
)

// Score evaluates a tag set against the model: the priors plus the weight
// vector of every tag the model knows. The result is unbounded and not
// necessarily a distribution.
func Score(tags []string, m *model.Model) model.Vector {
	probs := m.Priors.Clone()
	for _, tag := range tags {
		w, ok := m.TagWeights[tag]
		if !ok {
			continue
		}
		for c := range probs {
			if c < len(w) {
				probs[c] += w[c]
			}
		}
	}
	return probs
}

// Combine collapses a category-score vector into one sortable rank:
//
//	rank = Σ_c weights[c]·probs[c]
//
// summed in ascending category order.
func Combine(probs, weights model.Vector) float64 {
	var total float64
	for c := 0; c < len(probs) && c < len(weights); c++ {
		total += weights[c] * probs[c]
	}
	return total
}

// Softmax returns exp(v - max(v)) normalised to sum to 1.
func Softmax(v model.Vector) model.Vector {
	out := make(model.Vector, len(v))
	if len(v) == 0 {
		return out
	}
	maxVal := math.Inf(-1)
	for _, x := range v {
		if x > maxVal {
			maxVal = x
		}
	}
	var sum float64
	for i, x := range v {
		out[i] = math.Exp(x - maxVal)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Scorer ranks candidate items against a model.
type Scorer struct {
	softmax bool
}

// NewScorer creates a scorer. With softmax set, score vectors are normalised
// before they are combined.
func NewScorer(softmax bool) *Scorer {
	return &Scorer{softmax: softmax}
}

// Candidate is an item to be ranked.
type Candidate struct {
	ID   string
	Tags []string
	Seen bool
}

// Result is a scored candidate.
type Result struct {
	ID    string
	Probs model.Vector
	Rank  float64
	Seen  bool
}

// Filter restricts results by whether the item already has a reaction.
type Filter int

const (
	FilterAll Filter = iota
	FilterSeen
	FilterUnseen
)

// SortCombined orders results by combined rank; any value >= 0 orders by that
// category's score instead.
const SortCombined = -1

// Query controls ordering and filtering of Rank output.
type Query struct {
	Filter  Filter
	SortBy  int
	Reverse bool
}

// Evaluate scores one tag set, applying softmax if configured, and combines it.
func (s *Scorer) Evaluate(tags []string, m *model.Model) (model.Vector, float64) {
	probs := Score(tags, m)
	if s.softmax {
		probs = Softmax(probs)
	}
	return probs, Combine(probs, m.CombineWeights)
}

// Rank scores every candidate and sorts descending by the query's key, ties
// broken by ID. Reverse flips the final order.
func (s *Scorer) Rank(candidates []Candidate, m *model.Model, q Query) []Result {
	results := make([]Result, 0, len(candidates))
	for _, cand := range candidates {
		if !q.Filter.keep(cand.Seen) {
			continue
		}
		probs, rank := s.Evaluate(cand.Tags, m)
		results = append(results, Result{
			ID:    cand.ID,
			Probs: probs,
			Rank:  rank,
			Seen:  cand.Seen,
		})
	}

	key := func(r Result) float64 {
		if q.SortBy >= 0 && q.SortBy < len(r.Probs) {
			return r.Probs[q.SortBy]
		}
		return r.Rank
	}
	sort.SliceStable(results, func(i, j int) bool {
		ki, kj := key(results[i]), key(results[j])
		if ki != kj {
			return ki > kj
		}
		return results[i].ID < results[j].ID
	})

	if q.Reverse {
		for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
			results[i], results[j] = results[j], results[i]
		}
	}
	return results
}

func (f Filter) keep(seen bool) bool {
	switch f {
	case FilterSeen:
		return seen
	case FilterUnseen:
		return !seen
	}
	return true
}
