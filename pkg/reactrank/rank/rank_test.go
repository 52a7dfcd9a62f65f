package rank

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/reactrank/pkg/reactrank/model"
)

func testModel() *model.Model {
	priors := model.Vector{0.2, 0.5, 0.3}
	return &model.Model{
		Priors:         priors,
		CombineWeights: model.ComputeCombineWeights(priors),
		TagWeights: map[string]model.Vector{
			"fluffy": {0, 0.25, -0.05},
			"rain":   {0.4, -0.2, -0.2},
			"sun":    {-0.1, 0, 0.3},
		},
	}
}

func ids(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}

func TestScoreStartsFromPriors(t *testing.T) {
	m := testModel()

	assert.Equal(t, m.Priors, Score(nil, m))

	// Unknown tags contribute nothing.
	probs := Score([]string{"unknown"}, m)
	assert.Equal(t, m.Priors, probs)

	probs[0] = 42
	assert.Equal(t, 0.2, m.Priors[0], "Score copies the priors")
}

func TestScoreAddsTagWeights(t *testing.T) {
	probs := Score([]string{"fluffy", "sun"}, testModel())

	require.Len(t, probs, 3)
	assert.InDelta(t, 0.1, probs[0], 1e-12)
	assert.InDelta(t, 0.75, probs[1], 1e-12)
	assert.InDelta(t, 0.55, probs[2], 1e-12)
}

func TestCombine(t *testing.T) {
	assert.Equal(t, 5.0, Combine(model.Vector{1, 2, 3}, model.Vector{-1, 0, 2}))
	assert.Equal(t, 3.0, Combine(model.Vector{1, 2}, model.Vector{3}), "unmatched trailing components are ignored")
}

func TestCombineOfPriorsIsZero(t *testing.T) {
	m := testModel()
	assert.InDelta(t, 0, Combine(m.Priors, m.CombineWeights), 1e-9)
}

func TestSoftmax(t *testing.T) {
	for _, v := range Softmax(model.Vector{1000, 1000, 1000}) {
		assert.InDelta(t, 1.0/3, v, 1e-12)
	}

	out := Softmax(model.Vector{0, math.Log(3)})
	require.Len(t, out, 2)
	assert.InDelta(t, 0.25, out[0], 1e-12)
	assert.InDelta(t, 0.75, out[1], 1e-12)

	assert.Empty(t, Softmax(nil))
}

func TestRankOrdersByCombined(t *testing.T) {
	results := NewScorer(false).Rank([]Candidate{
		{ID: "wet", Tags: []string{"rain"}},
		{ID: "plain"},
		{ID: "sunny", Tags: []string{"sun"}, Seen: true},
	}, testModel(), Query{SortBy: SortCombined})

	assert.Equal(t, []string{"sunny", "plain", "wet"}, ids(results))
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i].Rank, results[i-1].Rank)
	}
}

func TestRankFilterReverseAndSortBy(t *testing.T) {
	m := testModel()
	scorer := NewScorer(false)
	cands := []Candidate{
		{ID: "a", Tags: []string{"rain"}, Seen: true},
		{ID: "b", Tags: []string{"fluffy"}},
		{ID: "c", Tags: []string{"sun"}},
	}

	unseen := scorer.Rank(cands, m, Query{Filter: FilterUnseen, SortBy: SortCombined})
	assert.ElementsMatch(t, []string{"b", "c"}, ids(unseen))
	for _, r := range unseen {
		assert.False(t, r.Seen, r.ID)
	}

	seen := scorer.Rank(cands, m, Query{Filter: FilterSeen, SortBy: SortCombined})
	assert.Equal(t, []string{"a"}, ids(seen))

	byFirst := scorer.Rank(cands, m, Query{SortBy: 0})
	assert.Equal(t, "a", byFirst[0].ID)

	reversed := scorer.Rank(cands, m, Query{SortBy: 0, Reverse: true})
	assert.Equal(t, "a", reversed[len(reversed)-1].ID)
}

func TestRankTiesBrokenByID(t *testing.T) {
	results := NewScorer(false).Rank([]Candidate{{ID: "z"}, {ID: "m"}, {ID: "a"}}, testModel(), Query{SortBy: SortCombined})
	assert.Equal(t, []string{"a", "m", "z"}, ids(results))
}

func TestEvaluateSoftmax(t *testing.T) {
	probs, _ := NewScorer(true).Evaluate([]string{"rain", "sun"}, testModel())

	var sum float64
	for _, p := range probs {
		assert.Greater(t, p, 0.0)
		sum += p
	}
	assert.InDelta(t, 1, sum, 1e-12)
}
