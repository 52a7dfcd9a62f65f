package model

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/reactrank/pkg/reactrank/category"
	"github.com/cognicore/reactrank/pkg/reactrank/counts"
)

func TestComputePriors(t *testing.T) {
	inputs := []counts.Vector{
		{0, 0, 0, 0, 0},
		{1, 0, 0},
		{10, 25, 3, 0},
		{1000000, 1},
	}
	for _, totals := range inputs {
		priors := ComputePriors(totals)
		require.Len(t, priors, len(totals))
		var sum float64
		for _, p := range priors {
			assert.Greater(t, p, 0.0)
			sum += p
		}
		assert.InDelta(t, 1, sum, 1e-12)
	}

	assert.Equal(t, Vector{0.2, 0.2, 0.2, 0.2, 0.2}, ComputePriors(counts.Vector{0, 0, 0, 0, 0}))
	assert.InDeltaSlice(t, []float64{0.2, 0.5, 0.3}, []float64(ComputePriors(counts.Vector{1, 4, 2})), 1e-12)
}

func TestComputeTagWeightZeroObservations(t *testing.T) {
	priors := Vector{0.2, 0.5, 0.3}
	assert.Equal(t, Vector{0, 0, 0}, ComputeTagWeight(priors, counts.Vector{0, 0, 0}))
	assert.Equal(t, Vector{0, 0, 0}, ComputeTagWeight(priors, counts.Vector{-1, 0, 0}))
}

func TestComputeTagWeightConcentrated(t *testing.T) {
	priors := Vector{0.2, 0.5, 0.3}
	w := ComputeTagWeight(priors, counts.Vector{0, 3, 0})

	assert.Greater(t, w[1], 0.0)
	assert.LessOrEqual(t, w[0], 0.0)
	assert.LessOrEqual(t, w[2], 0.0)
	assert.InDelta(t, 0, w[0], 1e-9)
	assert.InDelta(t, 0.2285, w[1], 1e-3)
	assert.InDelta(t, -0.0474, w[2], 1e-3)
}

func TestComputeTagWeightMatchingPriorsIsNearZero(t *testing.T) {
	priors := Vector{0.2, 0.5, 0.3}
	w := ComputeTagWeight(priors, counts.Vector{20, 50, 30})
	for c := range w {
		assert.InDelta(t, 0, w[c], 1e-9)
	}
}

func TestComputeTagWeightNeverNaN(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		k := 2 + rng.Intn(5)
		totals := make(counts.Vector, k)
		observed := make(counts.Vector, k)
		for c := 0; c < k; c++ {
			totals[c] = int64(rng.Intn(2000))
			observed[c] = int64(rng.Intn(700))
		}
		for _, v := range ComputeTagWeight(ComputePriors(totals), observed) {
			require.False(t, math.IsNaN(v) || math.IsInf(v, 0), "totals=%v observed=%v", totals, observed)
		}
	}
}

func TestComputeCombineWeightsMonotone(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 1000; i++ {
		k := 1 + rng.Intn(8)
		totals := make(counts.Vector, k)
		for c := range totals {
			totals[c] = int64(rng.Intn(1000))
		}
		priors := ComputePriors(totals)
		weights := ComputeCombineWeights(priors)

		var mean float64
		for c := 0; c < k; c++ {
			require.False(t, math.IsNaN(weights[c]))
			if c > 0 {
				assert.GreaterOrEqualf(t, weights[c], weights[c-1], "priors=%v", priors)
			}
			mean += priors[c] * weights[c]
		}
		assert.InDelta(t, 0, mean, 1e-9)
	}
}

func TestComputeCombineWeightsKnownValues(t *testing.T) {
	w := ComputeCombineWeights(Vector{0.2, 0.5, 0.3})
	assert.InDeltaSlice(t, []float64{-1.39981, -0.13546, 1.15898}, []float64(w), 1e-4)

	uniform := ComputeCombineWeights(Vector{0.2, 0.2, 0.2, 0.2, 0.2})
	assert.InDelta(t, -uniform[0], uniform[4], 1e-9)
	assert.InDelta(t, 0, uniform[2], 1e-9)

	assert.Equal(t, Vector{0}, ComputeCombineWeights(Vector{1}))
}

func buildStore(t *testing.T, k int, assignments []assignment) *counts.Store {
	t.Helper()
	store := counts.New(k)
	for _, a := range assignments {
		require.NoError(t, store.ApplyDelta(a.cat, a.tags, +1))
	}
	return store
}

type assignment struct {
	cat  category.Category
	tags []string
}

var sample = []assignment{
	{1, []string{"fluffy", "cat"}},
	{1, []string{"fluffy", "dog"}},
	{2, []string{"cat", "outdoor"}},
	{0, []string{"dog", "rain"}},
	{1, []string{"fluffy"}},
	{2, []string{"outdoor", "sun"}},
	{0, []string{"rain"}},
}

func TestBuildIsOrderIndependent(t *testing.T) {
	ctx := context.Background()
	forward := buildStore(t, 3, sample)

	reversed := make([]assignment, len(sample))
	for i, a := range sample {
		reversed[len(sample)-1-i] = a
	}
	backward := buildStore(t, 3, reversed)

	b := &Builder{}
	m1, err := b.Build(ctx, forward)
	require.NoError(t, err)
	m2, err := b.Build(ctx, backward)
	require.NoError(t, err)
	m3, err := b.Build(ctx, forward)
	require.NoError(t, err)

	assert.Equal(t, m1, m2)
	assert.Equal(t, m1, m3)
	assert.Len(t, m1.TagWeights, forward.UniqueTags())
}

func TestRebuildOnlyTouchesChangedTags(t *testing.T) {
	ctx := context.Background()
	store := buildStore(t, 3, sample)
	b := &Builder{}

	base, err := b.Build(ctx, store)
	require.NoError(t, err)

	require.NoError(t, store.ApplyDelta(2, []string{"fluffy", "sun"}, +1))
	next, err := b.Rebuild(ctx, base, store, []string{"fluffy", "sun"})
	require.NoError(t, err)

	assert.Equal(t, ComputePriors(store.Totals()), next.Priors)
	assert.Equal(t, ComputeCombineWeights(next.Priors), next.CombineWeights)
	assert.Equal(t, ComputeTagWeight(next.Priors, store.Tag("fluffy")), next.TagWeights["fluffy"])
	assert.Equal(t, base.TagWeights["rain"], next.TagWeights["rain"])

	// The previous snapshot is left untouched.
	assert.NotEqual(t, base.Priors, next.Priors)
	assert.Equal(t, ComputeTagWeight(base.Priors, counts.Vector{0, 3, 0}), base.TagWeights["fluffy"])
}

func TestBuildParallelMatchesSequential(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(3))
	store := counts.New(4)
	for i := 0; i < 2000; i++ {
		tags := make([]string, 0, 5)
		for j := 0; j < 5; j++ {
			tags = append(tags, fmt.Sprintf("tag-%d", rng.Intn(600)))
		}
		require.NoError(t, store.ApplyDelta(category.Category(rng.Intn(4)), uniq(tags), +1))
	}
	require.Greater(t, store.UniqueTags(), parallelThreshold)

	seq, err := (&Builder{Workers: 1}).Build(ctx, store)
	require.NoError(t, err)
	par, err := (&Builder{Workers: 4}).Build(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, seq, par)
}

func TestBuildHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := buildStore(t, 3, sample)
	_, err := (&Builder{}).Build(ctx, store)
	assert.ErrorIs(t, err, context.Canceled)
}

func uniq(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
