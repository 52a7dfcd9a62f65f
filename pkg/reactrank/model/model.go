package model

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/cognicore/reactrank/pkg/reactrank/counts"
	"github.com/cognicore/reactrank/pkg/reactrank/stats"
)

// machineEpsilon bounds the G-test p-value away from zero before its logarithm.
const machineEpsilon = 0x1p-52

// parallelThreshold is the smallest batch of tags worth fanning out.
const parallelThreshold = 256

// Vector holds one real value per category.
type Vector []float64

// Clone returns an independent copy of v.
func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// Model is a snapshot derived from a counts.Store. It is replaced, never
// mutated, when counts change.
type Model struct {
	Priors         Vector
	CombineWeights Vector
	TagWeights     map[string]Vector
}

// K returns the number of categories.
func (m *Model) K() int { return len(m.Priors) }

// Weight returns the weight vector learned for tag.
func (m *Model) Weight(tag string) (Vector, bool) {
	w, ok := m.TagWeights[tag]
	return w, ok
}

// ComputePriors applies add-one smoothing to the totals and normalises them.
// Every prior is strictly positive, even for an all-zero input.
func ComputePriors(totals counts.Vector) Vector {
	priors := make(Vector, len(totals))
	var sum float64
	for c, n := range totals {
		if n < 0 {
			n = 0
		}
		priors[c] = float64(n) + 1
		sum += priors[c]
	}
	for c := range priors {
		priors[c] /= sum
	}
	return priors
}

// ComputeCombineWeights maps the ordinal category axis onto a standard normal.
// Category c owns the quantile interval (a, b] whose probability mass is
// priors[c]; its weight is the mean of Z over that interval:
//
//	w[c] = (φ(a) - φ(b)) / priors[c],  φ(x) = e^(-x²/2)/√(2π)
//
// with a = -Inf for the first category and b = +Inf for the last. The result is
// non-decreasing in c and Σ priors[c]·w[c] = 0.
func ComputeCombineWeights(priors Vector) Vector {
	k := len(priors)
	weights := make(Vector, k)

	var cumulative float64
	lower := math.Inf(-1)
	for c := 0; c < k; c++ {
		cumulative += priors[c]
		upper := math.Inf(1)
		if c < k-1 {
			upper = math.Sqrt2 * stats.ErfInverse(2*cumulative-1)
		}
		if priors[c] > 0 {
			weights[c] = (normalDensity(lower) - normalDensity(upper)) / priors[c]
		}
		lower = upper
	}
	return weights
}

func normalDensity(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}

// ComputeTagWeight derives a tag's per-category weights from its observed
// counts using the default binomial exact limit.
func ComputeTagWeight(priors Vector, observed counts.Vector) Vector {
	return (&Builder{}).TagWeight(priors, observed)
}

// Builder derives models from counts.
type Builder struct {
	// Binomial configures the per-category significance test.
	Binomial stats.Binomial
	// Workers caps the goroutines used for large tag batches; <= 1 is sequential.
	Workers int
}

// TagWeight computes one tag's weight vector:
//
//  1. diff[c] = freq[c] - priors[c], freq being observed normalised to 1.
//  2. diff is scaled by (1-gP)·ln(1-ln gP), gP the G-test p-value, which grows
//     as the distribution becomes harder to explain by chance.
//  3. each diff[c] is scaled by (1-pc)², pc the binomial p-value of that
//     category alone, damping deviations that are not individually significant.
//
// A tag with no observations gets the zero vector. Negative counts are read as 0.
func (b *Builder) TagWeight(priors Vector, observed counts.Vector) Vector {
	k := len(priors)
	weights := make(Vector, k)

	obs := make([]int64, k)
	var total int64
	for c := 0; c < k && c < len(observed); c++ {
		if observed[c] > 0 {
			obs[c] = observed[c]
			total += observed[c]
		}
	}
	if total <= 0 {
		return weights
	}

	gP := stats.GTest(priors, obs)
	if gP < machineEpsilon {
		gP = machineEpsilon
	}
	confidence := (1 - gP) * math.Log(1-math.Log(gP))

	for c := 0; c < k; c++ {
		freq := float64(obs[c]) / float64(total)
		damp := 1 - b.Binomial.GoodnessOfFit(priors[c], obs[c], total)
		w := (freq - priors[c]) * confidence * damp * damp
		if math.IsNaN(w) || math.IsInf(w, 0) {
			w = 0
		}
		weights[c] = w
	}
	return weights
}

// Build derives a complete model, recomputing every tag.
func (b *Builder) Build(ctx context.Context, store *counts.Store) (*Model, error) {
	return b.Rebuild(ctx, nil, store, store.Tags())
}

// Rebuild recomputes priors and combine weights from store, and tag weights only
// for changed. Weights of other tags are carried over from prev. A nil prev
// starts from an empty weight table.
func (b *Builder) Rebuild(ctx context.Context, prev *Model, store *counts.Store, changed []string) (*Model, error) {
	priors := ComputePriors(store.Totals())
	next := &Model{
		Priors:         priors,
		CombineWeights: ComputeCombineWeights(priors),
		TagWeights:     make(map[string]Vector),
	}
	if prev != nil {
		for tag, w := range prev.TagWeights {
			next.TagWeights[tag] = w
		}
	}

	weights, err := b.tagWeights(ctx, priors, store, changed)
	if err != nil {
		return nil, err
	}
	for i, tag := range changed {
		next.TagWeights[tag] = weights[i]
	}
	return next, nil
}

// tagWeights computes weights for tags, splitting large batches across workers.
// Each tag's weight depends only on (priors, counts), so chunks are independent.
func (b *Builder) tagWeights(ctx context.Context, priors Vector, store *counts.Store, tags []string) ([]Vector, error) {
	out := make([]Vector, len(tags))
	if b.Workers <= 1 || len(tags) < parallelThreshold {
		for i, tag := range tags {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			out[i] = b.TagWeight(priors, store.Tag(tag))
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.Workers)
	chunk := (len(tags) + b.Workers - 1) / b.Workers
	for start := 0; start < len(tags); start += chunk {
		start := start
		end := min(start+chunk, len(tags))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				out[i] = b.TagWeight(priors, store.Tag(tags[i]))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
