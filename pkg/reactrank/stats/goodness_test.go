package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWilliamsCorrection(t *testing.T) {
	assert.Equal(t, 0.0, WilliamsCorrection(0, 10, 3))
	assert.InDelta(t, 5*60.0/63.0, WilliamsCorrection(5, 10, 2), 1e-12)

	// The correction always shrinks the statistic and vanishes as n grows.
	assert.Less(t, WilliamsCorrection(4, 3, 5), 4.0)
	assert.InDelta(t, 4, WilliamsCorrection(4, 1e9, 5), 1e-6)
}

func TestBinomialPointMass(t *testing.T) {
	assert.InDelta(t, 0.125, BinomialPointMass(0.5, 3, 3), 1e-12)
	assert.InDelta(t, 0.375, BinomialPointMass(0.5, 1, 3), 1e-3)
	assert.Equal(t, 0.0, BinomialPointMass(0, 0, 5))
	assert.Equal(t, 0.0, BinomialPointMass(1, 5, 5))
	assert.Equal(t, 0.0, BinomialPointMass(0.3, 6, 5))
}

func TestBinomialGoodnessOfFitAtExpectation(t *testing.T) {
	assert.Equal(t, 1.0, BinomialGoodnessOfFit(0.25, 2, 8))
	assert.Equal(t, 1.0, BinomialGoodnessOfFit(0.3, 3000, 10000))
	assert.Equal(t, 1.0, BinomialGoodnessOfFit(0.5, 0, 0))
}

func TestBinomialGoodnessOfFitNearExpectation(t *testing.T) {
	cases := []struct {
		p float64
		n int64
	}{
		{0.37, 100},
		{0.137, 400},
		{0.37, 2000},
		{0.081, 100000},
	}
	for _, tc := range cases {
		k := int64(math.Round(tc.p * float64(tc.n)))
		assert.Greaterf(t, BinomialGoodnessOfFit(tc.p, k, tc.n), 0.9, "p=%v n=%d", tc.p, tc.n)
	}
}

func TestBinomialGoodnessOfFitTwoSided(t *testing.T) {
	// P(X=0) and P(X=3) are both 1/8 for a fair coin over three trials.
	assert.InDelta(t, 0.25, BinomialGoodnessOfFit(0.5, 3, 3), 1e-9)
	assert.InDelta(t, 0.25, BinomialGoodnessOfFit(0.5, 0, 3), 1e-9)
}

func TestBinomialGoodnessOfFitExtremes(t *testing.T) {
	assert.Less(t, BinomialGoodnessOfFit(0.5, 100, 100), 1e-10)
	assert.Less(t, BinomialGoodnessOfFit(0.1, 400, 1000), 1e-10)
	assert.Equal(t, 0.0, BinomialGoodnessOfFit(0, 3, 10))
}

func TestBinomialGoodnessOfFitBounded(t *testing.T) {
	for _, n := range []int64{1, 7, 50, 512, 513, 3000} {
		for _, p := range []float64{0.01, 0.2, 0.5, 0.93} {
			for k := int64(0); k <= n; k += 1 + n/17 {
				v := BinomialGoodnessOfFit(p, k, n)
				assert.False(t, math.IsNaN(v))
				assert.GreaterOrEqual(t, v, 0.0)
				assert.LessOrEqual(t, v, 1.0)
			}
		}
	}
}

func TestBinomialExactAndApproximateAgree(t *testing.T) {
	exact := Binomial{ExactLimit: 1000}.GoodnessOfFit(0.3, 120, 500)
	approx := Binomial{ExactLimit: 10}.GoodnessOfFit(0.3, 120, 500)
	assert.InDelta(t, exact, approx, 0.02)
}

func TestGTestProportional(t *testing.T) {
	priors := []float64{0.2, 0.5, 0.3}
	assert.InDelta(t, 1, GTest(priors, []int64{2, 5, 3}), 1e-9)
	assert.InDelta(t, 1, GTest(priors, []int64{200, 500, 300}), 1e-9)
	assert.Greater(t, GTest(priors, []int64{21, 49, 30}), 0.95)
}

func TestGTestSkewed(t *testing.T) {
	priors := []float64{0.2, 0.5, 0.3}
	assert.Less(t, GTest(priors, []int64{0, 30, 0}), 1e-3)
	assert.Less(t, GTest(priors, []int64{0, 3, 0}), GTest(priors, []int64{1, 2, 0}))
}

func TestGTestDegenerate(t *testing.T) {
	assert.Equal(t, 1.0, GTest([]float64{0.5, 0.5}, []int64{0, 0}))
	assert.Equal(t, 1.0, GTest([]float64{1}, []int64{4}))
	assert.Equal(t, 1.0, GTest([]float64{0.5, 0.5}, []int64{1}))
	assert.Equal(t, 0.0, GTest([]float64{0, 1}, []int64{3, 1}))
}
