package stats

import "math"

// DefaultExactLimit is the largest sample size for which the binomial test
// sums point masses instead of using the likelihood-ratio approximation.
const DefaultExactLimit = 512

// massTolerance absorbs rounding when comparing point masses against the
// observed one, so ties on the far tail are counted as "as extreme".
const massTolerance = 1e-7

// WilliamsCorrection scales a likelihood-ratio statistic computed from n
// observations over k categories by snv/(snv+k²-1), where snv = 6n(k-1).
func WilliamsCorrection(chi2, n float64, k int) float64 {
	if chi2 == 0 {
		return 0
	}
	snv := 6 * n * float64(k-1)
	den := snv + float64(k*k-1)
	if den == 0 {
		return chi2
	}
	return chi2 * snv / den
}

// BinomialPointMass returns P(X = i) for X ~ Binomial(n, p).
// A degenerate p (0 or 1) yields 0.
func BinomialPointMass(p float64, i, n int64) float64 {
	if p <= 0 || p >= 1 || i < 0 || i > n {
		return 0
	}
	fi, fn := float64(i), float64(n)
	return math.Exp(LogBinomialCoefficient(fn, fi) + fi*math.Log(p) + (fn-fi)*math.Log1p(-p))
}

// Binomial is a two-sided binomial goodness-of-fit test.
type Binomial struct {
	// ExactLimit is the largest n summed exactly; <= 0 means DefaultExactLimit.
	ExactLimit int64
}

// BinomialGoodnessOfFit runs Binomial{} with the default exact limit.
func BinomialGoodnessOfFit(p float64, k, n int64) float64 {
	return Binomial{}.GoodnessOfFit(p, k, n)
}

// GoodnessOfFit returns the p-value of observing k successes out of n when the
// success probability is p. Seeing exactly the expectation yields 1.
func (b Binomial) GoodnessOfFit(p float64, k, n int64) float64 {
	if n <= 0 || k < 0 || k > n || math.IsNaN(p) {
		return 1
	}
	if float64(k) == p*float64(n) {
		return 1
	}
	if p <= 0 || p >= 1 {
		return 0
	}
	limit := b.ExactLimit
	if limit <= 0 {
		limit = DefaultExactLimit
	}
	if n <= limit {
		return exactBinomial(p, k, n)
	}
	return approxBinomial(p, k, n)
}

// exactBinomial sums every point mass no larger than the observed one. Since the
// distribution is unimodal each tail is walked from its endpoint toward k and
// stops at the first mass that exceeds the observed mass.
func exactBinomial(p float64, k, n int64) float64 {
	kp := BinomialPointMass(p, k, n)
	bound := kp * (1 + massTolerance)

	pval := kp
	for i := int64(0); i < k; i++ {
		m := BinomialPointMass(p, i, n)
		if m > bound {
			break
		}
		pval += m
	}
	for i := n; i > k; i-- {
		m := BinomialPointMass(p, i, n)
		if m > bound {
			break
		}
		pval += m
	}
	return clampUnit(pval)
}

// approxBinomial is the G-test over (k, n-k) against (pn, n-pn), Williams
// corrected with two cells and read off χ²(1).
func approxBinomial(p float64, k, n int64) float64 {
	fk, fn := float64(k), float64(n)
	e := p * fn
	c := fn - fk

	var g float64
	if fk > 0 {
		g += fk * math.Log(fk/e)
	}
	if c > 0 {
		g += c * math.Log(c/(fn-e))
	}
	if !(g > 0) {
		return 1
	}
	return ChiSquaredUpperTail(1, WilliamsCorrection(2*g, fn, 2))
}

// GTest is the multinomial likelihood-ratio goodness-of-fit test of observed
// counts against the category probabilities in priors. Categories with no
// observations contribute nothing. Sums run in ascending category order.
func GTest(priors []float64, observed []int64) float64 {
	k := len(priors)
	if k < 2 || len(observed) != k {
		return 1
	}

	var total float64
	for _, o := range observed {
		if o > 0 {
			total += float64(o)
		}
	}
	if total <= 0 {
		return 1
	}

	var g float64
	for c := 0; c < k; c++ {
		if observed[c] <= 0 {
			continue
		}
		expected := priors[c] * total
		if !(expected > 0) {
			return 0
		}
		o := float64(observed[c])
		g += o * math.Log(o/expected)
	}
	g *= 2
	if !(g > 0) {
		return 1
	}
	return ChiSquaredUpperTail(k-1, WilliamsCorrection(g, total, k))
}
