package learning

import "math"

// wilsonZ is the z-score for a 95% interval.
const wilsonZ = 1.96

// WilsonLowerBound returns the conservative lower end of the binomial
// proportion confidence interval for positive/total. Small samples are
// penalized toward zero.
func WilsonLowerBound(positive, total int) float64 {
	if total <= 0 {
		return 0
	}
	n := float64(total)
	p := float64(positive) / n
	z := wilsonZ
	z2 := z * z
	denom := 1 + z2/n
	center := p + z2/(2*n)
	margin := z * math.Sqrt((p*(1-p)+z2/(4*n))/n)
	lower := (center - margin) / denom
	if lower < 0 {
		return 0
	}
	return lower
}
