package stats

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Test is the outcome of a one-sided Welch comparison.
type Test struct {
	T  float64
	DF float64
	P  float64
}

// Dominance tests H0: the candidate is at least as good as the leader. Lower
// P is stronger evidence the leader is better. sign is +1 when higher scores
// are better and -1 when lower scores are. separation is added to the
// leader's advantage before testing, pushing the two distributions apart.
// Both summaries need at least two samples; otherwise P is 1.
func Dominance(leader, candidate Accumulator, sign, separation float64) Test {
	if leader.N() < 2 || candidate.N() < 2 {
		return Test{P: 1}
	}
	diff := sign*(leader.Mean()-candidate.Mean()) + separation

	vl := leader.Variance() / float64(leader.N())
	vc := candidate.Variance() / float64(candidate.N())
	se2 := vl + vc
	if se2 == 0 {
		if diff > 0 {
			return Test{T: math.Inf(1), P: 0}
		}
		return Test{P: 1}
	}

	df := se2 * se2 / (vl*vl/float64(leader.N()-1) + vc*vc/float64(candidate.N()-1))
	t := diff / math.Sqrt(se2)
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return Test{T: t, DF: df, P: dist.Survival(t)}
}

// SpentAlpha is the significance level for the k-th look (k >= 1) at a
// comparison. The levels sum to alpha over all looks.
func SpentAlpha(alpha float64, k int64) float64 {
	if k < 1 {
		k = 1
	}
	return alpha / (float64(k) * float64(k+1))
}
