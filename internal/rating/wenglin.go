package rating

import (
	"math"

	"github.com/cgarena/cgarena/internal/arena"
)

// WengLin implements the Weng-Lin Bayesian approximation with the full
// Bradley-Terry pairing: every participant is compared against every other,
// and the accumulated surprise moves mu while shrinking sigma.
//
// Participants with equal rank are treated as a draw for their pairing.
// Fault flags are informational and do not change the update.
type WengLin struct {
	beta  float64
	kappa float64
}

// NewWengLin creates the engine with the conventional defaults
// (beta = sigma0/2 = 25/6, kappa = 0.0001).
func NewWengLin() *WengLin {
	return &WengLin{
		beta:  arena.DefaultMu / 6.0,
		kappa: 0.0001,
	}
}

var _ Engine = (*WengLin)(nil)

func (w *WengLin) Rate(prior []arena.Rating, result arena.MatchResult) []arena.Rating {
	updated := make([]arena.Rating, len(prior))
	twoBetaSq := 2 * w.beta * w.beta

	for i, ri := range prior {
		sigmaSq := ri.Sigma * ri.Sigma
		var omega, delta float64

		for j, rj := range prior {
			if j == i {
				continue
			}
			c := math.Sqrt(sigmaSq + rj.Sigma*rj.Sigma + twoBetaSq)
			ei := math.Exp(ri.Mu / c)
			ej := math.Exp(rj.Mu / c)
			p := ei / (ei + ej)

			s := pairScore(result.Ranks[i], result.Ranks[j])
			gamma := ri.Sigma / c

			omega += sigmaSq / c * (s - p)
			delta += gamma * (sigmaSq / (c * c)) * p * (1 - p)
		}

		updated[i] = arena.Rating{
			Mu:    ri.Mu + omega,
			Sigma: ri.Sigma * math.Sqrt(math.Max(1-delta, w.kappa)),
		}
	}
	return updated
}

// pairScore is the observed outcome of i against j: lower rank is better.
func pairScore(rankI, rankJ int) float64 {
	switch {
	case rankI < rankJ:
		return 1.0
	case rankI == rankJ:
		return 0.5
	}
	return 0.0
}
