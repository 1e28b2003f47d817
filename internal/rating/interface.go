package rating

import (
	"fmt"

	"github.com/cgarena/cgarena/internal/arena"
	"github.com/cgarena/cgarena/internal/config"
)

// Engine turns a match outcome into updated skill ratings. Implementations
// must be pure and deterministic: one updated rating per participant,
// index-aligned with the priors and the result's ranks.
type Engine interface {
	Rate(prior []arena.Rating, result arena.MatchResult) []arena.Rating
}

// New selects the configured rating algorithm. The algorithm set is closed;
// adding one means adding a case here.
func New(cfg config.Ranking) (Engine, error) {
	switch cfg.Algorithm {
	case config.AlgorithmWengLin:
		return NewWengLin(), nil
	}
	return nil, fmt.Errorf("unknown ranking algorithm %q", cfg.Algorithm)
}
