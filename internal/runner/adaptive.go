package runner

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/pkg/errors"

	"gramfuzz/internal/engine"
	"gramfuzz/internal/grammar"
	"gramfuzz/internal/util"
)

// adaptive learns which alternative of one symbol yields accepted
// statements. Each iteration forces a single arm through a one-hot weight
// override.
type adaptive struct {
	symbol  string
	bandit  *util.Bandit
	enabled []bool
}

func newAdaptive(g *grammar.Grammar, symbol string, exploration float64) (*adaptive, error) {
	probs := g.Probabilities(symbol)
	if len(probs) == 0 {
		return nil, errors.Errorf("adaptive symbol %s is not defined", symbol)
	}
	enabled := make([]bool, len(probs))
	selectable := false
	for i, p := range probs {
		enabled[i] = p > 0
		selectable = selectable || enabled[i]
	}
	if !selectable {
		return nil, errors.Errorf("adaptive symbol %s has no selectable alternative", symbol)
	}
	return &adaptive{
		symbol:  symbol,
		bandit:  util.NewBandit(len(probs), exploration),
		enabled: enabled,
	}, nil
}

func (a *adaptive) pick(r *rand.Rand) (int, map[string][]float64) {
	arm := a.bandit.Pick(r, a.enabled)
	weights := make([]float64, a.bandit.Arms())
	weights[arm] = 1
	return arm, map[string][]float64{a.symbol: weights}
}

// update rewards arm only when the statement actually expanded the symbol.
func (a *adaptive) update(res engine.Result, arm int, reward float64) bool {
	if arm < 0 || res.Expansions[a.symbol] == 0 {
		return false
	}
	a.bandit.Update(arm, reward)
	return true
}

func (a *adaptive) describe() string {
	snap := a.bandit.Snapshot()
	parts := make([]string, 0, len(snap.Counts))
	for i := range snap.Counts {
		parts = append(parts, fmt.Sprintf("%d:n=%d,mean=%.2f", i, snap.Counts[i], snap.Means[i]))
	}
	return strings.Join(parts, " ")
}
