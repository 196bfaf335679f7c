// Package grammar models a probabilistic context-free grammar with per-alternative
// weights, visit orders and expansion hooks, plus the cost oracle used to force
// derivations to terminate.
package grammar

import (
	"sort"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidGrammar reports a structural problem found during validation.
	ErrInvalidGrammar = errors.New("invalid grammar")
	// ErrUnresolvable reports a reachable symbol with no terminating derivation.
	ErrUnresolvable = errors.New("unresolvable symbol")
)

// Rules maps a symbol such as "<expr>" to its ordered alternatives.
type Rules map[string][]Alternative

// Grammar is a validated, read-only view over Rules.
type Grammar struct {
	start  string
	rules  Rules
	policy WeightPolicy
	probs  map[string][]float64
	costs  *CostOracle
}

// GrammarOption configures New.
type GrammarOption func(*Grammar)

// WithPolicy selects the weight policy. The default is WeightRemainder.
func WithPolicy(p WeightPolicy) GrammarOption {
	return func(g *Grammar) {
		g.policy = p
	}
}

// New builds and validates a grammar rooted at start.
func New(start string, rules Rules, opts ...GrammarOption) (*Grammar, error) {
	copied := make(Rules, len(rules))
	for sym, alts := range rules {
		copied[sym] = append([]Alternative(nil), alts...)
	}
	g := &Grammar{
		start: start,
		rules: copied,
		probs: make(map[string][]float64, len(copied)),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.costs = NewCostOracle(copied)
	if err := g.computeProbabilities(nil); err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// Start returns the start symbol.
func (g *Grammar) Start() string { return g.start }

// Alternatives returns the alternatives of symbol.
func (g *Grammar) Alternatives(symbol string) []Alternative { return g.rules[symbol] }

// Costs returns the cost oracle shared by every view of this grammar.
func (g *Grammar) Costs() *CostOracle { return g.costs }

// Symbols returns every defined symbol in sorted order.
func (g *Grammar) Symbols() []string {
	out := make([]string, 0, len(g.rules))
	for sym := range g.rules {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Probabilities returns the effective selection distribution of symbol's
// alternatives.
func (g *Grammar) Probabilities(symbol string) []float64 {
	return g.probs[symbol]
}

// WithWeights returns a view with the same structure and cost oracle but
// the given weights. Each override lists one explicit weight per alternative.
func (g *Grammar) WithWeights(overrides map[string][]float64) (*Grammar, error) {
	view := g.clone()
	if err := view.computeProbabilities(overrides); err != nil {
		return nil, err
	}
	return view, nil
}

// WithStart returns a view rooted at another symbol, sharing the cost oracle.
func (g *Grammar) WithStart(symbol string) (*Grammar, error) {
	view := g.clone()
	view.start = symbol
	if err := view.Validate(); err != nil {
		return nil, err
	}
	return view, nil
}

func (g *Grammar) clone() *Grammar {
	probs := make(map[string][]float64, len(g.probs))
	for sym, p := range g.probs {
		probs[sym] = p
	}
	return &Grammar{
		start:  g.start,
		rules:  g.rules,
		policy: g.policy,
		probs:  probs,
		costs:  g.costs,
	}
}

func (g *Grammar) computeProbabilities(overrides map[string][]float64) error {
	if overrides == nil {
		for sym, alts := range g.rules {
			weights := make([]float64, len(alts))
			set := make([]bool, len(alts))
			for i, alt := range alts {
				weights[i], set[i] = alt.Weight()
			}
			probs, err := g.policy.distribute(weights, set)
			if err != nil {
				return errors.Wrapf(ErrInvalidGrammar, "symbol %s: %v", sym, err)
			}
			g.probs[sym] = probs
		}
		return nil
	}
	for sym, weights := range overrides {
		alts, ok := g.rules[sym]
		if !ok {
			return errors.Wrapf(ErrInvalidGrammar, "weight override for undefined symbol %s", sym)
		}
		if len(weights) != len(alts) {
			return errors.Wrapf(ErrInvalidGrammar, "weight override for %s has %d entries, want %d", sym, len(weights), len(alts))
		}
		set := make([]bool, len(weights))
		for i := range set {
			set[i] = true
		}
		probs, err := g.policy.distribute(weights, set)
		if err != nil {
			return errors.Wrapf(ErrInvalidGrammar, "weight override for %s: %v", sym, err)
		}
		g.probs[sym] = probs
	}
	return nil
}
