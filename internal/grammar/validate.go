package grammar

import (
	"sort"

	"github.com/pkg/errors"
)

// Validate walks every symbol reachable from the start symbol and reports
// the first structural problem, then checks that every reachable symbol has
// a finite cost.
func (g *Grammar) Validate() error {
	if !IsNonterminal(g.start) {
		return errors.Wrapf(ErrInvalidGrammar, "start symbol %q is not written as <name>", g.start)
	}
	if _, ok := g.rules[g.start]; !ok {
		return errors.Wrapf(ErrInvalidGrammar, "start symbol %s is undefined", g.start)
	}
	reachable := g.reachable()
	for _, sym := range reachable {
		alts := g.rules[sym]
		if len(alts) == 0 {
			return errors.Wrapf(ErrInvalidGrammar, "symbol %s has no alternatives", sym)
		}
		for i, alt := range alts {
			if err := validateAlternative(g.rules, alt); err != nil {
				return errors.Wrapf(ErrInvalidGrammar, "symbol %s alternative %d %q: %v", sym, i, alt.Template(), err)
			}
		}
	}
	for _, sym := range reachable {
		if g.costs.SymbolCost(sym) == Infinite {
			return errors.Wrapf(ErrUnresolvable, "symbol %s has no terminating alternative", sym)
		}
	}
	return nil
}

func validateAlternative(rules Rules, alt Alternative) error {
	for _, sym := range alt.Symbols() {
		if _, ok := rules[sym]; !ok {
			return errors.Errorf("undefined symbol %s", sym)
		}
	}
	order := alt.Order()
	if order == nil {
		return nil
	}
	if len(order) != len(alt.Symbols()) {
		return errors.Errorf("order has %d entries for %d nonterminals", len(order), len(alt.Symbols()))
	}
	for _, rank := range order {
		if rank <= 0 {
			return errors.Errorf("order rank %d is not positive", rank)
		}
	}
	return nil
}

// reachable returns the symbols reachable from the start in sorted order.
// Undefined references are skipped here and reported by validateAlternative.
func (g *Grammar) reachable() []string {
	seen := map[string]struct{}{g.start: {}}
	queue := []string{g.start}
	for len(queue) > 0 {
		sym := queue[0]
		queue = queue[1:]
		for _, alt := range g.rules[sym] {
			for _, ref := range alt.Symbols() {
				if _, ok := seen[ref]; ok {
					continue
				}
				if _, ok := g.rules[ref]; !ok {
					continue
				}
				seen[ref] = struct{}{}
				queue = append(queue, ref)
			}
		}
	}
	out := make([]string, 0, len(seen))
	for sym := range seen {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
