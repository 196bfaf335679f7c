package grammar

import (
	"math"
	"strconv"
)

// Cost is the minimum number of expansion steps needed to fully resolve a
// symbol or alternative.
type Cost int

// Infinite marks a symbol or alternative that cannot be resolved from the
// current exploration context.
const Infinite Cost = math.MaxInt

// noTaint means a computation never hit the cycle guard of an enclosing symbol.
const noTaint = math.MaxInt

// Add returns c+o, saturating at Infinite.
func (c Cost) Add(o Cost) Cost {
	if c == Infinite || o == Infinite || c > Infinite-o {
		return Infinite
	}
	return c + o
}

// IsInfinite reports whether c is the Infinite sentinel.
func (c Cost) IsInfinite() bool { return c == Infinite }

func (c Cost) String() string {
	if c == Infinite {
		return "inf"
	}
	return strconv.Itoa(int(c))
}

type altKey struct {
	symbol string
	index  int
}

// CostOracle lazily computes and memoises symbol and alternative costs.
//
// A symbol on the current recursion path counts as Infinite. A value is only
// memoised when no symbol below the one being computed ran into the guard of
// a symbol above it, so a cost that is infinite only relative to one call
// path is never cached.
//
// The oracle depends on grammar structure only and may be shared by every
// view of the same rules. It is not safe for concurrent use.
type CostOracle struct {
	rules   Rules
	symbols map[string]Cost
	alts    map[altKey]Cost
}

// NewCostOracle creates an oracle over rules.
func NewCostOracle(rules Rules) *CostOracle {
	return &CostOracle{
		rules:   rules,
		symbols: make(map[string]Cost),
		alts:    make(map[altKey]Cost),
	}
}

// SymbolCost returns the minimum cost of resolving symbol. Undefined symbols
// are Infinite.
func (o *CostOracle) SymbolCost(symbol string) Cost {
	c, _ := o.symbolCost(symbol, make(map[string]int))
	return c
}

// AlternativeCost returns the cost of the index-th alternative of symbol,
// evaluated with nothing in progress.
func (o *CostOracle) AlternativeCost(symbol string, index int) Cost {
	key := altKey{symbol: symbol, index: index}
	if c, ok := o.alts[key]; ok {
		return c
	}
	alts := o.rules[symbol]
	if index < 0 || index >= len(alts) {
		return Infinite
	}
	c, _ := o.alternativeCost(alts[index], make(map[string]int))
	o.alts[key] = c
	return c
}

// MinCostAlternatives returns the indexes of finite alternatives whose cost
// is minimal.
func (o *CostOracle) MinCostAlternatives(symbol string) []int {
	best := Infinite
	var out []int
	for i := range o.rules[symbol] {
		c := o.AlternativeCost(symbol, i)
		if c == Infinite {
			continue
		}
		switch {
		case c < best:
			best = c
			out = append(out[:0], i)
		case c == best:
			out = append(out, i)
		}
	}
	return out
}

// MaxCostAlternatives returns the indexes of the most expensive
// alternatives. Infinite alternatives count as the most expensive.
func (o *CostOracle) MaxCostAlternatives(symbol string) []int {
	worst := Cost(-1)
	var out []int
	for i := range o.rules[symbol] {
		c := o.AlternativeCost(symbol, i)
		switch {
		case c > worst:
			worst = c
			out = append(out[:0], i)
		case c == worst:
			out = append(out, i)
		}
	}
	return out
}

// Memoized returns the number of symbols whose cost is cached.
func (o *CostOracle) Memoized() int {
	return len(o.symbols)
}

// symbolCost returns the cost and the shallowest in-progress depth whose
// guard was hit while computing it, or noTaint.
func (o *CostOracle) symbolCost(symbol string, inProgress map[string]int) (Cost, int) {
	if c, ok := o.symbols[symbol]; ok {
		return c, noTaint
	}
	if depth, ok := inProgress[symbol]; ok {
		return Infinite, depth
	}
	alts, ok := o.rules[symbol]
	if !ok {
		return Infinite, noTaint
	}
	depth := len(inProgress)
	inProgress[symbol] = depth
	best := Infinite
	taint := noTaint
	for _, alt := range alts {
		c, t := o.alternativeCost(alt, inProgress)
		if c < best {
			best = c
		}
		if t < taint {
			taint = t
		}
	}
	delete(inProgress, symbol)
	if taint >= depth {
		o.symbols[symbol] = best
		return best, noTaint
	}
	return best, taint
}

func (o *CostOracle) alternativeCost(alt Alternative, inProgress map[string]int) (Cost, int) {
	if alt.IsTerminal() {
		return 1, noTaint
	}
	refs := alt.distinctSymbols()
	taint := noTaint
	for _, sym := range refs {
		if depth, ok := inProgress[sym]; ok && depth < taint {
			taint = depth
		}
	}
	if taint != noTaint {
		return Infinite, taint
	}
	total := Cost(1)
	for _, sym := range refs {
		c, t := o.symbolCost(sym, inProgress)
		if t < taint {
			taint = t
		}
		total = total.Add(c)
	}
	return total, taint
}
