package grammar

import "regexp"

var symbolPattern = regexp.MustCompile(`<[^<> ]+>`)

// Part is one fragment of an alternative template: either literal text or a
// reference to a nonterminal symbol.
type Part struct {
	Literal string
	Symbol  string
}

// IsSymbol reports whether the part references a nonterminal.
func (p Part) IsSymbol() bool {
	return p.Symbol != ""
}

// ParseTemplate splits a template into literal and symbol parts, preserving
// their order. Empty literal fragments are dropped.
func ParseTemplate(tmpl string) []Part {
	locs := symbolPattern.FindAllStringIndex(tmpl, -1)
	parts := make([]Part, 0, 2*len(locs)+1)
	last := 0
	for _, loc := range locs {
		if loc[0] > last {
			parts = append(parts, Part{Literal: tmpl[last:loc[0]]})
		}
		parts = append(parts, Part{Symbol: tmpl[loc[0]:loc[1]]})
		last = loc[1]
	}
	if last < len(tmpl) {
		parts = append(parts, Part{Literal: tmpl[last:]})
	}
	return parts
}

// IsNonterminal reports whether s is written as a symbol reference.
func IsNonterminal(s string) bool {
	loc := symbolPattern.FindStringIndex(s)
	return loc != nil && loc[0] == 0 && loc[1] == len(s)
}
