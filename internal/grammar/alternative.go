package grammar

// PreHook runs the first time an alternative is chosen, before any child is
// built. When ok is true the returned text replaces the whole alternative.
type PreHook func() (text string, ok bool, err error)

// PostHook runs once every child of an alternative is resolved. It receives
// the rendered children in template order. When ok is true the returned text
// replaces the rendered subtree.
type PostHook func(children []string) (text string, ok bool, err error)

// Alternative is one expansion template of a symbol plus its metadata.
type Alternative struct {
	template  string
	parts     []Part
	symbols   []string
	weight    float64
	hasWeight bool
	order     []int
	pre       PreHook
	post      PostHook
}

// Option configures an alternative.
type Option func(*Alternative)

// Weight assigns an explicit selection weight.
func Weight(p float64) Option {
	return func(a *Alternative) {
		a.weight = p
		a.hasWeight = true
	}
}

// Order sets the visit rank of each nonterminal reference, in template order.
// The reference with the smallest rank is fully expanded first.
func Order(ranks ...int) Option {
	return func(a *Alternative) {
		a.order = append([]int(nil), ranks...)
	}
}

// Pre attaches a pre-expansion hook.
func Pre(h PreHook) Option {
	return func(a *Alternative) {
		a.pre = h
	}
}

// Post attaches a post-expansion hook.
func Post(h PostHook) Option {
	return func(a *Alternative) {
		a.post = h
	}
}

// Alt builds an alternative from a template such as "SELECT <column> FROM <table>".
func Alt(template string, opts ...Option) Alternative {
	a := Alternative{template: template}
	for _, opt := range opts {
		opt(&a)
	}
	a.parts = ParseTemplate(template)
	for _, p := range a.parts {
		if p.IsSymbol() {
			a.symbols = append(a.symbols, p.Symbol)
		}
	}
	return a
}

// Template returns the raw template text.
func (a Alternative) Template() string { return a.template }

// Parts returns the parsed template.
func (a Alternative) Parts() []Part { return a.parts }

// Symbols returns the nonterminal references in template order, duplicates included.
func (a Alternative) Symbols() []string { return a.symbols }

// Order returns the visit ranks or nil when no order was declared.
func (a Alternative) Order() []int { return a.order }

// Weight returns the explicit weight and whether one was set.
func (a Alternative) Weight() (float64, bool) { return a.weight, a.hasWeight }

// PreHook returns the pre-expansion hook, if any.
func (a Alternative) PreHook() PreHook { return a.pre }

// PostHook returns the post-expansion hook, if any.
func (a Alternative) PostHook() PostHook { return a.post }

// IsTerminal reports whether the alternative references no nonterminals.
func (a Alternative) IsTerminal() bool { return len(a.symbols) == 0 }

func (a Alternative) distinctSymbols() []string {
	if len(a.symbols) < 2 {
		return a.symbols
	}
	seen := make(map[string]struct{}, len(a.symbols))
	out := make([]string, 0, len(a.symbols))
	for _, sym := range a.symbols {
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out
}
