// Package engine expands derivation trees over a grammar, one open node at a
// time, until every node is resolved.
package engine

import (
	"math/rand"
	"strings"

	"github.com/pkg/errors"

	"gramfuzz/internal/grammar"
	"gramfuzz/internal/util"
)

// Policy picks which eligible open node is expanded next.
type Policy int

const (
	// PolicyRandom picks uniformly among eligible nodes.
	PolicyRandom Policy = iota
	// PolicyLeftToRight picks the first eligible node in document order.
	PolicyLeftToRight
)

// String returns the config name of the policy.
func (p Policy) String() string {
	if p == PolicyLeftToRight {
		return "left_to_right"
	}
	return "random"
}

// ParsePolicy parses a config value. Empty means PolicyRandom.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "random":
		return PolicyRandom, nil
	case "left_to_right", "ltr":
		return PolicyLeftToRight, nil
	default:
		return PolicyRandom, errors.Errorf("unknown order policy %q", s)
	}
}

// Options bounds tree growth.
type Options struct {
	// MaxNonterminals is the number of open nodes at which the engine
	// switches to minimal-cost alternatives.
	MaxNonterminals int
	// MinNonterminals keeps choosing maximal-cost alternatives while fewer
	// open nodes exist. Zero disables growing.
	MinNonterminals int
	// ConvergeAfterSteps forces convergence after this many expansions.
	ConvergeAfterSteps int
	// MaxSteps aborts the attempt with ErrStepBudget.
	MaxSteps int
	Policy   Policy
}

// DefaultOptions returns the default expansion bounds.
func DefaultOptions() Options {
	return Options{
		MaxNonterminals:    10,
		ConvergeAfterSteps: 200,
		MaxSteps:           5000,
		Policy:             PolicyRandom,
	}
}

func (o Options) normalize() Options {
	def := DefaultOptions()
	if o.MaxNonterminals <= 0 {
		o.MaxNonterminals = def.MaxNonterminals
	}
	if o.MinNonterminals < 0 {
		o.MinNonterminals = 0
	}
	if o.ConvergeAfterSteps <= 0 {
		o.ConvergeAfterSteps = def.ConvergeAfterSteps
	}
	if o.MaxSteps <= 0 {
		o.MaxSteps = def.MaxSteps
	}
	return o
}

// Result summarizes one generation.
type Result struct {
	Text       string
	Steps      int
	Nodes      int
	Expansions map[string]int
}

type budgetError struct{}

func (budgetError) Error() string   { return "expansion step budget exhausted" }
func (budgetError) Retryable() bool { return true }

// ErrStepBudget reports that an attempt ran past Options.MaxSteps. It is
// retryable.
var ErrStepBudget error = budgetError{}

// IsRetryable reports whether err, or any error it wraps, asks for a fresh
// attempt.
func IsRetryable(err error) bool {
	var r interface{ Retryable() bool }
	return errors.As(err, &r) && r.Retryable()
}

type mode int

const (
	modeWeighted mode = iota
	modeConverge
	modeGrow
)

type candidate struct {
	node *Node
	path []*Node
}

// Engine builds derivation trees for a grammar. It is not safe for
// concurrent use.
type Engine struct {
	g    *grammar.Grammar
	r    *rand.Rand
	opts Options
}

// New creates an engine. Zero option fields take their defaults.
func New(g *grammar.Grammar, r *rand.Rand, opts Options) *Engine {
	return &Engine{g: g, r: r, opts: opts.normalize()}
}

// Grammar returns the grammar view the engine expands.
func (e *Engine) Grammar() *grammar.Grammar { return e.g }

// Generate builds one tree and renders it.
func (e *Engine) Generate() (Result, error) {
	_, res, err := e.GenerateTree()
	return res, err
}

// GenerateTree builds one tree to completion and returns it with its
// rendering. Hook errors abort the attempt.
func (e *Engine) GenerateTree() (*Node, Result, error) {
	root := newOpenNode(e.g.Start())
	res := Result{Expansions: make(map[string]int)}
	converging := false
	for {
		var eligible []candidate
		open := e.collect(root, nil, true, &eligible)
		if len(eligible) == 0 {
			if open > 0 {
				return root, res, errors.Errorf("%d open nodes but none eligible", open)
			}
			break
		}
		if res.Steps >= e.opts.MaxSteps {
			return root, res, errors.Wrapf(ErrStepBudget, "after %d steps with %d open nodes", res.Steps, open)
		}
		if !converging && (open >= e.opts.MaxNonterminals || res.Steps >= e.opts.ConvergeAfterSteps) {
			converging = true
		}
		m := modeWeighted
		switch {
		case converging:
			m = modeConverge
		case open < e.opts.MinNonterminals:
			m = modeGrow
		}
		c := e.pick(eligible)
		if err := e.expand(c, m, &res); err != nil {
			return root, res, err
		}
		res.Steps++
	}
	res.Text = Render(root, e.g)
	res.Nodes = root.Size()
	return root, res, nil
}

// collect counts open nodes under n and appends those eligible for the next
// step. Below an ordered node only the unresolved child with the smallest
// rank stays eligible.
func (e *Engine) collect(n *Node, path []*Node, eligible bool, out *[]candidate) int {
	if n.resolved {
		return 0
	}
	if n.Open() {
		if eligible {
			*out = append(*out, candidate{node: n, path: append([]*Node(nil), path...)})
		}
		return 1
	}
	path = append(path, n)
	first := -1
	if n.order != nil {
		first = n.nextOrdered()
	}
	open := 0
	for i, c := range n.Children {
		open += e.collect(c, path, eligible && (first < 0 || i == first), out)
	}
	return open
}

func (e *Engine) pick(eligible []candidate) candidate {
	if len(eligible) == 1 || e.opts.Policy == PolicyLeftToRight {
		return eligible[0]
	}
	return eligible[util.PickOne(e.r, len(eligible))]
}

func (e *Engine) chooseAlternative(symbol string, m mode) (int, error) {
	costs := e.g.Costs()
	switch m {
	case modeConverge:
		idx := costs.MinCostAlternatives(symbol)
		if len(idx) == 0 {
			return -1, errors.Wrapf(grammar.ErrUnresolvable, "symbol %s", symbol)
		}
		return idx[util.PickOne(e.r, len(idx))], nil
	case modeGrow:
		idx := costs.MaxCostAlternatives(symbol)
		if len(idx) > 0 {
			return idx[util.PickOne(e.r, len(idx))], nil
		}
	}
	probs := e.g.Probabilities(symbol)
	if len(probs) == 0 {
		return -1, errors.Wrapf(grammar.ErrInvalidGrammar, "symbol %s has no alternatives", symbol)
	}
	return util.PickProbability(e.r, probs), nil
}

func (e *Engine) expand(c candidate, m mode, res *Result) error {
	n := c.node
	idx, err := e.chooseAlternative(n.Symbol, m)
	if err != nil {
		return err
	}
	alt := e.g.Alternatives(n.Symbol)[idx]
	n.Alt = idx
	n.order = alt.Order()
	res.Expansions[n.Symbol]++
	if pre := alt.PreHook(); pre != nil {
		text, ok, err := pre()
		if err != nil {
			return errors.Wrapf(err, "pre-hook %s -> %q", n.Symbol, alt.Template())
		}
		if ok {
			n.override = text
			n.hasOverride = true
			n.resolved = true
			return e.propagate(c.path)
		}
	}
	for _, sym := range alt.Symbols() {
		n.Children = append(n.Children, newOpenNode(sym))
	}
	if len(n.Children) > 0 {
		return nil
	}
	if err := e.finish(n); err != nil {
		return err
	}
	return e.propagate(c.path)
}

// propagate resolves ancestors, nearest first, whose children are all
// resolved.
func (e *Engine) propagate(path []*Node) error {
	for i := len(path) - 1; i >= 0; i-- {
		p := path[i]
		if !p.childrenResolved() {
			return nil
		}
		if err := e.finish(p); err != nil {
			return err
		}
	}
	return nil
}

// finish runs the post-hook of an expanded node and marks it resolved.
func (e *Engine) finish(n *Node) error {
	alt := e.g.Alternatives(n.Symbol)[n.Alt]
	if post := alt.PostHook(); post != nil {
		children := make([]string, len(n.Children))
		for i, c := range n.Children {
			children[i] = Render(c, e.g)
		}
		text, ok, err := post(children)
		if err != nil {
			return errors.Wrapf(err, "post-hook %s -> %q", n.Symbol, alt.Template())
		}
		if ok {
			n.override = text
			n.hasOverride = true
		}
	}
	n.resolved = true
	return nil
}
