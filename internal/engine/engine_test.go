package engine

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"gramfuzz/internal/grammar"
)

func literal(text string, record *[]string) grammar.PreHook {
	return func() (string, bool, error) {
		*record = append(*record, text)
		return text, true, nil
	}
}

func mustGrammar(t *testing.T, rules grammar.Rules) *grammar.Grammar {
	t.Helper()
	g, err := grammar.New("<start>", rules)
	if err != nil {
		t.Fatalf("grammar: %v", err)
	}
	return g
}

func TestVisitOrderExpandsRankedChildFirst(t *testing.T) {
	for _, policy := range []Policy{PolicyRandom, PolicyLeftToRight} {
		for seed := int64(0); seed < 20; seed++ {
			var calls []string
			g := mustGrammar(t, grammar.Rules{
				"<start>": {grammar.Alt("<a> <b>", grammar.Order(2, 1))},
				"<a>":     {grammar.Alt("a", grammar.Pre(literal("a", &calls)))},
				"<b>":     {grammar.Alt("b", grammar.Pre(literal("b", &calls)))},
			})
			res, err := New(g, rand.New(rand.NewSource(seed)), Options{Policy: policy}).Generate()
			if err != nil {
				t.Fatalf("generate: %v", err)
			}
			if strings.Join(calls, ",") != "b,a" {
				t.Fatalf("policy %s seed %d: unexpected order %v", policy, seed, calls)
			}
			if res.Text != "a b" {
				t.Fatalf("unexpected text %q", res.Text)
			}
		}
	}
}

func TestTiedRanksResolveLeftToRight(t *testing.T) {
	for _, policy := range []Policy{PolicyRandom, PolicyLeftToRight} {
		for seed := int64(0); seed < 20; seed++ {
			var calls []string
			g := mustGrammar(t, grammar.Rules{
				"<start>": {grammar.Alt("<a> <b> <c>", grammar.Order(2, 1, 1))},
				"<a>":     {grammar.Alt("a", grammar.Pre(literal("a", &calls)))},
				"<b>":     {grammar.Alt("b", grammar.Pre(literal("b", &calls)))},
				"<c>":     {grammar.Alt("c", grammar.Pre(literal("c", &calls)))},
			})
			res, err := New(g, rand.New(rand.NewSource(seed)), Options{Policy: policy}).Generate()
			if err != nil {
				t.Fatalf("generate: %v", err)
			}
			if strings.Join(calls, ",") != "b,c,a" {
				t.Fatalf("policy %s seed %d: unexpected order %v", policy, seed, calls)
			}
			if res.Text != "a b c" {
				t.Fatalf("unexpected text %q", res.Text)
			}
		}
	}
}

func TestOrderAppliesToWholeSubtree(t *testing.T) {
	var calls []string
	g := mustGrammar(t, grammar.Rules{
		"<start>": {grammar.Alt("<use>;<def>", grammar.Order(2, 1))},
		"<use>":   {grammar.Alt("<u1><u2>")},
		"<def>":   {grammar.Alt("<d1><d2>")},
		"<u1>":    {grammar.Alt("u1", grammar.Pre(literal("u1", &calls)))},
		"<u2>":    {grammar.Alt("u2", grammar.Pre(literal("u2", &calls)))},
		"<d1>":    {grammar.Alt("d1", grammar.Pre(literal("d1", &calls)))},
		"<d2>":    {grammar.Alt("d2", grammar.Pre(literal("d2", &calls)))},
	})
	for seed := int64(0); seed < 20; seed++ {
		calls = calls[:0]
		if _, err := New(g, rand.New(rand.NewSource(seed)), Options{}).Generate(); err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(calls) != 4 || !strings.HasPrefix(calls[0], "d") || !strings.HasPrefix(calls[1], "d") {
			t.Fatalf("seed %d: definitions must resolve first, got %v", seed, calls)
		}
	}
}

func TestPreHookLiteralPreventsChildren(t *testing.T) {
	expanded := false
	g := mustGrammar(t, grammar.Rules{
		"<start>": {grammar.Alt("<name>")},
		"<name>": {grammar.Alt("<random>", grammar.Pre(func() (string, bool, error) {
			return "fixed", true, nil
		}))},
		"<random>": {grammar.Alt("r", grammar.Pre(func() (string, bool, error) {
			expanded = true
			return "", false, nil
		}))},
	})
	root, res, err := New(g, rand.New(rand.NewSource(1)), Options{}).GenerateTree()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Text != "fixed" || expanded {
		t.Fatalf("unexpected text %q expanded=%v", res.Text, expanded)
	}
	name := root.Children[0]
	if len(name.Children) != 0 {
		t.Fatalf("override node must not have children")
	}
	if text, ok := name.Override(); !ok || text != "fixed" {
		t.Fatalf("unexpected override %q %v", text, ok)
	}
}

func TestPreHookDeclineExpandsNormally(t *testing.T) {
	g := mustGrammar(t, grammar.Rules{
		"<start>": {grammar.Alt("[<x>]", grammar.Pre(func() (string, bool, error) {
			return "", false, nil
		}))},
		"<x>": {grammar.Alt("x")},
	})
	res, err := New(g, rand.New(rand.NewSource(1)), Options{}).Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Text != "[x]" {
		t.Fatalf("unexpected text %q", res.Text)
	}
}

func TestPostHookSeesRenderedChildren(t *testing.T) {
	var seen []string
	g := mustGrammar(t, grammar.Rules{
		"<start>": {grammar.Alt("<a>-<b>", grammar.Post(func(children []string) (string, bool, error) {
			seen = append([]string(nil), children...)
			return children[1] + "+" + children[0], true, nil
		}))},
		"<a>": {grammar.Alt("A")},
		"<b>": {grammar.Alt("B")},
	})
	res, err := New(g, rand.New(rand.NewSource(1)), Options{}).Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Text != "B+A" {
		t.Fatalf("unexpected text %q", res.Text)
	}
	if strings.Join(seen, ",") != "A,B" {
		t.Fatalf("unexpected children %v", seen)
	}
}

func TestPostHookFiresBeforeLaterSibling(t *testing.T) {
	var calls []string
	stmt := func(name string) grammar.Alternative {
		return grammar.Alt("<body>",
			grammar.Pre(func() (string, bool, error) {
				calls = append(calls, "push "+name)
				return "", false, nil
			}),
			grammar.Post(func([]string) (string, bool, error) {
				calls = append(calls, "pop "+name)
				return "", false, nil
			}))
	}
	g := mustGrammar(t, grammar.Rules{
		"<start>":  {grammar.Alt("<first>;<second>", grammar.Order(1, 2))},
		"<first>":  {stmt("first")},
		"<second>": {stmt("second")},
		"<body>":   {grammar.Alt("x")},
	})
	if _, err := New(g, rand.New(rand.NewSource(3)), Options{}).Generate(); err != nil {
		t.Fatalf("generate: %v", err)
	}
	want := "push first,pop first,push second,pop second"
	if got := strings.Join(calls, ","); got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestSingleExpandableChildIgnoresPolicy(t *testing.T) {
	g := mustGrammar(t, grammar.Rules{
		"<start>": {grammar.Alt("x<a>y")},
		"<a>":     {grammar.Alt("<b>")},
		"<b>":     {grammar.Alt("b")},
	})
	for _, policy := range []Policy{PolicyRandom, PolicyLeftToRight} {
		res, err := New(g, rand.New(rand.NewSource(9)), Options{Policy: policy}).Generate()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if res.Text != "xby" || res.Steps != 3 || res.Nodes != 3 {
			t.Fatalf("policy %s: unexpected result %+v", policy, res)
		}
	}
}

func TestRecursiveGrammarTerminates(t *testing.T) {
	g, err := grammar.New("<S>", grammar.Rules{
		"<S>": {grammar.Alt("a", grammar.Weight(0.01)), grammar.Alt("(<S><S>)")},
	})
	if err != nil {
		t.Fatalf("grammar: %v", err)
	}
	opts := Options{MaxNonterminals: 8, MaxSteps: 1000}
	for seed := int64(0); seed < 50; seed++ {
		res, err := New(g, rand.New(rand.NewSource(seed)), opts).Generate()
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		if strings.Contains(res.Text, "<S>") {
			t.Fatalf("seed %d: unresolved output %q", seed, res.Text)
		}
		if res.Steps >= opts.MaxSteps {
			t.Fatalf("seed %d: used the whole budget", seed)
		}
	}
}

func TestGrowModePrefersExpensiveAlternatives(t *testing.T) {
	g, err := grammar.New("<list>", grammar.Rules{
		"<list>": {grammar.Alt("x", grammar.Weight(1)), grammar.Alt("x,<list>")},
	})
	if err != nil {
		t.Fatalf("grammar: %v", err)
	}
	res, err := New(g, rand.New(rand.NewSource(5)), Options{MinNonterminals: 2, MaxNonterminals: 10}).Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Text == "x" {
		t.Fatalf("grow mode should expand the recursive alternative first")
	}
}

type retryErr struct{}

func (retryErr) Error() string   { return "no tables" }
func (retryErr) Retryable() bool { return true }

func TestHookErrorAbortsAttempt(t *testing.T) {
	g := mustGrammar(t, grammar.Rules{
		"<start>": {grammar.Alt("SELECT * FROM <table>")},
		"<table>": {grammar.Alt("t", grammar.Pre(func() (string, bool, error) {
			return "", false, retryErr{}
		}))},
	})
	_, err := New(g, rand.New(rand.NewSource(1)), Options{}).Generate()
	if err == nil {
		t.Fatalf("expected hook error")
	}
	if !IsRetryable(err) {
		t.Fatalf("wrapped hook error should stay retryable: %v", err)
	}
	if !strings.Contains(err.Error(), "<table>") {
		t.Fatalf("error should name the symbol: %v", err)
	}
}

func TestStepBudget(t *testing.T) {
	g := mustGrammar(t, grammar.Rules{
		"<start>": {grammar.Alt("<a><a><a><a>")},
		"<a>":     {grammar.Alt("a")},
	})
	_, err := New(g, rand.New(rand.NewSource(1)), Options{MaxSteps: 3}).Generate()
	if !errors.Is(err, ErrStepBudget) || !IsRetryable(err) {
		t.Fatalf("expected retryable step budget error, got %v", err)
	}
}

func TestParsePolicy(t *testing.T) {
	if p, err := ParsePolicy("left_to_right"); err != nil || p != PolicyLeftToRight {
		t.Fatalf("unexpected policy %v %v", p, err)
	}
	if _, err := ParsePolicy("sideways"); err == nil {
		t.Fatalf("expected error")
	}
}
