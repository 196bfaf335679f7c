// Package session drives repeated statement generation over one evolving
// schema, switching grammar phases by generation count.
package session

import (
	"math/rand"

	"github.com/pkg/errors"

	"gramfuzz/internal/engine"
	"gramfuzz/internal/grammar"
	"gramfuzz/internal/schema"
	"gramfuzz/internal/util"
)

var (
	// ErrExhausted reports that every attempt of one generation hit a
	// retryable failure.
	ErrExhausted = errors.New("generation attempts exhausted")
	// ErrUnbalancedHooks reports hooks that left processors on the stack.
	ErrUnbalancedHooks = errors.New("processor stack not balanced after generation")
)

const defaultMaxAttempts = 20

// Phase is one grammar configuration. A phase is active while the number of
// generated statements is below Until; zero means open ended.
type Phase struct {
	Name    string
	Until   int
	Start   string
	Weights map[string][]float64
}

// Options configures a session.
type Options struct {
	Engine      engine.Options
	MaxAttempts int
	Phases      []Phase
}

// Stats counts attempts and their outcomes.
type Stats struct {
	Generated int            `json:"generated"`
	Discarded int            `json:"discarded"`
	Attempts  int            `json:"attempts"`
	Retries   int            `json:"retries"`
	Failures  int            `json:"failures"`
	Reasons   map[string]int `json:"reasons"`
}

type phaseView struct {
	Phase
	g *grammar.Grammar
}

// Session owns the store for a sequence of generations. It is not safe for
// concurrent use.
type Session struct {
	store  *schema.Store
	r      *rand.Rand
	opts   Options
	phases []phaseView
	count  int
	stats  Stats
}

// New builds one grammar view per phase. All views share the cost oracle of
// base.
func New(base *grammar.Grammar, store *schema.Store, r *rand.Rand, opts Options) (*Session, error) {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	phases := opts.Phases
	if len(phases) == 0 {
		phases = []Phase{{Name: "default"}}
	}
	s := &Session{
		store: store,
		r:     r,
		opts:  opts,
		stats: Stats{Reasons: make(map[string]int)},
	}
	prev := 0
	for i, ph := range phases {
		if ph.Until != 0 && ph.Until <= prev {
			return nil, errors.Errorf("phase %q ends at %d, not after %d", ph.Name, ph.Until, prev)
		}
		if ph.Until == 0 && i != len(phases)-1 {
			return nil, errors.Errorf("open ended phase %q must be last", ph.Name)
		}
		prev = ph.Until
		view := base
		var err error
		if ph.Start != "" && ph.Start != base.Start() {
			if view, err = view.WithStart(ph.Start); err != nil {
				return nil, errors.Wrapf(err, "phase %q", ph.Name)
			}
		}
		if len(ph.Weights) > 0 {
			if view, err = view.WithWeights(ph.Weights); err != nil {
				return nil, errors.Wrapf(err, "phase %q", ph.Name)
			}
		}
		s.phases = append(s.phases, phaseView{Phase: ph, g: view})
	}
	return s, nil
}

// Generate returns the next statement.
func (s *Session) Generate() (string, error) {
	res, err := s.GenerateWith(nil)
	return res.Text, err
}

// GenerateWith generates the next statement with one-off weight overrides
// applied on top of the active phase.
func (s *Session) GenerateWith(overrides map[string][]float64) (engine.Result, error) {
	view := s.active().g
	if len(overrides) > 0 {
		var err error
		if view, err = view.WithWeights(overrides); err != nil {
			return engine.Result{}, err
		}
	}
	var lastErr error
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		snap := s.store.Snapshot()
		depth := s.store.Depth()
		s.stats.Attempts++
		res, err := engine.New(view, s.r, s.opts.Engine).Generate()
		if err == nil && s.store.Depth() != depth {
			got := s.store.Depth()
			s.store.Restore(snap)
			s.stats.Failures++
			return res, errors.Wrapf(ErrUnbalancedHooks, "depth %d, want %d", got, depth)
		}
		if err == nil {
			s.count++
			s.stats.Generated++
			return res, nil
		}
		s.store.Restore(snap)
		if !engine.IsRetryable(err) {
			s.stats.Failures++
			return res, err
		}
		s.stats.Retries++
		s.stats.Reasons[reason(err)]++
		util.Detailf("phase %s attempt %d: %v", s.active().Name, attempt, err)
		lastErr = err
	}
	s.stats.Failures++
	return engine.Result{}, errors.Wrapf(ErrExhausted, "%d attempts, last: %v", s.opts.MaxAttempts, lastErr)
}

func (s *Session) active() phaseView {
	for _, ph := range s.phases {
		if ph.Until == 0 || s.count < ph.Until {
			return ph
		}
	}
	return s.phases[len(s.phases)-1]
}

// Phase returns the name of the active phase.
func (s *Session) Phase() string { return s.active().Name }

// Grammar returns the grammar view of the active phase.
func (s *Session) Grammar() *grammar.Grammar { return s.active().g }

// Store returns the session's semantic context.
func (s *Session) Store() *schema.Store { return s.store }

// Count returns the number of statements generated and not discarded.
// Phase boundaries are measured against it.
func (s *Session) Count() int { return s.count }

// Discard takes back the last generated statement once the caller has
// rolled its effects out of the store, so it does not use up a phase slot.
func (s *Session) Discard() {
	if s.count == 0 {
		return
	}
	s.count--
	s.stats.Discarded++
}

// Stats returns a copy of the attempt counters.
func (s *Session) Stats() Stats {
	out := s.stats
	out.Reasons = make(map[string]int, len(s.stats.Reasons))
	for k, v := range s.stats.Reasons {
		out.Reasons[k] = v
	}
	return out
}

func reason(err error) string {
	var pre *schema.PreconditionError
	switch {
	case errors.As(err, &pre):
		return pre.Op
	case errors.Is(err, engine.ErrStepBudget):
		return "step budget"
	default:
		return "other"
	}
}
