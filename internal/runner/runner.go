// Package runner drives a generation session against a database and
// records the resulting corpus.
package runner

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"

	"gramfuzz/internal/config"
	"gramfuzz/internal/db"
	"gramfuzz/internal/engine"
	"gramfuzz/internal/grammar"
	"gramfuzz/internal/report"
	"gramfuzz/internal/schema"
	"gramfuzz/internal/session"
	"gramfuzz/internal/sqlgrammar"
	"gramfuzz/internal/uploader"
	"gramfuzz/internal/util"
)

// Runner generates cfg.Iterations statements and executes each one.
type Runner struct {
	cfg      config.Config
	exec     *db.DB
	rand     *rand.Rand
	store    *schema.Store
	sess     *session.Session
	reporter *report.Reporter
	uploader uploader.Uploader
	adaptive *adaptive

	// Output receives every generated statement when set.
	Output io.Writer

	statements []report.Statement
	statsMu    sync.Mutex
	stats      runStats
}

// New builds the grammar and session described by cfg. exec may be nil, in
// which case statements are only generated.
func New(cfg config.Config, exec *db.DB, up uploader.Uploader) (*Runner, error) {
	nameStyle, err := schema.ParseNameStyle(cfg.Generation.NameStyle)
	if err != nil {
		return nil, err
	}
	weightPolicy, err := grammar.ParseWeightPolicy(cfg.Generation.WeightPolicy)
	if err != nil {
		return nil, err
	}
	orderPolicy, err := engine.ParsePolicy(cfg.Generation.OrderPolicy)
	if err != nil {
		return nil, err
	}
	r := rand.New(rand.NewSource(cfg.Seed))
	storeOpts := schema.DefaultStoreOptions()
	storeOpts.NameStyle = nameStyle
	store := schema.NewStore(r, storeOpts)
	g, err := sqlgrammar.New(store, weightPolicy)
	if err != nil {
		return nil, errors.Wrap(err, "build grammar")
	}
	sess, err := session.New(g, store, r, session.Options{
		Engine: engine.Options{
			MaxNonterminals:    cfg.Generation.MaxNonterminals,
			MinNonterminals:    cfg.Generation.MinNonterminals,
			ConvergeAfterSteps: cfg.Generation.ConvergeAfterSteps,
			MaxSteps:           cfg.Generation.MaxSteps,
			Policy:             orderPolicy,
		},
		MaxAttempts: cfg.Generation.MaxAttempts,
		Phases:      sessionPhases(cfg.Phases),
	})
	if err != nil {
		return nil, errors.Wrap(err, "build session")
	}
	if up == nil {
		up = uploader.NoopUploader{}
	}
	run := &Runner{
		cfg:      cfg,
		exec:     exec,
		rand:     r,
		store:    store,
		sess:     sess,
		reporter: report.New(cfg.Corpus.OutputDir),
		uploader: up,
		stats:    newRunStats(),
	}
	if cfg.Adaptive.Enabled {
		if exec == nil {
			util.Warnf("adaptive weights need a database to score statements; disabled")
		} else if run.adaptive, err = newAdaptive(g, cfg.Adaptive.Symbol, cfg.Adaptive.UCBExploration); err != nil {
			return nil, err
		}
	}
	return run, nil
}

func sessionPhases(phases []config.Phase) []session.Phase {
	if len(phases) == 0 {
		return sqlgrammar.DefaultPhases()
	}
	out := make([]session.Phase, 0, len(phases))
	for _, ph := range phases {
		out = append(out, session.Phase{Name: ph.Name, Until: ph.Until, Start: ph.Start, Weights: ph.Weights})
	}
	return out
}

// Run generates until the iteration count is reached, the context is done,
// or generation fails fatally. The corpus is written in every case.
func (r *Runner) Run(ctx context.Context) error {
	if r.exec != nil {
		r.exec.Observe = r.observeSQL
	}
	stop := r.startStatsLogger()
	defer stop()

	driver := "none"
	if r.exec != nil {
		driver = r.exec.Driver
	}
	util.Infof("runner start driver=%s iterations=%d seed=%d adaptive=%t", driver, r.cfg.Iterations, r.cfg.Seed, r.adaptive != nil)
	var runErr error
	for i := 0; i < r.cfg.Iterations; i++ {
		if ctx.Err() != nil {
			util.Warnf("runner interrupted after %d statements: %v", i, ctx.Err())
			break
		}
		if err := r.step(ctx); err != nil {
			runErr = err
			util.Errorf("generation failed at statement %d: %v", i+1, err)
			break
		}
	}
	r.logSummary()
	if err := r.finish(context.WithoutCancel(ctx)); err != nil {
		if runErr == nil {
			runErr = err
		}
		util.Errorf("write corpus failed: %v", err)
	}
	return runErr
}

func (r *Runner) step(ctx context.Context) error {
	phase := r.sess.Phase()
	arm, overrides := -1, map[string][]float64(nil)
	if r.adaptive != nil {
		arm, overrides = r.adaptive.pick(r.rand)
	}
	snap := r.store.Snapshot()
	res, err := r.sess.GenerateWith(overrides)
	r.recordSession()
	if err != nil {
		if errors.Is(err, session.ErrExhausted) {
			util.Warnf("phase %s: %v", phase, err)
			r.recordSkip()
			return nil
		}
		return err
	}
	st := report.Statement{Phase: phase, SQL: res.Text}
	if r.Output != nil {
		fmt.Fprintf(r.Output, "%s;\n", res.Text)
	}
	if r.exec != nil {
		st.Executed = true
		if err := r.execSQL(ctx, res.Text); err != nil {
			st.Error = err.Error()
			st.Code = rejectCode(err)
			if r.cfg.DB.RollbackOnReject {
				r.store.Restore(snap)
				r.sess.Discard()
			}
			util.Detailf("rejected [%s] %s: %v", st.Code, res.Text, err)
		}
		if r.adaptive != nil {
			reward := 0.0
			if st.Error == "" {
				reward = 1
			}
			r.adaptive.update(res, arm, reward)
		}
	}
	r.recordStatement(st)
	return nil
}

func rejectCode(err error) string {
	if code, ok := db.ErrorCode(err); ok {
		return code
	}
	if reason := db.ErrorReason(err); reason != "" {
		return reason
	}
	return "other"
}

func (r *Runner) execSQL(ctx context.Context, sql string) error {
	qctx, cancel := r.withTimeout(ctx)
	defer cancel()
	_, err := r.exec.ExecContext(qctx, sql)
	return err
}

func (r *Runner) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.DB.StatementTimeoutMs <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(r.cfg.DB.StatementTimeoutMs)*time.Millisecond)
}

// Statements returns the statements recorded so far.
func (r *Runner) Statements() []report.Statement {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	return append([]report.Statement(nil), r.statements...)
}

// Store returns the schema model behind the session.
func (r *Runner) Store() *schema.Store { return r.store }
