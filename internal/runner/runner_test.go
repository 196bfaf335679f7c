package runner

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"gramfuzz/internal/config"
	"gramfuzz/internal/db"
	"gramfuzz/internal/engine"
	"gramfuzz/internal/grammar"
	"gramfuzz/internal/schema"
	"gramfuzz/internal/sqlgrammar"
	"gramfuzz/internal/uploader"
)

func testConfig(t *testing.T, iterations int) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Seed = 42
	cfg.Iterations = iterations
	cfg.Logging.ReportIntervalSeconds = 0
	cfg.Corpus.OutputDir = t.TempDir()
	return cfg
}

func TestRunWithoutDatabase(t *testing.T) {
	cfg := testConfig(t, 12)
	cfg.Corpus.Enabled = false
	r, err := New(cfg, nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	var out strings.Builder
	r.Output = &out
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	stmts := r.Statements()
	if len(stmts) == 0 {
		t.Fatalf("no statements generated")
	}
	for i, st := range stmts {
		if st.Executed {
			t.Fatalf("statement %d executed without a database", i)
		}
		if i < 5 && !strings.HasPrefix(st.SQL, "CREATE TABLE") {
			t.Fatalf("statement %d should create a table: %s", i, st.SQL)
		}
	}
	if got := strings.Count(out.String(), ";\n"); got < len(stmts) {
		t.Fatalf("printed %d statements, want %d", got, len(stmts))
	}
}

func TestRunSQLiteKeepsModelInSync(t *testing.T) {
	cfg := testConfig(t, 60)
	exec, err := db.Open(config.DriverSQLite, cfg.DB.DSN)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer exec.Close()
	r, err := New(cfg, exec, uploader.NoopUploader{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	var modeled []string
	for _, tbl := range r.Store().Tables() {
		modeled = append(modeled, tbl.Name)
	}
	sort.Strings(modeled)
	actual, err := exec.TableNames(context.Background())
	if err != nil {
		t.Fatalf("tables: %v", err)
	}
	if strings.Join(modeled, ",") != strings.Join(actual, ",") {
		t.Fatalf("model tables %v, database tables %v", modeled, actual)
	}

	entries, err := os.ReadDir(cfg.Corpus.OutputDir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one corpus dir, got %v (%v)", entries, err)
	}
	dir := filepath.Join(cfg.Corpus.OutputDir, entries[0].Name())
	for _, name := range []string{"corpus.sql", "summary.json", "corpus.tar.zst"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}
	s := r.summary()
	if s.Accepted+s.Rejected != s.Statements {
		t.Fatalf("accepted %d + rejected %d != %d", s.Accepted, s.Rejected, s.Statements)
	}
	if s.Driver != config.DriverSQLite {
		t.Fatalf("unexpected driver %q", s.Driver)
	}
}

func TestRejectedStatementsDoNotUseUpPhaseSlots(t *testing.T) {
	cfg := testConfig(t, 60)
	cfg.Corpus.Enabled = false
	exec, err := db.Open(config.DriverSQLite, cfg.DB.DSN)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer exec.Close()
	r, err := New(cfg, exec, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	stmts := r.Statements()
	accepted, schemaAccepted := 0, 0
	for i, st := range stmts {
		if st.Seq != i+1 {
			t.Fatalf("statement %d has seq %d", i, st.Seq)
		}
		if st.Rejected() {
			continue
		}
		accepted++
		if st.Phase == "schema" {
			schemaAccepted++
		}
	}
	if got := r.sess.Count(); got != accepted {
		t.Fatalf("session counted %d statements, %d were accepted", got, accepted)
	}
	if got := r.sess.Stats().Discarded; got != len(stmts)-accepted {
		t.Fatalf("discarded %d, rejected %d", got, len(stmts)-accepted)
	}
	if schemaAccepted != 5 {
		t.Fatalf("schema phase should keep 5 accepted statements, got %d", schemaAccepted)
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	cfg := testConfig(t, 100)
	cfg.Corpus.Enabled = false
	r, err := New(cfg, nil, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(r.Statements()) != 0 {
		t.Fatalf("expected no statements after cancel")
	}
}

func TestNewRejectsBadPolicies(t *testing.T) {
	cfg := testConfig(t, 1)
	cfg.Generation.OrderPolicy = "sideways"
	if _, err := New(cfg, nil, nil); err == nil {
		t.Fatalf("expected order policy error")
	}
	cfg = testConfig(t, 1)
	cfg.Phases = []config.Phase{{Name: "a"}, {Name: "b", Until: 3}}
	if _, err := New(cfg, nil, nil); err == nil {
		t.Fatalf("expected phase order error")
	}
}

func TestAdaptiveUpdatesOnlyWhenSymbolExpanded(t *testing.T) {
	store := schema.NewStore(rand.New(rand.NewSource(1)), schema.DefaultStoreOptions())
	g, err := sqlgrammar.New(store, grammar.WeightRemainder)
	if err != nil {
		t.Fatalf("grammar: %v", err)
	}
	a, err := newAdaptive(g, sqlgrammar.StatementSymbol, 1.5)
	if err != nil {
		t.Fatalf("adaptive: %v", err)
	}
	arm, overrides := a.pick(rand.New(rand.NewSource(2)))
	weights := overrides[sqlgrammar.StatementSymbol]
	if len(weights) != len(g.Alternatives(sqlgrammar.StatementSymbol)) || weights[arm] != 1 {
		t.Fatalf("unexpected one-hot override %v for arm %d", weights, arm)
	}
	if a.update(engine.Result{Expansions: map[string]int{"<phase-1>": 1}}, arm, 1) {
		t.Fatalf("update without expanding the symbol")
	}
	if !a.update(engine.Result{Expansions: map[string]int{sqlgrammar.StatementSymbol: 1}}, arm, 1) {
		t.Fatalf("expected update")
	}
	if snap := a.bandit.Snapshot(); snap.Counts[arm] != 1 {
		t.Fatalf("unexpected counts %v", snap.Counts)
	}
	if _, err := newAdaptive(g, "<missing>", 1.5); err == nil {
		t.Fatalf("expected undefined symbol error")
	}
}

func TestTopCounts(t *testing.T) {
	got := topCounts(map[string]int64{"b": 2, "a": 2, "c": 5, "d": 1}, 3)
	if got != "c=5 a=2 b=2" {
		t.Fatalf("unexpected %q", got)
	}
	if ratio(1, 4) != "25.0%" || ratio(0, 0) != "n/a" {
		t.Fatalf("unexpected ratio formatting")
	}
}
