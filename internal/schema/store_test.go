package schema

import (
	"math/rand"
	"testing"

	"github.com/pkg/errors"
)

func newTestStore(seed int64) *Store {
	return NewStore(rand.New(rand.NewSource(seed)), StoreOptions{TablePrefix: "T", ColumnPrefix: "C", IndexPrefix: "I"})
}

func TestAllocateThenPickSameTable(t *testing.T) {
	for seed := int64(0); seed < 10; seed++ {
		s := newTestStore(seed)
		p := s.Push(KindAny)
		name, err := p.AllocateTableName()
		if err != nil {
			t.Fatalf("allocate: %v", err)
		}
		got, err := p.PickTableName()
		if err != nil {
			t.Fatalf("pick: %v", err)
		}
		if got != name {
			t.Fatalf("expected %s, got %s", name, got)
		}
	}
}

func TestSequentialNames(t *testing.T) {
	s := newTestStore(1)
	p := s.Push(KindCreateTable)
	tbl, _ := p.AllocateTableName()
	c0, _ := p.AllocateColumnName()
	c1, _ := p.AllocateColumnName()
	if tbl != "T0" || c0 != "C0" || c1 != "C1" {
		t.Fatalf("unexpected names %s %s %s", tbl, c0, c1)
	}
	other, _ := p.AllocateTableName()
	col, _ := p.AllocateColumnName()
	if other != "T1" || col != "C0" {
		t.Fatalf("columns are numbered per table, got %s %s", other, col)
	}
}

func TestRandomNamesAvoidKeywords(t *testing.T) {
	s := NewStore(rand.New(rand.NewSource(7)), StoreOptions{NameStyle: NameRandom})
	p := s.Push(KindAny)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		name, err := p.AllocateTableName()
		if err != nil {
			t.Fatalf("allocate: %v", err)
		}
		if len(name) < 5 || len(name) > 10 || IsKeyword(name) || seen[name] {
			t.Fatalf("bad random name %q", name)
		}
		seen[name] = true
	}
}

func TestRenameTableNeverReturnsOld(t *testing.T) {
	s := newTestStore(3)
	p := s.Push(KindAlterTable)
	old, _ := p.AllocateTableName()
	if _, err := p.AllocateColumnName(); err != nil {
		t.Fatalf("allocate column: %v", err)
	}
	newName, _ := p.AllocateTableName()
	if err := p.RenameTable(old, newName); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if len(s.Tables()) != 1 {
		t.Fatalf("placeholder should be replaced, got %+v", s.Tables())
	}
	for i := 0; i < 20; i++ {
		got, err := p.PickTableName()
		if err != nil {
			t.Fatalf("pick: %v", err)
		}
		if got == old {
			t.Fatalf("picked renamed table %s", old)
		}
	}
	tbl, ok := s.Table(newName)
	if !ok || len(tbl.Columns) != 1 {
		t.Fatalf("columns should move with the table: %+v", tbl)
	}
	var pre *PreconditionError
	if err := p.RenameTable(old, "T9"); !errors.As(err, &pre) {
		t.Fatalf("expected precondition error, got %v", err)
	}
}

func TestRenameTableRejectsTakenName(t *testing.T) {
	s := newTestStore(3)
	p := s.Push(KindAny)
	a, _ := p.AllocateTableName()
	_, _ = p.AllocateColumnName()
	b, _ := p.AllocateTableName()
	_, _ = p.AllocateColumnName()
	var pre *PreconditionError
	if err := p.RenameTable(a, b); !errors.As(err, &pre) {
		t.Fatalf("expected precondition error, got %v", err)
	}
}

func TestRenameAndDeleteColumn(t *testing.T) {
	s := newTestStore(4)
	p := s.Push(KindAlterTable)
	tbl, _ := p.AllocateTableName()
	c0, _ := p.AllocateColumnName()
	c1, _ := p.AllocateColumnName()
	fresh, _ := p.AllocateColumnName()
	if err := p.RenameColumn(c0, fresh); err != nil {
		t.Fatalf("rename column: %v", err)
	}
	got, _ := s.Table(tbl)
	if cols := got.Columns; len(cols) != 2 || cols[0].Name != c1 || cols[1].Name != fresh {
		t.Fatalf("unexpected columns %v", cols)
	}
	if err := p.DeleteColumn(c1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var pre *PreconditionError
	if err := p.DeleteColumn(fresh); !errors.As(err, &pre) {
		t.Fatalf("dropping the last column must fail, got %v", err)
	}
	if err := p.DeleteColumn("missing"); !errors.As(err, &pre) {
		t.Fatalf("expected precondition error, got %v", err)
	}
}

func TestMarkPrimaryKeyIdempotent(t *testing.T) {
	s := newTestStore(5)
	p := s.Push(KindCreateTable)
	name, _ := p.AllocateTableName()
	first, err := p.MarkPrimaryKey()
	if err != nil || !first {
		t.Fatalf("first mark: %v %v", first, err)
	}
	second, err := p.MarkPrimaryKey()
	if err != nil || second {
		t.Fatalf("second mark should be a no-op: %v %v", second, err)
	}
	tbl, _ := s.Table(name)
	if !tbl.HasPK {
		t.Fatalf("primary key flag not set")
	}
}

func TestPickPreconditions(t *testing.T) {
	s := newTestStore(6)
	p := s.Push(KindSelect)
	var pre *PreconditionError
	if _, err := p.PickTableName(); !errors.As(err, &pre) || !pre.Retryable() {
		t.Fatalf("expected retryable precondition, got %v", err)
	}
	if _, err := p.PickColumnName(); !errors.As(err, &pre) {
		t.Fatalf("expected precondition, got %v", err)
	}
	if _, _, err := p.PickIndexedTable(); !errors.As(err, &pre) {
		t.Fatalf("expected precondition, got %v", err)
	}
}

func TestIndexRegistration(t *testing.T) {
	s := newTestStore(8)
	create := s.Push(KindCreateTable)
	tbl, _ := create.AllocateTableName()
	_, _ = create.AllocateColumnName()
	if err := s.Pop(); err != nil {
		t.Fatalf("pop: %v", err)
	}
	idx := s.Push(KindCreateIndex)
	name, _ := idx.AllocateIndexName()
	if _, err := idx.PickTableName(); err != nil {
		t.Fatalf("pick: %v", err)
	}
	if err := idx.RegisterIndex(tbl, name); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := idx.RegisterIndex(tbl, name); err == nil {
		t.Fatalf("duplicate index name must fail")
	}
	_ = s.Pop()
	sel := s.Push(KindSelect)
	gotTable, gotIndex, err := sel.PickIndexedTable()
	if err != nil || gotTable != tbl || gotIndex != name {
		t.Fatalf("unexpected indexed table %s %s %v", gotTable, gotIndex, err)
	}
	if sel.FocusedTable() != tbl {
		t.Fatalf("indexed table should be focused")
	}
}

func TestNotPermitted(t *testing.T) {
	s := newTestStore(9)
	p := s.Push(KindSelect)
	if _, err := p.AllocateTableName(); !errors.Is(err, ErrNotPermitted) {
		t.Fatalf("expected not permitted, got %v", err)
	}
	var pre *PreconditionError
	if _, err := p.AllocateTableName(); errors.As(err, &pre) {
		t.Fatalf("capability errors must not be retryable")
	}
}

func TestStackBalance(t *testing.T) {
	s := newTestStore(10)
	if _, err := s.Current(); !errors.Is(err, ErrNoProcessor) {
		t.Fatalf("expected no processor, got %v", err)
	}
	outer := s.Push(KindCreateTable)
	inner := s.Push(KindSelect)
	cur, _ := s.Current()
	if cur != inner || s.Depth() != 2 {
		t.Fatalf("unexpected top of stack")
	}
	_ = s.Pop()
	cur, _ = s.Current()
	if cur != outer {
		t.Fatalf("pop should expose the outer processor")
	}
	_ = s.Pop()
	if err := s.Pop(); !errors.Is(err, ErrUnbalanced) {
		t.Fatalf("expected unbalanced, got %v", err)
	}
}

func TestSnapshotRestore(t *testing.T) {
	s := newTestStore(11)
	p := s.Push(KindAny)
	keep, _ := p.AllocateTableName()
	_, _ = p.AllocateColumnName()
	snap := s.Snapshot()

	p2 := s.Push(KindAny)
	_, _ = p2.AllocateTableName()
	_, _ = p2.PickTableName()
	_, _ = p2.AllocateColumnName()
	if _, err := p2.MarkPrimaryKey(); err != nil {
		t.Fatalf("mark: %v", err)
	}
	s.Restore(snap)

	if s.Depth() != 1 {
		t.Fatalf("expected depth 1, got %d", s.Depth())
	}
	tables := s.Tables()
	if len(tables) != 1 || tables[0].Name != keep || len(tables[0].Columns) != 1 || tables[0].HasPK {
		t.Fatalf("restore did not roll back: %+v", tables)
	}
	next, _ := p.AllocateTableName()
	if next != "T1" {
		t.Fatalf("name counter should roll back, got %s", next)
	}
}
