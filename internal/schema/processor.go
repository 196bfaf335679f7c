package schema

import (
	"strings"

	"github.com/pkg/errors"
)

// Kind is the statement kind a processor serves.
type Kind int

// Processor kinds.
const (
	KindAny Kind = iota
	KindCreateTable
	KindCreateIndex
	KindSelect
	KindAlterTable
)

func (k Kind) String() string {
	switch k {
	case KindCreateTable:
		return "create_table"
	case KindCreateIndex:
		return "create_index"
	case KindSelect:
		return "select"
	case KindAlterTable:
		return "alter_table"
	default:
		return "any"
	}
}

type capability uint16

const (
	capAllocateTable capability = 1 << iota
	capAllocateColumn
	capAllocateIndex
	capPickTable
	capPickColumn
	capPickIndexed
	capRenameTable
	capRenameColumn
	capDeleteColumn
	capPrimaryKey
	capRegisterIndex

	capAll capability = 1<<iota - 1
)

var kindCapabilities = map[Kind]capability{
	KindAny:         capAll,
	KindCreateTable: capAllocateTable | capAllocateColumn | capPickTable | capPickColumn | capPrimaryKey,
	KindCreateIndex: capAllocateIndex | capPickTable | capPickColumn | capRegisterIndex,
	KindSelect:      capPickTable | capPickColumn | capPickIndexed,
	KindAlterTable: capAllocateTable | capAllocateColumn | capPickTable | capPickColumn |
		capRenameTable | capRenameColumn | capDeleteColumn | capPrimaryKey,
}

// Processor is the capability object hooks use while one statement is
// generated. It remembers the focused table: the last one allocated or
// picked.
type Processor struct {
	store *Store
	kind  Kind
	focus string
}

// Kind returns the statement kind.
func (p *Processor) Kind() Kind { return p.kind }

// FocusedTable returns the focused table name, or "".
func (p *Processor) FocusedTable() string { return p.focus }

func (p *Processor) allow(c capability, op string) error {
	if kindCapabilities[p.kind]&c == 0 {
		return errors.Wrapf(ErrNotPermitted, "%s processor cannot %s", p.kind, op)
	}
	return nil
}

func (p *Processor) focused(op string) (*Table, error) {
	if p.focus == "" {
		return nil, precondition(op, "no focused table")
	}
	idx := p.store.tableIndex(p.focus)
	if idx < 0 {
		return nil, precondition(op, "focused table %s no longer exists", p.focus)
	}
	return &p.store.tables[idx], nil
}

// AllocateTableName records a new empty table and focuses it.
func (p *Processor) AllocateTableName() (string, error) {
	if err := p.allow(capAllocateTable, "allocate a table name"); err != nil {
		return "", err
	}
	s := p.store
	name := nextName(s.opts.NameStyle, s.r, s.opts.TablePrefix, &s.nextTable, s.tableTaken)
	s.tables = append(s.tables, Table{Name: name})
	p.focus = name
	return name, nil
}

// AllocateColumnName adds a new column to the focused table.
func (p *Processor) AllocateColumnName() (string, error) {
	const op = "allocate a column name"
	if err := p.allow(capAllocateColumn, op); err != nil {
		return "", err
	}
	tbl, err := p.focused(op)
	if err != nil {
		return "", err
	}
	s := p.store
	name := nextName(s.opts.NameStyle, s.r, s.opts.ColumnPrefix, &tbl.nextColumn, func(n string) bool {
		for _, col := range tbl.Columns {
			if strings.EqualFold(col.Name, n) {
				return true
			}
		}
		return false
	})
	tbl.Columns = append(tbl.Columns, Column{Name: name})
	return name, nil
}

// AllocateIndexName returns an index name unused across the schema. The
// index is recorded by RegisterIndex.
func (p *Processor) AllocateIndexName() (string, error) {
	if err := p.allow(capAllocateIndex, "allocate an index name"); err != nil {
		return "", err
	}
	s := p.store
	return nextName(s.opts.NameStyle, s.r, s.opts.IndexPrefix, &s.nextIndex, s.indexTaken), nil
}

// PickTableName focuses and returns a random existing table.
func (p *Processor) PickTableName() (string, error) {
	const op = "pick a table name"
	if err := p.allow(capPickTable, op); err != nil {
		return "", err
	}
	state := p.store.State()
	if !state.HasTables() {
		return "", precondition(op, "no tables exist")
	}
	name := state.Tables[p.store.r.Intn(len(state.Tables))].Name
	p.focus = name
	return name, nil
}

// PickColumnName returns a random column of the focused table.
func (p *Processor) PickColumnName() (string, error) {
	const op = "pick a column name"
	if err := p.allow(capPickColumn, op); err != nil {
		return "", err
	}
	tbl, err := p.focused(op)
	if err != nil {
		return "", err
	}
	if len(tbl.Columns) == 0 {
		return "", precondition(op, "table %s has no columns", tbl.Name)
	}
	return tbl.Columns[p.store.r.Intn(len(tbl.Columns))].Name, nil
}

// RenameTable moves a table to a new name and focuses it. An empty
// placeholder already holding the new name is replaced.
func (p *Processor) RenameTable(oldName, newName string) error {
	const op = "rename a table"
	if err := p.allow(capRenameTable, op); err != nil {
		return err
	}
	s := p.store
	from := s.tableIndex(oldName)
	if from < 0 {
		return precondition(op, "table %s does not exist", oldName)
	}
	if oldName == newName {
		return precondition(op, "table %s renamed to itself", oldName)
	}
	if to := s.tableIndex(newName); to >= 0 {
		if !s.tables[to].placeholder() {
			return precondition(op, "table name %s is taken", newName)
		}
		s.tables = append(s.tables[:to], s.tables[to+1:]...)
		from = s.tableIndex(oldName)
	}
	s.tables[from].Name = newName
	p.focus = newName
	return nil
}

// RenameColumn renames a column of the focused table. A column already
// holding the new name, as left by AllocateColumnName, is merged.
func (p *Processor) RenameColumn(oldName, newName string) error {
	const op = "rename a column"
	if err := p.allow(capRenameColumn, op); err != nil {
		return err
	}
	tbl, err := p.focused(op)
	if err != nil {
		return err
	}
	from := -1
	to := -1
	for i, col := range tbl.Columns {
		if col.Name == oldName {
			from = i
		}
		if col.Name == newName {
			to = i
		}
	}
	if from < 0 {
		return precondition(op, "column %s does not exist in %s", oldName, tbl.Name)
	}
	if oldName == newName {
		return precondition(op, "column %s renamed to itself", oldName)
	}
	if to >= 0 {
		tbl.Columns = append(tbl.Columns[:from], tbl.Columns[from+1:]...)
		return nil
	}
	tbl.Columns[from].Name = newName
	return nil
}

// DeleteColumn removes a column from the focused table. The last column of
// a table cannot be dropped.
func (p *Processor) DeleteColumn(name string) error {
	const op = "delete a column"
	if err := p.allow(capDeleteColumn, op); err != nil {
		return err
	}
	tbl, err := p.focused(op)
	if err != nil {
		return err
	}
	for i, col := range tbl.Columns {
		if col.Name != name {
			continue
		}
		if len(tbl.Columns) == 1 {
			return precondition(op, "column %s is the last column of %s", name, tbl.Name)
		}
		tbl.Columns = append(tbl.Columns[:i], tbl.Columns[i+1:]...)
		return nil
	}
	return precondition(op, "column %s does not exist in %s", name, tbl.Name)
}

// MarkPrimaryKey flags the focused table as having a primary key. It
// returns false, without error, when the flag was already set.
func (p *Processor) MarkPrimaryKey() (bool, error) {
	const op = "mark a primary key"
	if err := p.allow(capPrimaryKey, op); err != nil {
		return false, err
	}
	tbl, err := p.focused(op)
	if err != nil {
		return false, err
	}
	if tbl.HasPK {
		return false, nil
	}
	tbl.HasPK = true
	return true, nil
}

// RegisterIndex records an index on a table, which must be the focused one
// when a table is focused.
func (p *Processor) RegisterIndex(table, index string) error {
	const op = "register an index"
	if err := p.allow(capRegisterIndex, op); err != nil {
		return err
	}
	if p.focus != "" && p.focus != table {
		return precondition(op, "table %s is not the focused table %s", table, p.focus)
	}
	s := p.store
	idx := s.tableIndex(table)
	if idx < 0 {
		return precondition(op, "table %s does not exist", table)
	}
	if s.indexTaken(index) {
		return precondition(op, "index name %s is taken", index)
	}
	s.tables[idx].Indexes = append(s.tables[idx].Indexes, Index{Name: index})
	p.focus = table
	return nil
}

// PickIndexedTable focuses a random table that has an index and returns it
// with one of its indexes.
func (p *Processor) PickIndexedTable() (string, string, error) {
	const op = "pick an indexed table"
	if err := p.allow(capPickIndexed, op); err != nil {
		return "", "", err
	}
	candidates := p.store.State().IndexedTables()
	if len(candidates) == 0 {
		return "", "", precondition(op, "no table has an index")
	}
	tbl := candidates[p.store.r.Intn(len(candidates))]
	idx := tbl.Indexes[p.store.r.Intn(len(tbl.Indexes))]
	p.focus = tbl.Name
	return tbl.Name, idx.Name, nil
}
