// Package schema tracks the tables, columns and indexes a generation session
// believes exist, and the stack of statement processors hooks act through.
package schema

// Column describes a table column.
type Column struct {
	Name string
}

// Index describes a named index on a table.
type Index struct {
	Name string
}

// Table describes a database table.
type Table struct {
	Name    string
	Columns []Column
	Indexes []Index
	HasPK   bool

	nextColumn int
}

// State is a read-only copy of the tracked schema.
type State struct {
	Tables []Table
}

// placeholder reports whether the table was only allocated as a name.
func (t Table) placeholder() bool {
	return len(t.Columns) == 0 && len(t.Indexes) == 0 && !t.HasPK
}

func (t Table) clone() Table {
	out := t
	out.Columns = append([]Column(nil), t.Columns...)
	out.Indexes = append([]Index(nil), t.Indexes...)
	return out
}

// HasTables reports whether any tables exist in the schema state.
func (s State) HasTables() bool {
	return len(s.Tables) > 0
}

// IndexedTables returns the tables that carry at least one index.
func (s State) IndexedTables() []Table {
	var out []Table
	for _, tbl := range s.Tables {
		if len(tbl.Indexes) > 0 {
			out = append(out, tbl)
		}
	}
	return out
}
