package schema

import (
	"math/rand"
	"strings"

	"github.com/pkg/errors"
)

// StoreOptions configures identifier allocation.
type StoreOptions struct {
	NameStyle    NameStyle
	TablePrefix  string
	ColumnPrefix string
	IndexPrefix  string
}

// DefaultStoreOptions returns sequential t/c/i names.
func DefaultStoreOptions() StoreOptions {
	return StoreOptions{
		NameStyle:    NameSequential,
		TablePrefix:  "t",
		ColumnPrefix: "c",
		IndexPrefix:  "i",
	}
}

// Store is the semantic context of one generation session: the tables that
// exist so far plus the processor stack. Tables keep creation order so a
// seeded random source yields deterministic picks. It is not safe for
// concurrent use.
type Store struct {
	r      *rand.Rand
	opts   StoreOptions
	tables []Table
	stack  []*Processor

	nextTable int
	nextIndex int
}

// NewStore creates an empty store drawing random choices from r.
func NewStore(r *rand.Rand, opts StoreOptions) *Store {
	def := DefaultStoreOptions()
	if opts.TablePrefix == "" {
		opts.TablePrefix = def.TablePrefix
	}
	if opts.ColumnPrefix == "" {
		opts.ColumnPrefix = def.ColumnPrefix
	}
	if opts.IndexPrefix == "" {
		opts.IndexPrefix = def.IndexPrefix
	}
	return &Store{r: r, opts: opts}
}

// Push activates a processor of the given kind for one statement.
func (s *Store) Push(kind Kind) *Processor {
	p := &Processor{store: s, kind: kind}
	s.stack = append(s.stack, p)
	return p
}

// Pop deactivates the top processor.
func (s *Store) Pop() error {
	if len(s.stack) == 0 {
		return errors.WithStack(ErrUnbalanced)
	}
	s.stack[len(s.stack)-1] = nil
	s.stack = s.stack[:len(s.stack)-1]
	return nil
}

// Current returns the top processor.
func (s *Store) Current() (*Processor, error) {
	if len(s.stack) == 0 {
		return nil, errors.WithStack(ErrNoProcessor)
	}
	return s.stack[len(s.stack)-1], nil
}

// Depth returns the processor stack depth.
func (s *Store) Depth() int {
	return len(s.stack)
}

// Tables returns a copy of the tracked tables in creation order.
func (s *Store) Tables() []Table {
	out := make([]Table, len(s.tables))
	for i, tbl := range s.tables {
		out[i] = tbl.clone()
	}
	return out
}

// State returns a copy of the tracked schema.
func (s *Store) State() State {
	return State{Tables: s.Tables()}
}

// Table returns a copy of the named table.
func (s *Store) Table(name string) (Table, bool) {
	idx := s.tableIndex(name)
	if idx < 0 {
		return Table{}, false
	}
	return s.tables[idx].clone(), true
}

// Snapshot captures everything an attempt may mutate.
type Snapshot struct {
	tables    []Table
	depth     int
	nextTable int
	nextIndex int
}

// Snapshot copies the current state.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		tables:    s.Tables(),
		depth:     len(s.stack),
		nextTable: s.nextTable,
		nextIndex: s.nextIndex,
	}
}

// Restore rolls the store back to snap, dropping processors pushed since.
func (s *Store) Restore(snap Snapshot) {
	s.tables = make([]Table, len(snap.tables))
	for i, tbl := range snap.tables {
		s.tables[i] = tbl.clone()
	}
	for len(s.stack) > snap.depth {
		s.stack[len(s.stack)-1] = nil
		s.stack = s.stack[:len(s.stack)-1]
	}
	s.nextTable = snap.nextTable
	s.nextIndex = snap.nextIndex
}

func (s *Store) tableIndex(name string) int {
	for i := range s.tables {
		if s.tables[i].Name == name {
			return i
		}
	}
	return -1
}

func (s *Store) tableTaken(name string) bool {
	lower := strings.ToLower(name)
	for _, tbl := range s.tables {
		if strings.ToLower(tbl.Name) == lower {
			return true
		}
	}
	return false
}

func (s *Store) indexTaken(name string) bool {
	lower := strings.ToLower(name)
	for _, tbl := range s.tables {
		for _, idx := range tbl.Indexes {
			if strings.ToLower(idx.Name) == lower {
				return true
			}
		}
	}
	return false
}
