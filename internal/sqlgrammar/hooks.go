package sqlgrammar

import (
	"fmt"

	"gramfuzz/internal/grammar"
	"gramfuzz/internal/schema"
)

// binder ties grammar hooks to one store.
type binder struct {
	store *schema.Store
}

// enter pushes a processor of kind before the statement expands.
func (b binder) enter(kind schema.Kind) grammar.Option {
	return grammar.Pre(func() (string, bool, error) {
		b.store.Push(kind)
		return "", false, nil
	})
}

// leave pops the statement's processor once it is rendered.
func (b binder) leave() grammar.Option {
	return grammar.Post(func([]string) (string, bool, error) {
		return "", false, b.store.Pop()
	})
}

// ident replaces an identifier symbol with a name from the active processor.
func (b binder) ident(fn func(*schema.Processor) (string, error)) grammar.Option {
	return grammar.Pre(func() (string, bool, error) {
		p, err := b.store.Current()
		if err != nil {
			return "", false, err
		}
		name, err := fn(p)
		if err != nil {
			return "", false, err
		}
		return name, true, nil
	})
}

// after runs fn on the active processor with the rendered children.
func (b binder) after(fn func(p *schema.Processor, children []string) (string, bool, error)) grammar.Option {
	return grammar.Post(func(children []string) (string, bool, error) {
		p, err := b.store.Current()
		if err != nil {
			return "", false, err
		}
		return fn(p, children)
	})
}

func (b binder) primaryKey() grammar.Option {
	return b.after(func(p *schema.Processor, _ []string) (string, bool, error) {
		marked, err := p.MarkPrimaryKey()
		if err != nil || marked {
			return "", false, err
		}
		return "CHECK (1)", true, nil
	})
}

func (b binder) indexedBy() grammar.Option {
	return b.after(func(p *schema.Processor, _ []string) (string, bool, error) {
		table, index, err := p.PickIndexedTable()
		if err != nil {
			return "", false, err
		}
		return fmt.Sprintf("%s INDEXED BY %s", table, index), true, nil
	})
}

// createIndex expects children (index, table, column).
func (b binder) createIndex() grammar.Option {
	return b.after(func(p *schema.Processor, children []string) (string, bool, error) {
		return "", false, p.RegisterIndex(children[1], children[0])
	})
}

// renameTable expects children (table, new table).
func (b binder) renameTable() grammar.Option {
	return b.after(func(p *schema.Processor, children []string) (string, bool, error) {
		return "", false, p.RenameTable(children[0], children[1])
	})
}

// renameColumn expects children (table, column, new column).
func (b binder) renameColumn() grammar.Option {
	return b.after(func(p *schema.Processor, children []string) (string, bool, error) {
		return "", false, p.RenameColumn(children[1], children[2])
	})
}

// dropColumn expects children (table, column).
func (b binder) dropColumn() grammar.Option {
	return b.after(func(p *schema.Processor, children []string) (string, bool, error) {
		return "", false, p.DeleteColumn(children[1])
	})
}

func alts(templates ...string) []grammar.Alternative {
	out := make([]grammar.Alternative, len(templates))
	for i, tmpl := range templates {
		out[i] = grammar.Alt(tmpl)
	}
	return out
}

func chars(s string) []grammar.Alternative {
	out := make([]grammar.Alternative, 0, len(s))
	for _, c := range s {
		out = append(out, grammar.Alt(string(c)))
	}
	return out
}
