// Package sqlgrammar holds an SQLite statement grammar whose identifier
// symbols are bound to a schema store, so generated statements only name
// tables, columns and indexes that exist at that point in the session.
package sqlgrammar

import (
	"gramfuzz/internal/grammar"
	"gramfuzz/internal/schema"
	"gramfuzz/internal/session"
)

const (
	// Start is the start symbol.
	Start = "<start>"
	// StatementSymbol chooses between the query-phase statements.
	StatementSymbol = "<phase-3>"
)

// New validates the grammar bound to store.
func New(store *schema.Store, policy grammar.WeightPolicy) (*grammar.Grammar, error) {
	return grammar.New(Start, Rules(store), grammar.WithPolicy(policy))
}

// DefaultPhases creates tables for the first five statements, then mixes
// schema changes and queries.
func DefaultPhases() []session.Phase {
	return []session.Phase{
		{Name: "schema", Until: 5, Weights: map[string][]float64{Start: {1, 0, 0}}},
		{Name: "mixed", Weights: map[string][]float64{Start: {0.2, 0.3, 0.5}}},
	}
}

// Rules returns the grammar with hooks bound to store.
func Rules(store *schema.Store) grammar.Rules {
	b := binder{store: store}
	rules := grammar.Rules{}
	for _, part := range []grammar.Rules{
		phaseRules(b),
		createTableRules(b),
		createIndexRules(b),
		alterTableRules(b),
		selectRules(b),
		expressionRules(),
		windowRules(),
		literalRules(),
		identifierRules(b),
		pragmaRules(),
	} {
		for sym, a := range part {
			rules[sym] = a
		}
	}
	return rules
}

func phaseRules(b binder) grammar.Rules {
	return grammar.Rules{
		"<start>": {
			grammar.Alt("<phase-1>", grammar.Weight(1)),
			grammar.Alt("<phase-2>"),
			grammar.Alt("<phase-3>"),
		},
		"<phase-1>": {
			grammar.Alt("<create-table-stmt>", b.enter(schema.KindCreateTable), b.leave()),
		},
		"<phase-2>": {
			grammar.Alt("<create-index-stmt>", b.enter(schema.KindCreateIndex), b.leave()),
			grammar.Alt("<create-view-stmt>", b.enter(schema.KindSelect), b.leave()),
		},
		"<phase-3>": {
			grammar.Alt("<select-stmt>", b.enter(schema.KindSelect), b.leave()),
			grammar.Alt("<alter-table-stmt>", b.enter(schema.KindAlterTable), b.leave()),
			grammar.Alt("<pragma-stmt>"),
		},
	}
}

func createTableRules(b binder) grammar.Rules {
	return grammar.Rules{
		"<create-table-stmt>": {
			grammar.Alt("CREATE TABLE <new-table-name> <table-body>", grammar.Order(1, 2)),
			grammar.Alt("CREATE TABLE main.<new-table-name> <table-body>", grammar.Order(1, 2)),
			grammar.Alt("CREATE TABLE IF NOT EXISTS <new-table-name> <table-body>", grammar.Order(1, 2)),
			grammar.Alt("CREATE TABLE IF NOT EXISTS main.<new-table-name> <table-body>", grammar.Order(1, 2)),
		},
		"<table-body>": {
			grammar.Alt("( <column-defs>, <table-constraint> ) <table-options>", grammar.Order(1, 2, 3)),
		},
		"<column-defs>": alts("<column-def>, <column-defs>", "<column-def>"),
		"<column-def>": {
			grammar.Alt("<new-column-name> <type-name>", grammar.Order(1, 2)),
			grammar.Alt("<new-column-name> <type-name> <column-constraint>", grammar.Order(1, 2, 3)),
		},
		"<type-name>": alts("TEXT", "INTEGER", "REAL"),
		"<column-constraint>": alts(
			"<column-constraint-base> DEFAULT ( <constant-expr> )",
			"<column-constraint-base> DEFAULT <literal-value>",
			"<column-constraint-base> DEFAULT <signed-number>",
		),
		"<column-constraint-base>": alts("NOT NULL", "CHECK ( <expr> )", "COLLATE <collation-name>"),
		"<conflict-clause>": alts(
			"",
			"ON CONFLICT ROLLBACK",
			"ON CONFLICT ABORT",
			"ON CONFLICT FAIL",
			"ON CONFLICT IGNORE",
			"ON CONFLICT REPLACE",
		),
		"<table-constraint>": {
			grammar.Alt("PRIMARY KEY ( <indexed-column> ) <conflict-clause>", b.primaryKey()),
			grammar.Alt("UNIQUE ( <indexed-column> )"),
			grammar.Alt("CHECK ( <expr> )"),
		},
		"<table-options>": alts("STRICT", "STRICT, <table-options>"),
		"<indexed-column>": alts(
			"<column-name>",
			"<column-name> COLLATE <collation-name>",
			"<column-name> ASC",
			"<column-name> COLLATE <collation-name> ASC",
			"<column-name> DESC",
			"<column-name> COLLATE <collation-name> DESC",
		),
	}
}

func createIndexRules(b binder) grammar.Rules {
	index := func(tmpl string) grammar.Alternative {
		return grammar.Alt(tmpl, grammar.Order(1, 2, 3), b.createIndex())
	}
	return grammar.Rules{
		"<create-index-stmt>": {
			index("CREATE INDEX <new-index-name> ON <table-name> ( <indexed-column> )"),
			index("CREATE UNIQUE INDEX <new-index-name> ON <table-name> ( <indexed-column> )"),
			index("CREATE INDEX IF NOT EXISTS <new-index-name> ON <table-name> ( <indexed-column> )"),
			index("CREATE UNIQUE INDEX IF NOT EXISTS <new-index-name> ON <table-name> ( <indexed-column> )"),
		},
		"<create-view-stmt>": alts(
			"CREATE VIEW <view-name> AS <select-stmt>",
			"CREATE VIEW IF NOT EXISTS <view-name> AS <select-stmt>",
		),
	}
}

func alterTableRules(b binder) grammar.Rules {
	return grammar.Rules{
		"<alter-table-stmt>": {
			grammar.Alt("ALTER TABLE <table-name> RENAME COLUMN <column-name> TO <new-column-name>",
				grammar.Order(1, 2, 3), b.renameColumn()),
			grammar.Alt("ALTER TABLE <table-name> RENAME TO <new-table-name>",
				grammar.Order(1, 2), b.renameTable()),
			grammar.Alt("ALTER TABLE <table-name> RENAME <column-name> TO <new-column-name>",
				grammar.Order(1, 2, 3), b.renameColumn()),
			grammar.Alt("ALTER TABLE <table-name> ADD COLUMN <column-def>", grammar.Order(1, 2)),
			grammar.Alt("ALTER TABLE <table-name> ADD <column-def>", grammar.Order(1, 2)),
			grammar.Alt("ALTER TABLE <table-name> DROP COLUMN <column-name>",
				grammar.Order(1, 2), grammar.Weight(0.01), b.dropColumn()),
			grammar.Alt("ALTER TABLE <table-name> DROP <column-name>",
				grammar.Order(1, 2), grammar.Weight(0.01), b.dropColumn()),
		},
	}
}

func selectRules(b binder) grammar.Rules {
	core := func(tmpl string) grammar.Alternative {
		return grammar.Alt(tmpl, grammar.Order(4, 1, 2, 3, 5))
	}
	return grammar.Rules{
		"<select-stmt>": {grammar.Alt("<select-core> <select-tail>", grammar.Order(1, 2))},
		"<select-core>": {
			core("SELECT <result-columns> <from-clause> <where-clause> <group-by-clause> <window-clause>"),
			core("SELECT DISTINCT <result-columns> <from-clause> <where-clause> <group-by-clause> <window-clause>"),
			core("SELECT ALL <result-columns> <from-clause> <where-clause> <group-by-clause> <window-clause>"),
		},
		"<from-clause>":     alts("FROM <join-clause>", "FROM <table-or-subquery>"),
		"<where-clause>":    alts("", "WHERE <expr>"),
		"<group-by-clause>": alts("", "GROUP BY <exprs>"),
		"<window-clause>":   alts("WINDOW <window-name> AS <window-defn>"),
		"<result-columns>":  alts("<result-column>, <result-columns>", "<result-column>"),
		"<result-column>":   alts("*", "<expr>", "<expr> <column-alias>", "<expr> AS <column-alias>"),
		"<select-tail>": alts(
			"ORDER BY <ordering-term>",
			"LIMIT <limit-number>",
			"ORDER BY <ordering-term> LIMIT <limit-number>",
			"LIMIT <limit-number> OFFSET <limit-number>",
			"LIMIT <limit-number> , <limit-number>",
			"ORDER BY <ordering-term> LIMIT <limit-number> OFFSET <limit-number>",
			"ORDER BY <ordering-term> LIMIT <limit-number> , <limit-number>",
		),
		"<limit-number>": alts("0x<hexdigits>", "0X<hexdigits>", "<digits>"),
		"<join-clause>":  alts("<table-or-subquery> <join-tail>"),
		"<join-tail>": {
			grammar.Alt(""),
			grammar.Alt("<join-operator> <table-or-subquery> <join-constraint> <join-tail>", grammar.Order(1, 2, 3, 4)),
		},
		"<join-constraint>": alts("", "ON <expr>", "USING ( <column-names> )"),
		"<column-names>":    alts("<column-name>, <column-names>", "<column-name>"),
		"<join-operator>": alts(
			" , ",
			"CROSS JOIN",
			"JOIN",
			"NATURAL JOIN",
			"LEFT JOIN",
			"NATURAL LEFT JOIN",
			"RIGHT JOIN",
			"NATURAL RIGHT JOIN",
			"FULL JOIN",
			"NATURAL FULL JOIN",
			"LEFT OUTER JOIN",
			"NATURAL LEFT OUTER JOIN",
			"RIGHT OUTER JOIN",
			"NATURAL RIGHT OUTER JOIN",
			"FULL OUTER JOIN",
			"NATURAL FULL OUTER JOIN",
			"INNER JOIN",
			"NATURAL INNER JOIN",
		),
		"<table-or-subquery>": {
			grammar.Alt("<table-name>"),
			grammar.Alt("<table-name> <table-alias>"),
			grammar.Alt("<table-name> AS <table-alias>"),
			grammar.Alt("<table-name> NOT INDEXED"),
			grammar.Alt("<table-name> <table-alias> NOT INDEXED"),
			grammar.Alt("<table-name> AS <table-alias> NOT INDEXED"),
			grammar.Alt("<table-name> INDEXED BY <index-name>", b.indexedBy()),
			grammar.Alt("( <select-stmt> )"),
			grammar.Alt("( <select-stmt> ) <table-alias>"),
			grammar.Alt("( <select-stmt> ) AS <table-alias>"),
		},
		"<ordering-term>": alts(
			"<expr>",
			"<expr> COLLATE <collation-name>",
			"<expr> NULLS FIRST",
			"<expr> COLLATE <collation-name> NULLS FIRST",
			"<expr> NULLS LAST",
			"<expr> COLLATE <collation-name> NULLS LAST",
			"<expr> ASC",
			"<expr> COLLATE <collation-name> ASC",
			"<expr> ASC NULLS FIRST",
			"<expr> COLLATE <collation-name> ASC NULLS FIRST",
			"<expr> ASC NULLS LAST",
			"<expr> COLLATE <collation-name> ASC NULLS LAST",
			"<expr> DESC",
			"<expr> COLLATE <collation-name> DESC",
			"<expr> DESC NULLS FIRST",
			"<expr> COLLATE <collation-name> DESC NULLS FIRST",
			"<expr> DESC NULLS LAST",
			"<expr> COLLATE <collation-name> DESC NULLS LAST",
		),
	}
}

func expressionRules() grammar.Rules {
	return grammar.Rules{
		"<expr>": alts(
			"<literal-value>",
			"<unary-operator> <expr>",
			"<expr> <binary-operator> <expr>",
			"CAST ( <expr> AS <type-name>)",
			"<expr> COLLATE <collation-name>",
			"<expr> LIKE <expr>",
			"<expr> NOT LIKE <expr>",
			"<expr> MATCH <expr>",
			"<expr> NOT MATCH <expr>",
			"<expr> ISNULL",
			"<expr> NOTNULL",
			"<expr> NOT NULL",
			"<expr> IS <expr>",
			"<expr> IS NOT <expr>",
			"<expr> BETWEEN <expr> AND <expr>",
			"<expr> NOT BETWEEN <expr> AND <expr>",
			"<expr> IN ()",
			"<expr> NOT IN ()",
			"CASE <when-thens> END",
			"CASE <expr> <when-thens> END",
			"CASE <when-thens> ELSE <expr> END",
			"CASE <expr> <when-thens> ELSE <expr> END",
		),
		"<exprs>":      alts("<expr>, <exprs>", "<expr>"),
		"<when-thens>": alts("WHEN <expr> THEN <expr>", "WHEN <expr> THEN <expr> <when-thens>"),
		"<constant-expr>": alts(
			"<numeric-literal>",
			"<string-literal>",
			"CURRENT_TIME",
			"CURRENT_DATE",
			"CURRENT_TIMESTAMP",
			"<signed-number>",
			"<unary-operator> <constant-expr>",
			"<constant-expr> <binary-operator> <constant-expr>",
		),
		"<binary-operator>": alts(
			"||", "*", "/", "%", "+", "-", "&", "|", "<<", ">>",
			"<", ">", "<=", ">=", "=", "==", "!=",
		),
		"<unary-operator>": alts("~", "+", "-"),
		"<collation-name>": alts("RTRIM", "NOCASE", "BINARY"),
	}
}

func windowRules() grammar.Rules {
	return grammar.Rules{
		"<window-defn>": alts(
			"()",
			"( <base-window-name> )",
			"( PARTITION BY <expr>)",
			"( <base-window-name> PARTITION BY <expr>)",
			"( ORDER BY <ordering-term>)",
			"( <base-window-name> ORDER BY <ordering-term>)",
			"( PARTITION BY <exprs> ORDER BY <ordering-term>)",
			"( <base-window-name> PARTITION BY <exprs> ORDER BY <ordering-term>)",
			"(<frame-spec>)",
			"( <base-window-name> <frame-spec>)",
			"( PARTITION BY <expr> <frame-spec>)",
			"( <base-window-name> PARTITION BY <expr> <frame-spec>)",
			"( ORDER BY <ordering-term> <frame-spec>)",
			"( <base-window-name> ORDER BY <ordering-term> <frame-spec>)",
			"( PARTITION BY <expr> ORDER BY <ordering-term> <frame-spec>)",
			"( <base-window-name> PARTITION BY <expr> ORDER BY <ordering-term> <frame-spec>)",
		),
		"<frame-spec>": alts(
			"<frame-unit> BETWEEN <frame-start> AND <frame-end> <frame-exclude>",
			"<frame-unit> UNBOUNDED PRECEDING <frame-exclude>",
			"<frame-unit> <expr> PRECEDING <frame-exclude>",
			"<frame-unit> CURRENT ROW <frame-exclude>",
		),
		"<frame-start>": alts("UNBOUNDED PRECEDING", "<expr> PRECEDING", "CURRENT ROW", "<expr> FOLLOWING"),
		"<frame-end>":   alts("<expr> PRECEDING", "CURRENT ROW", "<expr> FOLLOWING", "UNBOUNDED FOLLOWING"),
		"<frame-unit>":  alts("RANGE", "ROWS", "GROUPS"),
		"<frame-exclude>": alts(
			"EXCLUDE NO OTHERS",
			"EXCLUDE CURRENT ROW",
			"EXCLUDE GROUP",
			"EXCLUDE TIES",
		),
	}
}

func literalRules() grammar.Rules {
	return grammar.Rules{
		"<literal-value>": alts(
			"NULL",
			"TRUE",
			"FALSE",
			"<numeric-literal>",
			"<string-literal>",
			"CURRENT_TIME",
			"CURRENT_DATE",
			"CURRENT_TIMESTAMP",
		),
		"<signed-number>": alts("<numeric-literal>", "+ <numeric-literal>", "- <numeric-literal>"),
		"<numeric-literal>": alts(
			"0x<hexdigits>",
			"0X<hexdigits>",
			".<digits><exponent>",
			"<digits><exponent>",
			"<digits>.<digits><exponent>",
		),
		"<digits>":    alts("<digit><digits>", "<digit>"),
		"<hexdigits>": alts("<hexdigit><hexdigits>", "<hexdigit>"),
		"<exponent>": alts(
			"",
			"E<digits>",
			"E+<digits>",
			"E-<digits>",
			"e<digits>",
			"e+<digits>",
			"e-<digits>",
		),
		"<digit>":          chars("0123456789"),
		"<hexdigit>":       chars("0123456789ABCDEF"),
		"<string-literal>": alts("'<characters>'"),
		"<characters>":     alts("<character><characters>", "<character><character><character>"),
		"<character>":      chars("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"),
	}
}

func identifierRules(b binder) grammar.Rules {
	return grammar.Rules{
		"<new-table-name>":   {grammar.Alt("<characters>", b.ident((*schema.Processor).AllocateTableName))},
		"<table-name>":       {grammar.Alt("<characters>", b.ident((*schema.Processor).PickTableName))},
		"<new-column-name>":  {grammar.Alt("<characters>", b.ident((*schema.Processor).AllocateColumnName))},
		"<column-name>":      {grammar.Alt("<characters>", b.ident((*schema.Processor).PickColumnName))},
		"<new-index-name>":   {grammar.Alt("<characters>", b.ident((*schema.Processor).AllocateIndexName))},
		"<index-name>":       alts("<characters>"),
		"<view-name>":        alts("<characters>"),
		"<window-name>":      alts("<characters>"),
		"<base-window-name>": alts("<characters>"),
		"<table-alias>":      alts("<characters>"),
		"<column-alias>":     alts("<characters>"),
	}
}

func pragmaRules() grammar.Rules {
	return grammar.Rules{
		"<pragma-stmt>": alts(
			"PRAGMA <pragma-name> = <pragma-value>",
			"PRAGMA <pragma-name> ( <pragma-value> )",
		),
		"<pragma-value>": alts("<signed-number>", "<string-literal>"),
		"<pragma-name>":  alts("<characters>"),
	}
}
