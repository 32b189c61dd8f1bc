package schema

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/kadirbelkuyu/schemasync/internal/errs"
)

// NoChangesStatement is returned when the target already has everything the
// source has.
const NoChangesStatement = "-- No changes needed: target already contains every object from the source."

// Direction selects which database is the source of additive DDL.
type Direction string

const (
	// AtoB makes database 1 the source and database 2 the target.
	AtoB Direction = "AtoB"
	// BtoA makes database 2 the source and database 1 the target.
	BtoA Direction = "BtoA"
)

func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case AtoB, BtoA:
		return Direction(s), nil
	}
	return "", errs.Newf(errs.ErrKindUnknownDirection, "unknown sync direction %q: expected %s or %s", s, AtoB, BtoA)
}

type ChangeKind int

const (
	CreateEnum ChangeKind = iota
	CreateTable
	AddColumn
	CreateIndex
	AddPrimaryKey
	AddForeignKey
	AddEnumValue
)

func (k ChangeKind) String() string {
	switch k {
	case CreateEnum:
		return "create_enum"
	case CreateTable:
		return "create_table"
	case AddColumn:
		return "add_column"
	case CreateIndex:
		return "create_index"
	case AddPrimaryKey:
		return "add_primary_key"
	case AddForeignKey:
		return "add_foreign_key"
	case AddEnumValue:
		return "add_enum_value"
	default:
		return "unknown"
	}
}

// Change is one additive operation on the target database. Which fields are
// set depends on Kind:
//
//	CreateEnum     Name, Labels
//	CreateTable    Table, Definition, Name+Index when a primary key is known
//	AddColumn      Table, Name, Column
//	CreateIndex    Table, Name, Index
//	AddPrimaryKey  Table, Name, Index
//	AddForeignKey  Table, Name, ForeignKey
//	AddEnumValue   Name, Labels (a single label)
type Change struct {
	Kind       ChangeKind
	Table      string
	Name       string
	Column     ColumnInfo
	Definition TableInfo
	Index      IndexInfo
	ForeignKey ForeignKeyInfo
	Labels     []string
}

func (c Change) String() string {
	switch c.Kind {
	case CreateEnum, AddEnumValue:
		return fmt.Sprintf("%s %s %v", c.Kind, c.Name, c.Labels)
	case CreateTable:
		return fmt.Sprintf("%s %s", c.Kind, c.Table)
	default:
		return fmt.Sprintf("%s %s.%s", c.Kind, c.Table, c.Name)
	}
}

// Plan lists the changes that make the target side of dir contain every
// object of the source side. Changes come in a fixed order: enums, tables,
// columns, indexes and primary keys, foreign keys, enum values.
func Plan(d *SchemaDiff, db1, db2 *Snapshot, dir Direction) ([]Change, error) {
	if _, err := ParseDirection(string(dir)); err != nil {
		return nil, err
	}
	if d == nil {
		d = Diff(db1, db2)
	}

	src := db1
	tablesOnly, enumsOnly := d.TablesOnlyInDB1, d.EnumsOnlyInDB1
	columnsOnly := func(t TableDiff) []string { return t.ColumnsOnlyInDB1 }
	indexesOnly := func(t TableDiff) []string { return t.IndexesOnlyInDB1 }
	fksOnly := func(t TableDiff) []string { return t.FKsOnlyInDB1 }
	labels := func(c Comparison[[]string]) ([]string, []string) { return c.DB1, c.DB2 }
	if dir == BtoA {
		src = db2
		tablesOnly, enumsOnly = d.TablesOnlyInDB2, d.EnumsOnlyInDB2
		columnsOnly = func(t TableDiff) []string { return t.ColumnsOnlyInDB2 }
		indexesOnly = func(t TableDiff) []string { return t.IndexesOnlyInDB2 }
		fksOnly = func(t TableDiff) []string { return t.FKsOnlyInDB2 }
		labels = func(c Comparison[[]string]) ([]string, []string) { return c.DB2, c.DB1 }
	}
	if src == nil {
		src = &Snapshot{}
	}

	var changes []Change

	for _, name := range enumsOnly {
		changes = append(changes, Change{Kind: CreateEnum, Name: name, Labels: append([]string(nil), src.Enums[name]...)})
	}

	for _, table := range tablesOnly {
		info, _ := src.Tables.Get(table)
		c := Change{Kind: CreateTable, Table: table, Definition: info}
		if name, pk, ok := primaryIndex(src.TableIndexes(table)); ok {
			c.Name, c.Index = name, pk
		}
		changes = append(changes, c)
	}

	d.TablesInBoth.Each(func(table string, block TableDiff) {
		info, _ := src.Tables.Get(table)
		for _, col := range columnsOnly(block) {
			ci, ok := info.Columns.Get(col)
			if !ok {
				continue
			}
			changes = append(changes, Change{Kind: AddColumn, Table: table, Name: col, Column: ci})
		}
	})

	for _, table := range tablesOnly {
		indexes := src.TableIndexes(table)
		for _, name := range sortedNames(indexes) {
			if !indexes[name].IsPrimary {
				changes = append(changes, Change{Kind: CreateIndex, Table: table, Name: name, Index: indexes[name]})
			}
		}
	}
	d.TablesInBoth.Each(func(table string, block TableDiff) {
		indexes := src.TableIndexes(table)
		for _, name := range indexesOnly(block) {
			idx, ok := indexes[name]
			if !ok {
				continue
			}
			kind := CreateIndex
			if idx.IsPrimary {
				kind = AddPrimaryKey
			}
			changes = append(changes, Change{Kind: kind, Table: table, Name: name, Index: idx})
		}
	})

	for _, table := range tablesOnly {
		fks := src.TableForeignKeys(table)
		for _, name := range sortedNames(fks) {
			changes = append(changes, Change{Kind: AddForeignKey, Table: table, Name: name, ForeignKey: fks[name]})
		}
	}
	d.TablesInBoth.Each(func(table string, block TableDiff) {
		fks := src.TableForeignKeys(table)
		for _, name := range fksOnly(block) {
			fk, ok := fks[name]
			if !ok {
				continue
			}
			changes = append(changes, Change{Kind: AddForeignKey, Table: table, Name: name, ForeignKey: fk})
		}
	})

	d.EnumsInBoth.Each(func(name string, cmp Comparison[[]string]) {
		if !cmp.Diff {
			return
		}
		source, target := labels(cmp)
		present := make(map[string]bool, len(target))
		for _, l := range target {
			present[l] = true
		}
		for _, l := range source {
			if !present[l] {
				changes = append(changes, Change{Kind: AddEnumValue, Name: name, Labels: []string{l}})
			}
		}
	})

	return changes, nil
}

func primaryIndex(indexes map[string]IndexInfo) (string, IndexInfo, bool) {
	for _, name := range sortedNames(indexes) {
		if indexes[name].IsPrimary {
			return name, indexes[name], true
		}
	}
	return "", IndexInfo{}, false
}

func sortedNames[V any](m map[string]V) []string {
	names := mapKeys(m)
	sort.Strings(names)
	return names
}

type synthOptions struct {
	dialect Dialect
	serial  bool
}

type SynthOption func(*synthOptions)

// WithDialect renders statements for the given engine. The default is
// PostgresDialect.
func WithDialect(d Dialect) SynthOption {
	return func(o *synthOptions) {
		if d != nil {
			o.dialect = d
		}
	}
}

// WithSerialColumns renders NOT NULL integer columns backed by a nextval()
// default as serial types on PostgreSQL and drops the default. Nullable
// columns keep their declared type and default.
func WithSerialColumns() SynthOption {
	return func(o *synthOptions) {
		o.serial = true
	}
}

// Synthesize renders the additive DDL for dir. The result is never empty: a
// single placeholder comment stands in when nothing needs to change.
func Synthesize(d *SchemaDiff, db1, db2 *Snapshot, dir Direction, opts ...SynthOption) ([]string, error) {
	o := synthOptions{dialect: PostgresDialect}
	for _, opt := range opts {
		opt(&o)
	}
	if sd, ok := o.dialect.(sqlDialect); ok && o.serial && sd.name == "postgres" {
		sd.serial = true
		o.dialect = sd
	}

	changes, err := Plan(d, db1, db2, dir)
	if err != nil {
		return nil, err
	}

	statements := make([]string, 0, len(changes))
	for _, c := range changes {
		if stmt, ok := o.dialect.Render(c); ok {
			statements = append(statements, stmt)
		}
	}
	if len(statements) == 0 {
		return []string{NoChangesStatement}, nil
	}
	return statements, nil
}

// Dialect turns a Change into one statement for a target engine. Render
// reports false for changes the engine has no statement for.
type Dialect interface {
	Name() string
	QuoteIdent(name string) string
	QualifiedName(name string) string
	ColumnType(c ColumnInfo) string
	Render(c Change) (string, bool)
}

var (
	PostgresDialect Dialect = sqlDialect{name: "postgres", quote: `"`, enumTypes: true, indexMethods: true}
	MySQLDialect    Dialect = sqlDialect{name: "mysql", quote: "`"}
)

// DialectFor maps a database type to its dialect.
func DialectFor(dbType string) (Dialect, error) {
	switch strings.ToLower(dbType) {
	case "postgres", "postgresql", "":
		return PostgresDialect, nil
	case "mysql", "mariadb":
		return MySQLDialect, nil
	}
	return nil, errs.Newf(errs.ErrKindConfiguration, "no DDL dialect for database type %q", dbType)
}

type sqlDialect struct {
	name         string
	quote        string
	enumTypes    bool
	indexMethods bool
	serial       bool
}

func (d sqlDialect) Name() string { return d.name }

func (d sqlDialect) QuoteIdent(name string) string {
	return d.quote + strings.ReplaceAll(name, d.quote, d.quote+d.quote) + d.quote
}

// QualifiedName leaves the schema part as is and quotes the object part.
func (d sqlDialect) QualifiedName(name string) string {
	schemaName, object := SplitQualified(name)
	if schemaName == "" {
		return d.QuoteIdent(object)
	}
	return schemaName + "." + d.QuoteIdent(object)
}

var integerTypes = map[string]bool{
	"smallint": true, "integer": true, "bigint": true, "int": true,
	"int2": true, "int4": true, "int8": true, "tinyint": true, "mediumint": true,
	"serial": true, "bigserial": true, "smallserial": true,
}

var serialTypes = map[string]string{
	"smallint": "smallserial", "int2": "smallserial",
	"integer": "serial", "int": "serial", "int4": "serial",
	"bigint": "bigserial", "int8": "bigserial",
}

func (d sqlDialect) ColumnType(c ColumnInfo) string {
	dataType := strings.TrimSpace(c.DataType)
	switch {
	case integerTypes[strings.ToLower(dataType)]:
		if d.serialColumn(c) {
			return serialTypes[strings.ToLower(dataType)]
		}
		return dataType
	case c.NumericPrecision != nil && c.NumericScale != nil:
		return fmt.Sprintf("numeric(%d,%d)", *c.NumericPrecision, *c.NumericScale)
	case c.MaxLength != nil:
		return fmt.Sprintf("%s(%d)", d.typeName(dataType), *c.MaxLength)
	default:
		return d.typeName(dataType)
	}
}

// typeName quotes user-defined types given as "schema.type", keeping any
// array suffix.
func (d sqlDialect) typeName(dataType string) string {
	base := strings.TrimSuffix(dataType, "[]")
	suffix := dataType[len(base):]
	if !strings.Contains(base, ".") || strings.ContainsAny(base, "( '\"`") {
		return dataType
	}
	return d.QualifiedName(base) + suffix
}

func isSequenceDefault(def *string) bool {
	return strings.HasPrefix(strings.ToLower(normalizeDefault(def)), "nextval(")
}

// serialColumn reports whether c is rendered as a serial type. serial implies
// NOT NULL, so nullable columns never qualify.
func (d sqlDialect) serialColumn(c ColumnInfo) bool {
	if !d.serial || c.IsNullable || !isSequenceDefault(c.Default) {
		return false
	}
	_, ok := serialTypes[strings.ToLower(strings.TrimSpace(c.DataType))]
	return ok
}

func (d sqlDialect) columnDef(name string, c ColumnInfo) string {
	var b strings.Builder
	b.WriteString(d.QuoteIdent(name))
	b.WriteByte(' ')
	b.WriteString(d.ColumnType(c))
	if !c.IsNullable {
		b.WriteString(" NOT NULL")
	}
	def := normalizeDefault(c.Default)
	if def != "" && !d.serialColumn(c) {
		b.WriteString(" DEFAULT ")
		b.WriteString(def)
	}
	return b.String()
}

func (d sqlDialect) Render(c Change) (string, bool) {
	switch c.Kind {
	case CreateEnum:
		if !d.enumTypes {
			return "", false
		}
		quoted := make([]string, len(c.Labels))
		for i, l := range c.Labels {
			quoted[i] = quoteLiteral(l)
		}
		return fmt.Sprintf("CREATE TYPE %s AS ENUM (%s);", d.QualifiedName(c.Name), strings.Join(quoted, ", ")), true

	case CreateTable:
		var lines []string
		c.Definition.Columns.Each(func(name string, col ColumnInfo) {
			lines = append(lines, "    "+d.columnDef(name, col))
		})
		if c.Index.IsPrimary && len(c.Index.Columns) > 0 {
			lines = append(lines, fmt.Sprintf("    CONSTRAINT %s PRIMARY KEY (%s)", d.QuoteIdent(c.Name), d.identList(c.Index.Columns)))
		}
		if len(lines) == 0 {
			return fmt.Sprintf("CREATE TABLE %s ();", d.QualifiedName(c.Table)), true
		}
		return fmt.Sprintf("CREATE TABLE %s (\n%s\n);", d.QualifiedName(c.Table), strings.Join(lines, ",\n")), true

	case AddColumn:
		return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", d.QualifiedName(c.Table), d.columnDef(c.Name, c.Column)), true

	case CreateIndex:
		stmt := d.createIndex(c)
		return stmt, stmt != ""

	case AddPrimaryKey:
		if len(c.Index.Columns) == 0 {
			stmt := withTerminator(c.Index.Definition)
			return stmt, stmt != ""
		}
		return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s PRIMARY KEY (%s);",
			d.QualifiedName(c.Table), d.QuoteIdent(c.Name), d.identList(c.Index.Columns)), true

	case AddForeignKey:
		return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s);",
			d.QualifiedName(c.Table), d.QuoteIdent(c.Name), d.identList(c.ForeignKey.Columns),
			d.QualifiedName(c.ForeignKey.ReferencedTable), d.identList(c.ForeignKey.ReferencedColumns)), true

	case AddEnumValue:
		if !d.enumTypes || len(c.Labels) == 0 {
			return "", false
		}
		return fmt.Sprintf("ALTER TYPE %s ADD VALUE IF NOT EXISTS %s;", d.QualifiedName(c.Name), quoteLiteral(c.Labels[0])), true
	}
	return "", false
}

func (d sqlDialect) createIndex(c Change) string {
	if len(c.Index.Columns) == 0 || keepsDefinition(c.Index.Definition) {
		return withTerminator(c.Index.Definition)
	}
	var b strings.Builder
	b.WriteString("CREATE ")
	if c.Index.IsUnique {
		b.WriteString("UNIQUE ")
	}
	fmt.Fprintf(&b, "INDEX %s ON %s", d.QuoteIdent(c.Name), d.QualifiedName(c.Table))
	if method := strings.ToLower(c.Index.IndexType); d.indexMethods && method != "" && method != "btree" {
		fmt.Fprintf(&b, " USING %s", method)
	}
	parts := make([]string, len(c.Index.Columns))
	for i, col := range c.Index.Columns {
		parts[i] = d.indexElement(col)
	}
	fmt.Fprintf(&b, " (%s);", strings.Join(parts, ", "))
	return b.String()
}

// keepsDefinition reports whether the catalog definition carries a predicate
// or covering columns that the key columns alone would lose.
func keepsDefinition(def string) bool {
	upper := strings.ToUpper(def)
	return strings.Contains(upper, " WHERE ") || strings.Contains(upper, " INCLUDE ")
}

var plainIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// indexElement quotes plain column names, keeps names the catalog already
// quoted, and parenthesises expressions.
func (d sqlDialect) indexElement(col string) string {
	switch {
	case plainIdent.MatchString(col):
		return d.QuoteIdent(col)
	case len(col) > 1 && strings.HasPrefix(col, d.quote) && strings.HasSuffix(col, d.quote):
		return col
	case strings.HasPrefix(col, "(") && strings.HasSuffix(col, ")"):
		return col
	default:
		return "(" + col + ")"
	}
}

func (d sqlDialect) identList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = d.QuoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func withTerminator(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	if stmt == "" || strings.HasSuffix(stmt, ";") {
		return stmt
	}
	return stmt + ";"
}
