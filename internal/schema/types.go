package schema

import (
	"fmt"
	"strings"
)

// Snapshot is one point-in-time capture of a database's structure. Readers
// build it once; the differ and the synthesizer only read it.
type Snapshot struct {
	// Tables is keyed by qualified name ("schema.table") in catalog order.
	Tables      OrderedMap[TableInfo]                `json:"tables" yaml:"tables"`
	Indexes     map[string]map[string]IndexInfo      `json:"indexes" yaml:"indexes"`
	ForeignKeys map[string]map[string]ForeignKeyInfo `json:"foreign_keys" yaml:"foreign_keys"`
	// Enums maps a qualified type name to its labels in sort order.
	Enums map[string][]string `json:"enums" yaml:"enums"`
}

type TableInfo struct {
	Columns OrderedMap[ColumnInfo] `json:"columns" yaml:"columns"`
}

type ColumnInfo struct {
	DataType         string  `json:"data_type" yaml:"data_type"`
	IsNullable       bool    `json:"is_nullable" yaml:"is_nullable"`
	Default          *string `json:"column_default" yaml:"column_default"`
	MaxLength        *int    `json:"character_maximum_length" yaml:"character_maximum_length"`
	NumericPrecision *int    `json:"numeric_precision" yaml:"numeric_precision"`
	NumericScale     *int    `json:"numeric_scale" yaml:"numeric_scale"`
}

type IndexInfo struct {
	IsUnique   bool     `json:"is_unique" yaml:"is_unique"`
	IsPrimary  bool     `json:"is_primary" yaml:"is_primary"`
	IndexType  string   `json:"index_type" yaml:"index_type"`
	Definition string   `json:"index_def" yaml:"index_def"`
	Columns    []string `json:"columns" yaml:"columns"`
}

type ForeignKeyInfo struct {
	ConstraintName    string   `json:"constraint_name" yaml:"constraint_name"`
	Columns           []string `json:"columns" yaml:"columns"`
	ReferencedTable   string   `json:"referenced_table" yaml:"referenced_table"`
	ReferencedColumns []string `json:"referenced_columns" yaml:"referenced_columns"`
}

// NewSnapshot returns an empty snapshot with every map allocated.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Indexes:     make(map[string]map[string]IndexInfo),
		ForeignKeys: make(map[string]map[string]ForeignKeyInfo),
		Enums:       make(map[string][]string),
	}
}

// AddColumn appends a column to table, creating the table on first use.
// Readers call it in ordinal order.
func (s *Snapshot) AddColumn(table, column string, info ColumnInfo) {
	t, _ := s.Tables.Get(table)
	t.Columns.Set(column, info)
	s.Tables.Set(table, t)
}

// AddTable registers a table that may have no columns yet.
func (s *Snapshot) AddTable(table string) {
	if !s.Tables.Has(table) {
		s.Tables.Set(table, TableInfo{})
	}
}

func (s *Snapshot) AddIndex(table, name string, info IndexInfo) {
	if s.Indexes == nil {
		s.Indexes = make(map[string]map[string]IndexInfo)
	}
	if s.Indexes[table] == nil {
		s.Indexes[table] = make(map[string]IndexInfo)
	}
	s.Indexes[table][name] = info
}

func (s *Snapshot) AddForeignKey(table, name string, info ForeignKeyInfo) {
	if s.ForeignKeys == nil {
		s.ForeignKeys = make(map[string]map[string]ForeignKeyInfo)
	}
	if s.ForeignKeys[table] == nil {
		s.ForeignKeys[table] = make(map[string]ForeignKeyInfo)
	}
	if info.ConstraintName == "" {
		info.ConstraintName = name
	}
	s.ForeignKeys[table][name] = info
}

// AddEnumLabel appends label to the enum type, creating it on first use.
func (s *Snapshot) AddEnumLabel(enum, label string) {
	if s.Enums == nil {
		s.Enums = make(map[string][]string)
	}
	s.Enums[enum] = append(s.Enums[enum], label)
}

// TableIndexes returns the indexes of table; missing entries read as empty.
func (s *Snapshot) TableIndexes(table string) map[string]IndexInfo {
	if s == nil || s.Indexes == nil {
		return nil
	}
	return s.Indexes[table]
}

// TableForeignKeys returns the foreign keys of table; missing entries read as empty.
func (s *Snapshot) TableForeignKeys(table string) map[string]ForeignKeyInfo {
	if s == nil || s.ForeignKeys == nil {
		return nil
	}
	return s.ForeignKeys[table]
}

// Summary counts the objects held by the snapshot.
type Summary struct {
	Tables      int `json:"tables"`
	Columns     int `json:"columns"`
	Indexes     int `json:"indexes"`
	ForeignKeys int `json:"foreign_keys"`
	Enums       int `json:"enums"`
}

func (s *Snapshot) Summary() Summary {
	sum := Summary{Tables: s.Tables.Len(), Enums: len(s.Enums)}
	s.Tables.Each(func(_ string, t TableInfo) {
		sum.Columns += t.Columns.Len()
	})
	for _, idx := range s.Indexes {
		sum.Indexes += len(idx)
	}
	for _, fks := range s.ForeignKeys {
		sum.ForeignKeys += len(fks)
	}
	return sum
}

func (s Summary) String() string {
	return fmt.Sprintf("%d tables, %d columns, %d indexes, %d foreign keys, %d enums",
		s.Tables, s.Columns, s.Indexes, s.ForeignKeys, s.Enums)
}

// SplitQualified splits "schema.object" once on the first separator. A name
// without a separator has an empty schema.
func SplitQualified(name string) (schemaName, object string) {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// Qualify joins a schema and object name.
func Qualify(schemaName, object string) string {
	if schemaName == "" {
		return object
	}
	return schemaName + "." + object
}
