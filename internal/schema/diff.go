package schema

import (
	"slices"
	"sort"
	"strings"
)

// Comparison pairs one object as seen in both databases.
type Comparison[T any] struct {
	DB1  T    `json:"db1" yaml:"db1"`
	DB2  T    `json:"db2" yaml:"db2"`
	Diff bool `json:"diff" yaml:"diff"`
}

// TableDiff is the comparison block of one table present in both databases.
type TableDiff struct {
	ColumnsOnlyInDB1 []string                               `json:"columns_only_in_db1" yaml:"columns_only_in_db1"`
	ColumnsOnlyInDB2 []string                               `json:"columns_only_in_db2" yaml:"columns_only_in_db2"`
	ColumnsInBoth    OrderedMap[Comparison[ColumnInfo]]     `json:"columns_in_both" yaml:"columns_in_both"`
	IndexesOnlyInDB1 []string                               `json:"indexes_only_in_db1" yaml:"indexes_only_in_db1"`
	IndexesOnlyInDB2 []string                               `json:"indexes_only_in_db2" yaml:"indexes_only_in_db2"`
	IndexesInBoth    OrderedMap[Comparison[IndexInfo]]      `json:"indexes_in_both" yaml:"indexes_in_both"`
	FKsOnlyInDB1     []string                               `json:"fks_only_in_db1" yaml:"fks_only_in_db1"`
	FKsOnlyInDB2     []string                               `json:"fks_only_in_db2" yaml:"fks_only_in_db2"`
	FKsInBoth        OrderedMap[Comparison[ForeignKeyInfo]] `json:"fks_in_both" yaml:"fks_in_both"`
}

// SchemaDiff is the result of comparing two snapshots.
type SchemaDiff struct {
	TablesOnlyInDB1 []string                         `json:"tables_only_in_db1" yaml:"tables_only_in_db1"`
	TablesOnlyInDB2 []string                         `json:"tables_only_in_db2" yaml:"tables_only_in_db2"`
	TablesInBoth    OrderedMap[TableDiff]            `json:"tables_in_both" yaml:"tables_in_both"`
	EnumsOnlyInDB1  []string                         `json:"enums_only_in_db1" yaml:"enums_only_in_db1"`
	EnumsOnlyInDB2  []string                         `json:"enums_only_in_db2" yaml:"enums_only_in_db2"`
	EnumsInBoth     OrderedMap[Comparison[[]string]] `json:"enums_in_both" yaml:"enums_in_both"`
}

// Diff compares a (database 1) with b (database 2). It never mutates its
// inputs and a nil snapshot reads as empty.
func Diff(a, b *Snapshot) *SchemaDiff {
	if a == nil {
		a = &Snapshot{}
	}
	if b == nil {
		b = &Snapshot{}
	}

	d := &SchemaDiff{
		TablesOnlyInDB1: sortedMissing(a.Tables.Keys(), b.Tables.Has),
		TablesOnlyInDB2: sortedMissing(b.Tables.Keys(), a.Tables.Has),
		EnumsOnlyInDB1:  sortedMissing(mapKeys(a.Enums), hasKey(b.Enums)),
		EnumsOnlyInDB2:  sortedMissing(mapKeys(b.Enums), hasKey(a.Enums)),
	}

	a.Tables.Each(func(name string, t1 TableInfo) {
		t2, ok := b.Tables.Get(name)
		if !ok {
			return
		}
		d.TablesInBoth.Set(name, diffTable(a, b, name, t1, t2))
	})

	for _, name := range sortedCommon(a.Enums, b.Enums) {
		l1, l2 := a.Enums[name], b.Enums[name]
		d.EnumsInBoth.Set(name, Comparison[[]string]{DB1: l1, DB2: l2, Diff: !slices.Equal(l1, l2)})
	}
	return d
}

func diffTable(a, b *Snapshot, name string, t1, t2 TableInfo) TableDiff {
	block := TableDiff{
		ColumnsOnlyInDB1: orderedMissing(t1.Columns.Keys(), t2.Columns.Has),
		ColumnsOnlyInDB2: orderedMissing(t2.Columns.Keys(), t1.Columns.Has),
	}
	t1.Columns.Each(func(col string, c1 ColumnInfo) {
		c2, ok := t2.Columns.Get(col)
		if !ok {
			return
		}
		block.ColumnsInBoth.Set(col, Comparison[ColumnInfo]{DB1: c1, DB2: c2, Diff: !sameColumn(c1, c2)})
	})

	idx1, idx2 := a.TableIndexes(name), b.TableIndexes(name)
	block.IndexesOnlyInDB1 = sortedMissing(mapKeys(idx1), hasKey(idx2))
	block.IndexesOnlyInDB2 = sortedMissing(mapKeys(idx2), hasKey(idx1))
	for _, idx := range sortedCommon(idx1, idx2) {
		i1, i2 := idx1[idx], idx2[idx]
		block.IndexesInBoth.Set(idx, Comparison[IndexInfo]{DB1: i1, DB2: i2, Diff: !sameIndex(i1, i2)})
	}

	fk1, fk2 := a.TableForeignKeys(name), b.TableForeignKeys(name)
	block.FKsOnlyInDB1 = sortedMissing(mapKeys(fk1), hasKey(fk2))
	block.FKsOnlyInDB2 = sortedMissing(mapKeys(fk2), hasKey(fk1))
	for _, fk := range sortedCommon(fk1, fk2) {
		f1, f2 := fk1[fk], fk2[fk]
		block.FKsInBoth.Set(fk, Comparison[ForeignKeyInfo]{DB1: f1, DB2: f2, Diff: !sameForeignKey(f1, f2)})
	}
	return block
}

func sameColumn(c1, c2 ColumnInfo) bool {
	return c1.DataType == c2.DataType &&
		c1.IsNullable == c2.IsNullable &&
		normalizeDefault(c1.Default) == normalizeDefault(c2.Default) &&
		sameInt(c1.MaxLength, c2.MaxLength) &&
		sameInt(c1.NumericPrecision, c2.NumericPrecision) &&
		sameInt(c1.NumericScale, c2.NumericScale)
}

func sameIndex(i1, i2 IndexInfo) bool {
	return strings.TrimSpace(i1.Definition) == strings.TrimSpace(i2.Definition) &&
		i1.IsUnique == i2.IsUnique &&
		i1.IsPrimary == i2.IsPrimary
}

func sameForeignKey(f1, f2 ForeignKeyInfo) bool {
	return f1.ReferencedTable == f2.ReferencedTable &&
		slices.Equal(f1.Columns, f2.Columns) &&
		slices.Equal(f1.ReferencedColumns, f2.ReferencedColumns)
}

// normalizeDefault folds a missing, empty or blank default into "".
func normalizeDefault(def *string) string {
	if def == nil {
		return ""
	}
	return strings.TrimSpace(*def)
}

func sameInt(x, y *int) bool {
	if x == nil || y == nil {
		return x == nil && y == nil
	}
	return *x == *y
}

func mapKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func hasKey[V any](m map[string]V) func(string) bool {
	return func(k string) bool {
		_, ok := m[k]
		return ok
	}
}

// orderedMissing keeps the keys absent from the other side in their original order.
func orderedMissing(keys []string, has func(string) bool) []string {
	out := []string{}
	for _, k := range keys {
		if !has(k) {
			out = append(out, k)
		}
	}
	return out
}

func sortedMissing(keys []string, has func(string) bool) []string {
	out := orderedMissing(keys, has)
	sort.Strings(out)
	return out
}

func sortedCommon[V any](m1, m2 map[string]V) []string {
	out := []string{}
	for k := range m1 {
		if _, ok := m2[k]; ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// DiffStats counts the differences in a SchemaDiff.
type DiffStats struct {
	TablesOnlyInDB1 int `json:"tables_only_in_db1"`
	TablesOnlyInDB2 int `json:"tables_only_in_db2"`
	TablesChanged   int `json:"tables_changed"`
	ColumnsOnly     int `json:"columns_only"`
	ColumnsChanged  int `json:"columns_changed"`
	IndexesOnly     int `json:"indexes_only"`
	IndexesChanged  int `json:"indexes_changed"`
	FKsOnly         int `json:"fks_only"`
	FKsChanged      int `json:"fks_changed"`
	EnumsOnlyInDB1  int `json:"enums_only_in_db1"`
	EnumsOnlyInDB2  int `json:"enums_only_in_db2"`
	EnumsChanged    int `json:"enums_changed"`
}

// Total is the number of reported differences of any kind.
func (s DiffStats) Total() int {
	return s.TablesOnlyInDB1 + s.TablesOnlyInDB2 + s.ColumnsOnly + s.ColumnsChanged +
		s.IndexesOnly + s.IndexesChanged + s.FKsOnly + s.FKsChanged +
		s.EnumsOnlyInDB1 + s.EnumsOnlyInDB2 + s.EnumsChanged
}

func (d *SchemaDiff) Stats() DiffStats {
	s := DiffStats{
		TablesOnlyInDB1: len(d.TablesOnlyInDB1),
		TablesOnlyInDB2: len(d.TablesOnlyInDB2),
		EnumsOnlyInDB1:  len(d.EnumsOnlyInDB1),
		EnumsOnlyInDB2:  len(d.EnumsOnlyInDB2),
	}
	d.TablesInBoth.Each(func(_ string, t TableDiff) {
		if t.HasDifferences() {
			s.TablesChanged++
		}
		s.ColumnsOnly += len(t.ColumnsOnlyInDB1) + len(t.ColumnsOnlyInDB2)
		s.IndexesOnly += len(t.IndexesOnlyInDB1) + len(t.IndexesOnlyInDB2)
		s.FKsOnly += len(t.FKsOnlyInDB1) + len(t.FKsOnlyInDB2)
		s.ColumnsChanged += countChanged(t.ColumnsInBoth)
		s.IndexesChanged += countChanged(t.IndexesInBoth)
		s.FKsChanged += countChanged(t.FKsInBoth)
	})
	s.EnumsChanged = countChanged(d.EnumsInBoth)
	return s
}

// HasDifferences reports whether the two snapshots differ at all.
func (d *SchemaDiff) HasDifferences() bool {
	return d.Stats().Total() > 0
}

// HasDifferences reports whether the table block carries any difference.
func (t TableDiff) HasDifferences() bool {
	return len(t.ColumnsOnlyInDB1)+len(t.ColumnsOnlyInDB2)+
		len(t.IndexesOnlyInDB1)+len(t.IndexesOnlyInDB2)+
		len(t.FKsOnlyInDB1)+len(t.FKsOnlyInDB2) > 0 ||
		countChanged(t.ColumnsInBoth)+countChanged(t.IndexesInBoth)+countChanged(t.FKsInBoth) > 0
}

func countChanged[T any](m OrderedMap[Comparison[T]]) int {
	n := 0
	m.Each(func(_ string, c Comparison[T]) {
		if c.Diff {
			n++
		}
	})
	return n
}
