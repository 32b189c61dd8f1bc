package explorer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rivo/tview"

	"github.com/kadirbelkuyu/schemasync/internal/schema"
)

type EntryKind int

const (
	KindTable EntryKind = iota
	KindEnum
)

type EntryStatus int

const (
	StatusSame EntryStatus = iota
	StatusOnlyDB1
	StatusOnlyDB2
	StatusChanged
)

func (s EntryStatus) marker() string {
	switch s {
	case StatusOnlyDB1:
		return "<"
	case StatusOnlyDB2:
		return ">"
	case StatusChanged:
		return "~"
	default:
		return "="
	}
}

func (s EntryStatus) color() string {
	switch s {
	case StatusOnlyDB1:
		return "green"
	case StatusOnlyDB2:
		return "aqua"
	case StatusChanged:
		return "yellow"
	default:
		return "gray"
	}
}

// Entry is one row of the object list.
type Entry struct {
	Kind   EntryKind
	Name   string
	Status EntryStatus
}

func (e Entry) Label() string {
	prefix := ""
	if e.Kind == KindEnum {
		prefix = "enum "
	}
	return fmt.Sprintf("[%s]%s[-] %s%s", e.Status.color(), e.Status.marker(), prefix, tview.Escape(e.Name))
}

// BuildEntries lists tables then enums, each group sorted by name. Identical
// objects are included only when showSame is set.
func BuildEntries(d *schema.SchemaDiff, showSame bool) []Entry {
	if d == nil {
		return nil
	}

	var tables []Entry
	for _, name := range d.TablesOnlyInDB1 {
		tables = append(tables, Entry{Kind: KindTable, Name: name, Status: StatusOnlyDB1})
	}
	for _, name := range d.TablesOnlyInDB2 {
		tables = append(tables, Entry{Kind: KindTable, Name: name, Status: StatusOnlyDB2})
	}
	d.TablesInBoth.Each(func(name string, t schema.TableDiff) {
		switch {
		case t.HasDifferences():
			tables = append(tables, Entry{Kind: KindTable, Name: name, Status: StatusChanged})
		case showSame:
			tables = append(tables, Entry{Kind: KindTable, Name: name, Status: StatusSame})
		}
	})

	var enums []Entry
	for _, name := range d.EnumsOnlyInDB1 {
		enums = append(enums, Entry{Kind: KindEnum, Name: name, Status: StatusOnlyDB1})
	}
	for _, name := range d.EnumsOnlyInDB2 {
		enums = append(enums, Entry{Kind: KindEnum, Name: name, Status: StatusOnlyDB2})
	}
	d.EnumsInBoth.Each(func(name string, c schema.Comparison[[]string]) {
		switch {
		case c.Diff:
			enums = append(enums, Entry{Kind: KindEnum, Name: name, Status: StatusChanged})
		case showSame:
			enums = append(enums, Entry{Kind: KindEnum, Name: name, Status: StatusSame})
		}
	})

	byName := func(list []Entry) {
		sort.SliceStable(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	}
	byName(tables)
	byName(enums)
	return append(tables, enums...)
}

// Details renders the comparison of one entry as tview-tagged text.
func Details(in Input, e Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[::b]%s[-:-:-]\n", tview.Escape(e.Name))

	if e.Kind == KindEnum {
		writeEnumDetails(&b, in, e)
		return b.String()
	}

	switch e.Status {
	case StatusOnlyDB1:
		fmt.Fprintf(&b, "Only in %s\n\n", tview.Escape(in.DB1))
		writeTableShape(&b, in.Snapshot1, e.Name)
	case StatusOnlyDB2:
		fmt.Fprintf(&b, "Only in %s\n\n", tview.Escape(in.DB2))
		writeTableShape(&b, in.Snapshot2, e.Name)
	default:
		t, _ := in.Diff.TablesInBoth.Get(e.Name)
		if !t.HasDifferences() {
			b.WriteString("Identical on both sides.\n\n")
			writeTableShape(&b, in.Snapshot1, e.Name)
			break
		}
		writeTableDiff(&b, t)
	}
	return b.String()
}

func writeEnumDetails(b *strings.Builder, in Input, e Entry) {
	labels := func(s *schema.Snapshot) string {
		if s == nil {
			return "-"
		}
		return tview.Escape(strings.Join(s.Enums[e.Name], ", "))
	}
	switch e.Status {
	case StatusOnlyDB1:
		fmt.Fprintf(b, "Only in DB1: %s\n", labels(in.Snapshot1))
	case StatusOnlyDB2:
		fmt.Fprintf(b, "Only in DB2: %s\n", labels(in.Snapshot2))
	default:
		c, _ := in.Diff.EnumsInBoth.Get(e.Name)
		fmt.Fprintf(b, "DB1: %s\nDB2: %s\n", tview.Escape(strings.Join(c.DB1, ", ")), tview.Escape(strings.Join(c.DB2, ", ")))
	}
}

func writeTableShape(b *strings.Builder, snap *schema.Snapshot, table string) {
	if snap == nil {
		b.WriteString("(snapshot unavailable)\n")
		return
	}
	info, ok := snap.Tables.Get(table)
	if !ok {
		b.WriteString("(table not captured)\n")
		return
	}

	b.WriteString("[::u]Columns[-:-:-]\n")
	info.Columns.Each(func(name string, c schema.ColumnInfo) {
		fmt.Fprintf(b, "  %-24s %s\n", tview.Escape(name), tview.Escape(describeColumn(c)))
	})

	indexes := snap.TableIndexes(table)
	if len(indexes) > 0 {
		b.WriteString("[::u]Indexes[-:-:-]\n")
		for _, name := range sortedKeys(indexes) {
			fmt.Fprintf(b, "  %s\n", tview.Escape(indexes[name].Definition))
		}
	}

	fks := snap.TableForeignKeys(table)
	if len(fks) > 0 {
		b.WriteString("[::u]Foreign keys[-:-:-]\n")
		for _, name := range sortedKeys(fks) {
			fmt.Fprintf(b, "  %s %s\n", tview.Escape(name), tview.Escape(describeForeignKey(fks[name])))
		}
	}
}

func writeTableDiff(b *strings.Builder, t schema.TableDiff) {
	section := func(title string) {
		fmt.Fprintf(b, "[::u]%s[-:-:-]\n", title)
	}
	only := func(label string, status EntryStatus, names []string) {
		for _, n := range names {
			fmt.Fprintf(b, "  [%s]%s[-] %s %s\n", status.color(), status.marker(), label, tview.Escape(n))
		}
	}

	if len(t.ColumnsOnlyInDB1)+len(t.ColumnsOnlyInDB2) > 0 || hasChanged(t.ColumnsInBoth) {
		section("Columns")
		only("column", StatusOnlyDB1, t.ColumnsOnlyInDB1)
		only("column", StatusOnlyDB2, t.ColumnsOnlyInDB2)
		t.ColumnsInBoth.Each(func(name string, c schema.Comparison[schema.ColumnInfo]) {
			if c.Diff {
				fmt.Fprintf(b, "  [yellow]~[-] %s\n      DB1: %s\n      DB2: %s\n", tview.Escape(name),
					tview.Escape(describeColumn(c.DB1)), tview.Escape(describeColumn(c.DB2)))
			}
		})
	}

	if len(t.IndexesOnlyInDB1)+len(t.IndexesOnlyInDB2) > 0 || hasChanged(t.IndexesInBoth) {
		section("Indexes")
		only("index", StatusOnlyDB1, t.IndexesOnlyInDB1)
		only("index", StatusOnlyDB2, t.IndexesOnlyInDB2)
		t.IndexesInBoth.Each(func(name string, c schema.Comparison[schema.IndexInfo]) {
			if c.Diff {
				fmt.Fprintf(b, "  [yellow]~[-] %s\n      DB1: %s\n      DB2: %s\n", tview.Escape(name),
					tview.Escape(c.DB1.Definition), tview.Escape(c.DB2.Definition))
			}
		})
	}

	if len(t.FKsOnlyInDB1)+len(t.FKsOnlyInDB2) > 0 || hasChanged(t.FKsInBoth) {
		section("Foreign keys")
		only("foreign key", StatusOnlyDB1, t.FKsOnlyInDB1)
		only("foreign key", StatusOnlyDB2, t.FKsOnlyInDB2)
		t.FKsInBoth.Each(func(name string, c schema.Comparison[schema.ForeignKeyInfo]) {
			if c.Diff {
				fmt.Fprintf(b, "  [yellow]~[-] %s\n      DB1: %s\n      DB2: %s\n", tview.Escape(name),
					tview.Escape(describeForeignKey(c.DB1)), tview.Escape(describeForeignKey(c.DB2)))
			}
		})
	}
}

func hasChanged[T any](m schema.OrderedMap[schema.Comparison[T]]) bool {
	changed := false
	m.Each(func(_ string, c schema.Comparison[T]) {
		changed = changed || c.Diff
	})
	return changed
}

func describeColumn(c schema.ColumnInfo) string {
	s := schema.PostgresDialect.ColumnType(schema.ColumnInfo{
		DataType:         c.DataType,
		MaxLength:        c.MaxLength,
		NumericPrecision: c.NumericPrecision,
		NumericScale:     c.NumericScale,
	})
	if c.IsNullable {
		s += " NULL"
	} else {
		s += " NOT NULL"
	}
	if c.Default != nil && strings.TrimSpace(*c.Default) != "" {
		s += " DEFAULT " + *c.Default
	}
	return s
}

func describeForeignKey(fk schema.ForeignKeyInfo) string {
	return fmt.Sprintf("(%s) -> %s(%s)", strings.Join(fk.Columns, ", "), fk.ReferencedTable, strings.Join(fk.ReferencedColumns, ", "))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
