package app

import (
	"fmt"
	"io"
	"strings"

	"github.com/kadirbelkuyu/schemasync/internal/schema"
)

// WriteComparison renders cmp as a plain-text report.
func WriteComparison(w io.Writer, cmp *Comparison) {
	d := cmp.Diff
	fmt.Fprintf(w, "Schema comparison %s\n", cmp.ID)
	fmt.Fprintf(w, "  %s: %s\n", SideDB1, cmp.DB1)
	fmt.Fprintf(w, "  %s: %s\n", SideDB2, cmp.DB2)
	fmt.Fprintln(w, strings.Repeat("=", 60))

	writeList(w, "Tables only in "+SideDB1, d.TablesOnlyInDB1)
	writeList(w, "Tables only in "+SideDB2, d.TablesOnlyInDB2)

	changed := 0
	d.TablesInBoth.Each(func(name string, t schema.TableDiff) {
		if !t.HasDifferences() {
			return
		}
		if changed == 0 {
			fmt.Fprintln(w, "\nTables with differences:")
		}
		changed++
		writeTableDiff(w, name, t)
	})

	writeList(w, "Enums only in "+SideDB1, d.EnumsOnlyInDB1)
	writeList(w, "Enums only in "+SideDB2, d.EnumsOnlyInDB2)
	d.EnumsInBoth.Each(func(name string, c schema.Comparison[[]string]) {
		if c.Diff {
			fmt.Fprintf(w, "\nEnum %s differs:\n  %s: %s\n  %s: %s\n", name,
				SideDB1, strings.Join(c.DB1, ", "), SideDB2, strings.Join(c.DB2, ", "))
		}
	})

	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintln(w, SummaryLine(cmp.Stats))
}

// SummaryLine condenses stats into one line.
func SummaryLine(s schema.DiffStats) string {
	if s.Total() == 0 {
		return "Schemas are identical."
	}
	return fmt.Sprintf("%d differences: %d/%d tables only in db1/db2, %d tables changed, %d columns, %d indexes, %d foreign keys, %d enums",
		s.Total(), s.TablesOnlyInDB1, s.TablesOnlyInDB2, s.TablesChanged,
		s.ColumnsOnly+s.ColumnsChanged, s.IndexesOnly+s.IndexesChanged, s.FKsOnly+s.FKsChanged,
		s.EnumsOnlyInDB1+s.EnumsOnlyInDB2+s.EnumsChanged)
}

func writeList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s (%d):\n", title, len(items))
	for _, item := range items {
		fmt.Fprintf(w, "  - %s\n", item)
	}
}

func writeTableDiff(w io.Writer, name string, t schema.TableDiff) {
	fmt.Fprintf(w, "  %s\n", name)
	writeInline(w, "columns only in "+SideDB1, t.ColumnsOnlyInDB1)
	writeInline(w, "columns only in "+SideDB2, t.ColumnsOnlyInDB2)
	t.ColumnsInBoth.Each(func(col string, c schema.Comparison[schema.ColumnInfo]) {
		if c.Diff {
			fmt.Fprintf(w, "    column %s: %s | %s\n", col, DescribeColumn(c.DB1), DescribeColumn(c.DB2))
		}
	})
	writeInline(w, "indexes only in "+SideDB1, t.IndexesOnlyInDB1)
	writeInline(w, "indexes only in "+SideDB2, t.IndexesOnlyInDB2)
	t.IndexesInBoth.Each(func(idx string, c schema.Comparison[schema.IndexInfo]) {
		if c.Diff {
			fmt.Fprintf(w, "    index %s: %s | %s\n", idx, c.DB1.Definition, c.DB2.Definition)
		}
	})
	writeInline(w, "foreign keys only in "+SideDB1, t.FKsOnlyInDB1)
	writeInline(w, "foreign keys only in "+SideDB2, t.FKsOnlyInDB2)
	t.FKsInBoth.Each(func(fk string, c schema.Comparison[schema.ForeignKeyInfo]) {
		if c.Diff {
			fmt.Fprintf(w, "    foreign key %s: %s | %s\n", fk, describeForeignKey(c.DB1), describeForeignKey(c.DB2))
		}
	})
}

func writeInline(w io.Writer, label string, items []string) {
	if len(items) > 0 {
		fmt.Fprintf(w, "    %s: %s\n", label, strings.Join(items, ", "))
	}
}

// DescribeColumn renders a column's type, nullability and default.
func DescribeColumn(c schema.ColumnInfo) string {
	var b strings.Builder
	b.WriteString(schema.PostgresDialect.ColumnType(schema.ColumnInfo{
		DataType:         c.DataType,
		MaxLength:        c.MaxLength,
		NumericPrecision: c.NumericPrecision,
		NumericScale:     c.NumericScale,
	}))
	if c.IsNullable {
		b.WriteString(" NULL")
	} else {
		b.WriteString(" NOT NULL")
	}
	if c.Default != nil && strings.TrimSpace(*c.Default) != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(*c.Default)
	}
	return b.String()
}

func describeForeignKey(fk schema.ForeignKeyInfo) string {
	return fmt.Sprintf("(%s) -> %s(%s)", strings.Join(fk.Columns, ", "), fk.ReferencedTable, strings.Join(fk.ReferencedColumns, ", "))
}

// WriteStatements prints the statements of a sync, one per paragraph.
func WriteStatements(w io.Writer, res *SyncResult) {
	fmt.Fprintf(w, "-- %s DDL (%s), %s -> %s\n", res.Direction, res.Dialect, sourceLabel(res.Direction), targetLabel(res.Direction))
	for _, stmt := range res.Statements {
		fmt.Fprintln(w, stmt)
		fmt.Fprintln(w)
	}
}

func sourceLabel(dir schema.Direction) string {
	if dir == schema.BtoA {
		return SideDB2
	}
	return SideDB1
}

func targetLabel(dir schema.Direction) string {
	if dir == schema.BtoA {
		return SideDB1
	}
	return SideDB2
}
