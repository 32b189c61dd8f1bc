package schema_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirbelkuyu/schemasync/internal/schema"
)

func TestDiffUsersScenario(t *testing.T) {
	a := usersSnapshot(false)
	b := usersSnapshot(true)

	d := schema.Diff(a, b)

	require.Empty(t, d.TablesOnlyInDB1)
	require.Empty(t, d.TablesOnlyInDB2)
	block, ok := d.TablesInBoth.Get("public.users")
	require.True(t, ok)

	assert.Empty(t, block.ColumnsOnlyInDB1)
	assert.Equal(t, []string{"email"}, block.ColumnsOnlyInDB2)
	assert.Equal(t, []string{"id", "name"}, block.ColumnsInBoth.Keys())
	block.ColumnsInBoth.Each(func(col string, c schema.Comparison[schema.ColumnInfo]) {
		assert.False(t, c.Diff, col)
	})
	assert.True(t, d.HasDifferences())
	assert.Equal(t, 1, d.Stats().ColumnsOnly)
}

func TestDiffSymmetry(t *testing.T) {
	full, partial := shopSnapshots()
	partial.AddColumn("public.audit", "id", schema.ColumnInfo{DataType: "bigint"})

	ab := schema.Diff(full, partial)
	ba := schema.Diff(partial, full)

	assert.Equal(t, ab.TablesOnlyInDB1, ba.TablesOnlyInDB2)
	assert.Equal(t, ab.TablesOnlyInDB2, ba.TablesOnlyInDB1)
	assert.ElementsMatch(t, ab.TablesInBoth.Keys(), ba.TablesInBoth.Keys())
	assert.Equal(t, []string{"public.orders"}, ab.TablesOnlyInDB1)
	assert.Equal(t, []string{"public.audit"}, ab.TablesOnlyInDB2)
}

func TestDiffIdempotence(t *testing.T) {
	full, _ := shopSnapshots()

	d := schema.Diff(full, full)

	assert.False(t, d.HasDifferences())
	assert.Empty(t, d.TablesOnlyInDB1)
	assert.Empty(t, d.TablesOnlyInDB2)
	assert.Empty(t, d.EnumsOnlyInDB1)
	assert.Empty(t, d.EnumsOnlyInDB2)
	d.TablesInBoth.Each(func(table string, block schema.TableDiff) {
		assert.False(t, block.HasDifferences(), table)
		assert.Empty(t, block.ColumnsOnlyInDB1)
		assert.Empty(t, block.IndexesOnlyInDB2)
		assert.Empty(t, block.FKsOnlyInDB1)
	})
	d.EnumsInBoth.Each(func(name string, c schema.Comparison[[]string]) {
		assert.False(t, c.Diff, name)
	})
}

func TestDiffIsDeterministic(t *testing.T) {
	full, partial := shopSnapshots()
	partial.AddEnumLabel("public.priority", "low")
	partial.AddIndex("public.users", "users_name_idx", schema.IndexInfo{Definition: "CREATE INDEX users_name_idx ON public.users (name)", Columns: []string{"name"}})
	partial.AddIndex("public.users", "users_email_idx", schema.IndexInfo{Definition: "CREATE INDEX users_email_idx ON public.users (email)", Columns: []string{"email"}})

	first, err := json.Marshal(schema.Diff(full, partial))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := json.Marshal(schema.Diff(full, partial))
		require.NoError(t, err)
		require.Equal(t, string(first), string(again))
	}
}

func TestDiffDoesNotMutateInputs(t *testing.T) {
	full, partial := shopSnapshots()
	before, err := json.Marshal(full)
	require.NoError(t, err)

	schema.Diff(full, partial)
	schema.Diff(partial, full)

	after, err := json.Marshal(full)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestDiffNormalizesDefaults(t *testing.T) {
	cases := map[string]*string{
		"missing":    nil,
		"empty":      strPtr(""),
		"whitespace": strPtr("   "),
	}
	for name, def := range cases {
		t.Run(name, func(t *testing.T) {
			a := schema.NewSnapshot()
			b := schema.NewSnapshot()
			a.AddColumn("public.t", "c", schema.ColumnInfo{DataType: "text", IsNullable: true, Default: def})
			b.AddColumn("public.t", "c", schema.ColumnInfo{DataType: "text", IsNullable: true})

			block, _ := schema.Diff(a, b).TablesInBoth.Get("public.t")
			cmp, ok := block.ColumnsInBoth.Get("c")
			require.True(t, ok)
			assert.False(t, cmp.Diff)
		})
	}
}

func TestDiffColumnAttributes(t *testing.T) {
	base := schema.ColumnInfo{DataType: "varchar", MaxLength: intPtr(50), Default: strPtr(" 'x' ")}
	cases := map[string]func(c *schema.ColumnInfo){
		"type":      func(c *schema.ColumnInfo) { c.DataType = "text" },
		"nullable":  func(c *schema.ColumnInfo) { c.IsNullable = true },
		"default":   func(c *schema.ColumnInfo) { c.Default = strPtr("'y'") },
		"length":    func(c *schema.ColumnInfo) { c.MaxLength = intPtr(60) },
		"no length": func(c *schema.ColumnInfo) { c.MaxLength = nil },
		"precision": func(c *schema.ColumnInfo) { c.NumericPrecision = intPtr(10) },
		"scale":     func(c *schema.ColumnInfo) { c.NumericScale = intPtr(2) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			other := base
			mutate(&other)
			a := schema.NewSnapshot()
			b := schema.NewSnapshot()
			a.AddColumn("public.t", "c", base)
			b.AddColumn("public.t", "c", other)

			block, _ := schema.Diff(a, b).TablesInBoth.Get("public.t")
			cmp, _ := block.ColumnsInBoth.Get("c")
			assert.True(t, cmp.Diff)
		})
	}

	trimmed := base
	trimmed.Default = strPtr("'x'")
	a := schema.NewSnapshot()
	b := schema.NewSnapshot()
	a.AddColumn("public.t", "c", base)
	b.AddColumn("public.t", "c", trimmed)
	block, _ := schema.Diff(a, b).TablesInBoth.Get("public.t")
	cmp, _ := block.ColumnsInBoth.Get("c")
	assert.False(t, cmp.Diff)
}

func TestDiffEnumOrderSensitivity(t *testing.T) {
	a := schema.NewSnapshot()
	b := schema.NewSnapshot()
	for _, l := range []string{"a", "b", "c"} {
		a.AddEnumLabel("public.letters", l)
	}
	for _, l := range []string{"a", "c", "b"} {
		b.AddEnumLabel("public.letters", l)
	}

	cmp, ok := schema.Diff(a, b).EnumsInBoth.Get("public.letters")
	require.True(t, ok)
	assert.True(t, cmp.Diff)
	assert.Equal(t, []string{"a", "b", "c"}, cmp.DB1)
	assert.Equal(t, []string{"a", "c", "b"}, cmp.DB2)
}

func TestDiffStatusEnumScenario(t *testing.T) {
	a := schema.NewSnapshot()
	b := schema.NewSnapshot()
	a.AddEnumLabel("public.status", "active")
	a.AddEnumLabel("public.status", "inactive")
	b.AddEnumLabel("public.status", "active")
	b.AddEnumLabel("public.status", "inactive")
	b.AddEnumLabel("public.status", "archived")

	cmp, ok := schema.Diff(a, b).EnumsInBoth.Get("public.status")
	require.True(t, ok)
	assert.True(t, cmp.Diff)
}

func TestDiffOnlyInListsOrdering(t *testing.T) {
	a := schema.NewSnapshot()
	b := schema.NewSnapshot()
	for _, col := range []string{"zeta", "id", "alpha"} {
		a.AddColumn("public.t", col, schema.ColumnInfo{DataType: "text"})
	}
	b.AddColumn("public.t", "id", schema.ColumnInfo{DataType: "text"})
	a.AddColumn("public.z_table", "id", schema.ColumnInfo{DataType: "text"})
	a.AddColumn("public.a_table", "id", schema.ColumnInfo{DataType: "text"})
	a.AddIndex("public.t", "t_b_idx", schema.IndexInfo{})
	a.AddIndex("public.t", "t_a_idx", schema.IndexInfo{})

	d := schema.Diff(a, b)

	assert.Equal(t, []string{"public.a_table", "public.z_table"}, d.TablesOnlyInDB1)
	block, _ := d.TablesInBoth.Get("public.t")
	assert.Equal(t, []string{"zeta", "alpha"}, block.ColumnsOnlyInDB1)
	assert.Equal(t, []string{"t_a_idx", "t_b_idx"}, block.IndexesOnlyInDB1)
}

func TestDiffCommonTablesFollowFirstSnapshotOrder(t *testing.T) {
	a := schema.NewSnapshot()
	b := schema.NewSnapshot()
	for _, table := range []string{"public.zoo", "public.bar", "public.mid"} {
		a.AddColumn(table, "id", schema.ColumnInfo{DataType: "integer"})
	}
	for _, table := range []string{"public.mid", "public.zoo", "public.bar"} {
		b.AddColumn(table, "id", schema.ColumnInfo{DataType: "integer"})
	}

	assert.Equal(t, []string{"public.zoo", "public.bar", "public.mid"}, schema.Diff(a, b).TablesInBoth.Keys())
	assert.Equal(t, []string{"public.mid", "public.zoo", "public.bar"}, schema.Diff(b, a).TablesInBoth.Keys())
}

func TestDiffIndexesAndForeignKeys(t *testing.T) {
	a := usersSnapshot(false)
	b := usersSnapshot(false)
	a.AddIndex("public.users", "users_name_idx", schema.IndexInfo{Definition: "CREATE INDEX users_name_idx ON public.users (name) ", Columns: []string{"name"}})
	b.AddIndex("public.users", "users_name_idx", schema.IndexInfo{Definition: "CREATE INDEX users_name_idx ON public.users (name)", Columns: []string{"name"}, IsUnique: true})
	a.AddForeignKey("public.users", "users_ref_fkey", schema.ForeignKeyInfo{Columns: []string{"x", "y"}, ReferencedTable: "public.ref", ReferencedColumns: []string{"a", "b"}})
	b.AddForeignKey("public.users", "users_ref_fkey", schema.ForeignKeyInfo{Columns: []string{"y", "x"}, ReferencedTable: "public.ref", ReferencedColumns: []string{"b", "a"}})

	block, _ := schema.Diff(a, b).TablesInBoth.Get("public.users")

	pk, _ := block.IndexesInBoth.Get("users_pkey")
	assert.False(t, pk.Diff)
	name, _ := block.IndexesInBoth.Get("users_name_idx")
	assert.True(t, name.Diff)
	fk, _ := block.FKsInBoth.Get("users_ref_fkey")
	assert.True(t, fk.Diff)
}

func TestDiffMissingNestedMaps(t *testing.T) {
	a := &schema.Snapshot{}
	a.AddTable("public.t")
	a.Indexes = nil
	b := schema.NewSnapshot()
	b.AddTable("public.t")
	b.AddIndex("public.t", "t_idx", schema.IndexInfo{})

	d := schema.Diff(a, b)
	block, ok := d.TablesInBoth.Get("public.t")
	require.True(t, ok)
	assert.Equal(t, []string{"t_idx"}, block.IndexesOnlyInDB2)
	assert.Empty(t, block.FKsOnlyInDB1)

	assert.NotPanics(t, func() { schema.Diff(nil, b) })
}

func TestDiffJSONFieldNames(t *testing.T) {
	data, err := json.Marshal(schema.Diff(usersSnapshot(false), usersSnapshot(true)))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	tables := decoded["tables_in_both"].(map[string]any)
	users := tables["public.users"].(map[string]any)
	assert.Equal(t, []any{"email"}, users["columns_only_in_db2"])
	id := users["columns_in_both"].(map[string]any)["id"].(map[string]any)
	assert.Equal(t, false, id["diff"])
	assert.Equal(t, "integer", id["db1"].(map[string]any)["data_type"])
}
