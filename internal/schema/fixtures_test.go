package schema_test

import (
	"github.com/kadirbelkuyu/schemasync/internal/schema"
)

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func usersSnapshot(withEmail bool) *schema.Snapshot {
	s := schema.NewSnapshot()
	s.AddColumn("public.users", "id", schema.ColumnInfo{DataType: "integer", NumericPrecision: intPtr(32), NumericScale: intPtr(0)})
	s.AddColumn("public.users", "name", schema.ColumnInfo{DataType: "varchar", IsNullable: true, MaxLength: intPtr(50)})
	if withEmail {
		s.AddColumn("public.users", "email", schema.ColumnInfo{DataType: "varchar", IsNullable: true, MaxLength: intPtr(100)})
	}
	s.AddIndex("public.users", "users_pkey", schema.IndexInfo{
		IsUnique:   true,
		IsPrimary:  true,
		IndexType:  "btree",
		Definition: "CREATE UNIQUE INDEX users_pkey ON public.users USING btree (id)",
		Columns:    []string{"id"},
	})
	return s
}

// shopSnapshots returns a database with users, orders and the status enum,
// and the same database before orders existed.
func shopSnapshots() (*schema.Snapshot, *schema.Snapshot) {
	full := usersSnapshot(false)
	full.AddEnumLabel("public.status", "active")
	full.AddEnumLabel("public.status", "inactive")
	full.AddColumn("public.orders", "id", schema.ColumnInfo{
		DataType:         "integer",
		NumericPrecision: intPtr(32),
		NumericScale:     intPtr(0),
		Default:          strPtr("nextval('orders_id_seq'::regclass)"),
	})
	full.AddColumn("public.orders", "user_id", schema.ColumnInfo{DataType: "integer", NumericPrecision: intPtr(32), NumericScale: intPtr(0)})
	full.AddColumn("public.orders", "total", schema.ColumnInfo{DataType: "numeric", NumericPrecision: intPtr(10), NumericScale: intPtr(2)})
	full.AddColumn("public.orders", "status", schema.ColumnInfo{DataType: "public.status", IsNullable: true, Default: strPtr("'active'::status")})
	full.AddColumn("public.orders", "note", schema.ColumnInfo{DataType: "text", IsNullable: true})
	full.AddIndex("public.orders", "orders_pkey", schema.IndexInfo{
		IsUnique: true, IsPrimary: true, IndexType: "btree",
		Definition: "CREATE UNIQUE INDEX orders_pkey ON public.orders USING btree (id)",
		Columns:    []string{"id"},
	})
	full.AddIndex("public.orders", "orders_user_id_idx", schema.IndexInfo{
		IndexType:  "btree",
		Definition: "CREATE INDEX orders_user_id_idx ON public.orders USING btree (user_id)",
		Columns:    []string{"user_id"},
	})
	full.AddForeignKey("public.orders", "orders_user_id_fkey", schema.ForeignKeyInfo{
		Columns:           []string{"user_id"},
		ReferencedTable:   "public.users",
		ReferencedColumns: []string{"id"},
	})

	partial := usersSnapshot(false)
	partial.AddEnumLabel("public.status", "active")
	partial.AddEnumLabel("public.status", "inactive")
	return full, partial
}
