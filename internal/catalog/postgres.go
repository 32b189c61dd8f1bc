package catalog

import (
	"context"
	"database/sql"
	"strings"

	"github.com/lib/pq"

	"github.com/kadirbelkuyu/schemasync/internal/schema"
)

const pgExcludedSchemas = `('pg_catalog', 'information_schema', 'pg_toast')`

const pgColumnsQuery = `
SELECT c.table_schema, c.table_name, c.column_name, c.data_type, c.udt_schema, c.udt_name,
       c.is_nullable, c.column_default, c.character_maximum_length,
       c.numeric_precision, c.numeric_scale
FROM information_schema.columns c
JOIN information_schema.tables t
  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
WHERE t.table_type = 'BASE TABLE'
  AND c.table_schema NOT IN ` + pgExcludedSchemas + `
  AND c.table_schema NOT LIKE 'pg_temp_%'
  AND c.table_schema NOT LIKE 'pg_toast_temp_%'
ORDER BY c.table_schema, c.table_name, c.ordinal_position`

const pgIndexesQuery = `
SELECT ns.nspname, t.relname, i.relname, ix.indisunique, ix.indisprimary, am.amname,
       pg_get_indexdef(ix.indexrelid),
       ARRAY(
           SELECT pg_get_indexdef(ix.indexrelid, k + 1, true)
           FROM generate_subscripts(ix.indkey, 1) AS k
           WHERE k < ix.indnkeyatts
           ORDER BY k
       )
FROM pg_class t
JOIN pg_namespace ns ON ns.oid = t.relnamespace
JOIN pg_index ix ON ix.indrelid = t.oid
JOIN pg_class i ON i.oid = ix.indexrelid
JOIN pg_am am ON am.oid = i.relam
WHERE t.relkind IN ('r', 'p')
  AND ns.nspname NOT IN ` + pgExcludedSchemas + `
  AND ns.nspname NOT LIKE 'pg_temp_%'
ORDER BY ns.nspname, t.relname, i.relname`

const pgForeignKeysQuery = `
SELECT con.conname, ns.nspname, cl.relname, fns.nspname, fcl.relname,
       ARRAY(
           SELECT a.attname::text
           FROM unnest(con.conkey) WITH ORDINALITY AS k(attnum, ord)
           JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
           ORDER BY k.ord
       ),
       ARRAY(
           SELECT a.attname::text
           FROM unnest(con.confkey) WITH ORDINALITY AS k(attnum, ord)
           JOIN pg_attribute a ON a.attrelid = con.confrelid AND a.attnum = k.attnum
           ORDER BY k.ord
       )
FROM pg_constraint con
JOIN pg_class cl ON cl.oid = con.conrelid
JOIN pg_namespace ns ON ns.oid = cl.relnamespace
JOIN pg_class fcl ON fcl.oid = con.confrelid
JOIN pg_namespace fns ON fns.oid = fcl.relnamespace
WHERE con.contype = 'f'
  AND ns.nspname NOT IN ` + pgExcludedSchemas + `
ORDER BY ns.nspname, cl.relname, con.conname`

const pgEnumsQuery = `
SELECT n.nspname, t.typname, e.enumlabel
FROM pg_type t
JOIN pg_enum e ON e.enumtypid = t.oid
JOIN pg_namespace n ON n.oid = t.typnamespace
WHERE n.nspname NOT IN ` + pgExcludedSchemas + `
ORDER BY n.nspname, t.typname, e.enumsortorder`

type postgresCatalog struct{}

type pgColumnRow struct {
	Schema, Table, Column string
	DataType              string
	UDTSchema, UDTName    string
	IsNullable            string
	Default               sql.NullString
	MaxLength             sql.NullInt64
	Precision             sql.NullInt64
	Scale                 sql.NullInt64
}

func (postgresCatalog) readTables(ctx context.Context, db *sql.DB, snap *schema.Snapshot) error {
	rows, err := db.QueryContext(ctx, pgColumnsQuery)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var r pgColumnRow
		if err := rows.Scan(&r.Schema, &r.Table, &r.Column, &r.DataType, &r.UDTSchema, &r.UDTName,
			&r.IsNullable, &r.Default, &r.MaxLength, &r.Precision, &r.Scale); err != nil {
			return err
		}
		snap.AddColumn(schema.Qualify(r.Schema, r.Table), r.Column, r.columnInfo())
	}
	return rows.Err()
}

func (r pgColumnRow) columnInfo() schema.ColumnInfo {
	return schema.ColumnInfo{
		DataType:         pgDataType(r.DataType, r.UDTSchema, r.UDTName),
		IsNullable:       r.IsNullable == "YES",
		Default:          nullString(r.Default),
		MaxLength:        nullInt(r.MaxLength),
		NumericPrecision: nullInt(r.Precision),
		NumericScale:     nullInt(r.Scale),
	}
}

// pgDataType turns the information_schema type columns into a type name the
// synthesizer can render: user-defined types become qualified udt names and
// arrays become "<element>[]".
func pgDataType(dataType, udtSchema, udtName string) string {
	switch dataType {
	case "USER-DEFINED":
		return schema.Qualify(udtSchema, udtName)
	case "ARRAY":
		elem := strings.TrimPrefix(udtName, "_")
		if udtSchema != "pg_catalog" {
			elem = schema.Qualify(udtSchema, elem)
		}
		return elem + "[]"
	default:
		return dataType
	}
}

func (postgresCatalog) readIndexes(ctx context.Context, db *sql.DB, snap *schema.Snapshot) error {
	rows, err := db.QueryContext(ctx, pgIndexesQuery)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			nsp, table, name string
			info             schema.IndexInfo
		)
		if err := rows.Scan(&nsp, &table, &name, &info.IsUnique, &info.IsPrimary, &info.IndexType,
			&info.Definition, pq.Array(&info.Columns)); err != nil {
			return err
		}
		snap.AddIndex(schema.Qualify(nsp, table), name, info)
	}
	return rows.Err()
}

func (postgresCatalog) readForeignKeys(ctx context.Context, db *sql.DB, snap *schema.Snapshot) error {
	rows, err := db.QueryContext(ctx, pgForeignKeysQuery)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name, nsp, table, refNsp, refTable string
			fk                                 schema.ForeignKeyInfo
		)
		if err := rows.Scan(&name, &nsp, &table, &refNsp, &refTable,
			pq.Array(&fk.Columns), pq.Array(&fk.ReferencedColumns)); err != nil {
			return err
		}
		fk.ReferencedTable = schema.Qualify(refNsp, refTable)
		snap.AddForeignKey(schema.Qualify(nsp, table), name, fk)
	}
	return rows.Err()
}

func (postgresCatalog) readEnums(ctx context.Context, db *sql.DB, snap *schema.Snapshot) error {
	rows, err := db.QueryContext(ctx, pgEnumsQuery)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var nsp, name, label string
		if err := rows.Scan(&nsp, &name, &label); err != nil {
			return err
		}
		snap.AddEnumLabel(schema.Qualify(nsp, name), label)
	}
	return rows.Err()
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
