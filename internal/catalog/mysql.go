package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kadirbelkuyu/schemasync/internal/schema"
)

// MySQL catalogs are read for the connected database only and table names
// stay unqualified, so statements run against whatever database the target
// connection selects.

const mysqlColumnsQuery = `
SELECT c.table_name, c.column_name, c.data_type, c.column_type, c.is_nullable,
       c.column_default, c.character_maximum_length, c.numeric_precision,
       c.numeric_scale, c.extra
FROM information_schema.columns c
JOIN information_schema.tables t
  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
WHERE c.table_schema = DATABASE() AND t.table_type = 'BASE TABLE'
ORDER BY c.table_name, c.ordinal_position`

const mysqlIndexesQuery = `
SELECT table_name, index_name, non_unique, index_type, column_name, seq_in_index
FROM information_schema.statistics
WHERE table_schema = DATABASE()
ORDER BY table_name, index_name, seq_in_index`

const mysqlForeignKeysQuery = `
SELECT kcu.table_name, kcu.constraint_name, kcu.column_name,
       kcu.referenced_table_schema, kcu.referenced_table_name, kcu.referenced_column_name
FROM information_schema.key_column_usage kcu
WHERE kcu.table_schema = DATABASE()
  AND kcu.referenced_table_name IS NOT NULL
ORDER BY kcu.table_name, kcu.constraint_name, kcu.ordinal_position`

type mysqlCatalog struct{}

type mysqlColumnRow struct {
	Table, Column        string
	DataType, ColumnType string
	IsNullable           string
	Default              sql.NullString
	MaxLength            sql.NullInt64
	Precision            sql.NullInt64
	Scale                sql.NullInt64
	Extra                string
}

func (mysqlCatalog) readTables(ctx context.Context, db *sql.DB, snap *schema.Snapshot) error {
	rows, err := db.QueryContext(ctx, mysqlColumnsQuery)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var r mysqlColumnRow
		if err := rows.Scan(&r.Table, &r.Column, &r.DataType, &r.ColumnType, &r.IsNullable,
			&r.Default, &r.MaxLength, &r.Precision, &r.Scale, &r.Extra); err != nil {
			return err
		}
		snap.AddColumn(r.Table, r.Column, r.columnInfo())
	}
	return rows.Err()
}

var mysqlImplicitWidth = map[string]bool{
	"tinyint": true, "smallint": true, "mediumint": true, "int": true, "bigint": true,
	"float": true, "double": true, "bit": true,
	"tinytext": true, "text": true, "mediumtext": true, "longtext": true,
	"tinyblob": true, "blob": true, "mediumblob": true, "longblob": true, "json": true,
}

var mysqlStringTypes = map[string]bool{
	"char": true, "varchar": true, "tinytext": true, "text": true, "mediumtext": true,
	"longtext": true, "enum": true, "set": true,
}

func (r mysqlColumnRow) columnInfo() schema.ColumnInfo {
	dataType := strings.ToLower(r.DataType)
	info := schema.ColumnInfo{
		DataType:   dataType,
		IsNullable: r.IsNullable == "YES",
		Default:    mysqlDefault(dataType, r.Default, r.Extra),
	}

	switch {
	case dataType == "enum" || dataType == "set":
		info.DataType = r.ColumnType
	case mysqlImplicitWidth[dataType]:
		if strings.Contains(strings.ToLower(r.ColumnType), "unsigned") {
			info.DataType = dataType + " unsigned"
		}
	default:
		info.MaxLength = nullInt(r.MaxLength)
		info.NumericPrecision = nullInt(r.Precision)
		info.NumericScale = nullInt(r.Scale)
	}
	return info
}

// mysqlDefault quotes string literals MySQL 8 reports bare. MariaDB already
// quotes them and expression defaults are left alone.
func mysqlDefault(dataType string, def sql.NullString, extra string) *string {
	if !def.Valid {
		return nil
	}
	v := def.String
	if mysqlStringTypes[dataType] && !strings.Contains(extra, "DEFAULT_GENERATED") && !strings.HasPrefix(v, "'") {
		v = "'" + strings.ReplaceAll(v, "'", "''") + "'"
	}
	return &v
}

type mysqlIndexRow struct {
	Table, Name string
	NonUnique   bool
	IndexType   string
	Column      sql.NullString
}

func (mysqlCatalog) readIndexes(ctx context.Context, db *sql.DB, snap *schema.Snapshot) error {
	rows, err := db.QueryContext(ctx, mysqlIndexesQuery)
	if err != nil {
		return err
	}
	defer rows.Close()

	var collected []mysqlIndexRow
	for rows.Next() {
		var (
			r   mysqlIndexRow
			seq int
		)
		if err := rows.Scan(&r.Table, &r.Name, &r.NonUnique, &r.IndexType, &r.Column, &seq); err != nil {
			return err
		}
		collected = append(collected, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	addMySQLIndexes(snap, collected)
	return nil
}

// addMySQLIndexes folds statistics rows (one per indexed column, already in
// seq_in_index order) into indexes.
func addMySQLIndexes(snap *schema.Snapshot, rows []mysqlIndexRow) {
	type key struct{ table, name string }
	var order []key
	grouped := make(map[key]*schema.IndexInfo)

	for _, r := range rows {
		k := key{r.Table, r.Name}
		info, ok := grouped[k]
		if !ok {
			info = &schema.IndexInfo{
				IsUnique:  !r.NonUnique,
				IsPrimary: r.Name == "PRIMARY",
				IndexType: strings.ToLower(r.IndexType),
			}
			grouped[k] = info
			order = append(order, k)
		}
		if r.Column.Valid {
			info.Columns = append(info.Columns, r.Column.String)
		}
	}

	for _, k := range order {
		info := grouped[k]
		info.Definition = mysqlIndexDefinition(k.table, k.name, *info)
		snap.AddIndex(k.table, k.name, *info)
	}
}

func mysqlIndexDefinition(table, name string, info schema.IndexInfo) string {
	cols := make([]string, len(info.Columns))
	for i, c := range info.Columns {
		cols[i] = "`" + c + "`"
	}
	kind := "INDEX"
	switch {
	case info.IsPrimary:
		return fmt.Sprintf("ALTER TABLE `%s` ADD PRIMARY KEY (%s)", table, strings.Join(cols, ", "))
	case info.IsUnique:
		kind = "UNIQUE INDEX"
	}
	return fmt.Sprintf("CREATE %s `%s` ON `%s` USING %s (%s)", kind, name, table,
		strings.ToUpper(info.IndexType), strings.Join(cols, ", "))
}

type mysqlForeignKeyRow struct {
	Table, Name         string
	Column              string
	RefSchema, RefTable string
	RefColumn           string
}

func (mysqlCatalog) readForeignKeys(ctx context.Context, db *sql.DB, snap *schema.Snapshot) error {
	var current string
	if err := db.QueryRowContext(ctx, "SELECT DATABASE()").Scan(&current); err != nil {
		return err
	}

	rows, err := db.QueryContext(ctx, mysqlForeignKeysQuery)
	if err != nil {
		return err
	}
	defer rows.Close()

	var collected []mysqlForeignKeyRow
	for rows.Next() {
		var r mysqlForeignKeyRow
		if err := rows.Scan(&r.Table, &r.Name, &r.Column, &r.RefSchema, &r.RefTable, &r.RefColumn); err != nil {
			return err
		}
		collected = append(collected, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	addMySQLForeignKeys(snap, current, collected)
	return nil
}

// addMySQLForeignKeys folds key_column_usage rows into foreign keys. Tables
// referenced in another database keep that database as qualifier.
func addMySQLForeignKeys(snap *schema.Snapshot, current string, rows []mysqlForeignKeyRow) {
	for _, r := range rows {
		fk := snap.TableForeignKeys(r.Table)[r.Name]
		if fk.ReferencedTable == "" {
			fk.ReferencedTable = r.RefTable
			if r.RefSchema != current {
				fk.ReferencedTable = schema.Qualify(r.RefSchema, r.RefTable)
			}
		}
		fk.Columns = append(fk.Columns, r.Column)
		fk.ReferencedColumns = append(fk.ReferencedColumns, r.RefColumn)
		snap.AddForeignKey(r.Table, r.Name, fk)
	}
}

// MySQL enums are column types, not named types; column_type already
// carries their labels.
func (mysqlCatalog) readEnums(context.Context, *sql.DB, *schema.Snapshot) error {
	return nil
}
