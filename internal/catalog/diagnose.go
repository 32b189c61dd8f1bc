package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kadirbelkuyu/schemasync/internal/config"
	"github.com/kadirbelkuyu/schemasync/internal/database"
	"github.com/kadirbelkuyu/schemasync/internal/errs"
)

// Diagnostics describes the session a reader sees. It explains why an
// inspection came back empty: wrong database, wrong user, or tables living in
// a schema the user cannot see.
type Diagnostics struct {
	Database      string   `json:"database"`
	CurrentUser   string   `json:"current_user"`
	SessionUser   string   `json:"session_user,omitempty"`
	CurrentSchema string   `json:"current_schema,omitempty"`
	SearchPath    string   `json:"search_path,omitempty"`
	Version       string   `json:"version"`
	Tables        []string `json:"tables"`
}

func (d Diagnostics) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "database:       %s\n", d.Database)
	fmt.Fprintf(&b, "current user:   %s\n", d.CurrentUser)
	if d.SessionUser != "" {
		fmt.Fprintf(&b, "session user:   %s\n", d.SessionUser)
	}
	if d.CurrentSchema != "" {
		fmt.Fprintf(&b, "current schema: %s\n", d.CurrentSchema)
	}
	if d.SearchPath != "" {
		fmt.Fprintf(&b, "search_path:    %s\n", d.SearchPath)
	}
	fmt.Fprintf(&b, "version:        %s\n", d.Version)
	fmt.Fprintf(&b, "visible tables: %d\n", len(d.Tables))
	for _, t := range d.Tables {
		fmt.Fprintf(&b, "  - %s\n", t)
	}
	return b.String()
}

const pgSessionQuery = `SELECT current_database(), current_user, session_user,
       COALESCE(current_schema(), ''), version(), current_setting('search_path')`

const pgVisibleTablesQuery = `
SELECT table_schema, table_name
FROM information_schema.tables
WHERE table_schema NOT IN ` + pgExcludedSchemas + `
ORDER BY table_schema, table_name`

const mysqlSessionQuery = `SELECT COALESCE(DATABASE(), ''), CURRENT_USER(), USER(), VERSION()`

const mysqlVisibleTablesQuery = `
SELECT table_schema, table_name
FROM information_schema.tables
WHERE table_schema NOT IN ('mysql', 'information_schema', 'performance_schema', 'sys')
ORDER BY table_schema, table_name`

// Diagnose reports the session identity and every table the connected user
// can see, across all schemas.
func (r *Reader) Diagnose(ctx context.Context, cfg config.DatabaseConfig) (*Diagnostics, error) {
	cfg.ApplyDefaults()
	if cfg.Type == "mongo" {
		return nil, errs.New(errs.ErrKindConfiguration, "diagnostics are available for postgres and mysql only")
	}

	conn, err := database.NewConnection(ctx, cfg, r.logger)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var d Diagnostics
	tablesQuery := pgVisibleTablesQuery
	switch cfg.Type {
	case "postgres":
		err = conn.DB.QueryRowContext(ctx, pgSessionQuery).
			Scan(&d.Database, &d.CurrentUser, &d.SessionUser, &d.CurrentSchema, &d.Version, &d.SearchPath)
	case "mysql":
		tablesQuery = mysqlVisibleTablesQuery
		err = conn.DB.QueryRowContext(ctx, mysqlSessionQuery).
			Scan(&d.Database, &d.CurrentUser, &d.SessionUser, &d.Version)
	}
	if err != nil {
		return nil, database.MapQueryError(err, "failed to read session information")
	}

	d.Tables, err = visibleTables(ctx, conn.DB, tablesQuery)
	if err != nil {
		return nil, database.MapQueryError(err, "failed to list tables")
	}
	return &d, nil
}

func visibleTables(ctx context.Context, db *sql.DB, query string) ([]string, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var nsp, name string
		if err := rows.Scan(&nsp, &name); err != nil {
			return nil, err
		}
		tables = append(tables, nsp+"."+name)
	}
	return tables, rows.Err()
}
