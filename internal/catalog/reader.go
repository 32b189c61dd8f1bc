// Package catalog reads a schema.Snapshot out of a live database.
//
// Each engine has its own catalog queries; Reader opens the connection (and
// the SSH tunnel, if configured), runs the four phases in order and releases
// everything before returning, whatever the outcome.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kadirbelkuyu/schemasync/internal/config"
	"github.com/kadirbelkuyu/schemasync/internal/database"
	"github.com/kadirbelkuyu/schemasync/internal/errs"
	"github.com/kadirbelkuyu/schemasync/internal/schema"
	"github.com/kadirbelkuyu/schemasync/pkg/logger"
)

type Phase string

const (
	PhaseTables      Phase = "tables"
	PhaseIndexes     Phase = "indexes"
	PhaseForeignKeys Phase = "foreign keys"
	PhaseEnums       Phase = "enums"
)

// Phases lists the inspection phases in the order they run.
var Phases = []Phase{PhaseTables, PhaseIndexes, PhaseForeignKeys, PhaseEnums}

// ProgressFunc is called after each phase completes.
type ProgressFunc func(phase Phase, done, total int)

// Inspector produces a snapshot for a connection descriptor.
type Inspector interface {
	Inspect(ctx context.Context, cfg config.DatabaseConfig) (*schema.Snapshot, error)
}

type Option func(*Reader)

func WithLogger(log *logger.Logger) Option {
	return func(r *Reader) {
		if log != nil {
			r.logger = log
		}
	}
}

func WithProgress(fn ProgressFunc) Option {
	return func(r *Reader) {
		r.progress = fn
	}
}

// Reader is the Inspector backed by real database connections.
type Reader struct {
	logger   *logger.Logger
	progress ProgressFunc
}

func NewReader(opts ...Option) *Reader {
	r := &Reader{logger: logger.NewLogger(false)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Inspect is a convenience wrapper around NewReader(opts...).Inspect.
func Inspect(ctx context.Context, cfg config.DatabaseConfig, opts ...Option) (*schema.Snapshot, error) {
	return NewReader(opts...).Inspect(ctx, cfg)
}

// sqlCatalog holds the per-engine catalog queries.
type sqlCatalog interface {
	readTables(ctx context.Context, db *sql.DB, snap *schema.Snapshot) error
	readIndexes(ctx context.Context, db *sql.DB, snap *schema.Snapshot) error
	readForeignKeys(ctx context.Context, db *sql.DB, snap *schema.Snapshot) error
	readEnums(ctx context.Context, db *sql.DB, snap *schema.Snapshot) error
}

func (r *Reader) Inspect(ctx context.Context, cfg config.DatabaseConfig) (*schema.Snapshot, error) {
	cfg.ApplyDefaults()
	log := r.logger.WithField("database", cfg.String())
	start := time.Now()

	var (
		snap *schema.Snapshot
		err  error
	)
	switch cfg.Type {
	case "postgres":
		snap, err = r.inspectSQL(ctx, cfg, postgresCatalog{})
	case "mysql":
		snap, err = r.inspectSQL(ctx, cfg, mysqlCatalog{})
	case "mongo":
		snap, err = r.inspectMongo(ctx, cfg)
	default:
		return nil, errs.Newf(errs.ErrKindConfiguration, "unsupported database type %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	log.WithField("duration", time.Since(start).Round(time.Millisecond)).
		Infof("Inspection complete: %s", snap.Summary())
	return snap, nil
}

func (r *Reader) inspectSQL(ctx context.Context, cfg config.DatabaseConfig, cat sqlCatalog) (*schema.Snapshot, error) {
	conn, err := database.NewConnection(ctx, cfg, r.logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			r.logger.Warnf("failed to close connection to %s: %v", cfg.String(), cerr)
		}
	}()

	snap := schema.NewSnapshot()
	steps := []struct {
		phase Phase
		run   func(context.Context, *sql.DB, *schema.Snapshot) error
	}{
		{PhaseTables, cat.readTables},
		{PhaseIndexes, cat.readIndexes},
		{PhaseForeignKeys, cat.readForeignKeys},
		{PhaseEnums, cat.readEnums},
	}
	for i, step := range steps {
		if err := step.run(ctx, conn.DB, snap); err != nil {
			return nil, database.MapQueryError(err, fmt.Sprintf("failed to read %s", step.phase))
		}
		r.logger.Debugf("Read %s from %s", step.phase, cfg.String())
		r.report(step.phase, i+1, len(steps))
	}
	return snap, nil
}

func (r *Reader) report(phase Phase, done, total int) {
	if r.progress != nil {
		r.progress(phase, done, total)
	}
}

// systemSchemas are never part of a snapshot.
var systemSchemas = map[string]map[string]bool{
	"postgres": {"pg_catalog": true, "information_schema": true, "pg_toast": true},
	"mysql":    {"mysql": true, "information_schema": true, "performance_schema": true, "sys": true},
	"mongo":    {"admin": true, "local": true, "config": true},
}

// IsSystemSchema reports whether name is an internal schema of dbType.
func IsSystemSchema(dbType, name string) bool {
	return systemSchemas[dbType][name]
}
