// Package apply executes synthesized DDL against the target database.
package apply

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kadirbelkuyu/schemasync/internal/config"
	"github.com/kadirbelkuyu/schemasync/internal/database"
	"github.com/kadirbelkuyu/schemasync/internal/errs"
	"github.com/kadirbelkuyu/schemasync/pkg/logger"
)

type Result struct {
	Executed int           `json:"executed"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

type Applier struct {
	logger *logger.Logger
}

func NewApplier(log *logger.Logger) *Applier {
	if log == nil {
		log = logger.NewLogger(false)
	}
	return &Applier{logger: log}
}

// Apply runs statements against cfg. On postgres they run in one transaction
// and a failure rolls everything back; mysql commits each DDL statement
// implicitly, so a failure leaves the earlier ones applied. Comment-only
// statements are skipped and nothing connects if none remain.
func (a *Applier) Apply(ctx context.Context, cfg config.DatabaseConfig, statements []string) (*Result, error) {
	start := time.Now()
	run := Executable(statements)
	result := &Result{Skipped: len(statements) - len(run)}
	if len(run) == 0 {
		a.logger.Info("Nothing to apply")
		return result, nil
	}

	cfg.ApplyDefaults()
	var err error
	switch cfg.Type {
	case "postgres":
		result.Executed, err = a.applyPostgres(ctx, cfg, run)
	case "mysql":
		result.Executed, err = a.applyMySQL(ctx, cfg, run)
	default:
		return nil, errs.Newf(errs.ErrKindConfiguration, "cannot apply DDL to %s databases", cfg.Type)
	}
	result.Duration = time.Since(start)
	if err != nil {
		return result, err
	}

	a.logger.WithField("statements", result.Executed).Infof("Applied changes to %s", cfg.String())
	return result, nil
}

func (a *Applier) applyPostgres(ctx context.Context, cfg config.DatabaseConfig, statements []string) (int, error) {
	conn, err := database.NewPgxConnection(ctx, cfg, a.logger)
	if err != nil {
		return 0, err
	}
	defer conn.Close(context.Background())

	tx, err := conn.Conn.Begin(ctx)
	if err != nil {
		return 0, database.MapError(err, "failed to begin transaction")
	}
	defer tx.Rollback(context.Background())

	for i, stmt := range statements {
		a.logger.Debugf("Executing: %s", stmt)
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return 0, database.MapQueryError(err, statementFailure(i, stmt))
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, database.MapQueryError(err, "failed to commit changes")
	}
	return len(statements), nil
}

func (a *Applier) applyMySQL(ctx context.Context, cfg config.DatabaseConfig, statements []string) (int, error) {
	conn, err := database.NewConnection(ctx, cfg, a.logger)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	for i, stmt := range statements {
		a.logger.Debugf("Executing: %s", stmt)
		if _, err := conn.DB.ExecContext(ctx, stmt); err != nil {
			return i, database.MapQueryError(err, statementFailure(i, stmt))
		}
	}
	return len(statements), nil
}

func statementFailure(i int, stmt string) string {
	first, _, _ := strings.Cut(stmt, "\n")
	return fmt.Sprintf("statement %d failed (%s)", i+1, first)
}

// Executable drops blank and comment-only statements.
func Executable(statements []string) []string {
	out := make([]string, 0, len(statements))
	for _, stmt := range statements {
		if isCommentOnly(stmt) {
			continue
		}
		out = append(out, stmt)
	}
	return out
}

func isCommentOnly(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}
