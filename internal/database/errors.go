package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/kadirbelkuyu/schemasync/internal/errs"
)

// MySQL error numbers that mean the session could not be established.
const (
	mysqlErrDBAccessDenied = 1044
	mysqlErrAccessDenied   = 1045
	mysqlErrUnknownDB      = 1049
	mysqlErrTooManyConns   = 1040
)

// MapError translates lib/pq, pgx and go-sql-driver/mysql errors raised
// while connecting into *errs.Error. Errors already classified pass through.
func MapError(err error, msg string) error {
	return mapError(err, msg, errs.ErrKindConnectionFailed)
}

// MapQueryError is MapError for errors raised once the session is up: an
// error the drivers do not classify is a query failure.
func MapQueryError(err error, msg string) error {
	return mapError(err, msg, errs.ErrKindQueryFailed)
}

func mapError(err error, msg string, fallback errs.ErrKind) error {
	if err == nil {
		return nil
	}

	var classified *errs.Error
	if errors.As(err, &classified) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return errs.Wrap(classifySQLState(string(pqErr.Code)), fmt.Sprintf("%s: %s", msg, pqErr.Message), err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return errs.Wrap(classifySQLState(pgErr.Code), fmt.Sprintf("%s: %s", msg, pgErr.Message), err)
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		kind := errs.ErrKindQueryFailed
		switch myErr.Number {
		case mysqlErrDBAccessDenied, mysqlErrAccessDenied, mysqlErrUnknownDB, mysqlErrTooManyConns:
			kind = errs.ErrKindConnectionFailed
		}
		return errs.Wrap(kind, fmt.Sprintf("%s: %s", msg, myErr.Message), err)
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}

	return errs.Wrap(fallback, msg, err)
}

// classifySQLState maps a postgres SQLSTATE to an ErrKind: class 08
// (connection exception), 28 (invalid authorization), 3D000 (unknown
// database) and 53300 (too many connections) are connection failures.
func classifySQLState(code string) errs.ErrKind {
	switch {
	case strings.HasPrefix(code, "08"), strings.HasPrefix(code, "28"), code == "3D000", code == "53300":
		return errs.ErrKindConnectionFailed
	default:
		return errs.ErrKindQueryFailed
	}
}
