package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kadirbelkuyu/schemasync/internal/config"
	"github.com/kadirbelkuyu/schemasync/internal/errs"
	"github.com/kadirbelkuyu/schemasync/internal/tunnel"
	"github.com/kadirbelkuyu/schemasync/pkg/logger"
)

// PgxConnection is a single native postgres session, used where DDL must run
// inside one transaction.
type PgxConnection struct {
	Conn   *pgx.Conn
	Config config.DatabaseConfig

	tunnel *tunnel.Tunnel
}

func NewPgxConnection(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*PgxConnection, error) {
	effective, tun, err := prepare(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if effective.Type != "postgres" {
		closeTunnel(tun)
		return nil, errs.Newf(errs.ErrKindConfiguration, "unsupported database type for pgx connection: %s", effective.Type)
	}

	pgCfg, err := pgx.ParseConfig(effective.GetConnectionString())
	if err != nil {
		closeTunnel(tun)
		return nil, errs.Wrap(errs.ErrKindConfiguration, "invalid postgres connection settings", err)
	}
	pgCfg.ConnectTimeout = pingTimeout

	conn, err := pgx.ConnectConfig(ctx, pgCfg)
	if err != nil {
		closeTunnel(tun)
		return nil, MapError(err, "unable to reach database")
	}
	return &PgxConnection{Conn: conn, Config: effective, tunnel: tun}, nil
}

func (c *PgxConnection) Close(ctx context.Context) error {
	err := c.Conn.Close(ctx)
	if c.tunnel != nil {
		if terr := c.tunnel.Close(); terr != nil && err == nil {
			err = fmt.Errorf("failed to stop SSH tunnel: %w", terr)
		}
	}
	return err
}
