package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/kadirbelkuyu/schemasync/internal/config"
	"github.com/kadirbelkuyu/schemasync/internal/errs"
	"github.com/kadirbelkuyu/schemasync/internal/tunnel"
	"github.com/kadirbelkuyu/schemasync/pkg/logger"
)

const pingTimeout = 15 * time.Second

// Connection is a SQL connection scoped to one inspection or apply run. It
// owns the SSH tunnel, if any, and releases both on Close.
type Connection struct {
	DB     *sql.DB
	Config config.DatabaseConfig

	tunnel *tunnel.Tunnel
}

// NewConnection opens a postgres or mysql connection described by cfg,
// resolving secret references and starting the SSH tunnel first.
func NewConnection(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*Connection, error) {
	effective, tun, err := prepare(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	driver, dsn, err := driverDSN(effective)
	if err != nil {
		closeTunnel(tun)
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		closeTunnel(tun)
		return nil, errs.Wrap(errs.ErrKindConfiguration, "failed to open database connection", err)
	}
	db.SetMaxOpenConns(2)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		closeTunnel(tun)
		return nil, MapError(err, "unable to reach database")
	}

	return &Connection{DB: db, Config: effective, tunnel: tun}, nil
}

// prepare resolves secrets, validates the descriptor and, for ssh
// descriptors, opens the tunnel and points the copy at its local end.
func prepare(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (config.DatabaseConfig, *tunnel.Tunnel, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}
	resolved, err := cfg.Resolve(ctx)
	if err != nil {
		return cfg, nil, err
	}
	if !resolved.UsesTunnel() {
		return resolved, nil, nil
	}
	if resolved.URI != "" {
		return resolved, nil, errs.New(errs.ErrKindConfiguration, "an SSH tunnel cannot be combined with a connection URI")
	}

	tun, err := tunnel.Open(ctx, resolved.SSH, resolved.Address(), log)
	if err != nil {
		return resolved, nil, err
	}
	resolved.Host, resolved.Port = tun.LocalAddr()
	return resolved, tun, nil
}

func driverDSN(cfg config.DatabaseConfig) (string, string, error) {
	switch cfg.Type {
	case "postgres":
		return "postgres", cfg.GetConnectionString(), nil
	case "mysql":
		return "mysql", MySQLDSN(cfg), nil
	default:
		return "", "", errs.Newf(errs.ErrKindConfiguration, "unsupported database type for SQL connection: %s", cfg.Type)
	}
}

// MySQLDSN renders a go-sql-driver DSN for cfg.
func MySQLDSN(cfg config.DatabaseConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = cfg.Address()
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.MultiStatements = false
	mc.Timeout = pingTimeout
	return mc.FormatDSN()
}

func closeTunnel(t *tunnel.Tunnel) {
	if t != nil {
		_ = t.Close()
	}
}

// Close closes the database handle, then the tunnel.
func (c *Connection) Close() error {
	var err error
	if c.DB != nil {
		err = c.DB.Close()
	}
	if c.tunnel != nil {
		if terr := c.tunnel.Close(); terr != nil && err == nil {
			err = fmt.Errorf("failed to stop SSH tunnel: %w", terr)
		}
	}
	return err
}

func (c *Connection) GetDatabaseName() string {
	return c.Config.Database
}
