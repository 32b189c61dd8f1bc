package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kadirbelkuyu/schemasync/internal/config"
	"github.com/kadirbelkuyu/schemasync/internal/errs"
	"github.com/kadirbelkuyu/schemasync/internal/tunnel"
	"github.com/kadirbelkuyu/schemasync/pkg/logger"
)

// MongoConnection is the document-store counterpart of Connection.
type MongoConnection struct {
	Client *mongo.Client
	Config config.DatabaseConfig

	tunnel *tunnel.Tunnel
}

func NewMongoConnection(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*MongoConnection, error) {
	effective, tun, err := prepare(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if effective.Type != "mongo" {
		closeTunnel(tun)
		return nil, errs.Newf(errs.ErrKindConfiguration, "unsupported database type for mongo connection: %s", effective.Type)
	}

	opts := options.Client().ApplyURI(effective.GetMongoURI()).SetConnectTimeout(pingTimeout)
	if tun != nil {
		opts.SetDirect(true)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		closeTunnel(tun)
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to connect to MongoDB", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		closeTunnel(tun)
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "unable to reach MongoDB", err)
	}

	return &MongoConnection{Client: client, Config: effective, tunnel: tun}, nil
}

// Databases lists the databases to inspect: the configured one, or every
// non-system database when none is configured.
func (m *MongoConnection) Databases(ctx context.Context) ([]string, error) {
	if m.Config.Database != "" {
		return []string{m.Config.Database}, nil
	}
	names, err := m.Client.ListDatabaseNames(ctx, bson.D{})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to list databases", err)
	}
	var out []string
	for _, name := range names {
		switch name {
		case "admin", "local", "config":
			continue
		}
		out = append(out, name)
	}
	return out, nil
}

func (m *MongoConnection) Close() error {
	err := m.Client.Disconnect(context.Background())
	if m.tunnel != nil {
		if terr := m.tunnel.Close(); terr != nil && err == nil {
			err = fmt.Errorf("failed to stop SSH tunnel: %w", terr)
		}
	}
	return err
}
